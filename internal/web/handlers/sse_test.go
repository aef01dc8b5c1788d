package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestJobEvents_FinishedJobSendsStatusAndCloses(t *testing.T) {
	jm := NewJobManager()
	job, _ := jm.CreateJob(context.Background(), "j1", "s1")
	job.finish(JobStatusCompleted, "", &ImportJobResult{Imported: 2})

	handler := NewPickerHandler(context.Background(), &fakePickerAPI{}, newFakeCredentials(""), recordingImporter, jm, time.Second, zerolog.Nop())

	req := requestWithChiParams(httptest.NewRequest("GET", "/api/v1/jobs/j1/events", nil), map[string]string{"jobId": "j1"})
	recorder := httptest.NewRecorder()
	handler.JobEvents(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "text/event-stream")
	body := recorder.Body.String()
	if !strings.HasPrefix(body, "event: status\n") {
		t.Errorf("expected an initial status event, got %q", body)
	}
	if !strings.Contains(body, `"status":"completed"`) {
		t.Errorf("expected the completed snapshot, got %q", body)
	}
}

func TestJobEvents_StreamsUntilTerminal(t *testing.T) {
	jm := NewJobManager()
	job, _ := jm.CreateJob(context.Background(), "j1", "s1")
	handler := NewPickerHandler(context.Background(), &fakePickerAPI{}, newFakeCredentials(""), recordingImporter, jm, time.Second, zerolog.Nop())

	req := requestWithChiParams(httptest.NewRequest("GET", "/api/v1/jobs/j1/events", nil), map[string]string{"jobId": "j1"})
	recorder := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.JobEvents(recorder, req)
	}()

	// Wait for the stream to register its listener.
	deadline := time.Now().Add(2 * time.Second)
	for {
		job.mu.RLock()
		n := len(job.listeners)
		job.mu.RUnlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("stream did not subscribe")
		}
		time.Sleep(5 * time.Millisecond)
	}

	job.SendEvent(JobEvent{Type: "progress", Data: map[string]int{"current": 1}})
	job.finish(JobStatusCompleted, "", &ImportJobResult{Imported: 1})
	job.SendEvent(JobEvent{Type: "completed"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after the job completed")
	}

	body := recorder.Body.String()
	if !strings.Contains(body, "event: progress\n") {
		t.Errorf("expected a progress event, got %q", body)
	}
}

func TestJobEvents_UnknownJob(t *testing.T) {
	handler := NewPickerHandler(context.Background(), &fakePickerAPI{}, newFakeCredentials(""), recordingImporter, NewJobManager(), time.Second, zerolog.Nop())

	req := requestWithChiParams(httptest.NewRequest("GET", "/api/v1/jobs/nope/events", nil), map[string]string{"jobId": "nope"})
	recorder := httptest.NewRecorder()
	handler.JobEvents(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
}
