package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/kozaktomas/photo-picker/internal/constants"
	"github.com/kozaktomas/photo-picker/internal/imagestore"
	"github.com/kozaktomas/photo-picker/internal/importer"
)

// JobStatus represents the status of an async job.
type JobStatus string

// JobStatus constants define the lifecycle states of an async job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// ImportJob represents an async picker import: wait for the selection,
// list the picked items, import them and delete the session.
type ImportJob struct {
	EventBroadcaster

	ID             string
	SessionID      string
	Status         JobStatus
	Phase          string
	Progress       int
	TotalItems     int
	ProcessedItems int
	Error          string
	StartedAt      time.Time
	CompletedAt    *time.Time
	Result         *ImportJobResult
}

// Import job phases.
const (
	PhasePolling   = "polling"
	PhaseListing   = "listing"
	PhaseImporting = "importing"
	PhaseCleanup   = "cleanup"
)

// ImportJobResult summarises a finished import.
type ImportJobResult struct {
	Imported int                 `json:"imported"`
	Failed   int                 `json:"failed"`
	Records  []imagestore.Record `json:"records"`
	Failures []importer.Failure  `json:"failures,omitempty"`
}

// importJobView is a point-in-time copy of an ImportJob for serialisation.
type importJobView struct {
	ID             string           `json:"id"`
	SessionID      string           `json:"session_id"`
	Status         JobStatus        `json:"status"`
	Phase          string           `json:"phase"`
	Progress       int              `json:"progress"`
	TotalItems     int              `json:"total_items"`
	ProcessedItems int              `json:"processed_items"`
	Error          string           `json:"error,omitempty"`
	StartedAt      time.Time        `json:"started_at"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
	Result         *ImportJobResult `json:"result,omitempty"`
}

// Snapshot returns a copy of the job state that is safe to encode.
func (j *ImportJob) Snapshot() importJobView {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return importJobView{
		ID:             j.ID,
		SessionID:      j.SessionID,
		Status:         j.Status,
		Phase:          j.Phase,
		Progress:       j.Progress,
		TotalItems:     j.TotalItems,
		ProcessedItems: j.ProcessedItems,
		Error:          j.Error,
		StartedAt:      j.StartedAt,
		CompletedAt:    j.CompletedAt,
		Result:         j.Result,
	}
}

// GetStatus returns the current job status (implements SSEJob).
func (j *ImportJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// setPhase records the phase and notifies listeners.
func (j *ImportJob) setPhase(phase string) {
	j.mu.Lock()
	j.Phase = phase
	j.mu.Unlock()
	j.SendEvent(JobEvent{Type: "phase", Data: map[string]string{"phase": phase}})
}

// finish moves the job to a terminal status unless it already is in one.
func (j *ImportJob) finish(status JobStatus, message string, result *ImportJobResult) bool {
	now := time.Now()
	j.mu.Lock()
	if isJobTerminal(j.Status) {
		j.mu.Unlock()
		return false
	}
	j.Status = status
	j.Error = message
	j.Result = result
	j.CompletedAt = &now
	if status == JobStatusCompleted {
		j.Progress = 100
	}
	j.mu.Unlock()
	return true
}

// Cancel cancels the import job.
func (j *ImportJob) Cancel() {
	if j.finish(JobStatusCancelled, "", nil) {
		j.EventBroadcaster.Cancel()
	}
}

// JobEvent represents an event from a job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for async jobs.
// Embed this in job structs to get AddListener, RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Cancel cancels the job via context and sends a cancelled event.
func (b *EventBroadcaster) Cancel() {
	if b.cancel != nil {
		b.cancel()
	}
	b.SendEvent(JobEvent{Type: "cancelled", Message: "Job cancelled by user"})
}

// SSEJob is the interface required by streamSSEEvents to stream job events via SSE.
type SSEJob interface {
	AddListener() chan JobEvent
	RemoveListener(ch chan JobEvent)
	GetStatus() JobStatus
}

// JobManager manages async jobs.
type JobManager struct {
	jobs map[string]*ImportJob
	mu   sync.RWMutex
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*ImportJob),
	}
}

// CreateJob creates a pending import job whose work is bound to a
// cancellable context derived from parent.
func (m *JobManager) CreateJob(parent context.Context, id, sessionID string) (*ImportJob, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	job := &ImportJob{
		ID:        id,
		SessionID: sessionID,
		Status:    JobStatusPending,
		StartedAt: time.Now(),
	}
	job.cancel = cancel

	m.mu.Lock()
	m.jobs[id] = job
	m.mu.Unlock()

	return job, ctx
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *ImportJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// DeleteJob removes a job.
func (m *JobManager) DeleteJob(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
}

// ListJobs returns all jobs.
func (m *JobManager) ListJobs() []*ImportJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jobs := make([]*ImportJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	return jobs
}

// CancelAll cancels every job that is still running.
func (m *JobManager) CancelAll() {
	for _, job := range m.ListJobs() {
		if !isJobTerminal(job.GetStatus()) {
			job.Cancel()
		}
	}
}
