// Package importer downloads picked items and stores them locally, one
// failure at a time: a failing item is logged and skipped, never fatal to
// the batch.
package importer

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kozaktomas/photo-picker/internal/constants"
	"github.com/kozaktomas/photo-picker/internal/credential"
	"github.com/kozaktomas/photo-picker/internal/imagestore"
	"github.com/kozaktomas/photo-picker/internal/picker"
)

// Fetcher downloads one picked item; *picker.Downloader satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, tokens credential.TokenSource, item picker.PickedMediaItem) (*picker.Download, error)
}

// Saver persists downloaded bytes; *imagestore.Store satisfies it.
type Saver interface {
	Save(ctx context.Context, originalFilename string, data []byte, source string) (*imagestore.Record, error)
}

// ProgressInfo is reported once per finished item.
type ProgressInfo struct {
	Current int
	Total   int
	ItemID  string
	Label   string
	Record  *imagestore.Record // nil when the item failed
	Err     error
}

// Failure describes one item that could not be imported.
type Failure struct {
	ItemID string `json:"item_id"`
	Label  string `json:"label"`
	Error  string `json:"error"`
	Err    error  `json:"-"`
}

// Result holds the records saved by a batch, in input order, and the
// items that failed. len(Records) < len(items) means a partial import.
type Result struct {
	Records  []imagestore.Record `json:"records"`
	Failures []Failure           `json:"failures,omitempty"`
}

// Coordinator runs batch imports.
type Coordinator struct {
	fetcher     Fetcher
	saver       Saver
	concurrency int
	source      string
	onProgress  func(ProgressInfo)
	logger      zerolog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithConcurrency sets how many items are imported at once. 1 (the
// default) imports strictly in order; values are capped at
// constants.MaxImportConcurrency.
func WithConcurrency(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.concurrency = min(n, constants.MaxImportConcurrency)
		}
	}
}

// WithSource sets the provenance tag written to every record.
func WithSource(source string) Option {
	return func(c *Coordinator) { c.source = source }
}

// WithProgress registers a callback invoked after each item. It may be
// called from several goroutines when concurrency is above 1.
func WithProgress(fn func(ProgressInfo)) Option {
	return func(c *Coordinator) { c.onProgress = fn }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// New creates a Coordinator.
func New(fetcher Fetcher, saver Saver, opts ...Option) *Coordinator {
	c := &Coordinator{
		fetcher:     fetcher,
		saver:       saver,
		concurrency: constants.DefaultImportConcurrency,
		source:      constants.SourceGooglePhotos,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ImportAll imports items and returns the records that were saved.
func (c *Coordinator) ImportAll(ctx context.Context, items []picker.PickedMediaItem, tokens credential.TokenSource) ([]imagestore.Record, error) {
	result, err := c.Import(ctx, items, tokens)
	if result == nil {
		return nil, err
	}
	return result.Records, err
}

// Import downloads and saves every item. Only a missing credential fails
// the whole call up front. Items not started before ctx is cancelled are
// reported as failures and ctx's error is returned with the partial result.
func (c *Coordinator) Import(ctx context.Context, items []picker.PickedMediaItem, tokens credential.TokenSource) (*Result, error) {
	if _, err := tokens.AccessToken(); err != nil {
		return nil, err
	}

	outcomes := make([]outcome, len(items))
	if c.concurrency <= 1 {
		for i := range items {
			outcomes[i] = c.importOne(ctx, items[i], tokens)
			c.report(i+1, len(items), items[i], outcomes[i])
		}
	} else {
		c.importConcurrently(ctx, items, tokens, outcomes)
	}

	result := &Result{Records: make([]imagestore.Record, 0, len(items))}
	for i, o := range outcomes {
		if o.err != nil {
			result.Failures = append(result.Failures, Failure{
				ItemID: items[i].ID,
				Label:  items[i].Label(),
				Error:  o.err.Error(),
				Err:    o.err,
			})
			continue
		}
		result.Records = append(result.Records, *o.record)
	}

	c.logger.Info().
		Int("total", len(items)).
		Int("saved", len(result.Records)).
		Int("failed", len(result.Failures)).
		Msg("import finished")

	return result, ctx.Err()
}

type outcome struct {
	record *imagestore.Record
	err    error
}

// importConcurrently bounds in-flight items with a semaphore and writes
// each outcome to its input slot.
func (c *Coordinator) importConcurrently(ctx context.Context, items []picker.PickedMediaItem, tokens credential.TokenSource, outcomes []outcome) {
	semaphore := make(chan struct{}, c.concurrency)
	var wg sync.WaitGroup
	var progressMu sync.Mutex
	done := 0

	for i := range items {
		wg.Add(1)
		go func(idx int, item picker.PickedMediaItem) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			o := c.importOne(ctx, item, tokens)
			outcomes[idx] = o

			progressMu.Lock()
			done++
			c.report(done, len(items), item, o)
			progressMu.Unlock()
		}(i, items[i])
	}
	wg.Wait()
}

func (c *Coordinator) importOne(ctx context.Context, item picker.PickedMediaItem, tokens credential.TokenSource) outcome {
	if err := ctx.Err(); err != nil {
		return outcome{err: err}
	}

	dl, err := c.fetcher.Fetch(ctx, tokens, item)
	if err != nil {
		c.logger.Warn().Err(err).Str("item", item.Label()).Msg("failed to download picked item")
		return outcome{err: err}
	}

	// The bytes are already here; a cancellation arriving now must not
	// abort the save half way.
	rec, err := c.saver.Save(context.WithoutCancel(ctx), filenameFor(item), dl.Data, c.source)
	if err != nil {
		c.logger.Warn().Err(err).Str("item", item.Label()).Msg("failed to save picked item")
		return outcome{err: fmt.Errorf("saving %s: %w", item.Label(), err)}
	}
	return outcome{record: rec}
}

func (c *Coordinator) report(current, total int, item picker.PickedMediaItem, o outcome) {
	if c.onProgress == nil {
		return
	}
	c.onProgress(ProgressInfo{
		Current: current,
		Total:   total,
		ItemID:  item.ID,
		Label:   item.Label(),
		Record:  o.record,
		Err:     o.err,
	})
}

// filenameFor prefers the original filename and falls back to the item's
// label with the default extension.
func filenameFor(item picker.PickedMediaItem) string {
	if item.MediaFile.Filename != "" {
		return item.MediaFile.Filename
	}
	return item.Label() + constants.DefaultImageExtension
}
