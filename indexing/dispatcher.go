// Copyright 2025 Worklens
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package indexing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/worklens/recall/ai"
	"github.com/worklens/recall/core"
	"github.com/worklens/recall/storage"
)

// ItemError records one failed job in a batch run.
type ItemError struct {
	JobID  core.ID
	Reason string
}

// BatchResult reports the outcome of a batch run: how many items reached
// done and the per-item failures. Failures never abort sibling items.
type BatchResult struct {
	Processed int
	Errors    []ItemError
}

// Dispatcher drains pending jobs and materializes embeddings.
// Jobs are partitioned into fixed-size chunks; chunks run sequentially while
// items within a chunk fan out over a bounded worker pool, which caps peak
// concurrent provider calls at one chunk's size.
type Dispatcher struct {
	jobs     storage.JobStore
	vectors  storage.VectorStore
	limiter  *RateLimiter
	pool     *ants.Pool
	config   *Config
	logger   *slog.Logger
	progress *ProgressTracker

	mu       sync.RWMutex
	provider ai.Provider
}

// Option configures a Dispatcher.
type Option func(*Dispatcher) error

// WithConfig replaces the default dispatch configuration.
func WithConfig(config *Config) Option {
	return func(d *Dispatcher) error {
		if err := config.Validate(); err != nil {
			return err
		}
		d.config = config
		return nil
	}
}

// WithProgress attaches a progress tracker that is advanced by one per job
// as chunks complete. The caller owns Start and Finish.
func WithProgress(tracker *ProgressTracker) Option {
	return func(d *Dispatcher) error {
		d.progress = tracker
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		d.logger = logger
		return nil
	}
}

// NewDispatcher creates a dispatcher over the given stores and provider.
func NewDispatcher(jobs storage.JobStore, vectors storage.VectorStore, provider ai.Provider, opts ...Option) (*Dispatcher, error) {
	if jobs == nil {
		return nil, ErrJobStoreRequired
	}
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	d := &Dispatcher{
		jobs:     jobs,
		vectors:  vectors,
		provider: provider,
		config:   DefaultConfig(),
		logger:   slog.Default().With("component", "dispatcher"),
	}

	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	limiter, err := NewRateLimiter(d.config.MaxRequestsPerMinute)
	if err != nil {
		return nil, err
	}
	d.limiter = limiter

	pool, err := ants.NewPool(d.config.ChunkSize)
	if err != nil {
		return nil, err
	}
	d.pool = pool

	return d, nil
}

// Rebind replaces the AI provider for subsequent batch runs, e.g. after a
// credential change. In-flight items keep the provider they started with.
func (d *Dispatcher) Rebind(provider ai.Provider) error {
	if provider == nil {
		return ErrAIProviderRequired
	}

	d.mu.Lock()
	d.provider = provider
	d.mu.Unlock()

	d.logger.Info("rebound AI provider")
	return nil
}

func (d *Dispatcher) currentProvider() ai.Provider {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.provider
}

// DispatchPending dequeues up to limit pending jobs and runs them through
// the batch pipeline with bounded retry. The returned result aggregates all
// attempts; residual failures are listed per item, never raised.
func (d *Dispatcher) DispatchPending(ctx context.Context, limit int) (*BatchResult, error) {
	pending, err := d.jobs.DequeuePending(ctx, limit)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return &BatchResult{}, nil
	}

	return RetryBatch(ctx, d.RunBatch, pending, d.config.MaxRetries, d.config.RetryDelay)
}

// RunBatch processes the given jobs in sequential chunks with in-chunk
// fan-out. A failing item is marked error and recorded in the result; its
// chunk siblings continue. A failure to hand a chunk to the pool marks every
// item of that chunk as failed.
func (d *Dispatcher) RunBatch(ctx context.Context, jobs []*core.EmbedJob) *BatchResult {
	runID := uuid.NewString()
	provider := d.currentProvider()
	result := &BatchResult{}

	d.logger.Info("starting batch run",
		"run", runID, "jobs", len(jobs), "chunkSize", d.config.ChunkSize)

	for start := 0; start < len(jobs); start += d.config.ChunkSize {
		end := start + d.config.ChunkSize
		if end > len(jobs) {
			end = len(jobs)
		}
		chunk := jobs[start:end]

		outcomes := make([]error, len(chunk))
		var wg sync.WaitGroup
		var setupErr error

		submitted := len(chunk)
		for i, job := range chunk {
			i, job := i, job
			wg.Add(1)
			err := d.pool.Submit(func() {
				defer wg.Done()
				outcomes[i] = d.processItem(ctx, provider, job)
			})
			if err != nil {
				wg.Done()
				setupErr = err
				submitted = i
				break
			}
		}
		wg.Wait()

		if setupErr != nil {
			// Items never handed to the pool get failed with the
			// chunk-level error; already-submitted items keep whatever
			// outcome their goroutine produced.
			reason := fmt.Sprintf("chunk dispatch failed: %v", setupErr)
			for _, job := range chunk[submitted:] {
				d.failJob(ctx, job, reason)
				result.Errors = append(result.Errors, ItemError{JobID: job.Id, Reason: reason})
			}
			d.logger.Error("chunk dispatch failed", "run", runID, "err", setupErr)
		}

		for i, job := range chunk[:submitted] {
			if outcomes[i] == nil {
				result.Processed++
				continue
			}
			result.Errors = append(result.Errors, ItemError{
				JobID:  job.Id,
				Reason: outcomes[i].Error(),
			})
		}

		if d.progress != nil {
			d.progress.Increment(len(chunk))
		}
	}

	d.logger.Info("batch run finished",
		"run", runID, "processed", result.Processed, "failed", len(result.Errors))
	return result
}

// processItem drives one job through its pipeline: mark processing,
// summarize if needed, rate-limited embed, vector append, mark done.
func (d *Dispatcher) processItem(ctx context.Context, provider ai.Provider, job *core.EmbedJob) error {
	if err := d.jobs.MarkProcessing(ctx, job.Id); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	text := job.Text

	// Session texts are structured serializations; condense them before
	// embedding. Summarization is a quality enhancement, so a failure
	// degrades to embedding the raw text instead of failing the job.
	if job.Level == core.LevelSession {
		summary, err := provider.Summarizer().Summarize(ctx, text)
		if err != nil {
			d.logger.Warn("summarization failed, embedding raw text", "job", job.Id, "err", err)
		} else {
			text = summary
		}
	}

	// Acquire only fails when the context is done. That is a run
	// interruption, not an item failure: the job keeps its processing
	// status so a RequeueStuck pass can return it to the queue.
	if err := d.limiter.Acquire(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	vector, err := provider.Embedder().EmbedText(ctx, text)
	if err != nil {
		d.failJob(ctx, job, err.Error())
		return fmt.Errorf("embed: %w", err)
	}

	record := &core.EmbeddingRecord{
		Key:        job.RecordKey(),
		Level:      job.Level,
		SessionID:  job.SessionID,
		CycleID:    job.CycleID,
		Column:     job.ColumnName,
		FieldLabel: job.FieldLabel,
		Vector:     core.NormalizeVector(vector),
		Text:       text,
		Version:    job.Version,
	}
	if err := d.vectors.Append(ctx, record); err != nil {
		d.failJob(ctx, job, err.Error())
		return fmt.Errorf("append record: %w", err)
	}

	if err := d.jobs.MarkTerminal(ctx, job.Id, core.StatusDone, ""); err != nil {
		return fmt.Errorf("mark done: %w", err)
	}
	return nil
}

// failJob records a terminal error status. Best effort: a failing status
// write is logged, not propagated, since the item error is already captured.
func (d *Dispatcher) failJob(ctx context.Context, job *core.EmbedJob, reason string) {
	if err := d.jobs.MarkTerminal(ctx, job.Id, core.StatusError, reason); err != nil {
		d.logger.Error("failed to mark job as error", "job", job.Id, "err", err)
	}
}

// Release frees the worker pool. The dispatcher must not be used afterwards.
func (d *Dispatcher) Release() {
	if d.pool != nil {
		d.pool.Release()
	}
}
