package storage

import (
	"context"
	"time"

	"github.com/worklens/recall/core"
)

// JobStore provides durable, queryable persistence of embed jobs with a
// strict state machine: pending -> processing -> {done, error}.
// Implementations must be thread-safe and support concurrent access.
type JobStore interface {
	// Enqueue persists a new pending job, assigning a fresh ID, version 1
	// and a creation timestamp. The job's Status and Id fields are
	// overwritten. Returns the assigned ID.
	Enqueue(ctx context.Context, job *core.EmbedJob) (core.ID, error)

	// DequeuePending returns up to limit jobs with status pending, ordered
	// by (level, createdAt) ascending. The ordering is a scheduling hint,
	// not a correctness guarantee.
	DequeuePending(ctx context.Context, limit int) ([]*core.EmbedJob, error)

	// MarkProcessing transitions a job from pending to processing.
	// Idempotent: a job that is not currently pending is left untouched
	// and no error is returned, so concurrent dispatch attempts cannot
	// double-transition a job.
	MarkProcessing(ctx context.Context, id core.ID) error

	// MarkTerminal sets a terminal status (done or error) and records the
	// processing timestamp. errorMessage is stored iff status is error.
	MarkTerminal(ctx context.Context, id core.ID, status core.JobStatus, errorMessage string) error

	// GetJob retrieves a single job by ID.
	// Returns ErrNotFound if the job doesn't exist.
	GetJob(ctx context.Context, id core.ID) (*core.EmbedJob, error)

	// RequeueStuck resets jobs that have been processing longer than
	// olderThan back to pending. This is an explicit operator-invoked
	// reconciliation; crashed-mid-flight jobs are never requeued
	// automatically. Returns the number of requeued jobs.
	RequeueStuck(ctx context.Context, olderThan time.Duration) (int, error)

	// RetentionSweep deletes done jobs older than doneOlderThan and error
	// jobs older than errorOlderThan, measured against ProcessedAt.
	// Returns the number of removed done and error rows.
	RetentionSweep(ctx context.Context, doneOlderThan, errorOlderThan time.Duration) (doneRemoved, errorRemoved int, err error)

	// Statistics returns the number of jobs per status.
	Statistics(ctx context.Context) (map[core.JobStatus]int, error)

	// Close releases resources held by the store.
	Close() error
}

// QueryFilter narrows a vector query by provenance.
// Zero values mean "no filter".
type QueryFilter struct {
	Level     core.Level
	SessionID string
}

// VectorStore provides append and nearest-neighbor query access to the
// embedding index. Implementations must be thread-safe.
type VectorStore interface {
	// Append stores a record under its composite key. Appending a record
	// with an existing key overwrites the prior record (last write wins).
	Append(ctx context.Context, record *core.EmbeddingRecord) error

	// Query returns up to k records nearest to the given vector, filtered
	// by the provided filter, ordered by similarity score descending.
	// Vectors are assumed normalized; similarity is the dot product.
	Query(ctx context.Context, vector []float32, filter QueryFilter, k int) ([]*core.ScoredRecord, error)

	// Get retrieves a single record by composite key.
	// Returns ErrNotFound if the record doesn't exist.
	Get(ctx context.Context, key string) (*core.EmbeddingRecord, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Close releases resources held by the store.
	Close() error
}
