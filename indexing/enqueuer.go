package indexing

import (
	"context"
	"log/slog"

	"github.com/worklens/recall/core"
	"github.com/worklens/recall/storage"
)

// Enqueuer binds the pure job constructors to a job store.
// It is the only integration point with the relational layer: callers read
// a business record, build the struct, and hand it over.
type Enqueuer struct {
	jobs   storage.JobStore
	logger *slog.Logger
}

// NewEnqueuer creates an enqueuer writing to the given job store.
func NewEnqueuer(jobs storage.JobStore) (*Enqueuer, error) {
	if jobs == nil {
		return nil, ErrJobStoreRequired
	}
	return &Enqueuer{
		jobs:   jobs,
		logger: slog.Default().With("component", "enqueuer"),
	}, nil
}

// EnqueueCycle persists the embed jobs derived from a cycle.
// Returns the assigned job IDs.
func (e *Enqueuer) EnqueueCycle(ctx context.Context, cycle *Cycle) ([]core.ID, error) {
	return e.enqueue(ctx, CycleJobs(cycle))
}

// EnqueueSession persists the embed jobs derived from a session.
// Returns the assigned job IDs.
func (e *Enqueuer) EnqueueSession(ctx context.Context, session *Session) ([]core.ID, error) {
	return e.enqueue(ctx, SessionJobs(session))
}

func (e *Enqueuer) enqueue(ctx context.Context, jobs []*core.EmbedJob) ([]core.ID, error) {
	ids := make([]core.ID, 0, len(jobs))
	for _, job := range jobs {
		id, err := e.jobs.Enqueue(ctx, job)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}

	e.logger.Debug("enqueued jobs", "count", len(ids))
	return ids, nil
}
