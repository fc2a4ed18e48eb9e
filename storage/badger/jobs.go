package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/worklens/recall/core"
	"github.com/worklens/recall/storage"
)

// sweepBatchSize bounds the number of jobs mutated per write transaction
// during maintenance sweeps.
const sweepBatchSize = 256

// JobRepository implements storage.JobStore for BadgerDB.
//
// The pending-queue index holds one entry per pending job, keyed so that a
// prefix scan yields jobs in (level, createdAt) order. Processing and
// terminal jobs live only under their primary key.
type JobRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.JobStore = (*JobRepository)(nil)

// NewJobRepository creates a new JobRepository.
func NewJobRepository(backend *Backend) (*JobRepository, error) {
	idSeq, err := backend.GetSequence(jobIDSeq)
	if err != nil {
		return nil, err
	}

	return &JobRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *JobRepository) Close() error {
	return r.idSeq.Release()
}

// Enqueue persists a new pending job and returns its assigned ID.
func (r *JobRepository) Enqueue(ctx context.Context, job *core.EmbedJob) (core.ID, error) {
	if err := core.ValidateJob(job); err != nil {
		return 0, err
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		nextID, err := r.idSeq.Next()
		if err != nil {
			return err
		}
		// BadgerDB sequences can return 0 on first call, so we skip it
		if nextID == 0 {
			nextID, err = r.idSeq.Next()
			if err != nil {
				return err
			}
		}
		job.Id = core.ID(nextID)
		job.Status = core.StatusPending
		job.Version = 1
		job.CreatedAt = time.Now().UTC()
		job.StartedAt = time.Time{}
		job.ProcessedAt = time.Time{}
		job.ErrorMessage = ""

		if err := tx.Set(makeJobKey(job.Id), storage.MarshalEmbedJob(job)); err != nil {
			return err
		}

		pendingKey := makeJobPendingKey(job.Level, job.CreatedAt, job.Id)
		if err := tx.Set(pendingKey, storage.MarshalID(job.Id)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	if err != nil {
		return 0, err
	}
	return job.Id, nil
}

// DequeuePending returns up to limit pending jobs in (level, createdAt) order.
func (r *JobRepository) DequeuePending(ctx context.Context, limit int) ([]*core.EmbedJob, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidLimit
	}

	var results []*core.EmbedJob
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(jobPendingPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid() && len(results) < limit; iter.Next() {
			var jobID core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				jobID, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				return err
			}

			job, err := r.readJob(tx, jobID)
			if err != nil {
				return err
			}
			// The index is advisory; only hand out jobs still pending.
			if job != nil && job.Status == core.StatusPending {
				results = append(results, job)
			}
		}
		return nil
	}, false)

	return results, err
}

// MarkProcessing transitions a job from pending to processing.
// A job not currently pending is left untouched.
func (r *JobRepository) MarkProcessing(ctx context.Context, id core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		job, err := r.readJob(tx, id)
		if err != nil {
			return err
		}
		if job == nil {
			return storage.ErrNotFound
		}
		if job.Status != core.StatusPending {
			return nil
		}

		if err := tx.Delete(makeJobPendingKey(job.Level, job.CreatedAt, job.Id)); err != nil {
			return err
		}

		job.Status = core.StatusProcessing
		job.StartedAt = time.Now().UTC()
		if err := tx.Set(makeJobKey(job.Id), storage.MarshalEmbedJob(job)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// MarkTerminal sets a terminal status and records the processing timestamp.
func (r *JobRepository) MarkTerminal(ctx context.Context, id core.ID, status core.JobStatus, errorMessage string) error {
	if status != core.StatusDone && status != core.StatusError {
		return fmt.Errorf("%w: terminal status required, got %q", core.ErrInvalidStatus, status)
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		job, err := r.readJob(tx, id)
		if err != nil {
			return err
		}
		if job == nil {
			return storage.ErrNotFound
		}

		// A job can reach a terminal state straight from pending when a
		// whole chunk fails before dispatch; drop its queue entry too.
		if job.Status == core.StatusPending {
			if err := tx.Delete(makeJobPendingKey(job.Level, job.CreatedAt, job.Id)); err != nil {
				return err
			}
		}

		job.Status = status
		job.ProcessedAt = time.Now().UTC()
		if status == core.StatusError {
			job.ErrorMessage = errorMessage
		} else {
			job.ErrorMessage = ""
		}

		if err := tx.Set(makeJobKey(job.Id), storage.MarshalEmbedJob(job)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetJob retrieves a single job by ID.
func (r *JobRepository) GetJob(ctx context.Context, id core.ID) (*core.EmbedJob, error) {
	var result *core.EmbedJob
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = r.readJob(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// RequeueStuck resets jobs processing longer than olderThan back to pending.
func (r *JobRepository) RequeueStuck(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	stuck, err := r.collectJobIDs(func(job *core.EmbedJob) bool {
		if job.Status != core.StatusProcessing {
			return false
		}
		return !job.StartedAt.IsZero() && !job.StartedAt.After(cutoff)
	})
	if err != nil {
		return 0, err
	}

	requeued := 0
	err = r.applyInBatches(stuck, func(tx *badger.Txn, id core.ID) error {
		job, err := r.readJob(tx, id)
		if err != nil {
			return err
		}
		// Re-check under the write transaction; the job may have reached
		// a terminal state since the scan.
		if job == nil || job.Status != core.StatusProcessing {
			return nil
		}
		if job.StartedAt.IsZero() || job.StartedAt.After(cutoff) {
			return nil
		}

		job.Status = core.StatusPending
		job.StartedAt = time.Time{}
		if err := tx.Set(makeJobKey(job.Id), storage.MarshalEmbedJob(job)); err != nil {
			return err
		}
		pendingKey := makeJobPendingKey(job.Level, job.CreatedAt, job.Id)
		if err := tx.Set(pendingKey, storage.MarshalID(job.Id)); err != nil {
			return err
		}
		requeued++
		return nil
	})

	return requeued, err
}

// RetentionSweep deletes aged-out terminal jobs.
// Recent error rows are kept longer than done rows for diagnosis.
func (r *JobRepository) RetentionSweep(ctx context.Context, doneOlderThan, errorOlderThan time.Duration) (int, int, error) {
	now := time.Now().UTC()
	doneCutoff := now.Add(-doneOlderThan)
	errorCutoff := now.Add(-errorOlderThan)

	aged := func(job *core.EmbedJob) bool {
		switch job.Status {
		case core.StatusDone:
			return !job.ProcessedAt.IsZero() && job.ProcessedAt.Before(doneCutoff)
		case core.StatusError:
			return !job.ProcessedAt.IsZero() && job.ProcessedAt.Before(errorCutoff)
		}
		return false
	}

	expired, err := r.collectJobIDs(aged)
	if err != nil {
		return 0, 0, err
	}

	doneRemoved, errorRemoved := 0, 0
	err = r.applyInBatches(expired, func(tx *badger.Txn, id core.ID) error {
		job, err := r.readJob(tx, id)
		if err != nil {
			return err
		}
		if job == nil || !aged(job) {
			return nil
		}
		if err := tx.Delete(makeJobKey(job.Id)); err != nil {
			return err
		}
		if job.Status == core.StatusDone {
			doneRemoved++
		} else {
			errorRemoved++
		}
		return nil
	})

	return doneRemoved, errorRemoved, err
}

// Statistics returns the number of jobs per status.
func (r *JobRepository) Statistics(ctx context.Context) (map[core.JobStatus]int, error) {
	counts := map[core.JobStatus]int{
		core.StatusPending:    0,
		core.StatusProcessing: 0,
		core.StatusDone:       0,
		core.StatusError:      0,
	}

	err := r.forEachJob(func(job *core.EmbedJob) error {
		counts[job.Status]++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// Helper methods

// readJob reads a job by ID within the transaction.
// Returns nil without error when the job doesn't exist.
func (r *JobRepository) readJob(tx *badger.Txn, id core.ID) (*core.EmbedJob, error) {
	item, err := tx.Get(makeJobKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var job *core.EmbedJob
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		job, unmarshalErr = storage.UnmarshalEmbedJob(val)
		return unmarshalErr
	})
	return job, err
}

// forEachJob runs fn for every stored job inside one read-only transaction.
func (r *JobRepository) forEachJob(fn func(job *core.EmbedJob) error) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(jobRecordPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var job *core.EmbedJob
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				job, err = storage.UnmarshalEmbedJob(val)
				return err
			}); err != nil {
				return err
			}
			if job == nil {
				continue
			}
			if err := fn(job); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// collectJobIDs scans all jobs read-only and returns the IDs matching fn.
func (r *JobRepository) collectJobIDs(match func(job *core.EmbedJob) bool) ([]core.ID, error) {
	var ids []core.ID
	err := r.forEachJob(func(job *core.EmbedJob) error {
		if match(job) {
			ids = append(ids, job.Id)
		}
		return nil
	})
	return ids, err
}

// applyInBatches runs fn for each ID, committing a write transaction every
// sweepBatchSize entries so large sweeps stay under badger's transaction
// size limit.
func (r *JobRepository) applyInBatches(ids []core.ID, fn func(tx *badger.Txn, id core.ID) error) error {
	for start := 0; start < len(ids); start += sweepBatchSize {
		end := start + sweepBatchSize
		if end > len(ids) {
			end = len(ids)
		}

		err := r.backend.WithTx(func(tx *badger.Txn) error {
			for _, id := range ids[start:end] {
				if err := fn(tx, id); err != nil {
					return err
				}
			}
			return tx.Commit()
		}, true)
		if err != nil {
			return err
		}
	}
	return nil
}
