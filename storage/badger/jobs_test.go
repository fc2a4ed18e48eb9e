package badger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/worklens/recall/core"
	"github.com/worklens/recall/storage"
)

func newTestJobRepo(t *testing.T) (*JobRepository, *Backend) {
	t.Helper()
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	repo, err := NewJobRepository(backend)
	require.NoError(t, err)

	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})
	return repo, backend
}

func testJob(level core.Level, sessionID, rowID string) *core.EmbedJob {
	job := &core.EmbedJob{
		Level:       level,
		SessionID:   sessionID,
		SourceTable: "cycles",
		RowID:       rowID,
		Text:        "some text worth indexing",
	}
	if level == core.LevelField {
		job.ColumnName = "goal"
		job.FieldLabel = "Goal"
	}
	if level == core.LevelSession {
		job.SourceTable = "sessions"
	}
	return job
}

func TestEnqueue_AssignsIDAndDefaults(t *testing.T) {
	repo, _ := newTestJobRepo(t)
	ctx := context.Background()

	id, err := repo.Enqueue(ctx, testJob(core.LevelCycle, "s-1", "c-1"))
	require.NoError(t, err)
	assert.NotZero(t, id)

	job, err := repo.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, job.Status)
	assert.Equal(t, 1, job.Version)
	assert.False(t, job.CreatedAt.IsZero())
	assert.True(t, job.ProcessedAt.IsZero())
}

func TestEnqueue_RejectsInvalidJob(t *testing.T) {
	repo, _ := newTestJobRepo(t)

	job := testJob(core.LevelField, "s-1", "c-1")
	job.Text = ""
	_, err := repo.Enqueue(context.Background(), job)
	assert.ErrorIs(t, err, core.ErrInvalidJob)
}

func TestDequeuePending_OrderAndLimit(t *testing.T) {
	repo, _ := newTestJobRepo(t)
	ctx := context.Background()

	// Enqueue out of level order; dequeue must come back cycle, field, session.
	sessionID, err := repo.Enqueue(ctx, testJob(core.LevelSession, "s-1", "s-1"))
	require.NoError(t, err)
	fieldID, err := repo.Enqueue(ctx, testJob(core.LevelField, "s-1", "c-1"))
	require.NoError(t, err)
	cycleID, err := repo.Enqueue(ctx, testJob(core.LevelCycle, "s-1", "c-1"))
	require.NoError(t, err)

	jobs, err := repo.DequeuePending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, cycleID, jobs[0].Id)
	assert.Equal(t, fieldID, jobs[1].Id)
	assert.Equal(t, sessionID, jobs[2].Id)

	// Limit is respected.
	jobs, err = repo.DequeuePending(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	_, err = repo.DequeuePending(ctx, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidLimit)
}

func TestDequeuePending_CreatedAtOrderWithinLevel(t *testing.T) {
	repo, _ := newTestJobRepo(t)
	ctx := context.Background()

	first, err := repo.Enqueue(ctx, testJob(core.LevelField, "s-1", "c-1"))
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := repo.Enqueue(ctx, testJob(core.LevelField, "s-1", "c-2"))
	require.NoError(t, err)

	jobs, err := repo.DequeuePending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, first, jobs[0].Id, "older jobs drain first")
	assert.Equal(t, second, jobs[1].Id)
}

func TestMarkProcessing_Lifecycle(t *testing.T) {
	repo, _ := newTestJobRepo(t)
	ctx := context.Background()

	id, err := repo.Enqueue(ctx, testJob(core.LevelCycle, "s-1", "c-1"))
	require.NoError(t, err)

	require.NoError(t, repo.MarkProcessing(ctx, id))

	job, err := repo.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusProcessing, job.Status)
	assert.False(t, job.StartedAt.IsZero())

	// Processing jobs no longer show up in the pending queue.
	jobs, err := repo.DequeuePending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	// Idempotent: marking again is a no-op, not an error.
	require.NoError(t, repo.MarkProcessing(ctx, id))

	// A done job never re-enters processing.
	require.NoError(t, repo.MarkTerminal(ctx, id, core.StatusDone, ""))
	require.NoError(t, repo.MarkProcessing(ctx, id))
	job, err = repo.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusDone, job.Status)
}

func TestMarkProcessing_NotFound(t *testing.T) {
	repo, _ := newTestJobRepo(t)
	err := repo.MarkProcessing(context.Background(), 9999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMarkTerminal(t *testing.T) {
	repo, _ := newTestJobRepo(t)
	ctx := context.Background()

	t.Run("done clears error message", func(t *testing.T) {
		id, err := repo.Enqueue(ctx, testJob(core.LevelCycle, "s-1", "c-1"))
		require.NoError(t, err)
		require.NoError(t, repo.MarkProcessing(ctx, id))
		require.NoError(t, repo.MarkTerminal(ctx, id, core.StatusDone, ""))

		job, err := repo.GetJob(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, core.StatusDone, job.Status)
		assert.Empty(t, job.ErrorMessage)
		assert.False(t, job.ProcessedAt.IsZero())
	})

	t.Run("error records message", func(t *testing.T) {
		id, err := repo.Enqueue(ctx, testJob(core.LevelCycle, "s-1", "c-2"))
		require.NoError(t, err)
		require.NoError(t, repo.MarkProcessing(ctx, id))
		require.NoError(t, repo.MarkTerminal(ctx, id, core.StatusError, "embed call failed"))

		job, err := repo.GetJob(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, core.StatusError, job.Status)
		assert.Equal(t, "embed call failed", job.ErrorMessage)
	})

	t.Run("terminal from pending drops queue entry", func(t *testing.T) {
		id, err := repo.Enqueue(ctx, testJob(core.LevelCycle, "s-1", "c-3"))
		require.NoError(t, err)
		require.NoError(t, repo.MarkTerminal(ctx, id, core.StatusError, "chunk setup failed"))

		jobs, err := repo.DequeuePending(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, jobs)
	})

	t.Run("rejects non-terminal status", func(t *testing.T) {
		id, err := repo.Enqueue(ctx, testJob(core.LevelCycle, "s-1", "c-4"))
		require.NoError(t, err)
		err = repo.MarkTerminal(ctx, id, core.StatusProcessing, "")
		assert.Error(t, err)
	})
}

// rewriteJob overwrites a stored job directly, bypassing the state machine.
// Used to age jobs for sweep tests.
func rewriteJob(t *testing.T, backend *Backend, job *core.EmbedJob) {
	t.Helper()
	err := backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeJobKey(job.Id), storage.MarshalEmbedJob(job)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	require.NoError(t, err)
}

func TestRetentionSweep(t *testing.T) {
	repo, backend := newTestJobRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	age := func(id core.ID, status core.JobStatus, processedAgo time.Duration) {
		require.NoError(t, repo.MarkProcessing(ctx, id))
		require.NoError(t, repo.MarkTerminal(ctx, id, status, "boom"))
		job, err := repo.GetJob(ctx, id)
		require.NoError(t, err)
		job.ProcessedAt = now.Add(-processedAgo)
		rewriteJob(t, backend, job)
	}

	oldDone, err := repo.Enqueue(ctx, testJob(core.LevelCycle, "s-1", "c-1"))
	require.NoError(t, err)
	freshDone, err := repo.Enqueue(ctx, testJob(core.LevelCycle, "s-1", "c-2"))
	require.NoError(t, err)
	midError, err := repo.Enqueue(ctx, testJob(core.LevelCycle, "s-1", "c-3"))
	require.NoError(t, err)
	oldError, err := repo.Enqueue(ctx, testJob(core.LevelCycle, "s-1", "c-4"))
	require.NoError(t, err)

	age(oldDone, core.StatusDone, 8*24*time.Hour)
	age(freshDone, core.StatusDone, 3*24*time.Hour)
	age(midError, core.StatusError, 10*24*time.Hour)
	age(oldError, core.StatusError, 31*24*time.Hour)

	doneRemoved, errorRemoved, err := repo.RetentionSweep(ctx, 7*24*time.Hour, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, doneRemoved)
	assert.Equal(t, 1, errorRemoved)

	_, err = repo.GetJob(ctx, oldDone)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = repo.GetJob(ctx, oldError)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = repo.GetJob(ctx, freshDone)
	assert.NoError(t, err, "recent done row is retained")
	_, err = repo.GetJob(ctx, midError)
	assert.NoError(t, err, "10-day-old error row is below the 30-day threshold")
}

func TestRetentionSweep_LargeBacklogBatches(t *testing.T) {
	repo, backend := newTestJobRepo(t)
	ctx := context.Background()
	old := time.Now().UTC().Add(-8 * 24 * time.Hour)

	// More terminal rows than fit in one sweep batch.
	total := sweepBatchSize + 40
	for i := 0; i < total; i++ {
		id, err := repo.Enqueue(ctx, testJob(core.LevelCycle, "s-1", fmt.Sprintf("c-%d", i)))
		require.NoError(t, err)
		require.NoError(t, repo.MarkTerminal(ctx, id, core.StatusDone, ""))
		job, err := repo.GetJob(ctx, id)
		require.NoError(t, err)
		job.ProcessedAt = old
		rewriteJob(t, backend, job)
	}

	doneRemoved, errorRemoved, err := repo.RetentionSweep(ctx, 7*24*time.Hour, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, total, doneRemoved)
	assert.Zero(t, errorRemoved)

	stats, err := repo.Statistics(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats[core.StatusDone])
}

func TestRequeueStuck(t *testing.T) {
	repo, backend := newTestJobRepo(t)
	ctx := context.Background()

	stuck, err := repo.Enqueue(ctx, testJob(core.LevelCycle, "s-1", "c-1"))
	require.NoError(t, err)
	fresh, err := repo.Enqueue(ctx, testJob(core.LevelCycle, "s-1", "c-2"))
	require.NoError(t, err)

	require.NoError(t, repo.MarkProcessing(ctx, stuck))
	require.NoError(t, repo.MarkProcessing(ctx, fresh))

	// Age the stuck job's processing start.
	job, err := repo.GetJob(ctx, stuck)
	require.NoError(t, err)
	job.StartedAt = time.Now().UTC().Add(-2 * time.Hour)
	rewriteJob(t, backend, job)

	requeued, err := repo.RequeueStuck(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, requeued)

	jobs, err := repo.DequeuePending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, stuck, jobs[0].Id)

	job, err = repo.GetJob(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, core.StatusProcessing, job.Status, "recently started jobs stay processing")
}

func TestStatistics(t *testing.T) {
	repo, _ := newTestJobRepo(t)
	ctx := context.Background()

	a, err := repo.Enqueue(ctx, testJob(core.LevelCycle, "s-1", "c-1"))
	require.NoError(t, err)
	b, err := repo.Enqueue(ctx, testJob(core.LevelField, "s-1", "c-1"))
	require.NoError(t, err)
	_, err = repo.Enqueue(ctx, testJob(core.LevelSession, "s-1", "s-1"))
	require.NoError(t, err)

	require.NoError(t, repo.MarkProcessing(ctx, a))
	require.NoError(t, repo.MarkTerminal(ctx, a, core.StatusDone, ""))
	require.NoError(t, repo.MarkProcessing(ctx, b))

	stats, err := repo.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats[core.StatusPending])
	assert.Equal(t, 1, stats[core.StatusProcessing])
	assert.Equal(t, 1, stats[core.StatusDone])
	assert.Equal(t, 0, stats[core.StatusError])
}
