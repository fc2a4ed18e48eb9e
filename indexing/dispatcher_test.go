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
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/worklens/recall/ai/mock"
	"github.com/worklens/recall/core"
	"github.com/worklens/recall/storage"
	"github.com/worklens/recall/storage/badger"
)

func setupDispatcher(t *testing.T, embedder *mock.MockEmbedder, summarizer *mock.MockSummarizer) (*Dispatcher, storage.JobStore, storage.VectorStore) {
	t.Helper()

	jobStore, vectorStore, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() {
		jobStore.Close()
		backend.Close()
	})

	provider := mock.NewMockProviderWithServices(embedder, summarizer)
	dispatcher, err := NewDispatcher(jobStore, vectorStore, provider, WithConfig(&Config{
		ChunkSize:            4,
		MaxRetries:           1,
		RetryDelay:           time.Millisecond,
		MaxRequestsPerMinute: 1000,
	}))
	require.NoError(t, err)
	t.Cleanup(dispatcher.Release)

	return dispatcher, jobStore, vectorStore
}

func enqueueCycle(t *testing.T, jobs storage.JobStore, cycle *Cycle) []core.ID {
	t.Helper()

	enqueuer, err := NewEnqueuer(jobs)
	require.NoError(t, err)
	ids, err := enqueuer.EnqueueCycle(context.Background(), cycle)
	require.NoError(t, err)
	return ids
}

func TestDispatcher_DispatchPending(t *testing.T) {
	dispatcher, jobStore, vectorStore := setupDispatcher(t, mock.NewMockEmbedder(), mock.NewMockSummarizer())
	ctx := context.Background()

	ids := enqueueCycle(t, jobStore, &Cycle{
		ID:        "c1",
		SessionID: "s1",
		Goal:      "wire up the dispatcher",
		Hazards:   "flaky network",
	})
	require.Len(t, ids, 3)

	result, err := dispatcher.DispatchPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Processed)
	assert.Empty(t, result.Errors)

	// Every job reached done and produced a record under its composite key.
	for _, id := range ids {
		job, err := jobStore.GetJob(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, core.StatusDone, job.Status)

		record, err := vectorStore.Get(ctx, job.RecordKey())
		require.NoError(t, err)
		assert.Equal(t, job.Level, record.Level)
		assert.Equal(t, "s1", record.SessionID)
		assert.NotEmpty(t, record.Vector)
	}

	// The queue is drained.
	pending, err := jobStore.DequeuePending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDispatcher_PerItemFailureIsolation(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if text == "poison" {
			return nil, errors.New("provider exploded")
		}
		return []float32{0.6, 0.8}, nil
	}

	dispatcher, jobStore, vectorStore := setupDispatcher(t, embedder, mock.NewMockSummarizer())
	ctx := context.Background()

	enqueuer, err := NewEnqueuer(jobStore)
	require.NoError(t, err)
	_, err = enqueuer.EnqueueCycle(ctx, &Cycle{ID: "c1", SessionID: "s1", Goal: "poison"})
	require.NoError(t, err)
	_, err = enqueuer.EnqueueCycle(ctx, &Cycle{ID: "c2", SessionID: "s1", Goal: "fine"})
	require.NoError(t, err)

	pending, err := jobStore.DequeuePending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 4)

	result := dispatcher.RunBatch(ctx, pending)
	assert.Equal(t, 3, result.Processed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Reason, "provider exploded")

	// The failed job is terminal with its error captured; siblings are done.
	failed, err := jobStore.GetJob(ctx, result.Errors[0].JobID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusError, failed.Status)
	assert.Contains(t, failed.ErrorMessage, "provider exploded")

	count, err := vectorStore.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestDispatcher_SessionSummarization(t *testing.T) {
	t.Run("summary replaces the raw text", func(t *testing.T) {
		summarizer := mock.NewMockSummarizer()
		summarizer.SummarizeFunc = func(ctx context.Context, text string) (string, error) {
			return "a focused morning of parser work", nil
		}

		dispatcher, jobStore, vectorStore := setupDispatcher(t, mock.NewMockEmbedder(), summarizer)
		ctx := context.Background()

		enqueuer, err := NewEnqueuer(jobStore)
		require.NoError(t, err)
		_, err = enqueuer.EnqueueSession(ctx, &Session{ID: "s1", Intention: "parser work", CyclesPlanned: 2})
		require.NoError(t, err)

		result, err := dispatcher.DispatchPending(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, result.Errors)

		record, err := vectorStore.Get(ctx, "session:s1")
		require.NoError(t, err)
		assert.Equal(t, "a focused morning of parser work", record.Text)
	})

	t.Run("summarization failure falls back to raw text", func(t *testing.T) {
		summarizer := mock.NewMockSummarizer()
		summarizer.SummarizeFunc = func(ctx context.Context, text string) (string, error) {
			return "", errors.New("summary model offline")
		}

		dispatcher, jobStore, vectorStore := setupDispatcher(t, mock.NewMockEmbedder(), summarizer)
		ctx := context.Background()

		session := &Session{ID: "s2", Intention: "deep work", CyclesPlanned: 1}
		enqueuer, err := NewEnqueuer(jobStore)
		require.NoError(t, err)
		_, err = enqueuer.EnqueueSession(ctx, session)
		require.NoError(t, err)

		result, err := dispatcher.DispatchPending(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, result.Errors, "summarization failure must not fail the job")

		record, err := vectorStore.Get(ctx, "session:s2")
		require.NoError(t, err)
		assert.Equal(t, SessionText(session), record.Text)
	})
}

func TestDispatcher_ConcurrentMockCallCounts(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	summarizer := mock.NewMockSummarizer()
	dispatcher, jobStore, _ := setupDispatcher(t, embedder, summarizer)
	ctx := context.Background()

	// Two chunks of four; items within a chunk hit the mocks from
	// concurrent pool goroutines.
	enqueuer, err := NewEnqueuer(jobStore)
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		_, err := enqueuer.EnqueueSession(ctx, &Session{ID: fmt.Sprintf("s%d", i), CyclesPlanned: 1})
		require.NoError(t, err)
	}

	pending, err := jobStore.DequeuePending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 8)

	result := dispatcher.RunBatch(ctx, pending)
	assert.Equal(t, 8, result.Processed)
	assert.Empty(t, result.Errors)

	assert.Equal(t, 8, embedder.CallCount())
	assert.Equal(t, 8, summarizer.CallCount())
}

func TestDispatcher_ChunkSetupFailure(t *testing.T) {
	dispatcher, jobStore, vectorStore := setupDispatcher(t, mock.NewMockEmbedder(), mock.NewMockSummarizer())
	ctx := context.Background()

	ids := enqueueCycle(t, jobStore, &Cycle{ID: "c1", SessionID: "s1", Goal: "never submitted"})
	pending, err := jobStore.DequeuePending(ctx, 10)
	require.NoError(t, err)

	// A released pool rejects every Submit, so no item reaches its
	// goroutine and the whole chunk fails at setup.
	dispatcher.pool.Release()
	result := dispatcher.RunBatch(ctx, pending)
	assert.Zero(t, result.Processed)
	require.Len(t, result.Errors, len(ids))

	for _, id := range ids {
		job, err := jobStore.GetJob(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, core.StatusError, job.Status)
		assert.Contains(t, job.ErrorMessage, "chunk dispatch failed")
	}

	count, err := vectorStore.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDispatcher_CancellationLeavesJobRecoverable(t *testing.T) {
	jobStore, vectorStore, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() {
		jobStore.Close()
		backend.Close()
	})

	provider := mock.NewMockProviderWithServices(mock.NewMockEmbedder(), mock.NewMockSummarizer())
	dispatcher, err := NewDispatcher(jobStore, vectorStore, provider, WithConfig(&Config{
		ChunkSize:            4,
		MaxRetries:           1,
		RetryDelay:           time.Millisecond,
		MaxRequestsPerMinute: 1,
	}))
	require.NoError(t, err)
	t.Cleanup(dispatcher.Release)

	ids := enqueueCycle(t, jobStore, &Cycle{ID: "c1", SessionID: "s1", Goal: "interrupted mid-run"})
	require.Len(t, ids, 2)
	pending, err := jobStore.DequeuePending(context.Background(), 10)
	require.NoError(t, err)

	// With one slot per window and a dead context, exactly one item embeds;
	// the other is refused by the limiter.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := dispatcher.RunBatch(ctx, pending)
	assert.Equal(t, 1, result.Processed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Reason, "rate limiter")

	// The interrupted item keeps its processing status rather than going
	// terminal, so a later RequeueStuck pass can return it to the queue.
	interrupted, err := jobStore.GetJob(context.Background(), result.Errors[0].JobID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusProcessing, interrupted.Status)
	assert.Empty(t, interrupted.ErrorMessage)
}

func TestDispatcher_ReappendOverwrites(t *testing.T) {
	dispatcher, jobStore, vectorStore := setupDispatcher(t, mock.NewMockEmbedder(), mock.NewMockSummarizer())
	ctx := context.Background()

	// Re-creating a job for the same source gets a new id but the same
	// composite key; the second append overwrites rather than forking.
	cycle := &Cycle{ID: "c1", SessionID: "s1", Goal: "same source row"}
	enqueueCycle(t, jobStore, cycle)

	_, err := dispatcher.DispatchPending(ctx, 10)
	require.NoError(t, err)

	enqueueCycle(t, jobStore, cycle)
	_, err = dispatcher.DispatchPending(ctx, 10)
	require.NoError(t, err)

	count, err := vectorStore.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one record per composite key, not per job")
}

func TestDispatcher_Rebind(t *testing.T) {
	first := mock.NewMockEmbedder()
	dispatcher, jobStore, _ := setupDispatcher(t, first, mock.NewMockSummarizer())
	ctx := context.Background()

	second := mock.NewMockEmbedder()
	require.NoError(t, dispatcher.Rebind(mock.NewMockProviderWithServices(second, mock.NewMockSummarizer())))

	enqueueCycle(t, jobStore, &Cycle{ID: "c1", SessionID: "s1", Goal: "use the new provider"})
	result, err := dispatcher.DispatchPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, result.Errors)

	assert.Zero(t, first.CallCount(), "old provider must not be used after rebind")
	assert.Positive(t, second.CallCount())

	assert.ErrorIs(t, dispatcher.Rebind(nil), ErrAIProviderRequired)
}

func TestNewDispatcher_Validation(t *testing.T) {
	jobStore, vectorStore, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer func() {
		jobStore.Close()
		backend.Close()
	}()

	provider := mock.NewMockProvider()

	_, err = NewDispatcher(nil, vectorStore, provider)
	assert.ErrorIs(t, err, ErrJobStoreRequired)

	_, err = NewDispatcher(jobStore, nil, provider)
	assert.ErrorIs(t, err, ErrVectorStoreRequired)

	_, err = NewDispatcher(jobStore, vectorStore, nil)
	assert.ErrorIs(t, err, ErrAIProviderRequired)

	_, err = NewDispatcher(jobStore, vectorStore, provider, WithConfig(&Config{}))
	assert.ErrorIs(t, err, ErrInvalidChunkSize)
}
