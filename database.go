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

package recall

import (
	"context"
	"log/slog"
	"time"

	"github.com/worklens/recall/ai"
	"github.com/worklens/recall/ai/openai"
	"github.com/worklens/recall/core"
	"github.com/worklens/recall/indexing"
	"github.com/worklens/recall/search"
	"github.com/worklens/recall/storage"
	"github.com/worklens/recall/storage/badger"
)

// Database is the embedding index: a durable job queue, a vector store and
// the orchestration around them. It owns the storage backend and the AI
// provider; callers interact only through its operations.
type Database struct {
	backend     *badger.Backend
	jobStore    storage.JobStore
	vectorStore storage.VectorStore
	provider    ai.Provider
	enqueuer    *indexing.Enqueuer
	dispatcher  *indexing.Dispatcher
	searcher    *search.Searcher
	logger      *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig       *ai.Config
	provider       ai.Provider
	dispatchConfig *indexing.Config
	inMemory       bool
}

// WithAIConfig sets the configuration used to build the OpenAI-compatible
// provider. Ignored when WithProvider is given.
func WithAIConfig(config *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = config
	}
}

// WithProvider injects a pre-built AI provider, e.g. a mock in tests.
func WithProvider(provider ai.Provider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithDispatchConfig sets the batch dispatch configuration.
func WithDispatchConfig(config *indexing.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.dispatchConfig = config
	}
}

// WithInMemory opens the storage backend in memory, for tests and demos.
func WithInMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// NewDatabase opens the index at filePath and wires up the enqueuer,
// dispatcher and searcher.
func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		aiConfig:       ai.DefaultConfig(),
		dispatchConfig: indexing.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	jobStore, err := badger.NewJobRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	vectorStore := badger.NewVectorRepository(backend)

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			jobStore.Close()
			backend.Close()
			return nil, err
		}
	}

	enqueuer, err := indexing.NewEnqueuer(jobStore)
	if err != nil {
		provider.Close()
		jobStore.Close()
		backend.Close()
		return nil, err
	}

	dispatcher, err := indexing.NewDispatcher(jobStore, vectorStore, provider,
		indexing.WithConfig(options.dispatchConfig))
	if err != nil {
		provider.Close()
		jobStore.Close()
		backend.Close()
		return nil, err
	}

	searcher, err := search.NewSearcher(vectorStore, provider)
	if err != nil {
		dispatcher.Release()
		provider.Close()
		jobStore.Close()
		backend.Close()
		return nil, err
	}

	return &Database{
		backend:     backend,
		jobStore:    jobStore,
		vectorStore: vectorStore,
		provider:    provider,
		enqueuer:    enqueuer,
		dispatcher:  dispatcher,
		searcher:    searcher,
		logger:      slog.Default(),
	}, nil
}

// EnqueueSession derives and persists the embed jobs for a session.
func (db *Database) EnqueueSession(ctx context.Context, session *indexing.Session) ([]core.ID, error) {
	return db.enqueuer.EnqueueSession(ctx, session)
}

// EnqueueCycle derives and persists the embed jobs for a cycle.
func (db *Database) EnqueueCycle(ctx context.Context, cycle *indexing.Cycle) ([]core.ID, error) {
	return db.enqueuer.EnqueueCycle(ctx, cycle)
}

// DispatchPending drains up to limit pending jobs through the batch
// pipeline with bounded retry.
func (db *Database) DispatchPending(ctx context.Context, limit int) (*indexing.BatchResult, error) {
	return db.dispatcher.DispatchPending(ctx, limit)
}

// Search runs a single filtered nearest-neighbor query.
func (db *Database) Search(ctx context.Context, query string, opts search.SearchOptions) ([]*core.ScoredRecord, error) {
	return db.searcher.Search(ctx, query, opts)
}

// CascadingSearch queries the index level by level in an intent-chosen
// order and returns the first level's de-duplicated hits.
func (db *Database) CascadingSearch(ctx context.Context, query, intent string, limit int) ([]*core.ScoredRecord, error) {
	return db.searcher.CascadingSearch(ctx, query, intent, limit)
}

// JobQueueStatistics returns job counts by status.
func (db *Database) JobQueueStatistics(ctx context.Context) (map[core.JobStatus]int, error) {
	return db.jobStore.Statistics(ctx)
}

// RetentionSweep deletes terminal jobs past their retention windows.
func (db *Database) RetentionSweep(ctx context.Context, doneOlderThan, errorOlderThan time.Duration) (doneRemoved, errorRemoved int, err error) {
	return db.jobStore.RetentionSweep(ctx, doneOlderThan, errorOlderThan)
}

// RequeueStuck resets jobs stuck in processing longer than olderThan back
// to pending. This is an explicit operator action, never automatic.
func (db *Database) RequeueStuck(ctx context.Context, olderThan time.Duration) (int, error) {
	return db.jobStore.RequeueStuck(ctx, olderThan)
}

// RebindProvider replaces the AI provider on the dispatcher and searcher,
// e.g. after a credential change, and closes the previous one.
func (db *Database) RebindProvider(provider ai.Provider) error {
	if err := db.dispatcher.Rebind(provider); err != nil {
		return err
	}
	if err := db.searcher.Rebind(provider); err != nil {
		return err
	}

	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing previous AI provider", "err", err)
	}
	db.provider = provider
	return nil
}

// ValidateReadOnlyQuery rejects SQL that is not a single read-only
// statement. The agent layer must call this gate before executing any
// generated query against the relational store.
func (db *Database) ValidateReadOnlyQuery(query string) error {
	return core.ValidateReadOnlyQuery(query)
}

// JobStore exposes the underlying job store.
func (db *Database) JobStore() storage.JobStore {
	return db.jobStore
}

// VectorStore exposes the underlying vector store.
func (db *Database) VectorStore() storage.VectorStore {
	return db.vectorStore
}

// Close releases the dispatcher pool, the AI provider and storage.
func (db *Database) Close() error {
	db.dispatcher.Release()

	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
	}

	if err := db.jobStore.Close(); err != nil {
		db.logger.Error("error closing job store", "err", err)
		return err
	}
	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}
