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

package search

import (
	"context"
	"log/slog"
	"sync"

	"github.com/worklens/recall/ai"
	"github.com/worklens/recall/core"
	"github.com/worklens/recall/storage"
)

// DefaultLimit is the per-level top-k used when the caller passes no limit.
const DefaultLimit = 8

// Searcher answers natural-language queries over the embedding index.
type Searcher struct {
	vectors storage.VectorStore
	logger  *slog.Logger

	mu       sync.RWMutex
	embedder ai.Embedder
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSearcher creates a new searcher over the given vector store.
func NewSearcher(vectors storage.VectorStore, provider ai.Provider, opts ...Option) (*Searcher, error) {
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := &Searcher{
		vectors:  vectors,
		embedder: provider.Embedder(),
		logger:   slog.Default().With("component", "searcher"),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Rebind replaces the AI provider for subsequent queries.
func (s *Searcher) Rebind(provider ai.Provider) error {
	if provider == nil {
		return ErrAIProviderRequired
	}

	s.mu.Lock()
	s.embedder = provider.Embedder()
	s.mu.Unlock()
	return nil
}

func (s *Searcher) currentEmbedder() ai.Embedder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embedder
}

// SearchOptions narrows a single-level search.
// Zero values mean "no filter" and the default limit.
type SearchOptions struct {
	Level     core.Level
	SessionID string
	Limit     int
}

// Search runs a single filtered nearest-neighbor query without cascading or
// deduplication, for callers that already know the desired granularity.
func (s *Searcher) Search(ctx context.Context, query string, opts SearchOptions) ([]*core.ScoredRecord, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	vector, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	return s.vectors.Query(ctx, vector, storage.QueryFilter{
		Level:     opts.Level,
		SessionID: opts.SessionID,
	}, limit)
}

// CascadingSearch queries the index level by level in an intent-chosen
// order and returns the first level's de-duplicated hits.
//
// The query is embedded once. Broad intents search coarse-first (session,
// cycle, field); specific intents search fine-first. Within the first level
// that yields hits, results are collapsed to one record per parent entity,
// keeping the highest-ranked representative. A level whose hits all collapse
// away falls through to the next. Levels are never merged: granularities
// have incomparable similarity scales.
func (s *Searcher) CascadingSearch(ctx context.Context, query, intent string, limit int) ([]*core.ScoredRecord, error) {
	return s.CascadingSearchWithMonitor(ctx, query, intent, limit, nil)
}

// CascadingSearchWithMonitor runs CascadingSearch with observation hooks.
func (s *Searcher) CascadingSearchWithMonitor(ctx context.Context, query, intent string, limit int, monitor CascadeMonitor) ([]*core.ScoredRecord, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	order := levelOrder(intent)
	monitor.Start(query, order)

	vector, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	for _, level := range order {
		hits, err := s.vectors.Query(ctx, vector, storage.QueryFilter{Level: level}, limit)
		if err != nil {
			s.logger.Error("level query failed", "level", level, "err", err)
			return nil, err
		}
		monitor.LevelQueried(level, hits)

		if len(hits) == 0 {
			continue
		}

		deduped := dedupeByParent(level, hits)
		monitor.LevelDeduped(level, deduped)

		if len(deduped) > 0 {
			s.logger.Debug("cascade resolved",
				"level", level, "hits", len(hits), "kept", len(deduped))
			monitor.Finish(deduped)
			return deduped, nil
		}
	}

	monitor.Finish(nil)
	return []*core.ScoredRecord{}, nil
}

func (s *Searcher) embedQuery(ctx context.Context, query string) ([]float32, error) {
	vector, err := s.currentEmbedder().EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "err", err)
		return nil, err
	}
	return core.NormalizeVector(vector), nil
}

// dedupeByParent keeps the first (highest-ranked) record per parent entity,
// preserving rank order. Session-level records group by session id, all
// others by owning cycle id; a record with no owning cycle stands alone
// under its own key.
func dedupeByParent(level core.Level, hits []*core.ScoredRecord) []*core.ScoredRecord {
	seen := make(map[string]struct{}, len(hits))
	kept := make([]*core.ScoredRecord, 0, len(hits))

	for _, hit := range hits {
		key := parentKey(level, hit.Record)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, hit)
	}
	return kept
}

func parentKey(level core.Level, record *core.EmbeddingRecord) string {
	if level == core.LevelSession {
		return "s:" + record.SessionID
	}
	if record.CycleID != "" {
		return "c:" + record.CycleID
	}
	return "k:" + record.Key
}
