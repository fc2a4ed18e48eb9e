package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/worklens/recall/core"
	"github.com/worklens/recall/storage"
)

// VectorRepository implements storage.VectorStore for BadgerDB.
//
// Records are keyed by their composite provenance key, so re-indexing a
// source overwrites the prior vector instead of accumulating duplicates.
// Queries scan all records and score them in memory; the index is small
// enough (one record per field/cycle/session) that a brute-force scan beats
// the bookkeeping of an ANN structure.
type VectorRepository struct {
	backend *Backend
}

var _ storage.VectorStore = (*VectorRepository)(nil)

// NewVectorRepository creates a new VectorRepository.
func NewVectorRepository(backend *Backend) *VectorRepository {
	return &VectorRepository{backend: backend}
}

// Close is a no-op; the backend owns the database handle.
func (r *VectorRepository) Close() error {
	return nil
}

// Append stores a record under its composite key, overwriting any prior
// record with the same key.
func (r *VectorRepository) Append(ctx context.Context, record *core.EmbeddingRecord) error {
	if err := core.ValidateRecord(record); err != nil {
		return err
	}

	record.Id = core.IDFromContent(record.Key)
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeEmbeddingKey(record.Key)
		if err := tx.Set(key, storage.MarshalEmbeddingRecord(record)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Query returns up to k records nearest to the given vector, filtered by
// level and session, ordered by similarity score descending.
func (r *VectorRepository) Query(ctx context.Context, vector []float32, filter storage.QueryFilter, k int) ([]*core.ScoredRecord, error) {
	if k <= 0 {
		return nil, storage.ErrInvalidLimit
	}

	var results []*core.ScoredRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(embeddingPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var record *core.EmbeddingRecord
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalEmbeddingRecord(val)
				return err
			}); err != nil {
				return err
			}
			if record == nil || len(record.Vector) == 0 {
				continue
			}

			if filter.Level != "" && record.Level != filter.Level {
				continue
			}
			if filter.SessionID != "" && record.SessionID != filter.SessionID {
				continue
			}

			// Cosine similarity (dot product for normalized vectors)
			results = append(results, &core.ScoredRecord{
				Record: record,
				Score:  dotProduct(vector, record.Vector),
			})
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}

	// Sort by similarity descending
	slices.SortFunc(results, func(a, b *core.ScoredRecord) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Get retrieves a single record by composite key.
func (r *VectorRepository) Get(ctx context.Context, key string) (*core.EmbeddingRecord, error) {
	var result *core.EmbeddingRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeEmbeddingKey(key))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			result, unmarshalErr = storage.UnmarshalEmbeddingRecord(val)
			return unmarshalErr
		})
	}, false)
	return result, err
}

// Count returns the number of stored records.
func (r *VectorRepository) Count(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(embeddingPrefix + ":")
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
