package core

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// Job IDs come from database sequences; record IDs are content-derived.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs, which gives
// embedding records stable identity across re-indexing runs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Level is the granularity tier of an embedded text.
type Level string

const (
	// LevelField embeds a single textual column of a business record.
	LevelField Level = "field"
	// LevelCycle embeds the combined plan/review text of one work cycle.
	LevelCycle Level = "cycle"
	// LevelSession embeds a summarized serialization of a whole work session.
	LevelSession Level = "session"
)

// JobStatus is the lifecycle state of an EmbedJob.
// Transitions are forward-only: pending -> processing -> {done, error}.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusDone       JobStatus = "done"
	StatusError      JobStatus = "error"
)

// EmbedJob is a unit of pending indexing work.
type EmbedJob struct {
	Id           ID
	Level        Level
	SessionID    string
	CycleID      string // set for field/cycle jobs owned by a cycle, empty otherwise
	SourceTable  string
	RowID        string
	ColumnName   string // field-level jobs only
	FieldLabel   string // field-level jobs only
	Text         string
	Status       JobStatus
	ErrorMessage string // set iff Status == StatusError
	Version      int    // schema/content version, currently always 1
	CreatedAt    time.Time
	StartedAt    time.Time // set on the pending -> processing transition
	ProcessedAt  time.Time // set on the terminal transition
}

// RecordKey derives the composite vector-store key for the job's output.
// The key is stable for a given source, so re-embedding the same source
// overwrites the prior record instead of forking state.
func (j *EmbedJob) RecordKey() string {
	switch j.Level {
	case LevelField:
		return fmt.Sprintf("field:%s:%s", j.RowID, j.ColumnName)
	case LevelCycle:
		return fmt.Sprintf("cycle:%s", j.RowID)
	default:
		return fmt.Sprintf("session:%s", j.SessionID)
	}
}

// EmbeddingRecord is a stored vector with provenance, keyed by the composite
// key derived from its originating job.
type EmbeddingRecord struct {
	Id         ID // content-derived from Key
	Key        string
	Level      Level
	SessionID  string
	CycleID    string // empty for session-level records
	Column     string // field-level records only
	FieldLabel string // field-level records only
	Vector     []float32
	Text       string // the exact text that was embedded (post-summarization for sessions)
	Version    int
	CreatedAt  time.Time
}

// ScoredRecord is an embedding record paired with its similarity score.
type ScoredRecord struct {
	Record *EmbeddingRecord
	Score  float32
}
