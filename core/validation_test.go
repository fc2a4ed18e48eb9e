package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validFieldJob() *EmbedJob {
	return &EmbedJob{
		Level:       LevelField,
		SessionID:   "s-1",
		CycleID:     "c-1",
		SourceTable: "cycles",
		RowID:       "c-1",
		ColumnName:  "goal",
		FieldLabel:  "Goal",
		Text:        "finish the draft",
	}
}

func TestValidateJob(t *testing.T) {
	t.Run("valid field job", func(t *testing.T) {
		require.NoError(t, ValidateJob(validFieldJob()))
	})

	t.Run("nil job", func(t *testing.T) {
		err := ValidateJob(nil)
		assert.ErrorIs(t, err, ErrInvalidJob)
	})

	t.Run("unknown level", func(t *testing.T) {
		job := validFieldJob()
		job.Level = "paragraph"
		err := ValidateJob(job)
		assert.ErrorIs(t, err, ErrInvalidLevel)
	})

	t.Run("empty text", func(t *testing.T) {
		job := validFieldJob()
		job.Text = ""
		err := ValidateJob(job)
		assert.ErrorIs(t, err, ErrEmptyText)
	})

	t.Run("missing session", func(t *testing.T) {
		job := validFieldJob()
		job.SessionID = ""
		err := ValidateJob(job)
		assert.ErrorIs(t, err, ErrMissingSession)
	})

	t.Run("field job without column", func(t *testing.T) {
		job := validFieldJob()
		job.ColumnName = ""
		err := ValidateJob(job)
		assert.ErrorIs(t, err, ErrMissingColumn)
	})

	t.Run("field job without label", func(t *testing.T) {
		job := validFieldJob()
		job.FieldLabel = ""
		err := ValidateJob(job)
		assert.ErrorIs(t, err, ErrMissingColumn)
	})

	t.Run("session job needs no column", func(t *testing.T) {
		job := &EmbedJob{
			Level:       LevelSession,
			SessionID:   "s-1",
			SourceTable: "sessions",
			RowID:       "s-1",
			Text:        "SESSION ...",
		}
		require.NoError(t, ValidateJob(job))
	})
}

func TestValidateRecord(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		record := &EmbeddingRecord{
			Key:       "cycle:c-1",
			Level:     LevelCycle,
			SessionID: "s-1",
			Vector:    []float32{0.1, 0.2},
		}
		require.NoError(t, ValidateRecord(record))
	})

	t.Run("empty key", func(t *testing.T) {
		record := &EmbeddingRecord{Level: LevelCycle, Vector: []float32{0.1}}
		assert.ErrorIs(t, ValidateRecord(record), ErrInvalidRecord)
	})

	t.Run("empty vector", func(t *testing.T) {
		record := &EmbeddingRecord{Key: "cycle:c-1", Level: LevelCycle}
		assert.ErrorIs(t, ValidateRecord(record), ErrInvalidRecord)
	})
}

func TestValidateReadOnlyQuery(t *testing.T) {
	t.Run("allows plain select", func(t *testing.T) {
		require.NoError(t, ValidateReadOnlyQuery("SELECT * FROM sessions WHERE id = 1"))
	})

	t.Run("allows with-select", func(t *testing.T) {
		require.NoError(t, ValidateReadOnlyQuery(
			"WITH recent AS (SELECT * FROM cycles) SELECT goal FROM recent"))
	})

	t.Run("allows trailing semicolon", func(t *testing.T) {
		require.NoError(t, ValidateReadOnlyQuery("select 1;"))
	})

	t.Run("rejects empty", func(t *testing.T) {
		assert.ErrorIs(t, ValidateReadOnlyQuery("   "), ErrQueryNotReadOnly)
	})

	t.Run("rejects mutating statements", func(t *testing.T) {
		for _, q := range []string{
			"DELETE FROM sessions",
			"UPDATE cycles SET goal = 'x'",
			"INSERT INTO sessions VALUES (1)",
			"DROP TABLE cycles",
			"PRAGMA journal_mode = WAL",
		} {
			assert.ErrorIs(t, ValidateReadOnlyQuery(q), ErrQueryNotReadOnly, q)
		}
	})

	t.Run("rejects multiple statements", func(t *testing.T) {
		err := ValidateReadOnlyQuery("SELECT 1; DELETE FROM sessions")
		assert.ErrorIs(t, err, ErrQueryNotReadOnly)
	})

	t.Run("rejects mutating statement behind comment", func(t *testing.T) {
		err := ValidateReadOnlyQuery("-- harmless\nDELETE FROM sessions")
		assert.ErrorIs(t, err, ErrQueryNotReadOnly)
	})

	t.Run("rejects mutation hidden in with clause", func(t *testing.T) {
		err := ValidateReadOnlyQuery("WITH x AS (DELETE FROM sessions RETURNING *) SELECT * FROM x")
		assert.ErrorIs(t, err, ErrQueryNotReadOnly)
	})

	t.Run("does not flag keywords inside identifiers", func(t *testing.T) {
		require.NoError(t, ValidateReadOnlyQuery("SELECT updated_at FROM sessions"))
	})
}
