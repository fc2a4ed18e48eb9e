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

package core

import (
	"fmt"
	"strings"
)

// ValidateJob validates an EmbedJob according to domain rules.
//
// Validation rules:
//   - Level must be one of field, cycle, session
//   - Text must not be empty
//   - SessionID must not be empty
//   - Field-level jobs must carry a column name and a human-readable label
//
// NOT validated:
//   - ID (0 is valid before the store assigns one from its sequence)
//   - Status (the store initializes it to pending on enqueue)
func ValidateJob(job *EmbedJob) error {
	if job == nil {
		return fmt.Errorf("%w: job is nil", ErrInvalidJob)
	}

	if err := ValidateLevel(job.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}

	if job.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidJob, ErrEmptyText)
	}

	if job.SessionID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidJob, ErrMissingSession)
	}

	if job.Level == LevelField && (job.ColumnName == "" || job.FieldLabel == "") {
		return fmt.Errorf("%w: %w", ErrInvalidJob, ErrMissingColumn)
	}

	return nil
}

// ValidateRecord validates an EmbeddingRecord according to domain rules.
//
// Validation rules:
//   - Key must not be empty
//   - Level must be valid
//   - Vector must not be empty
func ValidateRecord(record *EmbeddingRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}

	if record.Key == "" {
		return fmt.Errorf("%w: key is empty", ErrInvalidRecord)
	}

	if err := ValidateLevel(record.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	if len(record.Vector) == 0 {
		return fmt.Errorf("%w: vector is empty", ErrInvalidRecord)
	}

	return nil
}

// ValidateLevel validates that a Level has a known value.
func ValidateLevel(level Level) error {
	switch level {
	case LevelField, LevelCycle, LevelSession:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidLevel, level)
}

// ValidateStatus validates that a JobStatus has a known value.
func ValidateStatus(status JobStatus) error {
	switch status {
	case StatusPending, StatusProcessing, StatusDone, StatusError:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
}

// mutatingKeywords are statement heads that are never allowed through the
// read-only gate, even inside a WITH clause.
var mutatingKeywords = []string{
	"insert", "update", "delete", "drop", "alter", "create",
	"replace", "truncate", "attach", "detach", "pragma", "vacuum",
	"reindex", "grant", "revoke",
}

// ValidateReadOnlyQuery checks that a caller-supplied SQL statement is a
// single read-only SELECT. Anything else is rejected before it can reach a
// store. Generated query text must pass this gate prior to execution.
func ValidateReadOnlyQuery(query string) error {
	stripped := stripSQLComments(query)
	trimmed := strings.TrimSpace(stripped)
	if trimmed == "" {
		return fmt.Errorf("%w: empty statement", ErrQueryNotReadOnly)
	}

	// A single trailing semicolon is fine; anything after it is a second statement.
	trimmed = strings.TrimSuffix(trimmed, ";")
	if strings.Contains(trimmed, ";") {
		return fmt.Errorf("%w: multiple statements", ErrQueryNotReadOnly)
	}

	lower := strings.ToLower(trimmed)
	if !strings.HasPrefix(lower, "select") && !strings.HasPrefix(lower, "with") {
		return fmt.Errorf("%w: statement must start with SELECT", ErrQueryNotReadOnly)
	}

	for _, keyword := range mutatingKeywords {
		if containsWord(lower, keyword) {
			return fmt.Errorf("%w: found %q", ErrQueryNotReadOnly, keyword)
		}
	}

	return nil
}

// stripSQLComments removes line comments so a mutating statement cannot hide
// behind a leading "-- comment" prefix.
func stripSQLComments(query string) string {
	lines := strings.Split(query, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if idx := strings.Index(line, "--"); idx >= 0 {
			line = line[:idx]
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// containsWord reports whether lower contains keyword as a whole word.
func containsWord(lower, keyword string) bool {
	idx := 0
	for {
		pos := strings.Index(lower[idx:], keyword)
		if pos < 0 {
			return false
		}
		pos += idx
		before := pos == 0 || !isWordByte(lower[pos-1])
		afterIdx := pos + len(keyword)
		after := afterIdx >= len(lower) || !isWordByte(lower[afterIdx])
		if before && after {
			return true
		}
		idx = pos + len(keyword)
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}
