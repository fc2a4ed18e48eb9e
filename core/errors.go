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

import "errors"

// Domain validation errors
var (
	// ErrInvalidJob indicates an EmbedJob failed validation.
	ErrInvalidJob = errors.New("invalid embed job")

	// ErrInvalidRecord indicates an EmbeddingRecord failed validation.
	ErrInvalidRecord = errors.New("invalid embedding record")

	// ErrInvalidLevel indicates an unknown granularity level.
	ErrInvalidLevel = errors.New("invalid level")

	// ErrInvalidStatus indicates an unknown job status value.
	ErrInvalidStatus = errors.New("invalid job status")

	// ErrEmptyText indicates the Text field is empty.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrMissingSession indicates the SessionID field is empty.
	ErrMissingSession = errors.New("session id cannot be empty")

	// ErrMissingColumn indicates a field-level job lacks a column name or label.
	ErrMissingColumn = errors.New("field jobs require a column name and label")

	// ErrQueryNotReadOnly indicates a generated SQL statement is not a single SELECT.
	ErrQueryNotReadOnly = errors.New("query must be a single read-only SELECT statement")
)
