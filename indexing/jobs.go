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
	"fmt"
	"strings"

	"github.com/worklens/recall/core"
)

// cycleTextDelimiter joins the plan and review segments of a cycle text.
const cycleTextDelimiter = " || "

// Cycle is the business record for one focused work cycle.
// Plan fields are filled in before the cycle starts, review fields after.
type Cycle struct {
	ID        string
	SessionID string

	// Plan
	Goal      string
	FirstStep string
	Hazards   string
	Energy    string // label, e.g. "High"
	Morale    string // label, e.g. "Low"

	// Review
	Status       string // e.g. "hit target", "missed target"
	Noteworthy   string
	Distractions string
	Improvement  string
}

// Session is the business record for a whole work session.
type Session struct {
	ID        string
	Intention string
	Review    string

	CyclesPlanned   int
	CyclesCompleted int
	MinutesWorked   int
}

// columnValue maps a registry column name to the cycle's raw value.
func (c *Cycle) columnValue(name string) string {
	switch name {
	case "goal":
		return c.Goal
	case "first_step":
		return c.FirstStep
	case "hazards":
		return c.Hazards
	case "noteworthy":
		return c.Noteworthy
	case "distractions":
		return c.Distractions
	case "improvement":
		return c.Improvement
	}
	return ""
}

// columnValue maps a registry column name to the session's raw value.
func (s *Session) columnValue(name string) string {
	switch name {
	case "intention":
		return s.Intention
	case "review":
		return s.Review
	}
	return ""
}

// CycleJobs derives the embed jobs for one cycle: a field-level job per
// non-empty embeddable column, plus a single cycle-level job carrying the
// combined plan/review text. Returns nil if the cycle has no text at all.
//
// Pure function of the record; callers pass the result to an Enqueuer.
func CycleJobs(c *Cycle) []*core.EmbedJob {
	var jobs []*core.EmbedJob

	for _, col := range EmbeddableColumns(TableCycles) {
		value := strings.TrimSpace(c.columnValue(col.Name))
		if value == "" {
			continue
		}
		jobs = append(jobs, &core.EmbedJob{
			Level:       core.LevelField,
			SessionID:   c.SessionID,
			CycleID:     c.ID,
			SourceTable: TableCycles,
			RowID:       c.ID,
			ColumnName:  col.Name,
			FieldLabel:  col.Label,
			Text:        value,
		})
	}

	if text := CycleText(c); text != "" {
		jobs = append(jobs, &core.EmbedJob{
			Level:       core.LevelCycle,
			SessionID:   c.SessionID,
			CycleID:     c.ID,
			SourceTable: TableCycles,
			RowID:       c.ID,
			Text:        text,
		})
	}

	return jobs
}

// SessionJobs derives the embed jobs for one session: a field-level job per
// non-empty embeddable column, plus a single session-level job carrying the
// structured serialization. The session text is summarized before embedding,
// not embedded directly.
func SessionJobs(s *Session) []*core.EmbedJob {
	var jobs []*core.EmbedJob

	for _, col := range EmbeddableColumns(TableSessions) {
		value := strings.TrimSpace(s.columnValue(col.Name))
		if value == "" {
			continue
		}
		jobs = append(jobs, &core.EmbedJob{
			Level:       core.LevelField,
			SessionID:   s.ID,
			SourceTable: TableSessions,
			RowID:       s.ID,
			ColumnName:  col.Name,
			FieldLabel:  col.Label,
			Text:        value,
		})
	}

	jobs = append(jobs, &core.EmbedJob{
		Level:       core.LevelSession,
		SessionID:   s.ID,
		SourceTable: TableSessions,
		RowID:       s.ID,
		Text:        SessionText(s),
	})

	return jobs
}

// CycleText renders a cycle as "START: <plan> || END: <review>".
// Empty fields are omitted rather than rendered as empty labels; a segment
// with no content is dropped entirely, and a cycle with neither plan nor
// review text yields "".
func CycleText(c *Cycle) string {
	var plan []string
	if c.Goal != "" {
		plan = append(plan, c.Goal)
	}
	if c.FirstStep != "" {
		plan = append(plan, "First step: "+c.FirstStep)
	}
	if c.Hazards != "" {
		plan = append(plan, "Hazards: "+c.Hazards)
	}
	if c.Energy != "" {
		plan = append(plan, "Energy: "+c.Energy)
	}
	if c.Morale != "" {
		plan = append(plan, "Morale: "+c.Morale)
	}

	var review []string
	if c.Status != "" {
		review = append(review, "Status: "+c.Status)
	}
	if c.Noteworthy != "" {
		review = append(review, "Noteworthy: "+c.Noteworthy)
	}
	if c.Distractions != "" {
		review = append(review, "Distractions: "+c.Distractions)
	}
	if c.Improvement != "" {
		review = append(review, "Improvement: "+c.Improvement)
	}

	var segments []string
	if len(plan) > 0 {
		segments = append(segments, "START: "+strings.Join(plan, "; "))
	}
	if len(review) > 0 {
		segments = append(segments, "END: "+strings.Join(review, "; "))
	}

	return strings.Join(segments, cycleTextDelimiter)
}

// SessionText renders a session's planning and review fields plus its
// summary statistics as a structured multi-line blob for summarization.
func SessionText(s *Session) string {
	var lines []string
	if s.Intention != "" {
		lines = append(lines, "Session intention: "+s.Intention)
	}
	if s.Review != "" {
		lines = append(lines, "Session review: "+s.Review)
	}
	lines = append(lines,
		fmt.Sprintf("Cycles planned: %d", s.CyclesPlanned),
		fmt.Sprintf("Cycles completed: %d", s.CyclesCompleted),
		fmt.Sprintf("Minutes worked: %d", s.MinutesWorked),
	)
	return strings.Join(lines, "\n")
}
