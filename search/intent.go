package search

import (
	"strings"

	"github.com/worklens/recall/core"
)

// broadIntentTerms is the vocabulary signalling a broad or aggregate
// question. Matching is a case-insensitive substring check, so "overall"
// also matches "overalls"; false positives only flip the search order,
// never the result set.
var broadIntentTerms = []string{
	"overall",
	"trend",
	"summary",
	"aggregate",
	"pattern",
	"across",
	"general",
	"average",
	"how often",
	"how much",
}

// IsBroadIntent reports whether the intent text asks for a broad or
// aggregate answer rather than a specific one.
func IsBroadIntent(intent string) bool {
	lowered := strings.ToLower(intent)
	for _, term := range broadIntentTerms {
		if strings.Contains(lowered, term) {
			return true
		}
	}
	return false
}

// levelOrder picks the cascade order from the intent signal: coarse-first
// for broad questions, fine-first otherwise.
func levelOrder(intent string) []core.Level {
	if IsBroadIntent(intent) {
		return []core.Level{core.LevelSession, core.LevelCycle, core.LevelField}
	}
	return []core.Level{core.LevelField, core.LevelCycle, core.LevelSession}
}
