package search

import "github.com/worklens/recall/core"

// CascadeMonitor provides hooks to observe the cascading search process.
// Implement this interface to track intermediate steps and results.
type CascadeMonitor interface {
	Start(query string, order []core.Level)
	LevelQueried(level core.Level, hits []*core.ScoredRecord)
	LevelDeduped(level core.Level, kept []*core.ScoredRecord)
	Finish(results []*core.ScoredRecord)
}

// noopMonitor is a no-op implementation of CascadeMonitor
type noopMonitor struct{}

var _ CascadeMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ []core.Level) {}

func (n *noopMonitor) LevelQueried(_ core.Level, _ []*core.ScoredRecord) {}

func (n *noopMonitor) LevelDeduped(_ core.Level, _ []*core.ScoredRecord) {}

func (n *noopMonitor) Finish(_ []*core.ScoredRecord) {}
