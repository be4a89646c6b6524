// Package cursor tracks the scan position for each chain.
//
// The cursor is the highest block already scanned (inclusive). It only moves
// forward after a full pass over a chain succeeded, so a failed pass is
// rescanned from the same start on the next cycle.
//
//	manager := cursor.NewManager(cursorRepo)
//
//	from, to, ok, _ := manager.Window(ctx, "ethereum", head, 1000)
//	if ok {
//	    // scan [from, to], resolve, persist ...
//	    manager.Advance(ctx, "ethereum", to)
//	}
//
// The manager also carries the in-memory pass state of each chain
// (idle, scanning, resolving, persisting) for status reporting.
package cursor

import (
	"github.com/vietddude/withdrawal-watcher/internal/core/domain"
	"github.com/vietddude/withdrawal-watcher/internal/infra/storage"
)

// Cursor is the scan position for a chain.
type Cursor = domain.Cursor

// ErrCursorNotFound is returned when a chain has never completed a pass.
var ErrCursorNotFound = storage.ErrCursorNotFound

// NewManager creates a new cursor manager with the given repository.
func NewManager(repo storage.CursorRepository) *DefaultManager {
	return &DefaultManager{
		repo:     repo,
		cache:    make(map[string]uint64),
		states:   make(map[string]State),
		trackers: make(map[string]*MetricsCollector),
	}
}

// NewMetricsCollector creates a new metrics collector with the given window size.
func NewMetricsCollector(windowSize int) *MetricsCollector {
	if windowSize <= 0 {
		windowSize = 100
	}
	return &MetricsCollector{
		windowSize:  windowSize,
		advances:    make([]advance, 0, windowSize),
		transitions: make([]Transition, 0, maxTransitions),
	}
}
