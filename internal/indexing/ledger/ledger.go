// Package ledger keeps the per-chain, append-ordered log of withdrawal
// events used for statistics.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/withdrawal-watcher/internal/core/domain"
	"github.com/vietddude/withdrawal-watcher/internal/indexing/metrics"
	"github.com/vietddude/withdrawal-watcher/internal/infra/storage"
)

// DefaultRetention is how long events are kept.
const DefaultRetention = 7 * 24 * time.Hour

// Ledger is safe for concurrent use. Within a chain, events keep the order
// in which they were appended.
type Ledger struct {
	repo storage.EventRepository

	mu      sync.RWMutex
	events  map[string][]*domain.WithdrawalEvent
	pending []*domain.WithdrawalEvent
	cutoff  time.Time // latest prune cutoff not yet applied to repo
}

// New creates an empty ledger backed by repo.
func New(repo storage.EventRepository) *Ledger {
	return &Ledger{
		repo:   repo,
		events: make(map[string][]*domain.WithdrawalEvent),
	}
}

// Load replaces the in-memory contents with the persisted events.
func (l *Ledger) Load(ctx context.Context) error {
	stored, err := l.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = stored
	if l.events == nil {
		l.events = make(map[string][]*domain.WithdrawalEvent)
	}
	l.pending = nil
	l.cutoff = time.Time{}
	for chain, evs := range l.events {
		metrics.LedgerEvents.WithLabelValues(chain).Set(float64(len(evs)))
	}
	return nil
}

// Append adds ev after the existing events of its chain.
func (l *Ledger) Append(ev *domain.WithdrawalEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events[ev.Chain] = append(l.events[ev.Chain], ev)
	l.pending = append(l.pending, ev)
	metrics.LedgerEvents.WithLabelValues(ev.Chain).Set(float64(len(l.events[ev.Chain])))
}

// EventsForChain returns a copy of the chain's events in append order.
func (l *Ledger) EventsForChain(chain string) []*domain.WithdrawalEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]*domain.WithdrawalEvent(nil), l.events[chain]...)
}

// Chains returns the chains that have events, sorted.
func (l *Ledger) Chains() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.events))
	for c, evs := range l.events {
		if len(evs) > 0 {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

// Counts returns the number of events per chain.
func (l *Ledger) Counts() map[string]int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]int, len(l.events))
	for c, evs := range l.events {
		out[c] = len(evs)
	}
	return out
}

// Prune drops events with a timestamp before now-horizon and returns how
// many were removed.
func (l *Ledger) Prune(now time.Time, horizon time.Duration) int {
	cutoff := now.Add(-horizon)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for chain, evs := range l.events {
		kept := make([]*domain.WithdrawalEvent, 0, len(evs))
		for _, ev := range evs {
			if ev.Timestamp.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, ev)
		}
		l.events[chain] = kept
		metrics.LedgerEvents.WithLabelValues(chain).Set(float64(len(kept)))
	}

	pending := l.pending[:0]
	for _, ev := range l.pending {
		if !ev.Timestamp.Before(cutoff) {
			pending = append(pending, ev)
		}
	}
	l.pending = pending

	if cutoff.After(l.cutoff) {
		l.cutoff = cutoff
	}
	return removed
}

// Flush persists appends and the last prune. On error the outstanding
// changes are kept for the next attempt.
func (l *Ledger) Flush(ctx context.Context) error {
	l.mu.Lock()
	pending := append([]*domain.WithdrawalEvent(nil), l.pending...)
	cutoff := l.cutoff
	l.mu.Unlock()

	if len(pending) > 0 {
		if err := l.repo.Append(ctx, pending); err != nil {
			metrics.PersistErrorsTotal.WithLabelValues("events").Inc()
			return fmt.Errorf("append events: %w", err)
		}
		flushed := make(map[*domain.WithdrawalEvent]struct{}, len(pending))
		for _, ev := range pending {
			flushed[ev] = struct{}{}
		}
		l.mu.Lock()
		kept := l.pending[:0]
		for _, ev := range l.pending {
			if _, ok := flushed[ev]; !ok {
				kept = append(kept, ev)
			}
		}
		l.pending = kept
		l.mu.Unlock()
	}

	if !cutoff.IsZero() {
		if _, err := l.repo.DeleteOlderThan(ctx, cutoff); err != nil {
			metrics.PersistErrorsTotal.WithLabelValues("events").Inc()
			return fmt.Errorf("prune events: %w", err)
		}
		l.mu.Lock()
		if l.cutoff.Equal(cutoff) {
			l.cutoff = time.Time{}
		}
		l.mu.Unlock()
	}
	return nil
}
