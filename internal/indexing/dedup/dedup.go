// Package dedup holds the process-wide set of transaction hashes that were
// already turned into events.
package dedup

import (
	"context"
	"fmt"
	"sync"

	"github.com/vietddude/withdrawal-watcher/internal/indexing/metrics"
	"github.com/vietddude/withdrawal-watcher/internal/infra/storage"
)

// DefaultCap is the size above which the oldest half is evicted.
const DefaultCap = 10000

// ProcessedSet is an insertion-ordered hash set. It is safe for concurrent
// use. Eviction is by insertion order only; an evicted hash that resurfaces
// will be treated as new.
type ProcessedSet struct {
	repo storage.ProcessedRepository

	mu      sync.Mutex
	order   []string
	index   map[string]struct{}
	pending []string            // added since the last flush, in order
	pendSet map[string]struct{} // members of pending
	evicted int                 // persisted entries to delete on flush
}

// New creates an empty set backed by repo.
func New(repo storage.ProcessedRepository) *ProcessedSet {
	return &ProcessedSet{
		repo:    repo,
		index:   make(map[string]struct{}),
		pendSet: make(map[string]struct{}),
	}
}

// Load replaces the in-memory contents with the persisted set.
func (s *ProcessedSet) Load(ctx context.Context) error {
	hashes, err := s.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load processed set: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = s.order[:0]
	s.index = make(map[string]struct{}, len(hashes))
	s.pending = nil
	s.pendSet = make(map[string]struct{})
	s.evicted = 0
	for _, h := range hashes {
		if _, ok := s.index[h]; ok {
			continue
		}
		s.index[h] = struct{}{}
		s.order = append(s.order, h)
	}
	metrics.ProcessedSetSize.Set(float64(len(s.order)))
	return nil
}

// Contains reports whether hash was processed.
func (s *ProcessedSet) Contains(hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[hash]
	return ok
}

// Add records hash. Adding a known hash is a no-op.
func (s *ProcessedSet) Add(hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[hash]; ok {
		return
	}
	s.index[hash] = struct{}{}
	s.order = append(s.order, hash)
	s.pending = append(s.pending, hash)
	s.pendSet[hash] = struct{}{}
	metrics.ProcessedSetSize.Set(float64(len(s.order)))
}

// Len returns the number of hashes held.
func (s *ProcessedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Prune keeps the newest maxSize/2 hashes once the set grows past maxSize.
// It returns how many hashes were evicted.
func (s *ProcessedSet) Prune(maxSize int) int {
	if maxSize <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.order) <= maxSize {
		return 0
	}
	keep := maxSize / 2
	n := len(s.order) - keep

	dropPending := false
	for _, h := range s.order[:n] {
		delete(s.index, h)
		if _, ok := s.pendSet[h]; ok {
			delete(s.pendSet, h)
			dropPending = true
			continue
		}
		s.evicted++
	}
	if dropPending {
		kept := s.pending[:0]
		for _, h := range s.pending {
			if _, ok := s.pendSet[h]; ok {
				kept = append(kept, h)
			}
		}
		s.pending = kept
	}

	s.order = append([]string(nil), s.order[n:]...)
	metrics.ProcessedSetSize.Set(float64(len(s.order)))
	return n
}

// Flush writes evictions and additions since the last successful flush.
// On error the outstanding changes are kept for the next attempt.
func (s *ProcessedSet) Flush(ctx context.Context) error {
	s.mu.Lock()
	evicted := s.evicted
	pending := append([]string(nil), s.pending...)
	s.mu.Unlock()

	if evicted > 0 {
		if err := s.repo.DeleteOldest(ctx, evicted); err != nil {
			metrics.PersistErrorsTotal.WithLabelValues("processed").Inc()
			return fmt.Errorf("evict processed hashes: %w", err)
		}
		s.mu.Lock()
		s.evicted -= evicted
		s.mu.Unlock()
	}

	if len(pending) > 0 {
		if err := s.repo.Append(ctx, pending); err != nil {
			metrics.PersistErrorsTotal.WithLabelValues("processed").Inc()
			return fmt.Errorf("append processed hashes: %w", err)
		}
		s.mu.Lock()
		for _, h := range pending {
			delete(s.pendSet, h)
		}
		kept := s.pending[:0]
		for _, h := range s.pending {
			if _, ok := s.pendSet[h]; ok {
				kept = append(kept, h)
			}
		}
		s.pending = kept
		s.mu.Unlock()
	}
	return nil
}
