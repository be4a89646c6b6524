package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/withdrawal-watcher/internal/core/domain"
	"github.com/vietddude/withdrawal-watcher/internal/infra/storage"
)

// MemoryStorage keeps all watcher state in process memory. Nothing survives
// a restart; it backs tests and dry runs.
type MemoryStorage struct {
	cursors   map[string]*domain.Cursor
	processed []string
	known     map[string]struct{}
	events    map[string][]*domain.WithdrawalEvent
	mu        sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		cursors: make(map[string]*domain.Cursor),
		known:   make(map[string]struct{}),
		events:  make(map[string][]*domain.WithdrawalEvent),
	}
}

// NewStore returns a storage.Store backed by a fresh MemoryStorage.
func NewStore() *storage.Store {
	s := NewMemoryStorage()
	return &storage.Store{
		Cursors:   NewCursorRepo(s),
		Processed: NewProcessedRepo(s),
		Events:    NewEventRepo(s),
		Close:     func() error { return nil },
	}
}

// -----------------------------------------------------------------------------
// Cursor Repository
// -----------------------------------------------------------------------------

type CursorRepo struct {
	store *MemoryStorage
}

func NewCursorRepo(store *MemoryStorage) *CursorRepo {
	return &CursorRepo{store: store}
}

func (r *CursorRepo) Get(ctx context.Context, chainID string) (*domain.Cursor, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	c, ok := r.store.cursors[chainID]
	if !ok {
		return nil, storage.ErrCursorNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *CursorRepo) Save(ctx context.Context, cursor *domain.Cursor) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c := *cursor
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now()
	}
	r.store.cursors[cursor.ChainID] = &c
	return nil
}

func (r *CursorRepo) List(ctx context.Context) ([]*domain.Cursor, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*domain.Cursor, 0, len(r.store.cursors))
	for _, c := range r.store.cursors {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out, nil
}

// -----------------------------------------------------------------------------
// Processed Repository
// -----------------------------------------------------------------------------

type ProcessedRepo struct {
	store *MemoryStorage
}

func NewProcessedRepo(store *MemoryStorage) *ProcessedRepo {
	return &ProcessedRepo{store: store}
}

func (r *ProcessedRepo) Load(ctx context.Context) ([]string, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return append([]string(nil), r.store.processed...), nil
}

func (r *ProcessedRepo) Append(ctx context.Context, hashes []string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, h := range hashes {
		if _, ok := r.store.known[h]; ok {
			continue
		}
		r.store.known[h] = struct{}{}
		r.store.processed = append(r.store.processed, h)
	}
	return nil
}

func (r *ProcessedRepo) DeleteOldest(ctx context.Context, n int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	n = min(n, len(r.store.processed))
	for _, h := range r.store.processed[:n] {
		delete(r.store.known, h)
	}
	r.store.processed = append([]string(nil), r.store.processed[n:]...)
	return nil
}

// -----------------------------------------------------------------------------
// Event Repository
// -----------------------------------------------------------------------------

type EventRepo struct {
	store *MemoryStorage
}

func NewEventRepo(store *MemoryStorage) *EventRepo {
	return &EventRepo{store: store}
}

func (r *EventRepo) Load(ctx context.Context) (map[string][]*domain.WithdrawalEvent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make(map[string][]*domain.WithdrawalEvent, len(r.store.events))
	for chain, evs := range r.store.events {
		out[chain] = append([]*domain.WithdrawalEvent(nil), evs...)
	}
	return out, nil
}

func (r *EventRepo) Append(ctx context.Context, events []*domain.WithdrawalEvent) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, ev := range events {
		r.store.events[ev.Chain] = append(r.store.events[ev.Chain], ev)
	}
	return nil
}

func (r *EventRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	removed := 0
	for chain, evs := range r.store.events {
		kept := evs[:0]
		for _, ev := range evs {
			if ev.Timestamp.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, ev)
		}
		r.store.events[chain] = kept
	}
	return removed, nil
}
