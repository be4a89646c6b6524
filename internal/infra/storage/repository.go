package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/withdrawal-watcher/internal/core/domain"
)

var (
	// ErrNotFound is the root of every missing-record error
	ErrNotFound = errors.New("not found")

	// ErrCursorNotFound is returned when a cursor doesn't exist
	ErrCursorNotFound = fmt.Errorf("cursor %w", ErrNotFound)
)

// CursorRepository handles scan cursor storage
type CursorRepository interface {
	// Get retrieves the cursor for a chain
	Get(ctx context.Context, chainID string) (*domain.Cursor, error)

	// Save saves/updates the cursor
	Save(ctx context.Context, cursor *domain.Cursor) error

	// List returns every stored cursor
	List(ctx context.Context) ([]*domain.Cursor, error)
}

// ProcessedRepository persists the processed transaction hash set.
// Hashes are kept in insertion order; that order is the only eviction key.
type ProcessedRepository interface {
	// Load returns all hashes, oldest first
	Load(ctx context.Context) ([]string, error)

	// Append adds hashes after the newest entry. Known hashes are ignored.
	Append(ctx context.Context, hashes []string) error

	// DeleteOldest removes the n oldest hashes
	DeleteOldest(ctx context.Context, n int) error
}

// EventRepository persists the per-chain withdrawal event log
type EventRepository interface {
	// Load returns every stored event grouped by chain, in append order
	Load(ctx context.Context) (map[string][]*domain.WithdrawalEvent, error)

	// Append stores events after the existing ones of their chain
	Append(ctx context.Context, events []*domain.WithdrawalEvent) error

	// DeleteOlderThan removes events whose block time is before cutoff
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// Store bundles the repositories of one backend.
type Store struct {
	Cursors   CursorRepository
	Processed ProcessedRepository
	Events    EventRepository
	Close     func() error
}
