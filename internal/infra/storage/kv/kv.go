// Package kv is an embedded storage backend built on pebble. It needs no
// external service and is the default when no database URL is configured.
package kv

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/vietddude/withdrawal-watcher/internal/core/domain"
	"github.com/vietddude/withdrawal-watcher/internal/infra/storage"
)

// Key layout:
//
//	cursor/<chain>                  -> cursorValue JSON
//	processed/seq/<seq>             -> hash
//	processed/hash/<hash>           -> seq
//	event/<chain>/<seq>             -> storage.EventRecord JSON
//	meta/seq/processed, meta/seq/event -> last sequence number
const (
	cursorPrefix        = "cursor/"
	processedSeqPrefix  = "processed/seq/"
	processedHashPrefix = "processed/hash/"
	eventPrefix         = "event/"
	processedCounter    = "meta/seq/processed"
	eventCounter        = "meta/seq/event"
)

// DB is a pebble-backed storage.Store.
type DB struct {
	db *pebble.DB
	mu sync.Mutex // serialises sequence reservation
}

// Open opens (or creates) the database in dir.
func Open(dir string) (*DB, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", dir, err)
	}
	return &DB{db: db}, nil
}

// NewStore opens dir and exposes it as a storage.Store.
func NewStore(dir string) (*storage.Store, error) {
	db, err := Open(dir)
	if err != nil {
		return nil, err
	}
	return &storage.Store{
		Cursors:   &CursorRepo{db: db},
		Processed: &ProcessedRepo{db: db},
		Events:    &EventRepo{db: db},
		Close:     db.Close,
	}, nil
}

// Close flushes and closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) get(key []byte) ([]byte, error) {
	v, closer, err := d.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// nextSeq reserves n sequence numbers under counter and returns the first.
// Callers must hold d.mu until the batch is committed.
func (d *DB) nextSeq(b *pebble.Batch, counter string, n int) (uint64, error) {
	raw, err := d.get([]byte(counter))
	if err != nil {
		return 0, err
	}
	var last uint64
	if len(raw) == 8 {
		last = binary.BigEndian.Uint64(raw)
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, last+uint64(n))
	if err := b.Set([]byte(counter), buf, nil); err != nil {
		return 0, err
	}
	return last + 1, nil
}

// scan calls fn for every key under prefix in key order.
func (d *DB) scan(prefix string, fn func(key, value []byte) error) error {
	iter, err := d.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: prefixEnd([]byte(prefix)),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func seqKey(prefix string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefix, seq))
}

// =============================================================================
// CursorRepo
// =============================================================================

// CursorRepo implements storage.CursorRepository.
type CursorRepo struct {
	db *DB
}

type cursorValue struct {
	BlockNumber uint64    `json:"block_number"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (r *CursorRepo) Get(_ context.Context, chainID string) (*domain.Cursor, error) {
	raw, err := r.db.get([]byte(cursorPrefix + chainID))
	if err != nil {
		return nil, fmt.Errorf("failed to get cursor: %w", err)
	}
	if raw == nil {
		return nil, storage.ErrCursorNotFound
	}
	var v cursorValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("cursor %s: %w", chainID, err)
	}
	return &domain.Cursor{ChainID: chainID, BlockNumber: v.BlockNumber, UpdatedAt: v.UpdatedAt}, nil
}

func (r *CursorRepo) Save(_ context.Context, cursor *domain.Cursor) error {
	data, err := json.Marshal(cursorValue{BlockNumber: cursor.BlockNumber, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return r.db.db.Set([]byte(cursorPrefix+cursor.ChainID), data, pebble.Sync)
}

func (r *CursorRepo) List(_ context.Context) ([]*domain.Cursor, error) {
	var out []*domain.Cursor
	err := r.db.scan(cursorPrefix, func(key, value []byte) error {
		var v cursorValue
		if err := json.Unmarshal(value, &v); err != nil {
			return err
		}
		out = append(out, &domain.Cursor{
			ChainID:     string(key[len(cursorPrefix):]),
			BlockNumber: v.BlockNumber,
			UpdatedAt:   v.UpdatedAt,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list cursors: %w", err)
	}
	return out, nil
}

// =============================================================================
// ProcessedRepo
// =============================================================================

// ProcessedRepo implements storage.ProcessedRepository.
type ProcessedRepo struct {
	db *DB
}

func (r *ProcessedRepo) Load(_ context.Context) ([]string, error) {
	var hashes []string
	err := r.db.scan(processedSeqPrefix, func(_, value []byte) error {
		hashes = append(hashes, string(value))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load processed hashes: %w", err)
	}
	return hashes, nil
}

func (r *ProcessedRepo) Append(_ context.Context, hashes []string) error {
	fresh := make([]string, 0, len(hashes))
	seen := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		existing, err := r.db.get([]byte(processedHashPrefix + h))
		if err != nil {
			return err
		}
		if existing == nil {
			fresh = append(fresh, h)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	b := r.db.db.NewBatch()
	defer b.Close()

	first, err := r.db.nextSeq(b, processedCounter, len(fresh))
	if err != nil {
		return err
	}
	for i, h := range fresh {
		key := seqKey(processedSeqPrefix, first+uint64(i))
		if err := b.Set(key, []byte(h), nil); err != nil {
			return err
		}
		if err := b.Set([]byte(processedHashPrefix+h), key, nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

func (r *ProcessedRepo) DeleteOldest(_ context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	b := r.db.db.NewBatch()
	defer b.Close()

	removed := 0
	errStop := errors.New("stop")
	err := r.db.scan(processedSeqPrefix, func(key, value []byte) error {
		if removed == n {
			return errStop
		}
		if err := b.Delete(append([]byte(nil), key...), nil); err != nil {
			return err
		}
		if err := b.Delete([]byte(processedHashPrefix+string(value)), nil); err != nil {
			return err
		}
		removed++
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return fmt.Errorf("failed to evict processed hashes: %w", err)
	}
	return b.Commit(pebble.Sync)
}

// =============================================================================
// EventRepo
// =============================================================================

// EventRepo implements storage.EventRepository.
type EventRepo struct {
	db *DB
}

func eventKey(chain string, seq uint64) []byte {
	return seqKey(eventPrefix+chain+"/", seq)
}

// Load returns every event grouped by chain in append order. Records that
// fail to decode are logged and skipped.
func (r *EventRepo) Load(_ context.Context) (map[string][]*domain.WithdrawalEvent, error) {
	out := make(map[string][]*domain.WithdrawalEvent)
	err := r.db.scan(eventPrefix, func(key, value []byte) error {
		var rec storage.EventRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			slog.Warn("skipping undecodable event record", "key", string(key), "error", err)
			return nil
		}
		ev, err := rec.ToDomain()
		if err != nil {
			slog.Warn("skipping invalid event record", "key", string(key), "error", err)
			return nil
		}
		out[ev.Chain] = append(out[ev.Chain], ev)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	return out, nil
}

// Append stores events. A global sequence keeps per-chain key order equal to
// append order.
func (r *EventRepo) Append(_ context.Context, events []*domain.WithdrawalEvent) error {
	if len(events) == 0 {
		return nil
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	b := r.db.db.NewBatch()
	defer b.Close()

	first, err := r.db.nextSeq(b, eventCounter, len(events))
	if err != nil {
		return err
	}
	for i, ev := range events {
		data, err := json.Marshal(storage.ToRecord(ev))
		if err != nil {
			return fmt.Errorf("event %s: %w", ev.Hash, err)
		}
		if err := b.Set(eventKey(ev.Chain, first+uint64(i)), data, nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

func (r *EventRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	b := r.db.db.NewBatch()
	defer b.Close()

	var keys [][]byte
	err := r.db.scan(eventPrefix, func(key, value []byte) error {
		var rec storage.EventRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return err
		}
		if rec.Timestamp.Before(cutoff) {
			keys = append(keys, append([]byte(nil), key...))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	for _, k := range keys {
		if err := b.Delete(k, nil); err != nil {
			return 0, err
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return 0, err
	}
	return len(keys), nil
}
