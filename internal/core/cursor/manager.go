package cursor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vietddude/withdrawal-watcher/internal/core/domain"
	"github.com/vietddude/withdrawal-watcher/internal/infra/storage"
)

// Manager handles cursor operations.
type Manager interface {
	// Get retrieves the current cursor for a chain.
	Get(ctx context.Context, chainID string) (*domain.Cursor, error)

	// Window returns the inclusive block range the next pass must scan.
	// ok is false when there is nothing new to scan.
	Window(ctx context.Context, chainID string, head, initialRange uint64) (from, to uint64, ok bool, err error)

	// Advance moves the cursor forward to block. Moves backwards are ignored.
	Advance(ctx context.Context, chainID string, block uint64) error

	// Reset sets the cursor to block regardless of its current value.
	Reset(ctx context.Context, chainID string, block uint64) error

	// List returns every stored cursor.
	List(ctx context.Context) ([]*domain.Cursor, error)

	// GetLag returns blocks behind the given chain tip.
	GetLag(ctx context.Context, chainID string, latestBlock uint64) (uint64, error)

	// SetState transitions the in-memory pass state (validates transition).
	SetState(chainID string, newState State, reason string) error

	// GetState returns the pass state of a chain.
	GetState(chainID string) State

	// GetMetrics returns performance metrics for a chain.
	GetMetrics(chainID string) Metrics

	// SetStateChangeCallback registers callback for state changes.
	SetStateChangeCallback(fn func(chainID string, t Transition))
}

// DefaultManager implements Manager. The last value handed to Advance is
// cached so a failed write does not rewind the next pass.
type DefaultManager struct {
	repo          storage.CursorRepository
	mu            sync.RWMutex
	cache         map[string]uint64
	states        map[string]State
	trackers      map[string]*MetricsCollector
	stateCallback func(string, Transition)
}

var _ Manager = (*DefaultManager)(nil)

// Get retrieves the current cursor for a chain.
func (m *DefaultManager) Get(ctx context.Context, chainID string) (*domain.Cursor, error) {
	m.mu.RLock()
	block, cached := m.cache[chainID]
	m.mu.RUnlock()

	c, err := m.repo.Get(ctx, chainID)
	if err != nil {
		if !cached {
			return nil, err
		}
		c = &domain.Cursor{ChainID: chainID, BlockNumber: block}
	}
	if cached && block > c.BlockNumber {
		c.BlockNumber = block
	}
	return c, nil
}

// Window computes the next scan range. A chain without a cursor starts
// initialRange blocks behind head (floored at 0). Otherwise the range starts
// right after the cursor. The end is always head.
func (m *DefaultManager) Window(
	ctx context.Context,
	chainID string,
	head, initialRange uint64,
) (uint64, uint64, bool, error) {
	c, err := m.Get(ctx, chainID)
	switch {
	case errors.Is(err, ErrCursorNotFound):
		var from uint64
		if head > initialRange {
			from = head - initialRange
		}
		return from, head, true, nil
	case err != nil:
		return 0, 0, false, fmt.Errorf("failed to get cursor: %w", err)
	}

	from := c.BlockNumber + 1
	if from > head {
		return from, head, false, nil
	}
	return from, head, true, nil
}

// Advance moves the cursor forward. The in-memory value moves even when the
// write fails; the error is returned for logging.
func (m *DefaultManager) Advance(ctx context.Context, chainID string, block uint64) error {
	prev, err := m.Get(ctx, chainID)
	hadCursor := err == nil
	if err != nil && !errors.Is(err, ErrCursorNotFound) {
		return fmt.Errorf("failed to get cursor: %w", err)
	}
	if hadCursor && block <= prev.BlockNumber {
		return nil
	}

	var from uint64
	if hadCursor {
		from = prev.BlockNumber
	}

	m.mu.Lock()
	m.cache[chainID] = block
	m.tracker(chainID).RecordAdvance(from, block, time.Now())
	m.mu.Unlock()

	if err := m.repo.Save(ctx, &domain.Cursor{ChainID: chainID, BlockNumber: block, UpdatedAt: time.Now().UTC()}); err != nil {
		return fmt.Errorf("failed to save cursor: %w", err)
	}
	return nil
}

// Reset overwrites the cursor, also backwards.
func (m *DefaultManager) Reset(ctx context.Context, chainID string, block uint64) error {
	if err := m.repo.Save(ctx, &domain.Cursor{ChainID: chainID, BlockNumber: block, UpdatedAt: time.Now().UTC()}); err != nil {
		return fmt.Errorf("failed to save cursor: %w", err)
	}
	m.mu.Lock()
	m.cache[chainID] = block
	if t, ok := m.trackers[chainID]; ok {
		t.Reset()
	}
	m.mu.Unlock()
	return nil
}

// List returns every stored cursor.
func (m *DefaultManager) List(ctx context.Context) ([]*domain.Cursor, error) {
	return m.repo.List(ctx)
}

// GetLag returns how many blocks behind the chain tip.
func (m *DefaultManager) GetLag(ctx context.Context, chainID string, latestBlock uint64) (uint64, error) {
	c, err := m.Get(ctx, chainID)
	if err != nil {
		return 0, fmt.Errorf("failed to get cursor: %w", err)
	}
	if latestBlock <= c.BlockNumber {
		return 0, nil
	}
	return latestBlock - c.BlockNumber, nil
}

// SetState transitions the pass state of a chain.
func (m *DefaultManager) SetState(chainID string, newState State, reason string) error {
	m.mu.Lock()
	current, ok := m.states[chainID]
	if !ok {
		current = StateIdle
	}
	if current == newState {
		m.mu.Unlock()
		return nil
	}
	if !CanTransition(current, newState) {
		m.mu.Unlock()
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, current, newState)
	}

	transition := NewTransition(current, newState, reason)
	m.states[chainID] = newState
	m.tracker(chainID).RecordTransition(transition)
	cb := m.stateCallback
	m.mu.Unlock()

	if cb != nil {
		cb(chainID, transition)
	}
	return nil
}

// GetState returns the pass state of a chain.
func (m *DefaultManager) GetState(chainID string) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.states[chainID]; ok {
		return s
	}
	return StateIdle
}

// GetMetrics returns performance metrics for a chain.
func (m *DefaultManager) GetMetrics(chainID string) Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if collector, ok := m.trackers[chainID]; ok {
		return collector.GetMetrics()
	}
	return Metrics{}
}

// SetStateChangeCallback registers a callback for state changes.
func (m *DefaultManager) SetStateChangeCallback(fn func(chainID string, t Transition)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateCallback = fn
}

// tracker returns the collector for chainID. Caller must hold m.mu.
func (m *DefaultManager) tracker(chainID string) *MetricsCollector {
	t, ok := m.trackers[chainID]
	if !ok {
		t = NewMetricsCollector(100)
		m.trackers[chainID] = t
	}
	return t
}
