package cursor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/withdrawal-watcher/internal/core/domain"
)

// =============================================================================
// Mock Repository
// =============================================================================

type mockCursorRepo struct {
	mu      sync.RWMutex
	cursors map[string]*domain.Cursor
	saveErr error
	saves   int
}

func newMockCursorRepo() *mockCursorRepo {
	return &mockCursorRepo{
		cursors: make(map[string]*domain.Cursor),
	}
}

func (r *mockCursorRepo) Get(ctx context.Context, chainID string) (*domain.Cursor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cursor, ok := r.cursors[chainID]
	if !ok {
		return nil, ErrCursorNotFound
	}
	// Return a copy
	c := *cursor
	return &c, nil
}

func (r *mockCursorRepo) Save(ctx context.Context, cursor *domain.Cursor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.saves++
	if r.saveErr != nil {
		return r.saveErr
	}
	c := *cursor
	c.UpdatedAt = time.Now()
	r.cursors[cursor.ChainID] = &c
	return nil
}

func (r *mockCursorRepo) List(ctx context.Context) ([]*domain.Cursor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Cursor, 0, len(r.cursors))
	for _, c := range r.cursors {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

// =============================================================================
// Window Tests
// =============================================================================

func TestManager_Window(t *testing.T) {
	tests := []struct {
		name         string
		cursor       *uint64
		head         uint64
		initialRange uint64
		wantFrom     uint64
		wantTo       uint64
		wantOK       bool
	}{
		{"first run", nil, 5000, 1000, 4000, 5000, true},
		{"first run floors at genesis", nil, 300, 1000, 0, 300, true},
		{"resume after cursor", ptr(4999), 5200, 1000, 5000, 5200, true},
		{"nothing new", ptr(5200), 5200, 1000, 5201, 5200, false},
		{"head behind cursor", ptr(5300), 5200, 1000, 5301, 5200, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockCursorRepo()
			if tt.cursor != nil {
				repo.cursors["ethereum"] = &domain.Cursor{ChainID: "ethereum", BlockNumber: *tt.cursor}
			}
			m := NewManager(repo)

			from, to, ok, err := m.Window(context.Background(), "ethereum", tt.head, tt.initialRange)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if from != tt.wantFrom || to != tt.wantTo || ok != tt.wantOK {
				t.Errorf("got (%d, %d, %v), want (%d, %d, %v)", from, to, ok, tt.wantFrom, tt.wantTo, tt.wantOK)
			}
		})
	}
}

func ptr(v uint64) *uint64 { return &v }

// =============================================================================
// Advance Tests
// =============================================================================

func TestManager_Advance(t *testing.T) {
	repo := newMockCursorRepo()
	m := NewManager(repo)
	ctx := context.Background()

	if _, err := m.Get(ctx, "ethereum"); !errors.Is(err, ErrCursorNotFound) {
		t.Fatalf("expected ErrCursorNotFound, got %v", err)
	}

	if err := m.Advance(ctx, "ethereum", 1000); err != nil {
		t.Fatalf("advance: %v", err)
	}
	c, err := m.Get(ctx, "ethereum")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if c.BlockNumber != 1000 {
		t.Errorf("expected 1000, got %d", c.BlockNumber)
	}

	// Backwards moves are ignored
	if err := m.Advance(ctx, "ethereum", 900); err != nil {
		t.Fatalf("advance: %v", err)
	}
	c, _ = m.Get(ctx, "ethereum")
	if c.BlockNumber != 1000 {
		t.Errorf("cursor regressed to %d", c.BlockNumber)
	}
	if repo.saves != 1 {
		t.Errorf("expected 1 save, got %d", repo.saves)
	}
}

func TestManager_Advance_SaveErrorKeepsMemory(t *testing.T) {
	repo := newMockCursorRepo()
	repo.cursors["ethereum"] = &domain.Cursor{ChainID: "ethereum", BlockNumber: 100}
	repo.saveErr = errors.New("disk full")
	m := NewManager(repo)
	ctx := context.Background()

	if err := m.Advance(ctx, "ethereum", 200); err == nil {
		t.Fatal("expected save error")
	}

	from, _, ok, err := m.Window(ctx, "ethereum", 300, 1000)
	if err != nil || !ok {
		t.Fatalf("window: ok=%v err=%v", ok, err)
	}
	if from != 201 {
		t.Errorf("expected next pass from 201, got %d", from)
	}
}

func TestManager_Reset(t *testing.T) {
	repo := newMockCursorRepo()
	m := NewManager(repo)
	ctx := context.Background()

	m.Advance(ctx, "ethereum", 5000)
	if err := m.Reset(ctx, "ethereum", 1000); err != nil {
		t.Fatalf("reset: %v", err)
	}
	c, _ := m.Get(ctx, "ethereum")
	if c.BlockNumber != 1000 {
		t.Errorf("expected 1000 after reset, got %d", c.BlockNumber)
	}
}

func TestManager_GetLag(t *testing.T) {
	repo := newMockCursorRepo()
	repo.cursors["ethereum"] = &domain.Cursor{ChainID: "ethereum", BlockNumber: 900}
	m := NewManager(repo)

	lag, err := m.GetLag(context.Background(), "ethereum", 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lag != 100 {
		t.Errorf("expected lag 100, got %d", lag)
	}
	lag, _ = m.GetLag(context.Background(), "ethereum", 800)
	if lag != 0 {
		t.Errorf("expected lag 0 when head is behind, got %d", lag)
	}
}

// =============================================================================
// State Tests
// =============================================================================

func TestManager_StateTransitions(t *testing.T) {
	m := NewManager(newMockCursorRepo())

	var seen []Transition
	m.SetStateChangeCallback(func(chainID string, tr Transition) {
		seen = append(seen, tr)
	})

	steps := []State{StateScanning, StateResolving, StatePersisting, StateIdle}
	for _, s := range steps {
		if err := m.SetState("ethereum", s, "pass"); err != nil {
			t.Fatalf("transition to %s: %v", s, err)
		}
	}
	if len(seen) != len(steps) {
		t.Errorf("expected %d callbacks, got %d", len(steps), len(seen))
	}

	if err := m.SetState("ethereum", StatePersisting, "skip"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}

	// Abort from the middle of a pass
	m.SetState("ethereum", StateScanning, "pass")
	if err := m.SetState("ethereum", StateIdle, "rpc error"); err != nil {
		t.Errorf("abort to idle: %v", err)
	}
	if got := m.GetState("ethereum"); got != StateIdle {
		t.Errorf("expected idle, got %s", got)
	}
	if hist := m.GetMetrics("ethereum").StateHistory; len(hist) != 6 {
		t.Errorf("expected 6 transitions in history, got %d", len(hist))
	}
}

func TestMetricsCollector_BlocksPerSecond(t *testing.T) {
	mc := NewMetricsCollector(10)
	base := time.Unix(1700000000, 0)
	mc.RecordAdvance(0, 1000, base)
	mc.RecordAdvance(1000, 1600, base.Add(60*time.Second))

	got := mc.GetMetrics()
	if got.BlocksPerSecond != 10 {
		t.Errorf("expected 10 blocks/s, got %f", got.BlocksPerSecond)
	}
	if got.LastAdvanceAt == nil || !got.LastAdvanceAt.Equal(base.Add(60*time.Second)) {
		t.Errorf("unexpected last advance %v", got.LastAdvanceAt)
	}
	if got.Passes != 2 || got.BlocksScanned != 1600 {
		t.Errorf("expected 2 passes over 1600 blocks, got %d over %d", got.Passes, got.BlocksScanned)
	}
	if got.LastRange != [2]uint64{1000, 1600} {
		t.Errorf("unexpected last range %v", got.LastRange)
	}

	mc.Reset()
	if got := mc.GetMetrics(); got.Passes != 0 || got.LastAdvanceAt != nil {
		t.Errorf("expected empty metrics after reset, got %+v", got)
	}
}
