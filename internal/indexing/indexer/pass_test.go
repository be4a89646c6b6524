package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/withdrawal-watcher/internal/core/cursor"
	"github.com/vietddude/withdrawal-watcher/internal/core/domain"
	"github.com/vietddude/withdrawal-watcher/internal/indexing/dedup"
	"github.com/vietddude/withdrawal-watcher/internal/indexing/ledger"
	"github.com/vietddude/withdrawal-watcher/internal/indexing/resolver"
	"github.com/vietddude/withdrawal-watcher/internal/infra/storage/memory"
)

type mockHead struct {
	height uint64
	err    error
}

func (m *mockHead) BlockNumber(ctx context.Context) (uint64, error) {
	return m.height, m.err
}

type scanCall struct{ from, to uint64 }

type mockScanner struct {
	hashes []string
	err    error
	calls  []scanCall
}

func (m *mockScanner) Scan(ctx context.Context, from, to uint64) ([]string, error) {
	m.calls = append(m.calls, scanCall{from, to})
	if m.err != nil {
		return nil, m.err
	}
	return m.hashes, nil
}

type mockResolver struct {
	chain  string
	failed map[string]bool
	errs   map[string]error
	delay  map[string]time.Duration

	mu    sync.Mutex
	calls int
}

func (m *mockResolver) Resolve(ctx context.Context, hash string) (*domain.WithdrawalEvent, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if d := m.delay[hash]; d > 0 {
		time.Sleep(d)
	}
	if err := m.errs[hash]; err != nil {
		return nil, err
	}
	return &domain.WithdrawalEvent{
		Hash:      hash,
		Chain:     m.chain,
		Status:    !m.failed[hash],
		Function:  domain.WithdrawFunction,
		Timestamp: time.Now().UTC(),
	}, nil
}

type mockDispatcher struct {
	mu   sync.Mutex
	sent []string
}

func (m *mockDispatcher) DispatchFailure(ctx context.Context, ev *domain.WithdrawalEvent) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, ev.Hash)
	return true
}

type fixture struct {
	cursor    *cursor.DefaultManager
	processed *dedup.ProcessedSet
	ledger    *ledger.Ledger
	alerts    *mockDispatcher
}

func newFixture() *fixture {
	store := memory.NewMemoryStorage()
	return &fixture{
		cursor:    cursor.NewManager(memory.NewCursorRepo(store)),
		processed: dedup.New(memory.NewProcessedRepo(store)),
		ledger:    ledger.New(memory.NewEventRepo(store)),
		alerts:    &mockDispatcher{},
	}
}

func (f *fixture) pass(chains ...Chain) *Pass {
	return NewPass(Config{
		Chains:       chains,
		Cursor:       f.cursor,
		Processed:    f.processed,
		Ledger:       f.ledger,
		Alerts:       f.alerts,
		InitialRange: 1000,
		ProcessedCap: 10000,
		Retention:    7 * 24 * time.Hour,
		Workers:      4,
		ChainTimeout: time.Minute,
	})
}

func TestPass_FirstRunAndIdempotence(t *testing.T) {
	f := newFixture()
	sc := &mockScanner{hashes: []string{"0xa", "0xb", "0xc"}}
	rs := &mockResolver{chain: "arbitrum", failed: map[string]bool{"0xb": true}}
	head := &mockHead{height: 5000}
	p := f.pass(Chain{ID: "arbitrum", Head: head, Scanner: sc, Resolver: rs})
	ctx := context.Background()

	sum := p.Run(ctx)
	res := sum.Chains[0]
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if sc.calls[0] != (scanCall{4000, 5000}) {
		t.Errorf("first run should scan [4000,5000], got %+v", sc.calls[0])
	}
	if res.New != 3 || res.Failures != 1 || res.Alerted != 1 {
		t.Errorf("unexpected result %+v", res)
	}
	c, err := f.cursor.Get(ctx, "arbitrum")
	if err != nil || c.BlockNumber != 5000 {
		t.Fatalf("expected cursor 5000, got %v (%v)", c, err)
	}
	if f.cursor.GetState("arbitrum") != cursor.StateIdle {
		t.Errorf("expected idle state after pass, got %s", f.cursor.GetState("arbitrum"))
	}

	// rescan an overlapping range: nothing is re-recorded or re-alerted
	if err := f.cursor.Reset(ctx, "arbitrum", 3999); err != nil {
		t.Fatal(err)
	}
	head.height = 5100
	sum = p.Run(ctx)
	if sum.Chains[0].New != 0 || sum.Chains[0].Candidates != 0 {
		t.Errorf("expected no new events on rescan, got %+v", sum.Chains[0])
	}
	if sc.calls[1] != (scanCall{4000, 5100}) {
		t.Errorf("expected scan from cursor+1, got %+v", sc.calls[1])
	}
	if got := len(f.ledger.EventsForChain("arbitrum")); got != 3 {
		t.Errorf("expected 3 events in ledger, got %d", got)
	}
	if len(f.alerts.sent) != 1 || f.alerts.sent[0] != "0xb" {
		t.Errorf("expected exactly one alert for 0xb, got %v", f.alerts.sent)
	}
}

func TestPass_UpToDate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.cursor.Reset(ctx, "base", 100)
	sc := &mockScanner{}
	p := f.pass(Chain{ID: "base", Head: &mockHead{height: 100}, Scanner: sc, Resolver: &mockResolver{}})

	res := p.Run(ctx).Chains[0]
	if res.Err != nil || res.Scanned {
		t.Errorf("expected no scan, got %+v", res)
	}
	if len(sc.calls) != 0 {
		t.Error("scanner must not be called when up to date")
	}
}

func TestPass_ScanErrorKeepsCursorAndContinues(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.cursor.Reset(ctx, "arbitrum", 100)
	f.cursor.Reset(ctx, "base", 100)

	bad := Chain{ID: "arbitrum", Head: &mockHead{height: 200}, Scanner: &mockScanner{err: errors.New("rate limited")}, Resolver: &mockResolver{}}
	good := Chain{ID: "base", Head: &mockHead{height: 200}, Scanner: &mockScanner{hashes: []string{"0x1"}}, Resolver: &mockResolver{chain: "base"}}
	sum := f.pass(bad, good).Run(ctx)

	if sum.Chains[0].Err == nil {
		t.Error("expected scan error for arbitrum")
	}
	if sum.Chains[1].Err != nil || sum.Chains[1].New != 1 {
		t.Errorf("base should still be processed, got %+v", sum.Chains[1])
	}
	c, _ := f.cursor.Get(ctx, "arbitrum")
	if c.BlockNumber != 100 {
		t.Errorf("cursor must not move after failed scan, got %d", c.BlockNumber)
	}
	c, _ = f.cursor.Get(ctx, "base")
	if c.BlockNumber != 200 {
		t.Errorf("expected base cursor 200, got %d", c.BlockNumber)
	}
}

func TestPass_TransientResolveErrorAbortsChain(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.cursor.Reset(ctx, "arbitrum", 100)
	rs := &mockResolver{chain: "arbitrum", errs: map[string]error{"0x2": errors.New("timeout")}}
	p := f.pass(Chain{ID: "arbitrum", Head: &mockHead{height: 200}, Scanner: &mockScanner{hashes: []string{"0x1", "0x2"}}, Resolver: rs})

	res := p.Run(ctx).Chains[0]
	if res.Err == nil {
		t.Fatal("expected resolve error")
	}
	if f.processed.Len() != 0 || len(f.ledger.EventsForChain("arbitrum")) != 0 {
		t.Error("nothing may be recorded when resolution fails")
	}
	c, _ := f.cursor.Get(ctx, "arbitrum")
	if c.BlockNumber != 100 {
		t.Errorf("cursor must stay at 100, got %d", c.BlockNumber)
	}
}

func TestPass_SkippedHashesNotMarked(t *testing.T) {
	f := newFixture()
	rs := &mockResolver{chain: "arbitrum", errs: map[string]error{
		"0x1": fmt.Errorf("0x1: %w", resolver.ErrNotTargetFunction),
		"0x2": resolver.ErrReceiptUnavailable,
	}}
	p := f.pass(Chain{ID: "arbitrum", Head: &mockHead{height: 50}, Scanner: &mockScanner{hashes: []string{"0x1", "0x2", "0x3"}}, Resolver: rs})

	res := p.Run(context.Background()).Chains[0]
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Skipped != 2 || res.New != 1 {
		t.Errorf("unexpected result %+v", res)
	}
	if f.processed.Contains("0x1") || f.processed.Contains("0x2") {
		t.Error("skipped hashes must not enter the processed set")
	}
	if !f.processed.Contains("0x3") {
		t.Error("resolved hash must be marked processed")
	}
}

func TestPass_PreservesCandidateOrder(t *testing.T) {
	f := newFixture()
	hashes := []string{"0x1", "0x2", "0x3", "0x4", "0x5", "0x6"}
	rs := &mockResolver{chain: "arbitrum", delay: map[string]time.Duration{
		"0x1": 30 * time.Millisecond,
		"0x2": 10 * time.Millisecond,
	}}
	p := f.pass(Chain{ID: "arbitrum", Head: &mockHead{height: 10}, Scanner: &mockScanner{hashes: hashes}, Resolver: rs})
	p.Run(context.Background())

	events := f.ledger.EventsForChain("arbitrum")
	if len(events) != len(hashes) {
		t.Fatalf("expected %d events, got %d", len(hashes), len(events))
	}
	for i, ev := range events {
		if ev.Hash != hashes[i] {
			t.Errorf("position %d: expected %s, got %s", i, hashes[i], ev.Hash)
		}
	}
}

func TestPass_CanceledBeforeStart(t *testing.T) {
	f := newFixture()
	sc := &mockScanner{hashes: []string{"0x1"}}
	p := f.pass(Chain{ID: "arbitrum", Head: &mockHead{height: 10}, Scanner: sc, Resolver: &mockResolver{}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum := p.Run(ctx)
	if !sum.Canceled || !errors.Is(sum.Chains[0].Err, ErrChainSkipped) {
		t.Errorf("expected skipped chain, got %+v", sum.Chains[0])
	}
	if len(sc.calls) != 0 {
		t.Error("no chain may start after cancellation")
	}
	if p.LastSummary() != sum {
		t.Error("expected LastSummary to return the pass")
	}
}

func TestPass_Status(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.cursor.Reset(ctx, "arbitrum", 90)
	p := f.pass(Chain{ID: "arbitrum", Head: &mockHead{height: 100}, Scanner: &mockScanner{}, Resolver: &mockResolver{}})

	st := p.Status(ctx)
	if len(st) != 1 {
		t.Fatalf("expected 1 status, got %d", len(st))
	}
	if st[0].CurrentBlock != 90 || st[0].LatestBlock != 100 || st[0].Lag != 10 {
		t.Errorf("unexpected status %+v", st[0])
	}
}
