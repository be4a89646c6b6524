package scanner

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/vietddude/withdrawal-watcher/internal/infra/chain"
)

type mockLogSource struct {
	calls  []Range
	logs   map[uint64][]chain.Log // keyed by sub-range start
	failAt uint64
}

func (m *mockLogSource) Logs(ctx context.Context, address string, from, to uint64) ([]chain.Log, error) {
	m.calls = append(m.calls, Range{From: from, To: to})
	if m.failAt != 0 && from == m.failAt {
		return nil, errors.New("503 service unavailable")
	}
	return m.logs[from], nil
}

func TestRanges(t *testing.T) {
	tests := []struct {
		name     string
		from, to uint64
		max      uint64
		want     []Range
	}{
		{"three chunks", 100, 1199, 500, []Range{{100, 599}, {600, 1099}, {1100, 1199}}},
		{"single block", 7, 7, 500, []Range{{7, 7}}},
		{"exact multiple", 0, 999, 500, []Range{{0, 499}, {500, 999}}},
		{"empty when from > to", 10, 9, 500, nil},
		{"max one", 1, 3, 1, []Range{{1, 1}, {2, 2}, {3, 3}}},
		{"near uint64 max", ^uint64(0) - 1, ^uint64(0), 500, []Range{{^uint64(0) - 1, ^uint64(0)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Ranges(tt.from, tt.to, tt.max)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Ranges(%d, %d, %d) = %v, want %v", tt.from, tt.to, tt.max, got, tt.want)
			}
		})
	}
}

func TestScan_ChunksAndDedups(t *testing.T) {
	src := &mockLogSource{logs: map[uint64][]chain.Log{
		100:  {{TxHash: "0xa"}, {TxHash: "0xb"}, {TxHash: "0xa"}},
		600:  {{TxHash: "0xc"}, {TxHash: "0xb"}},
		1100: {{TxHash: "0xd", Removed: true}, {TxHash: "0xe"}},
	}}
	s := New("ethereum", src, "0xcontract", 500)

	got, err := s.Scan(context.Background(), 100, 1199)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantCalls := []Range{{100, 599}, {600, 1099}, {1100, 1199}}
	if !reflect.DeepEqual(src.calls, wantCalls) {
		t.Errorf("calls = %v, want %v", src.calls, wantCalls)
	}
	want := []string{"0xa", "0xb", "0xc", "0xe"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("hashes = %v, want %v", got, want)
	}
}

func TestScan_EmptyRange(t *testing.T) {
	src := &mockLogSource{}
	s := New("ethereum", src, "0xcontract", 500)

	got, err := s.Scan(context.Background(), 501, 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 || len(src.calls) != 0 {
		t.Errorf("expected no work, got %v after %d calls", got, len(src.calls))
	}
}

func TestScan_SubRangeFailureAborts(t *testing.T) {
	src := &mockLogSource{
		logs:   map[uint64][]chain.Log{100: {{TxHash: "0xa"}}},
		failAt: 600,
	}
	s := New("ethereum", src, "0xcontract", 500)

	got, err := s.Scan(context.Background(), 100, 1199)
	if err == nil {
		t.Fatal("expected error")
	}
	if got != nil {
		t.Errorf("partial results must be discarded, got %v", got)
	}
	if len(src.calls) != 2 {
		t.Errorf("expected scan to stop after failing call, got %d calls", len(src.calls))
	}
}
