package health

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vietddude/withdrawal-watcher/internal/core/cursor"
	"github.com/vietddude/withdrawal-watcher/internal/core/domain"
	"github.com/vietddude/withdrawal-watcher/internal/indexing/indexer"
	"github.com/vietddude/withdrawal-watcher/internal/indexing/stats"
	"github.com/vietddude/withdrawal-watcher/internal/infra/storage/memory"
)

// =============================================================================
// Mocks
// =============================================================================

type mockFetcher struct {
	height uint64
	err    error
}

func (m *mockFetcher) BlockNumber(ctx context.Context) (uint64, error) {
	return m.height, m.err
}

type mockPasses struct{ sum *indexer.Summary }

func (m *mockPasses) LastSummary() *indexer.Summary { return m.sum }

type mockSink struct{ serving map[string]bool }

func (m *mockSink) SetServing(service string, serving bool) {
	m.serving[service] = serving
}

type mockStats struct {
	start, end time.Time
	day        time.Time
}

func (m *mockStats) ForWindow(start, end time.Time) *domain.Statistics {
	m.start, m.end = start, end
	v := uint8(27)
	return &domain.Statistics{
		Start: start,
		End:   end,
		Chains: []domain.ChainStats{{
			Chain: "arbitrum", FailCount: 1, TotalCount: 1,
			Failed: []*domain.WithdrawalEvent{{
				Hash:   "0xdead",
				Chain:  "arbitrum",
				Params: domain.WithdrawParams{Amount: big.NewInt(5), V: &v},
			}},
		}},
		Totals: domain.Totals{FailCount: 1, TotalCount: 1},
	}
}

func (m *mockStats) ForCalendarDay(date time.Time) *domain.Statistics {
	m.day = date
	return &domain.Statistics{}
}

func (m *mockStats) Weekly(end time.Time) *stats.WeeklySummary {
	return &stats.WeeklySummary{EndDate: end.Format(time.DateOnly), SuccessRate: 66.67}
}

type mockStatus struct{}

func (mockStatus) SystemInfo(ctx context.Context) SystemInfo {
	return SystemInfo{ChainsMonitored: 2, ProcessedCount: 7}
}

func newMonitor(t *testing.T, heights map[string]HeightFetcher, sum *indexer.Summary, sink ServingSink) (*Monitor, *cursor.DefaultManager) {
	t.Helper()
	mgr := cursor.NewManager(memory.NewCursorRepo(memory.NewMemoryStorage()))
	chains := make([]string, 0, len(heights))
	for c := range heights {
		chains = append(chains, c)
	}
	return NewMonitor(MonitorConfig{
		Chains:      chains,
		Heights:     heights,
		Cursor:      mgr,
		Passes:      &mockPasses{sum: sum},
		Sink:        sink,
		CriticalLag: 100,
	}), mgr
}

// =============================================================================
// Monitor
// =============================================================================

func TestMonitor_CheckHealth(t *testing.T) {
	ctx := context.Background()
	heights := map[string]HeightFetcher{
		"healthy":  &mockFetcher{height: 1050},
		"lagging":  &mockFetcher{height: 5000},
		"rpc_down": &mockFetcher{err: errors.New("dial tcp: refused")},
		"failing":  &mockFetcher{height: 1000},
	}
	sum := &indexer.Summary{Chains: []indexer.ChainResult{
		{Chain: "failing", Err: errors.New("scan failed")},
	}}
	sink := &mockSink{serving: map[string]bool{}}
	m, mgr := newMonitor(t, heights, sum, sink)
	for c := range heights {
		mgr.Reset(ctx, c, 1000)
	}

	report := m.CheckHealth(ctx)
	tests := map[string]SystemStatus{
		"healthy":  StatusHealthy,
		"lagging":  StatusCritical,
		"rpc_down": StatusDegraded,
		"failing":  StatusDegraded,
	}
	for chain, want := range tests {
		if got := report[chain].Status; got != want {
			t.Errorf("%s: expected %s, got %s", chain, want, got)
		}
	}
	if report["healthy"].BlockLag != 50 {
		t.Errorf("expected lag 50, got %d", report["healthy"].BlockLag)
	}
	if report["failing"].LastError != "scan failed" {
		t.Errorf("expected last pass error, got %q", report["failing"].LastError)
	}

	if Aggregate(report) != StatusCritical {
		t.Error("expected critical aggregate")
	}
	if sink.serving["lagging"] || !sink.serving["healthy"] || sink.serving[""] {
		t.Errorf("unexpected serving map %v", sink.serving)
	}
}

// =============================================================================
// HTTP
// =============================================================================

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_Health(t *testing.T) {
	ctx := context.Background()
	m, mgr := newMonitor(t, map[string]HeightFetcher{"arbitrum": &mockFetcher{height: 10}}, nil, nil)
	mgr.Reset(ctx, "arbitrum", 5)
	s := NewServer(m, nil, nil, 0)

	rec := get(t, s, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	json.NewDecoder(rec.Body).Decode(&body)
	if body["status"] != string(StatusHealthy) {
		t.Errorf("unexpected body %v", body)
	}

	if rec := get(t, s, "/status"); rec.Code != http.StatusNotFound {
		t.Errorf("status route must be absent without provider, got %d", rec.Code)
	}
}

func TestServer_HealthCritical(t *testing.T) {
	m, mgr := newMonitor(t, map[string]HeightFetcher{"arbitrum": &mockFetcher{height: 1000}}, nil, nil)
	mgr.Reset(context.Background(), "arbitrum", 0)
	s := NewServer(m, nil, nil, 0)
	if rec := get(t, s, "/health"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestServer_Stats(t *testing.T) {
	m, _ := newMonitor(t, map[string]HeightFetcher{}, nil, nil)
	st := &mockStats{}
	s := NewServer(m, st, mockStatus{}, 0)

	rec := get(t, s, "/stats/window?start=2024-05-09T00:00:00Z&end=2024-05-10T00:00:00Z")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if !st.start.Equal(time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC)) || !st.end.Equal(time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected window %s - %s", st.start, st.end)
	}
	var view StatsView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatal(err)
	}
	params := view.Chains[0].Failed[0].Params
	if params["amount"] != "5" || params["v"] != "27" {
		t.Errorf("unexpected params %v", params)
	}
	if _, ok := params["trader"]; ok {
		t.Error("undecoded trader must be absent")
	}

	if rec := get(t, s, "/stats/window?start=yesterday"); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad start, got %d", rec.Code)
	}
	if rec := get(t, s, "/stats/window?start=2024-05-10T00:00:00Z&end=2024-05-09T00:00:00Z"); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for inverted window, got %d", rec.Code)
	}

	if rec := get(t, s, "/stats/day/2024-05-10"); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if st.day.Format(time.DateOnly) != "2024-05-10" {
		t.Errorf("unexpected day %s", st.day)
	}
	if rec := get(t, s, "/stats/day/10-05-2024"); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad date, got %d", rec.Code)
	}

	rec = get(t, s, "/stats/weekly?end=2024-05-10")
	var ws stats.WeeklySummary
	json.NewDecoder(rec.Body).Decode(&ws)
	if ws.EndDate != "2024-05-10" || ws.SuccessRate != 66.67 {
		t.Errorf("unexpected weekly %+v", ws)
	}

	rec = get(t, s, "/status")
	var info SystemInfo
	json.NewDecoder(rec.Body).Decode(&info)
	if info.ProcessedCount != 7 {
		t.Errorf("unexpected status %+v", info)
	}
}
