package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/withdrawal-watcher/internal/core/cursor"
	"github.com/vietddude/withdrawal-watcher/internal/indexing/indexer"
)

// DefaultCriticalLag is the cursor lag at which a chain becomes critical.
const DefaultCriticalLag = 5000

// HeightFetcher fetches the latest block height of one chain.
type HeightFetcher interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// PassSource returns the last completed scan pass.
type PassSource interface {
	LastSummary() *indexer.Summary
}

// ServingSink receives per-chain serving status.
type ServingSink interface {
	SetServing(service string, serving bool)
}

// Monitor aggregates health status from the cursor manager, chain heads and
// the last scan pass.
type Monitor struct {
	chains      []string
	heights     map[string]HeightFetcher
	cursorMgr   cursor.Manager
	passes      PassSource
	sink        ServingSink
	criticalLag uint64
	cacheFor    time.Duration

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport map[string]ChainHealth
}

// MonitorConfig configures a Monitor.
type MonitorConfig struct {
	Chains      []string
	Heights     map[string]HeightFetcher
	Cursor      cursor.Manager
	Passes      PassSource
	Sink        ServingSink // optional
	CriticalLag uint64
}

// NewMonitor creates a new health monitor.
func NewMonitor(cfg MonitorConfig) *Monitor {
	if cfg.CriticalLag == 0 {
		cfg.CriticalLag = DefaultCriticalLag
	}
	return &Monitor{
		chains:      cfg.Chains,
		heights:     cfg.Heights,
		cursorMgr:   cfg.Cursor,
		passes:      cfg.Passes,
		sink:        cfg.Sink,
		criticalLag: cfg.CriticalLag,
		cacheFor:    10 * time.Second,
	}
}

// CheckHealth checks every chain. Results are cached briefly so health
// probes do not hammer the RPC endpoints.
func (m *Monitor) CheckHealth(ctx context.Context) map[string]ChainHealth {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.lastCheck) < m.cacheFor && len(m.lastReport) > 0 {
		return m.lastReport
	}

	lastErr := make(map[string]string)
	if m.passes != nil {
		if sum := m.passes.LastSummary(); sum != nil {
			for _, c := range sum.Chains {
				if c.Err != nil {
					lastErr[c.Chain] = c.Err.Error()
				}
			}
		}
	}

	report := make(map[string]ChainHealth, len(m.chains))
	for _, chainID := range m.chains {
		h := ChainHealth{
			ChainID:   chainID,
			Status:    StatusHealthy,
			State:     string(m.cursorMgr.GetState(chainID)),
			LastError: lastErr[chainID],
		}
		if c, err := m.cursorMgr.Get(ctx, chainID); err == nil {
			h.CurrentBlock = c.BlockNumber
		}

		fetcher, ok := m.heights[chainID]
		if !ok {
			h.Status = StatusDegraded
		} else if latest, err := fetcher.BlockNumber(ctx); err != nil {
			h.Status = StatusDegraded
			if h.LastError == "" {
				h.LastError = err.Error()
			}
		} else {
			h.LatestBlock = latest
			h.BlockLag, _ = m.cursorMgr.GetLag(ctx, chainID, latest)
		}

		switch {
		case h.BlockLag > m.criticalLag:
			h.Status = StatusCritical
		case h.LastError != "":
			h.Status = StatusDegraded
		}

		if m.sink != nil {
			m.sink.SetServing(chainID, h.Status != StatusCritical)
		}
		report[chainID] = h
	}

	if m.sink != nil {
		m.sink.SetServing("", Aggregate(report) != StatusCritical)
	}
	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}

// Report wraps CheckHealth with the aggregate status.
func (m *Monitor) Report(ctx context.Context) HealthReport {
	chains := m.CheckHealth(ctx)
	return HealthReport{
		SystemStatus: Aggregate(chains),
		CheckedAt:    time.Now().UTC(),
		Chains:       chains,
	}
}
