// Package health exposes watcher health, metrics and statistics over HTTP
// and per-chain serving status over gRPC.
package health

import "time"

// SystemStatus represents the health state of the system or a chain.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ChainHealth contains health data for one chain.
type ChainHealth struct {
	ChainID      string       `json:"chain_id"`
	Status       SystemStatus `json:"status"`
	State        string       `json:"state"`
	CurrentBlock uint64       `json:"current_block"`
	LatestBlock  uint64       `json:"latest_block"`
	BlockLag     uint64       `json:"block_lag"`
	LastError    string       `json:"last_error,omitempty"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus           `json:"system_status"`
	CheckedAt    time.Time              `json:"checked_at"`
	Chains       map[string]ChainHealth `json:"chains"`
}

// Aggregate returns the worst status of all chains.
func Aggregate(chains map[string]ChainHealth) SystemStatus {
	status := StatusHealthy
	for _, c := range chains {
		if c.Status == StatusCritical {
			return StatusCritical
		}
		if c.Status == StatusDegraded {
			status = StatusDegraded
		}
	}
	return status
}

// ChainStatus is one chain in the system status.
type ChainStatus struct {
	ChainID     string `json:"chain_id"`
	Name        string `json:"name"`
	Cursor      uint64 `json:"cursor"`
	HasCursor   bool   `json:"has_cursor"`
	Events      int    `json:"events"`
	State       string `json:"state"`
	LastScanErr string `json:"last_scan_error,omitempty"`
}

// SystemInfo is the operator view of the running watcher.
type SystemInfo struct {
	StartedAt        time.Time     `json:"started_at"`
	Uptime           string        `json:"uptime"`
	ChainsMonitored  int           `json:"chains_monitored"`
	ProcessedCount   int           `json:"processed_count"`
	Chains           []ChainStatus `json:"chains"`
	LastScan         *time.Time    `json:"last_scan,omitempty"`
	LastBalanceCheck *time.Time    `json:"last_balance_check,omitempty"`
	LastDailyReport  *time.Time    `json:"last_daily_report,omitempty"`
}
