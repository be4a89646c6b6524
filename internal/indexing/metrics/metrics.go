package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScanPassesTotal counts chain passes by outcome (ok, error, skipped)
	ScanPassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_scan_passes_total",
			Help: "Total number of per-chain scan passes",
		},
		[]string{"chain", "result"},
	)

	// ScanDuration tracks how long a chain pass takes
	ScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "watcher_scan_duration_seconds",
			Help:    "Duration of a per-chain scan pass in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"chain"},
	)

	// LogQueriesTotal counts eth_getLogs sub-range queries
	LogQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_log_queries_total",
			Help: "Total number of log sub-range queries",
		},
		[]string{"chain"},
	)

	// RPCCallsTotal tracks RPC calls per chain and method
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_rpc_calls_total",
			Help: "Total number of RPC calls",
		},
		[]string{"chain", "method"},
	)

	// RPCErrorsTotal tracks RPC errors per chain and classification
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_rpc_errors_total",
			Help: "Total number of RPC errors",
		},
		[]string{"chain", "method", "error_type"},
	)

	// RPCLatency tracks RPC call latency
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "watcher_rpc_latency_seconds",
			Help:    "RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"chain", "method"},
	)

	// ChainLatestBlock tracks the latest block height of the chain
	ChainLatestBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "watcher_chain_latest_block",
			Help: "Latest block height of the chain",
		},
		[]string{"chain"},
	)

	// CursorBlock tracks the last fully scanned block
	CursorBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "watcher_cursor_block",
			Help: "Last block height fully scanned by the watcher",
		},
		[]string{"chain"},
	)

	// WithdrawalsTotal counts newly recorded withdrawals by status
	WithdrawalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_withdrawals_total",
			Help: "Total number of withdrawal transactions recorded",
		},
		[]string{"chain", "status"},
	)

	// SkippedTotal counts candidates dropped during resolution
	SkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_skipped_total",
			Help: "Total number of candidate transactions skipped",
		},
		[]string{"chain", "reason"},
	)

	// DecodeFallbackTotal counts events decoded field by field
	DecodeFallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_decode_fallback_total",
			Help: "Total number of withdrawals decoded with the per-field fallback",
		},
		[]string{"chain"},
	)

	// AlertsTotal counts notifications by kind and result (sent, cooldown, error)
	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_alerts_total",
			Help: "Total number of notifications attempted",
		},
		[]string{"kind", "result"},
	)

	// ProcessedSetSize tracks the number of remembered transaction hashes
	ProcessedSetSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watcher_processed_set_size",
			Help: "Number of transaction hashes in the processed set",
		},
	)

	// LedgerEvents tracks retained events per chain
	LedgerEvents = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "watcher_ledger_events",
			Help: "Number of withdrawal events retained in the ledger",
		},
		[]string{"chain"},
	)

	// ContractBalance tracks the last observed token balance
	ContractBalance = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "watcher_contract_balance",
			Help: "Last observed contract token balance",
		},
		[]string{"chain", "token"},
	)

	// PersistErrorsTotal counts failed storage writes
	PersistErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_persist_errors_total",
			Help: "Total number of failed storage writes",
		},
		[]string{"target"},
	)

	// DBConnectionPoolUsage tracks database pool utilisation in percent
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watcher_db_connection_pool_usage",
			Help: "Database connection pool usage percentage",
		},
	)
)
