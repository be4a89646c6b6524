package config

import (
	"time"

	"github.com/vietddude/withdrawal-watcher/internal/infra/notify/telegram"
	redisclient "github.com/vietddude/withdrawal-watcher/internal/infra/redis"
	"github.com/vietddude/withdrawal-watcher/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig       `yaml:"server"`
	Chains     []ChainConfig      `yaml:"chains"`
	Monitoring MonitoringConfig   `yaml:"monitoring"`
	Storage    StorageConfig      `yaml:"storage"`
	Redis      redisclient.Config `yaml:"redis"`
	Telegram   telegram.Config    `yaml:"telegram"`
	Logging    LoggingConfig      `yaml:"logging"`
	Database   postgres.Config    `yaml:"database"`
}

// ServerConfig holds HTTP and gRPC server settings.
type ServerConfig struct {
	Port     int `yaml:"port"`
	GRPCPort int `yaml:"grpc_port"` // 0 = disabled
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// Storage backends.
const (
	BackendKV       = "kv"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// StorageConfig selects where cursors, processed hashes and events live.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"` // kv backend directory
}

// MonitoringConfig holds scan, retention and scheduling settings.
type MonitoringConfig struct {
	PollingInterval      time.Duration `yaml:"polling_interval"`
	BalanceCheckInterval time.Duration `yaml:"balance_check_interval"`
	ReportTimeUTC        string        `yaml:"report_time_utc"` // HH:MM
	InitialBlockRange    uint64        `yaml:"initial_block_range"`
	MaxBlockRange        uint64        `yaml:"max_block_range"`
	ProcessedCap         int           `yaml:"processed_cap"`
	Retention            time.Duration `yaml:"retention"`
	AlertCooldown        time.Duration `yaml:"alert_cooldown"`
	ResolveWorkers       int           `yaml:"resolve_workers"`
	ChainTimeout         time.Duration `yaml:"chain_timeout"`
}

// ChainConfig holds settings for a monitored chain.
type ChainConfig struct {
	ID                string        `yaml:"id"`
	Name              string        `yaml:"name"`
	RPCURL            string        `yaml:"rpc_url"`
	ExplorerURL       string        `yaml:"explorer_url"`
	Contract          string        `yaml:"contract"`
	NativeSymbol      string        `yaml:"native_symbol"`
	RequestsPerSecond float64       `yaml:"requests_per_second"` // 0 = unlimited
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	Tokens            []TokenConfig `yaml:"tokens"`
}

// DisplayName returns the configured name, falling back to the id.
func (c ChainConfig) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// TokenConfig describes a balance watched on the chain's contract.
type TokenConfig struct {
	Symbol    string  `yaml:"symbol"`
	Address   string  `yaml:"address"`
	Native    bool    `yaml:"native"`
	Threshold float64 `yaml:"threshold"`
}

// ChainNames maps chain ids to display names.
func (c *AppConfig) ChainNames() map[string]string {
	names := make(map[string]string, len(c.Chains))
	for _, ch := range c.Chains {
		names[ch.ID] = ch.DisplayName()
	}
	return names
}

// ChainIDs returns chain ids in configured order.
func (c *AppConfig) ChainIDs() []string {
	ids := make([]string, 0, len(c.Chains))
	for _, ch := range c.Chains {
		ids = append(ids, ch.ID)
	}
	return ids
}
