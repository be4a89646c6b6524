package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML content, expanding environment variables first.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.Backend == "" {
		if cfg.Database.URL != "" {
			cfg.Storage.Backend = BackendPostgres
		} else {
			cfg.Storage.Backend = BackendKV
		}
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "data"
	}

	m := &cfg.Monitoring
	if m.PollingInterval == 0 {
		m.PollingInterval = 5 * time.Minute
	}
	if m.BalanceCheckInterval == 0 {
		m.BalanceCheckInterval = 60 * time.Minute
	}
	if m.ReportTimeUTC == "" {
		m.ReportTimeUTC = "09:00"
	}
	if m.InitialBlockRange == 0 {
		m.InitialBlockRange = 1000
	}
	if m.MaxBlockRange == 0 {
		m.MaxBlockRange = 500
	}
	if m.ProcessedCap == 0 {
		m.ProcessedCap = 10000
	}
	if m.Retention == 0 {
		m.Retention = 7 * 24 * time.Hour
	}
	if m.AlertCooldown == 0 {
		m.AlertCooldown = 60 * time.Minute
	}
	if m.ResolveWorkers == 0 {
		m.ResolveWorkers = 4
	}
	if m.ChainTimeout == 0 {
		m.ChainTimeout = 10 * time.Minute
	}

	for i := range cfg.Chains {
		if cfg.Chains[i].NativeSymbol == "" {
			cfg.Chains[i].NativeSymbol = "ETH"
		}
		if cfg.Chains[i].RequestTimeout == 0 {
			cfg.Chains[i].RequestTimeout = 30 * time.Second
		}
	}
}
