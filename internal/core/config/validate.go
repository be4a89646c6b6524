package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Validate checks that the configuration can drive a watcher. Secrets left
// as placeholders are rejected so a half-configured deployment fails fast.
func (c *AppConfig) Validate() error {
	var errs []error

	if len(c.Chains) == 0 {
		errs = append(errs, errors.New("no chains configured"))
	}

	seen := make(map[string]bool, len(c.Chains))
	for i, ch := range c.Chains {
		if ch.ID == "" {
			errs = append(errs, fmt.Errorf("chains[%d]: missing id", i))
			continue
		}
		if seen[ch.ID] {
			errs = append(errs, fmt.Errorf("chain %s: duplicate id", ch.ID))
		}
		seen[ch.ID] = true

		if ch.RPCURL == "" || isPlaceholder(ch.RPCURL) {
			errs = append(errs, fmt.Errorf("chain %s: rpc_url is not set", ch.ID))
		}
		if !common.IsHexAddress(ch.Contract) {
			errs = append(errs, fmt.Errorf("chain %s: invalid contract address %q", ch.ID, ch.Contract))
		}
		for _, tok := range ch.Tokens {
			if tok.Symbol == "" {
				errs = append(errs, fmt.Errorf("chain %s: token without symbol", ch.ID))
			}
			if !tok.Native && !common.IsHexAddress(tok.Address) {
				errs = append(errs, fmt.Errorf("chain %s: token %s has invalid address %q", ch.ID, tok.Symbol, tok.Address))
			}
		}
	}

	if c.Telegram.BotToken != "" && isPlaceholder(c.Telegram.BotToken) {
		errs = append(errs, errors.New("telegram: bot_token is a placeholder"))
	}
	if c.Telegram.BotToken != "" && (c.Telegram.ChatID == "" || isPlaceholder(c.Telegram.ChatID)) {
		errs = append(errs, errors.New("telegram: chat_id is not set"))
	}

	if _, _, err := ParseClock(c.Monitoring.ReportTimeUTC); err != nil {
		errs = append(errs, fmt.Errorf("monitoring: report_time_utc: %w", err))
	}
	if c.Monitoring.MaxBlockRange == 0 {
		errs = append(errs, errors.New("monitoring: max_block_range must be positive"))
	}
	if c.Monitoring.ProcessedCap < 2 {
		errs = append(errs, errors.New("monitoring: processed_cap must be at least 2"))
	}

	switch c.Storage.Backend {
	case BackendKV, BackendMemory:
	case BackendPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("storage: postgres backend needs database.url"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage: unknown backend %q", c.Storage.Backend))
	}

	return errors.Join(errs...)
}

// ParseClock parses an HH:MM time of day.
func ParseClock(s string) (hour, minute int, err error) {
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	return hour, minute, nil
}

func isPlaceholder(v string) bool {
	return strings.HasPrefix(v, "YOUR_") || strings.Contains(v, "${")
}
