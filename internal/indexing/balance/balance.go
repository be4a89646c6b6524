// Package balance checks the token balances held by the withdrawal
// contracts against their alert thresholds.
package balance

import (
	"context"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/vietddude/withdrawal-watcher/internal/core/domain"
	"github.com/vietddude/withdrawal-watcher/internal/indexing/metrics"
	"github.com/vietddude/withdrawal-watcher/internal/infra/chain"
)

const (
	nativeDecimals = 18
	historySize    = 24
)

// Token is one balance to watch.
type Token struct {
	Symbol    string
	Address   string
	Native    bool
	Threshold float64
}

// Target is a contract on one chain and the tokens it holds.
type Target struct {
	Chain       string
	Contract    string
	ExplorerURL string
	Reader      chain.BalanceReader
	Tokens      []Token
}

// LowBalanceDispatcher alerts on a balance under threshold.
type LowBalanceDispatcher interface {
	DispatchLowBalance(ctx context.Context, b domain.BalanceInfo) bool
}

// Snapshot is the result of one full check.
type Snapshot struct {
	At       time.Time
	Balances []domain.BalanceInfo
}

// Checker reads balances and keeps a short history of snapshots.
type Checker struct {
	targets []Target
	alerts  LowBalanceDispatcher
	log     *slog.Logger
	now     func() time.Time

	mu      sync.RWMutex
	history []Snapshot
}

// New creates a checker. alerts may be nil.
func New(targets []Target, alerts LowBalanceDispatcher) *Checker {
	return &Checker{
		targets: targets,
		alerts:  alerts,
		log:     slog.Default().With("component", "balance"),
		now:     time.Now,
	}
}

// CheckAll reads every configured balance. A token that cannot be read is
// logged and left out.
func (c *Checker) CheckAll(ctx context.Context) []domain.BalanceInfo {
	var out []domain.BalanceInfo
	for _, t := range c.targets {
		for _, tok := range t.Tokens {
			info, err := c.check(ctx, t, tok)
			if err != nil {
				c.log.Error("failed to read balance", "chain", t.Chain, "token", tok.Symbol, "error", err)
				continue
			}
			metrics.ContractBalance.WithLabelValues(t.Chain, tok.Symbol).Set(info.Balance)
			if info.BelowThreshold {
				c.log.Warn("low balance", "chain", t.Chain, "token", tok.Symbol, "balance", info.Balance, "threshold", info.Threshold)
			} else {
				c.log.Debug("balance ok", "chain", t.Chain, "token", tok.Symbol, "balance", info.Balance)
			}
			out = append(out, info)
		}
	}

	c.mu.Lock()
	c.history = append(c.history, Snapshot{At: c.now().UTC(), Balances: out})
	if len(c.history) > historySize {
		c.history = c.history[len(c.history)-historySize:]
	}
	c.mu.Unlock()
	return out
}

// CheckAndAlert runs CheckAll and dispatches an alert for every low
// balance. It returns the balances and the number of alerts sent.
func (c *Checker) CheckAndAlert(ctx context.Context) ([]domain.BalanceInfo, int) {
	list := c.CheckAll(ctx)
	sent := 0
	if c.alerts == nil {
		return list, 0
	}
	for _, b := range list {
		if b.BelowThreshold && c.alerts.DispatchLowBalance(ctx, b) {
			sent++
		}
	}
	if sent > 0 {
		c.log.Warn("sent low balance alerts", "count", sent)
	}
	return list, sent
}

func (c *Checker) check(ctx context.Context, t Target, tok Token) (domain.BalanceInfo, error) {
	var (
		raw      *big.Int
		decimals uint8 = nativeDecimals
		address        = domain.NativeToken
		err      error
	)
	if tok.Native {
		raw, err = t.Reader.NativeBalance(ctx, t.Contract)
	} else {
		address = tok.Address
		raw, decimals, err = t.Reader.TokenBalance(ctx, tok.Address, t.Contract)
	}
	if err != nil {
		return domain.BalanceInfo{}, err
	}

	bal := Scale(raw, decimals)
	return domain.BalanceInfo{
		Chain:           t.Chain,
		ContractAddress: t.Contract,
		TokenSymbol:     tok.Symbol,
		TokenAddress:    address,
		Balance:         bal,
		Threshold:       tok.Threshold,
		BelowThreshold:  bal < tok.Threshold,
		ExplorerURL:     strings.TrimRight(t.ExplorerURL, "/") + "/address/" + t.Contract,
	}, nil
}

// Scale converts a raw integer amount to token units.
func Scale(raw *big.Int, decimals uint8) float64 {
	if raw == nil {
		return 0
	}
	div := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(raw), div).Float64()
	return f
}

// Critical reports whether b is under half of its threshold.
func Critical(b domain.BalanceInfo) bool {
	return b.Balance < b.Threshold*0.5
}

// ByChain groups balances by chain id.
func ByChain(list []domain.BalanceInfo) map[string][]domain.BalanceInfo {
	out := make(map[string][]domain.BalanceInfo)
	for _, b := range list {
		out[b.Chain] = append(out[b.Chain], b)
	}
	return out
}

// Latest returns the most recent snapshot.
func (c *Checker) Latest() (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.history) == 0 {
		return Snapshot{}, false
	}
	return c.history[len(c.history)-1], true
}
