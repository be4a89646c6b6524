package control

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/withdrawal-watcher/internal/core/domain"
	"github.com/vietddude/withdrawal-watcher/internal/indexing/indexer"
	"github.com/vietddude/withdrawal-watcher/internal/indexing/report"
	"github.com/vietddude/withdrawal-watcher/internal/indexing/stats"
)

// Scan runs one scan pass over every chain. Chains that fail get an error
// notice, rate limited per chain.
func (w *Watcher) Scan(ctx context.Context) *indexer.Summary {
	w.log.Info("=== Starting Withdrawal Monitoring Check ===")
	sum := w.pass.Run(ctx)
	for _, res := range sum.Errors() {
		if errors.Is(res.Err, indexer.ErrChainSkipped) {
			continue
		}
		w.alerts.DispatchChainError(context.WithoutCancel(ctx), res.Chain, res.Err)
	}

	w.mu.Lock()
	w.lastScan = sum.FinishedAt
	w.mu.Unlock()
	w.log.Info("=== Withdrawal Monitoring Check Complete ===", "new_events", sum.NewEvents())
	return sum
}

// CheckBalances reads every balance and alerts on low ones.
func (w *Watcher) CheckBalances(ctx context.Context) []domain.BalanceInfo {
	w.log.Info("=== Starting Balance Monitoring Check ===")
	list, _ := w.balances.CheckAndAlert(ctx)
	w.mu.Lock()
	w.lastBalance = time.Now().UTC()
	w.mu.Unlock()
	w.log.Info("=== Balance Monitoring Check Complete ===", "balances", len(list))
	return list
}

// SendDailyReport generates and sends the daily report.
func (w *Watcher) SendDailyReport(ctx context.Context) error {
	w.log.Info("=== Starting Daily Report Generation ===")
	if err := w.reporter.SendDaily(ctx); err != nil {
		return err
	}
	w.mu.Lock()
	w.lastReport = time.Now().UTC()
	w.mu.Unlock()
	w.log.Info("=== Daily Report Generation Complete ===")
	return nil
}

// RunOnce runs a scan pass and a balance check, then returns.
func (w *Watcher) RunOnce(ctx context.Context) (*indexer.Summary, []domain.BalanceInfo) {
	sum := w.Scan(ctx)
	list := w.CheckBalances(ctx)
	return sum, list
}

func (w *Watcher) runScan(ctx context.Context)         { w.Scan(ctx) }
func (w *Watcher) runBalanceCheck(ctx context.Context) { w.CheckBalances(ctx) }

func (w *Watcher) runDailyReport(ctx context.Context) {
	if err := w.SendDailyReport(ctx); err != nil {
		w.log.Error("Error in daily report generation", "error", err)
	}
}

// Stats returns the statistics aggregator.
func (w *Watcher) Stats() *stats.Aggregator { return w.stats }

// Reporter returns the report generator.
func (w *Watcher) Reporter() *report.Reporter { return w.reporter }

// Status returns per-chain cursor and head information.
func (w *Watcher) Status(ctx context.Context) []indexer.Status {
	return w.pass.Status(ctx)
}

// ResetCursor sets the cursor of chainID to block.
func (w *Watcher) ResetCursor(ctx context.Context, chainID string, block uint64) error {
	for _, ch := range w.cfg.Chains {
		if ch.ID == chainID {
			return w.cursorMgr.Reset(ctx, chainID, block)
		}
	}
	return &UnknownChainError{Chain: chainID}
}

// UnknownChainError is returned for a chain id not in the configuration.
type UnknownChainError struct{ Chain string }

func (e *UnknownChainError) Error() string { return "unknown chain: " + e.Chain }
