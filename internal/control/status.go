package control

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/withdrawal-watcher/internal/core/cursor"
	"github.com/vietddude/withdrawal-watcher/internal/indexing/health"
)

// SystemInfo implements health.StatusProvider.
func (w *Watcher) SystemInfo(ctx context.Context) health.SystemInfo {
	counts := w.ledger.Counts()
	var lastErr map[string]string
	if sum := w.pass.LastSummary(); sum != nil {
		lastErr = make(map[string]string)
		for _, r := range sum.Errors() {
			lastErr[r.Chain] = r.Err.Error()
		}
	}

	info := health.SystemInfo{
		StartedAt:       w.startedAt,
		ChainsMonitored: len(w.cfg.Chains),
		ProcessedCount:  w.processed.Len(),
	}
	if !w.startedAt.IsZero() {
		info.Uptime = time.Since(w.startedAt).Round(time.Second).String()
	}
	for _, ch := range w.cfg.Chains {
		cs := health.ChainStatus{
			ChainID:     ch.ID,
			Name:        ch.DisplayName(),
			Events:      counts[ch.ID],
			State:       string(w.cursorMgr.GetState(ch.ID)),
			LastScanErr: lastErr[ch.ID],
		}
		c, err := w.cursorMgr.Get(ctx, ch.ID)
		switch {
		case err == nil:
			cs.Cursor, cs.HasCursor = c.BlockNumber, true
		case !errors.Is(err, cursor.ErrCursorNotFound):
			w.log.Warn("Failed to read cursor", "chain", ch.ID, "error", err)
		}
		info.Chains = append(info.Chains, cs)
	}

	w.mu.RLock()
	info.LastScan = timePtr(w.lastScan)
	info.LastBalanceCheck = timePtr(w.lastBalance)
	info.LastDailyReport = timePtr(w.lastReport)
	w.mu.RUnlock()
	return info
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// CheckResult is the outcome of a connectivity check.
type CheckResult struct {
	TelegramBot string
	TelegramErr error
	Heights     map[string]uint64
	ChainErrs   map[string]error
}

// OK reports whether every check passed.
func (r *CheckResult) OK() bool {
	return r.TelegramErr == nil && len(r.ChainErrs) == 0
}

// Check verifies Telegram and every chain endpoint. When everything is
// reachable the startup notification is sent.
func (w *Watcher) Check(ctx context.Context) *CheckResult {
	res := &CheckResult{
		Heights:   make(map[string]uint64),
		ChainErrs: make(map[string]error),
	}

	if w.telegram != nil {
		res.TelegramBot, res.TelegramErr = w.telegram.Ping(ctx)
	} else {
		res.TelegramErr = errors.New("telegram is not configured")
	}
	if res.TelegramErr != nil {
		w.log.Error("Telegram bot connection failed", "error", res.TelegramErr)
	} else {
		w.log.Info("Telegram bot connection successful", "bot", "@"+res.TelegramBot)
	}

	for _, ch := range w.cfg.Chains {
		h, err := w.clients[ch.ID].BlockNumber(ctx)
		if err != nil {
			res.ChainErrs[ch.ID] = fmt.Errorf("get block number: %w", err)
			w.log.Error("Blockchain connection failed", "chain", ch.ID, "error", err)
			continue
		}
		res.Heights[ch.ID] = h
		w.log.Info("Blockchain connection successful", "chain", ch.ID, "height", h)
	}

	if res.OK() {
		w.alerts.DispatchStartup(ctx, w.startupInfo())
	}
	return res
}
