// Package alert turns watcher findings into notifier messages.
package alert

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vietddude/withdrawal-watcher/internal/core/domain"
	"github.com/vietddude/withdrawal-watcher/internal/indexing/stats"
	"github.com/vietddude/withdrawal-watcher/internal/infra/notify"
)

// Dispatcher formats alerts and hands them to a Notifier. Delivery failures
// are logged and reported through the return value, never as errors.
type Dispatcher struct {
	notifier notify.Notifier
	names    map[string]string
	now      func() time.Time
	log      *slog.Logger
}

// New creates a dispatcher. names maps chain ids to display names.
func New(n notify.Notifier, names map[string]string) *Dispatcher {
	if n == nil {
		n = notify.Nop{}
	}
	return &Dispatcher{
		notifier: n,
		names:    names,
		now:      time.Now,
		log:      slog.Default().With("component", "alert"),
	}
}

func (d *Dispatcher) send(ctx context.Context, a notify.Alert) bool {
	err := d.notifier.Notify(ctx, a)
	switch {
	case err == nil:
		return true
	case errors.Is(err, notify.ErrCooldown):
		return false
	default:
		d.log.Error("failed to send alert", "kind", a.Kind, "error", err)
		return false
	}
}

// DispatchFailure sends the failed-withdrawal alert. Successful events are
// ignored and return false.
func (d *Dispatcher) DispatchFailure(ctx context.Context, ev *domain.WithdrawalEvent) bool {
	if ev.Status {
		return false
	}
	ok := d.send(ctx, notify.Alert{
		Kind: notify.KindWithdrawalFailure,
		Text: FailedWithdrawal(ev, chainName(d.names, ev.Chain)),
	})
	if ok {
		d.log.Info("sent failed withdrawal alert", "chain", ev.Chain, "tx", ev.Hash)
	}
	return ok
}

// DispatchLowBalance sends a low balance alert keyed by chain and token.
func (d *Dispatcher) DispatchLowBalance(ctx context.Context, b domain.BalanceInfo) bool {
	if !b.BelowThreshold {
		return false
	}
	return d.send(ctx, notify.Alert{
		Kind: notify.KindLowBalance,
		Key:  b.CooldownKey(),
		Text: LowBalance(b, chainName(d.names, b.Chain)),
	})
}

// DispatchDailyReport sends the daily summary.
func (d *Dispatcher) DispatchDailyReport(ctx context.Context, st *domain.Statistics, balances map[string][]domain.BalanceInfo) bool {
	return d.send(ctx, notify.Alert{
		Kind: notify.KindDailyReport,
		Text: DailyReport(st, balances, d.names, d.now()),
	})
}

// DispatchWeeklyReport sends the weekly summary.
func (d *Dispatcher) DispatchWeeklyReport(ctx context.Context, ws *stats.WeeklySummary) bool {
	return d.send(ctx, notify.Alert{
		Kind: notify.KindWeeklyReport,
		Text: WeeklyReport(ws, d.names),
	})
}

// DispatchStartup announces that monitoring has started.
func (d *Dispatcher) DispatchStartup(ctx context.Context, info StartupInfo) bool {
	return d.send(ctx, notify.Alert{
		Kind: notify.KindStartup,
		Text: Startup(info, d.now()),
	})
}

// DispatchError reports a failing component.
func (d *Dispatcher) DispatchError(ctx context.Context, component string, err error) bool {
	return d.send(ctx, notify.Alert{
		Kind: notify.KindError,
		Text: SystemError(component, err.Error(), d.now()),
	})
}

// DispatchChainError reports a failing chain pass. Notices share the
// cooldown key error_<chain> so a persistent outage alerts once per window.
func (d *Dispatcher) DispatchChainError(ctx context.Context, chain string, err error) bool {
	return d.send(ctx, notify.Alert{
		Kind: notify.KindError,
		Key:  "error_" + chain,
		Text: SystemError("Withdrawal Monitor ("+chainName(d.names, chain)+")", err.Error(), d.now()),
	})
}
