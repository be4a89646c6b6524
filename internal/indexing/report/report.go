// Package report builds the periodic withdrawal and balance reports.
package report

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vietddude/withdrawal-watcher/internal/core/domain"
	"github.com/vietddude/withdrawal-watcher/internal/indexing/balance"
	"github.com/vietddude/withdrawal-watcher/internal/indexing/stats"
)

// DailyWindow is the period covered by the daily report.
const DailyWindow = 24 * time.Hour

// ErrNotDelivered is returned when the notifier did not accept a report.
var ErrNotDelivered = errors.New("report not delivered")

// Statistics is the query surface of the statistics aggregator.
type Statistics interface {
	ForWindow(start, end time.Time) *domain.Statistics
	Weekly(end time.Time) *stats.WeeklySummary
}

// BalanceSource reads current balances.
type BalanceSource interface {
	CheckAll(ctx context.Context) []domain.BalanceInfo
}

// Dispatcher delivers reports.
type Dispatcher interface {
	DispatchDailyReport(ctx context.Context, st *domain.Statistics, balances map[string][]domain.BalanceInfo) bool
	DispatchWeeklyReport(ctx context.Context, ws *stats.WeeklySummary) bool
	DispatchError(ctx context.Context, component string, err error) bool
}

// Daily is a generated daily report.
type Daily struct {
	GeneratedAt time.Time
	Stats       *domain.Statistics
	Balances    map[string][]domain.BalanceInfo
}

// Reporter generates and sends reports.
type Reporter struct {
	stats    Statistics
	balances BalanceSource
	alerts   Dispatcher
	log      *slog.Logger
	now      func() time.Time
}

// New creates a reporter.
func New(st Statistics, balances BalanceSource, alerts Dispatcher) *Reporter {
	return &Reporter{
		stats:    st,
		balances: balances,
		alerts:   alerts,
		log:      slog.Default().With("component", "report"),
		now:      time.Now,
	}
}

// GenerateDaily covers the 24 hours ending now and the current balances.
func (r *Reporter) GenerateDaily(ctx context.Context) *Daily {
	end := r.now().UTC()
	start := end.Add(-DailyWindow)
	r.log.Info("generating daily report", "from", start.Format(time.DateTime), "to", end.Format(time.DateTime))

	d := &Daily{
		GeneratedAt: end,
		Stats:       r.stats.ForWindow(start, end),
		Balances:    map[string][]domain.BalanceInfo{},
	}
	if r.balances != nil {
		d.Balances = balance.ByChain(r.balances.CheckAll(ctx))
	}
	return d
}

// SendDaily generates the daily report and sends it. When delivery fails an
// error notice is sent instead.
func (r *Reporter) SendDaily(ctx context.Context) error {
	d := r.GenerateDaily(ctx)
	if r.alerts.DispatchDailyReport(ctx, d.Stats, d.Balances) {
		r.log.Info("daily report sent", "withdrawals", d.Stats.Totals.TotalCount)
		return nil
	}
	r.log.Error("failed to send daily report")
	r.alerts.DispatchError(ctx, "Daily Reporter", errors.New("failed to send daily report"))
	return ErrNotDelivered
}

// Weekly summarises the seven UTC days ending today.
func (r *Reporter) Weekly() *stats.WeeklySummary {
	return r.stats.Weekly(r.now())
}

// SendWeekly generates the weekly summary and sends it.
func (r *Reporter) SendWeekly(ctx context.Context) (*stats.WeeklySummary, error) {
	ws := r.Weekly()
	if !r.alerts.DispatchWeeklyReport(ctx, ws) {
		return ws, ErrNotDelivered
	}
	return ws, nil
}
