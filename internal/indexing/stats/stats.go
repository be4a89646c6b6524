// Package stats computes withdrawal statistics over time windows.
package stats

import (
	"math"
	"time"

	"github.com/vietddude/withdrawal-watcher/internal/core/domain"
)

// EventSource is the read side of the event ledger.
type EventSource interface {
	EventsForChain(chain string) []*domain.WithdrawalEvent
	Chains() []string
}

// Aggregator is a pure reader over the ledger.
type Aggregator struct {
	source EventSource
	chains []string
}

// New creates an aggregator. chains fixes the reporting order; chains that
// only appear in the ledger are reported after them.
func New(source EventSource, chains []string) *Aggregator {
	return &Aggregator{source: source, chains: append([]string(nil), chains...)}
}

func (a *Aggregator) chainOrder() []string {
	order := append([]string(nil), a.chains...)
	known := make(map[string]struct{}, len(order))
	for _, c := range order {
		known[c] = struct{}{}
	}
	for _, c := range a.source.Chains() {
		if _, ok := known[c]; !ok {
			order = append(order, c)
		}
	}
	return order
}

// ForWindow returns per-chain statistics for events with
// start <= timestamp <= end.
func (a *Aggregator) ForWindow(start, end time.Time) *domain.Statistics {
	out := &domain.Statistics{Start: start.UTC(), End: end.UTC()}
	for _, chain := range a.chainOrder() {
		cs := domain.ChainStats{Chain: chain}
		for _, ev := range a.source.EventsForChain(chain) {
			if ev.Timestamp.Before(start) || ev.Timestamp.After(end) {
				continue
			}
			if ev.Status {
				cs.SuccessCount++
				cs.Successful = append(cs.Successful, ev)
			} else {
				cs.FailCount++
				cs.Failed = append(cs.Failed, ev)
			}
		}
		cs.TotalCount = cs.SuccessCount + cs.FailCount

		out.Chains = append(out.Chains, cs)
		out.Totals.SuccessCount += cs.SuccessCount
		out.Totals.FailCount += cs.FailCount
		out.Totals.TotalCount += cs.TotalCount
	}
	return out
}

// DayBounds returns [00:00:00, 23:59:59] of date's UTC calendar day.
func DayBounds(date time.Time) (time.Time, time.Time) {
	d := date.UTC()
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24*time.Hour - time.Second)
}

// ForCalendarDay returns statistics for date's UTC calendar day.
func (a *Aggregator) ForCalendarDay(date time.Time) *domain.Statistics {
	start, end := DayBounds(date)
	return a.ForWindow(start, end)
}

// DayCount is one day of a weekly breakdown.
type DayCount struct {
	Date       string `json:"date"`
	Successful int    `json:"successful"`
	Failed     int    `json:"failed"`
}

// WeeklyChain is one chain's weekly totals with a daily breakdown.
type WeeklyChain struct {
	Chain      string     `json:"chain"`
	Successful int        `json:"successful"`
	Failed     int        `json:"failed"`
	Total      int        `json:"total"`
	Daily      []DayCount `json:"daily_breakdown"`
}

// WeeklySummary covers seven consecutive UTC calendar days.
type WeeklySummary struct {
	StartDate   string        `json:"start_date"`
	EndDate     string        `json:"end_date"`
	Chains      []WeeklyChain `json:"chains"`
	Successful  int           `json:"successful"`
	Failed      int           `json:"failed"`
	Total       int           `json:"total"`
	SuccessRate float64       `json:"success_rate"` // percent, 2 decimals, 0 when there were no withdrawals
}

// Weekly summarises the seven calendar days ending on end's UTC date.
func (a *Aggregator) Weekly(end time.Time) *WeeklySummary {
	lastDay, _ := DayBounds(end)
	firstDay := lastDay.AddDate(0, 0, -6)

	ws := &WeeklySummary{
		StartDate: firstDay.Format(time.DateOnly),
		EndDate:   lastDay.Format(time.DateOnly),
	}
	byChain := make(map[string]int)

	for i := 0; i < 7; i++ {
		day := firstDay.AddDate(0, 0, i)
		daily := a.ForCalendarDay(day)
		for _, cs := range daily.Chains {
			idx, ok := byChain[cs.Chain]
			if !ok {
				idx = len(ws.Chains)
				byChain[cs.Chain] = idx
				ws.Chains = append(ws.Chains, WeeklyChain{Chain: cs.Chain})
			}
			wc := &ws.Chains[idx]
			wc.Successful += cs.SuccessCount
			wc.Failed += cs.FailCount
			wc.Total += cs.TotalCount
			wc.Daily = append(wc.Daily, DayCount{
				Date:       day.Format(time.DateOnly),
				Successful: cs.SuccessCount,
				Failed:     cs.FailCount,
			})
		}
		ws.Successful += daily.Totals.SuccessCount
		ws.Failed += daily.Totals.FailCount
		ws.Total += daily.Totals.TotalCount
	}

	if ws.Total > 0 {
		ws.SuccessRate = math.Round(float64(ws.Successful)/float64(ws.Total)*100*100) / 100
	}
	return ws
}
