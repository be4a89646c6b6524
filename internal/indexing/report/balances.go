package report

import (
	"context"
	"time"

	"github.com/vietddude/withdrawal-watcher/internal/core/domain"
	"github.com/vietddude/withdrawal-watcher/internal/indexing/balance"
)

// BalanceStatus classifies a balance against its threshold.
type BalanceStatus string

const (
	BalanceOK       BalanceStatus = "OK"
	BalanceLow      BalanceStatus = "LOW"
	BalanceCritical BalanceStatus = "CRITICAL"
)

// BalanceLine is one token in a balance report.
type BalanceLine struct {
	domain.BalanceInfo
	Status BalanceStatus
}

// BalanceReport lists every balance with its status.
type BalanceReport struct {
	GeneratedAt time.Time
	Lines       []BalanceLine
	Checked     int
	Low         int
	Critical    int
}

// Balances reads every balance and classifies it. Critical balances are
// under half of the threshold and also count as low.
func (r *Reporter) Balances(ctx context.Context) *BalanceReport {
	rep := &BalanceReport{GeneratedAt: r.now().UTC()}
	if r.balances == nil {
		return rep
	}
	for _, b := range r.balances.CheckAll(ctx) {
		line := BalanceLine{BalanceInfo: b, Status: BalanceOK}
		if b.BelowThreshold {
			rep.Low++
			line.Status = BalanceLow
			if balance.Critical(b) {
				rep.Critical++
				line.Status = BalanceCritical
			}
		}
		rep.Lines = append(rep.Lines, line)
	}
	rep.Checked = len(rep.Lines)
	return rep
}
