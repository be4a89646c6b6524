package domain

import "time"

// ChainStats summarises one chain's withdrawals inside a window.
type ChainStats struct {
	Chain        string
	SuccessCount int
	FailCount    int
	TotalCount   int
	Successful   []*WithdrawalEvent
	Failed       []*WithdrawalEvent
}

// Statistics is the result of a window query. Chains keeps configured order.
type Statistics struct {
	Start  time.Time
	End    time.Time
	Chains []ChainStats
	Totals Totals
}

// Totals sums counts across chains.
type Totals struct {
	SuccessCount int `json:"success_count"`
	FailCount    int `json:"fail_count"`
	TotalCount   int `json:"total_count"`
}

// Chain returns the stats of one chain, or zero stats if absent.
func (s *Statistics) Chain(chain string) ChainStats {
	for _, c := range s.Chains {
		if c.Chain == chain {
			return c
		}
	}
	return ChainStats{Chain: chain}
}
