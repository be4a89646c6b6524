package health

import (
	"strconv"
	"time"

	"github.com/vietddude/withdrawal-watcher/internal/core/domain"
)

// EventView is the JSON form of a withdrawal event. Params only holds
// fields that were decoded.
type EventView struct {
	Hash        string            `json:"hash"`
	Chain       string            `json:"chain"`
	BlockNumber uint64            `json:"block_number"`
	Status      bool              `json:"status"`
	Contract    string            `json:"contract_address"`
	Function    string            `json:"function_name"`
	Params      map[string]string `json:"decoded_params"`
	Timestamp   time.Time         `json:"timestamp"`
	GasUsed     uint64            `json:"gas_used"`
	ExplorerURL string            `json:"explorer_url"`
}

// NewEventView converts an event.
func NewEventView(ev *domain.WithdrawalEvent) EventView {
	p := make(map[string]string)
	if ev.Params.ID != nil {
		p["id"] = ev.Params.ID.String()
	}
	if ev.Params.Trader != "" {
		p["trader"] = ev.Params.Trader
	}
	if ev.Params.Amount != nil {
		p["amount"] = ev.Params.Amount.String()
	}
	if ev.Params.V != nil {
		p["v"] = strconv.FormatUint(uint64(*ev.Params.V), 10)
	}
	if ev.Params.R != "" {
		p["r"] = ev.Params.R
	}
	if ev.Params.S != "" {
		p["s"] = ev.Params.S
	}
	return EventView{
		Hash:        ev.Hash,
		Chain:       ev.Chain,
		BlockNumber: ev.BlockNumber,
		Status:      ev.Status,
		Contract:    ev.ContractAddress,
		Function:    ev.Function,
		Params:      p,
		Timestamp:   ev.Timestamp.UTC(),
		GasUsed:     ev.GasUsed,
		ExplorerURL: ev.ExplorerURL,
	}
}

// ChainStatsView is one chain inside a statistics response.
type ChainStatsView struct {
	Chain        string      `json:"chain"`
	SuccessCount int         `json:"success_count"`
	FailCount    int         `json:"fail_count"`
	TotalCount   int         `json:"total_count"`
	Successful   []EventView `json:"successful"`
	Failed       []EventView `json:"failed"`
}

// StatsView is the JSON form of a statistics window.
type StatsView struct {
	Start  time.Time        `json:"start"`
	End    time.Time        `json:"end"`
	Chains []ChainStatsView `json:"chains"`
	Totals domain.Totals    `json:"totals"`
}

// NewStatsView converts statistics.
func NewStatsView(st *domain.Statistics) StatsView {
	v := StatsView{Start: st.Start, End: st.End, Totals: st.Totals, Chains: []ChainStatsView{}}
	for _, c := range st.Chains {
		cv := ChainStatsView{
			Chain:        c.Chain,
			SuccessCount: c.SuccessCount,
			FailCount:    c.FailCount,
			TotalCount:   c.TotalCount,
			Successful:   make([]EventView, 0, len(c.Successful)),
			Failed:       make([]EventView, 0, len(c.Failed)),
		}
		for _, ev := range c.Successful {
			cv.Successful = append(cv.Successful, NewEventView(ev))
		}
		for _, ev := range c.Failed {
			cv.Failed = append(cv.Failed, NewEventView(ev))
		}
		v.Chains = append(v.Chains, cv)
	}
	return v
}
