package storage

import (
	"fmt"
	"math/big"
	"time"

	"github.com/vietddude/withdrawal-watcher/internal/core/domain"
)

// EventRecord is the persisted shape of a WithdrawalEvent. Big integers are
// decimal strings and the timestamp is RFC 3339 so the format stays stable
// across backends.
type EventRecord struct {
	Hash            string       `json:"hash"`
	Chain           string       `json:"chain"`
	BlockNumber     uint64       `json:"block_number"`
	Status          bool         `json:"status"`
	ContractAddress string       `json:"contract_address"`
	Function        string       `json:"function_name"`
	Params          ParamsRecord `json:"decoded_params"`
	Timestamp       time.Time    `json:"timestamp"`
	GasUsed         uint64       `json:"gas_used"`
	ExplorerURL     string       `json:"explorer_url"`
}

// ParamsRecord is the persisted shape of WithdrawParams. Absent fields are
// omitted rather than written as zero.
type ParamsRecord struct {
	ID     string `json:"id,omitempty"`
	Trader string `json:"trader,omitempty"`
	Amount string `json:"amount,omitempty"`
	V      *uint8 `json:"v,omitempty"`
	R      string `json:"r,omitempty"`
	S      string `json:"s,omitempty"`
}

// ToRecord converts an event to its persisted shape.
func ToRecord(ev *domain.WithdrawalEvent) EventRecord {
	return EventRecord{
		Hash:            ev.Hash,
		Chain:           ev.Chain,
		BlockNumber:     ev.BlockNumber,
		Status:          ev.Status,
		ContractAddress: ev.ContractAddress,
		Function:        ev.Function,
		Params:          ToParamsRecord(ev.Params),
		Timestamp:       ev.Timestamp.UTC(),
		GasUsed:         ev.GasUsed,
		ExplorerURL:     ev.ExplorerURL,
	}
}

// ToParamsRecord converts decoded params to their persisted shape.
func ToParamsRecord(p domain.WithdrawParams) ParamsRecord {
	rec := ParamsRecord{Trader: p.Trader, R: p.R, S: p.S}
	if p.ID != nil {
		rec.ID = p.ID.String()
	}
	if p.Amount != nil {
		rec.Amount = p.Amount.String()
	}
	if p.V != nil {
		v := *p.V
		rec.V = &v
	}
	return rec
}

// ToDomain converts a stored record back to an event.
func (r EventRecord) ToDomain() (*domain.WithdrawalEvent, error) {
	params, err := r.Params.ToDomain()
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", r.Hash, err)
	}
	return &domain.WithdrawalEvent{
		Hash:            r.Hash,
		Chain:           r.Chain,
		BlockNumber:     r.BlockNumber,
		Status:          r.Status,
		ContractAddress: r.ContractAddress,
		Function:        r.Function,
		Params:          params,
		Timestamp:       r.Timestamp.UTC(),
		GasUsed:         r.GasUsed,
		ExplorerURL:     r.ExplorerURL,
	}, nil
}

// ToDomain converts stored params back to WithdrawParams.
func (r ParamsRecord) ToDomain() (domain.WithdrawParams, error) {
	p := domain.WithdrawParams{Trader: r.Trader, R: r.R, S: r.S}
	if r.ID != "" {
		id, ok := new(big.Int).SetString(r.ID, 10)
		if !ok {
			return p, fmt.Errorf("invalid id %q", r.ID)
		}
		p.ID = id
	}
	if r.Amount != "" {
		amount, ok := new(big.Int).SetString(r.Amount, 10)
		if !ok {
			return p, fmt.Errorf("invalid amount %q", r.Amount)
		}
		p.Amount = amount
	}
	if r.V != nil {
		v := *r.V
		p.V = &v
	}
	return p, nil
}
