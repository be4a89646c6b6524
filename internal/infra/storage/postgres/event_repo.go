package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/withdrawal-watcher/internal/core/domain"
	"github.com/vietddude/withdrawal-watcher/internal/infra/storage"
)

// EventRepo implements storage.EventRepository using PostgreSQL.
type EventRepo struct {
	db *DB
}

// NewEventRepo creates a new PostgreSQL event repository.
func NewEventRepo(db *DB) *EventRepo {
	return &EventRepo{db: db}
}

type eventRow struct {
	ChainID         string    `db:"chain_id"`
	TxHash          string    `db:"tx_hash"`
	BlockNumber     int64     `db:"block_number"`
	Status          bool      `db:"status"`
	ContractAddress string    `db:"contract_address"`
	FunctionName    string    `db:"function_name"`
	Params          []byte    `db:"params"`
	BlockTime       time.Time `db:"block_time"`
	GasUsed         int64     `db:"gas_used"`
	ExplorerURL     string    `db:"explorer_url"`
}

func (e *eventRow) toDomain() (*domain.WithdrawalEvent, error) {
	var params storage.ParamsRecord
	if len(e.Params) > 0 {
		if err := json.Unmarshal(e.Params, &params); err != nil {
			return nil, fmt.Errorf("event %s: invalid params: %w", e.TxHash, err)
		}
	}
	rec := storage.EventRecord{
		Hash:            e.TxHash,
		Chain:           e.ChainID,
		BlockNumber:     uint64(e.BlockNumber),
		Status:          e.Status,
		ContractAddress: e.ContractAddress,
		Function:        e.FunctionName,
		Params:          params,
		Timestamp:       e.BlockTime,
		GasUsed:         uint64(e.GasUsed),
		ExplorerURL:     e.ExplorerURL,
	}
	return rec.ToDomain()
}

// Load returns every event grouped by chain in insertion order.
func (r *EventRepo) Load(ctx context.Context) (map[string][]*domain.WithdrawalEvent, error) {
	query := `
		SELECT chain_id, tx_hash, block_number, status, contract_address, function_name,
		       params, block_time, gas_used, explorer_url
		FROM withdrawal_events
		ORDER BY chain_id, seq
	`

	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}

	return groupRows(rows), nil
}

// groupRows converts rows to events grouped by chain. Invalid rows are
// logged and skipped.
func groupRows(rows []eventRow) map[string][]*domain.WithdrawalEvent {
	out := make(map[string][]*domain.WithdrawalEvent)
	for i := range rows {
		ev, err := rows[i].toDomain()
		if err != nil {
			slog.Warn("skipping invalid event row",
				"chain", rows[i].ChainID, "tx_hash", rows[i].TxHash, "error", err)
			continue
		}
		out[ev.Chain] = append(out[ev.Chain], ev)
	}
	return out
}

// Append inserts events in a single transaction.
func (r *EventRepo) Append(ctx context.Context, events []*domain.WithdrawalEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO withdrawal_events (
			chain_id, tx_hash, block_number, status, contract_address, function_name,
			params, block_time, gas_used, explorer_url
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (chain_id, tx_hash) DO NOTHING
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, ev := range events {
		params, err := json.Marshal(storage.ToParamsRecord(ev.Params))
		if err != nil {
			return fmt.Errorf("event %s: encode params: %w", ev.Hash, err)
		}
		_, err = stmt.ExecContext(ctx,
			ev.Chain, ev.Hash, int64(ev.BlockNumber), ev.Status, ev.ContractAddress, ev.Function,
			params, ev.Timestamp.UTC(), int64(ev.GasUsed), ev.ExplorerURL,
		)
		if err != nil {
			return fmt.Errorf("failed to save event %s: %w", ev.Hash, err)
		}
	}

	return tx.Commit()
}

// DeleteOlderThan removes events with a block time before cutoff.
func (r *EventRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM withdrawal_events WHERE block_time < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
