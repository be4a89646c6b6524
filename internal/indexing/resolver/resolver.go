// Package resolver turns a candidate transaction hash into a WithdrawalEvent.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vietddude/withdrawal-watcher/internal/core/domain"
	"github.com/vietddude/withdrawal-watcher/internal/indexing/matcher"
	"github.com/vietddude/withdrawal-watcher/internal/indexing/metrics"
	"github.com/vietddude/withdrawal-watcher/internal/infra/chain"
)

var (
	// ErrNotTargetFunction is returned when the transaction input does not
	// call the watched function.
	ErrNotTargetFunction = errors.New("not a target function call")

	// ErrReceiptUnavailable is returned when the node has no receipt, for
	// example after a reorg dropped the transaction.
	ErrReceiptUnavailable = errors.New("receipt unavailable")

	// ErrTransactionUnavailable is returned when the node no longer knows
	// the transaction.
	ErrTransactionUnavailable = errors.New("transaction unavailable")
)

// IsSkip reports whether err means the candidate should be dropped rather
// than failing the pass.
func IsSkip(err error) bool {
	return errors.Is(err, ErrNotTargetFunction) ||
		errors.Is(err, ErrReceiptUnavailable) ||
		errors.Is(err, ErrTransactionUnavailable)
}

// SkipReason returns a short label for a skip error, used in metrics.
func SkipReason(err error) string {
	switch {
	case errors.Is(err, ErrNotTargetFunction):
		return "not_target_function"
	case errors.Is(err, ErrReceiptUnavailable):
		return "receipt_unavailable"
	case errors.Is(err, ErrTransactionUnavailable):
		return "transaction_unavailable"
	default:
		return "other"
	}
}

// Source is the part of the ledger client the resolver uses.
type Source interface {
	Transaction(ctx context.Context, hash string) (*chain.Transaction, error)
	Receipt(ctx context.Context, hash string) (*chain.Receipt, error)
	BlockTime(ctx context.Context, n uint64) (time.Time, error)
}

// Resolver resolves candidates for one chain.
type Resolver struct {
	chainID     string
	contract    string
	explorerURL string
	client      Source
	matcher     *matcher.Matcher
	log         *slog.Logger
}

// New creates a resolver for chainID. contract is used when a transaction
// has no recipient.
func New(chainID, contract, explorerURL string, client Source, m *matcher.Matcher) *Resolver {
	return &Resolver{
		chainID:     chainID,
		contract:    contract,
		explorerURL: strings.TrimRight(explorerURL, "/"),
		client:      client,
		matcher:     m,
		log:         slog.Default().With("component", "resolver", "chain", chainID),
	}
}

// Resolve fetches the transaction, receipt and block time for hash. Skip
// conditions are reported with the package sentinels; any other error is
// transient.
func (r *Resolver) Resolve(ctx context.Context, hash string) (*domain.WithdrawalEvent, error) {
	tx, err := r.client.Transaction(ctx, hash)
	if errors.Is(err, chain.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", hash, ErrTransactionUnavailable)
	}
	if err != nil {
		return nil, err
	}
	if !r.matcher.Matches(tx.Input) {
		return nil, fmt.Errorf("%s: %w", hash, ErrNotTargetFunction)
	}

	receipt, err := r.client.Receipt(ctx, hash)
	if errors.Is(err, chain.ErrNotFound) {
		r.log.Warn("receipt not found, skipping", "tx", hash)
		return nil, fmt.Errorf("%s: %w", hash, ErrReceiptUnavailable)
	}
	if err != nil {
		return nil, err
	}

	blockNumber := receipt.BlockNumber
	if blockNumber == 0 {
		blockNumber = tx.BlockNumber
	}
	ts, err := r.client.BlockTime(ctx, blockNumber)
	if err != nil {
		return nil, err
	}

	params, full := DecodeWithdraw(tx.Input[4:])
	if !full {
		metrics.DecodeFallbackTotal.WithLabelValues(r.chainID).Inc()
		r.log.Warn("withdraw params decoded partially", "tx", hash, "complete", params.Complete())
	}

	contract := tx.To
	if contract == "" {
		contract = r.contract
	}

	return &domain.WithdrawalEvent{
		Hash:            hash,
		Chain:           r.chainID,
		BlockNumber:     blockNumber,
		Status:          receipt.Status == 1,
		ContractAddress: contract,
		Function:        domain.WithdrawFunction,
		Params:          params,
		Timestamp:       ts.UTC(),
		GasUsed:         receipt.GasUsed,
		ExplorerURL:     r.ExplorerTxURL(hash),
	}, nil
}

// ExplorerTxURL links to hash on the chain's block explorer.
func (r *Resolver) ExplorerTxURL(hash string) string {
	if r.explorerURL == "" {
		return ""
	}
	return r.explorerURL + "/tx/" + hash
}
