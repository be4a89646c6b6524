// Package indexer runs scan passes: for each configured chain it scans new
// blocks for withdraw calls, records the resolved events and alerts on
// failures.
package indexer

import (
	"context"
	"time"

	"github.com/vietddude/withdrawal-watcher/internal/core/cursor"
	"github.com/vietddude/withdrawal-watcher/internal/core/domain"
)

// HeadSource reports the current chain height.
type HeadSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// CandidateScanner returns unique candidate hashes for an inclusive range.
type CandidateScanner interface {
	Scan(ctx context.Context, from, to uint64) ([]string, error)
}

// Resolver turns a candidate hash into an event.
type Resolver interface {
	Resolve(ctx context.Context, hash string) (*domain.WithdrawalEvent, error)
}

// FailureDispatcher alerts on a failed withdrawal.
type FailureDispatcher interface {
	DispatchFailure(ctx context.Context, ev *domain.WithdrawalEvent) bool
}

// Chain bundles the per-chain components of a pass.
type Chain struct {
	ID       string
	Head     HeadSource
	Scanner  CandidateScanner
	Resolver Resolver
}

// Config holds pass configuration.
type Config struct {
	Chains       []Chain // scanned in this order
	Cursor       cursor.Manager
	Processed    ProcessedSet
	Ledger       Ledger
	Alerts       FailureDispatcher
	InitialRange uint64
	ProcessedCap int
	Retention    time.Duration
	Workers      int
	ChainTimeout time.Duration
}

// ProcessedSet is the dedup store shared by all chains.
type ProcessedSet interface {
	Contains(hash string) bool
	Add(hash string)
	Len() int
	Prune(maxSize int) int
	Flush(ctx context.Context) error
}

// Ledger is the event ledger written by the pass.
type Ledger interface {
	Append(ev *domain.WithdrawalEvent)
	Counts() map[string]int
	Prune(now time.Time, horizon time.Duration) int
	Flush(ctx context.Context) error
}

// Status is a point-in-time view of one chain.
type Status struct {
	ChainID         string
	CurrentBlock    uint64
	LatestBlock     uint64
	Lag             uint64
	State           string
	BlocksPerSecond float64
	Passes          int
	BlocksScanned   uint64
	Events          int
}
