package chain

import (
	"context"
	"errors"
	"math/big"
	"time"
)

// ErrNotFound is returned when the node has no record of the requested
// transaction or receipt yet.
var ErrNotFound = errors.New("not found")

// Log is the subset of an event log the scanner needs.
type Log struct {
	TxHash      string
	BlockNumber uint64
	Index       uint
	Removed     bool
}

// Transaction is a mined transaction's call data.
type Transaction struct {
	Hash        string
	To          string // empty for contract creation
	Input       []byte
	BlockNumber uint64 // 0 while pending
}

// Receipt is the execution outcome of a transaction.
type Receipt struct {
	Status      uint64 // 1 = success, 0 = reverted
	GasUsed     uint64
	BlockNumber uint64
}

// LedgerClient is the read-only view of one chain used by the scan pass.
// Implementations apply their own retry and rate limiting; callers treat
// any returned error other than ErrNotFound as transient for the pass.
type LedgerClient interface {
	// ChainID returns the configured chain identifier
	ChainID() string

	// BlockNumber returns the current head height
	BlockNumber(ctx context.Context) (uint64, error)

	// Logs returns every log emitted by address in [from, to] (inclusive)
	Logs(ctx context.Context, address string, from, to uint64) ([]Log, error)

	// Transaction fetches a transaction by hash
	Transaction(ctx context.Context, hash string) (*Transaction, error)

	// Receipt fetches a receipt by transaction hash
	Receipt(ctx context.Context, hash string) (*Receipt, error)

	// BlockTime returns the UTC timestamp of block n
	BlockTime(ctx context.Context, n uint64) (time.Time, error)
}

// BalanceReader reads contract balances for the balance checker.
type BalanceReader interface {
	// NativeBalance returns the gas token balance of account in wei
	NativeBalance(ctx context.Context, account string) (*big.Int, error)

	// TokenBalance returns the ERC20 balance of account and the token decimals
	TokenBalance(ctx context.Context, token, account string) (*big.Int, uint8, error)
}

// Client is a chain endpoint that can serve both scanning and balances.
type Client interface {
	LedgerClient
	BalanceReader
	Close()
}
