package domain

import (
	"math/big"
	"time"
)

// WithdrawFunction is the name of the watched contract function.
const WithdrawFunction = "withdraw"

// WithdrawalEvent is a resolved call to the withdraw function. It is never
// mutated after the resolver returns it.
type WithdrawalEvent struct {
	Hash            string
	Chain           string
	BlockNumber     uint64
	Status          bool // true = executed without reverting
	ContractAddress string
	Function        string
	Params          WithdrawParams
	Timestamp       time.Time // UTC time of the containing block
	GasUsed         uint64
	ExplorerURL     string
}

// Failed reports whether the withdrawal reverted.
func (e *WithdrawalEvent) Failed() bool {
	return !e.Status
}

// WithdrawParams holds the decoded arguments of
// withdraw(uint256,address,uint256,uint8,bytes32,bytes32).
//
// A nil pointer or empty string means the field could not be decoded and
// must be read as unknown, never as zero.
type WithdrawParams struct {
	ID     *big.Int
	Trader string
	Amount *big.Int
	V      *uint8
	R      string
	S      string
}

// Complete reports whether every parameter was decoded.
func (p WithdrawParams) Complete() bool {
	return p.ID != nil && p.Trader != "" && p.Amount != nil && p.V != nil && p.R != "" && p.S != ""
}

// Empty reports whether no parameter was decoded.
func (p WithdrawParams) Empty() bool {
	return p.ID == nil && p.Trader == "" && p.Amount == nil && p.V == nil && p.R == "" && p.S == ""
}
