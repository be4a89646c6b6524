package resolver

import (
	"encoding/hex"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/withdrawal-watcher/internal/core/domain"
)

const wordSize = 32

var withdrawArgs = mustArguments("uint256", "address", "uint256", "uint8", "bytes32", "bytes32")

func mustArguments(types ...string) abi.Arguments {
	args := make(abi.Arguments, 0, len(types))
	for _, t := range types {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			panic(err)
		}
		args = append(args, abi.Argument{Type: typ})
	}
	return args
}

// DecodeWithdraw decodes withdraw arguments from call data without the
// selector. full is false when the strict ABI decode failed and fields were
// recovered word by word; any field that could not be read is left unset.
func DecodeWithdraw(data []byte) (params domain.WithdrawParams, full bool) {
	vals, err := withdrawArgs.Unpack(data)
	if err == nil && len(vals) == 6 {
		if p, ok := fromValues(vals); ok {
			return p, true
		}
	}
	return decodeWords(data), false
}

func fromValues(vals []any) (domain.WithdrawParams, bool) {
	id, ok1 := vals[0].(*big.Int)
	trader, ok2 := vals[1].(common.Address)
	amount, ok3 := vals[2].(*big.Int)
	v, ok4 := vals[3].(uint8)
	r, ok5 := vals[4].([32]byte)
	s, ok6 := vals[5].([32]byte)
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6) {
		return domain.WithdrawParams{}, false
	}
	return domain.WithdrawParams{
		ID:     id,
		Trader: trader.Hex(),
		Amount: amount,
		V:      &v,
		R:      "0x" + hex.EncodeToString(r[:]),
		S:      "0x" + hex.EncodeToString(s[:]),
	}, true
}

// decodeWords reads each static argument from its own 32-byte slot.
func decodeWords(data []byte) domain.WithdrawParams {
	var p domain.WithdrawParams
	word := func(i int) ([]byte, bool) {
		start := i * wordSize
		if len(data) < start+wordSize {
			return nil, false
		}
		return data[start : start+wordSize], true
	}

	if w, ok := word(0); ok {
		p.ID = new(big.Int).SetBytes(w)
	}
	if w, ok := word(1); ok && zeroPadded(w, 12) {
		p.Trader = common.BytesToAddress(w[12:]).Hex()
	}
	if w, ok := word(2); ok {
		p.Amount = new(big.Int).SetBytes(w)
	}
	if w, ok := word(3); ok && zeroPadded(w, 31) {
		v := w[31]
		p.V = &v
	}
	if w, ok := word(4); ok {
		p.R = "0x" + hex.EncodeToString(w)
	}
	if w, ok := word(5); ok {
		p.S = "0x" + hex.EncodeToString(w)
	}
	return p
}

func zeroPadded(w []byte, n int) bool {
	for _, b := range w[:n] {
		if b != 0 {
			return false
		}
	}
	return true
}
