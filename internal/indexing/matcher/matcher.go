// Package matcher recognises calls to a contract function by selector.
package matcher

import (
	"bytes"
	"encoding/hex"

	"github.com/ethereum/go-ethereum/crypto"
)

// WithdrawSignature is the canonical signature of the watched function.
const WithdrawSignature = "withdraw(uint256,address,uint256,uint8,bytes32,bytes32)"

// Matcher tests call data against a fixed 4-byte selector.
type Matcher struct {
	selector [4]byte
}

// Selector returns the first four bytes of keccak256(signature).
func Selector(signature string) [4]byte {
	var sel [4]byte
	copy(sel[:], crypto.Keccak256([]byte(signature))[:4])
	return sel
}

// New builds a matcher for signature.
func New(signature string) *Matcher {
	return &Matcher{selector: Selector(signature)}
}

// NewWithdraw builds a matcher for WithdrawSignature.
func NewWithdraw() *Matcher {
	return New(WithdrawSignature)
}

// Matches reports whether input starts with the selector.
func (m *Matcher) Matches(input []byte) bool {
	if len(input) < 4 {
		return false
	}
	return bytes.Equal(input[:4], m.selector[:])
}

// Selector returns the selector bytes.
func (m *Matcher) Selector() [4]byte {
	return m.selector
}

// Hex returns the selector as 0x-prefixed hex.
func (m *Matcher) Hex() string {
	return "0x" + hex.EncodeToString(m.selector[:])
}
