package domain

// NativeToken marks a balance read with eth_getBalance instead of an ERC20 call.
const NativeToken = "native"

// BalanceInfo is one token balance held by a watched contract.
type BalanceInfo struct {
	Chain           string
	ContractAddress string
	TokenSymbol     string
	TokenAddress    string // NativeToken for the chain's gas token
	Balance         float64
	Threshold       float64
	BelowThreshold  bool
	ExplorerURL     string
}

// CooldownKey identifies the balance for alert rate limiting.
func (b BalanceInfo) CooldownKey() string {
	return b.Chain + "_" + b.TokenSymbol
}
