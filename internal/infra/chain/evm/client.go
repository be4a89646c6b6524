package evm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"github.com/vietddude/withdrawal-watcher/internal/indexing/metrics"
	"github.com/vietddude/withdrawal-watcher/internal/infra/chain"
	"github.com/vietddude/withdrawal-watcher/internal/infra/rpc"
)

const erc20ABI = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"}
]`

var parsedERC20 = mustParseABI(erc20ABI)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Config configures one EVM endpoint.
type Config struct {
	ChainID           string
	URL               string
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	Retry             rpc.RetryConfig
}

// Client implements chain.Client over JSON-RPC.
type Client struct {
	chainID string
	eth     *ethclient.Client
	raw     *gethrpc.Client
	limiter *rpc.Limiter
	retry   rpc.RetryConfig
	timeout time.Duration
	log     *slog.Logger
}

var _ chain.Client = (*Client)(nil)

// Dial connects to the endpoint in cfg.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("chain %s: rpc url is empty", cfg.ChainID)
	}
	raw, err := gethrpc.DialContext(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("chain %s: dial rpc: %w", cfg.ChainID, err)
	}
	return NewClient(raw, cfg), nil
}

// NewClient wraps an already dialed rpc client.
func NewClient(raw *gethrpc.Client, cfg Config) *Client {
	retryCfg := cfg.Retry
	if retryCfg.MaxAttempts == 0 {
		retryCfg = rpc.DefaultRetryConfig
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		chainID: cfg.ChainID,
		eth:     ethclient.NewClient(raw),
		raw:     raw,
		limiter: rpc.NewLimiter(cfg.RequestsPerSecond),
		retry:   retryCfg,
		timeout: timeout,
		log:     slog.Default().With("component", "evm", "chain", cfg.ChainID),
	}
}

// ChainID returns the configured chain identifier.
func (c *Client) ChainID() string { return c.chainID }

// Close releases the underlying connection.
func (c *Client) Close() { c.raw.Close() }

// call wraps one RPC method with rate limiting, per-attempt timeout, retry
// and metrics.
func call[T any](ctx context.Context, c *Client, method string, fn func(context.Context) (T, error)) (T, error) {
	return rpc.DoValue(ctx, c.retry, func(ctx context.Context) (T, error) {
		var zero T
		if err := c.limiter.Wait(ctx); err != nil {
			return zero, err
		}
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		start := time.Now()
		v, err := fn(attemptCtx)
		metrics.RPCCallsTotal.WithLabelValues(c.chainID, method).Inc()
		metrics.RPCLatency.WithLabelValues(c.chainID, method).Observe(time.Since(start).Seconds())
		if errors.Is(err, chain.ErrNotFound) {
			return v, rpc.Permanent(err)
		}
		if err != nil {
			action := rpc.ClassifyError(err)
			metrics.RPCErrorsTotal.WithLabelValues(c.chainID, method, action.String()).Inc()
			c.log.Debug("rpc call failed", "method", method, "action", action.String(), "error", err)
		}
		return v, err
	})
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := call(ctx, c, "eth_blockNumber", func(ctx context.Context) (uint64, error) {
		return c.eth.BlockNumber(ctx)
	})
	if err != nil {
		return 0, fmt.Errorf("eth_blockNumber failed: %w", err)
	}
	return n, nil
}

func (c *Client) Logs(ctx context.Context, address string, from, to uint64) ([]chain.Log, error) {
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{common.HexToAddress(address)},
	}
	logs, err := call(ctx, c, "eth_getLogs", func(ctx context.Context) ([]chain.Log, error) {
		raw, err := c.eth.FilterLogs(ctx, q)
		if err != nil {
			return nil, err
		}
		out := make([]chain.Log, 0, len(raw))
		for _, l := range raw {
			out = append(out, chain.Log{
				TxHash:      l.TxHash.Hex(),
				BlockNumber: l.BlockNumber,
				Index:       l.Index,
				Removed:     l.Removed,
			})
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("eth_getLogs [%d,%d] failed: %w", from, to, err)
	}
	return logs, nil
}

// rpcTransaction is decoded directly so that transaction types unknown to
// go-ethereum (L2 system transactions) still resolve.
type rpcTransaction struct {
	Hash        common.Hash     `json:"hash"`
	To          *common.Address `json:"to"`
	Input       hexutil.Bytes   `json:"input"`
	BlockNumber *hexutil.Big    `json:"blockNumber"`
}

type rpcReceipt struct {
	Status      hexutil.Uint64 `json:"status"`
	GasUsed     hexutil.Uint64 `json:"gasUsed"`
	BlockNumber *hexutil.Big   `json:"blockNumber"`
}

func (c *Client) Transaction(ctx context.Context, hash string) (*chain.Transaction, error) {
	tx, err := call(ctx, c, "eth_getTransactionByHash", func(ctx context.Context) (*chain.Transaction, error) {
		var raw *rpcTransaction
		if err := c.raw.CallContext(ctx, &raw, "eth_getTransactionByHash", common.HexToHash(hash)); err != nil {
			return nil, err
		}
		if raw == nil {
			return nil, chain.ErrNotFound
		}
		tx := &chain.Transaction{Hash: raw.Hash.Hex(), Input: raw.Input}
		if raw.To != nil {
			tx.To = raw.To.Hex()
		}
		if raw.BlockNumber != nil {
			tx.BlockNumber = raw.BlockNumber.ToInt().Uint64()
		}
		return tx, nil
	})
	if err != nil {
		return nil, fmt.Errorf("eth_getTransactionByHash %s: %w", hash, err)
	}
	return tx, nil
}

func (c *Client) Receipt(ctx context.Context, hash string) (*chain.Receipt, error) {
	r, err := call(ctx, c, "eth_getTransactionReceipt", func(ctx context.Context) (*chain.Receipt, error) {
		var raw *rpcReceipt
		if err := c.raw.CallContext(ctx, &raw, "eth_getTransactionReceipt", common.HexToHash(hash)); err != nil {
			return nil, err
		}
		if raw == nil {
			return nil, chain.ErrNotFound
		}
		r := &chain.Receipt{Status: uint64(raw.Status), GasUsed: uint64(raw.GasUsed)}
		if raw.BlockNumber != nil {
			r.BlockNumber = raw.BlockNumber.ToInt().Uint64()
		}
		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("eth_getTransactionReceipt %s: %w", hash, err)
	}
	return r, nil
}

func (c *Client) BlockTime(ctx context.Context, n uint64) (time.Time, error) {
	ts, err := call(ctx, c, "eth_getBlockByNumber", func(ctx context.Context) (uint64, error) {
		h, err := c.eth.HeaderByNumber(ctx, new(big.Int).SetUint64(n))
		if errors.Is(err, ethereum.NotFound) {
			return 0, chain.ErrNotFound
		}
		if err != nil {
			return 0, err
		}
		return h.Time, nil
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("block %d header: %w", n, err)
	}
	return time.Unix(int64(ts), 0).UTC(), nil
}

func (c *Client) NativeBalance(ctx context.Context, account string) (*big.Int, error) {
	bal, err := call(ctx, c, "eth_getBalance", func(ctx context.Context) (*big.Int, error) {
		return c.eth.BalanceAt(ctx, common.HexToAddress(account), nil)
	})
	if err != nil {
		return nil, fmt.Errorf("eth_getBalance %s: %w", account, err)
	}
	return bal, nil
}

func (c *Client) TokenBalance(ctx context.Context, token, account string) (*big.Int, uint8, error) {
	tokenAddr := common.HexToAddress(token)

	balData, err := parsedERC20.Pack("balanceOf", common.HexToAddress(account))
	if err != nil {
		return nil, 0, err
	}
	out, err := c.ethCall(ctx, tokenAddr, balData)
	if err != nil {
		return nil, 0, fmt.Errorf("balanceOf %s: %w", token, err)
	}
	vals, err := parsedERC20.Unpack("balanceOf", out)
	if err != nil || len(vals) != 1 {
		return nil, 0, fmt.Errorf("balanceOf %s: decode: %v", token, err)
	}
	balance, ok := vals[0].(*big.Int)
	if !ok {
		return nil, 0, fmt.Errorf("balanceOf %s: unexpected type %T", token, vals[0])
	}

	decData, err := parsedERC20.Pack("decimals")
	if err != nil {
		return nil, 0, err
	}
	out, err = c.ethCall(ctx, tokenAddr, decData)
	if err != nil {
		return nil, 0, fmt.Errorf("decimals %s: %w", token, err)
	}
	vals, err = parsedERC20.Unpack("decimals", out)
	if err != nil || len(vals) != 1 {
		return nil, 0, fmt.Errorf("decimals %s: decode: %v", token, err)
	}
	decimals, ok := vals[0].(uint8)
	if !ok {
		return nil, 0, fmt.Errorf("decimals %s: unexpected type %T", token, vals[0])
	}
	return balance, decimals, nil
}

func (c *Client) ethCall(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return call(ctx, c, "eth_call", func(ctx context.Context) ([]byte, error) {
		return c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	})
}
