// Package scanner turns a block range into candidate transaction hashes by
// querying contract logs in bounded sub-ranges.
package scanner

import (
	"context"
	"fmt"

	"github.com/vietddude/withdrawal-watcher/internal/indexing/metrics"
	"github.com/vietddude/withdrawal-watcher/internal/infra/chain"
)

// DefaultMaxRange is the widest sub-range most providers accept for eth_getLogs.
const DefaultMaxRange = 500

// Range is an inclusive block range.
type Range struct {
	From, To uint64
}

// Ranges splits [from, to] into consecutive ranges no wider than max blocks.
// It returns nil when from > to.
func Ranges(from, to, max uint64) []Range {
	if from > to {
		return nil
	}
	if max == 0 {
		max = DefaultMaxRange
	}
	var out []Range
	for start := from; start <= to; {
		end := start + max - 1
		if end > to || end < start { // clamp, including overflow
			end = to
		}
		out = append(out, Range{From: start, To: end})
		if end == to {
			break
		}
		start = end + 1
	}
	return out
}

// LogSource is the part of the ledger client the scanner uses.
type LogSource interface {
	Logs(ctx context.Context, address string, from, to uint64) ([]chain.Log, error)
}

// Scanner pulls logs for one contract on one chain.
type Scanner struct {
	chainID  string
	client   LogSource
	contract string
	maxRange uint64
}

// New creates a scanner. maxRange 0 means DefaultMaxRange.
func New(chainID string, client LogSource, contract string, maxRange uint64) *Scanner {
	if maxRange == 0 {
		maxRange = DefaultMaxRange
	}
	return &Scanner{chainID: chainID, client: client, contract: contract, maxRange: maxRange}
}

// Scan returns the unique transaction hashes of contract logs in [from, to],
// in first-seen order. The first failing sub-range aborts the scan and
// discards earlier results; retry is left to the caller.
func (s *Scanner) Scan(ctx context.Context, from, to uint64) ([]string, error) {
	ranges := Ranges(from, to, s.maxRange)
	if len(ranges) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{})
	var hashes []string
	for _, r := range ranges {
		metrics.LogQueriesTotal.WithLabelValues(s.chainID).Inc()
		logs, err := s.client.Logs(ctx, s.contract, r.From, r.To)
		if err != nil {
			return nil, fmt.Errorf("scan [%d,%d]: %w", r.From, r.To, err)
		}
		for _, l := range logs {
			if l.Removed {
				continue
			}
			if _, ok := seen[l.TxHash]; ok {
				continue
			}
			seen[l.TxHash] = struct{}{}
			hashes = append(hashes, l.TxHash)
		}
	}
	return hashes, nil
}
