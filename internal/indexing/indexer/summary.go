package indexer

import "time"

// ChainResult is the outcome of one chain inside a pass.
type ChainResult struct {
	Chain      string
	From       uint64
	To         uint64
	Scanned    bool // false when the chain was up to date or skipped
	Candidates int
	New        int
	Failures   int
	Skipped    int
	Alerted    int
	Duration   time.Duration
	Err        error
}

// Summary describes a whole pass.
type Summary struct {
	Cycle          string
	StartedAt      time.Time
	FinishedAt     time.Time
	Chains         []ChainResult
	PrunedEvents   int
	EvictedHashes  int
	ProcessedCount int
	Canceled       bool
}

// NewEvents sums new events over all chains.
func (s *Summary) NewEvents() int {
	n := 0
	for _, c := range s.Chains {
		n += c.New
	}
	return n
}

// Errors returns the chains that failed.
func (s *Summary) Errors() []ChainResult {
	var out []ChainResult
	for _, c := range s.Chains {
		if c.Err != nil {
			out = append(out, c)
		}
	}
	return out
}
