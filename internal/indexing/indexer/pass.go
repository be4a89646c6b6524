package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/withdrawal-watcher/internal/core/cursor"
	"github.com/vietddude/withdrawal-watcher/internal/core/domain"
	"github.com/vietddude/withdrawal-watcher/internal/indexing/metrics"
	"github.com/vietddude/withdrawal-watcher/internal/indexing/resolver"
)

// ErrChainSkipped is recorded for chains not started because the pass was
// canceled.
var ErrChainSkipped = errors.New("chain skipped: pass canceled")

// Pass runs scan cycles. Concurrent calls to Run are serialized.
type Pass struct {
	cfg Config
	log *slog.Logger
	now func() time.Time

	runMu sync.Mutex

	mu   sync.RWMutex
	last *Summary
}

// NewPass creates a pass runner.
func NewPass(cfg Config) *Pass {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ChainTimeout <= 0 {
		cfg.ChainTimeout = 10 * time.Minute
	}
	return &Pass{
		cfg: cfg,
		log: slog.Default().With("component", "indexer"),
		now: time.Now,
	}
}

// LastSummary returns the most recent completed pass, or nil.
func (p *Pass) LastSummary() *Summary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}

// Run scans every chain once. Cancellation is observed between chains; a
// chain already started finishes under its own timeout.
func (p *Pass) Run(ctx context.Context) *Summary {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	sum := &Summary{Cycle: uuid.NewString(), StartedAt: p.now().UTC()}
	log := p.log.With("cycle", sum.Cycle)
	log.Info("starting scan pass", "chains", len(p.cfg.Chains))

	for _, ch := range p.cfg.Chains {
		if ctx.Err() != nil {
			sum.Canceled = true
			sum.Chains = append(sum.Chains, ChainResult{Chain: ch.ID, Err: ErrChainSkipped})
			metrics.ScanPassesTotal.WithLabelValues(ch.ID, "skipped").Inc()
			continue
		}

		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.ChainTimeout)
		res := p.runChain(cctx, log.With("chain", ch.ID), ch)
		cancel()

		result := "ok"
		if res.Err != nil {
			result = "error"
			log.Error("chain pass failed", "chain", ch.ID, "error", res.Err)
		}
		metrics.ScanPassesTotal.WithLabelValues(ch.ID, result).Inc()
		metrics.ScanDuration.WithLabelValues(ch.ID).Observe(res.Duration.Seconds())
		sum.Chains = append(sum.Chains, res)
	}

	p.housekeep(context.WithoutCancel(ctx), log, sum)

	sum.FinishedAt = p.now().UTC()
	log.Info("scan pass finished",
		"new_events", sum.NewEvents(),
		"errors", len(sum.Errors()),
		"duration", sum.FinishedAt.Sub(sum.StartedAt))

	p.mu.Lock()
	p.last = sum
	p.mu.Unlock()
	return sum
}

func (p *Pass) setState(chainID string, s cursor.State, reason string) {
	if err := p.cfg.Cursor.SetState(chainID, s, reason); err != nil {
		p.log.Debug("state transition rejected", "chain", chainID, "error", err)
	}
}

func (p *Pass) runChain(ctx context.Context, log *slog.Logger, ch Chain) (res ChainResult) {
	start := time.Now()
	res.Chain = ch.ID
	defer func() {
		res.Duration = time.Since(start)
		reason := "pass complete"
		if res.Err != nil {
			reason = res.Err.Error()
		}
		p.setState(ch.ID, cursor.StateIdle, reason)
	}()

	p.setState(ch.ID, cursor.StateScanning, "pass started")

	head, err := ch.Head.BlockNumber(ctx)
	if err != nil {
		res.Err = fmt.Errorf("get block number: %w", err)
		return res
	}
	metrics.ChainLatestBlock.WithLabelValues(ch.ID).Set(float64(head))

	from, to, ok, err := p.cfg.Cursor.Window(ctx, ch.ID, head, p.cfg.InitialRange)
	if err != nil {
		res.Err = err
		return res
	}
	res.From, res.To = from, to
	if !ok {
		log.Debug("chain up to date", "head", head)
		return res
	}

	log.Info("scanning blocks", "from", from, "to", to)
	hashes, err := ch.Scanner.Scan(ctx, from, to)
	if err != nil {
		res.Err = fmt.Errorf("scan %d-%d: %w", from, to, err)
		return res
	}
	res.Scanned = true

	fresh := make([]string, 0, len(hashes))
	for _, h := range hashes {
		if !p.cfg.Processed.Contains(h) {
			fresh = append(fresh, h)
		}
	}
	res.Candidates = len(fresh)

	p.setState(ch.ID, cursor.StateResolving, fmt.Sprintf("%d candidates", len(fresh)))
	events, skipped, err := p.resolveAll(ctx, ch, fresh)
	res.Skipped = skipped
	if err != nil {
		res.Err = err
		return res
	}

	p.setState(ch.ID, cursor.StatePersisting, fmt.Sprintf("%d events", len(events)))
	var failed []*domain.WithdrawalEvent
	for _, ev := range events {
		p.cfg.Processed.Add(ev.Hash)
		p.cfg.Ledger.Append(ev)
		status := "success"
		if ev.Failed() {
			status = "failed"
			failed = append(failed, ev)
		}
		metrics.WithdrawalsTotal.WithLabelValues(ch.ID, status).Inc()
	}
	res.New = len(events)
	res.Failures = len(failed)

	p.persist(ctx, log)
	if err := p.cfg.Cursor.Advance(ctx, ch.ID, to); err != nil {
		metrics.PersistErrorsTotal.WithLabelValues("cursor").Inc()
		log.Error("failed to persist cursor", "block", to, "error", err)
	}
	metrics.CursorBlock.WithLabelValues(ch.ID).Set(float64(to))

	for _, ev := range failed {
		if p.cfg.Alerts != nil && p.cfg.Alerts.DispatchFailure(ctx, ev) {
			res.Alerted++
		}
	}

	if res.New > 0 {
		log.Info("recorded withdrawals", "new", res.New, "failed", res.Failures, "skipped", res.Skipped)
	}
	return res
}

// resolveAll resolves hashes with bounded concurrency. Events keep the
// order of hashes. Skip errors drop a hash; any other error fails the chain.
func (p *Pass) resolveAll(ctx context.Context, ch Chain, hashes []string) ([]*domain.WithdrawalEvent, int, error) {
	out := make([]*domain.WithdrawalEvent, len(hashes))
	skips := make([]error, len(hashes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i, h := range hashes {
		g.Go(func() error {
			ev, err := ch.Resolver.Resolve(gctx, h)
			switch {
			case err == nil:
				out[i] = ev
			case resolver.IsSkip(err):
				skips[i] = err
			default:
				return fmt.Errorf("resolve %s: %w", h, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	events := make([]*domain.WithdrawalEvent, 0, len(hashes))
	skipped := 0
	for i := range hashes {
		if skips[i] != nil {
			skipped++
			metrics.SkippedTotal.WithLabelValues(ch.ID, resolver.SkipReason(skips[i])).Inc()
			continue
		}
		events = append(events, out[i])
	}
	return events, skipped, nil
}

func (p *Pass) persist(ctx context.Context, log *slog.Logger) {
	if err := p.cfg.Processed.Flush(ctx); err != nil {
		metrics.PersistErrorsTotal.WithLabelValues("processed").Inc()
		log.Error("failed to persist processed hashes", "error", err)
	}
	if err := p.cfg.Ledger.Flush(ctx); err != nil {
		metrics.PersistErrorsTotal.WithLabelValues("events").Inc()
		log.Error("failed to persist events", "error", err)
	}
}

// housekeep applies retention to the ledger and the cap to the processed set.
func (p *Pass) housekeep(ctx context.Context, log *slog.Logger, sum *Summary) {
	if p.cfg.Retention > 0 {
		sum.PrunedEvents = p.cfg.Ledger.Prune(p.now(), p.cfg.Retention)
	}
	if p.cfg.ProcessedCap > 0 {
		sum.EvictedHashes = p.cfg.Processed.Prune(p.cfg.ProcessedCap)
	}
	if sum.PrunedEvents > 0 || sum.EvictedHashes > 0 {
		log.Info("pruned state", "events", sum.PrunedEvents, "hashes", sum.EvictedHashes)
		p.persist(ctx, log)
	}

	sum.ProcessedCount = p.cfg.Processed.Len()
	metrics.ProcessedSetSize.Set(float64(sum.ProcessedCount))
	for chain, n := range p.cfg.Ledger.Counts() {
		metrics.LedgerEvents.WithLabelValues(chain).Set(float64(n))
	}
}

// Status reports cursor, head and pass state per chain. Chains whose head
// cannot be read report LatestBlock 0.
func (p *Pass) Status(ctx context.Context) []Status {
	counts := p.cfg.Ledger.Counts()
	out := make([]Status, 0, len(p.cfg.Chains))
	for _, ch := range p.cfg.Chains {
		m := p.cfg.Cursor.GetMetrics(ch.ID)
		st := Status{
			ChainID:         ch.ID,
			State:           string(p.cfg.Cursor.GetState(ch.ID)),
			BlocksPerSecond: m.BlocksPerSecond,
			Passes:          m.Passes,
			BlocksScanned:   m.BlocksScanned,
			Events:          counts[ch.ID],
		}
		if c, err := p.cfg.Cursor.Get(ctx, ch.ID); err == nil {
			st.CurrentBlock = c.BlockNumber
		}
		if head, err := ch.Head.BlockNumber(ctx); err == nil {
			st.LatestBlock = head
			if head > st.CurrentBlock {
				st.Lag = head - st.CurrentBlock
			}
		}
		out = append(out, st)
	}
	return out
}
