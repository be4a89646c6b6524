// Package control wires the watcher components together and owns their
// lifecycle.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/withdrawal-watcher/internal/core/config"
	"github.com/vietddude/withdrawal-watcher/internal/core/cursor"
	"github.com/vietddude/withdrawal-watcher/internal/core/worker"
	"github.com/vietddude/withdrawal-watcher/internal/indexing/alert"
	"github.com/vietddude/withdrawal-watcher/internal/indexing/balance"
	"github.com/vietddude/withdrawal-watcher/internal/indexing/dedup"
	"github.com/vietddude/withdrawal-watcher/internal/indexing/health"
	"github.com/vietddude/withdrawal-watcher/internal/indexing/indexer"
	"github.com/vietddude/withdrawal-watcher/internal/indexing/ledger"
	"github.com/vietddude/withdrawal-watcher/internal/indexing/matcher"
	"github.com/vietddude/withdrawal-watcher/internal/indexing/report"
	"github.com/vietddude/withdrawal-watcher/internal/indexing/resolver"
	"github.com/vietddude/withdrawal-watcher/internal/indexing/scanner"
	"github.com/vietddude/withdrawal-watcher/internal/indexing/stats"
	"github.com/vietddude/withdrawal-watcher/internal/indexing/throttle"
	"github.com/vietddude/withdrawal-watcher/internal/infra/chain"
	"github.com/vietddude/withdrawal-watcher/internal/infra/chain/evm"
	"github.com/vietddude/withdrawal-watcher/internal/infra/notify"
	"github.com/vietddude/withdrawal-watcher/internal/infra/notify/telegram"
	redisclient "github.com/vietddude/withdrawal-watcher/internal/infra/redis"
	"github.com/vietddude/withdrawal-watcher/internal/infra/storage"
	"github.com/vietddude/withdrawal-watcher/internal/infra/storage/kv"
	"github.com/vietddude/withdrawal-watcher/internal/infra/storage/memory"
	"github.com/vietddude/withdrawal-watcher/internal/infra/storage/postgres"
)

// Job names used by the scheduler and the status view.
const (
	JobScan    = "withdrawal_scan"
	JobBalance = "balance_check"
	JobReport  = "daily_report"
)

// Watcher is the main application struct that manages the component
// lifecycle.
type Watcher struct {
	cfg *config.AppConfig
	log *slog.Logger

	store     *storage.Store
	db        *postgres.DB
	redis     *redisclient.Client
	clients   map[string]chain.Client
	telegram  *telegram.Notifier
	cursorMgr *cursor.DefaultManager
	processed *dedup.ProcessedSet
	ledger    *ledger.Ledger

	pass      *indexer.Pass
	stats     *stats.Aggregator
	balances  *balance.Checker
	reporter  *report.Reporter
	alerts    *alert.Dispatcher
	scheduler *worker.Scheduler

	healthMon    *health.Monitor
	healthServer *health.Server
	grpcServer   *health.GRPCServer

	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}

	mu          sync.RWMutex
	lastScan    time.Time
	lastBalance time.Time
	lastReport  time.Time
}

// Option customises NewWatcher.
type Option func(*options)

type options struct {
	store    *storage.Store
	clients  map[string]chain.Client
	notifier notify.Notifier
}

// WithStore uses store instead of opening the configured backend.
func WithStore(store *storage.Store) Option {
	return func(o *options) { o.store = store }
}

// WithClients uses the given ledger clients instead of dialing rpc_url.
func WithClients(clients map[string]chain.Client) Option {
	return func(o *options) { o.clients = clients }
}

// WithNotifier replaces the Telegram notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// NewWatcher creates a Watcher with all dependencies initialised and the
// persisted state loaded.
func NewWatcher(ctx context.Context, cfg *config.AppConfig, opts ...Option) (*Watcher, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	w := &Watcher{
		cfg:     cfg,
		log:     slog.Default().With("component", "watcher"),
		clients: o.clients,
	}
	ok := false
	defer func() {
		if !ok {
			w.Close()
		}
	}()

	// 1. Storage
	if o.store != nil {
		w.store = o.store
	} else if err := w.openStore(ctx); err != nil {
		return nil, err
	}

	// 2. Redis: processed set and alert cooldowns
	var cooldown notify.Cooldown = notify.NewMemoryCooldown()
	if cfg.Redis.Enabled() {
		rc, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			w.log.Warn("Redis unavailable, using configured storage for processed hashes", "error", err)
		} else {
			w.redis = rc
			w.store.Processed = redisclient.NewProcessedRepo(rc)
			cooldown = redisclient.NewCooldown(rc)
			w.log.Info("Using Redis for processed hashes and alert cooldowns")
		}
	}

	// 3. Ledger clients
	if w.clients == nil {
		w.clients = make(map[string]chain.Client, len(cfg.Chains))
		for _, ch := range cfg.Chains {
			c, err := evm.Dial(ctx, evm.Config{
				ChainID:           ch.ID,
				URL:               ch.RPCURL,
				RequestTimeout:    ch.RequestTimeout,
				RequestsPerSecond: ch.RequestsPerSecond,
			})
			if err != nil {
				return nil, err
			}
			w.clients[ch.ID] = c
		}
	}

	// 4. Notifier
	var notifier notify.Notifier = notify.Nop{}
	switch {
	case o.notifier != nil:
		notifier = o.notifier
	case cfg.Telegram.Enabled():
		w.telegram = telegram.New(cfg.Telegram)
		notifier = w.telegram
	default:
		w.log.Warn("Telegram not configured, alerts are only logged")
		notifier = notify.NotifierFunc(func(_ context.Context, a notify.Alert) error {
			w.log.Info("alert", "kind", a.Kind, "text", a.Text)
			return nil
		})
	}
	notifier = notify.WithCooldown(notifier, cooldown, cfg.Monitoring.AlertCooldown)
	w.alerts = alert.New(notifier, cfg.ChainNames())

	// 5. Shared state
	w.cursorMgr = cursor.NewManager(w.store.Cursors)
	w.cursorMgr.SetStateChangeCallback(func(chainID string, t cursor.Transition) {
		w.log.Debug("Chain state changed", "chain", chainID, "from", t.From, "to", t.To, "reason", t.Reason)
	})
	w.processed = dedup.New(w.store.Processed)
	w.ledger = ledger.New(w.store.Events)
	if err := w.processed.Load(ctx); err != nil {
		return nil, fmt.Errorf("load processed hashes: %w", err)
	}
	if err := w.ledger.Load(ctx); err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	w.log.Info("Loaded state", "processed", w.processed.Len(), "events", w.ledger.Counts())

	// 6. Per-chain components
	m := matcher.NewWithdraw()
	w.log.Info("Matching withdraw calls", "selector", m.Hex(), "chains", len(cfg.Chains))
	chains := make([]indexer.Chain, 0, len(cfg.Chains))
	targets := make([]balance.Target, 0, len(cfg.Chains))
	heights := make(map[string]health.HeightFetcher, len(cfg.Chains))
	for _, ch := range cfg.Chains {
		client, found := w.clients[ch.ID]
		if !found {
			return nil, fmt.Errorf("chain %s: no ledger client", ch.ID)
		}
		chains = append(chains, indexer.Chain{
			ID:       ch.ID,
			Head:     client,
			Scanner:  scanner.New(ch.ID, client, ch.Contract, cfg.Monitoring.MaxBlockRange),
			Resolver: resolver.New(ch.ID, ch.Contract, ch.ExplorerURL, client, m),
		})
		targets = append(targets, balanceTarget(ch, client))
		heights[ch.ID] = throttle.NewHeadCache(client, throttle.DefaultHeadTTL)
	}

	w.pass = indexer.NewPass(indexer.Config{
		Chains:       chains,
		Cursor:       w.cursorMgr,
		Processed:    w.processed,
		Ledger:       w.ledger,
		Alerts:       w.alerts,
		InitialRange: cfg.Monitoring.InitialBlockRange,
		ProcessedCap: cfg.Monitoring.ProcessedCap,
		Retention:    cfg.Monitoring.Retention,
		Workers:      cfg.Monitoring.ResolveWorkers,
		ChainTimeout: cfg.Monitoring.ChainTimeout,
	})
	w.stats = stats.New(w.ledger, cfg.ChainIDs())
	w.balances = balance.New(targets, w.alerts)
	w.reporter = report.New(w.stats, w.balances, w.alerts)

	// 7. Health surface
	var sink health.ServingSink
	if cfg.Server.GRPCPort > 0 {
		w.grpcServer = health.NewGRPCServer(cfg.Server.GRPCPort)
		sink = w.grpcServer
	}
	w.healthMon = health.NewMonitor(health.MonitorConfig{
		Chains:  cfg.ChainIDs(),
		Heights: heights,
		Cursor:  w.cursorMgr,
		Passes:  w.pass,
		Sink:    sink,
	})
	w.healthServer = health.NewServer(w.healthMon, w.stats, w, cfg.Server.Port)

	// 8. Scheduler
	hour, minute, err := config.ParseClock(cfg.Monitoring.ReportTimeUTC)
	if err != nil {
		return nil, err
	}
	w.scheduler = worker.NewScheduler(
		worker.Job{Name: JobScan, Interval: cfg.Monitoring.PollingInterval, RunAtStart: true, Fn: w.runScan},
		worker.Job{Name: JobBalance, Interval: cfg.Monitoring.BalanceCheckInterval, RunAtStart: true, Fn: w.runBalanceCheck},
		worker.Job{Name: JobReport, Daily: true, Hour: hour, Minute: minute, Fn: w.runDailyReport},
	)

	ok = true
	return w, nil
}

func balanceTarget(ch config.ChainConfig, reader chain.BalanceReader) balance.Target {
	t := balance.Target{
		Chain:       ch.ID,
		Contract:    ch.Contract,
		ExplorerURL: ch.ExplorerURL,
		Reader:      reader,
	}
	for _, tok := range ch.Tokens {
		t.Tokens = append(t.Tokens, balance.Token{
			Symbol:    tok.Symbol,
			Address:   tok.Address,
			Native:    tok.Native,
			Threshold: tok.Threshold,
		})
	}
	return t
}

func (w *Watcher) openStore(ctx context.Context) error {
	store, db, err := OpenStore(ctx, w.cfg)
	if err != nil {
		return err
	}
	w.store, w.db = store, db
	return nil
}

// OpenStore opens the configured storage backend. db is non-nil only for
// the postgres backend.
func OpenStore(ctx context.Context, cfg *config.AppConfig) (*storage.Store, *postgres.DB, error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		store, db, err := postgres.NewStore(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init db: %w", err)
		}
		slog.Info("Using PostgreSQL storage")
		return store, db, nil
	case config.BackendMemory:
		slog.Warn("Using memory storage, state is lost on exit")
		return memory.NewStore(), nil, nil
	default:
		store, err := kv.NewStore(cfg.Storage.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open kv store: %w", err)
		}
		slog.Info("Using embedded kv storage", "path", cfg.Storage.Path)
		return store, nil, nil
	}
}

// Start launches the servers and the scheduler. It returns immediately.
func (w *Watcher) Start(ctx context.Context) error {
	if w.done != nil {
		return errors.New("watcher already started")
	}
	w.startedAt = time.Now().UTC()

	go func() {
		if err := w.healthServer.Start(); err != nil {
			w.log.Error("Health server failed", "error", err)
		}
	}()
	if w.grpcServer != nil {
		go func() {
			if err := w.grpcServer.Start(); err != nil {
				w.log.Error("gRPC health server failed", "error", err)
			}
		}()
	}
	if w.db != nil {
		w.db.StartMetricsCollector(ctx)
	}

	w.alerts.DispatchStartup(ctx, w.startupInfo())

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go func() {
		defer close(w.done)
		w.scheduler.Run(runCtx)
	}()

	w.log.Info("Scheduled monitoring started",
		"polling_interval", w.cfg.Monitoring.PollingInterval,
		"balance_interval", w.cfg.Monitoring.BalanceCheckInterval,
		"report_time_utc", w.cfg.Monitoring.ReportTimeUTC,
		"chains", len(w.cfg.Chains))
	return nil
}

// ErrJobsRunning is returned by Stop when a job outlived the stop deadline.
// Storage and clients are left open; call Finish to release them.
var ErrJobsRunning = errors.New("jobs still running")

// Stop cancels the scheduler, waits for running jobs up to ctx, flushes
// state and releases every resource. A chain pass that already started is
// never cut short: when ctx expires first, Stop returns ErrJobsRunning and
// keeps storage open for it.
func (w *Watcher) Stop(ctx context.Context) error {
	w.log.Info("Stopping Watcher...")

	running := false
	if w.cancel != nil {
		w.cancel()
		select {
		case <-w.done:
		case <-ctx.Done():
			running = true
		}
	}

	var errs []error
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := w.healthServer.Stop(stopCtx); err != nil {
		errs = append(errs, fmt.Errorf("stop http: %w", err))
	}
	if w.grpcServer != nil {
		w.grpcServer.Stop()
	}

	if running {
		w.log.Warn("Timed out waiting for running jobs, storage left open")
		errs = append(errs, ErrJobsRunning)
		return errors.Join(errs...)
	}

	if err := w.flush(ctx); err != nil {
		errs = append(errs, err)
	}
	w.Close()
	return errors.Join(errs...)
}

// Finish waits for jobs left running by Stop, then flushes state and
// releases storage and clients. Each chain pass is bounded by chain_timeout.
func (w *Watcher) Finish() error {
	if w.done != nil {
		<-w.done
	}
	err := w.flush(context.Background())
	w.Close()
	return err
}

func (w *Watcher) flush(ctx context.Context) error {
	var errs []error
	if w.processed != nil {
		if err := w.processed.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush processed hashes: %w", err))
		}
	}
	if w.ledger != nil {
		if err := w.ledger.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush events: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Close releases clients and storage without stopping servers. Commands
// that never call Start use it directly.
func (w *Watcher) Close() {
	for _, c := range w.clients {
		c.Close()
	}
	w.clients = nil
	if w.redis != nil {
		if err := w.redis.Close(); err != nil {
			w.log.Warn("Failed to close Redis", "error", err)
		}
		w.redis = nil
	}
	if w.store != nil && w.store.Close != nil {
		if err := w.store.Close(); err != nil {
			w.log.Warn("Failed to close storage", "error", err)
		}
		w.store = nil
	}
}

func (w *Watcher) startupInfo() alert.StartupInfo {
	return alert.StartupInfo{
		PollingInterval:      w.cfg.Monitoring.PollingInterval,
		BalanceCheckInterval: w.cfg.Monitoring.BalanceCheckInterval,
		Chains:               len(w.cfg.Chains),
	}
}
