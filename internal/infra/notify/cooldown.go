package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/withdrawal-watcher/internal/indexing/metrics"
)

// DefaultCooldown is the minimum gap between two alerts with the same key.
const DefaultCooldown = 60 * time.Minute

// Cooldown tracks which alert keys are cooling down.
type Cooldown interface {
	// Acquire returns true and starts a window if key is not cooling down.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release ends the window for key.
	Release(ctx context.Context, key string) error
}

// MemoryCooldown is a process-local Cooldown.
type MemoryCooldown struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

// NewMemoryCooldown creates an empty in-process cooldown table.
func NewMemoryCooldown() *MemoryCooldown {
	return &MemoryCooldown{until: make(map[string]time.Time), now: time.Now}
}

func (c *MemoryCooldown) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if t, ok := c.until[key]; ok && now.Before(t) {
		return false, nil
	}
	c.until[key] = now.Add(ttl)
	return true, nil
}

func (c *MemoryCooldown) Release(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.until, key)
	return nil
}

// CooldownNotifier suppresses keyed alerts inside the cooldown window and
// counts every outcome.
type CooldownNotifier struct {
	next     Notifier
	cooldown Cooldown
	ttl      time.Duration
	log      *slog.Logger
}

// WithCooldown wraps next. ttl <= 0 means DefaultCooldown.
func WithCooldown(next Notifier, cd Cooldown, ttl time.Duration) *CooldownNotifier {
	if ttl <= 0 {
		ttl = DefaultCooldown
	}
	return &CooldownNotifier{
		next:     next,
		cooldown: cd,
		ttl:      ttl,
		log:      slog.Default().With("component", "notifier"),
	}
}

// Notify delivers alert unless its key is cooling down. A failed delivery
// releases the key so the next attempt is not suppressed.
func (n *CooldownNotifier) Notify(ctx context.Context, alert Alert) error {
	kind := string(alert.Kind)
	if alert.Key != "" {
		ok, err := n.cooldown.Acquire(ctx, alert.Key, n.ttl)
		if err != nil {
			// fail open: a broken cooldown store must not hide alerts
			n.log.Warn("cooldown check failed", "key", alert.Key, "error", err)
		} else if !ok {
			metrics.AlertsTotal.WithLabelValues(kind, "cooldown").Inc()
			n.log.Info("skipping alert due to cooldown", "kind", kind, "key", alert.Key)
			return fmt.Errorf("%s: %w", alert.Key, ErrCooldown)
		}
	}

	if err := n.next.Notify(ctx, alert); err != nil {
		metrics.AlertsTotal.WithLabelValues(kind, "error").Inc()
		if alert.Key != "" {
			if rerr := n.cooldown.Release(ctx, alert.Key); rerr != nil {
				n.log.Warn("cooldown release failed", "key", alert.Key, "error", rerr)
			}
		}
		return err
	}
	metrics.AlertsTotal.WithLabelValues(kind, "sent").Inc()
	return nil
}
