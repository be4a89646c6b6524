// Package rpc holds the transport policy shared by chain clients: error
// classification, bounded retry and per-endpoint rate limiting.
package rpc

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryConfig defines retry behavior.
type RetryConfig struct {
	MaxAttempts  uint64
	InitialDelay time.Duration
	MaxDelay     time.Duration
	JitterPct    uint64
}

// DefaultRetryConfig provides sensible defaults.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:  4,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     10 * time.Second,
	JitterPct:    10,
}

// ErrorAction determines how to handle an error.
type ErrorAction int

const (
	ActionRetry ErrorAction = iota
	ActionBackoff
	ActionFatal
)

func (a ErrorAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionBackoff:
		return "backoff"
	case ActionFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. DoValue returns the wrapped
// error unchanged.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// ClassifyError determines the action for a given error.
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionRetry // Should not happen
	}
	var pe *permanentError
	if errors.As(err, &pe) || errors.Is(err, context.Canceled) {
		return ActionFatal
	}

	s := err.Error()
	sLower := strings.ToLower(s)

	// Fatal (Code or Request issues)
	// -32700: Parse error, -32600: Invalid Request, -32601: Method not found, -32602: Invalid params
	if strings.Contains(s, "-32700") || strings.Contains(s, "-32600") ||
		strings.Contains(s, "-32601") || strings.Contains(s, "-32602") ||
		strings.Contains(sLower, "execution reverted") {
		return ActionFatal
	}

	// Provider is shedding load; retry on a longer delay
	if strings.Contains(s, "429") || strings.Contains(sLower, "too many requests") ||
		strings.Contains(sLower, "rate limit") ||
		strings.Contains(sLower, "quota") ||
		strings.Contains(sLower, "count exceeded") {
		return ActionBackoff
	}

	// Default to Retry (Network, 5xx, etc)
	return ActionRetry
}

func (c RetryConfig) backoff() retry.Backoff {
	initial := c.InitialDelay
	if initial <= 0 {
		initial = DefaultRetryConfig.InitialDelay
	}
	b := retry.NewExponential(initial)
	if c.MaxDelay > 0 {
		b = retry.WithCappedDuration(c.MaxDelay, b)
	}
	if c.JitterPct > 0 {
		b = retry.WithJitterPercent(c.JitterPct, b)
	}
	attempts := c.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}
	return retry.WithMaxRetries(attempts-1, b)
}

// DoValue runs fn until it succeeds, returns a fatal error, or the attempt
// budget is spent. Rate-limit errors wait an extra InitialDelay before the
// next attempt.
func DoValue[T any](ctx context.Context, cfg RetryConfig, fn func(context.Context) (T, error)) (T, error) {
	return retry.DoValue(ctx, cfg.backoff(), func(ctx context.Context) (T, error) {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		switch ClassifyError(err) {
		case ActionFatal:
			var pe *permanentError
			if errors.As(err, &pe) {
				return v, pe.err
			}
			return v, err
		case ActionBackoff:
			select {
			case <-ctx.Done():
				return v, ctx.Err()
			case <-time.After(cfg.InitialDelay):
			}
		}
		return v, retry.RetryableError(err)
	})
}
