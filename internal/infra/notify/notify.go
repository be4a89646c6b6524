// Package notify defines the outbound alert channel and a per-key cooldown
// wrapper around it.
package notify

import (
	"context"
	"errors"
)

// ErrCooldown is returned when an alert was suppressed because its key is
// still cooling down.
var ErrCooldown = errors.New("alert in cooldown")

// Kind classifies an alert.
type Kind string

const (
	KindWithdrawalFailure Kind = "withdrawal_failure"
	KindLowBalance        Kind = "low_balance"
	KindDailyReport       Kind = "daily_report"
	KindWeeklyReport      Kind = "weekly_report"
	KindStartup           Kind = "startup"
	KindError             Kind = "error"
)

// Alert is a formatted message ready for delivery.
type Alert struct {
	Kind Kind
	Key  string // cooldown key; empty means never rate limited
	Text string
}

// Notifier delivers alerts.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, alert Alert) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, alert Alert) error {
	return f(ctx, alert)
}

// Nop discards every alert. It is used when no channel is configured.
type Nop struct{}

// Notify does nothing.
func (Nop) Notify(context.Context, Alert) error { return nil }
