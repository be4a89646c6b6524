package rpc

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err    error
		expect ErrorAction
	}{
		{errors.New("429 Too Many Requests"), ActionBackoff},
		{errors.New("project rate limit exceeded"), ActionBackoff},
		{errors.New("quota exceeded"), ActionBackoff},
		{errors.New("daily request count exceeded"), ActionBackoff},
		{errors.New("Invalid JSON-RPC request -32600"), ActionFatal},
		{errors.New("Method not found -32601"), ActionFatal},
		{errors.New("Parse error -32700"), ActionFatal},
		{errors.New("execution reverted"), ActionFatal},
		{context.Canceled, ActionFatal},
		{errors.New("connection reset by peer"), ActionRetry},
		{errors.New("timeout"), ActionRetry},
		{errors.New("500 Internal Server Error"), ActionRetry},
	}

	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.expect {
			t.Errorf("ClassifyError(%q) = %v, want %v", tt.err, got, tt.expect)
		}
	}
}

var fastRetry = RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

func TestDoValue_RetriesTransient(t *testing.T) {
	calls := 0
	got, err := DoValue(context.Background(), fastRetry, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("connection reset by peer")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 || calls != 3 {
		t.Errorf("got %d after %d calls, want 42 after 3", got, calls)
	}
}

func TestDoValue_StopsOnFatal(t *testing.T) {
	calls := 0
	_, err := DoValue(context.Background(), fastRetry, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("Method not found -32601")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoValue_PermanentUnwrapped(t *testing.T) {
	sentinel := errors.New("not found")
	calls := 0
	_, err := DoValue(context.Background(), fastRetry, func(context.Context) (int, error) {
		calls++
		return 0, Permanent(sentinel)
	})
	if err != sentinel {
		t.Fatalf("expected bare sentinel, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoValue_GivesUp(t *testing.T) {
	calls := 0
	transient := errors.New("503 service unavailable")
	_, err := DoValue(context.Background(), fastRetry, func(context.Context) (int, error) {
		calls++
		return 0, transient
	})
	if !errors.Is(err, transient) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestLimiter_NilNeverBlocks(t *testing.T) {
	var l *Limiter = NewLimiter(0)
	if l != nil {
		t.Fatal("expected nil limiter for rps 0")
	}
	if err := l.Wait(context.Background()); err != nil {
		t.Errorf("nil limiter returned %v", err)
	}
}
