package notify

import (
	"context"
	"errors"
	"testing"
	"time"
)

type mockNotifier struct {
	sent []Alert
	err  error
}

func (m *mockNotifier) Notify(ctx context.Context, alert Alert) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, alert)
	return nil
}

func TestCooldownNotifier(t *testing.T) {
	inner := &mockNotifier{}
	cd := NewMemoryCooldown()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	cd.now = func() time.Time { return now }
	n := WithCooldown(inner, cd, time.Hour)
	ctx := context.Background()

	low := Alert{Kind: KindLowBalance, Key: "ethereum_USDT", Text: "low"}

	if err := n.Notify(ctx, low); err != nil {
		t.Fatalf("first alert: %v", err)
	}
	if err := n.Notify(ctx, low); !errors.Is(err, ErrCooldown) {
		t.Fatalf("expected ErrCooldown, got %v", err)
	}

	// other keys and unkeyed alerts are independent
	if err := n.Notify(ctx, Alert{Kind: KindLowBalance, Key: "ethereum_ETH"}); err != nil {
		t.Errorf("other key: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := n.Notify(ctx, Alert{Kind: KindWithdrawalFailure}); err != nil {
			t.Errorf("unkeyed alert: %v", err)
		}
	}

	now = now.Add(time.Hour)
	if err := n.Notify(ctx, low); err != nil {
		t.Errorf("alert after cooldown: %v", err)
	}

	if len(inner.sent) != 5 {
		t.Errorf("expected 5 delivered alerts, got %d", len(inner.sent))
	}
}

func TestCooldownNotifier_FailureReleasesKey(t *testing.T) {
	inner := &mockNotifier{err: errors.New("telegram down")}
	n := WithCooldown(inner, NewMemoryCooldown(), time.Hour)
	ctx := context.Background()
	alert := Alert{Kind: KindLowBalance, Key: "polygon_USDC"}

	if err := n.Notify(ctx, alert); err == nil {
		t.Fatal("expected delivery error")
	}
	inner.err = nil
	if err := n.Notify(ctx, alert); err != nil {
		t.Errorf("retry after failure must not be suppressed: %v", err)
	}
}
