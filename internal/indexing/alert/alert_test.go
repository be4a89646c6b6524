package alert

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/vietddude/withdrawal-watcher/internal/core/domain"
	"github.com/vietddude/withdrawal-watcher/internal/infra/notify"
)

type mockNotifier struct {
	alerts []notify.Alert
	err    error
}

func (m *mockNotifier) Notify(ctx context.Context, a notify.Alert) error {
	m.alerts = append(m.alerts, a)
	return m.err
}

func failedEvent() *domain.WithdrawalEvent {
	amount, _ := new(big.Int).SetString("1234500000000000000000", 10)
	return &domain.WithdrawalEvent{
		Hash:            "0xabcdef0123456789",
		Chain:           "arbitrum",
		BlockNumber:     12345,
		Status:          false,
		ContractAddress: "0x1111111111111111111111111111111111111111",
		Function:        domain.WithdrawFunction,
		Params: domain.WithdrawParams{
			ID:     big.NewInt(42),
			Trader: "0x2222222222222222222222222222222222222222",
			Amount: amount,
		},
		Timestamp:   time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC),
		GasUsed:     1234567,
		ExplorerURL: "https://arbiscan.io/tx/0xabcdef0123456789",
	}
}

func TestFormatHelpers(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{FormatUint(0), "0"},
		{FormatUint(999), "999"},
		{FormatUint(1000), "1,000"},
		{FormatUint(1234567), "1,234,567"},
		{FormatWhole(1500.4), "1,500"},
		{FormatWhole(999999.6), "1,000,000"},
		{FormatWhole(0.2), "0"},
		{FormatTokenAmount(big.NewInt(0)), "0.000000"},
		{FormatTokenAmount(big.NewInt(1500000000000000000)), "1.500000"},
	}
	for i, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("case %d: expected %q, got %q", i, tt.want, tt.got)
		}
	}
}

func TestDispatchFailure(t *testing.T) {
	n := &mockNotifier{}
	d := New(n, map[string]string{"arbitrum": "Arbitrum One"})
	ctx := context.Background()

	ok := d.DispatchFailure(ctx, failedEvent())
	if !ok {
		t.Fatal("expected alert to be sent")
	}

	success := failedEvent()
	success.Status = true
	if d.DispatchFailure(ctx, success) {
		t.Error("successful withdrawal must not alert")
	}

	if len(n.alerts) != 1 {
		t.Fatalf("expected exactly 1 notification, got %d", len(n.alerts))
	}
	text := n.alerts[0].Text
	for _, want := range []string{
		"FAILED WITHDRAWAL DETECTED",
		"*Chain:* Arbitrum One",
		"`0xabcdef0123456789`",
		"*Block:* 12345",
		"2024-05-10 12:00:00 UTC",
		"*Gas Used:* 1,234,567",
		"*Amount:* 1,234.500000",
		"*Withdrawal ID:* 42",
		"[Block Explorer](https://arbiscan.io/tx/0xabcdef0123456789)",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("alert missing %q:\n%s", want, text)
		}
	}
	if n.alerts[0].Key != "" {
		t.Error("failure alerts must not be rate limited")
	}
}

func TestDispatchFailure_UnknownParamsOmitted(t *testing.T) {
	n := &mockNotifier{}
	d := New(n, nil)
	ev := failedEvent()
	ev.Params = domain.WithdrawParams{}

	d.DispatchFailure(context.Background(), ev)
	text := n.alerts[0].Text
	for _, absent := range []string{"Amount", "Trader", "Withdrawal ID"} {
		if strings.Contains(text, absent) {
			t.Errorf("undecoded %s must be omitted", absent)
		}
	}
	if !strings.Contains(text, "*Chain:* arbitrum") {
		t.Error("expected chain id fallback for unnamed chain")
	}
}

func TestDispatchFailure_NotifierErrorIsReported(t *testing.T) {
	n := &mockNotifier{err: errors.New("boom")}
	d := New(n, nil)
	if d.DispatchFailure(context.Background(), failedEvent()) {
		t.Error("expected false on notifier error")
	}
}

func TestDispatchLowBalance(t *testing.T) {
	n := &mockNotifier{}
	d := New(n, map[string]string{"base": "Base"})
	b := domain.BalanceInfo{
		Chain:           "base",
		ContractAddress: "0x1111111111111111111111111111111111111111",
		TokenSymbol:     "USDC",
		Balance:         950.7,
		Threshold:       10000,
		BelowThreshold:  true,
		ExplorerURL:     "https://basescan.org/address/0x1111111111111111111111111111111111111111",
	}

	if !d.DispatchLowBalance(context.Background(), b) {
		t.Fatal("expected low balance alert")
	}
	a := n.alerts[0]
	if a.Key != "base_USDC" {
		t.Errorf("expected cooldown key base_USDC, got %s", a.Key)
	}
	if !strings.Contains(a.Text, "*Current Balance:* 951 USDC") || !strings.Contains(a.Text, "*Threshold:* 10,000 USDC") {
		t.Errorf("unexpected text:\n%s", a.Text)
	}

	b.BelowThreshold = false
	if d.DispatchLowBalance(context.Background(), b) {
		t.Error("healthy balance must not alert")
	}
}

func TestDailyReport(t *testing.T) {
	var failed []*domain.WithdrawalEvent
	for i := 0; i < 7; i++ {
		failed = append(failed, &domain.WithdrawalEvent{Hash: "0x0123456789abcdef", BlockNumber: uint64(100 + i)})
	}
	st := &domain.Statistics{
		Chains: []domain.ChainStats{
			{Chain: "arbitrum", SuccessCount: 3, FailCount: 7, TotalCount: 10, Failed: failed},
			{Chain: "base", SuccessCount: 1, TotalCount: 1},
		},
		Totals: domain.Totals{SuccessCount: 4, FailCount: 7, TotalCount: 11},
	}
	balances := map[string][]domain.BalanceInfo{
		"arbitrum": {
			{TokenSymbol: "USDC", Balance: 12345.6, BelowThreshold: false},
			{TokenSymbol: "ETH", Balance: 0.4, BelowThreshold: true},
		},
	}
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	text := DailyReport(st, balances, map[string]string{"arbitrum": "Arbitrum One"}, now)
	for _, want := range []string{
		"📅 *Date:* 2024-05-10",
		"*Arbitrum One*\nSuccessful: 3\nFailed: 7\n",
		"  • `0x01234567...` - Block 100\n",
		"  ... and 2 more\n",
		"*base*\nSuccessful: 1\nFailed: 0\n",
		"✅ Total Successful: 4",
		"❌ Total Failed: 7",
		"  🟢 USDC: 12,346\n",
		"  🔴 ETH: 0\n",
		"⏰ *Generated:* 2024-05-10 09:00:00 UTC",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q:\n%s", want, text)
		}
	}
	if strings.Count(text, "- Block") != 5 {
		t.Errorf("expected 5 listed failures, got %d", strings.Count(text, "- Block"))
	}
}

func TestStartupAndError(t *testing.T) {
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	s := Startup(StartupInfo{PollingInterval: 5 * time.Minute, BalanceCheckInterval: time.Hour, Chains: 3}, now)
	if !strings.Contains(s, "Polling interval: 5 minutes") || !strings.Contains(s, "Balance check interval: 60 minutes") || !strings.Contains(s, "Chains monitored: 3") {
		t.Errorf("unexpected startup text:\n%s", s)
	}

	e := SystemError("", "rpc down", now)
	if !strings.Contains(e, "*Component:* System") || !strings.Contains(e, "*Error:* rpc down") {
		t.Errorf("unexpected error text:\n%s", e)
	}
}

func TestDispatchChainError(t *testing.T) {
	n := &mockNotifier{}
	d := New(n, map[string]string{"base": "Base"})
	d.DispatchChainError(context.Background(), "base", errors.New("scan 1-2: timeout"))

	a := n.alerts[0]
	if a.Kind != notify.KindError || a.Key != "error_base" {
		t.Errorf("unexpected alert %+v", a)
	}
	if !strings.Contains(a.Text, "*Component:* Withdrawal Monitor (Base)") {
		t.Errorf("unexpected text:\n%s", a.Text)
	}
}
