package alert

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/vietddude/withdrawal-watcher/internal/core/domain"
	"github.com/vietddude/withdrawal-watcher/internal/indexing/stats"
)

const timeLayout = "2006-01-02 15:04:05 UTC"

// maxFailedListed caps the failed transactions listed per chain in a report.
const maxFailedListed = 5

var weiPerToken = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// groupDigits inserts thousands separators into an unsigned decimal string.
func groupDigits(s string) string {
	intPart, frac, hasFrac := strings.Cut(s, ".")
	neg := strings.HasPrefix(intPart, "-")
	intPart = strings.TrimPrefix(intPart, "-")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(intPart) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(intPart[:lead])
	for i := lead; i < len(intPart); i += 3 {
		b.WriteByte(',')
		b.WriteString(intPart[i : i+3])
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

// FormatUint renders n with thousands separators.
func FormatUint(n uint64) string {
	return groupDigits(strconv.FormatUint(n, 10))
}

// FormatWhole renders v rounded to an integer with thousands separators.
func FormatWhole(v float64) string {
	s := strconv.FormatFloat(math.Round(v), 'f', 0, 64)
	if s == "-0" {
		s = "0"
	}
	return groupDigits(s)
}

// FormatTokenAmount scales a wei amount by 1e18 and renders six decimals.
func FormatTokenAmount(wei *big.Int) string {
	r := new(big.Rat).SetFrac(wei, weiPerToken)
	return groupDigits(r.FloatString(6))
}

func chainName(names map[string]string, chain string) string {
	if n, ok := names[chain]; ok && n != "" {
		return n
	}
	return chain
}

// FailedWithdrawal formats the alert for a reverted withdrawal. Parameters
// that could not be decoded are left out.
func FailedWithdrawal(ev *domain.WithdrawalEvent, chain string) string {
	var extra strings.Builder
	if ev.Params.Amount != nil {
		fmt.Fprintf(&extra, "\n💰 *Amount:* %s", FormatTokenAmount(ev.Params.Amount))
	}
	if ev.Params.Trader != "" {
		fmt.Fprintf(&extra, "\n👤 *Trader:* `%s`", ev.Params.Trader)
	}
	if ev.Params.ID != nil {
		fmt.Fprintf(&extra, "\n🆔 *Withdrawal ID:* %s", ev.Params.ID.String())
	}

	return fmt.Sprintf(`🚨 *FAILED WITHDRAWAL DETECTED* 🚨

⛓️ *Chain:* %s
📄 *Contract:* `+"`%s`"+`
🔧 *Function:* `+"`%s`"+`
🧾 *Transaction:* `+"`%s`"+`
📊 *Block:* %d
⏰ *Time:* %s
⛽ *Gas Used:* %s%s

🔍 *View Transaction:* [Block Explorer](%s)

⚠️ *Action Required:* Please investigate this failed withdrawal immediately.`,
		chain, ev.ContractAddress, ev.Function, ev.Hash, ev.BlockNumber,
		ev.Timestamp.UTC().Format(timeLayout), FormatUint(ev.GasUsed), extra.String(),
		ev.ExplorerURL)
}

// LowBalance formats the alert for a balance under its threshold.
func LowBalance(b domain.BalanceInfo, chain string) string {
	return fmt.Sprintf(`🔴 *LOW BALANCE ALERT* 🔴

⛓️ *Chain:* %s
📄 *Contract:* `+"`%s`"+`
🪙 *Token:* %s
💰 *Current Balance:* %s %s
⚠️ *Threshold:* %s %s
📉 *Status:* Below threshold

🔍 *View Contract:* [Block Explorer](%s)`,
		chain, b.ContractAddress, b.TokenSymbol,
		FormatWhole(b.Balance), b.TokenSymbol,
		FormatWhole(b.Threshold), b.TokenSymbol,
		b.ExplorerURL)
}

// DailyReport formats the daily summary. balances are grouped by chain id.
func DailyReport(
	st *domain.Statistics,
	balances map[string][]domain.BalanceInfo,
	names map[string]string,
	now time.Time,
) string {
	now = now.UTC()
	var b strings.Builder
	fmt.Fprintf(&b, "📊 *DAILY WITHDRAWAL REPORT* 📊\n📅 *Date:* %s\n\n", now.Format(time.DateOnly))

	for _, cs := range st.Chains {
		fmt.Fprintf(&b, "*%s*\n", chainName(names, cs.Chain))
		fmt.Fprintf(&b, "Successful: %d\n", cs.SuccessCount)
		fmt.Fprintf(&b, "Failed: %d\n", cs.FailCount)
		if cs.FailCount > 0 {
			b.WriteString("Failed transactions:\n")
			for i, ev := range cs.Failed {
				if i == maxFailedListed {
					fmt.Fprintf(&b, "  ... and %d more\n", len(cs.Failed)-maxFailedListed)
					break
				}
				fmt.Fprintf(&b, "  • `%s...` - Block %d\n", shortHash(ev.Hash), ev.BlockNumber)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("📈 *TOTAL SUMMARY*\n")
	fmt.Fprintf(&b, "✅ Total Successful: %d\n", st.Totals.SuccessCount)
	fmt.Fprintf(&b, "❌ Total Failed: %d\n", st.Totals.FailCount)

	b.WriteString("💰 *CURRENT BALANCES*\n")
	for _, cs := range st.Chains {
		list, ok := balances[cs.Chain]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "*%s*\n", chainName(names, cs.Chain))
		for _, bal := range list {
			mark := "🟢"
			if bal.BelowThreshold {
				mark = "🔴"
			}
			fmt.Fprintf(&b, "  %s %s: %s\n", mark, bal.TokenSymbol, FormatWhole(bal.Balance))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "⏰ *Generated:* %s", now.Format(timeLayout))
	return b.String()
}

// WeeklyReport formats a seven-day summary.
func WeeklyReport(ws *stats.WeeklySummary, names map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📅 *WEEKLY WITHDRAWAL SUMMARY* 📅\n%s → %s\n\n", ws.StartDate, ws.EndDate)
	for _, wc := range ws.Chains {
		fmt.Fprintf(&b, "*%s*\n", chainName(names, wc.Chain))
		fmt.Fprintf(&b, "Successful: %d\nFailed: %d\n", wc.Successful, wc.Failed)
		for _, d := range wc.Daily {
			if d.Successful+d.Failed == 0 {
				continue
			}
			fmt.Fprintf(&b, "  %s: %d ok / %d failed\n", d.Date, d.Successful, d.Failed)
		}
		b.WriteString("\n")
	}
	b.WriteString("📈 *TOTAL SUMMARY*\n")
	fmt.Fprintf(&b, "✅ Total Successful: %d\n", ws.Successful)
	fmt.Fprintf(&b, "❌ Total Failed: %d\n", ws.Failed)
	fmt.Fprintf(&b, "📊 Success Rate: %.2f%%", ws.SuccessRate)
	return b.String()
}

// StartupInfo describes the running configuration for the startup notice.
type StartupInfo struct {
	PollingInterval      time.Duration
	BalanceCheckInterval time.Duration
	Chains               int
}

// Startup formats the notice sent when monitoring begins.
func Startup(info StartupInfo, now time.Time) string {
	return fmt.Sprintf(`🚀 *WITHDRAWAL MONITORING SYSTEM STARTED*

⏰ *Started at:* %s

🔍 *Monitoring:*
• Failed withdrawal transactions
• Low balance alerts
• Daily reporting

📊 *Configuration:*
• Polling interval: %s minutes
• Balance check interval: %s minutes
• Chains monitored: %d

✅ System is now actively monitoring all configured chains.`,
		now.UTC().Format(timeLayout),
		minutes(info.PollingInterval), minutes(info.BalanceCheckInterval),
		info.Chains)
}

// SystemError formats an error notice for a failing component.
func SystemError(component, message string, now time.Time) string {
	if component == "" {
		component = "System"
	}
	return fmt.Sprintf(`⚠️ *SYSTEM ERROR ALERT* ⚠️

🔧 *Component:* %s
⏰ *Time:* %s

❌ *Error:* %s

🔍 Please check the logs for more details.`,
		component, now.UTC().Format(timeLayout), message)
}

func minutes(d time.Duration) string {
	return strconv.FormatFloat(d.Minutes(), 'f', -1, 64)
}

func shortHash(h string) string {
	if len(h) > 10 {
		return h[:10]
	}
	return h
}
