package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/withdrawal-watcher/internal/core/domain"
)

var sendReport bool

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print or send withdrawal and balance reports",
}

var reportDailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Withdrawals of the last 24 hours and current balances",
	Run:   runReportDaily,
}

var reportWeeklyCmd = &cobra.Command{
	Use:   "weekly",
	Short: "Withdrawals of the last seven UTC days",
	Run:   runReportWeekly,
}

var reportBalancesCmd = &cobra.Command{
	Use:   "balances",
	Short: "Current contract balances against their thresholds",
	Run:   runReportBalances,
}

func init() {
	reportCmd.PersistentFlags().BoolVar(&sendReport, "send", false, "send the report to Telegram")
	reportCmd.AddCommand(reportDailyCmd, reportWeeklyCmd, reportBalancesCmd)
	rootCmd.AddCommand(reportCmd)
}

func runReportDaily(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()
	app := newWatcher(ctx, cfg)
	defer app.Close()

	if sendReport {
		if err := app.SendDailyReport(ctx); err != nil {
			slog.Error("Failed to send daily report", "error", err)
		}
		return
	}

	d := app.Reporter().GenerateDaily(ctx)
	fmt.Printf("Daily report %s to %s\n\n", d.Stats.Start.Format(time.DateTime), d.Stats.End.Format(time.DateTime))
	printStats(d.Stats)
	fmt.Println()
	for _, ch := range cfg.Chains {
		for _, b := range d.Balances[ch.ID] {
			fmt.Printf("%s %s: %.4f (threshold %.4f)\n", ch.DisplayName(), b.TokenSymbol, b.Balance, b.Threshold)
		}
	}
}

func printStats(st *domain.Statistics) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "CHAIN\tSUCCESS\tFAILED\tTOTAL")
	for _, cs := range st.Chains {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", cs.Chain, cs.SuccessCount, cs.FailCount, cs.TotalCount)
	}
	_, _ = fmt.Fprintf(w, "TOTAL\t%d\t%d\t%d\n", st.Totals.SuccessCount, st.Totals.FailCount, st.Totals.TotalCount)
	_ = w.Flush()

	for _, cs := range st.Chains {
		for _, ev := range cs.Failed {
			fmt.Printf("failed: %s %s block %d\n", cs.Chain, ev.Hash, ev.BlockNumber)
		}
	}
}

func runReportWeekly(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()
	app := newWatcher(ctx, cfg)
	defer app.Close()

	if sendReport {
		if _, err := app.Reporter().SendWeekly(ctx); err != nil {
			slog.Error("Failed to send weekly report", "error", err)
		}
		return
	}

	ws := app.Reporter().Weekly()
	fmt.Printf("Weekly report %s to %s\n\n", ws.StartDate, ws.EndDate)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "CHAIN\tSUCCESS\tFAILED\tTOTAL")
	for _, ch := range ws.Chains {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", ch.Chain, ch.Successful, ch.Failed, ch.Total)
	}
	_, _ = fmt.Fprintf(w, "TOTAL\t%d\t%d\t%d\n", ws.Successful, ws.Failed, ws.Total)
	_ = w.Flush()
	fmt.Printf("\nSuccess rate: %.2f%%\n", ws.SuccessRate)
}

func runReportBalances(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()
	app := newWatcher(ctx, cfg)
	defer app.Close()

	if sendReport {
		list := app.CheckBalances(ctx)
		fmt.Printf("Checked %d balances, low balance alerts sent\n", len(list))
		return
	}

	rep := app.Reporter().Balances(ctx)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "CHAIN\tTOKEN\tBALANCE\tTHRESHOLD\tSTATUS")
	for _, l := range rep.Lines {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.4f\t%.4f\t%s\n", l.Chain, l.TokenSymbol, l.Balance, l.Threshold, l.Status)
	}
	_ = w.Flush()
	fmt.Printf("\n%d checked, %d low, %d critical\n", rep.Checked, rep.Low, rep.Critical)
}
