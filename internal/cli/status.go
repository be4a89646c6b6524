package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/withdrawal-watcher/internal/core/cursor"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cursors, lag and recorded events of every chain",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()
	app := newWatcher(ctx, cfg)
	defer app.Close()

	info := app.SystemInfo(ctx)
	heads := make(map[string]uint64)
	passes := make(map[string]int)
	for _, s := range app.Status(ctx) {
		heads[s.ChainID] = s.LatestBlock
		passes[s.ChainID] = s.Passes
	}

	fmt.Printf("Chains monitored: %d\nProcessed hashes: %d\n\n", info.ChainsMonitored, info.ProcessedCount)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "CHAIN\tCURSOR\tHEAD\tLAG\tEVENTS\tPASSES\tSTATE")
	for _, cs := range info.Chains {
		cur, head, lag := "-", "-", "-"
		if cs.HasCursor {
			cur = fmt.Sprint(cs.Cursor)
		}
		if h, ok := heads[cs.ChainID]; ok && h > 0 {
			head = fmt.Sprint(h)
			if cs.HasCursor && h >= cs.Cursor {
				lag = fmt.Sprint(h - cs.Cursor)
			}
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n", cs.Name, cur, head, lag, cs.Events, passes[cs.ChainID],
			cursor.StateDescription(cursor.State(cs.State)))
	}
	_ = w.Flush()
}
