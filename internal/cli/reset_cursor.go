package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vietddude/withdrawal-watcher/internal/control"
	"github.com/vietddude/withdrawal-watcher/internal/core/cursor"
)

var resetCursorCmd = &cobra.Command{
	Use:   "reset-cursor [chain_id] [block_height]",
	Short: "Reset the cursor for a specific chain to a given block height",
	Long: `Reset the cursor for a specific chain. The next scan starts at
block_height+1. Already processed transactions are not alerted again.`,
	Args: cobra.ExactArgs(2),
	Run:  runResetCursor,
}

func init() {
	rootCmd.AddCommand(resetCursorCmd)
}

func runResetCursor(cmd *cobra.Command, args []string) {
	chainID := args[0]
	height, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		fmt.Printf("Invalid block height: %v\n", err)
		os.Exit(1)
	}

	cfg := loadConfig()
	known := false
	for _, ch := range cfg.Chains {
		known = known || ch.ID == chainID
	}
	if !known {
		fmt.Printf("Unknown chain: %s\n", chainID)
		os.Exit(1)
	}

	ctx := context.Background()
	store, _, err := control.OpenStore(ctx, cfg)
	if err != nil {
		slog.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = store.Close()
	}()

	if err := cursor.NewManager(store.Cursors).Reset(ctx, chainID, height); err != nil {
		slog.Error("Failed to reset cursor", "error", err)
		return
	}
	fmt.Printf("Successfully reset cursor for %s to block %d\n", chainID, height)
}
