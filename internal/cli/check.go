package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify Telegram and RPC connectivity",
	Run:   runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()
	app := newWatcher(ctx, cfg)
	res := app.Check(ctx)
	app.Close()

	if res.TelegramErr != nil {
		fmt.Printf("✗ Telegram: %v\n", res.TelegramErr)
	} else {
		fmt.Printf("✓ Telegram: @%s\n", res.TelegramBot)
	}
	for _, ch := range cfg.Chains {
		if err, failed := res.ChainErrs[ch.ID]; failed {
			fmt.Printf("✗ %s: %v\n", ch.DisplayName(), err)
			continue
		}
		fmt.Printf("✓ %s: block %d\n", ch.DisplayName(), res.Heights[ch.ID])
	}

	if !res.OK() {
		os.Exit(1)
	}
	fmt.Println("All checks passed, startup notification sent")
}
