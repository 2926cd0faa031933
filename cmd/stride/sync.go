package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one reconciliation pass now",
	Long: `Replay the pending offline queue against the backend.

Operations replay oldest-first with workout sessions ordered before
their sets. Each failure consumes one of the operation's retries; an
operation out of retries moves to the failed list (see 'stride status').`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, _ := cmd.Flags().GetBool("dev")

		c, err := openCore(dev)
		if err != nil {
			return err
		}
		defer c.close()

		if c.queue.Len() == 0 {
			fmt.Println("Queue is empty, nothing to sync")
			return nil
		}

		fmt.Printf("Syncing %d pending operation(s)...\n", c.queue.Len())

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		result, err := c.engine.Sync(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Sync complete in %v\n", result.Duration.Round(time.Millisecond))
		fmt.Printf("   Processed: %d\n", result.Processed)
		fmt.Printf("   Failed:    %d\n", result.Failed)
		for _, opErr := range result.Errors {
			fmt.Printf("   %s: %s\n", opErr.OperationID, opErr.Error)
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().Bool("dev", false, "Use the in-memory backend (no network)")

	rootCmd.AddCommand(syncCmd)
}
