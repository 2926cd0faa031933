package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and manage the offline mutation queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending operations in replay order",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCore(false)
		if err != nil {
			return err
		}
		defer c.close()

		pending := c.queue.Pending()
		if len(pending) == 0 {
			fmt.Println("Queue is empty")
			return nil
		}

		fmt.Printf("%d pending operation(s):\n", len(pending))
		for i, op := range pending {
			fmt.Printf("%3d. %s  %s/%s  owner=%s  retries=%d  %s\n",
				i+1, op.ID, op.Type, op.Action, op.OwnerID, op.RetryCount,
				op.CreatedAt.Format(time.RFC3339))
		}
		return nil
	},
}

var queueClearFailedCmd = &cobra.Command{
	Use:   "clear-failed",
	Short: "Drop the failed-operations list",
	Long: `Drop operations that exhausted their retries.

Failed operations are never retried automatically; clearing the list
acknowledges the data loss and lets the user re-enter anything that
still matters.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCore(false)
		if err != nil {
			return err
		}
		defer c.close()

		count := len(c.queue.Failed())
		c.queue.ClearFailed()
		fmt.Printf("Cleared %d failed operation(s)\n", count)
		return nil
	},
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop pending operations for one owner",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		if owner == "" {
			return fmt.Errorf("--owner is required")
		}

		c, err := openCore(false)
		if err != nil {
			return err
		}
		defer c.close()

		removed := c.queue.ClearOwner(owner)
		fmt.Printf("Cleared %d pending operation(s) for %s\n", removed, owner)
		return nil
	},
}

func init() {
	queueClearCmd.Flags().String("owner", "", "Owner whose pending operations to drop")

	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueClearFailedCmd)
	queueCmd.AddCommand(queueClearCmd)
	rootCmd.AddCommand(queueCmd)
}
