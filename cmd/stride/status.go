package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local queue and sync state",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCore(false)
		if err != nil {
			return err
		}
		defer c.close()

		fmt.Printf("Database:   %s\n", c.cfg.DBPath())
		fmt.Printf("Pending:    %d operation(s)\n", c.queue.Len())

		if last := c.engine.LastSyncTime(); !last.IsZero() {
			fmt.Printf("Last sync:  %s (%s ago)\n",
				last.Format(time.RFC3339), time.Since(last).Round(time.Second))
		} else {
			fmt.Println("Last sync:  never")
		}

		failed := c.queue.Failed()
		fmt.Printf("Failed:     %d operation(s)\n", len(failed))
		for _, f := range failed {
			fmt.Printf("   %s %s/%s: %s\n", f.Op.ID, f.Op.Type, f.Op.Action, f.Error)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
