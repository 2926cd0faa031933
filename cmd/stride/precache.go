package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/stridefit/stride/internal/logging"
	"github.com/stridefit/stride/internal/precache"
)

var precacheCmd = &cobra.Command{
	Use:   "precache",
	Short: "Warm the offline cache for a user",
	Long: `Fetch every view the app needs for a normal day and store it locally:
the assigned program with workouts and prior set history, today's
nutrition, supplements, water and steps, and the dashboard counters.

Tasks are independent; a failing fetch is reported and the rest still
run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, _ := cmd.Flags().GetBool("dev")
		userID, _ := cmd.Flags().GetString("user")
		profileID, _ := cmd.Flags().GetString("profile")
		if userID == "" {
			return fmt.Errorf("--user is required")
		}
		if profileID == "" {
			profileID = userID
		}

		c, err := openCore(dev)
		if err != nil {
			return err
		}
		defer c.close()

		prober := newProber(dev, c.probeURL())
		online := func() bool {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return prober.Online(ctx)
		}

		warmer := precache.New(c.remote, c.cache, online, logging.New("precache"))

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		result := warmer.WarmAll(ctx, userID, profileID, func(task string, done, total int) {
			fmt.Printf("   [%d/%d] %s\n", done, total, task)
		})

		if result.Skipped {
			fmt.Println("Precache skipped (offline)")
			return nil
		}

		fmt.Printf("Cached %d entries\n", result.CachedCount)
		for _, msg := range result.Errors {
			fmt.Printf("   Warning: %s\n", msg)
		}
		if !result.Success {
			return fmt.Errorf("%d precache task(s) failed", len(result.Errors))
		}
		return nil
	},
}

func init() {
	precacheCmd.Flags().Bool("dev", false, "Use the in-memory backend (no network)")
	precacheCmd.Flags().String("user", "", "User (owner) id to warm")
	precacheCmd.Flags().String("profile", "", "Profile id (defaults to user id)")

	rootCmd.AddCommand(precacheCmd)
}
