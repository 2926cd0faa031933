package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/stridefit/stride/internal/queue"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Queue a daily log entry for sync",
	Long: `Queue a daily log write locally. The entry replays against the
backend on the next sync; until then it lives in the durable queue and
survives restarts.`,
}

var logUser string
var logDate string

// today returns the --date flag or the current local date.
func today() string {
	if logDate != "" {
		return logDate
	}
	return time.Now().Format("2006-01-02")
}

// enqueue opens the core, queues one operation and reports it.
func enqueue(typ queue.Type, action queue.Action, payload any) error {
	if logUser == "" {
		return fmt.Errorf("--user is required")
	}

	c, err := openCore(false)
	if err != nil {
		return err
	}
	defer c.close()

	id, err := c.queue.Enqueue(typ, action, logUser, payload)
	if err != nil {
		return err
	}
	fmt.Printf("Queued %s (%d pending)\n", id, c.queue.Len())
	return nil
}

var logWaterCmd = &cobra.Command{
	Use:   "water",
	Short: "Log the day's water total (glasses)",
	RunE: func(cmd *cobra.Command, args []string) error {
		glasses, _ := cmd.Flags().GetInt("glasses")
		return enqueue(queue.TypeWaterLog, queue.ActionUpdate, queue.WaterLogPayload{
			Date:    today(),
			Glasses: glasses,
		})
	},
}

var logStepsCmd = &cobra.Command{
	Use:   "steps",
	Short: "Log the day's step count",
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, _ := cmd.Flags().GetInt("count")
		return enqueue(queue.TypeStepLog, queue.ActionUpdate, queue.StepLogPayload{
			Date:  today(),
			Steps: steps,
		})
	},
}

var logMealCmd = &cobra.Command{
	Use:   "meal",
	Short: "Log a meal",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		calories, _ := cmd.Flags().GetInt("calories")
		mealID, _ := cmd.Flags().GetString("id")
		if mealID == "" {
			mealID = queue.NewOpID(time.Now())
		}
		return enqueue(queue.TypeMealLog, queue.ActionCreate, queue.MealLogPayload{
			MealID:   mealID,
			Date:     today(),
			Name:     name,
			Calories: calories,
		})
	},
}

var logSupplementCmd = &cobra.Command{
	Use:   "supplement",
	Short: "Mark a supplement taken or untaken",
	RunE: func(cmd *cobra.Command, args []string) error {
		supplementID, _ := cmd.Flags().GetString("id")
		taken, _ := cmd.Flags().GetBool("taken")
		if supplementID == "" {
			return fmt.Errorf("--id is required")
		}
		return enqueue(queue.TypeSupplementLog, queue.ActionUpdate, queue.SupplementLogPayload{
			SupplementID: supplementID,
			Date:         today(),
			Taken:        taken,
		})
	},
}

func init() {
	logCmd.PersistentFlags().StringVar(&logUser, "user", "", "User (owner) id")
	logCmd.PersistentFlags().StringVar(&logDate, "date", "", "Date (YYYY-MM-DD, default: today)")

	logWaterCmd.Flags().Int("glasses", 0, "Running glasses total for the day")
	logStepsCmd.Flags().Int("count", 0, "Step count for the day")
	logMealCmd.Flags().String("name", "", "Meal name")
	logMealCmd.Flags().Int("calories", 0, "Calories")
	logMealCmd.Flags().String("id", "", "Meal id (default: generated)")
	logSupplementCmd.Flags().String("id", "", "Supplement id")
	logSupplementCmd.Flags().Bool("taken", true, "Whether the supplement was taken")

	logCmd.AddCommand(logWaterCmd)
	logCmd.AddCommand(logStepsCmd)
	logCmd.AddCommand(logMealCmd)
	logCmd.AddCommand(logSupplementCmd)
	rootCmd.AddCommand(logCmd)
}
