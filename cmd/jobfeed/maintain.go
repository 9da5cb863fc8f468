package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Expire stale jobs and prune history",
	Long: "Deactivates jobs not seen recently, deletes jobs past retention, and removes " +
		"old review entries, queue entries, deliveries and abandoned subscriptions.",
	RunE: runMaintain,
}

func init() {
	rootCmd.AddCommand(maintainCmd)
}

func runMaintain(cmd *cobra.Command, args []string) error {
	cfg, logger := mustLoad()

	ctx := context.Background()
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	report, err := a.pipeline.PerformMaintenance(ctx)
	if err != nil {
		logger.Error("maintenance failed", "error", err)
		return err
	}

	fmt.Printf("jobs:          %d deactivated, %d deleted\n", report.Jobs.Deactivated, report.Jobs.Deleted)
	fmt.Printf("reviews:       %d deleted\n", report.Jobs.ReviewsDeleted)
	fmt.Printf("queue:         %d processed entries deleted\n", report.Notifications.QueueEntries)
	fmt.Printf("deliveries:    %d deleted\n", report.Notifications.Deliveries)
	fmt.Printf("subscriptions: %d unverified, %d unsubscribed deleted\n",
		report.Notifications.Unverified, report.Notifications.Unsubscribed)
	return nil
}
