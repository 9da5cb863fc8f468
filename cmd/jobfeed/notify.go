package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobfeed/internal/delivery"
	"github.com/amishk599/jobfeed/internal/model"
	"github.com/amishk599/jobfeed/internal/notify"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Notification subcommands",
}

var notifyImmediateCmd = &cobra.Command{
	Use:   "immediate",
	Short: "Send due immediate alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNotify(func(ctx context.Context, a *app) (notify.Report, error) {
			return a.pipeline.ProcessImmediate(ctx)
		})
	},
}

var notifyDailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Send the daily digest",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNotify(func(ctx context.Context, a *app) (notify.Report, error) {
			return a.pipeline.ProcessCadence(ctx, model.CadenceDaily)
		})
	},
}

var notifyWeeklyCmd = &cobra.Command{
	Use:   "weekly",
	Short: "Send the weekly roundup",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNotify(func(ctx context.Context, a *app) (notify.Report, error) {
			return a.pipeline.ProcessCadence(ctx, model.CadenceWeekly)
		})
	},
}

var testChannel string

var notifyTestCmd = &cobra.Command{
	Use:   "test <recipient>",
	Short: "Send a test notification",
	Long:  "Sends a test message to recipient through the sender configured for --channel.",
	Args:  cobra.ExactArgs(1),
	RunE:  runNotifyTest,
}

func init() {
	notifyTestCmd.Flags().StringVar(&testChannel, "channel", string(model.ChannelEmail), "channel to test (email or sms)")
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(notifyImmediateCmd, notifyDailyCmd, notifyWeeklyCmd, notifyTestCmd)
}

func runNotify(process func(context.Context, *app) (notify.Report, error)) error {
	cfg, logger := mustLoad()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	report, err := process(ctx, a)
	if err != nil {
		logger.Error("notification run failed", "error", err)
		return err
	}
	fmt.Printf("entries=%d dropped=%d batches=%d sent=%d failed=%d\n",
		report.Entries, report.Dropped, report.Batches, report.Sent, report.Failed)
	return nil
}

func runNotifyTest(cmd *cobra.Command, args []string) error {
	cfg, logger := mustLoad()

	ch := model.Channel(testChannel)
	if ch != model.ChannelEmail && ch != model.ChannelSMS {
		return fmt.Errorf("unknown channel %q", testChannel)
	}

	ctx := context.Background()
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	ref, err := delivery.SendTestMessage(ctx, a.sender, ch, args[0])
	if err != nil {
		logger.Error("test notification failed", "error", err)
		os.Exit(1)
	}
	logger.Info("test notification sent successfully", "channel", ch, "ref", ref)
	return nil
}
