package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobfeed/internal/orchestrator"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape [source|all]",
	Short: "Run the scrapers once",
	Long:  "Scrapes one source, or every configured source with \"all\" (the default), and stores the results.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, args []string) error {
	cfg, logger := mustLoad()

	selector := orchestrator.SelectAll
	if len(args) == 1 {
		selector = args[0]
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	results, err := a.pipeline.RunScrapers(ctx, selector)
	if err != nil {
		logger.Error("scrape failed", "selector", selector, "error", err)
		return err
	}

	fmt.Printf("%-28s %6s %6s %8s %8s %7s %7s  %s\n", "Source", "Found", "Added", "Updated", "Skipped", "Failed", "Queued", "Status")
	fmt.Println(strings.Repeat("─", 96))
	failed := 0
	for _, r := range results {
		status := "ok"
		if r.Err != nil {
			status = "failed: " + r.Err.Error()
			failed++
		}
		fmt.Printf("%-28s %6d %6d %8d %8d %7d %7d  %s\n",
			r.Source, r.JobsFound, r.JobsAdded, r.JobsUpdated, r.JobsSkipped, r.JobsFailed, r.Queued, status)
	}
	fmt.Printf("\n%d sources, %d failed\n", len(results), failed)
	return nil
}
