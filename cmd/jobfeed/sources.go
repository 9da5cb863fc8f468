package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured sources and their latest runs",
	Long:  "Prints a table of every configured source with the outcome of its most recent scrape run.",
	RunE:  runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

type sourceRow struct {
	name    string
	company string
	enabled bool
}

func runSources(cmd *cobra.Command, args []string) error {
	cfg, logger := mustLoad()

	var rows []sourceRow
	for _, b := range cfg.Sources.Boards {
		rows = append(rows, sourceRow{b.ATS + ":" + b.Token, b.Company, b.Enabled})
	}
	for _, c := range cfg.Sources.Careers {
		rows = append(rows, sourceRow{"careers:" + c.Slug, c.Company, c.Enabled})
	}
	rows = append(rows, sourceRow{"adzuna", "-", cfg.Sources.Adzuna.Enabled})

	ctx := context.Background()
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	fmt.Printf("%-30s %-22s %-9s %-8s %-17s %s\n", "Source", "Company", "Status", "Last", "Started", "Found/Added")
	fmt.Println(strings.Repeat("─", 102))

	enabled := 0
	for _, r := range rows {
		status := "disabled"
		if r.enabled {
			status = "enabled"
			enabled++
		}
		last, started, counts := "-", "-", "-"
		runs, err := a.store.RecentRuns(ctx, r.name, 1)
		if err != nil {
			return err
		}
		if len(runs) == 1 {
			last = string(runs[0].Status)
			started = runs[0].StartedAt.Local().Format("2006-01-02 15:04")
			counts = fmt.Sprintf("%d/%d", runs[0].JobsFound, runs[0].JobsAdded)
		}
		fmt.Printf("%-30.30s %-22.22s %-9s %-8s %-17s %s\n", r.name, r.company, status, last, started, counts)
	}

	active, total, err := a.store.CountJobs(ctx)
	if err != nil {
		return err
	}
	pending, err := a.store.CountPendingQueue(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\nTotal: %d sources (%d enabled)\n", len(rows), enabled)
	fmt.Printf("Jobs: %d active of %d stored, %d queued for immediate alerts\n", active, total, pending)
	return nil
}
