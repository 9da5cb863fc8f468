package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobfeed/internal/model"
	"github.com/amishk599/jobfeed/internal/orchestrator"
	"github.com/amishk599/jobfeed/internal/ratelimit"
)

var checkLimit int

var checkCmd = &cobra.Command{
	Use:   "check [source]",
	Short: "Scrape once, print postings, exit",
	Long: "One-shot dry run: scrapes one source (or the first source per kind), prints " +
		"the normalized postings and exits. Nothing is written to the store.",
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().IntVar(&checkLimit, "limit", 20, "postings to print per source")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, logger := mustLoad()
	logger.Info("check mode: nothing will be stored")

	httpClient := &http.Client{Timeout: 30 * time.Second}
	limiter := ratelimit.NewLimiter(cfg.Scrape.MinDelay, cfg.Scrape.Overrides)
	adapters := buildAdapters(cfg, httpClient, limiter, logger)
	if len(adapters) == 0 {
		logger.Error("no sources configured")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Check only one source per kind unless one was named.
	seen := make(map[string]bool)
	for _, a := range adapters {
		name := a.Name()
		key := name
		if rk, ok := a.(orchestrator.RateKeyer); ok {
			key = rk.RateKey()
		}
		paced := ratelimit.NewRateLimitedAdapter(a, limiter, key)
		if len(args) == 1 {
			if name != args[0] {
				continue
			}
		} else {
			kind, _, _ := strings.Cut(name, ":")
			if seen[kind] {
				logger.Info("skipping (kind already checked)", "source", name)
				continue
			}
			seen[kind] = true
		}

		postings, err := paced.Scrape(ctx, model.ScrapeOptions{MaxPages: 1})
		if err != nil {
			logger.Error("scrape failed", "source", name, "error", err)
			continue
		}
		printPostings(name, postings, checkLimit)
	}

	logger.Info("check complete")
	return nil
}

func printPostings(source string, postings []model.RawPosting, limit int) {
	fmt.Printf("\n%s: %d postings\n", source, len(postings))
	fmt.Println(strings.Repeat("─", 96))
	for i, p := range postings {
		if i == limit {
			fmt.Printf("... %d more\n", len(postings)-limit)
			break
		}
		posted := "n/a"
		if !p.PostedAt.IsZero() {
			posted = p.PostedAt.Format("2006-01-02")
		}
		fmt.Printf("%-40.40s %-22.22s %-4s %-11s %s\n", p.Title, p.Company, p.Province, p.Sector, posted)
	}
}
