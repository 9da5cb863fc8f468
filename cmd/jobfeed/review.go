package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobfeed/internal/review"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Adjudicate potential duplicates interactively (TUI)",
	Long:  "Shows the source picker TUI, then the side-by-side review console for pending potential duplicates.",
	RunE:  runReviewCmd,
}

func init() {
	rootCmd.AddCommand(reviewCmd)
}

func runReviewCmd(cmd *cobra.Command, args []string) error {
	cfg, logger := mustLoad()

	// Log output before the alt-screen starts corrupts the display.
	silentLogger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx := context.Background()
	a, err := buildApp(ctx, cfg, silentLogger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	total := 0
	for {
		items, err := review.RunLoader(func(ctx context.Context) ([]review.Item, error) {
			return review.Load(ctx, a.store, 0)
		})
		if err != nil {
			fmt.Printf("Error loading reviews: %v\n", err)
			return err
		}
		if len(items) == 0 {
			fmt.Println("No pending reviews.")
			break
		}

		source, ok, err := review.RunSourcePicker(review.CountBySource(items))
		if err != nil {
			fmt.Printf("Picker error: %v\n", err)
			return err
		}
		if !ok {
			break
		}

		resolved, wantQuit, err := review.Run(review.FilterSource(items, source), a.persist)
		total += resolved
		if err != nil {
			fmt.Printf("TUI error: %v\n", err)
		}
		if wantQuit {
			break
		}
		// else: loop → reload and back to picker
	}

	if total > 0 {
		logger.Info("review session finished", "resolved", total)
	}
	return nil
}
