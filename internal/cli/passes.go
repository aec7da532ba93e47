package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/patinahq/patina/internal/config"
	"github.com/patinahq/patina/internal/engine"
	"github.com/patinahq/patina/internal/ledger"
	"github.com/patinahq/patina/internal/store"
	"github.com/spf13/cobra"
)

// openEngine builds a store, ledger, and engine for one-shot CLI passes.
// The caller closes the returned DB.
func openEngine() (*store.DB, *engine.Engine, error) {
	dbPath := os.Getenv("PATINA_DB")
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, nil, err
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return nil, nil, err
	}

	cfg := config.Default()
	lgr := ledger.New(db, ledger.Policy{
		MaturityThreshold: cfg.Scoring.MaturityThreshold,
		MaxROI:            cfg.Scoring.MaxROI,
	})
	return db, engine.New(db, lgr, cfg), nil
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Run one scoring pass over recent content",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, eng, err := openEngine()
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer db.Close()

		report, err := eng.RecomputeBatch(context.Background(), time.Now())
		if err != nil {
			return fmt.Errorf("score pass: %w", err)
		}

		fmt.Printf("scored %d items", report.Updated)
		if len(report.Failed) > 0 {
			fmt.Printf(", %d failed", len(report.Failed))
		}
		fmt.Println()
		return nil
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Settle all stakes whose escrow period has elapsed",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, eng, err := openEngine()
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer db.Close()

		report, err := eng.Reconcile(context.Background(), time.Now())
		if err != nil {
			return fmt.Errorf("reconcile pass: %w", err)
		}

		fmt.Printf("settled %d stakes (%d yielded, %d slashed, %d neutral)\n",
			report.Settled, report.Yielded, report.Slashed, report.Neutral)
		if report.Skipped > 0 {
			fmt.Printf("skipped %d stakes awaiting a quality score\n", report.Skipped)
		}
		if len(report.Failed) > 0 {
			fmt.Printf("%d settlements failed; they stay active for the next pass\n", len(report.Failed))
		}
		return nil
	},
}
