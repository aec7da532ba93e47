package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/patinahq/patina/internal/config"
	"github.com/patinahq/patina/internal/engine"
	"github.com/patinahq/patina/internal/ledger"
	"github.com/patinahq/patina/internal/server"
	"github.com/patinahq/patina/internal/store"
	"github.com/spf13/cobra"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "Path to TOML config file")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Resolve database path
	dbPath := cfg.Database.Path
	if p := os.Getenv("PATINA_DB"); p != "" {
		dbPath = p
	}
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve db path: %w", err)
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	lgr := ledger.New(db, ledger.Policy{
		MaturityThreshold: cfg.Scoring.MaturityThreshold,
		MaxROI:            cfg.Scoring.MaxROI,
	})

	eng := engine.New(db, lgr, cfg)
	eng.StartTimers()
	defer eng.Stop()

	srv := server.New(db, lgr, eng, VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "patina serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", dbPath)
		fmt.Fprintf(os.Stderr, "  score pass: every %dm, reconcile pass: every %dm\n",
			cfg.Scoring.IntervalMinutes, cfg.Reconcile.IntervalMinutes)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
