package engine

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/patinahq/patina/internal/config"
	"github.com/patinahq/patina/internal/ledger"
	"github.com/patinahq/patina/internal/quality"
	"github.com/patinahq/patina/internal/store"
)

// ErrPassInFlight is returned when a scoring or reconciliation pass is
// requested while the same pass is already running. The trigger is skipped,
// never queued — the next tick or request picks up the work.
var ErrPassInFlight = errors.New("pass already in flight")

// Engine orchestrates the scoring and reconciliation passes over the store.
type Engine struct {
	DB     *store.DB
	Ledger *ledger.Ledger
	Params quality.Params
	Filter quality.FilterParams

	escrowPeriod      time.Duration
	maturityThreshold float64
	batchSize         int
	scoreInterval     time.Duration
	reconcileInterval time.Duration
	workers           int
	settleRetries     int

	// Single-flight guards, one per pass kind.
	scoreMu     sync.Mutex
	reconcileMu sync.Mutex

	stopCh chan struct{}
}

// New creates an Engine wired to the given store and ledger.
func New(db *store.DB, lgr *ledger.Ledger, cfg config.Config) *Engine {
	return &Engine{
		DB:     db,
		Ledger: lgr,
		Params: quality.Params{
			GrowthRate: cfg.Scoring.GrowthRate,
			DecayRate:  cfg.Scoring.DecayRate,
		},
		Filter: quality.FilterParams{
			VelocityLikesThreshold: cfg.Filter.VelocityLikesThreshold,
			VelocityWindowMinutes:  cfg.Filter.VelocityWindowMinutes,
			QualitySuppressBelow:   cfg.Filter.QualitySuppressBelow,
		},
		escrowPeriod:      time.Duration(cfg.Scoring.EscrowPeriodHours * float64(time.Hour)),
		maturityThreshold: cfg.Scoring.MaturityThreshold,
		batchSize:         cfg.Scoring.BatchSize,
		scoreInterval:     time.Duration(cfg.Scoring.IntervalMinutes) * time.Minute,
		reconcileInterval: time.Duration(cfg.Reconcile.IntervalMinutes) * time.Minute,
		workers:           cfg.Reconcile.Workers,
		settleRetries:     cfg.Reconcile.SettleRetries,
		stopCh:            make(chan struct{}),
	}
}

// StartTimers runs both passes once at startup and then periodically.
// Scoring runs before reconciliation so settlements see fresh scores.
func (e *Engine) StartTimers() {
	e.runScorePass()
	e.runReconcilePass()

	go func() {
		scoreTicker := time.NewTicker(e.scoreInterval)
		reconcileTicker := time.NewTicker(e.reconcileInterval)
		defer scoreTicker.Stop()
		defer reconcileTicker.Stop()

		for {
			select {
			case <-scoreTicker.C:
				e.runScorePass()
			case <-reconcileTicker.C:
				e.runReconcilePass()
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the engine's background timers.
func (e *Engine) Stop() {
	close(e.stopCh)
}

func (e *Engine) runScorePass() {
	report, err := e.RecomputeBatch(context.Background(), time.Now())
	if err != nil {
		if err != ErrPassInFlight {
			log.Printf("scoring pass: %v", err)
		}
		return
	}
	if report.Updated > 0 || len(report.Failed) > 0 {
		log.Printf("scoring pass: updated %d, failed %d", report.Updated, len(report.Failed))
	}
}

func (e *Engine) runReconcilePass() {
	report, err := e.Reconcile(context.Background(), time.Now())
	if err != nil {
		if err != ErrPassInFlight {
			log.Printf("reconcile pass: %v", err)
		}
		return
	}
	if report.Settled > 0 || len(report.Failed) > 0 {
		log.Printf("reconcile pass: settled %d (yielded %d, slashed %d, neutral %d), failed %d",
			report.Settled, report.Yielded, report.Slashed, report.Neutral, len(report.Failed))
	}
}
