package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/patinahq/patina/internal/ledger"
	"github.com/patinahq/patina/internal/store"
)

// StakeFailure records one stake whose settlement failed after retries.
// The stake stays active and the next pass retries it.
type StakeFailure struct {
	StakeID string
	Err     error
}

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	Settled int
	Yielded int
	Slashed int
	Neutral int
	// Skipped counts matured stakes on content no scoring pass has
	// committed a score for yet.
	Skipped int
	Failed  []StakeFailure
}

// Reconcile settles every active stake whose content has aged past the
// escrow period, using the last persisted quality score — it never
// recomputes scores itself. Settlements run in parallel across stakes and
// each one is atomic, so cancelling mid-batch leaves settled stakes settled
// and the rest active for the next pass.
func (e *Engine) Reconcile(ctx context.Context, now time.Time) (*ReconcileReport, error) {
	if !e.reconcileMu.TryLock() {
		return nil, ErrPassInFlight
	}
	defer e.reconcileMu.Unlock()

	cutoff := now.Add(-e.escrowPeriod).UnixMilli()
	matured, err := e.DB.ActiveMaturedStakes(cutoff)
	if err != nil {
		return nil, fmt.Errorf("scan matured stakes: %w", err)
	}

	report := &ReconcileReport{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for _, m := range matured {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if !m.Scored {
				// An absent score is not a zero score; wait for the
				// scoring engine to commit one.
				mu.Lock()
				report.Skipped++
				mu.Unlock()
				return nil
			}

			result, err := e.settleWithRetry(gctx, m.ID, m.QualityScore)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("settle stake %s: %v", m.ID, err)
				report.Failed = append(report.Failed, StakeFailure{StakeID: m.ID, Err: err})
				return nil
			}
			if !result.Replayed {
				report.Settled++
				switch result.Status {
				case store.StakeYielded:
					report.Yielded++
				case store.StakeSlashed:
					report.Slashed++
				case store.StakeNeutral:
					report.Neutral++
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// settleWithRetry attempts settlement a bounded number of times. Settlement
// is idempotent, so a retry after an ambiguous failure cannot double-credit.
func (e *Engine) settleWithRetry(ctx context.Context, stakeID string, score float64) (*ledger.SettlementResult, error) {
	var lastErr error
	for attempt := 0; attempt < e.settleRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := e.Ledger.SettleStake(stakeID, score)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("after %d attempts: %w", e.settleRetries, lastErr)
}
