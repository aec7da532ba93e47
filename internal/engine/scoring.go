package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/patinahq/patina/internal/quality"
	"github.com/patinahq/patina/internal/store"
)

// ItemFailure records one content item that could not be rescored.
type ItemFailure struct {
	ContentID int64
	Err       error
}

// ScoreReport summarizes one scoring pass.
type ScoreReport struct {
	Updated int
	Failed  []ItemFailure
}

// RecomputeBatch rescores a bounded batch of content items as of the given
// time. Safe to re-run: the same asOf over the same events writes the same
// scores. A failure on one item is logged and skipped, never aborting the
// batch. Content with no events that has aged past the escrow period is
// scored zero and its escrow closed.
func (e *Engine) RecomputeBatch(ctx context.Context, asOf time.Time) (*ScoreReport, error) {
	if !e.scoreMu.TryLock() {
		return nil, ErrPassInFlight
	}
	defer e.scoreMu.Unlock()

	items, err := e.DB.ListScoreBatch(e.batchSize)
	if err != nil {
		return nil, fmt.Errorf("list batch: %w", err)
	}

	report := &ScoreReport{}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := e.rescoreItem(item, asOf); err != nil {
			log.Printf("rescore content %d (%s): %v", item.ID, item.ExternalRef, err)
			report.Failed = append(report.Failed, ItemFailure{ContentID: item.ID, Err: err})
			continue
		}
		report.Updated++
	}
	return report, nil
}

func (e *Engine) rescoreItem(item store.ContentItem, asOf time.Time) error {
	events, err := e.DB.GetEvents(item.ID)
	if err != nil {
		return err
	}

	createdAt := time.UnixMilli(item.CreatedAt)
	maturity := quality.MaturityScore(createdAt, asOf)

	if len(events) == 0 {
		// Dead content: once the escrow period has elapsed with zero
		// engagement, close the escrow so stakes settle at zero quality.
		if err := e.DB.UpdateScores(item.ID, maturity, 0, asOf.UnixMilli()); err != nil {
			return err
		}
		if item.EscrowOpen && asOf.Sub(createdAt) >= e.escrowPeriod {
			return e.DB.CloseEscrow(item.ID)
		}
		return nil
	}

	qEvents := make([]quality.Event, len(events))
	for i, ev := range events {
		qEvents[i] = quality.Event{
			Kind:       ev.Kind,
			Weight:     ev.Weight,
			ObservedAt: time.UnixMilli(ev.ObservedAt),
		}
	}

	score := e.Params.QualityScore(createdAt, qEvents, asOf)
	return e.DB.UpdateScores(item.ID, maturity, score, asOf.UnixMilli())
}
