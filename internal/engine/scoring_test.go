package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/patinahq/patina/internal/config"
	"github.com/patinahq/patina/internal/ledger"
	"github.com/patinahq/patina/internal/store"
)

func newTestEngine(t *testing.T) (*store.DB, *ledger.Ledger, *Engine) {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := config.Default()
	lgr := ledger.New(db, ledger.Policy{
		MaturityThreshold: cfg.Scoring.MaturityThreshold,
		MaxROI:            cfg.Scoring.MaxROI,
	})
	return db, lgr, New(db, lgr, cfg)
}

func TestRecomputeBatchWritesScores(t *testing.T) {
	db, _, eng := newTestEngine(t)

	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	asOf := createdAt.Add(72 * time.Hour)

	c, err := db.UpsertContent("post-1", createdAt.UnixMilli())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.RecordInteraction(c.ID, "save", 1.0, createdAt.Add(time.Hour).UnixMilli(), "u1"); err != nil {
		t.Fatal(err)
	}

	report, err := eng.RecomputeBatch(context.Background(), asOf)
	if err != nil {
		t.Fatalf("RecomputeBatch: %v", err)
	}
	if report.Updated != 1 || len(report.Failed) != 0 {
		t.Fatalf("report = %+v, want 1 updated", report)
	}

	got, err := db.GetContentByID(c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.QualityScore < 17.6 || got.QualityScore > 17.7 {
		t.Errorf("quality = %v, want ≈17.65", got.QualityScore)
	}
	if got.ScoredAt == nil || *got.ScoredAt != asOf.UnixMilli() {
		t.Errorf("scored_at = %v, want %d", got.ScoredAt, asOf.UnixMilli())
	}
}

func TestRecomputeBatchDeterministic(t *testing.T) {
	db, _, eng := newTestEngine(t)

	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	asOf := createdAt.Add(100 * time.Hour)

	c, err := db.UpsertContent("post-1", createdAt.UnixMilli())
	if err != nil {
		t.Fatal(err)
	}
	db.RecordInteraction(c.ID, "save", 1.0, createdAt.Add(2*time.Hour).UnixMilli(), "u1")
	db.RecordInteraction(c.ID, "reaction", 0.5, createdAt.Add(5*time.Hour).UnixMilli(), "u2")

	if _, err := eng.RecomputeBatch(context.Background(), asOf); err != nil {
		t.Fatal(err)
	}
	first, _ := db.GetContentByID(c.ID)

	// The same asOf over the same events must write identical scores.
	if _, err := eng.RecomputeBatch(context.Background(), asOf); err != nil {
		t.Fatal(err)
	}
	second, _ := db.GetContentByID(c.ID)

	if first.QualityScore != second.QualityScore || first.MaturityScore != second.MaturityScore {
		t.Errorf("recompute not deterministic: %v vs %v", first.QualityScore, second.QualityScore)
	}
}

func TestRecomputeClosesDeadEscrow(t *testing.T) {
	db, _, eng := newTestEngine(t)

	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c, err := db.UpsertContent("dead-post", createdAt.UnixMilli())
	if err != nil {
		t.Fatal(err)
	}

	// Inside the escrow period: escrow stays open.
	if _, err := eng.RecomputeBatch(context.Background(), createdAt.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	got, _ := db.GetContentByID(c.ID)
	if !got.EscrowOpen {
		t.Error("escrow closed before the period elapsed")
	}
	if got.QualityScore != 0 {
		t.Errorf("quality = %v, want 0 for zero events", got.QualityScore)
	}

	// Past the escrow period with zero engagement: escrow closes.
	if _, err := eng.RecomputeBatch(context.Background(), createdAt.Add(80*time.Hour)); err != nil {
		t.Fatal(err)
	}
	got, _ = db.GetContentByID(c.ID)
	if got.EscrowOpen {
		t.Error("dead content escrow still open past the period")
	}
}

func TestRecomputeSingleFlight(t *testing.T) {
	_, _, eng := newTestEngine(t)

	eng.scoreMu.Lock()
	defer eng.scoreMu.Unlock()

	_, err := eng.RecomputeBatch(context.Background(), time.Now())
	if !errors.Is(err, ErrPassInFlight) {
		t.Errorf("err = %v, want ErrPassInFlight", err)
	}
}

func TestRecomputeCancelled(t *testing.T) {
	db, _, eng := newTestEngine(t)

	if _, err := db.UpsertContent("post-1", 1000); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := eng.RecomputeBatch(ctx, time.Now())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
