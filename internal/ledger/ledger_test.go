package ledger

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/patinahq/patina/internal/store"
)

func openLedger(t *testing.T) (*store.DB, *Ledger) {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, New(db, DefaultPolicy())
}

func seedFixture(t *testing.T, db *store.DB) *store.ContentItem {
	t.Helper()
	if _, err := db.SeedUser("alice", 100, 0); err != nil {
		t.Fatal(err)
	}
	c, err := db.UpsertContent("post-1", 1000)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func balanceOf(t *testing.T, db *store.DB, userID string) float64 {
	t.Helper()
	u, err := db.GetUser(userID)
	if err != nil || u == nil {
		t.Fatalf("GetUser %s: %v %v", userID, u, err)
	}
	return u.ReputationBalance
}

func TestOpenStakeDebitsBalance(t *testing.T) {
	db, lgr := openLedger(t)
	c := seedFixture(t, db)

	stake, err := lgr.OpenStake("alice", c.ID, 10)
	if err != nil {
		t.Fatalf("OpenStake: %v", err)
	}
	if stake.Status != store.StakeActive || stake.Amount != 10 {
		t.Errorf("unexpected stake: %+v", stake)
	}
	if got := balanceOf(t, db, "alice"); got != 90 {
		t.Errorf("balance = %v, want 90", got)
	}

	persisted, err := db.GetStake(stake.ID)
	if err != nil || persisted == nil {
		t.Fatalf("GetStake: %v %v", persisted, err)
	}
}

func TestOpenStakeInsufficientBalance(t *testing.T) {
	db, lgr := openLedger(t)
	c := seedFixture(t, db)

	_, err := lgr.OpenStake("alice", c.ID, 500)
	if !errors.Is(err, ErrInsufficientReputation) {
		t.Fatalf("err = %v, want ErrInsufficientReputation", err)
	}
	// A rejected stake must not touch the balance.
	if got := balanceOf(t, db, "alice"); got != 100 {
		t.Errorf("balance = %v, want 100", got)
	}
}

func TestOpenStakeValidation(t *testing.T) {
	db, lgr := openLedger(t)
	c := seedFixture(t, db)

	if _, err := lgr.OpenStake("alice", c.ID, 0); !errors.Is(err, store.ErrValidation) {
		t.Errorf("zero amount: err = %v, want ErrValidation", err)
	}
	if _, err := lgr.OpenStake("alice", c.ID, -5); !errors.Is(err, store.ErrValidation) {
		t.Errorf("negative amount: err = %v, want ErrValidation", err)
	}
	if _, err := lgr.OpenStake("nobody", c.ID, 10); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unknown user: err = %v, want ErrNotFound", err)
	}
	if _, err := lgr.OpenStake("alice", 999, 10); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unknown content: err = %v, want ErrNotFound", err)
	}
}

func TestSettleYielded(t *testing.T) {
	db, lgr := openLedger(t)
	c := seedFixture(t, db)

	stake, err := lgr.OpenStake("alice", c.ID, 10)
	if err != nil {
		t.Fatal(err)
	}

	result, err := lgr.SettleStake(stake.ID, 17.65)
	if err != nil {
		t.Fatalf("SettleStake: %v", err)
	}
	if result.Status != store.StakeYielded {
		t.Errorf("status = %s, want yielded", result.Status)
	}
	if math.Abs(result.ROI-1.765) > 1e-9 {
		t.Errorf("roi = %v, want 1.765", result.ROI)
	}
	if math.Abs(result.Payout-17.65) > 1e-9 {
		t.Errorf("payout = %v, want 17.65", result.Payout)
	}
	if got := balanceOf(t, db, "alice"); math.Abs(got-107.65) > 1e-9 {
		t.Errorf("balance = %v, want 107.65", got)
	}
}

func TestSettleSlashed(t *testing.T) {
	db, lgr := openLedger(t)
	c := seedFixture(t, db)

	stake, err := lgr.OpenStake("alice", c.ID, 10)
	if err != nil {
		t.Fatal(err)
	}

	result, err := lgr.SettleStake(stake.ID, -2.5)
	if err != nil {
		t.Fatalf("SettleStake: %v", err)
	}
	if result.Status != store.StakeSlashed || result.Payout != 0 {
		t.Errorf("unexpected result: %+v", result)
	}
	// The escrowed amount is gone for good.
	if got := balanceOf(t, db, "alice"); got != 90 {
		t.Errorf("balance = %v, want 90", got)
	}
}

func TestSettleNeutral(t *testing.T) {
	db, lgr := openLedger(t)
	c := seedFixture(t, db)

	stake, err := lgr.OpenStake("alice", c.ID, 10)
	if err != nil {
		t.Fatal(err)
	}

	// Quality in [0, threshold]: the stake is returned at par.
	result, err := lgr.SettleStake(stake.ID, 0.5)
	if err != nil {
		t.Fatalf("SettleStake: %v", err)
	}
	if result.Status != store.StakeNeutral || result.Payout != 10 {
		t.Errorf("unexpected result: %+v", result)
	}
	if got := balanceOf(t, db, "alice"); got != 100 {
		t.Errorf("balance = %v, want 100 (returned at par)", got)
	}
}

func TestSettleThresholdExactIsNeutral(t *testing.T) {
	db, lgr := openLedger(t)
	c := seedFixture(t, db)

	stake, err := lgr.OpenStake("alice", c.ID, 10)
	if err != nil {
		t.Fatal(err)
	}

	result, err := lgr.SettleStake(stake.ID, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != store.StakeNeutral {
		t.Errorf("quality exactly at threshold: status = %s, want neutral", result.Status)
	}
}

func TestSettleROICap(t *testing.T) {
	db, lgr := openLedger(t)
	c := seedFixture(t, db)

	stake, err := lgr.OpenStake("alice", c.ID, 1)
	if err != nil {
		t.Fatal(err)
	}

	// Uncapped ROI would be 500.
	result, err := lgr.SettleStake(stake.ID, 500)
	if err != nil {
		t.Fatal(err)
	}
	if result.ROI != 10 {
		t.Errorf("roi = %v, want capped at 10", result.ROI)
	}
	if result.Payout != 10 {
		t.Errorf("payout = %v, want 10", result.Payout)
	}
}

func TestSettleROICapDisabled(t *testing.T) {
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	lgr := New(db, Policy{MaturityThreshold: 1.0, MaxROI: 0})
	c := seedFixture(t, db)

	stake, err := lgr.OpenStake("alice", c.ID, 1)
	if err != nil {
		t.Fatal(err)
	}

	result, err := lgr.SettleStake(stake.ID, 500)
	if err != nil {
		t.Fatal(err)
	}
	if result.ROI != 500 {
		t.Errorf("roi = %v, want 500 (cap disabled)", result.ROI)
	}
}

func TestSettleIdempotent(t *testing.T) {
	db, lgr := openLedger(t)
	c := seedFixture(t, db)

	stake, err := lgr.OpenStake("alice", c.ID, 10)
	if err != nil {
		t.Fatal(err)
	}

	first, err := lgr.SettleStake(stake.ID, 17.65)
	if err != nil {
		t.Fatal(err)
	}
	if first.Replayed {
		t.Error("first settlement marked replayed")
	}

	// A replay with a different score must return the recorded result and
	// credit nothing.
	second, err := lgr.SettleStake(stake.ID, -100)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !second.Replayed {
		t.Error("replay not marked")
	}
	if second.Status != first.Status || second.Payout != first.Payout || second.ROI != first.ROI {
		t.Errorf("replay result %+v differs from original %+v", second, first)
	}
	if got := balanceOf(t, db, "alice"); math.Abs(got-107.65) > 1e-9 {
		t.Errorf("balance after replay = %v, want 107.65 (single credit)", got)
	}
}

func TestSettleUnknownStake(t *testing.T) {
	_, lgr := openLedger(t)

	if _, err := lgr.SettleStake("nope", 5); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestConcurrentSettleSingleCredit(t *testing.T) {
	db, lgr := openLedger(t)
	c := seedFixture(t, db)

	stake, err := lgr.OpenStake("alice", c.ID, 10)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	replayed := make([]bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := lgr.SettleStake(stake.ID, 17.65)
			if err != nil {
				t.Errorf("concurrent settle: %v", err)
				return
			}
			replayed[i] = result.Replayed
		}(i)
	}
	wg.Wait()

	fresh := 0
	for _, r := range replayed {
		if !r {
			fresh++
		}
	}
	if fresh != 1 {
		t.Errorf("%d settlements claimed to be first, want exactly 1", fresh)
	}
	if got := balanceOf(t, db, "alice"); math.Abs(got-107.65) > 1e-9 {
		t.Errorf("balance = %v, want 107.65 (single credit)", got)
	}
}

func TestReputationConservedOutsideSlash(t *testing.T) {
	db, lgr := openLedger(t)

	if _, err := db.SeedUser("alice", 100, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := db.SeedUser("bob", 50, 0); err != nil {
		t.Fatal(err)
	}
	c, err := db.UpsertContent("post-1", 1000)
	if err != nil {
		t.Fatal(err)
	}

	sa, err := lgr.OpenStake("alice", c.ID, 20)
	if err != nil {
		t.Fatal(err)
	}
	sb, err := lgr.OpenStake("bob", c.ID, 5)
	if err != nil {
		t.Fatal(err)
	}

	// Neutral settlements return principal; the system total is unchanged.
	if _, err := lgr.SettleStake(sa.ID, 0.2); err != nil {
		t.Fatal(err)
	}
	if _, err := lgr.SettleStake(sb.ID, 0.9); err != nil {
		t.Fatal(err)
	}

	total := balanceOf(t, db, "alice") + balanceOf(t, db, "bob")
	if math.Abs(total-150) > 1e-9 {
		t.Errorf("total reputation = %v, want 150", total)
	}
}
