// Package ledger is the sole authority for reputation balance mutation.
// Opening a stake debits the user atomically; settlement credits exactly
// once, no matter how many times a reconciliation pass retries it.
package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patinahq/patina/internal/store"
)

// ErrInsufficientReputation is returned when a user cannot cover a stake.
var ErrInsufficientReputation = errors.New("insufficient reputation")

// Policy holds the settlement constants.
type Policy struct {
	// MaturityThreshold is the quality score a content item must exceed at
	// maturity for its stakes to yield.
	MaturityThreshold float64
	// MaxROI caps the payout multiple on yielded stakes. Zero or negative
	// disables the cap.
	MaxROI float64
}

// DefaultPolicy returns the production settlement constants.
func DefaultPolicy() Policy {
	return Policy{
		MaturityThreshold: 1.0,
		MaxROI:            10,
	}
}

// Ledger serializes balance mutation per user while letting different
// users proceed in parallel. All mutations run in a single transaction.
type Ledger struct {
	db     *store.DB
	policy Policy

	mu    sync.Mutex
	users map[string]*sync.Mutex
}

// New creates a Ledger over the given store.
func New(db *store.DB, policy Policy) *Ledger {
	return &Ledger{
		db:     db,
		policy: policy,
		users:  make(map[string]*sync.Mutex),
	}
}

// userLock returns the mutex guarding one user's balance.
func (l *Ledger) userLock(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.users[userID]
	if !ok {
		m = &sync.Mutex{}
		l.users[userID] = m
	}
	return m
}

// OpenStake debits amount from the user's balance and creates an active
// stake against the content, as one atomic operation. Fails with
// store.ErrValidation for non-positive amounts, store.ErrNotFound for an
// unknown user or content, and ErrInsufficientReputation when the balance
// cannot cover the amount.
func (l *Ledger) OpenStake(userID string, contentID int64, amount float64) (*store.Stake, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: stake amount must be > 0", store.ErrValidation)
	}

	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := l.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin open stake: %w", err)
	}
	defer tx.Rollback()

	var balance float64
	err = tx.QueryRow(`SELECT reputation_balance FROM users WHERE id = ?`, userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: user %s", store.ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}

	var contentExists int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM content_items WHERE id = ?`, contentID).Scan(&contentExists); err != nil {
		return nil, fmt.Errorf("check content: %w", err)
	}
	if contentExists == 0 {
		return nil, fmt.Errorf("%w: content %d", store.ErrNotFound, contentID)
	}

	if balance < amount {
		return nil, fmt.Errorf("%w: balance %.4f < stake %.4f", ErrInsufficientReputation, balance, amount)
	}

	now := time.Now().UnixMilli()
	stake := &store.Stake{
		ID:        uuid.NewString(),
		UserID:    userID,
		ContentID: contentID,
		Amount:    amount,
		Status:    store.StakeActive,
		CreatedAt: now,
	}

	if _, err := tx.Exec(`
		UPDATE users SET reputation_balance = reputation_balance - ? WHERE id = ?
	`, amount, userID); err != nil {
		return nil, fmt.Errorf("debit balance: %w", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO stakes (id, user_id, content_id, amount, status, created_at)
		VALUES (?, ?, ?, ?, 'active', ?)
	`, stake.ID, userID, contentID, amount, now); err != nil {
		return nil, fmt.Errorf("insert stake: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit open stake: %w", err)
	}
	return stake, nil
}

// SettlementResult records the terminal outcome of a stake.
type SettlementResult struct {
	StakeID string
	Status  string
	Payout  float64
	ROI     float64
	// Replayed is true when the stake was already terminal and the
	// previously recorded result is being returned without a second credit.
	Replayed bool
}

// SettleStake moves an active stake to its terminal state based on the
// content's quality score at maturity, crediting the payout in the same
// transaction. Idempotent: a stake that is already terminal returns its
// recorded result and the balance is untouched.
func (l *Ledger) SettleStake(stakeID string, qualityAtMaturity float64) (*SettlementResult, error) {
	pre, err := l.db.GetStake(stakeID)
	if err != nil {
		return nil, err
	}
	if pre == nil {
		return nil, fmt.Errorf("%w: stake %s", store.ErrNotFound, stakeID)
	}

	lock := l.userLock(pre.UserID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := l.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin settle: %w", err)
	}
	defer tx.Rollback()

	// Re-read inside the transaction: another pass may have settled the
	// stake between the lookup above and taking the user lock.
	var s store.Stake
	err = tx.QueryRow(`
		SELECT id, user_id, content_id, amount, status, payout, roi FROM stakes WHERE id = ?
	`, stakeID).Scan(&s.ID, &s.UserID, &s.ContentID, &s.Amount, &s.Status, &s.Payout, &s.ROI)
	if err != nil {
		return nil, fmt.Errorf("read stake: %w", err)
	}

	if s.Status != store.StakeActive {
		return &SettlementResult{
			StakeID:  s.ID,
			Status:   s.Status,
			Payout:   s.Payout,
			ROI:      s.ROI,
			Replayed: true,
		}, nil
	}

	roi := qualityAtMaturity / s.Amount
	var status string
	var payout float64
	switch {
	case qualityAtMaturity > l.policy.MaturityThreshold:
		status = store.StakeYielded
		if l.policy.MaxROI > 0 && roi > l.policy.MaxROI {
			roi = l.policy.MaxROI
		}
		payout = s.Amount * roi
	case qualityAtMaturity < 0:
		// A slash is a deliberate sink: the escrowed amount leaves
		// circulation entirely.
		status = store.StakeSlashed
		payout = 0
	default:
		status = store.StakeNeutral
		payout = s.Amount
	}

	now := time.Now().UnixMilli()
	if _, err := tx.Exec(`
		UPDATE stakes SET status = ?, payout = ?, roi = ?, matured_at = ?
		WHERE id = ? AND status = 'active'
	`, status, payout, roi, now, stakeID); err != nil {
		return nil, fmt.Errorf("settle stake: %w", err)
	}

	if payout > 0 {
		if _, err := tx.Exec(`
			UPDATE users SET reputation_balance = reputation_balance + ? WHERE id = ?
		`, payout, s.UserID); err != nil {
			return nil, fmt.Errorf("credit payout: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit settle: %w", err)
	}

	return &SettlementResult{
		StakeID: s.ID,
		Status:  status,
		Payout:  payout,
		ROI:     roi,
	}, nil
}
