package store

import (
	"database/sql"
	"fmt"
)

// Stake statuses. A stake moves from active to exactly one terminal state
// and never transitions again.
const (
	StakeActive  = "active"
	StakeYielded = "yielded"
	StakeSlashed = "slashed"
	StakeNeutral = "neutral"
)

// Stake is a reputation commitment held in escrow against a content item.
// Rows are kept forever for audit; only the ledger writes them.
type Stake struct {
	ID        string
	UserID    string
	ContentID int64
	Amount    float64
	Status    string
	Payout    float64
	ROI       float64
	CreatedAt int64
	MaturedAt *int64
}

// GetStake returns a stake by id, or nil if unknown.
func (db *DB) GetStake(id string) (*Stake, error) {
	row := db.QueryRow(`
		SELECT id, user_id, content_id, amount, status, payout, roi, created_at, matured_at
		FROM stakes WHERE id = ?
	`, id)
	s, err := scanStake(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stake: %w", err)
	}
	return s, nil
}

// StakesByUser returns all of a user's stakes, newest first.
func (db *DB) StakesByUser(userID string) ([]Stake, error) {
	rows, err := db.Query(`
		SELECT id, user_id, content_id, amount, status, payout, roi, created_at, matured_at
		FROM stakes WHERE user_id = ? ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("stakes by user: %w", err)
	}
	defer rows.Close()
	return scanStakes(rows)
}

// MaturedStake is an active stake whose content has aged past the escrow
// period, paired with the content's last persisted quality score.
type MaturedStake struct {
	Stake
	ContentCreatedAt int64
	QualityScore     float64
	Scored           bool
}

// ActiveMaturedStakes returns active stakes on content created at or before
// the cutoff, i.e. stakes eligible for settlement. The quality score carried
// along is whatever the last committed scoring pass wrote.
func (db *DB) ActiveMaturedStakes(createdBefore int64) ([]MaturedStake, error) {
	rows, err := db.Query(`
		SELECT s.id, s.user_id, s.content_id, s.amount, s.status, s.payout, s.roi, s.created_at, s.matured_at,
			c.created_at, c.quality_score, c.scored_at
		FROM stakes s
		JOIN content_items c ON c.id = s.content_id
		WHERE s.status = 'active' AND c.created_at <= ?
		ORDER BY s.created_at
	`, createdBefore)
	if err != nil {
		return nil, fmt.Errorf("active matured stakes: %w", err)
	}
	defer rows.Close()

	var matured []MaturedStake
	for rows.Next() {
		var m MaturedStake
		var maturedAt, scoredAt sql.NullInt64
		if err := rows.Scan(&m.ID, &m.UserID, &m.ContentID, &m.Amount, &m.Status, &m.Payout, &m.ROI,
			&m.CreatedAt, &maturedAt, &m.ContentCreatedAt, &m.QualityScore, &scoredAt); err != nil {
			return nil, fmt.Errorf("scan matured stake: %w", err)
		}
		if maturedAt.Valid {
			m.MaturedAt = &maturedAt.Int64
		}
		m.Scored = scoredAt.Valid
		matured = append(matured, m)
	}
	return matured, rows.Err()
}

// ContentSummary is one ranked entry of the slow feed.
type ContentSummary struct {
	ContentID     int64
	ExternalRef   string
	CreatedAt     int64
	QualityScore  float64
	YieldedStakes int
	MeanROI       float64
}

// SlowFeed returns content with at least one yielded stake, created at or
// after the cutoff, whose quality cleared the given threshold — ranked by
// mean ROI across its yielded stakes. Fully recomputed on every call.
func (db *DB) SlowFeed(createdSince int64, qualityAbove float64) ([]ContentSummary, error) {
	rows, err := db.Query(`
		SELECT c.id, c.external_ref, c.created_at, c.quality_score, COUNT(s.id), AVG(s.roi)
		FROM stakes s
		JOIN content_items c ON c.id = s.content_id
		WHERE s.status = 'yielded' AND c.created_at >= ? AND c.quality_score > ?
		GROUP BY c.id
		ORDER BY AVG(s.roi) DESC, c.created_at DESC
	`, createdSince, qualityAbove)
	if err != nil {
		return nil, fmt.Errorf("slow feed: %w", err)
	}
	defer rows.Close()

	var feed []ContentSummary
	for rows.Next() {
		var cs ContentSummary
		if err := rows.Scan(&cs.ContentID, &cs.ExternalRef, &cs.CreatedAt, &cs.QualityScore, &cs.YieldedStakes, &cs.MeanROI); err != nil {
			return nil, fmt.Errorf("scan feed entry: %w", err)
		}
		feed = append(feed, cs)
	}
	return feed, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStake(row rowScanner) (*Stake, error) {
	var s Stake
	var maturedAt sql.NullInt64
	if err := row.Scan(&s.ID, &s.UserID, &s.ContentID, &s.Amount, &s.Status, &s.Payout, &s.ROI,
		&s.CreatedAt, &maturedAt); err != nil {
		return nil, err
	}
	if maturedAt.Valid {
		s.MaturedAt = &maturedAt.Int64
	}
	return &s, nil
}

func scanStakes(rows *sql.Rows) ([]Stake, error) {
	var stakes []Stake
	for rows.Next() {
		s, err := scanStake(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stake: %w", err)
		}
		stakes = append(stakes, *s)
	}
	return stakes, rows.Err()
}
