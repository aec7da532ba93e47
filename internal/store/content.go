package store

import (
	"database/sql"
	"fmt"
)

// ContentItem is a piece of externally observed content being scored.
// Scores are a versioned snapshot: written only by a full recompute
// (scored_at is the recompute time), never patched incrementally.
type ContentItem struct {
	ID            int64
	ExternalRef   string
	CreatedAt     int64
	MaturityScore float64
	QualityScore  float64
	ScoredAt      *int64
	EscrowOpen    bool
}

// UpsertContent returns the content item for externalRef, creating it on
// first reference. An existing row is returned untouched — created_at is
// first-write-wins and immutable once set.
func (db *DB) UpsertContent(externalRef string, createdAt int64) (*ContentItem, error) {
	if externalRef == "" {
		return nil, fmt.Errorf("%w: external_ref required", ErrValidation)
	}
	if createdAt <= 0 {
		return nil, fmt.Errorf("%w: created_at must be a positive timestamp", ErrValidation)
	}

	existing, err := db.GetContentByRef(externalRef)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	result, err := db.Exec(`
		INSERT INTO content_items (external_ref, created_at)
		VALUES (?, ?)
	`, externalRef, createdAt)
	if err != nil {
		return nil, fmt.Errorf("upsert content: %w", err)
	}

	id, _ := result.LastInsertId()
	return &ContentItem{
		ID:          id,
		ExternalRef: externalRef,
		CreatedAt:   createdAt,
		EscrowOpen:  true,
	}, nil
}

// GetContentByRef returns a content item by external reference, or nil if unknown.
func (db *DB) GetContentByRef(externalRef string) (*ContentItem, error) {
	return db.getContent("external_ref = ?", externalRef)
}

// GetContentByID returns a content item by id, or nil if unknown.
func (db *DB) GetContentByID(id int64) (*ContentItem, error) {
	return db.getContent("id = ?", id)
}

func (db *DB) getContent(where string, arg any) (*ContentItem, error) {
	var c ContentItem
	var scoredAt sql.NullInt64
	var escrowOpen int
	err := db.QueryRow(`
		SELECT id, external_ref, created_at, maturity_score, quality_score, scored_at, escrow_open
		FROM content_items WHERE `+where,
		arg).Scan(&c.ID, &c.ExternalRef, &c.CreatedAt, &c.MaturityScore, &c.QualityScore, &scoredAt, &escrowOpen)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get content: %w", err)
	}
	if scoredAt.Valid {
		c.ScoredAt = &scoredAt.Int64
	}
	c.EscrowOpen = escrowOpen != 0
	return &c, nil
}

// UpdateScores replaces a content item's score snapshot wholesale.
func (db *DB) UpdateScores(contentID int64, maturity, quality float64, scoredAt int64) error {
	_, err := db.Exec(`
		UPDATE content_items SET maturity_score = ?, quality_score = ?, scored_at = ?
		WHERE id = ?
	`, maturity, quality, scoredAt, contentID)
	if err != nil {
		return fmt.Errorf("update scores: %w", err)
	}
	return nil
}

// CloseEscrow marks a content item as no longer escrow-eligible.
func (db *DB) CloseEscrow(contentID int64) error {
	_, err := db.Exec(`UPDATE content_items SET escrow_open = 0 WHERE id = ?`, contentID)
	if err != nil {
		return fmt.Errorf("close escrow: %w", err)
	}
	return nil
}

// ListScoreBatch returns up to limit content items, most recent first.
// Bounds the cost of one scoring pass.
func (db *DB) ListScoreBatch(limit int) ([]ContentItem, error) {
	rows, err := db.Query(`
		SELECT id, external_ref, created_at, maturity_score, quality_score, scored_at, escrow_open
		FROM content_items ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list score batch: %w", err)
	}
	defer rows.Close()

	var items []ContentItem
	for rows.Next() {
		var c ContentItem
		var scoredAt sql.NullInt64
		var escrowOpen int
		if err := rows.Scan(&c.ID, &c.ExternalRef, &c.CreatedAt, &c.MaturityScore, &c.QualityScore, &scoredAt, &escrowOpen); err != nil {
			return nil, fmt.Errorf("scan content: %w", err)
		}
		if scoredAt.Valid {
			c.ScoredAt = &scoredAt.Int64
		}
		c.EscrowOpen = escrowOpen != 0
		items = append(items, c)
	}
	return items, rows.Err()
}
