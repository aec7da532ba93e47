package store

import (
	"fmt"
	"strings"
	"time"
)

// InteractionEvent is one observed engagement against a content item.
// Events are append-only: there is no update or delete path.
type InteractionEvent struct {
	ID         int64
	ContentID  int64
	Kind       string // save, cite, reaction
	Weight     float64
	ObservedAt int64
	SourceID   string
	CreatedAt  int64
}

var validKinds = map[string]bool{
	"save":     true,
	"cite":     true,
	"reaction": true,
}

// RecordInteraction appends an interaction event. The ingestion feed
// delivers at-least-once, so an identical (content, kind, observed_at,
// source) tuple returns ErrDuplicateEvent and writes nothing. Unknown
// content returns ErrNotFound.
func (db *DB) RecordInteraction(contentID int64, kind string, weight float64, observedAt int64, sourceID string) (*InteractionEvent, error) {
	if !validKinds[kind] {
		return nil, fmt.Errorf("%w: unknown interaction kind %q", ErrValidation, kind)
	}
	if observedAt <= 0 {
		return nil, fmt.Errorf("%w: observed_at must be a positive timestamp", ErrValidation)
	}

	content, err := db.GetContentByID(contentID)
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, fmt.Errorf("%w: content %d", ErrNotFound, contentID)
	}

	now := time.Now().UnixMilli()
	result, err := db.Exec(`
		INSERT INTO interaction_events (content_id, kind, weight, observed_at, source_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, contentID, kind, weight, observedAt, sourceID, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil, fmt.Errorf("%w: (%d, %s, %d, %s)", ErrDuplicateEvent, contentID, kind, observedAt, sourceID)
		}
		return nil, fmt.Errorf("record interaction: %w", err)
	}

	id, _ := result.LastInsertId()
	return &InteractionEvent{
		ID:         id,
		ContentID:  contentID,
		Kind:       kind,
		Weight:     weight,
		ObservedAt: observedAt,
		SourceID:   sourceID,
		CreatedAt:  now,
	}, nil
}

// GetEvents returns all events for a content item, ordered by observed_at.
func (db *DB) GetEvents(contentID int64) ([]InteractionEvent, error) {
	rows, err := db.Query(`
		SELECT id, content_id, kind, weight, observed_at, source_id, created_at
		FROM interaction_events WHERE content_id = ? ORDER BY observed_at, id
	`, contentID)
	if err != nil {
		return nil, fmt.Errorf("get events: %w", err)
	}
	defer rows.Close()

	var events []InteractionEvent
	for rows.Next() {
		var e InteractionEvent
		if err := rows.Scan(&e.ID, &e.ContentID, &e.Kind, &e.Weight, &e.ObservedAt, &e.SourceID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountEvents returns the number of events recorded for a content item.
func (db *DB) CountEvents(contentID int64) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM interaction_events WHERE content_id = ?`, contentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}
