package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "users: reputation balances",
		SQL: `
CREATE TABLE users (
    id                  TEXT PRIMARY KEY,
    reputation_balance  REAL NOT NULL DEFAULT 0 CHECK (reputation_balance >= 0),
    natural_frequency   REAL NOT NULL DEFAULT 0,
    created_at          INTEGER NOT NULL
);
`,
	},
	{
		Version:     2,
		Description: "content_items: scored content keyed by external reference",
		SQL: `
CREATE TABLE content_items (
    id             INTEGER PRIMARY KEY,
    external_ref   TEXT NOT NULL UNIQUE,
    created_at     INTEGER NOT NULL,

    -- Versioned score snapshot, written only by a full recompute
    maturity_score REAL NOT NULL DEFAULT 0,
    quality_score  REAL NOT NULL DEFAULT 0,
    scored_at      INTEGER,

    escrow_open    INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX idx_content_created ON content_items(created_at DESC);
`,
	},
	{
		Version:     3,
		Description: "interaction_events: append-only engagement history",
		SQL: `
CREATE TABLE interaction_events (
    id           INTEGER PRIMARY KEY,
    content_id   INTEGER NOT NULL,
    kind         TEXT NOT NULL CHECK (kind IN ('save', 'cite', 'reaction')),
    weight       REAL NOT NULL,
    observed_at  INTEGER NOT NULL,
    source_id    TEXT NOT NULL,
    created_at   INTEGER NOT NULL,

    FOREIGN KEY (content_id) REFERENCES content_items(id)
);

CREATE INDEX idx_events_content ON interaction_events(content_id);
CREATE UNIQUE INDEX idx_events_dedup
    ON interaction_events(content_id, kind, observed_at, source_id);
`,
	},
	{
		Version:     4,
		Description: "stakes: reputation held in escrow per content item",
		SQL: `
CREATE TABLE stakes (
    id          TEXT PRIMARY KEY,
    user_id     TEXT NOT NULL,
    content_id  INTEGER NOT NULL,
    amount      REAL NOT NULL CHECK (amount > 0),
    status      TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'yielded', 'slashed', 'neutral')),
    payout      REAL NOT NULL DEFAULT 0,
    roi         REAL NOT NULL DEFAULT 0,
    created_at  INTEGER NOT NULL,
    matured_at  INTEGER,

    FOREIGN KEY (user_id) REFERENCES users(id),
    FOREIGN KEY (content_id) REFERENCES content_items(id)
);

CREATE INDEX idx_stakes_user           ON stakes(user_id);
CREATE INDEX idx_stakes_status_content ON stakes(status, content_id);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
