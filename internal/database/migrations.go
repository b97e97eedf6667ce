package database

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// RunMigrations creates the schema if it does not exist. Statements are
// idempotent so startup can always run them.
func (d *Database) RunMigrations() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_row INTEGER,
			title TEXT NOT NULL,
			issue TEXT,
			issue_sort INTEGER,
			year INTEGER,
			publisher TEXT,
			grade_raw TEXT,
			grade_numeric REAL,
			cert_number TEXT,
			qualified_flag INTEGER NOT NULL DEFAULT 0,
			community_url TEXT,
			notes TEXT,
			status TEXT NOT NULL DEFAULT 'unlisted',
			sold_price REAL,
			sold_date TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS market_comps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
			source TEXT NOT NULL,
			listing_type TEXT NOT NULL,
			title TEXT NOT NULL,
			issue TEXT,
			grade_numeric REAL,
			grade_company TEXT,
			is_raw INTEGER NOT NULL DEFAULT 0,
			is_signed INTEGER NOT NULL DEFAULT 0,
			price REAL NOT NULL,
			shipping REAL NOT NULL DEFAULT 0,
			sold_date TEXT,
			url TEXT,
			match_score REAL,
			raw_payload TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		// Listing identity: re-ingesting the same sold or active listing is
		// a no-op under INSERT OR IGNORE.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_comps_identity ON market_comps (
			item_id, source, listing_type, title,
			COALESCE(issue, ''), price, COALESCE(sold_date, ''), COALESCE(url, '')
		)`,

		`CREATE INDEX IF NOT EXISTS idx_comps_item_type ON market_comps (item_id, listing_type)`,

		`CREATE TABLE IF NOT EXISTS price_suggestions (
			item_id INTEGER PRIMARY KEY REFERENCES items(id) ON DELETE CASCADE,
			quick_sale REAL,
			market_price REAL,
			premium_price REAL,
			universal_market_price REAL,
			qualified_market_price REAL,
			active_anchor_price REAL,
			active_count INTEGER NOT NULL DEFAULT 0,
			confidence TEXT,
			basis_count INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS price_suggestion_evidence (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
			comp_id INTEGER NOT NULL REFERENCES market_comps(id) ON DELETE CASCADE,
			rank INTEGER NOT NULL,
			used_in_fmv INTEGER NOT NULL DEFAULT 1,
			UNIQUE (item_id, rank),
			UNIQUE (item_id, comp_id)
		)`,

		// Applies the comp-uniqueness constraint to databases created before
		// the table carried it.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_evidence_item_comp ON price_suggestion_evidence (item_id, comp_id)`,

		`CREATE INDEX IF NOT EXISTS idx_evidence_item ON price_suggestion_evidence (item_id)`,
	}

	for i, stmt := range statements {
		if _, err := d.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration statement %d failed: %w", i+1, err)
		}
	}

	log.Info("Database migrations applied")
	return nil
}
