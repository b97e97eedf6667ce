package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"slabwise/server/internal/models"
)

type Database struct {
	db *sql.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// WAL + busy timeout keep background ingestion from starving readers
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 60000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) GetDB() *sql.DB {
	return d.db
}

// ReplaceItems reloads the full inventory: the sheet is the source of truth
// for item identity, so import wipes and reinserts.
func (d *Database) ReplaceItems(items []*models.Item) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM items"); err != nil {
		return fmt.Errorf("failed to clear items: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO items
		(source_row, title, issue, issue_sort, year, publisher, grade_raw, grade_numeric,
		 cert_number, qualified_flag, community_url, notes, status, sold_price, sold_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, it := range items {
		_, err = stmt.Exec(
			it.SourceRow, it.Title, it.Issue, it.IssueSort, it.Year, it.Publisher,
			it.GradeRaw, it.GradeNumeric, it.CertNumber, boolToInt(it.Qualified),
			it.CommunityURL, it.Notes, it.Status, it.SoldPrice, it.SoldDate,
		)
		if err != nil {
			return fmt.Errorf("failed to insert item %q: %w", it.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (d *Database) GetItem(id int64) (*models.Item, error) {
	row := d.db.QueryRow(itemSelect+" WHERE id = ?", id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item %d: %w", id, err)
	}
	return item, nil
}

// GetUnsoldItems returns inventory still in play: unlisted or drafted, with
// no realized sale recorded.
func (d *Database) GetUnsoldItems() ([]*models.Item, error) {
	rows, err := d.db.Query(itemSelect + `
		WHERE status IN ('unlisted', 'drafted') AND sold_price IS NULL
		ORDER BY title, issue_sort`)
	if err != nil {
		return nil, fmt.Errorf("failed to query unsold items: %w", err)
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (d *Database) GetAllItems() ([]*models.Item, error) {
	rows, err := d.db.Query(itemSelect + " ORDER BY title, issue_sort")
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// MarkItemSold transitions an item to sold by title/issue match. Returns
// the number of items updated.
func (d *Database) MarkItemSold(title, issue string, soldPrice float64, soldDate string) (int64, error) {
	res, err := d.db.Exec(
		"UPDATE items SET status = 'sold', sold_price = ?, sold_date = ? WHERE title = ? AND issue = ?",
		soldPrice, nullableStr(soldDate), title, issue,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark item sold: %w", err)
	}
	return res.RowsAffected()
}

func (d *Database) UpdateItemStatus(id int64, status string) error {
	res, err := d.db.Exec("UPDATE items SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("failed to update item status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("item not found: %d", id)
	}
	return nil
}

// InsertComps stores comps with INSERT OR IGNORE: re-ingesting a listing
// that already exists under the identity index is a silent no-op. Returns
// the number of rows actually inserted.
func (d *Database) InsertComps(comps []*models.Comp) (int, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO market_comps
		(item_id, source, listing_type, title, issue, grade_numeric, grade_company,
		 is_raw, is_signed, price, shipping, sold_date, url, match_score, raw_payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, c := range comps {
		res, err := stmt.Exec(
			c.ItemID, c.Source, c.ListingType, c.Title, c.Issue, c.GradeNumeric,
			c.GradeCompany, boolToInt(c.IsRaw), boolToInt(c.IsSigned), c.Price,
			c.Shipping, c.SoldDate, c.URL, c.MatchScore, c.RawPayload,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert comp: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return inserted, nil
}

// GetComps returns an item's comps of one listing type, best match first
// (score desc, sold date desc, id desc), capped at limit.
func (d *Database) GetComps(itemID int64, listingType string, limit int) ([]*models.Comp, error) {
	rows, err := d.db.Query(compSelect+`
		WHERE item_id = ? AND listing_type = ? AND price IS NOT NULL
		ORDER BY COALESCE(match_score, 0) DESC, COALESCE(sold_date, '') DESC, id DESC
		LIMIT ?`, itemID, listingType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query comps: %w", err)
	}
	defer rows.Close()
	return scanComps(rows)
}

func (d *Database) CountComps(itemID int64) (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM market_comps WHERE item_id = ?", itemID).Scan(&n)
	return n, err
}

// GetSoldPricesNewestFirst returns an item's sold prices ordered newest
// insert first, feeding the trend computation.
func (d *Database) GetSoldPricesNewestFirst(itemID int64) ([]float64, error) {
	rows, err := d.db.Query(`
		SELECT price FROM market_comps
		WHERE item_id = ? AND listing_type = 'sold' AND price IS NOT NULL
		ORDER BY id DESC`, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sold prices: %w", err)
	}
	defer rows.Close()

	var prices []float64
	for rows.Next() {
		var p float64
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

// SaveSuggestion applies a recomputed suggestion and its evidence links as
// one transaction: a reader never sees a suggestion whose basis count
// disagrees with its evidence rows. The basis/evidence invariant is
// validated before anything is written.
func (d *Database) SaveSuggestion(s models.PriceSuggestion, evidence []models.EvidenceLink) error {
	used := 0
	prev := 0
	for _, ev := range evidence {
		if ev.Rank != prev+1 {
			return fmt.Errorf("evidence ranks not contiguous for item %d: got %d after %d", s.ItemID, ev.Rank, prev)
		}
		prev = ev.Rank
		if ev.UsedInFMV {
			used++
		}
	}
	if used != s.BasisCount {
		return fmt.Errorf("basis_count %d disagrees with %d used-in-fmv evidence rows for item %d", s.BasisCount, used, s.ItemID)
	}

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO price_suggestions (
		  item_id, quick_sale, market_price, premium_price,
		  universal_market_price, qualified_market_price,
		  active_anchor_price, active_count, confidence, basis_count, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(item_id) DO UPDATE SET
		  quick_sale = excluded.quick_sale,
		  market_price = excluded.market_price,
		  premium_price = excluded.premium_price,
		  universal_market_price = excluded.universal_market_price,
		  qualified_market_price = excluded.qualified_market_price,
		  active_anchor_price = excluded.active_anchor_price,
		  active_count = excluded.active_count,
		  confidence = excluded.confidence,
		  basis_count = excluded.basis_count,
		  updated_at = CURRENT_TIMESTAMP
	`, s.ItemID, s.QuickSale, s.MarketPrice, s.PremiumPrice,
		s.UniversalMarketPrice, s.QualifiedMarketPrice,
		s.ActiveAnchorPrice, s.ActiveCount, s.Confidence, s.BasisCount)
	if err != nil {
		return fmt.Errorf("failed to upsert price suggestion: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM price_suggestion_evidence WHERE item_id = ?", s.ItemID); err != nil {
		return fmt.Errorf("failed to clear evidence: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO price_suggestion_evidence (item_id, comp_id, rank, used_in_fmv)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare evidence statement: %w", err)
	}
	defer stmt.Close()

	for _, ev := range evidence {
		if _, err := stmt.Exec(ev.ItemID, ev.CompID, ev.Rank, boolToInt(ev.UsedInFMV)); err != nil {
			return fmt.Errorf("failed to insert evidence row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteSuggestion removes an item's suggestion and evidence, used when a
// recompute finds no sold evidence at all.
func (d *Database) DeleteSuggestion(itemID int64) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM price_suggestion_evidence WHERE item_id = ?", itemID); err != nil {
		return fmt.Errorf("failed to delete evidence: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM price_suggestions WHERE item_id = ?", itemID); err != nil {
		return fmt.Errorf("failed to delete suggestion: %w", err)
	}
	return tx.Commit()
}

func (d *Database) GetSuggestion(itemID int64) (*models.PriceSuggestion, error) {
	row := d.db.QueryRow(`
		SELECT item_id, quick_sale, market_price, premium_price,
		       universal_market_price, qualified_market_price,
		       active_anchor_price, active_count, confidence, basis_count,
		       COALESCE(updated_at, CURRENT_TIMESTAMP)
		FROM price_suggestions WHERE item_id = ?`, itemID)

	var s models.PriceSuggestion
	var quick, market, premium, universal, qualified, anchor sql.NullFloat64
	var confidence sql.NullString
	var updatedAt string

	err := row.Scan(&s.ItemID, &quick, &market, &premium, &universal, &qualified,
		&anchor, &s.ActiveCount, &confidence, &s.BasisCount, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get suggestion for item %d: %w", itemID, err)
	}

	s.QuickSale = nullFloat(quick)
	s.MarketPrice = nullFloat(market)
	s.PremiumPrice = nullFloat(premium)
	s.UniversalMarketPrice = nullFloat(universal)
	s.QualifiedMarketPrice = nullFloat(qualified)
	s.ActiveAnchorPrice = nullFloat(anchor)
	if confidence.Valid {
		s.Confidence = &confidence.String
	}
	if t, err := time.Parse("2006-01-02 15:04:05", updatedAt); err == nil {
		s.UpdatedAt = t
	}
	return &s, nil
}

// EvidenceRow is an evidence link joined back to its comp for audit and
// display.
type EvidenceRow struct {
	Rank      int          `json:"rank"`
	UsedInFMV bool         `json:"used_in_fmv"`
	Comp      *models.Comp `json:"comp"`
}

func (d *Database) GetEvidence(itemID int64) ([]EvidenceRow, error) {
	rows, err := d.db.Query(`
		SELECT pse.rank, pse.used_in_fmv,
		       mc.id, mc.item_id, mc.source, mc.listing_type, mc.title, mc.issue,
		       mc.grade_numeric, mc.grade_company, mc.is_raw, mc.is_signed,
		       mc.price, mc.shipping, mc.sold_date, mc.url, mc.match_score, mc.raw_payload
		FROM price_suggestion_evidence pse
		JOIN market_comps mc ON mc.id = pse.comp_id
		WHERE pse.item_id = ?
		ORDER BY pse.rank ASC`, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query evidence: %w", err)
	}
	defer rows.Close()

	var out []EvidenceRow
	for rows.Next() {
		var ev EvidenceRow
		var used int
		c := &models.Comp{}
		var issue, company, soldDate, url sql.NullString
		var grade, score sql.NullFloat64
		var isRaw, isSigned int

		err := rows.Scan(&ev.Rank, &used,
			&c.ID, &c.ItemID, &c.Source, &c.ListingType, &c.Title, &issue,
			&grade, &company, &isRaw, &isSigned,
			&c.Price, &c.Shipping, &soldDate, &url, &score, &c.RawPayload)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evidence row: %w", err)
		}

		ev.UsedInFMV = used != 0
		c.Issue = nullStr(issue)
		c.GradeCompany = nullStr(company)
		c.SoldDate = nullStr(soldDate)
		c.URL = nullStr(url)
		c.GradeNumeric = nullFloat(grade)
		c.MatchScore = nullFloat(score)
		c.IsRaw = isRaw != 0
		c.IsSigned = isSigned != 0
		ev.Comp = c
		out = append(out, ev)
	}
	return out, rows.Err()
}

const itemSelect = `
	SELECT id, source_row, title, issue, issue_sort, year, publisher, grade_raw,
	       grade_numeric, cert_number, qualified_flag, community_url, notes,
	       status, sold_price, sold_date, COALESCE(created_at, CURRENT_TIMESTAMP)
	FROM items`

const compSelect = `
	SELECT id, item_id, source, listing_type, title, issue, grade_numeric,
	       grade_company, is_raw, is_signed, price, shipping, sold_date, url,
	       match_score, raw_payload
	FROM market_comps`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (*models.Item, error) {
	it := &models.Item{}
	var sourceRow, issueSort, year sql.NullInt64
	var issue, publisher, gradeRaw, cert, community, notes, soldDate sql.NullString
	var gradeNumeric, soldPrice sql.NullFloat64
	var qualified int
	var createdAt string

	err := row.Scan(&it.ID, &sourceRow, &it.Title, &issue, &issueSort, &year,
		&publisher, &gradeRaw, &gradeNumeric, &cert, &qualified, &community,
		&notes, &it.Status, &soldPrice, &soldDate, &createdAt)
	if err != nil {
		return nil, err
	}

	it.SourceRow = nullInt(sourceRow)
	it.IssueSort = nullInt(issueSort)
	it.Year = nullInt(year)
	it.Issue = nullStr(issue)
	it.Publisher = nullStr(publisher)
	it.GradeRaw = nullStr(gradeRaw)
	it.CertNumber = nullStr(cert)
	it.CommunityURL = nullStr(community)
	it.Notes = nullStr(notes)
	it.SoldDate = nullStr(soldDate)
	it.GradeNumeric = nullFloat(gradeNumeric)
	it.SoldPrice = nullFloat(soldPrice)
	it.Qualified = qualified != 0
	if t, err := time.Parse("2006-01-02 15:04:05", createdAt); err == nil {
		it.CreatedAt = t
	}
	return it, nil
}

func scanComps(rows *sql.Rows) ([]*models.Comp, error) {
	var comps []*models.Comp
	for rows.Next() {
		c := &models.Comp{}
		var issue, company, soldDate, url sql.NullString
		var grade, score sql.NullFloat64
		var isRaw, isSigned int

		err := rows.Scan(&c.ID, &c.ItemID, &c.Source, &c.ListingType, &c.Title,
			&issue, &grade, &company, &isRaw, &isSigned, &c.Price, &c.Shipping,
			&soldDate, &url, &score, &c.RawPayload)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comp: %w", err)
		}

		c.Issue = nullStr(issue)
		c.GradeCompany = nullStr(company)
		c.SoldDate = nullStr(soldDate)
		c.URL = nullStr(url)
		c.GradeNumeric = nullFloat(grade)
		c.MatchScore = nullFloat(score)
		c.IsRaw = isRaw != 0
		c.IsSigned = isSigned != 0
		comps = append(comps, c)
	}
	return comps, rows.Err()
}

func nullStr(v sql.NullString) *string {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	s := v.String
	return &s
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullableStr(s string) interface{} {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
