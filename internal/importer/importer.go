package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"slabwise/server/internal/database"
	"slabwise/server/internal/models"
)

// Importer loads the inventory from a CSV export, either a local file or a
// Google Sheet export URL. The sheet is the source of truth: import
// replaces the whole items table.
type Importer struct {
	store  *database.Database
	http   *resty.Client
	logger *logrus.Logger
}

func NewImporter(store *database.Database, logger *logrus.Logger) *Importer {
	http := resty.New()
	http.SetTimeout(30 * time.Second)
	return &Importer{
		store:  store,
		http:   http,
		logger: logger,
	}
}

// ImportSheet downloads a Google Sheet as CSV and imports it.
func (im *Importer) ImportSheet(ctx context.Context, sheetID, gid string) (int, error) {
	url := fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/export?format=csv", sheetID)
	if gid != "" {
		url += "&gid=" + gid
	}

	resp, err := im.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return 0, fmt.Errorf("sheet download failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return 0, fmt.Errorf("sheet download failed (%d)", resp.StatusCode())
	}

	return im.ImportCSV(strings.NewReader(resp.String()))
}

// ImportFile imports a local CSV export.
func (im *Importer) ImportFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return im.ImportCSV(f)
}

// ImportCSV replaces the inventory with the rows of a CSV export. Rows
// without a title are skipped. Source row numbers start at 2, matching the
// spreadsheet rows under the header.
func (im *Importer) ImportCSV(r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read CSV header: %w", err)
	}
	cols := columnIndex(header)
	if _, ok := cols["title"]; !ok {
		return 0, fmt.Errorf("could not find title column, available: %v", header)
	}

	var items []*models.Item
	rowNum := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("failed to read CSV row: %w", err)
		}
		rowNum++

		get := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return record[idx]
		}

		title := norm(get("title"))
		if title == nil {
			continue
		}

		issue := norm(firstOf(get("number"), get("issue")))
		gradeRaw := norm(get("grade"))
		soldPrice := toFloat(firstOf(get("sold price"), get("sold_price")))
		soldDate := norm(firstOf(get("sold date"), get("sold_date")))
		status := models.StatusUnlisted
		if soldPrice != nil {
			status = models.StatusSold
		}

		row := rowNum
		items = append(items, &models.Item{
			SourceRow:    &row,
			Title:        *title,
			Issue:        issue,
			IssueSort:    parseIssueSort(issue),
			Year:         toInt(get("year")),
			Publisher:    norm(get("publisher")),
			GradeRaw:     gradeRaw,
			GradeNumeric: toFloatPtr(gradeRaw),
			CertNumber:   norm(firstOf(get("cgc"), get("cert"))),
			Qualified:    toBool(get("qualified")),
			CommunityURL: norm(firstOf(get("community url"), get("community_url"))),
			Notes:        norm(get("notes")),
			Status:       status,
			SoldPrice:    soldPrice,
			SoldDate:     soldDate,
		})
	}

	if err := im.store.ReplaceItems(items); err != nil {
		return 0, err
	}

	im.logger.WithField("items", len(items)).Info("Imported inventory from CSV")
	return len(items), nil
}

// MarkSoldCSV applies realized sales from a CSV export. Rows without a
// sold price are ignored; items are matched by title and issue. Returns
// the number of items updated.
func (im *Importer) MarkSoldCSV(r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read CSV header: %w", err)
	}
	cols := columnIndex(header)

	updates := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("failed to read CSV row: %w", err)
		}

		get := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return record[idx]
		}

		soldPrice := toFloat(firstOf(get("sold price"), get("sold_price")))
		if soldPrice == nil {
			continue
		}
		soldDate := strings.TrimSpace(firstOf(get("sold date"), get("sold_date"), get("date")))
		title := strings.TrimSpace(get("title"))
		issue := strings.TrimSpace(firstOf(get("number"), get("issue")))
		if title == "" || issue == "" {
			continue
		}

		n, err := im.store.MarkItemSold(title, issue, *soldPrice, soldDate)
		if err != nil {
			return updates, err
		}
		updates += int(n)
	}

	im.logger.WithField("updates", updates).Info("Marked items sold from CSV")
	return updates, nil
}

func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, exists := cols[key]; !exists {
			cols[key] = i
		}
	}
	return cols
}

func firstOf(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func norm(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

var notForSaleTokens = map[string]bool{
	"NFS": true, "NA": true, "N/A": true, "NONE": true, "-": true,
}

func toFloat(s string) *float64 {
	s = strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(s, "$", ""), ",", ""))
	if s == "" || notForSaleTokens[strings.ToUpper(s)] {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func toFloatPtr(s *string) *float64 {
	if s == nil {
		return nil
	}
	return toFloat(*s)
}

func toInt(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	i := int(f)
	return &i
}

func toBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "qualified", "q":
		return true
	}
	return false
}

var leadingDigitsRe = regexp.MustCompile(`^(\d+)`)

// parseIssueSort extracts the numeric prefix of an issue label for stable
// ordering: "14" sorts before "100", "25A" sorts as 25.
func parseIssueSort(issue *string) *int {
	if issue == nil {
		return nil
	}
	m := leadingDigitsRe.FindString(strings.TrimSpace(*issue))
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &n
}
