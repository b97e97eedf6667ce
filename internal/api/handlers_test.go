package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"slabwise/server/config"
	"slabwise/server/internal/database"
	"slabwise/server/internal/importer"
	"slabwise/server/internal/models"
	"slabwise/server/internal/pricing"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Economics.PlatformFeeRate = 0.13
	cfg.Economics.AvgShipCost = 15
	cfg.Economics.GradingCost = 45
	cfg.Economics.GradingShipInsure = 20
	cfg.Economics.TimePenaltyRate = 0.05
	cfg.Economics.SlabLiftMinDollars = 150
	cfg.Economics.SlabLiftMinPct = 0.20
	cfg.Pricing.EvidenceCap = 40
	cfg.Pricing.ActiveCap = 20
	cfg.Pricing.HighConfidenceCount = 8
	cfg.Pricing.MediumConfidenceCount = 3
	cfg.Pricing.WorkerCount = 1
	return cfg
}

func setupRouter(t *testing.T) (*gin.Engine, *database.Database) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := database.NewDatabase(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.RunMigrations())
	t.Cleanup(func() { store.Close() })

	cfg := testConfig()
	logger := logrus.New()
	handler := NewHandler(store, cfg,
		pricing.NewRepricer(store, cfg, logger),
		nil,
		importer.NewImporter(store, logger),
		logger)

	router := gin.New()
	SetupRoutes(router, handler)
	return router, store
}

func seedPricedItem(t *testing.T, store *database.Database) *models.Item {
	t.Helper()
	issue := "1"
	grade := 9.0
	community := "https://example.com/thread/9"
	require.NoError(t, store.ReplaceItems([]*models.Item{{
		Title:        "Incredible Hulk",
		Issue:        &issue,
		GradeNumeric: &grade,
		CommunityURL: &community,
		Status:       models.StatusUnlisted,
	}}))
	items, err := store.GetAllItems()
	require.NoError(t, err)
	item := items[0]

	score := 0.9
	_, err = store.InsertComps([]*models.Comp{
		{ItemID: item.ID, Source: "ebay", ListingType: models.ListingTypeSold,
			Title: "Incredible Hulk #1 CGC 9.0", Price: 1000, MatchScore: &score},
	})
	require.NoError(t, err)
	comps, err := store.GetComps(item.ID, models.ListingTypeSold, 10)
	require.NoError(t, err)

	market := 1000.0
	conf := models.ConfidenceLow
	require.NoError(t, store.SaveSuggestion(models.PriceSuggestion{
		ItemID:      item.ID,
		MarketPrice: &market,
		Confidence:  &conf,
		BasisCount:  1,
	}, []models.EvidenceLink{
		{ItemID: item.ID, CompID: comps[0].ID, Rank: 1, UsedInFMV: true},
	}))
	return item
}

func TestGetItems(t *testing.T) {
	router, store := setupRouter(t)
	seedPricedItem(t, store)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/items", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var items []models.Item
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "Incredible Hulk", items[0].Title)
}

func TestGetItem_NotFound(t *testing.T) {
	router, _ := setupRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/items/999", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetItem_IncludesDecisionAndTrend(t *testing.T) {
	router, store := setupRouter(t)
	item := seedPricedItem(t, store)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/items/"+itoa(item.ID), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Item       models.Item     `json:"item"`
		Decision   models.Decision `json:"decision"`
		TrendLabel string          `json:"trend_label"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, item.ID, body.Item.ID)
	assert.Equal(t, models.ActionSlabCandidate, body.Decision.Action)
	assert.Equal(t, "insufficient", body.TrendLabel)
}

func TestGetDecisionQueue_EconomicsOverride(t *testing.T) {
	router, store := setupRouter(t)
	seedPricedItem(t, store)

	// Default economics: a 9.0 raw community copy at a $1000 market clears
	// both slab-lift gates.
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/decision-queue", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var entries []models.QueueEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionSlabCandidate, entries[0].Decision.Action)

	// An absurd dollar gate flips the same item to sell-raw.
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/decision-queue?lift_min_dollars=100000", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionSellRawNow, entries[0].Decision.Action)
}

func TestExportDecisionQueue(t *testing.T) {
	router, store := setupRouter(t)
	seedPricedItem(t, store)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/decision-queue/export", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "decision-queue")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Decision Queue")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Incredible Hulk", rows[1][0])
}

func TestTriggerReprice(t *testing.T) {
	router, store := setupRouter(t)
	seedPricedItem(t, store)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/reprice", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var stats pricing.RepriceStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Updated)
}

func TestTriggerFetch_UnconfiguredReturns503(t *testing.T) {
	router, _ := setupRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/fetch-comps", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestImportCSVEndpoint(t *testing.T) {
	router, store := setupRouter(t)

	csv := "Title,Number\nDaredevil,1\nThor,126\n"
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/import/csv", strings.NewReader(csv))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	items, err := store.GetAllItems()
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestMarkSoldEndpoint(t *testing.T) {
	router, store := setupRouter(t)
	seedPricedItem(t, store)

	csv := "title,number,Sold Price,Sold Date\nIncredible Hulk,1,1100,2026-08-20\n"
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/mark-sold", strings.NewReader(csv))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	items, err := store.GetAllItems()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.StatusSold, items[0].Status)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
