package pricing

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slabwise/server/config"
	"slabwise/server/internal/database"
	"slabwise/server/internal/models"
)

func testRepricer(t *testing.T) (*Repricer, *database.Database) {
	t.Helper()
	store, err := database.NewDatabase(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.RunMigrations())
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{}
	cfg.Pricing.EvidenceCap = 40
	cfg.Pricing.ActiveCap = 20
	cfg.Pricing.HighConfidenceCount = 8
	cfg.Pricing.MediumConfidenceCount = 3
	cfg.Pricing.WorkerCount = 2

	return NewRepricer(store, cfg, logrus.New()), store
}

func seedRepriceItem(t *testing.T, store *database.Database, titles ...string) []*models.Item {
	t.Helper()
	var items []*models.Item
	for _, title := range titles {
		issue := "1"
		items = append(items, &models.Item{Title: title, Issue: &issue, Status: models.StatusUnlisted})
	}
	require.NoError(t, store.ReplaceItems(items))
	loaded, err := store.GetAllItems()
	require.NoError(t, err)
	require.Len(t, loaded, len(titles))
	return loaded
}

func TestRepriceItem_WritesSuggestionAndEvidence(t *testing.T) {
	r, store := testRepricer(t)
	item := seedRepriceItem(t, store, "Incredible Hulk")[0]

	score := 0.9
	_, err := store.InsertComps([]*models.Comp{
		{ItemID: item.ID, Source: "ebay", ListingType: models.ListingTypeSold,
			Title: "Incredible Hulk #1 a", Price: 900, MatchScore: &score},
		{ItemID: item.ID, Source: "ebay", ListingType: models.ListingTypeSold,
			Title: "Incredible Hulk #1 b", Price: 950, MatchScore: &score},
		{ItemID: item.ID, Source: "ebay", ListingType: models.ListingTypeSold,
			Title: "Incredible Hulk #1 c", Price: 1000, MatchScore: &score},
	})
	require.NoError(t, err)

	updated, err := r.RepriceItem(item)
	require.NoError(t, err)
	assert.True(t, updated)

	s, err := store.GetSuggestion(item.ID)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, 3, s.BasisCount)
	require.NotNil(t, s.MarketPrice)
	assert.Equal(t, 950.0, *s.MarketPrice)
	require.NotNil(t, s.Confidence)
	assert.Equal(t, models.ConfidenceMedium, *s.Confidence)

	rows, err := store.GetEvidence(item.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i, row := range rows {
		assert.Equal(t, i+1, row.Rank)
		assert.True(t, row.UsedInFMV)
	}
}

func TestRepriceItem_OfferCompsFeedAnchor(t *testing.T) {
	r, store := testRepricer(t)
	item := seedRepriceItem(t, store, "Ghost Rider")[0]

	score := 0.9
	_, err := store.InsertComps([]*models.Comp{
		{ItemID: item.ID, Source: "ebay", ListingType: models.ListingTypeSold,
			Title: "Ghost Rider #1", Price: 1000, MatchScore: &score},
		{ItemID: item.ID, Source: "ebay", ListingType: models.ListingTypeOffer,
			Title: "Ghost Rider #1 or best offer", Price: 1500, MatchScore: &score},
	})
	require.NoError(t, err)

	updated, err := r.RepriceItem(item)
	require.NoError(t, err)
	require.True(t, updated)

	s, err := store.GetSuggestion(item.ID)
	require.NoError(t, err)
	require.NotNil(t, s)

	// The offer feeds the anchor ceiling, never the FMV basis.
	assert.Equal(t, 1, s.BasisCount)
	assert.Equal(t, 1, s.ActiveCount)
	require.NotNil(t, s.ActiveAnchorPrice)
	assert.Equal(t, 1500.0, *s.ActiveAnchorPrice)

	rows, err := store.GetEvidence(item.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].UsedInFMV)
	assert.False(t, rows[1].UsedInFMV)
}

func TestRepriceItem_NoEvidenceClearsSuggestion(t *testing.T) {
	r, store := testRepricer(t)
	item := seedRepriceItem(t, store, "Werewolf by Night")[0]

	// A previous run left a suggestion; with all comps gone the recompute
	// must remove it instead of leaving it stale.
	score := 0.9
	_, err := store.InsertComps([]*models.Comp{
		{ItemID: item.ID, Source: "ebay", ListingType: models.ListingTypeSold,
			Title: "Werewolf by Night #32", Price: 500, MatchScore: &score},
	})
	require.NoError(t, err)
	updated, err := r.RepriceItem(item)
	require.NoError(t, err)
	require.True(t, updated)

	fresh := seedRepriceItem(t, store, "Werewolf by Night")[0]
	updated, err = r.RepriceItem(fresh)
	require.NoError(t, err)
	assert.False(t, updated)

	s, err := store.GetSuggestion(fresh.ID)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestRepriceAll_Stats(t *testing.T) {
	r, store := testRepricer(t)
	items := seedRepriceItem(t, store, "Batman", "Detective Comics")

	score := 0.8
	_, err := store.InsertComps([]*models.Comp{
		{ItemID: items[0].ID, Source: "ebay", ListingType: models.ListingTypeSold,
			Title: "Batman #1", Price: 400, MatchScore: &score},
	})
	require.NoError(t, err)

	stats, err := r.RepriceAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, 1, stats.Cleared)
	assert.Equal(t, 0, stats.Failed)
}

func TestTrend_Insufficient(t *testing.T) {
	label, pct := Trend([]float64{100, 101, 102})
	assert.Equal(t, "insufficient", label)
	assert.Nil(t, pct)

	// Zero prices do not count toward the minimum
	label, _ = Trend([]float64{100, 0, 101, 0, 102, 0, 103, 0, 104})
	assert.Equal(t, "insufficient", label)
}

func TestTrend_Rising(t *testing.T) {
	prices := []float64{110, 112, 108, 111, 109, 100, 99, 101, 100, 98}
	label, pct := Trend(prices)
	assert.Equal(t, "rising", label)
	require.NotNil(t, pct)
	assert.InDelta(t, 10.0, *pct, 1e-9)
}

func TestTrend_Falling(t *testing.T) {
	prices := []float64{90, 89, 91, 90, 88, 100, 99, 101, 100, 102}
	label, pct := Trend(prices)
	assert.Equal(t, "falling", label)
	require.NotNil(t, pct)
	assert.InDelta(t, -10.0, *pct, 1e-9)
}

func TestTrend_FlatWithinDeadBand(t *testing.T) {
	prices := []float64{103, 102, 104, 103, 101, 100, 99, 101, 100, 98}
	label, pct := Trend(prices)
	assert.Equal(t, "flat", label)
	require.NotNil(t, pct)
	assert.InDelta(t, 3.0, *pct, 1e-9)
}
