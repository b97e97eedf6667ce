package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"slabwise/server/internal/models"
)

func fptr(v float64) *float64 { return &v }
func sptr(v string) *string   { return &v }

func TestWriteDecisionQueue(t *testing.T) {
	conf := models.ConfidenceHigh
	entries := []models.QueueEntry{
		{
			Item: &models.Item{
				ID:       1,
				Title:    "Amazing Spider-Man",
				Issue:    sptr("129"),
				GradeRaw: sptr("6.5"),
				Status:   models.StatusUnlisted,
			},
			Suggestion: &models.PriceSuggestion{
				ItemID:       1,
				MarketPrice:  fptr(950),
				QuickSale:    fptr(850),
				PremiumPrice: fptr(1100),
				Confidence:   &conf,
				BasisCount:   9,
			},
			Decision: models.Decision{
				ItemID:      1,
				Action:      models.ActionSellRawNow,
				ChannelHint: models.ChannelFixedPriceOffers,
				TargetPrice: fptr(1045),
			},
			TrendLabel: "flat",
			TrendPct:   fptr(2.5),
		},
		{
			Item:       &models.Item{ID: 2, Title: "Werewolf by Night", Status: models.StatusUnlisted},
			Decision:   models.Decision{ItemID: 2, Action: models.ActionNeedsComps},
			TrendLabel: "insufficient",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteDecisionQueue(&buf, entries))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "Title", rows[0][0])
	assert.Equal(t, "Action", rows[0][5])

	assert.Equal(t, "Amazing Spider-Man", rows[1][0])
	assert.Equal(t, "129", rows[1][1])
	assert.Equal(t, models.ActionSellRawNow, rows[1][5])
	assert.Equal(t, "950", rows[1][7])
	assert.Equal(t, models.ConfidenceHigh, rows[1][13])

	assert.Equal(t, "Werewolf by Night", rows[2][0])
	assert.Equal(t, models.ActionNeedsComps, rows[2][5])
}
