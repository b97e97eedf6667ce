package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slabwise/server/internal/models"
)

func activeComp(id int64, title string, price float64, score float64) *models.Comp {
	return &models.Comp{
		ID:          id,
		ListingType: models.ListingTypeActive,
		Title:       title,
		Price:       price,
		GradeNumeric: func() *float64 {
			g := 9.4
			return &g
		}(),
		GradeCompany: sptr("CGC"),
		MatchScore:   &score,
	}
}

func TestCollapseActive_MergesNearIdenticalListings(t *testing.T) {
	// Identical price/grade signature, near-identical titles: one listing
	// duplicated across result pages.
	a := activeComp(1, "Amazing Spider-Man #20 CGC 9.4 OW pages", 750, 0.8)
	b := activeComp(2, "Amazing Spider-Man #20 CGC 9.4 OW page", 750, 0.7)
	c := activeComp(3, "Amazing Spider-Man #20 CGC 9.4", 600, 0.9)

	reps := CollapseActive([]*models.Comp{a, b, c}, 20)
	require.Len(t, reps, 2)

	// Best score kept as representative of the merged pair
	assert.Equal(t, int64(3), reps[0].ID)
	assert.Equal(t, int64(1), reps[1].ID)
}

func TestCollapseActive_DifferentSignatureStaysDistinct(t *testing.T) {
	a := activeComp(1, "Amazing Spider-Man #20 CGC 9.4", 750, 0.8)
	b := activeComp(2, "Amazing Spider-Man #20 CGC 9.4", 750, 0.8)
	b.GradeNumeric = fptr(9.0)
	c := activeComp(3, "Amazing Spider-Man #20 CGC 9.4", 750, 0.8)
	c.GradeCompany = nil
	c.IsRaw = true

	reps := CollapseActive([]*models.Comp{a, b, c}, 20)
	assert.Len(t, reps, 3)
}

func TestCollapseActive_UnrelatedTitlesNotMerged(t *testing.T) {
	a := activeComp(1, "Amazing Spider-Man #20 CGC 9.4", 750, 0.8)
	b := activeComp(2, "Fantastic Four #48 CGC 9.4", 750, 0.8)

	reps := CollapseActive([]*models.Comp{a, b}, 20)
	assert.Len(t, reps, 2)
}

func TestCollapseActive_CapAndZeroPriceFilter(t *testing.T) {
	var comps []*models.Comp
	for i := 0; i < 6; i++ {
		comps = append(comps, activeComp(int64(i+1), "Hulk #181 CGC 9.4", 100+float64(i)*50, 0.5))
	}
	comps = append(comps, activeComp(99, "Hulk #181 CGC 9.4 free", 0, 0.99))

	reps := CollapseActive(comps, 3)
	assert.Len(t, reps, 3)
	for _, r := range reps {
		assert.Greater(t, r.Price, 0.0)
	}
}
