package pricing

import (
	"math"

	"github.com/agnivade/levenshtein"

	"slabwise/server/internal/models"
	"slabwise/server/internal/parse"
	"slabwise/server/internal/scoring"
)

// Active listings duplicate heavily across search result pages, so two live
// listings with the same price/grade signature and near-identical titles are
// one listing for anchor purposes.
const activeTitleSimilarity = 0.90

// CollapseActive reduces simultaneous near-identical active/offer listings
// to a single representative each, best score first, capped at limit.
func CollapseActive(active []*models.Comp, limit int) []*models.Comp {
	usable := make([]*models.Comp, 0, len(active))
	for _, c := range active {
		if c.Price > 0 {
			usable = append(usable, c)
		}
	}
	scoring.SortComps(usable)

	var reps []*models.Comp
	for _, c := range usable {
		dup := false
		for _, r := range reps {
			if sameActiveListing(c, r) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		reps = append(reps, c)
		if len(reps) == limit {
			break
		}
	}
	return reps
}

// sameActiveListing matches on rounded price, grade, grading company and
// raw flag, plus normalized-title similarity. Exact title equality is not
// required: relistings tweak a word or two.
func sameActiveListing(a, b *models.Comp) bool {
	if math.Round(a.Price*100) != math.Round(b.Price*100) {
		return false
	}
	if !equalFloat(a.GradeNumeric, b.GradeNumeric) {
		return false
	}
	if companyOf(a) != companyOf(b) {
		return false
	}
	if a.IsRaw != b.IsRaw {
		return false
	}

	ta := parse.NormalizeTitle(a.Title)
	tb := parse.NormalizeTitle(b.Title)
	if ta == tb {
		return true
	}
	longest := len(ta)
	if len(tb) > longest {
		longest = len(tb)
	}
	if longest == 0 {
		return true
	}
	dist := levenshtein.ComputeDistance(ta, tb)
	return 1-float64(dist)/float64(longest) >= activeTitleSimilarity
}

func equalFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func companyOf(c *models.Comp) string {
	if c.GradeCompany == nil {
		return ""
	}
	return *c.GradeCompany
}
