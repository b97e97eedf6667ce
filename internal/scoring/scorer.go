package scoring

import (
	"sort"

	"slabwise/server/internal/models"
)

// Penalty weights. Slab/raw parity must dominate the fully saturated grade
// distance: grading status is the single strongest predictor of value.
const (
	gradePenaltyMax    = 0.35
	gradeSaturation    = 3.0
	slabParityPenalty  = 0.40
	signedParityWeight = 0.15
)

// Target captures the attributes of the item a comp is being matched
// against.
type Target struct {
	GradeNumeric *float64
	IsSlabbed    bool
	IsSigned     bool
	Qualified    bool
}

// TargetForItem builds a scoring target from inventory state. Inventory
// items are treated as unsigned; signed comps are penalized against them.
func TargetForItem(item *models.Item) Target {
	return Target{
		GradeNumeric: item.GradeNumeric,
		IsSlabbed:    item.IsSlabbed(),
		Qualified:    item.Qualified,
	}
}

// Score computes the 0..1 similarity between a target item and a candidate
// comp. It starts at 1.0 and applies penalties; identical attributes score
// a full 1.0.
func Score(target Target, comp *models.Comp) float64 {
	score := 1.0

	// Grade distance, skipped entirely when either side is unknown. An
	// unknown grade must not be treated as distance zero.
	if target.GradeNumeric != nil && comp.GradeNumeric != nil {
		diff := *target.GradeNumeric - *comp.GradeNumeric
		if diff < 0 {
			diff = -diff
		}
		if diff > gradeSaturation {
			diff = gradeSaturation
		}
		score -= gradePenaltyMax * (diff / gradeSaturation)
	}

	if target.IsSlabbed != comp.IsSlabbed() {
		score -= slabParityPenalty
	}

	if target.IsSigned != comp.IsSigned {
		score -= signedParityWeight
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Less orders comps for evidence ranking: score descending, then sold date
// descending, then id descending. The ordering is total, so repeated runs
// over the same rows produce identical evidence lists.
func Less(a, b *models.Comp) bool {
	sa, sb := scoreOf(a), scoreOf(b)
	if sa != sb {
		return sa > sb
	}
	da, db := dateOf(a), dateOf(b)
	if da != db {
		return da > db
	}
	return a.ID > b.ID
}

// SortComps sorts in place by Less.
func SortComps(comps []*models.Comp) {
	sort.SliceStable(comps, func(i, j int) bool {
		return Less(comps[i], comps[j])
	})
}

func scoreOf(c *models.Comp) float64 {
	if c.MatchScore == nil {
		return 0
	}
	return *c.MatchScore
}

func dateOf(c *models.Comp) string {
	if c.SoldDate == nil {
		return ""
	}
	return *c.SoldDate
}
