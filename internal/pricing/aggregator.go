package pricing

import (
	"math"
	"sort"
	"strings"
	"time"

	"slabwise/server/internal/models"
	"slabwise/server/internal/parse"
	"slabwise/server/internal/scoring"
)

// qualifiedFallbackDiscount prices a qualified copy off universal evidence
// when no qualified-designation comps exist at all.
const qualifiedFallbackDiscount = 0.6

// Options controls evidence selection and band aggregation. Zero values are
// replaced with the historical defaults.
type Options struct {
	EvidenceCap           int
	ActiveCap             int
	HighConfidenceCount   int
	MediumConfidenceCount int
	QualifiedKeywords     []string
}

func (o Options) withDefaults() Options {
	if o.EvidenceCap <= 0 {
		o.EvidenceCap = 40
	}
	if o.ActiveCap <= 0 {
		o.ActiveCap = 20
	}
	if o.HighConfidenceCount <= 0 {
		o.HighConfidenceCount = 8
	}
	if o.MediumConfidenceCount <= 0 {
		o.MediumConfidenceCount = 3
	}
	if len(o.QualifiedKeywords) == 0 {
		o.QualifiedKeywords = []string{"qualified", "restored", "married", "color touch"}
	}
	return o
}

// Result pairs the recomputed suggestion with the evidence links that back
// it. Sold evidence carries used_in_fmv and ranks 1..n; active evidence
// continues the rank sequence with used_in_fmv false, so ranks stay
// contiguous per item.
type Result struct {
	Suggestion models.PriceSuggestion
	Evidence   []models.EvidenceLink
}

// Aggregate converts an item's comps into price bands, a confidence tier
// and the evidence links backing them. Sold comps are the only FMV basis;
// active comps feed the anchor ceiling only. With no usable sold comp every
// price field is nil and confidence is nil: no data is never priced as
// zero.
func Aggregate(item *models.Item, sold, active []*models.Comp, opts Options) Result {
	opts = opts.withDefaults()

	selected := SelectSoldEvidence(sold, opts.EvidenceCap)
	actives := CollapseActive(active, opts.ActiveCap)

	res := Result{Suggestion: models.PriceSuggestion{
		ItemID:    item.ID,
		UpdatedAt: time.Now().UTC(),
	}}

	rank := 0
	for _, c := range selected {
		rank++
		res.Evidence = append(res.Evidence, models.EvidenceLink{
			ItemID: item.ID, CompID: c.ID, Rank: rank, UsedInFMV: true,
		})
	}
	for _, c := range actives {
		rank++
		res.Evidence = append(res.Evidence, models.EvidenceLink{
			ItemID: item.ID, CompID: c.ID, Rank: rank, UsedInFMV: false,
		})
	}

	res.Suggestion.BasisCount = len(selected)
	res.Suggestion.ActiveCount = len(actives)

	if len(actives) > 0 {
		res.Suggestion.ActiveAnchorPrice = round2(median(prices(actives)))
	}

	if len(selected) == 0 {
		return res
	}

	universe := prices(selected)
	universal := median(universe)
	res.Suggestion.UniversalMarketPrice = round2(universal)

	// Qualified-subset band: comps whose restoration/defect designation
	// matches the item's own qualified flag. The matching rule is keyword
	// driven and configurable.
	var matched []float64
	for _, c := range selected {
		if IsQualifiedComp(c, opts.QualifiedKeywords) == item.Qualified {
			matched = append(matched, c.Price)
		}
	}
	if len(matched) > 0 {
		res.Suggestion.QualifiedMarketPrice = round2(median(matched))
	}

	// Headline bands come from the qualified-matching subset when one
	// exists; otherwise fall back to universal evidence, discounted for a
	// qualified item since unqualified sales overstate its value.
	bandSet := matched
	mult := 1.0
	if len(bandSet) == 0 {
		bandSet = universe
		if item.Qualified {
			mult = qualifiedFallbackDiscount
		}
	}

	res.Suggestion.QuickSale = round2(quantile(bandSet, 0.25) * mult)
	res.Suggestion.MarketPrice = round2(median(bandSet) * mult)
	res.Suggestion.PremiumPrice = round2(quantile(bandSet, 0.75) * mult)

	conf := confidenceFromCount(len(selected), opts)
	res.Suggestion.Confidence = &conf

	return res
}

// IsQualifiedComp reports whether a comp's title carries a qualified
// (restoration/defect) designation.
func IsQualifiedComp(c *models.Comp, keywords []string) bool {
	title := strings.ToLower(c.Title)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(title, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// SelectSoldEvidence orders sold comps (score desc, sold date desc, id
// desc), drops near-duplicate rows, and caps the window.
func SelectSoldEvidence(sold []*models.Comp, limit int) []*models.Comp {
	usable := make([]*models.Comp, 0, len(sold))
	for _, c := range sold {
		if c.Price > 0 {
			usable = append(usable, c)
		}
	}
	scoring.SortComps(usable)
	usable = dedupeSoldRows(usable)
	if len(usable) > limit {
		usable = usable[:limit]
	}
	return usable
}

// dedupeSoldRows drops rows that repeat an earlier (normalized title,
// rounded price, sold date) triple; sold feeds frequently echo the same
// transaction across pages.
func dedupeSoldRows(comps []*models.Comp) []*models.Comp {
	type key struct {
		title string
		price float64
		date  string
	}
	seen := make(map[key]bool, len(comps))
	out := comps[:0]
	for _, c := range comps {
		k := key{
			title: parse.NormalizeTitle(c.Title),
			price: math.Round(c.Price*100) / 100,
		}
		if c.SoldDate != nil {
			k.date = *c.SoldDate
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, c)
	}
	return out
}

func confidenceFromCount(n int, opts Options) string {
	switch {
	case n >= opts.HighConfidenceCount:
		return models.ConfidenceHigh
	case n >= opts.MediumConfidenceCount:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

func prices(comps []*models.Comp) []float64 {
	out := make([]float64, 0, len(comps))
	for _, c := range comps {
		out = append(out, c.Price)
	}
	return out
}

func median(vals []float64) float64 {
	return quantile(vals, 0.5)
}

// quantile with linear interpolation between closest ranks.
func quantile(vals []float64, q float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	s := make([]float64, len(vals))
	copy(s, vals)
	sort.Float64s(s)

	pos := q * float64(len(s)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return s[lo]
	}
	frac := pos - float64(lo)
	return s[lo] + frac*(s[hi]-s[lo])
}

func round2(v float64) *float64 {
	r := math.Round(v*100) / 100
	return &r
}
