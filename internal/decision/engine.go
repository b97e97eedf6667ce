package decision

import (
	"math"
	"strings"

	"slabwise/server/internal/models"
)

// Economics holds the cost assumptions behind the raw-vs-slab comparison.
// The struct is passed by value into Decide so per-request overrides never
// touch shared state.
type Economics struct {
	PlatformFeeRate    float64 `json:"platform_fee_rate"`
	AvgShipCost        float64 `json:"avg_ship_cost"`
	GradingCost        float64 `json:"grading_cost"`
	GradingShipInsure  float64 `json:"grading_ship_insure_cost"`
	TimePenaltyRate    float64 `json:"time_penalty_rate"`
	SlabLiftMinDollars float64 `json:"slab_lift_min_dollars"`
	SlabLiftMinPct     float64 `json:"slab_lift_min_pct"`
}

// Input is the full state Decide evaluates: current item state plus the
// latest aggregated pricing for it. Suggestion may be nil when the item has
// never been priced.
type Input struct {
	Item       *models.Item
	Suggestion *models.PriceSuggestion
}

// Decide turns an item's market estimate into a listing decision. It is a
// pure function: same inputs, same decision.
func Decide(in Input, eco Economics) models.Decision {
	d := models.Decision{ItemID: in.Item.ID}
	class := in.Item.Class()

	if in.Item.Status == models.StatusSold {
		d.Action = models.ActionAlreadySold
		return d
	}

	var market *float64
	var confidence string
	var activeAnchor *float64
	var activeCount int
	if in.Suggestion.HasEvidence() {
		market = in.Suggestion.MarketPrice
		activeAnchor = in.Suggestion.ActiveAnchorPrice
		activeCount = in.Suggestion.ActiveCount
		if in.Suggestion.Confidence != nil {
			confidence = *in.Suggestion.Confidence
		}
	}

	if class == models.GradeClassSlabbed {
		d.Action = models.ActionListNowSlabbed
		d.ChannelHint = RecommendChannel(market, confidence, isKeyIssue(in.Item))
		if market != nil {
			mult := AskMultiplier(*market, confidence, class, activeCount)
			d.TargetPrice = round2p(*market * mult)
			d.FloorPrice = round2p(*market * floorRate(confidence))
		}
		d.AnchorPrice = anchorPrice(market, activeAnchor)
		return d
	}

	if market == nil {
		// No usable market estimate: "no data" is not "worth zero".
		if class == models.GradeClassRawNoCommunity {
			d.Action = models.ActionGetCommunityGrade
			d.ChannelHint = models.ChannelPrepCommunity
		} else {
			d.Action = models.ActionNeedsComps
			d.ChannelHint = models.ChannelFixedPriceOffers
		}
		return d
	}

	netRaw := *market*(1-eco.PlatformFeeRate) - eco.AvgShipCost
	expectedGross := *market * slabMultiplier(in.Item.GradeNumeric, in.Item.Qualified)
	netSlabbed := expectedGross*(1-eco.PlatformFeeRate) -
		eco.AvgShipCost -
		eco.GradingCost -
		eco.GradingShipInsure -
		expectedGross*eco.TimePenaltyRate

	lift := netSlabbed - netRaw
	liftPct := 0.0
	if netRaw > 0 {
		liftPct = lift / netRaw
	}

	switch {
	case lift >= eco.SlabLiftMinDollars && liftPct >= eco.SlabLiftMinPct:
		d.Action = models.ActionSlabCandidate
	case class == models.GradeClassRawNoCommunity:
		d.Action = models.ActionGetCommunityGrade
	default:
		d.Action = models.ActionSellRawNow
	}

	mult := AskMultiplier(*market, confidence, class, activeCount)
	d.TargetPrice = round2p(*market * mult)
	d.FloorPrice = round2p(*market * floorRate(confidence))
	d.AnchorPrice = anchorPrice(market, activeAnchor)
	d.NetRaw = round2p(netRaw)
	d.NetSlabbed = round2p(netSlabbed)
	d.SlabLift = round2p(lift)
	d.SlabLiftPct = round1p(liftPct * 100)
	d.ChannelHint = RecommendChannel(market, confidence, isKeyIssue(in.Item))
	return d
}

// AskMultiplier nudges the asking price off the market estimate: slabbed
// copies and proven demand push it up, thin evidence pulls it down. Clamped
// to [1.03, 1.18] no matter how the adjustments stack.
func AskMultiplier(market float64, confidence string, class models.GradeClass, activeCount int) float64 {
	m := 1.05
	if class == models.GradeClassSlabbed {
		m += 0.03
	}
	switch confidence {
	case models.ConfidenceHigh:
		m += 0.02
	case models.ConfidenceLow:
		m -= 0.02
	}

	if market >= 1000 {
		m += 0.03
	} else if market >= 300 {
		m += 0.01
	}

	if activeCount >= 8 {
		m += 0.01
	} else if activeCount == 0 {
		m -= 0.01
	}

	return math.Max(1.03, math.Min(1.18, m))
}

// RecommendChannel routes a listing to a sales channel. Big-ticket items go
// to a major auction house outright; mid-range items with strong evidence or
// key-issue status also clear that bar.
func RecommendChannel(market *float64, confidence string, isKey bool) string {
	p := 0.0
	if market != nil {
		p = *market
	}
	switch {
	case p >= 2500:
		return models.ChannelMajorAuction
	case p >= 1000 && (confidence == models.ConfidenceHigh || isKey):
		return models.ChannelMajorAuction
	case p >= 500:
		return models.ChannelFixedPriceOffers
	case p >= 150:
		return models.ChannelGroups
	default:
		return models.ChannelDefault
	}
}

// slabMultiplier estimates the post-grading gross as a multiple of the raw
// market price. Higher-grade raw copies carry more slab upside and less
// condition risk in grading; qualified copies get no lift at all.
func slabMultiplier(grade *float64, qualified bool) float64 {
	if qualified {
		return 1.0
	}
	g := 0.0
	if grade != nil {
		g = *grade
	}
	switch {
	case g >= 8.5:
		return 1.35
	case g >= 7.0:
		return 1.25
	default:
		return 1.10
	}
}

// floorRate discounts the minimum-accept price by evidence strength. Only
// the high tier earns the tighter floor; medium and low share a rate.
func floorRate(confidence string) float64 {
	if confidence == models.ConfidenceHigh {
		return 0.92
	}
	return 0.88
}

// anchorPrice is the higher of the model anchor and the observed median ask
// of live listings, so the suggested target never drifts below what sellers
// currently ask for comparable copies.
func anchorPrice(market, activeAnchor *float64) *float64 {
	var model *float64
	if market != nil {
		mult := 1.2
		if *market >= 500 {
			mult = 1.3
		}
		model = round2p(*market * mult)
	}

	switch {
	case model != nil && activeAnchor != nil:
		return round2p(math.Max(*model, *activeAnchor))
	case model != nil:
		return model
	case activeAnchor != nil:
		return round2p(*activeAnchor)
	default:
		return nil
	}
}

func isKeyIssue(item *models.Item) bool {
	return item.Notes != nil && strings.Contains(strings.ToLower(*item.Notes), "key")
}

func round2p(v float64) *float64 {
	r := math.Round(v*100) / 100
	return &r
}

func round1p(v float64) *float64 {
	r := math.Round(v*10) / 10
	return &r
}
