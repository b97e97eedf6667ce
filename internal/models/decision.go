package models

const (
	ActionAlreadySold       = "already_sold"
	ActionListNowSlabbed    = "list_now_slabbed"
	ActionSlabCandidate     = "slab_candidate"
	ActionSellRawNow        = "sell_raw_now"
	ActionGetCommunityGrade = "get_community_grade"
	ActionNeedsComps        = "needs_comps"
)

const (
	ChannelMajorAuction     = "heritage_or_major_auction"
	ChannelFixedPriceOffers = "ebay_fixed_price_offers"
	ChannelGroups           = "ebay_or_facebook_groups"
	ChannelDefault          = "ebay"
	ChannelPrepCommunity    = "prep_community_then_ebay"
)

// QueueEntry is one row of the decision queue: an item joined with its
// current suggestion, decision, and sold-price trend.
type QueueEntry struct {
	Item       *Item            `json:"item"`
	Suggestion *PriceSuggestion `json:"suggestion"`
	Decision   Decision         `json:"decision"`
	TrendLabel string           `json:"trend_label"`
	TrendPct   *float64         `json:"trend_pct,omitempty"`
}

type Decision struct {
	ItemID      int64    `json:"item_id"`
	Action      string   `json:"action"`
	TargetPrice *float64 `json:"target_price,omitempty"`
	FloorPrice  *float64 `json:"floor_price,omitempty"`
	AnchorPrice *float64 `json:"anchor_price,omitempty"`
	NetRaw      *float64 `json:"net_raw,omitempty"`
	NetSlabbed  *float64 `json:"net_slabbed,omitempty"`
	SlabLift    *float64 `json:"slab_lift,omitempty"`
	SlabLiftPct *float64 `json:"slab_lift_pct,omitempty"`
	ChannelHint string   `json:"channel_hint,omitempty"`
}
