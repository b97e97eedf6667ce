package models

import "time"

const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

type PriceSuggestion struct {
	ItemID               int64     `json:"item_id"`
	QuickSale            *float64  `json:"quick_sale"`
	MarketPrice          *float64  `json:"market_price"`
	PremiumPrice         *float64  `json:"premium_price"`
	UniversalMarketPrice *float64  `json:"universal_market_price"`
	QualifiedMarketPrice *float64  `json:"qualified_market_price"`
	ActiveAnchorPrice    *float64  `json:"active_anchor_price"`
	ActiveCount          int       `json:"active_count"`
	Confidence           *string   `json:"confidence"`
	BasisCount           int       `json:"basis_count"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// HasEvidence reports whether the suggestion is backed by at least one sold
// comp. Callers must treat the no-evidence state as "unknown", never as a
// zero price.
func (s *PriceSuggestion) HasEvidence() bool {
	return s != nil && s.BasisCount > 0 && s.MarketPrice != nil
}

type EvidenceLink struct {
	ItemID    int64 `json:"item_id"`
	CompID    int64 `json:"comp_id"`
	Rank      int   `json:"rank"`
	UsedInFMV bool  `json:"used_in_fmv"`
}
