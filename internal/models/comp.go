package models

import "time"

const (
	ListingTypeSold   = "sold"
	ListingTypeActive = "active"
	ListingTypeOffer  = "offer"
)

type Comp struct {
	ID           int64     `json:"id"`
	ItemID       int64     `json:"item_id"`
	Source       string    `json:"source"`
	ListingType  string    `json:"listing_type"`
	Title        string    `json:"title"`
	Issue        *string   `json:"issue"`
	GradeNumeric *float64  `json:"grade_numeric"`
	GradeCompany *string   `json:"grade_company"`
	IsRaw        bool      `json:"is_raw"`
	IsSigned     bool      `json:"is_signed"`
	Price        float64   `json:"price"`
	Shipping     float64   `json:"shipping"`
	SoldDate     *string   `json:"sold_date"`
	URL          *string   `json:"url"`
	MatchScore   *float64  `json:"match_score"`
	RawPayload   string    `json:"raw_payload"`
	CreatedAt    time.Time `json:"created_at"`
}

func (Comp) TableName() string {
	return "market_comps"
}

func (c *Comp) IsSlabbed() bool {
	return hasText(c.GradeCompany)
}

// Listing is a normalized marketplace listing as handed to ingestion; the
// parser fills grade/company/raw/signed from the title and payload before
// the batch processor stores it as a comp.
type Listing struct {
	ItemID      int64   `json:"item_id"`
	Source      string  `json:"source"`
	ListingType string  `json:"listing_type"`
	Title       string  `json:"title"`
	Issue       *string `json:"issue"`
	Price       float64 `json:"price"`
	Shipping    float64 `json:"shipping"`
	SoldDate    *string `json:"sold_date"`
	URL         *string `json:"url"`
	RawPayload  string  `json:"raw_payload"`
}
