package models

import "time"

type GradeClass string

const (
	GradeClassSlabbed        GradeClass = "slabbed"
	GradeClassRawCommunity   GradeClass = "raw_community"
	GradeClassRawNoCommunity GradeClass = "raw_no_community"
)

const (
	StatusUnlisted = "unlisted"
	StatusDrafted  = "drafted"
	StatusSold     = "sold"
)

type Item struct {
	ID           int64     `json:"id"`
	SourceRow    *int      `json:"source_row"`
	Title        string    `json:"title"`
	Issue        *string   `json:"issue"`
	IssueSort    *int      `json:"issue_sort"`
	Year         *int      `json:"year"`
	Publisher    *string   `json:"publisher"`
	GradeRaw     *string   `json:"grade_raw"`
	GradeNumeric *float64  `json:"grade_numeric"`
	CertNumber   *string   `json:"cert_number"`
	Qualified    bool      `json:"qualified" gorm:"column:qualified_flag"`
	CommunityURL *string   `json:"community_url"`
	Notes        *string   `json:"notes"`
	Status       string    `json:"status"`
	SoldPrice    *float64  `json:"sold_price"`
	SoldDate     *string   `json:"sold_date"`
	CreatedAt    time.Time `json:"created_at"`
}

func (Item) TableName() string {
	return "items"
}

// Class derives the grade class from item state. A certificate always wins;
// a community assessment only counts while the item is raw.
func (i *Item) Class() GradeClass {
	if hasText(i.CertNumber) {
		return GradeClassSlabbed
	}
	if hasText(i.CommunityURL) {
		return GradeClassRawCommunity
	}
	return GradeClassRawNoCommunity
}

func (i *Item) IsSlabbed() bool {
	return i.Class() == GradeClassSlabbed
}

func hasText(s *string) bool {
	if s == nil {
		return false
	}
	for _, r := range *s {
		if r != ' ' && r != '\t' {
			return true
		}
	}
	return false
}
