package marketplace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func iptr(v int) *int       { return &v }
func sptr(v string) *string { return &v }

func TestQueryCandidates_Basic(t *testing.T) {
	qs := QueryCandidates("Amazing Spider-Man", sptr("129"), iptr(1974))
	assert.Equal(t, []string{
		"Amazing Spider-Man 129 1974",
		"Amazing Spider-Man 129",
	}, qs)
}

func TestQueryCandidates_NoYear(t *testing.T) {
	qs := QueryCandidates("Daredevil", sptr("1"), nil)
	assert.Equal(t, []string{"Daredevil 1"}, qs)
}

func TestQueryCandidates_ThorAliases(t *testing.T) {
	qs := QueryCandidates("Mighty Thor", sptr("126"), iptr(1966))
	assert.Contains(t, qs, "Journey into Mystery 126 1966")
	assert.Contains(t, qs, "Thor 126 1966")
	assert.Contains(t, qs, "Mighty Thor 126")
}

func TestQueryCandidates_Dedupes(t *testing.T) {
	qs := QueryCandidates("X-Men", sptr("1"), nil)
	seen := make(map[string]bool)
	for _, q := range qs {
		assert.False(t, seen[q], "duplicate query %q", q)
		seen[q] = true
	}
}

func TestStrictMatch_AcceptsSameBook(t *testing.T) {
	ok := StrictTitleIssueMatch("Amazing Spider-Man", sptr("129"), iptr(1974),
		"Amazing Spider-Man #129 CGC 6.5 1st Punisher 1974")
	assert.True(t, ok)
}

func TestStrictMatch_RejectsExcludedKeywords(t *testing.T) {
	cases := []string{
		"Amazing Spider-Man #129 facsimile edition",
		"Amazing Spider-Man #129 Marvel Legends reprint",
		"Amazing Spider-Man lot of 5 including #129",
	}
	for _, title := range cases {
		assert.False(t, StrictTitleIssueMatch("Amazing Spider-Man", sptr("129"), iptr(1974), title), title)
	}
}

func TestStrictMatch_AnnualCrossRejected(t *testing.T) {
	assert.False(t, StrictTitleIssueMatch("Amazing Spider-Man", sptr("1"), iptr(1963),
		"Amazing Spider-Man Annual #1 CGC 4.0"))
	assert.True(t, StrictTitleIssueMatch("Amazing Spider-Man Annual", sptr("1"), nil,
		"Amazing Spider-Man Annual #1 CGC 4.0"))
}

func TestStrictMatch_ModernVolumeRejectedForLegacyTarget(t *testing.T) {
	assert.False(t, StrictTitleIssueMatch("Amazing Spider-Man", sptr("14"), iptr(1964),
		"Amazing Spider-Man Vol 3 #14"))
}

func TestStrictMatch_IssueTokenExact(t *testing.T) {
	// Lettered variants of the same number are different listings.
	assert.False(t, StrictTitleIssueMatch("Amazing Spider-Man", sptr("20"), nil,
		"Amazing Spider-Man #20A second print"))
	// A longer number containing the digits is not a match.
	assert.False(t, StrictTitleIssueMatch("Amazing Spider-Man", sptr("20"), nil,
		"Amazing Spider-Man #120 CGC 8.0"))
}

func TestStrictMatch_IssueMustPairWithTitle(t *testing.T) {
	// The issue number appearing far from the series phrase is mention
	// text, not book identity.
	assert.False(t, StrictTitleIssueMatch("Amazing Spider-Man", sptr("20"), nil,
		"Huge Amazing Spider-Man art print poster collection vintage classic marvel heroes number 20"))
	assert.True(t, StrictTitleIssueMatch("Amazing Spider-Man", sptr("20"), nil,
		"Amazing Spider-Man #20 CGC 3.0 first Scorpion"))
}

func TestStrictMatch_ThorAliasAccepted(t *testing.T) {
	assert.True(t, StrictTitleIssueMatch("Mighty Thor", sptr("126"), iptr(1966),
		"Thor #126 CGC 4.5 Journey Into Mystery continues 1966"))
	assert.True(t, StrictTitleIssueMatch("Mighty Thor", sptr("83"), iptr(1962),
		"Journey Into Mystery #83 first Thor 1962"))
}

func TestStrictMatch_XMenSiblingSeriesRejected(t *testing.T) {
	assert.False(t, StrictTitleIssueMatch("X-Men", sptr("101"), iptr(1976),
		"Uncanny X-Men #101 first Phoenix 1976"))
}

func TestStrictMatch_LegacyXMenNeedsYearCue(t *testing.T) {
	// No year in the listing title at all: too risky for legacy X-Men.
	assert.False(t, StrictTitleIssueMatch("X-Men", sptr("12"), iptr(1965),
		"X-Men #12 CGC 5.0"))
	assert.True(t, StrictTitleIssueMatch("X-Men", sptr("12"), iptr(1965),
		"X-Men #12 1965 first Juggernaut"))
}

func TestStrictMatch_ModernYearRejectedForLegacyTarget(t *testing.T) {
	assert.False(t, StrictTitleIssueMatch("Amazing Spider-Man", sptr("14"), iptr(1964),
		"Amazing Spider-Man #14 2016 printing"))
}
