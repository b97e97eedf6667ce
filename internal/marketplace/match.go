package marketplace

import (
	"fmt"
	"regexp"
	"strings"

	"slabwise/server/internal/parse"
)

var (
	excludeTitleRe = regexp.MustCompile(`(?i)\b(reprint|variant|facsimile|toy\s*biz|promo|marvel\s*legends|lot\s*of|set\s*of|blank\s*cover|homage|incentive|ratio\s*variant|marvel\s*team\s*up)\b`)
	volumeRe       = regexp.MustCompile(`(?i)\bvol\.?\s*[0-9]+\b`)
	annualRe       = regexp.MustCompile(`(?i)\bannual\b`)
	yearRe         = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
)

// Older series sell under multiple names; search and match have to accept
// all of them.
var seriesAliases = map[string][]string{
	"mighty thor": {"mighty thor", "thor", "journey into mystery"},
	"x men":       {"x men", "the x men"},
}

// Sibling series whose titles contain the target phrase but are different
// books entirely.
var seriesExcludes = map[string][]string{
	"x men": {"astonishing x men", "uncanny x men", "all new x men", "x men legacy", "ultimate x men", "new x men"},
}

// QueryCandidates builds the marketplace search queries for one item, most
// specific first. Legacy series get their alias titles expanded.
func QueryCandidates(title string, issue *string, year *int) []string {
	t := strings.TrimSpace(title)
	iss := ""
	if issue != nil {
		iss = strings.TrimSpace(*issue)
	}
	yr := ""
	if year != nil {
		yr = fmt.Sprintf("%d", *year)
	}

	base := []string{strings.TrimSpace(t + " " + iss)}
	tnorm := parse.NormalizeTitle(t)

	switch {
	case tnorm == "mighty thor":
		base = []string{
			strings.TrimSpace("Journey into Mystery " + iss + " " + yr),
			strings.TrimSpace("Thor " + iss + " " + yr),
			strings.TrimSpace("Mighty Thor " + iss + " " + yr),
			strings.TrimSpace("Journey into Mystery " + iss),
			strings.TrimSpace("Mighty Thor " + iss),
		}
	case tnorm == "x men":
		base = []string{
			strings.TrimSpace("X-Men " + iss + " " + yr),
			strings.TrimSpace("The X-Men " + iss + " " + yr),
			strings.TrimSpace("X-Men " + iss),
		}
	case yr != "":
		base = []string{
			strings.TrimSpace(t + " " + iss + " " + yr),
			strings.TrimSpace(t + " " + iss),
		}
	}

	var out []string
	seen := make(map[string]bool)
	for _, q := range base {
		q = strings.Join(strings.Fields(q), " ")
		if q != "" && !seen[q] {
			seen[q] = true
			out = append(out, q)
		}
	}
	return out
}

// StrictTitleIssueMatch decides whether a marketplace listing title is the
// same book as the target item. It is deliberately conservative: a wrongly
// accepted comp poisons the price basis, a wrongly rejected one just
// shrinks it.
func StrictTitleIssueMatch(targetTitle string, targetIssue *string, targetYear *int, compTitle string) bool {
	tnorm := parse.NormalizeTitle(targetTitle)
	cnorm := parse.NormalizeTitle(compTitle)

	if excludeTitleRe.MatchString(compTitle) {
		return false
	}

	// Annuals and regular issues share numbering but not pricing.
	if annualRe.MatchString(targetTitle) != annualRe.MatchString(compTitle) {
		return false
	}

	if volumeRe.MatchString(compTitle) && targetYear != nil && *targetYear < 1985 {
		return false
	}

	variants := titleVariants(tnorm)
	if len(variants) > 0 && !anyContained(cnorm, variants) {
		return false
	}

	for _, bad := range seriesExcludes[tnorm] {
		if strings.Contains(cnorm, parse.NormalizeTitle(bad)) {
			return false
		}
	}

	issue := ""
	if targetIssue != nil {
		issue = strings.TrimSpace(*targetIssue)
	}
	if issue != "" && isDigits(issue) {
		if !matchesIssueToken(cnorm, issue) {
			return false
		}
		// The series phrase and issue must appear together as the book
		// identity, not as mention text elsewhere in the listing.
		if len(variants) > 0 && !matchesPair(cnorm, variants, issue) {
			return false
		}
	}

	// Silver/Bronze era targets collide with modern volumes sharing the
	// name; an explicit modern year in the title is disqualifying.
	if targetYear != nil && *targetYear < 1985 {
		years := compYears(compTitle)
		for _, y := range years {
			if y >= 2000 {
				return false
			}
		}
		if tnorm == "x men" {
			if len(years) == 0 {
				return false
			}
			legacy := false
			for _, y := range years {
				if y <= 1985 {
					legacy = true
				}
			}
			if !legacy {
				return false
			}
		}
	}

	return true
}

func titleVariants(tnorm string) []string {
	if tnorm == "" {
		return nil
	}
	raw := []string{tnorm}
	raw = append(raw, seriesAliases[tnorm]...)
	raw = append(raw, strings.ReplaceAll(tnorm, "the ", ""))
	raw = append(raw, strings.ReplaceAll(tnorm, "mighty ", ""))

	var out []string
	seen := make(map[string]bool)
	for _, v := range raw {
		v = parse.NormalizeTitle(v)
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func anyContained(cnorm string, variants []string) bool {
	for _, v := range variants {
		if strings.Contains(cnorm, v) {
			return true
		}
	}
	return false
}

// matchesIssueToken requires the issue to appear as an exact token in the
// normalized title: "20" matches, "20a" and "120" do not. A lettered
// variant token of the same number disqualifies the listing outright.
func matchesIssueToken(cnorm, issue string) bool {
	found := false
	for _, tok := range strings.Fields(cnorm) {
		if tok == issue {
			found = true
			continue
		}
		if strings.HasPrefix(tok, issue) && len(tok) == len(issue)+1 {
			c := tok[len(issue)]
			if c >= 'a' && c <= 'z' {
				return false
			}
		}
	}
	return found
}

// matchesPair checks that a title variant and the issue number appear close
// together, in either order, optionally separated by an issue marker.
func matchesPair(cnorm string, variants []string, issue string) bool {
	for _, tv := range variants {
		qt := regexp.QuoteMeta(tv)
		qi := regexp.QuoteMeta(issue)
		patterns := []string{
			`\b` + qt + `\b(?:\s+\w+){0,6}\s+(?:no\s+|issue\s+)?` + qi + `\b`,
			`\b(?:no\s+|issue\s+)?` + qi + `\b(?:\s+\w+){0,6}\s+` + qt + `\b`,
		}
		for _, p := range patterns {
			if regexp.MustCompile(p).MatchString(cnorm) {
				return true
			}
		}
	}
	return false
}

func compYears(compTitle string) []int {
	var years []int
	for _, m := range yearRe.FindAllString(compTitle, -1) {
		y := 0
		fmt.Sscanf(m, "%d", &y)
		if y > 0 {
			years = append(years, y)
		}
	}
	return years
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
