package parse

import (
	"regexp"
	"strconv"
	"strings"
)

// Grade tokens follow the standard third-party grading ladder. Matching an
// explicit ladder instead of any float keeps publication years and issue
// numbers from being read as grades.
var (
	gradeRe = regexp.MustCompile(`\b(10\.0|9\.9|9\.8|9\.6|9\.4|9\.2|9\.0|8\.5|8\.0|7\.5|7\.0|6\.5|6\.0|5\.5|5\.0|4\.5|4\.0|3\.5|3\.0|2\.5|2\.0|1\.8|1\.5|1\.0|0\.5)\b`)
	// Bare-integer grades are only trusted next to a company token;
	// anywhere else an integer is more likely an issue number or year.
	companyGradeRe = regexp.MustCompile(`(?i)\b(?:CGC|CBCS)\s+(10|[1-9])(?:\b|\.5\b)`)
	signedRe       = regexp.MustCompile(`(?i)\b(signed|autograph(?:ed)?|signature series|ss)\b`)
	issueRe        = regexp.MustCompile(`#\s*(\d+)`)
	digitRunRe     = regexp.MustCompile(`\b(\d+)\b`)
	nonAlnumRe     = regexp.MustCompile(`[^a-z0-9 ]+`)
	spaceRe        = regexp.MustCompile(`\s+`)
)

// gradingCompanies is the fixed detection vocabulary. Order matters: the
// first token found wins.
var gradingCompanies = []string{"CGC", "CBCS"}

// Signals holds everything the parser could extract from one listing. Any
// field the title or payload did not yield stays nil; downstream stages
// treat nil as unknown, never as zero.
type Signals struct {
	GradeNumeric *float64
	GradeCompany *string
	IsRaw        bool
	IsSigned     bool
	IssueNumber  *string
}

// Payload carries the structured fields a marketplace response may expose
// alongside the title. All optional.
type Payload struct {
	Grade     *string
	Condition *string
}

// ParseTitle extracts grade signals from a free-text listing title.
// It never fails: unmatched fields are left nil.
func ParseTitle(title string) Signals {
	return ParseListing(title, nil)
}

// ParseListing extracts grade signals from a title plus an optional
// structured payload. Payload fields fill gaps the title left; they never
// override a signal the title already produced.
func ParseListing(title string, payload *Payload) Signals {
	text := title
	if payload != nil {
		if payload.Grade != nil {
			text += " " + *payload.Grade
		}
		if payload.Condition != nil {
			text += " " + *payload.Condition
		}
	}

	var sig Signals

	if m := gradeRe.FindString(text); m != "" {
		if g, err := strconv.ParseFloat(m, 64); err == nil {
			sig.GradeNumeric = &g
		}
	} else if m := companyGradeRe.FindStringSubmatch(text); m != nil {
		if g, err := strconv.ParseFloat(m[1], 64); err == nil {
			sig.GradeNumeric = &g
		}
	}

	upper := strings.ToUpper(text)
	for _, company := range gradingCompanies {
		if containsToken(upper, company) {
			c := company
			sig.GradeCompany = &c
			break
		}
	}

	// A grading-company token means slabbed regardless of raw hints.
	// Everything else, including titles with no grade signal at all, is
	// treated as a raw copy rather than silently dropped.
	sig.IsRaw = sig.GradeCompany == nil

	sig.IsSigned = signedRe.MatchString(text)
	sig.IssueNumber = parseIssueNumber(title)

	return sig
}

// parseIssueNumber pulls the canonical issue out of a title: the first digit
// run after a '#' marker, else the first standalone digit run, with leading
// zeros stripped. Returns nil when the title carries no digits at all;
// comparison then degrades to string equality on the stored issue label.
func parseIssueNumber(title string) *string {
	var digits string
	if m := issueRe.FindStringSubmatch(title); m != nil {
		digits = m[1]
	} else if m := digitRunRe.FindStringSubmatch(title); m != nil {
		digits = m[1]
	}
	if digits == "" {
		return nil
	}
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		digits = "0"
	}
	return &digits
}

// NormalizeIssue canonicalizes a stored issue label the same way parsed
// issues are canonicalized, so "020" and "#20" compare equal. Labels
// without digits fall back to lowercase trimmed string equality.
func NormalizeIssue(issue string) string {
	if m := digitRunRe.FindStringSubmatch(issue); m != nil {
		n := strings.TrimLeft(m[1], "0")
		if n == "" {
			n = "0"
		}
		return n
	}
	return strings.ToLower(strings.TrimSpace(issue))
}

// NormalizeTitle lowercases and collapses a title to alphanumeric words.
func NormalizeTitle(s string) string {
	s = strings.ToLower(s)
	s = nonAlnumRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func containsToken(upper, token string) bool {
	idx := 0
	for {
		i := strings.Index(upper[idx:], token)
		if i < 0 {
			return false
		}
		i += idx
		before := i == 0 || !isAlnum(upper[i-1])
		afterIdx := i + len(token)
		after := afterIdx >= len(upper) || !isAlnum(upper[afterIdx])
		if before && after {
			return true
		}
		idx = i + len(token)
	}
}

func isAlnum(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}
