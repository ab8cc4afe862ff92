package mail

import (
	"regexp"
	"strings"
)

// Truncation markers, checked in document order; the earliest match wins.
var cutMarkers = []*regexp.Regexp{
	// "On Mon, Jan 2 at 3:04 PM, Jane wrote:" style reply attribution.
	regexp.MustCompile(`(?mi)^.*\bwrote:\s*$`),
	// Mail-client forwarding header block.
	regexp.MustCompile(`(?mi)^(?:From|Sent|To|Subject):\s`),
	// Explicit original-message separator.
	regexp.MustCompile(`(?mi)^-*\s*Original Message\s*-*$`),
	// Horizontal rules: a run of 2+ underscores or dashes on its own line.
	regexp.MustCompile(`(?m)^\s*[_-]{2,}\s*$`),
}

// The RFC 3676 signature separator: "-- " on its own line.
var signatureSep = regexp.MustCompile(`(?m)^-- $`)

var reQuoted = regexp.MustCompile(`(?m)^>.*$\n?`)

// Three or more consecutive blank lines collapse to exactly one.
var reBlankExcess = regexp.MustCompile(`\n{4,}`)

// Clean strips quoted replies, forwarding headers, signatures, and
// boilerplate from extracted message text, producing the "pure message"
// used for display and for model prompts. Deterministic; returns "" for
// empty input.
//
// Step order matters for reproducibility: line endings are normalized
// first, quoted lines are dropped, the text is truncated at the earliest
// reply/forward marker, then at the signature separator, and finally
// blank-line runs are collapsed.
func Clean(text string) string {
	if text == "" {
		return ""
	}

	s := strings.ReplaceAll(text, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.TrimSpace(s)

	s = reQuoted.ReplaceAllString(s, "")

	if cut := earliestMatch(s, cutMarkers); cut >= 0 {
		s = s[:cut]
	}

	if loc := signatureSep.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}

	s = reBlankExcess.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// earliestMatch returns the smallest start offset of any matching marker,
// or -1 when none match.
func earliestMatch(s string, markers []*regexp.Regexp) int {
	cut := -1
	for _, re := range markers {
		if loc := re.FindStringIndex(s); loc != nil {
			if cut == -1 || loc[0] < cut {
				cut = loc[0]
			}
		}
	}
	return cut
}
