package folio

import (
	"regexp"
	"strings"
)

// maxCutters bounds variant generation to 2^maxCutters candidates.
const maxCutters = 6

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	// Library of Congress class letters never have a space before the class number.
	classGapRe = regexp.MustCompile(`^([A-Za-z]{1,3})\s+(\d)`)
	classRe    = regexp.MustCompile(`^[A-Za-z]{1,3}\d`)
	// A cutter is a period, one capital letter, then digits; the optional
	// leading space is part of the match so it can be toggled.
	cutterRe = regexp.MustCompile(` ?\.[A-Z]\d+`)
)

// NormalizeCallNumber trims, collapses whitespace runs, and closes the gap
// between the class letters and the class number ("GV 199" -> "GV199").
func NormalizeCallNumber(raw string) string {
	cn := whitespaceRe.ReplaceAllString(strings.TrimSpace(raw), " ")
	return classGapRe.ReplaceAllString(cn, "$1$2")
}

// IsAnomalousCallNumber reports whether cn fails to start with 1-3 letters
// followed by a digit.
func IsAnomalousCallNumber(cn string) bool {
	return !classRe.MatchString(cn)
}

// CallNumberVariants returns the spellings of cn that differ only in whether
// a space precedes each cutter, in a fixed order, without cn itself.
func CallNumberVariants(cn string) []string {
	if !strings.ContainsAny(cn, " .") {
		return nil
	}
	locs := cutterRe.FindAllStringIndex(cn, -1)
	if len(locs) == 0 {
		return nil
	}
	if len(locs) > maxCutters {
		locs = locs[:maxCutters]
	}

	// Split cn into the text between cutters and the cutters themselves
	// (without their leading space).
	gaps := make([]string, 0, len(locs)+1)
	cutters := make([]string, 0, len(locs))
	start := 0
	for _, loc := range locs {
		body := loc[0]
		if cn[body] == ' ' {
			body++
		}
		gaps = append(gaps, cn[start:loc[0]])
		cutters = append(cutters, cn[body:loc[1]])
		start = loc[1]
	}
	tail := cn[start:]

	seen := map[string]bool{cn: true}
	var variants []string
	for mask := 0; mask < 1<<len(cutters); mask++ {
		var b strings.Builder
		for i, cutter := range cutters {
			b.WriteString(gaps[i])
			if mask&(1<<i) != 0 {
				b.WriteByte(' ')
			}
			b.WriteString(cutter)
		}
		b.WriteString(tail)

		v := b.String()
		if !seen[v] {
			seen[v] = true
			variants = append(variants, v)
		}
	}
	return variants
}
