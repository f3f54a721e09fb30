package property

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Filter returns the properties matching term in their original order.
// Absent (empty) fields never match; an empty term keeps every record.
func Filter(props []Property, term string) []Property {
	out := make([]Property, 0, len(props))
	if term == "" {
		return append(out, props...)
	}

	// a Caser is stateful, so one per call
	fold := cases.Fold()
	needle := normalize(fold, term)

	for _, p := range props {
		if matches(fold, p, needle) {
			out = append(out, p)
		}
	}
	return out
}

func matches(fold cases.Caser, p Property, needle string) bool {
	for _, field := range []string{p.PlotNumber, p.District, p.Block, p.OwnerInfo} {
		if field == "" {
			continue
		}
		if strings.Contains(normalize(fold, field), needle) {
			return true
		}
	}
	return false
}

// normalize folds case after NFKC, so full-width plot numbers match their
// ASCII spelling.
func normalize(fold cases.Caser, s string) string {
	return fold.String(norm.NFKC.String(s))
}
