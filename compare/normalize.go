package compare

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// normalize prepares display text for the text strategies. Text is always
// brought to NFC so composed and decomposed accents compare equal.
func normalize(s string, ignoreCase, ignoreWhitespace bool) string {
	s = norm.NFC.String(s)
	if ignoreCase {
		// A Caser keeps state, so each call gets its own.
		s = cases.Fold().String(s)
	}
	if ignoreWhitespace {
		s = strings.Join(strings.Fields(s), " ")
	}
	return s
}
