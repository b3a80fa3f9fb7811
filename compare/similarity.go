package compare

import (
	"math"
	"strings"
	"unicode"

	"github.com/life4/genesis/slices"
	"github.com/pmezard/go-difflib/difflib"
)

// Similarity holds the fuzzy scores of two strings, each in [0,1] rounded to
// two decimals. Best is the highest of the four.
type Similarity struct {
	Ratio          float64
	PartialRatio   float64
	TokenSortRatio float64
	TokenSetRatio  float64
	Best           float64
}

// Details lists the individual scores for reporting.
func (s Similarity) Details() map[string]float64 {
	return map[string]float64{
		"ratio":            s.Ratio,
		"partial_ratio":    s.PartialRatio,
		"token_sort_ratio": s.TokenSortRatio,
		"token_set_ratio":  s.TokenSetRatio,
	}
}

// Similar scores a against b with SequenceMatcher ratios over characters:
//
//	ratio       whole strings
//	partial     best window of the longer string the size of the shorter
//	token sort  words sorted before comparing
//	token set   shared words compared against each side's remainder
//
// Identical strings, including two empty ones, score 1.
func Similar(a, b string) Similarity {
	if a == b {
		return Similarity{Ratio: 1, PartialRatio: 1, TokenSortRatio: 1, TokenSetRatio: 1, Best: 1}
	}
	s := Similarity{
		Ratio:          round2(ratio(a, b)),
		PartialRatio:   round2(partialRatio(a, b)),
		TokenSortRatio: round2(tokenSortRatio(a, b)),
		TokenSetRatio:  round2(tokenSetRatio(a, b)),
	}
	s.Best = math.Max(math.Max(s.Ratio, s.PartialRatio), math.Max(s.TokenSortRatio, s.TokenSetRatio))
	return s
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func chars(s string) []string {
	return strings.Split(s, "")
}

func ratio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return difflib.NewMatcher(chars(a), chars(b)).Ratio()
}

func partialRatio(a, b string) float64 {
	shorter, longer := chars(a), chars(b)
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) == 0 {
		return 0
	}

	best := 0.0
	for _, block := range difflib.NewMatcher(shorter, longer).GetMatchingBlocks() {
		start := block.B - block.A
		if start < 0 {
			start = 0
		}
		end := start + len(shorter)
		if end > len(longer) {
			end = len(longer)
		}
		r := difflib.NewMatcher(shorter, longer[start:end]).Ratio()
		if r > 0.995 {
			return 1
		}
		if r > best {
			best = r
		}
	}
	return best
}

// tokens splits on anything that is not a letter or digit and lowercases.
func tokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func tokenSortRatio(a, b string) float64 {
	return ratio(
		strings.Join(slices.Sort(tokens(a)), " "),
		strings.Join(slices.Sort(tokens(b)), " "),
	)
}

func tokenSetRatio(a, b string) float64 {
	ta, tb := slices.Uniq(tokens(a)), slices.Uniq(tokens(b))
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	intersection := slices.Sort(slices.Filter(ta, func(t string) bool { return slices.Contains(tb, t) }))
	onlyA := slices.Sort(slices.Filter(ta, func(t string) bool { return !slices.Contains(tb, t) }))
	onlyB := slices.Sort(slices.Filter(tb, func(t string) bool { return !slices.Contains(ta, t) }))

	common := strings.Join(intersection, " ")
	withA := strings.TrimSpace(common + " " + strings.Join(onlyA, " "))
	withB := strings.TrimSpace(common + " " + strings.Join(onlyB, " "))

	return math.Max(math.Max(ratio(common, withA), ratio(common, withB)), ratio(withA, withB))
}
