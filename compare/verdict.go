package compare

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Side names which input an extraction issue belongs to.
type Side string

const (
	SideExpected Side = "expected"
	SideActual   Side = "actual"
)

type ExtractionIssue struct {
	Side    Side   `json:"side"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Verdict is the outcome of one comparison. Both display strings are always
// set, whatever the outcome, so reports show what was compared.
type Verdict struct {
	Strategy         Strategy           `json:"strategy"`
	Matched          bool               `json:"matched"`
	Score            float64            `json:"score"`
	Threshold        float64            `json:"threshold,omitempty"`
	ExpectedDisplay  string             `json:"expected"`
	ActualDisplay    string             `json:"actual"`
	Reason           string             `json:"reason,omitempty"`
	ExtractionErrors []ExtractionIssue  `json:"extraction_errors,omitempty"`
	Error            string             `json:"error,omitempty"`
	Diff             string             `json:"diff,omitempty"`
	Details          map[string]float64 `json:"details,omitempty"`
}

// Failed reports whether the verdict carries an error annotation, as opposed
// to a plain mismatch.
func (v Verdict) Failed() bool {
	return v.Error != ""
}

func unifiedDiff(expected, actual, fromFile, toFile string) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		B:        difflib.SplitLines(actual),
		FromFile: fromFile,
		ToFile:   toFile,
		Context:  3,
	})
	if err != nil {
		return ""
	}
	return strings.TrimRight(diff, "\n")
}
