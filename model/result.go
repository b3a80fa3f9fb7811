package model

import (
	"math"
	"time"

	"github.com/life4/genesis/slices"
	"github.com/mykhaliev/llm-judge/compare"
)

// ============================================================================
// CASE RESULT
// ============================================================================

// Generation records the target call that produced a case's actual value.
type Generation struct {
	Provider  string `json:"provider"`
	LatencyMs int64  `json:"latencyMs"`
	Tokens    int    `json:"tokens,omitempty"`
}

// Exchange records the HTTP call that produced a case's actual value. Status is
// 0 when no response arrived.
type Exchange struct {
	Method         string `json:"method"`
	URL            string `json:"url"`
	Status         int    `json:"status"`
	ExpectedStatus int    `json:"expectedStatus"`
	LatencyMs      int64  `json:"latencyMs"`
}

// StatusMatched reports whether the response carried the expected status.
func (e *Exchange) StatusMatched() bool {
	return e == nil || e.Status == e.ExpectedStatus
}

type CaseResult struct {
	ID          string            `json:"id"`
	Description string            `json:"description,omitempty"`
	Strategy    string            `json:"strategy"`
	Passed      bool              `json:"passed"`
	Score       float64           `json:"score"`
	Expected    string            `json:"expected"`
	Actual      string            `json:"actual"`
	Verdict     *compare.Verdict  `json:"verdict,omitempty"`
	Generation  *Generation       `json:"generation,omitempty"`
	HTTP        *Exchange         `json:"http,omitempty"`
	Error       string            `json:"error,omitempty"`
	StartTime   time.Time         `json:"startTime"`
	DurationMs  int64             `json:"durationMs"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Errored reports a case that failed for a reason other than a plain
// mismatch: a configuration fault, a generation failure, a strict extraction
// failure or a judge failure.
func (r CaseResult) Errored() bool {
	return r.Error != "" || (r.Verdict != nil && r.Verdict.Failed())
}

// ============================================================================
// SUMMARY
// ============================================================================

type StrategyStats struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
}

type Summary struct {
	Total             int                      `json:"total"`
	Passed            int                      `json:"passed"`
	Failed            int                      `json:"failed"`
	Errored           int                      `json:"errored"`
	PassRate          float64                  `json:"passRate"`
	AverageScore      float64                  `json:"averageScore"`
	MinScore          float64                  `json:"minScore"`
	MaxScore          float64                  `json:"maxScore"`
	AverageDurationMs float64                  `json:"averageDurationMs"`
	TotalDurationMs   int64                    `json:"totalDurationMs"`
	AverageLatencyMs  float64                  `json:"averageLatencyMs,omitempty"`
	TotalTokens       int                      `json:"totalTokens,omitempty"`
	StatusMismatches  int                      `json:"statusMismatches,omitempty"`
	ByStrategy        map[string]StrategyStats `json:"byStrategy"`
}

// Summarize aggregates case results. Failed counts every case that did not
// pass, errored ones included.
func Summarize(results []CaseResult) Summary {
	s := Summary{
		Total:      len(results),
		ByStrategy: make(map[string]StrategyStats),
	}
	if len(results) == 0 {
		return s
	}

	s.Passed = len(slices.Filter(results, func(r CaseResult) bool { return r.Passed }))
	s.Failed = s.Total - s.Passed
	s.Errored = len(slices.Filter(results, CaseResult.Errored))
	s.PassRate = float64(s.Passed) / float64(s.Total)

	scores := slices.Map(results, func(r CaseResult) float64 { return r.Score })
	s.MinScore, s.MaxScore = math.Inf(1), math.Inf(-1)
	var scoreSum float64
	for _, score := range scores {
		scoreSum += score
		s.MinScore = math.Min(s.MinScore, score)
		s.MaxScore = math.Max(s.MaxScore, score)
	}
	s.AverageScore = scoreSum / float64(len(scores))

	for _, r := range results {
		s.TotalDurationMs += r.DurationMs

		stats := s.ByStrategy[r.Strategy]
		stats.Total++
		if r.Passed {
			stats.Passed++
		}
		s.ByStrategy[r.Strategy] = stats
	}
	s.AverageDurationMs = float64(s.TotalDurationMs) / float64(s.Total)

	generated := slices.Filter(results, func(r CaseResult) bool { return r.Generation != nil })
	if len(generated) > 0 {
		var latency int64
		for _, r := range generated {
			latency += r.Generation.LatencyMs
			s.TotalTokens += r.Generation.Tokens
		}
		s.AverageLatencyMs = float64(latency) / float64(len(generated))
	}

	s.StatusMismatches = len(slices.Filter(results, func(r CaseResult) bool {
		return r.HTTP != nil && r.HTTP.Status != 0 && !r.HTTP.StatusMatched()
	}))

	return s
}
