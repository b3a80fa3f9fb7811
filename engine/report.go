package engine

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/life4/genesis/slices"
	"github.com/mykhaliev/llm-judge/logger"
	"github.com/mykhaliev/llm-judge/model"
)

// WriteResults stores the report as indented JSON, creating parent directories.
func WriteResults(path string, report *Report) error {
	data, err := sonic.ConfigStd.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return os.WriteFile(path, data, logger.FilePermission)
}

func PrintSummary(w io.Writer, report *Report) {
	s := report.Summary
	if s.Total == 0 {
		logger.Logger.Info("No cases were run")
		return
	}

	fmt.Fprintln(w, "\n"+strings.Repeat("=", 80))
	fmt.Fprintln(w, "[Summary] Comparison Summary")
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintf(w, "  Total Cases:      %d\n", s.Total)
	fmt.Fprintf(w, "  Passed:           %d (%.1f%%)\n", s.Passed, s.PassRate*100)
	fmt.Fprintf(w, "  Failed:           %d (%d with errors)\n", s.Failed, s.Errored)
	fmt.Fprintf(w, "  Score:            avg %.2f, min %.2f, max %.2f\n", s.AverageScore, s.MinScore, s.MaxScore)
	fmt.Fprintf(w, "  Total Duration:   %dms (avg: %.0fms per case)\n", s.TotalDurationMs, s.AverageDurationMs)
	if s.TotalTokens > 0 || s.AverageLatencyMs > 0 {
		fmt.Fprintf(w, "  Generation:       avg latency %.0fms, %d tokens\n", s.AverageLatencyMs, s.TotalTokens)
	}
	if s.StatusMismatches > 0 {
		fmt.Fprintf(w, "  Status Mismatch:  %d\n", s.StatusMismatches)
	}
	for _, name := range sortedKeys(report.Throttling) {
		stats := report.Throttling[name]
		fmt.Fprintf(w, "  Throttled:        %s %d times (%dms waiting)\n", name, stats.ThrottleCount, stats.ThrottleWaitTimeMs)
	}

	failed := slices.Filter(report.Results, func(r model.CaseResult) bool { return !r.Passed })
	if len(failed) > 0 {
		fmt.Fprintln(w, strings.Repeat("-", 80))
		for _, r := range failed {
			fmt.Fprintf(w, "  [FAIL] %s: %s\n", r.ID, failureReason(r))
		}
	}
	fmt.Fprintln(w, strings.Repeat("=", 80))

	logger.Logger.Info("Comparison summary",
		"total", s.Total,
		"passed", s.Passed,
		"failed", s.Failed,
		"errored", s.Errored,
		"pass_rate", fmt.Sprintf("%.1f%%", s.PassRate*100),
		"avg_score", s.AverageScore,
		"total_duration_ms", s.TotalDurationMs,
		"tokens", s.TotalTokens)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func failureReason(r model.CaseResult) string {
	switch {
	case r.Error != "":
		return r.Error
	case !r.HTTP.StatusMatched():
		return fmt.Sprintf("status %d, expected %d", r.HTTP.Status, r.HTTP.ExpectedStatus)
	case r.Verdict == nil:
		return "not compared"
	case r.Verdict.Error != "":
		return r.Verdict.Error
	case r.Verdict.Reason != "":
		return fmt.Sprintf("score %.2f below %.2f: %s", r.Verdict.Score, r.Verdict.Threshold, r.Verdict.Reason)
	default:
		return fmt.Sprintf("score %.2f below %.2f (%s)", r.Verdict.Score, r.Verdict.Threshold, r.Verdict.Strategy)
	}
}

// ParseSuccessRate accepts "80%", "0.8" or "80" and returns a fraction.
func ParseSuccessRate(s string) (float64, error) {
	s = strings.TrimSpace(s)
	percent := strings.HasSuffix(s, "%")
	v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "%")), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid success rate %q: %w", s, err)
	}
	if percent || v > 1 {
		v /= 100
	}
	if v < 0 || v > 1 {
		return 0, fmt.Errorf("success rate %q is outside 0..100%%", s)
	}
	return v, nil
}

// CriteriaMet applies the suite's success criterion. Without one, or when it
// cannot be parsed, every case must pass.
func CriteriaMet(report *Report) bool {
	s := report.Summary
	if report.Criteria.SuccessRate == "" {
		return s.Failed == 0
	}

	required, err := ParseSuccessRate(report.Criteria.SuccessRate)
	if err != nil {
		logger.Logger.Error("Failed to parse criteria success rate", "error", err)
		return s.Failed == 0
	}
	if s.PassRate >= required {
		logger.Logger.Info("Suite success rate matched", "criteria", required, "actual", s.PassRate)
		return true
	}
	logger.Logger.Warn("Suite success rate not matched", "criteria", required, "actual", s.PassRate)
	return false
}
