// Package engine runs a suite: it loads the file, builds the providers and
// the comparator, evaluates every case and aggregates the results.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mykhaliev/llm-judge/compare"
	"github.com/mykhaliev/llm-judge/logger"
	"github.com/mykhaliev/llm-judge/model"
	"github.com/mykhaliev/llm-judge/provider"
	"github.com/mykhaliev/llm-judge/templates"
	"github.com/tmc/langchaingo/llms"
)

const DefaultJudgeTimeout = 30 * time.Second

type Config struct {
	SuitePath  string
	OutputPath string
	// Models, when set, is used instead of building the suite's providers.
	Models map[string]llms.Model
}

// Report is everything a run produced. It is also the layout of the results file.
type Report struct {
	Suite     string         `json:"suite"`
	RunID     string         `json:"runId"`
	StartTime time.Time      `json:"startTime"`
	EndTime   time.Time      `json:"endTime"`
	Criteria  model.Criteria `json:"criteria"`
	Summary   model.Summary  `json:"summary"`

	// Throttling holds rate limiter statistics per provider name.
	Throttling map[string]provider.Stats `json:"throttling,omitempty"`
	Results    []model.CaseResult        `json:"results"`
}

// LoadSuite validates the path, parses the file and checks the suite's structure.
func LoadSuite(path string) (*model.Suite, error) {
	if err := ValidateInputFile(path); err != nil {
		return nil, fmt.Errorf("invalid input file: %w", err)
	}
	suite, err := model.ParseSuite(path)
	if err != nil {
		return nil, err
	}
	if err := suite.Validate(); err != nil {
		return nil, fmt.Errorf("invalid suite: %w", err)
	}
	return suite, nil
}

// Run evaluates every case of suite. The error is reserved for faults that
// stop the run before any case executes; per-case failures are recorded on
// the results.
func Run(ctx context.Context, suite *model.Suite, cfg Config) (*Report, error) {
	templates.Register()
	templateCtx := CreateStaticTemplateContext(cfg.SuitePath, suite.Variables)

	models := cfg.Models
	if models == nil {
		var err error
		models, err = provider.InitProviders(ctx, suite.Providers, templateCtx)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize providers: %w", err)
		}
	}

	runner, err := NewRunner(suite, models, templateCtx)
	if err != nil {
		return nil, err
	}

	logger.Logger.Info("Starting suite",
		"suite", suite.Name,
		"cases", len(suite.Cases),
		"workers", suite.Settings.Workers)

	report := &Report{
		Suite:     suite.Name,
		RunID:     templateCtx["RUN_ID"],
		StartTime: time.Now(),
		Criteria:  suite.Criteria,
	}
	report.Results = runner.Run(ctx)
	report.EndTime = time.Now()
	report.Summary = model.Summarize(report.Results)
	report.Throttling = provider.CollectStats(models)

	if cfg.OutputPath != "" {
		if err := WriteResults(cfg.OutputPath, report); err != nil {
			return report, fmt.Errorf("failed to write results: %w", err)
		}
		logger.Logger.Info("Results written", "path", cfg.OutputPath)
	}
	return report, nil
}

// CreateStaticTemplateContext builds the values available to suite templates:
// the environment, RUN_ID, TEMP_DIR, SUITE_DIR and the suite's variables, which
// may themselves reference any of the former.
func CreateStaticTemplateContext(suitePath string, variables map[string]string) map[string]string {
	templateCtx := model.GetAllEnv()
	templateCtx["RUN_ID"] = uuid.New().String()
	templateCtx["TEMP_DIR"] = os.TempDir()

	if suitePath != "" {
		if absPath, err := filepath.Abs(suitePath); err == nil {
			templateCtx["SUITE_DIR"] = filepath.Dir(absPath)
		}
	}

	for k, v := range variables {
		templateCtx[k] = model.RenderTemplate(v, templateCtx)
	}
	return templateCtx
}

// OptionsFor merges the suite's comparison defaults with a case's overrides.
func OptionsFor(defaults model.Comparison, c model.Case) (compare.Options, error) {
	opts := compare.DefaultOptions()

	strategy := firstNonEmpty(c.Strategy, defaults.Strategy)
	if strategy != "" {
		s, err := compare.ParseStrategy(strategy)
		if err != nil {
			return opts, err
		}
		opts.Strategy = s
	}

	mode := firstNonEmpty(c.FailureMode, defaults.FailureMode)
	if mode != "" {
		m, err := compare.ParseFailureMode(mode)
		if err != nil {
			return opts, err
		}
		opts.FailureMode = m
	}

	switch {
	case c.Threshold != nil:
		opts.Threshold = *c.Threshold
	case defaults.Threshold != nil:
		opts.Threshold = *defaults.Threshold
	}
	if defaults.IgnoreCase != nil {
		opts.IgnoreCase = *defaults.IgnoreCase
	}
	if defaults.IgnoreWhitespace != nil {
		opts.IgnoreWhitespace = *defaults.IgnoreWhitespace
	}
	opts.ExpectedPath = firstNonEmpty(c.ExpectedPath, defaults.ExpectedPath)
	opts.ActualPath = firstNonEmpty(c.ActualPath, defaults.ActualPath)

	return opts, opts.Validate()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func ValidateInputFile(path string) error {
	if path == "" {
		return fmt.Errorf("input file path is empty")
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file does not exist: %s", path)
		}
		return fmt.Errorf("cannot access file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("file is empty: %s", path)
	}

	ext := filepath.Ext(path)
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unexpected file extension: %s", ext)
	}
	return nil
}

// ParseTimeout parses a Go duration, falling back to def when the value is
// empty or invalid. Negative durations become 0, meaning no timeout.
func ParseTimeout(timeoutStr string, def time.Duration) time.Duration {
	if timeoutStr == "" {
		return def
	}

	dur, err := time.ParseDuration(timeoutStr)
	if err != nil {
		logger.Logger.Warn("Invalid timeout, using default",
			"timeout", timeoutStr,
			"default", def,
			"error", err)
		return def
	}
	if dur < 0 {
		logger.Logger.Warn("Negative timeout, using 0", "timeout", dur)
		return 0
	}
	return dur
}
