package compare

import (
	"errors"
	"fmt"
	"strings"
)

// Strategy selects the equivalence semantics applied to the extracted values.
type Strategy string

const (
	StrategyExact    Strategy = "exact"
	StrategyFuzzy    Strategy = "fuzzy"
	StrategyContains Strategy = "contains"
	StrategyJSON     Strategy = "json"
	StrategyLLM      Strategy = "llm"
)

var strategies = []Strategy{StrategyExact, StrategyFuzzy, StrategyContains, StrategyJSON, StrategyLLM}

// FailureMode decides what a side resolves to when its path cannot be satisfied.
type FailureMode string

const (
	// FailureIgnore falls back to the side's raw input.
	FailureIgnore FailureMode = "ignore"
	// FailureEmpty falls back to an empty string.
	FailureEmpty FailureMode = "empty"
	// FailureStrict fails the comparison without running the strategy.
	FailureStrict FailureMode = "strict"
)

const (
	DefaultThreshold   = 0.8
	DefaultStrategy    = StrategyFuzzy
	DefaultFailureMode = FailureEmpty
)

var (
	ErrUnknownStrategy    = errors.New("unknown comparison strategy")
	ErrUnknownFailureMode = errors.New("unknown failure mode")
	ErrInvalidThreshold   = errors.New("threshold must be between 0 and 1")
	ErrNoJudge            = errors.New("llm strategy requires a judge")
)

// Options configures a single comparison. Empty paths mean "$"; an empty
// strategy or failure mode means the default.
type Options struct {
	Strategy         Strategy
	Threshold        float64
	IgnoreCase       bool
	IgnoreWhitespace bool
	FailureMode      FailureMode
	ExpectedPath     string
	ActualPath       string
}

func DefaultOptions() Options {
	return Options{
		Strategy:         DefaultStrategy,
		Threshold:        DefaultThreshold,
		IgnoreCase:       true,
		IgnoreWhitespace: true,
		FailureMode:      DefaultFailureMode,
	}
}

func (o Options) withDefaults() Options {
	if o.Strategy == "" {
		o.Strategy = DefaultStrategy
	}
	if o.FailureMode == "" {
		o.FailureMode = DefaultFailureMode
	}
	if o.ExpectedPath == "" {
		o.ExpectedPath = "$"
	}
	if o.ActualPath == "" {
		o.ActualPath = "$"
	}
	return o
}

// Validate reports configuration faults. Paths are checked separately when
// they are parsed.
func (o Options) Validate() error {
	o = o.withDefaults()
	if _, err := ParseStrategy(string(o.Strategy)); err != nil {
		return err
	}
	if _, err := ParseFailureMode(string(o.FailureMode)); err != nil {
		return err
	}
	if o.Threshold < 0 || o.Threshold > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidThreshold, o.Threshold)
	}
	return nil
}

// ParseStrategy accepts a strategy name case-insensitively.
func ParseStrategy(s string) (Strategy, error) {
	name := Strategy(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range strategies {
		if name == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// ParseFailureMode accepts a failure mode name case-insensitively. "error" is
// accepted as an alias of strict.
func ParseFailureMode(s string) (FailureMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(FailureIgnore):
		return FailureIgnore, nil
	case string(FailureEmpty):
		return FailureEmpty, nil
	case string(FailureStrict), "error":
		return FailureStrict, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFailureMode, s)
}
