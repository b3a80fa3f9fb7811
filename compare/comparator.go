// Package compare decides whether an actual value matches an expected one.
// Both sides are first narrowed with an extraction path, then compared under
// one of several strategies.
package compare

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mykhaliev/llm-judge/extract"
	"github.com/mykhaliev/llm-judge/judge"
)

// Comparator is safe for concurrent use. The zero value is not usable; call New.
type Comparator struct {
	judge        judge.Judge
	judgeTimeout time.Duration
	paths        *extract.PathCache
}

type Option func(*Comparator)

// WithJudge sets the judge used by the llm strategy.
func WithJudge(j judge.Judge) Option {
	return func(c *Comparator) { c.judge = j }
}

// WithJudgeTimeout bounds each judge call; zero means no bound beyond ctx.
func WithJudgeTimeout(d time.Duration) Option {
	return func(c *Comparator) { c.judgeTimeout = d }
}

// WithPathCache shares a path cache between comparators.
func WithPathCache(cache *extract.PathCache) Option {
	return func(c *Comparator) { c.paths = cache }
}

func New(opts ...Option) *Comparator {
	c := &Comparator{}
	for _, opt := range opts {
		opt(c)
	}
	if c.paths == nil {
		c.paths = extract.NewPathCache()
	}
	return c
}

// side is one input after extraction and failure-mode handling.
type side struct {
	display string
	issue   *ExtractionIssue
}

// Compare extracts both sides and applies the strategy. The error is reserved
// for faults in opts (bad path, unknown strategy or failure mode, threshold out
// of range, llm strategy without a judge); everything that goes wrong with the
// inputs or the judge is reported on the verdict.
func (c *Comparator) Compare(ctx context.Context, expected, actual string, opts Options) (Verdict, error) {
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return Verdict{}, err
	}
	strategy, _ := ParseStrategy(string(opts.Strategy))
	mode, _ := ParseFailureMode(string(opts.FailureMode))
	if strategy == StrategyLLM && c.judge == nil {
		return Verdict{}, ErrNoJudge
	}

	expectedPath, err := c.paths.Parse(opts.ExpectedPath)
	if err != nil {
		return Verdict{}, fmt.Errorf("expected path: %w", err)
	}
	actualPath, err := c.paths.Parse(opts.ActualPath)
	if err != nil {
		return Verdict{}, fmt.Errorf("actual path: %w", err)
	}

	exp := resolve(expected, expectedPath, mode, SideExpected)
	act := resolve(actual, actualPath, mode, SideActual)

	v := Verdict{
		Strategy:        strategy,
		ExpectedDisplay: exp.display,
		ActualDisplay:   act.display,
	}
	if strategy == StrategyFuzzy || strategy == StrategyLLM {
		v.Threshold = opts.Threshold
	}
	for _, s := range []side{exp, act} {
		if s.issue != nil {
			v.ExtractionErrors = append(v.ExtractionErrors, *s.issue)
		}
	}

	if mode == FailureStrict && len(v.ExtractionErrors) > 0 {
		messages := make([]string, len(v.ExtractionErrors))
		for i, issue := range v.ExtractionErrors {
			messages[i] = fmt.Sprintf("%s: %s", issue.Side, issue.Message)
		}
		v.Error = "extraction failed: " + strings.Join(messages, "; ")
		return v, nil
	}

	switch strategy {
	case StrategyExact:
		c.exact(&v, opts)
	case StrategyFuzzy:
		c.fuzzy(&v, opts)
	case StrategyContains:
		c.contains(&v, opts)
	case StrategyJSON:
		c.structural(&v)
	case StrategyLLM:
		c.llm(ctx, &v, opts)
	}
	return v, nil
}

// resolve extracts one side and applies the failure mode. Under strict the
// display falls back to the raw input so reports still show it.
func resolve(raw string, path extract.Path, mode FailureMode, which Side) side {
	value, err := extract.Extract(raw, path)
	if err == nil {
		return side{display: value.Text()}
	}

	s := side{issue: &ExtractionIssue{Side: which, Path: path.String(), Message: err.Error()}}
	switch mode {
	case FailureEmpty:
		s.display = ""
	default:
		s.display = raw
	}
	return s
}

func (c *Comparator) exact(v *Verdict, opts Options) {
	e := normalize(v.ExpectedDisplay, opts.IgnoreCase, opts.IgnoreWhitespace)
	a := normalize(v.ActualDisplay, opts.IgnoreCase, opts.IgnoreWhitespace)
	v.Matched = e == a
	v.Score = boolScore(v.Matched)
	if !v.Matched {
		v.Diff = unifiedDiff(e, a, "expected", "actual")
	}
}

func (c *Comparator) fuzzy(v *Verdict, opts Options) {
	e := normalize(v.ExpectedDisplay, opts.IgnoreCase, opts.IgnoreWhitespace)
	a := normalize(v.ActualDisplay, opts.IgnoreCase, opts.IgnoreWhitespace)
	sim := Similar(e, a)
	v.Score = sim.Best
	v.Matched = sim.Best >= opts.Threshold
	v.Details = sim.Details()
	if !v.Matched {
		v.Diff = unifiedDiff(e, a, "expected", "actual")
	}
}

func (c *Comparator) contains(v *Verdict, opts Options) {
	e := normalize(v.ExpectedDisplay, opts.IgnoreCase, opts.IgnoreWhitespace)
	a := normalize(v.ActualDisplay, opts.IgnoreCase, opts.IgnoreWhitespace)
	v.Matched = strings.Contains(a, e)
	v.Score = boolScore(v.Matched)
}

func (c *Comparator) structural(v *Verdict) {
	e, a := asJSON(v.ExpectedDisplay, false), asJSON(v.ActualDisplay, true)
	v.Matched = extract.Equal(e, a)
	v.Score = boolScore(v.Matched)
	if !v.Matched {
		v.Diff = unifiedDiff(e.Indent("  "), a.Indent("  "), "expected.json", "actual.json")
	}
}

// asJSON parses display text, keeping text that is not JSON as a string leaf.
// With locate set, JSON fenced or embedded in prose is found first.
func asJSON(s string, locate bool) extract.Value {
	if v, err := extract.ParseString(s); err == nil {
		return v
	}
	if locate {
		if v, err := extract.LocateJSON(s); err == nil {
			return v
		}
	}
	return extract.String(s)
}

func (c *Comparator) llm(ctx context.Context, v *Verdict, opts Options) {
	if c.judgeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.judgeTimeout)
		defer cancel()
	}

	judgement, err := c.callJudge(ctx, v.ExpectedDisplay, v.ActualDisplay)
	if err != nil {
		v.Matched = false
		v.Score = 0
		v.Error = err.Error()
		return
	}
	if judgement.Score < 0 || judgement.Score > 100 {
		v.Error = fmt.Sprintf("judge score %d outside 0..100", judgement.Score)
		return
	}

	v.Score = float64(judgement.Score) / 100
	v.Matched = v.Score >= opts.Threshold
	v.Reason = judgement.Reasoning
}

type judgeResult struct {
	judgement judge.Judgement
	err       error
}

// callJudge returns when the judge answers or ctx ends, whichever is first, so
// a judge that ignores ctx cannot stall the comparison.
func (c *Comparator) callJudge(ctx context.Context, expected, actual string) (judge.Judgement, error) {
	if err := ctx.Err(); err != nil {
		return judge.Judgement{}, judgeContextError(err)
	}

	done := make(chan judgeResult, 1)
	go func() {
		j, err := c.judge.Judge(ctx, expected, actual)
		done <- judgeResult{judgement: j, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && ctx.Err() != nil {
			return judge.Judgement{}, judgeContextError(ctx.Err())
		}
		return res.judgement, res.err
	case <-ctx.Done():
		return judge.Judgement{}, judgeContextError(ctx.Err())
	}
}

func judgeContextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &judge.Error{Op: judge.OpCall, Err: fmt.Errorf("timed out: %w", err)}
	}
	return &judge.Error{Op: judge.OpCall, Err: err}
}

func boolScore(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}
