package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mykhaliev/llm-judge/compare"
	"github.com/mykhaliev/llm-judge/judge"
	"github.com/mykhaliev/llm-judge/logger"
	"github.com/mykhaliev/llm-judge/model"
	"github.com/mykhaliev/llm-judge/provider"
	"github.com/tmc/langchaingo/llms"
	"golang.org/x/sync/errgroup"
)

var ErrEmptyResponse = errors.New("target returned no choices")

// Runner evaluates the cases of one suite. Results keep the order of the cases.
type Runner struct {
	suite       *model.Suite
	comparator  *compare.Comparator
	options     []compare.Options
	target      llms.Model
	client      *HTTPClient
	templateCtx map[string]string
	caseTimeout time.Duration
}

// NewRunner resolves the target and judge providers by name and checks every
// case's comparison options, so that configuration faults surface before any
// case runs.
func NewRunner(suite *model.Suite, models map[string]llms.Model, templateCtx map[string]string) (*Runner, error) {
	if err := suite.Validate(); err != nil {
		return nil, fmt.Errorf("invalid suite: %w", err)
	}

	r := &Runner{
		suite:       suite,
		templateCtx: templateCtx,
		client:      NewHTTPClient(nil, suite.HTTP),
		caseTimeout: ParseTimeout(suite.Settings.CaseTimeout, 0),
	}

	if name := suite.Target.Provider; name != "" {
		target, ok := models[name]
		if !ok {
			return nil, fmt.Errorf("target provider %q is not defined", name)
		}
		r.target = target
	}

	var compareOpts []compare.Option
	if name := suite.Judge.Provider; name != "" {
		llm, ok := models[name]
		if !ok {
			return nil, fmt.Errorf("judge provider %q is not defined", name)
		}
		var judgeOpts []judge.Option
		if suite.Judge.Prompt != "" {
			judgeOpts = append(judgeOpts, judge.WithPrompt(suite.Judge.Prompt))
		}
		j, err := judge.NewLLMJudge(llm, judgeOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create judge: %w", err)
		}
		compareOpts = append(compareOpts,
			compare.WithJudge(j),
			compare.WithJudgeTimeout(ParseTimeout(suite.Judge.Timeout, DefaultJudgeTimeout)))
	}
	r.comparator = compare.New(compareOpts...)

	r.options = make([]compare.Options, len(suite.Cases))
	for i, c := range suite.Cases {
		opts, err := OptionsFor(suite.Comparison, c)
		if err != nil {
			return nil, fmt.Errorf("case %q: %w", c.ID, err)
		}
		if opts.Strategy == compare.StrategyLLM && suite.Judge.Provider == "" {
			return nil, fmt.Errorf("case %q: %w: set judge.provider", c.ID, compare.ErrNoJudge)
		}
		r.options[i] = opts
	}
	return r, nil
}

// Run evaluates all cases on a pool of Settings.Workers goroutines.
func (r *Runner) Run(ctx context.Context) []model.CaseResult {
	results := make([]model.CaseResult, len(r.suite.Cases))

	var g errgroup.Group
	g.SetLimit(max(r.suite.Settings.Workers, 1))
	for i := range r.suite.Cases {
		g.Go(func() error {
			results[i] = r.runCase(ctx, i)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (r *Runner) runCase(ctx context.Context, i int) model.CaseResult {
	start := time.Now()
	c := r.suite.Cases[i].Render(r.templateCtx)
	opts := r.options[i]

	result := model.CaseResult{
		ID:          c.ID,
		Description: c.Description,
		Strategy:    string(opts.Strategy),
		Expected:    string(c.Expected),
		Actual:      string(c.Actual),
		StartTime:   start,
		Metadata:    c.Metadata,
	}
	if r.caseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.caseTimeout)
		defer cancel()
	}

	switch {
	case c.Generated():
		actual, gen, err := r.generate(ctx, c)
		result.Generation = gen
		if err != nil {
			result.Error = fmt.Sprintf("generation failed: %v", err)
			logger.Logger.Error("Generation failed", "case", c.ID, "error", err)
			return finish(result)
		}
		result.Actual = actual
	case c.HTTP != nil:
		actual, exchange, err := r.request(ctx, c)
		result.HTTP = exchange
		if err != nil {
			result.Error = fmt.Sprintf("request failed: %v", err)
			logger.Logger.Error("Request failed", "case", c.ID, "url", exchange.URL, "error", err)
			return finish(result)
		}
		result.Actual = actual
		if !exchange.StatusMatched() {
			logger.Logger.Warn("Unexpected status",
				"case", c.ID,
				"status", exchange.Status,
				"expected", exchange.ExpectedStatus)
		}
	}

	verdict, err := r.comparator.Compare(ctx, result.Expected, result.Actual, opts)
	if err != nil {
		result.Error = err.Error()
		logger.Logger.Error("Comparison could not run", "case", c.ID, "error", err)
		return finish(result)
	}

	result.Verdict = &verdict
	result.Passed = verdict.Matched && result.HTTP.StatusMatched()
	result.Score = verdict.Score

	if r.suite.Settings.LogExtractionFailures {
		for _, issue := range verdict.ExtractionErrors {
			logger.Logger.Debug("Extraction failed",
				"case", c.ID,
				"side", issue.Side,
				"path", issue.Path,
				"error", issue.Message)
		}
	}
	if verdict.Error != "" {
		logger.Logger.Warn("Comparison failed", "case", c.ID, "error", verdict.Error)
	}
	return finish(result)
}

func finish(result model.CaseResult) model.CaseResult {
	result.DurationMs = time.Since(result.StartTime).Milliseconds()
	logger.Logger.Info("Case finished",
		"case", result.ID,
		"strategy", result.Strategy,
		"passed", result.Passed,
		"score", result.Score,
		"duration_ms", result.DurationMs)
	return result
}

// generate asks the target for the case's actual value.
func (r *Runner) generate(ctx context.Context, c model.Case) (string, *model.Generation, error) {
	target := r.suite.Target
	systemPrompt := firstNonEmpty(c.SystemPrompt, model.RenderTemplate(target.SystemPrompt, r.templateCtx))

	var messages []llms.MessageContent
	if systemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, c.Prompt))

	callOpts := []llms.CallOption{llms.WithTemperature(target.Temperature)}
	if target.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(target.MaxTokens))
	}

	logger.Logger.Debug("Generating actual value", "case", c.ID, "provider", target.Provider)
	start := time.Now()
	resp, err := r.target.GenerateContent(ctx, messages, callOpts...)
	gen := &model.Generation{
		Provider:  target.Provider,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		return "", gen, err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", gen, ErrEmptyResponse
	}
	gen.Tokens = provider.TotalTokens(resp)
	return resp.Choices[0].Content, gen, nil
}

// request sends the case's HTTP request; the response body is the actual value.
func (r *Runner) request(ctx context.Context, c model.Case) (string, *model.Exchange, error) {
	exchange := &model.Exchange{
		Method:         strings.ToUpper(c.HTTP.Method),
		URL:            c.HTTP.URL,
		ExpectedStatus: c.HTTP.ExpectedStatus,
	}
	resp, err := r.client.Do(ctx, *c.HTTP)
	exchange.Status = resp.Status
	exchange.LatencyMs = resp.LatencyMs
	if err != nil {
		return "", exchange, err
	}
	return resp.Body, exchange, nil
}
