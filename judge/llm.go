package judge

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/aymerick/raymond"
	"github.com/kaptinlin/jsonrepair"
	"github.com/mykhaliev/llm-judge/extract"
	"github.com/mykhaliev/llm-judge/logger"
	"github.com/tmc/langchaingo/llms"
)

const systemPrompt = "You are a strict evaluator of LLM outputs. You reply with JSON only."

// DefaultPrompt is rendered with "expected" and "actual". Use triple braces in
// custom prompts; double braces HTML-escape the values.
const DefaultPrompt = `Compare the ACTUAL answer with the EXPECTED answer and rate how well they agree in meaning.
Ignore differences in wording, formatting and order unless they change the meaning.

EXPECTED:
{{{expected}}}

ACTUAL:
{{{actual}}}

Reply with a single JSON object and nothing else:
{"score": <integer from 0 to 100>, "reasoning": "<one or two sentences>"}`

var (
	ErrEmptyReply   = errors.New("empty reply")
	ErrMissingScore = errors.New("reply has no numeric score")
	ErrScoreRange   = errors.New("score outside 0..100")
)

// LLMJudge asks a language model for a judgement.
type LLMJudge struct {
	model       llms.Model
	prompt      *raymond.Template
	callOptions []llms.CallOption
}

type Option func(*LLMJudge) error

// WithPrompt replaces DefaultPrompt with a Handlebars template.
func WithPrompt(prompt string) Option {
	return func(j *LLMJudge) error {
		tmpl, err := raymond.Parse(prompt)
		if err != nil {
			return fmt.Errorf("invalid judge prompt: %w", err)
		}
		j.prompt = tmpl
		return nil
	}
}

func WithCallOptions(opts ...llms.CallOption) Option {
	return func(j *LLMJudge) error {
		j.callOptions = append(j.callOptions, opts...)
		return nil
	}
}

func NewLLMJudge(model llms.Model, opts ...Option) (*LLMJudge, error) {
	if model == nil {
		return nil, errors.New("judge model is nil")
	}
	j := &LLMJudge{
		model:       model,
		prompt:      raymond.MustParse(DefaultPrompt),
		callOptions: []llms.CallOption{llms.WithTemperature(0)},
	}
	for _, opt := range opts {
		if err := opt(j); err != nil {
			return nil, err
		}
	}
	return j, nil
}

func (j *LLMJudge) Judge(ctx context.Context, expected, actual string) (Judgement, error) {
	prompt, err := j.prompt.Exec(map[string]string{
		"expected": expected,
		"actual":   actual,
	})
	if err != nil {
		return Judgement{}, &Error{Op: OpCall, Err: fmt.Errorf("render prompt: %w", err)}
	}

	msgs := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	resp, err := j.model.GenerateContent(ctx, msgs, j.callOptions...)
	if err != nil {
		return Judgement{}, &Error{Op: OpCall, Err: err}
	}
	if resp == nil || len(resp.Choices) == 0 {
		return Judgement{}, &Error{Op: OpCall, Err: errors.New("LLM returned no choices")}
	}

	reply := resp.Choices[0].Content
	judgement, err := ParseJudgement(reply)
	if err != nil {
		logger.Logger.Debug("Unparseable judge reply", "reply", reply, "error", err)
		return Judgement{}, err
	}
	return judgement, nil
}

// ParseJudgement reads {"score": n, "reasoning": "..."} out of a model reply.
// The object may be fenced or surrounded by prose; malformed JSON is repaired
// before giving up. Fractional scores are rounded.
func ParseJudgement(reply string) (Judgement, error) {
	fail := func(err error) (Judgement, error) {
		return Judgement{}, &Error{Op: OpParse, Reply: reply, Err: err}
	}

	if reply == "" {
		return fail(ErrEmptyReply)
	}

	doc, err := extract.LocateJSON(reply)
	if err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(reply)
		if repairErr != nil {
			return fail(fmt.Errorf("%w: %v", err, repairErr))
		}
		if doc, err = extract.ParseString(repaired); err != nil {
			return fail(err)
		}
	}
	if doc.Kind() != extract.KindObject {
		return fail(fmt.Errorf("expected a JSON object, got %s", doc.Kind()))
	}

	scoreValue, ok := doc.Field("score")
	if !ok {
		return fail(ErrMissingScore)
	}
	score, ok := scoreValue.Float()
	if !ok {
		// Some models quote the number.
		s, isString := scoreValue.Str()
		if !isString {
			return fail(ErrMissingScore)
		}
		parsed, err := extract.ParseString(s)
		if err != nil {
			return fail(ErrMissingScore)
		}
		if score, ok = parsed.Float(); !ok {
			return fail(ErrMissingScore)
		}
	}
	if math.IsNaN(score) || score < 0 || score > 100 {
		return fail(fmt.Errorf("%w: %v", ErrScoreRange, score))
	}

	var reasoning string
	for _, key := range []string{"reasoning", "reason", "explanation"} {
		if v, ok := doc.Field(key); ok {
			reasoning = v.Text()
			break
		}
	}

	return Judgement{Score: int(math.Round(score)), Reasoning: reasoning}, nil
}
