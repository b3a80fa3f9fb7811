package judge_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mykhaliev/llm-judge/judge"
	"github.com/mykhaliev/llm-judge/logger"
	"github.com/mykhaliev/llm-judge/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestParseJudgement(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		score     int
		reasoning string
	}{
		{
			name:      "Plain JSON",
			reply:     `{"score": 90, "reasoning": "Equivalent."}`,
			score:     90,
			reasoning: "Equivalent.",
		},
		{
			name:      "Fenced JSON with prose",
			reply:     "Here is my evaluation:\n```json\n{\"score\": 75, \"reasoning\": \"Mostly the same.\"}\n```",
			score:     75,
			reasoning: "Mostly the same.",
		},
		{
			name:      "Quoted score",
			reply:     `{"score": "60", "reasoning": "Partial."}`,
			score:     60,
			reasoning: "Partial.",
		},
		{
			name:      "Fractional score is rounded",
			reply:     `{"score": 82.6, "reason": "Close."}`,
			score:     83,
			reasoning: "Close.",
		},
		{
			name:      "Malformed JSON is repaired",
			reply:     `{score: 40, reasoning: 'Different answers'}`,
			score:     40,
			reasoning: "Different answers",
		},
		{
			name:  "Missing reasoning",
			reply: `{"score": 0}`,
			score: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j, err := judge.ParseJudgement(tt.reply)
			require.NoError(t, err)
			assert.Equal(t, tt.score, j.Score)
			assert.Equal(t, tt.reasoning, j.Reasoning)
		})
	}
}

func TestParseJudgement_Errors(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		kind  error
	}{
		{name: "Empty", reply: "", kind: judge.ErrEmptyReply},
		{name: "No score", reply: `{"reasoning": "n/a"}`, kind: judge.ErrMissingScore},
		{name: "Score not numeric", reply: `{"score": "high"}`, kind: judge.ErrMissingScore},
		{name: "Score too high", reply: `{"score": 120}`, kind: judge.ErrScoreRange},
		{name: "Negative score", reply: `{"score": -5}`, kind: judge.ErrScoreRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := judge.ParseJudgement(tt.reply)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)

			var judgeErr *judge.Error
			require.True(t, errors.As(err, &judgeErr))
			assert.Equal(t, judge.OpParse, judgeErr.Op)
			assert.Equal(t, tt.reply, judgeErr.Reply)
		})
	}
}

func TestLLMJudge_Judge(t *testing.T) {
	logger.SetupLogger(testutil.NewDummyWriter(), true)

	mockLLM := new(testutil.MockLLMModel)
	mockLLM.On("GenerateContent", mock.Anything, mock.MatchedBy(func(msgs []llms.MessageContent) bool {
		if len(msgs) != 2 || msgs[1].Role != llms.ChatMessageTypeHuman {
			return false
		}
		text, ok := msgs[1].Parts[0].(llms.TextContent)
		return ok && strings.Contains(text.Text, "<b>Paris</b>") && strings.Contains(text.Text, "It's Paris & more")
	}), mock.Anything).Return(testutil.TextResponse(`{"score": 88, "reasoning": "Same city."}`), nil)

	j, err := judge.NewLLMJudge(mockLLM)
	require.NoError(t, err)

	got, err := j.Judge(context.Background(), "<b>Paris</b>", "It's Paris & more")
	require.NoError(t, err)
	assert.Equal(t, judge.Judgement{Score: 88, Reasoning: "Same city."}, got)
	mockLLM.AssertExpectations(t)
}

func TestLLMJudge_CustomPrompt(t *testing.T) {
	logger.SetupLogger(testutil.NewDummyWriter(), true)

	var prompt string
	mockLLM := new(testutil.MockLLMModel)
	mockLLM.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			msgs := args.Get(1).([]llms.MessageContent)
			prompt = msgs[1].Parts[0].(llms.TextContent).Text
		}).
		Return(testutil.TextResponse(`{"score": 10, "reasoning": "no"}`), nil)

	j, err := judge.NewLLMJudge(mockLLM, judge.WithPrompt("E={{{expected}}} A={{{actual}}}"))
	require.NoError(t, err)

	_, err = j.Judge(context.Background(), "x", "y")
	require.NoError(t, err)
	assert.Equal(t, "E=x A=y", prompt)
}

func TestLLMJudge_Errors(t *testing.T) {
	logger.SetupLogger(testutil.NewDummyWriter(), true)

	t.Run("Nil model", func(t *testing.T) {
		_, err := judge.NewLLMJudge(nil)
		assert.Error(t, err)
	})

	t.Run("Invalid prompt", func(t *testing.T) {
		_, err := judge.NewLLMJudge(new(testutil.MockLLMModel), judge.WithPrompt("{{#if ok}}unclosed"))
		assert.Error(t, err)
	})

	t.Run("LLM error", func(t *testing.T) {
		mockLLM := new(testutil.MockLLMModel)
		mockLLM.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("rate limited"))

		j, err := judge.NewLLMJudge(mockLLM)
		require.NoError(t, err)

		_, err = j.Judge(context.Background(), "a", "b")
		var judgeErr *judge.Error
		require.True(t, errors.As(err, &judgeErr))
		assert.Equal(t, judge.OpCall, judgeErr.Op)
		assert.Contains(t, err.Error(), "rate limited")
	})

	t.Run("No choices", func(t *testing.T) {
		mockLLM := new(testutil.MockLLMModel)
		mockLLM.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything).
			Return(&llms.ContentResponse{}, nil)

		j, err := judge.NewLLMJudge(mockLLM)
		require.NoError(t, err)

		_, err = j.Judge(context.Background(), "a", "b")
		assert.Error(t, err)
	})

	t.Run("Unparseable reply", func(t *testing.T) {
		mockLLM := new(testutil.MockLLMModel)
		mockLLM.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything).
			Return(testutil.TextResponse("I think they are similar."), nil)

		j, err := judge.NewLLMJudge(mockLLM)
		require.NoError(t, err)

		_, err = j.Judge(context.Background(), "a", "b")
		var judgeErr *judge.Error
		require.True(t, errors.As(err, &judgeErr))
		assert.Equal(t, judge.OpParse, judgeErr.Op)
	})
}

func TestFunc(t *testing.T) {
	f := judge.Func(func(ctx context.Context, expected, actual string) (judge.Judgement, error) {
		return judge.Judgement{Score: len(expected) + len(actual)}, nil
	})
	got, err := f.Judge(context.Background(), "ab", "c")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Score)
}
