package provider

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/mykhaliev/llm-judge/logger"
	"github.com/mykhaliev/llm-judge/model"
	"github.com/pkoukk/tiktoken-go"
	"github.com/tmc/langchaingo/llms"
	"golang.org/x/time/rate"
)

// waits shorter than this are not counted as throttling
const throttleThreshold = 10 * time.Millisecond

type Stats struct {
	ThrottleCount      int   `json:"throttleCount"`
	ThrottleWaitTimeMs int64 `json:"throttleWaitTimeMs"`
}

// RateLimitedLLM throttles an llms.Model to a requests-per-minute and a
// tokens-per-minute budget. Token counts are estimated before the call with
// tiktoken and corrected afterwards from the usage the provider reports, so
// the limit is best effort.
type RateLimitedLLM struct {
	wrapped    llms.Model
	tpmLimiter *rate.Limiter
	rpmLimiter *rate.Limiter
	modelName  string

	calibrationMu          sync.Mutex
	calibrationRatio       float64
	calibrationInitialized bool

	statsMu sync.Mutex
	stats   Stats
}

func NewRateLimitedLLM(wrapped llms.Model, limits model.RateLimitConfig, modelName string) *RateLimitedLLM {
	rl := &RateLimitedLLM{
		wrapped:   wrapped,
		modelName: modelName,
	}

	// burst is a full minute's worth
	if limits.TPM > 0 {
		tokensPerSecond := float64(limits.TPM) / 60.0
		rl.tpmLimiter = rate.NewLimiter(rate.Limit(tokensPerSecond), limits.TPM)
		logger.Logger.Info("Rate limiter configured", "type", "TPM", "limit", limits.TPM, "tokens_per_second", tokensPerSecond)
	}
	if limits.RPM > 0 {
		requestsPerSecond := float64(limits.RPM) / 60.0
		rl.rpmLimiter = rate.NewLimiter(rate.Limit(requestsPerSecond), limits.RPM)
		logger.Logger.Info("Rate limiter configured", "type", "RPM", "limit", limits.RPM, "requests_per_second", requestsPerSecond)
	}
	return rl
}

// GenerateContent implements llms.Model.
func (rl *RateLimitedLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if rl.rpmLimiter != nil {
		if err := rl.wait(ctx, rl.rpmLimiter, 1); err != nil {
			return nil, err
		}
	}

	estimated := rl.estimateTokens(messages)
	calibrated := rl.applyCalibration(estimated)
	if rl.tpmLimiter != nil && calibrated > 0 {
		logger.Logger.Debug("Waiting for TPM rate limit",
			"estimated_tokens", estimated,
			"calibrated_tokens", calibrated)
		if err := rl.wait(ctx, rl.tpmLimiter, min(calibrated, rl.tpmLimiter.Burst())); err != nil {
			return nil, err
		}
	}

	response, err := rl.wrapped.GenerateContent(ctx, messages, options...)
	if err != nil {
		return nil, err
	}

	if rl.tpmLimiter != nil {
		actual := TotalTokens(response)
		rl.updateCalibration(estimated, actual)
		if actual > calibrated {
			// charge the overshoot to later requests
			rl.tpmLimiter.ReserveN(time.Now(), actual-calibrated)
		}
	}
	return response, nil
}

// Call implements llms.Model for plain text prompts.
func (rl *RateLimitedLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, rl, prompt, options...)
}

func (rl *RateLimitedLLM) wait(ctx context.Context, limiter *rate.Limiter, n int) error {
	start := time.Now()
	if err := limiter.WaitN(ctx, n); err != nil {
		return err
	}
	if waited := time.Since(start); waited > throttleThreshold {
		rl.statsMu.Lock()
		rl.stats.ThrottleCount++
		rl.stats.ThrottleWaitTimeMs += waited.Milliseconds()
		rl.statsMu.Unlock()
		logger.Logger.Debug("Request throttled", "wait", waited)
	}
	return nil
}

func (rl *RateLimitedLLM) GetStats() Stats {
	rl.statsMu.Lock()
	defer rl.statsMu.Unlock()
	return rl.stats
}

// CollectStats returns the throttle statistics of every rate-limited model,
// keyed by provider name. Models without rate limits are skipped.
func CollectStats(models map[string]llms.Model) map[string]Stats {
	stats := make(map[string]Stats)
	for name, m := range models {
		if rl, ok := m.(*RateLimitedLLM); ok {
			stats[name] = rl.GetStats()
		}
	}
	return stats
}

// estimateTokens counts input tokens with tiktoken when the model has a known
// encoding, and assumes a completion of half the input plus a 50% margin.
// Otherwise it falls back to four characters per token.
func (rl *RateLimitedLLM) estimateTokens(messages []llms.MessageContent) int {
	var texts []string
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				texts = append(texts, text.Text)
			}
		}
	}

	if tkm, err := tiktoken.EncodingForModel(rl.modelName); err == nil {
		input := 0
		for _, text := range texts {
			input += len(tkm.Encode(text, nil, nil))
		}
		total := input + input/2
		return total + total/2
	}

	chars := 0
	for _, text := range texts {
		chars += len(text)
	}
	if chars > 0 && chars < 4 {
		return 1
	}
	return chars / 4
}

func (rl *RateLimitedLLM) applyCalibration(estimated int) int {
	ratio := rl.calibration()
	if estimated <= 0 || ratio <= 1.0 {
		return estimated
	}
	return int(math.Ceil(float64(estimated) * ratio))
}

func (rl *RateLimitedLLM) calibration() float64 {
	rl.calibrationMu.Lock()
	defer rl.calibrationMu.Unlock()
	if !rl.calibrationInitialized {
		return 1.0
	}
	return rl.calibrationRatio
}

// updateCalibration keeps an exponential moving average of actual/estimated,
// bounded to [1, 5].
func (rl *RateLimitedLLM) updateCalibration(estimated, actual int) {
	if estimated <= 0 || actual <= 0 {
		return
	}
	ratio := math.Min(math.Max(float64(actual)/float64(estimated), 1.0), 5.0)

	rl.calibrationMu.Lock()
	defer rl.calibrationMu.Unlock()
	if !rl.calibrationInitialized {
		rl.calibrationRatio = ratio
		rl.calibrationInitialized = true
		return
	}
	const alpha = 0.2
	rl.calibrationRatio = (1.0-alpha)*rl.calibrationRatio + alpha*ratio
}

// TotalTokens reads the token usage a provider reported on the first choice,
// trying the key spellings used by the langchaingo backends. It returns 0
// when no usage is reported.
func TotalTokens(response *llms.ContentResponse) int {
	if response == nil || len(response.Choices) == 0 {
		return 0
	}
	info := response.Choices[0].GenerationInfo
	if info == nil {
		return 0
	}

	for _, key := range []string{"TotalTokens", "total_tokens"} {
		if v := extractInt(info[key]); v > 0 {
			return v
		}
	}
	pairs := [][2]string{
		{"PromptTokens", "CompletionTokens"},
		{"prompt_tokens", "completion_tokens"},
		{"input_tokens", "output_tokens"},
	}
	for _, pair := range pairs {
		if n := extractInt(info[pair[0]]) + extractInt(info[pair[1]]); n > 0 {
			return n
		}
	}
	return 0
}

func extractInt(v any) int {
	switch val := v.(type) {
	case int:
		return val
	case int32:
		return int(val)
	case int64:
		return int(val)
	case float64:
		return int(val)
	case float32:
		return int(val)
	case string:
		i, _ := strconv.Atoi(val)
		return i
	default:
		return 0
	}
}

// HasRateLimiting returns true if any proactive rate limiting is configured
func HasRateLimiting(limits model.RateLimitConfig) bool {
	return limits.TPM > 0 || limits.RPM > 0
}
