// Package provider builds langchaingo models from suite provider entries.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mykhaliev/llm-judge/logger"
	"github.com/mykhaliev/llm-judge/model"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/googleai/vertex"
	"github.com/tmc/langchaingo/llms/openai"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

var (
	ErrEmptyToken      = errors.New("provider token is empty")
	ErrEmptyModel      = errors.New("provider model is empty")
	ErrUnsupportedType = errors.New("unsupported provider type")
)

// InitProviders renders every entry against templateCtx and builds its model.
// Names must be unique and non-empty.
func InitProviders(ctx context.Context, configs []model.Provider, templateCtx map[string]string) (map[string]llms.Model, error) {
	logger.Logger.Info("Initializing providers", "count", len(configs))
	providers := make(map[string]llms.Model, len(configs))

	for i, p := range configs {
		p = Render(p, templateCtx)
		logger.Logger.Debug("Initializing provider",
			"index", i+1,
			"total", len(configs),
			"name", p.Name,
			"type", p.Type,
			"model", p.Model)

		if p.Name == "" {
			return nil, fmt.Errorf("provider at index %d has empty name", i)
		}
		if _, exists := providers[p.Name]; exists {
			return nil, fmt.Errorf("duplicate provider name: %s", p.Name)
		}

		llmModel, err := New(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("failed to create provider '%s': %w", p.Name, err)
		}
		providers[p.Name] = llmModel
		logger.Logger.Info("Provider initialized", "name", p.Name)
	}

	return providers, nil
}

// Render returns p with its string fields rendered as templates.
func Render(p model.Provider, templateCtx map[string]string) model.Provider {
	p.Name = model.RenderTemplate(p.Name, templateCtx)
	p.Token = model.RenderTemplate(p.Token, templateCtx)
	p.Secret = model.RenderTemplate(p.Secret, templateCtx)
	p.Model = model.RenderTemplate(p.Model, templateCtx)
	p.BaseURL = model.RenderTemplate(p.BaseURL, templateCtx)
	p.Version = model.RenderTemplate(p.Version, templateCtx)
	p.ProjectID = model.RenderTemplate(p.ProjectID, templateCtx)
	p.Location = model.RenderTemplate(p.Location, templateCtx)
	p.CredentialsPath = model.RenderTemplate(p.CredentialsPath, templateCtx)
	return p
}

// New builds the model for one provider entry, wrapped in a RateLimitedLLM
// when rate limits are configured.
func New(ctx context.Context, p model.Provider) (llms.Model, error) {
	if p.Type != model.ProviderVertex && p.Token == "" {
		return nil, ErrEmptyToken
	}
	if p.Model == "" {
		return nil, ErrEmptyModel
	}

	var llmModel llms.Model
	var err error

	switch p.Type {
	case model.ProviderGroq:
		baseURL := p.BaseURL
		if baseURL == "" {
			baseURL = groqBaseURL
		}
		llmModel, err = openai.New(
			openai.WithToken(p.Token),
			openai.WithModel(p.Model),
			openai.WithBaseURL(baseURL),
		)
	case model.ProviderGoogle:
		llmModel, err = googleai.New(ctx,
			googleai.WithAPIKey(p.Token),
			googleai.WithDefaultModel(p.Model),
		)
	case model.ProviderVertex:
		llmModel, err = vertex.New(ctx,
			googleai.WithDefaultModel(p.Model),
			googleai.WithCloudProject(p.ProjectID),
			googleai.WithCloudLocation(p.Location),
			googleai.WithCredentialsFile(p.CredentialsPath),
		)
	case model.ProviderAnthropic:
		llmModel, err = anthropic.New(
			anthropic.WithModel(p.Model),
			anthropic.WithToken(p.Token),
		)
	case model.ProviderAmazonAnthropic:
		llmModel, err = newBedrock(ctx, p)
	case model.ProviderOpenAI:
		opts := []openai.Option{
			openai.WithToken(p.Token),
			openai.WithModel(p.Model),
		}
		if p.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(p.BaseURL))
			logger.Logger.Debug("Using custom base URL", "url", p.BaseURL)
		}
		llmModel, err = openai.New(opts...)
	case model.ProviderAzure:
		if p.Version == "" {
			return nil, errors.New("Azure provider requires version")
		}
		if p.BaseURL == "" {
			return nil, errors.New("Azure provider requires base URL")
		}
		llmModel, err = openai.New(
			openai.WithModel(p.Model),
			openai.WithAPIVersion(p.Version),
			openai.WithBaseURL(p.BaseURL),
			openai.WithAPIType(openai.APITypeAzure),
			openai.WithToken(p.Token),
		)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, p.Type)
	}

	if err != nil {
		return nil, err
	}
	if llmModel == nil {
		return nil, errors.New("provider created but model is nil")
	}

	if HasRateLimiting(p.RateLimits) {
		logger.Logger.Info("Wrapping provider with rate limiter",
			"name", p.Name,
			"tpm", p.RateLimits.TPM,
			"rpm", p.RateLimits.RPM)
		llmModel = NewRateLimitedLLM(llmModel, p.RateLimits, p.Model)
	}
	return llmModel, nil
}

// newBedrock uses static credentials: Token is the access key id, Secret the
// secret key and Location the region.
func newBedrock(ctx context.Context, p model.Provider) (llms.Model, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(p.Location),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(p.Token, p.Secret, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return bedrock.New(
		bedrock.WithClient(bedrockruntime.NewFromConfig(cfg)),
		bedrock.WithModel(p.Model),
	)
}
