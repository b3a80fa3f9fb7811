package model

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aymerick/raymond"
	"github.com/bytedance/sonic"
	"github.com/mykhaliev/llm-judge/logger"
	"gopkg.in/yaml.v3"
)

// ============================================================================
// SUITE CONFIGURATION
// ============================================================================

const (
	DefaultWorkers      = 5
	DefaultJudgeTimeout = "30s"
	DefaultHTTPTimeout  = "30s"
	DefaultHTTPStatus   = 200
)

type Suite struct {
	Name       string            `yaml:"name"`
	Providers  []Provider        `yaml:"providers"`
	Target     Target            `yaml:"target"`
	Judge      Judge             `yaml:"judge"`
	HTTP       HTTPSettings      `yaml:"http"`
	Settings   Settings          `yaml:"settings"`
	Comparison Comparison        `yaml:"comparison"`
	Variables  map[string]string `yaml:"variables,omitempty"`
	Criteria   Criteria          `yaml:"criteria"`
	Cases      []Case            `yaml:"cases"`
}

// Target is the model under test. Only cases with a prompt use it.
type Target struct {
	Provider     string  `yaml:"provider"`
	SystemPrompt string  `yaml:"system_prompt"`
	Temperature  float64 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
}

// Judge configures the llm comparison strategy.
type Judge struct {
	Provider string `yaml:"provider"`
	Timeout  string `yaml:"timeout"`
	Prompt   string `yaml:"prompt"`
}

// HTTPSettings applies to every case with an http request.
type HTTPSettings struct {
	BaseURL string            `yaml:"base_url"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout string            `yaml:"timeout"`
}

type Settings struct {
	Workers               int    `yaml:"workers"`
	CaseTimeout           string `yaml:"case_timeout"`
	Verbose               bool   `yaml:"verbose"`
	LogExtractionFailures bool   `yaml:"log_extraction_failures"`
}

// Comparison holds suite-wide comparison defaults. Nil pointers mean
// "not set" so that a case can tell an explicit false from an omission.
type Comparison struct {
	Strategy         string   `yaml:"strategy"`
	Threshold        *float64 `yaml:"threshold"`
	IgnoreCase       *bool    `yaml:"ignore_case"`
	IgnoreWhitespace *bool    `yaml:"ignore_whitespace"`
	FailureMode      string   `yaml:"failure_mode"`
	ExpectedPath     string   `yaml:"expected_path"`
	ActualPath       string   `yaml:"actual_path"`
}

type Criteria struct {
	SuccessRate string `yaml:"success_rate" json:"successRate"`
}

// ============================================================================
// TEST CASES
// ============================================================================

// Case is one expected/actual pair. Actual is either given, generated by the
// target provider when Prompt is set, or the body of the HTTP response when
// HTTP is set.
type Case struct {
	ID           string            `yaml:"id"`
	Description  string            `yaml:"description"`
	Prompt       string            `yaml:"prompt"`
	SystemPrompt string            `yaml:"system_prompt"`
	HTTP         *Request          `yaml:"http,omitempty"`
	Actual       Text              `yaml:"actual"`
	Expected     Text              `yaml:"expected"`
	ExpectedPath string            `yaml:"expected_path"`
	ActualPath   string            `yaml:"actual_path"`
	Strategy     string            `yaml:"strategy"`
	Threshold    *float64          `yaml:"threshold"`
	FailureMode  string            `yaml:"failure_mode"`
	Metadata     map[string]string `yaml:"metadata,omitempty"`
}

// Generated reports whether the actual value comes from the target provider.
func (c Case) Generated() bool {
	return c.Prompt != ""
}

// Request describes the HTTP call whose response body is the actual value.
// A relative URL is resolved against the suite's http.base_url.
type Request struct {
	Method         string            `yaml:"method"`
	URL            string            `yaml:"url"`
	Params         map[string]string `yaml:"params,omitempty"`
	Headers        map[string]string `yaml:"headers,omitempty"`
	Body           Text              `yaml:"body"`
	ExpectedStatus int               `yaml:"expected_status"`
}

// Text is a YAML value kept as a string. Scalars are taken verbatim; mappings
// and sequences are stored as their JSON encoding so that structured expected
// values can be written inline.
type Text string

func (t *Text) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*t = Text(node.Value)
		return nil
	}
	var v any
	if err := node.Decode(&v); err != nil {
		return err
	}
	s, err := sonic.ConfigStd.MarshalToString(v)
	if err != nil {
		return fmt.Errorf("line %d: encode as JSON: %w", node.Line, err)
	}
	*t = Text(s)
	return nil
}

// ============================================================================
// PROVIDER CONFIGURATION
// ============================================================================

// RateLimitConfig throttles requests before they are sent.
type RateLimitConfig struct {
	TPM int `yaml:"tpm"` // tokens per minute
	RPM int `yaml:"rpm"` // requests per minute
}

type Provider struct {
	Name            string          `yaml:"name"`
	Type            ProviderType    `yaml:"type"`
	Token           string          `yaml:"token"`
	Secret          string          `yaml:"secret"`
	Model           string          `yaml:"model"`
	BaseURL         string          `yaml:"baseUrl"`
	Version         string          `yaml:"version"` // e.g., 2025-01-01-preview
	ProjectID       string          `yaml:"project_id"`
	Location        string          `yaml:"location"`
	CredentialsPath string          `yaml:"credentials_path"`
	RateLimits      RateLimitConfig `yaml:"rate_limits"`
}

type ProviderType string

const (
	ProviderGroq            ProviderType = "GROQ"
	ProviderGoogle          ProviderType = "GOOGLE"
	ProviderVertex          ProviderType = "VERTEX"
	ProviderAnthropic       ProviderType = "ANTHROPIC"
	ProviderAmazonAnthropic ProviderType = "AMAZON-ANTHROPIC"
	ProviderOpenAI          ProviderType = "OPENAI"
	ProviderAzure           ProviderType = "AZURE"
)

// ============================================================================
// YAML PARSER
// ============================================================================

func ParseSuite(filename string) (*Suite, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return ParseSuiteFromString(string(data))
}

func ParseSuiteFromString(definition string) (*Suite, error) {
	var suite Suite
	if err := yaml.Unmarshal([]byte(definition), &suite); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	suite.ApplyDefaults()
	return &suite, nil
}

// ApplyDefaults fills settings left out of the file and numbers unnamed cases.
func (s *Suite) ApplyDefaults() {
	if s.Settings.Workers <= 0 {
		s.Settings.Workers = DefaultWorkers
	}
	if s.Judge.Timeout == "" {
		s.Judge.Timeout = DefaultJudgeTimeout
	}
	if s.HTTP.Timeout == "" {
		s.HTTP.Timeout = DefaultHTTPTimeout
	}
	for i := range s.Cases {
		c := &s.Cases[i]
		if c.ID == "" {
			c.ID = fmt.Sprintf("case-%d", i+1)
		}
		if c.HTTP != nil {
			if c.HTTP.Method == "" {
				c.HTTP.Method = "GET"
			}
			if c.HTTP.ExpectedStatus == 0 {
				c.HTTP.ExpectedStatus = DefaultHTTPStatus
			}
		}
	}
}

// Validate checks the structure of the suite. Strategy names, paths and
// provider references are checked later, when they are resolved.
func (s *Suite) Validate() error {
	if len(s.Cases) == 0 {
		return errors.New("suite has no cases")
	}

	var errs []error
	seen := make(map[string]bool, len(s.Cases))
	for i, c := range s.Cases {
		if seen[c.ID] {
			errs = append(errs, fmt.Errorf("case %d: duplicate id %q", i+1, c.ID))
		}
		seen[c.ID] = true

		if sources := countTrue(c.Generated(), c.Actual != "", c.HTTP != nil); sources > 1 {
			errs = append(errs, fmt.Errorf("case %q: prompt, actual and http are mutually exclusive", c.ID))
		}
		if c.HTTP != nil && c.HTTP.URL == "" {
			errs = append(errs, fmt.Errorf("case %q: http.url is required", c.ID))
		}
		if c.Generated() && s.Target.Provider == "" {
			errs = append(errs, fmt.Errorf("case %q: prompt requires target.provider", c.ID))
		}
		if c.Threshold != nil && (*c.Threshold < 0 || *c.Threshold > 1) {
			errs = append(errs, fmt.Errorf("case %q: threshold %v is outside 0..1", c.ID, *c.Threshold))
		}
	}
	if t := s.Comparison.Threshold; t != nil && (*t < 0 || *t > 1) {
		errs = append(errs, fmt.Errorf("comparison: threshold %v is outside 0..1", *t))
	}
	return errors.Join(errs...)
}

func countTrue(conditions ...bool) int {
	n := 0
	for _, c := range conditions {
		if c {
			n++
		}
	}
	return n
}

// ============================================================================
// TEMPLATES
// ============================================================================

func GetAllEnv() map[string]string {
	envMap := make(map[string]string)
	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) == 2 {
			envMap[parts[0]] = parts[1]
		}
	}
	return envMap
}

// RenderTemplate safely parses and executes a Raymond template.
// If parsing or execution fails, it returns the input string unchanged.
func RenderTemplate(input string, context map[string]string) string {
	if !strings.Contains(input, "{{") {
		return input
	}

	tmpl, err := raymond.Parse(input)
	if err != nil {
		logger.Logger.Warn("Failed to parse template", "error", err)
		return input
	}

	output, err := tmpl.Exec(context)
	if err != nil {
		logger.Logger.Warn("Failed to execute template", "error", err)
		return input
	}

	return output
}

// Render returns a copy of the case with its text fields rendered. IDs and
// paths are left alone.
func (c Case) Render(context map[string]string) Case {
	c.Description = RenderTemplate(c.Description, context)
	c.Prompt = RenderTemplate(c.Prompt, context)
	c.SystemPrompt = RenderTemplate(c.SystemPrompt, context)
	c.Actual = Text(RenderTemplate(string(c.Actual), context))
	c.Expected = Text(RenderTemplate(string(c.Expected), context))
	if c.HTTP != nil {
		req := *c.HTTP
		req.URL = RenderTemplate(req.URL, context)
		req.Params = renderMap(req.Params, context)
		req.Headers = renderMap(req.Headers, context)
		req.Body = Text(RenderTemplate(string(req.Body), context))
		c.HTTP = &req
	}
	return c
}

func renderMap(m map[string]string, context map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = RenderTemplate(v, context)
	}
	return out
}
