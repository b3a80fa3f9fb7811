package engine_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mykhaliev/llm-judge/engine"
	"github.com/mykhaliev/llm-judge/logger"
	"github.com/mykhaliev/llm-judge/model"
	"github.com/mykhaliev/llm-judge/provider"
	"github.com/mykhaliev/llm-judge/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "en", r.URL.Query().Get("lang"))
		assert.Equal(t, "suite", r.Header.Get("X-Suite"))
		assert.Equal(t, "secret", r.Header.Get("X-Case"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.JSONEq(t, `{"name": "Zhang"}`, string(body))

		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"name": "Zhang", "id": 1}`)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error": "not found"}`)
	})
	mux.HandleFunc("/wrapped", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": {"city": "Paris"}}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// ============================================================================
// HTTP CASES
// ============================================================================

func TestRun_HTTP(t *testing.T) {
	logger.SetupLogger(testutil.NewDummyWriter(), true)
	srv := newTestServer(t)

	suite, err := model.ParseSuiteFromString(fmt.Sprintf(`
http:
  base_url: %s/
  headers: {X-Suite: suite}
comparison:
  strategy: json
variables:
  token: secret
cases:
  - id: create
    http:
      method: post
      url: /users
      params: {lang: en}
      headers: {X-Case: "{{token}}"}
      body: {name: Zhang}
      expected_status: 201
    expected: {"id": 1, "name": "Zhang"}
  - id: wrong-status
    http: {url: missing}
    expected: {"error": "not found"}
  - id: extracted
    http: {url: /wrapped}
    expected: Paris
    actual_path: $.data.city
    strategy: exact
  - id: unreachable
    http: {url: "http://127.0.0.1:1/down"}
    expected: anything
`, srv.URL))
	require.NoError(t, err)

	report, err := engine.Run(context.Background(), suite, engine.Config{Models: map[string]llms.Model{}})
	require.NoError(t, err)
	require.Len(t, report.Results, 4)

	create := report.Results[0]
	assert.True(t, create.Passed, create.Error)
	require.NotNil(t, create.HTTP)
	assert.Equal(t, "POST", create.HTTP.Method)
	assert.Equal(t, 201, create.HTTP.Status)
	assert.Equal(t, 201, create.HTTP.ExpectedStatus)
	assert.GreaterOrEqual(t, create.HTTP.LatencyMs, int64(0))
	assert.Nil(t, create.Generation)

	wrongStatus := report.Results[1]
	assert.False(t, wrongStatus.Passed, "status must match as well as the body")
	require.NotNil(t, wrongStatus.Verdict)
	assert.True(t, wrongStatus.Verdict.Matched)
	assert.Equal(t, "GET", wrongStatus.HTTP.Method)
	assert.Equal(t, 404, wrongStatus.HTTP.Status)
	assert.Equal(t, 200, wrongStatus.HTTP.ExpectedStatus)
	assert.Empty(t, wrongStatus.Error)

	extracted := report.Results[2]
	assert.True(t, extracted.Passed)
	assert.Equal(t, "Paris", extracted.Verdict.ActualDisplay)

	unreachable := report.Results[3]
	assert.False(t, unreachable.Passed)
	assert.Contains(t, unreachable.Error, "request failed")
	require.NotNil(t, unreachable.HTTP)
	assert.Equal(t, 0, unreachable.HTTP.Status)

	s := report.Summary
	assert.Equal(t, 2, s.Passed)
	assert.Equal(t, 1, s.Errored)
	assert.Equal(t, 1, s.StatusMismatches)

	var out bytes.Buffer
	engine.PrintSummary(&out, report)
	assert.Contains(t, out.String(), "[FAIL] wrong-status: status 404, expected 200")
	assert.Contains(t, out.String(), "Status Mismatch:  1")
}

func TestHTTPClient_Do(t *testing.T) {
	logger.SetupLogger(testutil.NewDummyWriter(), true)
	srv := newTestServer(t)

	t.Run("Absolute URL ignores base", func(t *testing.T) {
		client := engine.NewHTTPClient(nil, model.HTTPSettings{BaseURL: "http://example.invalid"})
		resp, err := client.Do(context.Background(), model.Request{Method: "GET", URL: srv.URL + "/wrapped"})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.Status)
		assert.JSONEq(t, `{"data": {"city": "Paris"}}`, resp.Body)
	})

	t.Run("Relative URL without base", func(t *testing.T) {
		client := engine.NewHTTPClient(nil, model.HTTPSettings{})
		_, err := client.Do(context.Background(), model.Request{Method: "GET", URL: "/wrapped"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "scheme and host are required")
	})

	t.Run("Error status is a response", func(t *testing.T) {
		client := engine.NewHTTPClient(srv.Client(), model.HTTPSettings{BaseURL: srv.URL})
		resp, err := client.Do(context.Background(), model.Request{Method: "GET", URL: "missing"})
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.Status)
	})

	t.Run("Cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		client := engine.NewHTTPClient(nil, model.HTTPSettings{BaseURL: srv.URL})
		_, err := client.Do(ctx, model.Request{Method: "GET", URL: "wrapped"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

// ============================================================================
// THROTTLING
// ============================================================================

func TestRun_ReportsThrottling(t *testing.T) {
	logger.SetupLogger(testutil.NewDummyWriter(), true)

	target := new(testutil.MockLLMModel)
	target.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything).
		Return(testutil.TextResponse("hi"), nil)
	limited := provider.NewRateLimitedLLM(target, model.RateLimitConfig{RPM: 600}, "mock-model")

	suite, err := model.ParseSuiteFromString(`
target: {provider: t}
cases:
  - {prompt: hello, expected: hi}
`)
	require.NoError(t, err)

	report, err := engine.Run(context.Background(), suite, engine.Config{Models: map[string]llms.Model{"t": limited}})
	require.NoError(t, err)
	assert.True(t, report.Results[0].Passed)
	require.Contains(t, report.Throttling, "t")
	assert.Equal(t, 0, report.Throttling["t"].ThrottleCount)
}
