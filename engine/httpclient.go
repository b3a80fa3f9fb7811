package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mykhaliev/llm-judge/logger"
	"github.com/mykhaliev/llm-judge/model"
	"github.com/mykhaliev/llm-judge/version"
)

// maxResponseBody caps how much of a response body is read for comparison.
const maxResponseBody = 10 << 20

// HTTPClient sends the requests of http cases. Suite headers are applied to
// every request and case headers override them.
type HTTPClient struct {
	wrapped *http.Client
	baseURL string
	headers map[string]string
}

// Response is what an http case compares: the status and the body text.
type Response struct {
	Status    int
	Body      string
	LatencyMs int64
}

// NewHTTPClient creates a client for the suite's http settings. If wrapped is
// nil, a default http.Client with the settings' timeout is used.
func NewHTTPClient(wrapped *http.Client, settings model.HTTPSettings) *HTTPClient {
	if wrapped == nil {
		wrapped = &http.Client{
			Timeout: ParseTimeout(settings.Timeout, 30*time.Second),
		}
	}
	return &HTTPClient{
		wrapped: wrapped,
		baseURL: settings.BaseURL,
		headers: settings.Headers,
	}
}

// Do sends req. Any status is a response; only transport failures are errors.
func (c *HTTPClient) Do(ctx context.Context, req model.Request) (Response, error) {
	target, err := c.resolve(req)
	if err != nil {
		return Response{}, err
	}

	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(string(req.Body))
	}
	method := strings.ToUpper(req.Method)
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to build request: %w", err)
	}

	httpReq.Header.Set("User-Agent", "llm-judge/"+version.Version)
	httpReq.Header.Set("Accept", "application/json, text/plain, */*")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	logger.Logger.Debug("Sending request", "method", method, "url", target)
	start := time.Now()
	resp, err := c.wrapped.Do(httpReq)
	if err != nil {
		return Response{LatencyMs: time.Since(start).Milliseconds()}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return Response{Status: resp.StatusCode, LatencyMs: latency}, fmt.Errorf("failed to read response body: %w", err)
	}

	logger.Logger.Debug("Received response",
		"method", method,
		"url", target,
		"status", resp.StatusCode,
		"latency_ms", latency)
	return Response{Status: resp.StatusCode, Body: string(data), LatencyMs: latency}, nil
}

// resolve joins a relative URL to the base URL and adds the query parameters.
func (c *HTTPClient) resolve(req model.Request) (string, error) {
	raw := req.URL
	if c.baseURL != "" && !strings.Contains(raw, "://") {
		raw = strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(raw, "/")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid url %q: scheme and host are required", raw)
	}
	if len(req.Params) > 0 {
		q := u.Query()
		for k, v := range req.Params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
