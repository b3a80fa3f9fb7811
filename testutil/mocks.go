// Package testutil holds mocks shared by package tests.
package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/tmc/langchaingo/llms"
)

// dummy writer for logger
type DummyWriter struct{}

// NewDummyWriter creates a new DummyWriter instance
func NewDummyWriter() *DummyWriter {
	return &DummyWriter{}
}

// Write implements io.Writer interface and discards all data
func (d *DummyWriter) Write(p []byte) (n int, err error) {
	return len(p), nil
}

// MockLLMModel mocks the llms.Model interface
type MockLLMModel struct {
	mock.Mock
}

func (m *MockLLMModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	args := m.Called(ctx, messages, options)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llms.ContentResponse), args.Error(1)
}

func (m *MockLLMModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	args := m.Called(ctx, prompt, options)
	return args.String(0), args.Error(1)
}

// TextResponse builds a single-choice response.
func TextResponse(content string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: content}},
	}
}
