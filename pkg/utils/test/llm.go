// Package testutils provides configurable fakes shared across test suites.
package testutils

import (
	"context"
	"errors"

	"github.com/papercomputeco/ene/pkg/llm"
)

// MockClient is a test capability client that records calls and returns
// configurable results.
type MockClient struct {
	// ReplyText is returned by GenerateReply when the client is available.
	ReplyText string

	// SummaryText is returned by GenerateSummary when the client is available.
	SummaryText string

	// Selection is returned by ClassifyTags.
	Selection llm.TagSelection

	// Unavailable makes every completion call return StatusUnavailable.
	Unavailable bool

	// FailReplies and FailSummaries make the respective calls return
	// StatusError results.
	FailReplies   bool
	FailSummaries bool

	// ReplyPrompts accumulates every prompt passed to GenerateReply.
	ReplyPrompts []llm.ReplyPrompt

	// SummaryCalls accumulates the previous summary and turns of every
	// GenerateSummary call.
	SummaryCalls []SummaryCall

	// ClassifyCalls accumulates the existing tags and content of every
	// ClassifyTags call.
	ClassifyCalls []ClassifyCall
}

// SummaryCall records one GenerateSummary invocation.
type SummaryCall struct {
	PreviousSummary string
	Turns           []llm.Turn
}

// ClassifyCall records one ClassifyTags invocation.
type ClassifyCall struct {
	Existing []llm.TagOption
	Content  string
}

// NewMockClient creates a mock client with canned happy-path responses.
func NewMockClient() *MockClient {
	return &MockClient{
		ReplyText:   "mock reply",
		SummaryText: "mock summary",
	}
}

func (m *MockClient) GenerateReply(_ context.Context, prompt llm.ReplyPrompt) llm.Result {
	m.ReplyPrompts = append(m.ReplyPrompts, prompt)
	if m.Unavailable {
		return llm.Result{Status: llm.StatusUnavailable}
	}
	if m.FailReplies {
		return llm.Result{Status: llm.StatusError, Err: errors.New("mock reply failure")}
	}
	return llm.Result{Status: llm.StatusOK, Text: m.ReplyText}
}

func (m *MockClient) GenerateSummary(_ context.Context, previousSummary string, turns []llm.Turn) llm.Result {
	m.SummaryCalls = append(m.SummaryCalls, SummaryCall{PreviousSummary: previousSummary, Turns: turns})
	if m.Unavailable {
		return llm.Result{Status: llm.StatusUnavailable}
	}
	if m.FailSummaries {
		return llm.Result{Status: llm.StatusError, Err: errors.New("mock summary failure")}
	}
	return llm.Result{Status: llm.StatusOK, Text: m.SummaryText}
}

func (m *MockClient) ClassifyTags(_ context.Context, existing []llm.TagOption, content string) llm.TagSelection {
	m.ClassifyCalls = append(m.ClassifyCalls, ClassifyCall{Existing: existing, Content: content})
	return m.Selection
}
