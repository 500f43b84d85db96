// Package llm exposes the language-model capabilities the memory pipeline
// consumes: live reply generation, summarization, and tag classification.
//
// Capability outcomes are tagged (ok / unavailable / error) instead of being
// smuggled through warning strings, so each caller decides whether to store,
// display, or abort on a degraded result.
package llm

import "context"

// Status tags the outcome of a capability call.
type Status int

const (
	// StatusOK means Text holds a real model completion.
	StatusOK Status = iota

	// StatusUnavailable means no provider is configured.
	StatusUnavailable

	// StatusError means the provider call failed.
	StatusError
)

// Result is the tagged outcome of a completion-style capability call.
type Result struct {
	Status Status
	Text   string
	Err    error
}

// OK reports whether the result carries a real completion.
func (r Result) OK() bool { return r.Status == StatusOK }

func ok(text string) Result   { return Result{Status: StatusOK, Text: text} }
func unavailable() Result     { return Result{Status: StatusUnavailable} }
func failed(err error) Result { return Result{Status: StatusError, Err: err} }

// Turn is one ledger message reduced to what prompts need.
type Turn struct {
	Author  string
	Content string
}

// TagOption is an existing tag offered to the classifier.
type TagOption struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

// TagSelection is the classifier's raw output: existing tag ids it picked
// plus labels it wants minted. Cap enforcement happens in the consolidation
// classifier, not here.
type TagSelection struct {
	SelectedIDs []int64  `json:"selected_ids"`
	NewLabels   []string `json:"new_labels"`
}

// ReplyPrompt is the bounded context for a live response: the latest
// reflection summary stands in for everything already consolidated, History
// holds only the messages since the cursor.
type ReplyPrompt struct {
	UserMessage       string
	ReflectionSummary string
	History           []Turn
}

// Client is the capability surface consumed by the session loop and the
// consolidation worker.
type Client interface {
	// GenerateReply produces a live response to the current turn.
	GenerateReply(ctx context.Context, prompt ReplyPrompt) Result

	// GenerateSummary folds turns into a rolling summary, seeded with the
	// previous reflection summary as prior context.
	GenerateSummary(ctx context.Context, previousSummary string, turns []Turn) Result

	// ClassifyTags maps content onto existing tags or proposes new labels.
	// A missing or misbehaving provider yields an empty selection, never an
	// error that would fail the enclosing consolidation.
	ClassifyTags(ctx context.Context, existing []TagOption, content string) TagSelection
}
