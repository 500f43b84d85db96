package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/papercomputeco/ene/pkg/utils"
)

// Service implements Client over a single Completer backend. A nil
// Completer means the capability is absent: every completion call returns a
// StatusUnavailable result and classification returns empty selections.
type Service struct {
	completer Completer
	logger    *slog.Logger
}

// NewService creates the capability client. completer may be nil.
func NewService(completer Completer, logger *slog.Logger) *Service {
	return &Service{completer: completer, logger: logger}
}

// GenerateReply produces a live response to the current turn from the
// bounded context in prompt.
func (s *Service) GenerateReply(ctx context.Context, prompt ReplyPrompt) Result {
	if s.completer == nil {
		return unavailable()
	}

	var b strings.Builder
	if prompt.ReflectionSummary != "" {
		fmt.Fprintf(&b, "Summary of the earlier conversation:\n%s\n\n", prompt.ReflectionSummary)
	}
	if len(prompt.History) > 0 {
		b.WriteString("Recent messages:\n")
		writeTranscript(&b, prompt.History)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "The person says:\n%s", prompt.UserMessage)

	text, err := s.completer.Complete(ctx, CompletionRequest{
		System:      replySystemPrompt,
		User:        b.String(),
		Temperature: 0.7,
		MaxTokens:   1000,
	})
	if err != nil {
		s.logger.Error("reply generation failed", "provider", s.completer.Name(), "error", err)
		return failed(err)
	}

	return ok(text)
}

// GenerateSummary folds turns into a rolling summary seeded with the
// previous one. Turns are labeled by author so the model can weight
// person-authored lines.
func (s *Service) GenerateSummary(ctx context.Context, previousSummary string, turns []Turn) Result {
	if s.completer == nil {
		return unavailable()
	}

	var transcript strings.Builder
	writeTranscript(&transcript, turns)

	user := fmt.Sprintf(summaryUserPromptTemplate, transcript.String())

	system := summarySystemPrompt
	if previousSummary != "" {
		system += "\n\nPrevious summary:\n" + previousSummary
	}

	text, err := s.completer.Complete(ctx, CompletionRequest{
		System:      system,
		User:        user,
		Temperature: 0.3,
		MaxTokens:   500,
	})
	if err != nil {
		s.logger.Error("summary generation failed", "provider", s.completer.Name(), "error", err)
		return failed(err)
	}

	return ok(text)
}

// ClassifyTags asks the model to pick existing tags or mint labels for the
// content. Any failure, including malformed output, degrades to an empty
// selection so the content simply goes untagged.
func (s *Service) ClassifyTags(ctx context.Context, existing []TagOption, content string) TagSelection {
	if s.completer == nil {
		return TagSelection{}
	}

	tagLines := "(none)"
	if len(existing) > 0 {
		var b strings.Builder
		for _, t := range existing {
			fmt.Fprintf(&b, "- id: %d, label: %s\n", t.ID, t.Label)
		}
		tagLines = strings.TrimRight(b.String(), "\n")
	}

	text, err := s.completer.Complete(ctx, CompletionRequest{
		System:      fmt.Sprintf(tagSystemPrompt, 5),
		User:        fmt.Sprintf(tagUserPromptTemplate, tagLines, content),
		Temperature: 0.2,
		MaxTokens:   300,
		JSON:        true,
	})
	if err != nil {
		s.logger.Error("tag classification failed", "provider", s.completer.Name(), "error", err)
		return TagSelection{}
	}

	var selection TagSelection
	if err := json.Unmarshal([]byte(extractJSONBlock(text)), &selection); err != nil {
		s.logger.Warn("tag classification returned malformed output",
			"provider", s.completer.Name(), "error", err, "raw", utils.Truncate(text, 200))
		return TagSelection{}
	}

	return selection
}

func writeTranscript(b *strings.Builder, turns []Turn) {
	for _, t := range turns {
		label := "ASSISTANT"
		if strings.EqualFold(t.Author, "person") {
			label = "PERSON"
		}
		fmt.Fprintf(b, "[%s] %s\n", label, t.Content)
	}
}

// extractJSONBlock strips markdown fences and any prose around the first
// top-level JSON object in a model completion.
func extractJSONBlock(text string) string {
	text = strings.TrimSpace(text)

	if after, found := strings.CutPrefix(text, "```json"); found {
		text = after
	} else if after, found := strings.CutPrefix(text, "```"); found {
		text = after
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start >= 0 && end > start {
		return text[start : end+1]
	}

	return text
}
