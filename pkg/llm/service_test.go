package llm_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ene/pkg/llm"
	"github.com/papercomputeco/ene/pkg/logger"
)

// recordingCompleter records completion requests and replays canned output.
type recordingCompleter struct {
	response string
	err      error
	requests []llm.CompletionRequest
}

func (r *recordingCompleter) Name() string { return "recording" }

func (r *recordingCompleter) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	r.requests = append(r.requests, req)
	if r.err != nil {
		return "", r.err
	}
	return r.response, nil
}

var _ = Describe("Service", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Context("without a completer", func() {
		service := llm.NewService(nil, logger.Nop())

		It("marks replies unavailable", func() {
			result := service.GenerateReply(ctx, llm.ReplyPrompt{UserMessage: "hi"})
			Expect(result.Status).To(Equal(llm.StatusUnavailable))
			Expect(result.OK()).To(BeFalse())
			Expect(result.Text).To(BeEmpty())
		})

		It("marks summaries unavailable", func() {
			result := service.GenerateSummary(ctx, "", nil)
			Expect(result.Status).To(Equal(llm.StatusUnavailable))
		})

		It("returns an empty tag selection", func() {
			selection := service.ClassifyTags(ctx, nil, "content")
			Expect(selection.SelectedIDs).To(BeEmpty())
			Expect(selection.NewLabels).To(BeEmpty())
		})
	})

	Describe("GenerateReply", func() {
		It("folds the reflection summary and history into the prompt", func() {
			completer := &recordingCompleter{response: "sure thing"}
			service := llm.NewService(completer, logger.Nop())

			result := service.GenerateReply(ctx, llm.ReplyPrompt{
				UserMessage:       "what was the plan again?",
				ReflectionSummary: "they are planning a trip to Lisbon",
				History: []llm.Turn{
					{Author: "person", Content: "I like trains"},
					{Author: "assistant", Content: "Trains are great"},
				},
			})

			Expect(result.OK()).To(BeTrue())
			Expect(result.Text).To(Equal("sure thing"))

			Expect(completer.requests).To(HaveLen(1))
			user := completer.requests[0].User
			Expect(user).To(ContainSubstring("planning a trip to Lisbon"))
			Expect(user).To(ContainSubstring("[PERSON] I like trains"))
			Expect(user).To(ContainSubstring("[ASSISTANT] Trains are great"))
			Expect(user).To(ContainSubstring("what was the plan again?"))
		})

		It("surfaces completion failures as error results", func() {
			completer := &recordingCompleter{err: errors.New("upstream down")}
			service := llm.NewService(completer, logger.Nop())

			result := service.GenerateReply(ctx, llm.ReplyPrompt{UserMessage: "hi"})
			Expect(result.Status).To(Equal(llm.StatusError))
			Expect(result.Err).To(HaveOccurred())
		})
	})

	Describe("GenerateSummary", func() {
		It("labels turns by author in the transcript", func() {
			completer := &recordingCompleter{response: "a summary"}
			service := llm.NewService(completer, logger.Nop())

			result := service.GenerateSummary(ctx, "", []llm.Turn{
				{Author: "person", Content: "hello"},
				{Author: "assistant", Content: "hi"},
			})

			Expect(result.OK()).To(BeTrue())
			Expect(completer.requests[0].User).To(ContainSubstring("[PERSON] hello"))
			Expect(completer.requests[0].User).To(ContainSubstring("[ASSISTANT] hi"))
		})

		It("carries the previous summary into the system prompt", func() {
			completer := &recordingCompleter{response: "a summary"}
			service := llm.NewService(completer, logger.Nop())

			service.GenerateSummary(ctx, "earlier they discussed trains", nil)

			Expect(completer.requests[0].System).To(ContainSubstring("earlier they discussed trains"))
		})
	})

	Describe("ClassifyTags", func() {
		It("parses a plain JSON selection", func() {
			completer := &recordingCompleter{
				response: `{"selected_ids": [1, 3], "new_labels": ["travel"]}`,
			}
			service := llm.NewService(completer, logger.Nop())

			selection := service.ClassifyTags(ctx, []llm.TagOption{{ID: 1, Label: "food"}}, "content")
			Expect(selection.SelectedIDs).To(Equal([]int64{1, 3}))
			Expect(selection.NewLabels).To(Equal([]string{"travel"}))
		})

		It("strips markdown fences around the JSON", func() {
			completer := &recordingCompleter{
				response: "```json\n{\"selected_ids\": [2], \"new_labels\": []}\n```",
			}
			service := llm.NewService(completer, logger.Nop())

			selection := service.ClassifyTags(ctx, nil, "content")
			Expect(selection.SelectedIDs).To(Equal([]int64{2}))
		})

		It("degrades malformed output to an empty selection", func() {
			completer := &recordingCompleter{response: "I think travel and food fit best!"}
			service := llm.NewService(completer, logger.Nop())

			selection := service.ClassifyTags(ctx, nil, "content")
			Expect(selection.SelectedIDs).To(BeEmpty())
			Expect(selection.NewLabels).To(BeEmpty())
		})

		It("requests JSON output with the vocabulary listed", func() {
			completer := &recordingCompleter{response: `{"selected_ids": [], "new_labels": []}`}
			service := llm.NewService(completer, logger.Nop())

			service.ClassifyTags(ctx, []llm.TagOption{{ID: 7, Label: "music"}}, "content")

			Expect(completer.requests[0].JSON).To(BeTrue())
			Expect(completer.requests[0].User).To(ContainSubstring("id: 7, label: music"))
		})
	})
})
