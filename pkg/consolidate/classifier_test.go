package consolidate_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ene/pkg/consolidate"
	"github.com/papercomputeco/ene/pkg/ledger"
	"github.com/papercomputeco/ene/pkg/ledger/sqlite"
	"github.com/papercomputeco/ene/pkg/llm"
	"github.com/papercomputeco/ene/pkg/logger"
	testutils "github.com/papercomputeco/ene/pkg/utils/test"
)

// seedTags runs a tiny consolidation to get labeled tags into the store.
func seedTags(ctx context.Context, store *sqlite.Store, labels ...string) {
	first, err := store.AppendMessage(ctx, 99, ledger.AuthorPerson, "seed")
	Expect(err).NotTo(HaveOccurred())
	second, err := store.AppendMessage(ctx, 99, ledger.AuthorAssistant, "seed reply")
	Expect(err).NotTo(HaveOccurred())

	_, err = store.Consolidate(ctx, ledger.ConsolidationUnit{
		ConversationID:   99,
		CurrentMessageID: second.ID,
		MessageIDs:       []int64{first.ID, second.ID},
		Summary:          "seed summary",
		NewTagLabels:     labels,
	})
	Expect(err).NotTo(HaveOccurred())
}

var _ = Describe("Classifier", func() {
	var (
		store  *sqlite.Store
		client *testutils.MockClient
		ctx    context.Context
	)

	BeforeEach(func() {
		var err error
		store, err = sqlite.New(":memory:")
		Expect(err).NotTo(HaveOccurred())
		client = testutils.NewMockClient()
		ctx = context.Background()
	})

	AfterEach(func() {
		store.Close()
	})

	It("offers the existing vocabulary to the model", func() {
		seedTags(ctx, store, "travel", "food")

		classifier := consolidate.NewClassifier(store, client, logger.Nop())
		classifier.Classify(ctx, "some summary")

		Expect(client.ClassifyCalls).To(HaveLen(1))
		labels := make([]string, 0, 2)
		for _, t := range client.ClassifyCalls[0].Existing {
			labels = append(labels, t.Label)
		}
		Expect(labels).To(ConsistOf("travel", "food"))
	})

	It("drops selected ids that do not exist", func() {
		seedTags(ctx, store, "travel")
		client.Selection = llm.TagSelection{SelectedIDs: []int64{1, 99}}

		classifier := consolidate.NewClassifier(store, client, logger.Nop())
		selected, labels := classifier.Classify(ctx, "some summary")

		Expect(selected).To(Equal([]int64{1}))
		Expect(labels).To(BeEmpty())
	})

	It("caps the combined selection", func() {
		seedTags(ctx, store, "a", "b", "c")
		client.Selection = llm.TagSelection{
			SelectedIDs: []int64{1, 2, 3},
			NewLabels:   []string{"d", "e", "f"},
		}

		classifier := consolidate.NewClassifier(store, client, logger.Nop())
		selected, labels := classifier.Classify(ctx, "some summary")

		Expect(len(selected) + len(labels)).To(Equal(ledger.MaxTagsPerItem))
		Expect(selected).To(Equal([]int64{1, 2, 3}))
		Expect(labels).To(Equal([]string{"d", "e"}))
	})

	It("returns empty selections when the tag listing fails", func() {
		store.Close()

		classifier := consolidate.NewClassifier(store, client, logger.Nop())
		selected, labels := classifier.Classify(ctx, "some summary")

		Expect(selected).To(BeEmpty())
		Expect(labels).To(BeEmpty())
		Expect(client.ClassifyCalls).To(BeEmpty())
	})
})
