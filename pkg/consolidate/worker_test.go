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

// appendTurns appends n alternating person/assistant messages and returns
// their ids.
func appendTurns(ctx context.Context, store *sqlite.Store, conversationID int64, n int) []int64 {
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		author := ledger.AuthorPerson
		if i%2 == 1 {
			author = ledger.AuthorAssistant
		}
		msg, err := store.AppendMessage(ctx, conversationID, author, "turn")
		Expect(err).NotTo(HaveOccurred())
		ids = append(ids, msg.ID)
	}
	return ids
}

// gatedClient holds GenerateSummary until the gate opens, keeping a unit
// in flight for as long as a test needs.
type gatedClient struct {
	*testutils.MockClient
	gate chan struct{}
}

func (g *gatedClient) GenerateSummary(ctx context.Context, previousSummary string, turns []llm.Turn) llm.Result {
	<-g.gate
	return g.MockClient.GenerateSummary(ctx, previousSummary, turns)
}

// newTestWorker creates a worker over a fresh in-memory store.
// Callers should "w.Close()" to drain enqueued units before asserting
// ledger state.
func newTestWorker(client llm.Client) (*consolidate.Worker, *sqlite.Store, *testutils.MockPublisher) {
	store, err := sqlite.New(":memory:")
	Expect(err).NotTo(HaveOccurred())

	publisher := testutils.NewMockPublisher()

	w := consolidate.NewWorker(&consolidate.Config{
		Store:      store,
		LLM:        client,
		Classifier: consolidate.NewClassifier(store, client, logger.Nop()),
		Publisher:  publisher,
		Logger:     logger.Nop(),
	})

	return w, store, publisher
}

var _ = Describe("Worker", func() {
	var (
		client *testutils.MockClient
		ctx    context.Context
	)

	BeforeEach(func() {
		client = testutils.NewMockClient()
		client.SummaryText = "consolidated summary"
		ctx = context.Background()
	})

	Describe("Maybe", func() {
		It("does nothing below the threshold", func() {
			w, store, _ := newTestWorker(client)
			defer store.Close()

			ids := appendTurns(ctx, store, 1, 9)
			Expect(w.Maybe(ctx, 1, ids[8])).To(BeFalse())
			w.Close()

			Expect(client.SummaryCalls).To(BeEmpty())
		})

		It("enqueues a unit at the threshold", func() {
			w, store, _ := newTestWorker(client)
			defer store.Close()

			ids := appendTurns(ctx, store, 1, 10)
			Expect(w.Maybe(ctx, 1, ids[9])).To(BeTrue())
			w.Close()

			Expect(client.SummaryCalls).To(HaveLen(1))
		})

		It("drops a second trigger while a unit is in flight", func() {
			gated := &gatedClient{MockClient: client, gate: make(chan struct{})}
			w, store, _ := newTestWorker(gated)
			defer store.Close()

			ids := appendTurns(ctx, store, 1, 10)
			Expect(w.Maybe(ctx, 1, ids[9])).To(BeTrue())
			Expect(w.Maybe(ctx, 1, ids[9])).To(BeFalse())

			close(gated.gate)
			w.Close()

			Expect(client.SummaryCalls).To(HaveLen(1))
		})
	})

	Describe("consolidation unit", func() {
		It("commits the reflection, cursor, tags, and event", func() {
			client.Selection = llm.TagSelection{NewLabels: []string{"travel"}}
			w, store, publisher := newTestWorker(client)
			defer store.Close()

			ids := appendTurns(ctx, store, 1, 10)
			Expect(w.Maybe(ctx, 1, ids[9])).To(BeTrue())
			w.Close()

			latest, err := store.LatestReflection(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(latest.Summary).To(Equal("consolidated summary"))
			Expect(latest.ParentID).To(BeNil())

			cursor, err := store.LastReflectedID(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(cursor).To(Equal(ids[9]))

			tags, err := store.ReflectionTags(ctx, latest.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(tags).To(HaveLen(1))
			Expect(tags[0].Label).To(Equal("travel"))

			events := publisher.Reflections()
			Expect(events).To(HaveLen(1))
			Expect(events[0].ConversationID).To(Equal(int64(1)))
			Expect(events[0].MessageIDs).To(HaveLen(10))
			Expect(events[0].CursorID).To(Equal(ids[9]))
		})

		It("consolidates only the window the trigger observed", func() {
			w, store, _ := newTestWorker(client)
			defer store.Close()

			ids := appendTurns(ctx, store, 1, 12)
			Expect(w.Maybe(ctx, 1, ids[9])).To(BeTrue())
			w.Close()

			cursor, err := store.LastReflectedID(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(cursor).To(Equal(ids[9]))

			remaining, err := store.MessagesAfter(ctx, 1, cursor)
			Expect(err).NotTo(HaveOccurred())
			Expect(remaining).To(HaveLen(2))
			for _, m := range remaining {
				Expect(m.ReflectionID).To(BeNil())
			}
		})

		It("seeds the next summary with the previous one", func() {
			w, store, _ := newTestWorker(client)
			defer store.Close()

			ids := appendTurns(ctx, store, 1, 10)
			Expect(w.Maybe(ctx, 1, ids[9])).To(BeTrue())
			w.Close()

			next := consolidate.NewWorker(&consolidate.Config{
				Store:      store,
				LLM:        client,
				Classifier: consolidate.NewClassifier(store, client, logger.Nop()),
				Publisher:  testutils.NewMockPublisher(),
				Logger:     logger.Nop(),
			})
			ids = appendTurns(ctx, store, 1, 10)
			Expect(next.Maybe(ctx, 1, ids[9])).To(BeTrue())
			next.Close()

			Expect(client.SummaryCalls).To(HaveLen(2))
			Expect(client.SummaryCalls[0].PreviousSummary).To(BeEmpty())
			Expect(client.SummaryCalls[1].PreviousSummary).To(Equal("consolidated summary"))
		})

		It("leaves the ledger untouched when summarization fails", func() {
			client.FailSummaries = true
			w, store, publisher := newTestWorker(client)
			defer store.Close()

			ids := appendTurns(ctx, store, 1, 10)
			Expect(w.Maybe(ctx, 1, ids[9])).To(BeTrue())
			w.Close()

			cursor, err := store.LastReflectedID(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(cursor).To(BeZero())

			chain, err := store.ReflectionChain(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(chain).To(BeEmpty())

			Expect(publisher.Reflections()).To(BeEmpty())
		})

		It("retries the same window on the next trigger after a failure", func() {
			client.FailSummaries = true
			w, store, _ := newTestWorker(client)
			defer store.Close()

			ids := appendTurns(ctx, store, 1, 10)
			Expect(w.Maybe(ctx, 1, ids[9])).To(BeTrue())
			w.Close()

			client.FailSummaries = false
			retry := consolidate.NewWorker(&consolidate.Config{
				Store:      store,
				LLM:        client,
				Classifier: consolidate.NewClassifier(store, client, logger.Nop()),
				Publisher:  testutils.NewMockPublisher(),
				Logger:     logger.Nop(),
			})
			Expect(retry.Maybe(ctx, 1, ids[9])).To(BeTrue())
			retry.Close()

			_, err := store.LatestReflection(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
