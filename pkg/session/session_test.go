package session_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ene/pkg/consolidate"
	"github.com/papercomputeco/ene/pkg/ledger"
	"github.com/papercomputeco/ene/pkg/ledger/sqlite"
	"github.com/papercomputeco/ene/pkg/logger"
	"github.com/papercomputeco/ene/pkg/session"
	testutils "github.com/papercomputeco/ene/pkg/utils/test"
)

var _ = Describe("Loop", func() {
	var (
		store     *sqlite.Store
		client    *testutils.MockClient
		publisher *testutils.MockPublisher
		worker    *consolidate.Worker
		loop      *session.Loop
		ctx       context.Context
		drained   bool
	)

	// drain closes the worker exactly once so queued consolidations land
	// before assertions.
	drain := func() {
		if !drained {
			worker.Close()
			drained = true
		}
	}

	BeforeEach(func() {
		var err error
		store, err = sqlite.New(":memory:")
		Expect(err).NotTo(HaveOccurred())

		client = testutils.NewMockClient()
		client.ReplyText = "hello back"
		publisher = testutils.NewMockPublisher()

		worker = consolidate.NewWorker(&consolidate.Config{
			Store:      store,
			LLM:        client,
			Classifier: consolidate.NewClassifier(store, client, logger.Nop()),
			Publisher:  publisher,
			Logger:     logger.Nop(),
		})

		loop = session.NewLoop(store, client, worker, publisher, logger.Nop())
		ctx = context.Background()
		drained = false
	})

	AfterEach(func() {
		drain()
		store.Close()
	})

	It("greets, replies, and returns nil on a clean close", func() {
		conn := testutils.NewScriptedConn("hi there")

		Expect(loop.Run(ctx, conn, 1)).To(Succeed())

		Expect(conn.Sent).To(HaveLen(2))
		Expect(conn.Sent[1]).To(Equal("hello back"))
	})

	It("persists both sides of each exchange", func() {
		conn := testutils.NewScriptedConn("hi there")

		Expect(loop.Run(ctx, conn, 1)).To(Succeed())

		messages, err := store.MessagesAfter(ctx, 1, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(messages).To(HaveLen(2))
		Expect(messages[0].Author).To(Equal(ledger.AuthorPerson))
		Expect(messages[0].Content).To(Equal("hi there"))
		Expect(messages[1].Author).To(Equal(ledger.AuthorAssistant))
		Expect(messages[1].Content).To(Equal("hello back"))
	})

	It("publishes a persisted event per stored turn", func() {
		conn := testutils.NewScriptedConn("one", "two")

		Expect(loop.Run(ctx, conn, 1)).To(Succeed())

		Expect(publisher.Messages()).To(HaveLen(4))
	})

	It("sanitizes malformed text instead of dropping the turn", func() {
		conn := testutils.NewScriptedConn("caf\xc3 au lait")

		Expect(loop.Run(ctx, conn, 1)).To(Succeed())

		messages, err := store.MessagesAfter(ctx, 1, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(messages[0].Content).To(ContainSubstring("�"))
		Expect(messages[0].Content).To(ContainSubstring("au lait"))
	})

	It("carries prior turns into the next reply's context", func() {
		conn := testutils.NewScriptedConn("first", "second")

		Expect(loop.Run(ctx, conn, 1)).To(Succeed())

		Expect(client.ReplyPrompts).To(HaveLen(2))
		Expect(client.ReplyPrompts[0].History).To(BeEmpty())

		second := client.ReplyPrompts[1]
		Expect(second.History).To(HaveLen(2))
		Expect(second.History[0].Content).To(Equal("first"))
		Expect(second.History[1].Content).To(Equal("hello back"))
	})

	Context("when reply generation fails", func() {
		BeforeEach(func() {
			client.FailReplies = true
		})

		It("apologizes in-band and keeps the session alive", func() {
			conn := testutils.NewScriptedConn("hi", "still there?")

			Expect(loop.Run(ctx, conn, 1)).To(Succeed())

			Expect(conn.Sent).To(HaveLen(3))
			Expect(conn.Sent[1]).To(Equal(conn.Sent[2]))
		})

		It("stores the person's turn but no assistant turn", func() {
			conn := testutils.NewScriptedConn("hi")

			Expect(loop.Run(ctx, conn, 1)).To(Succeed())

			messages, err := store.MessagesAfter(ctx, 1, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(messages).To(HaveLen(1))
			Expect(messages[0].Author).To(Equal(ledger.AuthorPerson))
		})
	})

	It("triggers consolidation once enough turns accumulate", func() {
		client.SummaryText = "they exchanged pleasantries"
		conn := testutils.NewScriptedConn("a", "b", "c", "d", "e")

		Expect(loop.Run(ctx, conn, 1)).To(Succeed())
		drain()

		latest, err := store.LatestReflection(ctx, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(latest.Summary).To(Equal("they exchanged pleasantries"))

		cursor, err := store.LastReflectedID(ctx, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(cursor).To(Equal(int64(10)))
	})
})
