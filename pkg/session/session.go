// Package session drives the user-facing turn-by-turn exchange over a
// duplex text transport: persist the person's turn, build the bounded
// context, respond, persist the response, and fire the consolidation
// trigger without waiting on it.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/papercomputeco/ene/pkg/consolidate"
	"github.com/papercomputeco/ene/pkg/eventstream"
	"github.com/papercomputeco/ene/pkg/ledger"
	"github.com/papercomputeco/ene/pkg/llm"
)

// ErrClosed is the distinguishable "session closed" signal a Conn returns
// once the peer disconnects.
var ErrClosed = errors.New("session closed")

// Conn is the duplex text transport for one live session. The websocket
// adapter in the API layer implements it; tests use an in-memory fake.
type Conn interface {
	// Receive blocks for the next inbound text message. Returns ErrClosed
	// (possibly wrapped) when the peer disconnected.
	Receive(ctx context.Context) (string, error)

	// Send writes one outbound text message.
	Send(ctx context.Context, text string) error
}

const (
	greetingText = "Connected. Say hello!"
	apologyText  = "Sorry, something went wrong on my end. Please say that again."
)

// Loop handles live sessions. One Run per connection; a Loop itself is
// stateless and safe for concurrent Run calls.
type Loop struct {
	store     ledger.Store
	llm       llm.Client
	worker    *consolidate.Worker
	publisher eventstream.Publisher
	logger    *slog.Logger
}

// NewLoop wires a session loop.
func NewLoop(store ledger.Store, client llm.Client, worker *consolidate.Worker, publisher eventstream.Publisher, logger *slog.Logger) *Loop {
	return &Loop{
		store:     store,
		llm:       client,
		worker:    worker,
		publisher: publisher,
		logger:    logger,
	}
}

// Run drives one session until the transport closes or ctx is done.
// Transport errors terminate the loop; persistence and capability errors
// degrade to an in-band apology and the loop continues. Run only returns a
// non-nil error for unexpected transport failures, never for a clean close.
func (l *Loop) Run(ctx context.Context, conn Conn, conversationID int64) error {
	log := l.logger.With("conversation_id", conversationID)
	log.Info("session connected")

	if err := conn.Send(ctx, greetingText); err != nil {
		return l.closed("greeting", err, log)
	}

	for {
		text, err := conn.Receive(ctx)
		if err != nil {
			return l.closed("receive", err, log)
		}

		reply := l.handleTurn(ctx, conversationID, text, log)

		if err := conn.Send(ctx, reply.text); err != nil {
			return l.closed("send", err, log)
		}

		// The reply goes out before the assistant turn is persisted, and
		// the trigger is evaluated on whichever id is highest afterwards.
		currentID := reply.personMessageID
		if reply.ok {
			if assistant, err := l.append(ctx, conversationID, ledger.AuthorAssistant, reply.text); err != nil {
				log.Error("assistant message persist failed", "error", err)
			} else {
				currentID = assistant.ID
			}
		}

		if currentID > 0 {
			l.worker.Maybe(ctx, conversationID, currentID)
		}
	}
}

type turnResult struct {
	text            string
	personMessageID int64

	// ok means the text is a real reply worth persisting as an assistant
	// turn; apologies are sent but never stored.
	ok bool
}

// handleTurn persists the person's message, builds the bounded context, and
// produces the reply. Every failure path degrades to an apology.
func (l *Loop) handleTurn(ctx context.Context, conversationID int64, text string, log *slog.Logger) turnResult {
	// Replacement-sanitize malformed text rather than aborting the turn.
	content := strings.ToValidUTF8(text, string(utf8.RuneError))

	person, err := l.append(ctx, conversationID, ledger.AuthorPerson, content)
	if err != nil {
		log.Error("person message persist failed", "retryable", ledger.IsRetryable(err), "error", err)
		return turnResult{text: apologyText}
	}

	prompt := llm.ReplyPrompt{UserMessage: content}

	// Bounded context: the latest reflection stands in for everything
	// already consolidated; only messages past the cursor ride along. The
	// cursor is read fresh because a consolidation may have just advanced it.
	cursor, err := l.store.LastReflectedID(ctx, conversationID)
	if err == nil {
		if history, herr := l.store.MessagesAfter(ctx, conversationID, cursor); herr == nil {
			for _, m := range history {
				if m.ID == person.ID {
					continue
				}
				prompt.History = append(prompt.History, llm.Turn{Author: string(m.Author), Content: m.Content})
			}
		}
	}
	if latest, rerr := l.store.LatestReflection(ctx, conversationID); rerr == nil {
		prompt.ReflectionSummary = latest.Summary
	}

	reply := l.llm.GenerateReply(ctx, prompt)
	if !reply.OK() {
		if reply.Err != nil {
			log.Error("reply generation degraded", "error", reply.Err)
		} else {
			log.Warn("reply capability unavailable")
		}
		return turnResult{text: apologyText, personMessageID: person.ID}
	}

	return turnResult{text: reply.Text, personMessageID: person.ID, ok: true}
}

func (l *Loop) append(ctx context.Context, conversationID int64, author ledger.Author, content string) (*ledger.Message, error) {
	msg, err := l.store.AppendMessage(ctx, conversationID, author, content)
	if err != nil {
		return nil, err
	}

	if perr := l.publisher.PublishMessage(ctx, eventstream.NewMessagePersisted(msg)); perr != nil {
		l.logger.Warn("message event publish failed",
			"conversation_id", conversationID, "error", perr)
	}

	return msg, nil
}

func (l *Loop) closed(op string, err error, log *slog.Logger) error {
	if errors.Is(err, ErrClosed) || errors.Is(err, context.Canceled) {
		log.Info("session disconnected")
		return nil
	}
	log.Warn("session transport error", "op", op, "error", err)
	return err
}
