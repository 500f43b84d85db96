package consolidate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/papercomputeco/ene/pkg/eventstream"
	"github.com/papercomputeco/ene/pkg/ledger"
	"github.com/papercomputeco/ene/pkg/llm"
)

var (
	defaultNumWorkers  uint = 2
	defaultQueueSize   uint = 64
	defaultUnitTimeout      = 2 * time.Minute
)

// Job is one consolidation hand-off: the conversation and the highest
// message id observed when the trigger fired.
type Job struct {
	ConversationID   int64
	CurrentMessageID int64
}

// Config holds the worker's dependencies and tuning.
type Config struct {
	Store      ledger.Store
	LLM        llm.Client
	Classifier *Classifier
	Publisher  eventstream.Publisher

	// Threshold overrides the trigger threshold (defaults to 10).
	Threshold int64

	// NumWorkers is the number of background goroutines (defaults to 2).
	NumWorkers uint

	// QueueSize is the capacity of the job channel (defaults to 64).
	QueueSize uint

	// UnitTimeout bounds one consolidation unit, summarization and
	// classification calls included (defaults to 2 minutes).
	UnitTimeout time.Duration

	Logger *slog.Logger
}

// Worker runs consolidation units off the session loop's critical path.
//
// A per-conversation single-flight set guarantees at most one unit per
// conversation is queued or running at a time; a second trigger while one
// is in flight is a no-op. The store's stale-cursor precondition backstops
// this for writers outside this process.
type Worker struct {
	config  *Config
	trigger Trigger
	queue   chan Job
	wg      sync.WaitGroup
	logger  *slog.Logger

	mu       sync.Mutex
	inFlight map[int64]struct{}
}

// NewWorker creates the worker and starts its goroutines.
func NewWorker(c *Config) *Worker {
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.UnitTimeout == 0 {
		c.UnitTimeout = defaultUnitTimeout
	}

	w := &Worker{
		config:   c,
		trigger:  NewTrigger(c.Threshold),
		queue:    make(chan Job, c.QueueSize),
		logger:   c.Logger,
		inFlight: make(map[int64]struct{}),
	}

	w.wg.Add(int(c.NumWorkers))
	for i := uint(0); i < c.NumWorkers; i++ {
		go w.worker(i)
	}

	return w
}

// Maybe re-reads the conversation's cursor, evaluates the trigger, and
// hands off a consolidation job when it fires. It never blocks: a full
// queue or an in-flight unit for the same conversation drops the hand-off,
// and the next natural trigger re-attempts with a superset of the same
// messages. Returns true if a job was enqueued.
func (w *Worker) Maybe(ctx context.Context, conversationID, currentMessageID int64) bool {
	cursor, err := w.config.Store.LastReflectedID(ctx, conversationID)
	if err != nil {
		w.logger.Error("cursor read failed, skipping consolidation check",
			"conversation_id", conversationID, "error", err)
		return false
	}

	if !w.trigger.Fires(currentMessageID, cursor) {
		return false
	}

	if !w.acquire(conversationID) {
		w.logger.Debug("consolidation already in flight",
			"conversation_id", conversationID)
		return false
	}

	select {
	case w.queue <- Job{ConversationID: conversationID, CurrentMessageID: currentMessageID}:
		w.logger.Debug("consolidation queued",
			"conversation_id", conversationID,
			"current_message_id", currentMessageID,
			"cursor", cursor,
		)
		return true
	default:
		w.release(conversationID)
		w.logger.Warn("consolidation queue full, job dropped",
			"conversation_id", conversationID)
		return false
	}
}

// Close signals workers to stop and waits for in-flight units to drain.
// Call during graceful shutdown after the session transport has stopped.
func (w *Worker) Close() {
	close(w.queue)
	w.wg.Wait()
}

func (w *Worker) acquire(conversationID int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, busy := w.inFlight[conversationID]; busy {
		return false
	}
	w.inFlight[conversationID] = struct{}{}
	return true
}

func (w *Worker) release(conversationID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.inFlight, conversationID)
}

func (w *Worker) worker(id uint) {
	defer w.wg.Done()
	w.logger.Debug("consolidation worker started", "worker_id", id)

	for job := range w.queue {
		w.process(job)
	}

	w.logger.Debug("consolidation worker stopped", "worker_id", id)
}

// process runs one consolidation unit. Failures are logged and swallowed;
// state is left exactly as before (the store commits all-or-nothing) and
// the next trigger re-attempts.
func (w *Worker) process(job Job) {
	defer w.release(job.ConversationID)

	ctx, cancel := context.WithTimeout(context.Background(), w.config.UnitTimeout)
	defer cancel()

	if err := w.consolidate(ctx, job); err != nil {
		var stale ledger.ErrStaleCursor
		if errors.As(err, &stale) {
			w.logger.Info("consolidation superseded",
				"conversation_id", job.ConversationID,
				"current_message_id", job.CurrentMessageID,
				"cursor", stale.CursorID,
			)
			return
		}
		w.logger.Error("consolidation failed",
			"conversation_id", job.ConversationID,
			"current_message_id", job.CurrentMessageID,
			"error", err,
		)
	}
}

func (w *Worker) consolidate(ctx context.Context, job Job) error {
	store := w.config.Store

	cursor, err := store.LastReflectedID(ctx, job.ConversationID)
	if err != nil {
		return err
	}

	pending, err := store.MessagesAfter(ctx, job.ConversationID, cursor)
	if err != nil {
		return err
	}

	// The unit covers exactly the window the trigger observed; turns that
	// arrived since then belong to the next one.
	messageIDs := make([]int64, 0, len(pending))
	turns := make([]llm.Turn, 0, len(pending))
	for _, m := range pending {
		if m.ID > job.CurrentMessageID {
			break
		}
		messageIDs = append(messageIDs, m.ID)
		turns = append(turns, llm.Turn{Author: string(m.Author), Content: m.Content})
	}
	if len(messageIDs) == 0 {
		w.logger.Debug("nothing to consolidate",
			"conversation_id", job.ConversationID)
		return nil
	}

	previousSummary := ""
	latest, err := store.LatestReflection(ctx, job.ConversationID)
	var notFound ledger.ErrNotFound
	switch {
	case err == nil:
		previousSummary = latest.Summary
	case errors.As(err, &notFound):
		// first consolidation for this conversation
	default:
		return err
	}

	summary := w.config.LLM.GenerateSummary(ctx, previousSummary, turns)
	if !summary.OK() {
		// No placeholder reflections: without a real summary the unit
		// aborts and the next trigger retries the whole window.
		if summary.Err != nil {
			return summary.Err
		}
		return errors.New("summarization capability unavailable")
	}

	selectedIDs, newLabels := w.config.Classifier.Classify(ctx, summary.Text)

	reflection, err := store.Consolidate(ctx, ledger.ConsolidationUnit{
		ConversationID:   job.ConversationID,
		CurrentMessageID: job.CurrentMessageID,
		MessageIDs:       messageIDs,
		Summary:          summary.Text,
		SelectedTagIDs:   selectedIDs,
		NewTagLabels:     newLabels,
	})
	if err != nil {
		return err
	}

	w.logger.Info("reflection created",
		"conversation_id", job.ConversationID,
		"reflection_id", reflection.ID,
		"message_count", len(messageIDs),
		"cursor", job.CurrentMessageID,
	)

	event := eventstream.NewReflectionCreated(
		job.ConversationID, reflection, messageIDs, selectedIDs, job.CurrentMessageID)
	if err := w.config.Publisher.PublishReflection(ctx, event); err != nil {
		w.logger.Warn("reflection event publish failed",
			"conversation_id", job.ConversationID, "error", err)
	}

	return nil
}
