// Package ledger defines the conversational memory model: the append-only
// message ledger, the chained reflections that summarize it, the
// per-conversation consolidation cursor, and the tags attached to both.
package ledger

import "time"

// Author identifies who produced a message.
type Author string

const (
	// AuthorPerson marks a turn typed by the connected person.
	AuthorPerson Author = "person"

	// AuthorAssistant marks a turn produced by the response pipeline.
	AuthorAssistant Author = "assistant"
)

// MaxTagsPerItem caps how many tags may be linked to a single message or
// reflection. Enforced by the classifier's output contract, not by the
// database.
const MaxTagsPerItem = 5

// Message is a single conversation turn. Immutable once created except for
// ReflectionID, which transitions exactly once from nil to the id of the
// reflection that folded it in.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	Author         Author    `json:"author"`
	Content        string    `json:"content"`
	ReflectionID   *int64    `json:"reflection_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Reflection is a rolling summary of a bounded window of prior messages.
// ParentID points at the reflection that was latest when this one was
// created, giving the chain a total order independent of timestamps.
type Reflection struct {
	ID        int64     `json:"id"`
	ParentID  *int64    `json:"parent_id,omitempty"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

// Tag is a short classification label, unique by label.
type Tag struct {
	ID        int64     `json:"id"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
}

// ConsolidationUnit carries everything a store needs to commit one
// consolidation atomically. Summary and tag selection are produced outside
// the transaction; all bookkeeping happens inside it.
type ConsolidationUnit struct {
	ConversationID int64

	// CurrentMessageID is the highest message id the triggering evaluation
	// observed. The cursor advances to exactly this value on success.
	CurrentMessageID int64

	// MessageIDs are the unconsolidated messages the summary covers.
	MessageIDs []int64

	// Summary is the freshly generated reflection text.
	Summary string

	// SelectedTagIDs are existing tags chosen by the classifier.
	SelectedTagIDs []int64

	// NewTagLabels are labels the classifier minted; they are resolved to
	// tag rows (get-or-create) inside the consolidation transaction.
	NewTagLabels []string
}
