// Package eventstream defines transport-neutral event payloads emitted by
// the memory pipeline, and the Publisher interface backends implement.
package eventstream

import (
	"time"

	"github.com/papercomputeco/ene/pkg/ledger"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeMessagePersisted is emitted after a turn lands in the ledger.
	EventTypeMessagePersisted = "ene.message.persisted"

	// EventTypeReflectionCreated is emitted after a consolidation commits.
	EventTypeReflectionCreated = "ene.reflection.created"
)

// MessagePersistedEvent announces one persisted conversation turn.
type MessagePersistedEvent struct {
	SchemaVersion  int            `json:"schema_version"`
	EventType      string         `json:"event_type"`
	EventID        string         `json:"event_id"`
	EmittedAt      time.Time      `json:"emitted_at"`
	ConversationID int64          `json:"conversation_id"`
	Message        ledger.Message `json:"message"`
}

// ReflectionCreatedEvent announces one committed consolidation: the new
// reflection, the window of message ids it folded in, and the cursor value
// the conversation advanced to.
type ReflectionCreatedEvent struct {
	SchemaVersion  int               `json:"schema_version"`
	EventType      string            `json:"event_type"`
	EventID        string            `json:"event_id"`
	EmittedAt      time.Time         `json:"emitted_at"`
	ConversationID int64             `json:"conversation_id"`
	Reflection     ledger.Reflection `json:"reflection"`
	MessageIDs     []int64           `json:"message_ids"`
	CursorID       int64             `json:"cursor_id"`
	TagIDs         []int64           `json:"tag_ids,omitempty"`
}
