package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/ene/pkg/ledger"
)

// NewMessagePersisted builds a v1 message-persisted event for a stored turn.
func NewMessagePersisted(msg *ledger.Message) *MessagePersistedEvent {
	return &MessagePersistedEvent{
		SchemaVersion:  SchemaVersionV1,
		EventType:      EventTypeMessagePersisted,
		EventID:        "evt_" + uuid.NewString(),
		EmittedAt:      time.Now().UTC(),
		ConversationID: msg.ConversationID,
		Message:        *msg,
	}
}

// NewReflectionCreated builds a v1 reflection-created event for a committed
// consolidation.
func NewReflectionCreated(conversationID int64, reflection *ledger.Reflection, messageIDs, tagIDs []int64, cursorID int64) *ReflectionCreatedEvent {
	return &ReflectionCreatedEvent{
		SchemaVersion:  SchemaVersionV1,
		EventType:      EventTypeReflectionCreated,
		EventID:        "evt_" + uuid.NewString(),
		EmittedAt:      time.Now().UTC(),
		ConversationID: conversationID,
		Reflection:     *reflection,
		MessageIDs:     messageIDs,
		CursorID:       cursorID,
		TagIDs:         tagIDs,
	}
}
