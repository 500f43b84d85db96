package ledger

import "context"

// Store is the persistence interface for the memory consolidation pipeline.
// Implementations must provide transactional semantics for Consolidate: the
// reflection insert, message backfill, tag linking, and cursor advance
// either all commit or none do.
type Store interface {
	// AppendMessage appends one turn to a conversation and returns the
	// stored message with its assigned id. Content is stored as given;
	// sanitizing malformed text is the caller's concern.
	AppendMessage(ctx context.Context, conversationID int64, author Author, content string) (*Message, error)

	// MessagesAfter returns the conversation's messages with id greater
	// than sinceID, ascending by id. sinceID 0 reads from the beginning.
	MessagesAfter(ctx context.Context, conversationID, sinceID int64) ([]*Message, error)

	// LatestReflection returns the most recently created reflection for a
	// conversation, or ErrNotFound when none exists yet.
	LatestReflection(ctx context.Context, conversationID int64) (*Reflection, error)

	// ReflectionChain returns a conversation's reflections newest first,
	// following parent links from the latest one.
	ReflectionChain(ctx context.Context, conversationID int64) ([]*Reflection, error)

	// LastReflectedID returns the consolidation cursor for a conversation,
	// 0 when no consolidation has happened yet.
	LastReflectedID(ctx context.Context, conversationID int64) (int64, error)

	// Tags returns all tags ordered by id.
	Tags(ctx context.Context) ([]*Tag, error)

	// ReflectionTags returns the tags linked to a reflection.
	ReflectionTags(ctx context.Context, reflectionID int64) ([]*Tag, error)

	// Consolidate commits one consolidation unit in a single transaction:
	// re-reads the conversation's latest reflection for the parent link,
	// inserts the new reflection, backfills reflection_id on exactly
	// unit.MessageIDs, resolves and links tags, and advances the cursor to
	// unit.CurrentMessageID. Returns ErrStaleCursor without side effects
	// if the cursor already reached unit.CurrentMessageID, meaning another
	// unit won the race.
	Consolidate(ctx context.Context, unit ConsolidationUnit) (*Reflection, error)

	// Close releases the underlying database resources.
	Close() error
}
