package eventstream

import "context"

// Publisher publishes pipeline events to an event stream backend.
// Publishing is best-effort everywhere it is called: failures are logged by
// the caller and never roll back the ledger write they describe.
type Publisher interface {
	PublishMessage(ctx context.Context, event *MessagePersistedEvent) error
	PublishReflection(ctx context.Context, event *ReflectionCreatedEvent) error
	Close() error
}
