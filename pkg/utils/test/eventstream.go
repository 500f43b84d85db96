package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/ene/pkg/eventstream"
)

// MockPublisher is a test event publisher that records published events.
type MockPublisher struct {
	// FailPublish causes both publish methods to return an error.
	FailPublish bool

	mu          sync.Mutex
	messages    []*eventstream.MessagePersistedEvent
	reflections []*eventstream.ReflectionCreatedEvent
}

// NewMockPublisher creates an empty recording publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishMessage(_ context.Context, event *eventstream.MessagePersistedEvent) error {
	if m.FailPublish {
		return errors.New("mock publish failure")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, event)
	return nil
}

func (m *MockPublisher) PublishReflection(_ context.Context, event *eventstream.ReflectionCreatedEvent) error {
	if m.FailPublish {
		return errors.New("mock publish failure")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reflections = append(m.reflections, event)
	return nil
}

func (m *MockPublisher) Close() error { return nil }

// Messages returns a copy of all recorded message events.
func (m *MockPublisher) Messages() []*eventstream.MessagePersistedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*eventstream.MessagePersistedEvent, len(m.messages))
	copy(out, m.messages)
	return out
}

// Reflections returns a copy of all recorded reflection events.
func (m *MockPublisher) Reflections() []*eventstream.ReflectionCreatedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*eventstream.ReflectionCreatedEvent, len(m.reflections))
	copy(out, m.reflections)
	return out
}
