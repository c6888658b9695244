package hotkey

import "sync"

// Stub is a channel-driven Source for platforms without global hotkey
// support and for tests. Events are fed in manually via [Stub.Trigger].
type Stub struct {
	events    chan Event
	closeOnce sync.Once
}

var _ Source = (*Stub)(nil)

// NewStub returns an empty Stub source.
func NewStub() *Stub {
	return &Stub{events: make(chan Event, 4)}
}

// Trigger delivers an event to the consumer. It drops the event if the
// source is already closed.
func (s *Stub) Trigger(e Event) {
	defer func() {
		// Sending on a closed channel panics; a trigger racing Close is
		// not an error for a stub.
		_ = recover()
	}()
	s.events <- e
}

// Events returns the event channel.
func (s *Stub) Events() <-chan Event {
	return s.events
}

// Close closes the event channel.
func (s *Stub) Close() error {
	s.closeOnce.Do(func() { close(s.events) })
	return nil
}
