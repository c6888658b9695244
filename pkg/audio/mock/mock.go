// Package mock provides test doubles for the audio package interfaces.
//
// Source records lifecycle calls and lets tests drive frame delivery and
// stream errors by hand:
//
//	src := &mock.Source{}
//	_ = src.Start(onFrame)
//	src.Emit(frame)          // invoke the registered frame callback
//	src.FailStream(err)      // invoke the registered stream-error callback
package mock

import (
	"sync"

	"github.com/voxinput/voxinput/pkg/audio"
)

// Source is a mock implementation of audio.Source.
type Source struct {
	mu sync.Mutex

	// StartErrs is consumed one entry per Start call; a nil entry means that
	// Start succeeds. When the slice is exhausted Start succeeds.
	StartErrs []error

	// AvailableResult is returned by Available. Defaults to true via the
	// zero-value field Unavailable below.
	Unavailable bool

	// --- Call records ---

	// StartCalls is the number of Start invocations.
	StartCalls int

	// StopCalls is the number of Stop invocations.
	StopCalls int

	// AvailableCalls is the number of Available invocations.
	AvailableCalls int

	started bool
	onFrame func(audio.Frame)
	onError func(error)
}

// Compile-time assertion that Source implements audio.Source.
var _ audio.Source = (*Source)(nil)

// Start records the call, consumes the next StartErrs entry, and on success
// registers onFrame for later Emit calls.
func (s *Source) Start(onFrame func(audio.Frame)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StartCalls++
	if len(s.StartErrs) > 0 {
		err := s.StartErrs[0]
		s.StartErrs = s.StartErrs[1:]
		if err != nil {
			return err
		}
	}
	s.started = true
	s.onFrame = onFrame
	return nil
}

// Stop records the call and clears the running state.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StopCalls++
	s.started = false
	return nil
}

// Available records the call and returns the configured result.
func (s *Source) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AvailableCalls++
	return !s.Unavailable
}

// OnStreamError registers the stream-error callback for FailStream.
func (s *Source) OnStreamError(cb func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = cb
}

// Starts returns the number of Start calls so far. Safe to call while a
// reconnect loop is driving the source from another goroutine.
func (s *Source) Starts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.StartCalls
}

// Started reports whether the source is currently in the started state.
func (s *Source) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Emit invokes the registered frame callback synchronously. No-op when the
// source is stopped or no callback is registered.
func (s *Source) Emit(f audio.Frame) {
	s.mu.Lock()
	cb := s.onFrame
	started := s.started
	s.mu.Unlock()
	if started && cb != nil {
		cb(f)
	}
}

// FailStream marks the source stopped and invokes the registered
// stream-error callback synchronously, mimicking a degraded driver stream.
func (s *Source) FailStream(err error) {
	s.mu.Lock()
	s.started = false
	cb := s.onError
	s.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}
