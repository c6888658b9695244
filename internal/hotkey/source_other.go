//go:build !windows

package hotkey

import "log/slog"

// NewSource returns a Stub on platforms without global hotkey support. The
// chords are validated so config errors surface everywhere, but no events
// will ever fire.
func NewSource(bindings []Binding) (Source, error) {
	for _, b := range bindings {
		if _, err := b.Chord.VirtualKey(); err != nil {
			return nil, err
		}
	}
	slog.Warn("global hotkeys are only supported on Windows; hotkeys disabled")
	return NewStub(), nil
}
