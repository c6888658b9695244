// Package hotkey turns global keyboard chords into application events. The
// controller consumes [Event]s from a [Source] without caring where they come
// from: on Windows a RegisterHotKey message loop produces them, elsewhere (and
// in tests) a channel-driven [Stub] does.
package hotkey

// Action is what a hotkey press asks the application to do.
type Action int

const (
	// ActionToggle flips the pipeline between idle and listening.
	ActionToggle Action = iota
	// ActionPause suppresses text injection while keeping the session alive,
	// so dictation can resume without re-opening the microphone.
	ActionPause
	// ActionQuit asks the application to shut down.
	ActionQuit
)

func (a Action) String() string {
	switch a {
	case ActionToggle:
		return "toggle"
	case ActionPause:
		return "pause"
	case ActionQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// Event is one hotkey activation.
type Event struct {
	Action Action
	Chord  Chord
}

// Binding associates a parsed chord with the action it triggers.
type Binding struct {
	Chord  Chord
	Action Action
}

// Source delivers hotkey events until closed.
type Source interface {
	// Events returns the channel hotkey activations arrive on. The channel
	// is closed when the source shuts down.
	Events() <-chan Event

	// Close unregisters the hotkeys and stops event delivery.
	Close() error
}
