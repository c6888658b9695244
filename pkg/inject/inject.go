// Package inject delivers recognised text into the currently focused
// application window by emulating user input.
//
// Two real strategies exist, mirroring how reliable text delivery works on
// Windows: pasting via the clipboard (fast, handles any Unicode, but briefly
// occupies the clipboard) and per-character synthetic keystrokes through
// SendInput with KEYEVENTF_UNICODE (slower, but leaves the clipboard
// untouched). The [Fallback] combinator chains them so a clipboard failure
// degrades to keystroke injection instead of dropping the utterance.
//
// Implementations are selected per platform by [New]; on non-Windows
// platforms only [Noop] is available.
package inject

import (
	"fmt"
	"log/slog"
)

// Method selects an injection strategy.
type Method string

const (
	// MethodClipboard pastes text via the system clipboard and Ctrl+V.
	MethodClipboard Method = "clipboard"

	// MethodSendInput types text character by character using synthetic
	// Unicode keystrokes. Windows only.
	MethodSendInput Method = "sendinput"

	// MethodNoop logs text instead of delivering it. Useful for dry runs
	// and headless testing.
	MethodNoop Method = "noop"
)

// Injector delivers text into the focused window.
//
// Implementations must be safe to call from a single goroutine at a time;
// the pipeline serialises all Inject calls.
type Injector interface {
	// Inject delivers text. A non-nil error means the text was NOT
	// delivered and the caller may retry with another strategy.
	Inject(text string) error
}

// Noop is an Injector that logs instead of typing.
type Noop struct{}

// Compile-time assertion that Noop implements Injector.
var _ Injector = (*Noop)(nil)

// Inject logs the text at info level and succeeds.
func (Noop) Inject(text string) error {
	slog.Info("dry-run text delivery", "text", text)
	return nil
}

// Fallback tries Primary and, when it fails, retries with Secondary. The
// primary's error is logged, not returned, so the utterance survives a
// transient clipboard problem.
type Fallback struct {
	Primary   Injector
	Secondary Injector
}

// Compile-time assertion that Fallback implements Injector.
var _ Injector = (*Fallback)(nil)

// Inject delivers text via Primary, falling back to Secondary on error.
func (f *Fallback) Inject(text string) error {
	err := f.Primary.Inject(text)
	if err == nil {
		return nil
	}
	slog.Warn("primary injection failed, falling back", "error", err)
	if f.Secondary == nil {
		return err
	}
	if err2 := f.Secondary.Inject(text); err2 != nil {
		return fmt.Errorf("inject: both strategies failed: %w (primary: %v)", err2, err)
	}
	return nil
}
