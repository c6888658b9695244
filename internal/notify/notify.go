// Package notify shows desktop notifications for dictation state changes.
// Notifications are an optional feature: capability is decided once at
// startup and callers always get a working Notifier, possibly a no-op.
package notify

import (
	"log/slog"

	"github.com/gen2brain/beeep"
)

// Notifier shows a short desktop notification. Implementations must be safe
// for concurrent use and must never block the caller for long.
type Notifier interface {
	Notify(title, body string) error
}

// Desktop shows notifications through the OS notification system.
type Desktop struct {
	appName string
}

var _ Notifier = (*Desktop)(nil)

// NewDesktop returns a Desktop notifier labelled with appName. beeep carries
// no app identity of its own, so the label is folded into each title.
func NewDesktop(appName string) *Desktop {
	return &Desktop{appName: appName}
}

// Notify shows the notification. Failures are logged and returned; callers
// normally ignore the error since notifications are best-effort.
func (d *Desktop) Notify(title, body string) error {
	title = d.title(title)
	if err := beeep.Notify(title, body, ""); err != nil {
		slog.Debug("desktop notification failed", "title", title, "error", err)
		return err
	}
	return nil
}

// title prefixes the notification title with the app name, unless the caller
// already used the app name as the whole title.
func (d *Desktop) title(s string) string {
	if d.appName == "" || s == d.appName {
		return s
	}
	return d.appName + ": " + s
}

// Noop is a Notifier that discards everything. Used when notifications are
// disabled in config.
type Noop struct{}

var _ Notifier = Noop{}

func (Noop) Notify(string, string) error { return nil }

// New returns a Desktop notifier when enabled, otherwise a Noop.
func New(appName string, enabled bool) Notifier {
	if !enabled {
		return Noop{}
	}
	return NewDesktop(appName)
}
