package inject

import (
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	"github.com/micmonay/keybd_event"
)

const (
	// settleDelay gives the window manager time to observe the clipboard
	// change before the paste chord is sent.
	settleDelay = 80 * time.Millisecond

	// pasteDelay is how long the focused application gets to consume the
	// paste before the previous clipboard contents are restored.
	pasteDelay = 120 * time.Millisecond
)

// Paster implements [Injector] by placing text on the system clipboard,
// sending the platform paste chord (Ctrl+V), and restoring the previous
// clipboard contents afterwards.
//
// The restore is best-effort: if the original contents cannot be read (for
// example a non-text clipboard format), the recognised text is simply left
// on the clipboard so the user can re-paste it manually.
type Paster struct {
	settle time.Duration
	paste  time.Duration
}

// Compile-time assertion that Paster implements Injector.
var _ Injector = (*Paster)(nil)

// NewPaster returns a Paster with the default timing.
func NewPaster() *Paster {
	return &Paster{settle: settleDelay, paste: pasteDelay}
}

// Inject pastes text via the clipboard.
func (p *Paster) Inject(text string) error {
	if text == "" {
		return nil
	}

	orig, origErr := clipboard.ReadAll()

	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("inject: write clipboard: %w", err)
	}
	time.Sleep(p.settle)

	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return fmt.Errorf("inject: key bonding: %w", err)
	}
	kb.HasCTRL(true)
	kb.SetKeys(keybd_event.VK_V)
	if err := kb.Launching(); err != nil {
		return fmt.Errorf("inject: send paste chord: %w", err)
	}
	time.Sleep(p.paste)

	// Restore only when the original contents were readable text.
	if origErr == nil {
		_ = clipboard.WriteAll(orig)
	}
	return nil
}
