//go:build windows

package inject

import (
	"fmt"
	"time"
	"unicode/utf16"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	inputKeyboard      = 1
	keyeventfKeyup     = 0x0002
	keyeventfUnicode   = 0x0004
	defaultCharDelayMs = 10
)

var (
	user32        = windows.NewLazySystemDLL("user32.dll")
	procSendInput = user32.NewProc("SendInput")
)

// keybdInput mirrors the Win32 KEYBDINPUT structure.
type keybdInput struct {
	Vk        uint16
	Scan      uint16
	Flags     uint32
	Time      uint32
	ExtraInfo uintptr
}

// keyInput mirrors the Win32 INPUT structure for keyboard events. The
// trailing padding brings the union up to the size of MOUSEINPUT, which
// dictates the size of the full structure.
type keyInput struct {
	Type uint32
	_    uint32
	Ki   keybdInput
	_    [8]byte
}

// Typer implements [Injector] using SendInput with KEYEVENTF_UNICODE. Each
// UTF-16 code unit is delivered as a key-down/key-up pair, so any Unicode
// text can be typed regardless of the active keyboard layout.
type Typer struct {
	// CharDelay is the pause between characters. Some applications drop
	// synthetic keystrokes that arrive too quickly. Defaults to 10 ms.
	CharDelay time.Duration
}

// Compile-time assertion that Typer implements Injector.
var _ Injector = (*Typer)(nil)

// NewTyper returns a Typer with the default inter-character delay.
func NewTyper() *Typer {
	return &Typer{CharDelay: defaultCharDelayMs * time.Millisecond}
}

// Inject types text into the focused window one UTF-16 code unit at a time.
func (t *Typer) Inject(text string) error {
	if text == "" {
		return nil
	}
	for _, unit := range utf16.Encode([]rune(text)) {
		if err := sendUnicodeUnit(unit); err != nil {
			return err
		}
		if t.CharDelay > 0 {
			time.Sleep(t.CharDelay)
		}
	}
	return nil
}

// sendUnicodeUnit delivers one UTF-16 code unit as a down/up pair.
func sendUnicodeUnit(unit uint16) error {
	inputs := [2]keyInput{
		{Type: inputKeyboard, Ki: keybdInput{Scan: unit, Flags: keyeventfUnicode}},
		{Type: inputKeyboard, Ki: keybdInput{Scan: unit, Flags: keyeventfUnicode | keyeventfKeyup}},
	}

	n, _, callErr := procSendInput.Call(
		uintptr(len(inputs)),
		uintptr(unsafe.Pointer(&inputs[0])),
		unsafe.Sizeof(inputs[0]),
	)
	if n != uintptr(len(inputs)) {
		return fmt.Errorf("inject: SendInput delivered %d of %d events: %w", n, len(inputs), callErr)
	}
	return nil
}
