//go:build windows

package hotkey

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                 = windows.NewLazySystemDLL("user32.dll")
	procRegisterHotKey     = user32.NewProc("RegisterHotKey")
	procUnregisterHotKey   = user32.NewProc("UnregisterHotKey")
	procGetMessageW        = user32.NewProc("GetMessageW")
	procPostThreadMessageW = user32.NewProc("PostThreadMessageW")
)

const (
	wmHotkey = 0x0312
	wmQuit   = 0x0012

	// MOD_NOREPEAT: holding the chord down fires once, not continuously.
	modNoRepeat = 0x4000
)

// point mirrors the Win32 POINT struct.
type point struct {
	X, Y int32
}

// message mirrors the Win32 MSG struct.
type message struct {
	HWND    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      point
}

// Listener registers global hotkeys via RegisterHotKey and pumps the Win32
// message loop. RegisterHotKey ties hotkeys to the registering thread, so
// everything runs on one locked OS thread.
type Listener struct {
	events    chan Event
	bindings  []Binding
	threadID  uint32
	closeOnce sync.Once
	done      chan struct{}
}

var _ Source = (*Listener)(nil)

// NewSource registers the given bindings and starts the message loop.
func NewSource(bindings []Binding) (Source, error) {
	l := &Listener{
		events:   make(chan Event, 4),
		bindings: bindings,
		done:     make(chan struct{}),
	}

	ready := make(chan error, 1)
	go l.run(ready)
	if err := <-ready; err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Listener) run(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(l.done)
	defer close(l.events)

	l.threadID = windows.GetCurrentThreadId()

	registered := 0
	for i, b := range l.bindings {
		vk, err := b.Chord.VirtualKey()
		if err != nil {
			ready <- err
			l.unregister(registered)
			return
		}
		id := uintptr(i + 1)
		ok, _, callErr := procRegisterHotKey.Call(
			0, id, uintptr(b.Chord.Modifiers()|modNoRepeat), uintptr(vk),
		)
		if ok == 0 {
			ready <- fmt.Errorf("hotkey: register %s: %w", b.Chord, callErr)
			l.unregister(registered)
			return
		}
		registered++
		slog.Info("global hotkey registered", "chord", b.Chord.String(), "action", b.Action.String())
	}
	ready <- nil
	defer l.unregister(registered)

	var m message
	for {
		ret, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		// 0 means WM_QUIT, ^uintptr(0) means error; stop on both.
		if ret == 0 || ret == ^uintptr(0) {
			return
		}
		if m.Message != wmHotkey {
			continue
		}
		idx := int(m.WParam) - 1
		if idx < 0 || idx >= len(l.bindings) {
			continue
		}
		b := l.bindings[idx]
		select {
		case l.events <- Event{Action: b.Action, Chord: b.Chord}:
		default:
			slog.Warn("hotkey event dropped, consumer too slow", "chord", b.Chord.String())
		}
	}
}

// unregister removes the first n registered hotkeys. Must run on the
// registering thread.
func (l *Listener) unregister(n int) {
	for i := 0; i < n; i++ {
		procUnregisterHotKey.Call(0, uintptr(i+1))
	}
}

// Events returns the hotkey event channel.
func (l *Listener) Events() <-chan Event {
	return l.events
}

// Close posts WM_QUIT to the message loop and waits for it to exit.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		procPostThreadMessageW.Call(uintptr(l.threadID), wmQuit, 0, 0)
		<-l.done
	})
	return nil
}
