// Package audio defines the capture-side interfaces and types for the
// voxinput dictation pipeline.
//
// The central abstraction is [Source] — a microphone device that delivers
// fixed-size PCM frames to a callback. Implementations wrap a concrete audio
// backend (e.g. audio/portaudio); the interface is intentionally narrow so the
// pipeline controller stays decoupled from driver details.
//
// This package lives under pkg/ because external code (alternative capture
// backends) is expected to implement [Source].
package audio

import (
	"errors"
	"time"
)

// ErrDeviceUnavailable is returned by [Source.Start] when the microphone is
// missing or busy at open time. The pipeline surfaces this to the user and
// stays idle; it is not a transient condition worth retrying automatically.
var ErrDeviceUnavailable = errors.New("audio: input device unavailable")

// ErrStreamDegraded is reported through the stream-error callback when the
// driver has produced too many consecutive read errors and frame delivery has
// been halted. The caller is expected to attempt [Reconnect].
var ErrStreamDegraded = errors.New("audio: input stream degraded")

// Frame is a single fixed-size chunk of PCM samples flowing through the
// pipeline. Frames are mono 16-bit little-endian PCM; the sample rate is
// fixed by the pipeline configuration. A Frame is never mutated after
// creation and is dropped once consumed.
type Frame struct {
	// Data is the raw PCM payload.
	Data []byte

	// Seq is a monotonic sequence number assigned by the capture source.
	Seq uint64

	// SampleRate in Hz (16000 for the recognition pipeline).
	SampleRate int

	// Channels is the channel count. Always 1 in the dictation pipeline.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the playback duration of the frame's PCM payload.
// Returns 0 for frames with an invalid format.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	bytesPerSec := f.SampleRate * f.Channels * 2
	return time.Duration(len(f.Data)) * time.Second / time.Duration(bytesPerSec)
}

// Source is a microphone capture device. A Source delivers frames to the
// callback registered via Start on an internal goroutine (or a driver
// thread); the callback must not block, or driver buffers may overrun.
//
// Implementations must be safe for concurrent use: Stop may be called from a
// different goroutine than the one that called Start, and must take effect
// within one frame period.
type Source interface {
	// Start opens the input device and begins frame delivery. Returns
	// [ErrDeviceUnavailable] (possibly wrapped) if the device cannot be
	// opened. Calling Start on an already started source is an error.
	Start(onFrame func(Frame)) error

	// Stop halts delivery and releases the device. It is idempotent and safe
	// to call from any state, including mid-callback from another goroutine.
	Stop() error

	// Available reports whether the input device can currently be opened.
	// It is a cheap, non-destructive probe (open then immediately close)
	// intended for reconnect logic; it must not disturb a running stream.
	Available() bool

	// OnStreamError registers cb to be invoked when the source halts frame
	// delivery after too many consecutive driver errors. Only one callback
	// may be registered; subsequent calls replace it. The callback runs on
	// the capture goroutine and must not block.
	OnStreamError(cb func(error))
}
