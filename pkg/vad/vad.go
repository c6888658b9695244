// Package vad implements voice-activity gating for the dictation pipeline.
//
// A [Classifier] is an opaque binary speech/non-speech detector operating on
// short fixed-duration sub-frames (10, 20, or 30 ms). The [Gate] wraps a
// classifier with smoothing and hysteresis so that capture-sized frames
// (hundreds of milliseconds) produce a stable triggered/idle decision that
// does not flap at speech boundaries.
//
// VAD is synchronous by design: [Gate.Classify] returns immediately, making
// it suitable for the low-latency pipeline stage that gates recogniser input.
// A Gate is owned by a single goroutine (the recognition worker) and is not
// safe for concurrent use.
package vad

// Classifier is a binary speech detector for a single sub-frame of 16-bit
// mono PCM. Implementations wrap a concrete detector (energy threshold,
// webrtcvad-style model, …) and must be cheap enough to call per sub-frame in
// the real-time pipeline loop.
//
// Implementations must be safe for concurrent use across independent gates.
type Classifier interface {
	// IsSpeech reports whether the sub-frame contains speech. The sub-frame
	// is raw little-endian 16-bit mono PCM of the duration configured on the
	// owning [Gate].
	IsSpeech(subFrame []byte) bool
}
