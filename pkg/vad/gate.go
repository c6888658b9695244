package vad

import (
	"fmt"
	"log/slog"
)

// Default gate parameters. The asymmetric trigger/release ratios implement
// hysteresis: triggering requires strong evidence of speech while releasing
// requires strong evidence of silence, so the gate does not flap at speech
// boundaries.
const (
	// DefaultSubFrameMs is the sub-frame duration handed to the classifier.
	DefaultSubFrameMs = 30

	// defaultSpeechFraction is the minimum fraction of speech sub-frames for
	// a whole frame to count as speech.
	defaultSpeechFraction = 0.3

	// defaultHistorySize is the number of frame-level decisions kept for
	// hysteresis.
	defaultHistorySize = 10

	// defaultTriggerRatio is the fraction of buffered speech decisions that
	// moves the gate Idle → Triggered.
	defaultTriggerRatio = 0.7

	// defaultReleaseRatio is the fraction of buffered speech decisions at or
	// below which the gate moves Triggered → Idle.
	defaultReleaseRatio = 0.1

	// minHistoryToTrigger prevents a trigger off a single buffered decision
	// right after a reset.
	minHistoryToTrigger = 2
)

// GateConfig holds the parameters for a [Gate].
type GateConfig struct {
	// SampleRate is the PCM sample rate in Hz. Must match the frames passed
	// to Classify. Required.
	SampleRate int

	// SubFrameMs is the classifier sub-frame duration. Must be 10, 20, or
	// 30 ms. Defaults to [DefaultSubFrameMs].
	SubFrameMs int

	// Classifier is the per-sub-frame speech detector. A nil Classifier
	// disables the gate: Classify then always reports speech (pass-through),
	// matching the behaviour when no detector is available.
	Classifier Classifier

	// SpeechFraction, HistorySize, TriggerRatio, and ReleaseRatio override
	// the package defaults when non-zero. See the package constants for
	// semantics.
	SpeechFraction float64
	HistorySize    int
	TriggerRatio   float64
	ReleaseRatio   float64
}

// Gate smooths per-sub-frame classifier decisions into a stable speech/idle
// state with hysteresis. Not safe for concurrent use; confine each Gate to a
// single goroutine.
type Gate struct {
	classifier     Classifier
	subFrameBytes  int
	speechFraction float64
	triggerRatio   float64
	releaseRatio   float64

	// history is a ring buffer of the last HistorySize frame-level decisions.
	history []bool
	next    int
	filled  int

	// carry holds the trailing partial sub-frame of the previous Classify
	// call, so no audio is silently dropped at frame boundaries.
	carry []byte

	triggered bool
}

// NewGate creates a Gate from cfg. Returns an error for an invalid sample
// rate or sub-frame duration.
func NewGate(cfg GateConfig) (*Gate, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("vad: invalid sample rate %d", cfg.SampleRate)
	}
	subMs := cfg.SubFrameMs
	if subMs == 0 {
		subMs = DefaultSubFrameMs
	}
	if subMs != 10 && subMs != 20 && subMs != 30 {
		return nil, fmt.Errorf("vad: sub-frame duration must be 10, 20, or 30 ms, got %d", subMs)
	}

	g := &Gate{
		classifier:     cfg.Classifier,
		subFrameBytes:  cfg.SampleRate * subMs / 1000 * 2,
		speechFraction: cfg.SpeechFraction,
		triggerRatio:   cfg.TriggerRatio,
		releaseRatio:   cfg.ReleaseRatio,
	}
	if g.speechFraction == 0 {
		g.speechFraction = defaultSpeechFraction
	}
	if g.triggerRatio == 0 {
		g.triggerRatio = defaultTriggerRatio
	}
	if g.releaseRatio == 0 {
		g.releaseRatio = defaultReleaseRatio
	}
	size := cfg.HistorySize
	if size <= 0 {
		size = defaultHistorySize
	}
	g.history = make([]bool, size)
	return g, nil
}

// Enabled reports whether a classifier is attached. A disabled gate passes
// all audio through.
func (g *Gate) Enabled() bool {
	return g.classifier != nil
}

// Triggered reports the current hysteresis state.
// A disabled gate is always triggered.
func (g *Gate) Triggered() bool {
	if g.classifier == nil {
		return true
	}
	return g.triggered
}

// Classify consumes one capture frame and returns the updated triggered
// state. The frame is split into sub-frames; the classifier votes per
// sub-frame; the smoothed frame-level decision feeds the hysteresis ring
// buffer. A trailing partial sub-frame is carried over to the next call.
//
// When the gate is disabled, Classify always returns true.
func (g *Gate) Classify(frame []byte) bool {
	if g.classifier == nil {
		return true
	}

	data := frame
	if len(g.carry) > 0 {
		data = make([]byte, 0, len(g.carry)+len(frame))
		data = append(data, g.carry...)
		data = append(data, frame...)
		g.carry = nil
	}

	speech, total := 0, 0
	off := 0
	for off+g.subFrameBytes <= len(data) {
		if g.classifier.IsSpeech(data[off : off+g.subFrameBytes]) {
			speech++
		}
		total++
		off += g.subFrameBytes
	}
	if off < len(data) {
		g.carry = append(g.carry, data[off:]...)
	}

	if total == 0 {
		// Frame shorter than one sub-frame: no decision, retain state.
		return g.triggered
	}

	frameSpeech := float64(speech)/float64(total) > g.speechFraction
	g.push(frameSpeech)

	speechCount := 0
	for i := 0; i < g.filled; i++ {
		if g.history[i] {
			speechCount++
		}
	}
	ratio := float64(speechCount) / float64(g.filled)

	if !g.triggered {
		if g.filled >= minHistoryToTrigger && ratio >= g.triggerRatio {
			g.triggered = true
			slog.Debug("vad gate triggered", "speech_ratio", ratio)
		}
	} else {
		if ratio <= g.releaseRatio {
			g.triggered = false
			slog.Debug("vad gate released", "speech_ratio", ratio)
		}
	}
	return g.triggered
}

// push appends a frame-level decision to the ring buffer.
func (g *Gate) push(speech bool) {
	g.history[g.next] = speech
	g.next = (g.next + 1) % len(g.history)
	if g.filled < len(g.history) {
		g.filled++
	}
}

// Reset clears the ring buffer, the sub-frame carry, and returns the gate to
// Idle. Must be called on every pipeline stop so stale hysteresis state does
// not leak into the next session.
func (g *Gate) Reset() {
	g.next = 0
	g.filled = 0
	g.carry = nil
	g.triggered = false
}
