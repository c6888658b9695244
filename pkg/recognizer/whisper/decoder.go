// Package whisper provides a recognizer.Decoder backed by the whisper.cpp
// CGO bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.
//
// whisper.cpp is a batch transcription engine, so the decoder performs its
// own endpointing: PCM accumulates in a buffer, and once a configurable run
// of consecutive silence follows speech (or the buffer hits its size cap),
// the utterance is submitted for inference and Accept reports final=true.
// Interim partials are not available; Partial always returns "".
package whisper

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/voxinput/voxinput/pkg/audio"
	"github.com/voxinput/voxinput/pkg/recognizer"
)

const (
	defaultLanguage            = "en"
	defaultSampleRate          = 16000
	defaultSilenceThresholdMs  = 500
	defaultMaxBufferDurationMs = 10_000

	// defaultRMSThreshold separates speech from silence for endpointing, in
	// 16-bit PCM units. 300 corresponds to near-silence on a typical
	// desktop microphone.
	defaultRMSThreshold = 300.0
)

// Option is a functional option for configuring a Decoder.
type Option func(*Decoder)

// WithLanguage sets the BCP-47 language code for transcription
// (e.g. "en", "de", "fr"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(d *Decoder) { d.language = lang }
}

// WithSampleRate sets the PCM sample rate in Hz. Must match the audio
// passed to Accept. Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(d *Decoder) { d.sampleRate = rate }
}

// WithSilenceThresholdMs sets the consecutive-silence duration (ms) after
// speech that closes an utterance. Defaults to 500 ms.
func WithSilenceThresholdMs(ms int) Option {
	return func(d *Decoder) { d.silenceThresholdMs = ms }
}

// WithMaxBufferDurationMs sets the maximum buffered audio duration (ms)
// before an utterance is force-closed regardless of silence. Defaults to
// 10 000 ms.
func WithMaxBufferDurationMs(ms int) Option {
	return func(d *Decoder) { d.maxBufferDurationMs = ms }
}

// Decoder implements recognizer.Decoder on top of whisper.cpp. Not safe for
// concurrent use.
type Decoder struct {
	model    whisperlib.Model
	language string

	sampleRate          int
	silenceThresholdMs  int
	maxBufferDurationMs int

	buffer    []byte
	hadSpeech bool
	silenceMs int

	result string
	closed bool
}

// Compile-time assertion that Decoder implements recognizer.Decoder.
var _ recognizer.Decoder = (*Decoder)(nil)

// New loads the whisper.cpp model from modelPath and returns a ready
// Decoder. The caller must call Close to release the model.
func New(modelPath string, opts ...Option) (*Decoder, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	d := &Decoder{
		model:               model,
		language:            defaultLanguage,
		sampleRate:          defaultSampleRate,
		silenceThresholdMs:  defaultSilenceThresholdMs,
		maxBufferDurationMs: defaultMaxBufferDurationMs,
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// Accept buffers one PCM chunk and runs the endpointer. When a run of
// silence closes the utterance (or the buffer hits its duration cap), the
// buffered audio is transcribed and Accept returns final=true.
func (d *Decoder) Accept(chunk []byte) (bool, error) {
	if d.closed {
		return false, recognizer.ErrDecoderClosed
	}

	rms := audio.RMS(chunk)
	chunkMs := audio.DurationMs(chunk, d.sampleRate, 1)

	if rms < defaultRMSThreshold {
		// Leading silence before any speech is discarded.
		if !d.hadSpeech {
			return false, nil
		}
		d.silenceMs += chunkMs
		d.buffer = append(d.buffer, chunk...)
		if d.silenceMs >= d.silenceThresholdMs {
			return d.finalise()
		}
		return false, nil
	}

	d.hadSpeech = true
	d.silenceMs = 0
	d.buffer = append(d.buffer, chunk...)

	maxBytes := d.maxBufferDurationMs * d.sampleRate * 2 / 1000
	if maxBytes > 0 && len(d.buffer) >= maxBytes {
		return d.finalise()
	}
	return false, nil
}

// finalise transcribes the buffered utterance and resets the endpointer
// state. The buffer is consumed even when inference fails.
func (d *Decoder) finalise() (bool, error) {
	pcm := d.buffer
	d.buffer = nil
	d.hadSpeech = false
	d.silenceMs = 0

	text, err := d.infer(pcm)
	if err != nil {
		return false, err
	}
	d.result = text
	return true, nil
}

// Result returns the last finalised utterance text and clears it.
func (d *Decoder) Result() (string, error) {
	if d.closed {
		return "", recognizer.ErrDecoderClosed
	}
	text := d.result
	d.result = ""
	return text, nil
}

// Partial always returns "". whisper.cpp cannot produce interim hypotheses
// without re-running inference on every chunk, which is far too slow for a
// live dictation loop.
func (d *Decoder) Partial() (string, error) {
	if d.closed {
		return "", recognizer.ErrDecoderClosed
	}
	return "", nil
}

// FinalResult transcribes whatever speech is still buffered and resets the
// decoder for a new session.
func (d *Decoder) FinalResult() (string, error) {
	if d.closed {
		return "", recognizer.ErrDecoderClosed
	}

	if len(d.buffer) == 0 || !d.hadSpeech {
		d.buffer = nil
		d.hadSpeech = false
		d.silenceMs = 0
		return "", nil
	}

	pcm := d.buffer
	d.buffer = nil
	d.hadSpeech = false
	d.silenceMs = 0
	return d.infer(pcm)
}

// Close releases the whisper model. Safe to call multiple times.
func (d *Decoder) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return d.model.Close()
}

// infer converts pcm to float32 samples, runs whisper.cpp inference in a
// fresh context, and returns the concatenated segment text. Contexts are
// not thread-safe but cheap to create; the model is shared.
func (d *Decoder) infer(pcm []byte) (string, error) {
	samples := audio.PCMToFloat32(pcm)

	wctx, err := d.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}

	if err := wctx.SetLanguage(d.language); err != nil {
		slog.Warn("failed to set whisper language, using default", "language", d.language, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}
