// Package recognizer defines the speech recognition decoder interface and the
// Engine that turns raw PCM frames into a stream of transcription events.
//
// A [Decoder] is a synchronous, incremental speech decoder: PCM is pushed in
// via Accept, and the decoder reports either an interim hypothesis (Partial)
// or, once it detects an utterance boundary, an authoritative result (Result).
// FinalResult flushes whatever audio is still buffered, which is how a
// dictation session is wrapped up when the microphone stops.
//
// Implementations are provided by backend-specific subpackages (voskws,
// whisper). The interface is intentionally narrow so the pipeline remains
// backend-agnostic.
package recognizer

import (
	"errors"
	"fmt"
)

// ErrDecoderClosed is returned by Decoder methods after Close.
var ErrDecoderClosed = errors.New("recognizer: decoder is closed")

// EventKind discriminates the two kinds of transcription events.
type EventKind int

const (
	// KindPartial is an interim hypothesis. The text may still change and
	// must never be injected; it is only useful for progress display.
	KindPartial EventKind = iota

	// KindFinal is an authoritative utterance result. The text is stable
	// and ready for downstream delivery.
	KindFinal
)

// String returns the lowercase event kind name, for logging.
func (k EventKind) String() string {
	switch k {
	case KindPartial:
		return "partial"
	case KindFinal:
		return "final"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is a single transcription event produced by an [Engine].
type Event struct {
	Kind EventKind
	Text string
}

// DecodeError wraps a backend failure during decoding. The pipeline treats a
// DecodeError as "utterance lost": the in-flight utterance is discarded and
// recognition continues with the next audio, rather than tearing the whole
// session down.
type DecodeError struct {
	// Backend names the decoder implementation ("vosk", "whisper").
	Backend string

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("recognizer: %s decode failed: %v", e.Backend, e.Err)
}

// Unwrap returns the underlying error for errors.Is / errors.As matching.
func (e *DecodeError) Unwrap() error { return e.Err }

// Decoder is an incremental speech-to-text decoder.
//
// Implementations need not be safe for concurrent use; the Engine confines
// each decoder to a single goroutine.
type Decoder interface {
	// Accept pushes a chunk of 16-bit little-endian mono PCM into the
	// decoder. It returns final=true when the decoder has detected an
	// utterance boundary, meaning Result now holds the authoritative text
	// for the completed utterance. It returns final=false while the decoder
	// is still accumulating, in which case Partial may hold an interim
	// hypothesis.
	Accept(chunk []byte) (final bool, err error)

	// Result returns the authoritative text of the utterance completed by
	// the last Accept call that returned final=true. It also resets the
	// decoder's utterance state so the next Accept starts a new utterance.
	Result() (string, error)

	// Partial returns the current interim hypothesis, or "" when the
	// decoder has nothing yet. The text may change on every Accept call.
	Partial() (string, error)

	// FinalResult flushes all buffered audio and returns the text of the
	// trailing utterance, or "" if no speech was pending. After
	// FinalResult the decoder is reset and ready for a new session.
	FinalResult() (string, error)

	// Close releases the decoder's resources (native contexts, network
	// connections). Safe to call multiple times.
	Close() error
}
