package recognizer

import (
	"log/slog"
	"strings"
)

// Engine drives a [Decoder] and converts its raw Accept/Result/Partial
// protocol into deduplicated [Event] values.
//
// The Engine guarantees the event contract the rest of the pipeline relies
// on:
//
//   - Partial events are only emitted when the hypothesis text actually
//     changed, so a decoder that repeats the same interim text on every
//     chunk does not flood the consumer.
//   - A Final event resets the partial tracking, so the first partial of
//     the next utterance is always delivered.
//   - A decode failure discards the in-flight utterance (the decoder's
//     buffered audio for it is gone anyway) and surfaces a *DecodeError;
//     the Engine itself stays usable.
//
// Engine is not safe for concurrent use. The pipeline confines each Engine
// to its recognition worker goroutine.
type Engine struct {
	dec     Decoder
	backend string

	lastPartial string
}

// NewEngine wraps dec. backend is used in error and log messages.
func NewEngine(backend string, dec Decoder) *Engine {
	return &Engine{dec: dec, backend: backend}
}

// Feed pushes one PCM chunk into the decoder and returns the resulting
// events, in order. A chunk may yield nothing (silence, unchanged partial),
// one partial, or a final.
//
// On a decoder failure Feed returns a *DecodeError; the in-flight utterance
// is lost but the Engine remains usable for subsequent chunks.
func (e *Engine) Feed(chunk []byte) ([]Event, error) {
	if len(chunk) == 0 {
		return nil, nil
	}

	final, err := e.dec.Accept(chunk)
	if err != nil {
		e.lastPartial = ""
		return nil, &DecodeError{Backend: e.backend, Err: err}
	}

	if final {
		text, err := e.dec.Result()
		if err != nil {
			e.lastPartial = ""
			return nil, &DecodeError{Backend: e.backend, Err: err}
		}
		e.lastPartial = ""
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, nil
		}
		slog.Debug("utterance finalised", "backend", e.backend, "chars", len(text))
		return []Event{{Kind: KindFinal, Text: text}}, nil
	}

	partial, err := e.dec.Partial()
	if err != nil {
		e.lastPartial = ""
		return nil, &DecodeError{Backend: e.backend, Err: err}
	}
	partial = strings.TrimSpace(partial)
	if partial == "" || partial == e.lastPartial {
		return nil, nil
	}
	e.lastPartial = partial
	return []Event{{Kind: KindPartial, Text: partial}}, nil
}

// Flush finalises whatever audio the decoder still holds, typically on the
// Listening → Idle transition. It returns the trailing Final event and
// ok=true when pending speech produced text, or ok=false when there was
// nothing to flush.
func (e *Engine) Flush() (Event, bool, error) {
	e.lastPartial = ""
	text, err := e.dec.FinalResult()
	if err != nil {
		return Event{}, false, &DecodeError{Backend: e.backend, Err: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Event{}, false, nil
	}
	return Event{Kind: KindFinal, Text: text}, true, nil
}

// Reset drops the partial-deduplication state without touching the decoder.
// Used when the pipeline discards an utterance after a decode error.
func (e *Engine) Reset() {
	e.lastPartial = ""
}

// Close closes the underlying decoder.
func (e *Engine) Close() error {
	return e.dec.Close()
}
