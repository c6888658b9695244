// Package voskws provides a recognizer.Decoder backed by a vosk-server
// instance over its WebSocket protocol.
//
// The protocol is lock-step: the client sends one configuration message on
// connect, then alternates binary PCM chunks with JSON replies. Every chunk
// is answered by either {"partial": "..."} while the utterance is still
// open, or {"text": "..."} once the server's endpointer closed it. Sending
// {"eof" : 1} flushes the trailing utterance and is answered with a last
// {"text": "..."} message.
//
// Because the server answers every write, the Decoder can stay fully
// synchronous: no reader goroutine, no channels, and per-call deadlines via
// the dial context.
package voskws

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/coder/websocket"

	"github.com/voxinput/voxinput/pkg/recognizer"
)

const (
	defaultSampleRate = 16000
	defaultOpTimeout  = 10 * time.Second

	// eofMessage flushes the server's audio buffer. The spacing matters:
	// vosk-server matches the literal string.
	eofMessage = `{"eof" : 1}`
)

// Option is a functional option for configuring a Decoder.
type Option func(*Decoder)

// WithSampleRate sets the PCM sample rate announced in the configuration
// message. Must match the audio passed to Accept. Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(d *Decoder) { d.sampleRate = rate }
}

// WithOpTimeout sets the per-operation deadline for WebSocket reads and
// writes. Defaults to 10 s.
func WithOpTimeout(t time.Duration) Option {
	return func(d *Decoder) { d.opTimeout = t }
}

// Decoder implements recognizer.Decoder against a vosk-server WebSocket
// endpoint. Not safe for concurrent use.
type Decoder struct {
	conn       *websocket.Conn
	sampleRate int
	opTimeout  time.Duration

	lastPartial string
	lastResult  string
	closed      bool
}

// Compile-time assertion that Decoder implements recognizer.Decoder.
var _ recognizer.Decoder = (*Decoder)(nil)

// serverReply is the JSON structure vosk-server sends after each chunk.
// Exactly one of Partial or Text is meaningful per message.
type serverReply struct {
	Partial *string `json:"partial"`
	Text    *string `json:"text"`
}

// Dial connects to a vosk-server at wsURL (e.g. "ws://localhost:2700") and
// sends the configuration message. The returned Decoder is ready for Accept.
func Dial(ctx context.Context, wsURL string, opts ...Option) (*Decoder, error) {
	if wsURL == "" {
		return nil, errors.New("voskws: server URL must not be empty")
	}
	d := &Decoder{
		sampleRate: defaultSampleRate,
		opTimeout:  defaultOpTimeout,
	}
	for _, o := range opts {
		o(d)
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("voskws: dial %s: %w", wsURL, err)
	}
	d.conn = conn

	cfg := fmt.Sprintf(`{"config": {"sample_rate": %d}}`, d.sampleRate)
	wctx, cancel := context.WithTimeout(ctx, d.opTimeout)
	defer cancel()
	if err := conn.Write(wctx, websocket.MessageText, []byte(cfg)); err != nil {
		conn.Close(websocket.StatusInternalError, "config write failed")
		return nil, fmt.Errorf("voskws: send config: %w", err)
	}

	return d, nil
}

// Accept sends one PCM chunk and parses the server's reply. It returns
// final=true when the server closed the utterance, making the text available
// via Result.
func (d *Decoder) Accept(chunk []byte) (bool, error) {
	if d.closed {
		return false, recognizer.ErrDecoderClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.opTimeout)
	defer cancel()

	if err := d.conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
		return false, fmt.Errorf("voskws: send audio: %w", err)
	}
	return d.readReply(ctx)
}

// readReply reads and parses one JSON message, updating the decoder state.
func (d *Decoder) readReply(ctx context.Context) (bool, error) {
	_, msg, err := d.conn.Read(ctx)
	if err != nil {
		return false, fmt.Errorf("voskws: read reply: %w", err)
	}

	var reply serverReply
	if err := sonic.Unmarshal(msg, &reply); err != nil {
		return false, fmt.Errorf("voskws: parse reply: %w", err)
	}

	if reply.Text != nil {
		d.lastResult = strings.TrimSpace(*reply.Text)
		d.lastPartial = ""
		return true, nil
	}
	if reply.Partial != nil {
		d.lastPartial = strings.TrimSpace(*reply.Partial)
	}
	return false, nil
}

// Result returns the last finalised utterance text and clears it.
func (d *Decoder) Result() (string, error) {
	if d.closed {
		return "", recognizer.ErrDecoderClosed
	}
	text := d.lastResult
	d.lastResult = ""
	return text, nil
}

// Partial returns the current interim hypothesis.
func (d *Decoder) Partial() (string, error) {
	if d.closed {
		return "", recognizer.ErrDecoderClosed
	}
	return d.lastPartial, nil
}

// FinalResult sends the EOF marker and returns the trailing utterance text.
func (d *Decoder) FinalResult() (string, error) {
	if d.closed {
		return "", recognizer.ErrDecoderClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.opTimeout)
	defer cancel()

	if err := d.conn.Write(ctx, websocket.MessageText, []byte(eofMessage)); err != nil {
		return "", fmt.Errorf("voskws: send eof: %w", err)
	}

	// The server may emit a last partial before the final text.
	for {
		final, err := d.readReply(ctx)
		if err != nil {
			return "", err
		}
		if final {
			text := d.lastResult
			d.lastResult = ""
			return text, nil
		}
	}
}

// Close shuts the WebSocket connection down. Safe to call multiple times.
func (d *Decoder) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return d.conn.Close(websocket.StatusNormalClosure, "decoder closed")
}
