// Package pipeline wires microphone capture, voice-activity gating, speech
// recognition and text injection into one controller with an explicit
// Idle / Listening / Error state machine.
//
// The concurrency layout is deliberately small: the capture driver enqueues
// frames into a single bounded queue, one recognition worker dequeues and
// runs gate → engine → injector, and control methods (Toggle, Stop, Close)
// may be called from any goroutine. The queue is the only shared mutable
// resource on the hot path; when it fills, the oldest frame is dropped with a
// warning rather than back-pressuring the driver callback.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxinput/voxinput/internal/command"
	"github.com/voxinput/voxinput/internal/notify"
	"github.com/voxinput/voxinput/internal/observe"
	"github.com/voxinput/voxinput/internal/stats"
	"github.com/voxinput/voxinput/pkg/audio"
	"github.com/voxinput/voxinput/pkg/inject"
	"github.com/voxinput/voxinput/pkg/recognizer"
	"github.com/voxinput/voxinput/pkg/vad"
)

// State is the controller's lifecycle state.
type State int

const (
	// StateIdle: no audio device open.
	StateIdle State = iota
	// StateListening: device open, frames flowing through the recogniser.
	StateListening
	// StateError: device open but degraded, reconnect in progress.
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

const (
	// defaultQueueSize bounds the capture → recognition queue. At 250 ms
	// per frame this is several seconds of headroom.
	defaultQueueSize = 32

	// maxCaptureBytes caps the debug-capture buffer per utterance
	// (60 s of 16 kHz mono 16-bit PCM).
	maxCaptureBytes = 2 * 16000 * 60
)

// Config holds the controller's tunables.
type Config struct {
	// QueueSize bounds the frame queue. Defaults to 32.
	QueueSize int

	// ReconnectAttempts and ReconnectDelay parameterise [audio.Reconnect]
	// after a stream-error callback.
	ReconnectAttempts int
	ReconnectDelay    time.Duration

	// CaptureDir, when non-empty, receives one WAV file per completed
	// utterance for offline inspection.
	CaptureDir string
}

// Option configures optional controller collaborators.
type Option func(*Controller)

// WithProcessor installs a voice-command processor applied to every final
// utterance before injection.
func WithProcessor(p *command.Processor) Option {
	return func(c *Controller) { c.proc = p }
}

// WithStats installs a usage-stats recorder.
func WithStats(r *stats.Recorder) Option {
	return func(c *Controller) { c.stats = r }
}

// WithNotifier installs the desktop notifier for state-change messages.
func WithNotifier(n notify.Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// WithMetrics overrides the metrics sink, mainly for tests.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithPartialListener installs a callback invoked for every partial
// hypothesis, for UI surfaces that want live feedback.
func WithPartialListener(fn func(text string)) Option {
	return func(c *Controller) { c.onPartial = fn }
}

// Controller owns the capture → inject pipeline lifecycle.
type Controller struct {
	src     audio.Source
	gate    *vad.Gate
	eng     *recognizer.Engine
	inj     inject.Injector
	backend string
	method  string
	cfg     Config

	proc      *command.Processor
	stats     *stats.Recorder
	notifier  notify.Notifier
	metrics   *observe.Metrics
	onPartial func(string)

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       State
	session     *session
	pendingGate *vad.Gate
	listenStart time.Time
	paused      bool
	closed      bool

	// reconnectCancel aborts the in-flight reconnect loop. Set while the
	// controller is in the Error state, cancelled by an explicit Stop.
	reconnectCancel context.CancelFunc
}

// session is the per-activation plumbing: a fresh queue and worker per
// Listening episode so no stale frames survive a stop/start cycle.
type session struct {
	frames chan audio.Frame
	quit   chan struct{}
	done   chan struct{}

	// gate is pinned per session so a config-reload swap never races the
	// recognition worker.
	gate *vad.Gate
}

// NewController assembles a controller. backend and method label metrics and
// logs ("vosk", "clipboard", ...); they carry no behaviour.
func NewController(src audio.Source, gate *vad.Gate, eng *recognizer.Engine, inj inject.Injector, backend, method string, cfg Config, opts ...Option) *Controller {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		src:      src,
		gate:     gate,
		eng:      eng,
		inj:      inj,
		backend:  backend,
		method:   method,
		cfg:      cfg,
		notifier: notify.Noop{},
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	src.OnStreamError(c.onStreamError)
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// UpdateGate replaces the voice-activity gate, typically after a config
// reload changed the VAD tuning. While listening, the swap is deferred to the
// next activation so the recognition worker never sees the gate change
// mid-stream.
func (c *Controller) UpdateGate(g *vad.Gate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateIdle {
		c.gate = g
		return
	}
	c.pendingGate = g
}

// TogglePause flips injection suppression and returns the new paused state.
// While paused the session stays alive and recognition keeps running, but
// final utterances are not typed. Stop clears the pause.
func (c *Controller) TogglePause() bool {
	c.mu.Lock()
	c.paused = !c.paused
	paused := c.paused
	c.mu.Unlock()

	if paused {
		slog.Info("dictation paused")
		c.notifier.Notify("Dictation paused", "Recognized text will not be typed")
	} else {
		slog.Info("dictation resumed")
		c.notifier.Notify("Dictation resumed", "Recognized text is typed again")
	}
	return paused
}

// Paused reports whether injection is currently suppressed.
func (c *Controller) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Toggle flips between Idle and Listening. In the Error state it stops.
func (c *Controller) Toggle() error {
	switch c.State() {
	case StateIdle:
		return c.Listen()
	default:
		return c.Stop()
	}
}

// Listen opens the audio source and starts the recognition worker.
// Returns [audio.ErrDeviceUnavailable] (wrapped) when the microphone cannot
// be opened; the controller stays Idle.
func (c *Controller) Listen() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New("pipeline: controller closed")
	}
	if c.state != StateIdle {
		return nil
	}
	if c.pendingGate != nil {
		c.gate = c.pendingGate
		c.pendingGate = nil
	}

	s := &session{
		frames: make(chan audio.Frame, c.cfg.QueueSize),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		gate:   c.gate,
	}
	if err := c.src.Start(c.enqueueFunc(s)); err != nil {
		c.notifier.Notify("Microphone unavailable", err.Error())
		return fmt.Errorf("pipeline: start capture: %w", err)
	}

	c.session = s
	c.state = StateListening
	c.listenStart = time.Now()
	c.metrics.ListeningSessions.Add(c.ctx, 1)
	go c.worker(s)

	slog.Info("dictation started", "backend", c.backend)
	c.notifier.Notify("Dictation on", "Listening for speech")
	return nil
}

// Stop transitions to Idle from any state: the worker is drained, the gate
// is reset and any in-flight utterance is flushed before the device is
// released. Safe to call from any goroutine and when already Idle.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return nil
	}
	s := c.session
	c.session = nil
	prev := c.state
	c.state = StateIdle
	started := c.listenStart
	gate := c.gate
	c.paused = false
	rcancel := c.reconnectCancel
	c.reconnectCancel = nil
	c.mu.Unlock()

	// Abort any in-flight reconnect loop; it observes the cancellation at
	// the next attempt boundary.
	if rcancel != nil {
		rcancel()
	}

	if s != nil {
		close(s.quit)
		<-s.done
	}

	// Flush before releasing the device so the trailing utterance is not
	// orphaned into the next activation.
	c.flushUtterance()
	gate.Reset()
	err := c.src.Stop()

	c.metrics.ListeningSessions.Add(c.ctx, -1)
	if c.stats != nil && !started.IsZero() {
		c.stats.AddListening(time.Since(started))
	}

	slog.Info("dictation stopped", "from_state", prev.String())
	c.notifier.Notify("Dictation off", "Stopped listening")
	return err
}

// Close stops the pipeline and releases the decoder. The controller cannot
// be restarted afterwards.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	stopErr := c.Stop()
	closeErr := c.eng.Close()
	return errors.Join(stopErr, closeErr)
}

// enqueueFunc returns the capture callback for session s. It never blocks:
// when the queue is full the oldest frame is dropped and counted.
func (c *Controller) enqueueFunc(s *session) func(audio.Frame) {
	return func(f audio.Frame) {
		c.metrics.FramesCaptured.Add(c.ctx, 1)
		select {
		case s.frames <- f:
			return
		default:
		}
		select {
		case <-s.frames:
		default:
		}
		select {
		case s.frames <- f:
		default:
		}
		c.metrics.QueueDrops.Add(c.ctx, 1)
		slog.Warn("frame queue full, dropped oldest", "seq", f.Seq)
	}
}

// worker drains the session queue through gate → engine → injector until the
// session is quit. All engine access is confined to this goroutine.
func (c *Controller) worker(s *session) {
	defer close(s.done)
	var capturePCM []byte

	for {
		select {
		case <-s.quit:
			return
		case f := <-s.frames:
			wasTriggered := s.gate.Triggered()
			if !s.gate.Classify(f.Data) {
				if wasTriggered {
					// Speech just ended; force the trailing final out
					// instead of waiting for the decoder's own timeout.
					c.flushUtterance()
					c.dumpCapture(capturePCM, f.SampleRate)
					capturePCM = nil
				}
				continue
			}

			if c.cfg.CaptureDir != "" && len(capturePCM) < maxCaptureBytes {
				capturePCM = append(capturePCM, f.Data...)
			}

			start := time.Now()
			events, err := c.eng.Feed(f.Data)
			c.metrics.DecodeDuration.Record(c.ctx, time.Since(start).Seconds())
			if err != nil {
				c.handleDecodeError(err)
				capturePCM = nil
				continue
			}
			for _, ev := range events {
				switch ev.Kind {
				case recognizer.KindPartial:
					if c.onPartial != nil {
						c.onPartial(ev.Text)
					}
				case recognizer.KindFinal:
					c.deliver(ev.Text)
					c.dumpCapture(capturePCM, f.SampleRate)
					capturePCM = nil
				}
			}
		}
	}
}

// flushUtterance finalises whatever the decoder still holds and delivers it.
func (c *Controller) flushUtterance() {
	ev, ok, err := c.eng.Flush()
	if err != nil {
		c.handleDecodeError(err)
		return
	}
	if ok {
		c.deliver(ev.Text)
	}
}

// deliver runs a final utterance through voice commands and injects it.
// Injection failures are logged and swallowed; dictation continues.
func (c *Controller) deliver(text string) {
	if c.proc != nil {
		text = c.proc.Process(text)
	}
	text = command.EnsureTrailingSpace(text)

	c.metrics.RecordUtterance(c.ctx, c.backend)
	if c.stats != nil {
		c.stats.RecordUtterance(text)
	}

	if c.Paused() {
		slog.Debug("injection suppressed while paused", "chars", len(text))
		return
	}

	if err := c.inj.Inject(text); err != nil {
		slog.Error("text injection failed", "chars", len(text), "error", err)
		c.metrics.RecordInjection(c.ctx, c.method, "error")
		return
	}
	c.metrics.RecordInjection(c.ctx, c.method, "ok")
	if c.stats != nil {
		c.stats.RecordInjection()
	}
}

// handleDecodeError logs and counts a lost utterance. The engine stays
// usable, so listening continues.
func (c *Controller) handleDecodeError(err error) {
	var de *recognizer.DecodeError
	if errors.As(err, &de) {
		slog.Warn("utterance discarded after decode failure", "backend", de.Backend, "error", de.Err)
	} else {
		slog.Warn("utterance discarded after decode failure", "error", err)
	}
	c.metrics.RecordDecodeError(c.ctx, c.backend)
	if c.stats != nil {
		c.stats.RecordDecodeError()
	}
	c.eng.Reset()
}

// dumpCapture writes the utterance PCM to the capture directory, if enabled.
func (c *Controller) dumpCapture(pcm []byte, sampleRate int) {
	if c.cfg.CaptureDir == "" || len(pcm) == 0 {
		return
	}
	path := filepath.Join(c.cfg.CaptureDir, "utterance_"+uuid.NewString()+".wav")
	if err := audio.DumpWAV(path, pcm, sampleRate); err != nil {
		slog.Warn("failed to write capture file", "path", path, "error", err)
	}
}

// onStreamError runs on the capture goroutine when the source halts frame
// delivery. It must not block, so the reconnect sequence runs elsewhere.
func (c *Controller) onStreamError(err error) {
	c.mu.Lock()
	if c.state != StateListening {
		c.mu.Unlock()
		return
	}
	c.state = StateError
	s := c.session
	rctx, rcancel := context.WithCancel(c.ctx)
	c.reconnectCancel = rcancel
	c.mu.Unlock()

	slog.Error("audio stream degraded", "error", err)
	c.notifier.Notify("Microphone error", "Audio stream lost, reconnecting")
	go c.reconnect(rctx, rcancel, s)
}

// reconnect drives the backoff loop and settles the state machine on either
// Listening (recovered) or Idle (exhausted). An explicit Stop cancels ctx and
// wins any race with a late recovery.
func (c *Controller) reconnect(ctx context.Context, cancel context.CancelFunc, s *session) {
	defer cancel()
	ok := audio.Reconnect(ctx, c.src, c.enqueueFunc(s), c.cfg.ReconnectAttempts, c.cfg.ReconnectDelay)

	c.mu.Lock()
	// A Stop or Close that raced the reconnect wins.
	if c.state != StateError || c.session != s {
		c.mu.Unlock()
		if ok {
			_ = c.src.Stop()
		}
		return
	}
	if ok {
		c.state = StateListening
		c.reconnectCancel = nil
		c.mu.Unlock()
		c.metrics.RecordReconnect(c.ctx, "ok")
		c.notifier.Notify("Microphone recovered", "Dictation resumed")
		return
	}
	c.mu.Unlock()

	c.metrics.RecordReconnect(c.ctx, "failed")
	c.notifier.Notify("Microphone lost", "Could not reconnect, dictation stopped")
	_ = c.Stop()
}
