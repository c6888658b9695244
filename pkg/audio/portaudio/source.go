// Package portaudio implements [audio.Source] on top of the PortAudio
// blocking-read API.
//
// The source owns a capture goroutine that reads fixed-size chunks from the
// input stream and hands them to the registered frame callback. Driver read
// errors are counted; after a configurable number of consecutive failures the
// source halts delivery and fires the stream-error callback instead of
// crashing the process. A single successful read resets the counter, so an
// isolated glitch never accumulates toward the abort threshold.
package portaudio

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/voxinput/voxinput/pkg/audio"
)

// DefaultErrorThreshold is the number of consecutive driver read errors after
// which frame delivery halts and the stream-error callback fires.
const DefaultErrorThreshold = 5

// Config holds the capture parameters for a [Source].
type Config struct {
	// SampleRate in Hz. The dictation pipeline uses 16000.
	SampleRate int

	// ChunkSize is the number of samples per delivered frame (e.g. 4000
	// samples at 16 kHz = 250 ms).
	ChunkSize int

	// Channels is the input channel count. 1 for the dictation pipeline.
	Channels int

	// Device selects the input device by case-insensitive substring match on
	// the device name. Empty selects the system default input.
	Device string

	// ErrorThreshold overrides [DefaultErrorThreshold] when positive.
	ErrorThreshold int
}

// Source captures microphone audio through PortAudio.
// It implements [audio.Source]. Safe for concurrent use.
type Source struct {
	cfg Config

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	onError   func(error)
	seq       uint64
	streamErr error
}

// Compile-time assertion that Source implements audio.Source.
var _ audio.Source = (*Source)(nil)

// New creates a Source with the given configuration. Zero-value fields are
// replaced with defaults (16 kHz, 4000-sample chunks, mono).
func New(cfg Config) *Source {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 4000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.ErrorThreshold <= 0 {
		cfg.ErrorThreshold = DefaultErrorThreshold
	}
	return &Source{cfg: cfg}
}

// OnStreamError registers cb as the callback invoked when delivery halts
// after the consecutive-error threshold. Replaces any previous registration.
func (s *Source) OnStreamError(cb func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = cb
}

// Start opens the input device and begins frame delivery on an internal
// goroutine. Returns [audio.ErrDeviceUnavailable] (wrapped) when the device
// cannot be opened or the stream cannot start.
func (s *Source) Start(onFrame func(audio.Frame)) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("portaudio: source already started")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	if err := portaudio.Initialize(); err != nil {
		s.markStopped()
		close(doneCh)
		return fmt.Errorf("portaudio: initialize: %w", audio.ErrDeviceUnavailable)
	}

	in := make([]int16, s.cfg.ChunkSize)
	stream, err := s.openStream(in)
	if err != nil {
		_ = portaudio.Terminate()
		s.markStopped()
		close(doneCh)
		return fmt.Errorf("portaudio: open stream: %w", audio.ErrDeviceUnavailable)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		s.markStopped()
		close(doneCh)
		return fmt.Errorf("portaudio: start stream: %w", audio.ErrDeviceUnavailable)
	}

	slog.Info("audio capture started",
		"sample_rate", s.cfg.SampleRate,
		"chunk_size", s.cfg.ChunkSize,
		"device", s.cfg.Device,
	)

	go s.captureLoop(stream, in, onFrame, stopCh, doneCh)
	return nil
}

// captureLoop reads chunks until stopped or degraded. It owns the stream and
// releases it on exit.
func (s *Source) captureLoop(stream *portaudio.Stream, in []int16, onFrame func(audio.Frame), stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	defer func() {
		_ = stream.Stop()
		_ = stream.Close()
		_ = portaudio.Terminate()
	}()

	start := time.Now()
	errs := audio.NewErrorCounter(s.cfg.ErrorThreshold)

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		if err := stream.Read(); err != nil {
			degraded := errs.Fail()
			slog.Warn("audio stream read error",
				"error", err,
				"consecutive", errs.Count(),
				"threshold", s.cfg.ErrorThreshold,
			)
			if degraded {
				s.halt(fmt.Errorf("portaudio: %d consecutive read errors: %w",
					errs.Count(), audio.ErrStreamDegraded))
				return
			}
			continue
		}
		errs.Success()

		data := make([]byte, len(in)*2)
		for i, v := range in {
			data[i*2] = byte(v)
			data[i*2+1] = byte(v >> 8)
		}

		s.mu.Lock()
		s.seq++
		seq := s.seq
		s.mu.Unlock()

		onFrame(audio.Frame{
			Data:       data,
			Seq:        seq,
			SampleRate: s.cfg.SampleRate,
			Channels:   s.cfg.Channels,
			Timestamp:  time.Since(start),
		})
	}
}

// halt records the degradation, marks the source stopped, and fires the
// stream-error callback. Delivery does not resume until the next Start.
func (s *Source) halt(err error) {
	s.mu.Lock()
	s.running = false
	s.streamErr = err
	cb := s.onError
	s.mu.Unlock()

	slog.Error("audio capture halted", "error", err)
	if cb != nil {
		cb(err)
	}
}

// Stop halts delivery and releases the device. Idempotent; safe to call from
// any goroutine. Blocks until the capture goroutine has released the stream,
// which takes at most one frame period.
func (s *Source) Stop() error {
	s.mu.Lock()
	if !s.running {
		done := s.doneCh
		s.mu.Unlock()
		if done != nil {
			<-done
		}
		return nil
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done
	slog.Info("audio capture stopped")
	return nil
}

// Available reports whether an input device can currently be opened. The
// probe opens and immediately closes a stream without disturbing any running
// capture owned by a different PortAudio session.
func (s *Source) Available() bool {
	if err := portaudio.Initialize(); err != nil {
		return false
	}
	defer portaudio.Terminate()

	in := make([]int16, 64)
	stream, err := s.openStream(in)
	if err != nil {
		return false
	}
	_ = stream.Close()
	return true
}

// openStream opens the configured device, falling back to the system default
// input when no device name is configured or no name matches.
func (s *Source) openStream(in []int16) (*portaudio.Stream, error) {
	if s.cfg.Device == "" {
		return portaudio.OpenDefaultStream(s.cfg.Channels, 0, float64(s.cfg.SampleRate), len(in), in)
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	want := strings.ToLower(s.cfg.Device)
	for _, dev := range devices {
		if dev.MaxInputChannels < s.cfg.Channels {
			continue
		}
		if !strings.Contains(strings.ToLower(dev.Name), want) {
			continue
		}
		params := portaudio.LowLatencyParameters(dev, nil)
		params.Input.Channels = s.cfg.Channels
		params.SampleRate = float64(s.cfg.SampleRate)
		params.FramesPerBuffer = len(in)
		return portaudio.OpenStream(params, in)
	}

	slog.Warn("configured input device not found, using default", "device", s.cfg.Device)
	return portaudio.OpenDefaultStream(s.cfg.Channels, 0, float64(s.cfg.SampleRate), len(in), in)
}

// markStopped resets the running flag after a failed Start.
func (s *Source) markStopped() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}
