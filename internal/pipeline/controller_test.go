package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/voxinput/voxinput/internal/command"
	notifymock "github.com/voxinput/voxinput/internal/notify/mock"
	"github.com/voxinput/voxinput/pkg/audio"
	audiomock "github.com/voxinput/voxinput/pkg/audio/mock"
	injectmock "github.com/voxinput/voxinput/pkg/inject/mock"
	"github.com/voxinput/voxinput/pkg/recognizer"
	recmock "github.com/voxinput/voxinput/pkg/recognizer/mock"
	"github.com/voxinput/voxinput/pkg/vad"
	vadmock "github.com/voxinput/voxinput/pkg/vad/mock"
)

const (
	testSampleRate = 16000
	// One 30 ms sub-frame of 16 kHz mono 16-bit PCM.
	subFrameBytes = testSampleRate * 30 / 1000 * 2
)

type fixture struct {
	ctrl     *Controller
	src      *audiomock.Source
	dec      *recmock.Decoder
	inj      *injectmock.Injector
	notifier *notifymock.Notifier
}

func newFixture(t *testing.T, cls vad.Classifier, dec *recmock.Decoder, cfg Config, opts ...Option) *fixture {
	t.Helper()
	gate, err := vad.NewGate(vad.GateConfig{SampleRate: testSampleRate, Classifier: cls})
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}

	f := &fixture{
		src:      &audiomock.Source{},
		dec:      dec,
		inj:      &injectmock.Injector{},
		notifier: &notifymock.Notifier{},
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = time.Millisecond
	}
	opts = append(opts, WithNotifier(f.notifier))
	f.ctrl = NewController(
		f.src, gate, recognizer.NewEngine("test", dec), f.inj,
		"test", "mock", cfg, opts...,
	)
	t.Cleanup(func() { _ = f.ctrl.Close() })
	return f
}

func frame(seq uint64, subFrames int) audio.Frame {
	return audio.Frame{
		Data:       make([]byte, subFrames*subFrameBytes),
		Seq:        seq,
		SampleRate: testSampleRate,
		Channels:   1,
	}
}

func waitFor(t *testing.T, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func TestController_SilentBufferProducesNothing(t *testing.T) {
	f := newFixture(t, vadmock.Constant(false), &recmock.Decoder{}, Config{})

	if err := f.ctrl.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	for i := range 20 {
		f.src.Emit(frame(uint64(i), 1))
	}
	if err := f.ctrl.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if got := len(f.dec.AcceptedChunks); got != 0 {
		t.Errorf("decoder received %d chunks through a closed gate", got)
	}
	if got := f.inj.Injected(); len(got) != 0 {
		t.Errorf("unexpected injections: %q", got)
	}
}

func TestController_SpeechYieldsOneFinalOneInjection(t *testing.T) {
	dec := &recmock.Decoder{Steps: []recmock.Step{
		{Final: false, Text: "hello"},
		{Final: true, Text: "hello world"},
	}}
	var partials []string
	f := newFixture(t, vadmock.Constant(true), dec, Config{},
		WithPartialListener(func(s string) { partials = append(partials, s) }),
	)

	if err := f.ctrl.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	// The gate needs two frames of history before it triggers; the next
	// two reach the decoder.
	for i := range 4 {
		f.src.Emit(frame(uint64(i), 1))
	}
	waitFor(t, "injection", func() bool { return len(f.inj.Injected()) == 1 })

	got := f.inj.Injected()
	if got[0] != "hello world " {
		t.Errorf("injected %q, want %q", got[0], "hello world ")
	}
	if len(partials) != 1 || partials[0] != "hello" {
		t.Errorf("partials = %q, want [hello]", partials)
	}
}

func TestController_GateReleaseFlushesTrailingUtterance(t *testing.T) {
	// Ten speech sub-frames, then permanent silence.
	cls := &vadmock.Classifier{Results: speechRun(10)}
	dec := &recmock.Decoder{FinalText: "trailing words"}
	f := newFixture(t, cls, dec, Config{})

	if err := f.ctrl.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	for i := range 20 {
		f.src.Emit(frame(uint64(i), 1))
	}
	waitFor(t, "flush injection", func() bool { return len(f.inj.Injected()) == 1 })

	if got := f.inj.Injected()[0]; got != "trailing words " {
		t.Errorf("injected %q, want %q", got, "trailing words ")
	}
	if f.ctrl.State() != StateListening {
		t.Errorf("state = %v, want listening after flush", f.ctrl.State())
	}
}

func TestController_StopFlushesBeforeRelease(t *testing.T) {
	dec := &recmock.Decoder{FinalText: "held speech"}
	f := newFixture(t, vadmock.Constant(true), dec, Config{})

	if err := f.ctrl.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	for i := range 4 {
		f.src.Emit(frame(uint64(i), 1))
	}
	waitFor(t, "frames decoded", func() bool { return dec.ChunkCount() >= 1 })
	if err := f.ctrl.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	got := f.inj.Injected()
	if len(got) != 1 || got[0] != "held speech " {
		t.Errorf("injected %q, want [%q]", got, "held speech ")
	}
	if f.src.Started() {
		t.Error("source still started after Stop")
	}
}

func TestController_StopFromAnotherGoroutineReachesIdle(t *testing.T) {
	f := newFixture(t, vadmock.Constant(true), &recmock.Decoder{}, Config{})

	if err := f.ctrl.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- f.ctrl.Stop() }()
	if err := <-done; err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if f.ctrl.State() != StateIdle {
		t.Errorf("state = %v, want idle", f.ctrl.State())
	}

	// A fresh activation starts from clean gate state: the first frame
	// after restart must not be fed to the decoder.
	if err := f.ctrl.Listen(); err != nil {
		t.Fatalf("second Listen: %v", err)
	}
	before := f.dec.ChunkCount()
	f.src.Emit(frame(100, 1))
	time.Sleep(20 * time.Millisecond)
	if got := f.dec.ChunkCount(); got != before {
		t.Errorf("decoder fed %d chunks from a single frame of history", got-before)
	}
}

func TestController_DeviceUnavailableStaysIdle(t *testing.T) {
	f := newFixture(t, vadmock.Constant(true), &recmock.Decoder{}, Config{})
	f.src.StartErrs = []error{audio.ErrDeviceUnavailable}

	err := f.ctrl.Listen()
	if !errors.Is(err, audio.ErrDeviceUnavailable) {
		t.Fatalf("Listen error = %v, want ErrDeviceUnavailable", err)
	}
	if f.ctrl.State() != StateIdle {
		t.Errorf("state = %v, want idle", f.ctrl.State())
	}
	if sent := f.notifier.Sent(); len(sent) == 0 {
		t.Error("no notification for unavailable device")
	}
}

func TestController_DecodeErrorKeepsListening(t *testing.T) {
	boom := errors.New("decoder exploded")
	dec := &recmock.Decoder{Steps: []recmock.Step{
		{Err: boom},
		{Final: true, Text: "after recovery"},
	}}
	f := newFixture(t, vadmock.Constant(true), dec, Config{})

	if err := f.ctrl.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	for i := range 4 {
		f.src.Emit(frame(uint64(i), 1))
	}
	waitFor(t, "post-error injection", func() bool { return len(f.inj.Injected()) == 1 })

	if got := f.inj.Injected()[0]; got != "after recovery " {
		t.Errorf("injected %q, want %q", got, "after recovery ")
	}
	if f.ctrl.State() != StateListening {
		t.Errorf("state = %v, want listening", f.ctrl.State())
	}
}

func TestController_StreamErrorReconnects(t *testing.T) {
	f := newFixture(t, vadmock.Constant(true), &recmock.Decoder{}, Config{ReconnectAttempts: 3})

	if err := f.ctrl.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	f.src.FailStream(audio.ErrStreamDegraded)

	waitFor(t, "reconnect", func() bool { return f.ctrl.State() == StateListening })
	if !f.src.Started() {
		t.Error("source not restarted after reconnect")
	}
}

func TestController_ReconnectExhaustionReachesIdle(t *testing.T) {
	f := newFixture(t, vadmock.Constant(true), &recmock.Decoder{}, Config{ReconnectAttempts: 2})
	f.src.StartErrs = []error{
		nil, // initial Listen
		audio.ErrDeviceUnavailable,
		audio.ErrDeviceUnavailable,
	}

	if err := f.ctrl.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	f.src.FailStream(audio.ErrStreamDegraded)

	waitFor(t, "exhaustion", func() bool { return f.ctrl.State() == StateIdle })
	if f.src.Started() {
		t.Error("source still started after reconnect exhaustion")
	}
}

func TestController_StopCancelsReconnect(t *testing.T) {
	f := newFixture(t, vadmock.Constant(true), &recmock.Decoder{},
		Config{ReconnectAttempts: 50, ReconnectDelay: 2 * time.Millisecond})

	// First Start (Listen) succeeds, every reconnect attempt fails.
	errs := make([]error, 61)
	for i := 1; i < len(errs); i++ {
		errs[i] = audio.ErrDeviceUnavailable
	}
	f.src.StartErrs = errs

	if err := f.ctrl.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	f.src.FailStream(audio.ErrStreamDegraded)
	waitFor(t, "reconnect attempts", func() bool { return f.src.Starts() >= 3 })

	if err := f.ctrl.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if f.ctrl.State() != StateIdle {
		t.Fatalf("state = %v, want idle after Stop", f.ctrl.State())
	}

	// One attempt may already be past the cancellation check; after it lands
	// the loop must go quiet instead of running the remaining attempts.
	time.Sleep(10 * time.Millisecond)
	n := f.src.Starts()
	time.Sleep(30 * time.Millisecond)
	if got := f.src.Starts(); got != n {
		t.Errorf("reconnect kept starting the source after Stop: %d -> %d", n, got)
	}
	if f.src.Started() {
		t.Error("source started after Stop")
	}
}

func TestController_PauseSuppressesInjection(t *testing.T) {
	dec := &recmock.Decoder{Steps: []recmock.Step{
		{Final: true, Text: "while paused"},
		{Final: true, Text: "after resume"},
	}}
	f := newFixture(t, vadmock.Constant(true), dec, Config{})

	if err := f.ctrl.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if !f.ctrl.TogglePause() {
		t.Fatal("TogglePause did not report paused")
	}

	// Two frames of gate history, then one that reaches the decoder and
	// yields the first final.
	for i := range 3 {
		f.src.Emit(frame(uint64(i), 1))
	}
	waitFor(t, "paused final decoded", func() bool { return dec.ChunkCount() >= 1 })
	time.Sleep(20 * time.Millisecond)
	if got := f.inj.Injected(); len(got) != 0 {
		t.Fatalf("injected %q while paused", got)
	}

	if f.ctrl.TogglePause() {
		t.Fatal("second TogglePause did not report resumed")
	}
	f.src.Emit(frame(3, 1))
	waitFor(t, "post-resume injection", func() bool { return len(f.inj.Injected()) == 1 })
	if got := f.inj.Injected()[0]; got != "after resume " {
		t.Errorf("injected %q, want %q", got, "after resume ")
	}
}

func TestController_StopClearsPause(t *testing.T) {
	f := newFixture(t, vadmock.Constant(true), &recmock.Decoder{}, Config{})

	if err := f.ctrl.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	f.ctrl.TogglePause()
	if err := f.ctrl.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if f.ctrl.Paused() {
		t.Error("pause survived Stop")
	}
}

func TestController_VoiceCommandsApplyBeforeInjection(t *testing.T) {
	dec := &recmock.Decoder{Steps: []recmock.Step{
		{Final: true, Text: "hello comma world"},
	}}
	proc := command.New(map[string]string{"comma": ","})
	f := newFixture(t, vadmock.Constant(true), dec, Config{}, WithProcessor(proc))

	if err := f.ctrl.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	for i := range 3 {
		f.src.Emit(frame(uint64(i), 1))
	}
	waitFor(t, "injection", func() bool { return len(f.inj.Injected()) == 1 })

	if got := f.inj.Injected()[0]; got != "hello, world " {
		t.Errorf("injected %q, want %q", got, "hello, world ")
	}
}

func TestController_ToggleCycles(t *testing.T) {
	f := newFixture(t, vadmock.Constant(true), &recmock.Decoder{}, Config{})

	if err := f.ctrl.Toggle(); err != nil {
		t.Fatalf("first Toggle: %v", err)
	}
	if f.ctrl.State() != StateListening {
		t.Fatalf("state = %v, want listening", f.ctrl.State())
	}
	if err := f.ctrl.Toggle(); err != nil {
		t.Fatalf("second Toggle: %v", err)
	}
	if f.ctrl.State() != StateIdle {
		t.Fatalf("state = %v, want idle", f.ctrl.State())
	}
}

func TestController_CloseIsTerminal(t *testing.T) {
	dec := &recmock.Decoder{}
	f := newFixture(t, vadmock.Constant(true), dec, Config{})

	if err := f.ctrl.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if err := f.ctrl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if dec.CloseCalls != 1 {
		t.Errorf("decoder Close calls = %d, want 1", dec.CloseCalls)
	}
	if err := f.ctrl.Listen(); err == nil {
		t.Error("Listen after Close succeeded")
	}
	if err := f.ctrl.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

// speechRun returns n consecutive speech decisions for a scripted classifier.
func speechRun(n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = true
	}
	return out
}
