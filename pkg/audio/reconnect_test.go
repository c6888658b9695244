package audio_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voxinput/voxinput/pkg/audio"
	"github.com/voxinput/voxinput/pkg/audio/mock"
)

var errNoDevice = errors.New("no device")

func TestReconnect_SucceedsFirstAttempt(t *testing.T) {
	src := &mock.Source{}
	ok := audio.Reconnect(context.Background(), src, func(audio.Frame) {}, 3, time.Millisecond)
	if !ok {
		t.Fatal("expected reconnect to succeed")
	}
	if src.StartCalls != 1 {
		t.Errorf("StartCalls = %d, want 1", src.StartCalls)
	}
	if src.StopCalls != 1 {
		t.Errorf("StopCalls = %d, want 1 (stop+start cycle)", src.StopCalls)
	}
}

func TestReconnect_ExhaustsAfterExactlyMaxAttempts(t *testing.T) {
	src := &mock.Source{
		StartErrs: []error{errNoDevice, errNoDevice, errNoDevice, errNoDevice},
	}
	ok := audio.Reconnect(context.Background(), src, func(audio.Frame) {}, 4, time.Millisecond)
	if ok {
		t.Fatal("expected reconnect to fail")
	}
	if src.StartCalls != 4 {
		t.Errorf("StartCalls = %d, want exactly 4", src.StartCalls)
	}
}

func TestReconnect_SucceedsMidSequence(t *testing.T) {
	src := &mock.Source{
		StartErrs: []error{errNoDevice, errNoDevice, nil},
	}
	ok := audio.Reconnect(context.Background(), src, func(audio.Frame) {}, 5, time.Millisecond)
	if !ok {
		t.Fatal("expected reconnect to succeed on third attempt")
	}
	if src.StartCalls != 3 {
		t.Errorf("StartCalls = %d, want 3", src.StartCalls)
	}
}

func TestReconnect_BackoffDoublesAndCaps(t *testing.T) {
	// 6 failing attempts with a 10 ms initial delay: the waits between
	// attempts should be 10, 20, 40, 80, 100 ms (capped at 10×initial).
	src := &mock.Source{
		StartErrs: []error{errNoDevice, errNoDevice, errNoDevice, errNoDevice, errNoDevice, errNoDevice},
	}
	initial := 10 * time.Millisecond

	start := time.Now()
	ok := audio.Reconnect(context.Background(), src, func(audio.Frame) {}, 6, initial)
	elapsed := time.Since(start)

	if ok {
		t.Fatal("expected reconnect to fail")
	}
	want := 250 * time.Millisecond // 10+20+40+80+100
	if elapsed < want {
		t.Errorf("elapsed = %v, want >= %v (sum of backoff delays)", elapsed, want)
	}
	// Without the cap the last wait would be 160 ms (total 310 ms); allow
	// generous scheduling slack below that bound.
	if elapsed > 305*time.Millisecond {
		t.Errorf("elapsed = %v, want < 305ms (delay cap not applied?)", elapsed)
	}
}

func TestReconnect_CancelledContextAborts(t *testing.T) {
	src := &mock.Source{
		StartErrs: []error{errNoDevice, errNoDevice, errNoDevice},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok := audio.Reconnect(ctx, src, func(audio.Frame) {}, 3, time.Millisecond)
	if ok {
		t.Fatal("expected reconnect to fail under cancelled context")
	}
	if src.StartCalls != 0 {
		t.Errorf("StartCalls = %d, want 0 after pre-cancelled context", src.StartCalls)
	}
}
