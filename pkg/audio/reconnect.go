package audio

import (
	"context"
	"log/slog"
	"time"
)

// backoffCapFactor bounds the exponential backoff: the delay between attempts
// never exceeds 10× the initial delay.
const backoffCapFactor = 10

// Reconnect retries a stop+start cycle on src with exponential backoff until
// one Start succeeds or maxAttempts Start calls have failed. The delay before
// each retry doubles per attempt, capped at 10× initialDelay.
//
// Reconnect never returns an error: exhaustion is reported as false and
// logged, because a dictation session losing its microphone must not take the
// process down with it. Cancelling ctx aborts the sequence at the next
// attempt boundary — no partial rollback is needed since every attempt is a
// fresh stop/start cycle.
func Reconnect(ctx context.Context, src Source, onFrame func(Frame), maxAttempts int, initialDelay time.Duration) bool {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if initialDelay <= 0 {
		initialDelay = time.Second
	}

	delay := initialDelay
	maxDelay := backoffCapFactor * initialDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			slog.Info("reconnect cancelled", "attempt", attempt)
			return false
		}

		_ = src.Stop()
		if err := src.Start(onFrame); err == nil {
			slog.Info("audio source reconnected", "attempt", attempt)
			return true
		} else {
			slog.Warn("reconnect attempt failed",
				"attempt", attempt,
				"max_attempts", maxAttempts,
				"backoff", delay,
				"error", err,
			)
		}

		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}

	slog.Error("reconnect failed after max attempts", "max_attempts", maxAttempts)
	return false
}
