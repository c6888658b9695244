// Package stats tracks dictation usage: utterances recognised, words
// injected, decoder errors and listening time, both for the current session
// and accumulated across runs in a local JSON file.
//
// The store is advisory. A corrupt or unreadable file is replaced with a
// fresh one rather than failing startup, and persistence errors are logged
// and swallowed — losing a counter must never take the dictation loop down.
package stats

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// Counters is one bucket of usage numbers, used for both the current
// session and the all-time totals.
type Counters struct {
	Utterances   int64 `json:"utterances"`
	Words        int64 `json:"words"`
	DecodeErrors int64 `json:"decode_errors"`
	Injections   int64 `json:"injections"`
	ListeningMs  int64 `json:"listening_ms"`
}

// Session describes the currently running dictation session.
type Session struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Counters  Counters  `json:"counters"`
}

// fileSchema is the on-disk layout of the stats file.
type fileSchema struct {
	UpdatedAt   time.Time `json:"updated_at"`
	Sessions    int64     `json:"sessions"`
	Totals      Counters  `json:"totals"`
	LastSession *Session  `json:"last_session,omitempty"`
}

// Recorder accumulates usage counters and persists them to a JSON file.
// Thread-safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	path    string
	totals  Counters
	session Session
	runs    int64
}

// NewRecorder opens (or creates) the stats file at path and starts a new
// session. Prior totals are carried over; a corrupt file is discarded with a
// warning.
func NewRecorder(path string) (*Recorder, error) {
	r := &Recorder{
		path: path,
		session: Session{
			ID:        uuid.NewString(),
			StartedAt: time.Now().UTC(),
		},
	}

	prev, err := load(path)
	switch {
	case err == nil:
		r.totals = prev.Totals
		r.runs = prev.Sessions
	case errors.Is(err, fs.ErrNotExist):
		// First run.
	default:
		slog.Warn("stats file unreadable, starting fresh", "path", path, "error", err)
	}
	r.runs++

	return r, nil
}

// SessionID returns the identifier of the current session.
func (r *Recorder) SessionID() string {
	return r.session.ID
}

// RecordUtterance counts one finalised utterance and the words it carried.
func (r *Recorder) RecordUtterance(text string) {
	words := int64(CountWords(text))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session.Counters.Utterances++
	r.session.Counters.Words += words
	r.totals.Utterances++
	r.totals.Words += words
}

// RecordDecodeError counts one utterance lost to a decoder failure.
func (r *Recorder) RecordDecodeError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session.Counters.DecodeErrors++
	r.totals.DecodeErrors++
}

// RecordInjection counts one successful text delivery.
func (r *Recorder) RecordInjection() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session.Counters.Injections++
	r.totals.Injections++
}

// AddListening accumulates time spent in the listening state.
func (r *Recorder) AddListening(d time.Duration) {
	if d <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session.Counters.ListeningMs += d.Milliseconds()
	r.totals.ListeningMs += d.Milliseconds()
}

// Snapshot returns copies of the session and all-time counters.
func (r *Recorder) Snapshot() (session, totals Counters) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session.Counters, r.totals
}

// Flush writes the current counters to disk. Safe to call at any time; the
// file is replaced atomically via a temp file rename.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	out := fileSchema{
		UpdatedAt:   time.Now().UTC(),
		Sessions:    r.runs,
		Totals:      r.totals,
		LastSession: &Session{ID: r.session.ID, StartedAt: r.session.StartedAt, Counters: r.session.Counters},
	}
	r.mu.Unlock()

	data, err := sonic.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("stats: marshal: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("stats: write: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("stats: rename: %w", err)
	}
	return nil
}

// Close flushes the recorder; persistence failures are logged, not returned,
// because shutdown must not fail over a stats file.
func (r *Recorder) Close() {
	if err := r.Flush(); err != nil {
		slog.Warn("failed to persist usage stats", "error", err)
	}
}

// CountWords returns the number of whitespace-separated words in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// load reads and parses the stats file at path.
func load(path string) (fileSchema, error) {
	var parsed fileSchema
	data, err := os.ReadFile(path)
	if err != nil {
		return parsed, err
	}
	if err := sonic.Unmarshal(data, &parsed); err != nil {
		return parsed, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return parsed, nil
}
