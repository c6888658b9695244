// Package mock provides a scripted test double for the recognizer package.
package mock

import (
	"sync"

	"github.com/voxinput/voxinput/pkg/recognizer"
)

// Step scripts the decoder's reaction to a single Accept call.
type Step struct {
	// Final is the value Accept returns. When true, Result returns Text.
	Final bool

	// Text is the partial hypothesis (Final=false) or the utterance result
	// (Final=true) exposed after this Accept call.
	Text string

	// Err, when non-nil, is returned by Accept instead.
	Err error
}

// Decoder is a scripted implementation of recognizer.Decoder.
//
// Steps are consumed one entry per Accept call; once exhausted, Accept
// returns (false, nil) with an empty partial. FinalText is returned by
// FinalResult.
type Decoder struct {
	mu sync.Mutex

	// Steps is the scripted sequence of Accept outcomes.
	Steps []Step

	// FinalText is returned by FinalResult.
	FinalText string

	// FinalErr, when non-nil, is returned by FinalResult instead.
	FinalErr error

	// AcceptedChunks records every chunk passed to Accept.
	AcceptedChunks [][]byte

	// CloseCalls counts Close invocations.
	CloseCalls int

	current Step
	hasStep bool
}

// Compile-time assertion that Decoder implements recognizer.Decoder.
var _ recognizer.Decoder = (*Decoder)(nil)

// Accept records the chunk and plays back the next scripted step.
func (d *Decoder) Accept(chunk []byte) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	d.AcceptedChunks = append(d.AcceptedChunks, cp)

	if len(d.Steps) == 0 {
		d.current = Step{}
		d.hasStep = false
		return false, nil
	}
	d.current = d.Steps[0]
	d.Steps = d.Steps[1:]
	d.hasStep = true
	if d.current.Err != nil {
		return false, d.current.Err
	}
	return d.current.Final, nil
}

// Result returns the text of the last final step.
func (d *Decoder) Result() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.hasStep && d.current.Final {
		return d.current.Text, nil
	}
	return "", nil
}

// Partial returns the text of the last non-final step.
func (d *Decoder) Partial() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.hasStep && !d.current.Final {
		return d.current.Text, nil
	}
	return "", nil
}

// FinalResult returns the configured FinalText and clears it, so a second
// flush yields nothing — mirroring real decoder behaviour.
func (d *Decoder) FinalResult() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FinalErr != nil {
		err := d.FinalErr
		d.FinalErr = nil
		return "", err
	}
	text := d.FinalText
	d.FinalText = ""
	d.current = Step{}
	d.hasStep = false
	return text, nil
}

// ChunkCount returns the number of Accept calls so far. Safe to call while
// another goroutine is feeding the decoder.
func (d *Decoder) ChunkCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.AcceptedChunks)
}

// Close counts the call.
func (d *Decoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CloseCalls++
	return nil
}
