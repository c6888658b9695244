// Package mock provides test doubles for the vad package interfaces.
package mock

import (
	"sync"

	"github.com/voxinput/voxinput/pkg/vad"
)

// Classifier is a scripted implementation of vad.Classifier.
//
// Results is consumed one entry per IsSpeech call; once exhausted, Fallback
// is returned for every further call. Every submitted sub-frame length is
// recorded for inspection.
type Classifier struct {
	mu sync.Mutex

	// Results is the scripted sequence of IsSpeech return values.
	Results []bool

	// Fallback is returned once Results is exhausted.
	Fallback bool

	// SubFrameLens records the length of every sub-frame passed to IsSpeech.
	SubFrameLens []int
}

// Compile-time assertion that Classifier implements vad.Classifier.
var _ vad.Classifier = (*Classifier)(nil)

// IsSpeech records the call and returns the next scripted result.
func (c *Classifier) IsSpeech(subFrame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SubFrameLens = append(c.SubFrameLens, len(subFrame))
	if len(c.Results) > 0 {
		r := c.Results[0]
		c.Results = c.Results[1:]
		return r
	}
	return c.Fallback
}

// Constant is a vad.Classifier that always returns the same result.
type Constant bool

// IsSpeech returns the constant value.
func (c Constant) IsSpeech([]byte) bool { return bool(c) }
