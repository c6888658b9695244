package vad

import "github.com/voxinput/voxinput/pkg/audio"

// Aggressiveness → RMS threshold, in 16-bit PCM units. Higher aggressiveness
// filters more audio as silence. Level 1 (300) corresponds to near-silence on
// a typical desktop microphone.
var energyThresholds = [...]float64{150, 300, 600, 1000}

// EnergyClassifier classifies sub-frames by root-mean-square energy. It is
// the default classifier when no model-based detector is configured: fast,
// dependency-free, and good enough to keep silence out of the recogniser.
//
// Safe for concurrent use; the classifier is stateless.
type EnergyClassifier struct {
	threshold float64
}

// Compile-time assertion that EnergyClassifier implements Classifier.
var _ Classifier = (*EnergyClassifier)(nil)

// NewEnergyClassifier creates an EnergyClassifier for the given
// aggressiveness level (0–3, webrtcvad convention). Out-of-range levels are
// clamped.
func NewEnergyClassifier(aggressiveness int) *EnergyClassifier {
	if aggressiveness < 0 {
		aggressiveness = 0
	}
	if aggressiveness >= len(energyThresholds) {
		aggressiveness = len(energyThresholds) - 1
	}
	return &EnergyClassifier{threshold: energyThresholds[aggressiveness]}
}

// IsSpeech reports whether the sub-frame's RMS energy exceeds the threshold.
func (c *EnergyClassifier) IsSpeech(subFrame []byte) bool {
	return audio.RMS(subFrame) >= c.threshold
}
