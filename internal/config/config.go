// Package config provides the configuration schema, loader, decoder backend
// registry, and file watcher for the voxinput dictation service.
package config

import (
	"log/slog"

	"github.com/voxinput/voxinput/pkg/inject"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel converts l to the corresponding slog.Level. Unknown values map
// to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Backend selects the speech recognition decoder implementation.
type Backend string

const (
	// BackendVosk streams audio to a vosk-server over WebSocket.
	BackendVosk Backend = "vosk"

	// BackendWhisper transcribes locally through the whisper.cpp bindings.
	BackendWhisper Backend = "whisper"
)

// IsValid reports whether b is a recognised backend.
func (b Backend) IsValid() bool {
	return b == BackendVosk || b == BackendWhisper
}

// Config is the root configuration structure for voxinput.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Audio      AudioConfig      `yaml:"audio"`
	VAD        VADConfig        `yaml:"vad"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	Hotkeys    HotkeysConfig    `yaml:"hotkeys"`
	Input      InputConfig      `yaml:"input"`

	// VoiceCommands maps spoken phrases to replacement text, typically
	// punctuation ("comma" → ",") or layout ("new paragraph" → "\n\n").
	VoiceCommands map[string]string `yaml:"voice_commands"`

	Notifications NotificationsConfig `yaml:"notifications"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Stats         StatsConfig         `yaml:"stats"`
	Capture       CaptureConfig       `yaml:"capture"`

	// AutoStart activates dictation immediately on launch instead of
	// waiting for the hotkey.
	AutoStart bool `yaml:"auto_start"`

	// LogLevel controls verbosity. Defaults to info.
	LogLevel LogLevel `yaml:"log_level"`
}

// AudioConfig holds microphone capture settings.
type AudioConfig struct {
	// SampleRate is the capture rate in Hz. Must match what the decoder
	// expects. Defaults to 16000.
	SampleRate int `yaml:"sample_rate"`

	// ChunkSize is the number of samples per capture frame.
	// Defaults to 4000 (250 ms at 16 kHz).
	ChunkSize int `yaml:"chunk_size"`

	// Channels is the capture channel count. Only mono is supported.
	Channels int `yaml:"channels"`

	// Device selects an input device by substring match on its name.
	// Empty selects the system default.
	Device string `yaml:"device"`

	// ErrorThreshold is the number of consecutive read failures that marks
	// the stream as degraded. Defaults to 5.
	ErrorThreshold int `yaml:"error_threshold"`

	// ReconnectAttempts bounds the device reconnect loop after a stream
	// failure. Defaults to 5.
	ReconnectAttempts int `yaml:"reconnect_attempts"`

	// ReconnectDelayMs is the initial reconnect backoff delay in
	// milliseconds; each attempt doubles it up to a cap. Defaults to 500.
	ReconnectDelayMs int `yaml:"reconnect_delay_ms"`
}

// VADConfig holds voice-activity gating settings.
type VADConfig struct {
	// Enabled turns the gate on. When false all audio reaches the decoder.
	Enabled bool `yaml:"enabled"`

	// Aggressiveness is the 0–3 silence filtering level (webrtcvad
	// convention). Higher values discard more audio.
	Aggressiveness int `yaml:"aggressiveness"`

	// SubFrameMs is the classifier sub-frame duration: 10, 20, or 30.
	// Defaults to 30.
	SubFrameMs int `yaml:"sub_frame_ms"`
}

// RecognizerConfig selects and configures the speech decoder backend.
type RecognizerConfig struct {
	// Backend selects the decoder implementation. Defaults to vosk.
	Backend Backend `yaml:"backend"`

	// ServerURL is the vosk-server WebSocket endpoint
	// (e.g. "ws://localhost:2700"). Required for the vosk backend.
	ServerURL string `yaml:"server_url"`

	// ModelPath is the whisper.cpp model file. Required for the whisper
	// backend.
	ModelPath string `yaml:"model_path"`

	// Language is the BCP-47 recognition language (e.g. "en", "ru").
	Language string `yaml:"language"`
}

// HotkeysConfig maps global hotkeys to pipeline actions. Chords use the
// "mod+mod+key" notation, e.g. "ctrl+shift+v".
type HotkeysConfig struct {
	// Toggle flips between listening and idle. Defaults to "ctrl+shift+v".
	Toggle string `yaml:"toggle"`

	// Pause suppresses typing while keeping the session alive. Empty
	// disables the hotkey.
	Pause string `yaml:"pause"`

	// Quit shuts the whole service down. Empty disables the hotkey.
	Quit string `yaml:"quit"`
}

// InputConfig selects the text delivery strategy.
type InputConfig struct {
	// Method is one of clipboard, sendinput, noop. Defaults to clipboard.
	Method inject.Method `yaml:"method"`
}

// NotificationsConfig controls desktop state-change notifications.
type NotificationsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// ListenAddr is the metrics HTTP listen address.
	// Defaults to "localhost:9090".
	ListenAddr string `yaml:"listen_addr"`
}

// StatsConfig controls session statistics persistence.
type StatsConfig struct {
	Enabled bool `yaml:"enabled"`

	// Path is the JSON statistics file. Defaults to "voxinput_stats.json".
	Path string `yaml:"path"`
}

// CaptureConfig controls debug WAV dumps of completed utterances.
type CaptureConfig struct {
	Enabled bool `yaml:"enabled"`

	// Dir is the directory utterance WAV files are written to.
	Dir string `yaml:"dir"`
}
