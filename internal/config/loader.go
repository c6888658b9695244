package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/voxinput/voxinput/pkg/inject"
)

// Defaults applied by [applyDefaults] when the corresponding field is unset.
const (
	DefaultSampleRate        = 16000
	DefaultChunkSize         = 4000
	DefaultChannels          = 1
	DefaultErrorThreshold    = 5
	DefaultReconnectAttempts = 5
	DefaultReconnectDelayMs  = 500
	DefaultSubFrameMs        = 30
	DefaultToggleHotkey      = "ctrl+shift+v"
	DefaultMetricsAddr       = "localhost:9090"
	DefaultStatsPath         = "voxinput_stats.json"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills unset fields in place.
func applyDefaults(cfg *Config) {
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = DefaultSampleRate
	}
	if cfg.Audio.ChunkSize <= 0 {
		cfg.Audio.ChunkSize = DefaultChunkSize
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = DefaultChannels
	}
	if cfg.Audio.ErrorThreshold <= 0 {
		cfg.Audio.ErrorThreshold = DefaultErrorThreshold
	}
	if cfg.Audio.ReconnectAttempts <= 0 {
		cfg.Audio.ReconnectAttempts = DefaultReconnectAttempts
	}
	if cfg.Audio.ReconnectDelayMs <= 0 {
		cfg.Audio.ReconnectDelayMs = DefaultReconnectDelayMs
	}
	if cfg.VAD.SubFrameMs == 0 {
		cfg.VAD.SubFrameMs = DefaultSubFrameMs
	}
	if cfg.Recognizer.Backend == "" {
		cfg.Recognizer.Backend = BackendVosk
	}
	if cfg.Hotkeys.Toggle == "" {
		cfg.Hotkeys.Toggle = DefaultToggleHotkey
	}
	if cfg.Input.Method == "" {
		cfg.Input.Method = inject.MethodClipboard
	}
	if cfg.Metrics.ListenAddr == "" {
		cfg.Metrics.ListenAddr = DefaultMetricsAddr
	}
	if cfg.Stats.Path == "" {
		cfg.Stats.Path = DefaultStatsPath
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = LogInfo
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if cfg.Audio.Channels != 1 {
		errs = append(errs, fmt.Errorf("audio.channels %d is unsupported; only mono capture is implemented", cfg.Audio.Channels))
	}

	switch cfg.VAD.SubFrameMs {
	case 10, 20, 30:
	default:
		errs = append(errs, fmt.Errorf("vad.sub_frame_ms %d is invalid; valid values: 10, 20, 30", cfg.VAD.SubFrameMs))
	}
	if cfg.VAD.Aggressiveness < 0 || cfg.VAD.Aggressiveness > 3 {
		errs = append(errs, fmt.Errorf("vad.aggressiveness %d is out of range [0, 3]", cfg.VAD.Aggressiveness))
	}

	if !cfg.Recognizer.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("recognizer.backend %q is invalid; valid values: vosk, whisper", cfg.Recognizer.Backend))
	}
	if cfg.Recognizer.Backend == BackendVosk && cfg.Recognizer.ServerURL == "" {
		errs = append(errs, errors.New("recognizer.server_url is required for the vosk backend"))
	}
	if cfg.Recognizer.Backend == BackendWhisper && cfg.Recognizer.ModelPath == "" {
		errs = append(errs, errors.New("recognizer.model_path is required for the whisper backend"))
	}

	switch cfg.Input.Method {
	case inject.MethodClipboard, inject.MethodSendInput, inject.MethodNoop:
	default:
		errs = append(errs, fmt.Errorf("input.method %q is invalid; valid values: clipboard, sendinput, noop", cfg.Input.Method))
	}

	for phrase, replacement := range cfg.VoiceCommands {
		if phrase == "" {
			errs = append(errs, errors.New("voice_commands contains an empty phrase"))
		}
		if replacement == "" {
			errs = append(errs, fmt.Errorf("voice_commands[%q] has an empty replacement", phrase))
		}
	}

	if cfg.Capture.Enabled && cfg.Capture.Dir == "" {
		errs = append(errs, errors.New("capture.dir is required when capture.enabled is true"))
	}

	return errors.Join(errs...)
}
