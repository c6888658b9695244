package config

import "maps"

// ConfigDiff describes what changed between two configs. Hot-reloadable
// changes (voice commands, VAD tuning, log level, notifications) are applied
// live by the application; RestartRequired covers everything else.
type ConfigDiff struct {
	VoiceCommandsChanged bool
	VADChanged           bool
	LogLevelChanged      bool
	NewLogLevel          LogLevel
	NotificationsChanged bool

	// RestartRequired is set when audio, recognizer, input, metrics,
	// stats, capture, or hotkey settings changed. Those are wired into
	// running goroutines and native resources and only take effect on the
	// next start.
	RestartRequired bool
}

// Empty reports whether nothing of interest changed.
func (d ConfigDiff) Empty() bool {
	return !d.VoiceCommandsChanged && !d.VADChanged && !d.LogLevelChanged &&
		!d.NotificationsChanged && !d.RestartRequired
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if !maps.Equal(old.VoiceCommands, new.VoiceCommands) {
		d.VoiceCommandsChanged = true
	}
	if old.VAD != new.VAD {
		d.VADChanged = true
	}
	if old.LogLevel != new.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.LogLevel
	}
	if old.Notifications != new.Notifications {
		d.NotificationsChanged = true
	}

	if old.Audio != new.Audio ||
		old.Recognizer != new.Recognizer ||
		old.Input != new.Input ||
		old.Hotkeys != new.Hotkeys ||
		old.Metrics != new.Metrics ||
		old.Stats != new.Stats ||
		old.Capture != new.Capture ||
		old.AutoStart != new.AutoStart {
		d.RestartRequired = true
	}

	return d
}
