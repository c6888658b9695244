// Package app wires all voxinput subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes until the context is cancelled or the quit hotkey
// fires, and Shutdown tears everything down in order.
//
// For testing, inject mock implementations through the Components struct
// (audio source, decoder, injector, hotkey source); New creates everything
// else from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxinput/voxinput/internal/command"
	"github.com/voxinput/voxinput/internal/config"
	"github.com/voxinput/voxinput/internal/hotkey"
	"github.com/voxinput/voxinput/internal/notify"
	"github.com/voxinput/voxinput/internal/observe"
	"github.com/voxinput/voxinput/internal/pipeline"
	"github.com/voxinput/voxinput/internal/stats"
	"github.com/voxinput/voxinput/pkg/audio"
	"github.com/voxinput/voxinput/pkg/inject"
	"github.com/voxinput/voxinput/pkg/recognizer"
	"github.com/voxinput/voxinput/pkg/vad"
)

// ErrQuitRequested is returned by Run when the quit hotkey fires. Callers
// treat it as a clean exit.
var ErrQuitRequested = errors.New("app: quit requested")

// shutdownTimeout bounds graceful teardown of the metrics server.
const shutdownTimeout = 5 * time.Second

// Components holds the platform-facing pieces main.go builds through the
// config registry. All four are required.
type Components struct {
	Source   audio.Source
	Decoder  recognizer.Decoder
	Injector inject.Injector
	Hotkeys  hotkey.Source
}

// Option is a functional option for New. Use these to inject test doubles or
// wiring that only main.go knows about.
type Option func(*App)

// WithNotifier injects a notifier instead of creating one from config.
func WithNotifier(n notify.Notifier) Option {
	return func(a *App) { a.notifier = n }
}

// WithLogLevelVar hands the App the level var behind the default logger so
// config reloads can change verbosity live.
func WithLogLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = v }
}

// WithConfigFile enables the config file watcher on path, applying
// non-structural changes (voice commands, VAD tuning, log level) live.
func WithConfigFile(path string) Option {
	return func(a *App) { a.cfgPath = path }
}

// App owns all subsystem lifetimes and orchestrates the dictation pipeline.
type App struct {
	cfg     *config.Config
	cfgPath string
	comps   Components

	notifier   notify.Notifier
	recorder   *stats.Recorder
	proc       *command.Processor
	ctrl       *pipeline.Controller
	watcher    *config.Watcher
	metricsSrv *observe.MetricsServer
	logLevel   *slog.LevelVar

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// New assembles the application from cfg and the platform components.
func New(cfg *config.Config, comps Components, opts ...Option) (*App, error) {
	if comps.Source == nil || comps.Decoder == nil || comps.Injector == nil || comps.Hotkeys == nil {
		return nil, errors.New("app: all components (source, decoder, injector, hotkeys) are required")
	}

	a := &App{cfg: cfg, comps: comps}
	for _, o := range opts {
		o(a)
	}

	if a.notifier == nil {
		a.notifier = notify.New("VoxInput", cfg.Notifications.Enabled)
	}

	if cfg.Stats.Enabled {
		rec, err := stats.NewRecorder(cfg.Stats.Path)
		if err != nil {
			return nil, fmt.Errorf("app: init stats: %w", err)
		}
		a.recorder = rec
		a.closers = append(a.closers, func() error {
			rec.Close()
			return nil
		})
		slog.Info("usage stats enabled", "path", cfg.Stats.Path, "session", rec.SessionID())
	}

	a.proc = command.New(cfg.VoiceCommands)

	gate, err := buildGate(cfg)
	if err != nil {
		return nil, fmt.Errorf("app: init vad gate: %w", err)
	}

	captureDir := ""
	if cfg.Capture.Enabled {
		captureDir = cfg.Capture.Dir
		if err := os.MkdirAll(captureDir, 0o755); err != nil {
			return nil, fmt.Errorf("app: create capture dir: %w", err)
		}
	}

	eng := recognizer.NewEngine(string(cfg.Recognizer.Backend), comps.Decoder)
	ctrlOpts := []pipeline.Option{
		pipeline.WithProcessor(a.proc),
		pipeline.WithNotifier(a.notifier),
	}
	if a.recorder != nil {
		ctrlOpts = append(ctrlOpts, pipeline.WithStats(a.recorder))
	}
	a.ctrl = pipeline.NewController(
		comps.Source, gate, eng, comps.Injector,
		string(cfg.Recognizer.Backend), string(cfg.Input.Method),
		pipeline.Config{
			ReconnectAttempts: cfg.Audio.ReconnectAttempts,
			ReconnectDelay:    time.Duration(cfg.Audio.ReconnectDelayMs) * time.Millisecond,
			CaptureDir:        captureDir,
		},
		ctrlOpts...,
	)
	a.closers = append([]func() error{a.ctrl.Close, comps.Hotkeys.Close}, a.closers...)

	if cfg.Metrics.Enabled {
		a.metricsSrv = observe.NewMetricsServer(cfg.Metrics.ListenAddr)
	}

	if a.cfgPath != "" {
		w, err := config.NewWatcher(a.cfgPath, a.onConfigChange)
		if err != nil {
			return nil, fmt.Errorf("app: start config watcher: %w", err)
		}
		a.watcher = w
	}

	return a, nil
}

// Controller exposes the pipeline controller, mainly for tests and for
// surfaces (tray menus) that trigger actions directly.
func (a *App) Controller() *pipeline.Controller {
	return a.ctrl
}

// Run executes the application until ctx is cancelled or the quit hotkey
// fires. It drives the hotkey loop and the optional metrics endpoint.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.metricsSrv != nil {
		g.Go(a.metricsSrv.Start)
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return a.metricsSrv.Shutdown(sctx)
		})
	}

	g.Go(func() error { return a.hotkeyLoop(gctx) })

	if a.cfg.AutoStart {
		if err := a.ctrl.Listen(); err != nil {
			slog.Error("auto-start failed, waiting for hotkey", "error", err)
		}
	}

	slog.Info("voxinput running",
		"backend", a.cfg.Recognizer.Backend,
		"input_method", a.cfg.Input.Method,
		"toggle_hotkey", a.cfg.Hotkeys.Toggle,
	)

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// hotkeyLoop routes hotkey events to the controller until ctx is done or the
// source closes.
func (a *App) hotkeyLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-a.comps.Hotkeys.Events():
			if !ok {
				return nil
			}
			slog.Debug("hotkey pressed", "chord", ev.Chord.String(), "action", ev.Action.String())
			switch ev.Action {
			case hotkey.ActionToggle:
				if err := a.ctrl.Toggle(); err != nil {
					slog.Error("toggle failed", "error", err)
				}
			case hotkey.ActionPause:
				paused := a.ctrl.TogglePause()
				slog.Info("pause toggled", "paused", paused)
			case hotkey.ActionQuit:
				return ErrQuitRequested
			}
		}
	}
}

// onConfigChange applies hot-reloadable settings from a changed config file.
func (a *App) onConfigChange(old, updated *config.Config) {
	diff := config.Diff(old, updated)
	if diff.Empty() {
		return
	}

	if diff.VoiceCommandsChanged {
		a.proc.UpdateRules(updated.VoiceCommands)
		slog.Info("voice commands reloaded", "count", len(updated.VoiceCommands))
	}
	if diff.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(diff.NewLogLevel.SlogLevel())
		slog.Info("log level changed", "level", diff.NewLogLevel)
	}
	if diff.VADChanged {
		gate, err := buildGate(updated)
		if err != nil {
			slog.Warn("invalid vad settings in reloaded config", "error", err)
		} else {
			a.ctrl.UpdateGate(gate)
			slog.Info("vad tuning updated",
				"enabled", updated.VAD.Enabled,
				"aggressiveness", updated.VAD.Aggressiveness,
			)
		}
	}
	if diff.RestartRequired {
		slog.Warn("config changes require a restart to take effect")
		a.notifier.Notify("Restart required", "Some config changes only take effect after a restart")
	}
}

// Shutdown tears down all subsystems in order. Safe to call more than once.
func (a *App) Shutdown() {
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		if a.watcher != nil {
			a.watcher.Stop()
		}
		for i, closer := range a.closers {
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "error", err)
			}
		}
		slog.Info("shutdown complete")
	})
}

// buildGate constructs the voice-activity gate from config. A disabled VAD
// yields a pass-through gate.
func buildGate(cfg *config.Config) (*vad.Gate, error) {
	var cls vad.Classifier
	if cfg.VAD.Enabled {
		cls = vad.NewEnergyClassifier(cfg.VAD.Aggressiveness)
	}
	return vad.NewGate(vad.GateConfig{
		SampleRate: cfg.Audio.SampleRate,
		SubFrameMs: cfg.VAD.SubFrameMs,
		Classifier: cls,
	})
}
