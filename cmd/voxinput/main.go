// Command voxinput is the main entry point for the voxinput dictation
// service: push-to-talk speech recognition that types into whatever window
// has focus.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/voxinput/voxinput/internal/app"
	"github.com/voxinput/voxinput/internal/config"
	"github.com/voxinput/voxinput/internal/hotkey"
	"github.com/voxinput/voxinput/internal/observe"
	paudio "github.com/voxinput/voxinput/pkg/audio/portaudio"
	"github.com/voxinput/voxinput/pkg/inject"
	"github.com/voxinput/voxinput/pkg/recognizer"
	"github.com/voxinput/voxinput/pkg/recognizer/voskws"
	"github.com/voxinput/voxinput/pkg/recognizer/whisper"
)

// version is stamped by the build via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("voxinput", version)
		return 0
	}

	// ── Environment bootstrap ──────────────────────────────────────────────────
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "voxinput: loading .env: %v\n", err)
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxinput: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxinput: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger, logLevel := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voxinput starting",
		"version", version,
		"config", *configPath,
		"log_level", cfg.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Metrics provider ──────────────────────────────────────────────────────
	if cfg.Metrics.Enabled {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
			ServiceName:    "voxinput",
			ServiceVersion: version,
		})
		if err != nil {
			slog.Error("failed to initialise metrics provider", "err", err)
			return 1
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				slog.Warn("metrics shutdown error", "err", err)
			}
		}()
	}

	// ── Backend registry ──────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinBackends(ctx, reg, cfg)

	// ── Platform components ───────────────────────────────────────────────────
	comps, err := buildComponents(cfg, reg)
	if err != nil {
		slog.Error("failed to build components", "err", err)
		return 1
	}

	printStartupSummary(cfg)

	application, err := app.New(cfg, comps,
		app.WithConfigFile(*configPath),
		app.WithLogLevelVar(logLevel),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	defer application.Shutdown()

	slog.Info("ready",
		"toggle_hotkey", cfg.Hotkeys.Toggle,
		"hint", "press the toggle hotkey to start dictating",
	)

	if err := application.Run(ctx); err != nil {
		if errors.Is(err, app.ErrQuitRequested) {
			slog.Info("quit hotkey pressed")
		} else if !errors.Is(err, context.Canceled) {
			slog.Error("run error", "err", err)
			return 1
		}
	}

	slog.Info("goodbye")
	return 0
}

// ── Backend wiring ────────────────────────────────────────────────────────────

// registerBuiltinBackends wires the shipped decoder and injector factories
// into reg. Decoders close over ctx so connection setup respects shutdown.
func registerBuiltinBackends(ctx context.Context, reg *config.Registry, cfg *config.Config) {
	reg.RegisterDecoder(config.BackendVosk, func(rc config.RecognizerConfig) (recognizer.Decoder, error) {
		return voskws.Dial(ctx, rc.ServerURL,
			voskws.WithSampleRate(cfg.Audio.SampleRate),
		)
	})

	reg.RegisterDecoder(config.BackendWhisper, func(rc config.RecognizerConfig) (recognizer.Decoder, error) {
		var opts []whisper.Option
		if rc.Language != "" {
			opts = append(opts, whisper.WithLanguage(rc.Language))
		}
		opts = append(opts, whisper.WithSampleRate(cfg.Audio.SampleRate))
		return whisper.New(rc.ModelPath, opts...)
	})

	for _, method := range []inject.Method{inject.MethodClipboard, inject.MethodSendInput, inject.MethodNoop} {
		reg.RegisterInjector(method, func(ic config.InputConfig) (inject.Injector, error) {
			return inject.New(ic.Method)
		})
	}
}

// buildComponents instantiates the platform-facing pieces from the registry
// and the config: microphone source, decoder, injector, hotkey source.
func buildComponents(cfg *config.Config, reg *config.Registry) (app.Components, error) {
	var comps app.Components

	comps.Source = paudio.New(paudio.Config{
		SampleRate:     cfg.Audio.SampleRate,
		ChunkSize:      cfg.Audio.ChunkSize,
		Channels:       cfg.Audio.Channels,
		Device:         cfg.Audio.Device,
		ErrorThreshold: cfg.Audio.ErrorThreshold,
	})

	dec, err := reg.CreateDecoder(cfg.Recognizer)
	if err != nil {
		return comps, fmt.Errorf("create %q decoder: %w", cfg.Recognizer.Backend, err)
	}
	comps.Decoder = dec
	slog.Info("decoder ready", "backend", cfg.Recognizer.Backend)

	inj, err := reg.CreateInjector(cfg.Input)
	if err != nil {
		return comps, fmt.Errorf("create %q injector: %w", cfg.Input.Method, err)
	}
	comps.Injector = inj

	bindings, err := hotkeyBindings(cfg.Hotkeys)
	if err != nil {
		return comps, err
	}
	hk, err := hotkey.NewSource(bindings)
	if err != nil {
		return comps, fmt.Errorf("register hotkeys: %w", err)
	}
	comps.Hotkeys = hk

	return comps, nil
}

// hotkeyBindings parses the configured chords into hotkey bindings.
func hotkeyBindings(hc config.HotkeysConfig) ([]hotkey.Binding, error) {
	var bindings []hotkey.Binding

	toggle, err := hotkey.ParseChord(hc.Toggle)
	if err != nil {
		return nil, fmt.Errorf("hotkeys.toggle: %w", err)
	}
	bindings = append(bindings, hotkey.Binding{Chord: toggle, Action: hotkey.ActionToggle})

	if hc.Pause != "" {
		pause, err := hotkey.ParseChord(hc.Pause)
		if err != nil {
			return nil, fmt.Errorf("hotkeys.pause: %w", err)
		}
		bindings = append(bindings, hotkey.Binding{Chord: pause, Action: hotkey.ActionPause})
	}

	if hc.Quit != "" {
		quit, err := hotkey.ParseChord(hc.Quit)
		if err != nil {
			return nil, fmt.Errorf("hotkeys.quit: %w", err)
		}
		bindings = append(bindings, hotkey.Binding{Chord: quit, Action: hotkey.ActionQuit})
	}
	return bindings, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        voxinput — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Backend", string(cfg.Recognizer.Backend))
	printRow("Input method", string(cfg.Input.Method))
	printRow("Toggle hotkey", cfg.Hotkeys.Toggle)
	if cfg.VAD.Enabled {
		printRow("VAD", fmt.Sprintf("on (level %d)", cfg.VAD.Aggressiveness))
	} else {
		printRow("VAD", "off")
	}
	if cfg.Metrics.Enabled {
		printRow("Metrics", cfg.Metrics.ListenAddr)
	} else {
		printRow("Metrics", "(disabled)")
	}
	if cfg.Stats.Enabled {
		printRow("Stats", cfg.Stats.Path)
	} else {
		printRow("Stats", "(disabled)")
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(kind, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

// newLogger builds the default text logger with a mutable level so config
// reloads can change verbosity at runtime.
func newLogger(level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	lvl := &slog.LevelVar{}
	lvl.Set(level.SlogLevel())
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), lvl
}
