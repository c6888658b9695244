package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/voxinput/voxinput/pkg/inject"
	"github.com/voxinput/voxinput/pkg/recognizer"
)

// ErrBackendNotRegistered is returned by Create* methods when no factory has
// been registered under the requested name.
var ErrBackendNotRegistered = errors.New("config: backend not registered")

// Registry maps backend names to their constructor functions. Real backends
// are registered by main; tests register mocks, which keeps the wiring code
// testable without native libraries or a running server.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	decoders  map[Backend]func(RecognizerConfig) (recognizer.Decoder, error)
	injectors map[inject.Method]func(InputConfig) (inject.Injector, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		decoders:  make(map[Backend]func(RecognizerConfig) (recognizer.Decoder, error)),
		injectors: make(map[inject.Method]func(InputConfig) (inject.Injector, error)),
	}
}

// RegisterDecoder registers a decoder factory under backend. Subsequent
// calls with the same backend overwrite the previous registration.
func (r *Registry) RegisterDecoder(backend Backend, factory func(RecognizerConfig) (recognizer.Decoder, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[backend] = factory
}

// RegisterInjector registers an injector factory under method.
func (r *Registry) RegisterInjector(method inject.Method, factory func(InputConfig) (inject.Injector, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.injectors[method] = factory
}

// CreateDecoder instantiates the decoder configured in cfg.
// Returns [ErrBackendNotRegistered] if no factory matches cfg.Backend.
func (r *Registry) CreateDecoder(cfg RecognizerConfig) (recognizer.Decoder, error) {
	r.mu.RLock()
	factory, ok := r.decoders[cfg.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: decoder/%q", ErrBackendNotRegistered, cfg.Backend)
	}
	return factory(cfg)
}

// CreateInjector instantiates the injector configured in cfg.
func (r *Registry) CreateInjector(cfg InputConfig) (inject.Injector, error) {
	r.mu.RLock()
	factory, ok := r.injectors[cfg.Method]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: injector/%q", ErrBackendNotRegistered, cfg.Method)
	}
	return factory(cfg)
}
