// Package mock provides a test double for the inject package.
package mock

import (
	"sync"

	"github.com/voxinput/voxinput/pkg/inject"
)

// Injector records every Inject call and plays back scripted errors.
type Injector struct {
	mu sync.Mutex

	// Errs is consumed one entry per Inject call; a nil entry means
	// success. Once exhausted, Inject succeeds.
	Errs []error

	// Texts records every injected string, including failed attempts.
	Texts []string
}

// Compile-time assertion that Injector implements inject.Injector.
var _ inject.Injector = (*Injector)(nil)

// Inject records text and returns the next scripted error.
func (m *Injector) Inject(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Texts = append(m.Texts, text)
	if len(m.Errs) > 0 {
		err := m.Errs[0]
		m.Errs = m.Errs[1:]
		return err
	}
	return nil
}

// Injected returns a copy of the recorded texts.
func (m *Injector) Injected() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Texts))
	copy(out, m.Texts)
	return out
}
