//go:build !windows

package inject

import "fmt"

// New returns the Injector for method. SendInput is Windows-only; elsewhere
// the clipboard strategy and the noop are available.
func New(method Method) (Injector, error) {
	switch method {
	case MethodClipboard, "":
		return NewPaster(), nil
	case MethodSendInput:
		return nil, fmt.Errorf("inject: method %q requires Windows", method)
	case MethodNoop:
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("inject: unknown method %q", method)
	}
}
