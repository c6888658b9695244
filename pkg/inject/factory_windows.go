//go:build windows

package inject

import "fmt"

// New returns the Injector for method. MethodClipboard gets a SendInput
// fallback so a busy clipboard does not lose utterances.
func New(method Method) (Injector, error) {
	switch method {
	case MethodClipboard, "":
		return &Fallback{Primary: NewPaster(), Secondary: NewTyper()}, nil
	case MethodSendInput:
		return NewTyper(), nil
	case MethodNoop:
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("inject: unknown method %q", method)
	}
}
