package hotkey

import (
	"fmt"
	"strings"
)

// Win32 hotkey modifier flags, as passed to RegisterHotKey.
const (
	modAlt     = 0x0001
	modControl = 0x0002
	modShift   = 0x0004
	modWin     = 0x0008
)

// Chord is a parsed key combination such as ctrl+shift+v.
type Chord struct {
	Ctrl  bool
	Alt   bool
	Shift bool
	Win   bool
	Key   string // normalised non-modifier key, e.g. "v", "f9", "space"
}

// namedKeys maps key names that are not single letters or digits to their
// Win32 virtual-key codes.
var namedKeys = map[string]uint32{
	"space":  0x20,
	"enter":  0x0D,
	"return": 0x0D,
	"tab":    0x09,
	"esc":    0x1B,
	"escape": 0x1B,
	"pause":  0x13,
	"insert": 0x2D,
	"delete": 0x2E,
	"home":   0x24,
	"end":    0x23,
	"pageup": 0x21,
	"pagedown": 0x22,
	"up":    0x26,
	"down":  0x28,
	"left":  0x25,
	"right": 0x27,
}

// ParseChord parses a config string like "ctrl+shift+v" into a Chord. The
// string is case-insensitive and spaces are ignored; it must contain exactly
// one non-modifier key.
func ParseChord(s string) (Chord, error) {
	var c Chord
	normalized := strings.ToLower(strings.ReplaceAll(s, " ", ""))
	if normalized == "" {
		return c, fmt.Errorf("hotkey: empty chord")
	}

	for _, part := range strings.Split(normalized, "+") {
		switch part {
		case "ctrl", "control":
			c.Ctrl = true
		case "alt":
			c.Alt = true
		case "shift":
			c.Shift = true
		case "win", "super", "meta", "cmd":
			c.Win = true
		case "":
			return c, fmt.Errorf("hotkey: malformed chord %q", s)
		default:
			if c.Key != "" {
				return c, fmt.Errorf("hotkey: chord %q has more than one key", s)
			}
			c.Key = part
		}
	}
	if c.Key == "" {
		return c, fmt.Errorf("hotkey: chord %q has no key", s)
	}
	if _, err := c.VirtualKey(); err != nil {
		return c, err
	}
	return c, nil
}

// Modifiers returns the Win32 modifier flag bits for the chord.
func (c Chord) Modifiers() uint32 {
	var m uint32
	if c.Alt {
		m |= modAlt
	}
	if c.Ctrl {
		m |= modControl
	}
	if c.Shift {
		m |= modShift
	}
	if c.Win {
		m |= modWin
	}
	return m
}

// VirtualKey returns the Win32 virtual-key code for the chord's key.
func (c Chord) VirtualKey() (uint32, error) {
	k := c.Key
	switch {
	case len(k) == 1 && (k[0] >= 'a' && k[0] <= 'z'):
		return uint32(k[0] - 'a' + 'A'), nil
	case len(k) == 1 && (k[0] >= '0' && k[0] <= '9'):
		return uint32(k[0]), nil
	}
	if vk, ok := namedKeys[k]; ok {
		return vk, nil
	}
	// Function keys f1..f24 map to VK_F1 (0x70) onwards.
	if strings.HasPrefix(k, "f") {
		var n int
		if _, err := fmt.Sscanf(k, "f%d", &n); err == nil && n >= 1 && n <= 24 {
			return 0x70 + uint32(n-1), nil
		}
	}
	return 0, fmt.Errorf("hotkey: unsupported key %q", k)
}

// String renders the chord back into config syntax.
func (c Chord) String() string {
	var parts []string
	if c.Ctrl {
		parts = append(parts, "ctrl")
	}
	if c.Alt {
		parts = append(parts, "alt")
	}
	if c.Shift {
		parts = append(parts, "shift")
	}
	if c.Win {
		parts = append(parts, "win")
	}
	parts = append(parts, c.Key)
	return strings.Join(parts, "+")
}
