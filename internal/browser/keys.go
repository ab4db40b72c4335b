package browser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-rod/rod/lib/input"
)

var namedKeys = map[string]input.Key{
	"enter":      input.Enter,
	"return":     input.Enter,
	"tab":        input.Tab,
	"escape":     input.Escape,
	"esc":        input.Escape,
	"space":      input.Space,
	"backspace":  input.Backspace,
	"delete":     input.Delete,
	"home":       input.Home,
	"end":        input.End,
	"pageup":     input.PageUp,
	"pagedown":   input.PageDown,
	"arrowup":    input.ArrowUp,
	"arrowdown":  input.ArrowDown,
	"arrowleft":  input.ArrowLeft,
	"arrowright": input.ArrowRight,
	"f1":         input.F1,
	"f2":         input.F2,
	"f3":         input.F3,
	"f4":         input.F4,
	"f5":         input.F5,
	"f6":         input.F6,
	"f7":         input.F7,
	"f8":         input.F8,
	"f9":         input.F9,
	"f10":        input.F10,
	"f11":        input.F11,
	"f12":        input.F12,
}

var modifierKeys = map[string]input.Key{
	"control": input.ControlLeft,
	"ctrl":    input.ControlLeft,
	"shift":   input.ShiftLeft,
	"alt":     input.AltLeft,
	"option":  input.AltLeft,
	"meta":    input.MetaLeft,
	"cmd":     input.MetaLeft,
	"command": input.MetaLeft,
}

// Chord is a key press with held modifiers, e.g. "Control+A".
type Chord struct {
	Modifiers []input.Key
	Key       input.Key
}

// ParseChord parses a key name or a "Modifier+Key" chord. Names are case
// insensitive; a single printable character stands for itself. Letters in
// a chord with modifiers are lowercased so "Control+A" selects all rather
// than typing a capital.
func ParseChord(s string) (Chord, error) {
	if s == " " {
		return Chord{Key: input.Space}, nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return Chord{}, fmt.Errorf("empty key")
	}
	if s == "+" {
		return Chord{Key: input.Key('+')}, nil
	}
	parts := strings.Split(s, "+")
	var c Chord
	for _, p := range parts[:len(parts)-1] {
		mod, ok := modifierKeys[strings.ToLower(strings.TrimSpace(p))]
		if !ok {
			return Chord{}, fmt.Errorf("unknown modifier %q in %q", p, s)
		}
		c.Modifiers = append(c.Modifiers, mod)
	}
	key, err := parseKey(parts[len(parts)-1], len(c.Modifiers) > 0)
	if err != nil {
		return Chord{}, fmt.Errorf("key %q: %w", s, err)
	}
	c.Key = key
	return c, nil
}

func parseKey(name string, chord bool) (input.Key, error) {
	name = strings.TrimSpace(name)
	if k, ok := namedKeys[strings.ToLower(name)]; ok {
		return k, nil
	}
	if k, ok := modifierKeys[strings.ToLower(name)]; ok {
		return k, nil
	}
	if utf8.RuneCountInString(name) != 1 {
		return 0, fmt.Errorf("unknown key name")
	}
	r, _ := utf8.DecodeRuneInString(name)
	if r < ' ' || r >= utf8.RuneSelf {
		return 0, fmt.Errorf("no key for %q", r)
	}
	if chord && r >= 'A' && r <= 'Z' {
		r += 'a' - 'A'
	}
	return input.Key(r), nil
}

// runeKey maps a typed rune to its key event. ok is false for runes with
// no key, which are inserted as text instead.
func runeKey(r rune) (k input.Key, ok bool) {
	switch {
	case r == '\n' || r == '\r':
		return input.Enter, true
	case r == '\t':
		return input.Tab, true
	case r >= ' ' && r < utf8.RuneSelf:
		return input.Key(r), true
	}
	return 0, false
}
