package hotkey

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrInvalidAccelerator is returned for strings that are not a valid
// global shortcut.
var ErrInvalidAccelerator = errors.New("invalid accelerator")

// Modifier is a bit set of shortcut modifiers.
type Modifier uint8

const (
	ModCommand Modifier = 1 << iota
	ModControl
	ModAlt
	ModAltGr
	ModShift
	ModSuper
)

// Canonical output order.
var modifierNames = []struct {
	mod  Modifier
	name string
}{
	{ModCommand, "Command"},
	{ModControl, "Control"},
	{ModAlt, "Alt"},
	{ModAltGr, "AltGr"},
	{ModShift, "Shift"},
	{ModSuper, "Super"},
}

// modCommandOrControl is resolved per platform and never stored.
const modCommandOrControl Modifier = 0

var modifierAliases = map[string]Modifier{
	"command":          ModCommand,
	"cmd":              ModCommand,
	"control":          ModControl,
	"ctrl":             ModControl,
	"commandorcontrol": modCommandOrControl,
	"cmdorctrl":        modCommandOrControl,
	"alt":              ModAlt,
	"option":           ModAlt,
	"altgr":            ModAltGr,
	"shift":            ModShift,
	"super":            ModSuper,
	"meta":             ModSuper,
}

var namedKeys = map[string]string{
	"space":              "Space",
	"tab":                "Tab",
	"capslock":           "Capslock",
	"numlock":            "Numlock",
	"scrolllock":         "Scrolllock",
	"backspace":          "Backspace",
	"delete":             "Delete",
	"insert":             "Insert",
	"return":             "Enter",
	"enter":              "Enter",
	"up":                 "Up",
	"down":               "Down",
	"left":               "Left",
	"right":              "Right",
	"home":               "Home",
	"end":                "End",
	"pageup":             "PageUp",
	"pagedown":           "PageDown",
	"escape":             "Escape",
	"esc":                "Escape",
	"plus":               "Plus",
	"volumeup":           "VolumeUp",
	"volumedown":         "VolumeDown",
	"volumemute":         "VolumeMute",
	"medianexttrack":     "MediaNextTrack",
	"mediaprevioustrack": "MediaPreviousTrack",
	"mediastop":          "MediaStop",
	"mediaplaypause":     "MediaPlayPause",
	"printscreen":        "PrintScreen",
}

// Accelerator is a parsed global shortcut.
type Accelerator struct {
	Modifiers Modifier
	Key       string
}

// String returns the canonical form, e.g. "Control+Shift+X".
func (a Accelerator) String() string {
	var parts []string
	for _, m := range modifierNames {
		if a.Modifiers&m.mod != 0 {
			parts = append(parts, m.name)
		}
	}
	return strings.Join(append(parts, a.Key), "+")
}

// Parse parses an accelerator such as "CmdOrCtrl+Shift+X". CommandOrControl
// resolves to Command when platform is "darwin" and to Control otherwise.
func Parse(s, platform string) (Accelerator, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Accelerator{}, fmt.Errorf("%w: empty", ErrInvalidAccelerator)
	}

	tokens, err := split(s)
	if err != nil {
		return Accelerator{}, err
	}

	var acc Accelerator
	for i, tok := range tokens {
		last := i == len(tokens)-1
		if mod, ok := modifierAliases[strings.ToLower(tok)]; ok {
			if last {
				return Accelerator{}, fmt.Errorf("%w: %q has no key", ErrInvalidAccelerator, s)
			}
			if mod == modCommandOrControl {
				mod = ModControl
				if platform == "darwin" {
					mod = ModCommand
				}
			}
			if acc.Modifiers&mod != 0 {
				return Accelerator{}, fmt.Errorf("%w: duplicate modifier %q in %q", ErrInvalidAccelerator, tok, s)
			}
			acc.Modifiers |= mod
			continue
		}

		if !last {
			return Accelerator{}, fmt.Errorf("%w: %q is not a modifier in %q", ErrInvalidAccelerator, tok, s)
		}
		key, err := parseKey(tok)
		if err != nil {
			return Accelerator{}, fmt.Errorf("%w in %q", err, s)
		}
		acc.Key = key
	}
	return acc, nil
}

// Canonical parses s and returns its canonical string.
func Canonical(s, platform string) (string, error) {
	acc, err := Parse(s, platform)
	if err != nil {
		return "", err
	}
	return acc.String(), nil
}

// split breaks s on '+' and allows a literal "+" key at the end ("Ctrl++").
func split(s string) ([]string, error) {
	var tokens []string
	if strings.HasSuffix(s, "++") {
		tokens = strings.Split(strings.TrimSuffix(s, "++"), "+")
		tokens = append(tokens, "Plus")
	} else if s == "+" {
		tokens = []string{"Plus"}
	} else {
		tokens = strings.Split(s, "+")
	}

	for i, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidAccelerator, s)
		}
		tokens[i] = tok
	}
	return tokens, nil
}

func parseKey(tok string) (string, error) {
	lower := strings.ToLower(tok)
	if name, ok := namedKeys[lower]; ok {
		return name, nil
	}

	if utf8.RuneCountInString(tok) == 1 {
		r, _ := utf8.DecodeRuneInString(tok)
		switch {
		case r >= 'a' && r <= 'z':
			return strings.ToUpper(tok), nil
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return tok, nil
		case strings.ContainsRune(")!@#$%^&*(:;<=>?,_-.`/~[{\\|}]'\"", r):
			return tok, nil
		}
		return "", fmt.Errorf("%w: unsupported key %q", ErrInvalidAccelerator, tok)
	}

	if lower[0] == 'f' {
		var n int
		if _, err := fmt.Sscanf(lower, "f%d", &n); err == nil && fmt.Sprintf("f%d", n) == lower && n >= 1 && n <= 24 {
			return fmt.Sprintf("F%d", n), nil
		}
	}
	return "", fmt.Errorf("%w: unknown key %q", ErrInvalidAccelerator, tok)
}
