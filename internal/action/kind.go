package action

import (
	"fmt"
	"strings"
)

// Kind is the closed set of actions a step can perform.
type Kind int

const (
	KindFill Kind = iota + 1
	KindFillSubmit
	KindClick
	KindCheck
	KindUncheck
	KindSelect
	KindNavigate
	KindReload
	KindClearInput
	KindType
	KindPressKey
	KindSmartClick
	KindToggle
	KindSubmitForm
	KindCloseModal
)

var kindNames = map[Kind]string{
	KindFill:       "fill",
	KindFillSubmit: "fill_submit",
	KindClick:      "click",
	KindCheck:      "check",
	KindUncheck:    "uncheck",
	KindSelect:     "select",
	KindNavigate:   "navigate",
	KindReload:     "reload",
	KindClearInput: "clear_input",
	KindType:       "type",
	KindPressKey:   "press_key",
	KindSmartClick: "smart_click",
	KindToggle:     "toggle",
	KindSubmitForm: "submit_form",
	KindCloseModal: "close_modal",
}

// Kinds returns every kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kindNames))
	for k := KindFill; k <= KindCloseModal; k++ {
		out = append(out, k)
	}
	return out
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a wire name such as "fill_submit" to its Kind.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown action kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("invalid action kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}
