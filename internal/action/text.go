package action

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/v0xg/uistep/internal/locator"
)

var (
	withRe   = regexp.MustCompile(`(?i)\bwith\s+(.+?)(?:\s+(?:in|into|to|field|input)\s|$)`)
	enterRe  = regexp.MustCompile(`(?i)\b(?:enter|type|fill|write)\s+(.+?)(?:\s+(?:in|into|to|field|input)\s|$)`)
	typeRe   = regexp.MustCompile(`(?i)\b(?:type|write)\s+(.+?)(?:\s+(?:in|into|to)\s|$)`)
	optionRe = regexp.MustCompile(`(?i)\b(?:select|choose|pick)\s+['"]?(.+?)['"]?\s+(?:from|in|on|under)\s+\S`)
	pickRe   = regexp.MustCompile(`(?i)\b(?:select|choose|pick)\s+(.+)$`)
	fromRe   = regexp.MustCompile(`(?i)\s+(?:from|in|on|under)\s+`)
	sizeRe   = regexp.MustCompile(`(?i)^size\s+`)
	urlRe    = regexp.MustCompile(`(?:^|\s)((?:https?://|www\.|/)\S+)`)
	delayRe  = regexp.MustCompile(`(?i)delay\s*(\d+)`)
)

// DefaultTypeDelay is the per-key delay of the type action when the
// description names none.
const DefaultTypeDelay = 100 * time.Millisecond

func lastQuoted(desc string) string {
	q := locator.QuotedStrings(desc)
	if len(q) == 0 {
		return ""
	}
	return q[len(q)-1]
}

func trimQuotes(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"'`)
}

// FillText returns the text a fill action should enter: the last quoted
// string, else the phrase after "with", else the phrase after
// enter/type/fill/write.
func FillText(desc string) string {
	if q := lastQuoted(desc); q != "" {
		return q
	}
	if m := withRe.FindStringSubmatch(desc); m != nil {
		return trimQuotes(m[1])
	}
	if m := enterRe.FindStringSubmatch(desc); m != nil {
		return trimQuotes(m[1])
	}
	return ""
}

// TypeText is FillText for the type action, which only recognizes
// type/write phrases.
func TypeText(desc string) string {
	if q := lastQuoted(desc); q != "" {
		return q
	}
	if m := typeRe.FindStringSubmatch(desc); m != nil {
		return trimQuotes(m[1])
	}
	return ""
}

// OptionText returns the option a select action should pick. A leading
// "size " is dropped ("size M" selects "M").
func OptionText(desc string) string {
	opt := lastQuoted(desc)
	if opt == "" {
		if m := optionRe.FindStringSubmatch(desc); m != nil {
			opt = m[1]
		} else if m := pickRe.FindStringSubmatch(desc); m != nil {
			opt = fromRe.Split(m[1], 2)[0]
		}
	}
	opt = strings.TrimSpace(opt)
	return strings.TrimSpace(sizeRe.ReplaceAllString(opt, ""))
}

var keyNames = []struct {
	phrase string
	key    string
}{
	{"enter", "Enter"},
	{"tab", "Tab"},
	{"escape", "Escape"},
	{"space", "Space"},
	{"arrow up", "ArrowUp"},
	{"arrow down", "ArrowDown"},
	{"arrow left", "ArrowLeft"},
	{"arrow right", "ArrowRight"},
	{"ctrl+a", "Control+A"},
	{"ctrl+c", "Control+C"},
	{"ctrl+v", "Control+V"},
}

// KeyName returns the key a press_key action should press. Known key
// phrases win over quoted text; Enter is the default.
func KeyName(desc string) string {
	lower := strings.ToLower(desc)
	for _, k := range keyNames {
		if HasPhrase(lower, k.phrase) {
			return k.key
		}
	}
	if q := lastQuoted(desc); q != "" {
		return q
	}
	return "Enter"
}

// URL returns the first URL or absolute path in desc.
func URL(desc string) string {
	m := urlRe.FindStringSubmatch(desc)
	if m == nil {
		return ""
	}
	return strings.TrimRight(m[1], `.,;:)'"`)
}

// TypeDelay returns the "delay N" value of desc in milliseconds, or def.
func TypeDelay(desc string, def time.Duration) time.Duration {
	m := delayRe.FindStringSubmatch(desc)
	if m == nil {
		return def
	}
	ms, err := strconv.Atoi(m[1])
	if err != nil {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

var (
	clickSkips = []string{
		"no visible buttons", "no buttons", "no checkboxes", "no visible checkboxes",
		"no tasks", "no items", "initial state", "no interactions yet",
	}
	checkSkips = []string{
		"no checkbox", "no visible checkbox", "no tasks", "no items",
	}
)

// ShouldSkip reports whether desc says there is nothing to act on yet
// ("no visible buttons", "no tasks"). Only click and check honor it.
func ShouldSkip(kind Kind, desc string) bool {
	var list []string
	switch kind {
	case KindClick:
		list = clickSkips
	case KindCheck:
		list = checkSkips
	default:
		return false
	}
	lower := strings.ToLower(desc)
	for _, s := range list {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

var submissionWords = []string{
	"add", "submit", "create", "save", "send", "post", "register", "sign up",
	"login", "log in", "search", "go", "continue", "next", "confirm", "apply",
}

// IsSubmission reports whether desc reads like submitting something.
func IsSubmission(desc string) bool {
	lower := strings.ToLower(desc)
	for _, w := range submissionWords {
		if HasPhrase(lower, w) {
			return true
		}
	}
	return false
}

// HasPhrase matches phrase in s at word boundaries. Both are lowercase.
func HasPhrase(s, phrase string) bool {
	for i := 0; ; {
		j := strings.Index(s[i:], phrase)
		if j < 0 {
			return false
		}
		start, end := i+j, i+j+len(phrase)
		if (start == 0 || !isWordByte(s[start-1])) && (end == len(s) || !isWordByte(s[end])) {
			return true
		}
		i = start + 1
	}
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
