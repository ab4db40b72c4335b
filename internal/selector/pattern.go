package selector

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Pattern is a text matcher: a literal (substring, or whole string when
// Exact) or a regular expression written with JavaScript flags.
//
// Literal comparison ignores case and collapses whitespace on both sides.
type Pattern struct {
	Text  string
	Regex bool
	Flags string
	Exact bool
}

// Literal returns a substring pattern.
func Literal(s string) *Pattern { return &Pattern{Text: s} }

// Exact returns a whole-string pattern.
func Exact(s string) *Pattern { return &Pattern{Text: s, Exact: true} }

var regexCache sync.Map

// Compile returns the RE2 form of a regex pattern.
func (p Pattern) Compile() (*regexp.Regexp, error) {
	if !p.Regex {
		return regexp.Compile("(?i)" + regexp.QuoteMeta(p.Text))
	}
	key := p.Flags + "/" + p.Text
	if re, ok := regexCache.Load(key); ok {
		return re.(*regexp.Regexp), nil
	}
	var prefix string
	for _, f := range p.Flags {
		switch f {
		case 'i', 'm', 's':
			if !strings.ContainsRune(prefix, f) {
				prefix += string(f)
			}
		case 'g', 'u', 'y', 'd':
		default:
			return nil, fmt.Errorf("unknown regular expression flag %q", f)
		}
	}
	src := p.Text
	if prefix != "" {
		src = "(?" + prefix + ")" + src
	}
	re, err := regexp.Compile(src)
	if err != nil {
		return nil, err
	}
	regexCache.Store(key, re)
	return re, nil
}

// Match reports whether s satisfies the pattern.
func (p Pattern) Match(s string) bool {
	s = collapse(s)
	if p.Regex {
		re, err := p.Compile()
		return err == nil && re.MatchString(s)
	}
	want := collapse(p.Text)
	if p.Exact {
		return strings.EqualFold(s, want)
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(want))
}

func (p Pattern) render(b *strings.Builder) {
	if p.Regex {
		b.WriteByte('/')
		b.WriteString(p.Text)
		b.WriteByte('/')
		b.WriteString(p.Flags)
		return
	}
	quote(b, p.Text)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
