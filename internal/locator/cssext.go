package locator

import (
	"context"
	"sort"
	"strings"

	"github.com/v0xg/uistep/internal/dom"
)

// textPseudo is a trailing :has-text(...) or :text-is(...) that browsers do
// not understand and we evaluate ourselves.
type textPseudo struct {
	text  string
	exact bool
}

var pseudoNames = []struct {
	name  string
	exact bool
}{
	{":has-text(", false},
	{":text-is(", true},
}

// splitTextPseudos strips trailing text pseudo-classes from one compound
// selector. It reports ok=false when none were present.
func splitTextPseudos(css string) (string, []textPseudo, bool) {
	base := strings.TrimSpace(css)
	var out []textPseudo
	for strings.HasSuffix(base, ")") {
		found := false
		for _, p := range pseudoNames {
			i := strings.LastIndex(base, p.name)
			if i < 0 {
				continue
			}
			arg := base[i+len(p.name) : len(base)-1]
			if strings.ContainsAny(arg, "()") {
				continue
			}
			out = append(out, textPseudo{text: unquoteCSS(arg), exact: p.exact})
			base = strings.TrimSpace(base[:i])
			found = true
			break
		}
		if !found {
			break
		}
	}
	if len(out) == 0 {
		return css, nil, false
	}
	if base == "" || strings.HasSuffix(base, ">") || strings.HasSuffix(base, "+") || strings.HasSuffix(base, "~") {
		base += " *"
	}
	return base, out, true
}

func unquoteCSS(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		s = s[1 : len(s)-1]
		return strings.NewReplacer(`\"`, `"`, `\'`, `'`, `\\`, `\`).Replace(s)
	}
	return s
}

// splitGroup splits a selector list at top-level commas.
func splitGroup(css string) []string {
	var parts []string
	depth, start := 0, 0
	var quote byte
	for i := 0; i < len(css); i++ {
		c := css[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, strings.TrimSpace(css[start:i]))
			start = i + 1
		}
	}
	return append(parts, strings.TrimSpace(css[start:]))
}

// queryCSS runs a CSS query, evaluating :has-text() and :text-is() suffixes
// in Go. A selector list keeps document order across its groups.
func queryCSS(ctx context.Context, scope dom.Scope, css string) ([]dom.Element, error) {
	if !strings.Contains(css, ":has-text(") && !strings.Contains(css, ":text-is(") {
		return scope.Query(ctx, css)
	}
	var (
		out   []dom.Element
		keys  []string
		bases []string
	)
	seen := make(map[string]bool)
	for _, part := range splitGroup(css) {
		base, pseudos, ok := splitTextPseudos(part)
		bases = append(bases, base)
		els, err := scope.Query(ctx, base)
		if err != nil {
			return nil, err
		}
		for _, el := range els {
			if ok {
				text, err := el.Text(ctx)
				if err != nil {
					return nil, err
				}
				if !matchPseudos(text, pseudos) {
					continue
				}
			}
			key, err := el.Key(ctx)
			if err != nil {
				return nil, err
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, el)
			keys = append(keys, key)
		}
	}
	if len(bases) < 2 || len(out) < 2 {
		return out, nil
	}
	return inDocumentOrder(ctx, scope, bases, out, keys)
}

// inDocumentOrder sorts els (with their keys) by their position in the
// result of the plain selector list, which the backend returns in document
// order.
func inDocumentOrder(ctx context.Context, scope dom.Scope, bases []string, els []dom.Element, keys []string) ([]dom.Element, error) {
	all, err := scope.Query(ctx, strings.Join(bases, ", "))
	if err != nil {
		return nil, err
	}
	pos := make(map[string]int, len(all))
	for i, el := range all {
		key, err := el.Key(ctx)
		if err != nil {
			return nil, err
		}
		pos[key] = i
	}
	idx := make([]int, len(els))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return pos[keys[idx[a]]] < pos[keys[idx[b]]]
	})
	out := make([]dom.Element, len(els))
	for i, j := range idx {
		out[i] = els[j]
	}
	return out, nil
}

func matchPseudos(text string, pseudos []textPseudo) bool {
	text = dom.NormalizeSpace(text)
	for _, p := range pseudos {
		want := dom.NormalizeSpace(p.text)
		if p.exact {
			if text != want {
				return false
			}
			continue
		}
		if !strings.Contains(strings.ToLower(text), strings.ToLower(want)) {
			return false
		}
	}
	return true
}
