package locator

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/v0xg/uistep/internal/dom"
	"github.com/v0xg/uistep/internal/selector"
)

// DefaultHintWords are description words that, when present, are used to
// pick among otherwise identical candidates.
var DefaultHintWords = []string{"new"}

// narrow reduces a multi-match to one element and returns the node that
// selects it on re-evaluation. Order: an exact accessible-name match for a
// name qualifier, then the first hint found in exactly some candidates,
// then the first match in document order.
func (r *Resolver) narrow(ctx context.Context, page dom.Page, n selector.Node, set []dom.Element, hints []string) (selector.Node, error) {
	if len(set) <= 1 {
		return n, nil
	}
	if exact, ok := exactName(n); ok {
		sub, err := r.Evaluate(ctx, page, exact)
		if err != nil {
			return nil, err
		}
		if len(sub) > 0 {
			n, set = exact, sub
			if len(sub) == 1 {
				r.log.Debug("disambiguated by exact name", zap.String("locator", n.String()))
				return n, nil
			}
		}
	}

	for _, hint := range hints {
		var picks []int
		for i, el := range set {
			text, err := candidateText(ctx, el)
			if err != nil {
				return nil, err
			}
			if containsToken(text, hint) {
				picks = append(picks, i)
			}
		}
		if len(picks) > 0 && len(picks) < len(set) {
			refined := selector.Append(n, selector.Nth{Index: picks[0]})
			r.log.Debug("disambiguated by hint",
				zap.String("hint", hint),
				zap.Int("candidates", len(set)),
				zap.String("locator", refined.String()))
			return refined, nil
		}
	}

	if r.opts.StrictAmbiguity {
		return nil, &ResolutionError{Reason: Ambiguous, Selector: n.String(), Count: len(set)}
	}
	r.log.Debug("disambiguated by document order", zap.Int("candidates", len(set)), zap.String("locator", n.String()))
	return selector.Append(n, selector.First{}), nil
}

// exactName returns n with the last role name qualifier made exact. It
// reports false when there is no literal, non-exact name to tighten.
func exactName(n selector.Node) (selector.Node, bool) {
	mods := n.Modifiers()
	for i := len(mods) - 1; i >= 0; i-- {
		c, ok := mods[i].(selector.Chain)
		if !ok {
			continue
		}
		child, ok := exactName(c.Child)
		if !ok {
			continue
		}
		out := make([]selector.Modifier, len(mods))
		copy(out, mods)
		out[i] = selector.Chain{Child: child}
		return selector.Append(selector.Bare(n), out...), true
	}
	role, ok := n.(*selector.RoleNode)
	if !ok || role.Name == nil || role.Name.Regex || role.Name.Exact {
		return nil, false
	}
	c := *role
	name := *role.Name
	name.Exact = true
	c.Name = &name
	return &c, true
}

// candidateText is the text hints are matched against: the element's own
// text and label attributes, plus its parent's text when the element has
// no text content of its own (checkboxes, icon buttons).
func candidateText(ctx context.Context, el dom.Element) (string, error) {
	text, err := el.Text(ctx)
	if err != nil {
		return "", err
	}
	parts := []string{text}
	for _, a := range []string{"aria-label", "value", "title"} {
		v, _, err := el.Attribute(ctx, a)
		if err != nil {
			return "", err
		}
		parts = append(parts, v)
	}
	if dom.NormalizeSpace(text) == "" {
		parent, err := el.Parent(ctx)
		if err != nil {
			return "", err
		}
		if parent != nil {
			pt, err := parent.Text(ctx)
			if err != nil {
				return "", err
			}
			parts = append(parts, pt)
		}
	}
	return dom.NormalizeSpace(strings.Join(parts, " ")), nil
}

var wordOnly = regexp.MustCompile(`^\w+$`)

func containsToken(text, token string) bool {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return false
	}
	text = strings.ToLower(text)
	if !wordOnly.MatchString(token) {
		return strings.Contains(text, token)
	}
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(token) + `\b`)
	return err == nil && re.MatchString(text)
}

var (
	quotedRe = regexp.MustCompile(`(?:^|[^\w])(?:"([^"]+)"|'([^']+)'|“([^”]+)”)`)
	parenRe  = regexp.MustCompile(`\(([^()]+)\)`)
)

// QuotedStrings returns the quoted substrings of s in order. Apostrophes
// inside words do not open a quote.
func QuotedStrings(s string) []string {
	var out []string
	for _, m := range quotedRe.FindAllStringSubmatch(s, -1) {
		for _, g := range m[1:] {
			if g != "" {
				out = append(out, g)
				break
			}
		}
	}
	return out
}

// Hints extracts disambiguation hints from an action description: quoted
// strings, parenthesized tokens, then any of words present as whole words.
func Hints(description string, words []string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(h string) {
		h = strings.TrimSpace(h)
		k := strings.ToLower(h)
		if h == "" || seen[k] {
			return
		}
		seen[k] = true
		out = append(out, h)
	}
	for _, q := range QuotedStrings(description) {
		add(q)
	}
	for _, m := range parenRe.FindAllStringSubmatch(description, -1) {
		add(m[1])
	}
	for _, w := range words {
		if containsToken(description, w) {
			add(w)
		}
	}
	return out
}
