// Package locator evaluates selector trees against a live page. It turns an
// expression into a Reference (a lazily re-evaluated handle), reduces
// ambiguous matches to a single element and walks the fallback chain from
// primary expression to repaired raw CSS.
package locator

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/uistep/internal/dom"
	"github.com/v0xg/uistep/internal/selector"
)

// Options configure a Resolver.
type Options struct {
	// Timeout bounds each resolution stage.
	Timeout time.Duration
	// PollInterval is the wait between evaluations while nothing matches.
	PollInterval time.Duration
	// TestIDAttributes are tried in order by getByTestId.
	TestIDAttributes []string
	// StrictAmbiguity reports Ambiguous instead of falling back to the
	// first match when neither name nor hints narrow a multi-match.
	StrictAmbiguity bool
	Logger          *zap.Logger
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:          3 * time.Second,
		PollInterval:     100 * time.Millisecond,
		TestIDAttributes: []string{"data-testid", "data-test"},
		Logger:           zap.NewNop(),
	}
}

// Resolver evaluates selector trees. It holds no per-page state and never
// memoizes: every call queries the page again.
type Resolver struct {
	opts Options
	log  *zap.Logger
}

// New returns a resolver; zero option fields take their defaults.
func New(opts Options) *Resolver {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if len(opts.TestIDAttributes) == 0 {
		opts.TestIDAttributes = def.TestIDAttributes
	}
	if opts.Logger == nil {
		opts.Logger = def.Logger
	}
	return &Resolver{opts: opts, log: opts.Logger.Named("locator")}
}

// Options returns the effective options.
func (r *Resolver) Options() Options { return r.opts }

// Evaluate returns every element n currently matches on page, in document
// order. It does not wait.
func (r *Resolver) Evaluate(ctx context.Context, page dom.Page, n selector.Node) ([]dom.Element, error) {
	return r.eval(ctx, page, page, n)
}

// EvaluateIn is Evaluate restricted to descendants of scope.
func (r *Resolver) EvaluateIn(ctx context.Context, page dom.Page, scope dom.Scope, n selector.Node) ([]dom.Element, error) {
	return r.eval(ctx, page, scope, n)
}

func (r *Resolver) eval(ctx context.Context, page dom.Page, scope dom.Scope, n selector.Node) ([]dom.Element, error) {
	set, err := r.evalBase(ctx, page, scope, n)
	if err != nil {
		return nil, err
	}
	for _, m := range n.Modifiers() {
		if set, err = r.applyModifier(ctx, page, set, m); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func (r *Resolver) evalBase(ctx context.Context, page dom.Page, scope dom.Scope, n selector.Node) ([]dom.Element, error) {
	switch n := n.(type) {
	case *selector.RoleNode:
		return r.evalRole(ctx, page, scope, n)
	case *selector.TextNode:
		return r.evalText(ctx, scope, n.Text)
	case *selector.LabelNode:
		return r.evalLabel(ctx, page, scope, n.Label)
	case *selector.PlaceholderNode:
		return filterElements(ctx, scope, "[placeholder]", func(el dom.Element) (bool, error) {
			v, _, err := el.Attribute(ctx, "placeholder")
			return n.Placeholder.Match(v), err
		})
	case *selector.TestIDNode:
		for _, attr := range r.opts.TestIDAttributes {
			els, err := scope.Query(ctx, "["+attr+"="+dom.QuoteCSS(n.ID)+"]")
			if err != nil {
				return nil, err
			}
			if len(els) > 0 {
				return els, nil
			}
		}
		return nil, nil
	case *selector.CSSNode:
		return queryCSS(ctx, scope, n.CSS)
	}
	return nil, errors.New("unsupported selector node")
}

func (r *Resolver) evalRole(ctx context.Context, page dom.Page, scope dom.Scope, n *selector.RoleNode) ([]dom.Element, error) {
	return filterElements(ctx, scope, dom.RoleSelector(n.Role), func(el dom.Element) (bool, error) {
		tag, err := el.TagName(ctx)
		if err != nil {
			return false, err
		}
		attrs, err := el.Attributes(ctx)
		if err != nil {
			return false, err
		}
		if dom.Role(tag, attrs) != n.Role {
			return false, nil
		}
		if n.ID != "" && attrs["id"] != n.ID {
			return false, nil
		}
		if n.AriaControls != "" && attrs["aria-controls"] != n.AriaControls {
			return false, nil
		}
		if n.Class != "" && !dom.HasClass(attrs["class"], n.Class) {
			return false, nil
		}
		if !n.IncludeHidden {
			ok, err := accessible(ctx, el)
			if err != nil || !ok {
				return false, err
			}
		}
		if ok, err := matchStates(ctx, el, tag, attrs, n); err != nil || !ok {
			return false, err
		}
		if n.Name != nil {
			name, err := dom.AccessibleName(ctx, page, el)
			if err != nil {
				return false, err
			}
			if !n.Name.Match(name) {
				return false, nil
			}
		}
		return true, nil
	})
}

// accessible reports whether el is rendered and not hidden from assistive
// technology.
func accessible(ctx context.Context, el dom.Element) (bool, error) {
	vis, err := el.Visible(ctx)
	if err != nil || !vis {
		return false, err
	}
	hidden, err := el.Closest(ctx, `[aria-hidden="true"]`)
	if err != nil {
		return false, err
	}
	return hidden == nil, nil
}

func matchStates(ctx context.Context, el dom.Element, tag string, attrs map[string]string, n *selector.RoleNode) (bool, error) {
	if n.Checked != nil {
		checked, err := el.Checked(ctx)
		if errors.Is(err, dom.ErrUnsupported) {
			checked, err = attrs["aria-checked"] == "true", nil
		}
		if err != nil {
			return false, err
		}
		if checked != *n.Checked {
			return false, nil
		}
	}
	if n.Disabled != nil {
		_, native := attrs["disabled"]
		disabled := native || attrs["aria-disabled"] == "true"
		if disabled != *n.Disabled {
			return false, nil
		}
	}
	if n.Expanded != nil && (attrs["aria-expanded"] == "true") != *n.Expanded {
		return false, nil
	}
	if n.Pressed != nil && (attrs["aria-pressed"] == "true") != *n.Pressed {
		return false, nil
	}
	if n.Selected != nil {
		_, native := attrs["selected"]
		if (native || attrs["aria-selected"] == "true") != *n.Selected {
			return false, nil
		}
	}
	if n.Level != 0 && headingLevel(tag, attrs) != n.Level {
		return false, nil
	}
	return true, nil
}

func headingLevel(tag string, attrs map[string]string) int {
	if lvl, err := strconv.Atoi(attrs["aria-level"]); err == nil {
		return lvl
	}
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

// evalText finds the smallest visible elements whose text matches p.
func (r *Resolver) evalText(ctx context.Context, scope dom.Scope, p selector.Pattern) ([]dom.Element, error) {
	var (
		pre []dom.Element
		err error
	)
	if p.Regex {
		pre, err = scope.Query(ctx, "*")
	} else {
		pre, err = scope.QueryText(ctx, p.Text)
	}
	if err != nil {
		return nil, err
	}
	var matched []dom.Element
	keys := make(map[string]int)
	for _, el := range pre {
		text, err := elementText(ctx, el)
		if err != nil {
			return nil, err
		}
		if !p.Match(text) {
			continue
		}
		vis, err := el.Visible(ctx)
		if err != nil {
			return nil, err
		}
		if !vis {
			continue
		}
		key, err := el.Key(ctx)
		if err != nil {
			return nil, err
		}
		keys[key] = len(matched)
		matched = append(matched, el)
	}
	if len(matched) < 2 {
		return matched, nil
	}
	// Drop ancestors of other matches so only the innermost element remains.
	drop := make([]bool, len(matched))
	for _, el := range matched {
		cur := el
		for depth := 0; depth < 64; depth++ {
			parent, err := cur.Parent(ctx)
			if err != nil {
				return nil, err
			}
			if parent == nil {
				break
			}
			key, err := parent.Key(ctx)
			if err != nil {
				return nil, err
			}
			if i, ok := keys[key]; ok {
				drop[i] = true
			}
			cur = parent
		}
	}
	out := matched[:0:0]
	for i, el := range matched {
		if !drop[i] {
			out = append(out, el)
		}
	}
	return out, nil
}

// elementText is the text an element shows: its content, or the value of
// input buttons.
func elementText(ctx context.Context, el dom.Element) (string, error) {
	tag, err := el.TagName(ctx)
	if err != nil {
		return "", err
	}
	if tag == "input" {
		typ, _, err := el.Attribute(ctx, "type")
		if err != nil {
			return "", err
		}
		switch strings.ToLower(typ) {
		case "button", "submit", "reset":
			v, _, err := el.Attribute(ctx, "value")
			return v, err
		}
	}
	return el.Text(ctx)
}

func (r *Resolver) evalLabel(ctx context.Context, page dom.Page, scope dom.Scope, p selector.Pattern) ([]dom.Element, error) {
	var out []dom.Element
	seen := make(map[string]bool)
	add := func(el dom.Element) error {
		key, err := el.Key(ctx)
		if err != nil {
			return err
		}
		if !seen[key] {
			seen[key] = true
			out = append(out, el)
		}
		return nil
	}

	labels, err := scope.Query(ctx, "label")
	if err != nil {
		return nil, err
	}
	for _, l := range labels {
		text, err := l.Text(ctx)
		if err != nil {
			return nil, err
		}
		if !p.Match(text) {
			continue
		}
		var controls []dom.Element
		if id, ok, err := l.Attribute(ctx, "for"); err != nil {
			return nil, err
		} else if ok && id != "" {
			controls, err = page.Query(ctx, "[id="+dom.QuoteCSS(id)+"]")
			if err != nil {
				return nil, err
			}
		} else {
			controls, err = l.Query(ctx, "input, select, textarea, button, [contenteditable]")
			if err != nil {
				return nil, err
			}
		}
		if len(controls) > 0 {
			if err := add(controls[0]); err != nil {
				return nil, err
			}
		}
	}

	labelled, err := filterElements(ctx, scope, "[aria-label], [aria-labelledby]", func(el dom.Element) (bool, error) {
		if v, ok, err := el.Attribute(ctx, "aria-label"); err != nil || (ok && p.Match(v)) {
			return err == nil, err
		}
		ids, ok, err := el.Attribute(ctx, "aria-labelledby")
		if err != nil || !ok {
			return false, err
		}
		var parts []string
		for _, id := range strings.Fields(ids) {
			refs, err := page.Query(ctx, "[id="+dom.QuoteCSS(id)+"]")
			if err != nil {
				return false, err
			}
			if len(refs) > 0 {
				t, err := refs[0].Text(ctx)
				if err != nil {
					return false, err
				}
				parts = append(parts, t)
			}
		}
		return len(parts) > 0 && p.Match(strings.Join(parts, " ")), nil
	})
	if err != nil {
		return nil, err
	}
	for _, el := range labelled {
		if err := add(el); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Resolver) applyModifier(ctx context.Context, page dom.Page, set []dom.Element, m selector.Modifier) ([]dom.Element, error) {
	switch m := m.(type) {
	case selector.Nth:
		i := m.Index
		if i < 0 {
			i += len(set)
		}
		if i < 0 || i >= len(set) {
			return nil, nil
		}
		return set[i : i+1], nil
	case selector.First:
		if len(set) == 0 {
			return nil, nil
		}
		return set[:1], nil
	case selector.Last:
		if len(set) == 0 {
			return nil, nil
		}
		return set[len(set)-1:], nil
	case selector.Filter:
		var out []dom.Element
		for _, el := range set {
			ok, err := r.matchFilter(ctx, page, el, m)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, el)
			}
		}
		return out, nil
	case selector.Chain:
		var out []dom.Element
		seen := make(map[string]bool)
		for _, el := range set {
			sub, err := r.eval(ctx, page, el, m.Child)
			if err != nil {
				return nil, err
			}
			for _, s := range sub {
				key, err := s.Key(ctx)
				if err != nil {
					return nil, err
				}
				if !seen[key] {
					seen[key] = true
					out = append(out, s)
				}
			}
		}
		return out, nil
	case selector.SelectOption:
		return set, nil
	}
	return nil, errors.New("unsupported selector modifier")
}

func (r *Resolver) matchFilter(ctx context.Context, page dom.Page, el dom.Element, f selector.Filter) (bool, error) {
	if f.HasText != nil || f.HasNotText != nil {
		text, err := elementText(ctx, el)
		if err != nil {
			return false, err
		}
		if f.HasText != nil && !f.HasText.Match(text) {
			return false, nil
		}
		if f.HasNotText != nil && f.HasNotText.Match(text) {
			return false, nil
		}
	}
	if f.HasClass != "" {
		class, _, err := el.Attribute(ctx, "class")
		if err != nil {
			return false, err
		}
		if !dom.HasClass(class, f.HasClass) {
			return false, nil
		}
	}
	if f.Has != nil {
		sub, err := r.eval(ctx, page, el, f.Has)
		if err != nil || len(sub) == 0 {
			return false, err
		}
	}
	if f.HasNot != nil {
		sub, err := r.eval(ctx, page, el, f.HasNot)
		if err != nil || len(sub) > 0 {
			return false, err
		}
	}
	return true, nil
}

func filterElements(ctx context.Context, scope dom.Scope, css string, keep func(dom.Element) (bool, error)) ([]dom.Element, error) {
	els, err := scope.Query(ctx, css)
	if err != nil {
		return nil, err
	}
	out := els[:0:0]
	for _, el := range els {
		ok, err := keep(el)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, el)
		}
	}
	return out, nil
}
