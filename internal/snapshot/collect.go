package snapshot

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/v0xg/uistep/internal/dom"
	"github.com/v0xg/uistep/internal/locator"
	"github.com/v0xg/uistep/internal/selector"
)

// DefaultRoles are the roles collected when Options.Roles is empty.
var DefaultRoles = []string{
	"button", "link", "textbox", "searchbox", "checkbox", "radio", "combobox",
	"listbox", "option", "dialog", "alert", "tab", "tabpanel", "menu", "menuitem",
}

// Special groups are collected by CSS and include hidden matches.
var specialGroups = []struct {
	name string
	css  string
}{
	{"custom", ".option-item"},
	{"clickable_images", `img[id], img[class*="menu-item"], img[class*="action"], img[class*="button"]`},
	{"menu_triggers", `[id*="menu"], [class*="menu-trigger"], [class*="dropdown-toggle"]`},
}

var specialOrder = []string{"custom", "clickable_images", "menu_triggers"}

// Options configure a Collector.
type Options struct {
	Roles []string
	// MaxPerGroup caps the elements recorded per role or group.
	MaxPerGroup int
	// MaxText truncates element text, in runes.
	MaxText int
	// MaxInner caps the inner elements recorded per dialog.
	MaxInner int
	Logger   *zap.Logger
}

// Collector builds snapshots.
type Collector struct {
	resolver *locator.Resolver
	opts     Options
	log      *zap.Logger
}

// New returns a Collector that evaluates roles through r.
func New(r *locator.Resolver, opts Options) *Collector {
	if len(opts.Roles) == 0 {
		opts.Roles = DefaultRoles
	}
	if opts.MaxPerGroup <= 0 {
		opts.MaxPerGroup = 50
	}
	if opts.MaxText <= 0 {
		opts.MaxText = 100
	}
	if opts.MaxInner <= 0 {
		opts.MaxInner = 40
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Collector{resolver: r, opts: opts, log: opts.Logger.Named("snapshot")}
}

// Collect snapshots page. Elements that cannot be read (typically
// because they were detached mid-walk) are skipped; only cancellation of
// ctx is an error, and the partial snapshot is returned alongside it.
func (c *Collector) Collect(ctx context.Context, page dom.Page) (*Snapshot, error) {
	snap := &Snapshot{Roles: make(map[string][]Element)}
	if u, err := page.URL(ctx); err == nil {
		snap.URL = u
	}

	for _, role := range c.opts.Roles {
		els, err := c.resolver.Evaluate(ctx, page, &selector.RoleNode{Role: role})
		if err != nil {
			if ctx.Err() != nil {
				return snap, ctx.Err()
			}
			c.log.Debug("role evaluation failed", zap.String("role", role), zap.Error(err))
			continue
		}
		for _, el := range els {
			if len(snap.Roles[role]) >= c.opts.MaxPerGroup {
				break
			}
			info, err := c.describe(ctx, page, el, role)
			if err != nil {
				if ctx.Err() != nil {
					return snap, ctx.Err()
				}
				c.log.Debug("skipping element", zap.String("role", role), zap.Stringer("element", el), zap.Error(err))
				continue
			}
			snap.Roles[role] = append(snap.Roles[role], info)
		}
	}

	for _, g := range specialGroups {
		els, err := page.Query(ctx, g.css)
		if err != nil {
			if ctx.Err() != nil {
				return snap, ctx.Err()
			}
			c.log.Debug("group query failed", zap.String("group", g.name), zap.Error(err))
			continue
		}
		for _, el := range els {
			if len(snap.Roles[g.name]) >= c.opts.MaxPerGroup {
				break
			}
			info, err := c.describeSpecial(ctx, el, g.name)
			if err != nil {
				if ctx.Err() != nil {
					return snap, ctx.Err()
				}
				c.log.Debug("skipping element", zap.String("group", g.name), zap.Error(err))
				continue
			}
			snap.Roles[g.name] = append(snap.Roles[g.name], info)
		}
	}

	c.log.Debug("snapshot collected", zap.Int("elements", snap.Count()), zap.Strings("groups", snap.Groups()))
	return snap, nil
}

func (c *Collector) describe(ctx context.Context, page dom.Page, el dom.Element, role string) (Element, error) {
	info, attrs, err := c.base(ctx, el, role)
	if err != nil {
		return Element{}, err
	}
	info.Visible = true
	info.Placeholder = attrs["placeholder"]
	info.Name = attrs["name"]
	if info.Label, err = label(ctx, page, el, attrs); err != nil {
		return Element{}, err
	}

	bar, err := el.Closest(ctx, `[role="toolbar"]`)
	if err != nil {
		return Element{}, err
	}
	if bar != nil {
		if info.Toolbar, err = container(ctx, bar); err != nil {
			return Element{}, err
		}
	}

	switch {
	case info.Tag == "select":
		opts, err := el.Options(ctx)
		if err != nil {
			return Element{}, err
		}
		for _, o := range opts {
			info.Options = append(info.Options, Option{Text: o.Label, Value: o.Value, Selected: o.Selected})
		}
	case role == "combobox" && attrs["aria-controls"] != "":
		if info.Options, err = controlledOptions(ctx, page, attrs["aria-controls"]); err != nil {
			return Element{}, err
		}
	}

	if role == "dialog" {
		if info.Inner, err = c.inner(ctx, el); err != nil {
			return Element{}, err
		}
	}
	return info, nil
}

func (c *Collector) describeSpecial(ctx context.Context, el dom.Element, group string) (Element, error) {
	info, _, err := c.base(ctx, el, group)
	if err != nil {
		return Element{}, err
	}
	if info.Visible, err = el.Visible(ctx); err != nil {
		return Element{}, err
	}
	parent, err := el.Parent(ctx)
	if err != nil {
		return Element{}, err
	}
	if parent != nil {
		if info.Parent, err = container(ctx, parent); err != nil {
			return Element{}, err
		}
	}
	return info, nil
}

// base reads what every entry records: tag, text, id, classes and the
// attribute split.
func (c *Collector) base(ctx context.Context, el dom.Element, role string) (Element, map[string]string, error) {
	tag, err := el.TagName(ctx)
	if err != nil {
		return Element{}, nil, err
	}
	text, err := el.Text(ctx)
	if err != nil {
		return Element{}, nil, err
	}
	attrs, err := el.Attributes(ctx)
	if err != nil {
		return Element{}, nil, err
	}
	info := Element{
		Role:    role,
		Tag:     tag,
		Text:    truncate(dom.NormalizeSpace(text), c.opts.MaxText),
		ID:      attrs["id"],
		Classes: Classify(attrs["class"]),
	}
	for k, v := range attrs {
		switch {
		case k == "id" || k == "class" || k == "style":
		case strings.HasPrefix(k, "data-"):
			info.Data = put(info.Data, k, v)
		case strings.HasPrefix(k, "aria-"):
			info.Aria = put(info.Aria, k, v)
		default:
			info.Other = put(info.Other, k, v)
		}
	}
	return info, attrs, nil
}

// inner lists the dialog's descendants that carry text, leaving out
// required-field markers and select placeholders.
func (c *Collector) inner(ctx context.Context, dialog dom.Element) ([]Inner, error) {
	els, err := dialog.Query(ctx, "*")
	if err != nil {
		return nil, err
	}
	var out []Inner
	for _, el := range els {
		if len(out) >= c.opts.MaxInner {
			break
		}
		text, err := el.Text(ctx)
		if err != nil {
			return nil, err
		}
		text = dom.NormalizeSpace(text)
		if text == "" || strings.Contains(text, "*") || strings.Contains(text, "Select") {
			continue
		}
		tag, err := el.TagName(ctx)
		if err != nil {
			return nil, err
		}
		attrs, err := el.Attributes(ctx)
		if err != nil {
			return nil, err
		}
		in := Inner{
			Tag:     tag,
			Text:    truncate(text, c.opts.MaxText),
			ID:      attrs["id"],
			Classes: strings.Fields(attrs["class"]),
		}
		_, in.Required = attrs["required"]
		for k, v := range attrs {
			if k != "class" && k != "id" {
				in.Attrs = put(in.Attrs, k, v)
			}
		}
		out = append(out, in)
	}
	return out, nil
}

// label finds a control's label: aria-label, a label[for] pointing at it,
// an enclosing label, then aria-labelledby.
func label(ctx context.Context, page dom.Page, el dom.Element, attrs map[string]string) (string, error) {
	if v := dom.NormalizeSpace(attrs["aria-label"]); v != "" {
		return v, nil
	}
	if id := attrs["id"]; id != "" {
		labels, err := page.Query(ctx, `label[for=`+dom.QuoteCSS(id)+`]`)
		if err != nil {
			return "", err
		}
		if len(labels) > 0 {
			return textOf(ctx, labels[0])
		}
	}
	wrap, err := el.Closest(ctx, "label")
	if err != nil {
		return "", err
	}
	if wrap != nil {
		return textOf(ctx, wrap)
	}
	var parts []string
	for _, id := range strings.Fields(attrs["aria-labelledby"]) {
		refs, err := page.Query(ctx, `[id=`+dom.QuoteCSS(id)+`]`)
		if err != nil {
			return "", err
		}
		if len(refs) == 0 {
			continue
		}
		t, err := textOf(ctx, refs[0])
		if err != nil {
			return "", err
		}
		parts = append(parts, t)
	}
	return strings.Join(parts, " "), nil
}

func controlledOptions(ctx context.Context, page dom.Page, ids string) ([]Option, error) {
	var out []Option
	for _, id := range strings.Fields(ids) {
		els, err := page.Query(ctx, `[id=`+dom.QuoteCSS(id)+`] [role="option"]`)
		if err != nil {
			return nil, err
		}
		for _, el := range els {
			text, err := textOf(ctx, el)
			if err != nil {
				return nil, err
			}
			attrs, err := el.Attributes(ctx)
			if err != nil {
				return nil, err
			}
			out = append(out, Option{
				Text:     text,
				Value:    attrs["data-value"],
				Selected: strings.EqualFold(attrs["aria-selected"], "true"),
			})
		}
	}
	return out, nil
}

func container(ctx context.Context, el dom.Element) (*Container, error) {
	tag, err := el.TagName(ctx)
	if err != nil {
		return nil, err
	}
	attrs, err := el.Attributes(ctx)
	if err != nil {
		return nil, err
	}
	c := &Container{
		Tag:     tag,
		Role:    attrs["role"],
		ID:      attrs["id"],
		Classes: strings.Fields(attrs["class"]),
	}
	for k, v := range attrs {
		if strings.HasPrefix(k, "data-") {
			c.Data = put(c.Data, k, v)
		}
	}
	return c, nil
}

var tailwindRe = regexp.MustCompile(`^(bg-|text-|border-|rounded-|flex|grid|m-)`)

// Classify sorts class tokens by framework prefix. A token lands in the
// first group that claims it.
func Classify(class string) Classes {
	var c Classes
	for _, tok := range strings.Fields(class) {
		switch {
		case strings.HasPrefix(tok, "p-"):
			c.PrimeVue = append(c.PrimeVue, tok)
		case strings.HasPrefix(tok, "btn-"), strings.HasPrefix(tok, "form-"), strings.HasPrefix(tok, "nav-"):
			c.Bootstrap = append(c.Bootstrap, tok)
		case strings.HasPrefix(tok, "mat-"):
			c.Material = append(c.Material, tok)
		case tailwindRe.MatchString(tok):
			c.Tailwind = append(c.Tailwind, tok)
		default:
			c.Custom = append(c.Custom, tok)
		}
	}
	return c
}

func textOf(ctx context.Context, el dom.Element) (string, error) {
	t, err := el.Text(ctx)
	if err != nil {
		return "", err
	}
	return dom.NormalizeSpace(t), nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}

func put(m map[string]string, k, v string) map[string]string {
	if m == nil {
		m = make(map[string]string)
	}
	m[k] = v
	return m
}
