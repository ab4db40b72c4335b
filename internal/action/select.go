package action

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/v0xg/uistep/internal/dom"
	"github.com/v0xg/uistep/internal/selector"
)

type selectOption struct{ *command }

func (c *selectOption) run(ctx context.Context, out *Outcome) error {
	option, forced := c.override()
	if option == "" {
		option = OptionText(c.spec.Description)
	}
	if option == "" {
		return fmt.Errorf("select: %w", ErrNoInput)
	}
	ref, el, err := c.element(ctx, out)
	if err != nil {
		return err
	}
	if forced || isNativeSelect(ctx, el) {
		return c.ladder(ctx, ref, out, strategy{"native", func(ctx context.Context, el dom.Element) error {
			return c.selectNative(ctx, el, option)
		}})
	}
	return c.ladder(ctx, ref, out,
		strategy{"overlay", func(ctx context.Context, el dom.Element) error {
			if err := c.open(ctx, el); err != nil {
				return err
			}
			return c.selectFromOverlay(ctx, option)
		}},
		strategy{"within-control", func(ctx context.Context, el dom.Element) error {
			return c.selectWithin(ctx, el, option)
		}},
	)
}

// override returns the option of a trailing .selectOption('x'), which also
// forces the native path.
func (c *selectOption) override() (string, bool) {
	n, err := selector.Parse(c.spec.Selector)
	if err != nil {
		return "", false
	}
	return selector.SelectedOption(n)
}

// isNativeSelect reports whether el is a real <select>. Comboboxes built
// from other elements take the custom path.
func isNativeSelect(ctx context.Context, el dom.Element) bool {
	return tagOf(ctx, el) == "select"
}

type optionMatcher struct {
	name  string
	match func(o dom.Option) bool
}

func optionMatchers(want string) []optionMatcher {
	lower := strings.ToLower(want)
	return []optionMatcher{
		{"label", func(o dom.Option) bool { return dom.NormalizeSpace(o.Label) == want }},
		{"value", func(o dom.Option) bool { return o.Value == want }},
		{"lower-value", func(o dom.Option) bool { return o.Value == lower }},
		{"data-attribute", func(o dom.Option) bool {
			for _, v := range o.Data {
				if strings.EqualFold(v, want) {
					return true
				}
			}
			return false
		}},
		{"label-fold", func(o dom.Option) bool { return strings.EqualFold(dom.NormalizeSpace(o.Label), want) }},
		{"label-substring", func(o dom.Option) bool {
			return strings.Contains(strings.ToLower(o.Label), lower)
		}},
	}
}

// selectNative picks the first option matched by the strongest matcher.
func (c *selectOption) selectNative(ctx context.Context, el dom.Element, want string) error {
	opts, err := el.Options(ctx)
	if err != nil {
		return err
	}
	for _, m := range optionMatchers(want) {
		for i, o := range opts {
			if o.Disabled || !m.match(o) {
				continue
			}
			if err := el.SelectIndex(ctx, i); err != nil {
				return err
			}
			after, err := el.Options(ctx)
			if err != nil {
				return err
			}
			if i >= len(after) || !after[i].Selected {
				return fmt.Errorf("%w: option %q not selected", ErrStateUnchanged, o.Label)
			}
			c.log.Debug("selected native option", zap.String("by", m.name), zap.String("label", o.Label))
			return nil
		}
	}
	avail := make([]string, 0, len(opts))
	for _, o := range opts {
		avail = append(avail, fmt.Sprintf("%q (value %q)", o.Label, o.Value))
	}
	return fmt.Errorf("%w: %q; available: %s", ErrOptionNotFound, want, strings.Join(avail, ", "))
}

// open expands a custom dropdown: click, confirm aria-expanded, retry after
// scrolling, then force.
func (c *selectOption) open(ctx context.Context, el dom.Element) error {
	if err := el.ScrollIntoView(ctx); err != nil {
		c.log.Debug("scroll before open failed", zap.Error(err))
	}
	if err := el.Focus(ctx); err != nil {
		c.log.Debug("focus before open failed", zap.Error(err))
	}
	if expanded(ctx, el) == "true" {
		return nil
	}
	attempts := []struct {
		name string
		fn   func() error
	}{
		{"click", func() error { return el.Click(ctx, dom.ClickOptions{}) }},
		{"scroll-click", func() error {
			if err := el.ScrollIntoView(ctx); err != nil {
				return err
			}
			return el.Click(ctx, dom.ClickOptions{})
		}},
		{"force-click", func() error { return el.Click(ctx, dom.ClickOptions{Force: true}) }},
	}
	var errs []error
	for _, a := range attempts {
		err := a.fn()
		if err == nil {
			if err = c.pause(ctx); err != nil {
				return err
			}
			if expanded(ctx, el) != "false" {
				return nil
			}
			err = errors.New("aria-expanded still false")
		}
		c.log.Debug("dropdown open attempt failed", zap.String("strategy", a.name), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", a.name, err))
	}
	return fmt.Errorf("open dropdown: %w", errors.Join(errs...))
}

func expanded(ctx context.Context, el dom.Element) string {
	v, _ := attrOf(ctx, el, "aria-expanded")
	return strings.ToLower(v)
}

// overlayCandidates are the option patterns of common component libraries,
// most specific first.
func overlayCandidates(option string) []selector.Node {
	exact := selector.Exact(option)
	text := func(container string) selector.Node {
		return selector.Append(css(container), selector.Chain{Child: &selector.TextNode{Text: *exact}})
	}
	filtered := func(container string) selector.Node {
		return selector.Append(css(container), selector.Filter{HasText: exact})
	}
	name := selector.Literal(option)
	return []selector.Node{
		&selector.RoleNode{Role: "option", Name: name},
		&selector.RoleNode{Role: "menuitem", Name: name},
		&selector.TextNode{Text: *exact},
		filtered(`[role="listbox"] [role="option"]`),
		text(`.p-dropdown-panel .p-dropdown-items .p-dropdown-item`),
		text(`.p-multiselect-panel .p-multiselect-items .p-multiselect-item`),
		text(`.MuiPopover-root .MuiList-root [role="option"]`),
		text(`.ant-select-dropdown [role="option"], .ant-select-item-option-content`),
		text(`[role="combobox"] + [role="listbox"] [role="option"]`),
		text(`.dropdown-menu, .dropdown-content`),
		text(`[data-testid*="option"], [data-testid*="item"]`),
		filtered(`.single-option-selector option`),
	}
}

func (c *selectOption) selectFromOverlay(ctx context.Context, option string) error {
	var errs []error
	for _, n := range overlayCandidates(option) {
		target, err := c.waitVisible(ctx, c.env.Page, n, c.env.Timeouts.Option)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := target.ScrollIntoView(ctx); err != nil {
			c.log.Debug("option scroll failed", zap.Error(err))
		}
		if err := target.Hover(ctx); err != nil {
			c.log.Debug("option hover failed", zap.Error(err))
		}
		if err := target.Click(ctx, dom.ClickOptions{}); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n, err))
			continue
		}
		c.log.Debug("selected overlay option", zap.Stringer("locator", n))
		return nil
	}
	c.log.Debug("no overlay option matched", zap.Error(errors.Join(errs...)))
	return fmt.Errorf("%w in overlay: %q", ErrOptionNotFound, option)
}

func (c *selectOption) selectWithin(ctx context.Context, el dom.Element, option string) error {
	target, err := c.waitVisible(ctx, el, &selector.TextNode{Text: *selector.Literal(option)}, c.env.Timeouts.Option)
	if err != nil {
		return fmt.Errorf("%w in control: %q: %v", ErrOptionNotFound, option, err)
	}
	return target.Click(ctx, dom.ClickOptions{})
}
