package action

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/v0xg/uistep/internal/dom"
)

// overlayPanels match the popup containers opened by menu triggers.
const overlayPanels = `.p-overlaypanel, .p-menu-overlay, .p-contextmenu, [role="menu"]`

var (
	overlayMarkers = []string{".p-overlaypanel", ".p-menu-overlay", ".overlay-menu"}
	hasTextRe      = regexp.MustCompile(`:has-text\(["']([^"']+)["']\)`)
)

// overlayOptionSelectors are tried in order to click an option inside an
// open overlay; containment matches come before exact ones.
func overlayOptionSelectors(text string) []string {
	q := dom.QuoteCSS(text)
	return []string{
		`.overlay-menu .menu-item:has-text(` + q + `)`,
		`.p-overlaypanel .option-item:has-text(` + q + `)`,
		`.p-menu-overlay .p-menuitem:has-text(` + q + `)`,
		`.p-overlaypanel-content .option-item:has-text(` + q + `)`,
		`.p-menu-list .p-menuitem:has-text(` + q + `)`,
		`.menu-item span:text-is(` + q + `)`,
		`.p-overlaypanel-content span:text-is(` + q + `)`,
		`.p-menuitem-text:text-is(` + q + `)`,
	}
}

type click struct {
	*command
	smart bool
}

func (c *click) run(ctx context.Context, out *Outcome) error {
	if !c.smart && ShouldSkip(KindClick, c.spec.Description) {
		return ErrSkipped
	}
	ref, el, err := c.element(ctx, out)
	if err != nil {
		return err
	}

	if c.enterSubmits(ctx, el) {
		return c.ladder(ctx, ref, out, strategy{"enter-submit", func(ctx context.Context, el dom.Element) error {
			return el.Press(ctx, "Enter")
		}})
	}

	var steps []strategy
	if text, ok := c.overlayOption(); ok {
		steps = append(steps, strategy{"overlay-option", func(ctx context.Context, _ dom.Element) error {
			return c.clickOverlayOption(ctx, text)
		}})
	}
	if c.isMenuTrigger(ctx, el, out.UsedSelector) {
		steps = append(steps, strategy{"menu-trigger", c.openMenu})
	}
	steps = append(steps,
		strategy{"click", func(ctx context.Context, el dom.Element) error {
			return el.Click(ctx, dom.ClickOptions{})
		}},
		strategy{"scroll-click", func(ctx context.Context, el dom.Element) error {
			if err := el.ScrollIntoView(ctx); err != nil {
				return err
			}
			return el.Click(ctx, dom.ClickOptions{})
		}},
		strategy{"force-click", func(ctx context.Context, el dom.Element) error {
			return el.Click(ctx, dom.ClickOptions{Force: true})
		}},
		strategy{"dispatch-click", func(ctx context.Context, el dom.Element) error {
			return el.DispatchClick(ctx)
		}},
	)
	if c.smart {
		steps = append(steps, strategy{"coordinate-click", c.coordinateClick})
	}
	return c.ladder(ctx, ref, out, steps...)
}

// enterSubmits reports whether a submission click on a text field should
// be an Enter press instead: the form has no visible submit button.
func (c *click) enterSubmits(ctx context.Context, el dom.Element) bool {
	if !IsSubmission(c.spec.Description) || tagOf(ctx, el) != "input" {
		return false
	}
	typ, _ := attrOf(ctx, el, "type")
	switch strings.ToLower(typ) {
	case "text", "email", "search":
	default:
		return false
	}
	form, err := el.Closest(ctx, "form")
	if err != nil {
		return false
	}
	if form != nil {
		buttons, err := form.Query(ctx, `button[type="submit"], [type="submit"]`)
		if err != nil {
			return false
		}
		if len(buttons) > 0 {
			if vis, err := buttons[0].Visible(ctx); err == nil && vis {
				return false
			}
		}
	}
	c.log.Debug("submitting with enter")
	return true
}

func (c *click) overlayOption() (string, bool) {
	for _, m := range overlayMarkers {
		if strings.Contains(c.spec.Selector, m) {
			if sub := hasTextRe.FindStringSubmatch(c.spec.Selector); sub != nil {
				return sub[1], true
			}
		}
	}
	return "", false
}

func (c *click) clickOverlayOption(ctx context.Context, text string) error {
	if _, err := c.waitVisible(ctx, c.env.Page, css(overlayPanels), c.env.Timeouts.Overlay); err != nil {
		return err
	}
	var errs []error
	for _, s := range overlayOptionSelectors(text) {
		els, err := c.env.Resolver.Evaluate(ctx, c.env.Page, css(s))
		if err != nil || len(els) == 0 {
			continue
		}
		opt := els[0]
		if err := opt.ScrollIntoView(ctx); err != nil {
			c.log.Debug("overlay option scroll failed", zap.String("css", s), zap.Error(err))
		}
		if err := opt.Hover(ctx); err != nil {
			c.log.Debug("overlay option hover failed", zap.String("css", s), zap.Error(err))
		}
		if err := c.pause(ctx); err != nil {
			return err
		}
		if err := opt.Click(ctx, dom.ClickOptions{}); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s, err))
			continue
		}
		c.log.Debug("clicked overlay option", zap.String("css", s))
		return nil
	}
	errs = append(errs, fmt.Errorf("no overlay option %q", text))
	return errors.Join(errs...)
}

// isMenuTrigger detects hover-revealed menu buttons: *-menu selectors and
// icon images inside action bars or carrying popup attributes.
func (c *click) isMenuTrigger(ctx context.Context, el dom.Element, used string) bool {
	if strings.Contains(c.spec.Selector, "-menu") || strings.Contains(used, "-menu") {
		return true
	}
	attrs, err := el.Attributes(ctx)
	if err != nil {
		return false
	}
	_, tooltip := attrs["data-pd-tooltip"]
	if tagOf(ctx, el) != "img" && !tooltip {
		return false
	}
	if attrs["id"] == "details-more-menu" || tooltip {
		return true
	}
	if _, ok := attrs["aria-haspopup"]; ok {
		return true
	}
	if _, ok := attrs["aria-controls"]; ok {
		return true
	}
	bar, err := el.Closest(ctx, ".action-buttons")
	return err == nil && bar != nil
}

func (c *click) openMenu(ctx context.Context, el dom.Element) error {
	if err := el.ForceVisible(ctx); err != nil {
		return err
	}
	if err := el.Hover(ctx); err != nil {
		c.log.Debug("menu trigger hover failed", zap.Error(err))
	}
	if err := c.pause(ctx); err != nil {
		return err
	}
	if err := el.Click(ctx, dom.ClickOptions{Force: true}); err != nil {
		return err
	}
	if _, err := c.waitVisible(ctx, c.env.Page, css(overlayPanels), c.env.Timeouts.Overlay); err != nil {
		c.log.Debug("no menu panel after trigger click", zap.Error(err))
	}
	return nil
}

func (c *click) coordinateClick(ctx context.Context, el dom.Element) error {
	box, err := el.BoundingBox(ctx)
	if err != nil {
		return err
	}
	x, y := box.Center()
	return c.env.Page.ClickAt(ctx, x, y)
}
