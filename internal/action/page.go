package action

import (
	"context"
	"fmt"
	"strings"

	"github.com/v0xg/uistep/internal/dom"
	"github.com/v0xg/uistep/internal/locator"
)

type navigate struct{ *command }

func (c *navigate) run(ctx context.Context, out *Outcome) error {
	url := URL(c.spec.Description)
	if url == "" {
		url = URL(c.spec.Selector)
	}
	if url == "" {
		return fmt.Errorf("navigate: %w", ErrNoInput)
	}
	if cur, err := c.env.Page.URL(ctx); err == nil {
		url = dom.ResolveURL(cur, url)
	} else {
		url = dom.ResolveURL("", url)
	}
	out.UsedSelector = url
	out.Trail = append(out.Trail, "navigate")
	err := dom.WithTimeout(ctx, "navigate", c.env.Timeouts.Navigation, func(ctx context.Context) error {
		if err := c.env.Page.Navigate(ctx, url); err != nil {
			return err
		}
		return c.env.Page.WaitLoad(ctx)
	})
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	out.Strategy = "navigate"
	return nil
}

type reload struct{ *command }

func (c *reload) run(ctx context.Context, out *Outcome) error {
	out.Trail = append(out.Trail, "reload")
	err := dom.WithTimeout(ctx, "reload", c.env.Timeouts.Navigation, func(ctx context.Context) error {
		if err := c.env.Page.Reload(ctx); err != nil {
			return err
		}
		return c.env.Page.WaitLoad(ctx)
	})
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	out.Strategy = "reload"
	return nil
}

// submitButtons are searched inside the form, in order.
var submitButtons = []string{
	`input[type="submit"]`,
	`button[type="submit"]`,
	`button:has-text("Submit")`,
	`button:has-text("Send")`,
	`.submit-btn`,
	`.btn-submit`,
}

const enterableInputs = `input:not([type]), input[type="text"], input[type="email"], input[type="search"], input[type="password"], input[type="tel"], input[type="url"], input[type="number"]`

type submitForm struct{ *command }

func (c *submitForm) run(ctx context.Context, out *Outcome) error {
	ref, err := c.resolve(ctx, out)
	if err != nil {
		return err
	}
	return c.ladder(ctx, ref, out,
		strategy{"submit-button", func(ctx context.Context, el dom.Element) error {
			form, err := formOf(ctx, el)
			if err != nil {
				return err
			}
			btn, err := c.firstVisible(ctx, form, submitButtons)
			if err != nil {
				return err
			}
			return btn.Click(ctx, dom.ClickOptions{})
		}},
		strategy{"enter", func(ctx context.Context, el dom.Element) error {
			form, err := formOf(ctx, el)
			if err != nil {
				return err
			}
			field, err := c.firstVisible(ctx, form, []string{enterableInputs})
			if err != nil {
				return err
			}
			return field.Press(ctx, "Enter")
		}},
		strategy{"script-submit", func(ctx context.Context, el dom.Element) error {
			return el.Submit(ctx)
		}},
	)
}

// formOf returns el's enclosing form, or el itself when it has none.
func formOf(ctx context.Context, el dom.Element) (dom.Element, error) {
	form, err := el.Closest(ctx, "form")
	if err != nil {
		return nil, err
	}
	if form == nil {
		return el, nil
	}
	return form, nil
}

// firstVisible returns the first visible match of the first selector in
// list that has one.
func (c *command) firstVisible(ctx context.Context, scope dom.Scope, list []string) (dom.Element, error) {
	for _, s := range list {
		els, err := c.env.Resolver.EvaluateIn(ctx, c.env.Page, scope, css(s))
		if err != nil {
			return nil, err
		}
		for _, el := range els {
			if vis, err := el.Visible(ctx); err == nil && vis {
				return el, nil
			}
		}
	}
	return nil, fmt.Errorf("none visible of %s", strings.Join(list, " | "))
}

var closeButtons = []string{
	`.close`,
	`.modal-close`,
	`[aria-label="Close"]`,
	`button:has-text("×")`,
	`button:has-text("Close")`,
	`.btn-close`,
}

type closeModal struct{ *command }

// genericModals are the dialogs a close_modal without a selector acts on.
var genericModals = []string{
	`[role="dialog"]`,
	`[aria-modal="true"]`,
	`.modal`,
	`dialog[open]`,
}

func (c *closeModal) run(ctx context.Context, out *Outcome) error {
	var ref *locator.Reference
	if strings.TrimSpace(c.spec.Selector) != "" || len(c.spec.Fallback) > 0 {
		var err error
		if ref, err = c.resolve(ctx, out); err != nil {
			return err
		}
	}
	return c.ladder(ctx, ref, out,
		strategy{"close-button", func(ctx context.Context, el dom.Element) error {
			var scope dom.Scope = c.env.Page
			if el != nil {
				scope = el
			}
			btn, err := c.firstVisible(ctx, scope, closeButtons)
			if err != nil {
				return err
			}
			return btn.Click(ctx, dom.ClickOptions{})
		}},
		strategy{"escape", func(ctx context.Context, el dom.Element) error {
			if err := c.env.Page.Press(ctx, "Escape"); err != nil {
				return err
			}
			if err := c.pause(ctx); err != nil {
				return err
			}
			if ref == nil {
				return c.requireNoModal(ctx)
			}
			return requireClosed(ctx, ref)
		}},
		strategy{"overlay-click", func(ctx context.Context, el dom.Element) error {
			ov, err := c.firstVisible(ctx, c.env.Page, c.overlays(out.UsedSelector))
			if err != nil {
				return err
			}
			return ov.Click(ctx, dom.ClickOptions{Force: true})
		}},
		strategy{"script-hide", func(ctx context.Context, el dom.Element) error {
			if el == nil {
				var err error
				if el, err = c.firstVisible(ctx, c.env.Page, genericModals); err != nil {
					return err
				}
			}
			return el.Hide(ctx)
		}},
	)
}

// requireNoModal fails while any generic dialog is still shown.
func (c *closeModal) requireNoModal(ctx context.Context) error {
	if _, err := c.firstVisible(ctx, c.env.Page, genericModals); err == nil {
		return fmt.Errorf("%w: modal still visible", ErrStateUnchanged)
	}
	return nil
}

// requireClosed re-evaluates the modal and fails while it is still shown.
func requireClosed(ctx context.Context, ref *locator.Reference) error {
	els, err := ref.All(ctx)
	if err != nil {
		return err
	}
	for _, el := range els {
		if vis, err := el.Visible(ctx); err == nil && vis {
			return fmt.Errorf("%w: modal still visible", ErrStateUnchanged)
		}
	}
	return nil
}

// overlays lists backdrop selectors for a modal selector like
// "#login-modal": "#login-modal-overlay", "#login-overlay" and the generic
// backdrops.
func (c *closeModal) overlays(used string) []string {
	var out []string
	if sel, err := locator.LiteralCSS(used); err == nil && !strings.ContainsAny(sel, " ,>+~") {
		out = append(out, sel+"-overlay")
		if strings.Contains(sel, "-modal") {
			out = append(out, strings.ReplaceAll(sel, "-modal", "-overlay"))
		}
	}
	return append(out, ".modal-overlay", ".overlay")
}
