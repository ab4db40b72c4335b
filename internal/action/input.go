package action

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/v0xg/uistep/internal/dom"
)

type fill struct {
	*command
	submit bool
}

func (c *fill) run(ctx context.Context, out *Outcome) error {
	text := FillText(c.spec.Description)
	if text == "" {
		return fmt.Errorf("fill: %w", ErrNoInput)
	}
	ref, err := c.resolve(ctx, out)
	if err != nil {
		return err
	}
	err = c.ladder(ctx, ref, out, strategy{"fill", func(ctx context.Context, el dom.Element) error {
		err := dom.WithTimeout(ctx, "pre-fill click", c.env.Timeouts.PreClick, func(ctx context.Context) error {
			return el.Click(ctx, dom.ClickOptions{})
		})
		if err != nil {
			c.log.Debug("pre-fill click skipped", zap.Error(err))
		}
		if err := el.Fill(ctx, text); err != nil {
			return err
		}
		return verifyValue(ctx, el, func(v string) bool { return v == text })
	}})
	if err != nil || !c.submit {
		return err
	}
	return c.ladder(ctx, ref, out,
		strategy{"element-enter", func(ctx context.Context, el dom.Element) error {
			return el.Press(ctx, "Enter")
		}},
		strategy{"page-enter", func(ctx context.Context, _ dom.Element) error {
			return c.env.Page.Press(ctx, "Enter")
		}},
	)
}

// verifyValue checks the value of text controls. Other editables (content
// editable regions) have no value to read and pass.
func verifyValue(ctx context.Context, el dom.Element, ok func(string) bool) error {
	switch tagOf(ctx, el) {
	case "input", "textarea":
	default:
		return nil
	}
	v, err := el.Value(ctx)
	if err != nil {
		return err
	}
	if !ok(v) {
		return fmt.Errorf("%w: value is %q", ErrStateUnchanged, v)
	}
	return nil
}

type clearInput struct{ *command }

func (c *clearInput) run(ctx context.Context, out *Outcome) error {
	ref, err := c.resolve(ctx, out)
	if err != nil {
		return err
	}
	return c.ladder(ctx, ref, out, strategy{"clear", func(ctx context.Context, el dom.Element) error {
		if err := el.Fill(ctx, ""); err != nil {
			return err
		}
		if err := el.Focus(ctx); err != nil {
			return err
		}
		if err := c.env.Page.Press(ctx, "Control+A"); err != nil {
			return err
		}
		if err := c.env.Page.Press(ctx, "Delete"); err != nil {
			return err
		}
		return verifyValue(ctx, el, func(v string) bool { return v == "" })
	}})
}

type typeText struct{ *command }

func (c *typeText) run(ctx context.Context, out *Outcome) error {
	text := TypeText(c.spec.Description)
	if text == "" {
		return fmt.Errorf("type: %w", ErrNoInput)
	}
	delay := TypeDelay(c.spec.Description, c.env.Timeouts.TypeDelay)
	ref, err := c.resolve(ctx, out)
	if err != nil {
		return err
	}
	return c.ladder(ctx, ref, out, strategy{"type", func(ctx context.Context, el dom.Element) error {
		if err := el.Focus(ctx); err != nil {
			return err
		}
		if err := el.Type(ctx, text, delay); err != nil {
			return err
		}
		return verifyValue(ctx, el, func(v string) bool { return strings.HasSuffix(v, text) })
	}})
}

type pressKey struct{ *command }

func (c *pressKey) run(ctx context.Context, out *Outcome) error {
	key := KeyName(c.spec.Description)
	if strings.TrimSpace(c.spec.Selector) == "" && strings.TrimSpace(c.spec.Fallback) == "" {
		return c.ladder(ctx, nil, out, strategy{"page-key", func(ctx context.Context, _ dom.Element) error {
			return c.env.Page.Press(ctx, key)
		}})
	}
	ref, err := c.resolve(ctx, out)
	if err != nil {
		return err
	}
	return c.ladder(ctx, ref, out, strategy{"element-key", func(ctx context.Context, el dom.Element) error {
		return el.Press(ctx, key)
	}})
}
