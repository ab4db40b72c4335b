package action

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/v0xg/uistep/internal/dom"
)

// readChecked reads a checkable state: the native property, else
// aria-checked, else the presence of the checked attribute. known is false
// only when the element could not be read at all.
func readChecked(ctx context.Context, el dom.Element) (state, known bool) {
	checked, err := el.Checked(ctx)
	if err == nil {
		return checked, true
	}
	if !errors.Is(err, dom.ErrUnsupported) {
		return false, false
	}
	attrs, err := el.Attributes(ctx)
	if err != nil {
		return false, false
	}
	if aria, ok := attrs["aria-checked"]; ok {
		switch strings.ToLower(aria) {
		case "true", "mixed", "on", "1":
			return true, true
		}
		return false, true
	}
	_, ok := attrs["checked"]
	return ok, true
}

type check struct {
	*command
	want bool
}

func (c *check) run(ctx context.Context, out *Outcome) error {
	if c.want && ShouldSkip(KindCheck, c.spec.Description) {
		return ErrSkipped
	}
	ref, el, err := c.element(ctx, out)
	if err != nil {
		return err
	}
	if state, known := readChecked(ctx, el); known && state == c.want {
		out.Strategy = "already-set"
		c.log.Debug("already in target state", zap.Bool("checked", c.want))
		return nil
	}

	err = c.ladder(ctx, ref, out,
		strategy{"set-checked", func(ctx context.Context, el dom.Element) error {
			return el.SetChecked(ctx, c.want)
		}},
		strategy{"click", func(ctx context.Context, el dom.Element) error {
			return el.Click(ctx, dom.ClickOptions{})
		}},
	)
	if err != nil {
		return err
	}

	el, err = ref.Element(ctx)
	if err != nil {
		// The element may have been replaced by the interaction itself;
		// an unreadable final state counts as success.
		c.log.Warn("accepting unreadable checked state", zap.Error(err))
		return nil
	}
	state, known := readChecked(ctx, el)
	if !known {
		c.log.Warn("accepting unreadable checked state")
		return nil
	}
	if state != c.want {
		return fmt.Errorf("%w: checked=%t, want %t", ErrStateUnchanged, state, c.want)
	}
	return nil
}

var activeClasses = []string{"active", "on", "enabled", "checked", "selected"}

// toggleState reads an on/off state: aria-checked, aria-pressed, the
// native checked property, then an active-looking class token.
func toggleState(ctx context.Context, el dom.Element) (bool, error) {
	attrs, err := el.Attributes(ctx)
	if err != nil {
		return false, err
	}
	for _, a := range []string{"aria-checked", "aria-pressed"} {
		if v, ok := attrs[a]; ok && v != "" {
			return strings.EqualFold(v, "true"), nil
		}
	}
	if checked, err := el.Checked(ctx); err == nil {
		return checked, nil
	} else if !errors.Is(err, dom.ErrUnsupported) {
		return false, err
	}
	if _, ok := attrs["checked"]; ok {
		return true, nil
	}
	for _, cls := range activeClasses {
		if dom.HasClass(attrs["class"], cls) {
			return true, nil
		}
	}
	return false, nil
}

type toggle struct{ *command }

func (c *toggle) run(ctx context.Context, out *Outcome) error {
	ref, el, err := c.element(ctx, out)
	if err != nil {
		return err
	}
	before, err := toggleState(ctx, el)
	if err != nil {
		return err
	}
	err = c.ladder(ctx, ref, out,
		strategy{"click", func(ctx context.Context, el dom.Element) error {
			return el.Click(ctx, dom.ClickOptions{})
		}},
		strategy{"force-click", func(ctx context.Context, el dom.Element) error {
			return el.Click(ctx, dom.ClickOptions{Force: true})
		}},
	)
	if err != nil {
		return err
	}
	if err := c.pause(ctx); err != nil {
		return err
	}
	el, err = ref.Element(ctx)
	if err != nil {
		return err
	}
	after, err := toggleState(ctx, el)
	if err != nil {
		return err
	}
	if after == before {
		return fmt.Errorf("%w: still %t", ErrStateUnchanged, after)
	}
	c.log.Debug("toggled", zap.Bool("from", before), zap.Bool("to", after))
	return nil
}
