// Package action implements one command per action kind. A command
// resolves its target through the locator fallback chain, performs the
// interaction through an ordered ladder of named strategies and verifies
// the resulting state. Commands never return errors to their caller: the
// outcome carries success=false and a typed *ActionError instead.
package action

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/uistep/internal/dom"
	"github.com/v0xg/uistep/internal/locator"
	"github.com/v0xg/uistep/internal/selector"
)

var (
	// ErrExecuted is reported by a second Execute on the same command.
	ErrExecuted = errors.New("command already executed")
	// ErrSkipped means the description said there was nothing to act on.
	ErrSkipped = errors.New("description indicates nothing to act on")
	// ErrNoInput means the description did not contain the text, option,
	// key or URL the action needs.
	ErrNoInput = errors.New("no input found in description")
	// ErrStateUnchanged means the interaction ran but the element did not
	// reach the expected state.
	ErrStateUnchanged = errors.New("element state did not change as expected")
	// ErrOptionNotFound means no option matched the requested one.
	ErrOptionNotFound = errors.New("option not found")
)

// ActionError is the failure of a command after resolution or during the
// interaction.
type ActionError struct {
	Kind     Kind
	Selector string
	Err      error
}

func (e *ActionError) Error() string {
	if e.Selector == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Selector, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// Spec is the immutable input of one command.
type Spec struct {
	Selector    string `json:"selector" yaml:"selector"`
	Fallback    string `json:"fallback,omitempty" yaml:"fallback,omitempty"`
	Description string `json:"description" yaml:"description"`
	// Avoid lists expressions that already failed for this step; the
	// fallback chain tries them last.
	Avoid []string `json:"avoid,omitempty" yaml:"-"`
}

// Timeouts bound the individual interactions of a command.
type Timeouts struct {
	// Action bounds each strategy of a ladder.
	Action time.Duration
	// Navigation bounds navigate and reload including the load wait.
	Navigation time.Duration
	// Overlay bounds waiting for a menu or overlay panel to open.
	Overlay time.Duration
	// Option bounds the search for one dropdown option candidate.
	Option time.Duration
	// PreClick bounds the focusing click before a fill.
	PreClick time.Duration
	// Pause is the settle delay after hovers, dropdown opens and toggles.
	Pause time.Duration
	// TypeDelay is the per-key delay of type when the description names
	// none.
	TypeDelay time.Duration
}

// DefaultTimeouts returns the production timeouts.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Action:     10 * time.Second,
		Navigation: 30 * time.Second,
		Overlay:    5 * time.Second,
		Option:     300 * time.Millisecond,
		PreClick:   3 * time.Second,
		Pause:      500 * time.Millisecond,
		TypeDelay:  DefaultTypeDelay,
	}
}

func (t Timeouts) withDefaults() Timeouts {
	def := DefaultTimeouts()
	if t.Action <= 0 {
		t.Action = def.Action
	}
	if t.Navigation <= 0 {
		t.Navigation = def.Navigation
	}
	if t.Overlay <= 0 {
		t.Overlay = def.Overlay
	}
	if t.Option <= 0 {
		t.Option = def.Option
	}
	if t.PreClick <= 0 {
		t.PreClick = def.PreClick
	}
	if t.Pause <= 0 {
		t.Pause = def.Pause
	}
	if t.TypeDelay <= 0 {
		t.TypeDelay = def.TypeDelay
	}
	return t
}

// Env is what commands need from their surroundings.
type Env struct {
	Page     dom.Page
	Resolver *locator.Resolver
	Logger   *zap.Logger
	// HintWords are the description words used to break ties between
	// identical candidates. Nil means locator.DefaultHintWords.
	HintWords []string
	Timeouts  Timeouts
}

// Outcome is the result of Execute.
type Outcome struct {
	Executed bool `json:"executed"`
	Success  bool `json:"success"`
	// UsedSelector is the literal expression that resolved the target.
	UsedSelector string `json:"used_selector,omitempty"`
	// ResolvedLocator renders the refined locator that was acted on.
	ResolvedLocator string            `json:"resolved_locator,omitempty"`
	Stage           locator.Stage     `json:"stage,omitempty"`
	Attempts        []locator.Attempt `json:"-"`
	// Strategy is the ladder step that succeeded; Trail lists every step
	// tried, in order.
	Strategy string   `json:"strategy,omitempty"`
	Trail    []string `json:"trail,omitempty"`
	// Target is the acted-on element's box when it could be measured.
	Target *dom.Box `json:"target,omitempty"`
	Err    error    `json:"-"`
}

// Command is one executable action.
type Command interface {
	Kind() Kind
	Spec() Spec
	// Execute runs the command. It runs at most once; later calls report
	// ErrExecuted without touching the page.
	Execute(ctx context.Context) Outcome
}

// variant is the kind-specific part of a command.
type variant interface {
	run(ctx context.Context, out *Outcome) error
}

type command struct {
	kind Kind
	spec Spec
	env  Env
	log  *zap.Logger
	ran  bool
	impl variant
}

var constructors = map[Kind]func(*command) variant{
	KindFill:       func(c *command) variant { return &fill{command: c} },
	KindFillSubmit: func(c *command) variant { return &fill{command: c, submit: true} },
	KindClick:      func(c *command) variant { return &click{command: c} },
	KindSmartClick: func(c *command) variant { return &click{command: c, smart: true} },
	KindCheck:      func(c *command) variant { return &check{command: c, want: true} },
	KindUncheck:    func(c *command) variant { return &check{command: c, want: false} },
	KindSelect:     func(c *command) variant { return &selectOption{command: c} },
	KindNavigate:   func(c *command) variant { return &navigate{command: c} },
	KindReload:     func(c *command) variant { return &reload{command: c} },
	KindClearInput: func(c *command) variant { return &clearInput{command: c} },
	KindType:       func(c *command) variant { return &typeText{command: c} },
	KindPressKey:   func(c *command) variant { return &pressKey{command: c} },
	KindToggle:     func(c *command) variant { return &toggle{command: c} },
	KindSubmitForm: func(c *command) variant { return &submitForm{command: c} },
	KindCloseModal: func(c *command) variant { return &closeModal{command: c} },
}

// New builds the command for kind.
func New(kind Kind, spec Spec, env Env) (Command, error) {
	ctor, ok := constructors[kind]
	if !ok {
		return nil, fmt.Errorf("unknown action kind %d", int(kind))
	}
	if env.Page == nil {
		return nil, errors.New("action: nil page")
	}
	if env.Resolver == nil {
		return nil, errors.New("action: nil resolver")
	}
	if env.Logger == nil {
		env.Logger = zap.NewNop()
	}
	if env.HintWords == nil {
		env.HintWords = locator.DefaultHintWords
	}
	env.Timeouts = env.Timeouts.withDefaults()
	spec.Avoid = append([]string(nil), spec.Avoid...)
	c := &command{
		kind: kind,
		spec: spec,
		env:  env,
		log: env.Logger.Named("action").With(
			zap.Stringer("kind", kind),
			zap.String("selector", spec.Selector)),
	}
	c.impl = ctor(c)
	return c, nil
}

func (c *command) Kind() Kind { return c.kind }

func (c *command) Spec() Spec { return c.spec }

func (c *command) Execute(ctx context.Context) Outcome {
	if c.ran {
		return Outcome{Err: &ActionError{Kind: c.kind, Selector: c.spec.Selector, Err: ErrExecuted}}
	}
	c.ran = true

	var out Outcome
	err := c.impl.run(ctx, &out)
	out.Executed = true
	if err != nil {
		out.Err = &ActionError{Kind: c.kind, Selector: c.spec.Selector, Err: err}
		c.log.Warn("action failed", zap.Strings("trail", out.Trail), zap.Error(err))
		return out
	}
	out.Success = true
	c.log.Info("action succeeded",
		zap.String("used_selector", out.UsedSelector),
		zap.String("locator", out.ResolvedLocator),
		zap.String("strategy", out.Strategy))
	return out
}

// resolve walks the fallback chain for the command's selectors and records
// the winning stage in out.
func (c *command) resolve(ctx context.Context, out *Outcome) (*locator.Reference, error) {
	res, err := c.env.Resolver.ResolveWithFallback(ctx, c.env.Page, locator.Request{
		Primary:  c.spec.Selector,
		Fallback: c.spec.Fallback,
		Hints:    locator.Hints(c.spec.Description, c.env.HintWords),
		Avoid:    c.spec.Avoid,
	})
	if err != nil {
		var chain *locator.ChainError
		if errors.As(err, &chain) {
			out.Attempts = chain.Attempts
		}
		return nil, err
	}
	out.UsedSelector = res.Reference.UsedSelector()
	out.ResolvedLocator = res.Reference.String()
	out.Stage = res.Stage
	out.Attempts = res.Attempts

	if el, err := res.Reference.Element(ctx); err == nil {
		if box, err := el.BoundingBox(ctx); err == nil {
			out.Target = &box
		}
	}
	return res.Reference, nil
}

// element resolves and returns the target element.
func (c *command) element(ctx context.Context, out *Outcome) (*locator.Reference, dom.Element, error) {
	ref, err := c.resolve(ctx, out)
	if err != nil {
		return nil, nil, err
	}
	el, err := ref.Element(ctx)
	if err != nil {
		return nil, nil, err
	}
	return ref, el, nil
}

// strategy is one named rung of a ladder.
type strategy struct {
	name string
	fn   func(ctx context.Context, el dom.Element) error
}

// ladder runs strategies in order against a fresh evaluation of ref until
// one succeeds. Each rung has its own Action timeout. Failures are logged
// and joined.
func (c *command) ladder(ctx context.Context, ref *locator.Reference, out *Outcome, steps ...strategy) error {
	var errs []error
	for _, s := range steps {
		out.Trail = append(out.Trail, s.name)
		err := dom.WithTimeout(ctx, s.name, c.env.Timeouts.Action, func(ctx context.Context) error {
			var el dom.Element
			if ref != nil {
				var err error
				if el, err = ref.Element(ctx); err != nil {
					return err
				}
			}
			return s.fn(ctx, el)
		})
		if err == nil {
			out.Strategy = s.name
			c.log.Debug("strategy succeeded", zap.String("strategy", s.name))
			return nil
		}
		c.log.Debug("strategy failed", zap.String("strategy", s.name), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		if ctx.Err() != nil {
			break
		}
	}
	return errors.Join(errs...)
}

// pause waits the settle delay.
func (c *command) pause(ctx context.Context) error {
	return dom.Sleep(ctx, c.env.Timeouts.Pause)
}

// waitVisible polls n under scope until one of its matches is visible.
func (c *command) waitVisible(ctx context.Context, scope dom.Scope, n selector.Node, d time.Duration) (dom.Element, error) {
	var found dom.Element
	poll := c.env.Resolver.Options().PollInterval
	if d <= 0 {
		d = poll
	}
	err := dom.WithTimeout(ctx, "wait visible", d, func(ctx context.Context) error {
		for {
			els, err := c.env.Resolver.EvaluateIn(ctx, c.env.Page, scope, n)
			if err != nil {
				return err
			}
			for _, el := range els {
				if ok, err := el.Visible(ctx); err == nil && ok {
					found = el
					return nil
				}
			}
			if err := dom.Sleep(ctx, poll); err != nil {
				return err
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", n, err)
	}
	return found, nil
}

func css(s string) selector.Node { return &selector.CSSNode{CSS: s} }

func tagOf(ctx context.Context, el dom.Element) string {
	tag, err := el.TagName(ctx)
	if err != nil {
		return ""
	}
	return tag
}

func attrOf(ctx context.Context, el dom.Element, name string) (string, bool) {
	v, ok, err := el.Attribute(ctx, name)
	if err != nil {
		return "", false
	}
	return v, ok
}
