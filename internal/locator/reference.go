package locator

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/uistep/internal/dom"
	"github.com/v0xg/uistep/internal/selector"
)

// Reference is a handle to the element an expression resolved to. It keeps
// the refined selector tree, not the element, so every use re-queries the
// page.
type Reference struct {
	resolver *Resolver
	page     dom.Page
	node     selector.Node
	used     string
}

// NewReference binds n to page without resolving it.
func (r *Resolver) NewReference(page dom.Page, n selector.Node, used string) *Reference {
	return &Reference{resolver: r, page: page, node: n, used: used}
}

// Node returns the refined selector tree.
func (ref *Reference) Node() selector.Node { return ref.node }

// UsedSelector is the literal expression that produced the reference.
func (ref *Reference) UsedSelector() string { return ref.used }

// Page returns the page the reference is bound to.
func (ref *Reference) Page() dom.Page { return ref.page }

// String renders the refined locator.
func (ref *Reference) String() string { return ref.node.String() }

// All evaluates the reference now.
func (ref *Reference) All(ctx context.Context) ([]dom.Element, error) {
	return ref.resolver.Evaluate(ctx, ref.page, ref.node)
}

// Element evaluates the reference and returns its element.
func (ref *Reference) Element(ctx context.Context) (dom.Element, error) {
	els, err := ref.All(ctx)
	if err != nil {
		if dom.IsDetached(err) {
			return nil, &ResolutionError{Reason: Detached, Selector: ref.String(), Err: err}
		}
		return nil, err
	}
	if len(els) == 0 {
		return nil, &ResolutionError{Reason: NoMatch, Selector: ref.String()}
	}
	return els[0], nil
}

// Within evaluates n scoped to the referenced element.
func (ref *Reference) Within(ctx context.Context, n selector.Node) ([]dom.Element, error) {
	el, err := ref.Element(ctx)
	if err != nil {
		return nil, err
	}
	return ref.resolver.EvaluateIn(ctx, ref.page, el, n)
}

// ResolveOptions tune a single resolution.
type ResolveOptions struct {
	Hints []string
	// Poll keeps re-evaluating until something matches or the timeout
	// expires; otherwise a single evaluation decides.
	Poll bool
	// RequireVisible waits for the chosen element to be visible.
	RequireVisible bool
	// Timeout overrides the resolver's stage timeout.
	Timeout time.Duration
}

// Resolve evaluates n, narrows multiple matches and returns a Reference to
// the single chosen element.
func (r *Resolver) Resolve(ctx context.Context, page dom.Page, n selector.Node, used string, opts ResolveOptions) (*Reference, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = r.opts.Timeout
	}
	if used == "" {
		used = n.String()
	}
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fail := func(reason Reason, err error) (*Reference, error) {
		if ctx.Err() == nil && rctx.Err() != nil {
			te := &dom.TimeoutError{Op: "resolve", After: timeout}
			if err == nil || errors.Is(err, context.DeadlineExceeded) {
				err = te
			} else {
				err = errors.Join(te, err)
			}
		}
		return nil, &ResolutionError{Reason: reason, Selector: used, Err: err}
	}

	var set []dom.Element
	for {
		var err error
		set, err = r.Evaluate(rctx, page, n)
		if err != nil {
			if dom.IsDetached(err) {
				return fail(Detached, err)
			}
			return fail(NoMatch, err)
		}
		if len(set) > 0 || !opts.Poll {
			break
		}
		if err := dom.Sleep(rctx, r.opts.PollInterval); err != nil {
			return fail(NoMatch, err)
		}
	}
	if len(set) == 0 {
		return fail(NoMatch, nil)
	}

	refined, err := r.narrow(rctx, page, n, set, opts.Hints)
	if err != nil {
		var rerr *ResolutionError
		if errors.As(err, &rerr) {
			rerr.Selector = used
			return nil, rerr
		}
		return fail(NoMatch, err)
	}
	ref := r.NewReference(page, refined, used)

	if opts.RequireVisible {
		for {
			el, err := ref.Element(rctx)
			if err != nil {
				if dom.IsDetached(err) {
					return fail(Detached, err)
				}
				return fail(NoMatch, err)
			}
			vis, err := el.Visible(rctx)
			if err != nil {
				return fail(NoMatch, err)
			}
			if vis {
				break
			}
			if err := dom.Sleep(rctx, r.opts.PollInterval); err != nil {
				return fail(NoMatch, dom.ErrNotVisible)
			}
		}
	}
	r.log.Debug("resolved",
		zap.String("selector", used),
		zap.String("locator", ref.String()),
		zap.Int("candidates", len(set)))
	return ref, nil
}
