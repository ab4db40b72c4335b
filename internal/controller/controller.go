// Package controller performs one step against a page: it runs the
// matching action command, whose resolution walks the fallback chain,
// waits for the page to settle and, when the step fails, captures a
// FailedAttempt with a snapshot of the page for the caller's planner.
//
// The controller never retries a step itself. Callers feed the returned
// FailedAttempt back through a History so the next attempt tries the
// failed expressions last.
package controller

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/v0xg/uistep/internal/action"
	"github.com/v0xg/uistep/internal/dom"
	"github.com/v0xg/uistep/internal/locator"
	"github.com/v0xg/uistep/internal/snapshot"
)

// Step is one requested action.
type Step struct {
	Kind        action.Kind `json:"action" yaml:"action"`
	Selector    string      `json:"selector,omitempty" yaml:"selector,omitempty"`
	Fallback    string      `json:"fallback,omitempty" yaml:"fallback,omitempty"`
	Description string      `json:"description" yaml:"description"`
}

// Result is the outcome of Perform. Failure is set exactly when Success is
// false.
type Result struct {
	Success         bool          `json:"success"`
	UsedSelector    string        `json:"used_selector,omitempty"`
	ResolvedLocator string        `json:"resolved_locator,omitempty"`
	Stage           locator.Stage `json:"stage,omitempty"`
	Strategy        string        `json:"strategy,omitempty"`
	Trail           []string      `json:"trail,omitempty"`
	Target          *dom.Box      `json:"target,omitempty"`
	Settle          Settle        `json:"settle,omitempty"`
	Elapsed         time.Duration `json:"elapsed"`

	Failure *FailedAttempt `json:"failure,omitempty"`
}

// Options configure a Controller.
type Options struct {
	Resolver  locator.Options
	Timeouts  action.Timeouts
	Stability Stability
	// HintWords are passed to commands; nil means locator.DefaultHintWords.
	HintWords []string
	Snapshot  snapshot.Options
	// SnapshotTimeout bounds the snapshot taken for a failed step.
	SnapshotTimeout time.Duration
	Logger          *zap.Logger
}

// Controller performs steps. It holds no per-page state and may be reused
// across pages, but a page must not be driven by two calls at once.
type Controller struct {
	resolver  *locator.Resolver
	collector *snapshot.Collector
	opts      Options
	log       *zap.Logger
}

// New builds a Controller.
func New(opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.SnapshotTimeout <= 0 {
		opts.SnapshotTimeout = 10 * time.Second
	}
	opts.Stability = opts.Stability.withDefaults()
	if opts.Resolver.Logger == nil {
		opts.Resolver.Logger = opts.Logger
	}
	if opts.Snapshot.Logger == nil {
		opts.Snapshot.Logger = opts.Logger
	}
	r := locator.New(opts.Resolver)
	return &Controller{
		resolver:  r,
		collector: snapshot.New(r, opts.Snapshot),
		opts:      opts,
		log:       opts.Logger.Named("controller"),
	}
}

// Resolver returns the resolver commands use.
func (c *Controller) Resolver() *locator.Resolver { return c.resolver }

// Snapshot captures page the way a failed step does.
func (c *Controller) Snapshot(ctx context.Context, page dom.Page) (*snapshot.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.SnapshotTimeout)
	defer cancel()
	return c.collector.Collect(ctx, page)
}

// Perform runs step on page. Expressions that already failed according to
// hist are tried after every other stage of the fallback chain.
func (c *Controller) Perform(ctx context.Context, page dom.Page, step Step, hist History) Result {
	start := time.Now()
	log := c.log.With(
		zap.Stringer("action", step.Kind),
		zap.String("selector", step.Selector),
		zap.String("description", step.Description))

	cmd, err := action.New(step.Kind, action.Spec{
		Selector:    step.Selector,
		Fallback:    step.Fallback,
		Description: step.Description,
		Avoid:       hist.Selectors(),
	}, action.Env{
		Page:      page,
		Resolver:  c.resolver,
		Logger:    c.opts.Logger,
		HintWords: c.opts.HintWords,
		Timeouts:  c.opts.Timeouts,
	})
	if err != nil {
		log.Error("cannot build command", zap.Error(err))
		res := Result{Elapsed: time.Since(start)}
		res.Failure = c.fail(ctx, page, step, action.Outcome{Err: err})
		return res
	}

	out := cmd.Execute(ctx)

	mode := c.opts.Stability.Mode(step.Kind, step.Description)
	if err := c.opts.Stability.wait(ctx, page, mode, log); err != nil {
		log.Debug("stability wait interrupted", zap.Error(err))
	}

	res := Result{
		Success:         out.Success,
		UsedSelector:    out.UsedSelector,
		ResolvedLocator: out.ResolvedLocator,
		Stage:           out.Stage,
		Strategy:        out.Strategy,
		Trail:           out.Trail,
		Target:          out.Target,
		Settle:          mode,
	}
	if !out.Success {
		res.Failure = c.fail(ctx, page, step, out)
	}
	res.Elapsed = time.Since(start)

	if res.Success {
		log.Info("step performed",
			zap.String("used_selector", res.UsedSelector),
			zap.String("locator", res.ResolvedLocator),
			zap.Stringer("stage", res.Stage),
			zap.String("strategy", res.Strategy),
			zap.String("settle", string(res.Settle)),
			zap.Duration("elapsed", res.Elapsed))
	} else {
		log.Warn("step failed",
			zap.Stringer("failure_id", res.Failure.ID),
			zap.Int("snapshot_elements", res.Failure.Snapshot.Count()),
			zap.Error(res.Failure.Err))
	}
	return res
}

func (c *Controller) fail(ctx context.Context, page dom.Page, step Step, out action.Outcome) *FailedAttempt {
	err := out.Err
	if err == nil {
		err = errors.New("action reported failure without an error")
	}
	fa := &FailedAttempt{
		ID:          uuid.New(),
		Selector:    step.Selector,
		Fallback:    step.Fallback,
		Kind:        step.Kind,
		Description: step.Description,
		Error:       err.Error(),
		Err:         err,
		Stages:      stageFailures(out.Attempts),
		Trail:       out.Trail,
		At:          time.Now().UTC(),
	}
	snap, serr := c.Snapshot(ctx, page)
	if serr != nil {
		c.log.Warn("snapshot incomplete", zap.Error(serr))
	}
	fa.Snapshot = snap
	return fa
}
