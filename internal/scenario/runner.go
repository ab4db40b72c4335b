package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/v0xg/uistep/internal/action"
	"github.com/v0xg/uistep/internal/controller"
	"github.com/v0xg/uistep/internal/dom"
	"github.com/v0xg/uistep/internal/recording"
	"github.com/v0xg/uistep/internal/snapshot"
	"github.com/v0xg/uistep/internal/suggest"
)

// Planner proposes selectors for a step; *suggest.Suggester is one.
type Planner interface {
	Suggest(ctx context.Context, req suggest.Request) (suggest.Suggestion, error)
}

// Options configure a Runner.
type Options struct {
	// Planner fills in missing selectors and replaces failed ones. Nil
	// runs every step once with the selectors it was given.
	Planner Planner
	// Recorder, if set, captures a frame after every attempt.
	Recorder *recording.Recorder
	// MaxAttempts bounds Perform calls per step; 0 means 3.
	MaxAttempts int
	Logger      *zap.Logger
}

// Runner drives scenarios.
type Runner struct {
	ctrl *controller.Controller
	opts Options
	log  *zap.Logger
}

// NewRunner returns a Runner performing steps through ctrl.
func NewRunner(ctrl *controller.Controller, opts Options) *Runner {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Runner{ctrl: ctrl, opts: opts, log: opts.Logger.Named("scenario")}
}

// StepReport is the outcome of one scenario step.
type StepReport struct {
	Index       int                        `json:"index"`
	Description string                     `json:"description"`
	Attempts    int                        `json:"attempts"`
	Result      controller.Result          `json:"result"`
	Failures    []controller.FailedAttempt `json:"failures,omitempty"`
}

// Report is the outcome of a run.
type Report struct {
	ID      uuid.UUID     `json:"id"`
	Name    string        `json:"name"`
	Passed  bool          `json:"passed"`
	Steps   []StepReport  `json:"steps"`
	Elapsed time.Duration `json:"elapsed"`
}

// Failed returns the reports of failed steps.
func (r *Report) Failed() []StepReport {
	var out []StepReport
	for _, s := range r.Steps {
		if !s.Result.Success {
			out = append(out, s)
		}
	}
	return out
}

// Run performs sc on page. Step failures are reported, not returned; the
// error is for failures to start the run and for cancellation.
func (r *Runner) Run(ctx context.Context, page dom.Page, sc *Scenario) (*Report, error) {
	start := time.Now()
	rep := &Report{ID: uuid.New(), Name: sc.Name, Passed: true}
	log := r.log.With(zap.String("scenario", sc.Name), zap.Stringer("run_id", rep.ID))

	if sc.URL != "" {
		if err := page.Navigate(ctx, sc.URL); err != nil {
			return nil, fmt.Errorf("open %s: %w", sc.URL, err)
		}
		if err := page.WaitLoad(ctx); err != nil {
			log.Warn("start page load incomplete", zap.Error(err))
		}
	}

	var completed []string
	for i, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		sr := r.runStep(ctx, page, sc, i, step, completed, log)
		rep.Steps = append(rep.Steps, sr)
		if sr.Result.Success {
			completed = append(completed, step.Description)
			continue
		}
		rep.Passed = false
		if !sc.ContinueOnFailure {
			log.Warn("stopping after failed step", zap.Int("step", i+1))
			break
		}
	}
	rep.Elapsed = time.Since(start)
	log.Info("scenario finished",
		zap.Bool("passed", rep.Passed),
		zap.Int("steps", len(rep.Steps)),
		zap.Duration("elapsed", rep.Elapsed))
	return rep, ctx.Err()
}

func (r *Runner) runStep(ctx context.Context, page dom.Page, sc *Scenario, i int, step controller.Step, completed []string, log *zap.Logger) StepReport {
	log = log.With(zap.Int("step", i+1), zap.String("description", step.Description))
	sr := StepReport{Index: i, Description: step.Description}
	var hist controller.History

	if step.Selector == "" && needsTarget(step.Kind) && r.opts.Planner != nil {
		snap, err := r.ctrl.Snapshot(ctx, page)
		if err != nil {
			log.Warn("snapshot incomplete", zap.Error(err))
		}
		if next, ok := r.plan(ctx, sc, step, completed, snap, hist, log); ok {
			step = next
		}
	}

	for sr.Attempts < r.opts.MaxAttempts {
		sr.Attempts++
		res := r.ctrl.Perform(ctx, page, step, hist)
		sr.Result = res
		r.capture(ctx, page, step, res, log)
		if res.Success {
			return sr
		}
		sr.Failures = append(sr.Failures, *res.Failure)
		hist = hist.Append(*res.Failure)
		if r.opts.Planner == nil || sr.Attempts >= r.opts.MaxAttempts || ctx.Err() != nil {
			break
		}
		next, ok := r.plan(ctx, sc, step, completed, res.Failure.Snapshot, hist, log)
		if !ok {
			break
		}
		step = next
	}
	return sr
}

func (r *Runner) plan(ctx context.Context, sc *Scenario, step controller.Step, completed []string, snap *snapshot.Snapshot, hist controller.History, log *zap.Logger) (controller.Step, bool) {
	sug, err := r.opts.Planner.Suggest(ctx, suggest.Request{
		Kind:        step.Kind,
		Description: step.Description,
		Goal:        sc.Goal,
		Completed:   completed,
		Snapshot:    snap,
		History:     hist,
	})
	if err != nil {
		log.Warn("no selector suggestion", zap.Error(err))
		return step, false
	}
	log.Debug("using suggested selectors",
		zap.String("selector", sug.Selector),
		zap.String("fallback", sug.Fallback),
		zap.String("reason", sug.Reason))
	return sug.Step(step.Description), true
}

func (r *Runner) capture(ctx context.Context, page dom.Page, step controller.Step, res controller.Result, log *zap.Logger) {
	if r.opts.Recorder == nil {
		return
	}
	m := recording.Marker{Target: res.Target, Failed: !res.Success}
	switch step.Kind {
	case action.KindClick, action.KindSmartClick, action.KindCheck, action.KindToggle:
		m.Click = res.Success
	}
	if err := r.opts.Recorder.Capture(ctx, page, step.Description, m); err != nil {
		log.Debug("frame not captured", zap.Error(err))
	}
}

// needsTarget reports whether kind acts on an element chosen by selector.
func needsTarget(kind action.Kind) bool {
	switch kind {
	case action.KindNavigate, action.KindReload, action.KindPressKey, action.KindCloseModal:
		return false
	}
	return true
}
