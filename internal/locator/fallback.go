package locator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/v0xg/uistep/internal/dom"
	"github.com/v0xg/uistep/internal/selector"
)

// Stage names a step of the fallback chain.
type Stage int

const (
	// StagePrimary resolves the primary expression.
	StagePrimary Stage = iota + 1
	// StageFallback resolves the fallback expression.
	StageFallback
	// StageRawCSS counts matches of either expression taken as CSS.
	StageRawCSS
	// StageTestIDRepair swaps data-testid and data-test in a CSS string.
	StageTestIDRepair
)

func (s Stage) String() string {
	switch s {
	case StagePrimary:
		return "primary"
	case StageFallback:
		return "fallback"
	case StageRawCSS:
		return "raw-css"
	case StageTestIDRepair:
		return "testid-repair"
	}
	return "none"
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Stage) UnmarshalText(b []byte) error {
	for st := StagePrimary; st <= StageTestIDRepair; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown stage %q", b)
}

// Attempt is a failed stage.
type Attempt struct {
	Stage    Stage
	Selector string
	Err      error
}

// Request is the input of ResolveWithFallback.
type Request struct {
	Primary  string
	Fallback string
	// Hints disambiguate multi-matches.
	Hints []string
	// Avoid lists expressions that already failed for this step. They are
	// still tried, but after everything else.
	Avoid []string
}

// Resolution is a successful walk of the chain.
type Resolution struct {
	Reference *Reference
	Stage     Stage
	// Attempts holds the stages that failed before Stage succeeded.
	Attempts []Attempt
}

type candidate struct {
	stage Stage
	expr  string
	raw   bool
}

// ResolveWithFallback tries, in order, the primary expression, the fallback
// expression, each of them as literal CSS, and finally a data-testid /
// data-test swap of that CSS. The first stage that yields an element wins.
func (r *Resolver) ResolveWithFallback(ctx context.Context, page dom.Page, req Request) (*Resolution, error) {
	cands := r.candidates(req)
	var attempts []Attempt
	if len(cands) == 0 {
		attempts = append(attempts, Attempt{
			Stage: StagePrimary,
			Err:   &ResolutionError{Reason: NoMatch, Err: errors.New("no selector given")},
		})
		return nil, &ChainError{Attempts: attempts}
	}
	for _, c := range cands {
		if err := ctx.Err(); err != nil {
			attempts = append(attempts, Attempt{Stage: c.stage, Selector: c.expr, Err: err})
			break
		}
		ref, err := r.try(ctx, page, c, req.Hints)
		if err == nil {
			r.log.Info("locator resolved",
				zap.Stringer("stage", c.stage),
				zap.String("selector", c.expr),
				zap.String("locator", ref.String()))
			return &Resolution{Reference: ref, Stage: c.stage, Attempts: attempts}, nil
		}
		r.log.Warn("locator stage failed",
			zap.Stringer("stage", c.stage),
			zap.String("selector", c.expr),
			zap.Error(err))
		attempts = append(attempts, Attempt{Stage: c.stage, Selector: c.expr, Err: err})
	}
	return nil, &ChainError{Attempts: attempts}
}

func (r *Resolver) try(ctx context.Context, page dom.Page, c candidate, hints []string) (*Reference, error) {
	if c.raw {
		return r.Resolve(ctx, page, &selector.CSSNode{CSS: c.expr}, c.expr, ResolveOptions{Hints: hints})
	}
	n, err := selector.Parse(c.expr)
	if err != nil {
		return nil, err
	}
	return r.Resolve(ctx, page, n, c.expr, ResolveOptions{Hints: hints, Poll: true, RequireVisible: true})
}

func (r *Resolver) candidates(req Request) []candidate {
	var out []candidate
	seen := make(map[candidate]bool)
	add := func(c candidate) {
		c.expr = strings.TrimSpace(c.expr)
		key := candidate{expr: c.expr, raw: c.raw}
		if c.expr == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, c)
	}
	add(candidate{stage: StagePrimary, expr: req.Primary})
	add(candidate{stage: StageFallback, expr: req.Fallback})

	var raws []string
	for _, expr := range []string{req.Primary, req.Fallback} {
		css, err := LiteralCSS(expr)
		if err != nil {
			if strings.TrimSpace(expr) != "" {
				r.log.Debug("skipping raw css stage", zap.String("selector", expr), zap.Error(err))
			}
			continue
		}
		raws = append(raws, css)
		add(candidate{stage: StageRawCSS, expr: css, raw: true})
	}
	for _, css := range raws {
		if repaired, ok := RepairTestID(css); ok {
			add(candidate{stage: StageTestIDRepair, expr: repaired, raw: true})
		}
	}

	if len(req.Avoid) == 0 {
		return out
	}
	avoid := make(map[string]bool, len(req.Avoid))
	for _, a := range req.Avoid {
		avoid[strings.TrimSpace(a)] = true
	}
	var fresh, stale []candidate
	for _, c := range out {
		if avoid[c.expr] {
			stale = append(stale, c)
		} else {
			fresh = append(fresh, c)
		}
	}
	return append(fresh, stale...)
}

// LiteralCSS returns the CSS an expression denotes when taken literally:
// raw CSS as is, css= prefixed CSS, or the argument of a bare
// locator('...') call.
func LiteralCSS(expr string) (string, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return "", ErrNotCSS
	}
	if strings.HasPrefix(expr, "css=") {
		return strings.TrimSpace(expr[len("css="):]), nil
	}
	if !selector.IsCallExpression(expr) {
		for _, p := range []string{"text=", "id=", "data-testid=", "data-test=", "xpath=", "//"} {
			if strings.HasPrefix(expr, p) {
				return "", ErrNotCSS
			}
		}
		return expr, nil
	}
	n, err := selector.Parse(expr)
	if err != nil {
		return "", errors.Join(ErrNotCSS, err)
	}
	if css, ok := n.(*selector.CSSNode); ok && len(css.Mods) == 0 {
		return css.CSS, nil
	}
	return "", ErrNotCSS
}

var (
	testIDAttr = regexp.MustCompile(`data-testid\b`)
	testAttr   = regexp.MustCompile(`data-test\b`)
)

// RepairTestID swaps data-testid for data-test (or the reverse) in css.
func RepairTestID(css string) (string, bool) {
	if testIDAttr.MatchString(css) {
		return testIDAttr.ReplaceAllString(css, "data-test"), true
	}
	if testAttr.MatchString(css) {
		return testAttr.ReplaceAllString(css, "data-testid"), true
	}
	return "", false
}
