// Package suggest asks a language model for a step's selectors, given the
// page snapshot and the attempts that already failed.
package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/v0xg/uistep/internal/action"
	"github.com/v0xg/uistep/internal/controller"
	"github.com/v0xg/uistep/internal/selector"
	"github.com/v0xg/uistep/internal/snapshot"
)

// Request is what the model sees.
type Request struct {
	Kind        action.Kind
	Description string
	Goal        string
	Completed   []string
	Snapshot    *snapshot.Snapshot
	History     controller.History
}

// Suggestion is the model's answer.
type Suggestion struct {
	Kind     action.Kind `json:"action"`
	Selector string      `json:"selector"`
	Fallback string      `json:"fallback,omitempty"`
	Reason   string      `json:"reason,omitempty"`
}

// Step turns s into a step carrying description.
func (s Suggestion) Step(description string) controller.Step {
	return controller.Step{Kind: s.Kind, Selector: s.Selector, Fallback: s.Fallback, Description: description}
}

// Options configure a Suggester.
type Options struct {
	// MaxAttempts bounds calls per Suggest, parse failures included.
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
	Logger          *zap.Logger
}

// Suggester produces selectors through a Completer.
type Suggester struct {
	llm  Completer
	opts Options
	log  *zap.Logger
}

// New returns a Suggester.
func New(llm Completer, opts Options) *Suggester {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = time.Second
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = 30 * time.Second
	}
	if opts.MaxElapsed <= 0 {
		opts.MaxElapsed = 2 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Suggester{llm: llm, opts: opts, log: opts.Logger.Named("suggest")}
}

// Suggest asks for selectors. Transient provider errors and unusable
// replies are retried with exponential backoff; a reply whose selector
// repeats a failed one or does not parse counts as unusable.
func (s *Suggester) Suggest(ctx context.Context, req Request) (Suggestion, error) {
	user := buildUserPrompt(req)
	failed := make(map[string]bool)
	for _, sel := range req.History.Selectors() {
		failed[sel] = true
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.InitialInterval
	b.MaxInterval = s.opts.MaxInterval
	b.MaxElapsedTime = s.opts.MaxElapsed

	var out Suggestion
	attempt := 0
	operation := func() error {
		attempt++
		start := time.Now()
		reply, err := s.llm.Complete(ctx, systemPrompt, user)
		if err != nil {
			var re *RetryableError
			if errors.As(err, &re) {
				s.log.Warn("provider error, retrying", zap.Int("attempt", attempt), zap.Error(err))
				return err
			}
			return backoff.Permanent(err)
		}
		sug, err := parseSuggestion(reply, req.Kind)
		if err == nil {
			err = validate(sug, failed)
		}
		if err != nil {
			s.log.Warn("unusable suggestion", zap.Int("attempt", attempt), zap.String("reply", reply), zap.Error(err))
			return err
		}
		s.log.Info("selector suggested",
			zap.String("selector", sug.Selector),
			zap.String("fallback", sug.Fallback),
			zap.Duration("duration", time.Since(start)))
		out = sug
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.opts.MaxAttempts-1)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return Suggestion{}, fmt.Errorf("suggest selectors for %q: %w", req.Description, err)
	}
	return out, nil
}

func validate(s Suggestion, failed map[string]bool) error {
	if strings.TrimSpace(s.Selector) == "" {
		return fmt.Errorf("empty selector")
	}
	if failed[strings.TrimSpace(s.Selector)] {
		return fmt.Errorf("selector %s already failed", s.Selector)
	}
	if _, err := selector.Parse(s.Selector); err != nil {
		return err
	}
	if s.Fallback != "" {
		if _, err := selector.Parse(s.Fallback); err != nil {
			return fmt.Errorf("fallback: %w", err)
		}
	}
	return nil
}

type wireSuggestion struct {
	Action   string `json:"action"`
	Selector string `json:"selector"`
	Fallback string `json:"fallback"`
	Reason   string `json:"reason"`
}

// parseSuggestion extracts the first JSON object of reply, tolerating
// surrounding prose and code fences. An empty or unknown action keeps def.
func parseSuggestion(reply string, def action.Kind) (Suggestion, error) {
	raw, err := extractObject(reply)
	if err != nil {
		return Suggestion{}, err
	}
	var w wireSuggestion
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return Suggestion{}, fmt.Errorf("parse suggestion: %w", err)
	}
	kind := def
	if w.Action != "" {
		if k, err := action.ParseKind(w.Action); err == nil {
			kind = k
		}
	}
	return Suggestion{
		Kind:     kind,
		Selector: strings.TrimSpace(w.Selector),
		Fallback: strings.TrimSpace(w.Fallback),
		Reason:   w.Reason,
	}, nil
}

func extractObject(s string) (string, error) {
	start := strings.Index(s, "{")
	if start == -1 {
		return "", fmt.Errorf("no JSON object found in response")
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("no matching closing brace found")
}
