package locator

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotCSS marks an expression that cannot be tried as literal CSS.
var ErrNotCSS = errors.New("expression is not a css selector")

// Reason classifies a resolution failure.
type Reason int

const (
	NoMatch Reason = iota + 1
	Ambiguous
	Detached
)

func (r Reason) String() string {
	switch r {
	case NoMatch:
		return "no match"
	case Ambiguous:
		return "ambiguous"
	case Detached:
		return "detached"
	}
	return "unknown"
}

// ResolutionError reports why an expression did not yield an element.
type ResolutionError struct {
	Reason   Reason
	Selector string
	// Count is the number of candidates for Ambiguous.
	Count int
	Err   error
}

func (e *ResolutionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "resolve %s: %s", e.Selector, e.Reason)
	if e.Reason == Ambiguous {
		fmt.Fprintf(&b, " (%d candidates)", e.Count)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// ChainError is returned when every stage of the fallback chain failed.
type ChainError struct {
	Attempts []Attempt
}

func (e *ChainError) Error() string {
	if len(e.Attempts) == 0 {
		return "no locator to resolve"
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s %q: %v", a.Stage, a.Selector, a.Err))
	}
	return "all locator stages failed: " + strings.Join(parts, "; ")
}

func (e *ChainError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}
