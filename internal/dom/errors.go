package dom

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrDetached means the node or its execution context went away,
	// typically because the page navigated.
	ErrDetached = errors.New("element detached from document")
	// ErrUnsupported means the element has no such capability, e.g.
	// reading the checked state of a <div>.
	ErrUnsupported = errors.New("operation not supported by element")
	// ErrNotVisible is returned by actions that require a visible target.
	ErrNotVisible = errors.New("element is not visible")
)

// TimeoutError reports an operation that ran out of its time budget.
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out after %s", e.Op, e.After)
}

func (e *TimeoutError) Is(target error) bool {
	return target == context.DeadlineExceeded
}

// WithTimeout runs fn under a derived deadline and converts a deadline
// expiry into a *TimeoutError. A zero d means no extra deadline.
func WithTimeout(ctx context.Context, op string, d time.Duration, fn func(context.Context) error) error {
	if d <= 0 {
		return fn(ctx)
	}
	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	err := fn(tctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return &TimeoutError{Op: op, After: d}
	}
	return err
}

var detachedMarkers = []string{
	"cannot find context with specified id",
	"execution context was destroyed",
	"target closed",
	"no node with given id",
	"node is detached",
	"could not find node with given id",
}

// IsDetached reports whether err means the element is no longer usable.
func IsDetached(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDetached) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range detachedMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
