package controller

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/v0xg/uistep/internal/action"
	"github.com/v0xg/uistep/internal/locator"
	"github.com/v0xg/uistep/internal/snapshot"
)

// FailedAttempt records a step that could not be performed, with what the
// page offered at the time.
type FailedAttempt struct {
	ID          uuid.UUID          `json:"id"`
	Selector    string             `json:"selector"`
	Fallback    string             `json:"fallback,omitempty"`
	Kind        action.Kind        `json:"action"`
	Description string             `json:"description"`
	Error       string             `json:"error"`
	Stages      []StageFailure     `json:"stages,omitempty"`
	Trail       []string           `json:"trail,omitempty"`
	Snapshot    *snapshot.Snapshot `json:"snapshot,omitempty"`
	At          time.Time          `json:"at"`

	Err error `json:"-"`
}

// StageFailure is one failed stage of the fallback chain.
type StageFailure struct {
	Stage    locator.Stage `json:"stage"`
	Selector string        `json:"selector,omitempty"`
	Error    string        `json:"error"`
}

func stageFailures(attempts []locator.Attempt) []StageFailure {
	out := make([]StageFailure, 0, len(attempts))
	for _, a := range attempts {
		msg := ""
		if a.Err != nil {
			msg = a.Err.Error()
		}
		out = append(out, StageFailure{Stage: a.Stage, Selector: a.Selector, Error: msg})
	}
	return out
}

// History is an append-only list of failed attempts. The zero value is
// empty and ready to use. Append never modifies the receiver, so a History
// can be passed by value and shared freely.
type History struct {
	attempts []FailedAttempt
}

// NewHistory returns a History holding attempts.
func NewHistory(attempts ...FailedAttempt) History {
	return History{attempts: append([]FailedAttempt(nil), attempts...)}
}

// Append returns a new History with a added at the end.
func (h History) Append(a FailedAttempt) History {
	next := make([]FailedAttempt, len(h.attempts), len(h.attempts)+1)
	copy(next, h.attempts)
	return History{attempts: append(next, a)}
}

// Len returns the number of attempts.
func (h History) Len() int { return len(h.attempts) }

// Attempts returns a copy of the attempts, oldest first.
func (h History) Attempts() []FailedAttempt {
	return append([]FailedAttempt(nil), h.attempts...)
}

// Last returns the newest attempt.
func (h History) Last() (FailedAttempt, bool) {
	if len(h.attempts) == 0 {
		return FailedAttempt{}, false
	}
	return h.attempts[len(h.attempts)-1], true
}

// Selectors returns the distinct expressions that already failed: each
// attempt's selector and fallback, oldest first.
func (h History) Selectors() []string {
	var out []string
	seen := make(map[string]bool)
	for _, a := range h.attempts {
		for _, s := range []string{a.Selector, a.Fallback} {
			s = strings.TrimSpace(s)
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
