package suggest

import (
	"fmt"
	"strings"

	"github.com/v0xg/uistep/internal/controller"
)

const systemPrompt = `You choose element selectors for a browser automation step.

You will receive:
1. The step: its action and a natural language description
2. A snapshot of the page's interactive elements, grouped by ARIA role
3. Selectors that already failed for this step, with the reason they failed

Selectors use this syntax:
- getByRole('button', { name: 'Save' })   options: name, exact, checked, disabled, expanded, pressed, selected, level, includeHidden
- getByText('Welcome'), getByLabel('Email'), getByPlaceholder('Search'), getByTestId('submit')
- locator('.toolbar button'), or plain CSS such as #login or [data-test="cart"]
- modifiers: .first(), .last(), .nth(1), .filter({ hasText: 'Draft' }), chained calls
- CSS extensions: :has-text("x") matches containment, :text-is("x") matches exactly

Output ONE JSON object:
{"action": "<action>", "selector": "<primary>", "fallback": "<different strategy>", "reason": "<short>"}

Guidelines:
- Prefer role and label locators built from names in the snapshot; use ids and data attributes for CSS
- The fallback must use a different strategy than the primary (e.g. CSS when the primary is a role locator)
- Never repeat a selector listed as failed
- Use only elements present in the snapshot
- Keep "action" as given unless it cannot work on the page

Respond ONLY with the JSON object, no explanation or markdown.`

func buildUserPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Step action: %s\n", req.Kind)
	fmt.Fprintf(&b, "Step description: %s\n", req.Description)
	if req.Goal != "" {
		fmt.Fprintf(&b, "Overall goal: %s\n", req.Goal)
	}
	if len(req.Completed) > 0 {
		b.WriteString("\nCompleted steps:\n")
		for i, s := range req.Completed {
			fmt.Fprintf(&b, "%d. %s\n", i+1, s)
		}
	}
	b.WriteString("\nPage snapshot:\n")
	if req.Snapshot != nil {
		b.WriteString(req.Snapshot.Format())
	} else {
		b.WriteString("(not available)")
	}
	b.WriteString("\n")
	if req.History.Len() > 0 {
		b.WriteString("\nFailed attempts:\n")
		b.WriteString(formatFailures(req.History.Attempts()))
	}
	return b.String()
}

func formatFailures(attempts []controller.FailedAttempt) string {
	var b strings.Builder
	for i, a := range attempts {
		fmt.Fprintf(&b, "%d. selector=%s", i+1, quote(a.Selector))
		if a.Fallback != "" {
			fmt.Fprintf(&b, " fallback=%s", quote(a.Fallback))
		}
		fmt.Fprintf(&b, " error=%s\n", quote(a.Error))
		for _, s := range a.Stages {
			fmt.Fprintf(&b, "   - %s %s: %s\n", s.Stage, quote(s.Selector), s.Error)
		}
		if len(a.Trail) > 0 {
			fmt.Fprintf(&b, "   strategies tried: %s\n", strings.Join(a.Trail, ", "))
		}
	}
	return b.String()
}

func quote(s string) string {
	return "`" + s + "`"
}
