package scenario

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/v0xg/uistep/internal/action"
	"github.com/v0xg/uistep/internal/controller"
	"github.com/v0xg/uistep/internal/htmlpage"
	"github.com/v0xg/uistep/internal/locator"
	"github.com/v0xg/uistep/internal/recording"
	"github.com/v0xg/uistep/internal/suggest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const loginYAML = `
name: login
url: https://app.test/login
goal: Sign in
steps:
  - action: fill
    selector: "#user"
    description: Fill the username with 'bob'
  - action: click
    description: Click Sign in
`

func TestParse(t *testing.T) {
	sc, err := Parse([]byte(loginYAML))
	require.NoError(t, err)
	assert.Equal(t, "login", sc.Name)
	assert.Equal(t, "https://app.test/login", sc.URL)
	require.Len(t, sc.Steps, 2)
	assert.Equal(t, controller.Step{Kind: action.KindFill, Selector: "#user", Description: "Fill the username with 'bob'"}, sc.Steps[0])
	assert.Equal(t, action.KindClick, sc.Steps[1].Kind)
	assert.Empty(t, sc.Steps[1].Selector)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name, doc, want string
	}{
		{"empty", "", "empty scenario"},
		{"no steps", "name: x\n", "has no steps"},
		{"unknown action", "steps:\n  - action: hover\n    description: Hover\n", "unknown action kind"},
		{"unknown field", "steps:\n  - action: click\n    selectr: '#a'\n    description: Click\n", "selectr"},
		{"missing fields", "steps:\n  - selector: '#a'\n", "step 1: missing action"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.ErrorContains(t, err, tt.want)
		})
	}
	_, err := Parse([]byte("steps:\n  - action: click\n"))
	assert.ErrorContains(t, err, "step 1: missing description")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "login.yaml")
	require.NoError(t, os.WriteFile(path, []byte(loginYAML), 0o600))
	sc, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, sc.Steps, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

type fakePlanner struct {
	mu       sync.Mutex
	answers  []suggest.Suggestion
	err      error
	requests []suggest.Request
}

func (f *fakePlanner) Suggest(_ context.Context, req suggest.Request) (suggest.Suggestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return suggest.Suggestion{}, f.err
	}
	if len(f.answers) == 0 {
		return suggest.Suggestion{}, errors.New("out of answers")
	}
	a := f.answers[0]
	f.answers = f.answers[1:]
	return a, nil
}

const formPage = `
<form>
  <input id="user" placeholder="Username">
  <button type="button" id="save">Save</button>
</form>`

func newRunner(t *testing.T, opts Options) *Runner {
	t.Helper()
	log := zaptest.NewLogger(t)
	ctrl := controller.New(controller.Options{
		Resolver:  locator.Options{Timeout: 30 * time.Millisecond, PollInterval: 5 * time.Millisecond},
		Timeouts:  action.Timeouts{Action: time.Second, Navigation: time.Second, Overlay: 10 * time.Millisecond, Option: 10 * time.Millisecond, Pause: time.Millisecond, TypeDelay: time.Millisecond},
		Stability: controller.Stability{Long: time.Millisecond, Short: time.Millisecond, DOMContentLoaded: 50 * time.Millisecond},
		Logger:    log,
	})
	opts.Logger = log
	return NewRunner(ctrl, opts)
}

func newPage(t *testing.T) *htmlpage.Page {
	t.Helper()
	page, err := htmlpage.New(`<p>start</p>`,
		htmlpage.WithURL("https://app.test/"),
		htmlpage.WithRoutes(map[string]string{"https://app.test/form": formPage}))
	require.NoError(t, err)
	return page
}

func TestRunWithoutPlanner(t *testing.T) {
	page := newPage(t)
	rec := recording.NewRecorder(time.Millisecond, nil)
	r := newRunner(t, Options{Recorder: rec})
	sc := &Scenario{
		Name: "save",
		URL:  "https://app.test/form",
		Steps: []controller.Step{
			{Kind: action.KindFill, Selector: "#user", Description: "Fill the username with 'bob'"},
			{Kind: action.KindClick, Selector: "#save", Description: "Click Save"},
		},
	}
	rep, err := r.Run(context.Background(), page, sc)
	require.NoError(t, err)
	assert.True(t, rep.Passed)
	require.Len(t, rep.Steps, 2)
	for _, s := range rep.Steps {
		assert.Equal(t, 1, s.Attempts)
		assert.Empty(t, s.Failures)
	}
	assert.Empty(t, rep.Failed())
	assert.Equal(t, 2, rec.Len())
	assert.Len(t, page.EventsOf("click"), 2, "fill clicks the field first")
}

func TestRunReplacesFailedSelector(t *testing.T) {
	page := newPage(t)
	planner := &fakePlanner{answers: []suggest.Suggestion{{Kind: action.KindClick, Selector: "#save"}}}
	r := newRunner(t, Options{Planner: planner})
	sc := &Scenario{
		URL:   "https://app.test/form",
		Goal:  "Save the form",
		Steps: []controller.Step{{Kind: action.KindClick, Selector: "#submit", Description: "Click Save"}},
	}
	rep, err := r.Run(context.Background(), page, sc)
	require.NoError(t, err)
	assert.True(t, rep.Passed)

	s := rep.Steps[0]
	assert.Equal(t, 2, s.Attempts)
	require.Len(t, s.Failures, 1)
	assert.Equal(t, "#submit", s.Failures[0].Selector)
	assert.Equal(t, "#save", s.Result.UsedSelector)

	require.Len(t, planner.requests, 1)
	req := planner.requests[0]
	assert.Equal(t, "Save the form", req.Goal)
	assert.Equal(t, 1, req.History.Len())
	require.NotNil(t, req.Snapshot)
	assert.Len(t, req.Snapshot.Roles["button"], 1)
}

func TestRunPlansMissingSelector(t *testing.T) {
	page := newPage(t)
	planner := &fakePlanner{answers: []suggest.Suggestion{{Kind: action.KindClick, Selector: "getByRole('button', { name: 'Save' })"}}}
	r := newRunner(t, Options{Planner: planner})
	sc := &Scenario{
		URL:   "https://app.test/form",
		Steps: []controller.Step{{Kind: action.KindClick, Description: "Click Save"}},
	}
	rep, err := r.Run(context.Background(), page, sc)
	require.NoError(t, err)
	assert.True(t, rep.Passed)
	assert.Equal(t, 1, rep.Steps[0].Attempts)
	require.Len(t, planner.requests, 1)
	assert.Zero(t, planner.requests[0].History.Len())
	assert.NotNil(t, planner.requests[0].Snapshot)
}

func TestRunStopsOnFailure(t *testing.T) {
	steps := []controller.Step{
		{Kind: action.KindClick, Selector: "#missing", Description: "Click Missing"},
		{Kind: action.KindClick, Selector: "#save", Description: "Click Save"},
	}

	page := newPage(t)
	rep, err := newRunner(t, Options{}).Run(context.Background(), page, &Scenario{URL: "https://app.test/form", Steps: steps})
	require.NoError(t, err)
	assert.False(t, rep.Passed)
	require.Len(t, rep.Steps, 1)
	assert.Equal(t, 1, rep.Steps[0].Attempts)
	assert.Empty(t, page.EventsOf("click"))

	page = newPage(t)
	rep, err = newRunner(t, Options{}).Run(context.Background(), page,
		&Scenario{URL: "https://app.test/form", Steps: steps, ContinueOnFailure: true})
	require.NoError(t, err)
	assert.False(t, rep.Passed)
	assert.Len(t, rep.Steps, 2)
	assert.Len(t, rep.Failed(), 1)
	assert.Len(t, page.EventsOf("click"), 1)
}

func TestRunPlannerErrorEndsStep(t *testing.T) {
	page := newPage(t)
	planner := &fakePlanner{err: errors.New("model unavailable")}
	r := newRunner(t, Options{Planner: planner, MaxAttempts: 5})
	rep, err := r.Run(context.Background(), page, &Scenario{
		URL:   "https://app.test/form",
		Steps: []controller.Step{{Kind: action.KindClick, Selector: "#missing", Description: "Click Missing"}},
	})
	require.NoError(t, err)
	assert.False(t, rep.Passed)
	assert.Equal(t, 1, rep.Steps[0].Attempts)
	assert.Len(t, planner.requests, 1)
}

func TestRunBadStartURL(t *testing.T) {
	page := newPage(t)
	_, err := newRunner(t, Options{}).Run(context.Background(), page, &Scenario{
		URL:   "https://app.test/nowhere",
		Steps: []controller.Step{{Kind: action.KindReload, Description: "Reload"}},
	})
	assert.ErrorIs(t, err, htmlpage.ErrNoRoute)
}
