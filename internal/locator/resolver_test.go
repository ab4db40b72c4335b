package locator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/v0xg/uistep/internal/dom"
	"github.com/v0xg/uistep/internal/htmlpage"
	"github.com/v0xg/uistep/internal/selector"
)

func newResolver(t *testing.T, strict bool) *Resolver {
	t.Helper()
	return New(Options{
		Timeout:         60 * time.Millisecond,
		PollInterval:    5 * time.Millisecond,
		StrictAmbiguity: strict,
		Logger:          zaptest.NewLogger(t),
	})
}

func mustPage(t *testing.T, markup string) *htmlpage.Page {
	t.Helper()
	p, err := htmlpage.New(markup)
	require.NoError(t, err)
	return p
}

func mustParse(t *testing.T, expr string) selector.Node {
	t.Helper()
	n, err := selector.Parse(expr)
	require.NoError(t, err)
	return n
}

func idOf(t *testing.T, ctx context.Context, el dom.Element) string {
	t.Helper()
	id, _, err := el.Attribute(ctx, "id")
	require.NoError(t, err)
	return id
}

func TestEvaluateNodeKinds(t *testing.T) {
	ctx := context.Background()
	page := mustPage(t, `
		<form>
		  <label for="email">Email address</label><input id="email" type="email">
		  <label>Password <input id="pw" type="password"></label>
		  <input id="search" placeholder="Search products">
		  <div aria-label="Quantity" id="qty" contenteditable="true"></div>
		  <button id="save" data-test="save-btn">Save</button>
		  <input id="go" type="submit" value="Go">
		  <a id="docs" href="/docs"><span>Read</span> the docs</a>
		  <h2 id="h">Orders</h2>
		  <button id="hidden" style="display:none">Save</button>
		  <div aria-hidden="true"><button id="aria-hidden">Save</button></div>
		</form>`)
	r := newResolver(t, false)

	tests := []struct {
		expr string
		want []string
	}{
		{"getByRole('button', { name: 'Save' })", []string{"save"}},
		{"getByRole('button', { name: 'Save', includeHidden: true })", []string{"save", "hidden", "aria-hidden"}},
		{"getByRole('button', { name: 'go' })", []string{"go"}},
		{"getByRole('link', { name: /read the docs/i })", []string{"docs"}},
		{"getByRole('heading', { level: 2 })", []string{"h"}},
		{"getByRole('textbox', { name: 'Email address' })", []string{"email"}},
		{"getByLabel('Email')", []string{"email"}},
		{"getByLabel('Password')", []string{"pw"}},
		{"getByLabel('Quantity')", []string{"qty"}},
		{"getByPlaceholder('search')", []string{"search"}},
		{"getByTestId('save-btn')", []string{"save"}},
		{"getByText('the docs')", []string{"docs"}},
		{"getByText('Read', { exact: true })", []string{""}},
		{"getByText('Go')", []string{"go"}},
		{"locator('button:has-text(\"save\")')", []string{"save", "hidden", "aria-hidden"}},
		{"locator('form').locator('button').nth(-1)", []string{"aria-hidden"}},
		{"locator('button').filter({ hasNot: locator('span') }).first()", []string{"save"}},
		{"locator('a').filter({ has: locator('span') })", []string{"docs"}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			els, err := r.Evaluate(ctx, page, mustParse(t, tt.expr))
			require.NoError(t, err)
			var got []string
			for _, el := range els {
				got = append(got, idOf(t, ctx, el))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveSingleMatch(t *testing.T) {
	ctx := context.Background()
	page := mustPage(t, `<button aria-label="Login"><svg></svg></button>`)
	r := newResolver(t, true)

	n := mustParse(t, "getByRole('button', { name: 'Login' })")
	ref, err := r.Resolve(ctx, page, n, "", ResolveOptions{Poll: true, RequireVisible: true})
	require.NoError(t, err)
	assert.Equal(t, n.String(), ref.String(), "a single match needs no refinement")

	el, err := ref.Element(ctx)
	require.NoError(t, err)
	tag, _ := el.TagName(ctx)
	assert.Equal(t, "button", tag)
}

func TestResolveExactNameBeatsSubstring(t *testing.T) {
	ctx := context.Background()
	page := mustPage(t, `
		<button id="google">Login with Google</button>
		<button id="plain"> login </button>`)
	r := newResolver(t, true)

	ref, err := r.Resolve(ctx, page, mustParse(t, "getByRole('button', { name: 'Login' })"), "", ResolveOptions{})
	require.NoError(t, err, "a name qualifier that narrows to one element is never ambiguous")
	assert.Equal(t, "getByRole('button', { name: 'Login', exact: true })", ref.String())

	el, err := ref.Element(ctx)
	require.NoError(t, err)
	assert.Equal(t, "plain", idOf(t, ctx, el))
}

func TestResolveHintPicksNewItem(t *testing.T) {
	ctx := context.Background()
	page := mustPage(t, `
		<ul>
		  <li><label><input type="checkbox" id="old" aria-label="Complete"> Buy milk</label></li>
		  <li><label><input type="checkbox" id="fresh" aria-label="Complete"> Write report (new)</label></li>
		</ul>`)
	r := newResolver(t, true)
	hints := Hints("Check the todo item (new)", DefaultHintWords)
	assert.Equal(t, []string{"new"}, hints)

	ref, err := r.Resolve(ctx, page, mustParse(t, "getByRole('checkbox', { name: 'Complete' })"), "", ResolveOptions{Hints: hints})
	require.NoError(t, err)
	assert.Equal(t, "getByRole('checkbox', { name: 'Complete', exact: true }).nth(1)", ref.String())

	el, err := ref.Element(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fresh", idOf(t, ctx, el))
}

func TestResolveDocumentOrderAndStrictAmbiguity(t *testing.T) {
	ctx := context.Background()
	page := mustPage(t, `<button id="a">Delete</button><button id="b">Delete</button>`)
	n := mustParse(t, "getByRole('button', { name: 'Delete' })")

	ref, err := newResolver(t, false).Resolve(ctx, page, n, "", ResolveOptions{})
	require.NoError(t, err)
	el, err := ref.Element(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", idOf(t, ctx, el))
	assert.Contains(t, ref.String(), ".first()")

	_, err = newResolver(t, true).Resolve(ctx, page, n, "", ResolveOptions{})
	var rerr *ResolutionError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, Ambiguous, rerr.Reason)
	assert.Equal(t, 2, rerr.Count)
}

func TestQueryCSSGroupKeepsDocumentOrder(t *testing.T) {
	ctx := context.Background()
	page := mustPage(t, `<a id="first" href="#">Save</a><p>Cancel</p><button id="second">Save</button>`)

	els, err := queryCSS(ctx, page, `button:has-text("Save"), a:has-text("Save")`)
	require.NoError(t, err)
	require.Len(t, els, 2)
	assert.Equal(t, "first", idOf(t, ctx, els[0]))
	assert.Equal(t, "second", idOf(t, ctx, els[1]))

	ref, err := newResolver(t, false).Resolve(ctx, page, mustParse(t, `button:has-text("Save"), a:has-text("Save")`), "", ResolveOptions{})
	require.NoError(t, err)
	el, err := ref.Element(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", idOf(t, ctx, el))
}

func TestResolveNoMatchTimesOut(t *testing.T) {
	ctx := context.Background()
	page := mustPage(t, `<p>nothing here</p>`)
	r := newResolver(t, false)

	_, err := r.Resolve(ctx, page, mustParse(t, "#missing"), "#missing", ResolveOptions{Poll: true})
	var rerr *ResolutionError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, NoMatch, rerr.Reason)
	assert.Equal(t, "#missing", rerr.Selector)
	var te *dom.TimeoutError
	assert.ErrorAs(t, err, &te)
}

func TestReferenceReEvaluates(t *testing.T) {
	ctx := context.Background()
	page := mustPage(t, `<div><button id="x">Pay</button></div>`)
	r := newResolver(t, false)

	ref, err := r.Resolve(ctx, page, mustParse(t, "getByText('Pay')"), "", ResolveOptions{})
	require.NoError(t, err)

	btn := page.Find("#x").Node()
	btn.Parent.RemoveChild(btn)

	_, err = ref.Element(ctx)
	var rerr *ResolutionError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, NoMatch, rerr.Reason)
}

func TestResolveWithFallback(t *testing.T) {
	ctx := context.Background()
	markup := `
		<button id="login-btn">Continue</button>
		<button class="hidden-btn" style="display:none">Secret</button>
		<a data-test="checkout" href="#">Checkout</a>`

	tests := []struct {
		name     string
		req      Request
		stage    Stage
		used     string
		attempts int
	}{
		{
			name:  "primary wins",
			req:   Request{Primary: "getByRole('button', { name: 'Continue' })", Fallback: "#login-btn"},
			stage: StagePrimary,
			used:  "getByRole('button', { name: 'Continue' })",
		},
		{
			name:     "fallback after primary misses",
			req:      Request{Primary: "getByRole('button', { name: 'Sign in' })", Fallback: "#login-btn"},
			stage:    StageFallback,
			used:     "#login-btn",
			attempts: 1,
		},
		{
			name:     "fallback after parse error",
			req:      Request{Primary: "getByRole('button', {", Fallback: "locator('#login-btn')"},
			stage:    StageFallback,
			used:     "locator('#login-btn')",
			attempts: 1,
		},
		{
			name:     "raw css accepts hidden element",
			req:      Request{Primary: "locator('.hidden-btn')"},
			stage:    StageRawCSS,
			used:     ".hidden-btn",
			attempts: 1,
		},
		{
			name:     "test id repair",
			req:      Request{Primary: `[data-testid="checkout"]`},
			stage:    StageTestIDRepair,
			used:     `[data-test="checkout"]`,
			attempts: 2,
		},
		{
			name:     "previously failed selector goes last",
			req:      Request{Primary: "#login-btn", Fallback: "text=Continue", Avoid: []string{"#login-btn"}},
			stage:    StageFallback,
			used:     "text=Continue",
			attempts: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := mustPage(t, markup)
			res, err := newResolver(t, false).ResolveWithFallback(ctx, page, tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.stage, res.Stage)
			assert.Equal(t, tt.used, res.Reference.UsedSelector())
			assert.Len(t, res.Attempts, tt.attempts)
		})
	}
}

func TestResolveWithFallbackExhausted(t *testing.T) {
	ctx := context.Background()
	page := mustPage(t, `<p>empty</p>`)
	res, err := newResolver(t, false).ResolveWithFallback(ctx, page, Request{
		Primary:  "getByRole('button', { name: 'Pay' })",
		Fallback: "#pay",
	})
	assert.Nil(t, res)

	var chain *ChainError
	require.ErrorAs(t, err, &chain)
	stages := make([]Stage, 0, len(chain.Attempts))
	for _, a := range chain.Attempts {
		stages = append(stages, a.Stage)
	}
	assert.Equal(t, []Stage{StagePrimary, StageFallback, StageRawCSS}, stages)

	var rerr *ResolutionError
	assert.True(t, errors.As(err, &rerr))
	assert.Equal(t, NoMatch, rerr.Reason)
}

func TestLiteralCSS(t *testing.T) {
	tests := []struct {
		expr string
		want string
		ok   bool
	}{
		{"#a > b", "#a > b", true},
		{"css=.x", ".x", true},
		{"page.locator('.row')", ".row", true},
		{"locator('.row').first()", "", false},
		{"getByText('x')", "", false},
		{"text=Login", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, err := LiteralCSS(tt.expr)
		if !tt.ok {
			assert.ErrorIs(t, err, ErrNotCSS, tt.expr)
			continue
		}
		require.NoError(t, err, tt.expr)
		assert.Equal(t, tt.want, got)
	}
}

func TestRepairTestID(t *testing.T) {
	got, ok := RepairTestID(`button[data-testid="add"]`)
	assert.True(t, ok)
	assert.Equal(t, `button[data-test="add"]`, got)

	got, ok = RepairTestID(`[data-test='x']`)
	assert.True(t, ok)
	assert.Equal(t, `[data-testid='x']`, got)

	_, ok = RepairTestID(`#plain`)
	assert.False(t, ok)
}

func TestHints(t *testing.T) {
	got := Hints(`Click the user's "Save draft" button (primary) for the new post`, []string{"new", "old"})
	assert.Equal(t, []string{"Save draft", "primary", "new"}, got)
	assert.Equal(t, []string{"standard_user"}, QuotedStrings("Fill username with 'standard_user'"))
}

func TestStageText(t *testing.T) {
	for _, st := range []Stage{StagePrimary, StageFallback, StageRawCSS, StageTestIDRepair} {
		b, err := st.MarshalText()
		require.NoError(t, err)
		var got Stage
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, st, got)
	}
	var s Stage
	assert.Error(t, s.UnmarshalText([]byte("xpath")))
}
