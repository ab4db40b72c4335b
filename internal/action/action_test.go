package action

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/v0xg/uistep/internal/htmlpage"
	"github.com/v0xg/uistep/internal/locator"
)

func testEnv(t *testing.T, page *htmlpage.Page) Env {
	t.Helper()
	log := zaptest.NewLogger(t)
	return Env{
		Page: page,
		Resolver: locator.New(locator.Options{
			Timeout:      50 * time.Millisecond,
			PollInterval: 5 * time.Millisecond,
			Logger:       log,
		}),
		Logger: log,
		Timeouts: Timeouts{
			Action:     time.Second,
			Navigation: time.Second,
			Overlay:    30 * time.Millisecond,
			Option:     30 * time.Millisecond,
			Pause:      time.Millisecond,
			TypeDelay:  time.Millisecond,
		},
	}
}

func newPage(t *testing.T, markup string, opts ...htmlpage.Option) *htmlpage.Page {
	t.Helper()
	p, err := htmlpage.New(markup, opts...)
	require.NoError(t, err)
	return p
}

func run(t *testing.T, env Env, kind Kind, spec Spec) Outcome {
	t.Helper()
	cmd, err := New(kind, spec, env)
	require.NoError(t, err)
	return cmd.Execute(context.Background())
}

func value(t *testing.T, p *htmlpage.Page, css string) string {
	t.Helper()
	el := p.Find(css)
	require.NotNil(t, el, css)
	v, err := el.Value(context.Background())
	require.NoError(t, err)
	return v
}

func attrValue(t *testing.T, p *htmlpage.Page, css, name string) (string, bool) {
	t.Helper()
	el := p.Find(css)
	require.NotNil(t, el, css)
	v, ok, err := el.Attribute(context.Background(), name)
	require.NoError(t, err)
	return v, ok
}

const loginForm = `
	<form id="login">
	  <input id="user" aria-label="Username">
	  <input id="pw" type="password" aria-label="Password">
	</form>`

func TestFill(t *testing.T) {
	page := newPage(t, loginForm)
	out := run(t, testEnv(t, page), KindFill, Spec{
		Selector:    "getByLabel('Username')",
		Description: "Fill username with 'standard_user'",
	})
	require.NoError(t, out.Err)
	assert.True(t, out.Executed)
	assert.True(t, out.Success)
	assert.Equal(t, "getByLabel('Username')", out.UsedSelector)
	assert.Equal(t, locator.StagePrimary, out.Stage)
	assert.Equal(t, "standard_user", value(t, page, "#user"))
	assert.NotNil(t, out.Target)
}

func TestFillCapsBlockedPreClick(t *testing.T) {
	page := newPage(t, loginForm)
	require.NoError(t, page.OnClick("#user", func(ctx context.Context, el *htmlpage.Element) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	env := testEnv(t, page)
	env.Timeouts.PreClick = 20 * time.Millisecond

	out := run(t, env, KindFill, Spec{Selector: "#user", Description: "Fill username with 'bob'"})
	require.NoError(t, out.Err)
	assert.Equal(t, "fill", out.Strategy)
	assert.Equal(t, "bob", value(t, page, "#user"))
}

func TestFillSubmitPressesEnter(t *testing.T) {
	page := newPage(t, loginForm)
	out := run(t, testEnv(t, page), KindFillSubmit, Spec{
		Selector:    "getByLabel('Password')",
		Description: "Enter 'secret_sauce' and submit",
	})
	require.NoError(t, out.Err)
	assert.Equal(t, "secret_sauce", value(t, page, "#pw"))
	assert.Equal(t, []string{"fill", "element-enter"}, out.Trail)
	submits := page.EventsOf("submit")
	require.Len(t, submits, 1)
	assert.Equal(t, "enter", submits[0].Value)
}

func TestFillWithoutTextTouchesNothing(t *testing.T) {
	page := newPage(t, loginForm)
	out := run(t, testEnv(t, page), KindFill, Spec{Selector: "#user", Description: "Focus the username"})
	assert.True(t, out.Executed)
	assert.False(t, out.Success)
	assert.ErrorIs(t, out.Err, ErrNoInput)
	var ae *ActionError
	require.ErrorAs(t, out.Err, &ae)
	assert.Equal(t, KindFill, ae.Kind)
	assert.Empty(t, page.Events())
}

func TestExecuteRunsOnce(t *testing.T) {
	page := newPage(t, `<button>Go</button>`)
	cmd, err := New(KindClick, Spec{Selector: "button", Description: "Click the button"}, testEnv(t, page))
	require.NoError(t, err)

	first := cmd.Execute(context.Background())
	require.True(t, first.Success)
	second := cmd.Execute(context.Background())
	assert.False(t, second.Executed)
	assert.ErrorIs(t, second.Err, ErrExecuted)
	assert.Len(t, page.EventsOf("click"), 1)
}

func TestNewRejectsUnknownKind(t *testing.T) {
	_, err := New(Kind(99), Spec{}, testEnv(t, newPage(t, "")))
	assert.Error(t, err)
}

func TestClickLadder(t *testing.T) {
	page := newPage(t, `<button id="pay" aria-disabled="true">Pay</button>`)
	core, logs := observer.New(zap.DebugLevel)
	env := testEnv(t, page)
	env.Logger = zap.New(core)

	out := run(t, env, KindClick, Spec{Selector: "#pay", Description: "Click Pay"})
	require.NoError(t, out.Err)
	assert.Equal(t, []string{"click", "scroll-click", "force-click"}, out.Trail)
	assert.Equal(t, "force-click", out.Strategy)

	failed := logs.FilterMessage("strategy failed").All()
	require.Len(t, failed, 2)
	assert.Equal(t, "click", failed[0].ContextMap()["strategy"])
	assert.Equal(t, "scroll-click", failed[1].ContextMap()["strategy"])
}

func TestClickSkipIndicator(t *testing.T) {
	page := newPage(t, `<button>Add</button>`)
	out := run(t, testEnv(t, page), KindClick, Spec{Selector: "button", Description: "Initial state, no visible buttons"})
	assert.False(t, out.Success)
	assert.ErrorIs(t, out.Err, ErrSkipped)
	assert.Empty(t, page.Events())
}

func TestClickSubmitsSearchFieldWithEnter(t *testing.T) {
	page := newPage(t, `<form><input id="q" type="search" aria-label="Search"></form>`)
	out := run(t, testEnv(t, page), KindClick, Spec{Selector: "getByLabel('Search')", Description: "Search for shoes"})
	require.NoError(t, out.Err)
	assert.Equal(t, "enter-submit", out.Strategy)
	require.Len(t, page.EventsOf("submit"), 1)
	assert.Empty(t, page.EventsOf("click"))

	page = newPage(t, `<form><input id="q" type="search" aria-label="Search"><button type="submit">Go</button></form>`)
	out = run(t, testEnv(t, page), KindClick, Spec{Selector: "getByLabel('Search')", Description: "Search for shoes"})
	require.NoError(t, out.Err)
	assert.Equal(t, "click", out.Strategy)
}

func TestClickMenuTrigger(t *testing.T) {
	page := newPage(t, `
		<div class="row">
		  <div class="action-buttons" style="display:none">
		    <img id="details-more-menu" src="dots.svg" alt="More">
		  </div>
		</div>
		<div class="p-overlaypanel" style="display:none"><div class="option-item">Delete</div></div>`)
	require.NoError(t, page.OnClick("#details-more-menu", func(ctx context.Context, el *htmlpage.Element) error {
		el.Page().Find(".p-overlaypanel").RemoveAttr("style")
		return nil
	}))

	out := run(t, testEnv(t, page), KindClick, Spec{Selector: "#details-more-menu", Description: "Open the row menu"})
	require.NoError(t, out.Err)
	assert.Equal(t, locator.StageRawCSS, out.Stage)
	assert.Equal(t, "menu-trigger", out.Strategy)
	assert.Len(t, page.EventsOf("force-visible"), 1)
	_, styled := attrValue(t, page, ".p-overlaypanel", "style")
	assert.False(t, styled, "panel still hidden")
}

func TestClickOverlayOption(t *testing.T) {
	page := newPage(t, `
		<div class="p-overlaypanel">
		  <div class="option-item" id="edit">Edit</div>
		  <div class="option-item" id="del">Delete item</div>
		</div>`)
	out := run(t, testEnv(t, page), KindClick, Spec{
		Selector:    `.p-overlaypanel .option-item:has-text("Delete")`,
		Description: "Choose Delete in the menu",
	})
	require.NoError(t, out.Err)
	assert.Equal(t, "overlay-option", out.Strategy)
	clicks := page.EventsOf("click")
	require.Len(t, clicks, 1)
	assert.True(t, strings.HasPrefix(clicks[0].Target, "div#del"), clicks[0].Target)
}

func TestSmartClickUsesFallback(t *testing.T) {
	page := newPage(t, `<a id="cart" href="#cart">Cart</a>`)
	out := run(t, testEnv(t, page), KindSmartClick, Spec{
		Selector:    "getByRole('button', { name: 'Cart' })",
		Fallback:    "#cart",
		Description: "Open the cart",
	})
	require.NoError(t, out.Err)
	assert.Equal(t, "#cart", out.UsedSelector)
	assert.Equal(t, locator.StageFallback, out.Stage)
	assert.Len(t, out.Attempts, 1)
}

func TestUnmatchedSelectorFails(t *testing.T) {
	page := newPage(t, `<p>nothing</p>`)
	out := run(t, testEnv(t, page), KindClick, Spec{Selector: "#missing", Description: "Click it"})
	assert.True(t, out.Executed)
	assert.False(t, out.Success)
	var chain *locator.ChainError
	require.ErrorAs(t, out.Err, &chain)
	assert.NotEmpty(t, out.Attempts)
	assert.Empty(t, out.UsedSelector)
}

const todoList = `
	<ul>
	  <li><label><input type="checkbox" id="old" aria-label="Complete"> Buy milk</label></li>
	  <li><label><input type="checkbox" id="fresh" aria-label="Complete"> Write report (new)</label></li>
	</ul>`

func TestCheckPicksNewItem(t *testing.T) {
	page := newPage(t, todoList)
	out := run(t, testEnv(t, page), KindCheck, Spec{
		Selector:    "getByRole('checkbox', { name: 'Complete' })",
		Description: "Check the todo item (new)",
	})
	require.NoError(t, out.Err)
	assert.Contains(t, out.ResolvedLocator, ".nth(1)")
	_, checked := attrValue(t, page, "#fresh", "checked")
	assert.True(t, checked)
	_, checked = attrValue(t, page, "#old", "checked")
	assert.False(t, checked)
}

func TestCheckIsIdempotent(t *testing.T) {
	page := newPage(t, `<label><input type="checkbox" id="tos" checked> Accept terms</label>`)
	env := testEnv(t, page)

	out := run(t, env, KindCheck, Spec{Selector: "#tos", Description: "Accept the terms"})
	require.NoError(t, out.Err)
	assert.Equal(t, "already-set", out.Strategy)
	assert.Empty(t, page.EventsOf("click"))

	out = run(t, env, KindUncheck, Spec{Selector: "#tos", Description: "Untick the terms"})
	require.NoError(t, out.Err)
	assert.Equal(t, "set-checked", out.Strategy)
	_, checked := attrValue(t, page, "#tos", "checked")
	assert.False(t, checked)
}

func TestCheckAriaCheckbox(t *testing.T) {
	markup := `<div role="checkbox" id="sub" aria-checked="false" aria-label="Subscribe"></div>`

	page := newPage(t, markup)
	require.NoError(t, page.OnClick("#sub", func(ctx context.Context, el *htmlpage.Element) error {
		el.SetAttr("aria-checked", "true")
		return nil
	}))
	out := run(t, testEnv(t, page), KindCheck, Spec{
		Selector:    "getByRole('checkbox', { name: 'Subscribe' })",
		Description: "Subscribe to updates",
	})
	require.NoError(t, out.Err)
	assert.Equal(t, []string{"set-checked", "click"}, out.Trail)

	// Without a script reacting to the click the state never changes.
	page = newPage(t, markup)
	out = run(t, testEnv(t, page), KindCheck, Spec{
		Selector:    "getByRole('checkbox', { name: 'Subscribe' })",
		Description: "Subscribe to updates",
	})
	assert.False(t, out.Success)
	assert.ErrorIs(t, out.Err, ErrStateUnchanged)
}

func TestToggleRequiresChange(t *testing.T) {
	markup := `<button id="dark" class="switch" aria-pressed="false">Dark mode</button>`

	page := newPage(t, markup)
	require.NoError(t, page.OnClick("#dark", func(ctx context.Context, el *htmlpage.Element) error {
		el.SetAttr("aria-pressed", "true")
		return nil
	}))
	out := run(t, testEnv(t, page), KindToggle, Spec{Selector: "#dark", Description: "Toggle dark mode"})
	require.NoError(t, out.Err)

	page = newPage(t, markup)
	out = run(t, testEnv(t, page), KindToggle, Spec{Selector: "#dark", Description: "Toggle dark mode"})
	assert.ErrorIs(t, out.Err, ErrStateUnchanged)
}

func TestToggleByClass(t *testing.T) {
	page := newPage(t, `<div id="wifi" class="toggle">Wi-Fi</div>`)
	require.NoError(t, page.OnClick("#wifi", func(ctx context.Context, el *htmlpage.Element) error {
		el.SetAttr("class", "toggle active")
		return nil
	}))
	out := run(t, testEnv(t, page), KindToggle, Spec{Selector: "#wifi", Description: "Turn on Wi-Fi"})
	require.NoError(t, out.Err)
	assert.Equal(t, "click", out.Strategy)
}

const sizeSelect = `
	<label for="size">Size</label>
	<select id="size">
	  <option value="s">Small</option>
	  <option value="m">M</option>
	  <option value="medium">Medium</option>
	  <option value="xxl" data-code="2XL">Huge</option>
	</select>`

func selectedValue(t *testing.T, p *htmlpage.Page) string {
	t.Helper()
	opts, err := p.Find("#size").Options(context.Background())
	require.NoError(t, err)
	for _, o := range opts {
		if o.Selected {
			return o.Value
		}
	}
	return ""
}

func TestSelectNative(t *testing.T) {
	tests := []struct {
		desc string
		want string
	}{
		{`Select "Size M" from the size dropdown`, "m"},
		{`Select 'medium'`, "medium"},
		{`Select 'MEDIUM'`, "medium"},
		{`Select '2xl'`, "xxl"},
		{`Select 'smal'`, "s"},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			page := newPage(t, sizeSelect)
			out := run(t, testEnv(t, page), KindSelect, Spec{
				Selector:    "getByRole('combobox', { name: 'Size' })",
				Description: tt.desc,
			})
			require.NoError(t, out.Err)
			assert.Equal(t, "native", out.Strategy)
			assert.Equal(t, tt.want, selectedValue(t, page))
		})
	}
}

func TestSelectNativeListsOptionsOnFailure(t *testing.T) {
	page := newPage(t, sizeSelect)
	out := run(t, testEnv(t, page), KindSelect, Spec{Selector: "#size", Description: "Select 'XL'"})
	assert.False(t, out.Success)
	assert.ErrorIs(t, out.Err, ErrOptionNotFound)
	assert.Contains(t, out.Err.Error(), `"Small"`)
	assert.Contains(t, out.Err.Error(), `"Huge"`)
}

func TestSelectOptionSuffixOverridesDescription(t *testing.T) {
	page := newPage(t, sizeSelect)
	out := run(t, testEnv(t, page), KindSelect, Spec{
		Selector:    "locator('#size').selectOption('Small')",
		Description: "Pick a size",
	})
	require.NoError(t, out.Err)
	assert.Equal(t, "s", selectedValue(t, page))
}

func TestSelectCustomDropdown(t *testing.T) {
	page := newPage(t, `
		<div id="country" role="combobox" aria-expanded="false" aria-label="Country">Choose…</div>
		<ul role="listbox" hidden>
		  <li role="option" id="fr">France</li>
		  <li role="option" id="de">Germany</li>
		</ul>`)
	require.NoError(t, page.OnClick("#country", func(ctx context.Context, el *htmlpage.Element) error {
		el.SetAttr("aria-expanded", "true")
		el.Page().Find("[role=listbox]").RemoveAttr("hidden")
		return nil
	}))

	out := run(t, testEnv(t, page), KindSelect, Spec{
		Selector:    "getByRole('combobox', { name: 'Country' })",
		Description: "Select 'Germany' from the country dropdown",
	})
	require.NoError(t, out.Err)
	assert.Equal(t, "overlay", out.Strategy)
	clicks := page.EventsOf("click")
	require.Len(t, clicks, 2)
	assert.True(t, strings.HasPrefix(clicks[1].Target, "li#de"), clicks[1].Target)
}

func TestNavigateAndReload(t *testing.T) {
	page := newPage(t, `<a href="/login">Login</a>`,
		htmlpage.WithURL("https://shop.test/"),
		htmlpage.WithRoutes(map[string]string{"https://shop.test/login": `<h1>Sign in</h1>`}))
	env := testEnv(t, page)

	out := run(t, env, KindNavigate, Spec{Description: "Navigate to https://shop.test/login"})
	require.NoError(t, out.Err)
	assert.Equal(t, "https://shop.test/login", out.UsedSelector)
	u, err := page.URL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://shop.test/login", u)
	assert.NotNil(t, page.Find("h1"))

	out = run(t, env, KindReload, Spec{Description: "Reload the page"})
	require.NoError(t, out.Err)
	assert.Len(t, page.EventsOf("reload"), 1)
	assert.Len(t, page.EventsOf("wait-load"), 2)

	out = run(t, env, KindNavigate, Spec{Description: "Open https://elsewhere.test/"})
	assert.False(t, out.Success)
	assert.ErrorIs(t, out.Err, htmlpage.ErrNoRoute)

	out = run(t, env, KindNavigate, Spec{Description: "Go somewhere"})
	assert.ErrorIs(t, out.Err, ErrNoInput)
}

func TestNavigateResolvesRelativeURL(t *testing.T) {
	page := newPage(t, `<p>home</p>`,
		htmlpage.WithURL("https://shop.test/catalog/"),
		htmlpage.WithRoutes(map[string]string{
			"https://shop.test/login": `<h1>Sign in</h1>`,
			"https://www.shop.test/":  `<h1>Mirror</h1>`,
		}))
	env := testEnv(t, page)

	out := run(t, env, KindNavigate, Spec{Description: "Go to /login"})
	require.NoError(t, out.Err)
	assert.Equal(t, "https://shop.test/login", out.UsedSelector)

	out = run(t, env, KindNavigate, Spec{Description: "Open www.shop.test/"})
	require.NoError(t, out.Err)
	assert.Equal(t, "https://www.shop.test/", out.UsedSelector)
	assert.Equal(t, "https://www.shop.test/", page.EventsOf("navigate")[1].Value)
}

func TestClearTypeAndPress(t *testing.T) {
	page := newPage(t, `<textarea id="msg" aria-label="Message">draft</textarea>`)
	env := testEnv(t, page)

	out := run(t, env, KindClearInput, Spec{Selector: "getByLabel('Message')", Description: "Clear the message"})
	require.NoError(t, out.Err)
	assert.Equal(t, "", value(t, page, "#msg"))

	out = run(t, env, KindType, Spec{Selector: "#msg", Description: "Type 'hi there' with delay 1"})
	require.NoError(t, out.Err)
	assert.Equal(t, "hi there", value(t, page, "#msg"))

	out = run(t, env, KindPressKey, Spec{Description: "Press Escape"})
	require.NoError(t, out.Err)
	assert.Equal(t, "page-key", out.Strategy)
	presses := page.EventsOf("press")
	require.NotEmpty(t, presses)
	assert.Equal(t, "Escape", presses[len(presses)-1].Value)

	out = run(t, env, KindPressKey, Spec{Selector: "#msg", Description: "Press Tab"})
	require.NoError(t, out.Err)
	assert.Equal(t, "element-key", out.Strategy)
}

func TestSubmitForm(t *testing.T) {
	tests := []struct {
		name     string
		markup   string
		strategy string
		via      string
	}{
		{
			name:     "submit button",
			markup:   `<form id="f"><input name="q"><button type="submit">Send</button></form>`,
			strategy: "submit-button",
			via:      "button",
		},
		{
			name:     "enter in field",
			markup:   `<form id="f"><input name="q"></form>`,
			strategy: "enter",
			via:      "enter",
		},
		{
			name:     "script",
			markup:   `<form id="f"><p>Nothing to press</p></form>`,
			strategy: "script-submit",
			via:      "script",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := newPage(t, tt.markup)
			out := run(t, testEnv(t, page), KindSubmitForm, Spec{Selector: "#f", Description: "Submit the form"})
			require.NoError(t, out.Err)
			assert.Equal(t, tt.strategy, out.Strategy)
			submits := page.EventsOf("submit")
			require.Len(t, submits, 1)
			assert.Equal(t, tt.via, submits[0].Value)
		})
	}
}

func TestCloseModal(t *testing.T) {
	t.Run("close button", func(t *testing.T) {
		page := newPage(t, `<div id="login-modal"><button class="close">×</button><p>Hi</p></div>`)
		require.NoError(t, page.OnClick(".close", func(ctx context.Context, el *htmlpage.Element) error {
			el.Page().Find("#login-modal").SetAttr("style", "display:none")
			return nil
		}))
		out := run(t, testEnv(t, page), KindCloseModal, Spec{Selector: "#login-modal", Description: "Close the dialog"})
		require.NoError(t, out.Err)
		assert.Equal(t, "close-button", out.Strategy)
	})

	t.Run("escape", func(t *testing.T) {
		page := newPage(t, `<div id="login-modal"><p>Hi</p></div>`)
		page.OnKey("Escape", func(ctx context.Context, p *htmlpage.Page) error {
			p.Find("#login-modal").SetAttr("style", "display:none")
			return nil
		})
		out := run(t, testEnv(t, page), KindCloseModal, Spec{Selector: "#login-modal", Description: "Close the dialog"})
		require.NoError(t, out.Err)
		assert.Equal(t, []string{"close-button", "escape"}, out.Trail)
	})

	t.Run("script hide", func(t *testing.T) {
		page := newPage(t, `<div id="login-modal"><p>Hi</p></div>`)
		out := run(t, testEnv(t, page), KindCloseModal, Spec{Selector: "#login-modal", Description: "Close the dialog"})
		require.NoError(t, out.Err)
		assert.Equal(t, []string{"close-button", "escape", "overlay-click", "script-hide"}, out.Trail)
		assert.Len(t, page.EventsOf("hide"), 1)
	})

	t.Run("without selector uses page-wide close button", func(t *testing.T) {
		page := newPage(t, `<div class="modal"><button class="close">×</button><p>Hi</p></div>`)
		require.NoError(t, page.OnClick(".close", func(ctx context.Context, el *htmlpage.Element) error {
			el.Page().Find(".modal").SetAttr("style", "display:none")
			return nil
		}))
		out := run(t, testEnv(t, page), KindCloseModal, Spec{Description: "Close the popup"})
		require.NoError(t, out.Err)
		assert.Equal(t, "close-button", out.Strategy)
	})

	t.Run("without selector presses escape", func(t *testing.T) {
		page := newPage(t, `<div class="modal"><p>Hi</p></div>`)
		page.OnKey("Escape", func(ctx context.Context, p *htmlpage.Page) error {
			p.Find(".modal").SetAttr("style", "display:none")
			return nil
		})
		out := run(t, testEnv(t, page), KindCloseModal, Spec{Description: "Close the popup"})
		require.NoError(t, out.Err)
		assert.Equal(t, []string{"close-button", "escape"}, out.Trail)
		presses := page.EventsOf("press")
		require.NotEmpty(t, presses)
		assert.Equal(t, "Escape", presses[len(presses)-1].Value)
	})
}

func TestActionErrorUnwraps(t *testing.T) {
	err := &ActionError{Kind: KindToggle, Selector: "#x", Err: ErrStateUnchanged}
	assert.True(t, errors.Is(err, ErrStateUnchanged))
	assert.Equal(t, "toggle #x: element state did not change as expected", err.Error())
}
