package htmlpage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/uistep/internal/dom"
)

const loginMarkup = `<!doctype html>
<html><head><title>Login</title><style>.x{}</style></head>
<body>
  <form id="login" action="/session">
    <label for="user">Username</label>
    <input id="user" name="user" placeholder="Username">
    <label>Remember me <input type="checkbox" id="remember"></label>
    <input type="hidden" name="csrf" value="t">
    <button type="submit">Login</button>
  </form>
  <div style="display: none"><button id="ghost">Ghost</button></div>
  <a href="/help">Help</a>
  <select id="size"><option value="s">Small</option><option value="m" selected>Medium</option></select>
</body></html>`

func newPage(t *testing.T) *Page {
	t.Helper()
	p, err := New(loginMarkup, WithURL("https://shop.test/login"), WithRoutes(map[string]string{
		"https://shop.test/help": `<h1>Help</h1>`,
	}))
	require.NoError(t, err)
	return p
}

func TestQuery(t *testing.T) {
	ctx := context.Background()
	p := newPage(t)

	els, err := p.Query(ctx, "form input")
	require.NoError(t, err)
	assert.Len(t, els, 3)

	_, err = p.Query(ctx, "input[")
	assert.Error(t, err)

	form := p.Find("#login")
	require.NotNil(t, form)
	inner, err := form.Query(ctx, "form, button")
	require.NoError(t, err)
	assert.Len(t, inner, 1, "scoped queries exclude the scope itself")
}

func TestQueryText(t *testing.T) {
	ctx := context.Background()
	p := newPage(t)
	els, err := p.QueryText(ctx, "LOGIN")
	require.NoError(t, err)
	var tags []string
	for _, el := range els {
		tag, _ := el.TagName(ctx)
		tags = append(tags, tag)
	}
	assert.Contains(t, tags, "button")
	assert.NotContains(t, tags, "title")
}

func TestVisibility(t *testing.T) {
	ctx := context.Background()
	p := newPage(t)

	ghost := p.Find("#ghost")
	ok, err := ghost.Visible(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, ghost.Click(ctx, dom.ClickOptions{}), dom.ErrNotVisible)
	assert.NoError(t, ghost.Click(ctx, dom.ClickOptions{Force: true}))

	hidden := p.Find("input[type=hidden]")
	ok, _ = hidden.Visible(ctx)
	assert.False(t, ok)
}

func TestCheckboxAndLabel(t *testing.T) {
	ctx := context.Background()
	p := newPage(t)
	box := p.Find("#remember")

	checked, err := box.Checked(ctx)
	require.NoError(t, err)
	assert.False(t, checked)

	require.NoError(t, p.Find("label:not([for])").Click(ctx, dom.ClickOptions{}))
	checked, _ = box.Checked(ctx)
	assert.True(t, checked, "clicking a wrapping label toggles its control")

	require.NoError(t, box.SetChecked(ctx, false))
	checked, _ = box.Checked(ctx)
	assert.False(t, checked)

	_, err = p.Find("button").Checked(ctx)
	assert.ErrorIs(t, err, dom.ErrUnsupported)
}

func TestFillAndEnterSubmits(t *testing.T) {
	ctx := context.Background()
	p := newPage(t)
	user := p.Find("#user")

	require.NoError(t, user.Fill(ctx, "standard_user"))
	v, _ := user.Value(ctx)
	assert.Equal(t, "standard_user", v)

	require.NoError(t, user.Press(ctx, "Enter"))
	subs := p.EventsOf("submit")
	require.Len(t, subs, 1)
	assert.Equal(t, "enter", subs[0].Value)

	require.NoError(t, p.Press(ctx, "Control+A"))
	require.NoError(t, p.Press(ctx, "Delete"))
	v, _ = user.Value(ctx)
	assert.Empty(t, v)

	assert.Error(t, p.Find("button").Fill(ctx, "x"))
}

func TestSubmitButtonAndLinks(t *testing.T) {
	ctx := context.Background()
	p := newPage(t)

	require.NoError(t, p.Find("button[type=submit]").Click(ctx, dom.ClickOptions{}))
	assert.Len(t, p.EventsOf("submit"), 1)

	require.NoError(t, p.Find("a").Click(ctx, dom.ClickOptions{}))
	u, _ := p.URL(ctx)
	assert.Equal(t, "https://shop.test/help", u)
	assert.NotNil(t, p.Find("h1"))

	err := p.Navigate(ctx, "/missing")
	assert.True(t, errors.Is(err, ErrNoRoute))
}

func TestSelect(t *testing.T) {
	ctx := context.Background()
	p := newPage(t)
	sel := p.Find("#size")

	opts, err := sel.Options(ctx)
	require.NoError(t, err)
	require.Len(t, opts, 2)
	assert.Equal(t, dom.Option{Value: "m", Label: "Medium", Selected: true}, opts[1])

	require.NoError(t, sel.SelectIndex(ctx, 0))
	v, _ := sel.Value(ctx)
	assert.Equal(t, "s", v)
	assert.Error(t, sel.SelectIndex(ctx, 5))
}

func TestHandlersAndCoordinates(t *testing.T) {
	ctx := context.Background()
	p, err := New(`<div class="switch" role="switch" aria-checked="false">Wifi</div>`)
	require.NoError(t, err)
	require.NoError(t, p.OnClick(".switch", func(_ context.Context, el *Element) error {
		v, _, _ := el.Attribute(ctx, "aria-checked")
		next := "true"
		if v == "true" {
			next = "false"
		}
		setAttr(el.Node(), "aria-checked", next)
		return nil
	}))

	sw := p.Find(".switch")
	box, err := sw.BoundingBox(ctx)
	require.NoError(t, err)
	x, y := box.Center()
	require.NoError(t, p.ClickAt(ctx, x, y))

	v, _, _ := sw.Attribute(ctx, "aria-checked")
	assert.Equal(t, "true", v)
}

func TestForceVisibleAndHide(t *testing.T) {
	ctx := context.Background()
	p, err := New(`<div class="action-buttons" style="visibility:hidden"><span><img id="menu" alt="More"></span></div>`)
	require.NoError(t, err)
	img := p.Find("#menu")

	ok, _ := img.Visible(ctx)
	require.False(t, ok)
	require.NoError(t, img.ForceVisible(ctx))
	ok, _ = img.Visible(ctx)
	assert.True(t, ok)

	require.NoError(t, img.Hide(ctx))
	ok, _ = img.Visible(ctx)
	assert.False(t, ok)
}

func TestClosestAndKey(t *testing.T) {
	ctx := context.Background()
	p := newPage(t)
	btn := p.Find("button[type=submit]")

	form, err := btn.Closest(ctx, "form")
	require.NoError(t, err)
	require.NotNil(t, form)
	k1, _ := form.Key(ctx)
	k2, _ := p.Find("#login").Key(ctx)
	assert.Equal(t, k1, k2)

	none, err := btn.Closest(ctx, "table")
	require.NoError(t, err)
	assert.Nil(t, none)
}
