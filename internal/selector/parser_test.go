package selector

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want Node
	}{
		{
			name: "role with name",
			expr: "getByRole('button', { name: 'Login' })",
			want: &RoleNode{Role: "button", Name: &Pattern{Text: "Login"}},
		},
		{
			name: "page prefix, await and semicolon",
			expr: `await page.getByRole("link", {name: "Docs", exact: true});`,
			want: &RoleNode{Role: "link", Name: &Pattern{Text: "Docs", Exact: true}},
		},
		{
			name: "exact before name",
			expr: "getByRole('tab', { exact: true, name: 'Billing' })",
			want: &RoleNode{Role: "tab", Name: &Pattern{Text: "Billing", Exact: true}},
		},
		{
			name: "regex name",
			expr: `getByRole('button', { name: /sign\s*in/i })`,
			want: &RoleNode{Role: "button", Name: &Pattern{Text: `sign\s*in`, Regex: true, Flags: "i"}},
		},
		{
			name: "role states and legacy attributes",
			expr: "getByRole('checkbox', { checked: false, level: 2, id: 'agree', ariaControls: 'panel-1' })",
			want: &RoleNode{Role: "checkbox", Checked: Bool(false), Level: 2, ID: "agree", AriaControls: "panel-1"},
		},
		{
			name: "text exact",
			expr: "getByText('Add to cart', { exact: true })",
			want: &TextNode{Text: Pattern{Text: "Add to cart", Exact: true}},
		},
		{
			name: "label, placeholder and test id",
			expr: "getByLabel('Email').getByPlaceholder(/name/).getByTestId('x')",
			want: &LabelNode{
				Label: Pattern{Text: "Email"},
				Mods: []Modifier{
					Chain{Child: &PlaceholderNode{Placeholder: Pattern{Text: "name", Regex: true}}},
					Chain{Child: &TestIDNode{ID: "x"}},
				},
			},
		},
		{
			name: "modifiers in order",
			expr: "locator('li.item').filter({ hasText: 'Backpack' }).locator('button').nth(-1).first",
			want: &CSSNode{
				CSS: "li.item",
				Mods: []Modifier{
					Filter{HasText: &Pattern{Text: "Backpack"}},
					Chain{Child: &CSSNode{CSS: "button"}},
					Nth{Index: -1},
					First{},
				},
			},
		},
		{
			name: "locator options become a filter",
			expr: "page.locator('tr', { has: page.getByRole('cell', { name: 'Bob' }), hasClass: 'active' }).last()",
			want: &CSSNode{
				CSS: "tr",
				Mods: []Modifier{
					Filter{HasClass: "active", Has: &RoleNode{Role: "cell", Name: &Pattern{Text: "Bob"}}},
					Last{},
				},
			},
		},
		{
			name: "hasNot with nested chain",
			expr: "locator('.row').filter({ hasNot: locator('.done').first() })",
			want: &CSSNode{
				CSS:  ".row",
				Mods: []Modifier{Filter{HasNot: &CSSNode{CSS: ".done", Mods: []Modifier{First{}}}}},
			},
		},
		{
			name: "hasNot with text reads as hasNotText",
			expr: "locator('li').filter({ hasNot: 'Sold out' })",
			want: &CSSNode{
				CSS:  "li",
				Mods: []Modifier{Filter{HasNotText: &Pattern{Text: "Sold out"}}},
			},
		},
		{
			name: "select option suffix",
			expr: "getByRole('combobox', { name: 'Size' }).selectOption('Medium')",
			want: &RoleNode{Role: "combobox", Name: &Pattern{Text: "Size"}, Mods: []Modifier{SelectOption{Value: "Medium"}}},
		},
		{
			name: "raw css",
			expr: "  form#login > button[type=submit]:has-text(\"Go\") ",
			want: &CSSNode{CSS: `form#login > button[type=submit]:has-text("Go")`},
		},
		{
			name: "engine text quoted",
			expr: `text="Sign in"`,
			want: &TextNode{Text: Pattern{Text: "Sign in", Exact: true}},
		},
		{
			name: "engine css",
			expr: "css=.nav a",
			want: &CSSNode{CSS: ".nav a"},
		},
		{
			name: "engine test id",
			expr: "data-testid=login-button",
			want: &TestIDNode{ID: "login-button"},
		},
		{
			name: "escaped quotes",
			expr: `getByText('Don\'t ask')`,
			want: &TextNode{Text: Pattern{Text: "Don't ask"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.expr)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.expr, diff)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		expr string
		near string
	}{
		{"empty", "   ", ""},
		{"unknown root call", "getByAltText('logo')", "getByAltText('logo')"},
		{"unknown method", "getByRole('button').click()", "click()"},
		{"unterminated string", "getByText('abc", "'abc"},
		{"missing paren", "getByRole('button'", ""},
		{"bad option", "getByRole('button', { nam: 'x' })", "nam: 'x' })"},
		{"nth needs integer", "locator('a').nth('1')", "'1')"},
		{"invalid regex", "getByText(/(?<=a)b/)", "/(?<=a)b/)"},
		{"xpath", "//div[@id='x']", "//div[@id='x']"},
		{"trailing garbage", "getByText('a') extra", "extra"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.expr)
			require.Error(t, err)
			var perr *ParseError
			require.True(t, errors.As(err, &perr), "want *ParseError, got %T", err)
			assert.Equal(t, tt.near, perr.Near)
		})
	}
}

func TestParseIsDeterministic(t *testing.T) {
	exprs := []string{
		"getByRole('button', { name: 'Login' })",
		"getByRole('checkbox', { name: /remember/i, checked: true }).nth(1)",
		"locator('#cart').getByText('Remove', { exact: true }).first()",
		"getByLabel('Password')",
		"locator('li', { hasText: 'Item', hasNot: locator('.sold') }).last()",
		"locator('li').filter({ hasNot: /sold/i })",
		".inventory_item button",
	}
	for _, expr := range exprs {
		t.Run(expr, func(t *testing.T) {
			a, err := Parse(expr)
			require.NoError(t, err)
			b, err := Parse(expr)
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(a, b))

			// The canonical rendering parses back to the same tree.
			c, err := Parse(a.String())
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(a, c), "canonical form %q", a.String())
		})
	}
}

func TestString(t *testing.T) {
	n := Append(&RoleNode{Role: "button", Name: Exact("Log in")}, Nth{Index: 1})
	assert.Equal(t, "getByRole('button', { name: 'Log in', exact: true }).nth(1)", n.String())

	css := &CSSNode{CSS: `a[title='x']`}
	assert.Equal(t, `locator('a[title=\'x\']')`, css.String())
}

func TestAppendDoesNotAlias(t *testing.T) {
	base := &CSSNode{CSS: "a", Mods: []Modifier{First{}}}
	_ = Append(base, Nth{Index: 2})
	assert.Equal(t, []Modifier{First{}}, base.Mods)
	assert.Empty(t, Bare(base).Modifiers())
}

func TestPatternMatch(t *testing.T) {
	assert.True(t, Literal("login").Match("  Login  now"))
	assert.False(t, Exact("login").Match("Login now"))
	assert.True(t, Exact("log in").Match("LOG\n  IN"))
	re := Pattern{Text: `^add .* cart$`, Regex: true, Flags: "i"}
	assert.True(t, re.Match("Add to Cart"))
	assert.False(t, Pattern{Text: `^add`, Regex: true}.Match("Add"))
}

func TestSelectedOption(t *testing.T) {
	n, err := Parse("locator('select#size').selectOption('L')")
	require.NoError(t, err)
	v, ok := SelectedOption(n)
	assert.True(t, ok)
	assert.Equal(t, "L", v)
}
