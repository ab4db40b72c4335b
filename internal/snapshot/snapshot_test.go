package snapshot

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/v0xg/uistep/internal/htmlpage"
	"github.com/v0xg/uistep/internal/locator"
)

const markup = `
<div role="toolbar" class="p-toolbar" data-section="top">
  <button class="p-button btn-primary export-btn" data-test="export">Export</button>
</div>
<label for="email">Email</label>
<input id="email" name="email" placeholder="you@example.com" class="form-control">
<label><input type="checkbox" id="tos"> Accept terms</label>
<select id="size" aria-label="Size">
  <option value="s">Small</option>
  <option value="m" selected>M</option>
</select>
<div role="combobox" aria-controls="fruit-list" aria-label="Fruit">Pick</div>
<ul id="fruit-list" role="listbox">
  <li role="option" data-value="a" aria-selected="true">Apple</li>
</ul>
<dialog open>
  <h2>Confirm</h2>
  <p>Delete item?</p>
  <span>*</span>
</dialog>
<div class="action-buttons" style="display:none"><img id="details-more-menu" src="dots.svg"></div>
<div class="option-item">Archive</div>
<button style="display:none">Hidden</button>
`

func collect(t *testing.T, html string) *Snapshot {
	t.Helper()
	page, err := htmlpage.New(html, htmlpage.WithURL("https://app.test/items"))
	require.NoError(t, err)
	log := zaptest.NewLogger(t)
	c := New(locator.New(locator.Options{Logger: log}), Options{Logger: log})
	snap, err := c.Collect(context.Background(), page)
	require.NoError(t, err)
	return snap
}

func TestCollect(t *testing.T) {
	snap := collect(t, markup)
	assert.Equal(t, "https://app.test/items", snap.URL)
	assert.False(t, snap.Empty())

	buttons := snap.Roles["button"]
	require.Len(t, buttons, 1, "hidden buttons are left out")
	btn := buttons[0]
	assert.Equal(t, "Export", btn.Text)
	assert.True(t, btn.Visible)
	assert.Equal(t, map[string]string{"data-test": "export"}, btn.Data)
	assert.Equal(t, Classes{
		PrimeVue:  []string{"p-button"},
		Bootstrap: []string{"btn-primary"},
		Custom:    []string{"export-btn"},
	}, btn.Classes)
	require.NotNil(t, btn.Toolbar)
	assert.Equal(t, "toolbar", btn.Toolbar.Role)
	assert.Equal(t, []string{"p-toolbar"}, btn.Toolbar.Classes)
	assert.Equal(t, map[string]string{"data-section": "top"}, btn.Toolbar.Data)

	boxes := snap.Roles["textbox"]
	require.Len(t, boxes, 1)
	assert.Equal(t, "Email", boxes[0].Label)
	assert.Equal(t, "you@example.com", boxes[0].Placeholder)
	assert.Equal(t, "email", boxes[0].Name)
	assert.Equal(t, "email", boxes[0].ID)
	assert.Nil(t, boxes[0].Toolbar)

	checks := snap.Roles["checkbox"]
	require.Len(t, checks, 1)
	assert.Equal(t, "Accept terms", checks[0].Label)

	combos := snap.Roles["combobox"]
	require.Len(t, combos, 2)
	assert.Equal(t, "select", combos[0].Tag)
	assert.Equal(t, []Option{{Text: "Small", Value: "s"}, {Text: "M", Value: "m", Selected: true}}, combos[0].Options)
	assert.Equal(t, "Fruit", combos[1].Label)
	assert.Equal(t, []Option{{Text: "Apple", Value: "a", Selected: true}}, combos[1].Options)

	dialogs := snap.Roles["dialog"]
	require.Len(t, dialogs, 1)
	var inner []string
	for _, in := range dialogs[0].Inner {
		inner = append(inner, in.Tag+":"+in.Text)
	}
	assert.Equal(t, []string{"h2:Confirm", "p:Delete item?"}, inner)
}

func TestCollectSpecialGroups(t *testing.T) {
	snap := collect(t, markup)

	images := snap.Roles["clickable_images"]
	require.Len(t, images, 1)
	assert.Equal(t, "details-more-menu", images[0].ID)
	assert.False(t, images[0].Visible)
	require.NotNil(t, images[0].Parent)
	assert.Equal(t, []string{"action-buttons"}, images[0].Parent.Classes)

	triggers := snap.Roles["menu_triggers"]
	require.Len(t, triggers, 1)
	assert.Equal(t, "img", triggers[0].Tag)

	custom := snap.Roles["custom"]
	require.Len(t, custom, 1)
	assert.Equal(t, "Archive", custom[0].Text)
	assert.True(t, custom[0].Visible)
}

func TestCollectEmptyPage(t *testing.T) {
	snap := collect(t, `<p>Nothing to do here</p>`)
	assert.True(t, snap.Empty())
	assert.Equal(t, "No interactive elements found", snap.Format())
}

func TestGroupsAndFormat(t *testing.T) {
	snap := collect(t, markup)
	groups := snap.Groups()
	require.NotEmpty(t, groups)
	assert.Equal(t, "button", groups[0])
	assert.Equal(t, "menu_triggers", groups[len(groups)-1])

	out := snap.Format()
	assert.Contains(t, out, "URL: https://app.test/items")
	assert.Contains(t, out, "BUTTON (1):")
	assert.Contains(t, out, "text='Export'")
	assert.Contains(t, out, "in toolbar .p-toolbar")
	assert.Contains(t, out, "- option 'M' value='m' (selected)")
	assert.Contains(t, out, "- h2 'Confirm'")
	assert.Contains(t, out, "hidden")
}

func TestSnapshotJSON(t *testing.T) {
	snap := collect(t, `<button id="go" data-test="go">Go</button>`)
	b, err := json.Marshal(snap)
	require.NoError(t, err)

	var back Snapshot
	require.NoError(t, json.Unmarshal(b, &back))
	if diff := cmp.Diff(snap, &back); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		class string
		want  Classes
	}{
		{"", Classes{}},
		{"p-button p-component", Classes{PrimeVue: []string{"p-button", "p-component"}}},
		{"btn btn-primary form-control nav-link", Classes{
			Bootstrap: []string{"btn-primary", "form-control", "nav-link"},
			Custom:    []string{"btn"},
		}},
		{"mat-raised-button", Classes{Material: []string{"mat-raised-button"}}},
		{"flex bg-blue-500 rounded-lg m-2", Classes{Tailwind: []string{"flex", "bg-blue-500", "rounded-lg", "m-2"}}},
		{"cart-icon", Classes{Custom: []string{"cart-icon"}}},
	}
	for _, tt := range tests {
		got := Classify(tt.class)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("Classify(%q) (-want +got):\n%s", tt.class, diff)
		}
	}
	assert.True(t, Classify("").Empty())
}
