// Package snapshot records what a page offered when a step failed: the
// visible interactive elements grouped by ARIA role, with the text,
// labels, attributes and container context a planner needs to propose a
// better selector.
package snapshot

import (
	"fmt"
	"sort"
	"strings"
)

// Snapshot is a role-indexed view of a page.
type Snapshot struct {
	URL string `json:"url,omitempty"`
	// Roles maps a role, or one of the special groups (custom,
	// clickable_images, menu_triggers), to its elements in document order.
	Roles map[string][]Element `json:"roles"`
}

// Element describes one candidate.
type Element struct {
	Role        string            `json:"role"`
	Tag         string            `json:"tag"`
	Text        string            `json:"text,omitempty"`
	Label       string            `json:"label,omitempty"`
	Placeholder string            `json:"placeholder,omitempty"`
	Name        string            `json:"name,omitempty"`
	ID          string            `json:"id,omitempty"`
	Visible     bool              `json:"visible"`
	Classes     Classes           `json:"classes"`
	Data        map[string]string `json:"data,omitempty"`
	Aria        map[string]string `json:"aria,omitempty"`
	Other       map[string]string `json:"other,omitempty"`
	Toolbar     *Container        `json:"toolbar,omitempty"`
	Parent      *Container        `json:"parent,omitempty"`
	Options     []Option          `json:"options,omitempty"`
	Inner       []Inner           `json:"inner,omitempty"`
}

// Classes groups class tokens by the UI framework convention they follow.
type Classes struct {
	PrimeVue  []string `json:"primevue,omitempty"`
	Bootstrap []string `json:"bootstrap,omitempty"`
	Material  []string `json:"material,omitempty"`
	Tailwind  []string `json:"tailwind,omitempty"`
	Custom    []string `json:"custom,omitempty"`
}

// Empty reports whether no class was recorded.
func (c Classes) Empty() bool {
	return len(c.PrimeVue)+len(c.Bootstrap)+len(c.Material)+len(c.Tailwind)+len(c.Custom) == 0
}

// Container describes an enclosing element: a toolbar, or the parent of a
// special-group element.
type Container struct {
	Tag     string            `json:"tag,omitempty"`
	Role    string            `json:"role,omitempty"`
	ID      string            `json:"id,omitempty"`
	Classes []string          `json:"classes,omitempty"`
	Data    map[string]string `json:"data,omitempty"`
}

// Option is a choice offered by a select or combobox.
type Option struct {
	Text     string `json:"text"`
	Value    string `json:"value,omitempty"`
	Selected bool   `json:"selected,omitempty"`
}

// Inner is an element inside a dialog.
type Inner struct {
	Tag      string            `json:"tag"`
	Text     string            `json:"text"`
	ID       string            `json:"id,omitempty"`
	Required bool              `json:"required,omitempty"`
	Classes  []string          `json:"classes,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
}

// Count returns the number of recorded elements.
func (s *Snapshot) Count() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, els := range s.Roles {
		n += len(els)
	}
	return n
}

// Empty reports whether the snapshot holds no element.
func (s *Snapshot) Empty() bool { return s.Count() == 0 }

// Groups returns the role names present, in collection order for known
// roles and alphabetically for the rest.
func (s *Snapshot) Groups() []string {
	if s == nil {
		return nil
	}
	rank := make(map[string]int)
	for i, r := range append(append([]string(nil), DefaultRoles...), specialOrder...) {
		rank[r] = i + 1
	}
	out := make([]string, 0, len(s.Roles))
	for r, els := range s.Roles {
		if len(els) > 0 {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := rank[out[i]], rank[out[j]]
		switch {
		case ri != 0 && rj != 0:
			return ri < rj
		case ri != 0:
			return true
		case rj != 0:
			return false
		}
		return out[i] < out[j]
	})
	return out
}

// Format renders the snapshot as the plain text block handed to selector
// suggesters.
func (s *Snapshot) Format() string {
	if s.Empty() {
		return "No interactive elements found"
	}
	var b strings.Builder
	if s.URL != "" {
		fmt.Fprintf(&b, "URL: %s\n", s.URL)
	}
	for _, role := range s.Groups() {
		els := s.Roles[role]
		fmt.Fprintf(&b, "\n%s (%d):\n", strings.ToUpper(role), len(els))
		for i, el := range els {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, el.summary())
			for _, o := range el.Options {
				line := "     - option " + quote(o.Text)
				if o.Value != "" && o.Value != o.Text {
					line += " value=" + quote(o.Value)
				}
				if o.Selected {
					line += " (selected)"
				}
				b.WriteString(line + "\n")
			}
			for _, in := range el.Inner {
				line := "     - " + in.Tag + " " + quote(in.Text)
				if in.ID != "" {
					line += " #" + in.ID
				}
				b.WriteString(line + "\n")
			}
		}
	}
	return b.String()
}

func (el Element) summary() string {
	parts := []string{el.Tag}
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, k+"="+quote(v))
		}
	}
	add("text", el.Text)
	add("label", el.Label)
	add("placeholder", el.Placeholder)
	add("name", el.Name)
	add("id", el.ID)
	if !el.Visible {
		parts = append(parts, "hidden")
	}
	groups := []struct {
		name string
		list []string
	}{
		{"primevue", el.Classes.PrimeVue},
		{"bootstrap", el.Classes.Bootstrap},
		{"material", el.Classes.Material},
		{"tailwind", el.Classes.Tailwind},
		{"custom", el.Classes.Custom},
	}
	for _, g := range groups {
		if len(g.list) > 0 {
			parts = append(parts, g.name+": "+strings.Join(g.list, " "))
		}
	}
	parts = appendAttrs(parts, el.Data)
	parts = appendAttrs(parts, el.Aria)
	if t := el.Toolbar; t != nil {
		parts = append(parts, "in toolbar"+containerSuffix(t))
	}
	if p := el.Parent; p != nil {
		parts = append(parts, "parent "+p.Tag+containerSuffix(p))
	}
	return strings.Join(parts, " | ")
}

func containerSuffix(c *Container) string {
	var s string
	if c.ID != "" {
		s += " #" + c.ID
	}
	for _, cls := range c.Classes {
		s += " ." + cls
	}
	return s
}

func appendAttrs(parts []string, attrs map[string]string) []string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+quote(attrs[k]))
	}
	return parts
}

func quote(s string) string { return "'" + strings.ReplaceAll(s, "'", `\'`) + "'" }
