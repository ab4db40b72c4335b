package selector

import (
	"strconv"
	"strings"
)

func render(n Node) string {
	var b strings.Builder
	n.renderBase(&b)
	for _, m := range n.Modifiers() {
		m.renderModifier(&b)
	}
	return b.String()
}

func (n *RoleNode) String() string        { return render(n) }
func (n *TextNode) String() string        { return render(n) }
func (n *LabelNode) String() string       { return render(n) }
func (n *PlaceholderNode) String() string { return render(n) }
func (n *TestIDNode) String() string      { return render(n) }
func (n *CSSNode) String() string         { return render(n) }

func (n *RoleNode) renderBase(b *strings.Builder) {
	b.WriteString("getByRole(")
	quote(b, n.Role)
	var opts []string
	if n.Name != nil {
		var nb strings.Builder
		nb.WriteString("name: ")
		n.Name.render(&nb)
		opts = append(opts, nb.String())
		if n.Name.Exact && !n.Name.Regex {
			opts = append(opts, "exact: true")
		}
	}
	for _, s := range []struct {
		key string
		val *bool
	}{
		{"checked", n.Checked},
		{"disabled", n.Disabled},
		{"expanded", n.Expanded},
		{"pressed", n.Pressed},
		{"selected", n.Selected},
	} {
		if s.val != nil {
			opts = append(opts, s.key+": "+strconv.FormatBool(*s.val))
		}
	}
	if n.Level != 0 {
		opts = append(opts, "level: "+strconv.Itoa(n.Level))
	}
	if n.IncludeHidden {
		opts = append(opts, "includeHidden: true")
	}
	for _, s := range []struct{ key, val string }{
		{"id", n.ID},
		{"ariaControls", n.AriaControls},
		{"class", n.Class},
	} {
		if s.val != "" {
			var sb strings.Builder
			sb.WriteString(s.key + ": ")
			quote(&sb, s.val)
			opts = append(opts, sb.String())
		}
	}
	if len(opts) > 0 {
		b.WriteString(", { ")
		b.WriteString(strings.Join(opts, ", "))
		b.WriteString(" }")
	}
	b.WriteByte(')')
}

func renderPatternCall(b *strings.Builder, fn string, p Pattern) {
	b.WriteString(fn)
	b.WriteByte('(')
	p.render(b)
	if p.Exact && !p.Regex {
		b.WriteString(", { exact: true }")
	}
	b.WriteByte(')')
}

func (n *TextNode) renderBase(b *strings.Builder) {
	renderPatternCall(b, "getByText", n.Text)
}

func (n *LabelNode) renderBase(b *strings.Builder) {
	renderPatternCall(b, "getByLabel", n.Label)
}

func (n *PlaceholderNode) renderBase(b *strings.Builder) {
	renderPatternCall(b, "getByPlaceholder", n.Placeholder)
}

func (n *TestIDNode) renderBase(b *strings.Builder) {
	b.WriteString("getByTestId(")
	quote(b, n.ID)
	b.WriteByte(')')
}

func (n *CSSNode) renderBase(b *strings.Builder) {
	b.WriteString("locator(")
	quote(b, n.CSS)
	b.WriteByte(')')
}

func (m Nth) renderModifier(b *strings.Builder) {
	b.WriteString(".nth(")
	b.WriteString(strconv.Itoa(m.Index))
	b.WriteByte(')')
}

func (First) renderModifier(b *strings.Builder) { b.WriteString(".first()") }

func (Last) renderModifier(b *strings.Builder) { b.WriteString(".last()") }

func (f Filter) renderModifier(b *strings.Builder) {
	var parts []string
	add := func(key string, write func(*strings.Builder)) {
		var pb strings.Builder
		pb.WriteString(key + ": ")
		write(&pb)
		parts = append(parts, pb.String())
	}
	if f.HasText != nil {
		add("hasText", f.HasText.render)
	}
	if f.HasNotText != nil {
		add("hasNotText", f.HasNotText.render)
	}
	if f.HasClass != "" {
		add("hasClass", func(pb *strings.Builder) { quote(pb, f.HasClass) })
	}
	if f.Has != nil {
		add("has", func(pb *strings.Builder) { pb.WriteString(f.Has.String()) })
	}
	if f.HasNot != nil {
		add("hasNot", func(pb *strings.Builder) { pb.WriteString(f.HasNot.String()) })
	}
	b.WriteString(".filter({ ")
	b.WriteString(strings.Join(parts, ", "))
	b.WriteString(" })")
}

func (c Chain) renderModifier(b *strings.Builder) {
	b.WriteByte('.')
	b.WriteString(c.Child.String())
}

func (s SelectOption) renderModifier(b *strings.Builder) {
	b.WriteString(".selectOption(")
	quote(b, s.Value)
	b.WriteByte(')')
}

func quote(b *strings.Builder, s string) {
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\'', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
}
