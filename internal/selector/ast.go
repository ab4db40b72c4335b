// Package selector parses locator expressions such as
//
//	getByRole('button', { name: 'Login' }).nth(1)
//	locator('#cart').getByText('Remove', { exact: true })
//
// into a typed tree. Parsing is pure; evaluation against a page lives in
// package locator.
package selector

import "strings"

// Node is the root of a parsed expression. The concrete types are
// RoleNode, TextNode, LabelNode, PlaceholderNode, TestIDNode and CSSNode.
type Node interface {
	// Modifiers returns the node's modifiers in application order.
	Modifiers() []Modifier
	String() string

	withModifiers(mods []Modifier) Node
	renderBase(b *strings.Builder)
}

// Modifier narrows or extends the element set produced by a node. The
// concrete types are Nth, First, Last, Filter, Chain and SelectOption.
type Modifier interface {
	renderModifier(b *strings.Builder)
}

// RoleNode matches elements by ARIA role and, optionally, accessible name
// and state.
type RoleNode struct {
	Role string
	Name *Pattern

	Checked  *bool
	Disabled *bool
	Expanded *bool
	Pressed  *bool
	Selected *bool
	Level    int

	IncludeHidden bool

	ID           string
	AriaControls string
	Class        string

	Mods []Modifier
}

// TextNode matches the smallest elements whose text matches.
type TextNode struct {
	Text Pattern
	Mods []Modifier
}

// LabelNode matches form controls by their label text.
type LabelNode struct {
	Label Pattern
	Mods  []Modifier
}

// PlaceholderNode matches inputs by placeholder attribute.
type PlaceholderNode struct {
	Placeholder Pattern
	Mods        []Modifier
}

// TestIDNode matches by test id attribute.
type TestIDNode struct {
	ID   string
	Mods []Modifier
}

// CSSNode is a raw CSS selector.
type CSSNode struct {
	CSS  string
	Mods []Modifier
}

// Nth picks the element at Index; negative indexes count from the end.
type Nth struct{ Index int }

// First picks the first element.
type First struct{}

// Last picks the last element.
type Last struct{}

// Filter keeps elements satisfying every set field.
type Filter struct {
	HasText    *Pattern
	HasNotText *Pattern
	HasClass   string
	Has        Node
	HasNot     Node
}

// Chain evaluates Child inside each element of the current set.
type Chain struct{ Child Node }

// SelectOption carries the option a trailing .selectOption('x') named. It
// does not affect which elements match.
type SelectOption struct{ Value string }

func (n *RoleNode) Modifiers() []Modifier        { return n.Mods }
func (n *TextNode) Modifiers() []Modifier        { return n.Mods }
func (n *LabelNode) Modifiers() []Modifier       { return n.Mods }
func (n *PlaceholderNode) Modifiers() []Modifier { return n.Mods }
func (n *TestIDNode) Modifiers() []Modifier      { return n.Mods }
func (n *CSSNode) Modifiers() []Modifier         { return n.Mods }

func (n *RoleNode) withModifiers(m []Modifier) Node {
	c := *n
	c.Mods = m
	return &c
}

func (n *TextNode) withModifiers(m []Modifier) Node {
	c := *n
	c.Mods = m
	return &c
}

func (n *LabelNode) withModifiers(m []Modifier) Node {
	c := *n
	c.Mods = m
	return &c
}

func (n *PlaceholderNode) withModifiers(m []Modifier) Node {
	c := *n
	c.Mods = m
	return &c
}

func (n *TestIDNode) withModifiers(m []Modifier) Node {
	c := *n
	c.Mods = m
	return &c
}

func (n *CSSNode) withModifiers(m []Modifier) Node {
	c := *n
	c.Mods = m
	return &c
}

// Append returns a copy of n with mods added after its own.
func Append(n Node, mods ...Modifier) Node {
	all := make([]Modifier, 0, len(n.Modifiers())+len(mods))
	all = append(all, n.Modifiers()...)
	all = append(all, mods...)
	return n.withModifiers(all)
}

// Bare returns a copy of n without modifiers.
func Bare(n Node) Node {
	return n.withModifiers(nil)
}

// SelectedOption returns the value of the last SelectOption modifier.
func SelectedOption(n Node) (string, bool) {
	mods := n.Modifiers()
	for i := len(mods) - 1; i >= 0; i-- {
		if so, ok := mods[i].(SelectOption); ok {
			return so.Value, true
		}
	}
	return "", false
}

// Bool returns a pointer to b, for RoleNode state fields.
func Bool(b bool) *bool { return &b }
