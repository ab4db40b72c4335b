package htmlpage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/v0xg/uistep/internal/dom"
)

// Element is a node of a simulated page.
type Element struct {
	page *Page
	node *html.Node
}

var _ dom.Element = (*Element)(nil)

// Page returns the owning page.
func (e *Element) Page() *Page { return e.page }

// Node exposes the parsed node.
func (e *Element) Node() *html.Node { return e.node }

// SetAttr sets an attribute, as a page script would.
func (e *Element) SetAttr(key, val string) { setAttr(e.node, key, val) }

// RemoveAttr removes an attribute.
func (e *Element) RemoveAttr(key string) { removeAttr(e.node, key) }

func (e *Element) selection() *goquery.Selection {
	return goquery.NewDocumentFromNode(e.node).Selection
}

func (e *Element) Query(ctx context.Context, css string) ([]dom.Element, error) {
	return e.page.query(ctx, e.selection(), css)
}

func (e *Element) QueryText(ctx context.Context, needle string) ([]dom.Element, error) {
	return e.page.queryText(ctx, e.selection(), needle)
}

func (e *Element) Key(context.Context) (string, error) {
	return fmt.Sprintf("%p", e.node), nil
}

func (e *Element) TagName(context.Context) (string, error) {
	return e.node.Data, nil
}

func (e *Element) Attribute(_ context.Context, name string) (string, bool, error) {
	v, ok := lookupAttr(e.node, name)
	return v, ok, nil
}

func (e *Element) Attributes(context.Context) (map[string]string, error) {
	out := make(map[string]string, len(e.node.Attr))
	for _, a := range e.node.Attr {
		out[a.Key] = a.Val
	}
	return out, nil
}

func (e *Element) Text(context.Context) (string, error) {
	return textContent(e.node), nil
}

func (e *Element) Value(context.Context) (string, error) {
	return valueOf(e.node), nil
}

func (e *Element) Visible(context.Context) (bool, error) {
	return visible(e.node), nil
}

func (e *Element) Parent(context.Context) (dom.Element, error) {
	if e.node.Parent == nil || e.node.Parent.Type != html.ElementNode {
		return nil, nil
	}
	return e.page.wrap(e.node.Parent), nil
}

func (e *Element) Closest(_ context.Context, css string) (dom.Element, error) {
	sel, err := cascadia.Compile(css)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", css, err)
	}
	for n := e.node; n != nil && n.Type == html.ElementNode; n = n.Parent {
		if sel.Match(n) {
			return e.page.wrap(n), nil
		}
	}
	return nil, nil
}

func (e *Element) BoundingBox(context.Context) (dom.Box, error) {
	if !visible(e.node) {
		return dom.Box{}, dom.ErrNotVisible
	}
	idx := e.page.layoutIndex(e.node)
	if idx < 0 {
		return dom.Box{}, dom.ErrDetached
	}
	return dom.Box{X: 0, Y: float64(idx * rowHeight), Width: 100, Height: rowHeight}, nil
}

func (e *Element) attached() error {
	if e.page.layoutIndex(e.node) < 0 {
		return dom.ErrDetached
	}
	return nil
}

func (e *Element) Click(ctx context.Context, opts dom.ClickOptions) error {
	if err := e.attached(); err != nil {
		return err
	}
	if !opts.Force {
		if !visible(e.node) {
			return dom.ErrNotVisible
		}
		if disabled(e.node) {
			return fmt.Errorf("click %s: element is disabled", describeNode(e.node))
		}
	}
	e.page.record("click", e.node, "")
	return e.page.activate(ctx, e.node)
}

func (e *Element) DispatchClick(ctx context.Context) error {
	if err := e.attached(); err != nil {
		return err
	}
	e.page.record("dispatch-click", e.node, "")
	return e.page.activate(ctx, e.node)
}

func (e *Element) Hover(ctx context.Context) error {
	if !visible(e.node) {
		return dom.ErrNotVisible
	}
	e.page.record("hover", e.node, "")
	return e.page.dispatch(ctx, "hover", e.node)
}

func (e *Element) ScrollIntoView(context.Context) error {
	if err := e.attached(); err != nil {
		return err
	}
	if !visible(e.node) {
		return dom.ErrNotVisible
	}
	e.page.record("scroll", e.node, "")
	return nil
}

func (e *Element) Focus(context.Context) error {
	if err := e.attached(); err != nil {
		return err
	}
	e.page.focused = e.node
	e.page.selectAll = false
	return nil
}

func (e *Element) Fill(ctx context.Context, text string) error {
	if err := e.editable(); err != nil {
		return err
	}
	e.page.focused = e.node
	setValue(e.node, text)
	e.page.record("fill", e.node, text)
	return ctx.Err()
}

func (e *Element) Type(ctx context.Context, text string, delay time.Duration) error {
	if err := e.editable(); err != nil {
		return err
	}
	e.page.focused = e.node
	current := valueOf(e.node)
	for _, r := range text {
		if err := dom.Sleep(ctx, delay); err != nil {
			return err
		}
		current += string(r)
		setValue(e.node, current)
	}
	e.page.record("type", e.node, text)
	return nil
}

func (e *Element) Press(ctx context.Context, key string) error {
	if err := e.attached(); err != nil {
		return err
	}
	e.page.focused = e.node
	return e.page.press(ctx, key)
}

func (e *Element) Checked(context.Context) (bool, error) {
	if !isCheckable(e.node) {
		return false, dom.ErrUnsupported
	}
	return hasAttr(e.node, "checked"), nil
}

func (e *Element) SetChecked(ctx context.Context, checked bool) error {
	if !isCheckable(e.node) {
		return dom.ErrUnsupported
	}
	if hasAttr(e.node, "checked") == checked {
		return nil
	}
	if !checked && strings.EqualFold(attr(e.node, "type"), "radio") {
		return fmt.Errorf("cannot uncheck radio button %s", describeNode(e.node))
	}
	return e.Click(ctx, dom.ClickOptions{})
}

func (e *Element) Options(context.Context) ([]dom.Option, error) {
	if e.node.Data != "select" {
		return nil, dom.ErrUnsupported
	}
	var out []dom.Option
	for _, o := range optionNodes(e.node) {
		opt := dom.Option{
			Value:    valueOf(o),
			Label:    optionLabel(o),
			Selected: hasAttr(o, "selected"),
			Disabled: hasAttr(o, "disabled"),
		}
		for _, a := range o.Attr {
			if strings.HasPrefix(a.Key, "data-") {
				if opt.Data == nil {
					opt.Data = make(map[string]string)
				}
				opt.Data[a.Key] = a.Val
			}
		}
		out = append(out, opt)
	}
	return out, nil
}

func (e *Element) SelectIndex(ctx context.Context, index int) error {
	if e.node.Data != "select" {
		return dom.ErrUnsupported
	}
	if !visible(e.node) {
		return dom.ErrNotVisible
	}
	if disabled(e.node) {
		return fmt.Errorf("select %s: element is disabled", describeNode(e.node))
	}
	opts := optionNodes(e.node)
	if index < 0 || index >= len(opts) {
		return fmt.Errorf("option index %d out of range (%d options)", index, len(opts))
	}
	for i, o := range opts {
		if i == index {
			setAttr(o, "selected", "")
		} else {
			removeAttr(o, "selected")
		}
	}
	e.page.record("select", e.node, valueOf(opts[index]))
	return e.page.dispatch(ctx, "change", e.node)
}

func (e *Element) ForceVisible(context.Context) error {
	const style = "opacity: 1; visibility: visible; display: inline-block"
	targets := []*html.Node{e.node}
	if e.node.Parent != nil && e.node.Parent.Type == html.ElementNode {
		targets = append(targets, e.node.Parent)
	}
	for n := e.node; n != nil && n.Type == html.ElementNode; n = n.Parent {
		if dom.HasClass(attr(n, "class"), "action-buttons") {
			targets = append(targets, n)
			break
		}
	}
	for _, n := range targets {
		setAttr(n, "style", style)
		removeAttr(n, "hidden")
	}
	e.page.record("force-visible", e.node, "")
	return nil
}

func (e *Element) Submit(context.Context) error {
	form := closestTag(e.node, "form")
	if form == nil {
		return fmt.Errorf("submit %s: no enclosing form", describeNode(e.node))
	}
	e.page.record("submit", form, "script")
	return nil
}

func (e *Element) Hide(context.Context) error {
	setAttr(e.node, "style", "display: none")
	e.page.record("hide", e.node, "")
	return nil
}

func (e *Element) String() string {
	return describeNode(e.node)
}

func (e *Element) editable() error {
	if err := e.attached(); err != nil {
		return err
	}
	if !isEditable(e.node) {
		return fmt.Errorf("%s is not an editable element", describeNode(e.node))
	}
	if !visible(e.node) {
		return dom.ErrNotVisible
	}
	if disabled(e.node) || hasAttr(e.node, "readonly") {
		return fmt.Errorf("%s is not editable", describeNode(e.node))
	}
	return nil
}
