package htmlpage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/v0xg/uistep/internal/dom"
)

var hiddenTags = map[string]bool{
	"head": true, "script": true, "style": true, "template": true, "title": true,
	"meta": true, "link": true, "noscript": true, "base": true,
}

var nonTextInputs = map[string]bool{
	"checkbox": true, "radio": true, "submit": true, "button": true, "reset": true,
	"image": true, "hidden": true, "file": true, "range": true, "color": true,
}

// activate performs a click's default action and runs click handlers.
func (p *Page) activate(ctx context.Context, n *html.Node) error {
	if disabled(n) {
		return nil
	}
	if isCheckable(n) {
		if strings.EqualFold(attr(n, "type"), "radio") {
			p.checkRadio(n)
		} else if hasAttr(n, "checked") {
			removeAttr(n, "checked")
		} else {
			setAttr(n, "checked", "")
		}
	}
	if err := p.dispatch(ctx, "click", n); err != nil {
		return err
	}
	if n.Data == "label" {
		if ctl := p.labelControl(n); ctl != nil {
			return p.activate(ctx, ctl)
		}
	}
	if a := closestTag(n, "a"); a != nil {
		href, ok := lookupAttr(a, "href")
		if ok && href != "" && !strings.HasPrefix(href, "#") && !strings.HasPrefix(href, "javascript:") {
			return p.navigate(href, false)
		}
	}
	if isSubmitter(n) {
		if form := closestTag(n, "form"); form != nil {
			p.record("submit", form, "button")
		}
	}
	return nil
}

func (p *Page) checkRadio(n *html.Node) {
	name := attr(n, "name")
	if name != "" {
		for _, other := range p.doc.Find("input").Nodes {
			if strings.EqualFold(attr(other, "type"), "radio") && attr(other, "name") == name {
				removeAttr(other, "checked")
			}
		}
	}
	setAttr(n, "checked", "")
}

func (p *Page) labelControl(label *html.Node) *html.Node {
	if id := attr(label, "for"); id != "" {
		nodes := p.doc.Find("[id=" + dom.QuoteCSS(id) + "]").Nodes
		if len(nodes) > 0 {
			return nodes[0]
		}
		return nil
	}
	nodes := goqueryFind(label, "input, select, textarea")
	if len(nodes) > 0 {
		return nodes[0]
	}
	return nil
}

// dispatch runs the handlers of kind registered for n or its nearest
// matching ancestor.
func (p *Page) dispatch(ctx context.Context, kind string, n *html.Node) error {
	for _, h := range p.handlers {
		if h.kind != kind {
			continue
		}
		for m := n; m != nil && m.Type == html.ElementNode; m = m.Parent {
			if h.sel.Match(m) {
				if err := h.fn(ctx, p.wrap(m)); err != nil {
					return err
				}
				break
			}
		}
	}
	return nil
}

func (p *Page) press(ctx context.Context, key string) error {
	p.record("press", p.focused, key)
	norm := strings.ToLower(strings.TrimSpace(key))
	for _, fn := range p.keyHandlers[norm] {
		if err := fn(ctx, p); err != nil {
			return err
		}
	}
	switch norm {
	case "control+a", "meta+a":
		p.selectAll = true
		return nil
	case "delete", "backspace":
		if p.selectAll && p.focused != nil && isEditable(p.focused) {
			setValue(p.focused, "")
		}
	case "enter":
		if p.focused != nil && p.focused.Data == "input" {
			if form := closestTag(p.focused, "form"); form != nil {
				p.record("submit", form, "enter")
			}
		}
	}
	p.selectAll = false
	return nil
}

func visible(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if n.Data == "input" && strings.EqualFold(attr(n, "type"), "hidden") {
		return false
	}
	for m := n; m != nil && m.Type == html.ElementNode; m = m.Parent {
		if hiddenTags[m.Data] || hasAttr(m, "hidden") {
			return false
		}
		if m.Data == "dialog" && !hasAttr(m, "open") {
			return false
		}
		style := styleProps(attr(m, "style"))
		if style["display"] == "none" {
			return false
		}
		if v := style["visibility"]; v == "hidden" || v == "collapse" {
			return false
		}
	}
	return true
}

func disabled(n *html.Node) bool {
	if strings.EqualFold(attr(n, "aria-disabled"), "true") {
		return true
	}
	switch n.Data {
	case "button", "input", "select", "textarea", "option":
		return hasAttr(n, "disabled")
	}
	return false
}

func isCheckable(n *html.Node) bool {
	if n.Data != "input" {
		return false
	}
	t := strings.ToLower(attr(n, "type"))
	return t == "checkbox" || t == "radio"
}

func isEditable(n *html.Node) bool {
	switch n.Data {
	case "input":
		return !nonTextInputs[strings.ToLower(attr(n, "type"))]
	case "textarea":
		return true
	}
	ce, ok := lookupAttr(n, "contenteditable")
	return ok && !strings.EqualFold(ce, "false")
}

func isSubmitter(n *html.Node) bool {
	t := strings.ToLower(attr(n, "type"))
	switch n.Data {
	case "button":
		return t == "" || t == "submit"
	case "input":
		return t == "submit" || t == "image"
	}
	return false
}

func isValueButton(n *html.Node) bool {
	if n.Data != "input" {
		return false
	}
	t := strings.ToLower(attr(n, "type"))
	return t == "button" || t == "submit" || t == "reset"
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "template") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func valueOf(n *html.Node) string {
	switch n.Data {
	case "input":
		return attr(n, "value")
	case "textarea":
		return textContent(n)
	case "option":
		if v, ok := lookupAttr(n, "value"); ok {
			return v
		}
		return dom.NormalizeSpace(textContent(n))
	case "select":
		opts := optionNodes(n)
		for _, o := range opts {
			if hasAttr(o, "selected") {
				return valueOf(o)
			}
		}
		if len(opts) > 0 {
			return valueOf(opts[0])
		}
		return ""
	}
	if isEditable(n) {
		return textContent(n)
	}
	return ""
}

func setValue(n *html.Node, v string) {
	if n.Data == "input" {
		setAttr(n, "value", v)
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	if v != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: v})
	}
}

func goqueryFind(n *html.Node, css string) []*html.Node {
	return goquery.NewDocumentFromNode(n).Find(css).Nodes
}

func optionNodes(sel *html.Node) []*html.Node {
	return goqueryFind(sel, "option")
}

func optionLabel(o *html.Node) string {
	if l, ok := lookupAttr(o, "label"); ok && l != "" {
		return l
	}
	return dom.NormalizeSpace(textContent(o))
}

func closestTag(n *html.Node, tag string) *html.Node {
	for m := n; m != nil && m.Type == html.ElementNode; m = m.Parent {
		if m.Data == tag {
			return m
		}
	}
	return nil
}

func styleProps(style string) map[string]string {
	out := make(map[string]string)
	for _, decl := range strings.Split(style, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		v = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "!important"))
		out[strings.ToLower(strings.TrimSpace(k))] = strings.ToLower(v)
	}
	return out
}

func describeNode(n *html.Node) string {
	var b strings.Builder
	b.WriteString(n.Data)
	if id := attr(n, "id"); id != "" {
		b.WriteString("#" + id)
	}
	classes := strings.Fields(attr(n, "class"))
	if len(classes) > 2 {
		classes = classes[:2]
	}
	for _, c := range classes {
		b.WriteString("." + c)
	}
	text := dom.NormalizeSpace(textContent(n))
	if text == "" {
		text = attr(n, "aria-label")
	}
	if len(text) > 30 {
		text = text[:30] + "…"
	}
	if text != "" {
		fmt.Fprintf(&b, " %q", text)
	}
	return b.String()
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func attr(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

func hasAttr(n *html.Node, key string) bool {
	_, ok := lookupAttr(n, key)
	return ok
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			out = append(out, a)
		}
	}
	n.Attr = out
}

func blankPNG() ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, 320, 200))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
