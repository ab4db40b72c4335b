// Package htmlpage is a dom.Page over static markup. It parses HTML with
// x/net/html, answers CSS queries through goquery and simulates the
// default behavior of the interactions the engine performs: clicks toggle
// checkboxes, follow links and submit forms; Enter submits the focused
// field's form; hidden elements refuse pointer input. Page scripts are not
// run; tests register Go handlers instead.
//
// A Page is not safe for concurrent use.
package htmlpage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/v0xg/uistep/internal/dom"
)

// ErrNoRoute is returned when navigating to a URL the page has no markup for.
var ErrNoRoute = errors.New("no markup registered for url")

// rowHeight is the height of each element in the synthetic layout used for
// bounding boxes and coordinate clicks.
const rowHeight = 24

// Handler reacts to an event on an element matching its selector.
type Handler func(ctx context.Context, el *Element) error

// KeyHandler reacts to a key pressed while focus is anywhere on the page.
type KeyHandler func(ctx context.Context, p *Page) error

// Event records one observable side effect.
type Event struct {
	Kind   string
	Target string
	Value  string
}

type handler struct {
	kind string
	css  string
	sel  cascadia.Selector
	fn   Handler
}

// Page is a simulated browser tab.
type Page struct {
	doc    *goquery.Document
	url    string
	markup string
	routes map[string]string

	handlers    []handler
	keyHandlers map[string][]KeyHandler

	focused   *html.Node
	selectAll bool
	events    []Event
}

// Option configures a Page.
type Option func(*Page)

// WithURL sets the page's initial URL.
func WithURL(u string) Option {
	return func(p *Page) { p.url = u }
}

// WithRoutes registers markup served for navigations to each URL.
func WithRoutes(routes map[string]string) Option {
	return func(p *Page) {
		for u, m := range routes {
			p.routes[u] = m
		}
	}
}

// New parses markup into a page.
func New(markup string, opts ...Option) (*Page, error) {
	p := &Page{
		url:         "about:blank",
		routes:      make(map[string]string),
		keyHandlers: make(map[string][]KeyHandler),
	}
	for _, o := range opts {
		o(p)
	}
	if err := p.load(markup); err != nil {
		return nil, err
	}
	return p, nil
}

// Open reads an HTML file into a page whose URL is the file's URL.
func Open(path string) (*Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return New(string(data), WithURL("file://"+path))
}

func (p *Page) load(markup string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return fmt.Errorf("parse html: %w", err)
	}
	p.doc = doc
	p.markup = markup
	p.focused = nil
	p.selectAll = false
	return nil
}

// OnClick runs fn after the default action of clicks on elements matching
// css (or their descendants).
func (p *Page) OnClick(css string, fn Handler) error {
	return p.on("click", css, fn)
}

// OnHover runs fn when an element matching css is hovered.
func (p *Page) OnHover(css string, fn Handler) error {
	return p.on("hover", css, fn)
}

// OnKey runs fn when key is pressed.
func (p *Page) OnKey(key string, fn KeyHandler) {
	key = strings.ToLower(key)
	p.keyHandlers[key] = append(p.keyHandlers[key], fn)
}

func (p *Page) on(kind, css string, fn Handler) error {
	sel, err := cascadia.Compile(css)
	if err != nil {
		return fmt.Errorf("compile %q: %w", css, err)
	}
	p.handlers = append(p.handlers, handler{kind: kind, css: css, sel: sel, fn: fn})
	return nil
}

// Events returns the side effects recorded so far.
func (p *Page) Events() []Event {
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// EventsOf returns the recorded events of one kind.
func (p *Page) EventsOf(kind string) []Event {
	var out []Event
	for _, e := range p.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (p *Page) record(kind string, n *html.Node, value string) {
	target := ""
	if n != nil {
		target = describeNode(n)
	}
	p.events = append(p.events, Event{Kind: kind, Target: target, Value: value})
}

// Find returns the first element matching css, or nil.
func (p *Page) Find(css string) *Element {
	nodes := p.doc.Find(css).Nodes
	if len(nodes) == 0 {
		return nil
	}
	return p.wrap(nodes[0])
}

// HTML renders the current document.
func (p *Page) HTML() (string, error) {
	return goquery.OuterHtml(p.doc.Selection)
}

func (p *Page) wrap(n *html.Node) *Element {
	return &Element{page: p, node: n}
}

// Query implements dom.Scope.
func (p *Page) Query(ctx context.Context, css string) ([]dom.Element, error) {
	return p.query(ctx, p.doc.Selection, css)
}

// QueryText implements dom.Scope.
func (p *Page) QueryText(ctx context.Context, needle string) ([]dom.Element, error) {
	return p.queryText(ctx, p.doc.Selection, needle)
}

func (p *Page) query(ctx context.Context, scope *goquery.Selection, css string) ([]dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := cascadia.Compile(css); err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", css, err)
	}
	nodes := scope.Find(css).Nodes
	out := make([]dom.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, p.wrap(n))
	}
	return out, nil
}

func (p *Page) queryText(ctx context.Context, scope *goquery.Selection, needle string) ([]dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	needle = strings.ToLower(dom.NormalizeSpace(needle))
	var out []dom.Element
	for _, n := range scope.Find("*").Nodes {
		if hiddenTags[n.Data] {
			continue
		}
		text := textContent(n)
		if isValueButton(n) {
			text = attr(n, "value")
		}
		if strings.Contains(strings.ToLower(dom.NormalizeSpace(text)), needle) {
			out = append(out, p.wrap(n))
		}
	}
	return out, nil
}

// URL implements dom.Page.
func (p *Page) URL(context.Context) (string, error) {
	return p.url, nil
}

// Navigate loads the markup registered for u.
func (p *Page) Navigate(ctx context.Context, u string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.navigate(u, true)
}

func (p *Page) navigate(u string, strict bool) error {
	target := p.resolveURL(u)
	p.record("navigate", nil, target)
	markup, ok := p.routes[target]
	if !ok {
		if strict {
			return fmt.Errorf("navigate %s: %w", target, ErrNoRoute)
		}
		p.url = target
		return nil
	}
	p.url = target
	return p.load(markup)
}

func (p *Page) resolveURL(u string) string {
	return dom.ResolveURL(p.url, u)
}

// Reload re-parses the current document's original markup.
func (p *Page) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.record("reload", nil, p.url)
	markup := p.markup
	if m, ok := p.routes[p.url]; ok {
		markup = m
	}
	return p.load(markup)
}

// WaitLoad implements dom.Page; static documents are always loaded.
func (p *Page) WaitLoad(ctx context.Context) error {
	p.record("wait-load", nil, "")
	return ctx.Err()
}

// WaitDOMContentLoaded implements dom.Page.
func (p *Page) WaitDOMContentLoaded(ctx context.Context) error {
	p.record("wait-domcontentloaded", nil, "")
	return ctx.Err()
}

// Press dispatches key to the focused element.
func (p *Page) Press(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.press(ctx, key)
}

// ClickAt clicks the element occupying the synthetic row at y.
func (p *Page) ClickAt(ctx context.Context, x, y float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	idx := int(y / rowHeight)
	nodes := p.doc.Find("*").Nodes
	if y < 0 || idx >= len(nodes) {
		return fmt.Errorf("no element at (%.0f, %.0f)", x, y)
	}
	n := nodes[idx]
	p.record("click-at", n, fmt.Sprintf("%.0f,%.0f", x, y))
	return p.activate(ctx, n)
}

// Screenshot renders nothing; static pages produce a blank frame.
func (p *Page) Screenshot(context.Context) ([]byte, error) {
	return blankPNG()
}

func (p *Page) layoutIndex(n *html.Node) int {
	for i, m := range p.doc.Find("*").Nodes {
		if m == n {
			return i
		}
	}
	return -1
}

var (
	_ dom.Page          = (*Page)(nil)
	_ dom.Screenshotter = (*Page)(nil)
)
