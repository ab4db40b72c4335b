package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/v0xg/uistep/internal/dom"
)

// queryTextJS returns the elements under this (or the document) whose
// text, or value for input buttons, contains needle case-insensitively.
const queryTextJS = `function (needle) {
	const root = (this && this.nodeType === 1) ? this : document;
	const out = [];
	for (const el of root.querySelectorAll('*')) {
		const tag = el.tagName;
		if (tag === 'SCRIPT' || tag === 'STYLE' || tag === 'HEAD' || tag === 'TEMPLATE') continue;
		let text = el.textContent || '';
		if (tag === 'INPUT' && /^(submit|button|reset)$/i.test(el.type)) text = el.value || '';
		if (text.replace(/\s+/g, ' ').toLowerCase().includes(needle)) out.push(el);
	}
	return out;
}`

// Page is a rod page implementing dom.Page and dom.Screenshotter. A Page
// must not be used from two goroutines at once.
type Page struct {
	page *rod.Page
	log  *zap.Logger
}

var (
	_ dom.Page          = (*Page)(nil)
	_ dom.Screenshotter = (*Page)(nil)
)

// Wrap adapts an existing rod page.
func Wrap(p *rod.Page, log *zap.Logger) *Page {
	if log == nil {
		log = zap.NewNop()
	}
	return &Page{page: p, log: log}
}

// Rod returns the underlying rod page.
func (p *Page) Rod() *rod.Page { return p.page }

// Close closes the tab.
func (p *Page) Close() error { return p.page.Close() }

func (p *Page) wrapAll(els rod.Elements) []dom.Element {
	out := make([]dom.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &Element{el: el, page: p})
	}
	return out
}

// Query implements dom.Scope.
func (p *Page) Query(ctx context.Context, css string) ([]dom.Element, error) {
	els, err := p.page.Context(ctx).Elements(css)
	if err != nil {
		return nil, wrapErr("query "+css, err)
	}
	return p.wrapAll(els), nil
}

// QueryText implements dom.Scope.
func (p *Page) QueryText(ctx context.Context, needle string) ([]dom.Element, error) {
	els, err := p.page.Context(ctx).ElementsByJS(rod.Eval(queryTextJS, strings.ToLower(dom.NormalizeSpace(needle))))
	if err != nil {
		return nil, wrapErr("query text", err)
	}
	return p.wrapAll(els), nil
}

// URL implements dom.Page.
func (p *Page) URL(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", wrapErr("page url", err)
	}
	return info.URL, nil
}

// Navigate implements dom.Page. Relative and bare "www." URLs are resolved
// against the current page.
func (p *Page) Navigate(ctx context.Context, url string) error {
	if cur, err := p.URL(ctx); err == nil {
		url = dom.ResolveURL(cur, url)
	} else {
		url = dom.ResolveURL("", url)
	}
	p.log.Debug("navigate", zap.String("url", url))
	if err := p.page.Context(ctx).Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// Reload implements dom.Page.
func (p *Page) Reload(ctx context.Context) error {
	if err := p.page.Context(ctx).Reload(); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return nil
}

// WaitLoad implements dom.Page.
func (p *Page) WaitLoad(ctx context.Context) error {
	if err := p.page.Context(ctx).WaitLoad(); err != nil {
		return wrapErr("wait load", err)
	}
	return nil
}

// WaitDOMContentLoaded implements dom.Page.
func (p *Page) WaitDOMContentLoaded(ctx context.Context) error {
	err := p.page.Context(ctx).Wait(rod.Eval(`() => document.readyState !== 'loading'`))
	if err != nil {
		return wrapErr("wait domcontentloaded", err)
	}
	return nil
}

// Press implements dom.Page.
func (p *Page) Press(ctx context.Context, key string) error {
	chord, err := ParseChord(key)
	if err != nil {
		return err
	}
	return p.press(ctx, chord)
}

func (p *Page) press(ctx context.Context, c Chord) error {
	page := p.page.Context(ctx)
	var err error
	if len(c.Modifiers) == 0 {
		err = page.Keyboard.Type(c.Key)
	} else {
		err = page.KeyActions().Press(c.Modifiers...).Type(c.Key).Do()
	}
	if err != nil {
		return wrapErr("press key", err)
	}
	return nil
}

// typeText types text one key event per rune, pausing delay between runes.
func (p *Page) typeText(ctx context.Context, text string, delay time.Duration) error {
	page := p.page.Context(ctx)
	for _, r := range text {
		if err := dom.Sleep(ctx, delay); err != nil {
			return err
		}
		var err error
		if k, ok := runeKey(r); ok {
			err = page.Keyboard.Type(k)
		} else {
			err = page.InsertText(string(r))
		}
		if err != nil {
			return wrapErr("type", err)
		}
	}
	return nil
}

// ClickAt implements dom.Page.
func (p *Page) ClickAt(ctx context.Context, x, y float64) error {
	page := p.page.Context(ctx)
	if err := page.Mouse.MoveTo(proto.Point{X: x, Y: y}); err != nil {
		return wrapErr("mouse move", err)
	}
	if err := page.Mouse.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return wrapErr("mouse click", err)
	}
	return nil
}

// MoveMouse moves the pointer without clicking.
func (p *Page) MoveMouse(ctx context.Context, x, y float64) error {
	return wrapErr("mouse move", p.page.Context(ctx).Mouse.MoveTo(proto.Point{X: x, Y: y}))
}

// Screenshot implements dom.Screenshotter with a PNG of the viewport.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	data, err := p.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return data, nil
}

// wrapErr tags detachment errors with dom.ErrDetached. A nil err stays nil.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if dom.IsDetached(err) {
		return fmt.Errorf("%s: %w: %v", op, dom.ErrDetached, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
