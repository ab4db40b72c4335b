package browser

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/v0xg/uistep/internal/dom"
)

const (
	attributesJS = `function () {
		const o = {};
		for (const a of this.attributes) o[a.name] = a.value;
		return o;
	}`
	valueJS   = `function () { return this.value === undefined || this.value === null ? '' : String(this.value); }`
	checkedJS = `function () {
		if (this.tagName === 'INPUT' && /^(checkbox|radio)$/i.test(this.type)) return this.checked;
		return null;
	}`
	optionsJS = `function () {
		if (this.tagName !== 'SELECT') return null;
		return Array.from(this.options).map(o => {
			const data = {};
			for (const a of o.attributes) if (a.name.startsWith('data-')) data[a.name] = a.value;
			return {value: o.value, label: o.label || o.textContent.trim(), selected: o.selected, disabled: o.disabled, data};
		});
	}`
	selectIndexJS = `function (i) {
		if (this.tagName !== 'SELECT') return false;
		this.selectedIndex = i;
		this.dispatchEvent(new Event('input', {bubbles: true}));
		this.dispatchEvent(new Event('change', {bubbles: true}));
		return true;
	}`
	clearJS = `function () {
		if ('value' in this) this.value = '';
		else if (this.isContentEditable) this.textContent = '';
		this.dispatchEvent(new Event('input', {bubbles: true}));
	}`
	forceVisibleJS = `function () {
		const show = el => {
			el.style.opacity = '1';
			el.style.visibility = 'visible';
			el.style.display = 'inline-block';
			el.removeAttribute('hidden');
		};
		show(this);
		if (this.parentElement) show(this.parentElement);
		const bar = this.closest('.action-buttons');
		if (bar) show(bar);
	}`
	submitJS = `function () {
		const form = this.tagName === 'FORM' ? this : (this.form || this.closest('form'));
		if (!form) return false;
		if (form.requestSubmit) form.requestSubmit(); else form.submit();
		return true;
	}`
	closestJS = `function (css) { const c = this.closest(css); return c ? [c] : []; }`
	parentJS  = `function () { return this.parentElement ? [this.parentElement] : []; }`
)

// Element is a rod element implementing dom.Element.
type Element struct {
	el   *rod.Element
	page *Page
}

var _ dom.Element = (*Element)(nil)

func (e *Element) on(ctx context.Context) *rod.Element { return e.el.Context(ctx) }

func (e *Element) eval(ctx context.Context, op, js string, args ...interface{}) (*proto.RuntimeRemoteObject, error) {
	res, err := e.on(ctx).Eval(js, args...)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return res, nil
}

func (e *Element) Query(ctx context.Context, css string) ([]dom.Element, error) {
	els, err := e.on(ctx).Elements(css)
	if err != nil {
		return nil, wrapErr("query "+css, err)
	}
	return e.page.wrapAll(els), nil
}

func (e *Element) QueryText(ctx context.Context, needle string) ([]dom.Element, error) {
	els, err := e.on(ctx).ElementsByJS(rod.Eval(queryTextJS, strings.ToLower(dom.NormalizeSpace(needle))))
	if err != nil {
		return nil, wrapErr("query text", err)
	}
	return e.page.wrapAll(els), nil
}

// Key returns the backend node id.
func (e *Element) Key(ctx context.Context) (string, error) {
	node, err := e.on(ctx).Describe(0, false)
	if err != nil {
		return "", wrapErr("describe", err)
	}
	return strconv.Itoa(int(node.BackendNodeID)), nil
}

func (e *Element) TagName(ctx context.Context) (string, error) {
	res, err := e.eval(ctx, "tag name", `function () { return this.tagName.toLowerCase(); }`)
	if err != nil {
		return "", err
	}
	return res.Value.String(), nil
}

func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, err := e.on(ctx).Attribute(name)
	if err != nil {
		return "", false, wrapErr("attribute "+name, err)
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *Element) Attributes(ctx context.Context) (map[string]string, error) {
	res, err := e.eval(ctx, "attributes", attributesJS)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for k, v := range res.Value.Map() {
		out[k] = v.String()
	}
	return out, nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	res, err := e.eval(ctx, "text", `function () { return this.textContent || ''; }`)
	if err != nil {
		return "", err
	}
	return res.Value.String(), nil
}

func (e *Element) Value(ctx context.Context) (string, error) {
	res, err := e.eval(ctx, "value", valueJS)
	if err != nil {
		return "", err
	}
	return res.Value.String(), nil
}

func (e *Element) Visible(ctx context.Context) (bool, error) {
	ok, err := e.on(ctx).Visible()
	if err != nil {
		return false, wrapErr("visible", err)
	}
	return ok, nil
}

func (e *Element) first(ctx context.Context, op, js string, args ...interface{}) (dom.Element, error) {
	els, err := e.on(ctx).ElementsByJS(rod.Eval(js, args...))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	if len(els) == 0 {
		return nil, nil
	}
	return &Element{el: els[0], page: e.page}, nil
}

func (e *Element) Parent(ctx context.Context) (dom.Element, error) {
	return e.first(ctx, "parent", parentJS)
}

func (e *Element) Closest(ctx context.Context, css string) (dom.Element, error) {
	return e.first(ctx, "closest "+css, closestJS, css)
}

func (e *Element) BoundingBox(ctx context.Context) (dom.Box, error) {
	shape, err := e.on(ctx).Shape()
	if err != nil {
		return dom.Box{}, wrapErr("shape", err)
	}
	box := shape.Box()
	if box == nil {
		return dom.Box{}, fmt.Errorf("element %s has no shape", e)
	}
	return dom.Box{X: box.X, Y: box.Y, Width: box.Width, Height: box.Height}, nil
}

// Click clicks through rod, which scrolls and waits for the element to be
// interactable. A forced click sends the mouse event to the element's
// center directly.
func (e *Element) Click(ctx context.Context, opts dom.ClickOptions) error {
	if !opts.Force {
		return wrapErr("click", e.on(ctx).Click(proto.InputMouseButtonLeft, 1))
	}
	box, err := e.BoundingBox(ctx)
	if err != nil {
		return err
	}
	x, y := box.Center()
	return e.page.ClickAt(ctx, x, y)
}

func (e *Element) DispatchClick(ctx context.Context) error {
	_, err := e.eval(ctx, "dispatch click", `function () { this.click(); }`)
	return err
}

func (e *Element) Hover(ctx context.Context) error {
	return wrapErr("hover", e.on(ctx).Hover())
}

func (e *Element) ScrollIntoView(ctx context.Context) error {
	return wrapErr("scroll into view", e.on(ctx).ScrollIntoView())
}

func (e *Element) Focus(ctx context.Context) error {
	return wrapErr("focus", e.on(ctx).Focus())
}

// Fill replaces the element's value.
func (e *Element) Fill(ctx context.Context, text string) error {
	if err := e.Focus(ctx); err != nil {
		return err
	}
	if _, err := e.eval(ctx, "clear", clearJS); err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	return wrapErr("fill", e.on(ctx).Input(text))
}

func (e *Element) Type(ctx context.Context, text string, delay time.Duration) error {
	if err := e.Focus(ctx); err != nil {
		return err
	}
	return e.page.typeText(ctx, text, delay)
}

func (e *Element) Press(ctx context.Context, key string) error {
	chord, err := ParseChord(key)
	if err != nil {
		return err
	}
	if err := e.Focus(ctx); err != nil {
		return err
	}
	return e.page.press(ctx, chord)
}

func (e *Element) Checked(ctx context.Context) (bool, error) {
	res, err := e.eval(ctx, "checked", checkedJS)
	if err != nil {
		return false, err
	}
	if res.Value.Nil() {
		return false, dom.ErrUnsupported
	}
	return res.Value.Bool(), nil
}

func (e *Element) SetChecked(ctx context.Context, checked bool) error {
	cur, err := e.Checked(ctx)
	if err != nil {
		return err
	}
	if cur == checked {
		return nil
	}
	if err := e.Click(ctx, dom.ClickOptions{}); err != nil {
		return err
	}
	if now, err := e.Checked(ctx); err == nil && now != checked {
		return fmt.Errorf("set checked on %s: state did not change", e)
	}
	return nil
}

func (e *Element) Options(ctx context.Context) ([]dom.Option, error) {
	res, err := e.eval(ctx, "options", optionsJS)
	if err != nil {
		return nil, err
	}
	if res.Value.Nil() {
		return nil, dom.ErrUnsupported
	}
	var out []dom.Option
	for _, v := range res.Value.Arr() {
		opt := dom.Option{
			Value:    v.Get("value").String(),
			Label:    v.Get("label").String(),
			Selected: v.Get("selected").Bool(),
			Disabled: v.Get("disabled").Bool(),
		}
		for k, d := range v.Get("data").Map() {
			if opt.Data == nil {
				opt.Data = make(map[string]string)
			}
			opt.Data[k] = d.String()
		}
		out = append(out, opt)
	}
	return out, nil
}

func (e *Element) SelectIndex(ctx context.Context, index int) error {
	res, err := e.eval(ctx, "select option", selectIndexJS, index)
	if err != nil {
		return err
	}
	if !res.Value.Bool() {
		return dom.ErrUnsupported
	}
	return nil
}

func (e *Element) ForceVisible(ctx context.Context) error {
	_, err := e.eval(ctx, "force visible", forceVisibleJS)
	return err
}

func (e *Element) Submit(ctx context.Context) error {
	res, err := e.eval(ctx, "submit", submitJS)
	if err != nil {
		return err
	}
	if !res.Value.Bool() {
		return fmt.Errorf("submit %s: no enclosing form", e)
	}
	return nil
}

func (e *Element) Hide(ctx context.Context) error {
	_, err := e.eval(ctx, "hide", `function () { this.style.display = 'none'; }`)
	return err
}

func (e *Element) String() string {
	return e.el.String()
}
