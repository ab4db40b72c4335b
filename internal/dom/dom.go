// Package dom defines the engine-neutral view of a live page that the
// resolver and the action commands work against. The rod backend drives a
// real browser; the htmlpage backend simulates one over static markup.
package dom

import (
	"context"
	"fmt"
	"time"
)

// Box is an element's bounding box in CSS pixels.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the box midpoint.
func (b Box) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Option is one entry of a native <select>.
type Option struct {
	Value    string            `json:"value"`
	Label    string            `json:"label"`
	Selected bool              `json:"selected"`
	Disabled bool              `json:"disabled"`
	Data     map[string]string `json:"data,omitempty"`
}

// ClickOptions tune a pointer click.
type ClickOptions struct {
	// Force skips actionability checks (visibility, hit target).
	Force bool
}

// Scope is anything elements can be searched under: a page or an element.
type Scope interface {
	// Query returns elements matching a CSS selector in document order.
	// Element scopes never return themselves.
	Query(ctx context.Context, css string) ([]Element, error)
	// QueryText returns elements whose text content contains needle,
	// compared case-insensitively. It is a prefilter: callers refine.
	QueryText(ctx context.Context, needle string) ([]Element, error)
}

// Element is a handle to one DOM node.
type Element interface {
	Scope

	// Key identifies the underlying node; two handles to the same node
	// return the same key.
	Key(ctx context.Context) (string, error)
	TagName(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, bool, error)
	Attributes(ctx context.Context) (map[string]string, error)
	Text(ctx context.Context) (string, error)
	Value(ctx context.Context) (string, error)
	Visible(ctx context.Context) (bool, error)
	Parent(ctx context.Context) (Element, error)
	// Closest returns the nearest ancestor-or-self matching css, or nil.
	Closest(ctx context.Context, css string) (Element, error)
	BoundingBox(ctx context.Context) (Box, error)

	Click(ctx context.Context, opts ClickOptions) error
	// DispatchClick fires a synthetic click event from script.
	DispatchClick(ctx context.Context) error
	Hover(ctx context.Context) error
	ScrollIntoView(ctx context.Context) error
	Focus(ctx context.Context) error
	Fill(ctx context.Context, text string) error
	Type(ctx context.Context, text string, delay time.Duration) error
	Press(ctx context.Context, key string) error

	// Checked reports the native checked state. ErrUnsupported for
	// elements without one.
	Checked(ctx context.Context) (bool, error)
	SetChecked(ctx context.Context, checked bool) error

	Options(ctx context.Context) ([]Option, error)
	SelectIndex(ctx context.Context, index int) error

	// ForceVisible overrides inline styles so hover-only controls become
	// interactable.
	ForceVisible(ctx context.Context) error
	// Submit submits the element's form, or the element if it is a form.
	Submit(ctx context.Context) error
	// Hide sets display:none on the element.
	Hide(ctx context.Context) error

	fmt.Stringer
}

// Page is a live document plus page-level input.
type Page interface {
	Scope

	URL(ctx context.Context) (string, error)
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	WaitLoad(ctx context.Context) error
	WaitDOMContentLoaded(ctx context.Context) error
	// Press dispatches a key (or a "Control+A" style chord) to the
	// focused element.
	Press(ctx context.Context, key string) error
	ClickAt(ctx context.Context, x, y float64) error
}

// Screenshotter is implemented by pages that can render themselves.
type Screenshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}
