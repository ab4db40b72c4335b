// Package browser drives Chrome through go-rod and exposes its pages as
// dom.Page values.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// Options configures the browser.
type Options struct {
	// Bin is the Chrome binary; empty looks one up or downloads it.
	Bin      string
	Headless bool
	// ProfileDir is a Chrome user data directory for authenticated sessions.
	ProfileDir string
	Width      int
	Height     int
	// LoadTimeout bounds the initial navigation of NewPage.
	LoadTimeout time.Duration
	Logger      *zap.Logger
}

// DefaultOptions returns a headless 1280x720 browser.
func DefaultOptions() Options {
	return Options{Headless: true, Width: 1280, Height: 720, LoadTimeout: 30 * time.Second}
}

// Browser wraps a launched Chrome and its launcher.
type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	opts     Options
	log      *zap.Logger
}

// Launch starts Chrome and connects to it.
func Launch(ctx context.Context, opts Options) (*Browser, error) {
	def := DefaultOptions()
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = def.Width, def.Height
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = def.LoadTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	log := opts.Logger.Named("browser")

	bin := opts.Bin
	if bin == "" {
		if path, ok := launcher.LookPath(); ok {
			bin = path
		}
	}
	l := launcher.New().Context(ctx).Headless(opts.Headless)
	if bin != "" {
		l = l.Bin(bin)
	}
	if opts.ProfileDir != "" {
		l = l.UserDataDir(opts.ProfileDir)
	}
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	log.Debug("browser launched", zap.String("bin", bin), zap.Bool("headless", opts.Headless))
	return &Browser{browser: b, launcher: l, opts: opts, log: log}, nil
}

// NewPage opens a tab, sizes its viewport and loads url. An empty url
// leaves the tab blank.
func (b *Browser) NewPage(ctx context.Context, url string) (*Page, error) {
	p, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	err = p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             b.opts.Width,
		Height:            b.opts.Height,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("set viewport: %w", err)
	}
	page := &Page{page: p, log: b.log}
	if url == "" {
		return page, nil
	}
	lctx, cancel := context.WithTimeout(ctx, b.opts.LoadTimeout)
	defer cancel()
	if err := page.Navigate(lctx, url); err != nil {
		_ = p.Close()
		return nil, err
	}
	if err := page.WaitLoad(lctx); err != nil {
		b.log.Warn("page load incomplete", zap.String("url", url), zap.Error(err))
	}
	return page, nil
}

// Close shuts the browser down and cleans up the launcher's temporary
// profile.
func (b *Browser) Close() error {
	err := b.browser.Close()
	b.launcher.Kill()
	if b.opts.ProfileDir == "" {
		b.launcher.Cleanup()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}
