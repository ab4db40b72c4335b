package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/v0xg/uistep/internal/action"
	"github.com/v0xg/uistep/internal/browser"
	"github.com/v0xg/uistep/internal/controller"
)

func newDoCmd(a *app) *cobra.Command {
	var kind, sel, fallback, description string
	cmd := &cobra.Command{
		Use:   "do <url>",
		Short: "Perform one step against a live page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := action.ParseKind(kind)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			b, err := browser.Launch(ctx, a.cfg.BrowserOptions(a.log))
			if err != nil {
				return err
			}
			defer func() {
				if err := b.Close(); err != nil {
					a.log.Warn("browser close failed", zap.Error(err))
				}
			}()
			page, err := b.NewPage(ctx, args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}

			res := a.controller().Perform(ctx, page, controller.Step{
				Kind:        k,
				Selector:    sel,
				Fallback:    fallback,
				Description: description,
			}, controller.History{})
			if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Success {
				return errStepFailed
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&kind, "action", "", "Action kind, e.g. click, fill, select, press_key")
	f.StringVar(&sel, "selector", "", "Primary locator expression")
	f.StringVar(&fallback, "fallback", "", "Fallback locator expression")
	f.StringVar(&description, "description", "", "Step description")
	addBrowserFlags(a, cmd)
	_ = cmd.MarkFlagRequired("action")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func addBrowserFlags(a *app, cmd *cobra.Command) {
	f := cmd.Flags()
	f.Bool("headless", true, "Run Chrome without a window")
	f.Int("width", 1280, "Viewport width")
	f.Int("height", 720, "Viewport height")
	f.String("profile", "", "Chrome/Chromium profile directory for authenticated sessions (close browser first)")
	a.bind(cmd, "browser.headless", "headless")
	a.bind(cmd, "browser.width", "width")
	a.bind(cmd, "browser.height", "height")
	a.bind(cmd, "browser.profile_dir", "profile")
}
