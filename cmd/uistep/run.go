package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/v0xg/uistep/internal/browser"
	"github.com/v0xg/uistep/internal/recording"
	"github.com/v0xg/uistep/internal/scenario"
	"github.com/v0xg/uistep/internal/suggest"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario, asking a language model for missing or failed selectors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := scenario.Load(args[0])
			if err != nil {
				return err
			}
			return a.runScenario(cmd, sc)
		},
	}
	f := cmd.Flags()
	f.StringP("record", "o", "", "Write a GIF of the run to this file")
	f.Int("max-attempts", 3, "Attempts per step")
	f.Bool("no-suggest", false, "Never ask the language model")
	f.String("provider", "", "AI provider: claude, openai (default from config)")
	f.String("model", "", "Specific model override")
	a.bind(cmd, "run.record", "record")
	a.bind(cmd, "run.max_attempts", "max-attempts")
	a.bind(cmd, "run.no_suggestions", "no-suggest")
	a.bind(cmd, "llm.provider", "provider")
	a.bind(cmd, "llm.model", "model")
	addBrowserFlags(a, cmd)
	return cmd
}

func (a *app) runScenario(cmd *cobra.Command, sc *scenario.Scenario) error {
	ctx := cmd.Context()
	stderr := cmd.ErrOrStderr()
	opts := scenario.Options{MaxAttempts: a.cfg.Run.MaxAttempts, Logger: a.log}

	if !a.cfg.Run.NoSuggestions {
		llm, err := suggest.NewCompleter(a.cfg.ProviderOptions())
		if err != nil {
			a.log.Warn("running without selector suggestions", zap.Error(err))
		} else {
			opts.Planner = suggest.New(llm, a.cfg.SuggestOptions(a.log))
		}
	}
	if a.cfg.Run.Record != "" {
		opts.Recorder = recording.NewRecorder(a.cfg.Run.FrameHold, a.log)
	}

	b, err := browser.Launch(ctx, a.cfg.BrowserOptions(a.log))
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			a.log.Warn("browser close failed", zap.Error(err))
		}
	}()
	page, err := b.NewPage(ctx, "")
	if err != nil {
		return err
	}

	fmt.Fprintf(stderr, "→ Running %s (%d steps)...\n", sc.Name, len(sc.Steps))
	rep, err := scenario.NewRunner(a.controller(), opts).Run(ctx, page, sc)
	if rep != nil {
		if werr := writeJSON(cmd.OutOrStdout(), rep); werr != nil {
			return werr
		}
	}
	if err != nil {
		return err
	}

	if opts.Recorder != nil && opts.Recorder.Len() > 0 {
		fmt.Fprintf(stderr, "→ Generating GIF (%d frames)... ", opts.Recorder.Len())
		size, err := recording.WriteGIF(a.cfg.Run.Record, opts.Recorder.Frames(), a.cfg.GIFOptions())
		if err != nil {
			fmt.Fprintln(stderr, "failed")
			return fmt.Errorf("GIF generation failed: %w", err)
		}
		fmt.Fprintln(stderr, "done")
		fmt.Fprintf(stderr, "✓ Saved to %s (%.1f MB)\n", a.cfg.Run.Record, float64(size)/(1024*1024))
	}

	if !rep.Passed {
		return fmt.Errorf("scenario failed: %d step(s) did not pass", len(rep.Failed()))
	}
	fmt.Fprintf(stderr, "✓ %d steps passed in %s\n", len(rep.Steps), rep.Elapsed.Round(time.Millisecond))
	return nil
}
