package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/v0xg/uistep/internal/dom"
	"github.com/v0xg/uistep/internal/htmlpage"
	"github.com/v0xg/uistep/internal/locator"
)

type resolveOutput struct {
	Stage           locator.Stage   `json:"stage,omitempty"`
	UsedSelector    string          `json:"used_selector,omitempty"`
	ResolvedLocator string          `json:"resolved_locator,omitempty"`
	Element         *elementSummary `json:"element,omitempty"`
	Failed          []stageOutput   `json:"failed_stages,omitempty"`
}

type stageOutput struct {
	Stage    locator.Stage `json:"stage"`
	Selector string        `json:"selector"`
	Error    string        `json:"error"`
}

type elementSummary struct {
	Tag        string            `json:"tag"`
	Text       string            `json:"text,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func newResolveCmd(a *app) *cobra.Command {
	var fallback, description string
	cmd := &cobra.Command{
		Use:   "resolve <file.html> <expr>",
		Short: "Resolve a locator against a static HTML document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := htmlpage.Open(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			res, err := a.controller().Resolver().ResolveWithFallback(ctx, page, locator.Request{
				Primary:  args[1],
				Fallback: fallback,
				Hints:    locator.Hints(description, a.cfg.Engine.HintWords),
			})
			var chain *locator.ChainError
			if errors.As(err, &chain) {
				_ = writeJSON(cmd.OutOrStdout(), resolveOutput{Failed: stages(chain.Attempts)})
				return err
			}
			if err != nil {
				return err
			}
			el, err := res.Reference.Element(ctx)
			if err != nil {
				return err
			}
			sum, err := summarize(ctx, el)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resolveOutput{
				Stage:           res.Stage,
				UsedSelector:    res.Reference.UsedSelector(),
				ResolvedLocator: res.Reference.String(),
				Element:         sum,
				Failed:          stages(res.Attempts),
			})
		},
	}
	cmd.Flags().StringVar(&fallback, "fallback", "", "Fallback expression")
	cmd.Flags().StringVar(&description, "description", "", "Step description used for disambiguation hints")
	return cmd
}

func stages(attempts []locator.Attempt) []stageOutput {
	out := make([]stageOutput, 0, len(attempts))
	for _, at := range attempts {
		out = append(out, stageOutput{Stage: at.Stage, Selector: at.Selector, Error: at.Err.Error()})
	}
	return out
}

func summarize(ctx context.Context, el dom.Element) (*elementSummary, error) {
	tag, err := el.TagName(ctx)
	if err != nil {
		return nil, err
	}
	attrs, err := el.Attributes(ctx)
	if err != nil {
		return nil, err
	}
	text, err := el.Text(ctx)
	if err != nil {
		return nil, err
	}
	return &elementSummary{Tag: tag, Text: dom.NormalizeSpace(text), Attributes: attrs}, nil
}
