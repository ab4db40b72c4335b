package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/v0xg/uistep/internal/selector"
)

func newParseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <expr>",
		Short: "Print the syntax tree and canonical form of a locator expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := selector.Parse(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"canonical": n.String(),
				"ast":       describeNode(n),
			})
		},
	}
}

// describeNode renders n as tagged maps so that node and modifier kinds
// survive JSON encoding.
func describeNode(n selector.Node) map[string]any {
	if n == nil {
		return nil
	}
	out := map[string]any{}
	switch n := n.(type) {
	case *selector.RoleNode:
		out["type"] = "role"
		out["role"] = n.Role
		if n.Name != nil {
			out["name"] = describePattern(*n.Name)
		}
		for key, v := range map[string]*bool{
			"checked": n.Checked, "disabled": n.Disabled, "expanded": n.Expanded,
			"pressed": n.Pressed, "selected": n.Selected,
		} {
			if v != nil {
				out[key] = *v
			}
		}
		if n.Level > 0 {
			out["level"] = n.Level
		}
		if n.IncludeHidden {
			out["includeHidden"] = true
		}
		for key, v := range map[string]string{"id": n.ID, "ariaControls": n.AriaControls, "class": n.Class} {
			if v != "" {
				out[key] = v
			}
		}
	case *selector.TextNode:
		out["type"] = "text"
		out["text"] = describePattern(n.Text)
	case *selector.LabelNode:
		out["type"] = "label"
		out["label"] = describePattern(n.Label)
	case *selector.PlaceholderNode:
		out["type"] = "placeholder"
		out["placeholder"] = describePattern(n.Placeholder)
	case *selector.TestIDNode:
		out["type"] = "testid"
		out["id"] = n.ID
	case *selector.CSSNode:
		out["type"] = "css"
		out["css"] = n.CSS
	default:
		out["type"] = fmt.Sprintf("%T", n)
	}
	if mods := n.Modifiers(); len(mods) > 0 {
		list := make([]map[string]any, 0, len(mods))
		for _, m := range mods {
			list = append(list, describeModifier(m))
		}
		out["modifiers"] = list
	}
	return out
}

func describeModifier(m selector.Modifier) map[string]any {
	switch m := m.(type) {
	case selector.Nth:
		return map[string]any{"type": "nth", "index": m.Index}
	case selector.First:
		return map[string]any{"type": "first"}
	case selector.Last:
		return map[string]any{"type": "last"}
	case selector.Chain:
		return map[string]any{"type": "chain", "child": describeNode(m.Child)}
	case selector.SelectOption:
		return map[string]any{"type": "selectOption", "value": m.Value}
	case selector.Filter:
		out := map[string]any{"type": "filter"}
		if m.HasText != nil {
			out["hasText"] = describePattern(*m.HasText)
		}
		if m.HasNotText != nil {
			out["hasNotText"] = describePattern(*m.HasNotText)
		}
		if m.HasClass != "" {
			out["hasClass"] = m.HasClass
		}
		if m.Has != nil {
			out["has"] = describeNode(m.Has)
		}
		if m.HasNot != nil {
			out["hasNot"] = describeNode(m.HasNot)
		}
		return out
	}
	return map[string]any{"type": fmt.Sprintf("%T", m)}
}

func describePattern(p selector.Pattern) map[string]any {
	out := map[string]any{"text": p.Text}
	if p.Regex {
		out["regex"] = true
		if p.Flags != "" {
			out["flags"] = p.Flags
		}
	}
	if p.Exact {
		out["exact"] = true
	}
	return out
}
