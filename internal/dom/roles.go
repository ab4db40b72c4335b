package dom

import (
	"context"
	"strconv"
	"strings"
)

// roleTags lists the tags that may carry a role implicitly. The union is
// deliberately loose; callers filter with Role.
var roleTags = map[string]string{
	"button":        "button, input",
	"link":          "a, area",
	"textbox":       "input, textarea",
	"searchbox":     "input",
	"checkbox":      "input",
	"radio":         "input",
	"slider":        "input",
	"spinbutton":    "input",
	"combobox":      "select, input",
	"listbox":       "select, datalist",
	"option":        "option",
	"img":           "img",
	"presentation":  "img",
	"heading":       "h1, h2, h3, h4, h5, h6",
	"list":          "ul, ol, menu",
	"listitem":      "li",
	"navigation":    "nav",
	"main":          "main",
	"form":          "form",
	"table":         "table",
	"row":           "tr",
	"cell":          "td",
	"columnheader":  "th",
	"dialog":        "dialog",
	"banner":        "header",
	"contentinfo":   "footer",
	"complementary": "aside",
	"region":        "section",
	"article":       "article",
	"progressbar":   "progress",
	"group":         "fieldset, optgroup",
	"separator":     "hr",
	"paragraph":     "p",
	"generic":       "div, span",
	"status":        "output",
}

// RoleSelector returns a CSS selector that over-approximates the set of
// elements with the given role.
func RoleSelector(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	explicit := `[role~=` + QuoteCSS(role) + `]`
	if tags, ok := roleTags[role]; ok {
		return tags + ", " + explicit
	}
	return explicit
}

// Role computes the ARIA role for a tag and its attributes. An explicit
// role attribute wins; otherwise the HTML-AAM implicit mapping applies.
func Role(tag string, attrs map[string]string) string {
	if fields := strings.Fields(attrs["role"]); len(fields) > 0 {
		return strings.ToLower(fields[0])
	}
	tag = strings.ToLower(tag)
	_, hasList := attrs["list"]
	switch tag {
	case "a", "area":
		if _, ok := attrs["href"]; ok {
			return "link"
		}
		return "generic"
	case "button":
		return "button"
	case "input":
		switch strings.ToLower(attrs["type"]) {
		case "button", "submit", "reset", "image":
			return "button"
		case "checkbox":
			return "checkbox"
		case "radio":
			return "radio"
		case "range":
			return "slider"
		case "number":
			return "spinbutton"
		case "search":
			if hasList {
				return "combobox"
			}
			return "searchbox"
		case "", "text", "email", "tel", "url", "password":
			if hasList {
				return "combobox"
			}
			return "textbox"
		}
		return ""
	case "textarea":
		return "textbox"
	case "select":
		_, multiple := attrs["multiple"]
		size, _ := strconv.Atoi(attrs["size"])
		if multiple || size > 1 {
			return "listbox"
		}
		return "combobox"
	case "datalist":
		return "listbox"
	case "option":
		return "option"
	case "img":
		if alt, ok := attrs["alt"]; ok && alt == "" {
			return "presentation"
		}
		return "img"
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return "heading"
	case "ul", "ol", "menu":
		return "list"
	case "li":
		return "listitem"
	case "nav":
		return "navigation"
	case "main":
		return "main"
	case "form":
		return "form"
	case "table":
		return "table"
	case "tr":
		return "row"
	case "td":
		return "cell"
	case "th":
		return "columnheader"
	case "dialog":
		return "dialog"
	case "header":
		return "banner"
	case "footer":
		return "contentinfo"
	case "aside":
		return "complementary"
	case "section":
		return "region"
	case "article":
		return "article"
	case "progress":
		return "progressbar"
	case "fieldset", "optgroup":
		return "group"
	case "hr":
		return "separator"
	case "p":
		return "paragraph"
	case "div", "span":
		return "generic"
	case "output":
		return "status"
	}
	return ""
}

// RoleOf fetches what Role needs from a live element.
func RoleOf(ctx context.Context, el Element) (string, error) {
	tag, err := el.TagName(ctx)
	if err != nil {
		return "", err
	}
	attrs, err := el.Attributes(ctx)
	if err != nil {
		return "", err
	}
	return Role(tag, attrs), nil
}

var nameFromContent = map[string]bool{
	"button": true, "link": true, "checkbox": true, "radio": true, "switch": true,
	"option": true, "menuitem": true, "menuitemcheckbox": true, "menuitemradio": true,
	"tab": true, "treeitem": true, "heading": true, "cell": true, "gridcell": true,
	"columnheader": true, "rowheader": true, "row": true, "tooltip": true,
}

// AccessibleName approximates the accessible name computation: labelledby,
// aria-label, associated <label>, alt, content (for roles that take their
// name from content), title, then placeholder. root is searched for
// referenced ids and labels.
func AccessibleName(ctx context.Context, root Scope, el Element) (string, error) {
	tag, err := el.TagName(ctx)
	if err != nil {
		return "", err
	}
	attrs, err := el.Attributes(ctx)
	if err != nil {
		return "", err
	}

	if ids := strings.Fields(attrs["aria-labelledby"]); len(ids) > 0 && root != nil {
		var parts []string
		for _, id := range ids {
			refs, err := root.Query(ctx, `[id=`+QuoteCSS(id)+`]`)
			if err != nil {
				return "", err
			}
			if len(refs) == 0 {
				continue
			}
			text, err := refs[0].Text(ctx)
			if err != nil {
				return "", err
			}
			parts = append(parts, text)
		}
		if name := NormalizeSpace(strings.Join(parts, " ")); name != "" {
			return name, nil
		}
	}
	if label := NormalizeSpace(attrs["aria-label"]); label != "" {
		return label, nil
	}

	inputType := strings.ToLower(attrs["type"])
	switch tag {
	case "input", "select", "textarea":
		if tag == "input" {
			switch inputType {
			case "button", "submit", "reset":
				if v := NormalizeSpace(attrs["value"]); v != "" {
					return v, nil
				}
				if inputType == "submit" {
					return "Submit", nil
				}
				if inputType == "reset" {
					return "Reset", nil
				}
			case "image":
				if alt := NormalizeSpace(attrs["alt"]); alt != "" {
					return alt, nil
				}
			}
		}
		label, err := labelText(ctx, root, el, attrs["id"])
		if err != nil {
			return "", err
		}
		if label != "" {
			return label, nil
		}
	case "img", "area":
		if alt := NormalizeSpace(attrs["alt"]); alt != "" {
			return alt, nil
		}
	}

	if nameFromContent[Role(tag, attrs)] {
		text, err := el.Text(ctx)
		if err != nil {
			return "", err
		}
		if text = NormalizeSpace(text); text != "" {
			return text, nil
		}
	}
	if title := NormalizeSpace(attrs["title"]); title != "" {
		return title, nil
	}
	return NormalizeSpace(attrs["placeholder"]), nil
}

func labelText(ctx context.Context, root Scope, el Element, id string) (string, error) {
	var parts []string
	if id != "" && root != nil {
		labels, err := root.Query(ctx, `label[for=`+QuoteCSS(id)+`]`)
		if err != nil {
			return "", err
		}
		for _, l := range labels {
			text, err := l.Text(ctx)
			if err != nil {
				return "", err
			}
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		wrapping, err := el.Closest(ctx, "label")
		if err != nil {
			return "", err
		}
		if wrapping != nil {
			text, err := wrapping.Text(ctx)
			if err != nil {
				return "", err
			}
			parts = append(parts, text)
		}
	}
	return NormalizeSpace(strings.Join(parts, " ")), nil
}
