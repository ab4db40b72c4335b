package selector

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError reports an expression that does not fit the grammar. Near
// holds the offending part of the input.
type ParseError struct {
	Expr   string
	Offset int
	Near   string
	Msg    string
}

func (e *ParseError) Error() string {
	if e.Near == "" {
		return fmt.Sprintf("selector %q: %s at end of input", e.Expr, e.Msg)
	}
	return fmt.Sprintf("selector %q: %s near %q", e.Expr, e.Msg, e.Near)
}

func newParseError(src string, offset int, msg string) *ParseError {
	near := src[min(offset, len(src)):]
	if len(near) > 24 {
		near = near[:24]
	}
	return &ParseError{Expr: src, Offset: offset, Near: near, Msg: msg}
}

var rootCalls = map[string]bool{
	"getByRole":        true,
	"getByText":        true,
	"getByLabel":       true,
	"getByPlaceholder": true,
	"getByTestId":      true,
	"locator":          true,
}

// Parse turns an expression into a tree. Expressions that do not start
// with a locator call or an engine prefix are taken as raw CSS.
func Parse(expr string) (Node, error) {
	src := strings.TrimSpace(expr)
	if src == "" {
		return nil, &ParseError{Expr: expr, Msg: "empty selector"}
	}
	if n, ok, err := parseEnginePrefixed(src); ok {
		return n, err
	}
	if !IsCallExpression(src) {
		return &CSSNode{CSS: src}, nil
	}
	toks, perr := tokenize(src)
	if perr != nil {
		return nil, perr
	}
	p := &parser{src: src, toks: toks}
	if p.peek().is(tIdent, "await") {
		p.next()
	}
	n, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.peek().is(tPunct, ";") {
		p.next()
	}
	if t := p.peek(); t.kind != tEOF {
		return nil, p.errAt(t, "unexpected "+describe(t))
	}
	return n, nil
}

// IsCallExpression reports whether s starts like a locator call
// (optionally behind "await" and "page."), as opposed to raw CSS.
func IsCallExpression(s string) bool {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "await ")
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "page.")
	i := 0
	for i < len(s) && isIdentPart(s[i]) {
		i++
	}
	if i == 0 {
		return false
	}
	rest := strings.TrimLeft(s[i:], " \t")
	return strings.HasPrefix(rest, "(")
}

func parseEnginePrefixed(src string) (Node, bool, error) {
	switch {
	case strings.HasPrefix(src, "css="):
		css := strings.TrimSpace(src[len("css="):])
		if css == "" {
			return nil, true, newParseError(src, len("css="), "empty css selector")
		}
		return &CSSNode{CSS: css}, true, nil
	case strings.HasPrefix(src, "text="):
		body := strings.TrimSpace(src[len("text="):])
		if unq, ok := unquote(body); ok {
			return &TextNode{Text: Pattern{Text: unq, Exact: true}}, true, nil
		}
		if body == "" {
			return nil, true, newParseError(src, len("text="), "empty text selector")
		}
		return &TextNode{Text: Pattern{Text: body}}, true, nil
	case strings.HasPrefix(src, "id="):
		return &CSSNode{CSS: "[id=" + cssString(strings.TrimSpace(src[len("id="):])) + "]"}, true, nil
	case strings.HasPrefix(src, "data-testid="):
		return &TestIDNode{ID: trimQuotes(src[len("data-testid="):])}, true, nil
	case strings.HasPrefix(src, "data-test="):
		return &CSSNode{CSS: "[data-test=" + cssString(trimQuotes(src[len("data-test="):])) + "]"}, true, nil
	case strings.HasPrefix(src, "xpath="), strings.HasPrefix(src, "//"):
		return nil, true, newParseError(src, 0, "xpath selectors are not supported")
	}
	return nil, false, nil
}

type parser struct {
	src  string
	toks []token
	i    int
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tEOF {
		p.i++
	}
	return t
}

func (p *parser) errAt(t token, msg string) *ParseError {
	return newParseError(p.src, t.pos, msg)
}

func (p *parser) expectPunct(s string) error {
	t := p.next()
	if !t.is(tPunct, s) {
		return p.errAt(t, fmt.Sprintf("expected '%s', found %s", s, describe(t)))
	}
	return nil
}

func (p *parser) expectIdent() (token, error) {
	t := p.next()
	if t.kind != tIdent {
		return t, p.errAt(t, "expected identifier, found "+describe(t))
	}
	return t, nil
}

// parseExpr reads ["page."] call {"." modifier}.
func (p *parser) parseExpr() (Node, error) {
	if p.peek().is(tIdent, "page") && p.toks[p.i+1].is(tPunct, ".") {
		p.i += 2
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	node, extra, err := p.parseCall(name)
	if err != nil {
		return nil, err
	}
	mods := extra
	for p.peek().is(tPunct, ".") {
		p.next()
		m, err := p.parseModifier()
		if err != nil {
			return nil, err
		}
		mods = append(mods, m...)
	}
	if len(mods) > 0 {
		node = node.withModifiers(mods)
	}
	return node, nil
}

// parseCall parses one of the root calls. A locator call with options
// yields trailing filter modifiers.
func (p *parser) parseCall(name token) (Node, []Modifier, error) {
	if !rootCalls[name.text] {
		return nil, nil, p.errAt(name, fmt.Sprintf("unsupported call %q", name.text))
	}
	if err := p.expectPunct("("); err != nil {
		return nil, nil, err
	}
	var (
		node Node
		mods []Modifier
		err  error
	)
	switch name.text {
	case "getByRole":
		node, err = p.parseRoleArgs()
	case "getByText":
		var pat Pattern
		pat, err = p.parsePatternArgs()
		node = &TextNode{Text: pat}
	case "getByLabel":
		var pat Pattern
		pat, err = p.parsePatternArgs()
		node = &LabelNode{Label: pat}
	case "getByPlaceholder":
		var pat Pattern
		pat, err = p.parsePatternArgs()
		node = &PlaceholderNode{Placeholder: pat}
	case "getByTestId":
		var s string
		s, err = p.parseStringArg()
		node = &TestIDNode{ID: s}
	case "locator":
		var s string
		s, err = p.parseStringArg()
		if err == nil && strings.TrimSpace(s) == "" {
			err = p.errAt(p.toks[p.i-1], "empty css selector")
		}
		node = &CSSNode{CSS: s}
		if err == nil && p.peek().is(tPunct, ",") {
			p.next()
			var f Filter
			f, err = p.parseFilterObject()
			if err == nil && !f.empty() {
				mods = append(mods, f)
			}
		}
	}
	if err != nil {
		return nil, nil, err
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, nil, err
	}
	return node, mods, nil
}

func (p *parser) parseModifier() ([]Modifier, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	switch name.text {
	case "first", "last":
		if p.peek().is(tPunct, "(") {
			p.next()
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
		}
		if name.text == "first" {
			return []Modifier{First{}}, nil
		}
		return []Modifier{Last{}}, nil
	case "nth":
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		t := p.next()
		if t.kind != tNumber {
			return nil, p.errAt(t, "nth expects an integer, found "+describe(t))
		}
		idx, err := strconv.Atoi(t.text)
		if err != nil {
			return nil, p.errAt(t, "invalid index")
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return []Modifier{Nth{Index: idx}}, nil
	case "filter":
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		f, err := p.parseFilterObject()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		if f.empty() {
			return nil, p.errAt(name, "filter needs at least one condition")
		}
		return []Modifier{f}, nil
	case "selectOption":
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		s, err := p.parseStringArg()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return []Modifier{SelectOption{Value: s}}, nil
	}
	if rootCalls[name.text] {
		child, extra, err := p.parseCall(name)
		if err != nil {
			return nil, err
		}
		return append([]Modifier{Chain{Child: child}}, extra...), nil
	}
	return nil, p.errAt(name, fmt.Sprintf("unsupported method %q", name.text))
}

func (p *parser) parseStringArg() (string, error) {
	t := p.next()
	if t.kind != tString {
		return "", p.errAt(t, "expected string, found "+describe(t))
	}
	return t.text, nil
}

func (p *parser) parsePatternArgs() (Pattern, error) {
	pat, err := p.parsePatternValue()
	if err != nil {
		return pat, err
	}
	if !p.peek().is(tPunct, ",") {
		return pat, nil
	}
	p.next()
	fields, err := p.parseObject()
	if err != nil {
		return pat, err
	}
	for _, f := range fields {
		if f.key != "exact" {
			return pat, p.errAt(f.tok, fmt.Sprintf("unknown option %q", f.key))
		}
		b, err := p.boolField(f)
		if err != nil {
			return pat, err
		}
		if !pat.Regex {
			pat.Exact = b
		}
	}
	return pat, nil
}

func (p *parser) parsePatternValue() (Pattern, error) {
	t := p.next()
	switch t.kind {
	case tString:
		return Pattern{Text: t.text}, nil
	case tRegex:
		pat := Pattern{Text: t.text, Regex: true, Flags: t.flags}
		if _, err := pat.Compile(); err != nil {
			return pat, p.errAt(t, "invalid regular expression: "+err.Error())
		}
		return pat, nil
	}
	return Pattern{}, p.errAt(t, "expected string or regular expression, found "+describe(t))
}

func (p *parser) parseRoleArgs() (Node, error) {
	role, err := p.parseStringArg()
	if err != nil {
		return nil, err
	}
	n := &RoleNode{Role: strings.ToLower(strings.TrimSpace(role))}
	if n.Role == "" {
		return nil, p.errAt(p.toks[p.i-1], "empty role")
	}
	if !p.peek().is(tPunct, ",") {
		return n, nil
	}
	p.next()
	fields, err := p.parseObject()
	if err != nil {
		return nil, err
	}
	exact := false
	for _, f := range fields {
		switch f.key {
		case "name":
			pat, err := p.patternField(f)
			if err != nil {
				return nil, err
			}
			n.Name = &pat
		case "exact":
			if exact, err = p.boolField(f); err != nil {
				return nil, err
			}
		case "checked", "disabled", "expanded", "pressed", "selected":
			b, err := p.boolField(f)
			if err != nil {
				return nil, err
			}
			switch f.key {
			case "checked":
				n.Checked = Bool(b)
			case "disabled":
				n.Disabled = Bool(b)
			case "expanded":
				n.Expanded = Bool(b)
			case "pressed":
				n.Pressed = Bool(b)
			case "selected":
				n.Selected = Bool(b)
			}
		case "includeHidden":
			if n.IncludeHidden, err = p.boolField(f); err != nil {
				return nil, err
			}
		case "level":
			if f.val.kind != tNumber {
				return nil, p.errAt(f.tok, "level expects an integer")
			}
			n.Level, _ = strconv.Atoi(f.val.text)
		case "id", "ariaControls", "class":
			if f.val.kind != tString {
				return nil, p.errAt(f.tok, f.key+" expects a string")
			}
			switch f.key {
			case "id":
				n.ID = f.val.text
			case "ariaControls":
				n.AriaControls = f.val.text
			case "class":
				n.Class = f.val.text
			}
		default:
			return nil, p.errAt(f.tok, fmt.Sprintf("unknown role option %q", f.key))
		}
	}
	if exact && n.Name != nil && !n.Name.Regex {
		n.Name.Exact = true
	}
	return n, nil
}

func (p *parser) parseFilterObject() (Filter, error) {
	var f Filter
	fields, err := p.parseObject()
	if err != nil {
		return f, err
	}
	for _, fld := range fields {
		switch fld.key {
		case "hasText", "hasNotText":
			pat, err := p.patternField(fld)
			if err != nil {
				return f, err
			}
			if fld.key == "hasText" {
				f.HasText = &pat
			} else {
				f.HasNotText = &pat
			}
		case "hasClass":
			if fld.val.kind != tString {
				return f, p.errAt(fld.tok, "hasClass expects a string")
			}
			f.HasClass = fld.val.text
		case "has", "hasNot":
			if fld.node == nil && fld.key == "hasNot" && (fld.val.kind == tString || fld.val.kind == tRegex) {
				// hasNot: 'text' reads as hasNotText.
				pat, err := p.patternField(fld)
				if err != nil {
					return f, err
				}
				f.HasNotText = &pat
				continue
			}
			if fld.node == nil {
				return f, p.errAt(fld.tok, fld.key+" expects a locator")
			}
			if fld.key == "has" {
				f.Has = fld.node
			} else {
				f.HasNot = fld.node
			}
		default:
			return f, p.errAt(fld.tok, fmt.Sprintf("unknown filter option %q", fld.key))
		}
	}
	return f, nil
}

type field struct {
	key  string
	tok  token
	val  token
	node Node
}

// parseObject reads { key: value, ... } where a value is a literal or a
// nested locator expression.
func (p *parser) parseObject() ([]field, error) {
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var fields []field
	for {
		if p.peek().is(tPunct, "}") {
			p.next()
			return fields, nil
		}
		kt := p.next()
		if kt.kind != tIdent && kt.kind != tString {
			return nil, p.errAt(kt, "expected option name, found "+describe(kt))
		}
		if err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		f := field{key: kt.text, tok: kt}
		vt := p.peek()
		switch {
		case vt.kind == tIdent && isBoolWord(vt.text):
			f.val = p.next()
		case vt.kind == tIdent:
			n, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			f.node = n
		case vt.kind == tString || vt.kind == tRegex || vt.kind == tNumber:
			f.val = p.next()
		default:
			return nil, p.errAt(vt, "expected value, found "+describe(vt))
		}
		fields = append(fields, f)
		if p.peek().is(tPunct, ",") {
			p.next()
			continue
		}
		if !p.peek().is(tPunct, "}") {
			return nil, p.errAt(p.peek(), "expected ',' or '}', found "+describe(p.peek()))
		}
	}
}

func (p *parser) boolField(f field) (bool, error) {
	if f.val.kind != tIdent || !isBoolWord(f.val.text) {
		return false, p.errAt(f.tok, f.key+" expects true or false")
	}
	return strings.EqualFold(f.val.text, "true"), nil
}

func (p *parser) patternField(f field) (Pattern, error) {
	switch f.val.kind {
	case tString:
		return Pattern{Text: f.val.text}, nil
	case tRegex:
		pat := Pattern{Text: f.val.text, Regex: true, Flags: f.val.flags}
		if _, err := pat.Compile(); err != nil {
			return pat, p.errAt(f.val, "invalid regular expression: "+err.Error())
		}
		return pat, nil
	}
	return Pattern{}, p.errAt(f.tok, f.key+" expects a string or regular expression")
}

func (f Filter) empty() bool {
	return f.HasText == nil && f.HasNotText == nil && f.HasClass == "" && f.Has == nil && f.HasNot == nil
}

func isBoolWord(s string) bool {
	return strings.EqualFold(s, "true") || strings.EqualFold(s, "false")
}

func describe(t token) string {
	if t.kind == tEOF {
		return t.kind.String()
	}
	return fmt.Sprintf("%s %q", t.kind, t.text)
}

func unquote(s string) (string, bool) {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1], true
	}
	return "", false
}

func trimQuotes(s string) string {
	s = strings.TrimSpace(s)
	if unq, ok := unquote(s); ok {
		return unq
	}
	return s
}

func cssString(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}
