package selector

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tEOF tokenKind = iota
	tIdent
	tString
	tRegex
	tNumber
	tPunct
)

func (k tokenKind) String() string {
	switch k {
	case tEOF:
		return "end of input"
	case tIdent:
		return "identifier"
	case tString:
		return "string"
	case tRegex:
		return "regular expression"
	case tNumber:
		return "number"
	case tPunct:
		return "punctuation"
	}
	return "token"
}

type token struct {
	kind  tokenKind
	text  string // decoded value
	flags string // regex flags
	pos   int
}

func (t token) is(kind tokenKind, text string) bool {
	return t.kind == kind && t.text == text
}

type lexer struct {
	src  string
	pos  int
	toks []token
}

func tokenize(src string) ([]token, *ParseError) {
	lx := &lexer{src: src}
	for {
		lx.skipSpace()
		if lx.pos >= len(src) {
			lx.toks = append(lx.toks, token{kind: tEOF, pos: lx.pos})
			return lx.toks, nil
		}
		start := lx.pos
		c := src[lx.pos]
		switch {
		case strings.IndexByte("(){},:.;", c) >= 0:
			lx.pos++
			lx.toks = append(lx.toks, token{kind: tPunct, text: string(c), pos: start})
		case c == '\'' || c == '"' || c == '`':
			s, err := lx.readString(c)
			if err != nil {
				return nil, err
			}
			lx.toks = append(lx.toks, token{kind: tString, text: s, pos: start})
		case c == '/':
			src, flags, err := lx.readRegex()
			if err != nil {
				return nil, err
			}
			lx.toks = append(lx.toks, token{kind: tRegex, text: src, flags: flags, pos: start})
		case c == '-' || (c >= '0' && c <= '9'):
			lx.pos++
			for lx.pos < len(src) && src[lx.pos] >= '0' && src[lx.pos] <= '9' {
				lx.pos++
			}
			text := src[start:lx.pos]
			if text == "-" {
				return nil, newParseError(src, start, "expected digits after '-'")
			}
			lx.toks = append(lx.toks, token{kind: tNumber, text: text, pos: start})
		case isIdentStart(c):
			for lx.pos < len(src) && isIdentPart(src[lx.pos]) {
				lx.pos++
			}
			lx.toks = append(lx.toks, token{kind: tIdent, text: src[start:lx.pos], pos: start})
		default:
			r, _ := utf8.DecodeRuneInString(src[lx.pos:])
			return nil, newParseError(src, start, "unexpected character "+quoteRune(r))
		}
	}
}

func (lx *lexer) skipSpace() {
	for lx.pos < len(lx.src) {
		r, size := utf8.DecodeRuneInString(lx.src[lx.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		lx.pos += size
	}
}

func (lx *lexer) readString(q byte) (string, *ParseError) {
	start := lx.pos
	lx.pos++
	var b strings.Builder
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case c == q:
			lx.pos++
			return b.String(), nil
		case c == '\\' && lx.pos+1 < len(lx.src):
			lx.pos++
			switch e := lx.src[lx.pos]; e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(e)
			}
			lx.pos++
		default:
			b.WriteByte(c)
			lx.pos++
		}
	}
	return "", newParseError(lx.src, start, "unterminated string")
}

func (lx *lexer) readRegex() (string, string, *ParseError) {
	start := lx.pos
	lx.pos++
	inClass := false
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case c == '\\' && lx.pos+1 < len(lx.src):
			lx.pos += 2
			continue
		case c == '[':
			inClass = true
		case c == ']':
			inClass = false
		case c == '/' && !inClass:
			body := lx.src[start+1 : lx.pos]
			lx.pos++
			fstart := lx.pos
			for lx.pos < len(lx.src) && isIdentPart(lx.src[lx.pos]) {
				lx.pos++
			}
			if body == "" {
				return "", "", newParseError(lx.src, start, "empty regular expression")
			}
			return body, lx.src[fstart:lx.pos], nil
		}
		lx.pos++
	}
	return "", "", newParseError(lx.src, start, "unterminated regular expression")
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func quoteRune(r rune) string {
	return "'" + string(r) + "'"
}
