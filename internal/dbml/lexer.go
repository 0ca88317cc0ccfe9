package dbml

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokQuoted // "double quoted identifier"
	tokString // 'single' or '''triple''' quoted text
	tokNumber
	tokExpr // `backtick expression`
	tokColor
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	line int
	col  int
}

func (t token) describe() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokString:
		return "string"
	case tokExpr:
		return "expression"
	}
	return fmt.Sprintf("%q", t.text)
}

// ParseError reports malformed schema text. Line and Column are 1-based and
// zero when the position is unknown.
type ParseError struct {
	Message string
	Line    int
	Column  int
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s (line %d, column %d)", e.Message, e.Line, e.Column)
	}
	return e.Message
}

type lexer struct {
	src  []rune
	pos  int
	line int
	col  int
	toks []token
}

func tokenize(src string) ([]token, error) {
	lx := &lexer{src: []rune(src), line: 1, col: 1}
	for {
		lx.skipSpaceAndComments()
		if lx.pos >= len(lx.src) {
			lx.toks = append(lx.toks, token{kind: tokEOF, line: lx.line, col: lx.col})
			return lx.toks, nil
		}
		if err := lx.scan(); err != nil {
			return nil, err
		}
	}
}

func (lx *lexer) peekRune(off int) rune {
	if lx.pos+off < len(lx.src) {
		return lx.src[lx.pos+off]
	}
	return 0
}

func (lx *lexer) advance() rune {
	r := lx.src[lx.pos]
	lx.pos++
	if r == '\n' {
		lx.line++
		lx.col = 1
	} else {
		lx.col++
	}
	return r
}

func (lx *lexer) errorf(line, col int, format string, args ...any) error {
	return &ParseError{Message: fmt.Sprintf(format, args...), Line: line, Column: col}
}

func (lx *lexer) skipSpaceAndComments() {
	for lx.pos < len(lx.src) {
		r := lx.src[lx.pos]
		switch {
		case unicode.IsSpace(r):
			lx.advance()
		case r == '/' && lx.peekRune(1) == '/':
			for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
				lx.advance()
			}
		case r == '/' && lx.peekRune(1) == '*':
			lx.advance()
			lx.advance()
			for lx.pos < len(lx.src) && !(lx.src[lx.pos] == '*' && lx.peekRune(1) == '/') {
				lx.advance()
			}
			if lx.pos < len(lx.src) {
				lx.advance()
				lx.advance()
			}
		default:
			return
		}
	}
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (lx *lexer) emit(kind tokenKind, text string, line, col int) {
	lx.toks = append(lx.toks, token{kind: kind, text: text, line: line, col: col})
}

func (lx *lexer) scan() error {
	line, col := lx.line, lx.col
	r := lx.src[lx.pos]

	switch {
	case unicode.IsDigit(r):
		start := lx.pos
		for lx.pos < len(lx.src) && unicode.IsDigit(lx.src[lx.pos]) {
			lx.advance()
		}
		if lx.peekRune(0) == '.' && unicode.IsDigit(lx.peekRune(1)) {
			lx.advance()
			for lx.pos < len(lx.src) && unicode.IsDigit(lx.src[lx.pos]) {
				lx.advance()
			}
			lx.emit(tokNumber, string(lx.src[start:lx.pos]), line, col)
			return nil
		}
		if lx.pos < len(lx.src) && isIdentRune(lx.src[lx.pos]) {
			for lx.pos < len(lx.src) && isIdentRune(lx.src[lx.pos]) {
				lx.advance()
			}
			lx.emit(tokIdent, string(lx.src[start:lx.pos]), line, col)
			return nil
		}
		lx.emit(tokNumber, string(lx.src[start:lx.pos]), line, col)
		return nil

	case isIdentRune(r):
		start := lx.pos
		for lx.pos < len(lx.src) && isIdentRune(lx.src[lx.pos]) {
			lx.advance()
		}
		lx.emit(tokIdent, string(lx.src[start:lx.pos]), line, col)
		return nil

	case r == '\'':
		if lx.peekRune(1) == '\'' && lx.peekRune(2) == '\'' {
			return lx.scanTriple(line, col)
		}
		text, err := lx.scanQuoted('\'', line, col)
		if err != nil {
			return err
		}
		lx.emit(tokString, text, line, col)
		return nil

	case r == '"':
		text, err := lx.scanQuoted('"', line, col)
		if err != nil {
			return err
		}
		lx.emit(tokQuoted, text, line, col)
		return nil

	case r == '`':
		lx.advance()
		start := lx.pos
		for lx.pos < len(lx.src) && lx.src[lx.pos] != '`' {
			lx.advance()
		}
		if lx.pos >= len(lx.src) {
			return lx.errorf(line, col, "unterminated expression")
		}
		text := string(lx.src[start:lx.pos])
		lx.advance()
		lx.emit(tokExpr, text, line, col)
		return nil

	case r == '#':
		lx.advance()
		start := lx.pos
		for lx.pos < len(lx.src) && isIdentRune(lx.src[lx.pos]) {
			lx.advance()
		}
		if lx.pos == start {
			return lx.errorf(line, col, "invalid color")
		}
		lx.emit(tokColor, "#"+string(lx.src[start:lx.pos]), line, col)
		return nil

	case r == '<' && lx.peekRune(1) == '>':
		lx.advance()
		lx.advance()
		lx.emit(tokPunct, "<>", line, col)
		return nil

	case strings.ContainsRune("{}[]():,.<>-", r):
		lx.advance()
		lx.emit(tokPunct, string(r), line, col)
		return nil
	}

	return lx.errorf(line, col, "unexpected character %q", r)
}

func (lx *lexer) scanQuoted(quote rune, line, col int) (string, error) {
	lx.advance()
	var sb strings.Builder
	for {
		if lx.pos >= len(lx.src) {
			return "", lx.errorf(line, col, "unterminated string")
		}
		r := lx.advance()
		if r == quote {
			return sb.String(), nil
		}
		if r == '\n' {
			return "", lx.errorf(line, col, "unterminated string")
		}
		if r == '\\' && lx.pos < len(lx.src) {
			esc := lx.advance()
			switch esc {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case 'r':
				sb.WriteRune('\r')
			default:
				sb.WriteRune(esc)
			}
			continue
		}
		sb.WriteRune(r)
	}
}

func (lx *lexer) scanTriple(line, col int) error {
	lx.advance()
	lx.advance()
	lx.advance()
	var sb strings.Builder
	for {
		if lx.pos >= len(lx.src) {
			return lx.errorf(line, col, "unterminated string")
		}
		if lx.src[lx.pos] == '\'' && lx.peekRune(1) == '\'' && lx.peekRune(2) == '\'' {
			lx.advance()
			lx.advance()
			lx.advance()
			break
		}
		r := lx.advance()
		if r == '\\' && lx.pos < len(lx.src) {
			sb.WriteRune(lx.advance())
			continue
		}
		sb.WriteRune(r)
	}
	lx.emit(tokString, dedent(sb.String()), line, col)
	return nil
}

// dedent strips the leading newline, the trailing blank line and the
// indentation common to all non-blank lines.
func dedent(s string) string {
	s = strings.TrimPrefix(s, "\r")
	s = strings.TrimPrefix(s, "\n")
	lines := strings.Split(s, "\n")
	if n := len(lines); n > 1 && strings.TrimSpace(lines[n-1]) == "" {
		lines = lines[:n-1]
	}
	indent := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	if indent > 0 {
		for i, l := range lines {
			if len(l) >= indent {
				lines[i] = l[indent:]
			} else {
				lines[i] = strings.TrimLeft(l, " \t")
			}
		}
	}
	return strings.Join(lines, "\n")
}
