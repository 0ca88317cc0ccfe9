package sqlddl

import (
	"strings"
	"unicode"

	"dbmlviewer/internal/dbml"
)

type tokKind int

const (
	tEOF tokKind = iota
	tWord
	tQuoted
	tString
	tNumber
	tPunct
)

type sqlToken struct {
	kind      tokKind
	text      string
	line      int
	col       int
	start     int
	end       int
	lineStart bool
}

func (t sqlToken) is(word string) bool {
	return t.kind == tWord && strings.EqualFold(t.text, word)
}

func (t sqlToken) isPunct(p string) bool {
	return t.kind == tPunct && t.text == p
}

func parseErr(t sqlToken, msg string) error {
	return &dbml.ParseError{Message: msg, Line: t.line, Column: t.col}
}

// lexSQL tokenizes DDL. Comments are dropped; quoted identifiers in any of
// the three dialect styles become tQuoted.
func lexSQL(src string, d Dialect) ([]sqlToken, error) {
	rs := []rune(src)
	var toks []sqlToken
	line, col := 1, 1
	i := 0
	sawOnLine := false

	adv := func() {
		if rs[i] == '\n' {
			line++
			col = 1
			sawOnLine = false
		} else {
			col++
		}
		i++
	}
	peek := func(off int) rune {
		if i+off < len(rs) {
			return rs[i+off]
		}
		return 0
	}

	for i < len(rs) {
		r := rs[i]
		if unicode.IsSpace(r) {
			adv()
			continue
		}
		if (r == '-' && peek(1) == '-') || (r == '#' && d == MySQL) {
			for i < len(rs) && rs[i] != '\n' {
				adv()
			}
			continue
		}
		if r == '/' && peek(1) == '*' {
			adv()
			adv()
			for i < len(rs) && !(rs[i] == '*' && peek(1) == '/') {
				adv()
			}
			if i < len(rs) {
				adv()
				adv()
			}
			continue
		}

		tok := sqlToken{line: line, col: col, start: i, lineStart: !sawOnLine}
		sawOnLine = true

		switch {
		case (r == 'N' || r == 'n' || r == 'E' || r == 'e') && peek(1) == '\'':
			adv()
			fallthrough
		case rs[i] == '\'':
			adv()
			var sb strings.Builder
			closed := false
			for i < len(rs) {
				if rs[i] == '\'' {
					if peek(1) == '\'' {
						sb.WriteRune('\'')
						adv()
						adv()
						continue
					}
					adv()
					closed = true
					break
				}
				if rs[i] == '\\' && peek(1) == '\'' {
					sb.WriteRune('\'')
					adv()
					adv()
					continue
				}
				sb.WriteRune(rs[i])
				adv()
			}
			if !closed {
				return nil, parseErr(tok, "unterminated string literal")
			}
			tok.kind, tok.text = tString, sb.String()

		case r == '$' && (peek(1) == '$' || unicode.IsLetter(peek(1))):
			j := i + 1
			for j < len(rs) && rs[j] != '$' && (unicode.IsLetter(rs[j]) || unicode.IsDigit(rs[j]) || rs[j] == '_') {
				j++
			}
			if j >= len(rs) || rs[j] != '$' {
				adv()
				tok.kind, tok.text = tPunct, "$"
				break
			}
			tag := string(rs[i : j+1])
			for i <= j {
				adv()
			}
			body := i
			for i < len(rs) && !strings.HasPrefix(string(rs[i:min(len(rs), i+len([]rune(tag)))]), tag) {
				adv()
			}
			if i >= len(rs) {
				return nil, parseErr(tok, "unterminated dollar-quoted string")
			}
			text := string(rs[body:i])
			for range []rune(tag) {
				adv()
			}
			tok.kind, tok.text = tString, text

		case r == '"' || r == '`' || (r == '[' && d == MSSQL):
			closeRune := r
			if r == '[' {
				closeRune = ']'
			}
			adv()
			var sb strings.Builder
			closed := false
			for i < len(rs) {
				if rs[i] == closeRune {
					if peek(1) == closeRune {
						sb.WriteRune(closeRune)
						adv()
						adv()
						continue
					}
					adv()
					closed = true
					break
				}
				sb.WriteRune(rs[i])
				adv()
			}
			if !closed {
				return nil, parseErr(tok, "unterminated quoted identifier")
			}
			tok.kind, tok.text = tQuoted, sb.String()

		case unicode.IsDigit(r) || (r == '.' && unicode.IsDigit(peek(1))):
			for i < len(rs) && (unicode.IsDigit(rs[i]) || rs[i] == '.') {
				adv()
			}
			if i < len(rs) && (rs[i] == '_' || unicode.IsLetter(rs[i])) {
				for i < len(rs) && (rs[i] == '_' || unicode.IsLetter(rs[i]) || unicode.IsDigit(rs[i])) {
					adv()
				}
				tok.kind = tWord
			} else {
				tok.kind = tNumber
			}
			tok.text = string(rs[tok.start:i])

		case r == '_' || unicode.IsLetter(r) || r == '@':
			for i < len(rs) && (rs[i] == '_' || rs[i] == '$' || rs[i] == '@' || unicode.IsLetter(rs[i]) || unicode.IsDigit(rs[i])) {
				adv()
			}
			tok.kind, tok.text = tWord, string(rs[tok.start:i])

		case r == ':' && peek(1) == ':':
			adv()
			adv()
			tok.kind, tok.text = tPunct, "::"

		default:
			adv()
			tok.kind, tok.text = tPunct, string(r)
		}

		tok.end = i
		toks = append(toks, tok)
	}

	toks = append(toks, sqlToken{kind: tEOF, line: line, col: col, start: len(rs), end: len(rs), lineStart: true})
	return toks, nil
}

// splitStatements groups tokens by ';' and, for mssql, by GO batch lines.
func splitStatements(toks []sqlToken, d Dialect) [][]sqlToken {
	var stmts [][]sqlToken
	var cur []sqlToken
	flush := func() {
		if len(cur) > 0 {
			stmts = append(stmts, cur)
		}
		cur = nil
	}
	for _, t := range toks {
		switch {
		case t.kind == tEOF:
			flush()
		case t.isPunct(";"):
			flush()
		case d == MSSQL && t.lineStart && t.is("GO"):
			flush()
		default:
			cur = append(cur, t)
		}
	}
	return stmts
}
