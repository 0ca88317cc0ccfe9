package dbml

import (
	"fmt"
	"strings"
)

// Parse converts DBML text into a Schema. Blank input yields an empty
// schema and no error. Every failure is returned as a *ParseError.
func Parse(text string) (*Schema, error) {
	toks, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, schema: &Schema{}}
	if err := p.parseDocument(); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p.schema, nil
}

type parser struct {
	toks   []token
	pos    int
	schema *Schema

	// source positions, parallel to the schema slices
	tableToks []token
	colToks   [][]token
	refToks   []token
	enumToks  []token
	groupToks [][]token
	indexToks [][]token
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) peekAt(off int) token {
	if p.pos+off < len(p.toks) {
		return p.toks[p.pos+off]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) atPunct(s string) bool {
	t := p.peek()
	return t.kind == tokPunct && t.text == s
}

func (p *parser) atKeyword(kw string) bool {
	t := p.peek()
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

func (p *parser) errorf(t token, format string, args ...any) *ParseError {
	return &ParseError{Message: fmt.Sprintf(format, args...), Line: t.line, Column: t.col}
}

func (p *parser) expect(s string) (token, error) {
	t := p.next()
	if t.kind != tokPunct || t.text != s {
		return t, p.errorf(t, "expected %q, found %s", s, t.describe())
	}
	return t, nil
}

func (p *parser) parseName() (string, token, error) {
	t := p.next()
	if t.kind != tokIdent && t.kind != tokQuoted {
		return "", t, p.errorf(t, "expected a name, found %s", t.describe())
	}
	return t.text, t, nil
}

// parseQualified reads "name" or "schema.name" and normalizes the default
// schema to empty.
func (p *parser) parseQualified() (schema, name string, tok token, err error) {
	name, tok, err = p.parseName()
	if err != nil {
		return "", "", tok, err
	}
	if p.atPunct(".") {
		p.next()
		schema = name
		name, _, err = p.parseName()
		if err != nil {
			return "", "", tok, err
		}
	}
	if schema == DefaultSchema {
		schema = ""
	}
	return schema, name, tok, nil
}

func (p *parser) parseDocument() error {
	for p.peek().kind != tokEOF {
		t := p.peek()
		if t.kind != tokIdent {
			return p.errorf(t, "unexpected %s", t.describe())
		}
		var err error
		switch strings.ToLower(t.text) {
		case "project":
			err = p.parseProject()
		case "table":
			err = p.parseTable()
		case "ref":
			err = p.parseRef()
		case "enum":
			err = p.parseEnum()
		case "tablegroup":
			err = p.parseTableGroup()
		case "note":
			err = p.skipStickyNote()
		default:
			err = p.errorf(t, "unexpected keyword %q", t.text)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// settings

type valueKind int

const (
	valNone valueKind = iota
	valIdent
	valString
	valNumber
	valExpr
	valColor
	valRef
)

type setting struct {
	key   string
	kind  valueKind
	value string
	op    string
	ref   Endpoint
	tok   token
}

func (p *parser) parseSettings() ([]setting, error) {
	if _, err := p.expect("["); err != nil {
		return nil, err
	}
	var out []setting
	for {
		start := p.peek()
		var words []string
		for p.peek().kind == tokIdent {
			words = append(words, strings.ToLower(p.next().text))
		}
		if len(words) == 0 {
			return nil, p.errorf(start, "expected a setting, found %s", start.describe())
		}
		s := setting{key: strings.Join(words, " "), tok: start}
		if p.atPunct(":") {
			p.next()
			if err := p.parseSettingValue(&s); err != nil {
				return nil, err
			}
		}
		out = append(out, s)
		if p.atPunct(",") {
			p.next()
			continue
		}
		if _, err := p.expect("]"); err != nil {
			return nil, err
		}
		return out, nil
	}
}

func (p *parser) parseSettingValue(s *setting) error {
	if s.key == "ref" {
		op, err := p.parseRelOp()
		if err != nil {
			return err
		}
		ep, err := p.parseEndpoint()
		if err != nil {
			return err
		}
		s.kind, s.op, s.ref = valRef, op, ep
		return nil
	}
	t := p.next()
	switch t.kind {
	case tokString, tokQuoted:
		s.kind, s.value = valString, t.text
	case tokNumber:
		s.kind, s.value = valNumber, t.text
	case tokExpr:
		s.kind, s.value = valExpr, t.text
	case tokColor:
		s.kind, s.value = valColor, t.text
	case tokIdent:
		words := []string{t.text}
		for p.peek().kind == tokIdent {
			words = append(words, p.next().text)
		}
		s.kind, s.value = valIdent, strings.Join(words, " ")
	case tokPunct:
		if t.text == "-" && p.peek().kind == tokNumber {
			s.kind, s.value = valNumber, "-"+p.next().text
			return nil
		}
		return p.errorf(t, "unexpected %s in setting %q", t.describe(), s.key)
	default:
		return p.errorf(t, "missing value for setting %q", s.key)
	}
	return nil
}

func (p *parser) parseRelOp() (string, error) {
	t := p.next()
	if t.kind == tokPunct {
		switch t.text {
		case ">", "<", "-", "<>":
			return t.text, nil
		}
	}
	return "", p.errorf(t, "expected a relationship operator, found %s", t.describe())
}

func relationsFor(op string) (Relation, Relation) {
	switch op {
	case ">":
		return Many, One
	case "<":
		return One, Many
	case "-":
		return One, One
	}
	return Many, Many
}

// parseEndpoint reads table.column, schema.table.column or table.(a, b).
func (p *parser) parseEndpoint() (Endpoint, error) {
	first, tok, err := p.parseName()
	if err != nil {
		return Endpoint{}, err
	}
	segs := []string{first}
	var cols []string
	for p.atPunct(".") {
		p.next()
		if p.atPunct("(") {
			cols, err = p.parseNameList()
			if err != nil {
				return Endpoint{}, err
			}
			break
		}
		n, _, err := p.parseName()
		if err != nil {
			return Endpoint{}, err
		}
		segs = append(segs, n)
	}
	if cols == nil {
		if len(segs) < 2 {
			return Endpoint{}, p.errorf(tok, "endpoint %q must name a column", first)
		}
		cols = []string{segs[len(segs)-1]}
		segs = segs[:len(segs)-1]
	}
	var ep Endpoint
	switch len(segs) {
	case 1:
		ep.Table = segs[0]
	case 2:
		ep.Schema, ep.Table = segs[0], segs[1]
	default:
		return Endpoint{}, p.errorf(tok, "invalid endpoint %q", strings.Join(segs, "."))
	}
	if ep.Schema == DefaultSchema {
		ep.Schema = ""
	}
	ep.Columns = cols
	return ep, nil
}

func (p *parser) parseNameList() ([]string, error) {
	if _, err := p.expect("("); err != nil {
		return nil, err
	}
	var names []string
	for {
		n, _, err := p.parseName()
		if err != nil {
			return nil, err
		}
		names = append(names, n)
		if p.atPunct(",") {
			p.next()
			continue
		}
		if _, err := p.expect(")"); err != nil {
			return nil, err
		}
		return names, nil
	}
}

// blocks

func (p *parser) parseProject() error {
	p.next()
	proj := &Project{}
	if !p.atPunct("{") {
		name, _, err := p.parseName()
		if err != nil {
			return err
		}
		proj.Name = name
	}
	if _, err := p.expect("{"); err != nil {
		return err
	}
	for !p.atPunct("}") {
		t := p.peek()
		if t.kind == tokEOF {
			return p.errorf(t, "unterminated Project block")
		}
		if p.atKeyword("note") {
			note, err := p.parseNote()
			if err != nil {
				return err
			}
			proj.Note = note
			continue
		}
		key, _, err := p.parseName()
		if err != nil {
			return err
		}
		if _, err := p.expect(":"); err != nil {
			return err
		}
		v := p.next()
		if v.kind == tokEOF {
			return p.errorf(v, "missing value for %q", key)
		}
		if strings.EqualFold(key, "database_type") {
			proj.DatabaseType = v.text
		}
	}
	p.next()
	if p.schema.Project != nil {
		return p.errorf(p.peek(), "a document can only have one Project")
	}
	p.schema.Project = proj
	return nil
}

// parseNote reads `Note: '...'` or `Note { '...' }`.
func (p *parser) parseNote() (string, error) {
	p.next()
	if p.atPunct(":") {
		p.next()
		t := p.next()
		if t.kind != tokString && t.kind != tokQuoted {
			return "", p.errorf(t, "expected a note string, found %s", t.describe())
		}
		return t.text, nil
	}
	if _, err := p.expect("{"); err != nil {
		return "", err
	}
	t := p.next()
	if t.kind != tokString && t.kind != tokQuoted {
		return "", p.errorf(t, "expected a note string, found %s", t.describe())
	}
	if _, err := p.expect("}"); err != nil {
		return "", err
	}
	return t.text, nil
}

func (p *parser) skipStickyNote() error {
	p.next()
	if _, _, err := p.parseName(); err != nil {
		return err
	}
	if _, err := p.expect("{"); err != nil {
		return err
	}
	for !p.atPunct("}") {
		if p.peek().kind == tokEOF {
			return p.errorf(p.peek(), "unterminated Note block")
		}
		p.next()
	}
	p.next()
	return nil
}

func (p *parser) parseTable() error {
	p.next()
	schema, name, tok, err := p.parseQualified()
	if err != nil {
		return err
	}
	t := Table{Name: name, Schema: schema}
	if p.atKeyword("as") {
		p.next()
		alias, _, err := p.parseName()
		if err != nil {
			return err
		}
		t.Alias = alias
	}
	if p.atPunct("[") {
		settings, err := p.parseSettings()
		if err != nil {
			return err
		}
		for _, s := range settings {
			switch s.key {
			case "headercolor":
				if s.kind != valColor {
					return p.errorf(s.tok, "headercolor must be a color")
				}
				t.HeaderColor = s.value
			case "note":
				if s.kind != valString {
					return p.errorf(s.tok, "note must be a string")
				}
				t.Note = s.value
			default:
				return p.errorf(s.tok, "unknown table setting %q", s.key)
			}
		}
	}
	if _, err := p.expect("{"); err != nil {
		return err
	}

	var colToks, idxToks []token
	for !p.atPunct("}") {
		cur := p.peek()
		switch {
		case cur.kind == tokEOF:
			return p.errorf(tok, "unterminated table %q", name)
		case p.atKeyword("indexes") && p.peekAt(1).kind == tokPunct && p.peekAt(1).text == "{":
			toks, err := p.parseIndexes(&t)
			if err != nil {
				return err
			}
			idxToks = append(idxToks, toks...)
		case p.atKeyword("note") && p.peekAt(1).kind == tokPunct && (p.peekAt(1).text == ":" || p.peekAt(1).text == "{"):
			note, err := p.parseNote()
			if err != nil {
				return err
			}
			t.Note = note
		default:
			if err := p.parseColumn(&t); err != nil {
				return err
			}
			colToks = append(colToks, cur)
		}
	}
	p.next()

	p.schema.Tables = append(p.schema.Tables, t)
	p.tableToks = append(p.tableToks, tok)
	p.colToks = append(p.colToks, colToks)
	p.indexToks = append(p.indexToks, idxToks)
	return nil
}

func (p *parser) parseType(line int) (string, error) {
	t := p.next()
	if t.line != line {
		return "", p.errorf(t, "missing type for column")
	}
	if t.kind == tokQuoted {
		return t.text, nil
	}
	if t.kind != tokIdent {
		return "", p.errorf(t, "expected a column type, found %s", t.describe())
	}
	typ := t.text
	if p.atPunct(".") && p.peekAt(1).kind == tokIdent {
		p.next()
		typ += "." + p.next().text
	}
	if p.atPunct("(") {
		p.next()
		var args []string
		for !p.atPunct(")") {
			a := p.next()
			switch a.kind {
			case tokNumber, tokIdent:
				args = append(args, a.text)
			case tokString:
				args = append(args, "'"+a.text+"'")
			case tokPunct:
				if a.text == "," {
					continue
				}
				if a.text == "-" && p.peek().kind == tokNumber {
					args = append(args, "-"+p.next().text)
					continue
				}
				return "", p.errorf(a, "unexpected %s in type arguments", a.describe())
			default:
				return "", p.errorf(a, "unexpected %s in type arguments", a.describe())
			}
		}
		p.next()
		typ += "(" + strings.Join(args, ",") + ")"
	}
	for p.atPunct("[") && p.peekAt(1).kind == tokPunct && p.peekAt(1).text == "]" {
		p.next()
		p.next()
		typ += "[]"
	}
	return typ, nil
}

func (p *parser) parseColumn(t *Table) error {
	name, nameTok, err := p.parseName()
	if err != nil {
		return err
	}
	typ, err := p.parseType(nameTok.line)
	if err != nil {
		return err
	}
	col := Column{Name: name, Type: typ}

	if p.atPunct("[") {
		settings, err := p.parseSettings()
		if err != nil {
			return err
		}
		for _, s := range settings {
			switch s.key {
			case "pk", "primary key":
				col.PK = true
			case "null":
				col.NotNull = false
			case "not null":
				col.NotNull = true
			case "unique":
				col.Unique = true
			case "increment":
				col.Increment = true
			case "note":
				if s.kind != valString {
					return p.errorf(s.tok, "note must be a string")
				}
				col.Note = s.value
			case "default":
				d, err := p.defaultFrom(s)
				if err != nil {
					return err
				}
				col.Default = d
			case "check":
			case "ref":
				left := Endpoint{Schema: t.Schema, Table: t.Name, Columns: []string{name}}
				right := s.ref
				left.Relation, right.Relation = relationsFor(s.op)
				p.schema.Refs = append(p.schema.Refs, Ref{Endpoints: [2]Endpoint{left, right}})
				p.refToks = append(p.refToks, s.tok)
			default:
				return p.errorf(s.tok, "unknown column setting %q", s.key)
			}
		}
	}

	if nt := p.peek(); nt.kind != tokEOF && nt.line == nameTok.line && !(nt.kind == tokPunct && nt.text == "}") {
		return p.errorf(nt, "unexpected %s after column %q", nt.describe(), name)
	}
	t.Columns = append(t.Columns, col)
	return nil
}

func (p *parser) defaultFrom(s setting) (*Default, error) {
	switch s.kind {
	case valNumber:
		return &Default{Kind: DefaultNumber, Value: s.value}, nil
	case valString:
		return &Default{Kind: DefaultString, Value: s.value}, nil
	case valExpr:
		return &Default{Kind: DefaultExpression, Value: s.value}, nil
	case valIdent:
		switch strings.ToLower(s.value) {
		case "true", "false":
			return &Default{Kind: DefaultBoolean, Value: strings.ToLower(s.value)}, nil
		case "null":
			return &Default{Kind: DefaultNull, Value: "null"}, nil
		}
	}
	return nil, p.errorf(s.tok, "invalid default value")
}

func (p *parser) parseIndexes(t *Table) ([]token, error) {
	p.next()
	p.next()
	var toks []token
	for !p.atPunct("}") {
		start := p.peek()
		var idx Index
		switch {
		case start.kind == tokEOF:
			return nil, p.errorf(start, "unterminated indexes block")
		case p.atPunct("("):
			p.next()
			for !p.atPunct(")") {
				c := p.next()
				switch c.kind {
				case tokIdent, tokQuoted:
					idx.Columns = append(idx.Columns, IndexColumn{Value: c.text})
				case tokExpr:
					idx.Columns = append(idx.Columns, IndexColumn{Value: c.text, Expression: true})
				case tokPunct:
					if c.text != "," {
						return nil, p.errorf(c, "unexpected %s in index", c.describe())
					}
				default:
					return nil, p.errorf(c, "unexpected %s in index", c.describe())
				}
			}
			p.next()
		case start.kind == tokExpr:
			p.next()
			idx.Columns = []IndexColumn{{Value: start.text, Expression: true}}
		case start.kind == tokIdent || start.kind == tokQuoted:
			p.next()
			idx.Columns = []IndexColumn{{Value: start.text}}
		default:
			return nil, p.errorf(start, "unexpected %s in indexes", start.describe())
		}
		if len(idx.Columns) == 0 {
			return nil, p.errorf(start, "index has no columns")
		}
		if p.atPunct("[") && p.peek().line == start.line {
			settings, err := p.parseSettings()
			if err != nil {
				return nil, err
			}
			for _, s := range settings {
				switch s.key {
				case "pk", "primary key":
					idx.PK = true
				case "unique":
					idx.Unique = true
				case "name":
					idx.Name = s.value
				case "type":
					idx.Type = strings.ToLower(s.value)
				case "note":
					idx.Note = s.value
				default:
					return nil, p.errorf(s.tok, "unknown index setting %q", s.key)
				}
			}
		}
		t.Indexes = append(t.Indexes, idx)
		toks = append(toks, start)
	}
	p.next()
	return toks, nil
}

func (p *parser) parseRef() error {
	kw := p.next()
	name := ""
	if t := p.peek(); t.kind == tokIdent || t.kind == tokQuoted {
		name = p.next().text
	}
	if p.atPunct(":") {
		p.next()
		return p.parseRefLine(name, kw)
	}
	if _, err := p.expect("{"); err != nil {
		return err
	}
	for !p.atPunct("}") {
		if p.peek().kind == tokEOF {
			return p.errorf(kw, "unterminated Ref block")
		}
		if err := p.parseRefLine(name, p.peek()); err != nil {
			return err
		}
	}
	p.next()
	return nil
}

func (p *parser) parseRefLine(name string, tok token) error {
	left, err := p.parseEndpoint()
	if err != nil {
		return err
	}
	op, err := p.parseRelOp()
	if err != nil {
		return err
	}
	right, err := p.parseEndpoint()
	if err != nil {
		return err
	}
	left.Relation, right.Relation = relationsFor(op)
	ref := Ref{Name: name, Endpoints: [2]Endpoint{left, right}}
	if p.atPunct("[") {
		settings, err := p.parseSettings()
		if err != nil {
			return err
		}
		for _, s := range settings {
			switch s.key {
			case "delete":
				ref.OnDelete = strings.ToLower(s.value)
			case "update":
				ref.OnUpdate = strings.ToLower(s.value)
			case "color":
			default:
				return p.errorf(s.tok, "unknown ref setting %q", s.key)
			}
		}
	}
	p.schema.Refs = append(p.schema.Refs, ref)
	p.refToks = append(p.refToks, tok)
	return nil
}

func (p *parser) parseEnum() error {
	p.next()
	schema, name, tok, err := p.parseQualified()
	if err != nil {
		return err
	}
	if _, err := p.expect("{"); err != nil {
		return err
	}
	e := Enum{Name: name, Schema: schema}
	for !p.atPunct("}") {
		v := p.next()
		if v.kind != tokIdent && v.kind != tokQuoted && v.kind != tokString {
			return p.errorf(v, "expected an enum value, found %s", v.describe())
		}
		ev := EnumValue{Name: v.text}
		if p.atPunct("[") && p.peek().line == v.line {
			settings, err := p.parseSettings()
			if err != nil {
				return err
			}
			for _, s := range settings {
				if s.key != "note" {
					return p.errorf(s.tok, "unknown enum setting %q", s.key)
				}
				ev.Note = s.value
			}
		}
		for _, existing := range e.Values {
			if existing.Name == ev.Name {
				return p.errorf(v, "enum value %q already exists in %q", ev.Name, name)
			}
		}
		e.Values = append(e.Values, ev)
	}
	p.next()
	p.schema.Enums = append(p.schema.Enums, e)
	p.enumToks = append(p.enumToks, tok)
	return nil
}

func (p *parser) parseTableGroup() error {
	p.next()
	name, _, err := p.parseName()
	if err != nil {
		return err
	}
	if _, err := p.expect("{"); err != nil {
		return err
	}
	g := TableGroup{Name: name}
	var toks []token
	for !p.atPunct("}") {
		if p.peek().kind == tokEOF {
			return p.errorf(p.peek(), "unterminated TableGroup %q", name)
		}
		schema, table, tok, err := p.parseQualified()
		if err != nil {
			return err
		}
		g.Tables = append(g.Tables, TableRef{Schema: schema, Name: table})
		toks = append(toks, tok)
	}
	p.next()
	p.schema.TableGroups = append(p.schema.TableGroups, g)
	p.groupToks = append(p.groupToks, toks)
	return nil
}
