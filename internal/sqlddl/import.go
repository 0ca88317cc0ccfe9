package sqlddl

import (
	"fmt"
	"strings"

	"dbmlviewer/internal/dbml"
)

// Import converts SQL DDL into a schema model. Statements other than
// CREATE TABLE, CREATE INDEX, CREATE TYPE ... AS ENUM, ALTER TABLE ... ADD
// and COMMENT ON are ignored. Failures are *dbml.ParseError values.
func Import(sql string, d Dialect) (*dbml.Schema, error) {
	toks, err := lexSQL(sql, d)
	if err != nil {
		return nil, err
	}
	im := &importer{d: d, src: []rune(sql), tables: map[string]int{}}
	for _, stmt := range splitStatements(toks, d) {
		if err := im.statement(stmt); err != nil {
			return nil, err
		}
	}
	if err := im.finish(); err != nil {
		return nil, err
	}
	return dbml.Parse(dbml.Generate(&im.schema))
}

// ImportToDBML converts SQL DDL into canonical DBML text.
func ImportToDBML(sql string, d Dialect) (string, error) {
	s, err := Import(sql, d)
	if err != nil {
		return "", err
	}
	return dbml.Generate(s), nil
}

type pendingRef struct {
	ref dbml.Ref
	tok sqlToken
}

type importer struct {
	d      Dialect
	src    []rune
	schema dbml.Schema
	tables map[string]int
	refs   []pendingRef
}

type cursor struct {
	toks []sqlToken
	pos  int
}

func (c *cursor) peek() sqlToken { return c.toks[c.pos] }

func (c *cursor) peekAt(off int) sqlToken {
	if c.pos+off < len(c.toks) {
		return c.toks[c.pos+off]
	}
	return c.toks[len(c.toks)-1]
}

func (c *cursor) next() sqlToken {
	t := c.toks[c.pos]
	if t.kind != tEOF {
		c.pos++
	}
	return t
}

func (c *cursor) eof() bool { return c.peek().kind == tEOF }

func (c *cursor) at(word string) bool { return c.peek().is(word) }

func (c *cursor) atPunct(p string) bool { return c.peek().isPunct(p) }

func (c *cursor) accept(word string) bool {
	if c.at(word) {
		c.pos++
		return true
	}
	return false
}

func (c *cursor) acceptSeq(words ...string) bool {
	for i, w := range words {
		if !c.peekAt(i).is(w) {
			return false
		}
	}
	c.pos += len(words)
	return true
}

func (c *cursor) acceptPunct(p string) bool {
	if c.atPunct(p) {
		c.pos++
		return true
	}
	return false
}

func (c *cursor) expectWord(w string) error {
	t := c.next()
	if !t.is(w) {
		return parseErr(t, fmt.Sprintf("expected %s, found %s", w, describe(t)))
	}
	return nil
}

func (c *cursor) expectPunct(p string) error {
	t := c.next()
	if !t.isPunct(p) {
		return parseErr(t, fmt.Sprintf("expected %q, found %s", p, describe(t)))
	}
	return nil
}

func describe(t sqlToken) string {
	if t.kind == tEOF {
		return "end of statement"
	}
	return fmt.Sprintf("%q", t.text)
}

func (c *cursor) name() (string, sqlToken, error) {
	t := c.next()
	if t.kind != tWord && t.kind != tQuoted {
		return "", t, parseErr(t, fmt.Sprintf("expected an identifier, found %s", describe(t)))
	}
	return t.text, t, nil
}

func (c *cursor) dotted() ([]string, sqlToken, error) {
	first, tok, err := c.name()
	if err != nil {
		return nil, tok, err
	}
	parts := []string{first}
	for c.atPunct(".") {
		c.next()
		n, _, err := c.name()
		if err != nil {
			return nil, tok, err
		}
		parts = append(parts, n)
	}
	return parts, tok, nil
}

func (im *importer) normalizeSchema(s string) string {
	if s == "" || strings.EqualFold(s, im.d.defaultSchema()) || s == dbml.DefaultSchema {
		return ""
	}
	return s
}

func (im *importer) qualifiedName(c *cursor) (string, string, sqlToken, error) {
	parts, tok, err := c.dotted()
	if err != nil {
		return "", "", tok, err
	}
	switch len(parts) {
	case 1:
		return "", parts[0], tok, nil
	case 2:
		return im.normalizeSchema(parts[0]), parts[1], tok, nil
	case 3:
		return im.normalizeSchema(parts[1]), parts[2], tok, nil
	}
	return "", "", tok, parseErr(tok, fmt.Sprintf("invalid name %q", strings.Join(parts, ".")))
}

func (c *cursor) nameList() ([]string, error) {
	if err := c.expectPunct("("); err != nil {
		return nil, err
	}
	var names []string
	for {
		n, _, err := c.name()
		if err != nil {
			return nil, err
		}
		if c.atPunct("(") {
			c.skipParens()
		}
		c.accept("ASC")
		c.accept("DESC")
		names = append(names, n)
		if c.acceptPunct(",") {
			continue
		}
		if err := c.expectPunct(")"); err != nil {
			return nil, err
		}
		return names, nil
	}
}

// skipParens consumes a balanced parenthesized group starting at '('.
func (c *cursor) skipParens() {
	depth := 0
	for !c.eof() {
		t := c.next()
		switch {
		case t.isPunct("("):
			depth++
		case t.isPunct(")"):
			depth--
			if depth == 0 {
				return
			}
		}
	}
}

// atElementEnd reports a depth-zero ',' or ')' or the end of the statement.
func (c *cursor) atElementEnd() bool {
	return c.eof() || c.atPunct(",") || c.atPunct(")")
}

func (c *cursor) skipElement() {
	for !c.atElementEnd() {
		if c.atPunct("(") {
			c.skipParens()
			continue
		}
		c.next()
	}
}

func (im *importer) statement(toks []sqlToken) error {
	eof := sqlToken{kind: tEOF}
	if n := len(toks); n > 0 {
		eof.line, eof.col = toks[n-1].line, toks[n-1].col
		eof.start, eof.end = toks[n-1].end, toks[n-1].end
	}
	c := &cursor{toks: append(append([]sqlToken(nil), toks...), eof)}

	switch {
	case c.accept("CREATE"):
		c.acceptSeq("OR", "REPLACE")
		for c.accept("TEMPORARY") || c.accept("TEMP") || c.accept("UNLOGGED") {
		}
		switch {
		case c.accept("TABLE"):
			return im.createTable(c)
		case c.at("UNIQUE") || c.at("INDEX") || c.at("CLUSTERED") || c.at("NONCLUSTERED"):
			return im.createIndex(c)
		case c.accept("TYPE"):
			return im.createType(c)
		}
	case c.accept("ALTER"):
		if c.accept("TABLE") {
			return im.alterTable(c)
		}
	case c.accept("COMMENT"):
		if c.accept("ON") {
			return im.commentOn(c)
		}
	}
	return nil
}

func (im *importer) table(schema, name string) *dbml.Table {
	if i, ok := im.tables[dbml.TableID(schema, name)]; ok {
		return &im.schema.Tables[i]
	}
	return nil
}

func (im *importer) createTable(c *cursor) error {
	c.acceptSeq("IF", "NOT", "EXISTS")
	schema, name, tok, err := im.qualifiedName(c)
	if err != nil {
		return err
	}
	if !c.atPunct("(") {
		return nil
	}
	c.next()

	id := dbml.TableID(schema, name)
	if _, ok := im.tables[id]; ok {
		return parseErr(tok, fmt.Sprintf("table %q already exists", id))
	}
	im.schema.Tables = append(im.schema.Tables, dbml.Table{Name: name, Schema: schema})
	im.tables[id] = len(im.schema.Tables) - 1
	t := &im.schema.Tables[len(im.schema.Tables)-1]

	for {
		if c.eof() {
			return parseErr(c.peek(), fmt.Sprintf("unterminated CREATE TABLE %q", name))
		}
		if err := im.tableElement(t, c); err != nil {
			return err
		}
		if c.acceptPunct(",") {
			continue
		}
		if err := c.expectPunct(")"); err != nil {
			return err
		}
		break
	}

	for !c.eof() {
		if c.accept("COMMENT") {
			c.acceptPunct("=")
			if s := c.peek(); s.kind == tString {
				t.Note = c.next().text
			}
			continue
		}
		c.next()
	}
	return nil
}

func (im *importer) tableElement(t *dbml.Table, c *cursor) error {
	var constraint string
	if c.accept("CONSTRAINT") {
		n, _, err := c.name()
		if err != nil {
			return err
		}
		constraint = n
	}

	switch {
	case c.at("PRIMARY"):
		c.next()
		if err := c.expectWord("KEY"); err != nil {
			return err
		}
		c.accept("CLUSTERED")
		c.accept("NONCLUSTERED")
		cols, err := c.nameList()
		if err != nil {
			return err
		}
		setPrimaryKey(t, cols, constraint)
		c.skipElement()
		return nil

	case c.at("UNIQUE"):
		c.next()
		_ = c.accept("KEY") || c.accept("INDEX")
		c.accept("CLUSTERED")
		c.accept("NONCLUSTERED")
		if !c.atPunct("(") {
			n, _, err := c.name()
			if err != nil {
				return err
			}
			if constraint == "" {
				constraint = n
			}
		}
		cols, err := c.nameList()
		if err != nil {
			return err
		}
		if len(cols) == 1 {
			if col := t.Column(cols[0]); col != nil {
				col.Unique = true
				c.skipElement()
				return nil
			}
		}
		t.Indexes = append(t.Indexes, dbml.Index{Name: constraint, Columns: indexColumns(cols), Unique: true})
		c.skipElement()
		return nil

	case c.at("FOREIGN"):
		tok := c.next()
		if err := c.expectWord("KEY"); err != nil {
			return err
		}
		if !c.atPunct("(") {
			if _, _, err := c.name(); err != nil {
				return err
			}
		}
		cols, err := c.nameList()
		if err != nil {
			return err
		}
		if err := c.expectWord("REFERENCES"); err != nil {
			return err
		}
		if err := im.references(c, t, cols, constraint, tok); err != nil {
			return err
		}
		c.skipElement()
		return nil

	case c.at("CHECK"), c.at("FULLTEXT"), c.at("SPATIAL"), c.at("EXCLUDE"):
		c.skipElement()
		return nil

	case im.d == MySQL && (c.at("KEY") || c.at("INDEX")) && (c.peekAt(1).isPunct("(") || c.peekAt(2).isPunct("(")):
		c.next()
		name := ""
		if !c.atPunct("(") {
			n, _, err := c.name()
			if err != nil {
				return err
			}
			name = n
		}
		cols, err := c.nameList()
		if err != nil {
			return err
		}
		idx := dbml.Index{Name: name, Columns: indexColumns(cols)}
		if c.accept("USING") {
			idx.Type = strings.ToLower(c.next().text)
		}
		t.Indexes = append(t.Indexes, idx)
		c.skipElement()
		return nil
	}

	return im.column(t, c)
}

func setPrimaryKey(t *dbml.Table, cols []string, name string) {
	if len(cols) == 1 {
		if col := t.Column(cols[0]); col != nil {
			col.PK = true
			return
		}
	}
	t.Indexes = append(t.Indexes, dbml.Index{Name: name, Columns: indexColumns(cols), PK: true})
}

func indexColumns(cols []string) []dbml.IndexColumn {
	out := make([]dbml.IndexColumn, len(cols))
	for i, c := range cols {
		out[i] = dbml.IndexColumn{Value: c}
	}
	return out
}

var columnKeywords = map[string]bool{
	"CONSTRAINT": true, "PRIMARY": true, "NOT": true, "NULL": true, "UNIQUE": true,
	"DEFAULT": true, "REFERENCES": true, "AUTO_INCREMENT": true, "AUTOINCREMENT": true,
	"IDENTITY": true, "GENERATED": true, "COMMENT": true, "CHECK": true, "COLLATE": true,
	"ON": true, "FOREIGN": true,
}

func (c *cursor) atColumnKeyword() bool {
	t := c.peek()
	if t.kind != tWord {
		return false
	}
	up := strings.ToUpper(t.text)
	if up == "CHARACTER" || up == "CHARSET" {
		return c.peekAt(1).is("SET") || up == "CHARSET"
	}
	return columnKeywords[up]
}

func (im *importer) column(t *dbml.Table, c *cursor) error {
	name, tok, err := c.name()
	if err != nil {
		return err
	}
	if t.Column(name) != nil {
		return parseErr(tok, fmt.Sprintf("column %q already exists in table %q", name, t.ID()))
	}
	col := dbml.Column{Name: name}

	typ, enumValues, err := im.columnType(c)
	if err != nil {
		return err
	}
	if typ == "" {
		return parseErr(c.peek(), fmt.Sprintf("missing type for column %q", name))
	}
	switch strings.ToLower(typ) {
	case "serial", "serial4":
		typ, col.Increment = "integer", true
	case "bigserial", "serial8":
		typ, col.Increment = "bigint", true
	case "smallserial", "serial2":
		typ, col.Increment = "smallint", true
	}
	if enumValues != nil {
		enumName := t.Name + "_" + name + "_enum"
		e := dbml.Enum{Name: enumName, Schema: t.Schema}
		for _, v := range enumValues {
			e.Values = append(e.Values, dbml.EnumValue{Name: v})
		}
		im.schema.Enums = append(im.schema.Enums, e)
		typ = dbml.TableID(t.Schema, enumName)
	}
	col.Type = typ

	for !c.atElementEnd() {
		kw := c.next()
		switch {
		case kw.is("CONSTRAINT"):
			if _, _, err := c.name(); err != nil {
				return err
			}
		case kw.is("PRIMARY"):
			c.accept("KEY")
			c.accept("CLUSTERED")
			c.accept("NONCLUSTERED")
			col.PK = true
		case kw.is("NOT"):
			if c.accept("NULL") {
				col.NotNull = true
			}
		case kw.is("NULL"):
			col.NotNull = false
		case kw.is("UNIQUE"):
			c.accept("KEY")
			col.Unique = true
		case kw.is("DEFAULT"):
			col.Default = im.defaultValue(c)
		case kw.is("FOREIGN"):
			c.accept("KEY")
		case kw.is("REFERENCES"):
			if err := im.references(c, t, []string{name}, "", kw); err != nil {
				return err
			}
		case kw.is("AUTO_INCREMENT"), kw.is("AUTOINCREMENT"):
			col.Increment = true
		case kw.is("IDENTITY"):
			col.Increment = true
			if c.atPunct("(") {
				c.skipParens()
			}
		case kw.is("GENERATED"):
			_ = c.accept("ALWAYS") || c.acceptSeq("BY", "DEFAULT")
			c.accept("AS")
			if c.accept("IDENTITY") {
				col.Increment = true
			}
			if c.atPunct("(") {
				c.skipParens()
			}
			_ = c.accept("STORED") || c.accept("VIRTUAL")
		case kw.is("COMMENT"):
			if s := c.peek(); s.kind == tString {
				col.Note = c.next().text
			}
		case kw.is("CHECK"):
			if c.atPunct("(") {
				c.skipParens()
			}
		case kw.is("COLLATE"), kw.is("CHARSET"):
			c.next()
		case kw.is("CHARACTER"):
			c.accept("SET")
			c.next()
		case kw.is("ON"):
			c.accept("UPDATE")
			c.next()
			if c.atPunct("(") {
				c.skipParens()
			}
		case kw.isPunct("("):
			c.pos--
			c.skipParens()
		}
	}

	t.Columns = append(t.Columns, col)
	return nil
}

// columnType reads the type words and arguments up to the first constraint.
func (im *importer) columnType(c *cursor) (string, []string, error) {
	var sb strings.Builder
	var enumValues []string
	first := ""
	for !c.atElementEnd() && !c.atColumnKeyword() {
		t := c.peek()
		switch {
		case t.kind == tWord || t.kind == tQuoted:
			c.next()
			if first == "" {
				first = strings.ToUpper(t.text)
			}
			if sb.Len() > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(t.text)
		case t.isPunct("."):
			c.next()
			sb.WriteString(".")
			if n := c.peek(); n.kind == tWord || n.kind == tQuoted {
				sb.WriteString(c.next().text)
			}
		case t.isPunct("("):
			c.next()
			var args []string
			for !c.eof() && !c.atPunct(")") {
				a := c.next()
				switch {
				case a.isPunct(","):
				case a.kind == tString:
					args = append(args, sqlString(a.text))
					if first == "ENUM" || first == "SET" {
						enumValues = append(enumValues, a.text)
					}
				default:
					args = append(args, a.text)
				}
			}
			if err := c.expectPunct(")"); err != nil {
				return "", nil, err
			}
			if (first == "ENUM" || first == "SET") && im.d == MySQL {
				continue
			}
			sb.WriteString("(" + strings.Join(args, ",") + ")")
		case t.isPunct("["):
			c.next()
			for !c.eof() && !c.atPunct("]") {
				c.next()
			}
			c.next()
			sb.WriteString("[]")
		default:
			return sb.String(), enumValues, nil
		}
	}
	if im.d != MySQL {
		enumValues = nil
	}
	return sb.String(), enumValues, nil
}

func (im *importer) defaultValue(c *cursor) *dbml.Default {
	start := c.pos
	first := true
	for !c.atElementEnd() && (first || !c.atColumnKeyword()) {
		first = false
		if c.atPunct("(") {
			c.skipParens()
			continue
		}
		c.next()
	}
	toks := c.toks[start:c.pos]
	for len(toks) >= 2 && toks[0].isPunct("(") && toks[len(toks)-1].isPunct(")") && balancedWrap(toks) {
		toks = toks[1 : len(toks)-1]
	}
	if len(toks) == 0 {
		return nil
	}

	t := toks[0]
	switch {
	case len(toks) == 1 && t.kind == tString:
		return &dbml.Default{Kind: dbml.DefaultString, Value: t.text}
	case t.kind == tString && len(toks) >= 2 && toks[1].isPunct("::"):
		return &dbml.Default{Kind: dbml.DefaultString, Value: t.text}
	case len(toks) == 1 && t.kind == tNumber:
		return &dbml.Default{Kind: dbml.DefaultNumber, Value: t.text}
	case len(toks) == 2 && t.isPunct("-") && toks[1].kind == tNumber:
		return &dbml.Default{Kind: dbml.DefaultNumber, Value: "-" + toks[1].text}
	case len(toks) == 1 && (t.is("TRUE") || t.is("FALSE")):
		return &dbml.Default{Kind: dbml.DefaultBoolean, Value: strings.ToLower(t.text)}
	case len(toks) == 1 && t.is("NULL"):
		return &dbml.Default{Kind: dbml.DefaultNull, Value: "null"}
	}
	raw := string(im.src[toks[0].start:toks[len(toks)-1].end])
	return &dbml.Default{Kind: dbml.DefaultExpression, Value: strings.Join(strings.Fields(raw), " ")}
}

// balancedWrap reports whether the outer parens of toks enclose all of it.
func balancedWrap(toks []sqlToken) bool {
	depth := 0
	for i, t := range toks {
		switch {
		case t.isPunct("("):
			depth++
		case t.isPunct(")"):
			depth--
			if depth == 0 && i != len(toks)-1 {
				return false
			}
		}
	}
	return depth == 0
}

func (im *importer) references(c *cursor, t *dbml.Table, cols []string, name string, tok sqlToken) error {
	schema, table, _, err := im.qualifiedName(c)
	if err != nil {
		return err
	}
	var target []string
	if c.atPunct("(") {
		target, err = c.nameList()
		if err != nil {
			return err
		}
	}
	ref := dbml.Ref{
		Name: name,
		Endpoints: [2]dbml.Endpoint{
			{Schema: t.Schema, Table: t.Name, Columns: cols, Relation: dbml.Many},
			{Schema: schema, Table: table, Columns: target, Relation: dbml.One},
		},
	}
	for {
		switch {
		case c.acceptSeq("ON", "DELETE"):
			ref.OnDelete = refAction(c)
		case c.acceptSeq("ON", "UPDATE"):
			ref.OnUpdate = refAction(c)
		case c.accept("MATCH"):
			c.next()
		default:
			im.refs = append(im.refs, pendingRef{ref: ref, tok: tok})
			return nil
		}
	}
}

func refAction(c *cursor) string {
	switch {
	case c.acceptSeq("SET", "NULL"):
		return "set null"
	case c.acceptSeq("SET", "DEFAULT"):
		return "set default"
	case c.acceptSeq("NO", "ACTION"):
		return "no action"
	}
	return strings.ToLower(c.next().text)
}

func (im *importer) createIndex(c *cursor) error {
	unique := c.accept("UNIQUE")
	_ = c.accept("CLUSTERED") || c.accept("NONCLUSTERED")
	if err := c.expectWord("INDEX"); err != nil {
		return err
	}
	c.accept("CONCURRENTLY")
	c.acceptSeq("IF", "NOT", "EXISTS")
	name := ""
	if !c.at("ON") {
		parts, _, err := c.dotted()
		if err != nil {
			return err
		}
		name = parts[len(parts)-1]
	}
	if err := c.expectWord("ON"); err != nil {
		return err
	}
	c.accept("ONLY")
	schema, table, tok, err := im.qualifiedName(c)
	if err != nil {
		return err
	}
	t := im.table(schema, table)
	if t == nil {
		return parseErr(tok, fmt.Sprintf("table %q not found", dbml.TableID(schema, table)))
	}

	idx := dbml.Index{Name: name, Unique: unique}
	if c.accept("USING") {
		idx.Type = strings.ToLower(c.next().text)
	}
	if err := c.expectPunct("("); err != nil {
		return err
	}
	for {
		start := c.pos
		for !c.atElementEnd() {
			if c.atPunct("(") {
				c.skipParens()
				continue
			}
			c.next()
		}
		part := c.toks[start:c.pos]
		for len(part) > 1 && (part[len(part)-1].is("ASC") || part[len(part)-1].is("DESC")) {
			part = part[:len(part)-1]
		}
		switch {
		case len(part) == 0:
			return parseErr(c.peek(), "empty index column")
		case len(part) == 1 && (part[0].kind == tWord || part[0].kind == tQuoted),
			len(part) == 4 && part[1].isPunct("(") && (part[0].kind == tWord || part[0].kind == tQuoted) && im.d == MySQL:
			idx.Columns = append(idx.Columns, dbml.IndexColumn{Value: part[0].text})
		default:
			raw := string(im.src[part[0].start:part[len(part)-1].end])
			idx.Columns = append(idx.Columns, dbml.IndexColumn{Value: raw, Expression: true})
		}
		if c.acceptPunct(",") {
			continue
		}
		if err := c.expectPunct(")"); err != nil {
			return err
		}
		break
	}
	if c.accept("USING") {
		idx.Type = strings.ToLower(c.next().text)
	}
	t.Indexes = append(t.Indexes, idx)
	return nil
}

func (im *importer) createType(c *cursor) error {
	schema, name, tok, err := im.qualifiedName(c)
	if err != nil {
		return err
	}
	if !c.acceptSeq("AS", "ENUM") {
		return nil
	}
	if err := c.expectPunct("("); err != nil {
		return err
	}
	e := dbml.Enum{Name: name, Schema: schema}
	for !c.acceptPunct(")") {
		v := c.next()
		switch {
		case v.kind == tString:
			e.Values = append(e.Values, dbml.EnumValue{Name: v.text})
		case v.isPunct(","):
		default:
			return parseErr(v, fmt.Sprintf("unexpected %s in enum %q", describe(v), name))
		}
	}
	if im.schema.Enum(e.ID()) != nil {
		return parseErr(tok, fmt.Sprintf("enum %q already exists", e.ID()))
	}
	im.schema.Enums = append(im.schema.Enums, e)
	return nil
}

func (im *importer) alterTable(c *cursor) error {
	c.acceptSeq("IF", "EXISTS")
	c.accept("ONLY")
	schema, name, tok, err := im.qualifiedName(c)
	if err != nil {
		return err
	}
	t := im.table(schema, name)
	if t == nil {
		return parseErr(tok, fmt.Sprintf("table %q not found", dbml.TableID(schema, name)))
	}
	for !c.eof() {
		if c.accept("ADD") {
			if c.accept("COLUMN") {
				c.acceptSeq("IF", "NOT", "EXISTS")
			}
			if err := im.tableElement(t, c); err != nil {
				return err
			}
		} else {
			c.skipElement()
		}
		if !c.acceptPunct(",") {
			c.skipElement()
			if !c.eof() {
				c.next()
			}
		}
	}
	return nil
}

func (im *importer) commentOn(c *cursor) error {
	kind := c.next()
	parts, tok, err := c.dotted()
	if err != nil {
		return err
	}
	if !c.accept("IS") {
		return nil
	}
	text := c.next()
	if text.kind != tString {
		return nil
	}

	switch {
	case kind.is("TABLE"):
		schema, name := "", parts[len(parts)-1]
		if len(parts) > 1 {
			schema = im.normalizeSchema(parts[len(parts)-2])
		}
		t := im.table(schema, name)
		if t == nil {
			return parseErr(tok, fmt.Sprintf("table %q not found", dbml.TableID(schema, name)))
		}
		t.Note = text.text
	case kind.is("COLUMN"):
		if len(parts) < 2 {
			return parseErr(tok, "COMMENT ON COLUMN needs table.column")
		}
		schema, name, col := "", parts[len(parts)-2], parts[len(parts)-1]
		if len(parts) > 2 {
			schema = im.normalizeSchema(parts[len(parts)-3])
		}
		t := im.table(schema, name)
		if t == nil {
			return parseErr(tok, fmt.Sprintf("table %q not found", dbml.TableID(schema, name)))
		}
		column := t.Column(col)
		if column == nil {
			return parseErr(tok, fmt.Sprintf("column %q not found in table %q", col, t.ID()))
		}
		column.Note = text.text
	}
	return nil
}

func primaryKey(t *dbml.Table) []string {
	var cols []string
	for _, c := range t.Columns {
		if c.PK {
			cols = append(cols, c.Name)
		}
	}
	if len(cols) > 0 {
		return cols
	}
	for _, idx := range t.Indexes {
		if idx.PK {
			for _, c := range idx.Columns {
				cols = append(cols, c.Value)
			}
			return cols
		}
	}
	return nil
}

func (im *importer) finish() error {
	seen := map[string]bool{}
	for _, p := range im.refs {
		ref := p.ref
		for k := range ref.Endpoints {
			ep := &ref.Endpoints[k]
			t := im.table(ep.Schema, ep.Table)
			if t == nil {
				return parseErr(p.tok, fmt.Sprintf("table %q not found", ep.TableID()))
			}
			if len(ep.Columns) == 0 {
				ep.Columns = primaryKey(t)
				if len(ep.Columns) == 0 {
					return parseErr(p.tok, fmt.Sprintf("referenced table %q has no primary key", t.ID()))
				}
			}
			for _, col := range ep.Columns {
				if t.Column(col) == nil {
					return parseErr(p.tok, fmt.Sprintf("column %q not found in table %q", col, t.ID()))
				}
			}
		}
		key := refKey(ref.Endpoints[0]) + "|" + refKey(ref.Endpoints[1])
		alt := refKey(ref.Endpoints[1]) + "|" + refKey(ref.Endpoints[0])
		if seen[key] || seen[alt] {
			continue
		}
		seen[key] = true
		im.schema.Refs = append(im.schema.Refs, ref)
	}
	return nil
}

func refKey(e dbml.Endpoint) string {
	return e.TableID() + "(" + strings.Join(e.Columns, ",") + ")"
}
