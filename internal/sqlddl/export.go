package sqlddl

import (
	"fmt"
	"strings"

	"dbmlviewer/internal/dbml"
)

// Export renders the schema as DDL for the given dialect. Relationships are
// emitted as ALTER TABLE ... ADD FOREIGN KEY on the "many" side; one-to-one
// refs put the key on the first endpoint and many-to-many refs get a
// junction table.
func Export(s *dbml.Schema, d Dialect) (string, error) {
	switch d {
	case Postgres, MySQL, MSSQL:
	default:
		return "", fmt.Errorf("unsupported dialect %q", d)
	}
	if s == nil {
		return "", nil
	}
	w := &writer{d: d, s: s}
	w.render()
	return w.String(), nil
}

type writer struct {
	d     Dialect
	s     *dbml.Schema
	stmts []string
}

func (w *writer) add(format string, args ...any) {
	w.stmts = append(w.stmts, fmt.Sprintf(format, args...))
}

func (w *writer) String() string {
	if len(w.stmts) == 0 {
		return ""
	}
	sep := ";\n\n"
	end := ";\n"
	if w.d == MSSQL {
		sep = "\nGO\n\n"
		end = "\nGO\n"
	}
	return strings.Join(w.stmts, sep) + end
}

func (w *writer) render() {
	w.schemas()
	if w.d == Postgres {
		for _, e := range w.s.Enums {
			values := make([]string, len(e.Values))
			for i, v := range e.Values {
				values[i] = sqlString(v.Name)
			}
			w.add("CREATE TYPE %s AS ENUM (%s)", w.d.qualified(e.Schema, e.Name), strings.Join(values, ", "))
		}
	}
	for _, t := range w.s.Tables {
		w.table(t)
	}
	junctions := w.junctions()
	for _, t := range w.s.Tables {
		w.indexes(t)
	}
	w.foreignKeys(junctions)
	w.comments()
}

func (w *writer) schemas() {
	seen := map[string]bool{}
	var names []string
	collect := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			names = append(names, s)
		}
	}
	for _, e := range w.s.Enums {
		collect(e.Schema)
	}
	for _, t := range w.s.Tables {
		collect(t.Schema)
	}
	for _, n := range names {
		if w.d == MSSQL {
			w.add("CREATE SCHEMA %s", w.d.quote(n))
		} else {
			w.add("CREATE SCHEMA IF NOT EXISTS %s", w.d.quote(n))
		}
	}
}

func (w *writer) enumFor(t dbml.Table, typ string) *dbml.Enum {
	if e := w.s.Enum(typ); e != nil {
		return e
	}
	if t.Schema != "" {
		return w.s.Enum(dbml.TableID(t.Schema, typ))
	}
	return nil
}

func (w *writer) table(t dbml.Table) {
	var pkCols []string
	for _, c := range t.Columns {
		if c.PK {
			pkCols = append(pkCols, c.Name)
		}
	}
	var pkIndex *dbml.Index
	for i := range t.Indexes {
		if t.Indexes[i].PK {
			pkIndex = &t.Indexes[i]
			break
		}
	}
	inlinePK := len(pkCols) == 1 && pkIndex == nil

	var lines []string
	for _, c := range t.Columns {
		lines = append(lines, "  "+w.column(t, c, inlinePK))
	}
	switch {
	case pkIndex != nil:
		cols := make([]string, len(pkIndex.Columns))
		for i, c := range pkIndex.Columns {
			cols[i] = w.d.quote(c.Value)
		}
		lines = append(lines, "  PRIMARY KEY ("+strings.Join(cols, ", ")+")")
	case len(pkCols) > 1:
		lines = append(lines, "  PRIMARY KEY ("+w.quoteList(pkCols)+")")
	}

	stmt := "CREATE TABLE " + w.d.qualified(t.Schema, t.Name) + " (\n" + strings.Join(lines, ",\n") + "\n)"
	if w.d == MySQL && t.Note != "" {
		stmt += " COMMENT=" + sqlString(t.Note)
	}
	w.add("%s", stmt)
}

func (w *writer) column(t dbml.Table, c dbml.Column, inlinePK bool) string {
	typ := c.Type
	var check string
	if e := w.enumFor(t, c.Type); e != nil {
		values := make([]string, len(e.Values))
		for i, v := range e.Values {
			values[i] = sqlString(v.Name)
		}
		switch w.d {
		case Postgres:
			typ = w.d.qualified(e.Schema, e.Name)
		case MySQL:
			typ = "ENUM (" + strings.Join(values, ", ") + ")"
		case MSSQL:
			typ = "nvarchar(255)"
			check = fmt.Sprintf("CHECK (%s IN (%s))", w.d.quote(c.Name), strings.Join(values, ", "))
		}
	}

	parts := []string{w.d.quote(c.Name)}
	if c.Increment && w.d == Postgres {
		switch strings.ToLower(typ) {
		case "int", "integer", "int4":
			typ = "SERIAL"
		case "bigint", "int8":
			typ = "BIGSERIAL"
		case "smallint", "int2":
			typ = "SMALLSERIAL"
		default:
			typ += " GENERATED BY DEFAULT AS IDENTITY"
		}
	}
	parts = append(parts, typ)

	if c.PK && inlinePK {
		parts = append(parts, "PRIMARY KEY")
	}
	if c.Increment {
		switch w.d {
		case MySQL:
			parts = append(parts, "AUTO_INCREMENT")
		case MSSQL:
			parts = append(parts, "IDENTITY(1, 1)")
		}
	}
	if c.Unique {
		parts = append(parts, "UNIQUE")
	}
	if c.NotNull {
		parts = append(parts, "NOT NULL")
	}
	if c.Default != nil {
		parts = append(parts, "DEFAULT "+w.defaultValue(*c.Default))
	}
	if check != "" {
		parts = append(parts, check)
	}
	if w.d == MySQL && c.Note != "" {
		parts = append(parts, "COMMENT "+sqlString(c.Note))
	}
	return strings.Join(parts, " ")
}

func (w *writer) defaultValue(d dbml.Default) string {
	switch d.Kind {
	case dbml.DefaultString:
		return sqlString(d.Value)
	case dbml.DefaultBoolean:
		if w.d == MSSQL {
			if d.Value == "true" {
				return "1"
			}
			return "0"
		}
		return strings.ToUpper(d.Value)
	case dbml.DefaultNull:
		return "NULL"
	}
	return d.Value
}

func (w *writer) quoteList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = w.d.quote(c)
	}
	return strings.Join(quoted, ", ")
}

func (w *writer) indexes(t dbml.Table) {
	for i, idx := range t.Indexes {
		if idx.PK {
			continue
		}
		name := idx.Name
		if name == "" {
			name = fmt.Sprintf("%s_index_%d", t.Name, i)
		}
		cols := make([]string, len(idx.Columns))
		for j, c := range idx.Columns {
			if c.Expression {
				cols[j] = c.Value
			} else {
				cols[j] = w.d.quote(c.Value)
			}
		}
		unique := ""
		if idx.Unique {
			unique = "UNIQUE "
		}
		target := w.d.qualified(t.Schema, t.Name)
		switch {
		case w.d == Postgres && idx.Type != "":
			w.add("CREATE %sINDEX %s ON %s USING %s (%s)", unique, w.d.quote(name), target, strings.ToUpper(idx.Type), strings.Join(cols, ", "))
		case w.d == MySQL && idx.Type != "":
			w.add("CREATE %sINDEX %s ON %s (%s) USING %s", unique, w.d.quote(name), target, strings.Join(cols, ", "), strings.ToUpper(idx.Type))
		default:
			w.add("CREATE %sINDEX %s ON %s (%s)", unique, w.d.quote(name), target, strings.Join(cols, ", "))
		}
	}
}

type junction struct {
	ref   dbml.Ref
	table dbml.Table
	cols  [2][]string
}

func (w *writer) junctions() []junction {
	var out []junction
	used := map[string]bool{}
	for _, t := range w.s.Tables {
		used[t.ID()] = true
	}
	for _, r := range w.s.Refs {
		if r.Kind() != dbml.ManyToMany {
			continue
		}
		a, b := r.Endpoints[0], r.Endpoints[1]
		name := a.Table + "_" + b.Table
		for used[dbml.TableID(a.Schema, name)] {
			name += "_ref"
		}
		used[dbml.TableID(a.Schema, name)] = true

		j := junction{ref: r, table: dbml.Table{Name: name, Schema: a.Schema}}
		var all []string
		for k, ep := range r.Endpoints {
			src := w.s.Table(ep.TableID())
			for _, col := range ep.Columns {
				colName := ep.Table + "_" + col
				typ := "int"
				if src != nil {
					if c := src.Column(col); c != nil {
						typ = c.Type
					}
				}
				j.table.Columns = append(j.table.Columns, dbml.Column{Name: colName, Type: typ, NotNull: true})
				j.cols[k] = append(j.cols[k], colName)
				all = append(all, colName)
			}
		}
		j.table.Indexes = []dbml.Index{{Columns: indexColumns(all), PK: true}}
		w.table(j.table)
		out = append(out, j)
	}
	return out
}

func (w *writer) foreignKey(name string, from dbml.Endpoint, to dbml.Endpoint, onDelete, onUpdate string) {
	constraint := ""
	if name != "" {
		constraint = "CONSTRAINT " + w.d.quote(name) + " "
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD %sFOREIGN KEY (%s) REFERENCES %s (%s)",
		w.d.qualified(from.Schema, from.Table), constraint, w.quoteList(from.Columns),
		w.d.qualified(to.Schema, to.Table), w.quoteList(to.Columns))
	if onDelete != "" {
		stmt += " ON DELETE " + strings.ToUpper(onDelete)
	}
	if onUpdate != "" {
		stmt += " ON UPDATE " + strings.ToUpper(onUpdate)
	}
	w.add("%s", stmt)
}

func (w *writer) foreignKeys(junctions []junction) {
	for _, r := range w.s.Refs {
		a, b := r.Endpoints[0], r.Endpoints[1]
		switch r.Kind() {
		case dbml.ManyToOne, dbml.OneToOne:
			w.foreignKey(r.Name, a, b, r.OnDelete, r.OnUpdate)
		case dbml.OneToMany:
			w.foreignKey(r.Name, b, a, r.OnDelete, r.OnUpdate)
		}
	}
	for _, j := range junctions {
		for k, ep := range j.ref.Endpoints {
			from := dbml.Endpoint{Schema: j.table.Schema, Table: j.table.Name, Columns: j.cols[k]}
			w.foreignKey("", from, ep, j.ref.OnDelete, j.ref.OnUpdate)
		}
	}
}

func (w *writer) comments() {
	for _, t := range w.s.Tables {
		switch w.d {
		case Postgres:
			if t.Note != "" {
				w.add("COMMENT ON TABLE %s IS %s", w.d.qualified(t.Schema, t.Name), sqlString(t.Note))
			}
			for _, c := range t.Columns {
				if c.Note != "" {
					w.add("COMMENT ON COLUMN %s.%s IS %s", w.d.qualified(t.Schema, t.Name), w.d.quote(c.Name), sqlString(c.Note))
				}
			}
		case MSSQL:
			schema := t.Schema
			if schema == "" {
				schema = w.d.defaultSchema()
			}
			if t.Note != "" {
				w.add("EXEC sp_addextendedproperty @name = N'Table_Description', @value = %s, @level0type = N'Schema', @level0name = %s, @level1type = N'Table', @level1name = %s",
					sqlString(t.Note), sqlString(schema), sqlString(t.Name))
			}
			for _, c := range t.Columns {
				if c.Note != "" {
					w.add("EXEC sp_addextendedproperty @name = N'Column_Description', @value = %s, @level0type = N'Schema', @level0name = %s, @level1type = N'Table', @level1name = %s, @level2type = N'Column', @level2name = %s",
						sqlString(c.Note), sqlString(schema), sqlString(t.Name), sqlString(c.Name))
				}
			}
		}
	}
}
