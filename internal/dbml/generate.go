package dbml

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	plainIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	typeArg    = `(?:-?[0-9]+(?:\.[0-9]+)?|[A-Za-z_][A-Za-z0-9_]*)`
	plainType  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)?(?:\(` + typeArg + `(?:,` + typeArg + `)*\))?(?:\[\])*$`)
)

// Generate renders a schema as canonical DBML. Declarations keep document
// order and every ref, inline or not, is written as a top-level Ref.
func Generate(s *Schema) string {
	if s == nil {
		return ""
	}
	var b strings.Builder

	if s.Project != nil {
		generateProject(&b, s.Project)
		b.WriteString("\n")
	}
	for _, e := range s.Enums {
		generateEnum(&b, e)
		b.WriteString("\n")
	}
	for _, t := range s.Tables {
		generateTable(&b, t)
		b.WriteString("\n")
	}
	for _, g := range s.TableGroups {
		generateGroup(&b, g)
		b.WriteString("\n")
	}
	for _, r := range s.Refs {
		generateRef(&b, r)
	}

	out := strings.TrimRight(b.String(), "\n")
	if out == "" {
		return ""
	}
	return out + "\n"
}

func generateProject(b *strings.Builder, p *Project) {
	if p.Name != "" {
		fmt.Fprintf(b, "Project %s {\n", quoteName(p.Name))
	} else {
		b.WriteString("Project {\n")
	}
	if p.DatabaseType != "" {
		fmt.Fprintf(b, "  database_type: %s\n", quoteString(p.DatabaseType))
	}
	if p.Note != "" {
		fmt.Fprintf(b, "  Note: %s\n", quoteString(p.Note))
	}
	b.WriteString("}\n")
}

func generateEnum(b *strings.Builder, e Enum) {
	fmt.Fprintf(b, "Enum %s {\n", qualifiedName(e.Schema, e.Name))
	for _, v := range e.Values {
		b.WriteString("  " + quoteName(v.Name))
		if v.Note != "" {
			fmt.Fprintf(b, " [note: %s]", quoteString(v.Note))
		}
		b.WriteString("\n")
	}
	b.WriteString("}\n")
}

func generateTable(b *strings.Builder, t Table) {
	b.WriteString("Table " + qualifiedName(t.Schema, t.Name))
	if t.Alias != "" {
		b.WriteString(" as " + quoteName(t.Alias))
	}
	if t.HeaderColor != "" {
		fmt.Fprintf(b, " [headercolor: %s]", t.HeaderColor)
	}
	b.WriteString(" {\n")

	for _, c := range t.Columns {
		generateColumn(b, c)
	}

	if len(t.Indexes) > 0 {
		b.WriteString("\n  indexes {\n")
		for _, idx := range t.Indexes {
			generateIndex(b, idx)
		}
		b.WriteString("  }\n")
	}

	if t.Note != "" {
		fmt.Fprintf(b, "\n  Note: %s\n", quoteString(t.Note))
	}
	b.WriteString("}\n")
}

func generateColumn(b *strings.Builder, c Column) {
	typ := c.Type
	if !plainType.MatchString(typ) {
		typ = quoteIdent(typ)
	}
	fmt.Fprintf(b, "  %s %s", quoteName(c.Name), typ)

	var attrs []string
	if c.PK {
		attrs = append(attrs, "pk")
	}
	if c.Increment {
		attrs = append(attrs, "increment")
	}
	if c.Unique {
		attrs = append(attrs, "unique")
	}
	if c.NotNull {
		attrs = append(attrs, "not null")
	}
	if c.Default != nil {
		attrs = append(attrs, "default: "+formatDefault(*c.Default))
	}
	if c.Note != "" {
		attrs = append(attrs, "note: "+quoteString(c.Note))
	}
	if len(attrs) > 0 {
		fmt.Fprintf(b, " [%s]", strings.Join(attrs, ", "))
	}
	b.WriteString("\n")
}

func formatDefault(d Default) string {
	switch d.Kind {
	case DefaultString:
		return quoteString(d.Value)
	case DefaultExpression:
		return "`" + d.Value + "`"
	default:
		return d.Value
	}
}

func generateIndex(b *strings.Builder, idx Index) {
	b.WriteString("    ")
	if len(idx.Columns) == 1 {
		b.WriteString(formatIndexColumn(idx.Columns[0]))
	} else {
		parts := make([]string, len(idx.Columns))
		for i, c := range idx.Columns {
			parts[i] = formatIndexColumn(c)
		}
		b.WriteString("(" + strings.Join(parts, ", ") + ")")
	}

	var attrs []string
	if idx.PK {
		attrs = append(attrs, "pk")
	}
	if idx.Unique {
		attrs = append(attrs, "unique")
	}
	if idx.Name != "" {
		attrs = append(attrs, "name: "+quoteString(idx.Name))
	}
	if idx.Type != "" {
		attrs = append(attrs, "type: "+idx.Type)
	}
	if idx.Note != "" {
		attrs = append(attrs, "note: "+quoteString(idx.Note))
	}
	if len(attrs) > 0 {
		fmt.Fprintf(b, " [%s]", strings.Join(attrs, ", "))
	}
	b.WriteString("\n")
}

func formatIndexColumn(c IndexColumn) string {
	if c.Expression {
		return "`" + c.Value + "`"
	}
	return quoteName(c.Value)
}

func generateGroup(b *strings.Builder, g TableGroup) {
	fmt.Fprintf(b, "TableGroup %s {\n", quoteName(g.Name))
	for _, t := range g.Tables {
		b.WriteString("  " + qualifiedName(t.Schema, t.Name) + "\n")
	}
	b.WriteString("}\n")
}

func generateRef(b *strings.Builder, r Ref) {
	b.WriteString("Ref")
	if r.Name != "" {
		b.WriteString(" " + quoteName(r.Name))
	}
	fmt.Fprintf(b, ": %s %s %s", formatEndpoint(r.Endpoints[0]), RefOperator(r), formatEndpoint(r.Endpoints[1]))

	var attrs []string
	if r.OnDelete != "" {
		attrs = append(attrs, "delete: "+r.OnDelete)
	}
	if r.OnUpdate != "" {
		attrs = append(attrs, "update: "+r.OnUpdate)
	}
	if len(attrs) > 0 {
		fmt.Fprintf(b, " [%s]", strings.Join(attrs, ", "))
	}
	b.WriteString("\n")
}

// RefOperator returns the DBML operator for a ref's endpoint relations.
func RefOperator(r Ref) string {
	switch r.Kind() {
	case ManyToOne:
		return ">"
	case OneToMany:
		return "<"
	case OneToOne:
		return "-"
	}
	return "<>"
}

func formatEndpoint(e Endpoint) string {
	var cols string
	if len(e.Columns) == 1 {
		cols = quoteName(e.Columns[0])
	} else {
		quoted := make([]string, len(e.Columns))
		for i, c := range e.Columns {
			quoted[i] = quoteName(c)
		}
		cols = "(" + strings.Join(quoted, ", ") + ")"
	}
	return qualifiedName(e.Schema, e.Table) + "." + cols
}

func qualifiedName(schema, name string) string {
	if schema == "" || schema == DefaultSchema {
		return quoteName(name)
	}
	return quoteName(schema) + "." + quoteName(name)
}

func quoteName(s string) string {
	if plainIdent.MatchString(s) {
		return s
	}
	return quoteIdent(s)
}

func quoteIdent(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}

func quoteString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\t", `\t`, "\r", `\r`)
	return "'" + r.Replace(s) + "'"
}
