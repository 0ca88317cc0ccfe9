// Package introspect reads the schema of a live database into a dbml.Schema.
// PostgreSQL, MySQL and SQLite are supported through database/sql.
//
// Basic usage:
//
//	db, err := introspect.OpenPostgres(ctx, url)
//	schema, err := introspect.Postgres(ctx, db,
//	    introspect.WithSchemas("public", "auth"),
//	    introspect.WithExcludeTables("schema_migrations"),
//	)
package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"dbmlviewer/internal/dbml"
)

// Option configures introspection.
type Option func(*options)

type options struct {
	schemas       []string
	excludeTables []string
}

// WithSchemas selects the schemas (databases for MySQL) to read. Ignored for
// SQLite.
func WithSchemas(schemas ...string) Option {
	return func(o *options) {
		o.schemas = schemas
	}
}

// WithExcludeTables skips tables by name, or by schema-qualified name.
func WithExcludeTables(tables ...string) Option {
	return func(o *options) {
		o.excludeTables = tables
	}
}

func buildOptions(defaults []string, opts []Option) *options {
	o := &options{schemas: defaults}
	for _, opt := range opts {
		opt(o)
	}
	if len(o.schemas) == 0 {
		o.schemas = defaults
	}
	return o
}

func (o *options) excluded(schema, table string) bool {
	for _, ex := range o.excludeTables {
		if ex == table || ex == schema+"."+table {
			return true
		}
	}
	return false
}

func open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", driver, err)
	}
	return db, nil
}

// foreignKey is one referencing column pair of a constraint.
type foreignKey struct {
	// id separates unnamed constraints.
	id         int
	name       string
	fromColumn string
	toSchema   string
	toTable    string
	toColumn   string
	onDelete   string
	onUpdate   string
}

// appendRefs groups column pairs by constraint name into refs from the
// referencing (many) side to the referenced (one) side.
func appendRefs(s *dbml.Schema, schema, table string, fks []foreignKey) {
	var order []string
	byName := map[string]*dbml.Ref{}
	for _, fk := range fks {
		key := fmt.Sprintf("%s#%d", fk.name, fk.id)
		r, ok := byName[key]
		if !ok {
			r = &dbml.Ref{
				Name: fk.name,
				Endpoints: [2]dbml.Endpoint{
					{Schema: schema, Table: table, Relation: dbml.Many},
					{Schema: fk.toSchema, Table: fk.toTable, Relation: dbml.One},
				},
				OnDelete: refAction(fk.onDelete),
				OnUpdate: refAction(fk.onUpdate),
			}
			byName[key] = r
			order = append(order, key)
		}
		r.Endpoints[0].Columns = append(r.Endpoints[0].Columns, fk.fromColumn)
		r.Endpoints[1].Columns = append(r.Endpoints[1].Columns, fk.toColumn)
	}
	for _, key := range order {
		s.Refs = append(s.Refs, *byName[key])
	}
}

func refAction(rule string) string {
	switch a := strings.ToLower(strings.TrimSpace(rule)); a {
	case "", "no action":
		return ""
	default:
		return a
	}
}

// dropDanglingRefs removes refs whose tables were not read, e.g. because
// they live in a schema that was not selected.
func dropDanglingRefs(s *dbml.Schema) {
	s.Refs = slices.DeleteFunc(s.Refs, func(r dbml.Ref) bool {
		return s.Table(r.Endpoints[0].TableID()) == nil || s.Table(r.Endpoints[1].TableID()) == nil
	})
}

// markPrimaryKey flags a single pk column, or records a composite key as a
// pk index.
func markPrimaryKey(t *dbml.Table, cols []string) {
	switch len(cols) {
	case 0:
	case 1:
		if c := t.Column(cols[0]); c != nil {
			c.PK = true
		}
	default:
		idx := dbml.Index{PK: true}
		for _, c := range cols {
			idx.Columns = append(idx.Columns, dbml.IndexColumn{Value: c})
		}
		t.Indexes = append(t.Indexes, idx)
	}
}

// addIndex records a secondary index. A unique index on one column sets the
// column's unique flag instead.
func addIndex(t *dbml.Table, name string, cols []string, unique bool, method string) {
	if len(cols) == 0 {
		return
	}
	if unique && len(cols) == 1 {
		if c := t.Column(cols[0]); c != nil && !c.PK {
			c.Unique = true
			return
		}
	}
	idx := dbml.Index{Name: name, Unique: unique}
	if m := strings.ToLower(method); m != "" && m != "btree" {
		idx.Type = m
	}
	for _, c := range cols {
		idx.Columns = append(idx.Columns, dbml.IndexColumn{Value: c})
	}
	t.Indexes = append(t.Indexes, idx)
}

var (
	numberRe = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
	// 'text'::character varying
	castStringRe = regexp.MustCompile(`^'((?:[^']|'')*)'(::[\w\s."\[\]]+)?$`)
	castNumberRe = regexp.MustCompile(`^\(?(-?\d+(?:\.\d+)?)\)?::[\w\s]+$`)
)

// parseDefault classifies a default as reported by the catalog.
func parseDefault(raw string) *dbml.Default {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	lower := strings.ToLower(v)
	switch {
	case lower == "null" || strings.HasPrefix(lower, "null::"):
		return &dbml.Default{Kind: dbml.DefaultNull, Value: "null"}
	case lower == "true" || lower == "false":
		return &dbml.Default{Kind: dbml.DefaultBoolean, Value: lower}
	case numberRe.MatchString(v):
		return &dbml.Default{Kind: dbml.DefaultNumber, Value: v}
	}
	if m := castStringRe.FindStringSubmatch(v); m != nil {
		return &dbml.Default{Kind: dbml.DefaultString, Value: strings.ReplaceAll(m[1], "''", "'")}
	}
	if m := castNumberRe.FindStringSubmatch(v); m != nil {
		return &dbml.Default{Kind: dbml.DefaultNumber, Value: m[1]}
	}
	return &dbml.Default{Kind: dbml.DefaultExpression, Value: v}
}
