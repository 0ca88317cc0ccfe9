package introspect

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"dbmlviewer/internal/dbml"
)

// OpenMySQL connects with a go-sql-driver DSN such as
// user:pass@tcp(localhost:3306)/app.
func OpenMySQL(ctx context.Context, dsn string) (*sql.DB, error) {
	return open(ctx, "mysql", dsn)
}

// MySQL reads the given databases, or the connection's current database.
// With a single database tables are unqualified; with several each table is
// qualified by its database name.
func MySQL(ctx context.Context, db *sql.DB, opts ...Option) (*dbml.Schema, error) {
	o := buildOptions(nil, opts)
	if len(o.schemas) == 0 {
		var current sql.NullString
		if err := db.QueryRowContext(ctx, "SELECT DATABASE()").Scan(&current); err != nil {
			return nil, fmt.Errorf("failed to get current database: %w", err)
		}
		if !current.Valid || current.String == "" {
			return nil, errors.New("no database selected")
		}
		o.schemas = []string{current.String}
	}
	qualify := func(name string) string {
		if len(o.schemas) == 1 && name == o.schemas[0] {
			return ""
		}
		return name
	}

	s := &dbml.Schema{}
	for _, schemaName := range o.schemas {
		tables, err := myTables(ctx, db, schemaName)
		if err != nil {
			return nil, fmt.Errorf("failed to get tables for schema %s: %w", schemaName, err)
		}
		for _, t := range tables {
			if o.excluded(schemaName, t.Name) {
				continue
			}
			t.Schema = qualify(schemaName)

			cols, enums, err := myColumns(ctx, db, schemaName, &t)
			if err != nil {
				return nil, fmt.Errorf("failed to get columns for table %s.%s: %w", schemaName, t.Name, err)
			}
			t.Columns = cols
			s.Enums = append(s.Enums, enums...)

			pk, err := myPrimaryKey(ctx, db, schemaName, t.Name)
			if err != nil {
				return nil, fmt.Errorf("failed to get primary keys for table %s.%s: %w", schemaName, t.Name, err)
			}
			markPrimaryKey(&t, pk)

			if err := myIndexes(ctx, db, schemaName, &t); err != nil {
				return nil, fmt.Errorf("failed to get indexes for table %s.%s: %w", schemaName, t.Name, err)
			}

			fks, err := myForeignKeys(ctx, db, schemaName, t.Name)
			if err != nil {
				return nil, fmt.Errorf("failed to get foreign keys for table %s.%s: %w", schemaName, t.Name, err)
			}
			for i := range fks {
				fks[i].toSchema = qualify(fks[i].toSchema)
			}
			appendRefs(s, t.Schema, t.Name, fks)

			s.Tables = append(s.Tables, t)
		}
	}
	dropDanglingRefs(s)
	return s, nil
}

func myTables(ctx context.Context, db *sql.DB, schemaName string) ([]dbml.Table, error) {
	query := `
		SELECT table_name, COALESCE(table_comment, '')
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`
	rows, err := db.QueryContext(ctx, query, schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []dbml.Table
	for rows.Next() {
		var t dbml.Table
		if err := rows.Scan(&t.Name, &t.Note); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// myColumns also returns one enum per ENUM column, named
// <table>_<column>_enum.
func myColumns(ctx context.Context, db *sql.DB, schemaName string, t *dbml.Table) ([]dbml.Column, []dbml.Enum, error) {
	query := `
		SELECT column_name, column_type, data_type, is_nullable, column_default,
			COALESCE(extra, ''), COALESCE(column_comment, '')
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position
	`
	rows, err := db.QueryContext(ctx, query, schemaName, t.Name)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var cols []dbml.Column
	var enums []dbml.Enum
	for rows.Next() {
		var col dbml.Column
		var columnType, dataType, nullable, extra string
		var def sql.NullString
		if err := rows.Scan(&col.Name, &columnType, &dataType, &nullable, &def, &extra, &col.Note); err != nil {
			return nil, nil, err
		}
		col.Type = columnType
		col.NotNull = nullable == "NO"
		col.Increment = strings.Contains(strings.ToLower(extra), "auto_increment")
		if def.Valid {
			col.Default = mysqlDefault(def.String, dataType, extra)
		}
		if strings.EqualFold(dataType, "enum") {
			e := dbml.Enum{Name: t.Name + "_" + col.Name + "_enum", Schema: t.Schema}
			for _, v := range enumValues(columnType) {
				e.Values = append(e.Values, dbml.EnumValue{Name: v})
			}
			enums = append(enums, e)
			col.Type = e.ID()
		}
		cols = append(cols, col)
	}
	return cols, enums, rows.Err()
}

// enumValues parses enum('a','b','it''s').
func enumValues(columnType string) []string {
	start := strings.Index(columnType, "(")
	end := strings.LastIndex(columnType, ")")
	if start < 0 || end <= start {
		return nil
	}
	var values []string
	body := columnType[start+1 : end]
	for i := 0; i < len(body); i++ {
		if body[i] != '\'' {
			continue
		}
		var b strings.Builder
		for i++; i < len(body); i++ {
			if body[i] == '\'' {
				if i+1 < len(body) && body[i+1] == '\'' {
					b.WriteByte('\'')
					i++
					continue
				}
				break
			}
			b.WriteByte(body[i])
		}
		values = append(values, b.String())
	}
	return values
}

// mysqlDefault classifies information_schema.columns.column_default, which
// holds string literals unquoted.
func mysqlDefault(raw, dataType, extra string) *dbml.Default {
	if strings.Contains(strings.ToUpper(extra), "DEFAULT_GENERATED") {
		return &dbml.Default{Kind: dbml.DefaultExpression, Value: raw}
	}
	switch strings.ToLower(dataType) {
	case "char", "varchar", "text", "tinytext", "mediumtext", "longtext", "enum", "set", "date", "datetime", "timestamp", "time", "json":
		if strings.EqualFold(raw, "null") {
			return &dbml.Default{Kind: dbml.DefaultNull, Value: "null"}
		}
		if strings.HasPrefix(raw, "'") {
			return parseDefault(raw)
		}
		return &dbml.Default{Kind: dbml.DefaultString, Value: raw}
	}
	return parseDefault(raw)
}

func myPrimaryKey(ctx context.Context, db *sql.DB, schemaName, tableName string) ([]string, error) {
	query := `
		SELECT column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ? AND table_name = ? AND constraint_name = 'PRIMARY'
		ORDER BY ordinal_position
	`
	rows, err := db.QueryContext(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func myIndexes(ctx context.Context, db *sql.DB, schemaName string, t *dbml.Table) error {
	query := `
		SELECT index_name, non_unique, index_type, column_name
		FROM information_schema.statistics
		WHERE table_schema = ? AND table_name = ? AND index_name <> 'PRIMARY'
		ORDER BY index_name, seq_in_index
	`
	rows, err := db.QueryContext(ctx, query, schemaName, t.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	type index struct {
		name, method string
		unique       bool
		cols         []string
	}
	var indexes []*index
	for rows.Next() {
		var name, method string
		var nonUnique int
		var col sql.NullString
		if err := rows.Scan(&name, &nonUnique, &method, &col); err != nil {
			return err
		}
		if len(indexes) == 0 || indexes[len(indexes)-1].name != name {
			indexes = append(indexes, &index{name: name, method: method, unique: nonUnique == 0})
		}
		if col.Valid {
			last := indexes[len(indexes)-1]
			last.cols = append(last.cols, col.String)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, idx := range indexes {
		addIndex(t, idx.name, idx.cols, idx.unique, idx.method)
	}
	return nil
}

func myForeignKeys(ctx context.Context, db *sql.DB, schemaName, tableName string) ([]foreignKey, error) {
	query := `
		SELECT kcu.constraint_name, kcu.column_name,
			kcu.referenced_table_schema, kcu.referenced_table_name, kcu.referenced_column_name,
			rc.delete_rule, rc.update_rule
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.referential_constraints rc
			ON rc.constraint_schema = kcu.constraint_schema
			AND rc.constraint_name = kcu.constraint_name
		WHERE kcu.table_schema = ? AND kcu.table_name = ?
			AND kcu.referenced_table_name IS NOT NULL
		ORDER BY kcu.constraint_name, kcu.ordinal_position
	`
	rows, err := db.QueryContext(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []foreignKey
	for rows.Next() {
		var fk foreignKey
		if err := rows.Scan(&fk.name, &fk.fromColumn, &fk.toSchema, &fk.toTable, &fk.toColumn, &fk.onDelete, &fk.onUpdate); err != nil {
			return nil, err
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}
