package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"dbmlviewer/internal/dbml"
)

// OpenPostgres connects with a postgres:// URL or key=value DSN.
func OpenPostgres(ctx context.Context, url string) (*sql.DB, error) {
	return open(ctx, "postgres", url)
}

// Postgres reads tables, enums, keys and indexes. Defaults to the public
// schema.
func Postgres(ctx context.Context, db *sql.DB, opts ...Option) (*dbml.Schema, error) {
	o := buildOptions([]string{dbml.DefaultSchema}, opts)
	s := &dbml.Schema{}

	for _, schemaName := range o.schemas {
		enums, err := pgEnums(ctx, db, schemaName)
		if err != nil {
			return nil, fmt.Errorf("failed to get enums for schema %s: %w", schemaName, err)
		}
		s.Enums = append(s.Enums, enums...)

		tables, err := pgTables(ctx, db, schemaName)
		if err != nil {
			return nil, fmt.Errorf("failed to get tables for schema %s: %w", schemaName, err)
		}
		for _, t := range tables {
			if o.excluded(schemaName, t.Name) {
				continue
			}
			if err := pgTable(ctx, db, s, schemaName, &t); err != nil {
				return nil, err
			}
			s.Tables = append(s.Tables, t)
		}
	}
	dropDanglingRefs(s)
	return s, nil
}

func pgTable(ctx context.Context, db *sql.DB, s *dbml.Schema, schemaName string, t *dbml.Table) error {
	cols, err := pgColumns(ctx, db, schemaName, t.Name)
	if err != nil {
		return fmt.Errorf("failed to get columns for table %s.%s: %w", schemaName, t.Name, err)
	}
	t.Columns = cols

	pk, err := pgPrimaryKey(ctx, db, schemaName, t.Name)
	if err != nil {
		return fmt.Errorf("failed to get primary keys for table %s.%s: %w", schemaName, t.Name, err)
	}
	markPrimaryKey(t, pk)

	if err := pgIndexes(ctx, db, schemaName, t); err != nil {
		return fmt.Errorf("failed to get indexes for table %s.%s: %w", schemaName, t.Name, err)
	}

	fks, err := pgForeignKeys(ctx, db, schemaName, t.Name)
	if err != nil {
		return fmt.Errorf("failed to get foreign keys for table %s.%s: %w", schemaName, t.Name, err)
	}
	appendRefs(s, t.Schema, t.Name, fks)
	return nil
}

func normSchema(s string) string {
	if s == dbml.DefaultSchema {
		return ""
	}
	return s
}

func pgTables(ctx context.Context, db *sql.DB, schemaName string) ([]dbml.Table, error) {
	query := `
		SELECT t.table_name,
			COALESCE(obj_description(format('%I.%I', t.table_schema, t.table_name)::regclass, 'pg_class'), '')
		FROM information_schema.tables t
		WHERE t.table_schema = $1 AND t.table_type = 'BASE TABLE'
		ORDER BY t.table_name
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
		t.Schema = normSchema(schemaName)
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func pgEnums(ctx context.Context, db *sql.DB, schemaName string) ([]dbml.Enum, error) {
	query := `
		SELECT t.typname, e.enumlabel
		FROM pg_type t
		JOIN pg_enum e ON e.enumtypid = t.oid
		JOIN pg_namespace n ON n.oid = t.typnamespace
		WHERE n.nspname = $1
		ORDER BY t.typname, e.enumsortorder
	`
	rows, err := db.QueryContext(ctx, query, schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var enums []dbml.Enum
	for rows.Next() {
		var name, label string
		if err := rows.Scan(&name, &label); err != nil {
			return nil, err
		}
		if len(enums) == 0 || enums[len(enums)-1].Name != name {
			enums = append(enums, dbml.Enum{Name: name, Schema: normSchema(schemaName)})
		}
		last := &enums[len(enums)-1]
		last.Values = append(last.Values, dbml.EnumValue{Name: label})
	}
	return enums, rows.Err()
}

func pgColumns(ctx context.Context, db *sql.DB, schemaName, tableName string) ([]dbml.Column, error) {
	query := `
		SELECT
			c.column_name,
			c.data_type,
			c.udt_schema,
			c.udt_name,
			c.character_maximum_length,
			c.numeric_precision,
			c.numeric_scale,
			c.is_nullable,
			c.column_default,
			c.is_identity,
			COALESCE(col_description(format('%I.%I', c.table_schema, c.table_name)::regclass, a.attnum), '')
		FROM information_schema.columns c
		JOIN pg_attribute a
			ON a.attrelid = format('%I.%I', c.table_schema, c.table_name)::regclass
			AND a.attname = c.column_name
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position
	`
	rows, err := db.QueryContext(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []dbml.Column
	for rows.Next() {
		var (
			col                             dbml.Column
			dataType, udtSchema, udtName    string
			charMax, numPrecision, numScale sql.NullInt64
			nullable, identity              string
			columnDefault                   sql.NullString
		)
		if err := rows.Scan(&col.Name, &dataType, &udtSchema, &udtName, &charMax, &numPrecision, &numScale,
			&nullable, &columnDefault, &identity, &col.Note); err != nil {
			return nil, err
		}
		col.Type = postgresType(dataType, udtSchema, udtName, charMax, numPrecision, numScale)
		col.NotNull = nullable == "NO"
		col.Increment = identity == "YES"
		if columnDefault.Valid {
			if strings.HasPrefix(columnDefault.String, "nextval(") {
				col.Increment = true
			} else {
				col.Default = parseDefault(columnDefault.String)
			}
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

// postgresType maps an information_schema type to the DBML type name.
func postgresType(dataType, udtSchema, udtName string, charMax, precision, scale sql.NullInt64) string {
	switch strings.ToLower(dataType) {
	case "integer":
		return "int"
	case "bigint", "smallint", "boolean", "text", "date", "uuid", "json", "jsonb", "bytea":
		return strings.ToLower(dataType)
	case "character varying":
		if charMax.Valid {
			return fmt.Sprintf("varchar(%d)", charMax.Int64)
		}
		return "varchar"
	case "character":
		if charMax.Valid {
			return fmt.Sprintf("char(%d)", charMax.Int64)
		}
		return "char"
	case "numeric":
		if precision.Valid && scale.Valid {
			return fmt.Sprintf("decimal(%d,%d)", precision.Int64, scale.Int64)
		}
		return "decimal"
	case "real":
		return "float"
	case "double precision":
		return "double"
	case "timestamp without time zone":
		return "timestamp"
	case "timestamp with time zone":
		return "timestamptz"
	case "time without time zone":
		return "time"
	case "time with time zone":
		return "timetz"
	case "user-defined":
		return dbml.TableID(udtSchema, udtName)
	case "array":
		elem := strings.TrimPrefix(udtName, "_")
		if udtSchema == "pg_catalog" {
			return elem + "[]"
		}
		return dbml.TableID(udtSchema, elem) + "[]"
	default:
		return dataType
	}
}

func pgPrimaryKey(ctx context.Context, db *sql.DB, schemaName, tableName string) ([]string, error) {
	query := `
		SELECT kcu.column_name
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.table_constraints tc
			ON kcu.constraint_name = tc.constraint_name
			AND kcu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
			AND kcu.table_schema = $1
			AND kcu.table_name = $2
		ORDER BY kcu.ordinal_position
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

func pgIndexes(ctx context.Context, db *sql.DB, schemaName string, t *dbml.Table) error {
	query := `
		SELECT
			ic.relname,
			idx.indisunique,
			am.amname,
			array_to_string(ARRAY(
				SELECT a.attname
				FROM unnest(idx.indkey) WITH ORDINALITY AS k(attnum, ord)
				JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = k.attnum
				ORDER BY k.ord
			), ',')
		FROM pg_index idx
		JOIN pg_class c ON c.oid = idx.indrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_class ic ON ic.oid = idx.indexrelid
		JOIN pg_am am ON am.oid = ic.relam
		WHERE n.nspname = $1 AND c.relname = $2 AND NOT idx.indisprimary
		ORDER BY ic.relname
	`
	rows, err := db.QueryContext(ctx, query, schemaName, t.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name, method, cols string
		var unique bool
		if err := rows.Scan(&name, &unique, &method, &cols); err != nil {
			return err
		}
		if cols == "" {
			continue
		}
		addIndex(t, name, strings.Split(cols, ","), unique, method)
	}
	return rows.Err()
}

func pgForeignKeys(ctx context.Context, db *sql.DB, schemaName, tableName string) ([]foreignKey, error) {
	query := `
		SELECT con.conname, a.attname, fn.nspname, fc.relname, fa.attname,
			con.confdeltype, con.confupdtype
		FROM pg_constraint con
		JOIN pg_class c ON c.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_class fc ON fc.oid = con.confrelid
		JOIN pg_namespace fn ON fn.oid = fc.relnamespace
		CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(attnum, fattnum, ord)
		JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
		JOIN pg_attribute fa ON fa.attrelid = con.confrelid AND fa.attnum = k.fattnum
		WHERE con.contype = 'f' AND n.nspname = $1 AND c.relname = $2
		ORDER BY con.conname, k.ord
	`
	rows, err := db.QueryContext(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []foreignKey
	for rows.Next() {
		var fk foreignKey
		var onDelete, onUpdate string
		if err := rows.Scan(&fk.name, &fk.fromColumn, &fk.toSchema, &fk.toTable, &fk.toColumn, &onDelete, &onUpdate); err != nil {
			return nil, err
		}
		fk.toSchema = normSchema(fk.toSchema)
		fk.onDelete = pgAction(onDelete)
		fk.onUpdate = pgAction(onUpdate)
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

// pgAction decodes pg_constraint.confdeltype / confupdtype.
func pgAction(code string) string {
	switch code {
	case "r":
		return "restrict"
	case "c":
		return "cascade"
	case "n":
		return "set null"
	case "d":
		return "set default"
	}
	return ""
}
