package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"dbmlviewer/internal/dbml"
)

// OpenSQLite opens a database file.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	return open(ctx, "sqlite3", path)
}

// SQLite reads every user table. Schemas do not apply.
func SQLite(ctx context.Context, db *sql.DB, opts ...Option) (*dbml.Schema, error) {
	o := buildOptions(nil, opts)

	names, err := liteTables(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("failed to get table names: %w", err)
	}

	s := &dbml.Schema{}
	for _, tbl := range names {
		if o.excluded("", tbl.name) {
			continue
		}
		t := dbml.Table{Name: tbl.name}

		pk, err := liteColumns(ctx, db, &t, tbl.autoincrement)
		if err != nil {
			return nil, fmt.Errorf("failed to extract columns for table %s: %w", t.Name, err)
		}
		markPrimaryKey(&t, pk)

		if err := liteIndexes(ctx, db, &t); err != nil {
			return nil, fmt.Errorf("failed to extract indexes for table %s: %w", t.Name, err)
		}

		fks, err := liteForeignKeys(ctx, db, t.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to extract relations for table %s: %w", t.Name, err)
		}
		appendRefs(s, "", t.Name, fks)

		s.Tables = append(s.Tables, t)
	}

	// A foreign key without target columns points at the primary key.
	for i := range s.Refs {
		target := &s.Refs[i].Endpoints[1]
		t := s.Table(target.TableID())
		if t == nil {
			continue
		}
		for j, c := range target.Columns {
			if c == "" && j < len(primaryKey(t)) {
				target.Columns[j] = primaryKey(t)[j]
			}
		}
	}
	dropDanglingRefs(s)
	return s, nil
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
		}
	}
	return cols
}

type liteTable struct {
	name          string
	autoincrement bool
}

func liteTables(ctx context.Context, db *sql.DB) ([]liteTable, error) {
	query := `
		SELECT name, COALESCE(sql, '')
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []liteTable
	for rows.Next() {
		var name, ddl string
		if err := rows.Scan(&name, &ddl); err != nil {
			return nil, err
		}
		tables = append(tables, liteTable{name: name, autoincrement: strings.Contains(strings.ToUpper(ddl), "AUTOINCREMENT")})
	}
	return tables, rows.Err()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// liteColumns fills t.Columns and returns the primary key in key order.
func liteColumns(ctx context.Context, db *sql.DB, t *dbml.Table, autoincrement bool) ([]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(t.Name)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pkByOrder := map[int]string{}
	for rows.Next() {
		var cid, notNull, pk int
		var name, colType string
		var def sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &def, &pk); err != nil {
			return nil, err
		}
		col := dbml.Column{Name: name, Type: strings.ToLower(colType), NotNull: notNull == 1}
		if col.Type == "" {
			col.Type = "blob"
		}
		if def.Valid {
			col.Default = parseDefault(def.String)
		}
		if pk > 0 {
			pkByOrder[pk] = name
		}
		t.Columns = append(t.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pk := make([]string, 0, len(pkByOrder))
	for i := 1; i <= len(pkByOrder); i++ {
		pk = append(pk, pkByOrder[i])
	}
	if autoincrement && len(pk) == 1 {
		if c := t.Column(pk[0]); c != nil {
			c.Increment = true
		}
	}
	return pk, nil
}

func liteIndexes(ctx context.Context, db *sql.DB, t *dbml.Table) error {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%s)", quoteIdent(t.Name)))
	if err != nil {
		return err
	}
	type index struct {
		name   string
		unique bool
	}
	var indexes []index
	for rows.Next() {
		var seq, unique, partial int
		var name, origin string
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			rows.Close()
			return err
		}
		// origin "pk" is the primary key's own index
		if origin == "pk" {
			continue
		}
		indexes = append(indexes, index{name: name, unique: unique == 1})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	// PRAGMA index_list reports newest first.
	for i := len(indexes) - 1; i >= 0; i-- {
		idx := indexes[i]
		cols, err := liteIndexColumns(ctx, db, idx.name)
		if err != nil {
			return err
		}
		name := idx.name
		if strings.HasPrefix(name, "sqlite_autoindex") {
			name = ""
		}
		addIndex(t, name, cols, idx.unique, "")
	}
	return nil
}

func liteIndexColumns(ctx context.Context, db *sql.DB, index string) ([]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%s)", quoteIdent(index)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var seqno, cid int
		var name sql.NullString
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, err
		}
		if name.Valid {
			cols = append(cols, name.String)
		}
	}
	return cols, rows.Err()
}

func liteForeignKeys(ctx context.Context, db *sql.DB, table string) ([]foreignKey, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteIdent(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []foreignKey
	for rows.Next() {
		var id, seq int
		var target, from, onUpdate, onDelete, match string
		var to sql.NullString
		if err := rows.Scan(&id, &seq, &target, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}
		fks = append(fks, foreignKey{
			id:         id,
			fromColumn: from,
			toTable:    target,
			toColumn:   to.String,
			onDelete:   onDelete,
			onUpdate:   onUpdate,
		})
	}
	return fks, rows.Err()
}
