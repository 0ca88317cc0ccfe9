// Package sqlddl converts between SQL DDL and the DBML schema model for the
// postgres, mysql and mssql dialects.
package sqlddl

import (
	"fmt"
	"strings"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
	MSSQL    Dialect = "mssql"
)

// Dialects lists the supported dialects in display order.
var Dialects = []Dialect{Postgres, MySQL, MSSQL}

// ParseDialect accepts the canonical names plus a few common aliases.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "mssql", "sqlserver", "sql server", "tsql":
		return MSSQL, nil
	}
	return "", fmt.Errorf("unsupported dialect %q", s)
}

// defaultSchema is the namespace each dialect writes when none is given.
func (d Dialect) defaultSchema() string {
	switch d {
	case Postgres:
		return "public"
	case MSSQL:
		return "dbo"
	}
	return ""
}

func (d Dialect) quote(name string) string {
	switch d {
	case MySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	case MSSQL:
		return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d Dialect) qualified(schema, name string) string {
	if schema == "" {
		return d.quote(name)
	}
	return d.quote(schema) + "." + d.quote(name)
}

func sqlString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
