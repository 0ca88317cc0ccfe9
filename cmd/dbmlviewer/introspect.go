package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"dbmlviewer/internal/dbml"
	"dbmlviewer/internal/introspect"
)

type introspectFlags struct {
	postgresURL string
	mysqlURL    string
	sqlitePath  string
	schemas     []string
	exclude     []string
	out         string
}

func newIntrospectCmd() *cobra.Command {
	var f introspectFlags
	cmd := &cobra.Command{
		Use:   "introspect",
		Short: "Read a live database schema as DBML",
		Long:  `Connects to PostgreSQL, MySQL or SQLite and writes its tables, enums, keys and indexes as DBML.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIntrospect(cmd, f)
		},
	}
	cmd.Flags().StringVar(&f.postgresURL, "postgres-url", "", "PostgreSQL connection string")
	cmd.Flags().StringVar(&f.mysqlURL, "mysql-url", "", "MySQL DSN")
	cmd.Flags().StringVar(&f.sqlitePath, "sqlite", "", "SQLite database file path")
	cmd.Flags().StringSliceVarP(&f.schemas, "schema", "s", nil, "Schemas to read (default: public for PostgreSQL, the current database for MySQL)")
	cmd.Flags().StringSliceVarP(&f.exclude, "exclude", "x", nil, "Tables to skip, optionally schema-qualified")
	cmd.Flags().StringVarP(&f.out, "out", "o", "-", "Output file")
	cmd.MarkFlagsMutuallyExclusive("postgres-url", "mysql-url", "sqlite")
	cmd.MarkFlagsOneRequired("postgres-url", "mysql-url", "sqlite")
	return cmd
}

func runIntrospect(cmd *cobra.Command, f introspectFlags) error {
	ctx := cmd.Context()

	var (
		db   *sql.DB
		read func() (*dbml.Schema, error)
		err  error
	)
	opts := []introspect.Option{introspect.WithSchemas(f.schemas...), introspect.WithExcludeTables(f.exclude...)}
	switch {
	case f.postgresURL != "":
		db, err = introspect.OpenPostgres(ctx, f.postgresURL)
		read = func() (*dbml.Schema, error) { return introspect.Postgres(ctx, db, opts...) }
	case f.mysqlURL != "":
		db, err = introspect.OpenMySQL(ctx, f.mysqlURL)
		read = func() (*dbml.Schema, error) { return introspect.MySQL(ctx, db, opts...) }
	case f.sqlitePath != "":
		db, err = introspect.OpenSQLite(ctx, f.sqlitePath)
		read = func() (*dbml.Schema, error) { return introspect.SQLite(ctx, db, opts...) }
	default:
		return errors.New("one of --postgres-url, --mysql-url or --sqlite must be specified")
	}
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("warning: failed to close connection: %v", err)
		}
	}()

	s, err := read()
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}
	return writeOutput(cmd, f.out, []byte(dbml.Generate(s)))
}
