package sqlddl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbmlviewer/internal/dbml"
)

func TestParseDialect(t *testing.T) {
	tests := map[string]Dialect{
		"postgres":   Postgres,
		"PostgreSQL": Postgres,
		"pg":         Postgres,
		"mysql":      MySQL,
		"mariadb":    MySQL,
		"mssql":      MSSQL,
		" sqlserver": MSSQL,
	}
	for in, want := range tests {
		got, err := ParseDialect(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseDialect("oracle")
	assert.Error(t, err)
}

func TestImportPostgres(t *testing.T) {
	sql := `
-- users and their posts
CREATE TYPE order_status AS ENUM ('pending', 'shipped');

CREATE TABLE "users" (
  "id" SERIAL PRIMARY KEY,
  "email" varchar(255) UNIQUE NOT NULL,
  "created_at" timestamp DEFAULT now()
);

CREATE TABLE public.posts (
  id integer PRIMARY KEY,
  user_id integer NOT NULL REFERENCES users (id) ON DELETE CASCADE,
  status order_status DEFAULT 'pending',
  score numeric(10, 2) DEFAULT -1.5,
  tags text[]
);

CREATE INDEX idx_posts_user ON posts USING btree (user_id);
COMMENT ON TABLE users IS 'registered users';
COMMENT ON COLUMN posts.status IS 'workflow state';
`
	s, err := Import(sql, Postgres)
	require.NoError(t, err)
	require.Len(t, s.Tables, 2)

	users := s.Table("users")
	require.NotNil(t, users)
	assert.Equal(t, "registered users", users.Note)

	id := users.Column("id")
	require.NotNil(t, id)
	assert.Equal(t, "integer", id.Type)
	assert.True(t, id.PK)
	assert.True(t, id.Increment)

	email := users.Column("email")
	require.NotNil(t, email)
	assert.Equal(t, "varchar(255)", email.Type)
	assert.True(t, email.Unique)
	assert.True(t, email.NotNull)

	created := users.Column("created_at")
	require.NotNil(t, created)
	assert.Equal(t, &dbml.Default{Kind: dbml.DefaultExpression, Value: "now()"}, created.Default)

	posts := s.Table("posts")
	require.NotNil(t, posts, "public schema is normalized away")
	assert.True(t, posts.Column("user_id").NotNull)
	assert.Equal(t, &dbml.Default{Kind: dbml.DefaultString, Value: "pending"}, posts.Column("status").Default)
	assert.Equal(t, &dbml.Default{Kind: dbml.DefaultNumber, Value: "-1.5"}, posts.Column("score").Default)
	assert.Equal(t, "numeric(10,2)", posts.Column("score").Type)
	assert.Equal(t, "text[]", posts.Column("tags").Type)
	assert.Equal(t, "workflow state", posts.Column("status").Note)

	require.Len(t, posts.Indexes, 1)
	assert.Equal(t, "idx_posts_user", posts.Indexes[0].Name)
	assert.Equal(t, "btree", posts.Indexes[0].Type)

	require.Len(t, s.Enums, 1)
	assert.Equal(t, "order_status", s.Enums[0].Name)
	assert.Len(t, s.Enums[0].Values, 2)

	require.Len(t, s.Refs, 1)
	ref := s.Refs[0]
	assert.Equal(t, dbml.ManyToOne, ref.Kind())
	assert.Equal(t, "posts", ref.Endpoints[0].Table)
	assert.Equal(t, []string{"user_id"}, ref.Endpoints[0].Columns)
	assert.Equal(t, "users", ref.Endpoints[1].Table)
	assert.Equal(t, []string{"id"}, ref.Endpoints[1].Columns)
	assert.Equal(t, "cascade", ref.OnDelete)
}

func TestImportMySQL(t *testing.T) {
	sql := "CREATE TABLE `users` (\n" +
		"  `id` int NOT NULL AUTO_INCREMENT,\n" +
		"  `status` ENUM('active','banned') DEFAULT 'active',\n" +
		"  PRIMARY KEY (`id`)\n" +
		") ENGINE=InnoDB COMMENT='people';\n" +
		"# posts belong to users\n" +
		"CREATE TABLE `posts` (\n" +
		"  `id` int NOT NULL AUTO_INCREMENT,\n" +
		"  `user_id` int,\n" +
		"  `body` text COMMENT 'markdown',\n" +
		"  PRIMARY KEY (`id`),\n" +
		"  KEY `idx_user` (`user_id`),\n" +
		"  CONSTRAINT `fk_posts_user` FOREIGN KEY (`user_id`) REFERENCES `users` (`id`) ON UPDATE NO ACTION\n" +
		");\n"

	s, err := Import(sql, MySQL)
	require.NoError(t, err)
	require.Len(t, s.Tables, 2)

	users := s.Table("users")
	require.NotNil(t, users)
	assert.Equal(t, "people", users.Note)
	assert.True(t, users.Column("id").PK)
	assert.True(t, users.Column("id").Increment)

	require.Len(t, s.Enums, 1)
	assert.Equal(t, "users_status_enum", s.Enums[0].Name)
	assert.Equal(t, "users_status_enum", users.Column("status").Type)
	assert.Equal(t, []dbml.EnumValue{{Name: "active"}, {Name: "banned"}}, s.Enums[0].Values)

	posts := s.Table("posts")
	require.NotNil(t, posts)
	assert.Equal(t, "markdown", posts.Column("body").Note)
	require.Len(t, posts.Indexes, 1)
	assert.Equal(t, "idx_user", posts.Indexes[0].Name)

	require.Len(t, s.Refs, 1)
	assert.Equal(t, "fk_posts_user", s.Refs[0].Name)
	assert.Equal(t, "no action", s.Refs[0].OnUpdate)
}

func TestImportMSSQL(t *testing.T) {
	sql := `CREATE TABLE [dbo].[users] (
  [id] int IDENTITY(1,1) PRIMARY KEY,
  [name] nvarchar(100) NOT NULL
)
GO

CREATE TABLE [posts] (
  [id] int PRIMARY KEY,
  [user_id] int FOREIGN KEY REFERENCES [dbo].[users]([id])
)
GO
`
	s, err := Import(sql, MSSQL)
	require.NoError(t, err)
	require.Len(t, s.Tables, 2)

	users := s.Table("users")
	require.NotNil(t, users, "dbo schema is normalized away")
	assert.True(t, users.Column("id").Increment)
	assert.True(t, users.Column("id").PK)
	assert.Equal(t, "nvarchar(100)", users.Column("name").Type)

	require.Len(t, s.Refs, 1)
	assert.Equal(t, "posts", s.Refs[0].Endpoints[0].Table)
	assert.Equal(t, "users", s.Refs[0].Endpoints[1].Table)
}

func TestImportCompositeAndAlter(t *testing.T) {
	sql := `
CREATE TABLE orders (id int PRIMARY KEY);
CREATE TABLE products (id int PRIMARY KEY);
CREATE TABLE order_items (
  order_id int,
  product_id int,
  qty int DEFAULT 1,
  CONSTRAINT pk_items PRIMARY KEY (order_id, product_id),
  UNIQUE (order_id, qty)
);
ALTER TABLE order_items ADD FOREIGN KEY (order_id) REFERENCES orders;
ALTER TABLE order_items ADD CONSTRAINT fk_product FOREIGN KEY (product_id) REFERENCES products (id);
ALTER TABLE order_items ADD FOREIGN KEY (order_id) REFERENCES orders (id);
`
	s, err := Import(sql, Postgres)
	require.NoError(t, err)

	items := s.Table("order_items")
	require.NotNil(t, items)
	require.Len(t, items.Indexes, 2)
	assert.True(t, items.Indexes[0].PK)
	assert.Equal(t, "pk_items", items.Indexes[0].Name)
	assert.True(t, items.Indexes[1].Unique)

	require.Len(t, s.Refs, 2, "duplicate foreign keys collapse")
	assert.Equal(t, []string{"id"}, s.Refs[0].Endpoints[1].Columns, "target columns default to the primary key")
	assert.Equal(t, "fk_product", s.Refs[1].Name)
}

func TestImportToDBML(t *testing.T) {
	out, err := ImportToDBML(`CREATE TABLE users (id serial PRIMARY KEY, name text NOT NULL);`, Postgres)
	require.NoError(t, err)
	assert.Contains(t, out, "Table users {")
	assert.Contains(t, out, "id integer [pk, increment]")
	assert.Contains(t, out, "name text [not null]")

	out, err = ImportToDBML("-- nothing here\n", Postgres)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestImportErrors(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		msg  string
	}{
		{"unterminated string", "CREATE TABLE t (a text DEFAULT 'x);", "unterminated string literal"},
		{"unknown reference", "CREATE TABLE t (a int REFERENCES missing (id));", `table "missing" not found`},
		{"unknown column", "CREATE TABLE u (id int PRIMARY KEY); CREATE TABLE t (a int REFERENCES u (nope));", `column "nope" not found`},
		{"no primary key", "CREATE TABLE u (id int); CREATE TABLE t (a int REFERENCES u);", "has no primary key"},
		{"duplicate table", "CREATE TABLE t (a int); CREATE TABLE t (b int);", "already exists"},
		{"duplicate column", "CREATE TABLE t (a int, a text);", "already exists"},
		{"index on unknown table", "CREATE INDEX i ON nope (a);", `table "nope" not found`},
		{"unclosed table", "CREATE TABLE t (a int", `expected ")"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Import(tt.sql, Postgres)
			require.Error(t, err)
			var pe *dbml.ParseError
			require.ErrorAs(t, err, &pe)
			assert.Contains(t, pe.Message, tt.msg)
			assert.Equal(t, 1, pe.Line)
		})
	}
}

func TestImportIgnoresOtherStatements(t *testing.T) {
	sql := `
SET search_path = public;
CREATE EXTENSION IF NOT EXISTS "uuid-ossp";
CREATE TABLE t (id uuid PRIMARY KEY DEFAULT uuid_generate_v4());
INSERT INTO t VALUES ('x');
CREATE FUNCTION f() RETURNS int AS $$ SELECT 1; $$ LANGUAGE sql;
`
	s, err := Import(sql, Postgres)
	require.NoError(t, err)
	require.Len(t, s.Tables, 1)
	assert.Equal(t, "uuid_generate_v4()", s.Tables[0].Columns[0].Default.Value)
}
