// Package dbml parses DBML schema text into a typed Schema model and
// serializes a model back to canonical DBML.
//
// Basic usage:
//
//	s, err := dbml.Parse(text)
//	if err != nil {
//	    var perr *dbml.ParseError
//	    errors.As(err, &perr)
//	}
//	out := dbml.Generate(s)
package dbml

// DefaultSchema is the namespace that is treated as "no schema". Tables,
// enums and ref endpoints declared under it are stored with an empty Schema.
const DefaultSchema = "public"

// Schema is the parsed form of a DBML document.
type Schema struct {
	// Project holds the optional Project block.
	Project *Project
	// Tables in document order.
	Tables []Table
	// Refs holds every relationship, both top-level Ref statements and
	// inline column refs, in the order they were encountered.
	Refs []Ref
	// Enums in document order.
	Enums []Enum
	// TableGroups in document order.
	TableGroups []TableGroup
}

// Project is the optional document-level metadata block.
type Project struct {
	Name         string
	DatabaseType string
	Note         string
}

// Table is a table definition.
type Table struct {
	// Name is the table name without schema qualification.
	Name string
	// Schema is the namespace, empty for the default schema.
	Schema string
	// Alias is the short name declared with "as".
	Alias string
	// Note is free text attached to the table.
	Note string
	// HeaderColor is the hex color setting, including the leading '#'.
	HeaderColor string
	// Columns in declaration order.
	Columns []Column
	// Indexes declared in the indexes block.
	Indexes []Index
}

// ID returns the table identity used by refs and diagram nodes.
func (t Table) ID() string {
	return TableID(t.Schema, t.Name)
}

// Column returns the column with the given name, or nil.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// TableID composes a table identity from a schema and a name.
func TableID(schema, name string) string {
	if schema == "" || schema == DefaultSchema {
		return name
	}
	return schema + "." + name
}

// Column is a single column inside a table.
type Column struct {
	Name string
	// Type is the type name as written, e.g. "varchar(255)" or "int[]".
	Type      string
	PK        bool
	Unique    bool
	NotNull   bool
	Increment bool
	// Default is nil when the column has no default.
	Default *Default
	Note    string
}

// DefaultKind describes how a default value was written.
type DefaultKind string

const (
	DefaultNumber     DefaultKind = "number"
	DefaultString     DefaultKind = "string"
	DefaultBoolean    DefaultKind = "boolean"
	DefaultExpression DefaultKind = "expression"
	DefaultNull       DefaultKind = "null"
)

// Default is a column default value.
type Default struct {
	Kind  DefaultKind
	Value string
}

// Index is an entry of a table's indexes block.
type Index struct {
	Name    string
	Columns []IndexColumn
	Unique  bool
	PK      bool
	// Type is the index method, e.g. "btree" or "hash".
	Type string
	Note string
}

// IndexColumn is either a column name or a backtick expression.
type IndexColumn struct {
	Value      string
	Expression bool
}

// Relation is the cardinality of one side of a ref.
type Relation string

const (
	One  Relation = "1"
	Many Relation = "*"
)

// Endpoint is one side of a relationship.
type Endpoint struct {
	Schema   string
	Table    string
	Columns  []string
	Relation Relation
}

// TableID returns the identity of the endpoint's table.
func (e Endpoint) TableID() string {
	return TableID(e.Schema, e.Table)
}

// Ref is a relationship between two endpoints. Endpoints[0] is the left
// operand as written.
type Ref struct {
	Name      string
	Endpoints [2]Endpoint
	OnDelete  string
	OnUpdate  string
}

// RelationKind is the semantic label derived from a ref's endpoint pair.
type RelationKind string

const (
	OneToOne   RelationKind = "1:1"
	OneToMany  RelationKind = "1:N"
	ManyToOne  RelationKind = "N:1"
	ManyToMany RelationKind = "N:M"
)

// Label returns the long form of the kind.
func (k RelationKind) Label() string {
	switch k {
	case OneToOne:
		return "one-to-one"
	case OneToMany:
		return "one-to-many"
	case ManyToOne:
		return "many-to-one"
	case ManyToMany:
		return "many-to-many"
	}
	return string(k)
}

// Kind derives the relation kind from the endpoint cardinalities.
func (r Ref) Kind() RelationKind {
	a, b := r.Endpoints[0].Relation, r.Endpoints[1].Relation
	switch {
	case a == One && b == One:
		return OneToOne
	case a == One && b == Many:
		return OneToMany
	case a == Many && b == One:
		return ManyToOne
	default:
		return ManyToMany
	}
}

// Enum is an enumerated type.
type Enum struct {
	Name   string
	Schema string
	Values []EnumValue
}

// ID returns the enum identity, qualified like table identities.
func (e Enum) ID() string {
	return TableID(e.Schema, e.Name)
}

// EnumValue is one member of an enum.
type EnumValue struct {
	Name string
	Note string
}

// TableGroup groups tables under a name.
type TableGroup struct {
	Name   string
	Tables []TableRef
}

// TableRef points at a table by schema and name.
type TableRef struct {
	Schema string
	Name   string
}

// Table returns the table with the given identity, or nil.
func (s *Schema) Table(id string) *Table {
	for i := range s.Tables {
		if s.Tables[i].ID() == id {
			return &s.Tables[i]
		}
	}
	return nil
}

// Enum returns the enum with the given identity, or nil.
func (s *Schema) Enum(id string) *Enum {
	for i := range s.Enums {
		if s.Enums[i].ID() == id {
			return &s.Enums[i]
		}
	}
	return nil
}

// IsEmpty reports whether the schema declares nothing.
func (s *Schema) IsEmpty() bool {
	return s == nil || (len(s.Tables) == 0 && len(s.Refs) == 0 && len(s.Enums) == 0 && len(s.TableGroups) == 0 && s.Project == nil)
}
