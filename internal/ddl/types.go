package ddl

// Type is a logical column type. Dialects map it onto their own SQL types.
type Type int

const (
	// Identity is a 64-bit surrogate key assigned by the database.
	Identity Type = iota
	// BigInt is a 64-bit integer, used for foreign keys.
	BigInt
	// Int is a 32-bit integer.
	Int
	// Float is a double-precision float.
	Float
	// Timestamp is a date and time without zone, stored as UTC.
	Timestamp
	// String is a bounded character column; ColumnDef.Size holds the bound.
	String
)

// ColumnDef describes a single column.
//
// Name is unquoted; quoting happens at render time. References, when set, is
// "table.column" and renders as a FOREIGN KEY clause.
type ColumnDef struct {
	Name       string
	Type       Type
	Size       int
	Nullable   bool
	PrimaryKey bool
	Unique     bool
	References string
}

// TableDef holds a table name and its ordered columns.
type TableDef struct {
	Name    string
	Columns []ColumnDef
}

// Dialect supplies the backend-specific parts of a CREATE TABLE statement.
type Dialect struct {
	// QuoteIdent quotes a single identifier segment.
	QuoteIdent func(string) string
	// QuoteTable quotes a possibly schema-qualified table name.
	QuoteTable func(string) string
	// ColumnType renders the SQL type of c, including identity clauses.
	ColumnType func(c ColumnDef) string
	// IfNotExists turns a plain CREATE TABLE statement for table into an
	// idempotent one.
	IfNotExists func(table, create string) string
}
