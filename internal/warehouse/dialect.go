package warehouse

import "fmt"

// ColumnType is a backend-neutral column type, mapped to concrete SQL types
// by each dialect.
type ColumnType int

const (
	TypeString ColumnType = iota
	TypeFloat
	TypeInt
	TypeTimestamp
)

// Dialect abstracts the SQL differences between the supported backends.
// Snowflake is the production target; SQLite serves local development and
// demos with the same pipeline semantics.
type Dialect interface {
	Name() string
	DriverName() string

	// TableRef renders a schema-qualified table reference. SQLite has no
	// schema support, so the sqlite dialect flattens to SCHEMA_TABLE.
	TableRef(schema, table string) string

	ColumnType(t ColumnType) string

	// NowExpr is the SQL expression for the current timestamp.
	NowExpr() string

	// CreateSchemaSQL returns the statement creating a schema namespace, or
	// ok=false when the backend has no schema objects.
	CreateSchemaSQL(schema string) (sql string, ok bool)

	// UpsertSQL builds a single-row merge-by-key statement for target.
	// Bind order is insertCols.
	UpsertSQL(target string, keys, updateCols, insertCols []string) string
}

// Supported backend names.
const (
	BackendSnowflake = "snowflake"
	BackendSQLite    = "sqlite"
)

// DialectFor returns the dialect for a backend name.
func DialectFor(backend string) (Dialect, error) {
	switch backend {
	case BackendSnowflake:
		return SnowflakeDialect{}, nil
	case BackendSQLite:
		return SQLiteDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported backend %q", backend)
	}
}
