package warehouse

import (
	"fmt"
	"strings"
)

// SQLiteDialect targets SQLite for local development. Schema namespaces are
// flattened into table-name prefixes.
type SQLiteDialect struct{}

func (SQLiteDialect) Name() string       { return "sqlite" }
func (SQLiteDialect) DriverName() string { return "sqlite3" }

func (SQLiteDialect) TableRef(schema, table string) string {
	return schema + "_" + table
}

func (SQLiteDialect) ColumnType(t ColumnType) string {
	switch t {
	case TypeString:
		return "TEXT"
	case TypeFloat:
		return "REAL"
	case TypeInt:
		return "INTEGER"
	case TypeTimestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

func (SQLiteDialect) NowExpr() string { return "CURRENT_TIMESTAMP" }

func (SQLiteDialect) CreateSchemaSQL(string) (string, bool) {
	return "", false
}

func (SQLiteDialect) UpsertSQL(target string, keys, updateCols, insertCols []string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(insertCols)), ", ")

	var sets []string
	for _, c := range updateCols {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO UPDATE SET %s",
		target,
		strings.Join(insertCols, ", "),
		placeholders,
		strings.Join(keys, ", "),
		strings.Join(sets, ", "),
	)
}
