package warehouse

import (
	"fmt"
	"strings"
)

// SnowflakeDialect targets the Snowflake SQL dialect.
type SnowflakeDialect struct{}

func (SnowflakeDialect) Name() string       { return "snowflake" }
func (SnowflakeDialect) DriverName() string { return "snowflake" }

func (SnowflakeDialect) TableRef(schema, table string) string {
	return schema + "." + table
}

func (SnowflakeDialect) ColumnType(t ColumnType) string {
	switch t {
	case TypeString:
		return "STRING"
	case TypeFloat:
		return "FLOAT"
	case TypeInt:
		return "NUMBER"
	case TypeTimestamp:
		return "TIMESTAMP_NTZ"
	default:
		return "STRING"
	}
}

func (SnowflakeDialect) NowExpr() string { return "CURRENT_TIMESTAMP()" }

func (SnowflakeDialect) CreateSchemaSQL(schema string) (string, bool) {
	return fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema), true
}

// UpsertSQL builds a MERGE keyed on keys. The USING clause selects the bound
// row so a single statement handles both the matched and unmatched cases.
func (SnowflakeDialect) UpsertSQL(target string, keys, updateCols, insertCols []string) string {
	var using []string
	for _, c := range insertCols {
		using = append(using, fmt.Sprintf("? AS %s", c))
	}

	var on []string
	for _, k := range keys {
		on = append(on, fmt.Sprintf("t.%s = s.%s", k, k))
	}

	var sets []string
	for _, c := range updateCols {
		sets = append(sets, fmt.Sprintf("t.%s = s.%s", c, c))
	}

	var srcCols []string
	for _, c := range insertCols {
		srcCols = append(srcCols, "s."+c)
	}

	return fmt.Sprintf(
		"MERGE INTO %s t USING (SELECT %s) s ON %s "+
			"WHEN MATCHED THEN UPDATE SET %s "+
			"WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s)",
		target,
		strings.Join(using, ", "),
		strings.Join(on, " AND "),
		strings.Join(sets, ", "),
		strings.Join(insertCols, ", "),
		strings.Join(srcCols, ", "),
	)
}
