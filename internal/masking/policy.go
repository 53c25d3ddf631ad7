// Package masking implements the role-conditioned column redaction rules.
// The rules are pure, total functions of (value, role); on Snowflake they
// are also materialized as native masking policies so the warehouse enforces
// them at query time, while the HTTP read surface applies the same functions
// in-process for the sqlite backend.
package masking

import (
	"database/sql"
	"math"
)

// Role is the caller's warehouse role, normalized by FromRoleName.
type Role int

const (
	RolePublic Role = iota
	RoleAnalyst
	RoleEngineer
)

// Warehouse role names carried over from the original deployment.
const (
	RoleNameEngineer = "DATA_ENGINEER_ROLE"
	RoleNameAnalyst  = "DATA_ANALYST_ROLE"
)

// RedactionToken replaces address values for unprivileged callers.
const RedactionToken = "[REDACTED]"

// maskedSuffix marks a truncated address for analysts.
const maskedSuffix = "*** [MASKED] ***"

// FromRoleName maps a warehouse role name to a masking role. Unknown roles
// get public (most restricted) visibility.
func FromRoleName(name string) Role {
	switch name {
	case RoleNameEngineer:
		return RoleEngineer
	case RoleNameAnalyst:
		return RoleAnalyst
	default:
		return RolePublic
	}
}

// Address masks a facility address. Engineers see the raw value, analysts
// the first 10 characters plus a masked-suffix marker, everyone else the
// fixed redaction token.
func Address(val string, role Role) string {
	switch role {
	case RoleEngineer:
		return val
	case RoleAnalyst:
		prefix := val
		if len(prefix) > 10 {
			prefix = prefix[:10]
		}
		return prefix + maskedSuffix
	default:
		return RedactionToken
	}
}

// Coordinate masks a latitude/longitude. Engineers see the raw float,
// analysts a value rounded to 2 decimal places, everyone else no value.
func Coordinate(val float64, role Role) (float64, bool) {
	switch role {
	case RoleEngineer:
		return val, true
	case RoleAnalyst:
		return math.Round(val*100) / 100, true
	default:
		return 0, false
	}
}

// Population masks a population count. Engineers and analysts see the raw
// integer, everyone else gets the value rounded to the nearest thousand.
func Population(val int64, role Role) int64 {
	switch role {
	case RoleEngineer, RoleAnalyst:
		return val
	default:
		return int64(math.Round(float64(val)/1000) * 1000)
	}
}

// NullCoordinate applies Coordinate to a nullable column value.
func NullCoordinate(val sql.NullFloat64, role Role) sql.NullFloat64 {
	if !val.Valid {
		return val
	}
	masked, ok := Coordinate(val.Float64, role)
	if !ok {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: masked, Valid: true}
}

// NullPopulation applies Population to a nullable column value.
func NullPopulation(val sql.NullInt64, role Role) sql.NullInt64 {
	if !val.Valid {
		return val
	}
	return sql.NullInt64{Int64: Population(val.Int64, role), Valid: true}
}
