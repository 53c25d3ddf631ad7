package masking

import (
	"context"
	"fmt"

	"healthpipe/internal/catalog"
	"healthpipe/internal/warehouse"
	"healthpipe/pkg/errors"
)

// Policy names as created in the warehouse.
const (
	PolicyAddress    = "address_mask"
	PolicyCoordinate = "coordinate_mask"
	PolicyPopulation = "population_mask"
)

// Binding attaches a policy to one table column.
type Binding struct {
	Schema string
	Table  string
	Column string
	Policy string
}

// Bindings returns the column attachments from the original deployment.
func Bindings() []Binding {
	return []Binding{
		{catalog.SchemaCurated, catalog.TableCuratedEnv, "facility_address", PolicyAddress},
		{catalog.SchemaCurated, catalog.TableCuratedHealth, "latitude", PolicyCoordinate},
		{catalog.SchemaCurated, catalog.TableCuratedHealth, "longitude", PolicyCoordinate},
		{catalog.SchemaMart, catalog.TableDashboard, "total_population", PolicyPopulation},
	}
}

// policyDDL holds the CREATE statement body per policy. These mirror the
// pure functions in policy.go; keep them in sync.
var policyDDL = map[string]string{
	PolicyAddress: `CREATE MASKING POLICY %s.address_mask AS (val STRING) RETURNS STRING ->
  CASE
    WHEN CURRENT_ROLE() IN ('DATA_ENGINEER_ROLE') THEN val
    WHEN CURRENT_ROLE() IN ('DATA_ANALYST_ROLE') THEN CONCAT(LEFT(val, 10), '*** [MASKED] ***')
    ELSE '[REDACTED]'
  END`,
	PolicyCoordinate: `CREATE MASKING POLICY %s.coordinate_mask AS (val FLOAT) RETURNS FLOAT ->
  CASE
    WHEN CURRENT_ROLE() IN ('DATA_ENGINEER_ROLE') THEN val
    WHEN CURRENT_ROLE() IN ('DATA_ANALYST_ROLE') THEN ROUND(val, 2)
    ELSE NULL
  END`,
	PolicyPopulation: `CREATE MASKING POLICY %s.population_mask AS (val NUMBER) RETURNS NUMBER ->
  CASE
    WHEN CURRENT_ROLE() IN ('DATA_ENGINEER_ROLE', 'DATA_ANALYST_ROLE') THEN val
    ELSE ROUND(val, -3)
  END`,
}

// policySchemas maps each policy to the schema it lives in.
var policySchemas = map[string]string{
	PolicyAddress:    catalog.SchemaCurated,
	PolicyCoordinate: catalog.SchemaCurated,
	PolicyPopulation: catalog.SchemaMart,
}

// Deploy drops and recreates the masking policies, then binds them to their
// columns. Only the native Snowflake backend supports policy objects; on
// other backends masking is applied in-process at read time instead.
//
// Each step tolerates exactly the "object not found" condition: a policy
// that is not attached yet, or does not exist yet, is not an error.
func Deploy(ctx context.Context, svc *warehouse.Service) error {
	if svc.Dialect().Name() != warehouse.BackendSnowflake {
		return nil
	}

	// Unset before drop: Snowflake refuses to drop an attached policy.
	for _, b := range Bindings() {
		stmt := fmt.Sprintf("ALTER TABLE %s.%s MODIFY COLUMN %s UNSET MASKING POLICY",
			b.Schema, b.Table, b.Column)
		if err := svc.ExecuteSQL(ctx, stmt); err != nil && !isNotFound(err) {
			return err
		}
	}

	for policy, schema := range policySchemas {
		stmt := fmt.Sprintf("DROP MASKING POLICY IF EXISTS %s.%s", schema, policy)
		if err := svc.ExecuteSQL(ctx, stmt); err != nil && !isNotFound(err) {
			return err
		}
	}

	for policy, ddl := range policyDDL {
		if err := svc.ExecuteSQL(ctx, fmt.Sprintf(ddl, policySchemas[policy])); err != nil {
			return err
		}
	}

	for _, b := range Bindings() {
		stmt := fmt.Sprintf("ALTER TABLE %s.%s MODIFY COLUMN %s SET MASKING POLICY %s.%s",
			b.Schema, b.Table, b.Column, b.Schema, b.Policy)
		if err := svc.ExecuteSQL(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}

func isNotFound(err error) bool {
	return errors.GetErrorCode(err) == errors.ErrCodeSQLObjectNotFound
}
