package catalog

import (
	"context"

	"healthpipe/internal/warehouse"
	"healthpipe/pkg/errors"
)

// Deploy creates every schema and table the pipeline needs. All statements
// are create-if-absent, so an existing deployment is left untouched.
func Deploy(ctx context.Context, svc *warehouse.Service) error {
	d := svc.Dialect()

	for _, schema := range Schemas() {
		stmt, ok := d.CreateSchemaSQL(schema)
		if !ok {
			continue
		}
		if err := svc.ExecuteSQL(ctx, stmt); err != nil {
			return errors.Wrap(err, errors.ErrCodeSQLExecution, "Failed to create schema "+schema)
		}
	}

	for _, t := range Tables() {
		if err := svc.ExecuteSQL(ctx, CreateTableSQL(d, t)); err != nil {
			return errors.Wrap(err, errors.ErrCodeSQLExecution, "Failed to create table "+t.Ref(d))
		}
	}

	return nil
}
