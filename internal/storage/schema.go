package storage

import (
	"context"
	"fmt"

	"tripetl/internal/ddl"
)

// ApplySchema renders the star schema for dialect d and executes each
// statement through repo, dimensions first. Backends call it from their
// registered DDLBootstrapper.
func ApplySchema(ctx context.Context, repo Repository, table string, d ddl.Dialect) error {
	defs, err := ddl.StarSchema(table)
	if err != nil {
		return err
	}
	for _, def := range defs {
		stmt, err := ddl.BuildCreateTableSQL(def, d)
		if err != nil {
			return fmt.Errorf("render %s: %w", def.Name, err)
		}
		if err := repo.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create %s: %w", def.Name, err)
		}
	}
	return nil
}
