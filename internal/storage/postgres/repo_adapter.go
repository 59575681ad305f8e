package postgres

import (
	"context"
	"fmt"

	"tripetl/internal/ddl"
	"tripetl/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

// wrappedRepo implements storage.Repository by delegating to the concrete
// *Repository while providing a Close method that calls the close function
// returned by NewRepository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

var _ storage.Repository = (*wrappedRepo)(nil)

// Close implements storage.Repository.Close.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

// Dialect renders the star schema for Postgres.
var Dialect = ddl.Dialect{
	QuoteIdent: pgIdent,
	QuoteTable: pgFQN,
	ColumnType: func(c ddl.ColumnDef) string {
		switch c.Type {
		case ddl.Identity:
			return "BIGINT GENERATED BY DEFAULT AS IDENTITY"
		case ddl.BigInt:
			return "BIGINT"
		case ddl.Int:
			return "INTEGER"
		case ddl.Float:
			return "DOUBLE PRECISION"
		case ddl.Timestamp:
			return "TIMESTAMP"
		default:
			return fmt.Sprintf("VARCHAR(%d)", c.Size)
		}
	},
	IfNotExists: ddl.IfNotExistsClause,
}

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL("postgres", func(ctx context.Context, repo storage.Repository, table string) error {
		if err := storage.ApplySchema(ctx, repo, table, Dialect); err != nil {
			return fmt.Errorf("apply DDL: %w", err)
		}
		return nil
	})
}
