package mysql

import (
	"context"
	"fmt"

	"tripetl/internal/ddl"
	"tripetl/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

var _ storage.Repository = (*wrappedRepo)(nil)

// wrappedRepo adapts *Repository to storage.Repository and provides Close.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

// Close closes the underlying connection pool.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

// Dialect renders the star schema for MySQL (InnoDB).
var Dialect = ddl.Dialect{
	QuoteIdent: myIdent,
	QuoteTable: myFQN,
	ColumnType: func(c ddl.ColumnDef) string {
		switch c.Type {
		case ddl.Identity:
			return "BIGINT AUTO_INCREMENT"
		case ddl.BigInt:
			return "BIGINT"
		case ddl.Int:
			return "INT"
		case ddl.Float:
			return "DOUBLE"
		case ddl.Timestamp:
			return "DATETIME"
		default:
			return fmt.Sprintf("VARCHAR(%d)", c.Size)
		}
	},
	IfNotExists: ddl.IfNotExistsClause,
}

// init registers the "mysql" backend with the factory.
func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL("mysql", func(ctx context.Context, repo storage.Repository, table string) error {
		return storage.ApplySchema(ctx, repo, table, Dialect)
	})
}
