package sqlite

import (
	"context"

	"tripetl/internal/ddl"
	"tripetl/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

// wrappedRepo adapts *Repository to storage.Repository, adding a Close that
// calls the cleanup function returned by NewRepository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

// Close implements storage.Repository.Close.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

var _ storage.Repository = (*wrappedRepo)(nil)

// Dialect renders the star schema for SQLite. A single INTEGER primary key
// column aliases the rowid, so identities need no extra clause.
var Dialect = ddl.Dialect{
	QuoteIdent: liteIdent,
	QuoteTable: liteFQN,
	ColumnType: func(c ddl.ColumnDef) string {
		switch c.Type {
		case ddl.Identity, ddl.BigInt, ddl.Int:
			return "INTEGER"
		case ddl.Float:
			return "REAL"
		default:
			return "TEXT"
		}
	},
	IfNotExists: ddl.IfNotExistsClause,
}

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL("sqlite", func(ctx context.Context, repo storage.Repository, table string) error {
		return storage.ApplySchema(ctx, repo, table, Dialect)
	})
}
