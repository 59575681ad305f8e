package mssql

import (
	"context"
	"fmt"

	"tripetl/internal/ddl"
	"tripetl/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

// wrappedRepo adapts *Repository to storage.Repository.
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

// Dialect renders the star schema for SQL Server.
var Dialect = ddl.Dialect{
	QuoteIdent: msIdent,
	QuoteTable: msFQN,
	ColumnType: func(c ddl.ColumnDef) string {
		switch c.Type {
		case ddl.Identity:
			return "BIGINT IDENTITY(1,1)"
		case ddl.BigInt:
			return "BIGINT"
		case ddl.Int:
			return "INT"
		case ddl.Float:
			return "FLOAT"
		case ddl.Timestamp:
			return "DATETIME2"
		default:
			return fmt.Sprintf("NVARCHAR(%d)", c.Size)
		}
	},
	IfNotExists: ifObjectMissing,
}

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL("mssql", func(ctx context.Context, repo storage.Repository, table string) error {
		return storage.ApplySchema(ctx, repo, table, Dialect)
	})
}
