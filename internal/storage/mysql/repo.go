// Package mysql implements a MySQL-backed storage.Repository using
// database/sql and go-sql-driver/mysql. Fact rows are written with multi-row
// INSERT statements inside one transaction per batch.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// maxPlaceholders is the server limit on bind parameters per statement.
const maxPlaceholders = 65535

// Config holds MySQL repository configuration.
type Config struct {
	DSN   string // e.g. "user:pass@tcp(127.0.0.1:3306)/nyc"
	Table string // fact table, optionally "schema.table"
}

// Repository is a MySQL-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository parses the DSN, opens a single-connection pool and returns a
// Repository plus a Close function. Time values are exchanged as UTC.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	mcfg, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql dsn: %w", err)
	}
	mcfg.ParseTime = true
	mcfg.Loc = time.UTC

	conn, err := mysql.NewConnector(mcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(conn)
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	closeFn := func() { _ = db.Close() }
	return &Repository{db: db, cfg: cfg}, closeFn, nil
}

// CopyFrom inserts rows with as few multi-row INSERT statements as the
// placeholder limit allows, all in one transaction.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("mysql: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	perStmt := max(maxPlaceholders/len(columns), 1)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	rollback := func() { _ = tx.Rollback() }

	args := make([]any, 0, min(len(rows), perStmt)*len(columns))
	for lo := 0; lo < len(rows); lo += perStmt {
		hi := min(lo+perStmt, len(rows))
		args = args[:0]
		for i, row := range rows[lo:hi] {
			if len(row) != len(columns) {
				rollback()
				return 0, fmt.Errorf("mysql: CopyFrom: row %d length %d != columns length %d", lo+i, len(row), len(columns))
			}
			args = append(args, row...)
		}
		if _, err := tx.ExecContext(ctx, buildInsert(r.cfg.Table, columns, hi-lo), args...); err != nil {
			rollback()
			return 0, fmt.Errorf("insert rows %d-%d: %w", lo, hi-1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return int64(len(rows)), nil
}

// LookupVendor implements storage.Repository.
func (r *Repository) LookupVendor(ctx context.Context, code string) (int64, bool, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, "SELECT vendor_id FROM vendors WHERE vendor_code = ?", code).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup vendor %q: %w", code, err)
	}
	return id, true, nil
}

// InsertVendor implements storage.Repository. The statement autocommits.
func (r *Repository) InsertVendor(ctx context.Context, code, name string) (int64, error) {
	res, err := r.db.ExecContext(ctx, "INSERT INTO vendors (vendor_code, vendor_name) VALUES (?, ?)", code, name)
	if err != nil {
		return 0, fmt.Errorf("insert vendor %q: %w", code, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("vendor id: %w", err)
	}
	return id, nil
}

// Exec executes an arbitrary SQL statement, typically DDL.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if strings.TrimSpace(sql) == "" {
		return nil
	}
	_, err := r.db.ExecContext(ctx, sql)
	return err
}

// buildInsert renders INSERT INTO t (c1, c2) VALUES (?, ?), (?, ?) for nrows.
func buildInsert(table string, columns []string, nrows int) string {
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"

	var sb strings.Builder
	sb.Grow(32 + len(table) + 8*len(columns) + nrows*(len(tuple)+2))
	sb.WriteString("INSERT INTO ")
	sb.WriteString(myFQN(table))
	sb.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(myIdent(c))
	}
	sb.WriteString(") VALUES ")
	for i := 0; i < nrows; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(tuple)
	}
	return sb.String()
}

// myIdent backtick-quotes a single identifier, doubling embedded backticks.
func myIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

// myFQN quotes each dot-separated segment of name.
func myFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = myIdent(p)
	}
	return strings.Join(parts, ".")
}
