// Package storage contains the storage-agnostic contracts of the trip
// pipeline: the Repository every backend implements, a factory keyed by
// storage kind, schema bootstrap registration and the batched loader.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Repository is the write side of a relational store holding the trip star
// schema. Implementations hold a single connection and are not safe for
// concurrent use.
type Repository interface {
	// CopyFrom inserts rows (aligned to columns) into the fact table in one
	// transaction, committed before returning. On error nothing from this
	// call is committed.
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)

	// LookupVendor returns the surrogate key of the vendor with code.
	LookupVendor(ctx context.Context, code string) (id int64, found bool, err error)

	// InsertVendor creates a vendor row, commits it, and returns its
	// store-assigned key.
	InsertVendor(ctx context.Context, code, name string) (int64, error)

	// Exec runs a statement, typically DDL.
	Exec(ctx context.Context, sql string) error

	Close()
}

// Config is the backend-independent connection configuration.
type Config struct {
	Kind  string // "mysql", "postgres", "sqlite", "mssql"
	DSN   string
	Table string // fact table, possibly schema-qualified
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the Factory for kind. Backends call it
// from init.
func Register(kind string, fn Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = fn
}

// New opens a Repository using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	fn, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return fn(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
