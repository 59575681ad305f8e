// Package file implements a local filesystem-backed data source.
package file

import (
	"context"
	"fmt"
	"io"
	"os"

	"tripetl/internal/datasource"
)

// Local is a filesystem data source that opens files from the local disk.
type Local struct{ path string }

var _ datasource.Source = (*Local)(nil)

// NewLocal returns a new Local data source bound to the provided filesystem
// path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Name returns the path.
func (l *Local) Name() string { return l.path }

// Check fails when the path is missing, is a directory, or holds zero bytes.
// Missing files satisfy errors.Is(err, os.ErrNotExist); empty ones
// errors.Is(err, datasource.ErrEmpty).
func (l *Local) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fi, err := os.Stat(l.path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", l.path, err)
	}
	if fi.IsDir() {
		return fmt.Errorf("%s is a directory", l.path)
	}
	if fi.Size() == 0 {
		return fmt.Errorf("%s: %w", l.path, datasource.ErrEmpty)
	}
	return nil
}

// Open opens the configured path for reading and returns an io.ReadCloser.
//
// If the context is already done, Open returns the context error without
// touching the filesystem. The file is opened for a single sequential pass
// and the kernel is told so where supported.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	adviseSequential(f)
	return f, nil
}
