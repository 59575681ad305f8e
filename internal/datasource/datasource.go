// Package datasource defines where trip files come from.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/zeebo/xxh3"
)

// ErrEmpty is returned by Check for an input with zero bytes.
var ErrEmpty = errors.New("input is empty")

// Source is a readable trip file.
type Source interface {
	// Name identifies the input in logs.
	Name() string
	// Check verifies the input exists and holds at least one byte.
	Check(ctx context.Context) error
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Fingerprint hashes up to limit leading bytes of src with XXH3 and returns
// the digest as 16 hex digits. limit <= 0 hashes the whole input. It tags
// runs in logs so re-runs of the same file are easy to correlate.
func Fingerprint(ctx context.Context, src Source, limit int64) (string, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	var r io.Reader = rc
	if limit > 0 {
		r = io.LimitReader(rc, limit)
	}
	h := xxh3.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", src.Name(), err)
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// FormatLimit renders a fingerprint limit for logs.
func FormatLimit(limit int64) string {
	if limit <= 0 {
		return "all"
	}
	return strconv.FormatInt(limit, 10)
}
