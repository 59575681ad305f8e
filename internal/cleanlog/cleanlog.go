// Package cleanlog appends one line per chunk with rejected rows to the
// cleaning log, a CSV file that accumulates across runs.
package cleanlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// DefaultPath is where the log goes unless configured otherwise.
const DefaultPath = "data/logs/cleaning_log.csv"

// Header is the first line of a new cleaning log.
var Header = []string{"chunk_index", "excluded_count", "sample_reason"}

// Entry is one cleaning-log line. SampleReason is the reason set of the
// chunk's first rejected row, codes joined with ";".
type Entry struct {
	ChunkIndex    int
	ExcludedCount int
	SampleReason  string
}

// Log appends entries to the file at Path.
type Log struct {
	Path string
}

// New returns a Log writing to path, or DefaultPath when path is empty.
func New(path string) *Log {
	if path == "" {
		path = DefaultPath
	}
	return &Log{Path: path}
}

// Append writes e as one line. The parent directory is created if needed and
// the header is written first when the file is missing or empty. The file is
// opened and closed per call so every entry is durable before the next chunk.
func (l *Log) Append(e Entry) error {
	if err := os.MkdirAll(filepath.Dir(l.Path), 0o755); err != nil {
		return fmt.Errorf("cleanlog: mkdir: %w", err)
	}
	f, err := os.OpenFile(l.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("cleanlog: open: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("cleanlog: stat: %w", err)
	}

	w := csv.NewWriter(f)
	if fi.Size() == 0 {
		_ = w.Write(Header)
	}
	_ = w.Write([]string{
		strconv.Itoa(e.ChunkIndex),
		strconv.Itoa(e.ExcludedCount),
		e.SampleReason,
	})
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("cleanlog: write: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("cleanlog: close: %w", err)
	}
	return nil
}
