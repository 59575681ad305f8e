// Package csv streams delimited trip extracts in fixed-size row chunks.
//
// Only one chunk is materialized at a time, so memory stays around
// O(chunkSize × row width) regardless of file size. Rows that encoding/csv
// cannot parse are reported through Options.OnError and skipped; they never
// abort the stream.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// ErrNoHeader is returned by NewChunkReader when the input has no header row.
var ErrNoHeader = errors.New("csv: no header row")

// Options tunes the reader. The zero value reads comma-separated UTF-8.
type Options struct {
	// Comma is the field delimiter; 0 means ','.
	Comma rune

	// LazyQuotes tolerates bare quotes inside fields.
	LazyQuotes bool

	// Encoding names the source character set ("windows-1252", "latin1",
	// "utf-8", ...). Empty means UTF-8.
	Encoding string

	// OnError receives rows that failed to parse (soft-drop).
	OnError func(line int, err error)
}

// Chunk is one bounded slice of the input.
type Chunk struct {
	// Index is 1-based.
	Index int

	// Header is the folded header shared by every chunk of the file.
	Header []string

	// Rows holds raw cell values aligned to Header. Rows may be shorter than
	// Header; missing cells are treated as absent.
	Rows [][]string
}

// Len returns the number of rows in the chunk.
func (c Chunk) Len() int { return len(c.Rows) }

// ChunkReader yields consecutive chunks from a CSV stream.
type ChunkReader struct {
	cr        *csv.Reader
	header    []string
	rawHeader []string
	chunkSize int
	next      int
	line      int
	onErr     func(int, error)
	done      bool
}

// NewChunkReader wraps r, reads and folds the header, and returns a reader
// producing chunks of at most chunkSize rows.
func NewChunkReader(r io.Reader, chunkSize int, opt Options) (*ChunkReader, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("csv: chunkSize must be > 0")
	}

	if enc := strings.TrimSpace(opt.Encoding); enc != "" && !strings.EqualFold(enc, "utf-8") && !strings.EqualFold(enc, "utf8") {
		e, err := htmlindex.Get(enc)
		if err != nil {
			return nil, fmt.Errorf("csv: unknown encoding %q: %w", enc, err)
		}
		r = transform.NewReader(r, e.NewDecoder())
	}

	cr := csv.NewReader(r)
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	cr.LazyQuotes = opt.LazyQuotes
	cr.FieldsPerRecord = -1 // tolerant by default

	c := &ChunkReader{cr: cr, chunkSize: chunkSize, onErr: opt.OnError}

	hdr, err := c.read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}
	stripBOM(hdr)
	c.rawHeader = append([]string(nil), hdr...)
	c.header = make([]string, len(hdr))
	nonEmpty := 0
	for i, h := range hdr {
		c.header[i] = FoldHeader(h)
		if c.header[i] != "" {
			nonEmpty++
		}
	}
	if nonEmpty == 0 {
		return nil, ErrNoHeader
	}
	return c, nil
}

// Header returns the folded header.
func (c *ChunkReader) Header() []string { return c.header }

// RawHeader returns the header cells as they appeared in the file.
func (c *ChunkReader) RawHeader() []string { return c.rawHeader }

// Next returns the next non-empty chunk, or io.EOF once the input is drained.
func (c *ChunkReader) Next() (Chunk, error) {
	if c.done {
		return Chunk{}, io.EOF
	}

	rows := make([][]string, 0, min(c.chunkSize, 4096))
	for len(rows) < c.chunkSize {
		rec, err := c.read()
		if err == io.EOF {
			c.done = true
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				if c.onErr != nil {
					c.onErr(pe.Line, err)
				}
				continue
			}
			return Chunk{}, fmt.Errorf("csv: read line %d: %w", c.line, err)
		}
		if isBlank(rec) {
			continue
		}
		rows = append(rows, rec)
	}

	if len(rows) == 0 {
		return Chunk{}, io.EOF
	}
	c.next++
	return Chunk{Index: c.next, Header: c.header, Rows: rows}, nil
}

func (c *ChunkReader) read() ([]string, error) {
	c.line++
	return c.cr.Read()
}

// isBlank reports whether every cell of rec is empty after trimming.
func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
