package config

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"

	"tripetl/internal/transformer"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "storage.kind",
// "cleaning.bounds.min_lat"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// StorageKinds lists the storage kinds the binary ships with.
var StorageKinds = []string{"mysql", "postgres", "sqlite", "mssql"}

// ValidatePipeline performs static validation of a defaulted Pipeline. It
// does not touch the filesystem or the network.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(p.Job) == "" {
		add(SeverityWarning, "job", "job is empty; metrics will be unlabeled")
	}

	if strings.TrimSpace(p.Source.Path) == "" {
		add(SeverityError, "source.path", "input path must not be empty")
	}
	if p.Source.FingerprintBytes < 0 {
		add(SeverityError, "source.fingerprint_bytes", "must be >= 0")
	}

	if utf8.RuneCountInString(p.Parser.Comma) != 1 {
		add(SeverityError, "parser.comma", "delimiter must be exactly one character, got %q", p.Parser.Comma)
	} else if r := p.Parser.CommaRune(); r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		add(SeverityError, "parser.comma", "delimiter %q is not allowed", p.Parser.Comma)
	}
	if enc := p.Parser.Encoding; enc != "" {
		if _, err := htmlindex.Get(enc); err != nil {
			add(SeverityError, "parser.encoding", "unknown encoding %q", enc)
		}
	}

	if !knownKind(p.Storage.Kind) {
		add(SeverityError, "storage.kind", "unsupported storage kind %q (want one of %s)", p.Storage.Kind, strings.Join(StorageKinds, ", "))
	}
	if strings.TrimSpace(p.Storage.DB.DSN) == "" {
		add(SeverityError, "storage.db.dsn", "dsn must not be empty")
	}
	if strings.TrimSpace(p.Storage.DB.Table) == "" {
		add(SeverityError, "storage.db.table", "table must not be empty")
	}

	if p.Runtime.ChunkSize <= 0 {
		add(SeverityError, "runtime.chunk_size", "must be > 0, got %d", p.Runtime.ChunkSize)
	}
	if p.Runtime.BatchSize <= 0 {
		add(SeverityError, "runtime.batch_size", "must be > 0, got %d", p.Runtime.BatchSize)
	}
	if p.Runtime.ChunkSize > 0 && p.Runtime.BatchSize > p.Runtime.ChunkSize {
		add(SeverityWarning, "runtime.batch_size", "batch_size %d exceeds chunk_size %d; every chunk loads in one batch", p.Runtime.BatchSize, p.Runtime.ChunkSize)
	}

	b := p.Cleaning.Bounds
	if b.MinLat >= b.MaxLat {
		add(SeverityError, "cleaning.bounds", "min_lat %.4f must be below max_lat %.4f", b.MinLat, b.MaxLat)
	}
	if b.MinLon >= b.MaxLon {
		add(SeverityError, "cleaning.bounds", "min_lon %.4f must be below max_lon %.4f", b.MinLon, b.MaxLon)
	}
	if b.MinLat < -90 || b.MaxLat > 90 || b.MinLon < -180 || b.MaxLon > 180 {
		add(SeverityError, "cleaning.bounds", "bounds fall outside valid latitude/longitude ranges")
	}
	if _, ok := transformer.ParseDistanceUnit(p.Cleaning.DistanceUnit); !ok {
		add(SeverityError, "cleaning.distance_unit", "unknown unit %q (want auto, auto-file, km or mi)", p.Cleaning.DistanceUnit)
	}
	if p.Cleaning.MaxSpeedKmh <= 0 {
		add(SeverityError, "cleaning.max_speed_kmh", "must be > 0")
	}
	if strings.TrimSpace(p.Cleaning.LogPath) == "" {
		add(SeverityError, "cleaning.log_path", "log path must not be empty")
	}

	return issues
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

func knownKind(kind string) bool {
	for _, k := range StorageKinds {
		if k == kind {
			return true
		}
	}
	return false
}
