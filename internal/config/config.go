// Package config defines the pipeline file model for the trip ETL and the
// helpers to load, default and lint it.
//
// Pipeline files are JSON or TOML; the field names are the same in both.
//
// Example (JSON, trimmed):
//
//	{
//	  "job":     "nyc_trips",
//	  "source":  { "path": "data/train.csv" },
//	  "storage": { "kind": "mysql", "db": { "dsn": "etl:etl@tcp(localhost:3306)/nyc", "table": "trips" } },
//	  "runtime": { "chunk_size": 200000, "batch_size": 1000 },
//	  "cleaning": { "distance_unit": "auto" }
//	}
package config

import (
	"tripetl/internal/cleanlog"
	"tripetl/internal/transformer"
)

// Defaults used when a field is left empty.
const (
	DefaultJob          = "trip_etl"
	DefaultStorageKind  = "mysql"
	DefaultTable        = "trips"
	DefaultChunkSize    = 200000
	DefaultBatchSize    = 1000
	DefaultDistanceUnit = "auto"
)

// Pipeline is the top-level object decoded from a pipeline file.
type Pipeline struct {
	// Job names the run in logs and metrics.
	Job string `json:"job" toml:"job"`

	Source   Source        `json:"source" toml:"source"`
	Parser   Parser        `json:"parser" toml:"parser"`
	Storage  Storage       `json:"storage" toml:"storage"`
	Runtime  RuntimeConfig `json:"runtime" toml:"runtime"`
	Cleaning Cleaning      `json:"cleaning" toml:"cleaning"`
}

// Source locates the input CSV.
type Source struct {
	// Path is the local filesystem path to the input file.
	Path string `json:"path" toml:"path"`

	// FingerprintBytes caps how much of the file is hashed for the run
	// fingerprint. Zero hashes the whole file.
	FingerprintBytes int64 `json:"fingerprint_bytes" toml:"fingerprint_bytes"`
}

// Parser configures CSV decoding.
type Parser struct {
	// Comma is the field delimiter; a single character. Empty means ",".
	Comma string `json:"comma" toml:"comma"`

	LazyQuotes bool `json:"lazy_quotes" toml:"lazy_quotes"`

	// Encoding is a WHATWG label such as "windows-1252". Empty means UTF-8.
	Encoding string `json:"encoding" toml:"encoding"`

	// TimestampLayouts are Go time layouts tried after the built-in ones.
	TimestampLayouts []string `json:"timestamp_layouts" toml:"timestamp_layouts"`
}

// Storage selects the sink.
type Storage struct {
	// Kind is one of "mysql", "postgres", "sqlite", "mssql".
	Kind string   `json:"kind" toml:"kind"`
	DB   DBConfig `json:"db" toml:"db"`
}

// DBConfig configures the database sink.
type DBConfig struct {
	DSN string `json:"dsn" toml:"dsn"`

	// Table is the fact table, possibly schema-qualified.
	Table string `json:"table" toml:"table"`

	// AutoCreateTable creates vendors, zones and the fact table if missing.
	AutoCreateTable bool `json:"auto_create_table" toml:"auto_create_table"`
}

// RuntimeConfig controls chunking and batching.
type RuntimeConfig struct {
	ChunkSize int `json:"chunk_size" toml:"chunk_size"`
	BatchSize int `json:"batch_size" toml:"batch_size"`
}

// Cleaning configures validation and the cleaning log.
type Cleaning struct {
	LogPath string `json:"log_path" toml:"log_path"`

	Bounds transformer.Bounds `json:"bounds" toml:"bounds"`

	// ServiceAreaGeoJSON is the path of an optional GeoJSON polygon that
	// coordinates must also fall inside.
	ServiceAreaGeoJSON string `json:"service_area_geojson" toml:"service_area_geojson"`

	// DistanceUnit is "auto", "auto-file", "km" or "mi".
	DistanceUnit string `json:"distance_unit" toml:"distance_unit"`

	MaxSpeedKmh float64 `json:"max_speed_kmh" toml:"max_speed_kmh"`
}

// Default returns a Pipeline with every default applied.
func Default() Pipeline {
	var p Pipeline
	ApplyDefaults(&p)
	return p
}

// ApplyDefaults fills zero-valued fields of p with their defaults.
func ApplyDefaults(p *Pipeline) {
	if p.Job == "" {
		p.Job = DefaultJob
	}
	if p.Parser.Comma == "" {
		p.Parser.Comma = ","
	}
	if p.Storage.Kind == "" {
		p.Storage.Kind = DefaultStorageKind
	}
	if p.Storage.DB.Table == "" {
		p.Storage.DB.Table = DefaultTable
	}
	if p.Runtime.ChunkSize == 0 {
		p.Runtime.ChunkSize = DefaultChunkSize
	}
	if p.Runtime.BatchSize == 0 {
		p.Runtime.BatchSize = DefaultBatchSize
	}
	if p.Cleaning.LogPath == "" {
		p.Cleaning.LogPath = cleanlog.DefaultPath
	}
	if p.Cleaning.Bounds.IsZero() {
		p.Cleaning.Bounds = transformer.NYCBounds
	}
	if p.Cleaning.DistanceUnit == "" {
		p.Cleaning.DistanceUnit = DefaultDistanceUnit
	}
	if p.Cleaning.MaxSpeedKmh == 0 {
		p.Cleaning.MaxSpeedKmh = transformer.DefaultMaxSpeedKmh
	}
}

// CommaRune returns the delimiter as a rune, or ',' when unset.
func (p Parser) CommaRune() rune {
	for _, r := range p.Comma {
		return r
	}
	return ','
}
