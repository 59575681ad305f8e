package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"tripetl/internal/config"
	"tripetl/internal/metrics"
	"tripetl/internal/metrics/datadog"
	"tripetl/internal/metrics/prompush"
	"tripetl/internal/pipeline"

	// register all backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "tripetl/internal/storage/all"
)

// main is the entry point for the ETL binary. It resolves the pipeline config
// from file, flags and environment, optionally initializes a metrics backend,
// and executes one run.
func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// options are the command-line flags. File values are overridden only by flags
// the user actually set.
type options struct {
	cfgPath      string
	input        string
	storageKind  string
	dsn          string
	table        string
	chunkSize    int
	batchSize    int
	cleaningLog  string
	distanceUnit string
	autoCreate   bool
	validate     bool
	metricsBack  string
	pushGateway  string
	statsdAddr   string
	verbose      bool
}

// run parses args, executes the pipeline and returns the process exit code:
// 0 on success, 1 on any fatal failure, 2 on a usage error.
func run(args []string, stderr io.Writer) int {
	fs := pflag.NewFlagSet("etl", pflag.ContinueOnError)
	fs.SetOutput(stderr)

	var o options
	fs.StringVarP(&o.cfgPath, "config", "c", "", "pipeline config path (.json or .toml)")
	fs.StringVarP(&o.input, "input", "i", "", "input trip CSV (overrides source.path)")
	fs.StringVar(&o.storageKind, "storage", "", "storage kind: mysql, postgres, sqlite, mssql (overrides storage.kind)")
	fs.StringVar(&o.dsn, "dsn", "", "store connection string (overrides storage.db.dsn)")
	fs.StringVar(&o.table, "table", "", "fact table name (overrides storage.db.table)")
	fs.IntVar(&o.chunkSize, "chunk-size", 0, "rows per chunk (env ETL_CHUNK_SIZE)")
	fs.IntVar(&o.batchSize, "batch-size", 0, "rows per insert batch (env ETL_BATCH_SIZE)")
	fs.StringVar(&o.cleaningLog, "cleaning-log", "", "cleaning log CSV path (overrides cleaning.log_path)")
	fs.StringVar(&o.distanceUnit, "distance-unit", "", "distance unit policy: auto, auto-file, km, mi")
	fs.BoolVar(&o.autoCreate, "auto-create-table", false, "create vendors, zones and the fact table if missing")
	fs.BoolVar(&o.validate, "validate", false, "validate the configuration and exit")
	fs.StringVar(&o.metricsBack, "metrics-backend", "", "metrics backend: pushgateway, datadog, none (env METRICS_BACKEND)")
	fs.StringVar(&o.pushGateway, "pushgateway-url", "", "Pushgateway base URL (env PUSHGATEWAY_URL)")
	fs.StringVar(&o.statsdAddr, "statsd-addr", "", "DogStatsD address (env DD_DOGSTATSD_ADDR)")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "enable verbose logs")

	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		return 2
	}

	p, err := resolvePipeline(fs, o)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}

	// Validate pipeline config.
	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.Printf("Configuration is invalid: %v", describe(o.cfgPath))
		return 1
	}

	// If validate flag is set, only validate the configuration and exit.
	if o.validate {
		log.Printf("Configuration is valid: %v", describe(o.cfgPath))
		return 0
	}

	if flush := initMetrics(o, p.Job); flush != nil {
		defer flush()
	}

	ctx := context.Background()
	start := time.Now()

	if o.verbose {
		log.Printf("pipeline: input=%s storage=%s table=%s chunk=%d batch=%d unit=%s",
			p.Source.Path, p.Storage.Kind, p.Storage.DB.Table,
			p.Runtime.ChunkSize, p.Runtime.BatchSize, p.Cleaning.DistanceUnit)
	}

	r := pipeline.New(p, pipeline.WithVerbose(o.verbose))
	if _, err := r.Run(ctx); err != nil {
		log.Printf("run=%s: %v", r.RunID(), err)
		return 1
	}

	if o.verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
	return 0
}

// resolvePipeline loads the config file (if any), layers environment and flag
// overrides on top, and applies defaults. Precedence: flag → file → env →
// default.
func resolvePipeline(fs *pflag.FlagSet, o options) (config.Pipeline, error) {
	var p config.Pipeline
	if o.cfgPath != "" {
		var err error
		if p, err = config.Read(o.cfgPath); err != nil {
			return p, err
		}
	}

	p.Runtime.ChunkSize = pickInt(p.Runtime.ChunkSize, getenvInt("ETL_CHUNK_SIZE", 0))
	p.Runtime.BatchSize = pickInt(p.Runtime.BatchSize, getenvInt("ETL_BATCH_SIZE", 0))

	if fs.Changed("input") {
		p.Source.Path = o.input
	}
	if fs.Changed("storage") {
		p.Storage.Kind = o.storageKind
	}
	if fs.Changed("dsn") {
		p.Storage.DB.DSN = o.dsn
	}
	if fs.Changed("table") {
		p.Storage.DB.Table = o.table
	}
	if fs.Changed("chunk-size") {
		p.Runtime.ChunkSize = o.chunkSize
	}
	if fs.Changed("batch-size") {
		p.Runtime.BatchSize = o.batchSize
	}
	if fs.Changed("cleaning-log") {
		p.Cleaning.LogPath = o.cleaningLog
	}
	if fs.Changed("distance-unit") {
		p.Cleaning.DistanceUnit = o.distanceUnit
	}
	if fs.Changed("auto-create-table") {
		p.Storage.DB.AutoCreateTable = o.autoCreate
	}

	config.ApplyDefaults(&p)
	return p, nil
}

// initMetrics installs the selected backend and returns its flush function,
// or nil when metrics are disabled. Backend choice: flag → env → none.
func initMetrics(o options, job string) func() {
	backendName := pickString(o.metricsBack, os.Getenv("METRICS_BACKEND"))

	var (
		b   metrics.Backend
		err error
	)
	switch backendName {
	case "pushgateway":
		// Decide Pushgateway URL: flag → env → default.
		gwURL := pickString(o.pushGateway, pickString(os.Getenv("PUSHGATEWAY_URL"), "http://localhost:9091"))
		b, err = prompush.NewBackend(job, gwURL)
		if err == nil {
			log.Printf("metrics: url=%v, backend=%v, job_name=%v", gwURL, backendName, job)
		}

	case "datadog":
		addr := pickString(o.statsdAddr, pickString(os.Getenv("DD_DOGSTATSD_ADDR"), "127.0.0.1:8125"))
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       addr,
			Namespace:  "trip_etl.",
			GlobalTags: []string{"job:" + job},
		})
		if err == nil {
			log.Printf("metrics: addr=%v, backend=%v, job_name=%v", addr, backendName, job)
		}

	case "", "none":
		// metrics disabled; nop backend remains
		if o.verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}
		return nil

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
		return nil
	}

	if err != nil {
		log.Printf("metrics: failed to init %s backend: %v; using nop", backendName, err)
		return nil
	}
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}
}

func describe(cfgPath string) string {
	if cfgPath == "" {
		return "(flags only)"
	}
	return cfgPath
}

// getenvInt reads an int from environment, returning def when unset/invalid.
func getenvInt(k string, def int) int {
	if s := os.Getenv(k); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

// pickInt chooses the first positive value 'a', otherwise returns 'b'.
func pickInt(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}

// pickString chooses 'a' unless it is empty.
func pickString(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
