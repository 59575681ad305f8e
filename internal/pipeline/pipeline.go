// Package pipeline runs one trip ingestion end to end: it checks the input,
// connects to the store, streams the file chunk by chunk through
// normalize → derive → validate → resolve vendors → load, writes one cleaning
// log line per chunk, and reports a summary.
//
// Execution is strictly sequential on a single store connection. Chunk n+1 is
// not read until chunk n is loaded and logged. Every failure is terminal for
// the run; nothing is retried.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"tripetl/internal/cleanlog"
	"tripetl/internal/config"
	"tripetl/internal/datasource"
	"tripetl/internal/datasource/file"
	"tripetl/internal/dimension"
	"tripetl/internal/metrics"
	csvparser "tripetl/internal/parser/csv"
	"tripetl/internal/storage"
	"tripetl/internal/transformer"
	"tripetl/internal/trip"
)

var (
	// ErrPrecondition marks failures detected before the first chunk: invalid
	// configuration, a missing, empty or header-less input, or an unreachable
	// store.
	ErrPrecondition = errors.New("precondition failed")

	// ErrStore marks store write failures during the run: schema creation,
	// vendor creation or a fact batch insert. Batches committed before the
	// failure stay committed.
	ErrStore = errors.New("store write failed")
)

// parseErrorSamples is how many unparsable lines are echoed in the summary.
const parseErrorSamples = 10

// Function variables used as test seams.
var (
	newRepositoryFn = func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return storage.New(ctx, cfg)
	}

	newSourceFn = func(path string) datasource.Source {
		return file.NewLocal(path)
	}
)

// Runner executes a single run of a pipeline. A Runner is not reusable.
type Runner struct {
	p       config.Pipeline
	verbose bool

	state State
	runID string

	norm      *transformer.Normalizer
	validator *transformer.Validator
	clog      *cleanlog.Log
	parseErrs *errAgg
	summary   Summary
}

// Option tweaks a Runner.
type Option func(*Runner)

// WithVerbose enables per-chunk diagnostic logging.
func WithVerbose(v bool) Option { return func(r *Runner) { r.verbose = v } }

// WithRunID overrides the generated run ID.
func WithRunID(id string) Option { return func(r *Runner) { r.runID = id } }

// New returns an idle Runner for p. Defaults are applied to a copy of p.
func New(p config.Pipeline, opts ...Option) *Runner {
	config.ApplyDefaults(&p)
	r := &Runner{
		p:         p,
		state:     Idle,
		runID:     uuid.NewString(),
		parseErrs: newErrAgg(parseErrorSamples),
	}
	for _, o := range opts {
		o(r)
	}
	r.summary.RunID = r.runID
	return r
}

// State returns the current lifecycle state.
func (r *Runner) State() State { return r.state }

// RunID returns the identifier tagged on every log line of this run.
func (r *Runner) RunID() string { return r.runID }

func (r *Runner) transition(to State) {
	if !canTransition(r.state, to) {
		panic(fmt.Sprintf("pipeline: illegal transition %s -> %s", r.state, to))
	}
	log.Printf("run=%s state: %s -> %s", r.runID, r.state, to)
	r.state = to
}

func (r *Runner) fail(err error) (Summary, error) {
	r.transition(Failed)
	log.Printf("run=%s failed: %v", r.runID, err)
	return r.summary, err
}

// Run executes the pipeline once. The returned error wraps ErrPrecondition or
// ErrStore when the failure falls into either class. The Summary holds the
// totals reached so far even when err is non-nil.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	if r.state != Idle {
		return r.summary, fmt.Errorf("pipeline: runner already used (state=%s)", r.state)
	}
	start := time.Now()
	defer func() { r.summary.Elapsed = time.Since(start) }()

	// Validating input.
	r.transition(ValidatingInput)
	stepStart := time.Now()
	src, cr, closeSrc, err := r.prepareInput(ctx)
	metrics.RecordStep(r.p.Job, "validate_input", err, time.Since(stepStart))
	if err != nil {
		return r.fail(err)
	}
	defer closeSrc()
	log.Printf("run=%s job=%s input=%s fingerprint=%s (bytes=%s)",
		r.runID, r.p.Job, src.Name(), r.summary.Fingerprint, datasource.FormatLimit(r.p.Source.FingerprintBytes))

	// Connecting to the store.
	r.transition(ConnectingStore)
	stepStart = time.Now()
	repo, err := r.connect(ctx)
	metrics.RecordStep(r.p.Job, "connect", err, time.Since(stepStart))
	if err != nil {
		return r.fail(err)
	}
	defer repo.Close()

	// Streaming.
	r.transition(Streaming)
	resolver := dimension.NewVendorResolver(repo)
	err = r.stream(ctx, cr, repo, resolver)
	r.summary.VendorsCreated = resolver.Created()
	metrics.RecordRow(r.p.Job, metrics.KindParseErrors, r.summary.ParseErrors)
	if err != nil {
		r.parseErrs.log("parse errors")
		return r.fail(err)
	}

	// Reporting.
	r.transition(Reporting)
	stepStart = time.Now()
	r.summary.Elapsed = time.Since(start)
	r.parseErrs.log("parse errors")
	logSummary(r.summary, r.clog.Path)
	metrics.RecordStep(r.p.Job, "summary", nil, time.Since(stepStart))

	r.transition(Closed)
	return r.summary, nil
}

// prepareInput lints the configuration, checks the input file, fingerprints
// it, builds the per-run transformers and opens the chunk reader. Every error
// wraps ErrPrecondition.
func (r *Runner) prepareInput(ctx context.Context) (datasource.Source, *csvparser.ChunkReader, func(), error) {
	issues := config.ValidatePipeline(r.p)
	for _, iss := range issues {
		if iss.Severity == config.SeverityWarning {
			log.Printf("config %s", iss.Error())
		}
	}
	for _, iss := range issues {
		if iss.Severity == config.SeverityError {
			return nil, nil, nil, fmt.Errorf("%w: invalid config: %v", ErrPrecondition, iss)
		}
	}

	src := newSourceFn(r.p.Source.Path)
	if err := src.Check(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: input: %w", ErrPrecondition, err)
	}

	fp, err := datasource.Fingerprint(ctx, src, r.p.Source.FingerprintBytes)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %w", ErrPrecondition, err)
	}
	r.summary.Fingerprint = fp

	unit, _ := transformer.ParseDistanceUnit(r.p.Cleaning.DistanceUnit)
	r.norm = transformer.NewNormalizer(unit, r.p.Parser.TimestampLayouts)

	v := transformer.NewValidator(r.p.Cleaning.Bounds, r.p.Cleaning.MaxSpeedKmh)
	if path := r.p.Cleaning.ServiceAreaGeoJSON; path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%w: service area: %w", ErrPrecondition, err)
		}
		if v, err = v.WithServiceArea(string(b)); err != nil {
			return nil, nil, nil, fmt.Errorf("%w: %w", ErrPrecondition, err)
		}
	}
	r.validator = v
	r.clog = cleanlog.New(r.p.Cleaning.LogPath)

	rc, err := src.Open(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %w", ErrPrecondition, err)
	}
	cr, err := csvparser.NewChunkReader(rc, r.p.Runtime.ChunkSize, csvparser.Options{
		Comma:      r.p.Parser.CommaRune(),
		LazyQuotes: r.p.Parser.LazyQuotes,
		Encoding:   r.p.Parser.Encoding,
		OnError: func(line int, err error) {
			r.summary.ParseErrors++
			r.parseErrs.add(fmt.Sprintf("line %d: %v", line, err))
		},
	})
	if err != nil {
		rc.Close()
		return nil, nil, nil, fmt.Errorf("%w: %s: %w", ErrPrecondition, src.Name(), err)
	}
	if r.verbose {
		log.Printf("run=%s header=%v binding=%+v", r.runID, cr.Header(), transformer.Bind(cr.Header()))
	}
	return src, cr, func() { rc.Close() }, nil
}

// connect opens the store and, when enabled, creates the star schema.
func (r *Runner) connect(ctx context.Context) (storage.Repository, error) {
	db := r.p.Storage.DB
	repo, err := newRepositoryFn(ctx, storage.Config{
		Kind:  r.p.Storage.Kind,
		DSN:   db.DSN,
		Table: db.Table,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %w", ErrPrecondition, r.p.Storage.Kind, err)
	}
	log.Printf("run=%s storage=%s table=%s", r.runID, r.p.Storage.Kind, db.Table)

	if db.AutoCreateTable {
		if err := storage.EnsureSchema(ctx, r.p.Storage.Kind, repo, db.Table); err != nil {
			repo.Close()
			return nil, fmt.Errorf("%w: create schema: %w", ErrStore, err)
		}
		log.Printf("run=%s schema ensured: %s", r.runID, db.Table)
	}
	return repo, nil
}

// stream drives the chunk loop until the reader is drained or a chunk fails.
func (r *Runner) stream(ctx context.Context, cr *csvparser.ChunkReader, repo storage.Repository, resolver *dimension.VendorResolver) error {
	for {
		ch, err := cr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read chunk %d: %w", r.summary.Chunks+1, err)
		}

		start := time.Now()
		err = r.processChunk(ctx, ch, repo, resolver)
		metrics.RecordStep(r.p.Job, "chunk", err, time.Since(start))
		if err != nil {
			return err
		}
	}
}

// processChunk runs one chunk through the stages and records its totals.
func (r *Runner) processChunk(ctx context.Context, ch csvparser.Chunk, repo storage.Repository, resolver *dimension.VendorResolver) error {
	res, err := r.transformChunk(ctx, ch, resolver)
	r.summary.Chunks++
	r.summary.Read += int64(res.read)
	if err != nil {
		return err
	}

	n, loadErr := storage.LoadBatches(ctx, trip.FactColumns, res.rows, r.p.Runtime.BatchSize, repo.CopyFrom)
	r.summary.Inserted += n
	metrics.RecordRow(r.p.Job, metrics.KindInserted, n)
	if loadErr != nil {
		// Only the batches before the failing one were committed.
		committed := int(n) / r.p.Runtime.BatchSize
		r.summary.Batches += committed
		metrics.RecordBatches(r.p.Job, int64(committed))
		return fmt.Errorf("%w: chunk %d: load: %w", ErrStore, ch.Index, loadErr)
	}
	batches := storage.BatchCount(len(res.rows), r.p.Runtime.BatchSize)
	r.summary.Batches += batches
	metrics.RecordBatches(r.p.Job, int64(batches))

	sample := ""
	if len(res.rejected) > 0 {
		sample = res.rejected[0].Reasons.String()
	}
	if err := r.clog.Append(cleanlog.Entry{
		ChunkIndex:    ch.Index,
		ExcludedCount: len(res.rejected),
		SampleReason:  sample,
	}); err != nil {
		return fmt.Errorf("chunk %d: %w", ch.Index, err)
	}

	log.Printf("chunk=%d read=%d accepted=%d inserted=%d rejected=%d miles=%t",
		ch.Index, res.read, res.accepted, n, len(res.rejected), res.miles)
	if r.verbose && sample != "" {
		log.Printf("chunk=%d sample_reason=%s", ch.Index, sample)
	}
	return nil
}

// transformedChunk is a chunk after every in-memory stage, ready to load.
type transformedChunk struct {
	read     int
	accepted int
	rejected []transformer.Outcome
	miles    bool
	rows     [][]any
}

// transformChunk normalizes, derives and validates ch, then resolves vendors
// for the accepted records and flattens them to fact rows.
func (r *Runner) transformChunk(ctx context.Context, ch csvparser.Chunk, resolver *dimension.VendorResolver) (transformedChunk, error) {
	var out transformedChunk

	recs, info := r.norm.Normalize(ch.Header, ch.Rows)
	out.read = len(recs)
	out.miles = info.MilesConverted
	metrics.RecordRow(r.p.Job, metrics.KindRead, int64(len(recs)))

	derived := make([]trip.Derived, len(recs))
	opt := transformer.DeriveOptions{ExplicitDuration: info.ExplicitDuration}
	for i, n := range recs {
		derived[i] = transformer.Derive(n, opt)
	}

	accepted, rejected := r.validator.Partition(derived)
	out.accepted = len(accepted)
	out.rejected = rejected
	r.summary.Accepted += int64(len(accepted))
	r.summary.Rejected += int64(len(rejected))
	metrics.RecordRow(r.p.Job, metrics.KindAccepted, int64(len(accepted)))
	metrics.RecordRow(r.p.Job, metrics.KindRejected, int64(len(rejected)))

	perReason := make(map[trip.Reason]int64)
	for _, o := range rejected {
		r.summary.addReasons(o.Reasons)
		for _, reason := range o.Reasons.Reasons() {
			perReason[reason]++
		}
	}
	for reason, n := range perReason {
		metrics.RecordRejection(r.p.Job, reason.String(), n)
	}

	out.rows = make([][]any, 0, len(accepted))
	for _, d := range accepted {
		vid, err := resolver.Resolve(ctx, d.VendorCode)
		if err != nil {
			return out, fmt.Errorf("%w: chunk %d: %w", ErrStore, ch.Index, err)
		}
		out.rows = append(out.rows, trip.FactRow{Derived: d, VendorID: vid}.Values())
	}
	return out, nil
}
