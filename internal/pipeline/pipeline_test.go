package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripetl/internal/config"
	"tripetl/internal/datasource"
	"tripetl/internal/storage"
	_ "tripetl/internal/storage/sqlite"
	"tripetl/internal/trip"
)

const tripHeader = "vendor_id,pickup_datetime,dropoff_datetime,pickup_longitude,pickup_latitude,dropoff_longitude,dropoff_latitude,fare_amount\n"

// validRow is 10 minutes and about 5 km long with a 12.00 fare.
const validRow = "1,2016-03-14 17:00:00,2016-03-14 17:10:00,-73.9900,40.7500,-73.9310,40.7500,12.00\n"

type fakeRepo struct {
	copies     [][][]any
	vendors    map[string]int64
	inserts    int
	lookups    int
	failCopyAt int // 1-based CopyFrom call that fails; 0 never fails
	closed     bool
}

func newFakeRepo() *fakeRepo { return &fakeRepo{vendors: map[string]int64{}} }

func (f *fakeRepo) CopyFrom(_ context.Context, columns []string, rows [][]any) (int64, error) {
	if len(columns) != len(trip.FactColumns) {
		return 0, errors.New("unexpected column list")
	}
	if f.failCopyAt > 0 && len(f.copies)+1 == f.failCopyAt {
		return 0, errors.New("connection reset")
	}
	f.copies = append(f.copies, rows)
	return int64(len(rows)), nil
}

func (f *fakeRepo) LookupVendor(_ context.Context, code string) (int64, bool, error) {
	f.lookups++
	id, ok := f.vendors[code]
	return id, ok, nil
}

func (f *fakeRepo) InsertVendor(_ context.Context, code, _ string) (int64, error) {
	f.inserts++
	id := int64(len(f.vendors) + 100)
	f.vendors[code] = id
	return id, nil
}

func (f *fakeRepo) Exec(context.Context, string) error { return nil }
func (f *fakeRepo) Close()                             { f.closed = true }

func (f *fakeRepo) rows() [][]any {
	var out [][]any
	for _, c := range f.copies {
		out = append(out, c...)
	}
	return out
}

// useRepo points newRepositoryFn at repo for the duration of the test.
func useRepo(t *testing.T, repo storage.Repository, err error) {
	t.Helper()
	orig := newRepositoryFn
	newRepositoryFn = func(context.Context, storage.Config) (storage.Repository, error) {
		if err != nil {
			return nil, err
		}
		return repo, nil
	}
	t.Cleanup(func() { newRepositoryFn = orig })
}

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trips.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testPipeline(t *testing.T, input string) config.Pipeline {
	t.Helper()
	p := config.Pipeline{
		Job:    "test",
		Source: config.Source{Path: input},
		Storage: config.Storage{
			Kind: "sqlite",
			DB:   config.DBConfig{DSN: "unused", Table: "trips"},
		},
		Cleaning: config.Cleaning{
			LogPath: filepath.Join(t.TempDir(), "logs", "cleaning_log.csv"),
		},
	}
	config.ApplyDefaults(&p)
	return p
}

func readLog(t *testing.T, p config.Pipeline) []string {
	t.Helper()
	b, err := os.ReadFile(p.Cleaning.LogPath)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(b), "\n"), "\n")
}

func TestRun_ThreeRowChunk(t *testing.T) {
	repo := newFakeRepo()
	useRepo(t, repo, nil)

	in := writeInput(t, tripHeader+
		validRow+
		"1,2016-03-14 17:00:00,,-73.9900,40.7500,-73.9310,40.7500,12.00\n"+
		"2,2016-03-14 17:00:00,2016-03-14 17:10:00,-73.9900,41.9,-73.9310,40.7500,12.00\n")
	p := testPipeline(t, in)

	r := New(p, WithRunID("run-1"))
	assert.Equal(t, Idle, r.State())

	sum, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Closed, r.State())
	assert.True(t, repo.closed)

	assert.Equal(t, "run-1", sum.RunID)
	assert.Len(t, sum.Fingerprint, 16)
	assert.EqualValues(t, 3, sum.Read)
	assert.EqualValues(t, 1, sum.Accepted)
	assert.EqualValues(t, 2, sum.Rejected)
	assert.EqualValues(t, 1, sum.Inserted)
	assert.Equal(t, 1, sum.Chunks)
	assert.Equal(t, 1, sum.Batches)
	assert.Equal(t, 1, sum.VendorsCreated)
	assert.InDelta(t, 33.3, sum.SuccessRate(), 0.1)
	assert.EqualValues(t, 1, sum.Reasons[trip.MissingTimestamps])
	assert.EqualValues(t, 1, sum.Reasons[trip.InvalidDuration])
	assert.EqualValues(t, 1, sum.Reasons[trip.InvalidPickupCoord])
	assert.EqualValues(t, 1, sum.Reasons[trip.UnrealisticSpeed])

	rows := repo.rows()
	require.Len(t, rows, 1)
	assert.Equal(t, int64(100), rows[0][0], "vendor_id")
	assert.Nil(t, rows[0][7], "pickup_zone_id")
	assert.Nil(t, rows[0][8], "dropoff_zone_id")

	assert.Equal(t, []string{
		"chunk_index,excluded_count,sample_reason",
		"1,2,missing_timestamps;invalid_duration",
	}, readLog(t, p))
}

func TestRun_ChunksBatchesAndVendorCache(t *testing.T) {
	repo := newFakeRepo()
	useRepo(t, repo, nil)

	in := writeInput(t, tripHeader+strings.Repeat(validRow, 5))
	p := testPipeline(t, in)
	p.Runtime.ChunkSize = 2
	p.Runtime.BatchSize = 1

	sum, err := New(p).Run(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 5, sum.Read)
	assert.EqualValues(t, 5, sum.Inserted)
	assert.Equal(t, 3, sum.Chunks)
	assert.Equal(t, 5, sum.Batches)
	assert.InDelta(t, 100.0, sum.SuccessRate(), 1e-9)
	assert.Len(t, repo.copies, 5)

	// One lookup and one insert for vendor "1", then the cache answers.
	assert.Equal(t, 1, repo.lookups)
	assert.Equal(t, 1, repo.inserts)
	assert.Equal(t, 1, sum.VendorsCreated)

	assert.Equal(t, []string{
		"chunk_index,excluded_count,sample_reason",
		"1,0,",
		"2,0,",
		"3,0,",
	}, readLog(t, p))
}

func TestRun_LogAppendsAcrossRuns(t *testing.T) {
	useRepo(t, newFakeRepo(), nil)

	in := writeInput(t, tripHeader+validRow)
	p := testPipeline(t, in)

	for i := 0; i < 2; i++ {
		_, err := New(p).Run(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, []string{
		"chunk_index,excluded_count,sample_reason",
		"1,0,",
		"1,0,",
	}, readLog(t, p))
}

func TestRun_Preconditions(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	blankHeader := filepath.Join(dir, "blank.csv")
	require.NoError(t, os.WriteFile(blankHeader, []byte(",,\n"), 0o644))

	tests := []struct {
		name    string
		input   string
		mutate  func(*config.Pipeline)
		wantIs  error
		wantMsg string
	}{
		{name: "missing file", input: filepath.Join(dir, "nope.csv"), wantIs: os.ErrNotExist},
		{name: "empty file", input: empty, wantIs: datasource.ErrEmpty},
		{name: "no header", input: blankHeader, wantMsg: "no header"},
		{
			name:    "invalid config",
			input:   empty,
			mutate:  func(p *config.Pipeline) { p.Runtime.ChunkSize = -1 },
			wantMsg: "runtime.chunk_size",
		},
		{
			name:    "service area unreadable",
			input:   writeInput(t, tripHeader+validRow),
			mutate:  func(p *config.Pipeline) { p.Cleaning.ServiceAreaGeoJSON = filepath.Join(dir, "area.geojson") },
			wantMsg: "service area",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opened := false
			orig := newRepositoryFn
			newRepositoryFn = func(context.Context, storage.Config) (storage.Repository, error) {
				opened = true
				return newFakeRepo(), nil
			}
			t.Cleanup(func() { newRepositoryFn = orig })

			p := testPipeline(t, tt.input)
			if tt.mutate != nil {
				tt.mutate(&p)
			}
			r := New(p)
			_, err := r.Run(context.Background())

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrPrecondition)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
			assert.Equal(t, Failed, r.State())
			assert.False(t, opened, "store must not be opened")
			_, statErr := os.Stat(p.Cleaning.LogPath)
			assert.True(t, os.IsNotExist(statErr), "no chunk may be logged")
		})
	}
}

func TestRun_StoreUnreachable(t *testing.T) {
	useRepo(t, nil, errors.New("dial tcp: connection refused"))

	p := testPipeline(t, writeInput(t, tripHeader+validRow))
	r := New(p)
	_, err := r.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPrecondition)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, Failed, r.State())
}

func TestRun_InsertFailureIsFatal(t *testing.T) {
	repo := newFakeRepo()
	repo.failCopyAt = 2
	useRepo(t, repo, nil)

	p := testPipeline(t, writeInput(t, tripHeader+strings.Repeat(validRow, 3)))
	p.Runtime.BatchSize = 1

	r := New(p)
	sum, err := r.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStore)
	assert.Equal(t, Failed, r.State())
	assert.True(t, repo.closed)

	// The first batch stays committed.
	assert.EqualValues(t, 1, sum.Inserted)
	assert.Equal(t, 1, sum.Batches)
	assert.Len(t, repo.rows(), 1)

	_, statErr := os.Stat(p.Cleaning.LogPath)
	assert.True(t, os.IsNotExist(statErr), "failed chunk is not logged")
}

func TestRun_RunnerIsSingleUse(t *testing.T) {
	useRepo(t, newFakeRepo(), nil)

	r := New(testPipeline(t, writeInput(t, tripHeader+validRow)))
	_, err := r.Run(context.Background())
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already used")
}

func TestRun_ParseErrorsAreSkipped(t *testing.T) {
	repo := newFakeRepo()
	useRepo(t, repo, nil)

	in := writeInput(t, tripHeader+
		validRow+
		"1,\"2016-03-14 17:00:00,broken\"x,1,2,3,4,5\n"+
		validRow)
	sum, err := New(testPipeline(t, in)).Run(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 1, sum.ParseErrors)
	assert.EqualValues(t, 2, sum.Read)
	assert.EqualValues(t, 2, sum.Inserted)
}

func TestRun_SQLiteEndToEnd(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "trips.db")

	in := writeInput(t, tripHeader+
		validRow+
		strings.Replace(validRow, "1,", "2,", 1)+
		validRow+
		"1,2016-03-14 17:00:00,2016-03-14 17:10:00,-73.9900,40.7500,-73.9310,40.7500,-3.00\n")
	p := testPipeline(t, in)
	p.Storage.DB.DSN = dsn
	p.Storage.DB.AutoCreateTable = true
	p.Runtime.BatchSize = 2

	sum, err := New(p).Run(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, sum.Inserted)
	assert.EqualValues(t, 1, sum.Reasons[trip.InvalidFare])
	assert.Equal(t, 2, sum.VendorsCreated)
	assert.Equal(t, 2, sum.Batches)

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()

	var trips, vendors int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM trips").Scan(&trips))
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM vendors").Scan(&vendors))
	assert.Equal(t, 3, trips)
	assert.Equal(t, 2, vendors)

	var name string
	require.NoError(t, db.QueryRow("SELECT vendor_name FROM vendors WHERE vendor_code = '2'").Scan(&name))
	assert.Equal(t, "Vendor 2", name)

	// A second run reuses the vendors created by the first.
	sum, err = New(p).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sum.VendorsCreated)
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM trips").Scan(&trips))
	assert.Equal(t, 6, trips)
}
