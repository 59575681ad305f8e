package sqlite

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripetl/internal/storage"
	"tripetl/internal/trip"
)

// openMem opens an in-memory store through the factory and creates the schema.
func openMem(tb testing.TB) storage.Repository {
	tb.Helper()
	ctx := context.Background()
	repo, err := storage.New(ctx, storage.Config{Kind: "sqlite", DSN: ":memory:", Table: "trips"})
	require.NoError(tb, err)
	tb.Cleanup(repo.Close)
	require.NoError(tb, storage.EnsureSchema(ctx, "sqlite", repo, "trips"))
	return repo
}

func factRow(vendorID *int64, fare float64) []any {
	pu := time.Date(2016, 3, 14, 17, 0, 0, 0, time.UTC)
	do := pu.Add(10 * time.Minute)
	r := trip.FactRow{
		Derived: trip.Derived{
			Normalized: trip.Normalized{
				PickupAt:        &pu,
				DropoffAt:       &do,
				PickupLat:       trip.Ptr(40.75),
				PickupLon:       trip.Ptr(-73.99),
				DropoffLat:      trip.Ptr(40.75),
				DropoffLon:      trip.Ptr(-73.93),
				DistanceKm:      trip.Ptr(5.0),
				DurationSeconds: trip.Ptr(600.0),
				FareAmount:      trip.Ptr(fare),
				PassengerCount:  2,
			},
			SpeedKmh:  trip.Ptr(30.0),
			HourOfDay: trip.Ptr(17),
			DayOfWeek: trip.Ptr("Monday"),
		},
		VendorID: vendorID,
	}
	return r.Values()
}

func TestSchemaIsIdempotent(t *testing.T) {
	t.Parallel()

	repo := openMem(t)
	require.NoError(t, storage.EnsureSchema(context.Background(), "sqlite", repo, "trips"))
}

func TestVendorLookupAndInsert(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := openMem(t)

	_, found, err := repo.LookupVendor(ctx, "1")
	require.NoError(t, err)
	assert.False(t, found)

	id, err := repo.InsertVendor(ctx, "1", "Vendor 1")
	require.NoError(t, err)
	assert.Positive(t, id)

	got, found, err := repo.LookupVendor(ctx, "1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, id, got)

	_, err = repo.InsertVendor(ctx, "1", "Vendor 1")
	assert.Error(t, err, "vendor_code is unique")
}

func TestCopyFrom(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := openMem(t)
	vid, err := repo.InsertVendor(ctx, "2", "Vendor 2")
	require.NoError(t, err)

	n, err := repo.CopyFrom(ctx, trip.FactColumns, [][]any{factRow(&vid, 12), factRow(nil, 7.5)})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	db := repo.(*wrappedRepo).db
	var (
		count    int
		withVend int
		fareSum  float64
		zoneNull int
	)
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(vendor_id), SUM(fare_amount), SUM(pickup_zone_id IS NULL) FROM trips`,
	).Scan(&count, &withVend, &fareSum, &zoneNull))
	assert.Equal(t, 2, count)
	assert.Equal(t, 1, withVend)
	assert.InDelta(t, 19.5, fareSum, 1e-9)
	assert.Equal(t, 2, zoneNull)
}

func TestCopyFrom_RollsBackWholeBatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := openMem(t)

	missing := int64(99) // violates the vendors foreign key
	n, err := repo.CopyFrom(ctx, trip.FactColumns, [][]any{factRow(nil, 1), factRow(&missing, 2)})
	require.Error(t, err)
	assert.Zero(t, n)

	var count int
	require.NoError(t, repo.(*wrappedRepo).db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trips`).Scan(&count))
	assert.Zero(t, count, "first row must not survive the failed batch")

	_, err = repo.CopyFrom(ctx, trip.FactColumns, [][]any{{1}})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "length"))
}

func TestNewRepository_Validation(t *testing.T) {
	t.Parallel()

	_, _, err := NewRepository(context.Background(), Config{Table: "trips"})
	assert.Error(t, err)
	_, _, err = NewRepository(context.Background(), Config{DSN: ":memory:"})
	assert.Error(t, err)
}

func TestIdentQuoting(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `"main"."trips"`, liteFQN("main.trips"))
	assert.Equal(t, `"a""b"`, liteIdent(`a"b`))
}
