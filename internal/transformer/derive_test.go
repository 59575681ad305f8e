package transformer

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripetl/internal/trip"
)

func ts(min int) *time.Time {
	t := time.Date(2016, 3, 14, 17, min, 0, 0, time.UTC)
	return &t
}

func TestHaversine_IdentityAndSymmetry(t *testing.T) {
	a := [2]float64{40.7580, -73.9855}
	b := [2]float64{40.6413, -73.7781}

	self := HaversineKm(&a[0], &a[1], &a[0], &a[1])
	require.NotNil(t, self)
	assert.Equal(t, 0.0, *self)

	ab := HaversineKm(&a[0], &a[1], &b[0], &b[1])
	ba := HaversineKm(&b[0], &b[1], &a[0], &a[1])
	require.NotNil(t, ab)
	require.NotNil(t, ba)
	assert.InDelta(t, *ab, *ba, 1e-9)
	// Times Square to JFK is roughly 21.7 km as the crow flies.
	assert.InDelta(t, 21.7, *ab, 1.0)

	assert.Nil(t, HaversineKm(nil, &a[1], &b[0], &b[1]))
}

func TestDerive_FareEstimate(t *testing.T) {
	n := trip.Normalized{
		PickupAt:   ts(0),
		DropoffAt:  ts(10),
		DistanceKm: trip.Ptr(4.0),
		TipAmount:  trip.Ptr(0.0),
	}
	d := Derive(n, DeriveOptions{})

	require.NotNil(t, d.DurationSeconds)
	assert.Equal(t, 600.0, *d.DurationSeconds)
	require.NotNil(t, d.FareAmount)
	assert.InDelta(t, 16.50, *d.FareAmount, 1e-9)
	require.NotNil(t, d.SpeedKmh)
	assert.InDelta(t, 24.0, *d.SpeedKmh, 1e-9)
	require.NotNil(t, d.FarePerKm)
	assert.InDelta(t, 16.5/4, *d.FarePerKm, 1e-9)
	require.NotNil(t, d.TipPct)
	assert.Equal(t, 0.0, *d.TipPct)
	assert.Equal(t, 17, *d.HourOfDay)
	assert.Equal(t, "Monday", *d.DayOfWeek)
}

func TestDerive_FareEstimateFloorAndMissingTerms(t *testing.T) {
	// Nothing known: 2.50 with both terms treated as zero.
	d := Derive(trip.Normalized{}, DeriveOptions{})
	require.NotNil(t, d.FareAmount)
	assert.Equal(t, 2.50, *d.FareAmount)

	// Negative duration pulls the estimate under the floor.
	d = Derive(trip.Normalized{PickupAt: ts(30), DropoffAt: ts(0)}, DeriveOptions{})
	assert.Equal(t, 2.50, *d.FareAmount)
	assert.Equal(t, -1800.0, *d.DurationSeconds, "negative spans are kept for the validator")
}

func TestDerive_SpeedGuards(t *testing.T) {
	cases := []struct {
		name string
		dur  *float64
		dist *float64
	}{
		{"zero duration", trip.Ptr(0.0), trip.Ptr(3.0)},
		{"negative duration", trip.Ptr(-60.0), trip.Ptr(3.0)},
		{"zero distance", trip.Ptr(60.0), trip.Ptr(0.0)},
		{"missing duration", nil, trip.Ptr(3.0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Derive(trip.Normalized{DurationSeconds: tc.dur, DistanceKm: tc.dist}, DeriveOptions{ExplicitDuration: true})
			assert.Nil(t, d.SpeedKmh)
		})
	}
}

func TestDerive_Ratios(t *testing.T) {
	d := Derive(trip.Normalized{
		DistanceKm: trip.Ptr(0.0),
		FareAmount: trip.Ptr(0.0),
		TipAmount:  trip.Ptr(1.0),
	}, DeriveOptions{})
	assert.Nil(t, d.FarePerKm, "zero distance")
	assert.Nil(t, d.TipPct, "zero fare")

	d = Derive(trip.Normalized{FareAmount: trip.Ptr(10.0)}, DeriveOptions{})
	assert.Nil(t, d.FarePerKm, "undefined distance")
	assert.Nil(t, d.TipPct, "undefined tip")
	assert.Nil(t, d.HourOfDay)
	assert.Nil(t, d.DayOfWeek)
}

func TestDerive_ExplicitDurationNotOverwritten(t *testing.T) {
	n := trip.Normalized{PickupAt: ts(0), DropoffAt: ts(10), DurationSeconds: trip.Ptr(42.0)}
	d := Derive(n, DeriveOptions{ExplicitDuration: true})
	assert.Equal(t, 42.0, *d.DurationSeconds)

	// Bound column but empty cell: the timestamps are not consulted.
	n.DurationSeconds = nil
	d = Derive(n, DeriveOptions{ExplicitDuration: true})
	assert.Nil(t, d.DurationSeconds)
}

func TestDerive_HaversineFallback(t *testing.T) {
	n := trip.Normalized{
		PickupLat: trip.Ptr(40.75), PickupLon: trip.Ptr(-73.99),
		DropoffLat: trip.Ptr(40.75), DropoffLon: trip.Ptr(-73.99),
	}
	d := Derive(n, DeriveOptions{})
	require.NotNil(t, d.DistanceKm)
	assert.Equal(t, 0.0, *d.DistanceKm)
	assert.Nil(t, d.SpeedKmh)
	assert.False(t, math.IsNaN(*d.FareAmount))
}
