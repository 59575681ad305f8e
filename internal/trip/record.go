// Package trip defines the record shapes that flow through the cleaning
// pipeline: the normalized view of a raw CSV row, the derived analytic view,
// and the fact row persisted by the storage backends.
//
// Undefined values are nil pointers throughout. A nil is never the same thing
// as a zero: a zero fare is a valid fare, a nil fare is a missing one.
package trip

import "time"

// Normalized is one input row mapped onto the canonical schema.
// DistanceKm is always kilometers, whatever unit the source used.
type Normalized struct {
	PickupAt  *time.Time
	DropoffAt *time.Time

	PickupLat  *float64
	PickupLon  *float64
	DropoffLat *float64
	DropoffLon *float64

	DistanceKm *float64

	// DurationSeconds is set here only when the source carried an explicit
	// duration column; otherwise it is derived from the timestamps.
	DurationSeconds *float64

	FareAmount *float64
	TipAmount  *float64

	PassengerCount int
	VendorCode     *string
}

// Derived is a Normalized record plus the computed analytic features.
type Derived struct {
	Normalized

	SpeedKmh  *float64
	FarePerKm *float64
	TipPct    *float64
	HourOfDay *int
	DayOfWeek *string
}

// FactRow is an accepted Derived record with its resolved vendor key.
// Zone keys are not resolved by this pipeline and are always written as NULL.
type FactRow struct {
	Derived
	VendorID *int64
}

// FactColumns is the fact-table column order used by every backend. The
// analytics service reads these names; keep them stable.
var FactColumns = []string{
	"vendor_id",
	"pickup_datetime",
	"dropoff_datetime",
	"pickup_lat",
	"pickup_lon",
	"dropoff_lat",
	"dropoff_lon",
	"pickup_zone_id",
	"dropoff_zone_id",
	"passenger_count",
	"trip_distance_km",
	"trip_duration_seconds",
	"fare_amount",
	"tip_amount",
	"trip_speed_kmh",
	"fare_per_km",
	"tip_pct",
	"hour_of_day",
	"day_of_week",
}

// Values returns the row aligned to FactColumns. Pointers are flattened to
// plain values or untyped nil so every driver encodes them the same way.
func (r FactRow) Values() []any {
	tip := 0.0
	if r.TipAmount != nil {
		tip = *r.TipAmount
	}
	return []any{
		deref(r.VendorID),
		derefTime(r.PickupAt),
		derefTime(r.DropoffAt),
		deref(r.PickupLat),
		deref(r.PickupLon),
		deref(r.DropoffLat),
		deref(r.DropoffLon),
		nil,
		nil,
		int64(r.PassengerCount),
		deref(r.DistanceKm),
		deref(r.DurationSeconds),
		deref(r.FareAmount),
		tip,
		deref(r.SpeedKmh),
		deref(r.FarePerKm),
		deref(r.TipPct),
		derefInt(r.HourOfDay),
		deref(r.DayOfWeek),
	}
}

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T { return &v }

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func derefInt(p *int) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func derefTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}
