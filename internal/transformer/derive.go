package transformer

import (
	"github.com/tidwall/geojson/geo"

	"tripetl/internal/trip"
)

// Fare estimate constants used when the source has no fare.
const (
	baseFare     = 2.50
	farePerKm    = 2.50
	farePerMin   = 0.40
	minimumFare  = 2.50
	secondsPerHr = 3600.0
)

// DeriveOptions carries chunk-level facts the derivation needs.
type DeriveOptions struct {
	// ExplicitDuration disables computing the duration from timestamps.
	ExplicitDuration bool
}

// Derive computes the analytic features of n. Steps run in order and each may
// use the output of the previous one; every division guards its denominator.
func Derive(n trip.Normalized, opt DeriveOptions) trip.Derived {
	d := trip.Derived{Normalized: n}

	// 1. Duration; may be negative, validity is judged later.
	if !opt.ExplicitDuration && d.PickupAt != nil && d.DropoffAt != nil {
		d.DurationSeconds = trip.Ptr(d.DropoffAt.Sub(*d.PickupAt).Seconds())
	}

	// 2. Great-circle distance when the source had none.
	if d.DistanceKm == nil {
		d.DistanceKm = HaversineKm(d.PickupLat, d.PickupLon, d.DropoffLat, d.DropoffLon)
	}

	// 3. Fare estimate; missing terms count as zero here only.
	if d.FareAmount == nil {
		fare := baseFare + valueOr(d.DistanceKm, 0)*farePerKm + (valueOr(d.DurationSeconds, 0)/60)*farePerMin
		if fare < minimumFare {
			fare = minimumFare
		}
		d.FareAmount = &fare
	}

	// 4. Speed.
	if dur, dist := d.DurationSeconds, d.DistanceKm; dur != nil && *dur > 0 && dist != nil && *dist > 0 {
		d.SpeedKmh = trip.Ptr(*dist / (*dur / secondsPerHr))
	}

	// 5-6. Ratios.
	d.FarePerKm = safeDiv(d.FareAmount, d.DistanceKm)
	d.TipPct = safeDiv(d.TipAmount, d.FareAmount)

	// 7. Calendar.
	if d.PickupAt != nil {
		d.HourOfDay = trip.Ptr(d.PickupAt.Hour())
		d.DayOfWeek = trip.Ptr(d.PickupAt.Weekday().String())
	}

	return d
}

// HaversineKm returns the great-circle distance between two points on a
// sphere of radius 6371 km, or nil if any coordinate is missing.
func HaversineKm(lat1, lon1, lat2, lon2 *float64) *float64 {
	if lat1 == nil || lon1 == nil || lat2 == nil || lon2 == nil {
		return nil
	}
	km := geo.DistanceTo(*lat1, *lon1, *lat2, *lon2) / 1000
	return &km
}

// safeDiv returns a/b, or nil when either side is missing or b is zero.
func safeDiv(a, b *float64) *float64 {
	if a == nil || b == nil || *b == 0 {
		return nil
	}
	return trip.Ptr(*a / *b)
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
