package transformer

import (
	"fmt"
	"math"

	"github.com/tidwall/geojson"
	"github.com/tidwall/geojson/geometry"

	"tripetl/internal/trip"
)

// DefaultMaxSpeedKmh is the speed above which a trip is rejected.
const DefaultMaxSpeedKmh = 200.0

// Bounds is an inclusive latitude/longitude rectangle.
type Bounds struct {
	MinLat float64 `json:"min_lat" toml:"min_lat"`
	MaxLat float64 `json:"max_lat" toml:"max_lat"`
	MinLon float64 `json:"min_lon" toml:"min_lon"`
	MaxLon float64 `json:"max_lon" toml:"max_lon"`
}

// NYCBounds approximates the New York City service area.
var NYCBounds = Bounds{MinLat: 40.4, MaxLat: 40.95, MinLon: -74.35, MaxLon: -73.7}

// IsZero reports whether b is unset.
func (b Bounds) IsZero() bool { return b == Bounds{} }

// Validator classifies derived records. It does no I/O.
type Validator struct {
	rect     geometry.Rect
	area     geojson.Object
	maxSpeed float64
}

// NewValidator builds a Validator for the given bounds. A non-positive
// maxSpeed falls back to DefaultMaxSpeedKmh.
func NewValidator(b Bounds, maxSpeed float64) *Validator {
	if maxSpeed <= 0 {
		maxSpeed = DefaultMaxSpeedKmh
	}
	return &Validator{
		rect: geometry.Rect{
			Min: geometry.Point{X: b.MinLon, Y: b.MinLat},
			Max: geometry.Point{X: b.MaxLon, Y: b.MaxLat},
		},
		maxSpeed: maxSpeed,
	}
}

// WithServiceArea additionally requires coordinates to fall inside the
// GeoJSON polygon or feature in src.
func (v *Validator) WithServiceArea(src string) (*Validator, error) {
	obj, err := geojson.Parse(src, &geojson.ParseOptions{RequireValid: true})
	if err != nil {
		return nil, fmt.Errorf("parse service area: %w", err)
	}
	cp := *v
	cp.area = obj
	return &cp, nil
}

// CoordOK reports whether the coordinate is present and inside the bounds
// (boundary included) and the optional service area.
func (v *Validator) CoordOK(lat, lon *float64) bool {
	if lat == nil || lon == nil {
		return false
	}
	p := geometry.Point{X: *lon, Y: *lat}
	if !v.rect.ContainsPoint(p) {
		return false
	}
	if v.area != nil && !v.area.Contains(geojson.NewPoint(p)) {
		return false
	}
	return true
}

// Validate evaluates every rule and returns all failing reasons.
func (v *Validator) Validate(d trip.Derived) trip.ReasonSet {
	var rs trip.ReasonSet

	if d.PickupAt == nil || d.DropoffAt == nil {
		rs = rs.Add(trip.MissingTimestamps)
	} else if d.DropoffAt.Before(*d.PickupAt) {
		rs = rs.Add(trip.DropoffBeforePickup)
	}

	if !v.CoordOK(d.PickupLat, d.PickupLon) {
		rs = rs.Add(trip.InvalidPickupCoord)
	}
	if !v.CoordOK(d.DropoffLat, d.DropoffLon) {
		rs = rs.Add(trip.InvalidDropoffCoord)
	}

	if d.DistanceKm == nil || *d.DistanceKm < 0 {
		rs = rs.Add(trip.InvalidDistance)
	}
	if d.DurationSeconds == nil || *d.DurationSeconds <= 0 {
		rs = rs.Add(trip.InvalidDuration)
	}
	if d.FareAmount == nil || *d.FareAmount < 0 {
		rs = rs.Add(trip.InvalidFare)
	}

	if s := d.SpeedKmh; s != nil && !math.IsInf(*s, 0) && !math.IsNaN(*s) && *s > v.maxSpeed {
		rs = rs.Add(trip.UnrealisticSpeed)
	}

	return rs
}

// Outcome is the validation result for one record. Reasons is empty for an
// accepted record.
type Outcome struct {
	Record  trip.Derived
	Reasons trip.ReasonSet
}

// Accepted reports whether no rule failed.
func (o Outcome) Accepted() bool { return o.Reasons.Empty() }

// Partition validates recs and splits them into accepted records and rejected
// outcomes, preserving input order within each side.
func (v *Validator) Partition(recs []trip.Derived) (accepted []trip.Derived, rejected []Outcome) {
	for _, d := range recs {
		rs := v.Validate(d)
		if rs.Empty() {
			accepted = append(accepted, d)
			continue
		}
		rejected = append(rejected, Outcome{Record: d, Reasons: rs})
	}
	return accepted, rejected
}
