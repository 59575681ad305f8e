// Package transformer holds the per-chunk cleaning stages of the trip
// pipeline: column normalization, feature derivation and validation.
//
// None of these stages return errors. Bad cells become nil and surface later
// as validation reasons.
package transformer

import (
	"log"
	"sort"
	"strings"

	"tripetl/internal/trip"
)

// MilesToKm converts statute miles to kilometers.
const MilesToKm = 1.60934

// Accepted source spellings per canonical field, checked in order against the
// folded header. The first one present is bound; later ones are ignored.
var (
	pickupTimeVariants  = []string{"tpep_pickup_datetime", "pickup_datetime", "pickup_time", "pickup_ts"}
	dropoffTimeVariants = []string{"tpep_dropoff_datetime", "dropoff_datetime", "dropoff_time", "dropoff_ts"}
	pickupLonVariants   = []string{"pickup_longitude", "pickup_lon", "pickup_long"}
	pickupLatVariants   = []string{"pickup_latitude", "pickup_lat", "pickup_latitude_decimal"}
	dropoffLonVariants  = []string{"dropoff_longitude", "dropoff_lon", "dropoff_long"}
	dropoffLatVariants  = []string{"dropoff_latitude", "dropoff_lat", "dropoff_latitude_decimal"}
	distanceVariants    = []string{"trip_distance", "distance", "tripdistance"}
	fareVariants        = []string{"fare_amount", "fare", "fareamount"}
	tipVariants         = []string{"tip_amount", "tip", "tipamount"}
	passengerVariants   = []string{"passenger_count"}
	vendorVariants      = []string{"vendor_id", "vendorid", "vendor"}
	durationVariants    = []string{"trip_duration_seconds", "trip_duration"}
)

// DistanceUnit selects how the source distance unit is decided.
type DistanceUnit string

const (
	// UnitAuto applies the miles heuristic to every chunk independently.
	UnitAuto     DistanceUnit = "auto"
	// UnitAutoFile applies the heuristic to the first chunk that carries
	// distance values and reuses that decision for the rest of the file.
	UnitAutoFile DistanceUnit = "auto-file"
	// UnitKm never converts.
	UnitKm       DistanceUnit = "km"
	// UnitMiles always converts.
	UnitMiles    DistanceUnit = "mi"
)

// ParseDistanceUnit maps a config string to a DistanceUnit. Empty means
// UnitAuto. ok is false for unknown values.
func ParseDistanceUnit(s string) (DistanceUnit, bool) {
	switch DistanceUnit(strings.ToLower(strings.TrimSpace(s))) {
	case "", UnitAuto:
		return UnitAuto, true
	case UnitAutoFile:
		return UnitAutoFile, true
	case UnitKm, "kilometers":
		return UnitKm, true
	case UnitMiles, "miles":
		return UnitMiles, true
	}
	return "", false
}

// Binding holds the source column index bound to each canonical field, or -1.
type Binding struct {
	PickupAt, DropoffAt    int
	PickupLat, PickupLon   int
	DropoffLat, DropoffLon int
	Distance               int
	Fare                   int
	Tip                    int
	Passengers             int
	Vendor                 int
	Duration               int
}

// Bind resolves the canonical fields against a folded header.
func Bind(header []string) Binding {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := idx[h]; !dup && h != "" {
			idx[h] = i
		}
	}
	first := func(variants []string) int {
		for _, v := range variants {
			if i, ok := idx[v]; ok {
				return i
			}
		}
		return -1
	}
	return Binding{
		PickupAt:   first(pickupTimeVariants),
		DropoffAt:  first(dropoffTimeVariants),
		PickupLat:  first(pickupLatVariants),
		PickupLon:  first(pickupLonVariants),
		DropoffLat: first(dropoffLatVariants),
		DropoffLon: first(dropoffLonVariants),
		Distance:   first(distanceVariants),
		Fare:       first(fareVariants),
		Tip:        first(tipVariants),
		Passengers: first(passengerVariants),
		Vendor:     first(vendorVariants),
		Duration:   first(durationVariants),
	}
}

// ChunkInfo reports per-chunk decisions taken during normalization.
type ChunkInfo struct {
	Binding Binding

	// ExplicitDuration is true when a duration column was bound and carried
	// at least one parsable value in this chunk.
	ExplicitDuration bool

	// MilesConverted is true when distances were multiplied by MilesToKm.
	MilesConverted bool
}

// Normalizer maps raw chunks onto trip.Normalized records. It is owned by a
// single run; with UnitAutoFile it remembers the unit decision across chunks.
type Normalizer struct {
	unit    DistanceUnit
	layouts []string

	decided bool
	convert bool
}

// NewNormalizer returns a Normalizer using unit and the default timestamp
// layouts followed by extraLayouts.
func NewNormalizer(unit DistanceUnit, extraLayouts []string) *Normalizer {
	if unit == "" {
		unit = UnitAuto
	}
	layouts := append(append([]string{}, DefaultTimeLayouts...), extraLayouts...)
	return &Normalizer{unit: unit, layouts: layouts}
}

// Normalize converts one chunk. rows are aligned to header; short rows are
// treated as missing the trailing cells.
func (n *Normalizer) Normalize(header []string, rows [][]string) ([]trip.Normalized, ChunkInfo) {
	b := Bind(header)
	info := ChunkInfo{Binding: b}

	cell := func(row []string, i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return row[i]
	}

	out := make([]trip.Normalized, len(rows))
	for i, row := range rows {
		rec := trip.Normalized{PassengerCount: 1}

		if b.PickupAt >= 0 {
			rec.PickupAt = parseTime(cell(row, b.PickupAt), n.layouts)
		}
		if b.DropoffAt >= 0 {
			rec.DropoffAt = parseTime(cell(row, b.DropoffAt), n.layouts)
		}
		rec.PickupLat = parseFloat(cell(row, b.PickupLat))
		rec.PickupLon = parseFloat(cell(row, b.PickupLon))
		rec.DropoffLat = parseFloat(cell(row, b.DropoffLat))
		rec.DropoffLon = parseFloat(cell(row, b.DropoffLon))
		rec.DistanceKm = parseFloat(cell(row, b.Distance))
		rec.FareAmount = parseFloat(cell(row, b.Fare))

		if b.Tip >= 0 {
			rec.TipAmount = parseFloat(cell(row, b.Tip))
		} else {
			rec.TipAmount = trip.Ptr(0.0)
		}

		if pc, ok := parseCount(cell(row, b.Passengers)); ok {
			rec.PassengerCount = pc
		}

		if v := strings.TrimSpace(cell(row, b.Vendor)); v != "" {
			rec.VendorCode = &v
		}

		if b.Duration >= 0 {
			rec.DurationSeconds = parseFloat(cell(row, b.Duration))
			if rec.DurationSeconds != nil {
				info.ExplicitDuration = true
			}
		}

		out[i] = rec
	}

	if b.Distance >= 0 && n.convertMiles(out) {
		for i := range out {
			if d := out[i].DistanceKm; d != nil {
				*d *= MilesToKm
			}
		}
		info.MilesConverted = true
	}

	return out, info
}

// convertMiles decides whether this chunk's distances are miles.
func (n *Normalizer) convertMiles(recs []trip.Normalized) bool {
	switch n.unit {
	case UnitKm:
		return false
	case UnitMiles:
		return true
	case UnitAutoFile:
		if n.decided {
			return n.convert
		}
		vals := distances(recs)
		if len(vals) == 0 {
			return false
		}
		n.decided = true
		n.convert = looksLikeMiles(vals)
		log.Printf("normalize: distance unit decided for file: miles=%t (n=%d)", n.convert, len(vals))
		return n.convert
	default:
		return looksLikeMiles(distances(recs))
	}
}

func distances(recs []trip.Normalized) []float64 {
	vals := make([]float64, 0, len(recs))
	for _, r := range recs {
		if r.DistanceKm != nil {
			vals = append(vals, *r.DistanceKm)
		}
	}
	return vals
}

// looksLikeMiles is the urban-trip heuristic: mean under 200 and median under
// 30 means the column is most likely in miles. vals is reordered.
func looksLikeMiles(vals []float64) bool {
	if len(vals) == 0 {
		return false
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	mean := sum / float64(len(vals))
	return mean < 200 && median(vals) < 30
}

func median(vals []float64) float64 {
	sort.Float64s(vals)
	n := len(vals)
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}
