package trip

import "strings"

// Reason identifies one validation failure. Reasons are bit flags so a
// ReasonSet can hold any combination of them.
type Reason uint16

const (
	MissingTimestamps Reason = 1 << iota
	DropoffBeforePickup
	InvalidPickupCoord
	InvalidDropoffCoord
	InvalidDistance
	InvalidDuration
	InvalidFare
	UnrealisticSpeed
)

// reasons lists every Reason in evaluation order. ReasonSet.String relies on
// this order so the logged sample is deterministic.
var reasons = []struct {
	r    Reason
	name string
}{
	{MissingTimestamps, "missing_timestamps"},
	{DropoffBeforePickup, "dropoff_before_pickup"},
	{InvalidPickupCoord, "invalid_pickup_coord"},
	{InvalidDropoffCoord, "invalid_dropoff_coord"},
	{InvalidDistance, "invalid_distance"},
	{InvalidDuration, "invalid_duration"},
	{InvalidFare, "invalid_fare"},
	{UnrealisticSpeed, "unrealistic_speed"},
}

// AllReasons returns every reason code in evaluation order.
func AllReasons() []Reason {
	out := make([]Reason, len(reasons))
	for i, x := range reasons {
		out[i] = x.r
	}
	return out
}

// String returns the stable reason code, e.g. "invalid_fare".
func (r Reason) String() string {
	for _, x := range reasons {
		if x.r == r {
			return x.name
		}
	}
	return "unknown"
}

// ReasonSet is a set of Reasons. The zero value is the empty set.
type ReasonSet uint16

// Add returns s with r included.
func (s ReasonSet) Add(r Reason) ReasonSet { return s | ReasonSet(r) }

// Has reports whether r is in s.
func (s ReasonSet) Has(r Reason) bool { return s&ReasonSet(r) != 0 }

// Empty reports whether s holds no reasons.
func (s ReasonSet) Empty() bool { return s == 0 }

// Reasons returns the members of s in evaluation order.
func (s ReasonSet) Reasons() []Reason {
	var out []Reason
	for _, x := range reasons {
		if s.Has(x.r) {
			out = append(out, x.r)
		}
	}
	return out
}

// String joins the member codes with ";" in evaluation order, or returns ""
// for the empty set. This is the format written to the cleaning log.
func (s ReasonSet) String() string {
	if s.Empty() {
		return ""
	}
	var b strings.Builder
	for _, r := range s.Reasons() {
		if b.Len() > 0 {
			b.WriteByte(';')
		}
		b.WriteString(r.String())
	}
	return b.String()
}
