package transformer

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeLayouts are tried in order after the fast ISO path fails.
// Timestamps without a zone are read as UTC.
var DefaultTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04",
	"01/02/2006 15:04:05",
	"01/02/2006 03:04:05 PM",
	"01/02/2006 15:04",
	"2006/01/02 15:04:05",
	"2006-01-02",
}

// parseFloat returns nil for empty, unparsable, NaN or infinite cells.
func parseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// parseCount reads a passenger count. It accepts "2" and "2.0"; anything else
// yields (0, false) so the caller can apply its default.
func parseCount(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i, true
	}
	// Only consider float fallback if there is a dot; avoids extra work.
	if strings.IndexByte(s, '.') >= 0 {
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return int(f), true
		}
	}
	return 0, false
}

// parseTime tries the zero-allocation "2006-01-02 15:04:05" path first, then
// each layout in order. It returns nil when nothing matches.
func parseTime(s string, layouts []string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if t, ok := parseISODateTime(s); ok {
		return &t
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// parseISODateTime implements a zero-allocation parser for the NYC TLC layout
// "2006-01-02 15:04:05". It returns (zero, false) on any other shape.
func parseISODateTime(s string) (time.Time, bool) {
	if len(s) != 19 || s[4] != '-' || s[7] != '-' || s[10] != ' ' || s[13] != ':' || s[16] != ':' {
		return time.Time{}, false
	}
	num := func(i, n int) (int, bool) {
		v := 0
		for j := i; j < i+n; j++ {
			d := s[j] - '0'
			if d > 9 {
				return 0, false
			}
			v = v*10 + int(d)
		}
		return v, true
	}
	year, ok1 := num(0, 4)
	mon, ok2 := num(5, 2)
	day, ok3 := num(8, 2)
	hh, ok4 := num(11, 2)
	mm, ok5 := num(14, 2)
	ss, ok6 := num(17, 2)
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6) {
		return time.Time{}, false
	}
	if mon < 1 || mon > 12 || day < 1 || day > 31 || hh > 23 || mm > 59 || ss > 59 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(mon), day, hh, mm, ss, 0, time.UTC)
	// Reject dates time.Date normalized (e.g. Feb 30 → Mar 2).
	if t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}
