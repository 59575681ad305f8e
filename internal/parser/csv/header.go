package csv

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldHeader maps a raw header cell to the lookup key used by the column
// normalizer:
//  1. trim and lowercase
//  2. strip accents (NFD → remove Mn → NFC)
//  3. collapse runs of space, dash and dot into a single underscore
//
// "Pickup Datetime", " PICKUP_DATETIME " and "pickup-datetime" all fold to
// "pickup_datetime".
func FoldHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	prevUnderscore := false
	for _, r := range folded {
		switch r {
		case ' ', '-', '.', '_':
			if !prevUnderscore {
				b.WriteRune('_')
				prevUnderscore = true
			}
		default:
			b.WriteRune(r)
			prevUnderscore = false
		}
	}
	return b.String()
}

// utf8BOM prefixes files written by Excel and some exporters.
const utf8BOM = "\uFEFF"

// stripBOM removes a UTF-8 BOM from the first header cell in place.
func stripBOM(hdr []string) {
	if len(hdr) > 0 {
		hdr[0] = strings.TrimPrefix(hdr[0], utf8BOM)
	}
}
