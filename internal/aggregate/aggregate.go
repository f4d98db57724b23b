// Package aggregate folds persisted population rows into the canonical,
// naturally ordered per-age series used by charts.
package aggregate

import (
	"math"
	"sort"
	"unicode"

	"popgraph/pkg/domain"
)

// NoDigitsKey is the sort key of a label without any decimal digit. It is
// larger than any key SortKey derives from digits.
const NoDigitsKey int64 = math.MaxInt64

// SortKey returns the value of the first maximal run of decimal digits in
// label. Any Unicode decimal digit counts, so full-width and other script
// digits sort by value. Labels with no digits return NoDigitsKey; runs too
// large for int64 saturate just below it.
func SortKey(label string) int64 {
	var (
		key   int64
		found bool
	)
	for _, r := range label {
		if d, ok := digitValue(r); ok {
			if key > (NoDigitsKey-1-d)/10 {
				key = NoDigitsKey - 1
			} else {
				key = key*10 + d
			}
			found = true
			continue
		}
		if found {
			break
		}
	}
	if !found {
		return NoDigitsKey
	}
	return key
}

// digitValue returns the value of a Unicode decimal digit (category Nd).
// Nd code points come in contiguous runs of ten starting at zero, so the
// offset into the enclosing table range modulo ten is the value.
func digitValue(r rune) (int64, bool) {
	if r >= '0' && r <= '9' {
		return int64(r - '0'), true
	}
	if !unicode.IsDigit(r) {
		return 0, false
	}
	for _, rg := range unicode.Nd.R16 {
		if lo, hi := rune(rg.Lo), rune(rg.Hi); r >= lo && r <= hi {
			return int64(r-lo) % 10, true
		}
	}
	for _, rg := range unicode.Nd.R32 {
		if lo, hi := rune(rg.Lo), rune(rg.Hi); r >= lo && r <= hi {
			return int64(r-lo) % 10, true
		}
	}
	return 0, false
}

// Series groups rows by exact age bracket, sums each count column and orders
// the groups by SortKey then by label. Empty input yields an empty series.
func Series(rows []domain.Row) domain.CanonicalSeries {
	index := make(map[string]int, len(rows))
	out := make(domain.CanonicalSeries, 0)
	for _, r := range rows {
		i, ok := index[r.AgeBracket]
		if !ok {
			i = len(out)
			index[r.AgeBracket] = i
			out = append(out, domain.SeriesPoint{AgeBracket: r.AgeBracket})
		}
		out[i].Total += r.Total
		out[i].Male += r.Male
		out[i].Female += r.Female
	}
	keys := make(map[string]int64, len(out))
	for _, p := range out {
		keys[p.AgeBracket] = SortKey(p.AgeBracket)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ki, kj := keys[out[i].AgeBracket], keys[out[j].AgeBracket]
		if ki != kj {
			return ki < kj
		}
		return out[i].AgeBracket < out[j].AgeBracket
	})
	return out
}
