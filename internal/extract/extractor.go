// Package extract turns loosely typed spreadsheet rows into normalized
// population records.
package extract

import "popgraph/pkg/domain"

// DefaultCategory is the source domain's "total population" tag found in
// column 1 of every row worth keeping.
const DefaultCategory = "総人口"

// MinColumns is the narrowest row the extractor accepts.
const MinColumns = 9

// Positional source columns.
const (
	ColTimeCode   = 0
	ColCategory   = 1
	ColAgeBracket = 3
	ColTotal      = 6
	ColMale       = 7
	ColFemale     = 8
)

// Extractor filters rows to one category and maps their columns onto
// domain.Row. The zero value filters on DefaultCategory.
type Extractor struct {
	Category string
}

// New returns an extractor for category; an empty category selects
// DefaultCategory.
func New(category string) *Extractor {
	return &Extractor{Category: category}
}

func (e *Extractor) category() string {
	if e == nil || e.Category == "" {
		return DefaultCategory
	}
	return e.Category
}

// Result is the output of one extraction pass.
type Result struct {
	Rows    []domain.Row
	Scanned int
	Skipped int
}

// Keep reports whether a raw row passes the category pre-filter.
func (e *Extractor) Keep(row []Cell) bool {
	if len(row) < MinColumns {
		return false
	}
	c := row[ColCategory]
	return c.Kind != CellEmpty && c.Text == e.category()
}

// Extract maps every kept row to a domain.Row. It never fails: rows that do
// not pass Keep are counted as skipped and cells that cannot be coerced take
// their default.
func (e *Extractor) Extract(rows [][]Cell) Result {
	res := Result{Rows: make([]domain.Row, 0, len(rows))}
	for _, raw := range rows {
		res.Scanned++
		if !e.Keep(raw) {
			res.Skipped++
			continue
		}
		res.Rows = append(res.Rows, domain.Row{
			TimeCode:   AsString(raw[ColTimeCode]),
			AgeBracket: AsString(raw[ColAgeBracket]),
			Total:      AsCount(raw[ColTotal]),
			Male:       AsCount(raw[ColMale]),
			Female:     AsCount(raw[ColFemale]),
		})
	}
	return res
}
