package extract

import (
	"math"
	"strconv"
	"strings"
)

// CellKind tags the loosely typed value found in a spreadsheet cell.
type CellKind uint8

const (
	// CellEmpty is an absent or blank cell.
	CellEmpty CellKind = iota
	// CellNumber is a cell whose text parses as a decimal number.
	CellNumber
	// CellString is any other non-blank cell.
	CellString
)

func (k CellKind) String() string {
	switch k {
	case CellNumber:
		return "number"
	case CellString:
		return "string"
	default:
		return "empty"
	}
}

// Cell is a tagged spreadsheet value. Text always holds the raw cell text so
// string coercion never loses the original representation.
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
}

// Empty returns the absent cell.
func Empty() Cell { return Cell{} }

// String returns a string cell.
func String(s string) Cell { return Cell{Kind: CellString, Text: s} }

// Number returns a numeric cell.
func Number(v float64) Cell {
	return Cell{Kind: CellNumber, Text: strconv.FormatFloat(v, 'f', -1, 64), Number: v}
}

// ParseCell classifies raw cell text. Blank text is empty, text that parses
// as a finite float is a number, anything else is a string.
func ParseCell(raw string) Cell {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Empty()
	}
	if v, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsInf(v, 0) && !math.IsNaN(v) {
		return Cell{Kind: CellNumber, Text: raw, Number: v}
	}
	return Cell{Kind: CellString, Text: raw}
}

// AsString coerces c to a label. Empty cells yield "".
func AsString(c Cell) string {
	if c.Kind == CellEmpty {
		return ""
	}
	return c.Text
}

// AsCount coerces c to a non-negative integer count. Empty cells, text that is
// not numeric, negative values and values outside int64 yield 0. Fractions
// are truncated. Digit grouping commas in string cells are accepted.
func AsCount(c Cell) int64 {
	var v float64
	switch c.Kind {
	case CellNumber:
		v = c.Number
	case CellString:
		parsed, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(c.Text), ",", ""), 64)
		if err != nil {
			return 0
		}
		v = parsed
	default:
		return 0
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 || v >= math.MaxInt64 {
		return 0
	}
	return int64(math.Trunc(v))
}
