package extract

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"popgraph/pkg/domain"
)

// SheetOptions controls how a workbook is flattened into rows.
type SheetOptions struct {
	// Sheet names the worksheet to read; empty selects the first one.
	Sheet string
	// HeaderRows is the number of leading rows that label columns and are not
	// data. Nil means 1.
	HeaderRows *int
}

func (o SheetOptions) headerRows() int {
	if o.HeaderRows == nil {
		return 1
	}
	if *o.HeaderRows < 0 {
		return 0
	}
	return *o.HeaderRows
}

// ReadSheet parses an xlsx payload into tagged cells. Every data row is padded
// to the widest row of the sheet so trailing blanks read as empty cells rather
// than a shorter row. Unreadable workbooks match domain.ErrExtraction.
func ReadSheet(content []byte, opts SheetOptions) ([][]Cell, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %w", domain.ErrExtraction, err)
	}
	defer func() { _ = f.Close() }()

	sheet := opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: workbook has no sheets", domain.ErrExtraction)
		}
		sheet = sheets[0]
	}
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %w", domain.ErrExtraction, sheet, err)
	}

	width := 0
	for _, r := range raw {
		if len(r) > width {
			width = len(r)
		}
	}
	skip := opts.headerRows()
	if skip > len(raw) {
		skip = len(raw)
	}
	out := make([][]Cell, 0, len(raw)-skip)
	for _, r := range raw[skip:] {
		row := make([]Cell, width)
		for i, text := range r {
			row[i] = ParseCell(text)
		}
		out = append(out, row)
	}
	return out, nil
}
