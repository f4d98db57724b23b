package extract

import (
	"testing"

	"popgraph/testutil"
)

func row(cells ...Cell) []Cell { return cells }

func populationRow(category, age string, total, male, female Cell) []Cell {
	return row(String("2020000000"), String(category), String("全国"), String(age), Empty(), Empty(), total, male, female)
}

func TestExtractMapsColumns(t *testing.T) {
	ex := New("")
	res := ex.Extract([][]Cell{
		populationRow(DefaultCategory, "0～4歳", Number(10), Number(6), Number(4)),
	})
	if len(res.Rows) != 1 || res.Scanned != 1 || res.Skipped != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	got := res.Rows[0]
	if got.TimeCode != "2020000000" || got.AgeBracket != "0～4歳" || got.Total != 10 || got.Male != 6 || got.Female != 4 {
		t.Fatalf("unexpected row %+v", got)
	}
	if got.ID != 0 || got.DatasetID != 0 {
		t.Fatalf("extracted rows must not carry persistence ids: %+v", got)
	}
}

func TestExtractFiltersShortAndOtherCategoryRows(t *testing.T) {
	ex := New("")
	short := populationRow(DefaultCategory, "5～9歳", Number(1), Number(1), Number(1))[:8]
	other := populationRow("日本人人口", "5～9歳", Number(1), Number(1), Number(1))
	blankCategory := populationRow("", "5～9歳", Number(1), Number(1), Number(1))
	blankCategory[ColCategory] = Empty()
	kept := populationRow(DefaultCategory, "5～9歳", Number(2), Number(1), Number(1))
	res := ex.Extract([][]Cell{short, other, blankCategory, kept, nil})
	if len(res.Rows) != 1 || res.Rows[0].Total != 2 {
		t.Fatalf("expected only the kept row, got %+v", res.Rows)
	}
	if res.Scanned != 5 || res.Skipped != 4 {
		t.Fatalf("unexpected counters scanned=%d skipped=%d", res.Scanned, res.Skipped)
	}
}

func TestExtractCategoryIsExactMatch(t *testing.T) {
	ex := New("total population")
	res := ex.Extract([][]Cell{
		populationRow("total population", "0-4", Number(1), Number(1), Number(0)),
		populationRow("Total population", "0-4", Number(1), Number(1), Number(0)),
		populationRow(" total population", "0-4", Number(1), Number(1), Number(0)),
	})
	if len(res.Rows) != 1 {
		t.Fatalf("expected exact category match only, got %d rows", len(res.Rows))
	}
}

func TestExtractCoercesBadCells(t *testing.T) {
	var ex Extractor
	r := populationRow(DefaultCategory, "", String("n/a"), Empty(), Number(3.7))
	r[ColTimeCode] = Empty()
	r[ColAgeBracket] = Empty()
	res := ex.Extract([][]Cell{r})
	if len(res.Rows) != 1 {
		t.Fatalf("expected row to survive coercion, got %+v", res)
	}
	got := res.Rows[0]
	if got.TimeCode != "" || got.AgeBracket != "" || got.Total != 0 || got.Male != 0 || got.Female != 3 {
		t.Fatalf("unexpected coerced row %+v", got)
	}
}

func TestExtractEmptyInput(t *testing.T) {
	res := New("").Extract(nil)
	if res.Rows == nil || len(res.Rows) != 0 {
		t.Fatalf("expected empty non-nil rows, got %#v", res.Rows)
	}
}

func TestExtractDoesNotReachStorage(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.StorageDriverForbidden, "extraction is a pure transform")
}
