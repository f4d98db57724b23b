package domain

import "testing"

func TestCanonicalSeriesHelpers(t *testing.T) {
	s := CanonicalSeries{
		{AgeBracket: "0-4", Total: 15},
		{AgeBracket: "5-9", Total: 40},
		{AgeBracket: "85+", Total: 3},
	}
	labels := s.Labels()
	if len(labels) != 3 || labels[0] != "0-4" || labels[2] != "85+" {
		t.Fatalf("unexpected labels %v", labels)
	}
	if got := s.MaxTotal(); got != 40 {
		t.Fatalf("expected max 40, got %d", got)
	}
	if got := (CanonicalSeries{}).MaxTotal(); got != 0 {
		t.Fatalf("expected 0 for empty series, got %d", got)
	}
}
