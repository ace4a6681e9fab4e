package domain

import "testing"

func TestNormalizeDateKnownLayouts(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"2025-03-14", "2025-03-14"},
		{"2025/03/14", "2025-03-14"},
		{"March 14, 2025", "2025-03-14"},
		{"Mar 14, 2025", "2025-03-14"},
		{"14 March 2025", "2025-03-14"},
		{"14 Mar 2025", "2025-03-14"},
	}
	for _, tc := range cases {
		got, ok := NormalizeDate(tc.raw)
		if !ok {
			t.Errorf("NormalizeDate(%q) not ok", tc.raw)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizeDate(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestNormalizeDateNumericFallbackAssumesMonthFirst(t *testing.T) {
	got, ok := NormalizeDate("03/14/2025")
	if !ok || got != "2025-03-14" {
		t.Fatalf("NormalizeDate(03/14/2025) = %q, %v", got, ok)
	}

	got, ok = NormalizeDate("3-4-2025")
	if !ok || got != "2025-03-04" {
		t.Fatalf("NormalizeDate(3-4-2025) = %q, %v", got, ok)
	}
}

func TestNormalizeDateRejectsImpossibleDates(t *testing.T) {
	for _, raw := range []string{"", "not a date", "13/32/2025", "02/30/2024", "00/10/2024"} {
		if got, ok := NormalizeDate(raw); ok {
			t.Errorf("NormalizeDate(%q) = %q, want not ok", raw, got)
		}
	}
}

func TestNormalizeDateRoundTripsItsOwnOutput(t *testing.T) {
	out, ok := NormalizeDate("12/31/2024")
	if !ok {
		t.Fatal("first normalization failed")
	}
	again, ok := NormalizeDate(out)
	if !ok || again != out {
		t.Fatalf("round trip changed value: %q -> %q", out, again)
	}
}
