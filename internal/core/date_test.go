package core

import (
	"errors"
	"testing"
)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Date
	}{
		{"day/month/year padded", "05/03/2025", NewDate(2025, 3, 5)},
		{"day/month/year unpadded", "5/3/2025", NewDate(2025, 3, 5)},
		{"surrounding whitespace", "  31/12/2024 ", NewDate(2024, 12, 31)},
		{"month/short year", "03/25", NewDate(2025, 3, 1)},
		{"month/short year unpadded", "3/25", NewDate(2025, 3, 1)},
		{"iso", "2025-01-15", NewDate(2025, 1, 15)},
		{"day-month-year", "15-01-2025", NewDate(2025, 1, 15)},
		{"leap day", "29/02/2024", NewDate(2024, 2, 29)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeDate(tt.raw)
			if err != nil {
				t.Fatalf("NormalizeDate(%q) error: %v", tt.raw, err)
			}
			if !got.Equal(tt.want.Time) {
				t.Errorf("NormalizeDate(%q) = %s, want %s", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeDate_FirstLayoutWins(t *testing.T) {
	// 01/02/2025 is day/month under the first layout, never month/day.
	got, err := NormalizeDate("01/02/2025")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Day() != 1 || got.Month() != 2 {
		t.Fatalf("got %s, want 01/02/2025 as 1 February", got)
	}
}

func TestNormalizeDate_Errors(t *testing.T) {
	for _, raw := range []string{"", "   ", "hello", "31/02/2025", "2025/01/15", "15/01/25", "13/25", "2025-13-01"} {
		t.Run(raw, func(t *testing.T) {
			_, err := NormalizeDate(raw)
			if err == nil {
				t.Fatalf("NormalizeDate(%q) expected error", raw)
			}
			var de *DateError
			if !errors.As(err, &de) {
				t.Fatalf("expected *DateError, got %T", err)
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("DateError should match ErrValidation")
			}
		})
	}
}

func TestNormalizeDate_RoundTrip(t *testing.T) {
	for y := 1999; y <= 2030; y += 7 {
		for m := 1; m <= 12; m++ {
			for _, d := range []int{1, 9, 10, 28} {
				orig := NewDate(y, m, d)
				got, err := NormalizeDate(orig.String())
				if err != nil {
					t.Fatalf("re-parse %s: %v", orig, err)
				}
				if !got.Equal(orig.Time) {
					t.Fatalf("round trip %s gave %s", orig, got)
				}
			}
		}
	}
}

func TestDateString(t *testing.T) {
	if got := NewDate(2025, 1, 5).String(); got != "05/01/2025" {
		t.Fatalf("String() = %q, want 05/01/2025", got)
	}
}

func TestParseStoredDate(t *testing.T) {
	d, ok := ParseStoredDate("15/03/2025")
	if !ok || !d.In(3, 2025) {
		t.Fatalf("ParseStoredDate canonical failed: %v %v", d, ok)
	}
	if _, ok := ParseStoredDate("2025-03-15"); ok {
		t.Fatalf("ParseStoredDate should reject non-canonical text")
	}
}

func TestDateText(t *testing.T) {
	var d Date
	if err := d.UnmarshalText([]byte("2025-06-30")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	b, _ := d.MarshalText()
	if string(b) != "30/06/2025" {
		t.Fatalf("MarshalText = %s", b)
	}
	if err := d.UnmarshalText([]byte("nope")); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
