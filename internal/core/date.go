package core

import (
	"fmt"
	"strings"
	"time"
)

// CanonicalLayout is the only date form written to the store.
const CanonicalLayout = "02/01/2006"

// Date is a calendar day in UTC with no time-of-day component.
type Date struct {
	time.Time
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// In reports whether the date falls in the given period.
func (d Date) In(month, year int) bool {
	return !d.IsZero() && d.Month() == month && d.Year() == year
}

// Validate rejects the zero date.
func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrValidation)
	}
	return nil
}

// String renders the canonical DD/MM/YYYY form.
func (d Date) String() string {
	return d.Format(CanonicalLayout)
}

// MarshalText encodes the date in canonical form.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText accepts any layout NormalizeDate accepts.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := NormalizeDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DateError reports a string no accepted layout could parse.
type DateError struct {
	Raw string
}

func (e *DateError) Error() string {
	return fmt.Sprintf("unrecognized date %q (expected DD/MM/YYYY, MM/YY, YYYY-MM-DD or DD-MM-YYYY)", e.Raw)
}

func (e *DateError) Unwrap() error {
	return ErrValidation
}

// dateParser tries a single input shape.
type dateParser func(raw string) (time.Time, bool)

func layoutParser(layout string) dateParser {
	return func(raw string) (time.Time, bool) {
		t, err := time.ParseInLocation(layout, raw, time.UTC)
		return t, err == nil
	}
}

// dateParsers are tried in order and the first success wins, so a string
// valid under two shapes resolves to the earlier one.
var dateParsers = []dateParser{
	layoutParser("2/1/2006"), // day/month/4-digit-year
	layoutParser("1/06"),     // month/2-digit-year, day 1
	layoutParser("2006-1-2"), // ISO
	layoutParser("2-1-2006"), // day-month-year with hyphens
}

// NormalizeDate parses user input into a canonical calendar date.
func NormalizeDate(raw string) (Date, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Date{}, &DateError{Raw: raw}
	}
	for _, parse := range dateParsers {
		if t, ok := parse(s); ok {
			return NewDate(t.Year(), int(t.Month()), t.Day()), nil
		}
	}
	return Date{}, &DateError{Raw: raw}
}

// ParseStoredDate reads a date previously written in canonical form.
func ParseStoredDate(s string) (Date, bool) {
	t, err := time.ParseInLocation("2/1/2006", strings.TrimSpace(s), time.UTC)
	if err != nil {
		return Date{}, false
	}
	return Date{Time: t}, true
}
