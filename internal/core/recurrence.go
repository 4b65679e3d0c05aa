package core

import "time"

// OccurrenceCount resolves how many monthly rows an expense expands to,
// never more than MaxRecurrenceMonths.
func OccurrenceCount(kind Kind, recurrenceMonths int) int {
	switch {
	case kind == Fixed:
		return FixedOccurrences
	case recurrenceMonths > MaxRecurrenceMonths:
		return MaxRecurrenceMonths
	case recurrenceMonths > 0:
		return recurrenceMonths
	default:
		return 1
	}
}

// Expand returns the occurrence dates for one expense intent, starting at
// base and advancing one calendar month per occurrence.
func Expand(base Date, kind Kind, recurrenceMonths int) []Date {
	n := OccurrenceCount(kind, recurrenceMonths)
	out := make([]Date, n)
	for i := range out {
		out[i] = AddMonths(base, i)
	}
	return out
}

// AddMonths moves d forward n months keeping the day of month, clamped to
// the last day of the target month (31 Jan + 1 = 28/29 Feb).
func AddMonths(d Date, n int) Date {
	y, m := d.Year(), d.Month()-1+n
	y += m / 12
	m %= 12
	if m < 0 {
		m += 12
		y--
	}
	day := d.Day()
	if last := daysIn(y, m+1); day > last {
		day = last
	}
	return NewDate(y, m+1, day)
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Occurrences pairs the expanded dates with the intent's shared fields.
// Every row keeps the originally requested RecurrenceMonths.
func Occurrences(intent Expense) []Expense {
	dates := Expand(intent.Date, intent.Kind, intent.RecurrenceMonths)
	rows := make([]Expense, len(dates))
	for i, d := range dates {
		row := intent
		row.ID = 0
		row.Date = d
		rows[i] = row
	}
	return rows
}
