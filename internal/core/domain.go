package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	Fixed    Kind = "Fixed"
	Variable Kind = "Variable"
)

// FixedOccurrences is the number of monthly rows a fixed expense expands to.
const FixedOccurrences = 12

// MaxRecurrenceMonths caps how many monthly rows one variable expense may
// expand to.
const MaxRecurrenceMonths = 120

type (
	Kind string

	Expense struct {
		ID               int64 // Store-assigned, zero before insert
		Date             Date
		Kind             Kind
		Category         string
		Description      string
		Amount           decimal.Decimal
		RecurrenceMonths int // Months originally requested, not the resolved count
	}

	Salaries struct {
		Primary   decimal.Decimal
		Secondary decimal.Decimal
	}

	ExtraIncome struct {
		ID          int64
		Month       int
		Year        int
		Description string
		Amount      decimal.Decimal
	}

	Category struct {
		ID   int64
		Name string
		Icon string
	}
)

var (
	ErrValidation = errors.New("validation error")
	ErrDuplicate  = errors.New("duplicate")
	ErrNotFound   = errors.New("not found")
	ErrIO         = errors.New("io error")

	ErrInvalidKind       = fmt.Errorf("%w: invalid expense kind", ErrValidation)
	ErrInvalidAmount     = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrInvalidMonth      = fmt.Errorf("%w: invalid month", ErrValidation)
	ErrInvalidYear       = fmt.Errorf("%w: invalid year", ErrValidation)
	ErrEmptyCategory     = fmt.Errorf("%w: empty category", ErrValidation)
	ErrEmptyDescription  = fmt.Errorf("%w: empty description", ErrValidation)
	ErrNegativeMonths    = fmt.Errorf("%w: recurrence months cannot be negative", ErrValidation)
	ErrRecurrenceTooLong = fmt.Errorf("%w: recurrence months exceed %d", ErrValidation, MaxRecurrenceMonths)
)

// ParseKind accepts the kind names case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fixed":
		return Fixed, nil
	case "variable":
		return Variable, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

func (k Kind) Valid() bool {
	return k == Fixed || k == Variable
}

func (k Kind) String() string {
	return string(k)
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, e.Kind)
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if len(e.Description) > 200 {
		return fmt.Errorf("%w: description too long (max 200 characters)", ErrValidation)
	}
	if e.RecurrenceMonths < 0 {
		return ErrNegativeMonths
	}
	if e.RecurrenceMonths > MaxRecurrenceMonths {
		return fmt.Errorf("%w: got %d", ErrRecurrenceTooLong, e.RecurrenceMonths)
	}
	return nil
}

func (s Salaries) Validate() error {
	if s.Primary.IsNegative() || s.Secondary.IsNegative() {
		return fmt.Errorf("%w: salaries cannot be negative", ErrInvalidAmount)
	}
	return nil
}

// Total is the combined monthly salary income.
func (s Salaries) Total() decimal.Decimal {
	return s.Primary.Add(s.Secondary)
}

func (i ExtraIncome) Validate() error {
	if err := ValidatePeriod(i.Month, i.Year); err != nil {
		return err
	}
	if strings.TrimSpace(i.Description) == "" {
		return ErrEmptyDescription
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: empty category name", ErrValidation)
	}
	if len(c.Name) > 60 {
		return fmt.Errorf("%w: category name too long (max 60 characters)", ErrValidation)
	}
	return nil
}

// Label is the display form, icon first.
func (c Category) Label() string {
	if c.Icon == "" {
		return c.Name
	}
	return c.Icon + " " + c.Name
}

// ValidatePeriod checks a (month, year) aggregation key.
func ValidatePeriod(month, year int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: %d", ErrInvalidMonth, month)
	}
	if year < 1 || year > 9999 {
		return fmt.Errorf("%w: %d", ErrInvalidYear, year)
	}
	return nil
}
