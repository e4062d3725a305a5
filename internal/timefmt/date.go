// Package timefmt converts calendar dates and race durations between their
// query, display and wire encodings.
package timefmt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	queryLayout   = "2006-01-02"
	displayLayout = "02/01/2006"
)

// ErrInvalidDate is matched by every InvalidDateError.
var ErrInvalidDate = errors.New("invalid date")

// InvalidDateError reports a value that is not a real Gregorian date.
type InvalidDateError struct {
	Input  string
	Reason string
}

func (e *InvalidDateError) Error() string {
	if e.Input == "" {
		return fmt.Sprintf("invalid date: %s", e.Reason)
	}
	return fmt.Sprintf("invalid date %q: %s", e.Input, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidDate) hold.
func (e *InvalidDateError) Is(target error) bool {
	return target == ErrInvalidDate
}

// Date is a calendar day without a time-of-day component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate validates the components and returns the date.
func NewDate(year int, month time.Month, day int) (Date, error) {
	d := Date{Year: year, Month: month, Day: day}
	if err := d.validate(); err != nil {
		return Date{}, err
	}
	return d, nil
}

// FromTime takes the calendar day of t in its own location.
func FromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// IsZero reports whether no date has been set.
func (d Date) IsZero() bool {
	return d == Date{}
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Valid reports whether the components name a real calendar day.
func (d Date) Valid() bool {
	return d.validate() == nil
}

func (d Date) String() string {
	s, err := ToQueryDate(d)
	if err != nil {
		return "invalid date"
	}
	return s
}

func (d Date) validate() error {
	if d.Year < 1 || d.Year > 9999 {
		return &InvalidDateError{Reason: fmt.Sprintf("year %d out of range", d.Year)}
	}
	if d.Month < time.January || d.Month > time.December {
		return &InvalidDateError{Reason: fmt.Sprintf("month %d out of range", int(d.Month))}
	}
	t := d.Time()
	if t.Day() != d.Day || t.Month() != d.Month {
		return &InvalidDateError{Reason: fmt.Sprintf("%s has no day %d", d.Month, d.Day)}
	}
	return nil
}

// ToQueryDate renders d as YYYY-MM-DD, the form used as an API query key.
func ToQueryDate(d Date) (string, error) {
	if err := d.validate(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day), nil
}

// ToDisplayDate renders d as DD/MM/YYYY, the form shown to people.
func ToDisplayDate(d Date) (string, error) {
	if err := d.validate(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d/%02d/%04d", d.Day, int(d.Month), d.Year), nil
}

// ParseQueryDate parses a YYYY-MM-DD value.
func ParseQueryDate(s string) (Date, error) {
	return parse(s, queryLayout)
}

// ParseDisplayDate parses a DD/MM/YYYY value.
func ParseDisplayDate(s string) (Date, error) {
	return parse(s, displayLayout)
}

// ParseAny accepts either the display or the query form.
func ParseAny(s string) (Date, error) {
	if strings.Contains(s, "/") {
		return ParseDisplayDate(s)
	}
	return ParseQueryDate(s)
}

func parse(s, layout string) (Date, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Date{}, &InvalidDateError{Input: s, Reason: "empty"}
	}
	t, err := time.Parse(layout, trimmed)
	if err != nil {
		return Date{}, &InvalidDateError{Input: s, Reason: "expected " + layoutHint(layout)}
	}
	return FromTime(t), nil
}

func layoutHint(layout string) string {
	switch layout {
	case queryLayout:
		return "YYYY-MM-DD"
	case displayLayout:
		return "DD/MM/YYYY"
	default:
		return strconv.Quote(layout)
	}
}
