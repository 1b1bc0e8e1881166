package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates
const DateLayout = "2006-01-02"

// Date is a calendar date (no time component) serialized as YYYY-MM-DD
type Date struct {
	time.Time
}

// NewDate builds a Date from year, month and day in UTC
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date{t}, nil
}

// Today returns the current UTC calendar date
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), now.Month(), now.Day())
}

// AddDays returns the date shifted by n days
func (d Date) AddDays(n int) Date {
	return Date{d.Time.AddDate(0, 0, n)}
}

// String renders the date as YYYY-MM-DD
func (d Date) String() string {
	return d.Time.Format(DateLayout)
}

// IsZero reports whether the date is unset
func (d Date) IsZero() bool {
	return d.Time.IsZero()
}

// Before reports whether d is before other
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// After reports whether d is after other
func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

// Equal reports whether d and other are the same calendar date
func (d Date) Equal(other Date) bool {
	return d.Time.Equal(other.Time)
}

// MarshalJSON implements json.Marshaler
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if strings.TrimSpace(s) == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DateRange is an inclusive-inclusive calendar window
type DateRange struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// NewDateRange validates start <= end and builds a range
func NewDateRange(start, end Date) (DateRange, error) {
	if start.After(end) {
		return DateRange{}, fmt.Errorf("invalid date range: start %s after end %s", start, end)
	}
	return DateRange{Start: start, End: end}, nil
}

// Contains reports whether the date lies within the range (inclusive)
func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Days returns the number of calendar days the range spans (inclusive)
func (r DateRange) Days() int {
	return int(r.End.Time.Sub(r.Start.Time).Hours()/24) + 1
}

// ClampStart returns the range with its start raised to floor when floor is later
func (r DateRange) ClampStart(floor Date) DateRange {
	if floor.After(r.Start) {
		return DateRange{Start: floor, End: r.End}
	}
	return r
}

// Months yields the first day of each month the range touches, in order.
// Calendar-driven platforms are enumerated one month at a time.
func (r DateRange) Months() []Date {
	var months []Date
	cursor := NewDate(r.Start.Year(), r.Start.Month(), 1)
	last := NewDate(r.End.Year(), r.End.Month(), 1)
	for !cursor.After(last) {
		months = append(months, cursor)
		cursor = Date{cursor.Time.AddDate(0, 1, 0)}
	}
	return months
}

func (r DateRange) String() string {
	return fmt.Sprintf("%s..%s", r.Start, r.End)
}
