package shared

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO calendar date format accepted by the API.
const DateLayout = "2006-01-02"

// DateRange is an inclusive range of calendar days in UTC.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseDateRange parses ISO dates and requires start <= end.
func ParseDateRange(start, end string) (DateRange, error) {
	from, err := parseDay(start)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: startDate: %v", ErrInvalidDateRange, err)
	}
	to, err := parseDay(end)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: endDate: %v", ErrInvalidDateRange, err)
	}
	if from.After(to) {
		return DateRange{}, fmt.Errorf("%w: startDate is after endDate", ErrInvalidDateRange)
	}
	return DateRange{Start: from, End: to}, nil
}

// MonthToDate returns the range from the first day of now's month to now's day.
func MonthToDate(now time.Time) DateRange {
	day := truncateDay(now)
	return DateRange{Start: time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC), End: day}
}

// Contains reports whether t falls on any day of the range.
func (r DateRange) Contains(t time.Time) bool {
	day := truncateDay(t)
	return !day.Before(r.Start) && !day.After(r.End)
}

// EndExclusive returns the first instant after the range.
func (r DateRange) EndExclusive() time.Time {
	return r.End.AddDate(0, 0, 1)
}

// StartString formats the start day.
func (r DateRange) StartString() string {
	return r.Start.Format(DateLayout)
}

// EndString formats the end day.
func (r DateRange) EndString() string {
	return r.End.Format(DateLayout)
}

func parseDay(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("required")
	}
	if t, err := time.Parse(DateLayout, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("not an ISO date")
	}
	return truncateDay(t), nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
