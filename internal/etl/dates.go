package etl

import (
	"fmt"
	"time"
)

// BusinessDateFormat is the external wire format of a business date.
const BusinessDateFormat = "20060102"

// DottedDateFormat is the format used inside quote payloads (2026.01.05).
const DottedDateFormat = "2006.01.02"

// ParseBusinessDate parses an 8-digit YYYYMMDD string into a calendar date.
func ParseBusinessDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(BusinessDateFormat, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid business date %q: %w", s, err)
	}
	return t, nil
}

// FormatBusinessDate renders a date as YYYYMMDD.
func FormatBusinessDate(t time.Time) string {
	return t.Format(BusinessDateFormat)
}

// DateRange expands an inclusive [from, to] range into chronological days.
func DateRange(from, to time.Time) ([]time.Time, error) {
	from = truncateDay(from)
	to = truncateDay(to)
	if from.After(to) {
		return nil, fmt.Errorf("from date %s is after to date %s", FormatBusinessDate(from), FormatBusinessDate(to))
	}

	var days []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days, nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
