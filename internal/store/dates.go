package store

import (
	"time"
)

// DateLayout is the canonical storage form for calendar dates.
const DateLayout = "2006-01-02"

// DateString formats t as a stored calendar date.
func DateString(t time.Time) string {
	return t.Format(DateLayout)
}

// WeekStart returns the Monday of t's week as a stored date.
func WeekStart(t time.Time) string {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday belongs to the preceding Monday
	}
	monday := t.AddDate(0, 0, -(weekday - 1))
	return DateString(monday)
}

// NextWeekStart returns the Monday one week after the given week start.
func NextWeekStart(weekStart string) (string, error) {
	t, err := time.Parse(DateLayout, weekStart)
	if err != nil {
		return "", err
	}
	return DateString(t.AddDate(0, 0, 7)), nil
}

// CurrentQuarter returns the calendar year and quarter cadence (Q1..Q4) of t.
func CurrentQuarter(t time.Time) (int, string) {
	year := t.Year()
	switch {
	case t.Month() <= 3:
		return year, "Q1"
	case t.Month() <= 6:
		return year, "Q2"
	case t.Month() <= 9:
		return year, "Q3"
	default:
		return year, "Q4"
	}
}
