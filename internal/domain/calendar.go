package domain

import (
	"fmt"
	"time"
)

// DayLayout is the canonical calendar-day format used for keys and JSON.
const DayLayout = "2006-01-02"

// Day returns the calendar day of t as observed in loc, as UTC midnight.
// All date columns and comparisons in this service use this form.
func Day(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddDays moves a calendar day by n days.
func AddDays(day time.Time, n int) time.Time {
	return day.AddDate(0, 0, n)
}

// DayKey formats a calendar day as YYYY-MM-DD.
func DayKey(day time.Time) string {
	return day.Format(DayLayout)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	// day 0 of the next month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// NextDueDate computes the next occurrence of a recurring bill due on dueDay.
// The day is clamped to the length of the target month, so the result is
// always a valid date on or after today.
func NextDueDate(dueDay int, freq Frequency, now time.Time) (time.Time, error) {
	if dueDay < 1 || dueDay > 31 {
		return time.Time{}, &ValidationError{
			Field:   "due_day",
			Message: fmt.Sprintf("must be between 1 and 31, got %d", dueDay),
		}
	}

	today := Day(now, now.Location())
	year, month := today.Year(), today.Month()

	candidate := clampedDate(year, month, dueDay)
	if !candidate.Before(today) {
		return candidate, nil
	}

	// normalize month overflow before clamping, so Jan + 1 is always February
	first := time.Date(year, month+time.Month(freq.periodMonths()), 1, 0, 0, 0, 0, time.UTC)
	return clampedDate(first.Year(), first.Month(), dueDay), nil
}

func clampedDate(year int, month time.Month, day int) time.Time {
	if last := DaysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
