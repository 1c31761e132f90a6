package core

import "time"

// DateLayout is the calendar-date format used in storage and signing.
const DateLayout = "2006-01-02"

// NewDate returns midnight UTC of the given calendar day.
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// TruncateDay drops the time of day, keeping the calendar date of t.
func TruncateDay(t time.Time) time.Time {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func FirstDayOfMonth(t time.Time) time.Time {
	return NewDate(t.Year(), t.Month(), 1)
}

func LastDayOfMonth(t time.Time) time.Time {
	return NewDate(t.Year(), t.Month()+1, 0)
}

// SameMonth reports whether a and b fall in the same calendar month.
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// MonthKey identifies a calendar month.
type MonthKey struct {
	Year  int
	Month time.Month
}

func MonthOf(t time.Time) MonthKey {
	return MonthKey{Year: t.Year(), Month: t.Month()}
}

// Before orders month keys chronologically.
func (k MonthKey) Before(o MonthKey) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	return k.Month < o.Month
}

// FirstDay returns the first calendar day of the month.
func (k MonthKey) FirstDay() time.Time {
	return NewDate(k.Year, k.Month, 1)
}
