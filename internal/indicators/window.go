// Package indicators derives the trailing twelve-month figures shown next to a
// report: yearly totals, monthly averages and recurring-payment averages.
package indicators

import (
	"time"

	"cashflow/internal/core"
)

// WindowMonths is both the window length and the fixed averaging
// denominator. Months without data inside the window still count.
const WindowMonths = 12

// Window is an inclusive range of whole calendar days.
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowFor returns the twelve full calendar months before the month of
// fetch. The month of fetch itself is excluded since it may be partial.
func WindowFor(fetch time.Time) Window {
	first := core.FirstDayOfMonth(fetch)
	return Window{
		Start: first.AddDate(0, -WindowMonths, 0),
		End:   core.LastDayOfMonth(first.AddDate(0, -1, 0)),
	}
}

// Contains reports whether the first day of the given month lies in w.
func (w Window) Contains(k core.MonthKey) bool {
	day := k.FirstDay()
	return !day.Before(w.Start) && !day.After(w.End)
}

// average divides sum by the fixed window length, HALF_UP to two places.
func average(sum core.Amount) core.Amount {
	if sum.IsZero() {
		return core.ZeroAmount(2)
	}
	return sum.DivHalfUp(WindowMonths, 2)
}
