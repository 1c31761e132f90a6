package creditscore

import (
	"sort"
	"time"

	"cashflow/internal/core"
)

// ReconstructBalanceHistory walks the day totals from newest to oldest and
// subtracts each one from the known current balance, giving the balance
// before every day's activity.
//
// The first point is a synthetic checkpoint on the last day of the newest
// month carrying the current balance. Whenever the walk enters an earlier
// month, another checkpoint records that month's closing balance. Points are
// returned newest first.
func ReconstructBalanceHistory(currentBalance core.Amount, days []DayTotal) []core.BalancePoint {
	if len(days) == 0 {
		return nil
	}
	sorted := make([]DayTotal, len(days))
	copy(sorted, days)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.After(sorted[j].Date) })

	seed := core.LastDayOfMonth(sorted[0].Date)
	points := make([]core.BalancePoint, 0, len(sorted)+2)
	points = append(points, core.BalancePoint{Date: seed, BalanceBeforeTransaction: currentBalance})

	remaining := currentBalance
	previous := seed
	for _, day := range sorted {
		if !core.SameMonth(previous, day.Date) {
			points = append(points, core.BalancePoint{
				Date:                     core.LastDayOfMonth(day.Date),
				BalanceBeforeTransaction: remaining,
			})
		}
		remaining = remaining.Sub(day.Amount)
		points = append(points, core.BalancePoint{Date: day.Date, BalanceBeforeTransaction: remaining})
		previous = day.Date
	}
	return points
}

// BalanceStats are the extremes and mean of one month's balance points.
type BalanceStats struct {
	Max     core.Amount
	Min     core.Amount
	Average core.Amount
}

// MonthBalanceStats computes max, min and the HALF_UP two-digit mean of the
// points dated in the given month. ok is false when the month has no points.
func MonthBalanceStats(points []core.BalancePoint, year int, month time.Month) (stats BalanceStats, ok bool) {
	sum := core.ZeroAmount(2)
	count := 0
	for _, p := range points {
		if p.Date.Year() != year || p.Date.Month() != month {
			continue
		}
		v := p.BalanceBeforeTransaction
		if count == 0 {
			stats.Max, stats.Min = v, v
		} else {
			if v.Cmp(stats.Max) > 0 {
				stats.Max = v
			}
			if v.Cmp(stats.Min) < 0 {
				stats.Min = v
			}
		}
		sum = sum.Add(v)
		count++
	}
	if count == 0 {
		return BalanceStats{}, false
	}
	stats.Average = sum.DivHalfUp(int64(count), 2)
	return stats, true
}
