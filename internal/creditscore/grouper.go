// Package creditscore turns an account's transactions into the monthly
// cash-flow breakdown of a report.
//
// Every function here is pure: no clock, no shared state, no I/O. One
// calculation may run per goroutine without coordination.
package creditscore

import (
	"sort"
	"time"

	"cashflow/internal/core"
)

// DayTotal is the net amount booked on one calendar day.
type DayTotal struct {
	Date   time.Time
	Amount core.Amount
}

// GroupByDay merges same-day transactions into one net amount per day.
//
// Banks do not always report the time of a transaction within the day, so
// balances are tracked at end of day rather than after each transaction.
// The result is ordered newest first.
func GroupByDay(txs []core.Transaction) []DayTotal {
	if len(txs) == 0 {
		return nil
	}
	byDay := make(map[time.Time]core.Amount, len(txs))
	for _, tx := range txs {
		day := core.TruncateDay(tx.Date)
		if sum, ok := byDay[day]; ok {
			byDay[day] = sum.Add(tx.Amount)
		} else {
			byDay[day] = tx.Amount
		}
	}

	out := make([]DayTotal, 0, len(byDay))
	for day, amount := range byDay {
		out = append(out, DayTotal{Date: day, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}
