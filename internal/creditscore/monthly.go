package creditscore

import (
	"sort"

	"cashflow/internal/core"
)

// AggregateMonthly builds one MonthlyReport per calendar month that has at
// least one transaction. Balance extremes come from the reconstructed points;
// category totals and counts come from the individual transactions, since
// day grouping drops the category. Reports are ordered oldest month first.
func AggregateMonthly(txs []core.Transaction, points []core.BalancePoint) []core.MonthlyReport {
	byMonth := groupByMonth(txs)

	keys := make([]core.MonthKey, 0, len(byMonth))
	for k := range byMonth {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	reports := make([]core.MonthlyReport, 0, len(keys))
	for _, k := range keys {
		monthTxs := byMonth[k]
		// Every month with a transaction has at least its own point.
		stats, _ := MonthBalanceStats(points, k.Year, k.Month)
		reports = append(reports, core.MonthlyReport{
			Year:               k.Year,
			Month:              k.Month,
			HighestBalance:     stats.Max,
			LowestBalance:      stats.Min,
			AverageBalance:     stats.Average,
			CategorizedAmounts: CategorizeAmounts(monthTxs),
			IncomingCount:      countWhere(monthTxs, core.Transaction.IsIncoming),
			OutgoingCount:      countWhere(monthTxs, core.Transaction.IsOutgoing),
		})
	}
	return reports
}

// CategorizeAmounts sums signed amounts per category and reports the
// absolute total with the number of transactions, in category priority order.
func CategorizeAmounts(txs []core.Transaction) []core.CategorizedAmount {
	sums := make(map[core.Category]core.Amount)
	counts := make(map[core.Category]int)
	for _, tx := range txs {
		if sum, ok := sums[tx.Category]; ok {
			sums[tx.Category] = sum.Add(tx.Amount)
		} else {
			sums[tx.Category] = tx.Amount
		}
		counts[tx.Category]++
	}

	out := make([]core.CategorizedAmount, 0, len(sums))
	for c, sum := range sums {
		out = append(out, core.CategorizedAmount{
			Category:         c,
			Amount:           sum.Abs(),
			TransactionCount: counts[c],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := out[i].Category.Priority(), out[j].Category.Priority()
		if pi != pj {
			return pi < pj
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func groupByMonth(txs []core.Transaction) map[core.MonthKey][]core.Transaction {
	out := make(map[core.MonthKey][]core.Transaction)
	for _, tx := range txs {
		k := core.MonthOf(tx.Date)
		out[k] = append(out[k], tx)
	}
	return out
}

func countWhere(txs []core.Transaction, pred func(core.Transaction) bool) int {
	n := 0
	for _, tx := range txs {
		if pred(tx) {
			n++
		}
	}
	return n
}
