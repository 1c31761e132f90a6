package creditscore

import (
	"sort"

	"github.com/google/uuid"

	"cashflow/internal/core"
)

type pairedCycle struct {
	month core.MonthKey
	cycle core.CycleRecord
}

// AggregateRecurring pairs each transaction carrying a recurrence id with
// every cycle record of that id and totals the pairs per transaction month.
//
// Amounts are abs(cycle amount), split into CREDIT (income) and DEBIT
// (outgoing). Transactions without a recurrence id or without a matching
// cycle are skipped here only. Months without pairs are absent from the
// result, which is ordered oldest month first.
func AggregateRecurring(txs []core.Transaction, cycles []core.CycleRecord) []core.RecurringMonthlySummary {
	if len(txs) == 0 || len(cycles) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID][]core.CycleRecord, len(cycles))
	for _, c := range cycles {
		byID[c.ID] = append(byID[c.ID], c)
	}

	var pairs []pairedCycle
	for _, tx := range txs {
		if tx.RecurrenceID == nil {
			continue
		}
		for _, c := range byID[*tx.RecurrenceID] {
			pairs = append(pairs, pairedCycle{month: core.MonthOf(tx.Date), cycle: c})
		}
	}
	if len(pairs) == 0 {
		return nil
	}

	byMonth := make(map[core.MonthKey]*core.RecurringMonthlySummary)
	for _, p := range pairs {
		s, ok := byMonth[p.month]
		if !ok {
			s = &core.RecurringMonthlySummary{
				Year:          p.month.Year,
				Month:         p.month.Month,
				IncomeAmount:  core.ZeroAmount(2),
				OutcomeAmount: core.ZeroAmount(2),
			}
			byMonth[p.month] = s
		}
		switch p.cycle.Type {
		case core.CycleCredit:
			s.IncomeAmount = s.IncomeAmount.Add(p.cycle.Amount.Abs())
			s.IncomeCount++
		case core.CycleDebit:
			s.OutcomeAmount = s.OutcomeAmount.Add(p.cycle.Amount.Abs())
			s.OutcomeCount++
		}
	}

	out := make([]core.RecurringMonthlySummary, 0, len(byMonth))
	for _, s := range byMonth {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().Before(out[j].Key()) })
	return out
}
