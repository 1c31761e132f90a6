package indicators

import (
	"time"

	"cashflow/internal/core"
)

// YearSummary holds the cash-flow indicators of one trailing window.
type YearSummary struct {
	Window

	IncomingCount int
	OutgoingCount int

	TotalIncome   core.Amount
	TotalOutgoing core.Amount

	MonthlyAverageIncome core.Amount
	MonthlyAverageCost   core.Amount

	AverageIncomeTransactionAmount  core.Amount
	AverageOutcomeTransactionAmount core.Amount
}

// RecurringAverage is the average monthly recurring income and outcome.
type RecurringAverage struct {
	Window

	IncomeAverage  core.Amount
	OutcomeAverage core.Amount
}

// YearIndicators sums the monthly reports inside the window of fetch.
// Monthly averages always divide by twelve; per-transaction averages divide
// by the transaction count and are 0.00 when there were no transactions.
func YearIndicators(monthly []core.MonthlyReport, fetch time.Time) YearSummary {
	s := YearSummary{
		Window:        WindowFor(fetch),
		TotalIncome:   core.ZeroAmount(2),
		TotalOutgoing: core.ZeroAmount(2),
	}
	for _, m := range monthly {
		if !s.Contains(m.Key()) {
			continue
		}
		s.IncomingCount += m.IncomingCount
		s.OutgoingCount += m.OutgoingCount
		s.TotalIncome = s.TotalIncome.Add(m.TotalIncoming())
		s.TotalOutgoing = s.TotalOutgoing.Add(m.TotalOutgoing())
	}

	s.MonthlyAverageIncome = average(s.TotalIncome)
	s.MonthlyAverageCost = average(s.TotalOutgoing)
	s.AverageIncomeTransactionAmount = perTransaction(s.TotalIncome, s.IncomingCount)
	s.AverageOutcomeTransactionAmount = perTransaction(s.TotalOutgoing, s.OutgoingCount)
	return s
}

// RecurringAverages averages recurring income and outcome over the window
// of fetch. Months absent from summaries count as zero.
func RecurringAverages(summaries []core.RecurringMonthlySummary, fetch time.Time) RecurringAverage {
	w := WindowFor(fetch)
	income, outcome := core.ZeroAmount(2), core.ZeroAmount(2)
	for _, s := range summaries {
		if !w.Contains(s.Key()) {
			continue
		}
		income = income.Add(s.IncomeAmount)
		outcome = outcome.Add(s.OutcomeAmount)
	}
	return RecurringAverage{
		Window:         w,
		IncomeAverage:  average(income),
		OutcomeAverage: average(outcome),
	}
}

func perTransaction(sum core.Amount, count int) core.Amount {
	if count == 0 || sum.IsZero() {
		return core.ZeroAmount(2)
	}
	return sum.DivHalfUp(int64(count), 2)
}
