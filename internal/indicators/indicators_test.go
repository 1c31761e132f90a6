package indicators

import (
	"testing"
	"time"

	"cashflow/internal/core"
)

var fetch = time.Date(2021, 6, 15, 9, 30, 0, 0, time.UTC)

func TestWindowFor(t *testing.T) {
	w := WindowFor(fetch)
	if !w.Start.Equal(core.NewDate(2020, 6, 1)) {
		t.Fatalf("start = %s", w.Start)
	}
	if !w.End.Equal(core.NewDate(2021, 5, 31)) {
		t.Fatalf("end = %s", w.End)
	}

	tests := []struct {
		month core.MonthKey
		want  bool
	}{
		{core.MonthKey{Year: 2020, Month: time.May}, false},
		{core.MonthKey{Year: 2020, Month: time.June}, true},
		{core.MonthKey{Year: 2021, Month: time.May}, true},
		{core.MonthKey{Year: 2021, Month: time.June}, false},
		{core.MonthKey{Year: 2021, Month: time.July}, false},
	}
	for _, tt := range tests {
		if got := w.Contains(tt.month); got != tt.want {
			t.Errorf("Contains(%d-%02d) = %v, want %v", tt.month.Year, tt.month.Month, got, tt.want)
		}
	}
}

func TestWindowFor_EndOfMonthFetch(t *testing.T) {
	w := WindowFor(time.Date(2021, 3, 31, 23, 0, 0, 0, time.UTC))
	if !w.Start.Equal(core.NewDate(2020, 3, 1)) || !w.End.Equal(core.NewDate(2021, 2, 28)) {
		t.Fatalf("window = %s..%s", w.Start, w.End)
	}
}

func recurringMonths(from core.MonthKey, n int, income string) []core.RecurringMonthlySummary {
	out := make([]core.RecurringMonthlySummary, 0, n)
	day := from.FirstDay()
	for i := 0; i < n; i++ {
		m := core.MonthOf(day.AddDate(0, i, 0))
		out = append(out, core.RecurringMonthlySummary{
			Year: m.Year, Month: m.Month,
			IncomeAmount: core.MustParseAmount(income), IncomeCount: 1,
			OutcomeAmount: core.ZeroAmount(2),
		})
	}
	return out
}

func TestRecurringAverages(t *testing.T) {
	start := core.MonthKey{Year: 2020, Month: time.June}
	tests := []struct {
		name      string
		summaries []core.RecurringMonthlySummary
		income    string
	}{
		{"twelve populated months", recurringMonths(start, 12, "120.00"), "10.00"},
		{"six of twelve months", recurringMonths(start, 6, "120.00"), "5.00"},
		{"current month ignored", recurringMonths(core.MonthKey{Year: 2021, Month: time.June}, 1, "120.00"), "0.00"},
		{"older than window ignored", recurringMonths(core.MonthKey{Year: 2019, Month: time.January}, 12, "120.00"), "0.00"},
		{"no data", nil, "0.00"},
		{"rounding half up", recurringMonths(start, 1, "0.06"), "0.01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RecurringAverages(tt.summaries, fetch)
			if got.IncomeAverage.String() != tt.income {
				t.Fatalf("income average = %s, want %s", got.IncomeAverage, tt.income)
			}
			if got.OutcomeAverage.String() != "0.00" {
				t.Fatalf("outcome average = %s", got.OutcomeAverage)
			}
		})
	}
}

func month(y int, m time.Month, in, out int, cats ...core.CategorizedAmount) core.MonthlyReport {
	return core.MonthlyReport{Year: y, Month: m, IncomingCount: in, OutgoingCount: out, CategorizedAmounts: cats}
}

func cat(c core.Category, amount string) core.CategorizedAmount {
	return core.CategorizedAmount{Category: c, Amount: core.MustParseAmount(amount), TransactionCount: 1}
}

func TestYearIndicators(t *testing.T) {
	monthly := []core.MonthlyReport{
		month(2020, time.May, 1, 0, cat(core.Revenue, "9999.00")), // before window
		month(2020, time.July, 2, 1, cat(core.Revenue, "1000.00"), cat(core.OtherIncome, "200.00"), cat(core.Utilities, "60.00")),
		month(2021, time.January, 1, 2, cat(core.Revenue, "1200.00"), cat(core.RentAndFacilities, "900.00")),
		month(2021, time.June, 3, 3, cat(core.Revenue, "5000.00")), // current month
	}
	got := YearIndicators(monthly, fetch)

	if got.IncomingCount != 3 || got.OutgoingCount != 3 {
		t.Fatalf("counts = %d/%d", got.IncomingCount, got.OutgoingCount)
	}
	checks := []struct {
		name string
		got  core.Amount
		want string
	}{
		{"total income", got.TotalIncome, "2400.00"},
		{"total outgoing", got.TotalOutgoing, "960.00"},
		{"monthly income", got.MonthlyAverageIncome, "200.00"},
		{"monthly cost", got.MonthlyAverageCost, "80.00"},
		{"income per tx", got.AverageIncomeTransactionAmount, "800.00"},
		{"outcome per tx", got.AverageOutcomeTransactionAmount, "320.00"},
	}
	for _, c := range checks {
		if c.got.String() != c.want {
			t.Errorf("%s = %s, want %s", c.name, c.got, c.want)
		}
	}
}

func TestYearIndicators_Empty(t *testing.T) {
	got := YearIndicators(nil, fetch)
	for _, a := range []core.Amount{got.TotalIncome, got.MonthlyAverageIncome, got.MonthlyAverageCost,
		got.AverageIncomeTransactionAmount, got.AverageOutcomeTransactionAmount} {
		if a.String() != "0.00" {
			t.Fatalf("expected 0.00, got %s", a)
		}
	}
}
