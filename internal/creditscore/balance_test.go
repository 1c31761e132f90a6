package creditscore

import (
	"testing"
	"time"

	"cashflow/internal/core"
)

func tx(date time.Time, amount string, c core.Category) core.Transaction {
	return core.Transaction{Date: date, Amount: core.MustParseAmount(amount), Currency: "EUR", Category: c}
}

func d(y int, m time.Month, day int) time.Time { return core.NewDate(y, m, day) }

func TestGroupByDay(t *testing.T) {
	if got := GroupByDay(nil); len(got) != 0 {
		t.Fatalf("expected empty output, got %v", got)
	}

	days := GroupByDay([]core.Transaction{
		tx(d(2021, 1, 15), "-100.30", core.OtherExpenses),
		tx(time.Date(2021, 1, 15, 17, 45, 0, 0, time.UTC), "20.00", core.OtherIncome),
		tx(d(2021, 1, 3), "-5.00", core.FoodAndDrinks),
		tx(d(2021, 2, 1), "50.00", core.Revenue),
	})
	if len(days) != 3 {
		t.Fatalf("expected 3 days, got %d", len(days))
	}
	want := []struct {
		date   time.Time
		amount string
	}{
		{d(2021, 2, 1), "50.00"},
		{d(2021, 1, 15), "-80.30"},
		{d(2021, 1, 3), "-5.00"},
	}
	for i, w := range want {
		if !days[i].Date.Equal(w.date) || days[i].Amount.String() != w.amount {
			t.Errorf("day %d = {%s %s}, want {%s %s}", i, days[i].Date.Format(core.DateLayout), days[i].Amount, w.date.Format(core.DateLayout), w.amount)
		}
	}
}

func TestReconstructBalanceHistory_SingleTransaction(t *testing.T) {
	points := ReconstructBalanceHistory(core.MustParseAmount("1000.00"), GroupByDay([]core.Transaction{
		tx(d(2021, 1, 15), "-100.30", core.OtherExpenses),
	}))
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	assertPoint(t, points[0], d(2021, 1, 31), "1000.00")
	assertPoint(t, points[1], d(2021, 1, 15), "1100.30")
}

func TestReconstructBalanceHistory_MonthCheckpoints(t *testing.T) {
	days := GroupByDay([]core.Transaction{
		tx(d(2021, 3, 10), "-50.00", core.OtherExpenses),
		tx(d(2021, 3, 2), "200.00", core.Revenue),
		tx(d(2021, 1, 20), "-25.00", core.Utilities),
	})
	points := ReconstructBalanceHistory(core.MustParseAmount("1000.00"), days)

	want := []struct {
		date    time.Time
		balance string
	}{
		{d(2021, 3, 31), "1000.00"}, // seed
		{d(2021, 3, 10), "1050.00"},
		{d(2021, 3, 2), "850.00"},
		{d(2021, 1, 31), "850.00"}, // January closing balance
		{d(2021, 1, 20), "875.00"},
	}
	if len(points) != len(want) {
		t.Fatalf("expected %d points, got %d", len(want), len(points))
	}
	for i, w := range want {
		assertPoint(t, points[i], w.date, w.balance)
	}
}

func TestReconstructBalanceHistory_Empty(t *testing.T) {
	if got := ReconstructBalanceHistory(core.MustParseAmount("10.00"), nil); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestMonthBalanceStats(t *testing.T) {
	points := []core.BalancePoint{
		{Date: d(2021, 1, 31), BalanceBeforeTransaction: core.MustParseAmount("1000.00")},
		{Date: d(2021, 1, 15), BalanceBeforeTransaction: core.MustParseAmount("1100.30")},
		{Date: d(2021, 1, 2), BalanceBeforeTransaction: core.MustParseAmount("1000.01")},
		{Date: d(2020, 12, 31), BalanceBeforeTransaction: core.MustParseAmount("5.00")},
	}
	stats, ok := MonthBalanceStats(points, 2021, time.January)
	if !ok {
		t.Fatalf("expected stats for January")
	}
	if stats.Max.String() != "1100.30" || stats.Min.String() != "1000.00" {
		t.Fatalf("unexpected extremes: max=%s min=%s", stats.Max, stats.Min)
	}
	// (1000.00 + 1100.30 + 1000.01) / 3 = 1033.436666...
	if stats.Average.String() != "1033.44" {
		t.Fatalf("unexpected average %s", stats.Average)
	}

	if _, ok := MonthBalanceStats(points, 2021, time.February); ok {
		t.Fatalf("expected no stats for February")
	}
}

func assertPoint(t *testing.T, p core.BalancePoint, date time.Time, balance string) {
	t.Helper()
	if !p.Date.Equal(date) || p.BalanceBeforeTransaction.String() != balance {
		t.Fatalf("point = {%s %s}, want {%s %s}",
			p.Date.Format(core.DateLayout), p.BalanceBeforeTransaction,
			date.Format(core.DateLayout), balance)
	}
}
