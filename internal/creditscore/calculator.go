package creditscore

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"cashflow/internal/core"
)

// Input is everything one calculation needs for one account.
type Input struct {
	UserID       uuid.UUID
	Account      core.AccountSnapshot
	Transactions []core.Transaction
	Cycles       []core.CycleRecord
}

// Result is a freshly assembled, unsigned report together with its
// recurring-payment summaries.
type Result struct {
	Report    core.Report
	Recurring []core.RecurringMonthlySummary
}

// Calculate assembles the report for one account. now stamps the report's
// creation date and is the only notion of time used.
//
// A missing account reference aborts the calculation. An account without
// transactions yields a report with account metadata only.
func Calculate(in Input, now time.Time) (Result, error) {
	if err := in.Account.Validate(); err != nil {
		return Result{}, fmt.Errorf("validate account: %w", err)
	}
	for i, tx := range in.Transactions {
		if err := tx.Validate(); err != nil {
			return Result{}, fmt.Errorf("validate transaction %d: %w", i, err)
		}
	}
	for i, c := range in.Cycles {
		if err := c.Validate(); err != nil {
			return Result{}, fmt.Errorf("validate cycle %d: %w", i, err)
		}
	}

	acc := in.Account
	report := core.Report{
		UserID:            in.UserID,
		Account:           *acc.Reference,
		AccountHolder:     acc.AccountHolder,
		InitialBalance:    acc.CurrentBalance,
		LastDataFetchTime: acc.LastDataFetchTime,
		Currency:          acc.Currency,
		CreditLimit:       acc.CreditLimit,
		TransactionsSize:  len(in.Transactions),
		CreatedDate:       now,
	}
	if len(in.Transactions) == 0 {
		return Result{Report: report}, nil
	}

	report.NewestTransactionDate, report.OldestTransactionDate = dateRange(in.Transactions)

	points := ReconstructBalanceHistory(acc.CurrentBalance, GroupByDay(in.Transactions))
	report.Monthly = AggregateMonthly(in.Transactions, points)

	return Result{
		Report:    report,
		Recurring: AggregateRecurring(in.Transactions, in.Cycles),
	}, nil
}

func dateRange(txs []core.Transaction) (newest, oldest time.Time) {
	newest = core.TruncateDay(txs[0].Date)
	oldest = newest
	for _, tx := range txs[1:] {
		d := core.TruncateDay(tx.Date)
		if d.After(newest) {
			newest = d
		}
		if d.Before(oldest) {
			oldest = d
		}
	}
	return newest, oldest
}
