// Package file reads upstream account data from one JSON document per user
// in a directory. Monetary values are decimal strings or numbers.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cashflow/internal/core"
	"cashflow/internal/feed"
)

type (
	document struct {
		Ready        *bool            `json:"ready"`
		Account      accountDoc       `json:"account"`
		Transactions []transactionDoc `json:"transactions"`
		Cycles       []cycleDoc       `json:"cycles"`
	}

	accountDoc struct {
		IBAN                  string           `json:"iban"`
		BBAN                  string           `json:"bban"`
		MaskedPan             string           `json:"maskedPan"`
		SortCodeAccountNumber string           `json:"sortCodeAccountNumber"`
		AccountHolder         string           `json:"accountHolder"`
		CurrentBalance        decimal.Decimal  `json:"currentBalance"`
		CreditLimit           *decimal.Decimal `json:"creditLimit"`
		Currency              string           `json:"currency"`
		LastDataFetchTime     time.Time        `json:"lastDataFetchTime"`
	}

	transactionDoc struct {
		Date         string          `json:"date"`
		Amount       decimal.Decimal `json:"amount"`
		Currency     string          `json:"currency"`
		Category     string          `json:"category"`
		RecurrenceID *uuid.UUID      `json:"recurrenceId"`
	}

	cycleDoc struct {
		ID     uuid.UUID       `json:"id"`
		Type   string          `json:"type"`
		Amount decimal.Decimal `json:"amount"`
	}
)

// Source serves <dir>/<user id>.json.
type Source struct {
	dir string
}

func New(dir string) *Source {
	return &Source{dir: dir}
}

func (s *Source) Fetch(ctx context.Context, userID uuid.UUID) (feed.AccountData, error) {
	if err := ctx.Err(); err != nil {
		return feed.AccountData{}, err
	}
	path := filepath.Join(s.dir, userID.String()+".json")
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return feed.AccountData{}, fmt.Errorf("user %s: %w", userID, feed.ErrUserNotFound)
	}
	if err != nil {
		return feed.AccountData{}, fmt.Errorf("read feed file: %w", err)
	}

	data, err := Decode(raw)
	if err != nil {
		return feed.AccountData{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	slog.DebugContext(ctx, "Loaded account data from feed file",
		"user_id", userID,
		"transactions", len(data.Transactions),
		"cycles", len(data.Cycles))
	return data, nil
}

// Decode converts one feed document. A document with "ready": false yields
// feed.ErrNotReady; any other failure wraps feed.ErrInvalidData.
func Decode(raw []byte) (feed.AccountData, error) {
	data, err := decode(raw)
	if err != nil && !errors.Is(err, feed.ErrNotReady) {
		return feed.AccountData{}, fmt.Errorf("%w: %w", feed.ErrInvalidData, err)
	}
	return data, err
}

func decode(raw []byte) (feed.AccountData, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return feed.AccountData{}, err
	}
	if doc.Ready != nil && !*doc.Ready {
		return feed.AccountData{}, feed.ErrNotReady
	}

	account, err := doc.Account.snapshot()
	if err != nil {
		return feed.AccountData{}, fmt.Errorf("account: %w", err)
	}
	out := feed.AccountData{Account: account}

	for i, t := range doc.Transactions {
		tx, err := t.toCore(account.Currency)
		if err != nil {
			return feed.AccountData{}, fmt.Errorf("transaction %d: %w", i, err)
		}
		out.Transactions = append(out.Transactions, tx)
	}
	for i, c := range doc.Cycles {
		amount, err := amountOf(c.Amount)
		if err != nil {
			return feed.AccountData{}, fmt.Errorf("cycle %d: %w", i, err)
		}
		out.Cycles = append(out.Cycles, core.CycleRecord{
			ID:     c.ID,
			Type:   core.CycleType(c.Type),
			Amount: amount,
		})
	}
	return out, nil
}

func (a accountDoc) snapshot() (core.AccountSnapshot, error) {
	balance, err := amountOf(a.CurrentBalance)
	if err != nil {
		return core.AccountSnapshot{}, fmt.Errorf("current balance: %w", err)
	}
	snap := core.AccountSnapshot{
		CurrentBalance:    balance,
		LastDataFetchTime: a.LastDataFetchTime,
		Currency:          a.Currency,
		AccountHolder:     a.AccountHolder,
	}
	if a.CreditLimit != nil {
		limit, err := amountOf(*a.CreditLimit)
		if err != nil {
			return core.AccountSnapshot{}, fmt.Errorf("credit limit: %w", err)
		}
		snap.CreditLimit = &limit
	}
	ref := core.AccountReference{
		IBAN:                  a.IBAN,
		BBAN:                  a.BBAN,
		MaskedPan:             a.MaskedPan,
		SortCodeAccountNumber: a.SortCodeAccountNumber,
	}
	if !ref.Empty() {
		snap.Reference = &ref
	}
	return snap, nil
}

func (t transactionDoc) toCore(defaultCurrency string) (core.Transaction, error) {
	date, err := time.Parse(core.DateLayout, t.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("date %q: %w", t.Date, err)
	}
	amount, err := amountOf(t.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	currency := t.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	return core.Transaction{
		Date:         date,
		Amount:       amount,
		Currency:     currency,
		Category:     core.CategoryFromLabel(t.Category, amount),
		RecurrenceID: t.RecurrenceID,
	}, nil
}

func amountOf(d decimal.Decimal) (core.Amount, error) {
	a, err := core.AmountFromDecimal(d)
	if err != nil {
		return core.Amount{}, err
	}
	return a.WithMinScale(2), nil
}
