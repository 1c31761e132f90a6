package core

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	CycleCredit CycleType = "CREDIT"
	CycleDebit  CycleType = "DEBIT"
)

type (
	CycleType string

	// Transaction is one booked bank transaction. A positive amount is
	// incoming money, a negative amount outgoing.
	Transaction struct {
		Date         time.Time
		Amount       Amount
		Currency     string
		Category     Category
		RecurrenceID *uuid.UUID
	}

	AccountReference struct {
		IBAN                  string
		BBAN                  string
		MaskedPan             string
		SortCodeAccountNumber string
	}

	AccountSnapshot struct {
		CurrentBalance    Amount
		LastDataFetchTime time.Time
		Currency          string
		CreditLimit       *Amount
		Reference         *AccountReference
		AccountHolder     string
	}

	// CycleRecord is a recurring-payment grouping detected upstream.
	CycleRecord struct {
		ID     uuid.UUID
		Type   CycleType
		Amount Amount
	}

	BalancePoint struct {
		Date                     time.Time
		BalanceBeforeTransaction Amount
	}

	CategorizedAmount struct {
		Category         Category
		Amount           Amount
		TransactionCount int
	}

	MonthlyReport struct {
		Year               int
		Month              time.Month
		HighestBalance     Amount
		LowestBalance      Amount
		AverageBalance     Amount
		CategorizedAmounts []CategorizedAmount
		IncomingCount      int
		OutgoingCount      int
	}

	RecurringMonthlySummary struct {
		Year          int
		Month         time.Month
		IncomeAmount  Amount
		IncomeCount   int
		OutcomeAmount Amount
		OutcomeCount  int
	}

	// Report is the aggregate root of one calculation run. Only the
	// signature fields are attached after creation.
	Report struct {
		ID                    uuid.UUID
		UserID                uuid.UUID
		Account               AccountReference
		AccountHolder         string
		InitialBalance        Amount
		LastDataFetchTime     time.Time
		Currency              string
		NewestTransactionDate time.Time
		OldestTransactionDate time.Time
		CreditLimit           *Amount
		TransactionsSize      int
		Monthly               []MonthlyReport
		CreatedDate           time.Time
	}

	ReportSignature struct {
		Signature []byte
		KeyID     uuid.UUID
		JSONPaths []string
	}

	PublicKeyRecord struct {
		KeyID       uuid.UUID
		CreatedDate time.Time
		PublicKey   []byte
	}
)

var (
	ErrMissingAccountReference = errors.New("missing account reference")
	ErrInvalidCycleType        = errors.New("invalid cycle type")
	ErrZeroDate                = errors.New("date cannot be zero")
)

func (c CycleType) Validate() error {
	switch c {
	case CycleCredit, CycleDebit:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCycleType, string(c))
	}
}

// IsIncoming reports a strictly positive amount.
func (t Transaction) IsIncoming() bool { return t.Amount.Sign() > 0 }

// IsOutgoing reports a strictly negative amount.
func (t Transaction) IsOutgoing() bool { return t.Amount.Sign() < 0 }

func (t Transaction) Validate() error {
	if t.Date.IsZero() {
		return ErrZeroDate
	}
	return nil
}

// Empty reports whether no identifier is set.
func (r AccountReference) Empty() bool {
	return strings.TrimSpace(r.IBAN) == "" &&
		strings.TrimSpace(r.BBAN) == "" &&
		strings.TrimSpace(r.MaskedPan) == "" &&
		strings.TrimSpace(r.SortCodeAccountNumber) == ""
}

func (a AccountSnapshot) Validate() error {
	if a.Reference == nil || a.Reference.Empty() {
		return ErrMissingAccountReference
	}
	return nil
}

func (c CycleRecord) Validate() error {
	if c.ID == uuid.Nil {
		return errors.New("cycle id cannot be empty")
	}
	return c.Type.Validate()
}

// Key returns the calendar month of the report.
func (m MonthlyReport) Key() MonthKey {
	return MonthKey{Year: m.Year, Month: m.Month}
}

// TotalIncoming sums the amounts of incoming categories.
func (m MonthlyReport) TotalIncoming() Amount {
	total := ZeroAmount(2)
	for _, ca := range m.CategorizedAmounts {
		if ca.Category.IsIncome() {
			total = total.Add(ca.Amount)
		}
	}
	return total
}

// TotalOutgoing sums the amounts of outgoing categories.
func (m MonthlyReport) TotalOutgoing() Amount {
	total := ZeroAmount(2)
	for _, ca := range m.CategorizedAmounts {
		if ca.Category.IsExpense() {
			total = total.Add(ca.Amount)
		}
	}
	return total
}

func (s RecurringMonthlySummary) Key() MonthKey {
	return MonthKey{Year: s.Year, Month: s.Month}
}

// HasTransactions reports whether the report carries a monthly breakdown.
func (r Report) HasTransactions() bool {
	return r.TransactionsSize > 0
}

// SignatureBase64 returns the signature as standard Base64 text, the form
// in which it is stored and handed to clients.
func (s ReportSignature) SignatureBase64() string {
	return base64.StdEncoding.EncodeToString(s.Signature)
}

// DecodeSignature parses the stored Base64 form.
func DecodeSignature(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode signature: %w", err)
	}
	return b, nil
}
