package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"cashflow/internal/core"
	"cashflow/internal/feed"
)

const sample = `{
  "account": {
    "iban": "NL91ABNA0417164300",
    "accountHolder": "Jane Doe",
    "currentBalance": "1000",
    "creditLimit": 250.5,
    "currency": "EUR",
    "lastDataFetchTime": "2021-02-10T08:30:00Z"
  },
  "transactions": [
    {"date": "2021-01-15", "amount": "-100.30", "category": "Food and Drinks"},
    {"date": "2021-01-20", "amount": 300, "category": "SOMETHING_NEW",
     "recurrenceId": "6ba7b810-9dad-11d1-80b4-00c04fd430c8"}
  ],
  "cycles": [
    {"id": "6ba7b810-9dad-11d1-80b4-00c04fd430c8", "type": "CREDIT", "amount": "300.00"}
  ]
}`

func TestDecode(t *testing.T) {
	data, err := Decode([]byte(sample))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	acc := data.Account
	if acc.Reference == nil || acc.Reference.IBAN != "NL91ABNA0417164300" {
		t.Fatalf("reference = %+v", acc.Reference)
	}
	if got := acc.CurrentBalance.String(); got != "1000.00" {
		t.Errorf("balance = %s, want 1000.00", got)
	}
	if acc.CreditLimit == nil || acc.CreditLimit.String() != "250.50" {
		t.Errorf("credit limit = %v, want 250.50", acc.CreditLimit)
	}

	if len(data.Transactions) != 2 {
		t.Fatalf("transactions = %d, want 2", len(data.Transactions))
	}
	tests := []struct {
		amount   string
		category core.Category
	}{
		{"-100.30", core.FoodAndDrinks},
		{"300.00", core.OtherIncome},
	}
	for i, tt := range tests {
		tx := data.Transactions[i]
		if tx.Amount.String() != tt.amount || tx.Category != tt.category {
			t.Errorf("transaction %d = %s %s, want %s %s", i, tx.Amount, tx.Category, tt.amount, tt.category)
		}
		if tx.Currency != "EUR" {
			t.Errorf("transaction %d currency = %q, want EUR", i, tx.Currency)
		}
	}
	if data.Transactions[1].RecurrenceID == nil {
		t.Error("recurrence id lost")
	}
	if len(data.Cycles) != 1 || data.Cycles[0].Type != core.CycleCredit {
		t.Errorf("cycles = %+v", data.Cycles)
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"not ready", `{"ready": false}`, feed.ErrNotReady},
		{"bad date", `{"account": {"currentBalance": "1"}, "transactions": [{"date": "15/01/2021", "amount": "1"}]}`, feed.ErrInvalidData},
		{"bad json", `{`, feed.ErrInvalidData},
		{"amount out of range", `{"account": {"currentBalance": "99999999999999999999"}}`, core.ErrInvalidAmount},
		{"too many fractional digits", `{"account": {"currentBalance": "1"}, "transactions": [{"date": "2021-01-15", "amount": "0.0000000000001"}]}`, feed.ErrInvalidData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.doc))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSourceFetch(t *testing.T) {
	dir := t.TempDir()
	userID := uuid.New()
	if err := os.WriteFile(filepath.Join(dir, userID.String()+".json"), []byte(sample), 0o644); err != nil {
		t.Fatalf("write feed file: %v", err)
	}
	src := New(dir)

	data, err := src.Fetch(context.Background(), userID)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(data.Transactions) != 2 {
		t.Errorf("transactions = %d, want 2", len(data.Transactions))
	}

	if _, err := src.Fetch(context.Background(), uuid.New()); !errors.Is(err, feed.ErrUserNotFound) {
		t.Errorf("unknown user err = %v, want ErrUserNotFound", err)
	}
}

func TestSourceFetch_Malformed(t *testing.T) {
	dir := t.TempDir()
	userID := uuid.New()
	if err := os.WriteFile(filepath.Join(dir, userID.String()+".json"), []byte(`{"account": {`), 0o644); err != nil {
		t.Fatalf("write feed file: %v", err)
	}

	_, err := New(dir).Fetch(context.Background(), userID)
	if !errors.Is(err, feed.ErrInvalidData) {
		t.Fatalf("err = %v, want ErrInvalidData", err)
	}
	if errors.Is(err, feed.ErrNotReady) {
		t.Errorf("malformed document reported as not ready: %v", err)
	}
}
