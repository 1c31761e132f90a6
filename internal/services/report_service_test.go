package services

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"cashflow/internal/core"
	"cashflow/internal/feed"
	"cashflow/internal/feed/memory"
	"cashflow/internal/security"
	"cashflow/internal/signature"
	"cashflow/internal/storage"
)

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
	keyID   = uuid.MustParse("4b3c2a10-0000-4000-8000-000000000001")
	fixed   = time.Date(2021, 2, 10, 12, 0, 0, 0, time.UTC)
)

type keyLookup map[uuid.UUID]*rsa.PublicKey

func (k keyLookup) PublicKey(_ context.Context, id uuid.UUID) (*rsa.PublicKey, error) {
	if pub, ok := k[id]; ok {
		return pub, nil
	}
	return nil, errors.New("unknown key")
}

func newSigner(t *testing.T) *signature.Signer {
	t.Helper()
	keyOnce.Do(func() {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = k
	})
	s, err := signature.NewSigner(signature.SigningKey{ID: keyID, Private: testKey}, keyLookup{keyID: &testKey.PublicKey})
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	return s
}

type memReports struct {
	mu        sync.Mutex
	reports   map[uuid.UUID]storage.StoredReport
	recurring map[uuid.UUID][]core.RecurringMonthlySummary
	saveErr   error
}

func newMemReports() *memReports {
	return &memReports{
		reports:   map[uuid.UUID]storage.StoredReport{},
		recurring: map[uuid.UUID][]core.RecurringMonthlySummary{},
	}
}

func (m *memReports) SaveReport(_ context.Context, r core.Report, sig core.ReportSignature, rec []core.RecurringMonthlySummary) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[r.UserID] = storage.StoredReport{Report: r, Signature: sig}
	m.recurring[r.UserID] = rec
	return nil
}

func (m *memReports) GetReportByUser(_ context.Context, userID uuid.UUID) (storage.StoredReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[userID]
	if !ok {
		return storage.StoredReport{}, fmt.Errorf("report of user %s: %w", userID, storage.ErrNotFound)
	}
	return r, nil
}

func (m *memReports) GetRecurringSummaries(_ context.Context, userID uuid.UUID) ([]core.RecurringMonthlySummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recurring[userID], nil
}

func (m *memReports) DeleteUserData(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reports, userID)
	delete(m.recurring, userID)
	return nil
}

type feedFunc func(ctx context.Context, userID uuid.UUID) (feed.AccountData, error)

func (f feedFunc) Fetch(ctx context.Context, userID uuid.UUID) (feed.AccountData, error) {
	return f(ctx, userID)
}

type recordingAlerter struct {
	mu     sync.Mutex
	events []security.Event
}

func (a *recordingAlerter) Alert(_ context.Context, ev security.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
	return nil
}

func accountData() feed.AccountData {
	recurrence := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	return feed.AccountData{
		Account: core.AccountSnapshot{
			CurrentBalance:    core.MustParseAmount("1000.00"),
			LastDataFetchTime: time.Date(2021, 2, 10, 8, 30, 0, 0, time.UTC),
			Currency:          "EUR",
			Reference:         &core.AccountReference{IBAN: "NL91ABNA0417164300"},
			AccountHolder:     "Jane Doe",
		},
		Transactions: []core.Transaction{
			{Date: core.NewDate(2021, 1, 20), Amount: core.MustParseAmount("300.00"), Currency: "EUR",
				Category: core.Revenue, RecurrenceID: &recurrence},
			{Date: core.NewDate(2021, 1, 15), Amount: core.MustParseAmount("-100.30"), Currency: "EUR",
				Category: core.FoodAndDrinks},
		},
		Cycles: []core.CycleRecord{
			{ID: recurrence, Type: core.CycleCredit, Amount: core.MustParseAmount("300.00")},
		},
	}
}

type fixture struct {
	svc     *ReportService
	store   *memReports
	feed    *memory.Store
	alerter *recordingAlerter
	userID  uuid.UUID
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{
		store:   newMemReports(),
		feed:    memory.New(),
		alerter: &recordingAlerter{},
		userID:  uuid.New(),
	}
	f.feed.Put(f.userID, accountData())
	f.svc = NewReportService(f.store, f.feed, newSigner(t), f.alerter, RetryPolicy{Attempts: 3})
	f.svc.now = func() time.Time { return fixed }
	return f
}

func TestCalculateReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stored, err := f.svc.CalculateReport(ctx, f.userID)
	if err != nil {
		t.Fatalf("CalculateReport: %v", err)
	}
	r := stored.Report
	if r.ID == uuid.Nil {
		t.Error("report id not assigned")
	}
	if !r.CreatedDate.Equal(fixed) {
		t.Errorf("created = %v, want %v", r.CreatedDate, fixed)
	}
	if len(r.Monthly) != 1 || r.TransactionsSize != 2 {
		t.Errorf("monthly = %d, transactions = %d; want 1, 2", len(r.Monthly), r.TransactionsSize)
	}
	if stored.Signature.KeyID != keyID {
		t.Errorf("key id = %s, want %s", stored.Signature.KeyID, keyID)
	}
	if len(f.store.recurring[f.userID]) != 1 {
		t.Errorf("recurring summaries = %d, want 1", len(f.store.recurring[f.userID]))
	}

	ok, err := f.svc.VerifyReport(ctx, f.userID)
	if err != nil || !ok {
		t.Errorf("VerifyReport = %v, %v; want true, nil", ok, err)
	}
	if len(f.alerter.events) != 0 {
		t.Errorf("unexpected security events: %+v", f.alerter.events)
	}
}

func TestCalculateReport_RetriesUntilReady(t *testing.T) {
	f := newFixture(t)
	f.feed.Delay(f.userID, 2)

	if _, err := f.svc.CalculateReport(context.Background(), f.userID); err != nil {
		t.Fatalf("CalculateReport: %v", err)
	}
}

func TestCalculateReport_Errors(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(f *fixture)
		want      error
		permanent bool
	}{
		{
			name:      "feed never ready",
			setup:     func(f *fixture) { f.feed.Delay(f.userID, 5) },
			want:      feed.ErrNotReady,
			permanent: true,
		},
		{
			name:      "unknown user",
			setup:     func(f *fixture) { f.userID = uuid.New() },
			want:      feed.ErrUserNotFound,
			permanent: true,
		},
		{
			name: "malformed feed data",
			setup: func(f *fixture) {
				f.svc.source = feedFunc(func(context.Context, uuid.UUID) (feed.AccountData, error) {
					return feed.AccountData{}, fmt.Errorf("decode: %w: unexpected end of JSON input", feed.ErrInvalidData)
				})
			},
			want:      feed.ErrInvalidData,
			permanent: true,
		},
		{
			name: "missing account reference",
			setup: func(f *fixture) {
				data := accountData()
				data.Account.Reference = nil
				f.feed.Put(f.userID, data)
			},
			want:      core.ErrMissingAccountReference,
			permanent: true,
		},
		{
			name:      "storage failure",
			setup:     func(f *fixture) { f.store.saveErr = errors.New("disk full") },
			permanent: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(&f)

			_, err := f.svc.CalculateReport(context.Background(), f.userID)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if IsPermanent(err) != tt.permanent {
				t.Errorf("IsPermanent(%v) = %v, want %v", err, IsPermanent(err), tt.permanent)
			}
		})
	}
}

func TestVerifyReport_TamperedRaisesEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stored, err := f.svc.CalculateReport(ctx, f.userID)
	if err != nil {
		t.Fatalf("CalculateReport: %v", err)
	}
	stored.Report.InitialBalance = core.MustParseAmount("999999.00")
	f.store.reports[f.userID] = stored

	ok, err := f.svc.VerifyReport(ctx, f.userID)
	if err != nil {
		t.Fatalf("VerifyReport: %v", err)
	}
	if ok {
		t.Fatal("tampered report verified")
	}
	if len(f.alerter.events) != 1 {
		t.Fatalf("events = %d, want 1", len(f.alerter.events))
	}
	ev := f.alerter.events[0]
	if ev.Kind != security.KindInvalidSignature || ev.ReportID != stored.Report.ID || ev.UserID != f.userID {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestVerifyReport_UnknownKeyIsError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stored, err := f.svc.CalculateReport(ctx, f.userID)
	if err != nil {
		t.Fatalf("CalculateReport: %v", err)
	}
	stored.Signature.KeyID = uuid.New()
	f.store.reports[f.userID] = stored

	if _, err := f.svc.VerifyReport(ctx, f.userID); !errors.Is(err, signature.ErrSignature) {
		t.Errorf("err = %v, want ErrSignature", err)
	}
	if len(f.alerter.events) != 0 {
		t.Errorf("infrastructure failure raised %d security events", len(f.alerter.events))
	}
}

func TestOverview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.CalculateReport(ctx, f.userID); err != nil {
		t.Fatalf("CalculateReport: %v", err)
	}
	ov, err := f.svc.Overview(ctx, f.userID)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if !ov.Verified {
		t.Error("overview report not verified")
	}

	tests := []struct {
		name string
		got  core.Amount
		want string
	}{
		{"total income", ov.Year.TotalIncome, "300.00"},
		{"monthly average income", ov.Year.MonthlyAverageIncome, "25.00"},
		{"monthly average cost", ov.Year.MonthlyAverageCost, "8.36"},
		{"recurring income", ov.Recurring.IncomeAverage, "25.00"},
		{"recurring outcome", ov.Recurring.OutcomeAverage, "0.00"},
	}
	for _, tt := range tests {
		if tt.got.String() != tt.want {
			t.Errorf("%s = %s, want %s", tt.name, tt.got, tt.want)
		}
	}
}

func TestDeleteUserData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.CalculateReport(ctx, f.userID); err != nil {
		t.Fatalf("CalculateReport: %v", err)
	}
	if err := f.svc.DeleteUserData(ctx, f.userID); err != nil {
		t.Fatalf("DeleteUserData: %v", err)
	}
	if _, err := f.svc.VerifyReport(ctx, f.userID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
