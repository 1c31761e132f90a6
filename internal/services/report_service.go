package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"cashflow/internal/core"
	"cashflow/internal/creditscore"
	"cashflow/internal/feed"
	"cashflow/internal/indicators"
	"cashflow/internal/security"
	"cashflow/internal/storage"
)

// ErrInvalidAccountData marks upstream data the calculation rejects.
// Retrying with the same data cannot succeed.
var ErrInvalidAccountData = errors.New("invalid account data")

type (
	ReportStore interface {
		SaveReport(ctx context.Context, report core.Report, sig core.ReportSignature, recurring []core.RecurringMonthlySummary) error
		GetReportByUser(ctx context.Context, userID uuid.UUID) (storage.StoredReport, error)
		GetRecurringSummaries(ctx context.Context, userID uuid.UUID) ([]core.RecurringMonthlySummary, error)
		DeleteUserData(ctx context.Context, userID uuid.UUID) error
	}

	ReportSigner interface {
		Sign(report core.Report) (core.ReportSignature, error)
		Verify(ctx context.Context, report core.Report, sig core.ReportSignature) (bool, error)
	}

	// ReportOverview is a stored report together with its trailing-window
	// indicators.
	ReportOverview struct {
		Report    core.Report
		Verified  bool
		Year      indicators.YearSummary
		Recurring indicators.RecurringAverage
	}
)

// ReportService calculates, signs, stores and verifies cash-flow reports.
type ReportService struct {
	store   ReportStore
	source  feed.Source
	signer  ReportSigner
	alerter security.Alerter
	retry   RetryPolicy

	now   func() time.Time
	newID func() uuid.UUID
}

// NewReportService wires the service. A nil alerter disables security
// alerts.
func NewReportService(store ReportStore, source feed.Source, signer ReportSigner, alerter security.Alerter, retry RetryPolicy) *ReportService {
	return &ReportService{
		store:   store,
		source:  source,
		signer:  signer,
		alerter: alerter,
		retry:   retry,
		now:     time.Now,
		newID:   uuid.New,
	}
}

// CalculateReport fetches the user's account data, builds and signs the
// report and stores it together with the recurring summaries. A previous
// report of the user is replaced.
func (s *ReportService) CalculateReport(ctx context.Context, userID uuid.UUID) (storage.StoredReport, error) {
	var data feed.AccountData
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		data, err = s.source.Fetch(ctx, userID)
		return err
	}, func(err error) bool { return errors.Is(err, feed.ErrNotReady) })
	if err != nil {
		return storage.StoredReport{}, fmt.Errorf("fetch account data: %w", err)
	}

	now := s.now()
	result, err := creditscore.Calculate(creditscore.Input{
		UserID:       userID,
		Account:      data.Account,
		Transactions: data.Transactions,
		Cycles:       data.Cycles,
	}, now)
	if err != nil {
		return storage.StoredReport{}, fmt.Errorf("%w: %w", ErrInvalidAccountData, err)
	}

	report := result.Report
	report.ID = s.newID()

	sig, err := s.signer.Sign(report)
	if err != nil {
		return storage.StoredReport{}, fmt.Errorf("sign report: %w", err)
	}
	if err := s.store.SaveReport(ctx, report, sig, result.Recurring); err != nil {
		return storage.StoredReport{}, fmt.Errorf("save report: %w", err)
	}

	slog.InfoContext(ctx, "Calculated cash-flow report",
		"report_id", report.ID,
		"user_id", userID,
		"transactions", report.TransactionsSize,
		"months", len(report.Monthly),
		"key_id", sig.KeyID)

	return storage.StoredReport{Report: report, Signature: sig}, nil
}

// VerifyReport checks the stored report of the user against its signature.
// A report that fails verification raises a security event.
func (s *ReportService) VerifyReport(ctx context.Context, userID uuid.UUID) (bool, error) {
	stored, err := s.store.GetReportByUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load report: %w", err)
	}
	return s.verify(ctx, stored)
}

func (s *ReportService) verify(ctx context.Context, stored storage.StoredReport) (bool, error) {
	ok, err := s.signer.Verify(ctx, stored.Report, stored.Signature)
	if err != nil {
		return false, fmt.Errorf("verify report %s: %w", stored.Report.ID, err)
	}
	if ok {
		return true, nil
	}

	slog.WarnContext(ctx, "Report signature is invalid",
		"report_id", stored.Report.ID,
		"user_id", stored.Report.UserID,
		"key_id", stored.Signature.KeyID)

	if s.alerter != nil {
		ev := security.Event{
			Kind:       security.KindInvalidSignature,
			OccurredAt: s.now(),
			UserID:     stored.Report.UserID,
			ReportID:   stored.Report.ID,
			KeyID:      stored.Signature.KeyID,
			Message:    "stored report does not match its signature",
		}
		if err := s.alerter.Alert(ctx, ev); err != nil {
			slog.ErrorContext(ctx, "Failed to raise security event",
				"error", err,
				"report_id", stored.Report.ID)
		}
	}
	return false, nil
}

// Overview returns the stored report with its verification result and the
// indicators of the twelve months before its data fetch.
func (s *ReportService) Overview(ctx context.Context, userID uuid.UUID) (ReportOverview, error) {
	stored, err := s.store.GetReportByUser(ctx, userID)
	if err != nil {
		return ReportOverview{}, fmt.Errorf("load report: %w", err)
	}
	verified, err := s.verify(ctx, stored)
	if err != nil {
		return ReportOverview{}, err
	}
	recurring, err := s.store.GetRecurringSummaries(ctx, userID)
	if err != nil {
		return ReportOverview{}, fmt.Errorf("load recurring summaries: %w", err)
	}

	fetch := stored.Report.LastDataFetchTime
	return ReportOverview{
		Report:    stored.Report,
		Verified:  verified,
		Year:      indicators.YearIndicators(stored.Report.Monthly, fetch),
		Recurring: indicators.RecurringAverages(recurring, fetch),
	}, nil
}

// DeleteUserData removes everything stored for the user.
func (s *ReportService) DeleteUserData(ctx context.Context, userID uuid.UUID) error {
	if err := s.store.DeleteUserData(ctx, userID); err != nil {
		return fmt.Errorf("delete user data: %w", err)
	}
	return nil
}

// IsPermanent reports whether a CalculateReport error will recur on retry.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrInvalidAccountData) ||
		errors.Is(err, feed.ErrUserNotFound) ||
		errors.Is(err, feed.ErrInvalidData) ||
		errors.Is(err, feed.ErrNotReady)
}
