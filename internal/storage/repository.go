package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"cashflow/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

const timestampLayout = time.RFC3339Nano

// StoredReport is a report together with the signature it was saved with.
type StoredReport struct {
	Report    core.Report
	Signature core.ReportSignature
}

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; serialise through one connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("Database ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// withTx runs fn inside one transaction and commits only if fn succeeds.
func (r *SQLiteRepository) withTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Failed to roll back transaction", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// SaveReport stores a signed report, its monthly breakdown and the user's
// recurring summaries in one transaction. A previous report of the same
// user, and its recurring summaries, are replaced.
func (r *SQLiteRepository) SaveReport(ctx context.Context, report core.Report, sig core.ReportSignature, recurring []core.RecurringMonthlySummary) error {
	if report.ID == uuid.Nil {
		return errors.New("save report: report id is empty")
	}
	if len(sig.Signature) == 0 || sig.KeyID == uuid.Nil {
		return errors.New("save report: report is not signed")
	}
	paths, err := json.Marshal(sig.JSONPaths)
	if err != nil {
		return fmt.Errorf("marshal json paths: %w", err)
	}

	userID := report.UserID.String()
	err = r.withTx(ctx, func(q *Queries) error {
		if err := deleteUserRows(ctx, q, userID); err != nil {
			return err
		}

		row := reportToRow(report)
		row.Signature = sig.SignatureBase64()
		row.SignatureKeyID = sig.KeyID.String()
		row.SignatureJSONPaths = string(paths)
		if err := q.CreateReport(ctx, row); err != nil {
			return fmt.Errorf("create report: %w", err)
		}

		for _, m := range report.Monthly {
			monthlyID, err := q.CreateMonthly(ctx, MonthlyRow{
				ReportID:       row.ID,
				Year:           int64(m.Year),
				Month:          int64(m.Month),
				HighestBalance: m.HighestBalance.String(),
				LowestBalance:  m.LowestBalance.String(),
				AverageBalance: m.AverageBalance.String(),
				IncomingCount:  int64(m.IncomingCount),
				OutgoingCount:  int64(m.OutgoingCount),
			})
			if err != nil {
				return fmt.Errorf("create monthly %d-%02d: %w", m.Year, m.Month, err)
			}
			for i, ca := range m.CategorizedAmounts {
				err := q.CreateCategory(ctx, CategoryRow{
					MonthlyID:        monthlyID,
					Position:         int64(i),
					Category:         string(ca.Category),
					Amount:           ca.Amount.String(),
					TransactionCount: int64(ca.TransactionCount),
				})
				if err != nil {
					return fmt.Errorf("create category %s: %w", ca.Category, err)
				}
			}
		}

		for _, s := range recurring {
			err := q.CreateRecurring(ctx, RecurringRow{
				UserID:        userID,
				Year:          int64(s.Year),
				Month:         int64(s.Month),
				IncomeAmount:  s.IncomeAmount.String(),
				IncomeCount:   int64(s.IncomeCount),
				OutcomeAmount: s.OutcomeAmount.String(),
				OutcomeCount:  int64(s.OutcomeCount),
			})
			if err != nil {
				return fmt.Errorf("create recurring %d-%02d: %w", s.Year, s.Month, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Report saved to SQLite",
		"report_id", report.ID,
		"user_id", userID,
		"months", len(report.Monthly),
		"recurring_months", len(recurring))
	return nil
}

func (r *SQLiteRepository) GetReport(ctx context.Context, id uuid.UUID) (StoredReport, error) {
	row, err := r.queries.GetReport(ctx, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return StoredReport{}, fmt.Errorf("report %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return StoredReport{}, fmt.Errorf("get report: %w", err)
	}
	return r.loadReport(ctx, row)
}

func (r *SQLiteRepository) GetReportByUser(ctx context.Context, userID uuid.UUID) (StoredReport, error) {
	row, err := r.queries.GetReportByUser(ctx, userID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return StoredReport{}, fmt.Errorf("report of user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return StoredReport{}, fmt.Errorf("get report by user: %w", err)
	}
	return r.loadReport(ctx, row)
}

func (r *SQLiteRepository) loadReport(ctx context.Context, row ReportRow) (StoredReport, error) {
	report, sig, err := rowToReport(row)
	if err != nil {
		return StoredReport{}, fmt.Errorf("decode report %s: %w", row.ID, err)
	}

	months, err := r.queries.GetMonthlyByReport(ctx, row.ID)
	if err != nil {
		return StoredReport{}, fmt.Errorf("get monthly reports: %w", err)
	}
	cats, err := r.queries.GetCategoriesByReport(ctx, row.ID)
	if err != nil {
		return StoredReport{}, fmt.Errorf("get categories: %w", err)
	}
	byMonth := make(map[int64][]core.CategorizedAmount, len(months))
	for _, c := range cats {
		amount, err := core.ParseAmount(c.Amount)
		if err != nil {
			return StoredReport{}, fmt.Errorf("category %s amount: %w", c.Category, err)
		}
		byMonth[c.MonthlyID] = append(byMonth[c.MonthlyID], core.CategorizedAmount{
			Category:         core.Category(c.Category),
			Amount:           amount,
			TransactionCount: int(c.TransactionCount),
		})
	}

	for _, m := range months {
		mr, err := rowToMonthly(m)
		if err != nil {
			return StoredReport{}, fmt.Errorf("monthly %d-%02d: %w", m.Year, m.Month, err)
		}
		mr.CategorizedAmounts = byMonth[m.ID]
		report.Monthly = append(report.Monthly, mr)
	}
	return StoredReport{Report: report, Signature: sig}, nil
}

func (r *SQLiteRepository) GetRecurringSummaries(ctx context.Context, userID uuid.UUID) ([]core.RecurringMonthlySummary, error) {
	rows, err := r.queries.GetRecurringByUser(ctx, userID.String())
	if err != nil {
		return nil, fmt.Errorf("get recurring summaries: %w", err)
	}
	out := make([]core.RecurringMonthlySummary, 0, len(rows))
	for _, row := range rows {
		income, err := core.ParseAmount(row.IncomeAmount)
		if err != nil {
			return nil, fmt.Errorf("income amount: %w", err)
		}
		outcome, err := core.ParseAmount(row.OutcomeAmount)
		if err != nil {
			return nil, fmt.Errorf("outcome amount: %w", err)
		}
		out = append(out, core.RecurringMonthlySummary{
			Year:          int(row.Year),
			Month:         time.Month(row.Month),
			IncomeAmount:  income,
			IncomeCount:   int(row.IncomeCount),
			OutcomeAmount: outcome,
			OutcomeCount:  int(row.OutcomeCount),
		})
	}
	return out, nil
}

// DeleteUserData removes the user's report, monthly breakdown, categories
// and recurring summaries. Deleting a user without data is not an error.
func (r *SQLiteRepository) DeleteUserData(ctx context.Context, userID uuid.UUID) error {
	err := r.withTx(ctx, func(q *Queries) error {
		return deleteUserRows(ctx, q, userID.String())
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "User data deleted", "user_id", userID)
	return nil
}

func deleteUserRows(ctx context.Context, q *Queries, userID string) error {
	ids, err := q.GetReportIDsByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("get reports of user: %w", err)
	}
	for _, id := range ids {
		if err := q.DeleteCategoriesByReport(ctx, id); err != nil {
			return fmt.Errorf("delete categories: %w", err)
		}
		if err := q.DeleteMonthlyByReport(ctx, id); err != nil {
			return fmt.Errorf("delete monthly reports: %w", err)
		}
		if err := q.DeleteReport(ctx, id); err != nil {
			return fmt.Errorf("delete report: %w", err)
		}
	}
	if err := q.DeleteRecurringByUser(ctx, userID); err != nil {
		return fmt.Errorf("delete recurring summaries: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetPublicKey(ctx context.Context, keyID uuid.UUID) (core.PublicKeyRecord, error) {
	row, err := r.queries.GetPublicKey(ctx, keyID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return core.PublicKeyRecord{}, fmt.Errorf("public key %s: %w", keyID, ErrNotFound)
	}
	if err != nil {
		return core.PublicKeyRecord{}, fmt.Errorf("get public key: %w", err)
	}
	created, err := time.Parse(timestampLayout, row.CreatedDate)
	if err != nil {
		return core.PublicKeyRecord{}, fmt.Errorf("public key created date: %w", err)
	}
	return core.PublicKeyRecord{KeyID: keyID, CreatedDate: created, PublicKey: row.PublicKey}, nil
}

// InsertPublicKey appends a key record. An existing record for the same id
// is kept as is.
func (r *SQLiteRepository) InsertPublicKey(ctx context.Context, rec core.PublicKeyRecord) error {
	n, err := r.queries.CreatePublicKey(ctx, PublicKeyRow{
		KeyID:       rec.KeyID.String(),
		CreatedDate: rec.CreatedDate.UTC().Format(timestampLayout),
		PublicKey:   rec.PublicKey,
	})
	if err != nil {
		return fmt.Errorf("insert public key: %w", err)
	}
	if n == 0 {
		slog.WarnContext(ctx, "Public key already recorded, keeping existing record", "key_id", rec.KeyID)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullDate(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(core.DateLayout), Valid: true}
}

func reportToRow(r core.Report) ReportRow {
	row := ReportRow{
		ID:                    r.ID.String(),
		UserID:                r.UserID.String(),
		Iban:                  nullString(r.Account.IBAN),
		Bban:                  nullString(r.Account.BBAN),
		MaskedPan:             nullString(r.Account.MaskedPan),
		SortCodeAccountNumber: nullString(r.Account.SortCodeAccountNumber),
		AccountHolder:         nullString(r.AccountHolder),
		InitialBalance:        r.InitialBalance.String(),
		LastDataFetchTime:     r.LastDataFetchTime.UTC().Format(timestampLayout),
		Currency:              nullString(r.Currency),
		NewestTransactionDate: nullDate(r.NewestTransactionDate),
		OldestTransactionDate: nullDate(r.OldestTransactionDate),
		TransactionsSize:      int64(r.TransactionsSize),
		CreatedDate:           r.CreatedDate.UTC().Format(timestampLayout),
	}
	if r.CreditLimit != nil {
		row.CreditLimit = nullString(r.CreditLimit.String())
	}
	return row
}

func rowToReport(row ReportRow) (core.Report, core.ReportSignature, error) {
	var (
		report core.Report
		sig    core.ReportSignature
		err    error
	)
	if report.ID, err = uuid.Parse(row.ID); err != nil {
		return report, sig, fmt.Errorf("id: %w", err)
	}
	if report.UserID, err = uuid.Parse(row.UserID); err != nil {
		return report, sig, fmt.Errorf("user id: %w", err)
	}
	report.Account = core.AccountReference{
		IBAN:                  row.Iban.String,
		BBAN:                  row.Bban.String,
		MaskedPan:             row.MaskedPan.String,
		SortCodeAccountNumber: row.SortCodeAccountNumber.String,
	}
	report.AccountHolder = row.AccountHolder.String
	report.Currency = row.Currency.String
	report.TransactionsSize = int(row.TransactionsSize)

	if report.InitialBalance, err = core.ParseAmount(row.InitialBalance); err != nil {
		return report, sig, fmt.Errorf("initial balance: %w", err)
	}
	if row.CreditLimit.Valid {
		limit, err := core.ParseAmount(row.CreditLimit.String)
		if err != nil {
			return report, sig, fmt.Errorf("credit limit: %w", err)
		}
		report.CreditLimit = &limit
	}
	if report.LastDataFetchTime, err = time.Parse(timestampLayout, row.LastDataFetchTime); err != nil {
		return report, sig, fmt.Errorf("last data fetch time: %w", err)
	}
	if report.CreatedDate, err = time.Parse(timestampLayout, row.CreatedDate); err != nil {
		return report, sig, fmt.Errorf("created date: %w", err)
	}
	if row.NewestTransactionDate.Valid {
		if report.NewestTransactionDate, err = time.Parse(core.DateLayout, row.NewestTransactionDate.String); err != nil {
			return report, sig, fmt.Errorf("newest transaction date: %w", err)
		}
	}
	if row.OldestTransactionDate.Valid {
		if report.OldestTransactionDate, err = time.Parse(core.DateLayout, row.OldestTransactionDate.String); err != nil {
			return report, sig, fmt.Errorf("oldest transaction date: %w", err)
		}
	}

	if sig.Signature, err = core.DecodeSignature(row.Signature); err != nil {
		return report, sig, err
	}
	if sig.KeyID, err = uuid.Parse(row.SignatureKeyID); err != nil {
		return report, sig, fmt.Errorf("signature key id: %w", err)
	}
	if err := json.Unmarshal([]byte(row.SignatureJSONPaths), &sig.JSONPaths); err != nil {
		return report, sig, fmt.Errorf("signature json paths: %w", err)
	}
	return report, sig, nil
}

func rowToMonthly(m MonthlyRow) (core.MonthlyReport, error) {
	highest, err := core.ParseAmount(m.HighestBalance)
	if err != nil {
		return core.MonthlyReport{}, fmt.Errorf("highest balance: %w", err)
	}
	lowest, err := core.ParseAmount(m.LowestBalance)
	if err != nil {
		return core.MonthlyReport{}, fmt.Errorf("lowest balance: %w", err)
	}
	average, err := core.ParseAmount(m.AverageBalance)
	if err != nil {
		return core.MonthlyReport{}, fmt.Errorf("average balance: %w", err)
	}
	return core.MonthlyReport{
		Year:           int(m.Year),
		Month:          time.Month(m.Month),
		HighestBalance: highest,
		LowestBalance:  lowest,
		AverageBalance: average,
		IncomingCount:  int(m.IncomingCount),
		OutgoingCount:  int(m.OutgoingCount),
	}, nil
}
