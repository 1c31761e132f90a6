package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type ReportRow struct {
	ID                    string
	UserID                string
	Iban                  sql.NullString
	Bban                  sql.NullString
	MaskedPan             sql.NullString
	SortCodeAccountNumber sql.NullString
	AccountHolder         sql.NullString
	InitialBalance        string
	LastDataFetchTime     string
	Currency              sql.NullString
	NewestTransactionDate sql.NullString
	OldestTransactionDate sql.NullString
	CreditLimit           sql.NullString
	TransactionsSize      int64
	Signature             string
	SignatureKeyID        string
	SignatureJSONPaths    string
	CreatedDate           string
}

type MonthlyRow struct {
	ID             int64
	ReportID       string
	Year           int64
	Month          int64
	HighestBalance string
	LowestBalance  string
	AverageBalance string
	IncomingCount  int64
	OutgoingCount  int64
}

type CategoryRow struct {
	MonthlyID        int64
	Position         int64
	Category         string
	Amount           string
	TransactionCount int64
}

type RecurringRow struct {
	UserID        string
	Year          int64
	Month         int64
	IncomeAmount  string
	IncomeCount   int64
	OutcomeAmount string
	OutcomeCount  int64
}

type PublicKeyRow struct {
	KeyID       string
	CreatedDate string
	PublicKey   []byte
}

const createReport = `
INSERT INTO credit_score_report (
    id, user_id, iban, bban, masked_pan, sort_code_account_number, account_holder,
    initial_balance, last_data_fetch_time, currency, newest_transaction_date,
    oldest_transaction_date, credit_limit, transactions_size,
    signature, signature_key_id, signature_json_paths, created_date
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateReport(ctx context.Context, r ReportRow) error {
	_, err := q.db.ExecContext(ctx, createReport,
		r.ID, r.UserID, r.Iban, r.Bban, r.MaskedPan, r.SortCodeAccountNumber, r.AccountHolder,
		r.InitialBalance, r.LastDataFetchTime, r.Currency, r.NewestTransactionDate,
		r.OldestTransactionDate, r.CreditLimit, r.TransactionsSize,
		r.Signature, r.SignatureKeyID, r.SignatureJSONPaths, r.CreatedDate,
	)
	return err
}

const selectReport = `
SELECT id, user_id, iban, bban, masked_pan, sort_code_account_number, account_holder,
       initial_balance, last_data_fetch_time, currency, newest_transaction_date,
       oldest_transaction_date, credit_limit, transactions_size,
       signature, signature_key_id, signature_json_paths, created_date
FROM credit_score_report`

func scanReport(row *sql.Row) (ReportRow, error) {
	var r ReportRow
	err := row.Scan(
		&r.ID, &r.UserID, &r.Iban, &r.Bban, &r.MaskedPan, &r.SortCodeAccountNumber, &r.AccountHolder,
		&r.InitialBalance, &r.LastDataFetchTime, &r.Currency, &r.NewestTransactionDate,
		&r.OldestTransactionDate, &r.CreditLimit, &r.TransactionsSize,
		&r.Signature, &r.SignatureKeyID, &r.SignatureJSONPaths, &r.CreatedDate,
	)
	return r, err
}

func (q *Queries) GetReport(ctx context.Context, id string) (ReportRow, error) {
	return scanReport(q.db.QueryRowContext(ctx, selectReport+" WHERE id = ?", id))
}

func (q *Queries) GetReportByUser(ctx context.Context, userID string) (ReportRow, error) {
	return scanReport(q.db.QueryRowContext(ctx, selectReport+" WHERE user_id = ?", userID))
}

const getReportIDsByUser = `SELECT id FROM credit_score_report WHERE user_id = ?`

func (q *Queries) GetReportIDsByUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, getReportIDsByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const createMonthly = `
INSERT INTO credit_score_monthly (
    report_id, year, month, highest_balance, lowest_balance, average_balance,
    incoming_count, outgoing_count
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateMonthly(ctx context.Context, m MonthlyRow) (int64, error) {
	res, err := q.db.ExecContext(ctx, createMonthly,
		m.ReportID, m.Year, m.Month, m.HighestBalance, m.LowestBalance, m.AverageBalance,
		m.IncomingCount, m.OutgoingCount,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const getMonthlyByReport = `
SELECT id, report_id, year, month, highest_balance, lowest_balance, average_balance,
       incoming_count, outgoing_count
FROM credit_score_monthly
WHERE report_id = ?
ORDER BY year, month`

func (q *Queries) GetMonthlyByReport(ctx context.Context, reportID string) ([]MonthlyRow, error) {
	rows, err := q.db.QueryContext(ctx, getMonthlyByReport, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MonthlyRow
	for rows.Next() {
		var m MonthlyRow
		if err := rows.Scan(&m.ID, &m.ReportID, &m.Year, &m.Month, &m.HighestBalance,
			&m.LowestBalance, &m.AverageBalance, &m.IncomingCount, &m.OutgoingCount); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

const createCategory = `
INSERT INTO credit_score_monthly_category (monthly_id, position, category, amount, transaction_count)
VALUES (?, ?, ?, ?, ?)`

func (q *Queries) CreateCategory(ctx context.Context, c CategoryRow) error {
	_, err := q.db.ExecContext(ctx, createCategory, c.MonthlyID, c.Position, c.Category, c.Amount, c.TransactionCount)
	return err
}

const getCategoriesByReport = `
SELECT c.monthly_id, c.position, c.category, c.amount, c.transaction_count
FROM credit_score_monthly_category c
JOIN credit_score_monthly m ON m.id = c.monthly_id
WHERE m.report_id = ?
ORDER BY c.monthly_id, c.position`

func (q *Queries) GetCategoriesByReport(ctx context.Context, reportID string) ([]CategoryRow, error) {
	rows, err := q.db.QueryContext(ctx, getCategoriesByReport, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CategoryRow
	for rows.Next() {
		var c CategoryRow
		if err := rows.Scan(&c.MonthlyID, &c.Position, &c.Category, &c.Amount, &c.TransactionCount); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const deleteCategoriesByReport = `
DELETE FROM credit_score_monthly_category
WHERE monthly_id IN (SELECT id FROM credit_score_monthly WHERE report_id = ?)`

func (q *Queries) DeleteCategoriesByReport(ctx context.Context, reportID string) error {
	_, err := q.db.ExecContext(ctx, deleteCategoriesByReport, reportID)
	return err
}

func (q *Queries) DeleteMonthlyByReport(ctx context.Context, reportID string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM credit_score_monthly WHERE report_id = ?`, reportID)
	return err
}

func (q *Queries) DeleteReport(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM credit_score_report WHERE id = ?`, id)
	return err
}

const createRecurring = `
INSERT INTO recurring_monthly_summary (
    user_id, year, month, income_amount, income_count, outcome_amount, outcome_count
) VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateRecurring(ctx context.Context, r RecurringRow) error {
	_, err := q.db.ExecContext(ctx, createRecurring,
		r.UserID, r.Year, r.Month, r.IncomeAmount, r.IncomeCount, r.OutcomeAmount, r.OutcomeCount)
	return err
}

const getRecurringByUser = `
SELECT user_id, year, month, income_amount, income_count, outcome_amount, outcome_count
FROM recurring_monthly_summary
WHERE user_id = ?
ORDER BY year, month`

func (q *Queries) GetRecurringByUser(ctx context.Context, userID string) ([]RecurringRow, error) {
	rows, err := q.db.QueryContext(ctx, getRecurringByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RecurringRow
	for rows.Next() {
		var r RecurringRow
		if err := rows.Scan(&r.UserID, &r.Year, &r.Month, &r.IncomeAmount, &r.IncomeCount,
			&r.OutcomeAmount, &r.OutcomeCount); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

func (q *Queries) DeleteRecurringByUser(ctx context.Context, userID string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM recurring_monthly_summary WHERE user_id = ?`, userID)
	return err
}

const getPublicKey = `SELECT key_id, created_date, public_key FROM public_key WHERE key_id = ?`

func (q *Queries) GetPublicKey(ctx context.Context, keyID string) (PublicKeyRow, error) {
	var k PublicKeyRow
	err := q.db.QueryRowContext(ctx, getPublicKey, keyID).Scan(&k.KeyID, &k.CreatedDate, &k.PublicKey)
	return k, err
}

// CreatePublicKey never overwrites an existing record.
const createPublicKey = `
INSERT INTO public_key (key_id, created_date, public_key) VALUES (?, ?, ?)
ON CONFLICT (key_id) DO NOTHING`

func (q *Queries) CreatePublicKey(ctx context.Context, k PublicKeyRow) (int64, error) {
	res, err := q.db.ExecContext(ctx, createPublicKey, k.KeyID, k.CreatedDate, k.PublicKey)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
