package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// LoanRow is one persisted loan with its sync bookkeeping.
type LoanRow struct {
	ID             int64
	RecordID       string
	LoanDate       string
	NameHindi      string
	NameEnglish    string
	AddressHindi   string
	AddressEnglish string
	WardArea       string
	Mobile         string
	DairyNumber    string
	PageNumber     string
	Amount         string
	Interest       string
	Guarantee      string
	Relationship   string
	LoanStatus     string
	SyncStatus     string
	StatusDirty    bool
	CreatedAt      string
	UpdatedAt      string
	SyncedAt       sql.NullString
}

const loanColumns = `id, record_id, loan_date, name_hindi, name_english, address_hindi,
address_english, ward_area, mobile, dairy_number, page_number, amount, interest,
guarantee, relationship, loan_status, sync_status, status_dirty, created_at,
updated_at, synced_at`

func scanLoan(row interface{ Scan(...any) error }) (LoanRow, error) {
	var l LoanRow
	err := row.Scan(
		&l.ID, &l.RecordID, &l.LoanDate, &l.NameHindi, &l.NameEnglish, &l.AddressHindi,
		&l.AddressEnglish, &l.WardArea, &l.Mobile, &l.DairyNumber, &l.PageNumber,
		&l.Amount, &l.Interest, &l.Guarantee, &l.Relationship, &l.LoanStatus,
		&l.SyncStatus, &l.StatusDirty, &l.CreatedAt, &l.UpdatedAt, &l.SyncedAt,
	)
	return l, err
}

const createLoan = `INSERT INTO loans (
    record_id, loan_date, name_hindi, name_english, address_hindi, address_english,
    ward_area, mobile, dairy_number, page_number, amount, interest, guarantee,
    relationship, loan_status
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

type CreateLoanParams struct {
	RecordID       string
	LoanDate       string
	NameHindi      string
	NameEnglish    string
	AddressHindi   string
	AddressEnglish string
	WardArea       string
	Mobile         string
	DairyNumber    string
	PageNumber     string
	Amount         string
	Interest       string
	Guarantee      string
	Relationship   string
	LoanStatus     string
}

func (q *Queries) CreateLoan(ctx context.Context, arg CreateLoanParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, createLoan,
		arg.RecordID, arg.LoanDate, arg.NameHindi, arg.NameEnglish, arg.AddressHindi,
		arg.AddressEnglish, arg.WardArea, arg.Mobile, arg.DairyNumber, arg.PageNumber,
		arg.Amount, arg.Interest, arg.Guarantee, arg.Relationship, arg.LoanStatus,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const listLoans = `SELECT ` + loanColumns + ` FROM loans ORDER BY id`

func (q *Queries) ListLoans(ctx context.Context) ([]LoanRow, error) {
	rows, err := q.db.QueryContext(ctx, listLoans)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LoanRow
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	return items, rows.Err()
}

const getLoan = `SELECT ` + loanColumns + ` FROM loans WHERE id = ?`

func (q *Queries) GetLoan(ctx context.Context, id int64) (LoanRow, error) {
	return scanLoan(q.db.QueryRowContext(ctx, getLoan, id))
}

const getLoanAtOffset = `SELECT ` + loanColumns + ` FROM loans ORDER BY id LIMIT 1 OFFSET ?`

// GetLoanAtOffset returns the loan at a zero-based position in insertion order.
func (q *Queries) GetLoanAtOffset(ctx context.Context, offset int64) (LoanRow, error) {
	return scanLoan(q.db.QueryRowContext(ctx, getLoanAtOffset, offset))
}

const countLoansBefore = `SELECT COUNT(*) FROM loans WHERE id < (SELECT id FROM loans WHERE record_id = ?)`

func (q *Queries) CountLoansBefore(ctx context.Context, recordID string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countLoansBefore, recordID).Scan(&n)
	return n, err
}

const loanExists = `SELECT COUNT(*) FROM loans WHERE record_id = ?`

func (q *Queries) LoanExists(ctx context.Context, recordID string) (bool, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, loanExists, recordID).Scan(&n)
	return n > 0, err
}

// A status change on a loan already mirrored sends it back to pending.
const updateLoanStatus = `UPDATE loans
SET loan_status = ?,
    status_dirty = 1,
    sync_status = 'pending',
    updated_at = CURRENT_TIMESTAMP
WHERE id = ?`

func (q *Queries) UpdateLoanStatus(ctx context.Context, id int64, status string) error {
	_, err := q.db.ExecContext(ctx, updateLoanStatus, status, id)
	return err
}

const getPendingSyncLoans = `SELECT ` + loanColumns + ` FROM loans
WHERE sync_status = 'pending'
ORDER BY id
LIMIT ?`

func (q *Queries) GetPendingSyncLoans(ctx context.Context, limit int64) ([]LoanRow, error) {
	rows, err := q.db.QueryContext(ctx, getPendingSyncLoans, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LoanRow
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	return items, rows.Err()
}

const markLoanSynced = `UPDATE loans
SET sync_status = 'synced', status_dirty = 0, synced_at = CURRENT_TIMESTAMP
WHERE id = ?`

func (q *Queries) MarkLoanSynced(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, markLoanSynced, id)
	return err
}

const markLoanSyncError = `UPDATE loans SET sync_status = 'error' WHERE id = ?`

func (q *Queries) MarkLoanSyncError(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, markLoanSyncError, id)
	return err
}

const retryFailedSyncs = `UPDATE loans SET sync_status = 'pending' WHERE sync_status = 'error'`

func (q *Queries) RetryFailedSyncs(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx, retryFailedSyncs)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getSyncStats = `SELECT
    COUNT(*) AS total,
    COALESCE(SUM(CASE WHEN sync_status = 'pending' THEN 1 ELSE 0 END), 0) AS pending,
    COALESCE(SUM(CASE WHEN sync_status = 'synced' THEN 1 ELSE 0 END), 0) AS synced,
    COALESCE(SUM(CASE WHEN sync_status = 'error' THEN 1 ELSE 0 END), 0) AS failed
FROM loans`

type SyncStats struct {
	Total   int64 `json:"total"`
	Pending int64 `json:"pending"`
	Synced  int64 `json:"synced"`
	Failed  int64 `json:"failed"`
}

func (q *Queries) GetSyncStats(ctx context.Context) (SyncStats, error) {
	var s SyncStats
	err := q.db.QueryRowContext(ctx, getSyncStats).Scan(&s.Total, &s.Pending, &s.Synced, &s.Failed)
	return s, err
}
