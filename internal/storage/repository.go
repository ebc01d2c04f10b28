package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"kuberx/internal/core"
	ports "kuberx/internal/sheets"

	_ "modernc.org/sqlite"
)

// Sync states of a stored loan.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

var _ ports.LoanStore = (*SQLiteRepository)(nil)

// SQLiteRepository is the local mirror of the loan ledger. Rows keep their
// insertion order, so row numbers line up with a sheet: header is row 1.
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

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, queries: New(db)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ReadAll implements sheets.LoanReader.
func (r *SQLiteRepository) ReadAll(ctx context.Context) ([][]string, error) {
	loans, err := r.queries.ListLoans(ctx)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	if len(loans) == 0 {
		return [][]string{}, nil
	}
	out := make([][]string, 0, len(loans)+1)
	out = append(out, append([]string(nil), core.Header...))
	for _, l := range loans {
		out = append(out, l.Loan().Row())
	}
	return out, nil
}

// Append implements sheets.LoanWriter. The returned reference is the
// database id, which sync messages carry.
func (r *SQLiteRepository) Append(ctx context.Context, l core.Loan) (string, error) {
	id, err := r.Insert(ctx, l)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

// Insert stores a new Active loan pending sync and returns its id.
func (r *SQLiteRepository) Insert(ctx context.Context, l core.Loan) (int64, error) {
	if err := l.Validate(); err != nil {
		return 0, fmt.Errorf("validation failed: %w", err)
	}
	exists, err := r.queries.LoanExists(ctx, l.RecordID)
	if err != nil {
		return 0, fmt.Errorf("check record id: %w", err)
	}
	if exists {
		return 0, fmt.Errorf("record %q: %w", l.RecordID, ErrDuplicateRecord)
	}

	id, err := r.queries.CreateLoan(ctx, CreateLoanParams{
		RecordID:       l.RecordID,
		LoanDate:       l.Date,
		NameHindi:      l.NameHindi,
		NameEnglish:    l.NameEnglish,
		AddressHindi:   l.AddressHindi,
		AddressEnglish: l.AddressEnglish,
		WardArea:       l.Ward,
		Mobile:         l.Mobile,
		DairyNumber:    l.DairyNumber,
		PageNumber:     l.PageNumber,
		Amount:         l.Amount,
		Interest:       l.Interest,
		Guarantee:      l.Guarantee,
		Relationship:   l.Relationship,
		LoanStatus:     string(core.StatusActive),
	})
	if err != nil {
		return 0, fmt.Errorf("create loan: %w", err)
	}

	slog.InfoContext(ctx, "Loan saved to SQLite",
		"id", id,
		"record_id", l.RecordID,
		"amount", l.Amount)
	return id, nil
}

// UpdateStatus implements sheets.StatusUpdater.
func (r *SQLiteRepository) UpdateStatus(ctx context.Context, row int, status core.LoanStatus) error {
	_, err := r.SetStatus(ctx, row, status)
	return err
}

// SetStatus changes the status of the loan at a sheet row number, marks it
// for re-sync and returns its id.
func (r *SQLiteRepository) SetStatus(ctx context.Context, row int, status core.LoanStatus) (int64, error) {
	if err := status.Validate(); err != nil {
		return 0, err
	}
	if row < 2 {
		return 0, fmt.Errorf("row %d: %w", row, ports.ErrRowNotFound)
	}
	loan, err := r.queries.GetLoanAtOffset(ctx, int64(row-2))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("row %d: %w", row, ports.ErrRowNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("get loan at row %d: %w", row, err)
	}
	if err := r.queries.UpdateLoanStatus(ctx, loan.ID, string(status)); err != nil {
		return 0, fmt.Errorf("update loan status: %w", err)
	}
	slog.InfoContext(ctx, "Loan status updated",
		"id", loan.ID,
		"record_id", loan.RecordID,
		"status", status)
	return loan.ID, nil
}

// FindRow implements sheets.RowFinder.
func (r *SQLiteRepository) FindRow(ctx context.Context, recordID string) (int, error) {
	recordID = strings.TrimSpace(recordID)
	exists, err := r.queries.LoanExists(ctx, recordID)
	if err != nil {
		return 0, fmt.Errorf("check record id: %w", err)
	}
	if !exists {
		return 0, fmt.Errorf("record %q: %w", recordID, ports.ErrRowNotFound)
	}
	n, err := r.queries.CountLoansBefore(ctx, recordID)
	if err != nil {
		return 0, fmt.Errorf("count loans: %w", err)
	}
	return int(n) + 2, nil
}

// GetLoan retrieves a single loan by id.
func (r *SQLiteRepository) GetLoan(ctx context.Context, id int64) (*LoanRow, error) {
	loan, err := r.queries.GetLoan(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loan %d: %w", id, ErrLoanNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get loan by id: %w", err)
	}
	return &loan, nil
}

// PendingSync returns loans that still have to reach Google Sheets, oldest
// first.
func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]LoanRow, error) {
	if limit <= 0 {
		limit = 10
	}
	loans, err := r.queries.GetPendingSyncLoans(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending sync loans: %w", err)
	}
	return loans, nil
}

// MarkSynced marks a loan as successfully synced
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	if err := r.queries.MarkLoanSynced(ctx, id); err != nil {
		return fmt.Errorf("mark loan synced: %w", err)
	}
	slog.InfoContext(ctx, "Loan marked as synced", "id", id)
	return nil
}

// MarkSyncError marks a loan as having sync errors
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	if err := r.queries.MarkLoanSyncError(ctx, id); err != nil {
		return fmt.Errorf("mark loan sync error: %w", err)
	}
	slog.WarnContext(ctx, "Loan marked with sync error", "id", id)
	return nil
}

// RetryFailed puts every loan in error state back to pending.
func (r *SQLiteRepository) RetryFailed(ctx context.Context) (int64, error) {
	n, err := r.queries.RetryFailedSyncs(ctx)
	if err != nil {
		return 0, fmt.Errorf("retry failed syncs: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) SyncStats(ctx context.Context) (SyncStats, error) {
	s, err := r.queries.GetSyncStats(ctx)
	if err != nil {
		return SyncStats{}, fmt.Errorf("get sync stats: %w", err)
	}
	return s, nil
}

var (
	ErrLoanNotFound    = errors.New("loan not found")
	ErrDuplicateRecord = errors.New("duplicate record id")
)

// Loan converts the stored row into the domain value.
func (l LoanRow) Loan() core.Loan {
	return core.Loan{
		RecordID:       l.RecordID,
		Date:           l.LoanDate,
		NameHindi:      l.NameHindi,
		NameEnglish:    l.NameEnglish,
		AddressHindi:   l.AddressHindi,
		AddressEnglish: l.AddressEnglish,
		Ward:           l.WardArea,
		Mobile:         l.Mobile,
		DairyNumber:    l.DairyNumber,
		PageNumber:     l.PageNumber,
		Amount:         l.Amount,
		Interest:       l.Interest,
		Guarantee:      l.Guarantee,
		Relationship:   l.Relationship,
		Status:         core.LoanStatus(l.LoanStatus),
	}
}
