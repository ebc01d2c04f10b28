package adapters

import (
	"context"

	"kuberx/internal/core"
	"kuberx/internal/services"
	"kuberx/internal/sheets"
	"kuberx/internal/storage"
)

// SQLiteAdapter serves the ledger from SQLite and routes writes through the
// sync service, so every write is also queued for Google Sheets.
type SQLiteAdapter struct {
	storage *storage.SQLiteRepository
	service *services.LoanSyncService
}

var _ sheets.LoanStore = (*SQLiteAdapter)(nil)

func NewSQLiteAdapter(storage *storage.SQLiteRepository, service *services.LoanSyncService) *SQLiteAdapter {
	return &SQLiteAdapter{
		storage: storage,
		service: service,
	}
}

// ReadAll implements sheets.LoanReader
func (a *SQLiteAdapter) ReadAll(ctx context.Context) ([][]string, error) {
	return a.storage.ReadAll(ctx)
}

// Append implements sheets.LoanWriter
func (a *SQLiteAdapter) Append(ctx context.Context, l core.Loan) (string, error) {
	return a.service.CreateLoan(ctx, l)
}

// UpdateStatus implements sheets.StatusUpdater
func (a *SQLiteAdapter) UpdateStatus(ctx context.Context, row int, status core.LoanStatus) error {
	return a.service.SetStatus(ctx, row, status)
}

// FindRow implements sheets.RowFinder
func (a *SQLiteAdapter) FindRow(ctx context.Context, recordID string) (int, error) {
	return a.storage.FindRow(ctx, recordID)
}

func (a *SQLiteAdapter) Ping(ctx context.Context) error {
	return a.storage.Ping(ctx)
}
