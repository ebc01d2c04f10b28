package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kuberx/internal/amqp"
	"kuberx/internal/core"
	"kuberx/internal/sheets"
	"kuberx/internal/storage"
)

// LoanSource is the local side of the mirror.
type LoanSource interface {
	GetLoan(ctx context.Context, id int64) (*storage.LoanRow, error)
	PendingSync(ctx context.Context, limit int) ([]storage.LoanRow, error)
	MarkSynced(ctx context.Context, id int64) error
	MarkSyncError(ctx context.Context, id int64) error
}

// SheetTarget is the remote side, normally the Google Sheets client.
type SheetTarget interface {
	sheets.LoanWriter
	sheets.StatusUpdater
	sheets.RowFinder
}

// SyncWorker mirrors loans from SQLite into Google Sheets.
type SyncWorker struct {
	storage   LoanSource
	sheets    SheetTarget
	batchSize int
}

func NewSyncWorker(storage LoanSource, target SheetTarget, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncWorker{storage: storage, sheets: target, batchSize: batchSize}
}

// HandleSyncMessage processes a single loan sync message from AMQP.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.LoanSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"id", msg.ID,
		"kind", msg.Kind,
		"record_id", msg.RecordID)

	loan, err := w.storage.GetLoan(ctx, msg.ID)
	if errors.Is(err, storage.ErrLoanNotFound) {
		slog.WarnContext(ctx, "Sync message for unknown loan, dropping", "id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get loan from storage: %w", err)
	}
	if loan.SyncStatus == storage.SyncSynced {
		slog.DebugContext(ctx, "Loan already synced", "id", msg.ID)
		return nil
	}
	return w.syncLoan(ctx, *loan)
}

// ProcessPending syncs one batch of loans still pending. It is the backup
// path for lost messages and returns how many loans were synced.
func (w *SyncWorker) ProcessPending(ctx context.Context) (int, error) {
	return w.processBatch(ctx, w.batchSize)
}

// StartupSyncCheck drains a larger batch when the worker starts.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, err := w.processBatch(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync: %w", err)
	}
	slog.InfoContext(ctx, "Startup sync completed", "synced", synced)
	return nil
}

func (w *SyncWorker) processBatch(ctx context.Context, limit int) (int, error) {
	pending, err := w.storage.PendingSync(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending loans: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing pending loans", "count", len(pending))
	synced := 0
	for _, loan := range pending {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		if err := w.syncLoan(ctx, loan); err != nil {
			slog.ErrorContext(ctx, "Failed to sync loan", "id", loan.ID, "error", err)
			continue
		}
		synced++
	}
	return synced, nil
}

// syncLoan appends the loan when the sheet does not have it yet, then writes
// its status when it is not the Active default or changed locally.
func (w *SyncWorker) syncLoan(ctx context.Context, row storage.LoanRow) error {
	loan := row.Loan()
	if err := w.mirror(ctx, loan, row.StatusDirty); err != nil {
		if markErr := w.storage.MarkSyncError(ctx, row.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", row.ID, "error", markErr)
		}
		return err
	}
	if err := w.storage.MarkSynced(ctx, row.ID); err != nil {
		// the sheet already has the data
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", row.ID, "error", err)
	}
	slog.InfoContext(ctx, "Successfully synced loan",
		"id", row.ID,
		"record_id", loan.RecordID,
		"status", loan.Status)
	return nil
}

func (w *SyncWorker) mirror(ctx context.Context, loan core.Loan, statusDirty bool) error {
	sheetRow, err := w.sheets.FindRow(ctx, loan.RecordID)
	switch {
	case errors.Is(err, sheets.ErrRowNotFound):
		ref, err := w.sheets.Append(ctx, loan)
		if err != nil {
			return fmt.Errorf("append to sheets: %w", err)
		}
		slog.DebugContext(ctx, "Appended loan to sheet", "record_id", loan.RecordID, "sheets_ref", ref)
		if loan.Status == core.StatusActive || loan.Status == "" {
			return nil
		}
		if sheetRow, err = w.sheets.FindRow(ctx, loan.RecordID); err != nil {
			return fmt.Errorf("locate appended loan: %w", err)
		}
	case err != nil:
		return fmt.Errorf("find row: %w", err)
	case !statusDirty:
		return nil
	}

	status := loan.Status
	if status == "" {
		status = core.StatusActive
	}
	if err := w.sheets.UpdateStatus(ctx, sheetRow, status); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}
