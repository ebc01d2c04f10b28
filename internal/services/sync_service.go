package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"kuberx/internal/amqp"
	"kuberx/internal/core"
	"kuberx/internal/storage"
)

// Publisher announces local writes to the sync worker.
type Publisher interface {
	PublishLoanSync(ctx context.Context, id int64, kind amqp.SyncKind, recordID string) error
	Close() error
}

// LoanSyncService writes loans to SQLite and queues their mirroring to
// Google Sheets over AMQP.
type LoanSyncService struct {
	storage   *storage.SQLiteRepository
	publisher Publisher
}

func NewLoanSyncService(storage *storage.SQLiteRepository, publisher Publisher) *LoanSyncService {
	return &LoanSyncService{
		storage:   storage,
		publisher: publisher,
	}
}

// CreateLoan saves a loan locally and publishes an append message.
func (s *LoanSyncService) CreateLoan(ctx context.Context, l core.Loan) (string, error) {
	id, err := s.storage.Insert(ctx, l)
	if err != nil {
		return "", fmt.Errorf("save loan: %w", err)
	}
	ref := strconv.FormatInt(id, 10)

	// The row stays pending, so the periodic sweep picks it up if this fails.
	if err := s.publish(ctx, id, amqp.KindAppend, l.RecordID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"id", id, "record_id", l.RecordID, "error", err)
	}
	return ref, nil
}

// SetStatus changes the status of the loan at a 1-based row and publishes a
// status message.
func (s *LoanSyncService) SetStatus(ctx context.Context, row int, status core.LoanStatus) error {
	id, err := s.storage.SetStatus(ctx, row, status)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	var recordID string
	if loan, err := s.storage.GetLoan(ctx, id); err == nil {
		recordID = loan.RecordID
	}
	if err := s.publish(ctx, id, amqp.KindStatus, recordID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish status message",
			"id", id, "row", row, "error", err)
	}
	return nil
}

func (s *LoanSyncService) publish(ctx context.Context, id int64, kind amqp.SyncKind, recordID string) error {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping sync message", "id", id, "kind", kind)
		return nil
	}
	return s.publisher.PublishLoanSync(ctx, id, kind, recordID)
}

// Close closes both storage and AMQP connections
func (s *LoanSyncService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close loan sync service: %w", errors.Join(errs...))
	}

	return nil
}
