package sheets

import (
	"context"
	"errors"

	"kuberx/internal/core"
)

// ErrRowNotFound is returned when a row or record id does not exist.
var ErrRowNotFound = errors.New("row not found")

// Ports for outbound adapters.
type (
	// LoanReader returns the full ledger, header first, as raw cell text.
	LoanReader interface {
		ReadAll(ctx context.Context) ([][]string, error)
	}

	// LoanWriter appends one loan at the end of the ledger.
	LoanWriter interface {
		Append(ctx context.Context, l core.Loan) (rowRef string, err error)
	}

	// StatusUpdater rewrites the status cell of a 1-based sheet row.
	StatusUpdater interface {
		UpdateStatus(ctx context.Context, row int, status core.LoanStatus) error
	}

	// RowFinder locates the sheet row holding a record id.
	RowFinder interface {
		FindRow(ctx context.Context, recordID string) (int, error)
	}

	LoanStore interface {
		LoanReader
		LoanWriter
		StatusUpdater
		RowFinder
	}
)
