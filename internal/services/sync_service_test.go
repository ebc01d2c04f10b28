package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kuberx/internal/amqp"
	"kuberx/internal/core"
	"kuberx/internal/sheets"
	"kuberx/internal/storage"
)

type published struct {
	id       int64
	kind     amqp.SyncKind
	recordID string
}

type fakePublisher struct {
	sent   []published
	err    error
	closed bool
}

func (f *fakePublisher) PublishLoanSync(_ context.Context, id int64, kind amqp.SyncKind, recordID string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{id, kind, recordID})
	return nil
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

func newRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "loans.db"))
	require.NoError(t, err)
	return repo
}

func testLoan(id string) core.Loan {
	return core.Loan{
		RecordID:    id,
		Date:        "05/03/2024",
		NameEnglish: "Ramesh",
		Ward:        "Ward 5",
		Amount:      "5000",
		Interest:    "3",
	}
}

func TestLoanSyncService_CreateAndClose(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	svc := NewLoanSyncService(newRepo(t), pub)

	ref, err := svc.CreateLoan(ctx, testLoan("r1"))
	require.NoError(t, err)
	assert.Equal(t, "1", ref)

	require.NoError(t, svc.SetStatus(ctx, 2, core.StatusClosed))
	assert.Equal(t, []published{
		{1, amqp.KindAppend, "r1"},
		{1, amqp.KindStatus, "r1"},
	}, pub.sent)

	err = svc.SetStatus(ctx, 3, core.StatusClosed)
	assert.ErrorIs(t, err, sheets.ErrRowNotFound)

	require.NoError(t, svc.Close())
	assert.True(t, pub.closed)
}

func TestLoanSyncService_PublishFailureKeepsLoan(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	svc := NewLoanSyncService(repo, &fakePublisher{err: errors.New("broker down")})

	_, err := svc.CreateLoan(ctx, testLoan("r1"))
	require.NoError(t, err)

	pending, err := repo.PendingSync(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "r1", pending[0].RecordID)
}

func TestLoanSyncService_NoPublisher(t *testing.T) {
	ctx := context.Background()
	svc := NewLoanSyncService(newRepo(t), nil)

	_, err := svc.CreateLoan(ctx, testLoan("r1"))
	require.NoError(t, err)

	_, err = svc.CreateLoan(ctx, testLoan("r1"))
	assert.ErrorIs(t, err, storage.ErrDuplicateRecord)

	_, err = svc.CreateLoan(ctx, core.Loan{RecordID: "r2"})
	assert.ErrorIs(t, err, core.ErrMissingDate)

	require.NoError(t, svc.Close())
}

func TestLoanSyncService_CloseNil(t *testing.T) {
	svc := &LoanSyncService{}
	assert.NoError(t, svc.Close())
}
