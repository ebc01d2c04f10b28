package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"kuberx/internal/core"
	ports "kuberx/internal/sheets"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "db", "loans.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleLoan(id, name, amount string) core.Loan {
	return core.Loan{
		RecordID:    id,
		Date:        "2024-03-05",
		NameEnglish: name,
		Ward:        "Ward 4",
		Amount:      amount,
		Interest:    "3",
		Status:      core.StatusClosed,
	}
}

func TestReadAllEmpty(t *testing.T) {
	repo := newTestRepo(t)
	rows, err := repo.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestAppendReadAllAndFindRow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	ref, err := repo.Append(ctx, sampleLoan("a", "Ramesh", "1000"))
	require.NoError(t, err)
	assert.Equal(t, "1", ref)
	_, err = repo.Append(ctx, sampleLoan("b", "Sita", "2,500"))
	require.NoError(t, err)

	rows, err := repo.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, core.Header, rows[0])
	assert.Equal(t, "a", rows[1][core.ColRecordID])
	assert.Equal(t, "Active", rows[1][core.ColStatus], "new loans start Active")
	assert.Equal(t, "2,500", rows[2][core.ColAmount])

	row, err := repo.FindRow(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 3, row)

	_, err = repo.FindRow(ctx, "zzz")
	assert.True(t, errors.Is(err, ports.ErrRowNotFound))
}

func TestAppendRejectsInvalidAndDuplicate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Append(ctx, core.Loan{RecordID: "x"})
	assert.ErrorIs(t, err, core.ErrMissingDate)

	_, err = repo.Append(ctx, sampleLoan("a", "Ramesh", "1000"))
	require.NoError(t, err)
	_, err = repo.Append(ctx, sampleLoan("a", "Ramesh", "1000"))
	assert.ErrorIs(t, err, ErrDuplicateRecord)
}

func TestSyncLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id1, err := repo.Insert(ctx, sampleLoan("a", "Ramesh", "1000"))
	require.NoError(t, err)
	id2, err := repo.Insert(ctx, sampleLoan("b", "Sita", "500"))
	require.NoError(t, err)

	pending, err := repo.PendingSync(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, id1, pending[0].ID)
	assert.False(t, pending[0].StatusDirty)

	require.NoError(t, repo.MarkSynced(ctx, id1))
	require.NoError(t, repo.MarkSyncError(ctx, id2))

	stats, err := repo.SyncStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, SyncStats{Total: 2, Synced: 1, Failed: 1}, stats)

	pending, err = repo.PendingSync(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Closing a synced loan queues it again with the dirty flag.
	id, err := repo.SetStatus(ctx, 2, core.StatusClosed)
	require.NoError(t, err)
	assert.Equal(t, id1, id)

	pending, err = repo.PendingSync(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.True(t, pending[0].StatusDirty)
	assert.Equal(t, core.StatusClosed, pending[0].Loan().Status)

	n, err := repo.RetryFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	loan, err := repo.GetLoan(ctx, id2)
	require.NoError(t, err)
	assert.Equal(t, SyncPending, loan.SyncStatus)
}

func TestUpdateStatusErrors(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, err := repo.Insert(ctx, sampleLoan("a", "Ramesh", "1000"))
	require.NoError(t, err)

	assert.ErrorIs(t, repo.UpdateStatus(ctx, 1, core.StatusClosed), ports.ErrRowNotFound)
	assert.ErrorIs(t, repo.UpdateStatus(ctx, 3, core.StatusClosed), ports.ErrRowNotFound)
	assert.ErrorIs(t, repo.UpdateStatus(ctx, 2, "Gone"), core.ErrInvalidStatus)
	require.NoError(t, repo.UpdateStatus(ctx, 2, core.StatusClosed))

	_, err = repo.GetLoan(ctx, 99)
	assert.ErrorIs(t, err, ErrLoanNotFound)
}
