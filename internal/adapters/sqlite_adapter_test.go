package adapters

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kuberx/internal/amqp"
	"kuberx/internal/core"
	"kuberx/internal/services"
	"kuberx/internal/sheets"
	"kuberx/internal/storage"
)

type recordingPublisher struct {
	kinds []amqp.SyncKind
}

func (p *recordingPublisher) PublishLoanSync(_ context.Context, _ int64, kind amqp.SyncKind, _ string) error {
	p.kinds = append(p.kinds, kind)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func TestSQLiteAdapter(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "kuberx.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	pub := &recordingPublisher{}
	a := NewSQLiteAdapter(repo, services.NewLoanSyncService(repo, pub))
	require.NoError(t, a.Ping(ctx))

	ref, err := a.Append(ctx, core.Loan{
		RecordID: "ramesh_1", Date: "05/03/2024", NameEnglish: "Ramesh", Amount: "5000",
	})
	require.NoError(t, err)
	assert.Equal(t, "1", ref)

	rows, err := a.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, core.Header, rows[0])
	assert.Equal(t, "ramesh_1", rows[1][core.ColRecordID])

	row, err := a.FindRow(ctx, "ramesh_1")
	require.NoError(t, err)
	assert.Equal(t, 2, row)

	require.NoError(t, a.UpdateStatus(ctx, row, core.StatusClosed))
	rows, err = a.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Closed", rows[1][core.ColStatus])

	err = a.UpdateStatus(ctx, 9, core.StatusClosed)
	assert.True(t, errors.Is(err, sheets.ErrRowNotFound), err)
	assert.Equal(t, []amqp.SyncKind{amqp.KindAppend, amqp.KindStatus}, pub.kinds)
}
