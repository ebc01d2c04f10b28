package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kuberx/internal/config"
	"kuberx/internal/core"
)

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "postgres"})
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:              "sheets",
		DataDir:                  "seed",
		GoogleSpreadsheetID:      "sheet-id",
		GoogleSheetName:          "Loans",
		GoogleServiceAccountJSON: "{}",
	})
	require.NoError(t, err)
	assert.Equal(t, SheetsBackend, cfg.Type)
	assert.Equal(t, "seed", cfg.DataDirectory)
	assert.Equal(t, "Loans", cfg.GoogleSheetName)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite needs a path", Config{Type: SQLiteBackend}, true},
		{"sheets needs an id", Config{Type: SheetsBackend, GoogleServiceAccountFile: "sa.json"}, true},
		{"sheets needs credentials", Config{Type: SheetsBackend, GoogleSpreadsheetID: "x"}, true},
		{"unknown type", Config{Type: "csv"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
	assert.Equal(t, []string{"sqlite", "sheets", "memory"}, GetBackendTypeStrings())
}

func TestCreateMemoryBackend(t *testing.T) {
	dir := t.TempDir()
	csv := "recordId,date,nameHindi,nameEnglish\nramesh_1,05/03/2024,,Ramesh\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seed_loans.csv"), []byte(csv), 0o600))

	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend, DataDirectory: dir})
	require.NoError(t, err)
	defer res.Close()

	rows, err := res.Backend.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ramesh_1", rows[1][core.ColRecordID])
	assert.Nil(t, res.Ready)
}

func TestCreateSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	res, err := NewFactory(nil).CreateBackend(ctx, Config{
		Type:         SQLiteBackend,
		SQLiteDBPath: filepath.Join(t.TempDir(), "kuberx.db"),
	})
	require.NoError(t, err)
	defer res.Close()

	require.NotNil(t, res.Ready)
	require.NoError(t, res.Ready(ctx))

	ref, err := res.Backend.Append(ctx, core.Loan{
		RecordID: "ramesh_1", Date: "05/03/2024", NameEnglish: "Ramesh", Amount: "5000",
	})
	require.NoError(t, err)
	assert.Equal(t, "1", ref)

	row, err := res.Backend.FindRow(ctx, "ramesh_1")
	require.NoError(t, err)
	assert.Equal(t, 2, row)
}

func TestCreateBackendRejectsInvalidConfig(t *testing.T) {
	_, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: SheetsBackend})
	assert.Error(t, err)
}
