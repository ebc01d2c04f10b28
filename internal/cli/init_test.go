package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kuberx/internal/config"
	"kuberx/internal/log"
	"kuberx/internal/sheets/memory"
)

func TestAnalyticsDefaults(t *testing.T) {
	opts := AnalyticsDefaults(&config.Config{
		DefaultInterestRate: 2,
		InterestThreshold:   150,
		RecentDays:          7,
		TopBorrowers:        3,
	})
	assert.Equal(t, 2.0, opts.DefaultRate)
	assert.Equal(t, 150.0, opts.ThresholdPercent)
	assert.Equal(t, 7, opts.RecentDays)
	assert.Equal(t, 3, opts.TopN)
	assert.NotEmpty(t, opts.AmountRanges)
}

func TestNewLoanServiceWithoutModels(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Output: &buf})
	cfg := &config.Config{DefaultInterestRate: 3, InterestThreshold: 100, RecentDays: 30, TopBorrowers: 10}

	svc, err := NewLoanService(context.Background(), cfg, logger, memory.New())
	require.NoError(t, err)

	_, err = svc.Extract(context.Background(), "Ramesh took 5000")
	assert.Error(t, err)
	assert.Contains(t, buf.String(), "Gemini not configured")
}
