package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// PendingSyncer mirrors loans that are not yet in the sheet.
type PendingSyncer interface {
	ProcessPending(ctx context.Context) (int, error)
}

// FailedRetrier puts loans whose sync failed back in the queue.
type FailedRetrier interface {
	RetryFailed(ctx context.Context) (int64, error)
}

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often to sweep pending loans (default: 30s)
	PollInterval time.Duration

	// RetryInterval is how often failed loans are re-queued (default: 5m)
	RetryInterval time.Duration
}

func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval:  30 * time.Second,
		RetryInterval: 5 * time.Minute,
	}
}

// SyncProcessor periodically sweeps pending loans. It backs up the AMQP
// consumer for messages that were never published or were lost.
type SyncProcessor struct {
	syncer  PendingSyncer
	retrier FailedRetrier
	config  SyncProcessorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSyncProcessor creates a new sync processor. retrier may be nil.
func NewSyncProcessor(syncer PendingSyncer, retrier FailedRetrier, config SyncProcessorConfig) *SyncProcessor {
	def := DefaultSyncProcessorConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = def.RetryInterval
	}
	return &SyncProcessor{
		syncer:  syncer,
		retrier: retrier,
		config:  config,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"retry_interval", p.config.RetryInterval)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}
	return nil
}

func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	retryTicker := time.NewTicker(p.config.RetryInterval)
	defer retryTicker.Stop()

	p.sweep(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.sweep(ctx)
		case <-retryTicker.C:
			p.retry(ctx)
		}
	}
}

func (p *SyncProcessor) sweep(ctx context.Context) {
	n, err := p.syncer.ProcessPending(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Pending sync sweep failed", "error", err)
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "Pending sync sweep done", "loans", n)
	}
}

func (p *SyncProcessor) retry(ctx context.Context) {
	if p.retrier == nil {
		return
	}
	n, err := p.retrier.RetryFailed(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to re-queue failed syncs", "error", err)
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "Re-queued failed syncs", "loans", n)
	}
}
