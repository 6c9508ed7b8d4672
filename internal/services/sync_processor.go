package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	applog "profitcalc/internal/log"
	"profitcalc/internal/storage"
)

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often to check for pending items (default: 10s)
	PollInterval time.Duration

	// BatchSize is the max number of items to process per poll cycle (default: 10)
	BatchSize int

	// MaxRetries is the maximum attempts before an item is marked failed (default: 3)
	MaxRetries int

	// CleanupInterval is how often to clean up completed items (default: 1h)
	CleanupInterval time.Duration

	// CleanupAge is how old completed items must be before cleanup (default: 24h)
	CleanupAge time.Duration
}

func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval:    10 * time.Second,
		BatchSize:       10,
		MaxRetries:      3,
		CleanupInterval: 1 * time.Hour,
		CleanupAge:      24 * time.Hour,
	}
}

// SyncProcessor drains the sqlite sync queue, so months saved while the
// broker was unreachable still reach the report sink.
type SyncProcessor struct {
	queue  storage.SyncQueue
	syncer *ReportSyncer
	config SyncProcessorConfig
	logger *applog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSyncProcessor(queue storage.SyncQueue, syncer *ReportSyncer, config SyncProcessorConfig, logger *applog.Logger) *SyncProcessor {
	if logger == nil {
		logger = applog.Nop()
	}
	return &SyncProcessor{
		queue:  queue,
		syncer: syncer,
		config: config,
		logger: logger.WithComponent(applog.ComponentWorker),
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

	// items left in processing by a crash go back to pending
	if err := p.queue.ResetStaleProcessing(ctx); err != nil {
		p.logger.WarnContext(ctx, "Failed to reset stale processing items", applog.FieldError, err)
	}

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)
	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		p.logger.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
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

	cleanupTicker := time.NewTicker(p.config.CleanupInterval)
	defer cleanupTicker.Stop()

	p.ProcessBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.ProcessBatch(ctx)
		case <-cleanupTicker.C:
			p.cleanupCompleted(ctx)
		}
	}
}

// ProcessBatch handles one batch of pending items and returns how many
// were attempted.
func (p *SyncProcessor) ProcessBatch(ctx context.Context) int {
	items, err := p.queue.DequeueSyncBatch(ctx, p.config.BatchSize)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to dequeue sync batch", applog.FieldError, err)
		return 0
	}
	if len(items) == 0 {
		return 0
	}

	p.logger.DebugContext(ctx, "Processing sync batch", "count", len(items))

	attempted := 0
	for _, item := range items {
		if p.stopping(ctx) {
			return attempted
		}

		if err := p.queue.MarkSyncProcessing(ctx, item.ID); err != nil {
			p.logger.ErrorContext(ctx, "Failed to mark item as processing", "id", item.ID, applog.FieldError, err)
			continue
		}
		attempted++

		var processErr error
		switch item.Operation {
		case storage.OpSyncReport:
			processErr = p.syncer.SyncMonth(ctx, item.Month)
		case storage.OpDeleteReport:
			processErr = p.syncer.DeleteMonth(ctx, item.Month)
		default:
			processErr = fmt.Errorf("unknown operation: %s", item.Operation)
		}

		if processErr != nil {
			p.handleFailure(ctx, item, processErr)
		} else {
			p.handleSuccess(ctx, item)
		}
	}
	return attempted
}

func (p *SyncProcessor) stopping(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	if p.stopCh == nil {
		return false
	}
	select {
	case <-p.stopCh:
		return true
	default:
		return false
	}
}

func (p *SyncProcessor) handleSuccess(ctx context.Context, item storage.SyncItem) {
	if err := p.queue.MarkSyncComplete(ctx, item.ID); err != nil {
		p.logger.ErrorContext(ctx, "Failed to mark sync complete", "id", item.ID, applog.FieldError, err)
	}
}

// handleFailure retries the item on the next poll until MaxRetries
// attempts have been made, then marks it failed.
func (p *SyncProcessor) handleFailure(ctx context.Context, item storage.SyncItem, processErr error) {
	p.logger.WarnContext(ctx, "Sync processing failed",
		"id", item.ID,
		applog.FieldMonth, string(item.Month),
		applog.FieldOperation, item.Operation,
		"attempt", item.Attempts+1,
		applog.FieldError, processErr)

	if item.Attempts+1 >= int64(p.config.MaxRetries) {
		if err := p.queue.MarkSyncFailed(ctx, item.ID, processErr.Error()); err != nil {
			p.logger.ErrorContext(ctx, "Failed to mark sync as failed", "id", item.ID, applog.FieldError, err)
		}
		p.logger.ErrorContext(ctx, "Sync item failed permanently after max retries",
			"id", item.ID,
			applog.FieldMonth, string(item.Month),
			"attempts", item.Attempts+1)
		return
	}
	if err := p.queue.IncrementSyncAttempt(ctx, item.ID, processErr.Error()); err != nil {
		p.logger.ErrorContext(ctx, "Failed to increment sync attempt", "id", item.ID, applog.FieldError, err)
	}
}

func (p *SyncProcessor) cleanupCompleted(ctx context.Context) {
	cutoff := time.Now().Add(-p.config.CleanupAge)
	if err := p.queue.CleanupCompletedSyncs(ctx, cutoff); err != nil {
		p.logger.ErrorContext(ctx, "Failed to cleanup completed syncs", applog.FieldError, err)
	}
}

// Stats returns current queue statistics
func (p *SyncProcessor) Stats(ctx context.Context) (storage.SyncStats, error) {
	return p.queue.SyncQueueStats(ctx)
}

// RetryFailed resets all failed items for retry
func (p *SyncProcessor) RetryFailed(ctx context.Context) error {
	return p.queue.RetryFailedSyncs(ctx)
}
