package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/erp/framework/internal/domain/audit"
	"github.com/erp/framework/internal/domain/stream"
	"go.uber.org/zap"
)

// ReconcilerConfig holds configuration for the emission reconciler.
type ReconcilerConfig struct {
	BatchSize        int
	PollInterval     time.Duration
	MaxRetries       int           // replay attempts before an entry goes dead; 0 keeps the entry's own cap
	BaseBackoff      time.Duration // base delay of the exponential backoff between attempts
	CleanupEnabled   bool
	CleanupRetention time.Duration
	CleanupInterval  time.Duration
}

// DefaultReconcilerConfig returns default configuration
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		BatchSize:        100,
		PollInterval:     10 * time.Second,
		MaxRetries:       stream.DefaultMaxRetries,
		BaseBackoff:      stream.DefaultBaseBackoff,
		CleanupEnabled:   true,
		CleanupRetention: 7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// Reconciler replays journaled emission failures in the background. A
// committed business write whose audit entry or event message could not
// be emitted is not lost: the journal holds the full payload and the
// reconciler retries it with exponential backoff until it lands or goes
// dead for manual handling.
type Reconciler struct {
	journal   stream.FailureJournal
	publisher stream.Publisher
	auditor   audit.Writer
	config    ReconcilerConfig
	logger    *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewReconciler creates a new emission reconciler
func NewReconciler(
	journal stream.FailureJournal,
	publisher stream.Publisher,
	auditor audit.Writer,
	config ReconcilerConfig,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		journal:   journal,
		publisher: publisher,
		auditor:   auditor,
		config:    config,
		logger:    logger,
	}
}

// Start starts the background replay loop
func (r *Reconciler) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go r.replayLoop(ctx)

	if r.config.CleanupEnabled {
		r.wg.Add(1)
		go r.cleanupLoop(ctx)
	}

	r.logger.Info("emission reconciler started",
		zap.Int("batch_size", r.config.BatchSize),
		zap.Duration("poll_interval", r.config.PollInterval),
	)
	return nil
}

// Stop gracefully stops the reconciler
func (r *Reconciler) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("emission reconciler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reconciler) replayLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.replayBatch(ctx)
		}
	}
}

// replayBatch replays due journal entries
func (r *Reconciler) replayBatch(ctx context.Context) {
	entries, err := r.journal.FindReplayable(ctx, time.Now(), r.config.BatchSize)
	if err != nil {
		r.logger.Error("failed to find replayable emissions", zap.Error(err))
		return
	}

	for _, entry := range entries {
		r.replay(ctx, entry)
	}
}

// replay re-emits one journaled failure
func (r *Reconciler) replay(ctx context.Context, entry *stream.FailedEmission) {
	var err error
	switch entry.Kind {
	case stream.EmissionEvent:
		err = r.replayEvent(ctx, entry)
	case stream.EmissionAudit:
		err = r.replayAudit(ctx, entry)
	default:
		err = fmt.Errorf("unknown emission kind %q", entry.Kind)
	}

	if err != nil {
		if r.config.MaxRetries > 0 {
			entry.MaxRetries = r.config.MaxRetries
		}
		entry.MarkFailed(err.Error(), r.config.BaseBackoff)
		if entry.IsDead() {
			r.logger.Warn("emission moved to dead letter",
				zap.String("emission_id", entry.ID.String()),
				zap.String("kind", string(entry.Kind)),
				zap.String("entity_type", entry.EntityType),
				zap.String("entity_id", entry.EntityID.String()),
				zap.String("correlation_id", entry.CorrelationID.String()),
				zap.Int("retry_count", entry.RetryCount),
				zap.String("last_error", entry.LastError),
			)
		}
	} else {
		entry.MarkSent()
		r.logger.Info("emission replayed",
			zap.String("emission_id", entry.ID.String()),
			zap.String("kind", string(entry.Kind)),
			zap.String("correlation_id", entry.CorrelationID.String()),
		)
	}

	if updateErr := r.journal.Update(ctx, entry); updateErr != nil {
		r.logger.Error("failed to update journal entry",
			zap.String("emission_id", entry.ID.String()),
			zap.Error(updateErr),
		)
	}
}

func (r *Reconciler) replayEvent(ctx context.Context, entry *stream.FailedEmission) error {
	var msg stream.Message
	if err := json.Unmarshal(entry.Payload, &msg); err != nil {
		return err
	}
	_, err := r.publisher.Publish(ctx, &msg)
	return err
}

func (r *Reconciler) replayAudit(ctx context.Context, entry *stream.FailedEmission) error {
	var auditEntry audit.Entry
	if err := json.Unmarshal(entry.Payload, &auditEntry); err != nil {
		return err
	}
	return r.auditor.Write(ctx, &auditEntry)
}

func (r *Reconciler) cleanupLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.cleanup(ctx)
		}
	}
}

// cleanup removes old replayed entries
func (r *Reconciler) cleanup(ctx context.Context) {
	cutoff := time.Now().Add(-r.config.CleanupRetention)
	deleted, err := r.journal.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		r.logger.Error("failed to clean up journal", zap.Error(err))
		return
	}
	if deleted > 0 {
		r.logger.Info("cleaned up replayed emissions",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
}
