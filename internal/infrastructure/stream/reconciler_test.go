package stream

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erp/framework/internal/domain/audit"
	"github.com/erp/framework/internal/domain/stream"
	"github.com/erp/framework/internal/domain/tenant"
	"github.com/erp/framework/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memJournal is an in-memory stream.FailureJournal for reconciler tests.
type memJournal struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*stream.FailedEmission
}

func newMemJournal() *memJournal {
	return &memJournal{entries: make(map[uuid.UUID]*stream.FailedEmission)}
}

func (j *memJournal) Save(_ context.Context, entries ...*stream.FailedEmission) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, e := range entries {
		j.entries[e.ID] = e
	}
	return nil
}

func (j *memJournal) FindReplayable(_ context.Context, now time.Time, limit int) ([]*stream.FailedEmission, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var result []*stream.FailedEmission
	for _, e := range j.entries {
		if len(result) >= limit {
			break
		}
		switch e.Status {
		case stream.EmissionStatusPending:
			result = append(result, e)
		case stream.EmissionStatusFailed:
			if e.NextRetryAt != nil && !e.NextRetryAt.After(now) {
				result = append(result, e)
			}
		}
	}
	return result, nil
}

func (j *memJournal) FindDead(_ context.Context, limit int) ([]*stream.FailedEmission, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var result []*stream.FailedEmission
	for _, e := range j.entries {
		if e.Status == stream.EmissionStatusDead && len(result) < limit {
			result = append(result, e)
		}
	}
	return result, nil
}

func (j *memJournal) Update(_ context.Context, entry *stream.FailedEmission) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries[entry.ID] = entry
	return nil
}

func (j *memJournal) DeleteOlderThan(_ context.Context, before time.Time) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var deleted int64
	for id, e := range j.entries {
		if e.Status == stream.EmissionStatusSent && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(j.entries, id)
			deleted++
		}
	}
	return deleted, nil
}

func (j *memJournal) get(id uuid.UUID) *stream.FailedEmission {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.entries[id]
}

// recordingAuditWriter records entries and can fail on demand.
type recordingAuditWriter struct {
	mu      sync.Mutex
	entries []*audit.Entry
	err     error
}

func (w *recordingAuditWriter) Write(_ context.Context, entry *audit.Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.entries = append(w.entries, entry)
	return nil
}

func journaledEvent(t *testing.T) *stream.FailedEmission {
	t.Helper()
	tc := tenant.NewContext(uuid.New(), uuid.New())
	msg := stream.NewMessage(tc, "partner", "updated", uuid.New(), json.RawMessage(`{"changes":{}}`))
	payload, err := json.Marshal(msg)
	require.NoError(t, err)
	return stream.NewFailedEmission(tc.TenantID, stream.EmissionEvent, "partner", msg.EntityID, tc.CorrelationID, payload, errors.New("stream was down"))
}

func journaledAudit(t *testing.T) *stream.FailedEmission {
	t.Helper()
	tc := tenant.NewContext(uuid.New(), uuid.New())
	entry := audit.NewEntry(tc, audit.ActionUpdated, "partner", uuid.New(), nil)
	payload, err := json.Marshal(entry)
	require.NoError(t, err)
	return stream.NewFailedEmission(tc.TenantID, stream.EmissionAudit, "partner", entry.EntityID, tc.CorrelationID, payload, errors.New("audit store was down"))
}

func TestReconciler_Replay(t *testing.T) {
	ctx := context.Background()

	t.Run("replays a journaled event", func(t *testing.T) {
		journal := newMemJournal()
		log := testutil.NewMemoryLog()
		reconciler := NewReconciler(journal, log, &recordingAuditWriter{}, DefaultReconcilerConfig(), zap.NewNop())

		entry := journaledEvent(t)
		require.NoError(t, journal.Save(ctx, entry))

		reconciler.replayBatch(ctx)

		msgs := log.Messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, "partner.updated", msgs[0].EventType)
		assert.Equal(t, entry.CorrelationID, msgs[0].CorrelationID)
		assert.Equal(t, stream.EmissionStatusSent, journal.get(entry.ID).Status)
	})

	t.Run("replays a journaled audit entry", func(t *testing.T) {
		journal := newMemJournal()
		auditor := &recordingAuditWriter{}
		reconciler := NewReconciler(journal, testutil.NewMemoryLog(), auditor, DefaultReconcilerConfig(), zap.NewNop())

		entry := journaledAudit(t)
		require.NoError(t, journal.Save(ctx, entry))

		reconciler.replayBatch(ctx)

		require.Len(t, auditor.entries, 1)
		assert.Equal(t, audit.ActionUpdated, auditor.entries[0].Action)
		assert.Equal(t, stream.EmissionStatusSent, journal.get(entry.ID).Status)
	})

	t.Run("failed replay backs off", func(t *testing.T) {
		journal := newMemJournal()
		log := testutil.NewMemoryLog()
		log.SetError(errors.New("still down"))
		reconciler := NewReconciler(journal, log, &recordingAuditWriter{}, DefaultReconcilerConfig(), zap.NewNop())

		entry := journaledEvent(t)
		require.NoError(t, journal.Save(ctx, entry))

		reconciler.replayBatch(ctx)

		got := journal.get(entry.ID)
		assert.Equal(t, stream.EmissionStatusFailed, got.Status)
		assert.Equal(t, 1, got.RetryCount)
		require.NotNil(t, got.NextRetryAt)
		assert.True(t, got.NextRetryAt.After(time.Now()))

		// not due yet, so the next batch skips it
		log.SetError(nil)
		reconciler.replayBatch(ctx)
		assert.Empty(t, log.Messages())
	})

	t.Run("exhausted retries go dead", func(t *testing.T) {
		journal := newMemJournal()
		log := testutil.NewMemoryLog()
		log.SetError(errors.New("still down"))
		reconciler := NewReconciler(journal, log, &recordingAuditWriter{}, DefaultReconcilerConfig(), zap.NewNop())

		entry := journaledEvent(t)
		require.NoError(t, journal.Save(ctx, entry))

		for i := 0; i < stream.DefaultMaxRetries; i++ {
			reconciler.replayBatch(ctx)
			if got := journal.get(entry.ID); got.NextRetryAt != nil {
				past := time.Now().Add(-time.Second)
				got.NextRetryAt = &past
			}
		}

		got := journal.get(entry.ID)
		assert.True(t, got.IsDead())

		dead, err := journal.FindDead(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, dead, 1)
	})

	t.Run("configured retry policy bounds the replay", func(t *testing.T) {
		journal := newMemJournal()
		log := testutil.NewMemoryLog()
		log.SetError(errors.New("still down"))
		cfg := DefaultReconcilerConfig()
		cfg.MaxRetries = 2
		cfg.BaseBackoff = 100 * time.Millisecond
		reconciler := NewReconciler(journal, log, &recordingAuditWriter{}, cfg, zap.NewNop())

		entry := journaledEvent(t)
		require.NoError(t, journal.Save(ctx, entry))

		reconciler.replayBatch(ctx)

		got := journal.get(entry.ID)
		require.NotNil(t, got.NextRetryAt)
		assert.InDelta(t, float64(cfg.BaseBackoff), float64(time.Until(*got.NextRetryAt)), float64(50*time.Millisecond))

		past := time.Now().Add(-time.Second)
		got.NextRetryAt = &past
		reconciler.replayBatch(ctx)

		assert.True(t, journal.get(entry.ID).IsDead())
	})

	t.Run("garbage payload counts as a failed attempt", func(t *testing.T) {
		journal := newMemJournal()
		reconciler := NewReconciler(journal, testutil.NewMemoryLog(), &recordingAuditWriter{}, DefaultReconcilerConfig(), zap.NewNop())

		entry := journaledEvent(t)
		entry.Payload = []byte("not json")
		require.NoError(t, journal.Save(ctx, entry))

		reconciler.replayBatch(ctx)

		assert.Equal(t, stream.EmissionStatusFailed, journal.get(entry.ID).Status)
	})
}

func TestReconciler_Cleanup(t *testing.T) {
	ctx := context.Background()

	journal := newMemJournal()
	reconciler := NewReconciler(journal, testutil.NewMemoryLog(), &recordingAuditWriter{}, DefaultReconcilerConfig(), zap.NewNop())

	old := journaledEvent(t)
	old.MarkSent()
	ancient := time.Now().Add(-30 * 24 * time.Hour)
	old.ProcessedAt = &ancient

	fresh := journaledEvent(t)

	require.NoError(t, journal.Save(ctx, old, fresh))

	reconciler.cleanup(ctx)

	assert.Nil(t, journal.get(old.ID))
	assert.NotNil(t, journal.get(fresh.ID))
}

func TestReconciler_StartStop(t *testing.T) {
	journal := newMemJournal()
	cfg := DefaultReconcilerConfig()
	cfg.PollInterval = 10 * time.Millisecond
	cfg.CleanupEnabled = false
	reconciler := NewReconciler(journal, testutil.NewMemoryLog(), &recordingAuditWriter{}, cfg, zap.NewNop())

	require.NoError(t, reconciler.Start(context.Background()))

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, reconciler.Stop(stopCtx))
}
