package persistence

import (
	"context"
	"testing"

	"github.com/erp/framework/internal/domain/audit"
	"github.com/erp/framework/internal/domain/entity"
	"github.com/erp/framework/internal/domain/tenant"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormAuditRepository_GetAuditTrail(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormAuditRepository(db)
	ctx := context.Background()

	tc := tenant.NewContext(uuid.New(), uuid.New())
	entityID := uuid.New()

	names := []string{"v1", "v2", "v3"}
	for _, name := range names {
		entry := audit.NewEntry(tc, audit.ActionUpdated, "partner", entityID, map[string]entity.FieldChange{
			"name": {Old: nil, New: name},
		})
		require.NoError(t, repo.Write(ctx, entry))
	}

	t.Run("returns entries in write order", func(t *testing.T) {
		trail, err := repo.GetAuditTrail(ctx, "partner", entityID, tc.TenantID)

		require.NoError(t, err)
		require.Len(t, trail, 3)
		for i, entry := range trail {
			assert.Equal(t, names[i], entry.Changes["name"].New)
			assert.Equal(t, tc.ActorID, entry.ActorID)
			assert.Equal(t, tc.CorrelationID, entry.CorrelationID)
		}
	})

	t.Run("foreign tenant sees nothing", func(t *testing.T) {
		trail, err := repo.GetAuditTrail(ctx, "partner", entityID, uuid.New())

		require.NoError(t, err)
		assert.Empty(t, trail)
	})
}

func TestGormAuditRepository_FindByCorrelation(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormAuditRepository(db)
	ctx := context.Background()

	tc := tenant.NewContext(uuid.New(), uuid.New())
	other := tenant.NewContext(tc.TenantID, tc.ActorID)

	require.NoError(t, repo.Write(ctx, audit.NewEntry(tc, audit.ActionCreated, "order", uuid.New(), nil)))
	require.NoError(t, repo.Write(ctx, audit.NewEntry(tc, audit.ActionUpdated, "product", uuid.New(), nil)))
	require.NoError(t, repo.Write(ctx, audit.NewEntry(other, audit.ActionCreated, "order", uuid.New(), nil)))

	entries, err := repo.FindByCorrelation(ctx, tc.TenantID, tc.CorrelationID)

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, audit.ActionCreated, entries[0].Action)
	assert.Equal(t, audit.ActionUpdated, entries[1].Action)
}

func TestGormAuditRepository_PreservesChanges(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormAuditRepository(db)
	ctx := context.Background()

	tc := tenant.NewContext(uuid.New(), uuid.New())
	entityID := uuid.New()

	entry := audit.NewEntry(tc, audit.ActionUpdated, "partner", entityID, map[string]entity.FieldChange{
		"name":   {Old: "Acme", New: "Acme Corp"},
		"active": {Old: true, New: false},
	})
	require.NoError(t, repo.Write(ctx, entry))

	trail, err := repo.GetAuditTrail(ctx, "partner", entityID, tc.TenantID)

	require.NoError(t, err)
	require.Len(t, trail, 1)
	got := trail[0]
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, "Acme", got.Changes["name"].Old)
	assert.Equal(t, "Acme Corp", got.Changes["name"].New)
	assert.Equal(t, true, got.Changes["active"].Old)
	assert.Equal(t, false, got.Changes["active"].New)
}
