package persistence

import (
	"context"
	"testing"

	"github.com/erp/framework/internal/domain/schema"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormSchemaRegistry(t *testing.T) {
	db := setupTestDB(t)
	registry := NewGormSchemaRegistry(db)
	ctx := context.Background()

	tenantA := uuid.New()
	tenantB := uuid.New()

	t.Run("round trips a constrained schema", func(t *testing.T) {
		min := decimal.RequireFromString("0")
		max := decimal.RequireFromString("100")
		require.NoError(t, registry.Register(ctx, schema.ExtensionField{
			TenantID:   tenantA,
			EntityType: "partner",
			Field:      "discount",
			Schema: schema.FieldSchema{
				Kind:       schema.KindDecimal,
				Required:   true,
				Constraint: schema.Constraint{Min: &min, Max: &max},
			},
		}))

		fields, err := registry.FieldsFor(ctx, tenantA, "partner")

		require.NoError(t, err)
		require.Contains(t, fields, "discount")
		got := fields["discount"]
		assert.Equal(t, schema.KindDecimal, got.Kind)
		assert.True(t, got.Required)
		require.NotNil(t, got.Constraint.Min)
		assert.True(t, got.Constraint.Min.Equal(min))
		require.NotNil(t, got.Constraint.Max)
		assert.True(t, got.Constraint.Max.Equal(max))
	})

	t.Run("re-registering upserts in place", func(t *testing.T) {
		require.NoError(t, registry.Register(ctx, schema.ExtensionField{
			TenantID: tenantA, EntityType: "partner", Field: "tier",
			Schema: schema.FieldSchema{Kind: schema.KindString},
		}))
		require.NoError(t, registry.Register(ctx, schema.ExtensionField{
			TenantID: tenantA, EntityType: "partner", Field: "tier",
			Schema: schema.FieldSchema{Kind: schema.KindEnum, Constraint: schema.Constraint{AllowedValues: []string{"gold", "silver"}}},
		}))

		fields, err := registry.FieldsFor(ctx, tenantA, "partner")

		require.NoError(t, err)
		got := fields["tier"]
		assert.Equal(t, schema.KindEnum, got.Kind)
		assert.Equal(t, []string{"gold", "silver"}, got.Constraint.AllowedValues)
	})

	t.Run("definitions are tenant scoped", func(t *testing.T) {
		fields, err := registry.FieldsFor(ctx, tenantB, "partner")

		require.NoError(t, err)
		assert.Empty(t, fields)
	})
}
