package mutation

import (
	"context"
	"encoding/json"

	"github.com/erp/framework/internal/domain/audit"
	"github.com/erp/framework/internal/domain/entity"
	"github.com/erp/framework/internal/domain/schema"
	"github.com/erp/framework/internal/domain/shared"
	"github.com/erp/framework/internal/domain/stream"
	"github.com/erp/framework/internal/domain/tenant"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Orchestrator is the generic CRUD entry point. Every mutation runs the
// same pipeline: resolve the descriptor, validate the payload, commit
// the entity store write, then emit the audit entry and event message.
//
// The store commit is the durability boundary. A failure before it fails
// the operation with nothing written; a failure after it (audit write or
// event publish) degrades the result but never unwinds the committed
// business write; the failed emission is journaled for replay instead.
type Orchestrator struct {
	descriptors *entity.DescriptorRegistry
	store       entity.Store
	schemas     schema.Registry
	auditor     audit.Writer
	publisher   stream.Publisher
	journal     stream.FailureJournal
	logger      *zap.Logger
}

// NewOrchestrator creates a mutation orchestrator.
func NewOrchestrator(
	descriptors *entity.DescriptorRegistry,
	store entity.Store,
	schemas schema.Registry,
	auditor audit.Writer,
	publisher stream.Publisher,
	journal stream.FailureJournal,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		descriptors: descriptors,
		store:       store,
		schemas:     schemas,
		auditor:     auditor,
		publisher:   publisher,
		journal:     journal,
		logger:      logger,
	}
}

// Create validates the payload and persists a new entity, then emits the
// created audit entry and event.
func (o *Orchestrator) Create(ctx context.Context, tc tenant.Context, entityType string, payload map[string]any) (*Result, error) {
	fields, extFields, err := o.validatePayload(ctx, tc, entityType, payload, true)
	if err != nil {
		return nil, err
	}

	e := entity.New(tc.TenantID, entityType, fields, extFields)

	// Once the commit is initiated a caller disconnect must not abort it.
	commitCtx := context.WithoutCancel(ctx)
	if err := o.store.Insert(commitCtx, e); err != nil {
		return nil, err
	}

	changes := entity.Diff(nil, e.AllFields())
	result := &Result{Entity: e, CorrelationID: tc.CorrelationID}
	o.emit(commitCtx, tc, audit.ActionCreated, e, changes, result)
	return result, nil
}

// Update loads the entity under the caller's tenant, applies the partial
// payload, and commits if anything changed. A lookup that matches the
// entity ID but not the tenant fails exactly like a missing entity.
func (o *Orchestrator) Update(ctx context.Context, tc tenant.Context, entityType string, entityID uuid.UUID, payload map[string]any) (*Result, error) {
	current, err := o.load(ctx, tc, entityType, entityID)
	if err != nil {
		return nil, err
	}

	fields, extFields, err := o.validatePayload(ctx, tc, entityType, payload, false)
	if err != nil {
		return nil, err
	}

	updated := current.Clone()
	for k, v := range fields {
		updated.Fields[k] = v
	}
	for k, v := range extFields {
		updated.ExtensionFields[k] = v
	}

	changes := entity.Diff(current.AllFields(), merge(fields, extFields))
	result := &Result{Entity: current, CorrelationID: tc.CorrelationID}
	if len(changes) == 0 {
		// Nothing differs; there is no mutation to commit or report.
		return result, nil
	}

	commitCtx := context.WithoutCancel(ctx)
	updated.Touch()
	if err := o.store.Update(commitCtx, updated); err != nil {
		return nil, err
	}

	result.Entity = updated
	o.emit(commitCtx, tc, audit.ActionUpdated, updated, changes, result)
	return result, nil
}

// Delete soft-deletes the entity by flipping its active flag. The row is
// kept so the audit trail stays continuous. Deleting an already inactive
// entity is a no-op success.
func (o *Orchestrator) Delete(ctx context.Context, tc tenant.Context, entityType string, entityID uuid.UUID) (*Result, error) {
	current, err := o.load(ctx, tc, entityType, entityID)
	if err != nil {
		return nil, err
	}

	result := &Result{Entity: current, CorrelationID: tc.CorrelationID}
	if !current.Active {
		return result, nil
	}

	updated := current.Clone()
	updated.Deactivate()

	commitCtx := context.WithoutCancel(ctx)
	if err := o.store.Update(commitCtx, updated); err != nil {
		return nil, err
	}

	changes := map[string]entity.FieldChange{
		"active": {Old: true, New: false},
	}
	result.Entity = updated
	o.emit(commitCtx, tc, audit.ActionDeleted, updated, changes, result)
	return result, nil
}

// BulkCreate creates up to len(payloads) entities under one shared
// correlation ID. Items validate and commit independently: a failed item
// produces no audit entry and no event, and its field-level error is
// reported in the per-item result. Succeeded items each get their own
// audit entry and event message; one rollup audit entry summarizes the
// operation.
func (o *Orchestrator) BulkCreate(ctx context.Context, tc tenant.Context, entityType string, payloads []map[string]any) (*BulkResult, error) {
	result := &BulkResult{
		Items:         make([]BulkItemResult, len(payloads)),
		CorrelationID: tc.CorrelationID,
	}

	commitCtx := context.WithoutCancel(ctx)
	createdIDs := make([]string, 0, len(payloads))

	for i, payload := range payloads {
		item := BulkItemResult{Index: i}

		fields, extFields, err := o.validatePayload(ctx, tc, entityType, payload, true)
		if err != nil {
			item.Err = err
			result.Items[i] = item
			result.Failed++
			continue
		}

		e := entity.New(tc.TenantID, entityType, fields, extFields)
		if err := o.store.Insert(commitCtx, e); err != nil {
			item.Err = err
			result.Items[i] = item
			result.Failed++
			continue
		}

		changes := entity.Diff(nil, e.AllFields())
		itemResult := &Result{Entity: e, CorrelationID: tc.CorrelationID}
		o.emit(commitCtx, tc, audit.ActionCreated, e, changes, itemResult)
		if itemResult.Degraded {
			result.Degraded = true
		}

		item.Entity = e
		result.Items[i] = item
		result.Succeeded++
		createdIDs = append(createdIDs, e.ID.String())
	}

	if result.Succeeded > 0 {
		o.writeRollup(commitCtx, tc, entityType, createdIDs, result)
	}
	return result, nil
}

// load fetches the entity scoped by tenant and checks its type.
func (o *Orchestrator) load(ctx context.Context, tc tenant.Context, entityType string, entityID uuid.UUID) (*entity.Entity, error) {
	e, err := o.store.Get(ctx, tc.TenantID, entityID)
	if err != nil {
		return nil, err
	}
	if e.EntityType != entityType {
		return nil, shared.ErrNotFound
	}
	return e, nil
}

// validatePayload coerces and validates a payload against the declared
// schema plus the tenant's extension field schemas, splitting it into
// standard and extension fields. Validation happens before any store
// write. requireAll enforces required fields for create operations;
// updates validate only the keys they touch.
func (o *Orchestrator) validatePayload(ctx context.Context, tc tenant.Context, entityType string, payload map[string]any, requireAll bool) (fields, extFields map[string]any, err error) {
	desc, err := o.descriptors.Get(entityType)
	if err != nil {
		return nil, nil, err
	}
	extSchemas, err := o.schemas.FieldsFor(ctx, tc.TenantID, entityType)
	if err != nil {
		return nil, nil, err
	}

	fields = make(map[string]any)
	extFields = make(map[string]any)

	for field, value := range payload {
		if fs, ok := desc.Schema[field]; ok {
			coerced, err := fs.Validate(field, value)
			if err != nil {
				return nil, nil, err
			}
			fields[field] = coerced
			continue
		}
		if fs, ok := extSchemas[field]; ok {
			coerced, err := fs.Validate(field, value)
			if err != nil {
				return nil, nil, err
			}
			extFields[field] = coerced
			continue
		}
		return nil, nil, shared.NewFieldError(field, "field is not declared for entity type "+entityType)
	}

	if requireAll {
		for field, fs := range desc.Schema {
			if fs.Required {
				if _, ok := fields[field]; !ok {
					return nil, nil, shared.NewFieldError(field, "value is required")
				}
			}
		}
		for field, fs := range extSchemas {
			if fs.Required {
				if _, ok := extFields[field]; !ok {
					return nil, nil, shared.NewFieldError(field, "value is required")
				}
			}
		}
	}

	return fields, extFields, nil
}

// emit writes the audit entry and publishes the event message for a
// committed mutation. Both carry the operation's correlation ID. A
// failure here degrades the result and journals the payload for replay;
// it never fails the operation, whose business write already committed.
func (o *Orchestrator) emit(ctx context.Context, tc tenant.Context, action audit.Action, e *entity.Entity, changes map[string]entity.FieldChange, result *Result) {
	entry := audit.NewEntry(tc, action, e.EntityType, e.ID, changes)
	if err := o.auditor.Write(ctx, entry); err != nil {
		o.logger.Error("audit write failed after committed mutation",
			zap.String("entity_type", e.EntityType),
			zap.String("entity_id", e.ID.String()),
			zap.String("tenant_id", tc.TenantID.String()),
			zap.String("correlation_id", tc.CorrelationID.String()),
			zap.Error(err),
		)
		o.journalFailure(ctx, tc, stream.EmissionAudit, e, entry, err)
		result.Degraded = true
	} else {
		result.AuditEntry = entry
	}

	data := eventData(action, e, changes)
	msg := stream.NewMessage(tc, e.EntityType, string(action), e.ID, data)
	pos, err := o.publisher.Publish(ctx, msg)
	if err != nil {
		o.logger.Error("event publish failed after committed mutation",
			zap.String("event_type", msg.EventType),
			zap.String("entity_id", e.ID.String()),
			zap.String("tenant_id", tc.TenantID.String()),
			zap.String("correlation_id", tc.CorrelationID.String()),
			zap.Error(err),
		)
		o.journalFailure(ctx, tc, stream.EmissionEvent, e, msg, err)
		result.Degraded = true
	} else {
		result.EventPosition = pos
	}
}

// writeRollup appends the bulk summary audit entry. It shares the
// members' correlation ID and records which entities the operation
// touched.
func (o *Orchestrator) writeRollup(ctx context.Context, tc tenant.Context, entityType string, createdIDs []string, result *BulkResult) {
	rollup := audit.NewEntry(tc, audit.ActionBulkCreated, entityType, uuid.Nil, map[string]entity.FieldChange{
		"entity_ids": {New: createdIDs},
		"succeeded":  {New: result.Succeeded},
		"failed":     {New: result.Failed},
	})
	if err := o.auditor.Write(ctx, rollup); err != nil {
		o.logger.Error("bulk rollup audit write failed",
			zap.String("entity_type", entityType),
			zap.String("correlation_id", tc.CorrelationID.String()),
			zap.Error(err),
		)
		o.journalAuditFailure(ctx, tc, entityType, uuid.Nil, rollup, err)
		result.Degraded = true
	}
}

// journalFailure records a failed side effect with its full payload so
// the reconciler can replay it.
func (o *Orchestrator) journalFailure(ctx context.Context, tc tenant.Context, kind stream.EmissionKind, e *entity.Entity, payload any, cause error) {
	if kind == stream.EmissionAudit {
		o.journalAuditFailure(ctx, tc, e.EntityType, e.ID, payload, cause)
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		o.logger.Error("failed to serialize emission for journal", zap.Error(err))
		return
	}
	failure := stream.NewFailedEmission(tc.TenantID, kind, e.EntityType, e.ID, tc.CorrelationID, raw, cause)
	if err := o.journal.Save(ctx, failure); err != nil {
		// Last resort: the failure is at least logged with full context.
		o.logger.Error("failed to journal emission failure",
			zap.String("entity_id", e.ID.String()),
			zap.String("correlation_id", tc.CorrelationID.String()),
			zap.ByteString("payload", raw),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) journalAuditFailure(ctx context.Context, tc tenant.Context, entityType string, entityID uuid.UUID, payload any, cause error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		o.logger.Error("failed to serialize emission for journal", zap.Error(err))
		return
	}
	failure := stream.NewFailedEmission(tc.TenantID, stream.EmissionAudit, entityType, entityID, tc.CorrelationID, raw, cause)
	if err := o.journal.Save(ctx, failure); err != nil {
		o.logger.Error("failed to journal emission failure",
			zap.String("entity_type", entityType),
			zap.String("correlation_id", tc.CorrelationID.String()),
			zap.ByteString("payload", raw),
			zap.Error(err),
		)
	}
}

// eventData builds the JSON payload of an event message. Update and
// delete events carry the changes map; created events carry the full
// field set.
func eventData(action audit.Action, e *entity.Entity, changes map[string]entity.FieldChange) json.RawMessage {
	var payload any
	switch action {
	case audit.ActionCreated:
		payload = map[string]any{"fields": e.AllFields()}
	default:
		payload = map[string]any{"changes": changes}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return json.RawMessage("{}")
	}
	return raw
}

func merge(a, b map[string]any) map[string]any {
	merged := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		merged[k] = v
	}
	for k, v := range b {
		merged[k] = v
	}
	return merged
}
