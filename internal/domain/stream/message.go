package stream

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/erp/framework/internal/domain/tenant"
	"github.com/google/uuid"
)

// SchemaVersion is the wire schema version stamped on every message
// published by this framework version.
const SchemaVersion = "1.0"

// Message is one entry on the durable event log. Field values travel as
// strings per the delivery-log convention; Data is a JSON payload and
// carries the "changes" map for update events.
type Message struct {
	EventID       uuid.UUID       `json:"event_id"`
	EventType     string          `json:"event_type"`
	EntityType    string          `json:"entity_type"`
	EntityID      uuid.UUID       `json:"entity_id"`
	TenantID      uuid.UUID       `json:"tenant_id"`
	ActorID       uuid.UUID       `json:"actor_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Data          json.RawMessage `json:"data"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	SchemaVersion string          `json:"schema_version"`
}

// NewMessage creates a message for a mutation outcome. The event type is
// the dot-separated pair of entity type and action, e.g. "partner.updated".
func NewMessage(tc tenant.Context, entityType, action string, entityID uuid.UUID, data json.RawMessage) *Message {
	return &Message{
		EventID:       uuid.New(),
		EventType:     entityType + "." + action,
		EntityType:    entityType,
		EntityID:      entityID,
		TenantID:      tc.TenantID,
		ActorID:       tc.ActorID,
		Timestamp:     time.Now().UTC(),
		Data:          data,
		CorrelationID: tc.CorrelationID,
		SchemaVersion: SchemaVersion,
	}
}

// Wire field names.
const (
	FieldEventID       = "event_id"
	FieldEventType     = "event_type"
	FieldEntityType    = "entity_type"
	FieldEntityID      = "entity_id"
	FieldTenantID      = "tenant_id"
	FieldActorID       = "actor_id"
	FieldTimestamp     = "timestamp"
	FieldData          = "data"
	FieldCorrelationID = "correlation_id"
	FieldSchemaVersion = "schema_version"
)

// ToWire converts the message to the stringly-typed field map appended
// to the log.
func (m *Message) ToWire() map[string]any {
	actor := ""
	if m.ActorID != uuid.Nil {
		actor = m.ActorID.String()
	}
	return map[string]any{
		FieldEventID:       m.EventID.String(),
		FieldEventType:     m.EventType,
		FieldEntityType:    m.EntityType,
		FieldEntityID:      m.EntityID.String(),
		FieldTenantID:      m.TenantID.String(),
		FieldActorID:       actor,
		FieldTimestamp:     m.Timestamp.UTC().Format(time.RFC3339Nano),
		FieldData:          string(m.Data),
		FieldCorrelationID: m.CorrelationID.String(),
		FieldSchemaVersion: m.SchemaVersion,
	}
}

// FromWire reconstructs a message from a log entry's field map.
func FromWire(values map[string]any) (*Message, error) {
	get := func(key string) string {
		if s, ok := values[key].(string); ok {
			return s
		}
		return ""
	}

	eventID, err := uuid.Parse(get(FieldEventID))
	if err != nil {
		return nil, fmt.Errorf("invalid event_id: %w", err)
	}
	entityID, err := uuid.Parse(get(FieldEntityID))
	if err != nil {
		return nil, fmt.Errorf("invalid entity_id: %w", err)
	}
	tenantID, err := uuid.Parse(get(FieldTenantID))
	if err != nil {
		return nil, fmt.Errorf("invalid tenant_id: %w", err)
	}
	correlationID, err := uuid.Parse(get(FieldCorrelationID))
	if err != nil {
		return nil, fmt.Errorf("invalid correlation_id: %w", err)
	}

	var actorID uuid.UUID
	if raw := get(FieldActorID); raw != "" {
		actorID, err = uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid actor_id: %w", err)
		}
	}

	ts, err := time.Parse(time.RFC3339Nano, get(FieldTimestamp))
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp: %w", err)
	}

	return &Message{
		EventID:       eventID,
		EventType:     get(FieldEventType),
		EntityType:    get(FieldEntityType),
		EntityID:      entityID,
		TenantID:      tenantID,
		ActorID:       actorID,
		Timestamp:     ts,
		Data:          json.RawMessage(get(FieldData)),
		CorrelationID: correlationID,
		SchemaVersion: get(FieldSchemaVersion),
	}, nil
}
