package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap stores a string-keyed map as a JSONB column. Values survive a
// round trip as JSON types (numbers become strings when written from
// decimal values), which the change detector's value-based comparison
// accounts for.
type JSONMap map[string]any

// Value implements driver.Valuer
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner
func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = make(JSONMap)
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for JSONMap: %T", value)
	}

	if len(data) == 0 {
		*m = make(JSONMap)
		return nil
	}
	return json.Unmarshal(data, m)
}

// GormDataType returns the gorm data type for migrations
func (JSONMap) GormDataType() string {
	return "jsonb"
}
