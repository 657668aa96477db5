package entity

import (
	"reflect"

	"github.com/shopspring/decimal"
)

// FieldChange records a single field transition.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Diff compares two field maps and returns the fields that changed.
// Only keys present in new are compared: partial updates never touch
// unspecified fields. A key absent from old diffs against nil.
// Numeric values compare by value, so 1.50 and 1.5 are not a change
// even when one side arrived as a string or a float.
func Diff(old, new map[string]any) map[string]FieldChange {
	changes := make(map[string]FieldChange)
	for field, newValue := range new {
		oldValue, existed := old[field]
		if !existed {
			oldValue = nil
		}
		if !valuesEqual(oldValue, newValue) {
			changes[field] = FieldChange{Old: oldValue, New: newValue}
		}
	}
	return changes
}

// valuesEqual compares two field values under value semantics.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	da, aNumeric := asDecimal(a)
	db, bNumeric := asDecimal(b)
	if aNumeric && bNumeric {
		return da.Equal(db)
	}
	// A stored decimal comes back from the row's JSON as a string; when
	// one side is numeric, try the other as a numeric string before
	// declaring a change.
	if aNumeric {
		return stringEqualsDecimal(b, da)
	}
	if bNumeric {
		return stringEqualsDecimal(a, db)
	}

	return reflect.DeepEqual(a, b)
}

func stringEqualsDecimal(v any, d decimal.Decimal) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	parsed, err := decimal.NewFromString(s)
	if err != nil {
		return false
	}
	return parsed.Equal(d)
}

// asDecimal reports whether the value is numeric and returns its decimal
// form. Strings are not treated as numbers here; schema validation has
// already coerced declared numeric fields before the diff runs.
func asDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case float32:
		return decimal.NewFromFloat(float64(n)), true
	case float64:
		return decimal.NewFromFloat(n), true
	default:
		return decimal.Zero, false
	}
}
