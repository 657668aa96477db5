package schema

import (
	"fmt"
	"strconv"

	"github.com/erp/framework/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// FieldKind is the declared type of a field value.
type FieldKind string

const (
	KindInt     FieldKind = "int"
	KindString  FieldKind = "string"
	KindDecimal FieldKind = "decimal"
	KindBool    FieldKind = "bool"
	KindEnum    FieldKind = "enum"
)

// Constraint narrows the accepted values of a field beyond its kind.
// Min/Max apply to int and decimal kinds, MaxLength to string,
// AllowedValues to enum.
type Constraint struct {
	Min           *decimal.Decimal `json:"min,omitempty"`
	Max           *decimal.Decimal `json:"max,omitempty"`
	MaxLength     int              `json:"max_length,omitempty"`
	AllowedValues []string         `json:"allowed_values,omitempty"`
}

// FieldSchema declares the kind and constraint of a single field.
type FieldSchema struct {
	Kind       FieldKind  `json:"kind"`
	Required   bool       `json:"required"`
	Constraint Constraint `json:"constraint"`
}

// Validate coerces a raw payload value to the declared kind and checks the
// constraint. The coerced value is what gets stored and diffed, so numeric
// fields always carry decimal.Decimal regardless of how the payload spelled
// them.
func (s FieldSchema) Validate(field string, value any) (any, error) {
	if value == nil {
		if s.Required {
			return nil, shared.NewFieldError(field, "value is required")
		}
		return nil, nil
	}

	switch s.Kind {
	case KindInt:
		d, err := coerceDecimal(value)
		if err != nil || !d.IsInteger() {
			return nil, shared.NewFieldError(field, "expected an integer value")
		}
		if err := s.Constraint.checkRange(field, d); err != nil {
			return nil, err
		}
		return d.IntPart(), nil

	case KindDecimal:
		d, err := coerceDecimal(value)
		if err != nil {
			return nil, shared.NewFieldError(field, "expected a decimal value")
		}
		if err := s.Constraint.checkRange(field, d); err != nil {
			return nil, err
		}
		return d, nil

	case KindString:
		str, ok := value.(string)
		if !ok {
			return nil, shared.NewFieldError(field, "expected a string value")
		}
		if s.Constraint.MaxLength > 0 && len(str) > s.Constraint.MaxLength {
			return nil, shared.NewFieldError(field, fmt.Sprintf("exceeds maximum length %d", s.Constraint.MaxLength))
		}
		return str, nil

	case KindBool:
		b, ok := value.(bool)
		if !ok {
			return nil, shared.NewFieldError(field, "expected a boolean value")
		}
		return b, nil

	case KindEnum:
		str, ok := value.(string)
		if !ok {
			return nil, shared.NewFieldError(field, "expected an enum value")
		}
		for _, allowed := range s.Constraint.AllowedValues {
			if str == allowed {
				return str, nil
			}
		}
		return nil, shared.NewFieldError(field, fmt.Sprintf("%q is not an allowed value", str))

	default:
		return nil, shared.NewFieldError(field, fmt.Sprintf("unknown field kind %q", s.Kind))
	}
}

func (c Constraint) checkRange(field string, d decimal.Decimal) error {
	if c.Min != nil && d.LessThan(*c.Min) {
		return shared.NewFieldError(field, fmt.Sprintf("below minimum %s", c.Min.String()))
	}
	if c.Max != nil && d.GreaterThan(*c.Max) {
		return shared.NewFieldError(field, fmt.Sprintf("above maximum %s", c.Max.String()))
	}
	return nil
}

// coerceDecimal converts any numeric representation to a decimal.
// JSON decoding yields float64, gorm JSONB round trips may yield
// strings, and Go callers may pass native integer types.
func coerceDecimal(value any) (decimal.Decimal, error) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int32:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case float32:
		return decimal.NewFromFloat(float64(v)), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		return decimal.NewFromString(v)
	default:
		return decimal.Zero, strconv.ErrSyntax
	}
}
