package models

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldType is the declared type of one schema field
type FieldType string

const (
	// StringField accepts any cell value as-is
	StringField FieldType = "string"

	// IntField coerces the cell value to an int64
	IntField FieldType = "int"

	// FloatField coerces the cell value to a float64
	FloatField FieldType = "float"

	// BoolField coerces the cell value to a bool
	BoolField FieldType = "bool"
)

// FieldSpec declares the type and constraints for one record field
type FieldSpec struct {
	Name     string    `yaml:"name"`
	Type     FieldType `yaml:"type"`
	Required bool      `yaml:"required"`

	// Min and Max bound numeric fields when set
	Min *float64 `yaml:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty"`
}

// Schema is the declared shape of a record. It is fixed at startup and
// never mutated afterwards, so it is safe to share across workers.
type Schema struct {
	Fields []FieldSpec `yaml:"fields"`
}

// FieldNames returns the declared field names in schema order
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Check verifies the schema declaration itself is usable
func (s *Schema) Check() error {
	if len(s.Fields) == 0 {
		return fmt.Errorf("schema declares no fields")
	}
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("schema field with empty name")
		}
		if seen[f.Name] {
			return fmt.Errorf("schema field %q declared twice", f.Name)
		}
		seen[f.Name] = true
		switch f.Type {
		case StringField, IntField, FloatField, BoolField:
		default:
			return fmt.Errorf("schema field %q has unknown type %q", f.Name, f.Type)
		}
	}
	return nil
}

// Validate coerces a raw record against the schema and returns the
// validated record. Fields not declared in the schema are dropped; a
// missing optional field is left unset.
func (s *Schema) Validate(raw RawRecord) (ValidatedRecord, error) {
	values := make(map[string]any, len(s.Fields))

	for _, spec := range s.Fields {
		cell, ok := raw.Values[spec.Name]
		cell = strings.TrimSpace(cell)
		if !ok || cell == "" {
			if spec.Required {
				return ValidatedRecord{}, fmt.Errorf("field %q: required but missing", spec.Name)
			}
			continue
		}

		coerced, err := coerce(spec.Type, cell)
		if err != nil {
			return ValidatedRecord{}, fmt.Errorf("field %q: %w", spec.Name, err)
		}

		if err := checkBounds(spec, coerced); err != nil {
			return ValidatedRecord{}, fmt.Errorf("field %q: %w", spec.Name, err)
		}

		values[spec.Name] = coerced
	}

	return ValidatedRecord{
		Fields: s.FieldNames(),
		Values: values,
	}, nil
}

// coerce converts raw cell text to the declared field type
func coerce(t FieldType, cell string) (any, error) {
	switch t {
	case StringField:
		return cell, nil
	case IntField:
		v, err := strconv.ParseInt(cell, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("not an integer: %q", cell)
		}
		return v, nil
	case FloatField:
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, fmt.Errorf("not a number: %q", cell)
		}
		return v, nil
	case BoolField:
		v, err := strconv.ParseBool(cell)
		if err != nil {
			return nil, fmt.Errorf("not a boolean: %q", cell)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown field type %q", t)
	}
}

// checkBounds applies the min/max constraints to numeric values
func checkBounds(spec FieldSpec, value any) error {
	var n float64
	switch v := value.(type) {
	case int64:
		n = float64(v)
	case float64:
		n = v
	default:
		return nil
	}

	if spec.Min != nil && n < *spec.Min {
		return fmt.Errorf("value %v below minimum %v", n, *spec.Min)
	}
	if spec.Max != nil && n > *spec.Max {
		return fmt.Errorf("value %v above maximum %v", n, *spec.Max)
	}
	return nil
}
