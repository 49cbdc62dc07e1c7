package utils

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/PenHsuanWang/file-data-fetcher/pkg/models"
)

// SchemaToArrow converts a record schema to an Arrow schema for the
// Parquet lake sink
func SchemaToArrow(schema *models.Schema) (*arrow.Schema, error) {
	if schema == nil {
		return nil, fmt.Errorf("record schema is nil")
	}

	fields := make([]arrow.Field, 0, len(schema.Fields))
	for _, spec := range schema.Fields {
		arrowType, err := fieldTypeToArrowType(spec.Type)
		if err != nil {
			return nil, fmt.Errorf("failed to convert field %s: %w", spec.Name, err)
		}

		fields = append(fields, arrow.Field{
			Name:     spec.Name,
			Type:     arrowType,
			Nullable: !spec.Required,
		})
	}

	return arrow.NewSchema(fields, nil), nil
}

// SchemaToString returns a string representation of an Arrow schema
func SchemaToString(schema *arrow.Schema) string {
	if schema == nil {
		return "nil schema"
	}

	result := "Schema:\n"
	for i, field := range schema.Fields() {
		result += fmt.Sprintf("  Field %d: %s (%s, nullable=%t)\n",
			i, field.Name, field.Type.String(), field.Nullable)
	}
	return result
}

// fieldTypeToArrowType converts a declared field type to an Arrow data type
func fieldTypeToArrowType(t models.FieldType) (arrow.DataType, error) {
	switch t {
	case models.StringField:
		return arrow.BinaryTypes.String, nil
	case models.IntField:
		return arrow.PrimitiveTypes.Int64, nil
	case models.FloatField:
		return arrow.PrimitiveTypes.Float64, nil
	case models.BoolField:
		return arrow.FixedWidthTypes.Boolean, nil
	default:
		return nil, fmt.Errorf("unsupported field type: %s", t)
	}
}
