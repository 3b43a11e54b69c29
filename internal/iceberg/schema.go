package iceberg

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"fedcat/internal/lexer"
)

// TableMetadata is the subset of Iceberg table metadata needed to derive a
// schema and its partition columns. Both the v2 layout (schemas +
// partition-specs) and the legacy v1 layout (schema + partition-spec) are
// understood.
type TableMetadata struct {
	FormatVersion   int              `json:"format-version"`
	Location        string           `json:"location"`
	CurrentSchemaID int              `json:"current-schema-id"`
	Schemas         []Schema         `json:"schemas"`
	Schema          *Schema          `json:"schema"`
	DefaultSpecID   int              `json:"default-spec-id"`
	PartitionSpecs  []PartitionSpec  `json:"partition-specs"`
	PartitionSpec   []PartitionField `json:"partition-spec"`
}

// Schema is an Iceberg schema.
type Schema struct {
	ID     int           `json:"schema-id"`
	Fields []NestedField `json:"fields"`
}

// NestedField is one field of a struct.
type NestedField struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Required bool   `json:"required"`
	Type     Type   `json:"type"`
	Doc      string `json:"doc,omitempty"`
}

// PartitionSpec is an Iceberg partition spec.
type PartitionSpec struct {
	ID     int              `json:"spec-id"`
	Fields []PartitionField `json:"fields"`
}

// PartitionField maps a source column through a transform.
type PartitionField struct {
	SourceID  int    `json:"source-id"`
	FieldID   int    `json:"field-id"`
	Name      string `json:"name"`
	Transform string `json:"transform"`
}

// Type is an Iceberg type: a primitive name or one nested type.
type Type struct {
	Primitive string
	Struct    *StructType
	List      *ListType
	Map       *MapType
}

// StructType is a nested struct.
type StructType struct {
	Fields []NestedField `json:"fields"`
}

// ListType is a list with one element type.
type ListType struct {
	ElementID       int  `json:"element-id"`
	Element         Type `json:"element"`
	ElementRequired bool `json:"element-required"`
}

// MapType is a map from key to value.
type MapType struct {
	KeyID         int  `json:"key-id"`
	Key           Type `json:"key"`
	ValueID       int  `json:"value-id"`
	Value         Type `json:"value"`
	ValueRequired bool `json:"value-required"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Type) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		t.Primitive = name
		return nil
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return fmt.Errorf("decode iceberg type: %w", err)
	}
	switch head.Type {
	case "struct":
		t.Struct = &StructType{}
		return json.Unmarshal(data, t.Struct)
	case "list":
		t.List = &ListType{}
		return json.Unmarshal(data, t.List)
	case "map":
		t.Map = &MapType{}
		return json.Unmarshal(data, t.Map)
	default:
		return fmt.Errorf("unknown nested iceberg type %q", head.Type)
	}
}

// CurrentSchema returns the schema selected by current-schema-id.
func (m *TableMetadata) CurrentSchema() (*Schema, error) {
	for i := range m.Schemas {
		if m.Schemas[i].ID == m.CurrentSchemaID {
			return &m.Schemas[i], nil
		}
	}
	if m.Schema != nil {
		return m.Schema, nil
	}
	return nil, fmt.Errorf("current schema %d not found in table metadata", m.CurrentSchemaID)
}

// DefaultSpec returns the default partition spec; a zero spec means the
// table is unpartitioned.
func (m *TableMetadata) DefaultSpec() PartitionSpec {
	for _, spec := range m.PartitionSpecs {
		if spec.ID == m.DefaultSpecID {
			return spec
		}
	}
	if len(m.PartitionSpecs) == 0 && len(m.PartitionSpec) > 0 {
		return PartitionSpec{Fields: m.PartitionSpec}
	}
	return PartitionSpec{}
}

// ToArrow converts s into an Arrow schema. Required fields are not nullable;
// field docs are kept as "comment" metadata.
func ToArrow(s *Schema) *arrow.Schema {
	return arrow.NewSchema(toArrowFields(s.Fields), nil)
}

func toArrowFields(fields []NestedField) []arrow.Field {
	out := make([]arrow.Field, 0, len(fields))
	for _, f := range fields {
		af := arrow.Field{Name: f.Name, Type: toArrowType(f.Type), Nullable: !f.Required}
		if f.Doc != "" {
			af.Metadata = arrow.NewMetadata([]string{"comment"}, []string{f.Doc})
		}
		out = append(out, af)
	}
	return out
}

var (
	decimalPattern = regexp.MustCompile(`^decimal\(\s*(\d+)\s*,\s*(\d+)\s*\)$`)
	fixedPattern   = regexp.MustCompile(`^fixed\[\s*(\d+)\s*\]$`)
)

func toArrowType(t Type) arrow.DataType {
	switch {
	case t.Struct != nil:
		return arrow.StructOf(toArrowFields(t.Struct.Fields)...)
	case t.List != nil:
		return arrow.ListOfField(arrow.Field{
			Name:     "element",
			Type:     toArrowType(t.List.Element),
			Nullable: !t.List.ElementRequired,
		})
	case t.Map != nil:
		return arrow.MapOf(toArrowType(t.Map.Key), toArrowType(t.Map.Value))
	}

	name := strings.ToLower(strings.TrimSpace(t.Primitive))
	switch name {
	case "boolean":
		return arrow.FixedWidthTypes.Boolean
	case "int":
		return arrow.PrimitiveTypes.Int32
	case "long":
		return arrow.PrimitiveTypes.Int64
	case "float":
		return arrow.PrimitiveTypes.Float32
	case "double":
		return arrow.PrimitiveTypes.Float64
	case "date":
		return arrow.PrimitiveTypes.Date32
	case "time":
		return arrow.FixedWidthTypes.Time64us
	case "timestamp":
		return &arrow.TimestampType{Unit: arrow.Microsecond}
	case "timestamptz":
		return &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}
	case "timestamp_ns":
		return &arrow.TimestampType{Unit: arrow.Nanosecond}
	case "timestamptz_ns":
		return &arrow.TimestampType{Unit: arrow.Nanosecond, TimeZone: "UTC"}
	case "string":
		return arrow.BinaryTypes.String
	case "uuid":
		return &arrow.FixedSizeBinaryType{ByteWidth: 16}
	case "binary":
		return arrow.BinaryTypes.Binary
	}
	if m := decimalPattern.FindStringSubmatch(name); m != nil {
		p, _ := strconv.Atoi(m[1])
		s, _ := strconv.Atoi(m[2])
		return &arrow.Decimal128Type{Precision: int32(p), Scale: int32(s)}
	}
	if m := fixedPattern.FindStringSubmatch(name); m != nil {
		n, _ := strconv.Atoi(m[1])
		return &arrow.FixedSizeBinaryType{ByteWidth: n}
	}
	return lexer.DefaultType
}

// PartitionColumns returns the names of the schema fields referenced by
// spec, in spec order without duplicates.
func PartitionColumns(s *Schema, spec PartitionSpec) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, pf := range spec.Fields {
		name, ok := findField(s.Fields, pf.SourceID)
		if !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func findField(fields []NestedField, id int) (string, bool) {
	for _, f := range fields {
		if f.ID == id {
			return f.Name, true
		}
		if f.Type.Struct != nil {
			if name, ok := findField(f.Type.Struct.Fields, id); ok {
				return name, true
			}
		}
	}
	return "", false
}
