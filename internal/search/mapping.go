package search

import (
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"fedcat/internal/lexer"
)

// metaList marks a field in the mapping's _meta section as holding a list.
const metaList = "list"

var _ lexer.TypeMapper = TypeMapper{}

// TypeMapper maps search field type names to Arrow types. It is used both
// for live mappings and for registry type strings that use search names.
type TypeMapper struct{}

// Map implements lexer.TypeMapper.
func (TypeMapper) Map(name string, _ []string) (arrow.DataType, bool) {
	return scalarType(name)
}

func scalarType(name string) (arrow.DataType, bool) {
	switch strings.ToLower(name) {
	case "text", "keyword", "wildcard", "constant_keyword", "match_only_text", "ip", "version":
		return arrow.BinaryTypes.String, true
	case "long", "unsigned_long":
		return arrow.PrimitiveTypes.Int64, true
	case "integer":
		return arrow.PrimitiveTypes.Int32, true
	case "short":
		return arrow.PrimitiveTypes.Int16, true
	case "byte":
		return arrow.PrimitiveTypes.Int8, true
	case "double", "scaled_float":
		return arrow.PrimitiveTypes.Float64, true
	case "float", "half_float":
		return arrow.PrimitiveTypes.Float32, true
	case "boolean":
		return arrow.FixedWidthTypes.Boolean, true
	case "date", "date_nanos":
		return arrow.FixedWidthTypes.Timestamp_ms, true
	case "binary":
		return arrow.BinaryTypes.Binary, true
	}
	return nil, false
}

// SchemaFromMappings builds an Arrow schema from the mappings of one or more
// indices. Properties are merged with the first occurrence of a field name
// winning, fields are sorted by name at every level, and unknown types map
// to lexer.DefaultType.
func SchemaFromMappings(mappings []map[string]any) *arrow.Schema {
	props := map[string]any{}
	meta := map[string]string{}
	for _, m := range mappings {
		mergeProperties(props, asMap(m["properties"]))
		for k, v := range asMap(m["_meta"]) {
			if _, ok := meta[k]; ok {
				continue
			}
			if s, ok := v.(string); ok {
				meta[k] = s
			}
		}
	}
	return arrow.NewSchema(buildFields(props, "", meta), nil)
}

// mergeProperties copies src into dst. Object fields present in both are
// merged recursively; for leaf fields dst wins.
func mergeProperties(dst, src map[string]any) {
	for name, v := range src {
		existing, ok := dst[name]
		if !ok {
			dst[name] = v
			continue
		}
		dstProps := asMap(asMap(existing)["properties"])
		srcProps := asMap(asMap(v)["properties"])
		if dstProps != nil && srcProps != nil {
			mergeProperties(dstProps, srcProps)
		}
	}
}

func buildFields(props map[string]any, prefix string, meta map[string]string) []arrow.Field {
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]arrow.Field, 0, len(names))
	for _, name := range names {
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		dt := fieldType(asMap(props[name]), path, meta)
		if meta[path] == metaList {
			dt = arrow.ListOf(dt)
		}
		fields = append(fields, arrow.Field{Name: name, Type: dt, Nullable: true})
	}
	return fields
}

func fieldType(def map[string]any, path string, meta map[string]string) arrow.DataType {
	typ, _ := def["type"].(string)
	if children := asMap(def["properties"]); len(children) > 0 && (typ == "" || typ == "object" || typ == "nested") {
		return arrow.StructOf(buildFields(children, path, meta)...)
	}
	if dt, ok := scalarType(typ); ok {
		return dt
	}
	return lexer.DefaultType
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
