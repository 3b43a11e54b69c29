package search

import (
	"encoding/json"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fedcat/internal/lexer"
)

func decodeMapping(t *testing.T, raw string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func TestSchemaFromMappings_Types(t *testing.T) {
	m := decodeMapping(t, `{"properties": {
		"msg":     {"type": "text"},
		"host":    {"type": "keyword"},
		"bytes":   {"type": "long"},
		"code":    {"type": "integer"},
		"port":    {"type": "short"},
		"flag":    {"type": "byte"},
		"ratio":   {"type": "double"},
		"score":   {"type": "float"},
		"price":   {"type": "scaled_float", "scaling_factor": 100},
		"ok":      {"type": "boolean"},
		"ts":      {"type": "date"},
		"blob":    {"type": "binary"},
		"loc":     {"type": "geo_point"}
	}}`)

	s := SchemaFromMappings([]map[string]any{m})

	want := map[string]arrow.DataType{
		"msg":   arrow.BinaryTypes.String,
		"host":  arrow.BinaryTypes.String,
		"bytes": arrow.PrimitiveTypes.Int64,
		"code":  arrow.PrimitiveTypes.Int32,
		"port":  arrow.PrimitiveTypes.Int16,
		"flag":  arrow.PrimitiveTypes.Int8,
		"ratio": arrow.PrimitiveTypes.Float64,
		"score": arrow.PrimitiveTypes.Float32,
		"price": arrow.PrimitiveTypes.Float64,
		"ok":    arrow.FixedWidthTypes.Boolean,
		"ts":    arrow.FixedWidthTypes.Timestamp_ms,
		"blob":  arrow.BinaryTypes.Binary,
		"loc":   lexer.DefaultType,
	}
	require.Equal(t, len(want), s.NumFields())
	for name, dt := range want {
		idx := s.FieldIndices(name)
		require.Len(t, idx, 1, name)
		f := s.Field(idx[0])
		assert.True(t, arrow.TypeEqual(dt, f.Type), "%s: got %s", name, f.Type)
		assert.True(t, f.Nullable)
	}
}

func TestSchemaFromMappings_SortedFields(t *testing.T) {
	s := SchemaFromMappings([]map[string]any{decodeMapping(t, `{"properties": {
		"zeta": {"type": "keyword"}, "alpha": {"type": "keyword"}, "mid": {"type": "keyword"}
	}}`)})

	var names []string
	for _, f := range s.Fields() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}

func TestSchemaFromMappings_NestedAndLists(t *testing.T) {
	m := decodeMapping(t, `{
		"_meta": {"tags": "list", "user.roles": "list"},
		"properties": {
			"tags": {"type": "keyword"},
			"user": {"properties": {
				"name":  {"type": "keyword"},
				"roles": {"type": "keyword"}
			}},
			"events": {"type": "nested", "properties": {"at": {"type": "date"}}}
		}
	}`)

	s := SchemaFromMappings([]map[string]any{m})

	want := arrow.NewSchema([]arrow.Field{
		{Name: "events", Type: arrow.StructOf(
			arrow.Field{Name: "at", Type: arrow.FixedWidthTypes.Timestamp_ms, Nullable: true},
		), Nullable: true},
		{Name: "tags", Type: arrow.ListOf(arrow.BinaryTypes.String), Nullable: true},
		{Name: "user", Type: arrow.StructOf(
			arrow.Field{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
			arrow.Field{Name: "roles", Type: arrow.ListOf(arrow.BinaryTypes.String), Nullable: true},
		), Nullable: true},
	}, nil)
	assert.True(t, want.Equal(s), "got %s", s)
}

func TestSchemaFromMappings_MergesIndices(t *testing.T) {
	older := decodeMapping(t, `{"properties": {"id": {"type": "long"}, "user": {"properties": {"name": {"type": "keyword"}}}}}`)
	newer := decodeMapping(t, `{"properties": {"id": {"type": "keyword"}, "added": {"type": "boolean"}, "user": {"properties": {"email": {"type": "keyword"}}}}}`)

	s := SchemaFromMappings([]map[string]any{older, newer})

	want := arrow.NewSchema([]arrow.Field{
		{Name: "added", Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
		{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "user", Type: arrow.StructOf(
			arrow.Field{Name: "email", Type: arrow.BinaryTypes.String, Nullable: true},
			arrow.Field{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
		), Nullable: true},
	}, nil)
	assert.True(t, want.Equal(s), "got %s", s)
}

func TestSchemaFromMappings_Empty(t *testing.T) {
	s := SchemaFromMappings([]map[string]any{{}})
	assert.Equal(t, 0, s.NumFields())
}

func TestTypeMapper_WithLexer(t *testing.T) {
	f, err := lexer.Lex("tags", "array<keyword>", lexer.Chain{TypeMapper{}, lexer.DefaultMapper{}})
	require.NoError(t, err)
	assert.True(t, arrow.TypeEqual(arrow.ListOf(arrow.BinaryTypes.String), f.Type))
}
