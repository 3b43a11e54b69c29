package lexer

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLex_Scalars(t *testing.T) {
	tests := []struct {
		in   string
		want arrow.DataType
	}{
		{"boolean", arrow.FixedWidthTypes.Boolean},
		{"tinyint", arrow.PrimitiveTypes.Int8},
		{"smallint", arrow.PrimitiveTypes.Int16},
		{"int", arrow.PrimitiveTypes.Int32},
		{"INTEGER", arrow.PrimitiveTypes.Int32},
		{"bigint", arrow.PrimitiveTypes.Int64},
		{"float", arrow.PrimitiveTypes.Float32},
		{"double", arrow.PrimitiveTypes.Float64},
		{"string", arrow.BinaryTypes.String},
		{"varchar(255)", arrow.BinaryTypes.String},
		{"binary", arrow.BinaryTypes.Binary},
		{"date", arrow.PrimitiveTypes.Date32},
		{"timestamp", arrow.FixedWidthTypes.Timestamp_ms},
		{"decimal(10, 2)", &arrow.Decimal128Type{Precision: 10, Scale: 2}},
		{"decimal", &arrow.Decimal128Type{Precision: 38, Scale: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			f, err := Lex("col", tt.in, nil)
			require.NoError(t, err)
			assert.Equal(t, "col", f.Name)
			assert.True(t, f.Nullable)
			assert.True(t, arrow.TypeEqual(tt.want, f.Type), "got %s", f.Type)
		})
	}
}

func TestLex_UnknownFallsBackToDefault(t *testing.T) {
	f, err := Lex("geo", "geo_point", nil)
	require.NoError(t, err)
	assert.True(t, arrow.TypeEqual(DefaultType, f.Type))
}

func TestLex_Nested(t *testing.T) {
	f, err := Lex("payload", "struct<id:bigint, tags:array<string>, attrs:map<string,int>, inner:struct<ok:boolean>>", nil)
	require.NoError(t, err)

	want := arrow.StructOf(
		arrow.Field{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		arrow.Field{Name: "tags", Type: arrow.ListOf(arrow.BinaryTypes.String), Nullable: true},
		arrow.Field{Name: "attrs", Type: arrow.MapOf(arrow.BinaryTypes.String, arrow.PrimitiveTypes.Int32), Nullable: true},
		arrow.Field{Name: "inner", Type: arrow.StructOf(
			arrow.Field{Name: "ok", Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
		), Nullable: true},
	)
	assert.True(t, arrow.TypeEqual(want, f.Type), "got %s", f.Type)
}

func TestLex_Malformed(t *testing.T) {
	for _, in := range []string{"", "array<int", "struct<a int>", "map<string>", "int>"} {
		t.Run(in, func(t *testing.T) {
			_, err := Lex("c", in, nil)
			require.Error(t, err)
		})
	}
}

type keywordMapper struct{}

func (keywordMapper) Map(name string, _ []string) (arrow.DataType, bool) {
	if name == "keyword" {
		return arrow.BinaryTypes.LargeString, true
	}
	return nil, false
}

func TestChain(t *testing.T) {
	mapper := Chain{keywordMapper{}, DefaultMapper{}}

	f, err := Lex("k", "array<keyword>", mapper)
	require.NoError(t, err)
	assert.True(t, arrow.TypeEqual(arrow.ListOf(arrow.BinaryTypes.LargeString), f.Type))

	f, err = Lex("n", "bigint", mapper)
	require.NoError(t, err)
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Int64, f.Type))
}
