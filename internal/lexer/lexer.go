// Package lexer translates registry type strings such as
// "struct<a:int,b:array<string>>" into Arrow types. Scalar names are
// delegated to a TypeMapper so each source can add its own vocabulary.
package lexer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/apache/arrow-go/v18/arrow"
)

// TypeMapper maps a scalar type name (lower case, without parameters) and
// its parameters to an Arrow type. ok is false for names it does not know.
type TypeMapper interface {
	Map(name string, params []string) (dt arrow.DataType, ok bool)
}

// DefaultType is used for scalar names no mapper recognizes.
var DefaultType arrow.DataType = arrow.BinaryTypes.String

// Lex parses typeStr into an Arrow field named name. Nested element and
// member fields are nullable, as registries carry no nullability.
func Lex(name, typeStr string, mapper TypeMapper) (arrow.Field, error) {
	if mapper == nil {
		mapper = DefaultMapper{}
	}
	p := &parser{src: typeStr, mapper: mapper}
	dt, err := p.parseType()
	if err != nil {
		return arrow.Field{}, fmt.Errorf("lex %s %q: %w", name, typeStr, err)
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return arrow.Field{}, fmt.Errorf("lex %s %q: unexpected %q at %d", name, typeStr, p.src[p.pos:], p.pos)
	}
	return arrow.Field{Name: name, Type: dt, Nullable: true}, nil
}

type parser struct {
	src    string
	pos    int
	mapper TypeMapper
}

func (p *parser) parseType() (arrow.DataType, error) {
	p.skipSpace()
	name := strings.ToLower(p.ident())
	if name == "" {
		return nil, fmt.Errorf("expected type name at %d", p.pos)
	}

	switch name {
	case "array":
		if err := p.expect('<'); err != nil {
			return nil, err
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if err := p.expect('>'); err != nil {
			return nil, err
		}
		return arrow.ListOf(elem), nil

	case "map":
		if err := p.expect('<'); err != nil {
			return nil, err
		}
		key, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if err := p.expect(','); err != nil {
			return nil, err
		}
		val, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if err := p.expect('>'); err != nil {
			return nil, err
		}
		return arrow.MapOf(key, val), nil

	case "struct":
		if err := p.expect('<'); err != nil {
			return nil, err
		}
		var fields []arrow.Field
		for {
			p.skipSpace()
			if p.peek() == '>' && len(fields) == 0 {
				break
			}
			fieldName := strings.TrimSpace(p.until(':'))
			if fieldName == "" {
				return nil, fmt.Errorf("expected struct member name at %d", p.pos)
			}
			if err := p.expect(':'); err != nil {
				return nil, err
			}
			dt, err := p.parseType()
			if err != nil {
				return nil, err
			}
			fields = append(fields, arrow.Field{Name: fieldName, Type: dt, Nullable: true})
			p.skipSpace()
			if p.peek() != ',' {
				break
			}
			p.pos++
		}
		if err := p.expect('>'); err != nil {
			return nil, err
		}
		return arrow.StructOf(fields...), nil
	}

	var params []string
	p.skipSpace()
	if p.peek() == '(' {
		p.pos++
		raw := p.until(')')
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		for _, param := range strings.Split(raw, ",") {
			params = append(params, strings.TrimSpace(param))
		}
	}

	if dt, ok := p.mapper.Map(name, params); ok {
		return dt, nil
	}
	return DefaultType, nil
}

func (p *parser) ident() string {
	start := p.pos
	for p.pos < len(p.src) {
		r := rune(p.src[p.pos])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) until(stop byte) string {
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] != stop {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) expect(c byte) error {
	p.skipSpace()
	if p.peek() != c {
		return fmt.Errorf("expected %q at %d", c, p.pos)
	}
	p.pos++
	return nil
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

// DefaultMapper understands the registry's scalar vocabulary.
type DefaultMapper struct{}

// Map implements TypeMapper.
func (DefaultMapper) Map(name string, params []string) (arrow.DataType, bool) {
	switch name {
	case "boolean":
		return arrow.FixedWidthTypes.Boolean, true
	case "tinyint":
		return arrow.PrimitiveTypes.Int8, true
	case "smallint":
		return arrow.PrimitiveTypes.Int16, true
	case "int", "integer":
		return arrow.PrimitiveTypes.Int32, true
	case "bigint":
		return arrow.PrimitiveTypes.Int64, true
	case "float":
		return arrow.PrimitiveTypes.Float32, true
	case "double":
		return arrow.PrimitiveTypes.Float64, true
	case "decimal":
		return decimalType(params), true
	case "string", "varchar", "char":
		return arrow.BinaryTypes.String, true
	case "binary":
		return arrow.BinaryTypes.Binary, true
	case "date":
		return arrow.PrimitiveTypes.Date32, true
	case "timestamp":
		return arrow.FixedWidthTypes.Timestamp_ms, true
	}
	return nil, false
}

// decimalType builds decimal(p,s); missing parameters default to (38,0)
// and (p,0).
func decimalType(params []string) arrow.DataType {
	precision, scale := int32(38), int32(0)
	if len(params) > 0 {
		if v, err := strconv.Atoi(params[0]); err == nil {
			precision = int32(v)
		}
	}
	if len(params) > 1 {
		if v, err := strconv.Atoi(params[1]); err == nil {
			scale = int32(v)
		}
	}
	return &arrow.Decimal128Type{Precision: precision, Scale: scale}
}

// Chain tries each mapper in turn.
type Chain []TypeMapper

// Map implements TypeMapper.
func (c Chain) Map(name string, params []string) (arrow.DataType, bool) {
	for _, m := range c {
		if dt, ok := m.Map(name, params); ok {
			return dt, true
		}
	}
	return nil, false
}
