// Package schema resolves table schemas through a priority chain: the
// authoritative registry first, then live introspection of the source.
package schema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow"

	"fedcat/internal/domain"
	"fedcat/internal/lexer"
)

// Introspector derives a schema from the live source's structural metadata.
type Introspector interface {
	IntrospectSchema(ctx context.Context, table domain.TableName) (*domain.TableSchema, error)
}

// Resolver resolves table schemas.
type Resolver struct {
	registry     domain.RegistryClient
	introspector Introspector
	mapper       lexer.TypeMapper
	logger       *slog.Logger
}

// NewResolver creates a Resolver. registry may be nil to go straight to
// introspection; mapper translates registry type names.
func NewResolver(registry domain.RegistryClient, introspector Introspector, mapper lexer.TypeMapper, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if mapper == nil {
		mapper = lexer.DefaultMapper{}
	}
	return &Resolver{
		registry:     registry,
		introspector: introspector,
		mapper:       mapper,
		logger:       logger,
	}
}

// Resolve returns the schema of table. A registry hit is returned as is;
// registry failures are logged and fall through to introspection. When
// introspection also fails the result is a *domain.SchemaResolutionError.
func (r *Resolver) Resolve(ctx context.Context, table domain.TableName) (*domain.TableSchema, error) {
	if s, ok := r.fromRegistry(ctx, table); ok {
		return s, nil
	}

	s, err := r.introspector.IntrospectSchema(ctx, table)
	if err != nil {
		return nil, &domain.SchemaResolutionError{Table: table, Cause: err}
	}
	if s == nil || s.Schema == nil {
		return nil, &domain.SchemaResolutionError{Table: table, Cause: errors.New("introspection returned no schema")}
	}
	return s, nil
}

func (r *Resolver) fromRegistry(ctx context.Context, table domain.TableName) (*domain.TableSchema, bool) {
	if r.registry == nil {
		return nil, false
	}

	rt, err := r.registry.GetTable(ctx, table)
	if err != nil {
		r.logger.Warn("unable to retrieve table from registry", "schema", table.Schema, "table", table.Table, "error", err)
		return nil, false
	}
	if rt == nil {
		return nil, false
	}
	if len(rt.Columns)+len(rt.PartitionKeys) == 0 {
		r.logger.Warn("registry table has no columns", "schema", table.Schema, "table", table.Table)
	}

	s, err := FromRegistry(rt, r.mapper)
	if err != nil {
		r.logger.Warn("unable to translate registry table", "schema", table.Schema, "table", table.Table, "error", err)
		return nil, false
	}
	r.logger.Info("retrieved schema from registry", "schema", table.Schema, "table", table.Table)
	return s, true
}

// FromRegistry converts a registry table into a schema. Columns keep the
// registry's order with partition keys appended as ordinary fields. Search
// sources have no partitioning, so no partition columns are reported.
func FromRegistry(rt *domain.RegistryTable, mapper lexer.TypeMapper) (*domain.TableSchema, error) {
	fields := make([]arrow.Field, 0, len(rt.Columns)+len(rt.PartitionKeys))
	for _, col := range rt.Columns {
		f, err := lexer.Lex(col.Name, col.Type, mapper)
		if err != nil {
			return nil, err
		}
		fields = append(fields, withComment(f, col.Comment))
	}

	for _, col := range rt.PartitionKeys {
		f, err := lexer.Lex(col.Name, col.Type, mapper)
		if err != nil {
			return nil, fmt.Errorf("partition key: %w", err)
		}
		fields = append(fields, withComment(f, col.Comment))
	}

	return &domain.TableSchema{Schema: arrow.NewSchema(fields, nil)}, nil
}

func withComment(f arrow.Field, comment string) arrow.Field {
	if comment != "" {
		f.Metadata = arrow.NewMetadata([]string{"comment"}, []string{comment})
	}
	return f
}
