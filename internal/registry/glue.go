// Package registry reads table definitions from the AWS Glue Data Catalog,
// the authoritative registry consulted before live introspection.
package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/glue/types"

	"fedcat/internal/domain"
)

var _ domain.RegistryClient = (*GlueRegistry)(nil)

// GlueAPI is the subset of the Glue client used by the registry.
type GlueAPI interface {
	GetTable(ctx context.Context, in *glue.GetTableInput, optFns ...func(*glue.Options)) (*glue.GetTableOutput, error)
}

// GlueRegistry implements domain.RegistryClient against AWS Glue.
type GlueRegistry struct {
	api       GlueAPI
	catalogID string
}

// NewGlueRegistry creates a registry from an AWS configuration. catalogID
// may be empty to use the caller's account catalog.
func NewGlueRegistry(cfg aws.Config, catalogID string) *GlueRegistry {
	return NewGlueRegistryWithAPI(glue.NewFromConfig(cfg), catalogID)
}

// NewGlueRegistryWithAPI creates a registry over an existing API implementation.
func NewGlueRegistryWithAPI(api GlueAPI, catalogID string) *GlueRegistry {
	return &GlueRegistry{api: api, catalogID: catalogID}
}

// GetTable returns the registered columns and partition keys of table, in
// registry order. An unregistered table yields a *domain.NotFoundError.
func (r *GlueRegistry) GetTable(ctx context.Context, table domain.TableName) (*domain.RegistryTable, error) {
	in := &glue.GetTableInput{
		DatabaseName: aws.String(table.Schema),
		Name:         aws.String(table.Table),
	}
	if r.catalogID != "" {
		in.CatalogId = aws.String(r.catalogID)
	}

	out, err := r.api.GetTable(ctx, in)
	if err != nil {
		var notFound *types.EntityNotFoundException
		if errors.As(err, &notFound) {
			return nil, domain.ErrNotFound("table %s not registered", table)
		}
		return nil, domain.ErrUnreachable("glue", fmt.Errorf("get table %s: %w", table, err))
	}
	if out.Table == nil {
		return nil, domain.ErrNotFound("table %s not registered", table)
	}

	result := &domain.RegistryTable{
		PartitionKeys: convertColumns(out.Table.PartitionKeys),
		Parameters:    out.Table.Parameters,
	}
	if sd := out.Table.StorageDescriptor; sd != nil {
		result.Columns = convertColumns(sd.Columns)
	}
	return result, nil
}

func convertColumns(cols []types.Column) []domain.RegistryColumn {
	out := make([]domain.RegistryColumn, 0, len(cols))
	for _, c := range cols {
		out = append(out, domain.RegistryColumn{
			Name:    aws.ToString(c.Name),
			Type:    aws.ToString(c.Type),
			Comment: aws.ToString(c.Comment),
		})
	}
	return out
}
