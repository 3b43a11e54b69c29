// Package connector implements the engine-facing metadata calls for each
// supported source kind.
package connector

import (
	"context"
	"maps"

	"fedcat/internal/domain"
)

// Handler answers the engine's metadata calls for one source kind.
type Handler interface {
	SourceType() string
	ListSchemas(ctx context.Context, req domain.ListSchemasRequest) (*domain.ListSchemasResponse, error)
	ListTables(ctx context.Context, req domain.ListTablesRequest) (*domain.ListTablesResponse, error)
	GetTable(ctx context.Context, req domain.GetTableRequest) (*domain.GetTableResponse, error)
	GetPartitions(ctx context.Context, req domain.GetPartitionsRequest) (*domain.GetPartitionsResponse, error)
	GetSplits(ctx context.Context, req domain.GetSplitsRequest) (*domain.GetSplitsResponse, error)
	GetDataSourceConfigs(ctx context.Context, req domain.GetDataSourceConfigsRequest) (*domain.GetDataSourceConfigsResponse, error)
}

func configsResponse(catalog string, configs map[string]string) *domain.GetDataSourceConfigsResponse {
	return &domain.GetDataSourceConfigsResponse{
		Catalog: catalog,
		Configs: maps.Clone(configs),
	}
}
