package connector

import (
	"context"
	"log/slog"

	"fedcat/internal/config"
	"fedcat/internal/domain"
	"fedcat/internal/iceberg"
)

var _ Handler = (*IcebergHandler)(nil)

// IcebergCatalog is the catalog surface used by IcebergHandler.
// Implemented by iceberg.Client.
type IcebergCatalog interface {
	ListNamespaces(ctx context.Context) ([][]string, error)
	ListTables(ctx context.Context, namespace []string) ([]string, error)
	LoadTable(ctx context.Context, namespace []string, table string) (*iceberg.TableMetadata, error)
}

// IcebergHandler serves an Iceberg REST catalog: schemas are namespaces
// joined with ".". Partitions and splits are not supported.
type IcebergHandler struct {
	catalog IcebergCatalog
	configs map[string]string
	logger  *slog.Logger
}

// NewIcebergHandler creates an IcebergHandler. configs is the redacted
// effective configuration.
func NewIcebergHandler(catalog IcebergCatalog, configs map[string]string, logger *slog.Logger) *IcebergHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IcebergHandler{catalog: catalog, configs: configs, logger: logger}
}

// SourceType implements Handler.
func (h *IcebergHandler) SourceType() string { return config.SourceIceberg }

// ListSchemas lists namespaces. Namespaces with a level containing "." are
// skipped since their joined name would not split back to the same levels.
func (h *IcebergHandler) ListSchemas(ctx context.Context, req domain.ListSchemasRequest) (*domain.ListSchemasResponse, error) {
	namespaces, err := h.catalog.ListNamespaces(ctx)
	if err != nil {
		return nil, err
	}
	schemas := make([]string, 0, len(namespaces))
	for _, ns := range namespaces {
		name, ok := iceberg.JoinNamespace(ns)
		if !ok {
			h.logger.Warn("skipping namespace with separator in level", "namespace", ns)
			continue
		}
		schemas = append(schemas, name)
	}
	return &domain.ListSchemasResponse{Catalog: req.Catalog, Schemas: schemas}, nil
}

// ListTables lists the tables of a namespace.
func (h *IcebergHandler) ListTables(ctx context.Context, req domain.ListTablesRequest) (*domain.ListTablesResponse, error) {
	names, err := h.catalog.ListTables(ctx, iceberg.SplitNamespace(req.Schema))
	if err != nil {
		return nil, err
	}
	page, next, err := domain.Page(names, req.Page)
	if err != nil {
		return nil, err
	}
	tables := make([]domain.TableName, len(page))
	for i, name := range page {
		tables[i] = domain.TableName{Schema: req.Schema, Table: name}
	}
	return &domain.ListTablesResponse{Catalog: req.Catalog, Tables: tables, NextToken: next}, nil
}

// GetTable loads the table and converts its current schema. Partition
// columns are those referenced by the default partition spec.
func (h *IcebergHandler) GetTable(ctx context.Context, req domain.GetTableRequest) (*domain.GetTableResponse, error) {
	md, err := h.catalog.LoadTable(ctx, iceberg.SplitNamespace(req.Table.Schema), req.Table.Table)
	if err != nil {
		return nil, err
	}
	s, err := md.CurrentSchema()
	if err != nil {
		return nil, &domain.SchemaResolutionError{Table: req.Table, Cause: err}
	}
	return &domain.GetTableResponse{
		Catalog:          req.Catalog,
		Table:            req.Table,
		Schema:           iceberg.ToArrow(s),
		PartitionColumns: iceberg.PartitionColumns(s, md.DefaultSpec()),
	}, nil
}

// GetPartitions is not supported.
func (h *IcebergHandler) GetPartitions(context.Context, domain.GetPartitionsRequest) (*domain.GetPartitionsResponse, error) {
	return nil, domain.ErrUnsupported(config.SourceIceberg, "GetPartitions")
}

// GetSplits is not supported.
func (h *IcebergHandler) GetSplits(context.Context, domain.GetSplitsRequest) (*domain.GetSplitsResponse, error) {
	return nil, domain.ErrUnsupported(config.SourceIceberg, "GetSplits")
}

// GetDataSourceConfigs returns the redacted catalog configuration.
func (h *IcebergHandler) GetDataSourceConfigs(_ context.Context, req domain.GetDataSourceConfigsRequest) (*domain.GetDataSourceConfigsResponse, error) {
	return configsResponse(req.Catalog, h.configs), nil
}
