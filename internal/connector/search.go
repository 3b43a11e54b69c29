package connector

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"fedcat/internal/config"
	"fedcat/internal/domain"
	"fedcat/internal/lexer"
	"fedcat/internal/schema"
	"fedcat/internal/search"
	"fedcat/internal/splits"
)

// internalPrefix marks indices and aliases that are internal artifacts of the
// cluster, including data stream backing indices (.ds-*).
const internalPrefix = "."

var _ Handler = (*SearchHandler)(nil)

// DomainResolver resolves and lists search domains.
type DomainResolver interface {
	Resolve(ctx context.Context, name string) (domain.Endpoint, error)
	Names(ctx context.Context, refresh bool) ([]string, error)
	AutoDiscover() bool
}

// SearchDeps are the collaborators of a SearchHandler. Registry and Keys may
// be nil.
type SearchDeps struct {
	Resolver DomainResolver
	Clients  splits.ClientProvider
	Registry domain.RegistryClient
	Spill    domain.SpillLocator
	Keys     domain.KeyFactory
	Splits   splits.Options
	// Configs is the redacted effective configuration.
	Configs map[string]string
}

// SearchHandler serves search domains: schemas are domains, tables are
// indices, aliases and data streams.
type SearchHandler struct {
	resolver DomainResolver
	clients  splits.ClientProvider
	schemas  *schema.Resolver
	planner  *splits.Planner
	configs  map[string]string
	logger   *slog.Logger
}

// NewSearchHandler creates a SearchHandler.
func NewSearchHandler(deps SearchDeps, logger *slog.Logger) *SearchHandler {
	if logger == nil {
		logger = slog.Default()
	}
	intro := &searchIntrospector{resolver: deps.Resolver, clients: deps.Clients}
	mapper := lexer.Chain{lexer.DefaultMapper{}, search.TypeMapper{}}
	return &SearchHandler{
		resolver: deps.Resolver,
		clients:  deps.Clients,
		schemas:  schema.NewResolver(deps.Registry, intro, mapper, logger),
		planner:  splits.NewPlanner(deps.Resolver, deps.Clients, deps.Spill, deps.Keys, deps.Splits, logger),
		configs:  deps.Configs,
		logger:   logger,
	}
}

// SourceType implements Handler.
func (h *SearchHandler) SourceType() string { return config.SourceElasticsearch }

// ListSchemas returns the known domain names, refreshing first when
// auto-discovery is enabled.
func (h *SearchHandler) ListSchemas(ctx context.Context, req domain.ListSchemasRequest) (*domain.ListSchemasResponse, error) {
	names, err := h.resolver.Names(ctx, h.resolver.AutoDiscover())
	if err != nil {
		return nil, err
	}
	return &domain.ListSchemasResponse{Catalog: req.Catalog, Schemas: names}, nil
}

// ListTables lists the non-internal indices and aliases of a domain together
// with its data streams, each once and sorted by name.
func (h *SearchHandler) ListTables(ctx context.Context, req domain.ListTablesRequest) (*domain.ListTablesResponse, error) {
	client, err := h.client(ctx, req.Schema)
	if err != nil {
		return nil, err
	}

	var objects, streams []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		objects, err = client.ListPhysicalObjects(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		streams, err = client.ListLogicalTables(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("list tables of %s: %w", req.Schema, err)
	}

	seen := make(map[string]struct{}, len(objects)+len(streams))
	for _, names := range [][]string{objects, streams} {
		for _, name := range names {
			if !strings.HasPrefix(name, internalPrefix) {
				seen[name] = struct{}{}
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

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

// GetTable resolves the table's schema, registry first. Search tables are
// unpartitioned, so no partition columns are reported even when the registry
// lists partition keys.
func (h *SearchHandler) GetTable(ctx context.Context, req domain.GetTableRequest) (*domain.GetTableResponse, error) {
	s, err := h.schemas.Resolve(ctx, req.Table)
	if err != nil {
		return nil, err
	}
	return &domain.GetTableResponse{
		Catalog: req.Catalog,
		Table:   req.Table,
		Schema:  s.Schema,
	}, nil
}

// GetPartitions returns the single synthetic partition of an unpartitioned
// search table.
func (h *SearchHandler) GetPartitions(_ context.Context, req domain.GetPartitionsRequest) (*domain.GetPartitionsResponse, error) {
	return &domain.GetPartitionsResponse{
		Catalog:          req.Catalog,
		Table:            req.Table,
		PartitionColumns: []string{domain.PartitionIDColumn},
		Rows:             []map[string]string{{domain.PartitionIDColumn: "1"}},
	}, nil
}

// GetSplits plans one split per eligible shard.
func (h *SearchHandler) GetSplits(ctx context.Context, req domain.GetSplitsRequest) (*domain.GetSplitsResponse, error) {
	return h.planner.Plan(ctx, req)
}

// GetDataSourceConfigs returns the redacted configuration.
func (h *SearchHandler) GetDataSourceConfigs(_ context.Context, req domain.GetDataSourceConfigsRequest) (*domain.GetDataSourceConfigsResponse, error) {
	return configsResponse(req.Catalog, h.configs), nil
}

func (h *SearchHandler) client(ctx context.Context, domainName string) (domain.SourceClient, error) {
	ep, err := h.resolver.Resolve(ctx, domainName)
	if err != nil {
		return nil, err
	}
	client, err := h.clients.GetOrCreate(ep)
	if err != nil {
		return nil, fmt.Errorf("create client for %s: %w", domainName, err)
	}
	return client, nil
}

// searchIntrospector derives schemas from live index mappings.
type searchIntrospector struct {
	resolver DomainResolver
	clients  splits.ClientProvider
}

func (i *searchIntrospector) IntrospectSchema(ctx context.Context, table domain.TableName) (*domain.TableSchema, error) {
	ep, err := i.resolver.Resolve(ctx, table.Schema)
	if err != nil {
		return nil, err
	}
	client, err := i.clients.GetOrCreate(ep)
	if err != nil {
		return nil, fmt.Errorf("create client for %s: %w", table.Schema, err)
	}
	mapping, err := client.GetStructuralMapping(ctx, table.Table)
	if err != nil {
		return nil, err
	}
	return &domain.TableSchema{Schema: search.SchemaFromMappings([]map[string]any{mapping})}, nil
}
