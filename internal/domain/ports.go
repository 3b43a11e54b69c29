package domain

import (
	"context"
	"time"
)

// DiscoveryClient lists the domains provisioned in a managed search service.
// Implemented by discovery.OpenSearchDiscovery.
type DiscoveryClient interface {
	ListDomainBindings(ctx context.Context) (map[string]Endpoint, error)
}

// RegistryClient looks tables up in the authoritative metadata registry.
// Implemented by registry.GlueRegistry. A table that is not registered
// yields a *NotFoundError.
type RegistryClient interface {
	GetTable(ctx context.Context, table TableName) (*RegistryTable, error)
}

// SourceClient is the structural-metadata surface of one search endpoint.
// Implemented by search.Client.
type SourceClient interface {
	// ListPhysicalObjects returns index and alias names, including internal ones.
	ListPhysicalObjects(ctx context.Context) ([]string, error)
	// ListLogicalTables returns names of logical multi-object tables (data streams).
	ListLogicalTables(ctx context.Context) ([]string, error)
	// GetPhysicalObjectsForLogicalTable expands a table name into its backing
	// objects. A plain index expands to itself.
	GetPhysicalObjectsForLogicalTable(ctx context.Context, name string) ([]PhysicalObject, error)
	// GetStructuralMapping returns the raw field mapping of one object.
	GetStructuralMapping(ctx context.Context, object string) (map[string]any, error)
	// GetShardHealth returns every shard copy of the given objects from one
	// health snapshot, bounded by timeout.
	GetShardHealth(ctx context.Context, objects []string, timeout time.Duration) ([]Shard, error)
}

// KeyFactory creates encryption keys for spilled split data.
// Implemented by spill.LocalKeyFactory and spill.KMSKeyFactory.
type KeyFactory interface {
	Create(ctx context.Context) (*EncryptionKey, error)
}

// SpillLocator allocates spill locations for splits.
// Implemented by spill.LocationFactory.
type SpillLocator interface {
	New(queryID string) SpillLocation
}
