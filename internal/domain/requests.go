package domain

import "github.com/apache/arrow-go/v18/arrow"

// Predicate narrows a request to column values. It is advisory: sources that
// cannot prune by value ignore it.
type Predicate map[string][]string

// ListSchemasRequest asks for the schemas (domains or namespaces) of a catalog.
type ListSchemasRequest struct {
	QueryID string
	Catalog string
}

// ListSchemasResponse lists schema names.
type ListSchemasResponse struct {
	Catalog string
	Schemas []string
}

// ListTablesRequest asks for the tables of one schema.
type ListTablesRequest struct {
	QueryID string
	Catalog string
	Schema  string
	Page    PageRequest
}

// ListTablesResponse lists table names. NextToken is empty on the last page.
type ListTablesResponse struct {
	Catalog   string
	Tables    []TableName
	NextToken string
}

// GetTableRequest asks for a table's schema.
type GetTableRequest struct {
	QueryID string
	Catalog string
	Table   TableName
}

// GetTableResponse carries a resolved table schema.
type GetTableResponse struct {
	Catalog          string
	Table            TableName
	Schema           *arrow.Schema
	PartitionColumns []string
}

// PartitionIDColumn names the synthetic partition column emitted for
// unpartitioned tables.
const PartitionIDColumn = "partition_id"

// GetPartitionsRequest asks for the partitions of a table matching Predicate.
type GetPartitionsRequest struct {
	QueryID   string
	Catalog   string
	Table     TableName
	Predicate Predicate
}

// GetPartitionsResponse lists partition rows, keyed by partition column.
type GetPartitionsResponse struct {
	Catalog          string
	Table            TableName
	PartitionColumns []string
	Rows             []map[string]string
}

// GetSplitsRequest asks for the splits of a table. ContinuationToken resumes
// a paged response.
type GetSplitsRequest struct {
	QueryID           string
	Catalog           string
	Table             TableName
	Partitions        []map[string]string
	Predicate         Predicate
	ContinuationToken string
}

// GetSplitsResponse carries planned splits. ContinuationToken is empty when
// no further pages remain.
type GetSplitsResponse struct {
	Catalog           string
	Splits            []Split
	ContinuationToken string
}

// GetDataSourceConfigsRequest asks for the effective source configuration.
type GetDataSourceConfigsRequest struct {
	QueryID string
	Catalog string
}

// GetDataSourceConfigsResponse carries configuration with sensitive values
// redacted.
type GetDataSourceConfigsResponse struct {
	Catalog string
	Configs map[string]string
}
