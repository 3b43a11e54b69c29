package api

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"

	"fedcat/internal/domain"
)

// ListSchemasResponse is the JSON form of domain.ListSchemasResponse.
type ListSchemasResponse struct {
	Catalog string   `json:"catalog"`
	Schemas []string `json:"schemas"`
}

// TableName is the JSON form of domain.TableName.
type TableName struct {
	Schema string `json:"schema"`
	Table  string `json:"table"`
}

// ListTablesResponse is the JSON form of domain.ListTablesResponse.
type ListTablesResponse struct {
	Catalog   string      `json:"catalog"`
	Tables    []TableName `json:"tables"`
	NextToken string      `json:"next_token,omitempty"`
}

// Field summarises one top-level schema field.
type Field struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// GetTableResponse carries the schema both as a field summary and as a
// base64 Arrow IPC schema message.
type GetTableResponse struct {
	Catalog          string    `json:"catalog"`
	Table            TableName `json:"table"`
	Fields           []Field   `json:"fields"`
	PartitionColumns []string  `json:"partition_columns"`
	ArrowSchema      string    `json:"arrow_schema"`
}

// GetPartitionsRequest is the body of a partitions call.
type GetPartitionsRequest struct {
	QueryID   string              `json:"query_id"`
	Predicate map[string][]string `json:"predicate,omitempty"`
}

// GetPartitionsResponse is the JSON form of domain.GetPartitionsResponse.
type GetPartitionsResponse struct {
	Catalog          string              `json:"catalog"`
	PartitionColumns []string            `json:"partition_columns"`
	Rows             []map[string]string `json:"rows"`
}

// GetSplitsRequest is the body of a splits call.
type GetSplitsRequest struct {
	QueryID           string              `json:"query_id"`
	ContinuationToken string              `json:"continuation_token,omitempty"`
	Partitions        []map[string]string `json:"partitions,omitempty"`
	Predicate         map[string][]string `json:"predicate,omitempty"`
}

// EncryptionKey is the JSON form of domain.EncryptionKey. Bytes encode as
// base64.
type EncryptionKey struct {
	Key   []byte `json:"key"`
	Nonce []byte `json:"nonce"`
}

// Split is one planned split as handed to readers.
type Split struct {
	Properties    map[string]string `json:"properties"`
	SpillLocation string            `json:"spill_location,omitempty"`
	EncryptionKey *EncryptionKey    `json:"encryption_key,omitempty"`
}

// GetSplitsResponse is the JSON form of domain.GetSplitsResponse.
type GetSplitsResponse struct {
	Catalog           string  `json:"catalog"`
	Splits            []Split `json:"splits"`
	ContinuationToken string  `json:"continuation_token,omitempty"`
}

// GetDataSourceConfigsResponse is the JSON form of
// domain.GetDataSourceConfigsResponse.
type GetDataSourceConfigsResponse struct {
	Catalog string            `json:"catalog"`
	Configs map[string]string `json:"configs"`
}

// === Mapping helpers ===

func ListSchemasFromDomain(r *domain.ListSchemasResponse) ListSchemasResponse {
	schemas := r.Schemas
	if schemas == nil {
		schemas = []string{}
	}
	return ListSchemasResponse{Catalog: r.Catalog, Schemas: schemas}
}

func ListTablesFromDomain(r *domain.ListTablesResponse) ListTablesResponse {
	tables := make([]TableName, len(r.Tables))
	for i, t := range r.Tables {
		tables[i] = TableName{Schema: t.Schema, Table: t.Table}
	}
	return ListTablesResponse{Catalog: r.Catalog, Tables: tables, NextToken: r.NextToken}
}

func GetTableFromDomain(r *domain.GetTableResponse) (GetTableResponse, error) {
	encoded, err := EncodeSchema(r.Schema)
	if err != nil {
		return GetTableResponse{}, err
	}
	fields := make([]Field, r.Schema.NumFields())
	for i, f := range r.Schema.Fields() {
		fields[i] = Field{Name: f.Name, Type: f.Type.String(), Nullable: f.Nullable}
	}
	partitions := r.PartitionColumns
	if partitions == nil {
		partitions = []string{}
	}
	return GetTableResponse{
		Catalog:          r.Catalog,
		Table:            TableName{Schema: r.Table.Schema, Table: r.Table.Table},
		Fields:           fields,
		PartitionColumns: partitions,
		ArrowSchema:      encoded,
	}, nil
}

func GetPartitionsFromDomain(r *domain.GetPartitionsResponse) GetPartitionsResponse {
	return GetPartitionsResponse{Catalog: r.Catalog, PartitionColumns: r.PartitionColumns, Rows: r.Rows}
}

func GetSplitsFromDomain(r *domain.GetSplitsResponse) GetSplitsResponse {
	out := make([]Split, len(r.Splits))
	for i, s := range r.Splits {
		out[i] = Split{Properties: s.Properties(), SpillLocation: s.SpillLocation.URI}
		if s.EncryptionKey != nil {
			out[i].EncryptionKey = &EncryptionKey{Key: s.EncryptionKey.Key, Nonce: s.EncryptionKey.Nonce}
		}
	}
	return GetSplitsResponse{Catalog: r.Catalog, Splits: out, ContinuationToken: r.ContinuationToken}
}

func GetDataSourceConfigsFromDomain(r *domain.GetDataSourceConfigsResponse) GetDataSourceConfigsResponse {
	return GetDataSourceConfigsResponse{Catalog: r.Catalog, Configs: r.Configs}
}

// EncodeSchema serialises s as an Arrow IPC stream holding only the schema
// message, base64 encoded.
func EncodeSchema(s *arrow.Schema) (string, error) {
	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(s))
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("encode arrow schema: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeSchema reverses EncodeSchema.
func DecodeSchema(encoded string) (*arrow.Schema, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode arrow schema: %w", err)
	}
	r, err := ipc.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("read arrow schema: %w", err)
	}
	defer r.Release()
	return r.Schema(), nil
}
