package domain

import (
	"github.com/apache/arrow-go/v18/arrow"
)

// TableName identifies a table within a schema (a domain or namespace).
type TableName struct {
	Schema string
	Table  string
}

func (t TableName) String() string {
	return t.Schema + "." + t.Table
}

// TableSchema is the resolved field layout of a table. PartitionColumns is
// empty for sources without partitioning.
type TableSchema struct {
	Schema           *arrow.Schema
	PartitionColumns []string
}

// PhysicalObject is one physical constituent of a logical table, e.g. a
// backing index of a data stream.
type PhysicalObject struct {
	Name string
}

// ShardStateStarted is the state of a shard copy that is active and serving.
const ShardStateStarted = "STARTED"

// Shard is one copy of a shard as reported by the source's health API.
type Shard struct {
	Object  string
	ID      int
	Primary bool
	State   string
}

// Eligible reports whether the shard copy may be planned as a split: a
// started primary.
func (s Shard) Eligible() bool {
	return s.Primary && s.State == ShardStateStarted
}

// RegistryColumn is one column as described by the authoritative registry,
// using the registry's type string notation.
type RegistryColumn struct {
	Name    string
	Type    string
	Comment string
}

// RegistryTable is a table definition found in the authoritative registry.
type RegistryTable struct {
	Columns       []RegistryColumn
	PartitionKeys []RegistryColumn
	Parameters    map[string]string
}
