package domain

import "strconv"

// Split property keys understood by the record reader.
const (
	SplitIndexKey      = "index"
	SplitShardKey      = "shard"
	ShardRoutingPrefix = "_shards:"
)

// SpillLocation is where a reader may spill result blocks for a split.
type SpillLocation struct {
	URI string
}

// EncryptionKey is a symmetric key handed to readers for spilled data.
type EncryptionKey struct {
	Key   []byte
	Nonce []byte
}

// Split is one unit of parallel scan work. Routing is empty when the split
// covers a whole table rather than one shard.
type Split struct {
	Domain        string
	Endpoint      string
	Object        string
	Shard         int
	Routing       string
	SpillLocation SpillLocation
	EncryptionKey *EncryptionKey
}

// ShardRouting renders the request preference addressing one shard.
func ShardRouting(shard int) string {
	return ShardRoutingPrefix + strconv.Itoa(shard)
}

// Properties renders the reader-facing property map of the split.
func (s Split) Properties() map[string]string {
	props := map[string]string{
		s.Domain:      s.Endpoint,
		SplitIndexKey: s.Object,
	}
	if s.Routing != "" {
		props[SplitShardKey] = s.Routing
	}
	return props
}
