package util

import "runtime"

const maxShards = 256

// ReasonableShardCount is 2*GOMAXPROCS rounded up to a power of two,
// capped at 256.
func ReasonableShardCount() int {
	p := max(runtime.GOMAXPROCS(0), 1)
	return int(min(NextPow2(uint64(2*p)), maxShards))
}

// ShardCount resolves the configured shard count: 0 means one shard and a
// negative value picks ReasonableShardCount. The result never exceeds
// maxEntries so that every shard can hold at least one item.
func ShardCount(requested, maxEntries int) int {
	n := requested
	switch {
	case n == 0:
		n = 1
	case n < 0:
		n = ReasonableShardCount()
	}
	return max(min(n, maxEntries), 1)
}

// ShardIndex maps a key hash onto [0, shards). Power-of-two counts use a
// mask, anything else falls back to modulo.
func ShardIndex(hash uint64, shards int) int {
	switch {
	case shards <= 1:
		return 0
	case IsPowerOfTwo(uint64(shards)):
		return int(hash & uint64(shards-1))
	default:
		return int(hash % uint64(shards))
	}
}
