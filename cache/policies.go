package cache

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IvanBrykalov/tiercache/policy"
	"github.com/IvanBrykalov/tiercache/policy/fifo"
	"github.com/IvanBrykalov/tiercache/policy/lfu"
	"github.com/IvanBrykalov/tiercache/policy/lru"
	"github.com/IvanBrykalov/tiercache/policy/random"
	"github.com/IvanBrykalov/tiercache/policy/ttl"
	"github.com/IvanBrykalov/tiercache/policy/twoq"
)

// ErrUnknownPolicy is returned by PolicyByName for unrecognized names.
var ErrUnknownPolicy = errors.New("cache: unknown policy")

// PolicyNames lists the names accepted by PolicyByName.
var PolicyNames = []string{"lru", "lfu", "ttl", "fifo", "random", "2q"}

// PolicyByName returns the built-in policy for name (case-insensitive).
// defaultTTL is used by the ttl policy for untimed entries; seed drives the
// random policy. An empty name selects LRU.
func PolicyByName[V any](name string, defaultTTL time.Duration, seed uint64) (policy.Policy[V], error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "lru":
		return lru.New[V](), nil
	case "lfu":
		return lfu.New[V](), nil
	case "ttl":
		return ttl.New[V](defaultTTL), nil
	case "fifo":
		return fifo.New[V](), nil
	case "random":
		return random.New[V](seed), nil
	case "2q":
		return twoq.New[V](), nil
	default:
		return nil, fmt.Errorf("%w %q (want one of %s)", ErrUnknownPolicy, name, strings.Join(PolicyNames, ", "))
	}
}
