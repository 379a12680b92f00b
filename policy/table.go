package policy

import "time"

// Table is the key→item index with byte accounting that the built-in
// strategies compose with their own ordering structure. It knows nothing
// about ordering; strategies must keep their structure in step with every
// Insert and Delete they perform.
type Table[V any] struct {
	cfg   Config[V]
	clock Clock
	items map[string]*Item[V]
	bytes int64
}

// NewTable returns an empty table bound to cfg.
func NewTable[V any](cfg Config[V]) *Table[V] {
	clk := cfg.Clock
	if clk == nil {
		clk = SystemClock
	}
	return &Table[V]{
		cfg:   cfg,
		clock: clk,
		items: make(map[string]*Item[V]),
	}
}

// Now returns the current time from the configured clock.
func (t *Table[V]) Now() int64 { return t.clock.NowUnixNano() }

// Lookup returns the physical item for key, expired or not.
func (t *Table[V]) Lookup(key string) (*Item[V], bool) {
	it, ok := t.items[key]
	return it, ok
}

// Make builds a fresh item stamped with the current time and sized once.
func (t *Table[V]) Make(key string, v V, ttl time.Duration) *Item[V] {
	now := t.Now()
	var size int64
	if t.cfg.Sizer != nil {
		size = t.cfg.Sizer(v)
	} else {
		size = SizeOf(v)
	}
	if size < 0 {
		size = 0
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Item[V]{
		Key:      key,
		Value:    v,
		Created:  now,
		Accessed: now,
		Size:     size,
		TTL:      ttl,
	}
}

// Oversized reports whether it can never fit under MaxBytes.
func (t *Table[V]) Oversized(it *Item[V]) bool {
	return t.cfg.MaxBytes > 0 && it.Size > t.cfg.MaxBytes
}

// Full reports whether inserting size bytes under key would break a limit.
// An existing item for key is discounted since it will be replaced.
func (t *Table[V]) Full(key string, size int64) bool {
	n, b := len(t.items), t.bytes
	if old, ok := t.items[key]; ok {
		n--
		b -= old.Size
	}
	if n >= t.cfg.MaxEntries {
		return true
	}
	return t.cfg.MaxBytes > 0 && b+size > t.cfg.MaxBytes
}

// MakeRoom calls evict until size bytes fit under key or evict gives up.
func (t *Table[V]) MakeRoom(key string, size int64, evict func() []string) {
	for t.Full(key, size) {
		if len(evict()) == 0 {
			return
		}
	}
}

// Insert stores it, replacing and returning any previous item for its key.
func (t *Table[V]) Insert(it *Item[V]) (old *Item[V]) {
	old = t.items[it.Key]
	if old != nil {
		t.bytes -= old.Size
	}
	t.items[it.Key] = it
	t.bytes += it.Size
	return old
}

// Delete removes key and returns the removed item.
func (t *Table[V]) Delete(key string) (*Item[V], bool) {
	it, ok := t.items[key]
	if !ok {
		return nil, false
	}
	delete(t.items, key)
	t.bytes -= it.Size
	if t.bytes < 0 {
		t.bytes = 0
	}
	return it, true
}

// Notify reports an eviction to Config.OnEvict.
func (t *Table[V]) Notify(it *Item[V], reason EvictReason) {
	if cb := t.cfg.OnEvict; cb != nil {
		cb(it.Key, it.Value, reason)
	}
}

// Expired returns the keys of all items expired at now, unordered.
func (t *Table[V]) Expired(now int64) []string {
	var keys []string
	for k, it := range t.items {
		if it.Expired(now) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Len returns the number of resident items.
func (t *Table[V]) Len() int { return len(t.items) }

// Bytes returns the sum of resident item sizes.
func (t *Table[V]) Bytes() int64 { return t.bytes }

// Keys returns a snapshot of resident keys, unordered.
func (t *Table[V]) Keys() []string {
	keys := make([]string, 0, len(t.items))
	for k := range t.items {
		keys = append(keys, k)
	}
	return keys
}

// Reset drops every item.
func (t *Table[V]) Reset() {
	t.items = make(map[string]*Item[V])
	t.bytes = 0
}
