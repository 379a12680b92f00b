package policy

import "time"

// Item is a cached value plus the metadata strategies need for expiry and
// eviction decisions. Timestamps are UnixNano values from the strategy clock.
//
// An update replaces the whole item; Size is never recomputed in place.
type Item[V any] struct {
	Key   string
	Value V

	Created  int64
	Accessed int64

	// Hits counts successful reads since insertion.
	Hits uint64

	// Size is the estimated cost, fixed at insertion.
	Size int64

	// TTL is relative to Created. Zero means no TTL.
	TTL time.Duration
}

// Expired reports whether the TTL has elapsed at now.
func (it *Item[V]) Expired(now int64) bool {
	if it.TTL <= 0 {
		return false
	}
	return now-it.Created > int64(it.TTL)
}

// Deadline returns the absolute expiry in UnixNano, or 0 without a TTL.
func (it *Item[V]) Deadline() int64 {
	if it.TTL <= 0 {
		return 0
	}
	return it.Created + int64(it.TTL)
}

// Remaining returns the lifetime left at now. ok is false for items
// without a TTL.
func (it *Item[V]) Remaining(now int64) (d time.Duration, ok bool) {
	if it.TTL <= 0 {
		return 0, false
	}
	left := time.Duration(it.Deadline() - now)
	if left < 0 {
		left = 0
	}
	return left, true
}

// Touch records a successful read at now.
func (it *Item[V]) Touch(now int64) {
	if now > it.Accessed {
		it.Accessed = now
	}
	it.Hits++
}
