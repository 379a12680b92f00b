package util

import "math/bits"

// IsPowerOfTwo reports whether x is a non-zero power of two.
func IsPowerOfTwo(x uint64) bool { return x != 0 && x&(x-1) == 0 }

// NextPow2 rounds x up to a power of two. 0 and 1 map to 1; values above
// 1<<63 clamp to 1<<63.
func NextPow2(x uint64) uint64 {
	if x <= 1 {
		return 1
	}
	n := bits.Len64(x - 1)
	if n >= 64 {
		return 1 << 63
	}
	return 1 << n
}
