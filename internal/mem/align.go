package mem

import (
	"math/bits"
	"os"
)

// ObjectAlignment is the byte alignment of every object and block in a space.
const ObjectAlignment = 8

// PageSize returns the operating system page size.
func PageSize() uintptr {
	return uintptr(os.Getpagesize())
}

// IsPowerOfTwo reports whether n is a power of two.
func IsPowerOfTwo(n uintptr) bool {
	return n != 0 && bits.OnesCount64(uint64(n)) == 1
}

// RoundUp rounds n up to the next multiple of align.
// align must be a power of two.
func RoundUp(n, align uintptr) uintptr {
	return (n + align - 1) &^ (align - 1)
}

// RoundDown rounds n down to a multiple of align.
// align must be a power of two.
func RoundDown(n, align uintptr) uintptr {
	return n &^ (align - 1)
}

// IsAligned reports whether n is a multiple of align.
// align must be a power of two.
func IsAligned(n, align uintptr) bool {
	return n&(align-1) == 0
}
