package testutil

import (
	"errors"
	"math/rand"
	"sync"

	"github.com/hupe1980/bumpspace"
	"github.com/hupe1980/bumpspace/internal/mem"
	"github.com/hupe1980/bumpspace/object"
	"github.com/hupe1980/bumpspace/thread"
)

// ErrExhausted is returned by Mutator.Alloc when the space is full.
var ErrExhausted = errors.New("testutil: space exhausted")

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)), //nolint:gosec // deterministic test data
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// ObjectSizes returns n object sizes in [minSize, maxSize]. minSize is
// raised to object.HeaderSize.
// Locks only once per call.
func (r *RNG) ObjectSizes(n int, minSize, maxSize uintptr) []uintptr {
	minSize = max(minSize, object.HeaderSize)
	maxSize = max(maxSize, minSize)
	span := int(maxSize - minSize + 1)

	r.mu.Lock()
	defer r.mu.Unlock()
	sizes := make([]uintptr, n)
	for i := range sizes {
		sizes[i] = minSize + uintptr(r.rand.Intn(span))
	}
	return sizes
}

// Mutator allocates objects for one thread through TLABs, refreshing the
// buffer from the space when it runs out.
type Mutator struct {
	Space    *bumpspace.Space
	Thread   *thread.Thread
	TLABSize uintptr
	Class    uint32

	// Bulk is the total of the bytes handed to the thread as TLABs.
	Bulk uint64
}

// Alloc allocates and publishes an object of size bytes.
func (m *Mutator) Alloc(size uintptr) (uintptr, error) {
	addr, ok := m.Thread.AllocTLAB(size)
	if !ok {
		bulk, ok := m.Space.AllocNewTLAB(m.Thread, max(m.TLABSize, mem.RoundUp(size, bumpspace.Alignment)))
		if !ok {
			return 0, ErrExhausted
		}
		m.Bulk += uint64(bulk)
		addr, _ = m.Thread.AllocTLAB(size)
	}
	object.Header{}.Init(m.Space.Pointer(addr), m.Class, uint32(size))
	return addr, nil
}

// AllocAll allocates an object for every size and returns their addresses.
func (m *Mutator) AllocAll(sizes []uintptr) ([]uintptr, error) {
	addrs := make([]uintptr, 0, len(sizes))
	for _, size := range sizes {
		addr, err := m.Alloc(size)
		if err != nil {
			return addrs, err
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}
