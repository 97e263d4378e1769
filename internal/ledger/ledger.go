package ledger

import "fmt"

// compactThreshold is the number of retired entries after which the backing
// slice is compacted on the next Truncate.
const compactThreshold = 1024

// Snapshot is an immutable copy of the live part of a Ledger.
type Snapshot struct {
	Generation uint64
	Sizes      []uintptr
}

// Sum returns the total number of bytes covered by the snapshot.
func (s Snapshot) Sum() uintptr {
	var total uintptr
	for _, n := range s.Sizes {
		total += n
	}
	return total
}

// Ledger is an append-only log of block sizes.
type Ledger struct {
	sizes      []uintptr
	first      int     // index of the first live entry
	sum        uintptr // bytes covered by live entries
	generation uint64
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{generation: 1}
}

// Len returns the number of live blocks.
func (l *Ledger) Len() int {
	return len(l.sizes) - l.first
}

// Empty reports whether no block has been recorded.
func (l *Ledger) Empty() bool {
	return l.Len() == 0
}

// Sum returns the number of bytes covered by live blocks.
func (l *Ledger) Sum() uintptr {
	return l.sum
}

// Generation returns the current generation.
func (l *Ledger) Generation() uint64 {
	return l.generation
}

// Append records a new block and returns its index.
func (l *Ledger) Append(size uintptr) int {
	l.sizes = append(l.sizes, size)
	l.sum += size
	return l.Len() - 1
}

// Grow adds delta bytes to the most recent block.
func (l *Ledger) Grow(delta uintptr) {
	if l.Empty() {
		panic("ledger: grow on empty ledger")
	}
	l.sizes[len(l.sizes)-1] += delta
	l.sum += delta
}

// At returns the size of the i-th live block.
func (l *Ledger) At(i int) uintptr {
	return l.sizes[l.first+i]
}

// Snapshot copies the live blocks.
func (l *Ledger) Snapshot() Snapshot {
	live := l.sizes[l.first:]
	sizes := make([]uintptr, len(live))
	copy(sizes, live)
	return Snapshot{Generation: l.generation, Sizes: sizes}
}

// Truncate retires the first n live blocks.
func (l *Ledger) Truncate(n int) error {
	if n < 0 || n > l.Len() {
		return fmt.Errorf("ledger: truncate %d of %d blocks", n, l.Len())
	}
	if n == 0 {
		return nil
	}
	for _, size := range l.sizes[l.first : l.first+n] {
		l.sum -= size
	}
	l.first += n
	l.generation++

	if l.first >= compactThreshold || l.first == len(l.sizes) {
		l.sizes = append(l.sizes[:0], l.sizes[l.first:]...)
		l.first = 0
	}
	return nil
}

// Reset drops every block.
func (l *Ledger) Reset() {
	l.sizes = l.sizes[:0]
	l.first = 0
	l.sum = 0
	l.generation++
}
