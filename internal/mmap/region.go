package mmap

import (
	"sync/atomic"
	"unsafe"

	"github.com/hupe1980/bumpspace/internal/mem"
)

// Region is a contiguous anonymous reservation of virtual memory.
//
// The reservation never moves. Its reported size starts at the full capacity
// and can only shrink (SetSize); memory in [Begin, Begin+Capacity) stays
// mapped until Close.
type Region struct {
	data   []byte
	base   unsafe.Pointer
	size   atomic.Int64
	closed atomic.Bool
	unmap  func([]byte) error
}

// ReserveAnon maps capacity bytes of zero-filled anonymous memory.
// capacity is rounded up to the page size.
func ReserveAnon(capacity int) (*Region, error) {
	if capacity <= 0 {
		return nil, ErrInvalidSize
	}
	rounded := int(mem.RoundUp(uintptr(capacity), mem.PageSize()))

	data, unmap, err := osMapAnon(rounded)
	if err != nil {
		return nil, err
	}

	r := &Region{
		data:  data,
		base:  unsafe.Pointer(unsafe.SliceData(data)), //nolint:gosec // off-heap memory has a stable address
		unmap: unmap,
	}
	r.size.Store(int64(rounded))
	return r, nil
}

// Begin returns the address of the first byte of the reservation.
func (r *Region) Begin() uintptr {
	return uintptr(r.base)
}

// End returns Begin plus the current size.
func (r *Region) End() uintptr {
	return r.Begin() + uintptr(r.Size())
}

// Size returns the current reported size in bytes.
func (r *Region) Size() int {
	return int(r.size.Load())
}

// Capacity returns the size of the reservation in bytes.
func (r *Region) Capacity() int {
	return len(r.data)
}

// Contains reports whether addr lies inside [Begin, End).
func (r *Region) Contains(addr uintptr) bool {
	return addr >= r.Begin() && addr < r.End()
}

// Pointer converts an address inside the reservation to an unsafe.Pointer.
// It performs no bounds checking.
func (r *Region) Pointer(addr uintptr) unsafe.Pointer {
	return unsafe.Add(r.base, addr-r.Begin()) //nolint:gosec // unsafe is required for address arithmetic
}

// Bytes returns the memory in [begin, end) as a slice.
func (r *Region) Bytes(begin, end uintptr) ([]byte, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}
	if begin < r.Begin() || end < begin || end > r.Begin()+uintptr(len(r.data)) {
		return nil, ErrOutOfBounds
	}
	lo, hi := begin-r.Begin(), end-r.Begin()
	return r.data[lo:hi:hi], nil
}

// Release hands the physical pages backing [begin, end) back to the OS.
// Afterwards the range reads as zero. Partial pages at either edge are
// zeroed in place.
func (r *Region) Release(begin, end uintptr) error {
	b, err := r.Bytes(begin, end)
	if err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}

	pageSize := mem.PageSize()
	pageBegin := mem.RoundUp(begin, pageSize)
	pageEnd := mem.RoundDown(end, pageSize)
	if pageBegin >= pageEnd {
		clear(b)
		return nil
	}

	clear(b[:pageBegin-begin])
	clear(b[pageEnd-begin:])
	return osRelease(b[pageBegin-begin : pageEnd-begin])
}

// SetSize lowers or restores the reported size. Pages beyond the new size are
// released. size must not exceed Capacity.
func (r *Region) SetSize(size int) error {
	if r.closed.Load() {
		return ErrClosed
	}
	if size < 0 || size > len(r.data) {
		return ErrInvalidSize
	}
	old := r.Size()
	r.size.Store(int64(size))
	if size < old {
		return r.Release(r.Begin()+uintptr(size), r.Begin()+uintptr(old))
	}
	return nil
}

// Advise provides hints to the kernel about how [begin, end) will be accessed.
func (r *Region) Advise(begin, end uintptr, pattern AccessPattern) error {
	b, err := r.Bytes(begin, end)
	if err != nil {
		return err
	}
	return osAdvise(b, pattern)
}

// Close unmaps the reservation. It is idempotent.
func (r *Region) Close() error {
	if r.closed.Swap(true) || r.unmap == nil {
		return nil
	}
	return r.unmap(r.data)
}
