package bumpspace

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"

	"github.com/hupe1980/bumpspace/internal/ledger"
	"github.com/hupe1980/bumpspace/internal/mem"
	"github.com/hupe1980/bumpspace/internal/mmap"
	"github.com/hupe1980/bumpspace/object"
	"github.com/hupe1980/bumpspace/resource"
)

// Alignment is the byte alignment of every object and block in a space.
const Alignment = mem.ObjectAlignment

// Space is a bump-pointer allocation space.
//
// The space owns a contiguous region [Begin, Limit). Everything below End is
// allocated. Memory handed out before the first block was carved is the main
// block; every later carve-out is an explicit block recorded in the ledger
// in address order.
type Space struct {
	name   string
	region *mmap.Region
	begin  uintptr

	// end may be read without the lock. It is written under mu, or by the
	// main-block CAS path while no blocks exist.
	end       atomic.Uintptr
	limit     atomic.Uintptr
	growthEnd atomic.Uintptr

	mu            sync.Mutex // structural lock
	mainBlockSize uintptr
	blocks        *ledger.Ledger
	hasBlocks     atomic.Bool

	// Allocation folded in by revoked TLABs and main-block allocation.
	bytesAllocated   atomic.Uint64
	objectsAllocated atomic.Uint64

	model       object.Model
	logger      *Logger
	metrics     MetricsCollector
	controller  *resource.Controller
	reserved    atomic.Int64
	debugChecks bool
	liveShrink  bool
	failureLog  rate.Sometimes
	closed      atomic.Bool
}

// New reserves a space of capacity bytes, rounded up to the page size.
//
// On failure it returns nil and a *ReservationError; the failure is also
// logged. Running out of reservations is fatal to the caller's allocation
// attempt but not to the process.
func New(name string, capacity uintptr, optFns ...Option) (*Space, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	logger := opts.logger.WithSpace(name)

	if capacity == 0 {
		return nil, ErrInvalidCapacity
	}
	capacity = mem.RoundUp(capacity, mem.PageSize())

	fail := func(err error) (*Space, error) {
		logger.LogReservationFailure(capacity, err)
		return nil, &ReservationError{Name: name, Capacity: capacity, cause: err}
	}

	if err := opts.controller.AcquireMemory(int64(capacity)); err != nil {
		return fail(err)
	}
	region, err := mmap.ReserveAnon(int(capacity))
	if err != nil {
		opts.controller.ReleaseMemory(int64(capacity))
		return fail(err)
	}

	s := &Space{
		name:        name,
		region:      region,
		begin:       region.Begin(),
		blocks:      ledger.New(),
		model:       opts.model,
		logger:      logger,
		metrics:     opts.metricsCollector,
		controller:  opts.controller,
		debugChecks: opts.debugChecks,
		liveShrink:  opts.liveShrink,
		failureLog:  rate.Sometimes{First: 1, Interval: time.Second},
	}
	s.reserved.Store(int64(capacity))
	s.end.Store(region.Begin())
	s.limit.Store(region.End())
	s.growthEnd.Store(region.End())

	logger.LogCreate(s.begin, capacity)
	return s, nil
}

// Name returns the space name.
func (s *Space) Name() string {
	return s.name
}

// Begin returns the address of the first byte of the space.
func (s *Space) Begin() uintptr {
	return s.begin
}

// End returns the current high-water mark. Concurrent allocation may move
// it forward at any time.
func (s *Space) End() uintptr {
	return s.end.Load()
}

// Limit returns the current end of usable memory.
func (s *Space) Limit() uintptr {
	return s.limit.Load()
}

// GrowthEnd returns the highest address allocation may reach.
func (s *Space) GrowthEnd() uintptr {
	return s.growthEnd.Load()
}

// Size returns End - Begin.
func (s *Space) Size() uintptr {
	return s.End() - s.begin
}

// Capacity returns the current reported size of the backing region.
func (s *Space) Capacity() uintptr {
	return uintptr(s.region.Size())
}

// NonGrowthLimitCapacity returns the size of the original reservation,
// ignoring any clamp.
func (s *Space) NonGrowthLimitCapacity() uintptr {
	return uintptr(s.region.Capacity())
}

// Contains reports whether addr lies in the allocated part of the space.
func (s *Space) Contains(addr uintptr) bool {
	return addr >= s.begin && addr < s.End()
}

// Pointer converts an address inside the space to a pointer for reading or
// initializing the object there.
func (s *Space) Pointer(addr uintptr) unsafe.Pointer {
	return s.region.Pointer(addr)
}

// AllocationSize returns the size of the object at addr as reported by the
// object model, and that size rounded up to Alignment. Both are zero when
// addr does not hold an initialized object.
func (s *Space) AllocationSize(addr uintptr) (size, usable uintptr) {
	size, ok := s.model.SizeOf(s.Pointer(addr))
	if !ok {
		return 0, 0
	}
	return size, mem.RoundUp(size, Alignment)
}

// updateMainBlockLocked records everything allocated so far as the main
// block. Only valid while no explicit block exists.
func (s *Space) updateMainBlockLocked() {
	if !s.blocks.Empty() {
		invariant("UpdateMainBlock", "called with %d blocks", s.blocks.Len())
	}
	s.mainBlockSize = s.End() - s.begin
}

// Clear releases all physical pages and resets the space to empty.
//
// Every TLAB in the space must have been revoked (or abandoned) first; any
// address handed out before Clear is invalid afterwards.
func (s *Space) Clear() error {
	if s.closed.Load() {
		return ErrClosed
	}
	released := s.Limit() - s.begin
	err := s.region.Release(s.begin, s.Limit())

	s.end.Store(s.begin)
	s.objectsAllocated.Store(0)
	s.bytesAllocated.Store(0)

	s.mu.Lock()
	s.growthEnd.Store(s.Limit())
	s.blocks.Reset()
	s.hasBlocks.Store(false)
	s.mainBlockSize = 0
	s.mu.Unlock()

	s.logger.LogClear(released, err)
	s.metrics.RecordClear(uint64(released))
	return err
}

// ClampGrowthLimit lowers the capacity of the space to newCapacity (rounded
// up to the page size) and returns the capacity actually applied. Live bytes
// are never invalidated: when the free tail is smaller than the requested
// reduction, the clamp stops at End.
//
// The space must have been created with WithLiveShrink(true).
func (s *Space) ClampGrowthLimit(newCapacity uintptr) uintptr {
	if !s.liveShrink {
		invariant("ClampGrowthLimit", "space %q does not support live shrinking", s.name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	growthEnd := s.growthEnd.Load()
	if growthEnd != s.Limit() {
		invariant("ClampGrowthLimit", "growth end %#x != limit %#x", growthEnd, s.Limit())
	}
	end := s.End()
	if end > growthEnd {
		invariant("ClampGrowthLimit", "end %#x beyond growth end %#x", end, growthEnd)
	}

	capacity := s.Capacity()
	newCapacity = min(mem.RoundUp(newCapacity, mem.PageSize()), capacity)
	freeCapacity := growthEnd - end
	clampSize := capacity - newCapacity
	if clampSize > freeCapacity {
		newCapacity = mem.RoundUp(newCapacity+clampSize-freeCapacity, mem.PageSize())
	}
	if newCapacity == capacity {
		return capacity
	}

	s.limit.Store(s.begin + newCapacity)
	s.growthEnd.Store(s.Limit())
	if err := s.region.SetSize(int(newCapacity)); err != nil {
		invariant("ClampGrowthLimit", "shrink region: %v", err)
	}

	returned := int64(capacity - newCapacity)
	s.reserved.Add(-returned)
	s.controller.ReleaseMemory(returned)

	s.logger.LogClamp(capacity, newCapacity)
	s.metrics.RecordClamp(uint64(capacity), uint64(newCapacity))
	return newCapacity
}

// LogFragmentationAllocFailure appends an explanation to w when an
// allocation of failedBytes failed because no contiguous range is large
// enough. It reports whether fragmentation was the cause; printing
// failedBytes itself is the caller's job.
func (s *Space) LogFragmentationAllocFailure(w io.Writer, failedBytes uintptr) bool {
	maxContiguous := s.Limit() - s.End()
	if failedBytes > maxContiguous {
		fmt.Fprintf(w, "; failed due to fragmentation (largest possible contiguous allocation %d bytes)",
			maxContiguous)
		return true
	}
	return false
}

func (s *Space) String() string {
	return fmt.Sprintf("%s %#x-%#x - %#x", s.name, s.begin, s.End(), s.Limit())
}

// Dump writes a human-readable description of the space to w.
func (s *Space) Dump(w io.Writer) error {
	s.mu.Lock()
	blocks := s.blocks.Len()
	mainBlock := s.mainBlockSize
	s.mu.Unlock()

	_, err := fmt.Fprintf(w, "%s size=%s capacity=%s main_block=%s blocks=%d bytes_allocated=%s objects_allocated=%d\n",
		s.String(),
		humanize.IBytes(uint64(s.Size())),
		humanize.IBytes(uint64(s.Capacity())),
		humanize.IBytes(uint64(mainBlock)),
		blocks,
		humanize.IBytes(s.bytesAllocated.Load()),
		s.objectsAllocated.Load(),
	)
	return err
}

// Close unmaps the region and returns its reservation to the memory budget.
// The space must not be used afterwards.
func (s *Space) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.controller.ReleaseMemory(s.reserved.Swap(0))
	return s.region.Close()
}
