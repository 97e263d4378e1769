package thread

import (
	"fmt"
	"sync/atomic"

	"github.com/hupe1980/bumpspace/internal/mem"
)

// TLAB is a point-in-time copy of a thread-local allocation buffer.
type TLAB struct {
	Start uintptr // first byte of the buffer
	Pos   uintptr // next free byte
	End   uintptr // allocation end
	Limit uintptr // hard end of the reservation backing the buffer
}

// Size returns End - Start.
func (b TLAB) Size() uintptr {
	return b.End - b.Start
}

// Used returns Pos - Start.
func (b TLAB) Used() uintptr {
	return b.Pos - b.Start
}

// Thread is a mutator that allocates from spaces.
type Thread struct {
	id   uint64
	name string

	start atomic.Uintptr
	pos   atomic.Uintptr
	end   atomic.Uintptr
	limit atomic.Uintptr

	objects atomic.Uint64 // objects allocated in the current TLAB
}

// New returns a thread that is not registered with any List.
func New(id uint64, name string) *Thread {
	return &Thread{id: id, name: name}
}

// ID returns the thread id.
func (t *Thread) ID() uint64 {
	return t.id
}

// Name returns the thread name.
func (t *Thread) Name() string {
	return t.name
}

func (t *Thread) String() string {
	return fmt.Sprintf("Thread{id: %d, name: %q}", t.id, t.name)
}

// SetTLAB installs [start, end) as the thread's buffer with Pos at start.
// The previous buffer must have been revoked.
func (t *Thread) SetTLAB(start, end, limit uintptr) {
	if start > end || end > limit {
		panic(fmt.Sprintf("thread: invalid tlab [%#x, %#x) limit %#x", start, end, limit))
	}
	t.start.Store(start)
	t.pos.Store(start)
	t.end.Store(end)
	t.limit.Store(limit)
	t.objects.Store(0)
}

// ResetTLAB drops the buffer without any accounting.
func (t *Thread) ResetTLAB() {
	t.SetTLAB(0, 0, 0)
}

// HasTLAB reports whether the thread holds a non-empty buffer.
func (t *Thread) HasTLAB() bool {
	return t.start.Load() != 0
}

// TLAB returns a copy of the thread's buffer.
func (t *Thread) TLAB() TLAB {
	return TLAB{
		Start: t.start.Load(),
		Pos:   t.pos.Load(),
		End:   t.end.Load(),
		Limit: t.limit.Load(),
	}
}

// TLABRemaining returns the bytes left in the buffer.
func (t *Thread) TLABRemaining() uintptr {
	return t.end.Load() - t.pos.Load()
}

// AllocTLAB bumps the buffer by n bytes rounded up to the object alignment.
// It must only be called by the owning goroutine. ok is false when the
// buffer cannot hold n bytes; the buffer is left untouched in that case.
func (t *Thread) AllocTLAB(n uintptr) (addr uintptr, ok bool) {
	n = mem.RoundUp(n, mem.ObjectAlignment)
	pos := t.pos.Load()
	if n == 0 || n > t.end.Load()-pos {
		return 0, false
	}
	t.pos.Store(pos + n)
	t.objects.Add(1)
	return pos, true
}

// LocalBytesAllocated returns the bytes charged to the current buffer.
// The whole buffer counts as allocated from the moment it is handed out.
func (t *Thread) LocalBytesAllocated() uint64 {
	return uint64(t.end.Load() - t.start.Load())
}

// LocalObjectsAllocated returns the objects bumped into the current buffer.
func (t *Thread) LocalObjectsAllocated() uint64 {
	return t.objects.Load()
}
