package bumpspace

import (
	"iter"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/bumpspace/internal/mem"
	"github.com/hupe1980/bumpspace/object"
)

// Walk calls fn for every initialized object in the space, in address
// order.
//
// The block ledger is snapshotted under the structural lock; the objects
// themselves are read without it. Inside each block the walk stops at the
// first object the model does not report as initialized, which is where a
// concurrent allocation may be in flight. Exact results require that no
// thread allocates during the walk.
func (s *Space) Walk(fn func(object.Object)) {
	s.walk(func(o object.Object) bool {
		fn(o)
		return true
	})
}

// Objects returns an iterator over the objects Walk would visit.
func (s *Space) Objects() iter.Seq[object.Object] {
	return s.walk
}

// Census returns the offsets from Begin of every object Walk would visit.
func (s *Space) Census() *roaring64.Bitmap {
	bm := roaring64.New()
	s.walk(func(o object.Object) bool {
		bm.Add(uint64(o.Addr - s.begin))
		return true
	})
	return bm
}

func (s *Space) walk(yield func(object.Object) bool) {
	started := time.Now()

	s.mu.Lock()
	if s.blocks.Empty() {
		s.updateMainBlockLocked()
	}
	mainEnd := s.begin + s.mainBlockSize
	snap := s.blocks.Snapshot()
	s.mu.Unlock()

	end := mainEnd + snap.Sum()
	visited := 0

	done := false
	visit := func(lo, hi uintptr) {
		for pos := lo; pos < hi; {
			p := s.Pointer(pos)
			size, ok := s.model.SizeOf(p)
			if !ok {
				return
			}
			if size == 0 || size > hi-pos {
				invariant("Walk", "object at %#x has size %d, range ends at %#x", pos, size, hi)
			}
			visited++
			if !yield(object.Object{Addr: pos, Size: size, Ptr: p}) {
				done = true
				return
			}
			pos += mem.RoundUp(size, Alignment)
		}
	}

	visit(s.begin, mainEnd)
	pos := mainEnd
	for _, size := range snap.Sizes {
		if done {
			break
		}
		visit(pos, pos+size)
		// A partially filled buffer leaves a tail that belongs to no object.
		pos += size
	}

	if !done && pos != end {
		invariant("Walk", "walk ended at %#x, want %#x (generation %d)", pos, end, snap.Generation)
	}
	s.metrics.RecordWalk(visited, time.Since(started))
}
