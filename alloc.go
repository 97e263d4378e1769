package bumpspace

import (
	"github.com/hupe1980/bumpspace/internal/mem"
)

// Alloc bump-allocates n bytes, rounded up to Alignment, from the main
// block. It is lock-free and safe for concurrent use, but must not be mixed
// with block allocation: once the first block has been carved, main-block
// allocation is over until the next Clear.
//
// ok is false when the space is exhausted.
func (s *Space) Alloc(n uintptr) (addr uintptr, ok bool) {
	n = mem.RoundUp(n, Alignment)
	if n == 0 {
		return 0, false
	}
	if s.debugChecks && s.hasBlocks.Load() {
		invariant("Alloc", "main block allocation after %d blocks were carved", s.BlockCount())
	}
	for {
		old := s.end.Load()
		next := old + n
		if next > s.growthEnd.Load() || next < old {
			return 0, false
		}
		if s.end.CompareAndSwap(old, next) {
			s.objectsAllocated.Add(1)
			s.bytesAllocated.Add(uint64(n))
			return old, true
		}
	}
}

// AllocThreadUnsafe is Alloc for callers that already have exclusive access
// to the space, such as a collector running with the world stopped.
func (s *Space) AllocThreadUnsafe(n uintptr) (addr uintptr, ok bool) {
	n = mem.RoundUp(n, Alignment)
	if n == 0 {
		return 0, false
	}
	old := s.end.Load()
	next := old + n
	if next > s.growthEnd.Load() || next < old {
		return 0, false
	}
	s.end.Store(next)
	s.objectsAllocated.Add(1)
	s.bytesAllocated.Add(uint64(n))
	return old, true
}

// AllocBlock carves a block of bytes, rounded up to Alignment, off the end
// of the space and records it in the block ledger. The first call after
// creation or Clear fixes the main block at everything allocated before it.
//
// Block memory is not counted as allocated; callers that hand it out (see
// AllocNewTLAB) account for it themselves. ok is false when the space is
// exhausted.
func (s *Space) AllocBlock(bytes uintptr) (start uintptr, ok bool) {
	bytes = mem.RoundUp(bytes, Alignment)
	if bytes == 0 {
		return 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allocBlockLocked(bytes)
}

func (s *Space) allocBlockLocked(bytes uintptr) (uintptr, bool) {
	for {
		old := s.end.Load()
		next := old + bytes
		if next > s.growthEnd.Load() || next < old {
			return 0, false
		}
		if !s.end.CompareAndSwap(old, next) {
			// Lost against a main-block Alloc.
			continue
		}
		if s.blocks.Empty() {
			s.mainBlockSize = old - s.begin
		}
		s.blocks.Append(bytes)
		s.hasBlocks.Store(true)
		return old, true
	}
}

// AlignEnd advances End to the next multiple of alignment and returns the
// new End. The padding counts as allocated and, when blocks exist, is added
// to the most recent block so that the ledger keeps covering [Begin, End).
//
// The caller must have exclusive access to the space. alignment must be a
// power of two no smaller than Alignment.
func (s *Space) AlignEnd(alignment uintptr) uintptr {
	if !mem.IsPowerOfTwo(alignment) || alignment < Alignment {
		invariant("AlignEnd", "invalid alignment %d", alignment)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	end := s.End()
	aligned := mem.RoundUp(end, alignment)
	if aligned == end {
		return end
	}
	if aligned > s.GrowthEnd() {
		invariant("AlignEnd", "aligned end %#x beyond growth end %#x", aligned, s.GrowthEnd())
	}
	diff := aligned - end
	s.end.Store(aligned)
	s.bytesAllocated.Add(uint64(diff))
	if !s.blocks.Empty() {
		s.blocks.Grow(diff)
	}
	return aligned
}

// BlockCount returns the number of explicit blocks carved so far.
func (s *Space) BlockCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocks.Len()
}
