package bumpspace

import (
	"github.com/hupe1980/bumpspace/internal/mem"
)

// BlockSnapshot is a copy of a space's block ledger.
type BlockSnapshot struct {
	// MainBlockSize is the size of the implicit first block.
	MainBlockSize uintptr
	// Blocks holds the explicit block sizes in address order. It is nil
	// when no block has been carved.
	Blocks []uintptr
	// Generation changes whenever blocks are retired or the space is
	// cleared.
	Generation uint64
}

// Total returns the bytes covered by the snapshot.
func (b BlockSnapshot) Total() uintptr {
	total := b.MainBlockSize
	for _, n := range b.Blocks {
		total += n
	}
	return total
}

// BlockSizes returns a copy of the block ledger. When no block has been
// carved yet, the main block is first brought up to date with End.
func (s *Space) BlockSizes() BlockSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.blocks.Empty() {
		s.updateMainBlockLocked()
		return BlockSnapshot{
			MainBlockSize: s.mainBlockSize,
			Generation:    s.blocks.Generation(),
		}
	}
	snap := s.blocks.Snapshot()
	return BlockSnapshot{
		MainBlockSize: s.mainBlockSize,
		Blocks:        snap.Sizes,
		Generation:    snap.Generation,
	}
}

// SetBlockSizes is called by a compacting collector after it has slid live
// objects towards Begin. The first firstValidIdx blocks are retired, the
// main block becomes mainBlockSize bytes, and End is moved to cover exactly
// the main block plus the remaining blocks. It returns the new End.
func (s *Space) SetBlockSizes(mainBlockSize uintptr, firstValidIdx int) uintptr {
	if !mem.IsAligned(mainBlockSize, Alignment) {
		invariant("SetBlockSizes", "main block size %d not aligned", mainBlockSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.blocks.Truncate(firstValidIdx); err != nil {
		invariant("SetBlockSizes", "%v", err)
	}
	s.mainBlockSize = mainBlockSize

	end := s.begin + mainBlockSize + s.blocks.Sum()
	if end > s.GrowthEnd() {
		invariant("SetBlockSizes", "end %#x beyond growth end %#x", end, s.GrowthEnd())
	}
	s.end.Store(end)
	s.hasBlocks.Store(!s.blocks.Empty())
	return end
}
