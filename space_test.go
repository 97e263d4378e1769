package bumpspace_test

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/bumpspace"
	"github.com/hupe1980/bumpspace/object"
	"github.com/hupe1980/bumpspace/resource"
)

const kib = 1 << 10

var pageSize = uintptr(os.Getpagesize())

func newSpace(t testing.TB, capacity uintptr, opts ...bumpspace.Option) *bumpspace.Space {
	t.Helper()
	s, err := bumpspace.New(t.Name(), capacity, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// initObject publishes an object of size bytes at addr with the given class.
func initObject(s *bumpspace.Space, addr uintptr, class uint32, size uintptr) {
	object.Header{}.Init(s.Pointer(addr), class, uint32(size))
}

func TestNew(t *testing.T) {
	s := newSpace(t, 16*pageSize)

	assert.NotZero(t, s.Begin())
	assert.Equal(t, s.Begin(), s.End())
	assert.Equal(t, s.Begin()+16*pageSize, s.Limit())
	assert.Equal(t, s.Limit(), s.GrowthEnd())
	assert.Equal(t, 16*pageSize, s.Capacity())
	assert.Equal(t, 16*pageSize, s.NonGrowthLimitCapacity())
	assert.Zero(t, s.Size())
	assert.Equal(t, t.Name(), s.Name())
	assert.Zero(t, s.BytesAllocated(nil))
	assert.Zero(t, s.ObjectsAllocated(nil))
}

func TestNew_RoundsUpToPageSize(t *testing.T) {
	s := newSpace(t, 1)
	assert.Equal(t, pageSize, s.Capacity())
}

func TestNew_InvalidCapacity(t *testing.T) {
	s, err := bumpspace.New("zero", 0)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, bumpspace.ErrInvalidCapacity)
}

func TestNew_MemoryBudget(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: int64(16 * pageSize)})

	first, err := bumpspace.New("first", 16*pageSize, bumpspace.WithMemoryController(rc))
	require.NoError(t, err)
	assert.Equal(t, int64(16*pageSize), rc.MemoryUsage())

	second, err := bumpspace.New("second", pageSize, bumpspace.WithMemoryController(rc))
	assert.Nil(t, second)
	require.Error(t, err)
	assert.ErrorIs(t, err, bumpspace.ErrReservation)
	assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)

	var rerr *bumpspace.ReservationError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "second", rerr.Name)
	assert.Equal(t, pageSize, rerr.Capacity)
	assert.Contains(t, err.Error(), "failed to allocate pages")

	require.NoError(t, first.Close())
	assert.Zero(t, rc.MemoryUsage())
	require.NoError(t, first.Close(), "close is idempotent")

	second, err = bumpspace.New("second", pageSize, bumpspace.WithMemoryController(rc))
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestAlloc_MainBlock(t *testing.T) {
	s := newSpace(t, pageSize)

	a, ok := s.Alloc(10)
	require.True(t, ok)
	assert.Equal(t, s.Begin(), a)

	b, ok := s.Alloc(16)
	require.True(t, ok)
	assert.Equal(t, s.Begin()+16, b, "sizes are rounded up to the alignment")

	assert.Equal(t, uint64(32), s.BytesAllocated(nil))
	assert.Equal(t, uint64(2), s.ObjectsAllocated(nil))

	_, ok = s.Alloc(0)
	assert.False(t, ok)
	_, ok = s.Alloc(pageSize)
	assert.False(t, ok, "exceeds the growth end")
	assert.Equal(t, s.Begin()+32, s.End())

	c, ok := s.AllocThreadUnsafe(8)
	require.True(t, ok)
	assert.Equal(t, s.Begin()+32, c)
	assert.Equal(t, uint64(3), s.ObjectsAllocated(nil))
}

func TestAlloc_AfterBlocksWithDebugChecks(t *testing.T) {
	s := newSpace(t, pageSize, bumpspace.WithDebugChecks(true))

	_, ok := s.AllocBlock(64)
	require.True(t, ok)
	assert.Panics(t, func() { s.Alloc(8) })
}

func TestAllocBlock_Monotonic(t *testing.T) {
	s := newSpace(t, 64*kib)

	sizes := []uintptr{8, 100, 4 * kib, 24, 1000, 8 * kib}
	var prevEnd uintptr
	var sum uintptr
	for i, n := range sizes {
		start, ok := s.AllocBlock(n)
		require.True(t, ok, "block %d", i)
		if i > 0 {
			assert.GreaterOrEqual(t, start, prevEnd, "blocks must not overlap")
		}
		aligned := (n + bumpspace.Alignment - 1) &^ (bumpspace.Alignment - 1)
		prevEnd = start + aligned
		sum += aligned
	}

	assert.Equal(t, s.Begin()+sum, s.End())
	snap := s.BlockSizes()
	assert.Zero(t, snap.MainBlockSize)
	assert.Equal(t, []uintptr{8, 104, 4 * kib, 24, 1000, 8 * kib}, snap.Blocks)
	assert.Equal(t, s.End()-s.Begin(), snap.Total())
	assert.Equal(t, len(sizes), s.BlockCount())

	// Block memory is not counted until it is handed to a thread.
	assert.Zero(t, s.BytesAllocated(nil))
}

func TestAllocBlock_Exhaustion(t *testing.T) {
	s := newSpace(t, 64*kib)

	start, ok := s.AllocBlock(64 * kib)
	require.True(t, ok)
	assert.Equal(t, s.Begin(), start)

	_, ok = s.AllocBlock(8)
	assert.False(t, ok)
	_, ok = s.AllocBlock(0)
	assert.False(t, ok)
	assert.Equal(t, s.Limit(), s.End())
	assert.Equal(t, 1, s.BlockCount())
}

func TestAllocBlock_CapturesMainBlock(t *testing.T) {
	s := newSpace(t, pageSize)

	for range 3 {
		_, ok := s.Alloc(16)
		require.True(t, ok)
	}
	assert.Equal(t, uintptr(48), s.BlockSizes().MainBlockSize)

	start, ok := s.AllocBlock(1 * kib)
	require.True(t, ok)
	assert.Equal(t, s.Begin()+48, start)

	snap := s.BlockSizes()
	assert.Equal(t, uintptr(48), snap.MainBlockSize)
	assert.Equal(t, []uintptr{1 * kib}, snap.Blocks)
}

func TestAlignEnd(t *testing.T) {
	t.Run("with blocks", func(t *testing.T) {
		s := newSpace(t, pageSize)
		_, ok := s.AllocBlock(24)
		require.True(t, ok)

		end := s.AlignEnd(64)
		assert.Equal(t, s.Begin()+64, end)
		assert.Equal(t, end, s.End())
		assert.Equal(t, uint64(40), s.BytesAllocated(nil))
		assert.Equal(t, []uintptr{64}, s.BlockSizes().Blocks)

		assert.Equal(t, end, s.AlignEnd(64), "already aligned")
	})

	t.Run("main block", func(t *testing.T) {
		s := newSpace(t, pageSize)
		_, ok := s.Alloc(8)
		require.True(t, ok)

		assert.Equal(t, s.Begin()+32, s.AlignEnd(32))
		assert.Equal(t, uint64(32), s.BytesAllocated(nil))
		snap := s.BlockSizes()
		assert.Equal(t, uintptr(32), snap.MainBlockSize)
		assert.Nil(t, snap.Blocks)
	})

	t.Run("invalid alignment", func(t *testing.T) {
		s := newSpace(t, pageSize)
		assert.Panics(t, func() { s.AlignEnd(12) })
		assert.Panics(t, func() { s.AlignEnd(4) })
	})
}

func TestClear(t *testing.T) {
	metrics := &bumpspace.BasicMetricsCollector{}
	s := newSpace(t, 64*kib, bumpspace.WithMetricsCollector(metrics))

	start, ok := s.AllocBlock(8 * kib)
	require.True(t, ok)
	initObject(s, start, 3, 64)
	_, ok = s.AllocBlock(1 * kib)
	require.True(t, ok)

	require.NoError(t, s.Clear())

	assert.Zero(t, s.BytesAllocated(nil))
	assert.Zero(t, s.ObjectsAllocated(nil))
	assert.Equal(t, s.Begin(), s.End())
	assert.Zero(t, s.BlockCount())
	assert.Equal(t, s.Limit(), s.GrowthEnd())

	again, ok := s.AllocBlock(8 * kib)
	require.True(t, ok)
	assert.Equal(t, s.Begin(), again)
	assert.Zero(t, object.Header{}.Class(s.Pointer(again)), "released memory reads as zero")

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.Clears)
	assert.Equal(t, int64(64*kib), stats.ReleasedBytes)
}

func TestClear_Closed(t *testing.T) {
	s, err := bumpspace.New("closed", pageSize)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Clear(), bumpspace.ErrClosed)
}

func TestClampGrowthLimit(t *testing.T) {
	rc := resource.NewController(resource.Config{})
	s := newSpace(t, 16*pageSize, bumpspace.WithLiveShrink(true), bumpspace.WithMemoryController(rc))

	_, ok := s.AllocBlock(3*pageSize + 8)
	require.True(t, ok)
	end := s.End()

	// Enough free tail: applied as requested.
	assert.Equal(t, 12*pageSize, s.ClampGrowthLimit(12*pageSize))
	assert.Equal(t, s.Begin()+12*pageSize, s.Limit())
	assert.Equal(t, s.Limit(), s.GrowthEnd())
	assert.Equal(t, 12*pageSize, s.Capacity())
	assert.Equal(t, 16*pageSize, s.NonGrowthLimitCapacity())
	assert.Equal(t, int64(12*pageSize), rc.MemoryUsage())

	// Not enough free tail: stops at the page holding End.
	got := s.ClampGrowthLimit(2 * pageSize)
	assert.Equal(t, 4*pageSize, got)
	assert.GreaterOrEqual(t, s.Limit(), end, "live bytes are never cut")
	assert.Equal(t, end, s.End())

	// Growing is a no-op.
	assert.Equal(t, 4*pageSize, s.ClampGrowthLimit(32*pageSize))
	assert.Equal(t, int64(4*pageSize), rc.MemoryUsage())
}

func TestClampGrowthLimit_RequiresLiveShrink(t *testing.T) {
	s := newSpace(t, 4*pageSize)
	assert.Panics(t, func() { s.ClampGrowthLimit(pageSize) })
}

func TestSetBlockSizes(t *testing.T) {
	s := newSpace(t, 64*kib)

	for _, n := range []uintptr{1 * kib, 2 * kib, 4 * kib} {
		_, ok := s.AllocBlock(n)
		require.True(t, ok)
	}
	before := s.BlockSizes()

	// A compaction slid the first two blocks into a 512 byte main block.
	end := s.SetBlockSizes(512, 2)
	assert.Equal(t, s.Begin()+512+4*kib, end)
	assert.Equal(t, end, s.End())

	after := s.BlockSizes()
	assert.Equal(t, uintptr(512), after.MainBlockSize)
	assert.Equal(t, []uintptr{4 * kib}, after.Blocks)
	assert.NotEqual(t, before.Generation, after.Generation)
	assert.Equal(t, s.End()-s.Begin(), after.Total())

	// Retiring every block leaves only the main block.
	end = s.SetBlockSizes(1*kib, 1)
	assert.Equal(t, s.Begin()+1*kib, end)
	assert.Nil(t, s.BlockSizes().Blocks)

	assert.Panics(t, func() { s.SetBlockSizes(12, 0) })
	assert.Panics(t, func() { s.SetBlockSizes(0, 5) })
}

func TestAllocationSize(t *testing.T) {
	s := newSpace(t, pageSize)
	addr, ok := s.Alloc(100)
	require.True(t, ok)

	size, usable := s.AllocationSize(addr)
	assert.Zero(t, size)
	assert.Zero(t, usable)

	initObject(s, addr, 1, 100)
	size, usable = s.AllocationSize(addr)
	assert.Equal(t, uintptr(100), size)
	assert.Equal(t, uintptr(104), usable)
	assert.True(t, s.Contains(addr))
	assert.False(t, s.Contains(s.End()))
}

func TestLogFragmentationAllocFailure(t *testing.T) {
	s := newSpace(t, 64*kib)
	_, ok := s.AllocBlock(60 * kib)
	require.True(t, ok)

	var buf bytes.Buffer
	assert.False(t, s.LogFragmentationAllocFailure(&buf, 1*kib))
	assert.Empty(t, buf.String())

	assert.True(t, s.LogFragmentationAllocFailure(&buf, 8*kib))
	assert.Contains(t, buf.String(), "largest possible contiguous allocation 4096 bytes")
}

func TestString(t *testing.T) {
	s := newSpace(t, pageSize)
	assert.Contains(t, s.String(), t.Name()+" 0x")

	var buf bytes.Buffer
	require.NoError(t, s.Dump(&buf))
	assert.Contains(t, buf.String(), "blocks=0")
	assert.Contains(t, buf.String(), "capacity=")
}
