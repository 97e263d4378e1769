package bumpspace_test

import (
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/bumpspace"
	"github.com/hupe1980/bumpspace/object"
	"github.com/hupe1980/bumpspace/testutil"
	"github.com/hupe1980/bumpspace/thread"
)

func collect(s *bumpspace.Space) []object.Object {
	var out []object.Object
	for o := range s.Objects() {
		out = append(out, o)
	}
	return out
}

func TestWalk_Empty(t *testing.T) {
	s := newSpace(t, pageSize)
	assert.Empty(t, collect(s))
	assert.True(t, s.Census().IsEmpty())
}

func TestWalk_MainBlock(t *testing.T) {
	s := newSpace(t, pageSize)

	var want []uintptr
	for i, size := range []uintptr{8, 24, 100, 16} {
		addr, ok := s.Alloc(size)
		require.True(t, ok)
		initObject(s, addr, uint32(i+1), size)
		want = append(want, addr)
	}

	objs := collect(s)
	require.Len(t, objs, len(want))
	for i, o := range objs {
		assert.Equal(t, want[i], o.Addr)
		assert.Equal(t, uint32(i+1), o.Class())
		assert.Len(t, o.Bytes(), int(o.Size))
	}
}

func TestWalk_StopsAtMainBlockFrontier(t *testing.T) {
	s := newSpace(t, pageSize)

	a, _ := s.Alloc(32)
	initObject(s, a, 1, 32)
	_, _ = s.Alloc(32) // reserved but not yet published
	c, _ := s.Alloc(32)
	initObject(s, c, 3, 32)

	objs := collect(s)
	require.Len(t, objs, 1)
	assert.Equal(t, a, objs[0].Addr)
}

func TestWalk_PartialTLABs(t *testing.T) {
	s := newSpace(t, 64*kib)
	threads := thread.NewList()
	t1 := register(t, threads, "T1")
	t2 := register(t, threads, "T2")

	_, ok := s.AllocNewTLAB(t1, 4*kib)
	require.True(t, ok)
	first := fillTLAB(t, s, t1, 10, 100)

	_, ok = s.AllocNewTLAB(t2, 1*kib)
	require.True(t, ok)
	second := fillTLAB(t, s, t2, 4, 256)
	_, ok = t2.AllocTLAB(8)
	assert.False(t, ok, "second buffer is full")

	// The tail of the first buffer is skipped; the walk resumes at the
	// second block instead of reading the zero tail as objects.
	objs := collect(s)
	require.Len(t, objs, 14)
	for i, addr := range append(first, second...) {
		assert.Equal(t, addr, objs[i].Addr)
	}
	assert.Equal(t, s.Begin()+4*kib, objs[10].Addr)

	census := s.Census()
	assert.Equal(t, uint64(14), census.GetCardinality())
	assert.True(t, census.Contains(0))
	assert.True(t, census.Contains(4*kib))
	assert.False(t, census.Contains(10*104), "frontier slot in the first buffer")
}

func TestWalk_EarlyBreak(t *testing.T) {
	s := newSpace(t, pageSize)
	for i := range 5 {
		addr, ok := s.Alloc(16)
		require.True(t, ok)
		initObject(s, addr, uint32(i+1), 16)
	}

	var seen int
	for range s.Objects() {
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)
}

func TestWalk_CorruptSize(t *testing.T) {
	s := newSpace(t, pageSize)
	start, ok := s.AllocBlock(64)
	require.True(t, ok)
	initObject(s, start, 1, 128) // overruns its block

	assert.Panics(t, func() { s.Walk(func(object.Object) {}) })
}

// fixedModel treats every non-zero byte as the start of a 16 byte object.
type fixedModel struct{}

func (fixedModel) SizeOf(p unsafe.Pointer) (uintptr, bool) {
	if *(*byte)(p) == 0 {
		return 0, false
	}
	return 16, true
}

func TestWalk_CustomModel(t *testing.T) {
	s := newSpace(t, pageSize, bumpspace.WithObjectModel(fixedModel{}))
	for range 3 {
		addr, ok := s.Alloc(16)
		require.True(t, ok)
		*(*byte)(s.Pointer(addr)) = 0xff
	}
	assert.Len(t, collect(s), 3)
}

func TestWalk_AfterSetBlockSizes(t *testing.T) {
	s := newSpace(t, 64*kib)

	for range 3 {
		start, ok := s.AllocBlock(1 * kib)
		require.True(t, ok)
		initObject(s, start, 1, 64)
	}
	require.Len(t, collect(s), 3)

	// Compaction moved the survivors of the first two blocks into a
	// 1 KiB main block holding one object.
	s.SetBlockSizes(1*kib, 2)
	objs := collect(s)
	require.Len(t, objs, 2)
	assert.Equal(t, s.Begin(), objs[0].Addr)
	assert.Equal(t, s.Begin()+1*kib, objs[1].Addr)
}

func TestConcurrentTLABAllocation(t *testing.T) {
	const (
		workers   = 8
		perWorker = 2000
		tlabSize  = 4 * kib
	)

	s := newSpace(t, 32<<20, bumpspace.WithDebugChecks(true))
	threads := thread.NewList()

	var stop atomic.Bool

	var walkers errgroup.Group
	walkers.Go(func() error {
		for !stop.Load() {
			s.Walk(func(o object.Object) {
				assert.NotZero(t, o.Class())
				assert.GreaterOrEqual(t, o.Size, uintptr(object.HeaderSize))
			})
		}
		return nil
	})

	rng := testutil.NewRNG(42)
	mutators := make([]*testutil.Mutator, workers)
	var g errgroup.Group
	for w := range mutators {
		m := &testutil.Mutator{
			Space:    s,
			Thread:   register(t, threads, "worker"),
			TLABSize: tlabSize,
			Class:    uint32(w + 1),
		}
		mutators[w] = m
		sizes := rng.ObjectSizes(perWorker, 16, 256)
		g.Go(func() error {
			_, err := m.AllocAll(sizes)
			return err
		})
	}
	require.NoError(t, g.Wait())
	stop.Store(true)
	require.NoError(t, walkers.Wait())

	var bulkBytes uint64
	for _, m := range mutators {
		bulkBytes += m.Bulk
	}

	// Before revocation, live buffers are counted through the registry.
	assert.Equal(t, bulkBytes, s.BytesAllocated(threads))

	s.RevokeAllThreadLocalBuffers(threads)
	s.AssertAllThreadLocalBuffersAreRevoked(threads)

	assert.Equal(t, bulkBytes, s.BytesAllocated(threads))
	assert.Equal(t, uint64(workers*perWorker), s.ObjectsAllocated(threads))
	assert.Equal(t, uint64(workers*perWorker), s.Census().GetCardinality())
	assert.Equal(t, s.End()-s.Begin(), s.BlockSizes().Total())
}

func BenchmarkAllocTLAB(b *testing.B) {
	s := newSpace(b, 256<<20)
	th := thread.New(1, "bench")

	for b.Loop() {
		if _, ok := th.AllocTLAB(32); !ok {
			if _, ok := s.AllocNewTLAB(th, 32*kib); !ok {
				s.RevokeThreadLocalBuffers(th)
				require.NoError(b, s.Clear())
			}
		}
	}
}
