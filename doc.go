// Package bumpspace provides a bump-pointer allocation space for a
// garbage-collected runtime.
//
// A Space owns one contiguous, zero-filled virtual memory reservation and
// hands it out strictly in address order. Threads allocate in three ways:
//
//   - Main block: Alloc bumps the shared end pointer with a CAS. This is the
//     path for single-threaded or early allocation, before any block exists.
//   - Blocks: AllocBlock carves a range off the end under the structural
//     lock and records its size in the block ledger.
//   - TLABs: AllocNewTLAB carves a block and installs it as a thread-local
//     allocation buffer. The owning thread then bumps inside it with
//     thread.Thread.AllocTLAB, without any synchronization.
//
// # Quick Start
//
//	s, err := bumpspace.New("young", 64<<20)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	threads := thread.NewList()
//	t, _ := threads.Register("mutator-1")
//
//	if _, ok := s.AllocNewTLAB(t, 4096); !ok {
//	    // Space exhausted: collect, then retry.
//	}
//	addr, _ := t.AllocTLAB(100)
//	object.Header{}.Init(s.Pointer(addr), 7, 100) // publish the object
//
// # Accounting
//
// A TLAB counts as fully allocated from the moment it is handed out. Its
// bytes stay attributed to the owning thread until the buffer is revoked,
// at which point they are folded into the space's global counters.
// BytesAllocated and ObjectsAllocated take the thread registry as an
// argument and add the buffers that are still live:
//
//	s.RevokeAllThreadLocalBuffers(threads)
//	total := s.BytesAllocated(threads)
//
// Lock order is always: runtime-shutdown lock, thread-list lock, space lock.
// thread.List.WithLocked acquires the first two.
//
// # Walking
//
// Walk and Objects enumerate every initialized object in address order.
// They snapshot the block ledger under the lock and read memory without it.
// Objects are recognized through an object.Model; the default
// object.Header treats a zero class id as "not yet initialized", which marks
// the frontier of an allocation in flight. Memory past such a frontier in a
// block is skipped, never reinterpreted.
//
//	for obj := range s.Objects() {
//	    fmt.Println(obj.Addr, obj.Size, obj.Class())
//	}
//
// # Recycling
//
// Clear releases every physical page and resets the space to empty.
// ClampGrowthLimit lowers the capacity of a live space (WithLiveShrink)
// without ever cutting below End. SetBlockSizes lets a compacting
// collector retire a prefix of blocks after sliding objects down.
//
// # Observability
//
// Logging uses log/slog through Logger (WithLogger). Slow-path events are
// reported to a MetricsCollector (WithMetricsCollector); see
// metrics/prometheus for a Prometheus adapter. The heapdump package writes
// a compressed snapshot of a space for offline inspection.
package bumpspace
