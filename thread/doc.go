// Package thread models the mutator threads that allocate from a space.
//
// A Thread owns at most one thread-local allocation buffer (TLAB) at a time:
// a [Start, End) slice of a space handed out by the space's slow path. The
// owning goroutine bumps Pos through AllocTLAB without any locking until the
// buffer is exhausted, then asks the space for a new one.
//
// List is the registry of live threads. Code that must see every thread
// (global byte counts, revoking all buffers) acquires the registry locks in
// a fixed order:
//
//	runtime-shutdown lock -> thread-list lock -> space structural lock
//
// List.WithLocked takes the first two; the space takes the third itself.
//
// # Ownership
//
// Only the owning goroutine may call AllocTLAB. Resetting another thread's
// TLAB (revocation) is only meaningful while that thread is not allocating,
// e.g. during a pause; the fields are atomics so that such cross-thread
// access is still free of data races.
package thread
