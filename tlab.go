package bumpspace

import (
	"github.com/hupe1980/bumpspace/internal/mem"
	"github.com/hupe1980/bumpspace/thread"
)

// AllocNewTLAB revokes t's current buffer and installs a fresh block of
// bytes (rounded up to Alignment) as its new TLAB.
//
// The whole block counts as allocated by t from this moment on, so bulk is
// the number of bytes the caller should add to its own allocation budget.
// On exhaustion t is left without a buffer and ok is false; triggering a
// collection and retrying is up to the caller.
func (s *Space) AllocNewTLAB(t *thread.Thread, bytes uintptr) (bulk uintptr, ok bool) {
	bytes = mem.RoundUp(bytes, Alignment)
	if bytes == 0 {
		return 0, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if t.HasTLAB() && !s.ownsTLAB(t.TLAB()) {
		invariant("AllocNewTLAB", "%v holds a buffer outside space %q", t, s.name)
	}
	s.revokeLocked(t)

	start, ok := s.allocBlockLocked(bytes)
	if !ok {
		s.metrics.RecordTLABRefresh(uint64(bytes), false)
		s.failureLog.Do(func() {
			s.logger.LogAllocFailure(bytes, s.Limit()-s.End())
		})
		return 0, false
	}
	t.SetTLAB(start, start+bytes, start+bytes)
	s.metrics.RecordTLABRefresh(uint64(bytes), true)
	return bytes, true
}

// RevokeThreadLocalBuffers folds t's buffer into the space's counters and
// leaves t without a buffer. Buffers belonging to other spaces are left
// alone.
func (s *Space) RevokeThreadLocalBuffers(t *thread.Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revokeLocked(t)
}

// RevokeAllThreadLocalBuffers revokes the buffer of every thread in l.
func (s *Space) RevokeAllThreadLocalBuffers(l *thread.List) {
	l.WithLocked(func(threads []*thread.Thread) {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, t := range threads {
			s.revokeLocked(t)
		}
	})
}

func (s *Space) revokeLocked(t *thread.Thread) {
	tlab := t.TLAB()
	if tlab.Start == 0 || !s.ownsTLAB(tlab) {
		return
	}
	bytes := t.LocalBytesAllocated()
	objects := t.LocalObjectsAllocated()
	s.bytesAllocated.Add(bytes)
	s.objectsAllocated.Add(objects)
	t.ResetTLAB()
	s.metrics.RecordRevoke(bytes, objects)
}

func (s *Space) ownsTLAB(tlab thread.TLAB) bool {
	return tlab.Start >= s.begin && tlab.End <= s.Limit()
}

// BytesAllocated returns the bytes allocated in the space: the revoked
// total plus the full buffer of every thread in l still holding one here.
// A nil l returns the revoked total only. Without a prior revocation the
// result is a best-effort estimate under concurrent allocation.
func (s *Space) BytesAllocated(l *thread.List) uint64 {
	return s.allocated(l, &s.bytesAllocated, (*thread.Thread).LocalBytesAllocated)
}

// ObjectsAllocated is BytesAllocated for object counts.
func (s *Space) ObjectsAllocated(l *thread.List) uint64 {
	return s.allocated(l, &s.objectsAllocated, (*thread.Thread).LocalObjectsAllocated)
}

type globalCounter interface {
	Load() uint64
}

func (s *Space) allocated(l *thread.List, global globalCounter, local func(*thread.Thread) uint64) uint64 {
	if l == nil {
		return global.Load()
	}
	var total uint64
	l.WithLocked(func(threads []*thread.Thread) {
		s.mu.Lock()
		defer s.mu.Unlock()
		total = global.Load()
		// Buffers only exist once blocks were carved.
		if s.blocks.Empty() {
			return
		}
		for _, t := range threads {
			if tlab := t.TLAB(); tlab.Start != 0 && s.ownsTLAB(tlab) {
				total += local(t)
			}
		}
	})
	return total
}

// AssertThreadLocalBuffersAreRevoked panics if t still holds a buffer in
// this space. It only checks when debug checks are enabled.
func (s *Space) AssertThreadLocalBuffersAreRevoked(t *thread.Thread) {
	if !s.debugChecks {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assertRevokedLocked(t)
}

// AssertAllThreadLocalBuffersAreRevoked runs AssertThreadLocalBuffersAreRevoked
// for every thread in l.
func (s *Space) AssertAllThreadLocalBuffersAreRevoked(l *thread.List) {
	if !s.debugChecks {
		return
	}
	l.WithLocked(func(threads []*thread.Thread) {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, t := range threads {
			s.assertRevokedLocked(t)
		}
	})
}

func (s *Space) assertRevokedLocked(t *thread.Thread) {
	if tlab := t.TLAB(); tlab.Start != 0 && s.ownsTLAB(tlab) {
		invariant("AssertThreadLocalBuffersAreRevoked", "%v still holds [%#x, %#x)", t, tlab.Start, tlab.End)
	}
}
