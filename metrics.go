package bumpspace

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting space metrics.
// Implement this interface to integrate with monitoring systems; see the
// metrics/prometheus package for a Prometheus adapter.
//
// Only slow paths report metrics. Bumping inside a TLAB never does.
type MetricsCollector interface {
	// RecordTLABRefresh is called after each AllocNewTLAB.
	// bytes is the requested (aligned) size, ok is false on exhaustion.
	RecordTLABRefresh(bytes uint64, ok bool)

	// RecordRevoke is called when a thread's buffer is folded into the
	// global counters.
	RecordRevoke(bytes, objects uint64)

	// RecordWalk is called after each completed walk.
	RecordWalk(objects int, duration time.Duration)

	// RecordClear is called after each Clear.
	RecordClear(released uint64)

	// RecordClamp is called after each ClampGrowthLimit.
	RecordClamp(oldCapacity, newCapacity uint64)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordTLABRefresh(uint64, bool) {}
func (NoopMetricsCollector) RecordRevoke(uint64, uint64)    {}
func (NoopMetricsCollector) RecordWalk(int, time.Duration)  {}
func (NoopMetricsCollector) RecordClear(uint64)             {}
func (NoopMetricsCollector) RecordClamp(uint64, uint64)     {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and tests without external dependencies.
type BasicMetricsCollector struct {
	TLABRefreshes  atomic.Int64
	TLABFailures   atomic.Int64
	TLABBytes      atomic.Int64
	Revokes        atomic.Int64
	RevokedBytes   atomic.Int64
	RevokedObjects atomic.Int64
	Walks          atomic.Int64
	WalkedObjects  atomic.Int64
	WalkTotalNanos atomic.Int64
	Clears         atomic.Int64
	ReleasedBytes  atomic.Int64
	Clamps         atomic.Int64
	ClampedBytes   atomic.Int64
}

// RecordTLABRefresh implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTLABRefresh(bytes uint64, ok bool) {
	if !ok {
		b.TLABFailures.Add(1)
		return
	}
	b.TLABRefreshes.Add(1)
	b.TLABBytes.Add(int64(bytes))
}

// RecordRevoke implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRevoke(bytes, objects uint64) {
	b.Revokes.Add(1)
	b.RevokedBytes.Add(int64(bytes))
	b.RevokedObjects.Add(int64(objects))
}

// RecordWalk implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWalk(objects int, duration time.Duration) {
	b.Walks.Add(1)
	b.WalkedObjects.Add(int64(objects))
	b.WalkTotalNanos.Add(duration.Nanoseconds())
}

// RecordClear implements MetricsCollector.
func (b *BasicMetricsCollector) RecordClear(released uint64) {
	b.Clears.Add(1)
	b.ReleasedBytes.Add(int64(released))
}

// RecordClamp implements MetricsCollector.
func (b *BasicMetricsCollector) RecordClamp(oldCapacity, newCapacity uint64) {
	b.Clamps.Add(1)
	b.ClampedBytes.Add(int64(oldCapacity - newCapacity))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		TLABRefreshes:  b.TLABRefreshes.Load(),
		TLABFailures:   b.TLABFailures.Load(),
		TLABBytes:      b.TLABBytes.Load(),
		Revokes:        b.Revokes.Load(),
		RevokedBytes:   b.RevokedBytes.Load(),
		RevokedObjects: b.RevokedObjects.Load(),
		Walks:          b.Walks.Load(),
		WalkedObjects:  b.WalkedObjects.Load(),
		WalkAvgNanos:   b.getAvgWalkNanos(),
		Clears:         b.Clears.Load(),
		ReleasedBytes:  b.ReleasedBytes.Load(),
		Clamps:         b.Clamps.Load(),
		ClampedBytes:   b.ClampedBytes.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgWalkNanos() int64 {
	count := b.Walks.Load()
	if count == 0 {
		return 0
	}
	return b.WalkTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	TLABRefreshes  int64
	TLABFailures   int64
	TLABBytes      int64
	Revokes        int64
	RevokedBytes   int64
	RevokedObjects int64
	Walks          int64
	WalkedObjects  int64
	WalkAvgNanos   int64
	Clears         int64
	ReleasedBytes  int64
	Clamps         int64
	ClampedBytes   int64
}
