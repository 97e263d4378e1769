// Package resource implements the resource budget shared by allocation spaces.
//
// The Controller governs two resources:
//
//   - Memory: caps the virtual memory that spaces may reserve. It is consulted
//     once per reservation and credited back when a space is closed or its
//     growth limit is clamped. Acquisition is non-blocking and fails fast
//     with ErrMemoryLimitExceeded; retry policy belongs to the caller.
//   - IO: a token bucket that throttles diagnostic output (heap dumps) so
//     that dumping a large space does not saturate a disk or pipe.
//
// # Memory
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 1 << 30, // 1GB of reservations
//	})
//
//	if err := rc.AcquireMemory(64 << 20); err != nil {
//	    // ErrMemoryLimitExceeded - caller decides what to do
//	}
//	defer rc.ReleaseMemory(64 << 20)
//
// # IO
//
//	rc := resource.NewController(resource.Config{
//	    IOLimitBytesPerSec: 16 << 20, // 16MB/s
//	})
//	w := resource.NewRateLimitedWriter(ctx, file, rc)
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully - they become no-ops.
// This allows optional budgeting without nil checks everywhere.
package resource
