// Package mmap provides off-heap virtual memory for allocation spaces.
//
// # Reservations
//
// ReserveAnon() creates a read-write anonymous mapping that lives outside the
// Go garbage collector's control. The memory is zero-filled by the kernel and
// its addresses are stable for the lifetime of the Region, which makes raw
// address arithmetic over it safe:
//
//	r, err := mmap.ReserveAnon(64 << 20)
//	if err != nil { ... }
//	defer r.Close()
//
//	p := r.Pointer(r.Begin() + 128)
//
//	// Hand physical pages back to the OS; they read as zero afterwards.
//	_ = r.Release(r.Begin(), r.End())
//
//	// Lower the reported size. Pages past the new size are released.
//	_ = r.SetSize(32 << 20)
//
// # File Mappings
//
// Open() maps a file read-only for zero-copy inspection (heap dumps).
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2), madvise(2) and munmap(2)
//   - Windows: VirtualAlloc/VirtualFree for reservations,
//     CreateFileMapping/MapViewOfFile for files
//
// # Thread Safety
//
// Region and Mapping accessors are safe for concurrent use. Release and
// SetSize must be serialized by the owner. Callers must ensure no goroutine
// touches the memory after Close() returns.
package mmap
