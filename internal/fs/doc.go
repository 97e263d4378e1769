// Package fs provides filesystem abstractions for testability and fault injection.
//
// The package defines two key interfaces:
//
//   - [File]: an open file with write/sync capabilities
//   - [FileSystem]: temp-file creation, rename and remove, which is all that
//     is needed to publish a file atomically
//
// # Implementations
//
//   - [LocalFS]: Production implementation using standard os package
//   - [FaultyFS]: Test utility for fault injection (simulate I/O errors)
//
// # Usage
//
// Production code should use fs.Default (which is [LocalFS]):
//
//	f, err := fs.Default.CreateTemp(dir, ".dump-*")
//
// Tests can inject [FaultyFS] to simulate failures:
//
//	ffs := fs.NewFaultyFS(nil, fs.Fault{FailAfterBytes: 1024})
//	// inject ffs into component under test
package fs
