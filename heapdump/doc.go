// Package heapdump writes and reads diagnostic snapshots of a bumpspace.Space.
//
// A dump holds the space geometry, its block ledger and the raw bytes of
// every object the walker visits. It is meant for offline inspection and
// cannot be loaded back into a space.
//
// # Format
//
//	[Header: 8 bytes, uncompressed]
//	  magic   [4]byte "BSHD"
//	  version uint16
//	  codec   uint8
//	  _       uint8
//	[Body: compressed with codec]
//	  name    uint16 length + bytes
//	  begin, end, limit, capacity, mainBlockSize uint64
//	  blocks  uint32 count + uint64 sizes
//	  records tag uint8 (1 = object, 0 = end)
//	          object: offset uint64, size uint64, bytes[size]
//	          end:    object count uint64
//
// All integers are little-endian.
package heapdump
