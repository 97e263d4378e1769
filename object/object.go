package object

import (
	"sync/atomic"
	"unsafe"
)

// HeaderSize is the size of the default object header in bytes.
const HeaderSize = 8

// Model reports the layout of objects stored in a space.
type Model interface {
	// SizeOf returns the size in bytes of the object starting at p.
	// ok is false when p does not (yet) hold an initialized object.
	SizeOf(p unsafe.Pointer) (size uintptr, ok bool)
}

// Object is a reference to an object visited in a space.
type Object struct {
	// Addr is the address of the first byte of the object.
	Addr uintptr
	// Size is the object size reported by the Model.
	Size uintptr
	// Ptr points at Addr.
	Ptr unsafe.Pointer
}

// Bytes returns the object's memory, header included.
func (o Object) Bytes() []byte {
	return unsafe.Slice((*byte)(o.Ptr), o.Size) //nolint:gosec // object memory is off-heap and sized by the model
}

// Class returns the class id stored in a Header-layout object.
func (o Object) Class() uint32 {
	return Header{}.Class(o.Ptr)
}

// Header is the default Model: an 8-byte [class | size] header word.
type Header struct{}

var _ Model = Header{}

func word(p unsafe.Pointer) *uint64 {
	return (*uint64)(p)
}

// SizeOf implements Model.
func (Header) SizeOf(p unsafe.Pointer) (uintptr, bool) {
	w := atomic.LoadUint64(word(p))
	if uint32(w) == 0 {
		return 0, false
	}
	return uintptr(w >> 32), true
}

// Class returns the class id of the object at p, or 0 if uninitialized.
func (Header) Class(p unsafe.Pointer) uint32 {
	return uint32(atomic.LoadUint64(word(p)))
}

// Init publishes the header of the object at p. The payload must be written
// before Init is called. class must be non-zero and size must be at least
// HeaderSize.
func (Header) Init(p unsafe.Pointer, class uint32, size uint32) {
	if class == 0 {
		panic("object: class id 0 is reserved for uninitialized objects")
	}
	if size < HeaderSize {
		panic("object: size smaller than header")
	}
	atomic.StoreUint64(word(p), uint64(size)<<32|uint64(class))
}

// Payload returns the bytes following the header of an object of the given
// size.
func (Header) Payload(p unsafe.Pointer, size uintptr) []byte {
	if size <= HeaderSize {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Add(p, HeaderSize)), size-HeaderSize) //nolint:gosec // bounded by size
}
