package bumpspace_test

import (
	"fmt"
	"log"

	"github.com/hupe1980/bumpspace"
	"github.com/hupe1980/bumpspace/object"
	"github.com/hupe1980/bumpspace/thread"
)

// Example demonstrates TLAB allocation, walking and revocation.
func Example() {
	s, err := bumpspace.New("young", 64<<10)
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	threads := thread.NewList()
	t, _ := threads.Register("mutator")

	// Hand the thread a 4 KiB buffer.
	if _, ok := s.AllocNewTLAB(t, 4096); !ok {
		log.Fatal("space exhausted")
	}

	// Allocate and publish ten objects without taking any lock.
	for i := range 10 {
		addr, _ := t.AllocTLAB(100)
		object.Header{}.Init(s.Pointer(addr), uint32(i+1), 100)
	}

	var n int
	s.Walk(func(object.Object) { n++ })
	fmt.Println("objects:", n)

	s.RevokeAllThreadLocalBuffers(threads)
	fmt.Println("bytes allocated:", s.BytesAllocated(threads))
	// Output:
	// objects: 10
	// bytes allocated: 4096
}

// Example_clear demonstrates recycling a space.
func Example_clear() {
	s, err := bumpspace.New("survivor", 64<<10)
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	first, _ := s.AllocBlock(8 << 10)
	_ = s.Clear()
	again, _ := s.AllocBlock(8 << 10)

	fmt.Println("reused begin:", first == again)
	fmt.Println("bytes allocated:", s.BytesAllocated(nil))
	// Output:
	// reused begin: true
	// bytes allocated: 0
}

// Example_objects demonstrates the range-over-func iterator.
func Example_objects() {
	s, err := bumpspace.New("main", 4096)
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	for _, size := range []uint32{16, 40, 8} {
		addr, _ := s.Alloc(uintptr(size))
		object.Header{}.Init(s.Pointer(addr), 1, size)
	}

	for obj := range s.Objects() {
		fmt.Println(obj.Addr-s.Begin(), obj.Size)
	}
	// Output:
	// 0 16
	// 16 40
	// 56 8
}
