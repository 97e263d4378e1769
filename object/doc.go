// Package object describes how a space reads the objects stored in it.
//
// A space never interprets object memory on its own. Walking needs exactly
// two facts about the bytes at an address: whether they hold a fully
// initialized object yet, and if so how large it is. Model captures that
// contract.
//
// # Default Layout
//
// Header is the Model used when none is configured. Every object starts with
// an 8-byte header word:
//
//	bits  0..31  class id (0 = not yet initialized)
//	bits 32..63  object size in bytes, header included
//
// Allocation hands out zeroed memory, so an object whose header has not been
// published reads as class 0. Writers fill the payload first and publish the
// header last with an atomic store (Header.Init); readers load it atomically.
// This makes the allocation frontier observable without data races.
package object
