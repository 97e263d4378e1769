package bumpspace

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

var (
	// ErrReservation is returned when the backing region cannot be reserved.
	ErrReservation = errors.New("bumpspace: reservation failed")
	// ErrClosed is returned when operating on a closed space.
	ErrClosed = errors.New("bumpspace: space is closed")
	// ErrInvalidCapacity is returned for non-positive capacities.
	ErrInvalidCapacity = errors.New("bumpspace: invalid capacity")
)

// ReservationError reports why a space could not reserve its region.
//
// It matches ErrReservation with errors.Is; the underlying cause (for example
// resource.ErrMemoryLimitExceeded or an mmap errno) is available through
// errors.Unwrap.
type ReservationError struct {
	Name     string
	Capacity uintptr
	cause    error
}

func (e *ReservationError) Error() string {
	return fmt.Sprintf("bumpspace: failed to allocate pages for alloc space (%s) of size %s: %v",
		e.Name, humanize.IBytes(uint64(e.Capacity)), e.cause)
}

func (e *ReservationError) Unwrap() error { return e.cause }

// Is reports whether target is ErrReservation.
func (e *ReservationError) Is(target error) bool { return target == ErrReservation }

// InvariantError is the panic value used when a caller breaks a structural
// precondition of a space. These are programming errors and are not meant to
// be recovered.
type InvariantError struct {
	Op  string
	Msg string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("bumpspace: %s: %s", e.Op, e.Msg)
}

func invariant(op, format string, args ...any) {
	panic(&InvariantError{Op: op, Msg: fmt.Sprintf(format, args...)})
}
