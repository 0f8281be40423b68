package gpu

import (
	"errors"
	"fmt"
)

// Sentinel errors returned (wrapped) by devices and the negotiator.
var (
	ErrUnsupported           = errors.New("gpu: no usable context or format")
	ErrAllocation            = errors.New("gpu: allocation failed")
	ErrIncompleteFramebuffer = errors.New("gpu: framebuffer incomplete")
	ErrOutOfMemory           = errors.New("gpu: out of memory")
	ErrContextLost           = errors.New("gpu: context lost")
	ErrCompile               = errors.New("gpu: program compile failed")
	ErrInvalidOperation      = errors.New("gpu: invalid operation")
)

// Error records the device operation that failed.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsFatal reports whether err leaves the context unusable.
func IsFatal(err error) bool {
	return errors.Is(err, ErrContextLost) || errors.Is(err, ErrUnsupported)
}

// DrainErrors discards every pending error on dev and returns how many were queued.
func DrainErrors(dev Device) int {
	n := 0
	// Bounded so a device that never clears its queue cannot spin forever.
	for n < 64 {
		if dev.Error() == nil {
			return n
		}
		n++
	}
	return n
}
