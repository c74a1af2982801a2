package immix

import (
	"errors"
	"fmt"

	"github.com/fernlang/fern/blockalloc"
)

// Allocation errors.
var (
	// ErrBadRequest is returned for allocation requests the heap will
	// never satisfy: zero-size blocks, non-power-of-two block sizes,
	// and objects in the large size class.
	ErrBadRequest = errors.New("immix: bad allocation request")

	// ErrOOM is returned when the underlying block allocator refused.
	ErrOOM = errors.New("immix: out of memory")
)

// wrapBlockErr maps blockalloc errors onto the heap's error set.
func wrapBlockErr(err error) error {
	switch {
	case errors.Is(err, blockalloc.ErrBadRequest):
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	case errors.Is(err, blockalloc.ErrOOM):
		return fmt.Errorf("%w: %v", ErrOOM, err)
	default:
		return err
	}
}
