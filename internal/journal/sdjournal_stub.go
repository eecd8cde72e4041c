//go:build !linux || !cgo

package journal

import "fmt"

// Open reports ErrUnavailable: the sd-journal binding needs cgo on Linux.
func Open(opts OpenOptions) (Reader, error) {
	return nil, fmt.Errorf("%w: sd-journal binding unavailable (cgo disabled or non-linux build)", ErrUnavailable)
}
