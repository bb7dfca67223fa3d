//go:build !linux && !windows

package platform

import (
	"fmt"
	"runtime"
)

// NewBackend reports ErrUnavailable: only X11 and Win32 are supported.
func NewBackend(_ Options) (Backend, error) {
	return nil, fmt.Errorf("%w: %s is not supported", ErrUnavailable, runtime.GOOS)
}
