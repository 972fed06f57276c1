//go:build !linux && !darwin

package keypress

import (
	"context"
	"os"
)

// Listen is unavailable on this platform.
func Listen(ctx context.Context, f *os.File, onKey func(Key)) error {
	return ErrUnsupported
}
