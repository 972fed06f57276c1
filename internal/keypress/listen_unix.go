//go:build linux || darwin

package keypress

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/sys/unix"
)

const pollInterval = 100 * time.Millisecond

// Listen calls onKey for every recognised key read from f until ctx ends or
// f reaches end of file. Terminals are put into cbreak mode for the
// duration and restored before Listen returns.
func Listen(ctx context.Context, f *os.File, onKey func(Key)) error {
	fd := int(f.Fd())
	if isatty.IsTerminal(f.Fd()) {
		restore, err := enableCbreak(fd)
		if err != nil {
			return fmt.Errorf("keypress: enable cbreak: %w", err)
		}
		defer restore()
	}

	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	buf := make([]byte, 16)
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := unix.Poll(fds, int(pollInterval/time.Millisecond))
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("keypress: poll: %w", err)
		}
		if n == 0 {
			continue
		}
		revents := fds[0].Revents
		if revents&unix.POLLIN == 0 {
			if revents&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
				return nil
			}
			continue
		}
		read, err := unix.Read(fd, buf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("keypress: read: %w", err)
		}
		if read == 0 {
			return nil
		}
		for _, b := range buf[:read] {
			if key, ok := decodeKey(b); ok && ctx.Err() == nil {
				onKey(key)
			}
		}
	}
}

func enableCbreak(fd int) (func(), error) {
	saved, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return nil, err
	}
	raw := *saved
	raw.Lflag &^= unix.ICANON | unix.ECHO
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, ioctlSetTermios, &raw); err != nil {
		return nil, err
	}
	return func() {
		_ = unix.IoctlSetTermios(fd, ioctlSetTermios, saved)
	}, nil
}
