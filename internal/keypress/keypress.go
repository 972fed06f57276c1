package keypress

import "errors"

// ErrUnsupported is returned on platforms without termios support.
var ErrUnsupported = errors.New("keypress: unsupported platform")

// Key identifies a recognised keystroke.
type Key int

const (
	KeyEscape Key = iota + 1
	KeyQuit
)

func (k Key) String() string {
	switch k {
	case KeyEscape:
		return "esc"
	case KeyQuit:
		return "q"
	default:
		return "unknown"
	}
}

func decodeKey(b byte) (Key, bool) {
	switch b {
	case 0x1b:
		return KeyEscape, true
	case 'q', 'Q':
		return KeyQuit, true
	default:
		return 0, false
	}
}
