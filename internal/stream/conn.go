package stream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	closeWait               = time.Second
)

var (
	// ErrIdleTimeout reports that no frame arrived within the idle window.
	ErrIdleTimeout = errors.New("no progress frame within idle timeout")
	// ErrWoken reports that a pending read was released by Wake.
	ErrWoken = errors.New("stream read interrupted")
	// ErrClosed reports that the server closed the stream.
	ErrClosed = errors.New("stream closed by server")
)

// FrameKind distinguishes text and binary frames.
type FrameKind int

const (
	FrameText FrameKind = iota
	FrameBinary
)

func (k FrameKind) String() string {
	if k == FrameBinary {
		return "binary"
	}
	return "text"
}

// Frame is one received message.
type Frame struct {
	Kind FrameKind
	Data []byte
}

// Source yields frames until it fails.
type Source interface {
	Next() (Frame, error)
}

// Waker releases a blocked Next call.
type Waker interface {
	Wake()
}

// DialOptions configures Dial.
type DialOptions struct {
	URL              string
	HandshakeTimeout time.Duration
	// IdleTimeout bounds the wait for each frame. Zero waits forever.
	IdleTimeout time.Duration
	Header      http.Header
}

// Conn is a progress stream connection. Next must only be called from one
// goroutine; Wake and Close may be called from any.
type Conn struct {
	ws        *websocket.Conn
	idle      time.Duration
	woken     atomic.Bool
	closeOnce sync.Once
	closeErr  error
	// armed runs after the idle deadline is set; tests use it to land a
	// Wake inside that window.
	armed func()
}

var _ Source = (*Conn)(nil)

// Dial opens the progress stream.
func Dial(ctx context.Context, opts DialOptions) (*Conn, error) {
	if opts.URL == "" {
		return nil, errors.New("stream url required")
	}
	handshake := opts.HandshakeTimeout
	if handshake <= 0 {
		handshake = defaultHandshakeTimeout
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshake,
	}
	ws, resp, err := dialer.DialContext(ctx, opts.URL, opts.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: status %d: %w", opts.URL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", opts.URL, err)
	}
	return &Conn{ws: ws, idle: opts.IdleTimeout}, nil
}

// Next blocks for the next frame. Control frames are handled internally.
func (c *Conn) Next() (Frame, error) {
	if c.woken.Load() {
		return Frame{}, ErrWoken
	}
	if c.idle > 0 {
		_ = c.ws.SetReadDeadline(time.Now().Add(c.idle))
		if c.armed != nil {
			c.armed()
		}
		// A Wake racing the line above had its expired deadline replaced.
		if c.woken.Load() {
			return Frame{}, ErrWoken
		}
	}
	msgType, data, err := c.ws.ReadMessage()
	if err != nil {
		return Frame{}, c.classify(err)
	}
	kind := FrameText
	if msgType == websocket.BinaryMessage {
		kind = FrameBinary
	}
	return Frame{Kind: kind, Data: data}, nil
}

func (c *Conn) classify(err error) error {
	if c.woken.Load() {
		return ErrWoken
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() && c.idle > 0 {
		return ErrIdleTimeout
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return fmt.Errorf("read frame: %w", err)
}

// Wake releases a pending Next by expiring the read deadline. The
// connection is unusable for further reads afterwards.
func (c *Conn) Wake() {
	c.woken.Store(true)
	_ = c.ws.SetReadDeadline(time.Now())
}

// Close sends a close frame and releases the socket.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}
