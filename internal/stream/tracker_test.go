package stream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// chanSource yields frames from a channel and unblocks on Wake.
type chanSource struct {
	frames chan Frame
	wake   chan struct{}
	once   sync.Once
}

func newChanSource() *chanSource {
	return &chanSource{frames: make(chan Frame, 16), wake: make(chan struct{})}
}

func (s *chanSource) Next() (Frame, error) {
	select {
	case f, ok := <-s.frames:
		if !ok {
			return Frame{}, ErrClosed
		}
		return f, nil
	case <-s.wake:
		return Frame{}, ErrWoken
	}
}

func (s *chanSource) Wake() { s.once.Do(func() { close(s.wake) }) }

func (s *chanSource) send(t *testing.T, data string) {
	t.Helper()
	s.frames <- Frame{Kind: FrameText, Data: []byte(data)}
}

const (
	msgExecNull  = `{"type":"executing","data":{"node":null,"prompt_id":"p1"}}`
	msgExecNode  = `{"type":"executing","data":{"node":"3","prompt_id":"p1"}}`
	msgStatus0   = `{"type":"status","data":{"status":{"exec_info":{"queue_remaining":0}}}}`
	msgStatus1   = `{"type":"status","data":{"status":{"exec_info":{"queue_remaining":1}}}}`
	msgProgress5 = `{"type":"progress","data":{"value":5,"max":20,"prompt_id":"p1","node":"3"}}`
)

type finishRecorder struct {
	NopObserver
	mu       sync.Mutex
	results  []Result
	progress chan Progress
}

func (f *finishRecorder) Finished(r Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, r)
}

func (f *finishRecorder) Progress(p Progress) {
	if f.progress != nil {
		f.progress <- p
	}
}

func TestTrackerRegressionSequence(t *testing.T) {
	src := newChanSource()
	for _, msg := range []string{msgExecNull, msgStatus1, msgExecNull, msgStatus0, msgExecNode} {
		src.send(t, msg)
	}
	obs := &finishRecorder{}
	tracker := NewTracker(TrackerOptions{})

	res, err := tracker.Run(context.Background(), src, nil, obs)
	require.NoError(t, err)
	assert.Equal(t, ReasonCompleted, res.Reason)
	assert.Equal(t, "p1", res.PromptID)
	assert.Equal(t, 4, res.Events)
	assert.Len(t, src.frames, 1, "frames after termination must not be consumed")
	require.Len(t, obs.results, 1)
}

func TestTrackerCancelMidStream(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := newChanSource()
	flag := NewCancelFlag()
	obs := &finishRecorder{progress: make(chan Progress, 1)}
	tracker := NewTracker(TrackerOptions{Resolver: classMap{"3": "KSampler"}})

	done := make(chan Result, 1)
	go func() {
		res, err := tracker.Run(context.Background(), src, flag, obs)
		assert.NoError(t, err)
		done <- res
	}()

	src.send(t, msgExecNode)
	src.send(t, msgProgress5)
	select {
	case p := <-obs.progress:
		assert.Equal(t, 5, p.Value)
	case <-time.After(5 * time.Second):
		t.Fatal("progress not observed")
	}

	flag.Set()
	select {
	case res := <-done:
		assert.Equal(t, ReasonCancelled, res.Reason)
		assert.Equal(t, "p1", res.PromptID)
		assert.Equal(t, "3", res.Node)
	case <-time.After(5 * time.Second):
		t.Fatal("tracker did not stop after cancel")
	}
}

func TestTrackerCancelledBeforeStart(t *testing.T) {
	src := newChanSource()
	src.send(t, msgExecNode)
	flag := NewCancelFlag()
	flag.Set()

	res, err := NewTracker(TrackerOptions{}).Run(context.Background(), src, flag, nil)
	require.NoError(t, err)
	assert.Equal(t, ReasonCancelled, res.Reason)
	assert.Zero(t, res.Events)
}

func TestTrackerContextCancel(t *testing.T) {
	src := newChanSource()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	res, err := NewTracker(TrackerOptions{}).Run(ctx, src, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ReasonCancelled, res.Reason)
}

func TestTrackerTransportFailure(t *testing.T) {
	src := newChanSource()
	src.send(t, msgExecNode)
	close(src.frames)

	res, err := NewTracker(TrackerOptions{}).Run(context.Background(), src, nil, nil)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, ReasonTransport, res.Reason)
}

func TestTrackerSkipsMalformedFrames(t *testing.T) {
	src := newChanSource()
	src.send(t, "garbage")
	src.send(t, msgExecNull)
	src.send(t, msgStatus0)

	res, err := NewTracker(TrackerOptions{}).Run(context.Background(), src, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ReasonCompleted, res.Reason)
}

func TestTrackerPreviewPolicy(t *testing.T) {
	src := newChanSource()
	src.frames <- Frame{Kind: FrameBinary, Data: []byte{1}}
	src.send(t, msgExecNull)
	src.send(t, msgStatus0)

	res, err := NewTracker(TrackerOptions{Previews: PreviewIgnore}).Run(context.Background(), src, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ReasonCompleted, res.Reason)

	src = newChanSource()
	src.frames <- Frame{Kind: FrameBinary, Data: []byte{1}}
	res, err = NewTracker(TrackerOptions{}).Run(context.Background(), src, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ReasonPreview, res.Reason)
}

func newWSServer(t *testing.T, handle func(conn *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ws", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("clientId"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?clientId=test"
}

func TestConnTracksRealSocket(t *testing.T) {
	url := newWSServer(t, func(conn *websocket.Conn) {
		for _, msg := range []string{msgStatus1, msgExecNode, msgProgress5, msgExecNull, msgStatus0} {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		_, _, _ = conn.ReadMessage()
	})

	conn, err := Dial(context.Background(), DialOptions{URL: url, HandshakeTimeout: time.Second})
	require.NoError(t, err)
	defer conn.Close()

	res, err := NewTracker(TrackerOptions{}).Run(context.Background(), conn, NewCancelFlag(), nil)
	require.NoError(t, err)
	assert.Equal(t, ReasonCompleted, res.Reason)
	assert.Equal(t, 5, res.Progress.Value)
	assert.Equal(t, 5, res.Events)
}

func TestConnWakeUnblocksRead(t *testing.T) {
	release := make(chan struct{})
	url := newWSServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(msgExecNode))
		<-release
	})
	defer close(release)

	conn, err := Dial(context.Background(), DialOptions{URL: url})
	require.NoError(t, err)
	defer conn.Close()

	flag := NewCancelFlag()
	done := make(chan Result, 1)
	go func() {
		res, _ := NewTracker(TrackerOptions{}).Run(context.Background(), conn, flag, nil)
		done <- res
	}()
	time.Sleep(50 * time.Millisecond)
	flag.Set()

	select {
	case res := <-done:
		assert.Equal(t, ReasonCancelled, res.Reason)
	case <-time.After(5 * time.Second):
		t.Fatal("blocked read was not released")
	}
}

func TestConnIdleTimeout(t *testing.T) {
	release := make(chan struct{})
	url := newWSServer(t, func(conn *websocket.Conn) {
		<-release
	})
	defer close(release)

	conn, err := Dial(context.Background(), DialOptions{URL: url, IdleTimeout: 50 * time.Millisecond})
	require.NoError(t, err)
	defer conn.Close()

	res, err := NewTracker(TrackerOptions{}).Run(context.Background(), conn, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ReasonIdleTimeout, res.Reason)
}

func TestConnWakeDuringIdleArmingIsNotLost(t *testing.T) {
	release := make(chan struct{})
	url := newWSServer(t, func(conn *websocket.Conn) {
		<-release
	})
	defer close(release)

	conn, err := Dial(context.Background(), DialOptions{URL: url, IdleTimeout: time.Hour})
	require.NoError(t, err)
	defer conn.Close()
	conn.armed = conn.Wake

	done := make(chan error, 1)
	go func() {
		_, err := conn.Next()
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrWoken)
	case <-time.After(5 * time.Second):
		t.Fatal("wake was overridden by the idle deadline")
	}
}

func TestDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	_, err := Dial(context.Background(), DialOptions{URL: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrClosed))
}

func TestCancelFlagHooksRunOnce(t *testing.T) {
	flag := NewCancelFlag()
	calls := 0
	flag.OnSet(func() { calls++ })
	flag.Set()
	flag.Set()
	assert.Equal(t, 1, calls)

	flag.OnSet(func() { calls++ })
	assert.Equal(t, 2, calls, "hooks registered after Set run immediately")
	assert.True(t, flag.IsSet())
}
