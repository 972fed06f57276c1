//go:build linux || darwin

package keypress

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestListenReportsStopKeys(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	var mu sync.Mutex
	var keys []Key
	got := make(chan struct{}, 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Listen(ctx, r, func(k Key) {
			mu.Lock()
			keys = append(keys, k)
			mu.Unlock()
			got <- struct{}{}
		})
	}()

	_, err = w.Write([]byte("ab\x1bq"))
	require.NoError(t, err)
	for range 2 {
		select {
		case <-got:
		case <-time.After(5 * time.Second):
			t.Fatal("key not reported")
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Key{KeyEscape, KeyQuit}, keys)
}

func TestListenStopsAtEOF(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	require.NoError(t, w.Close())

	err = Listen(context.Background(), r, func(Key) { t.Error("unexpected key") })
	assert.NoError(t, err)
}

func TestDecodeKey(t *testing.T) {
	for _, tc := range []struct {
		in   byte
		want Key
		ok   bool
	}{
		{0x1b, KeyEscape, true},
		{'q', KeyQuit, true},
		{'Q', KeyQuit, true},
		{'x', 0, false},
	} {
		got, ok := decodeKey(tc.in)
		assert.Equal(t, tc.ok, ok)
		assert.Equal(t, tc.want, got)
	}
}
