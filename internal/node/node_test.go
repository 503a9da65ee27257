package node

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	running int32
	stopped int32
}

func (s *countingSweeper) RunSweeper(ctx context.Context) error {
	atomic.StoreInt32(&s.running, 1)
	<-ctx.Done()
	atomic.StoreInt32(&s.stopped, 1)
	return nil
}

func TestServeAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	sweeper := &countingSweeper{}
	n := New(ln.Addr().String(), handler, sweeper, time.Second, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusTeapot
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&sweeper.running))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("node did not shut down")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&sweeper.stopped))
}

func TestStartFailsOnBusyAddress(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	n := New(ln.Addr().String(), http.NotFoundHandler(), &countingSweeper{}, time.Second, zerolog.Nop())
	assert.Error(t, n.Start(context.Background()))
}
