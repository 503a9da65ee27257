package node

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Sweeper is a background loop that runs until its context is done.
type Sweeper interface {
	RunSweeper(ctx context.Context) error
}

// Node bundles the HTTP server with the background lock sweeper.
type Node struct {
	server          *http.Server
	sweeper         Sweeper
	shutdownTimeout time.Duration
	log             zerolog.Logger
}

// New returns a node serving handler on addr.
func New(addr string, handler http.Handler, sweeper Sweeper, shutdownTimeout time.Duration, log zerolog.Logger) *Node {
	return &Node{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		sweeper:         sweeper,
		shutdownTimeout: shutdownTimeout,
		log:             log,
	}
}

// Start begins the node's operation as a http server and blocks until
// ctx is cancelled or a ^C / SIGTERM arrives, then shuts down gracefully.
func (n *Node) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", n.server.Addr)
	if err != nil {
		return err
	}
	return n.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (n *Node) Serve(ctx context.Context, ln net.Listener) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n.log.Info().Str("addr", ln.Addr().String()).Msg("starting server")
		if err := n.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return n.sweeper.RunSweeper(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		// Create a deadline to wait for currently serving requests.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), n.shutdownTimeout)
		defer cancel()
		n.log.Info().Msg("shutting down")
		return n.server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
