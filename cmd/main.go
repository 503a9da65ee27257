package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/aandrewmolt/kpi-dashboard/internal/config"
	"github.com/aandrewmolt/kpi-dashboard/internal/lockservice"
	"github.com/aandrewmolt/kpi-dashboard/internal/node"
	"github.com/aandrewmolt/kpi-dashboard/internal/routing"
	"github.com/aandrewmolt/kpi-dashboard/internal/store"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

func main() {
	cfg := config.New()
	if err := cfg.LoadFromEnvironment(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	cfg.SetupFlags(flag.CommandLine)
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("dashboard stopped")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ls := lockservice.NewResourceLockManager(log.With().Str("component", "locks").Logger(), lockservice.Options{
		MaxWait:       cfg.LockMaxWait,
		PollInterval:  cfg.LockPollInterval,
		MaxAge:        cfg.LockMaxAge,
		SweepInterval: cfg.SweepInterval,
	})

	st, err := store.Open(cfg.DataDir, store.Options{}, log.With().Str("component", "store").Logger())
	if err != nil {
		return err
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}

	router, err := routing.SetupRouting(routing.Deps{
		Locks:   ls,
		Store:   st,
		Log:     log,
		Limiter: limiter,
	}, mux.NewRouter())
	if err != nil {
		return err
	}

	n := node.New(cfg.Addr(), router, ls, cfg.ShutdownTimeout, log)
	return n.Start(context.Background())
}
