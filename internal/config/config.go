package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	// DefaultHost is the interface the dashboard listens on.
	DefaultHost = "127.0.0.1"

	// DefaultPort is the dashboard's HTTP port.
	DefaultPort = "3001"

	// DefaultDataDir holds the JSON tables.
	DefaultDataDir = "data"

	// DefaultLockMaxWait bounds how long a mutating request waits for
	// its resource lock before answering 409.
	DefaultLockMaxWait = 5 * time.Second

	// DefaultLockPollInterval is how often a waiting request re-checks
	// the lock table.
	DefaultLockPollInterval = 100 * time.Millisecond

	// DefaultLockMaxAge is the age after which a held lock is considered
	// abandoned and reclaimed by the sweeper. It is deliberately not tied
	// to DefaultLockMaxWait: a waiter gives up long before the sweep runs.
	DefaultLockMaxAge = 30 * time.Second

	// DefaultSweepInterval is the period of the stale lock sweeper.
	DefaultSweepInterval = 60 * time.Second

	// DefaultRateLimit is the sustained requests per second accepted.
	DefaultRateLimit = 50.0

	// DefaultRateBurst is the number of requests accepted at once.
	DefaultRateBurst = 100

	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second

	envPrefix = "DASHBOARD_"
)

// Config holds all dashboard settings, combined from defaults,
// environment variables and command-line flags in that order.
type Config struct {
	Host    string
	Port    string
	DataDir string

	LockMaxWait      time.Duration
	LockPollInterval time.Duration
	LockMaxAge       time.Duration
	SweepInterval    time.Duration

	// RateLimit of zero or less disables rate limiting.
	RateLimit float64
	RateBurst int

	ShutdownTimeout time.Duration
	Debug           bool
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Host:             DefaultHost,
		Port:             DefaultPort,
		DataDir:          DefaultDataDir,
		LockMaxWait:      DefaultLockMaxWait,
		LockPollInterval: DefaultLockPollInterval,
		LockMaxAge:       DefaultLockMaxAge,
		SweepInterval:    DefaultSweepInterval,
		RateLimit:        DefaultRateLimit,
		RateBurst:        DefaultRateBurst,
		ShutdownTimeout:  DefaultShutdownTimeout,
	}
}

// LoadFromEnvironment updates config from DASHBOARD_* environment variables.
func (c *Config) LoadFromEnvironment() error {
	var errs []error
	c.Host = getEnvString("HOST", c.Host)
	c.Port = getEnvString("PORT", c.Port)
	c.DataDir = getEnvString("DATA_DIR", c.DataDir)
	c.LockMaxWait = getEnvDuration("LOCK_MAX_WAIT", c.LockMaxWait, &errs)
	c.LockPollInterval = getEnvDuration("LOCK_POLL_INTERVAL", c.LockPollInterval, &errs)
	c.LockMaxAge = getEnvDuration("LOCK_MAX_AGE", c.LockMaxAge, &errs)
	c.SweepInterval = getEnvDuration("SWEEP_INTERVAL", c.SweepInterval, &errs)
	c.RateLimit = getEnvFloat("RATE_LIMIT", c.RateLimit, &errs)
	c.RateBurst = getEnvInt("RATE_BURST", c.RateBurst, &errs)
	c.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout, &errs)
	c.Debug = getEnvBool("DEBUG", c.Debug, &errs)
	return errors.Join(errs...)
}

// SetupFlags sets up command-line flags to override config values.
func (c *Config) SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Host, "host", c.Host, "Address to listen on")
	fs.StringVar(&c.Port, "port", c.Port, "Port to listen on")
	fs.StringVar(&c.DataDir, "data", c.DataDir, "Directory holding the JSON tables")
	fs.DurationVar(&c.LockMaxWait, "lock-wait", c.LockMaxWait, "Max time a write waits for its resource lock")
	fs.DurationVar(&c.LockPollInterval, "lock-poll", c.LockPollInterval, "Interval between lock availability checks")
	fs.DurationVar(&c.LockMaxAge, "lock-max-age", c.LockMaxAge, "Age after which a held lock is reclaimed")
	fs.DurationVar(&c.SweepInterval, "sweep-interval", c.SweepInterval, "Interval between stale lock sweeps")
	fs.Float64Var(&c.RateLimit, "rate", c.RateLimit, "Requests per second (0 disables rate limiting)")
	fs.IntVar(&c.RateBurst, "burst", c.RateBurst, "Request burst size")
	fs.DurationVar(&c.ShutdownTimeout, "shutdown-timeout", c.ShutdownTimeout, "Graceful shutdown timeout")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "Enable debug logging")
}

// Validate checks the settings are usable.
func (c *Config) Validate() error {
	if err := CheckValidPort(c.Port); err != nil {
		return err
	}
	if c.DataDir == "" {
		return errors.New("data directory must not be empty")
	}
	for name, d := range map[string]time.Duration{
		"lock wait":        c.LockMaxWait,
		"lock poll":        c.LockPollInterval,
		"lock max age":     c.LockMaxAge,
		"sweep interval":   c.SweepInterval,
		"shutdown timeout": c.ShutdownTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.RateLimit > 0 && c.RateBurst <= 0 {
		return fmt.Errorf("burst must be positive when rate limiting, got %d", c.RateBurst)
	}
	return nil
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// CheckValidPort reports whether port is a number in the TCP port range.
func CheckValidPort(port string) error {
	portInt, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("invalid port %q: %w", port, err)
	}
	if portInt < 0 || portInt > 65535 {
		return errors.New("port number exceeds limit of 65535")
	}
	return nil
}

func getEnvString(key, fallback string) string {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
		return fallback
	}
	return d
}

func getEnvFloat(key string, fallback float64, errs *[]error) float64 {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
		return fallback
	}
	return f
}

func getEnvInt(key string, fallback int, errs *[]error) int {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
		return fallback
	}
	return i
}

func getEnvBool(key string, fallback bool, errs *[]error) bool {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
		return fallback
	}
	return b
}
