package config

import (
	"flag"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c := New()
	assert.Equal(t, 5*time.Second, c.LockMaxWait)
	assert.Equal(t, 100*time.Millisecond, c.LockPollInterval)
	assert.Equal(t, 30*time.Second, c.LockMaxAge)
	assert.Equal(t, 60*time.Second, c.SweepInterval)
	assert.NoError(t, c.Validate())
	assert.Equal(t, "127.0.0.1:3001", c.Addr())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DASHBOARD_PORT", "8080")
	t.Setenv("DASHBOARD_LOCK_MAX_WAIT", "2s")
	t.Setenv("DASHBOARD_DEBUG", "true")
	t.Setenv("DASHBOARD_RATE_LIMIT", "12.5")

	c := New()
	require.NoError(t, c.LoadFromEnvironment())
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, 2*time.Second, c.LockMaxWait)
	assert.True(t, c.Debug)
	assert.Equal(t, 12.5, c.RateLimit)
}

func TestLoadFromEnvironmentBadValue(t *testing.T) {
	t.Setenv("DASHBOARD_LOCK_MAX_AGE", "forever")

	c := New()
	err := c.LoadFromEnvironment()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DASHBOARD_LOCK_MAX_AGE")
	assert.Equal(t, DefaultLockMaxAge, c.LockMaxAge)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("DASHBOARD_PORT", "8080")

	c := New()
	require.NoError(t, c.LoadFromEnvironment())
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.SetupFlags(fs)
	require.NoError(t, fs.Parse([]string{"-port", "9090", "-lock-wait", "250ms", "-debug"}))

	assert.Equal(t, "9090", c.Port)
	assert.Equal(t, 250*time.Millisecond, c.LockMaxWait)
	assert.True(t, c.Debug)
}

func TestValidate(t *testing.T) {
	t.Run("bad port", func(t *testing.T) {
		c := New()
		c.Port = "70000"
		assert.Error(t, c.Validate())
		c.Port = "http"
		assert.Error(t, c.Validate())
	})
	t.Run("non-positive durations", func(t *testing.T) {
		c := New()
		c.LockPollInterval = 0
		assert.Error(t, c.Validate())
	})
	t.Run("burst required with rate", func(t *testing.T) {
		c := New()
		c.RateBurst = 0
		assert.Error(t, c.Validate())
		c.RateLimit = 0
		assert.NoError(t, c.Validate())
	})
	t.Run("wait longer than max age is allowed", func(t *testing.T) {
		c := New()
		c.LockMaxWait = time.Minute
		assert.NoError(t, c.Validate())
	})
}
