package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearRedisEnv(t *testing.T) {
	t.Helper()
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("REDIS_ADDRS", "")
	t.Setenv("WEBSOCKET_CLUSTER_ENABLED", "")
}

func TestLoad_DefaultsWithMemoryDriver(t *testing.T) {
	clearRedisEnv(t)
	t.Setenv("DATABASE_DRIVER", "memory")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DatabaseDriverMemory, cfg.Database.Driver)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Contest.TickInterval)
	assert.Equal(t, 2*time.Second, cfg.Contest.InterRoundDelay)
	assert.Equal(t, 10, cfg.Contest.MaxIterations)
	assert.Equal(t, "system:auto-advance", cfg.Contest.SystemActorID)
	assert.True(t, cfg.Contest.LazyAdvanceEnabled)
	assert.Zero(t, cfg.Contest.LazyInterRoundDelay)
	assert.Equal(t, 20, cfg.Contest.DisplayLimit)
	assert.False(t, cfg.Redis.Configured())
}

func TestLoad_PostgresRequiresConnectionSettings(t *testing.T) {
	clearRedisEnv(t)
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_HOST", "")
	t.Setenv("DATABASE_PORT", "")
	t.Setenv("DATABASE_PASSWORD", "")
	t.Setenv("DATABASE_SSLMODE", "")

	_, err := Load("")
	assert.Error(t, err)

	t.Setenv("DATABASE_HOST", "db")
	t.Setenv("DATABASE_USER", "contest")
	t.Setenv("DATABASE_DBNAME", "contests")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "host=db port=5432 user=contest password= dbname=contests sslmode=disable",
		cfg.Database.PostgresConnectionString())
	assert.Equal(t, "postgres://contest:@db:5432/contests?sslmode=disable", cfg.Database.PostgresURL())
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
database:
  driver: memory
contest:
  tick_interval: 3s
  inter_round_delay: 500ms
  max_iterations: 6
  system_actor_id: scheduler
redis:
  addr: localhost:6379
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	clearRedisEnv(t)
	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("CONTEST_MAX_ITERATIONS", "8")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.Contest.TickInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.Contest.InterRoundDelay)
	assert.Equal(t, 8, cfg.Contest.MaxIterations)
	assert.Equal(t, "scheduler", cfg.Contest.SystemActorID)
	assert.True(t, cfg.Redis.Configured())
}

func TestLoad_MissingFileIsNotFatal(t *testing.T) {
	clearRedisEnv(t)
	t.Setenv("DATABASE_DRIVER", "memory")
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{Driver: DatabaseDriverMemory},
			Contest: ContestConfig{
				TickInterval:  time.Second,
				RetryBackoff:  time.Millisecond,
				LockTTL:       time.Second,
				MaxIterations: 10,
				SystemActorID: "system",
			},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"zero tick", func(c *Config) { c.Contest.TickInterval = 0 }},
		{"too few iterations", func(c *Config) { c.Contest.MaxIterations = 3 }},
		{"negative delay", func(c *Config) { c.Contest.InterRoundDelay = -time.Second }},
		{"empty actor", func(c *Config) { c.Contest.SystemActorID = "" }},
		{"rate limit without window", func(c *Config) { c.RateLimit = RateLimitConfig{Enabled: true, AdvanceLimit: 5} }},
		{"cluster without redis", func(c *Config) { c.WebSocket.Cluster.Enabled = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
