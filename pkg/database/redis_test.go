package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/contest-api/internal/config"
)

func TestRedisOptions(t *testing.T) {
	t.Run("single from addr", func(t *testing.T) {
		opts, mode, err := RedisOptions(config.RedisConfig{Addr: "localhost:6379", DB: 2, MinRetryBackoff: 8})
		require.NoError(t, err)
		assert.Equal(t, "single", mode)
		assert.Equal(t, []string{"localhost:6379"}, opts.Addrs)
		assert.Equal(t, 2, opts.DB)
		assert.Equal(t, 8*time.Millisecond, opts.MinRetryBackoff)
	})

	t.Run("single keeps first address", func(t *testing.T) {
		opts, _, err := RedisOptions(config.RedisConfig{Mode: "single", Addrs: []string{"a:1", "b:2"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"a:1"}, opts.Addrs)
	})

	t.Run("sentinel requires master", func(t *testing.T) {
		_, _, err := RedisOptions(config.RedisConfig{Mode: "sentinel", Addrs: []string{"s:26379"}})
		assert.Error(t, err)

		opts, mode, err := RedisOptions(config.RedisConfig{Mode: "sentinel", Addrs: []string{"s:26379"}, MasterName: "mymaster"})
		require.NoError(t, err)
		assert.Equal(t, "sentinel", mode)
		assert.Equal(t, "mymaster", opts.MasterName)
	})

	t.Run("cluster", func(t *testing.T) {
		opts, mode, err := RedisOptions(config.RedisConfig{Mode: "cluster", Addrs: []string{"a:1", "b:2", "c:3"}})
		require.NoError(t, err)
		assert.Equal(t, "cluster", mode)
		assert.Len(t, opts.Addrs, 3)
	})

	t.Run("errors", func(t *testing.T) {
		_, _, err := RedisOptions(config.RedisConfig{})
		assert.Error(t, err)

		_, _, err = RedisOptions(config.RedisConfig{Mode: "ring", Addr: "a:1"})
		assert.Error(t, err)
	})
}
