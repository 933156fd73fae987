package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBackendEnvDefaults(t *testing.T) {
	env, err := LoadBackendEnv()
	require.NoError(t, err)
	assert.Equal(t, "local", env.Env)
	assert.Equal(t, "8080", env.HTTPPort)
	assert.Equal(t, 100000, env.TaskCount)
	assert.Equal(t, slog.LevelInfo, env.SlogLevel())
}

func TestLoadBackendEnvOverrides(t *testing.T) {
	t.Setenv("TASKSTREAM_BACKEND_HTTP_PORT", "9090")
	t.Setenv("TASKSTREAM_BACKEND_TASK_COUNT", "500")
	t.Setenv("TASKSTREAM_BACKEND_LOG_LEVEL", "debug")

	env, err := LoadBackendEnv()
	require.NoError(t, err)
	assert.Equal(t, "9090", env.HTTPPort)
	assert.Equal(t, 500, env.TaskCount)
	assert.Equal(t, slog.LevelDebug, env.SlogLevel())
}

func TestLoadProxyEnvDefaults(t *testing.T) {
	env, err := LoadProxyEnv()
	require.NoError(t, err)
	assert.Equal(t, "8081", env.HTTPPort)
	assert.Equal(t, "http://localhost:8080", env.BackendURL)
	assert.Equal(t, 3, env.FetchMaxRetries)
	assert.Equal(t, 2*time.Second, env.FetchBaseBackoff)
	assert.Equal(t, 10*time.Second, env.FetchMaxBackoff)
	assert.Equal(t, 5*time.Second, env.HealthTimeout)
}

func TestLoadProxyEnvOverrides(t *testing.T) {
	t.Setenv("TASKSTREAM_PROXY_BACKEND_URL", "http://backend:8080")
	t.Setenv("TASKSTREAM_PROXY_FETCH_BASE_BACKOFF", "500ms")

	env, err := LoadProxyEnv()
	require.NoError(t, err)
	assert.Equal(t, "http://backend:8080", env.BackendURL)
	assert.Equal(t, 500*time.Millisecond, env.FetchBaseBackoff)
}

func TestSlogLevelFallsBackToInfo(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, slogLevel("nonsense"))
	assert.Equal(t, slog.LevelWarn, slogLevel("warn"))
}
