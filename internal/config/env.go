package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// BackendEnv configures the backend stream server. Variables are prefixed
// TASKSTREAM_BACKEND_ (e.g. TASKSTREAM_BACKEND_HTTP_PORT).
type BackendEnv struct {
	Env         string `envconfig:"ENV" default:"local"`
	HTTPHost    string `envconfig:"HTTP_HOST" default:""`
	HTTPPort    string `envconfig:"HTTP_PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	TaskCount   int    `envconfig:"TASK_COUNT" default:"100000"`
	DomainsFile string `envconfig:"DOMAINS_FILE" default:""`
}

func LoadBackendEnv() (*BackendEnv, error) {
	var env BackendEnv
	if err := envconfig.Process("TASKSTREAM_BACKEND", &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}

func (e *BackendEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelInfo
	}
	return slogLevel(e.LogLevel)
}

// ProxyEnv configures the proxy stream server and its resilient fetch
// client. Variables are prefixed TASKSTREAM_PROXY_.
type ProxyEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"8081"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	BackendURL       string        `envconfig:"BACKEND_URL" default:"http://localhost:8080"`
	FetchMaxRetries  int           `envconfig:"FETCH_MAX_RETRIES" default:"3"`
	FetchBaseBackoff time.Duration `envconfig:"FETCH_BASE_BACKOFF" default:"2s"`
	FetchMaxBackoff  time.Duration `envconfig:"FETCH_MAX_BACKOFF" default:"10s"`
	HealthTimeout    time.Duration `envconfig:"HEALTH_TIMEOUT" default:"5s"`
}

func LoadProxyEnv() (*ProxyEnv, error) {
	var env ProxyEnv
	if err := envconfig.Process("TASKSTREAM_PROXY", &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}

func (e *ProxyEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelInfo
	}
	return slogLevel(e.LogLevel)
}

func slogLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
