// Package proxy implements the front tier: a resilient fetch client over
// the backend's streamed transport and a server re-exposing its output.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/taskstream/taskstream/internal/config"
	"github.com/taskstream/taskstream/internal/metrics"
	"github.com/taskstream/taskstream/internal/task"
	"github.com/taskstream/taskstream/pkg/ndjson"
)

// HealthUnavailable is the sentinel CheckHealth returns in place of a real
// health message when the backend cannot be reached in time.
const HealthUnavailable = "Backend unavailable"

// Client fetches task streams from the backend, absorbing transport and
// mid-stream failures behind a bounded retry policy. No failure ever
// propagates to a caller: an unreachable backend yields an empty result.
type Client struct {
	http          *http.Client
	baseURL       string
	maxRetries    int
	baseBackoff   time.Duration
	maxBackoff    time.Duration
	healthTimeout time.Duration
}

func NewClient(env *config.ProxyEnv) *Client {
	return &Client{
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 5 * time.Second,
				}).DialContext,
				ResponseHeaderTimeout: 30 * time.Second,
			},
			// No overall timeout: streams are long-lived; per-call
			// deadlines come from the request context.
		},
		baseURL:       strings.TrimRight(env.BackendURL, "/"),
		maxRetries:    env.FetchMaxRetries,
		baseBackoff:   env.FetchBaseBackoff,
		maxBackoff:    env.FetchMaxBackoff,
		healthTimeout: env.HealthTimeout,
	}
}

// fetchPhase is the state of one FetchUserTasks execution. Transitions:
// attempting -> succeeded | backoff | degraded, backoff -> attempting | degraded.
type fetchPhase int

const (
	phaseAttempting fetchPhase = iota
	phaseBackoff
	phaseSucceeded
	phaseDegraded
)

// FetchUserTasks streams the user's tasks from the backend and returns them
// in arrival order. Each attempt drains the whole stream, so a partially
// consumed stream that fails is retried from the start; retried results are
// equivalent but not byte-identical, since the backend regenerates its
// corpus per call. After the initial attempt plus maxRetries retries the
// result degrades to empty — callers cannot distinguish "no tasks" from
// "backend unreachable" here, only the logs and counters can.
func (c *Client) FetchUserTasks(ctx context.Context, userID string) []task.Record {
	var (
		records []task.Record
		phase   = phaseAttempting
		failed  int
		wait    time.Duration
	)
	for {
		switch phase {
		case phaseAttempting:
			recs, err := c.fetchOnce(ctx, userID)
			if err == nil {
				metrics.FetchAttempts.WithLabelValues("success").Inc()
				records = recs
				phase = phaseSucceeded
				break
			}
			metrics.FetchAttempts.WithLabelValues("failure").Inc()
			failed++
			slog.WarnContext(ctx, "fetch attempt failed",
				"user_id", userID, "attempt", failed, "error", err)
			if failed > c.maxRetries {
				phase = phaseDegraded
				break
			}
			wait = c.backoffDelay(failed)
			phase = phaseBackoff
		case phaseBackoff:
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				phase = phaseDegraded
			case <-timer.C:
				phase = phaseAttempting
			}
		case phaseSucceeded:
			return records
		case phaseDegraded:
			metrics.FetchDegraded.Inc()
			slog.ErrorContext(ctx, "fetch degraded to empty result",
				"user_id", userID, "attempts", failed)
			return nil
		}
	}
}

// backoffDelay returns the wait before retry n (counted from 1): the base
// doubling each retry, capped. With the 2s/10s defaults: 2s, 4s, 8s.
func (c *Client) backoffDelay(n int) time.Duration {
	d := c.baseBackoff << (n - 1)
	if d > c.maxBackoff || d <= 0 {
		return c.maxBackoff
	}
	return d
}

func (c *Client) fetchOnce(ctx context.Context, userID string) ([]task.Record, error) {
	u := fmt.Sprintf("%s/api/tasks/%s", c.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	var records []task.Record
	dec := ndjson.NewDecoder(resp.Body)
	for {
		var rec task.Record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			// Error frames, malformed elements and torn connections all
			// fail the attempt the same way.
			return nil, err
		}
		records = append(records, rec)
	}
}

// CheckHealth probes the backend once with a hard timeout. Any failure,
// including the timeout, yields the unavailable sentinel; health checks are
// never retried.
func (c *Client) CheckHealth(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tasks/health", nil)
	if err != nil {
		metrics.HealthChecks.WithLabelValues("unavailable").Inc()
		return HealthUnavailable
	}
	resp, err := c.http.Do(req)
	if err != nil {
		slog.WarnContext(ctx, "backend health check failed", "error", err)
		metrics.HealthChecks.WithLabelValues("unavailable").Inc()
		return HealthUnavailable
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil || resp.StatusCode != http.StatusOK {
		slog.WarnContext(ctx, "backend health check failed",
			"status", resp.StatusCode, "error", err)
		metrics.HealthChecks.WithLabelValues("unavailable").Inc()
		return HealthUnavailable
	}
	metrics.HealthChecks.WithLabelValues("ok").Inc()
	return string(body)
}
