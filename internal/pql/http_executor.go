package pql

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"alertengine/internal/errors"
	"alertengine/internal/metrics"
	"alertengine/internal/models"
	"alertengine/internal/recovery"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// HTTPExecutorConfig points the executor at the query cluster's PPL endpoint.
type HTTPExecutorConfig struct {
	BaseURL string
	Timeout time.Duration

	// RateLimit caps outbound queries per second; Burst allows short spikes
	// above that rate. Guards against a misbehaving schedule hammering the
	// data cluster.
	RateLimit rate.Limit
	Burst     int

	CircuitBreakerMaxFailures  int
	CircuitBreakerResetTimeout time.Duration

	Logger *logrus.Logger
}

type ppqlRequest struct {
	Query string `json:"query"`
}

// HTTPExecutor is the production Executor: it issues PPL queries over HTTP
// against the query cluster's `_ppl` endpoint, throttled by a client-side
// token bucket and protected by a circuit breaker so a struggling cluster
// sheds load instead of queuing every scheduled monitor run behind it.
type HTTPExecutor struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
	breaker *recovery.CircuitBreaker
	log     *logrus.Logger
}

func NewHTTPExecutor(cfg HTTPExecutorConfig) *HTTPExecutor {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 20
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = int(limit)
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &HTTPExecutor{
		client:  &http.Client{Timeout: timeout},
		baseURL: cfg.BaseURL,
		limiter: rate.NewLimiter(limit, burst),
		breaker: recovery.NewCircuitBreaker(recovery.CircuitBreakerConfig{
			Name:         "pql-executor",
			MaxFailures:  cfg.CircuitBreakerMaxFailures,
			ResetTimeout: cfg.CircuitBreakerResetTimeout,
			Logger:       log,
			OnStateChange: func(name string, from, to recovery.CircuitState) {
				if to == recovery.StateOpen {
					metrics.QueryBreakerOpen.Set(1)
				} else {
					metrics.QueryBreakerOpen.Set(0)
				}
			},
		}),
		log: log,
	}
}

// Execute runs query against the cluster's PPL endpoint, blocking on the
// rate limiter and short-circuiting immediately when the breaker is open.
func (e *HTTPExecutor) Execute(ctx context.Context, query string, params map[string]interface{}) (*models.QueryResponse, error) {
	start := time.Now()
	response, err := e.executeTimed(ctx, query)
	metrics.QueryExecutionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.QueryExecutionsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.QueryExecutionsTotal.WithLabelValues("ok").Inc()
	return response, nil
}

func (e *HTTPExecutor) executeTimed(ctx context.Context, query string) (*models.QueryResponse, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, errors.WrapKind(err, errors.KindCancelled, "waiting for query rate limiter")
	}

	var response *models.QueryResponse
	err := e.breaker.Execute(ctx, func(ctx context.Context) error {
		resp, execErr := e.execute(ctx, query)
		if execErr != nil {
			return execErr
		}
		response = resp
		return nil
	})
	if err == nil {
		return response, nil
	}
	if stderrors.Is(err, recovery.ErrCircuitOpen) {
		// The breaker rejected the call without touching the cluster: this
		// is the engine's cue to retreat exactly like a 429 would be.
		return nil, errors.WrapKind(err, errors.KindTransient, "pql executor circuit open")
	}
	return nil, err
}

// BreakerStats reports the query breaker's current state, surfaced by the
// process's health endpoint.
func (e *HTTPExecutor) BreakerStats() map[string]interface{} {
	return e.breaker.Stats()
}

func (e *HTTPExecutor) execute(ctx context.Context, query string) (*models.QueryResponse, error) {
	encoded, err := json.Marshal(ppqlRequest{Query: query})
	if err != nil {
		return nil, errors.WrapKind(err, errors.KindFatal, "encoding pql request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/_plugins/_ppl", bytes.NewReader(encoded))
	if err != nil {
		return nil, errors.WrapKind(err, errors.KindFatal, "building pql request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.WrapKind(ctx.Err(), errors.KindCancelled, "pql query cancelled")
		}
		return nil, errors.WrapKind(err, errors.KindTransient, "pql query request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errors.NewKind(errors.KindTransient, "pql cluster returned 429")
	}
	if resp.StatusCode >= 500 {
		return nil, errors.NewKind(errors.KindTransient, fmt.Sprintf("pql cluster returned status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return nil, errors.NewKind(errors.KindQueryFailed, fmt.Sprintf("pql query rejected with status %d", resp.StatusCode))
	}

	var out models.QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.WrapKind(err, errors.KindFatal, "decoding pql response")
	}
	return &out, nil
}
