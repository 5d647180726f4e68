package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"shelfsync/internal/logging"
	"shelfsync/internal/ratelimit"
	"shelfsync/internal/services"
)

const (
	defaultUserAgent       = "shelfsync/1.0 (+https://github.com/shelfsync/shelfsync)"
	defaultHTTPTimeout     = 15 * time.Second
	defaultBreakerFailures = 5
	defaultBreakerCooldown = 30 * time.Second
	maxResponseBytes       = 16 << 20
)

// Observer receives per-request telemetry.
type Observer interface {
	ObserveRequest(provider, outcome string, latency time.Duration)
	ObserveThrottle(provider string, wait time.Duration)
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Latency    time.Duration
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// StatusError describes a non-2xx provider response.
type StatusError struct {
	StatusCode int
	Latency    time.Duration
	Snippet    string
}

func (e *StatusError) Error() string {
	if e.Snippet == "" {
		return fmt.Sprintf("http %d (latency=%v)", e.StatusCode, e.Latency)
	}
	return fmt.Sprintf("http %d (latency=%v): %s", e.StatusCode, e.Latency, e.Snippet)
}

// RequestBuilder creates a fresh request for every attempt.
type RequestBuilder func(ctx context.Context) (*http.Request, error)

// Executor issues provider requests through the shared adaptive limiter, an
// optional fixed-rate pacer, and a per-provider circuit breaker. It maps HTTP
// failures onto the services error markers and applies the retry policy.
type Executor struct {
	name       string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	pacer      *rate.Limiter
	tokens     TokenSource
	policy     ratelimit.RetryPolicy
	observer   Observer
	logger     *slog.Logger
	userAgent  string
	breaker    *gobreaker.CircuitBreaker[*Response]

	breakerFailures uint32
	breakerCooldown time.Duration
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) ExecutorOption {
	return func(e *Executor) {
		if client != nil {
			e.httpClient = client
		}
	}
}

// WithLimiter attaches the run-wide adaptive limiter.
func WithLimiter(l *ratelimit.Limiter) ExecutorOption {
	return func(e *Executor) { e.limiter = l }
}

// WithPacer adds a fixed-rate ceiling on top of the adaptive delay.
func WithPacer(p *rate.Limiter) ExecutorOption {
	return func(e *Executor) { e.pacer = p }
}

// WithTokenSource authorizes requests with a bearer token.
func WithTokenSource(ts TokenSource) ExecutorOption {
	return func(e *Executor) { e.tokens = ts }
}

// WithRetryPolicy overrides the retry ceilings.
func WithRetryPolicy(p ratelimit.RetryPolicy) ExecutorOption {
	return func(e *Executor) { e.policy = p }
}

// WithObserver reports request outcomes to o.
func WithObserver(o Observer) ExecutorOption {
	return func(e *Executor) { e.observer = o }
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = logger }
}

// WithUserAgent sets the User-Agent header sent when the request has none.
func WithUserAgent(ua string) ExecutorOption {
	return func(e *Executor) {
		if ua != "" {
			e.userAgent = ua
		}
	}
}

// WithBreaker tunes the circuit breaker: it opens after failures consecutive
// transient errors and probes again after cooldown.
func WithBreaker(failures uint32, cooldown time.Duration) ExecutorOption {
	return func(e *Executor) {
		if failures > 0 {
			e.breakerFailures = failures
		}
		if cooldown > 0 {
			e.breakerCooldown = cooldown
		}
	}
}

// NewExecutor builds an executor for the named provider.
func NewExecutor(name string, opts ...ExecutorOption) *Executor {
	e := &Executor{
		name:            name,
		httpClient:      &http.Client{Timeout: defaultHTTPTimeout},
		policy:          ratelimit.DefaultRetryPolicy(),
		userAgent:       defaultUserAgent,
		breakerFailures: defaultBreakerFailures,
		breakerCooldown: defaultBreakerCooldown,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.NewComponentLogger(e.logger, name)
	e.breaker = gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     e.breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= e.breakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.WarnWithContext(e.logger, "circuit breaker state change", "circuit_breaker",
				logging.String("from", from.String()),
				logging.String("to", to.String()),
				logging.String(logging.FieldImpact, "requests to "+name+" are short-circuited while open"),
				logging.String(logging.FieldErrorHint, "check provider status and network connectivity"),
			)
		},
		IsSuccessful: func(err error) bool {
			// Only transport-level trouble counts against the provider.
			return err == nil || !(errors.Is(err, services.ErrTransient) || errors.Is(err, services.ErrRateLimited))
		},
	})
	return e
}

// Name returns the provider name the executor serves.
func (e *Executor) Name() string {
	return e.name
}

// Do performs the request produced by build, retrying per policy.
func (e *Executor) Do(ctx context.Context, build RequestBuilder) (*Response, error) {
	var rateRetries, transientRetries int
	reauthorized := false
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.limiter.Acquire(ctx)
		if e.pacer != nil {
			if err := e.pacer.Wait(ctx); err != nil {
				return nil, err
			}
		}

		req, err := build(ctx)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, e.name, "build request", "", err)
		}
		if e.tokens != nil {
			token, err := e.tokens.Token(ctx)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Authorization", "Bearer "+token)
		}
		if req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", e.userAgent)
		}

		var last *Response
		resp, err := e.breaker.Execute(func() (*Response, error) {
			r, err := e.roundTrip(ctx, req)
			last = r
			return r, err
		})
		if err == nil {
			e.limiter.Success()
			e.observe("ok", resp.Latency)
			return resp, nil
		}

		latency := time.Duration(0)
		if last != nil {
			latency = last.Latency
		}
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			e.observe("rejected", 0)
			return nil, services.Wrap(services.ErrTransient, e.name, "circuit breaker", "provider temporarily disabled", err)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		case errors.Is(err, services.ErrRateLimited):
			e.observe("rate_limited", latency)
			var retryAfter time.Duration
			if last != nil {
				retryAfter = ratelimit.ParseRetryAfter(last.Header.Get("Retry-After"), time.Now())
			}
			wait := e.limiter.Throttled(retryAfter)
			if e.observer != nil {
				e.observer.ObserveThrottle(e.name, wait)
			}
			if rateRetries >= e.policy.RateLimitRetries {
				return nil, err
			}
			rateRetries++
			e.logger.Debug("provider throttled; retrying",
				logging.Duration("wait", wait),
				logging.Int("attempt", rateRetries),
			)
			if e.limiter == nil {
				if err := ratelimit.SleepWithContext(ctx, wait); err != nil {
					return nil, err
				}
			}
		case errors.Is(err, services.ErrTransient):
			e.observe("transient", latency)
			if transientRetries >= e.policy.TransientRetries {
				return nil, err
			}
			transientRetries++
			backoff := e.policy.Backoff(transientRetries)
			e.logger.Debug("transient provider failure; retrying",
				logging.Duration("backoff", backoff),
				logging.Int("attempt", transientRetries),
				logging.Error(err),
			)
			if err := ratelimit.SleepWithContext(ctx, backoff); err != nil {
				return nil, err
			}
		case errors.Is(err, services.ErrAuth) && e.tokens != nil && !reauthorized:
			e.observe("auth", latency)
			reauthorized = true
			e.tokens.Invalidate()
		default:
			if errors.Is(err, services.ErrNotFound) {
				e.limiter.Success()
				e.observe("not_found", latency)
			} else {
				e.observe("error", latency)
			}
			return nil, err
		}
	}
}

// GetJSON issues a GET and decodes the JSON body into v.
func (e *Executor) GetJSON(ctx context.Context, endpoint string, header http.Header, v any) error {
	resp, err := e.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		for key, values := range header {
			for _, value := range values {
				req.Header.Add(key, value)
			}
		}
		return req, nil
	})
	if err != nil {
		return err
	}
	if err := resp.Decode(v); err != nil {
		return services.Wrap(services.ErrValidation, e.name, "decode", "", err)
	}
	return nil
}

func (e *Executor) roundTrip(ctx context.Context, req *http.Request) (*Response, error) {
	start := time.Now()
	resp, err := e.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, services.Wrap(services.ErrTransient, e.name, req.Method+" "+req.URL.Path,
			fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, e.name, req.Method+" "+req.URL.Path, "read body", err)
	}
	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body, Latency: latency}
	if marker := statusMarker(resp.StatusCode); marker != nil {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Latency: latency, Snippet: snippet(body)}
		return out, services.Wrap(marker, e.name, req.Method+" "+req.URL.Path, "", statusErr)
	}
	return out, nil
}

func (e *Executor) observe(outcome string, latency time.Duration) {
	if e.observer != nil {
		e.observer.ObserveRequest(e.name, outcome, latency)
	}
}

// statusMarker maps an HTTP status onto the error taxonomy. 2xx maps to nil.
func statusMarker(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return services.ErrAuth
	case code == http.StatusNotFound:
		return services.ErrNotFound
	case code == http.StatusTooManyRequests:
		return services.ErrRateLimited
	case code == http.StatusRequestTimeout, code >= 500:
		return services.ErrTransient
	default:
		return services.ErrValidation
	}
}

func snippet(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
