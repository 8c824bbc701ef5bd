package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// maxBodyBytes bounds how much of an upstream body is buffered.
const maxBodyBytes = 8 << 20

// RetryPolicy is the immutable retry configuration of one provider.
type RetryPolicy struct {
	MaxAttempts          int
	BaseDelay            time.Duration
	MaxDelay             time.Duration
	RetryableStatusCodes map[int]struct{}
	JitterFraction       float64
}

// DefaultRetryableStatusCodes returns {429, 500, 502, 503, 504}.
func DefaultRetryableStatusCodes() map[int]struct{} {
	return map[int]struct{}{
		http.StatusTooManyRequests:     {},
		http.StatusInternalServerError: {},
		http.StatusBadGateway:          {},
		http.StatusServiceUnavailable:  {},
		http.StatusGatewayTimeout:      {},
	}
}

// DefaultRetryPolicy matches the upstream client defaults: three attempts,
// one second base delay doubling up to a minute, 10% jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:          3,
		BaseDelay:            1 * time.Second,
		MaxDelay:             60 * time.Second,
		RetryableStatusCodes: DefaultRetryableStatusCodes(),
		JitterFraction:       0.1,
	}
}

// Validate checks the policy invariants.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry policy: maxAttempts must be >= 1, got %d", p.MaxAttempts)
	}
	if p.BaseDelay < 0 || p.MaxDelay < 0 {
		return errors.New("retry policy: delays must not be negative")
	}
	if p.JitterFraction < 0 || p.JitterFraction > 1 {
		return fmt.Errorf("retry policy: jitterFraction must be within [0,1], got %v", p.JitterFraction)
	}
	return nil
}

// IsRetryableStatus reports whether an HTTP status should be retried.
func (p RetryPolicy) IsRetryableStatus(code int) bool {
	_, ok := p.RetryableStatusCodes[code]
	return ok
}

// Backoff returns the delay after the given 1-based attempt. u is a uniform
// sample in [0,1) used for jitter.
func (p RetryPolicy) Backoff(attempt int, u float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	raw := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	delay := math.Min(raw, float64(p.MaxDelay))

	delay += (2*u - 1) * p.JitterFraction * delay
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Response is a fully buffered upstream HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Call performs one upstream HTTP round trip.
type Call func(ctx context.Context) (*http.Response, error)

// Breaker is the subset of *gobreaker.CircuitBreaker the executor uses.
type Breaker interface {
	Execute(req func() (interface{}, error)) (interface{}, error)
}

// Executor runs upstream calls with throttling, a circuit breaker and
// bounded retries with exponential backoff.
type Executor struct {
	name           string
	policy         RetryPolicy
	limiter        *RateLimiter
	acquireTimeout time.Duration
	breaker        Breaker
	logger         *zap.Logger
	observer       Observer
	sleep          func(ctx context.Context, d time.Duration) error
	random         func() float64
}

// ExecutorOption customizes an Executor.
type ExecutorOption func(*Executor)

// WithRateLimiter makes every attempt acquire a token from l first.
func WithRateLimiter(l *RateLimiter, acquireTimeout time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.limiter = l
		e.acquireTimeout = acquireTimeout
	}
}

// WithBreaker routes every attempt through b.
func WithBreaker(b Breaker) ExecutorOption {
	return func(e *Executor) { e.breaker = b }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// WithObserver sets the event observer.
func WithObserver(o Observer) ExecutorOption {
	return func(e *Executor) { e.observer = o }
}

// WithSleep replaces the backoff sleep; used by tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) ExecutorOption {
	return func(e *Executor) { e.sleep = fn }
}

// WithRandom replaces the jitter source; fn must return values in [0,1).
func WithRandom(fn func() float64) ExecutorOption {
	return func(e *Executor) { e.random = fn }
}

// NewExecutor creates an Executor for provider name. A policy that fails
// Validate makes every Execute return a ConfigurationError.
func NewExecutor(name string, policy RetryPolicy, opts ...ExecutorOption) *Executor {
	e := &Executor{
		name:     name,
		policy:   policy,
		logger:   zap.NewNop(),
		observer: NopObserver{},
		sleep:    sleepContext,
		random:   rand.Float64,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.observer == nil {
		e.observer = NopObserver{}
	}
	return e
}

// Name returns the provider name.
func (e *Executor) Name() string { return e.name }

// Policy returns the retry policy.
func (e *Executor) Policy() RetryPolicy { return e.policy }

// Execute invokes call until it succeeds, fails terminally, or the policy's
// attempts are exhausted. Each attempt is throttled independently.
func (e *Executor) Execute(ctx context.Context, call Call) Result[Response] {
	if err := e.policy.Validate(); err != nil {
		return Fail[Response](NewError(KindConfiguration, e.name, "%v", err))
	}
	var last *Error

	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		if e.limiter != nil {
			if err := e.limiter.Acquire(ctx, e.acquireTimeout); err != nil {
				e.logger.Warn("rate_limit_wait_failed",
					zap.String("provider", e.name),
					zap.Int("attempt", attempt),
					zap.String("error", err.Message))
				return Fail[Response](err.WithProvider(e.name))
			}
		}

		start := time.Now()
		resp, err := e.attempt(ctx, call)
		e.observer.ObserveAttempt(e.name, attempt, time.Since(start), err)

		if err == nil {
			if attempt > 1 {
				e.logger.Info("request_succeeded_after_retry",
					zap.String("provider", e.name),
					zap.Int("attempt", attempt))
			}
			return Ok(resp)
		}
		last = err

		if !err.Retryable {
			e.logger.Debug("error_not_retryable",
				zap.String("provider", e.name),
				zap.String("kind", string(err.Kind)),
				zap.String("error", err.Message))
			return Fail[Response](err)
		}
		if ctx.Err() != nil {
			return Fail[Response](NewError(KindTimeout, e.name, "request aborted: %v", ctx.Err()))
		}
		if attempt == e.policy.MaxAttempts {
			break
		}

		delay := e.policy.Backoff(attempt, e.random())
		e.logger.Warn("retry_scheduled",
			zap.String("provider", e.name),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", e.policy.MaxAttempts),
			zap.Duration("delay", delay),
			zap.String("error", err.Error()))

		if serr := e.sleep(ctx, delay); serr != nil {
			return Fail[Response](NewError(KindTimeout, e.name, "retry aborted: %v", serr))
		}
	}

	e.logger.Error("max_retries_exceeded",
		zap.String("provider", e.name),
		zap.Int("max_attempts", e.policy.MaxAttempts),
		zap.String("error", last.Error()))
	return Fail[Response](last)
}

func (e *Executor) attempt(ctx context.Context, call Call) (Response, *Error) {
	if e.breaker == nil {
		return e.do(ctx, call)
	}

	var (
		out    Response
		outErr *Error
	)
	_, berr := e.breaker.Execute(func() (interface{}, error) {
		out, outErr = e.do(ctx, call)
		// Only transient provider failures count against the circuit; a
		// caller that gave up says nothing about the provider.
		if outErr != nil && outErr.Retryable && ctx.Err() == nil {
			return nil, outErr
		}
		return nil, nil
	})
	if errors.Is(berr, gobreaker.ErrOpenState) || errors.Is(berr, gobreaker.ErrTooManyRequests) {
		return Response{}, HTTPError(e.name, http.StatusServiceUnavailable, "circuit breaker open", false)
	}
	return out, outErr
}

func (e *Executor) do(ctx context.Context, call Call) (Response, *Error) {
	resp, err := call(ctx)
	if err != nil {
		return Response{}, classifyTransportError(ctx, e.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Response{}, classifyTransportError(ctx, e.name, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
	}
	return Response{}, HTTPError(e.name, resp.StatusCode,
		upstreamMessage(resp.StatusCode, body), e.policy.IsRetryableStatus(resp.StatusCode))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
