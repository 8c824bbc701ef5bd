package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/parks-context/internal/resilience"
)

// authStyle attaches a credential to an outbound request.
type authStyle func(req *http.Request, values url.Values, credential string)

func headerAuth(name string) authStyle {
	return func(req *http.Request, _ url.Values, credential string) {
		req.Header.Set(name, credential)
	}
}

func queryAuth(param string) authStyle {
	return func(_ *http.Request, values url.Values, credential string) {
		values.Set(param, credential)
	}
}

// Endpoint bundles everything one provider client needs. The executor
// carries the provider's retry policy, rate limiter and circuit breaker and
// is shared by reference for the process lifetime.
type Endpoint struct {
	Name       string
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Executor   *resilience.Executor
	Logger     *zap.Logger
	Observer   resilience.Observer
}

// client is the provider-agnostic core shared by every concrete client:
// configuration check, throttled and retried GET, payload parsing.
type client struct {
	name              string
	baseURL           string
	credential        string
	requireCredential bool
	auth              authStyle
	http              *http.Client
	exec              *resilience.Executor
	logger            *zap.Logger
	observer          resilience.Observer
}

func newClient(ep Endpoint, requireCredential bool, auth authStyle) *client {
	c := &client{
		name:              ep.Name,
		baseURL:           strings.TrimRight(ep.BaseURL, "/"),
		credential:        ep.APIKey,
		requireCredential: requireCredential,
		auth:              auth,
		http:              ep.HTTPClient,
		exec:              ep.Executor,
		logger:            ep.Logger,
		observer:          ep.Observer,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 20 * time.Second}
	}
	if c.exec == nil {
		c.exec = resilience.NewExecutor(ep.Name, resilience.DefaultRetryPolicy())
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.observer == nil {
		c.observer = resilience.NopObserver{}
	}
	if requireCredential && ep.APIKey == "" {
		c.logger.Warn("api_key_missing",
			zap.String("provider", ep.Name),
			zap.String("message", "API key not provided; requests will return a configuration error"))
	}
	return c
}

func (c *client) configured() bool {
	return !c.requireCredential || c.credential != ""
}

// get performs a throttled, retried GET against endpoint.
func (c *client) get(ctx context.Context, endpoint string, params url.Values) resilience.Result[resilience.Response] {
	if !c.configured() {
		return resilience.Fail[resilience.Response](
			resilience.NewError(resilience.KindConfiguration, c.name, "%s API key is not configured", c.name))
	}

	u := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	c.logger.Debug("api_request",
		zap.String("provider", c.name),
		zap.String("method", http.MethodGet),
		zap.String("url", u),
		zap.String("params", params.Encode()))

	doRequest := func(ctx context.Context) (*http.Response, error) {
		values := url.Values{}
		for k, vs := range params {
			values[k] = append([]string(nil), vs...)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if c.auth != nil && c.credential != "" {
			c.auth(req, values, c.credential)
		}
		req.URL.RawQuery = values.Encode()
		return c.http.Do(req)
	}

	start := time.Now()
	res := c.exec.Execute(ctx, doRequest)
	elapsed := time.Since(start)

	if err := res.Err(); err != nil {
		c.logger.Error("api_request_failed",
			zap.String("provider", c.name),
			zap.String("url", u),
			zap.String("kind", string(err.Kind)),
			zap.String("error", err.Message),
			zap.Duration("duration", elapsed))
		return resilience.Fail[resilience.Response](err.WithProvider(c.name))
	}

	resp, _ := res.Value()
	c.logger.Debug("api_response",
		zap.String("provider", c.name),
		zap.String("url", u),
		zap.Int("status_code", resp.StatusCode),
		zap.Duration("duration", elapsed))
	return res
}

// call runs get and parses the body, mapping unusable payloads to
// ValidationError.
func call[T any](ctx context.Context, c *client, endpoint string, params url.Values, parse func([]byte) (T, error)) resilience.Result[T] {
	start := time.Now()
	res := resilience.Then(c.get(ctx, endpoint, params), func(r resilience.Response) resilience.Result[T] {
		v, err := parse(r.Body)
		if err != nil {
			c.logger.Error("response_parse_failed",
				zap.String("provider", c.name),
				zap.String("endpoint", endpoint),
				zap.Error(err))
			return resilience.Fail[T](resilience.NewError(resilience.KindValidation, c.name, "unusable response payload: %v", err))
		}
		return resilience.Ok(v)
	})
	c.observer.ObserveCall(c.name, time.Since(start), res.Err())
	return res
}

// flexInt decodes integers the Parks API sometimes sends as strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", s, err)
	}
	*f = flexInt(n)
	return nil
}

// optFloat decodes a JSON number into a pointer, leaving nil when absent.
func optFloat(raw json.RawMessage) *float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	return &f
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
