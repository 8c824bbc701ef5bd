// Package resilience holds the retry, throttling and circuit-breaking
// primitives shared by every upstream provider, together with the
// Result/Error types that carry provider outcomes across component
// boundaries without panics.
package resilience

import (
	"encoding/json"
	"fmt"
)

// Kind classifies a provider failure.
type Kind string

const (
	KindValidation    Kind = "ValidationError"
	KindConfiguration Kind = "ConfigurationError"
	KindUpstreamHTTP  Kind = "UpstreamHTTPError"
	KindNetwork       Kind = "NetworkError"
	KindTimeout       Kind = "TimeoutError"
)

// Error is the normalized failure envelope produced by the access layer.
type Error struct {
	Kind       Kind   `json:"kind"`
	Message    string `json:"message"`
	Provider   string `json:"provider"`
	Retryable  bool   `json:"retryable"`
	StatusCode *int   `json:"statusCode,omitempty"`
}

func (e *Error) Error() string {
	if e.StatusCode != nil {
		return fmt.Sprintf("%s: %s: %s (status %d)", e.Provider, e.Kind, e.Message, *e.StatusCode)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
}

// WithProvider returns a copy of e tagged with provider.
func (e *Error) WithProvider(provider string) *Error {
	cp := *e
	cp.Provider = provider
	return &cp
}

// NewError builds an Error. Retryability follows the kind: network and
// timeout failures are retryable, everything else is not. Upstream HTTP
// errors set Retryable explicitly through HTTPError.
func NewError(kind Kind, provider, format string, args ...any) *Error {
	return &Error{
		Kind:      kind,
		Message:   fmt.Sprintf(format, args...),
		Provider:  provider,
		Retryable: kind == KindNetwork || kind == KindTimeout,
	}
}

// HTTPError builds an UpstreamHTTPError for a non-2xx response.
func HTTPError(provider string, status int, message string, retryable bool) *Error {
	code := status
	return &Error{
		Kind:       KindUpstreamHTTP,
		Message:    message,
		Provider:   provider,
		Retryable:  retryable,
		StatusCode: &code,
	}
}

// Result is either a value or an *Error, never both.
type Result[T any] struct {
	value T
	err   *Error
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Fail wraps a failure. A nil err is a programming error.
func Fail[T any](err *Error) Result[T] {
	if err == nil {
		panic("resilience: Fail called with nil error")
	}
	return Result[T]{err: err}
}

// IsOk reports whether r holds a value.
func (r Result[T]) IsOk() bool { return r.err == nil }

// Value returns the value and whether r is Ok.
func (r Result[T]) Value() (T, bool) { return r.value, r.err == nil }

// Err returns the failure, or nil for Ok results.
func (r Result[T]) Err() *Error { return r.err }

// MarshalJSON renders {"ok":true,"data":...} or {"ok":false,"error":{...}}.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	if r.err != nil {
		return json.Marshal(struct {
			OK    bool   `json:"ok"`
			Error *Error `json:"error"`
		}{false, r.err})
	}
	return json.Marshal(struct {
		OK   bool `json:"ok"`
		Data T    `json:"data"`
	}{true, r.value})
}

// Then runs next on the value of r, or forwards r's failure unchanged.
func Then[T, U any](r Result[T], next func(T) Result[U]) Result[U] {
	if r.err != nil {
		return Fail[U](r.err)
	}
	return next(r.value)
}
