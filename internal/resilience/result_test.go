package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultJSON(t *testing.T) {
	ok, err := json.Marshal(Ok(map[string]int{"aqius": 42}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"data":{"aqius":42}}`, string(ok))

	failed, err := json.Marshal(Fail[int](HTTPError("parks", http.StatusTooManyRequests, "slow down", true)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":false,"error":{"kind":"UpstreamHTTPError","message":"slow down","provider":"parks","retryable":true,"statusCode":429}}`, string(failed))

	cfg, err := json.Marshal(Fail[int](NewError(KindConfiguration, "airvisual", "airvisual API key is not configured")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":false,"error":{"kind":"ConfigurationError","message":"airvisual API key is not configured","provider":"airvisual","retryable":false}}`, string(cfg))
}

func TestThenForwardsFailureUnchanged(t *testing.T) {
	cause := NewError(KindNetwork, "parks", "connection reset")
	called := false

	out := Then(Fail[int](cause), func(int) Result[string] {
		called = true
		return Ok("unreachable")
	})

	assert.False(t, called)
	assert.Same(t, cause, out.Err())

	chained := Then(Ok(2), func(v int) Result[string] { return Ok(fmt.Sprint(v * 2)) })
	v, isOk := chained.Value()
	assert.True(t, isOk)
	assert.Equal(t, "4", v)
}

func TestNewErrorRetryability(t *testing.T) {
	assert.True(t, NewError(KindNetwork, "p", "x").Retryable)
	assert.True(t, NewError(KindTimeout, "p", "x").Retryable)
	assert.False(t, NewError(KindValidation, "p", "x").Retryable)
	assert.False(t, NewError(KindConfiguration, "p", "x").Retryable)
}

func TestWithProviderCopies(t *testing.T) {
	orig := NewError(KindNetwork, "", "reset")
	tagged := orig.WithProvider("openweather")

	assert.Equal(t, "openweather", tagged.Provider)
	assert.Empty(t, orig.Provider)
}

func TestClassifyTransportError(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, KindTimeout, classifyTransportError(ctx, "p", context.DeadlineExceeded).Kind)
	assert.Equal(t, KindTimeout, classifyTransportError(ctx, "p", errors.New("i/o timeout")).Kind)
	assert.Equal(t, KindNetwork, classifyTransportError(ctx, "p", errors.New("connection refused")).Kind)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Equal(t, KindTimeout, classifyTransportError(cancelled, "p", errors.New("read: connection reset")).Kind)
}

func TestUpstreamMessage(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{`{"message":"Invalid API key"}`, "Invalid API key"},
		{`{"error":true,"reason":"Latitude must be in range of -90 to 90°."}`, "Latitude must be in range of -90 to 90°."},
		{`{"error":{"code":"API_KEY_INVALID","message":"An invalid api_key was supplied."}}`, "An invalid api_key was supplied."},
		{`{"status":"fail","data":{"message":"call_limit_reached"}}`, "call_limit_reached"},
		{`<html>bad gateway</html>`, "HTTP 502 error"},
		{`{}`, "HTTP 502 error"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, upstreamMessage(http.StatusBadGateway, []byte(tc.body)), tc.body)
	}
}
