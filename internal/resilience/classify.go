package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/i474232898/parks-context/internal/common"
)

// classifyTransportError maps a failed round trip to TimeoutError or
// NetworkError. Both are retryable.
func classifyTransportError(ctx context.Context, provider string, err error) *Error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return NewError(KindTimeout, provider, "request timed out")
	case errors.As(err, &netErr) && netErr.Timeout():
		return NewError(KindTimeout, provider, "request timed out")
	case ctx.Err() != nil:
		return NewError(KindTimeout, provider, "request timed out")
	case common.HasAny(strings.ToLower(err.Error()), "timeout", "deadline exceeded"):
		return NewError(KindTimeout, provider, "request timed out")
	default:
		return NewError(KindNetwork, provider, "network error: %v", err)
	}
}

// upstreamMessage extracts the provider's own error text from a non-2xx
// body. NPS nests it under error.message, Open-Meteo uses reason and
// AirVisual uses data.message.
func upstreamMessage(status int, body []byte) string {
	fallback := fmt.Sprintf("HTTP %d error", status)

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return fallback
	}
	if s, ok := payload["message"].(string); ok && s != "" {
		return s
	}
	if s, ok := payload["reason"].(string); ok && s != "" {
		return s
	}
	for _, key := range []string{"error", "data"} {
		switch v := payload[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]any:
			if s, ok := v["message"].(string); ok && s != "" {
				return s
			}
		}
	}
	return fallback
}
