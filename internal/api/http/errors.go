package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/parks-context/internal/resilience"
)

// ErrorHandler renders errors that did not come from a provider, such as
// unknown routes, missing history and recovered panics, in the same
// envelope as provider failures. Client errors are ValidationErrors; the
// closed kind set has no internal kind, so server errors use
// UpstreamHTTPError.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var rerr *resilience.Error
	if errors.As(err, &rerr) {
		return writeError(c, rerr)
	}

	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	kind := resilience.KindUpstreamHTTP
	if code < fiber.StatusInternalServerError {
		kind = resilience.KindValidation
	}
	status := code
	return c.Status(code).JSON(resilience.Fail[struct{}](&resilience.Error{
		Kind:       kind,
		Message:    err.Error(),
		Provider:   requestProvider,
		StatusCode: &status,
	}))
}
