package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/api/response"
	"github.com/99minutos/identity-service/internal/core/domain"
)

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their HTTP status codes.
//   - Logs unexpected errors and hides their message unless development is set.
//   - Renders the standard envelope with success=false.
func NewHTTPErrorHandler(log zerolog.Logger, development bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, env := resolveError(err, log, development, c)
		if env.RetryAfter > 0 {
			c.Response().Header().Set("Retry-After", strconv.Itoa(env.RetryAfter))
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = response.Error(c, code, env)
	}
}

func resolveError(err error, log zerolog.Logger, development bool, c echo.Context) (int, response.Envelope) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, response.Envelope{Error: fmt.Sprintf("%v", he.Message)}
	}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, response.Envelope{Error: verr.Error(), Details: verr.Fields}
	}

	var rl *domain.RateLimitError
	if errors.As(err, &rl) {
		return http.StatusForbidden, response.Envelope{
			Error:      "too many requests, try again later",
			RetryAfter: rl.RetryAfterSeconds(),
		}
	}

	// Known domain errors → deterministic HTTP codes.
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, response.Envelope{Error: err.Error()}
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, response.Envelope{Error: "invalid credentials"}
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, response.Envelope{Error: "unauthorized"}
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, response.Envelope{Error: "access forbidden"}
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, response.Envelope{Error: "user not found"}
	case errors.Is(err, domain.ErrUserExists):
		return http.StatusConflict, response.Envelope{Error: "user already exists"}
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
		Msg("unhandled error")

	msg := "internal server error"
	if development {
		msg = err.Error()
	}
	return http.StatusInternalServerError, response.Envelope{Error: msg}
}
