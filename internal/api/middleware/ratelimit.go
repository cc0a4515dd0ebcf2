package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-service/internal/infrastructure/ratelimit"
)

// KeyFunc derives the rate limit key for a request.
type KeyFunc func(c echo.Context) string

// ByIP keys on the client address.
func ByIP(c echo.Context) string {
	return c.RealIP()
}

// ByRoute keys on the client address and a fixed route name.
func ByRoute(route string) KeyFunc {
	return func(c echo.Context) string {
		return c.RealIP() + ":" + route
	}
}

// ByUser keys on the authenticated subject, falling back to the client address.
func ByUser(c echo.Context) string {
	if claims := ClaimsFrom(c); claims != nil && claims.Subject != "" {
		return "user:" + claims.Subject
	}
	return c.RealIP()
}

// RateLimit consumes one point per request. Rejections surface as
// *domain.RateLimitError for the error handler.
func RateLimit(limiter *ratelimit.Limiter, key KeyFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := limiter.Consume(c.Request().Context(), key(c)); err != nil {
				return err
			}
			return next(c)
		}
	}
}
