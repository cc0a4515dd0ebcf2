package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-service/internal/api/middleware"
	"github.com/99minutos/identity-service/internal/core/domain"
)

// ctxClaims extracts the claims injected by the Auth middleware. A missing
// subject means the route was mounted without Auth.
func ctxClaims(c echo.Context) (*domain.Claims, error) {
	claims := middleware.ClaimsFrom(c)
	if claims == nil || claims.Subject == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return claims, nil
}

// requireSelfOrAdmin allows the account owner and administrators.
func requireSelfOrAdmin(c echo.Context, id string) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}
	if claims.Subject != id && claims.Role != domain.RoleAdmin {
		return domain.ErrForbidden
	}
	return nil
}

// requireSelf allows only the account owner.
func requireSelf(c echo.Context, id string) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}
	if claims.Subject != id {
		return domain.ErrForbidden
	}
	return nil
}

func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	return nil
}
