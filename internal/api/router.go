package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/99minutos/identity-service/docs"
	"github.com/99minutos/identity-service/internal/api/handler"
	"github.com/99minutos/identity-service/internal/api/middleware"
	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
	"github.com/99minutos/identity-service/internal/infrastructure/ratelimit"
	"github.com/99minutos/identity-service/internal/pkg/validation"
)

// Deps carries everything the router wires into handlers and middleware.
type Deps struct {
	Log         zerolog.Logger
	Development bool

	Register ports.RegisterUserUseCase
	Login    ports.LoginUseCase
	Users    ports.UserService
	Auth     ports.AuthService

	DefaultLimiter *ratelimit.Limiter
	AuthLimiter    *ratelimit.Limiter
	UserLimiter    *ratelimit.Limiter

	// Readiness maps a dependency name ("mongodb", "redis", ...) to its ping.
	Readiness map[string]handler.Pinger

	// Registerer and Gatherer default to the global prometheus registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log, d.Development)

	if d.Registerer == nil {
		d.Registerer = prometheus.DefaultRegisterer
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}

	promMiddleware, err := echoprometheus.MiddlewareConfig{
		Subsystem:  "identity",
		Registerer: d.Registerer,
		Skipper:    skipInfra,
	}.ToMiddleware()
	if err != nil {
		return nil, err
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(echomiddleware.CORS())
	e.Use(promMiddleware)

	// --- Infrastructure routes ---
	healthHandler := handler.NewHealthHandler(d.Readiness)
	e.GET("/health", healthHandler.Liveness)        // liveness  – is the process alive?
	e.GET("/health/ready", healthHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: d.Gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- API v1 ---
	authHandler := handler.NewAuthHandler(d.Register, d.Login, d.Users)
	userHandler := handler.NewUserHandler(d.Users)

	v1 := e.Group("/api/v1")
	if d.DefaultLimiter != nil {
		v1.Use(middleware.RateLimit(d.DefaultLimiter, middleware.ByIP))
	}

	register := limited(d.AuthLimiter, middleware.ByRoute("register"))
	v1.POST("/sign-up", authHandler.SignUp, register...)
	v1.POST("/users", authHandler.SignUp, register...)
	v1.POST("/sign-in", authHandler.SignIn, limited(d.AuthLimiter, middleware.ByRoute("login"))...)

	// Auth stays per route so unknown /api/v1 paths still answer 404.
	authed := middleware.Auth(d.Auth)
	admin := middleware.RBAC(domain.RoleAdmin)
	v1.GET("/me", authHandler.Me, authed)
	v1.GET("/users", userHandler.List, authed, admin)
	v1.GET("/users/:id", userHandler.Get, authed)
	v1.PATCH("/users/:id", userHandler.Update, authed, admin)
	v1.PUT("/users/:id/password", userHandler.ChangePassword, append([]echo.MiddlewareFunc{authed}, limited(d.UserLimiter, middleware.ByUser)...)...)
	v1.DELETE("/users/:id", userHandler.Delete, authed)

	return e, nil
}

// limited returns the rate limit middleware for a route, or nothing when the limiter is disabled.
func limited(l *ratelimit.Limiter, key middleware.KeyFunc) []echo.MiddlewareFunc {
	if l == nil {
		return nil
	}
	return []echo.MiddlewareFunc{middleware.RateLimit(l, key)}
}

func skipInfra(c echo.Context) bool {
	p := c.Request().URL.Path
	return p == "/metrics" || strings.HasPrefix(p, "/health") || strings.HasPrefix(p, "/swagger")
}

// requestLogger writes one zerolog event per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= http.StatusInternalServerError {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
