// @title           Identity Service API
// @version         1.0
// @description     User accounts, authentication and session tokens.
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/api"
	"github.com/99minutos/identity-service/internal/api/handler"
	"github.com/99minutos/identity-service/internal/core/ports"
	"github.com/99minutos/identity-service/internal/core/service"
	"github.com/99minutos/identity-service/internal/core/usecase"
	"github.com/99minutos/identity-service/internal/infrastructure/cache"
	"github.com/99minutos/identity-service/internal/infrastructure/config"
	mongodb "github.com/99minutos/identity-service/internal/infrastructure/db/mongo"
	"github.com/99minutos/identity-service/internal/infrastructure/db/postgres"
	redisdb "github.com/99minutos/identity-service/internal/infrastructure/db/redis"
	"github.com/99minutos/identity-service/internal/infrastructure/hash"
	"github.com/99minutos/identity-service/internal/infrastructure/queue"
	"github.com/99minutos/identity-service/internal/infrastructure/ratelimit"
	"github.com/99minutos/identity-service/internal/infrastructure/token"
	"github.com/99minutos/identity-service/internal/pkg/validation"
	"github.com/99minutos/identity-service/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "identity-service",
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("server exiting")
}

// store bundles the persistence handles for the selected driver.
type store struct {
	users ports.UserRepository
	audit ports.AuditRepository
	ping  handler.Pinger
	close func(context.Context)
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// --- Connections ---
	rdb, err := redisdb.Connect(ctx, redisdb.Config{URL: cfg.Redis.URL, Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close(context.Background())

	// --- Audit ---
	dispatcher := queue.NewAuditDispatcher(cfg.Audit.Workers, st.audit, logger.Component("audit"))
	dispatcher.Start()

	// --- Core ---
	hasher, err := hash.New(cfg.Auth.HashAlgorithm)
	if err != nil {
		return err
	}
	signer, err := token.NewSigner(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	if err != nil {
		return err
	}

	repo := cache.NewUserRepository(st.users, redisdb.NewCache(rdb), cfg.Store.CacheTTL, logger.Component("cache"))
	users := service.NewUserService(repo, hasher, dispatcher, logger.Component("users"))
	auth := service.NewAuthService(users, hasher, signer, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL, logger.Component("auth"))
	v := validation.New()

	if err := bootstrapAdmin(ctx, users, cfg.Admin, log); err != nil {
		return err
	}

	// --- Rate limiting ---
	limiters, err := newLimiters(cfg.RateLimit.Backend, rdb, logger.Component("ratelimit"))
	if err != nil {
		return err
	}

	// --- HTTP ---
	e, err := api.NewRouter(api.Deps{
		Log:            logger.Component("http"),
		Development:    cfg.IsDevelopment(),
		Register:       usecase.NewRegisterUser(users, v, dispatcher, logger.Component("register")),
		Login:          usecase.NewLogin(auth, v, dispatcher, logger.Component("login")),
		Users:          users,
		Auth:           auth,
		DefaultLimiter: limiters[ratelimit.Default.Name],
		AuthLimiter:    limiters[ratelimit.Auth.Name],
		UserLimiter:    limiters[ratelimit.Password.Name],
		Readiness: map[string]handler.Pinger{
			cfg.Store.Driver: st.ping,
			"redis":          redisdb.Pinger{Client: rdb},
		},
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.Store.Driver).Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	// --- Graceful shutdown ---
	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Uint64("dropped", dispatcher.Dropped()).Msg("audit queue not drained")
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		pool, err := postgres.Connect(ctx, postgres.Config{URL: cfg.Postgres.URL})
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &store{
			users: postgres.NewUserRepository(pool),
			audit: postgres.NewAuditRepository(pool),
			ping:  pool,
			close: func(context.Context) { pool.Close() },
		}, nil

	default:
		client, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		users := mongodb.NewUserRepository(db)
		if err := users.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return &store{
			users: users,
			audit: mongodb.NewAuditRepository(db),
			ping:  mongodb.Pinger{Client: client},
			close: func(ctx context.Context) { _ = client.Disconnect(ctx) },
		}, nil
	}
}

// newLimiters builds the named limiters on the configured backend.
func newLimiters(backend string, rdb redis.UniversalClient, log zerolog.Logger) (map[string]*ratelimit.Limiter, error) {
	var st ratelimit.Store
	if backend == config.RateLimitMemory {
		st = ratelimit.NewMemoryStore()
	} else {
		st = ratelimit.NewRedisStore(rdb)
	}

	limiters := make(map[string]*ratelimit.Limiter, 3)
	for _, cfg := range []ratelimit.Config{ratelimit.Default, ratelimit.Auth, ratelimit.Password} {
		l, err := ratelimit.New(cfg, st, log)
		if err != nil {
			return nil, err
		}
		limiters[cfg.Name] = l
	}
	return limiters, nil
}
