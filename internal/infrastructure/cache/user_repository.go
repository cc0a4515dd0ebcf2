// Package cache implements the cache-aside layer in front of the user store.
//
// Reads check the cache first and populate it from the store on a miss.
// Writes go to the store and then delete (never refresh) every key that may
// hold the affected user. A cache failure degrades to a store round-trip and
// never fails a request.
//
// Key scheme:
//
//	user:id:<id>
//	user:email:<email>
//	users:all:<limit>:<offset>
//	users:all:count
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
	"github.com/99minutos/identity-service/internal/pkg/metrics"
)

// DefaultTTL bounds staleness for any invalidation that was missed.
const DefaultTTL = 24 * time.Hour

const listPrefix = "users:all:"

func keyByID(id string) string       { return "user:id:" + id }
func keyByEmail(email string) string { return "user:email:" + email }
func keyCount() string               { return listPrefix + "count" }

func keyList(p ports.ListUsersParams) string {
	return fmt.Sprintf("%s%d:%d", listPrefix, p.Limit, p.Offset)
}

// cachedUser is the cache representation. Unlike domain.User it keeps the
// password hash, since credential checks read through this layer.
type cachedUser struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toCached(u *domain.User) cachedUser {
	return cachedUser{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (c cachedUser) toDomain() *domain.User {
	return &domain.User{
		ID:           c.ID,
		Username:     c.Username,
		Email:        c.Email,
		PasswordHash: c.PasswordHash,
		Role:         c.Role,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// UserRepository wraps a ports.UserRepository with a ports.Cache.
type UserRepository struct {
	next  ports.UserRepository
	cache ports.Cache
	ttl   time.Duration
	log   zerolog.Logger
}

var _ ports.UserRepository = (*UserRepository)(nil)

// NewUserRepository returns a cache-aside proxy around next. A ttl <= 0 selects DefaultTTL.
func NewUserRepository(next ports.UserRepository, cache ports.Cache, ttl time.Duration, log zerolog.Logger) *UserRepository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &UserRepository{next: next, cache: cache, ttl: ttl, log: log}
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, "by_id", keyByID(id), func() (*domain.User, error) {
		return r.next.FindByID(ctx, id)
	})
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, "by_email", keyByEmail(email), func() (*domain.User, error) {
		return r.next.FindByEmail(ctx, email)
	})
}

func (r *UserRepository) FindAll(ctx context.Context, params ports.ListUsersParams) ([]*domain.User, error) {
	key := keyList(params)

	var cached []cachedUser
	if r.lookup(ctx, "list", key, &cached) {
		users := make([]*domain.User, 0, len(cached))
		for _, c := range cached {
			users = append(users, c.toDomain())
		}
		return users, nil
	}

	users, err := r.next.FindAll(ctx, params)
	if err != nil {
		return nil, err
	}

	page := make([]cachedUser, 0, len(users))
	for _, u := range users {
		page = append(page, toCached(u))
	}
	r.populate(ctx, key, page)
	return users, nil
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if r.lookup(ctx, "count", keyCount(), &n) {
		return n, nil
	}

	n, err := r.next.Count(ctx)
	if err != nil {
		return 0, err
	}
	r.populate(ctx, keyCount(), n)
	return n, nil
}

func (r *UserRepository) Save(ctx context.Context, user *domain.User) (*domain.User, error) {
	saved, err := r.next.Save(ctx, user)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, saved)
	return saved, nil
}

// Update invalidates keys for both the previous and the new state, so a changed
// email never leaves the old email key pointing at stale data.
func (r *UserRepository) Update(ctx context.Context, user *domain.User) (*domain.User, error) {
	previous, err := r.next.FindByID(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	updated, err := r.next.Update(ctx, user)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, previous, updated)
	return updated, nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	existing, err := r.next.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := r.next.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, existing)
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, lookup, key string, fetch func() (*domain.User, error)) (*domain.User, error) {
	var cached cachedUser
	if r.lookup(ctx, lookup, key, &cached) {
		return cached.toDomain(), nil
	}

	user, err := fetch()
	if err != nil {
		return nil, err
	}
	r.populate(ctx, key, toCached(user))
	return user, nil
}

// lookup reports a hit only when the entry exists and decodes into dst.
func (r *UserRepository) lookup(ctx context.Context, lookup, key string, dst any) bool {
	raw, err := r.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ports.ErrCacheMiss) {
			metrics.CacheLookupsTotal.WithLabelValues(lookup, "miss").Inc()
		} else {
			metrics.CacheLookupsTotal.WithLabelValues(lookup, "error").Inc()
			r.log.Warn().Err(err).Str("key", key).Msg("cache read failed, falling back to store")
		}
		return false
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		metrics.CacheLookupsTotal.WithLabelValues(lookup, "error").Inc()
		r.log.Warn().Err(err).Str("key", key).Msg("corrupt cache entry, falling back to store")
		return false
	}

	metrics.CacheLookupsTotal.WithLabelValues(lookup, "hit").Inc()
	return true
}

func (r *UserRepository) populate(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("encode cache entry")
		return
	}
	if err := r.cache.Set(ctx, key, raw, r.ttl); err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func (r *UserRepository) invalidate(ctx context.Context, users ...*domain.User) {
	keys := make([]string, 0, 2*len(users))
	for _, u := range users {
		if u == nil {
			continue
		}
		keys = append(keys, keyByID(u.ID), keyByEmail(u.Email))
	}

	if err := r.cache.Delete(ctx, keys...); err != nil {
		metrics.CacheInvalidationErrorsTotal.Inc()
		r.log.Error().Err(err).Strs("keys", keys).Msg("cache invalidation failed")
	}
	if err := r.cache.DeletePrefix(ctx, listPrefix); err != nil {
		metrics.CacheInvalidationErrorsTotal.Inc()
		r.log.Error().Err(err).Str("prefix", listPrefix).Msg("cache invalidation failed")
	}
}
