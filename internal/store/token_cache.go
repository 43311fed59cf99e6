package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/minjaelee/kis-sentinel/internal/domain"
)

const tokenKey = "kis:access_token"

// AuthProvider issues a fresh access token and its lifetime
type AuthProvider interface {
	Authenticate(ctx context.Context) (token string, ttl time.Duration, err error)
}

// TokenCache amortizes authentication across callers. A cached token is
// served until its TTL (minus the safety margin) runs out; concurrent
// callers during a refresh are serialized so only one auth call happens,
// and all of them receive its result. A failed refresh caches nothing.
type TokenCache struct {
	store  *Store
	auth   AuthProvider
	margin time.Duration
	mu     sync.Mutex
	log    zerolog.Logger
}

// NewTokenCache creates a new token cache
func NewTokenCache(store *Store, auth AuthProvider, margin time.Duration, log zerolog.Logger) *TokenCache {
	return &TokenCache{
		store:  store,
		auth:   auth,
		margin: margin,
		log:    log.With().Str("component", "token_cache").Logger(),
	}
}

// GetToken returns a valid access token, refreshing it if needed
func (c *TokenCache) GetToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	token, err := c.store.Get(ctx, tokenKey)
	if err == nil && token != "" {
		return token, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		// Store unreachable: degrade to refreshing on every call
		c.log.Warn().Err(err).Msg("Token store unreachable, refreshing without cache")
	}

	token, ttl, err := c.auth.Authenticate(ctx)
	if err != nil {
		return "", domain.E(domain.KindAuth, "token.refresh", err)
	}

	expiry := ttl - c.margin
	if expiry <= 0 {
		expiry = ttl
	}
	if expiry > 0 {
		if err := c.store.Set(ctx, tokenKey, token, expiry); err != nil {
			c.log.Warn().Err(err).Msg("Failed to cache token")
		}
	}

	c.log.Debug().Dur("ttl", expiry).Msg("Access token refreshed")
	return token, nil
}
