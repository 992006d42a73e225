package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/abgdnv/storefront/pkg/config"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

// JWTVerifier decodes tokens after checking their signature against a JWKS endpoint.
// It caches the key set for MinInterval to minimize network calls.
// Expiry is not checked: an expired token is still a valid session until the backend answers 401.
type JWTVerifier struct {
	mu sync.RWMutex

	jwksURL string
	issuer  string

	cachedSet     jwk.Set
	lastRefreshed time.Time
	minInterval   time.Duration
}

// NewJWTVerifier creates a new JWTVerifier instance.
func NewJWTVerifier(ctx context.Context, cfg config.IdP) (*JWTVerifier, error) {
	v := &JWTVerifier{
		jwksURL:     cfg.JwksURL,
		issuer:      cfg.Issuer,
		minInterval: cfg.MinInterval,
	}
	// Fail-Fast: Immediately fetch the JWKS to ensure the configuration is valid.
	if _, err := v.getKeySet(ctx); err != nil {
		return nil, fmt.Errorf("initial JWKS fetch failed: %w", err)
	}
	return v, nil
}

// getKeySet retrieves the JWKS set, caching it for subsequent calls.
func (v *JWTVerifier) getKeySet(ctx context.Context) (jwk.Set, error) {
	v.mu.RLock()
	if v.cachedSet != nil && time.Since(v.lastRefreshed) < v.minInterval {
		set := v.cachedSet
		v.mu.RUnlock()
		return set, nil
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()
	// another goroutine may have refreshed while we waited for the lock
	if v.cachedSet != nil && time.Since(v.lastRefreshed) < v.minInterval {
		return v.cachedSet, nil
	}
	set, err := jwk.Fetch(ctx, v.jwksURL)
	if err != nil {
		// keep serving the stale set while the endpoint is down
		if v.cachedSet != nil {
			return v.cachedSet, nil
		}
		return nil, fmt.Errorf("failed to fetch JWKS from %s: %w", v.jwksURL, err)
	}
	v.cachedSet = set
	v.lastRefreshed = time.Now()
	return v.cachedSet, nil
}

func (v *JWTVerifier) Decode(ctx context.Context, token string) (Claims, error) {
	set, err := v.getKeySet(ctx)
	if err != nil {
		return Claims{}, fmt.Errorf("failed to get keyset for verification: %w", err)
	}

	opts := []jwt.ParseOption{jwt.WithKeySet(set), jwt.WithValidate(false)}
	parsed, err := jwt.Parse([]byte(token), opts...)
	if err != nil {
		return Claims{}, fmt.Errorf("failed to verify token: %w", err)
	}
	if v.issuer != "" {
		if iss, _ := parsed.Issuer(); iss != v.issuer {
			return Claims{}, fmt.Errorf("failed to verify token: unexpected issuer %q", iss)
		}
	}
	return claimsFrom(parsed)
}
