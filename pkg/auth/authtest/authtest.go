// Package authtest builds access tokens shaped like the backend's, for tests.
package authtest

import (
	"strconv"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

var signingKey = []byte("storefront-test-secret")

// Token returns an HS256 token carrying the id and roles claims.
func Token(t testing.TB, userID int64, roles ...string) string {
	t.Helper()
	return build(t, time.Now().Add(15*time.Minute), userID, roles)
}

// Expired returns a token that expired a minute ago.
func Expired(t testing.TB, userID int64, roles ...string) string {
	t.Helper()
	return build(t, time.Now().Add(-time.Minute), userID, roles)
}

func build(t testing.TB, expiry time.Time, userID int64, roles []string) string {
	t.Helper()
	builder := jwt.NewBuilder().
		Subject(strconv.FormatInt(userID, 10)).
		IssuedAt(expiry.Add(-15*time.Minute)).
		Expiration(expiry).
		Claim("id", userID)
	if len(roles) > 0 {
		builder = builder.Claim("roles", roles)
	}
	tok, err := builder.Build()
	if err != nil {
		t.Fatalf("failed to build token: %v", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256(), signingKey))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return string(signed)
}
