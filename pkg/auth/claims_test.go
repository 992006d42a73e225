package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/abgdnv/storefront/pkg/auth/authtest"
	"github.com/abgdnv/storefront/pkg/config"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsecureDecoder_Decode(t *testing.T) {
	testCases := []struct {
		name          string
		token         string
		expectedID    int64
		expectedRoles []string
		expectError   bool
	}{
		{
			name:          "Success - user token",
			token:         authtest.Token(t, 7, RoleUser),
			expectedID:    7,
			expectedRoles: []string{RoleUser},
		},
		{
			name:          "Success - admin token",
			token:         authtest.Token(t, 1, RoleUser, RoleAdmin),
			expectedID:    1,
			expectedRoles: []string{RoleUser, RoleAdmin},
		},
		{
			name:          "Success - no roles gets anonymous default",
			token:         authtest.Token(t, 3),
			expectedID:    3,
			expectedRoles: []string{RoleAnonymous},
		},
		{
			name:          "Success - expired token still decodes",
			token:         authtest.Expired(t, 9, RoleUser),
			expectedID:    9,
			expectedRoles: []string{RoleUser},
		},
		{
			name:        "Failure - not a JWT",
			token:       "not-a-token",
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// when
			claims, err := InsecureDecoder{}.Decode(context.Background(), tc.token)

			// then
			if tc.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectedID, claims.UserID)
			assert.Equal(t, tc.expectedRoles, claims.Roles)
			assert.False(t, claims.Expiry.IsZero())
		})
	}
}

func TestClaims_HasRole(t *testing.T) {
	c := Claims{Roles: []string{RoleUser, RoleAdmin}}
	assert.True(t, c.HasRole(RoleAdmin))
	assert.False(t, c.HasRole(RoleAnonymous))
}

func TestJWTVerifier_Decode(t *testing.T) {
	// given
	rawKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	privKey, err := jwk.Import(rawKey)
	require.NoError(t, err)
	require.NoError(t, privKey.Set(jwk.KeyIDKey, "test-kid"))
	require.NoError(t, privKey.Set(jwk.AlgorithmKey, jwa.RS256()))
	pubKey, err := jwk.PublicKeyOf(privKey)
	require.NoError(t, err)
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(pubKey))

	jwks := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(set)
	}))
	defer jwks.Close()

	tok, err := jwt.NewBuilder().
		Issuer("storefront-backend").
		Subject("9").
		Claim("id", 9).
		Claim("roles", []string{RoleAdmin}).
		Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256(), privKey))
	require.NoError(t, err)

	verifier, err := NewJWTVerifier(context.Background(), config.IdP{
		JwksURL:     jwks.URL,
		Issuer:      "storefront-backend",
		MinInterval: time.Minute,
	})
	require.NoError(t, err)

	// when
	claims, err := verifier.Decode(context.Background(), string(signed))

	// then
	require.NoError(t, err)
	assert.Equal(t, int64(9), claims.UserID)
	assert.True(t, claims.HasRole(RoleAdmin))

	// and a token signed with another key is rejected
	_, err = verifier.Decode(context.Background(), authtest.Token(t, 9, RoleAdmin))
	assert.Error(t, err)
}
