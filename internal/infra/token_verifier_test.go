package infra

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signIdentity(t *testing.T, secret string, claims IdentityClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func identityClaims(sub, email string, ttl time.Duration) IdentityClaims {
	return IdentityClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    "https://id.caferio.com",
			Audience:  jwt.ClaimStrings{"nutrition-admin"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
}

func TestJWTVerifier_Valid(t *testing.T) {
	v := NewJWTVerifier("s3cret", "https://id.caferio.com", "nutrition-admin")
	tok := signIdentity(t, "s3cret", identityClaims("u-1", "ana@caferio.com", time.Hour))

	id, err := v.Verify(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "u-1", id.UID)
	assert.Equal(t, "ana@caferio.com", id.Email)
}

func TestJWTVerifier_Rejects(t *testing.T) {
	v := NewJWTVerifier("s3cret", "https://id.caferio.com", "nutrition-admin")

	noExp := identityClaims("u-1", "ana@caferio.com", time.Hour)
	noExp.ExpiresAt = nil
	wrongAud := identityClaims("u-1", "ana@caferio.com", time.Hour)
	wrongAud.Audience = jwt.ClaimStrings{"other"}

	cases := map[string]string{
		"expired":      signIdentity(t, "s3cret", identityClaims("u-1", "ana@caferio.com", -time.Minute)),
		"wrong secret": signIdentity(t, "other", identityClaims("u-1", "ana@caferio.com", time.Hour)),
		"no expiry":    signIdentity(t, "s3cret", noExp),
		"no email":     signIdentity(t, "s3cret", identityClaims("u-1", "", time.Hour)),
		"audience":     signIdentity(t, "s3cret", wrongAud),
		"garbage":      "not.a.token",
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tok)
			assert.Error(t, err)
		})
	}
}
