package infra

import (
	"context"
	"errors"
	"strings"

	"github.com/duregger/cafe-rio-nutrition/internal/model"

	"github.com/golang-jwt/jwt/v5"
)

// IdentityClaims are the claims read from an identity-provider token.
type IdentityClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWTVerifier checks HMAC-signed identity tokens.
type JWTVerifier struct {
	secret []byte
	opts   []jwt.ParserOption
}

// NewJWTVerifier builds a verifier; empty issuer or audience skips that check.
func NewJWTVerifier(secret, issuer, audience string) *JWTVerifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	return &JWTVerifier{secret: []byte(secret), opts: opts}
}

var errMissingIdentity = errors.New("token carries no subject or email")

func (v *JWTVerifier) Verify(_ context.Context, raw string) (*model.Identity, error) {
	claims := &IdentityClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, v.opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	if claims.Subject == "" || strings.TrimSpace(claims.Email) == "" {
		return nil, errMissingIdentity
	}
	return &model.Identity{UID: claims.Subject, Email: strings.TrimSpace(claims.Email)}, nil
}
