package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/duregger/cafe-rio-nutrition/internal/apierror"
	"github.com/duregger/cafe-rio-nutrition/internal/dto"
	"github.com/duregger/cafe-rio-nutrition/internal/model"
	"github.com/duregger/cafe-rio-nutrition/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// TokenVerifier checks an identity-provider token and returns the identity
// it vouches for.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*model.Identity, error)
}

// Authenticator resolves request credentials into a Principal. It never
// decides authorization; that is AccessPolicy's job.
type Authenticator interface {
	Authenticate(ctx context.Context, apiKey, bearer string) (*Principal, error)
}

type authenticator struct {
	keys     repository.APIKeyRepository
	users    repository.UserRepository
	verifier TokenVerifier
	now      func() time.Time
}

func NewAuthenticator(keys repository.APIKeyRepository, users repository.UserRepository, verifier TokenVerifier) Authenticator {
	return &authenticator{keys: keys, users: users, verifier: verifier, now: time.Now}
}

var errBadKey = errors.New("invalid api key")

// Authenticate tries the API key first and falls back to the bearer token.
// Any failure is reported as Unauthorized.
func (a *authenticator) Authenticate(ctx context.Context, apiKey, bearer string) (*Principal, error) {
	apiKey = strings.TrimSpace(apiKey)
	bearer = strings.TrimSpace(bearer)
	if apiKey == "" && bearer == "" {
		return nil, apierror.Unauthorized("Authentication required")
	}

	if apiKey != "" {
		p, err := a.fromAPIKey(ctx, apiKey)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, errBadKey) {
			return nil, err
		}
		if bearer == "" {
			return nil, apierror.Unauthorized("Invalid or expired API key")
		}
	}

	if a.verifier == nil {
		return nil, apierror.Unauthorized("Identity tokens are not accepted")
	}
	id, err := a.verifier.Verify(ctx, bearer)
	if err != nil {
		log.Debug().Err(err).Msg("identity token rejected")
		return nil, apierror.Unauthorized("Invalid or expired token")
	}

	p := &Principal{Kind: PrincipalIdentity, UID: id.UID, Email: id.Email}
	u, err := a.users.FindByUID(ctx, id.UID)
	switch {
	case err == nil:
		if u.IsActive {
			p.Role = u.Role
		}
	case !isNotFound(err):
		return nil, apierror.Upstream("find user", err)
	}
	return p, nil
}

func (a *authenticator) fromAPIKey(ctx context.Context, raw string) (*Principal, error) {
	prefix, secret, ok := strings.Cut(raw, ".")
	if !ok || prefix == "" || secret == "" {
		return nil, errBadKey
	}
	k, err := a.keys.FindByPrefix(ctx, prefix)
	if err != nil {
		if isNotFound(err) {
			return nil, errBadKey
		}
		return nil, apierror.Upstream("find api key", err)
	}
	now := a.now()
	if !k.IsActive || (k.ExpiresAt != nil && !now.Before(*k.ExpiresAt)) {
		return nil, errBadKey
	}
	if bcrypt.CompareHashAndPassword([]byte(k.KeyHash), []byte(secret)) != nil {
		return nil, errBadKey
	}
	if err := a.keys.TouchLastUsed(ctx, k.ID, now.UTC()); err != nil {
		log.Warn().Err(err).Str("key", k.Prefix).Msg("could not record api key use")
	}
	return &Principal{Kind: PrincipalAPIKey, KeyName: k.Name}, nil
}

// PrincipalResponse renders p for GET /api/me.
func PrincipalResponse(p *Principal) dto.PrincipalResponse {
	return dto.PrincipalResponse{Kind: p.Kind, UID: p.UID, Email: p.Email, Role: p.Role, KeyName: p.KeyName}
}

// ── Credential administration ─────────────────────────────────────────────────

// AccessAdmin issues API keys and grants roles. It backs catalogctl.
type AccessAdmin interface {
	IssueAPIKey(ctx context.Context, name string, ttl time.Duration) (string, *model.APIKey, error)
	GrantRole(ctx context.Context, uid, email, role string) (*model.User, error)
}

type accessAdmin struct {
	keys  repository.APIKeyRepository
	users repository.UserRepository
	cost  int
}

func NewAccessAdmin(keys repository.APIKeyRepository, users repository.UserRepository) AccessAdmin {
	return &accessAdmin{keys: keys, users: users, cost: bcrypt.DefaultCost}
}

// IssueAPIKey returns the plaintext key "<prefix>.<secret>" exactly once;
// only the bcrypt hash of the secret is stored. ttl <= 0 means no expiry.
func (s *accessAdmin) IssueAPIKey(ctx context.Context, name string, ttl time.Duration) (string, *model.APIKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil, apierror.Validation("name is required")
	}
	prefix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	secret := strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return "", nil, err
	}

	now := time.Now().UTC()
	k := &model.APIKey{
		ID:        uuid.New(),
		Name:      name,
		Prefix:    prefix,
		KeyHash:   string(hash),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if ttl > 0 {
		exp := now.Add(ttl)
		k.ExpiresAt = &exp
	}
	if err := s.keys.Create(ctx, k); err != nil {
		return "", nil, apierror.Upstream("create api key", err)
	}
	return prefix + "." + secret, k, nil
}

func (s *accessAdmin) GrantRole(ctx context.Context, uid, email, role string) (*model.User, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, apierror.Validation("uid is required")
	}
	if role != model.RoleAdmin && role != model.RoleEditor {
		return nil, apierror.Validationf("role must be %q or %q", model.RoleAdmin, model.RoleEditor)
	}
	now := time.Now().UTC()
	u := &model.User{UID: uid, Email: strings.TrimSpace(email), Role: role, IsActive: true, CreatedAt: now, UpdatedAt: now}
	if err := s.users.Upsert(ctx, u); err != nil {
		return nil, apierror.Upstream("grant role", err)
	}
	return u, nil
}
