package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/duregger/cafe-rio-nutrition/internal/apierror"
	"github.com/duregger/cafe-rio-nutrition/internal/model"
	"github.com/duregger/cafe-rio-nutrition/internal/repository/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestAuthorize(t *testing.T) {
	policy := NewAccessPolicy("caferio.com")
	admin := &Principal{Kind: PrincipalIdentity, Email: "ana@caferio.com", Role: model.RoleAdmin}
	editor := &Principal{Kind: PrincipalIdentity, Email: "Bo@CafeRio.com", Role: model.RoleEditor}
	outsider := &Principal{Kind: PrincipalIdentity, Email: "eve@caferio.com.evil.io", Role: model.RoleAdmin}
	key := &Principal{Kind: PrincipalAPIKey, KeyName: "kiosk"}

	cases := []struct {
		name string
		p    *Principal
		a    Action
		want Decision
	}{
		{"anonymous", nil, ActionWrite, DenyUnauthenticated},
		{"admin writes", admin, ActionWrite, Allow},
		{"admin admin", admin, ActionAdmin, Allow},
		{"editor writes", editor, ActionWrite, Allow},
		{"editor admin", editor, ActionAdmin, DenyRole},
		{"wrong domain", outsider, ActionWrite, DenyDomain},
		{"api key admin", key, ActionAdmin, Allow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, policy.Authorize(tc.p, tc.a))
		})
	}
}

func TestAuthorize_EmptyDomainDeniesIdentities(t *testing.T) {
	policy := NewAccessPolicy("")
	p := &Principal{Kind: PrincipalIdentity, Email: "ana@caferio.com", Role: model.RoleAdmin}

	assert.Equal(t, DenyDomain, policy.Authorize(p, ActionWrite))
	assert.Equal(t, Allow, policy.Authorize(&Principal{Kind: PrincipalAPIKey}, ActionAdmin))
}

func TestDecisionErr(t *testing.T) {
	assert.NoError(t, Allow.Err())
	assert.Equal(t, http.StatusUnauthorized, apierror.StatusOf(DenyUnauthenticated.Err()))
	assert.Equal(t, http.StatusForbidden, apierror.StatusOf(DenyDomain.Err()))
	assert.Equal(t, "Admin role required", apierror.PublicMessage(DenyRole.Err()))
}

type fakeVerifier struct {
	tokens map[string]model.Identity
}

func (f fakeVerifier) Verify(_ context.Context, token string) (*model.Identity, error) {
	id, ok := f.tokens[token]
	if !ok {
		return nil, errors.New("bad token")
	}
	return &id, nil
}

func newAccessFixture(t *testing.T) (*memstore.Store, Authenticator, AccessAdmin) {
	t.Helper()
	store := memstore.New()
	repos := store.Repositories()
	verifier := fakeVerifier{tokens: map[string]model.Identity{
		"tok-ana": {UID: "u-ana", Email: "ana@caferio.com"},
		"tok-bo":  {UID: "u-bo", Email: "bo@caferio.com"},
	}}
	admin := &accessAdmin{keys: repos.APIKeys, users: repos.Users, cost: bcrypt.MinCost}
	return store, NewAuthenticator(repos.APIKeys, repos.Users, verifier), admin
}

func TestAuthenticate_APIKey(t *testing.T) {
	ctx := context.Background()
	_, auth, admin := newAccessFixture(t)

	plain, key, err := admin.IssueAPIKey(ctx, "kiosk", time.Hour)
	require.NoError(t, err)
	require.NotNil(t, key.ExpiresAt)

	p, err := auth.Authenticate(ctx, plain, "")
	require.NoError(t, err)
	assert.Equal(t, PrincipalAPIKey, p.Kind)
	assert.Equal(t, "kiosk", p.KeyName)

	_, err = auth.Authenticate(ctx, plain+"x", "")
	assert.Equal(t, apierror.KindUnauthorized, apierror.KindOf(err))

	// a bad key falls back to a valid bearer token
	p, err = auth.Authenticate(ctx, "nope.nope", "tok-bo")
	require.NoError(t, err)
	assert.Equal(t, PrincipalIdentity, p.Kind)
}

func TestAuthenticate_ExpiredKey(t *testing.T) {
	ctx := context.Background()
	_, auth, admin := newAccessFixture(t)
	plain, _, err := admin.IssueAPIKey(ctx, "old", time.Minute)
	require.NoError(t, err)

	a := auth.(*authenticator)
	a.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	_, err = auth.Authenticate(ctx, plain, "")
	assert.Equal(t, apierror.KindUnauthorized, apierror.KindOf(err))
}

func TestAuthenticate_IdentityRoles(t *testing.T) {
	ctx := context.Background()
	store, auth, admin := newAccessFixture(t)
	_, err := admin.GrantRole(ctx, "u-ana", "ana@caferio.com", model.RoleAdmin)
	require.NoError(t, err)
	store.PutUser(model.User{UID: "u-bo", Email: "bo@caferio.com", Role: model.RoleAdmin, IsActive: false})

	p, err := auth.Authenticate(ctx, "", "tok-ana")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, p.Role)
	assert.Equal(t, "ana@caferio.com", p.Email)

	p, err = auth.Authenticate(ctx, "", "tok-bo")
	require.NoError(t, err)
	assert.Empty(t, p.Role, "inactive users carry no role")

	_, err = auth.Authenticate(ctx, "", "tok-unknown")
	assert.Equal(t, apierror.KindUnauthorized, apierror.KindOf(err))

	_, err = auth.Authenticate(ctx, "", "")
	assert.Equal(t, apierror.KindUnauthorized, apierror.KindOf(err))
}

func TestGrantRole_Validates(t *testing.T) {
	_, _, admin := newAccessFixture(t)

	_, err := admin.GrantRole(context.Background(), "u-1", "x@caferio.com", "owner")
	assert.Equal(t, apierror.KindValidation, apierror.KindOf(err))
	_, err = admin.GrantRole(context.Background(), " ", "x@caferio.com", model.RoleAdmin)
	assert.Equal(t, apierror.KindValidation, apierror.KindOf(err))
}
