package service

import (
	"strings"

	"github.com/duregger/cafe-rio-nutrition/internal/apierror"
	"github.com/duregger/cafe-rio-nutrition/internal/model"
)

// Principal kinds.
const (
	PrincipalAPIKey   = "api_key"
	PrincipalIdentity = "identity"
)

// Principal is an authenticated caller. Role is the stored role of an
// identity principal and empty for API keys.
type Principal struct {
	Kind    string
	UID     string
	Email   string
	Role    string
	KeyName string
}

// Action is what a caller wants to do.
type Action int

const (
	// ActionWrite needs a valid credential and, for identities, an email in
	// the organization domain.
	ActionWrite Action = iota
	// ActionAdmin additionally needs the stored admin role.
	ActionAdmin
)

// Decision is the outcome of AccessPolicy.Authorize.
type Decision int

const (
	Allow Decision = iota
	DenyUnauthenticated
	DenyDomain
	DenyRole
)

// Err maps a denial to the error the caller receives; Allow yields nil.
func (d Decision) Err() error {
	switch d {
	case DenyUnauthenticated:
		return apierror.Unauthorized("Authentication required")
	case DenyDomain:
		return apierror.Forbidden("Email domain is not allowed")
	case DenyRole:
		return apierror.Forbidden("Admin role required")
	default:
		return nil
	}
}

// AccessPolicy is built once from configuration and shared by every
// protected route.
type AccessPolicy struct {
	domainSuffix string
}

// NewAccessPolicy restricts identities to emails ending in "@"+domain. An
// empty domain admits no identity principal at all; API keys still work.
func NewAccessPolicy(domain string) *AccessPolicy {
	domain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(domain), "@"))
	if domain == "" {
		return &AccessPolicy{}
	}
	return &AccessPolicy{domainSuffix: "@" + domain}
}

// Authorize decides whether p may perform a. API keys are trusted for every
// action once matched.
func (p *AccessPolicy) Authorize(principal *Principal, a Action) Decision {
	if principal == nil {
		return DenyUnauthenticated
	}
	if principal.Kind == PrincipalAPIKey {
		return Allow
	}
	if p.domainSuffix == "" || !strings.HasSuffix(strings.ToLower(principal.Email), p.domainSuffix) {
		return DenyDomain
	}
	if a == ActionAdmin && principal.Role != model.RoleAdmin {
		return DenyRole
	}
	return Allow
}
