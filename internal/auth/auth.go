// Package auth resolves request credentials to a principal. The services
// only ever see an opaque user id; token parsing stays here.
package auth

import (
	"net/http"
	"strings"

	"fintrack/internal/core"
)

// Principal is the authenticated identity attached to a request.
type Principal struct {
	UserID string
	Role   string
}

// Provider turns a request into a principal or an Unauthenticated error.
type Provider interface {
	Authenticate(r *http.Request) (Principal, error)
}

// StaticTokenProvider maps bearer tokens to principals from a static table,
// typically parsed from the AUTH_TOKENS environment variable.
type StaticTokenProvider struct {
	principals map[string]Principal
}

// ParseTokenTable parses a comma-separated "token=userID" or
// "token=userID:role" list. The role defaults to "user".
func ParseTokenTable(table string) (*StaticTokenProvider, error) {
	principals := make(map[string]Principal)
	for _, entry := range strings.Split(table, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		token, target, ok := strings.Cut(entry, "=")
		if !ok || token == "" || target == "" {
			return nil, core.ValidationFailedf("invalid auth token entry %q", entry)
		}
		userID, role, hasRole := strings.Cut(target, ":")
		if userID == "" {
			return nil, core.ValidationFailedf("invalid auth token entry %q", entry)
		}
		if !hasRole || role == "" {
			role = "user"
		}
		principals[token] = Principal{UserID: userID, Role: role}
	}
	return &StaticTokenProvider{principals: principals}, nil
}

// Authenticate expects an "Authorization: Bearer <token>" header.
func (p *StaticTokenProvider) Authenticate(r *http.Request) (Principal, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return Principal{}, core.Unauthenticated("Authorization header is required")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return Principal{}, core.Unauthenticated("Authorization header must be a Bearer token")
	}
	principal, found := p.principals[token]
	if !found {
		return Principal{}, core.Unauthenticated("Invalid or expired token")
	}
	return principal, nil
}

// Len reports how many tokens are registered.
func (p *StaticTokenProvider) Len() int { return len(p.principals) }
