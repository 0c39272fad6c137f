package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/apptbook/libs/auth"
	"github.com/md-rashed-zaman/apptbook/libs/httpx"
)

type tenantKey struct{}

// Principal is the authenticated caller of a request.
type Principal struct {
	TenantID string
	UserID   string
	Role     string
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(tenantKey{}).(Principal)
	return p, ok
}

func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, tenantKey{}, p)
}

// Authenticator resolves the tenant of a request. Bearer tokens are verified with
// Secret (HS256) or Keys (RS256 via JWKS). With TrustGatewayHeaders, X-Tenant-Id set
// by an upstream gateway is accepted when no token is present.
type Authenticator struct {
	Secret              string
	Keys                auth.KeySource
	TrustGatewayHeaders bool
}

func (a Authenticator) principal(r *http.Request) (Principal, bool) {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok && strings.TrimSpace(token) != "" {
		claims, err := a.verify(strings.TrimSpace(token))
		if err != nil {
			return Principal{}, false
		}
		return Principal{TenantID: claims.TenantID, UserID: claims.Subject, Role: claims.Role}, true
	}
	if a.TrustGatewayHeaders {
		if tenant := strings.TrimSpace(r.Header.Get("X-Tenant-Id")); tenant != "" {
			return Principal{
				TenantID: tenant,
				UserID:   strings.TrimSpace(r.Header.Get("X-User-Id")),
				Role:     strings.TrimSpace(r.Header.Get("X-Role")),
			}, true
		}
	}
	return Principal{}, false
}

func (a Authenticator) verify(token string) (*auth.Claims, error) {
	if a.Keys != nil {
		claims, err := auth.VerifyWithKeySource(token, a.Keys)
		if err == nil || a.Secret == "" {
			return claims, err
		}
	}
	if a.Secret == "" {
		return nil, auth.ErrInvalidToken
	}
	return auth.ParseAndVerifyHS256(token, a.Secret)
}

// RequireTenant rejects requests without an authenticated tenant.
func RequireTenant(a Authenticator) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := a.principal(r)
			if !ok {
				httpx.WriteError(w, http.StatusUnauthorized, "missing or invalid credentials")
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
		})
	}
}

func tenantID(r *http.Request) string {
	p, _ := PrincipalFromContext(r.Context())
	return p.TenantID
}
