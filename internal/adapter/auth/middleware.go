package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	"github.com/chopnow/storefront/internal/core/domain"
)

type contextKey struct{}

func WithIdentity(ctx context.Context, identity *domain.Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

// IdentityFromContext returns nil for anonymous requests.
func IdentityFromContext(ctx context.Context) *domain.Identity {
	identity, _ := ctx.Value(contextKey{}).(*domain.Identity)
	return identity
}

// BearerToken extracts the token from an "Authorization: Bearer" value.
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// Middleware attaches the caller's identity when a token is present.
// Requests without one pass through anonymously; a bad token is rejected.
// Browsers cannot set headers on websocket upgrades, so the token query
// parameter is accepted too.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r.Header.Get("Authorization"))
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		identity, err := a.Verify(r.Context(), token)
		if err != nil {
			status := http.StatusUnauthorized
			if errors.Is(err, domain.ErrCollaboratorFailure) {
				status = http.StatusBadGateway
			}
			hlog.FromRequest(r).Warn().Err(err).Msg("rejected bearer token")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"` + http.StatusText(status) + `"}`))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}
