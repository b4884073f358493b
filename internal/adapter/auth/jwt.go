// Package auth resolves request identities from HS256 bearer tokens. A
// token is only honoured while its session id is live in the cache, so
// signing out takes effect before the token expires.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chopnow/storefront/internal/core/domain"
	"github.com/chopnow/storefront/internal/port"
)

// Claims carries the user id in sub and the session id in jti.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	secret   []byte
	sessions port.CacheRepository
	notifier port.IdentityNotifier
	ttl      time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

func NewAuthenticator(secret string, sessions port.CacheRepository, notifier port.IdentityNotifier, ttl time.Duration, logger zerolog.Logger) *Authenticator {
	return &Authenticator{
		secret:   []byte(secret),
		sessions: sessions,
		notifier: notifier,
		ttl:      ttl,
		logger:   logger.With().Str("component", "auth").Logger(),
		now:      time.Now,
	}
}

// Issue starts a session for userID and returns its signed token.
func (a *Authenticator) Issue(ctx context.Context, userID string, role domain.Role) (string, *domain.Identity, error) {
	now := a.now()
	identity := &domain.Identity{UserID: userID, Role: role, SessionID: uuid.NewString()}
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        identity.SessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	if err := a.sessions.StoreSession(ctx, identity.SessionID, userID, a.ttl); err != nil {
		return "", nil, domain.Collaborator("store session", err)
	}
	a.publish(ctx, identity, domain.IdentitySignedIn)
	return token, identity, nil
}

// Verify parses token and checks that its session is still live.
func (a *Authenticator) Verify(ctx context.Context, token string) (*domain.Identity, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: token missing subject or session", domain.ErrUnauthenticated)
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}

	active, err := a.sessions.SessionActive(ctx, claims.ID)
	if err != nil {
		return nil, domain.Collaborator("check session", err)
	}
	if !active {
		return nil, fmt.Errorf("%w: session ended", domain.ErrUnauthenticated)
	}
	return &domain.Identity{UserID: claims.Subject, Role: role, SessionID: claims.ID}, nil
}

// Revoke ends the identity's session and tells its watchers.
func (a *Authenticator) Revoke(ctx context.Context, identity *domain.Identity) error {
	if identity == nil {
		return domain.ErrUnauthenticated
	}
	if err := a.sessions.RevokeSession(ctx, identity.SessionID); err != nil {
		return domain.Collaborator("revoke session", err)
	}
	a.publish(ctx, identity, domain.IdentitySignedOut)
	return nil
}

// publish is best effort: a missed change only delays a dashboard refresh.
func (a *Authenticator) publish(ctx context.Context, identity *domain.Identity, reason domain.IdentityChangeReason) {
	if a.notifier == nil {
		return
	}
	change := domain.IdentityChange{UserID: identity.UserID, SessionID: identity.SessionID, Reason: reason}
	if err := a.notifier.PublishIdentityChange(ctx, change); err != nil {
		a.logger.Warn().Err(err).
			Str("user_id", identity.UserID).
			Str("reason", string(reason)).
			Msg("failed to publish identity change")
	}
}
