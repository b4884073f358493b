package port

import (
	"context"
	"time"
)

type CacheRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency frees a claimed key so the request can be retried
	ReleaseIdempotency(ctx context.Context, key string) error

	// StoreSession marks a session as live for ttl
	StoreSession(ctx context.Context, sessionID, userID string, ttl time.Duration) error

	// SessionActive reports whether the session has been stored and not revoked
	SessionActive(ctx context.Context, sessionID string) (bool, error)

	// RevokeSession ends a session before its token expires
	RevokeSession(ctx context.Context, sessionID string) error
}
