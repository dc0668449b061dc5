package ports

import (
	"context"
	"time"

	"github.com/clavis-id/clavis/core"
)

// ChallengeStore issues, persists and invalidates single-use DID
// authentication challenges. Expiry is enforced lazily at Lookup/Consume
// time against the server clock.
type ChallengeStore interface {
	// Issue creates and persists a fresh challenge for the DID.
	Issue(ctx context.Context, did string, purpose core.ChallengePurpose, verificationMethod string) (*core.Challenge, error)

	// Lookup returns the challenge, transitioning issued->expired first if
	// the expiry has passed. Returns core.ErrNotFound for unknown ids.
	Lookup(ctx context.Context, id string) (*core.Challenge, error)

	// Consume atomically transitions issued->consumed. Exactly one caller
	// can win a concurrent race; losers get core.ErrAlreadyConsumed.
	// Expired challenges fail with core.ErrExpired.
	Consume(ctx context.Context, id string) (*core.Challenge, error)
}

// GrantStore persists single-use authorization codes.
type GrantStore interface {
	Save(ctx context.Context, grant *core.AuthorizationGrant) error

	// Redeem atomically removes and returns the grant. A second redemption
	// of the same code fails with core.ErrInvalidGrant even if the first is
	// still in flight; expired grants fail with core.ErrExpired.
	Redeem(ctx context.Context, code string) (*core.AuthorizationGrant, error)
}

// RevocationStore tracks revoked refresh token IDs until their natural
// expiry.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// ConsentStore records which scopes a subject has approved for a client.
type ConsentStore interface {
	Record(ctx context.Context, subject, clientID string, scope []string) error
	HasConsent(ctx context.Context, subject, clientID string, scope []string) (bool, error)
}
