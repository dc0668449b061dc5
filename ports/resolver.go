package ports

import (
	"context"

	"github.com/clavis-id/clavis/core"
)

// Resolver fetches DID documents. Resolution is read-only and side-effect
// free, so implementations may cache aggressively.
type Resolver interface {
	Resolve(ctx context.Context, did string) (*core.DIDDocument, error)
}

// ProofVerifier validates a cryptographic proof against a challenge.
type ProofVerifier interface {
	Verify(ctx context.Context, challenge *core.Challenge, proof *core.Proof) error
}

// ClientRegistry returns registered OAuth2 clients.
type ClientRegistry interface {
	Client(ctx context.Context, clientID string) (*core.Client, error)
}

// IdentityDirectory maps an authenticated DID to a user identity.
type IdentityDirectory interface {
	UserForDID(ctx context.Context, did string) (*core.User, error)
}

// PermissionsService validates tenant access before a context switch and
// returns the roles and permissions the user holds inside the tenant.
// Returns core.ErrPermissionDenied when the user may not enter the tenant.
type PermissionsService interface {
	TenantAccess(ctx context.Context, userID, tenantID string) (roles []string, permissions []string, err error)
}
