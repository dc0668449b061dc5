package ports

import "github.com/clavis-id/clavis/core"

// TokenParams carries the optional inputs for minting a token set.
type TokenParams struct {
	Scope    []string
	TenantID string
	ClientID string // audience for the ID token
	Nonce    string // echoed into the ID token when set
	IDToken  bool   // mint an ID token (scope contains openid and a client is known)
}

// Tokenizer mints and parses the token sets backing sessions.
type Tokenizer interface {
	// IssueTokenSet mints an access/refresh pair (plus optional ID token)
	// for the user.
	IssueTokenSet(user *core.User, params TokenParams) (core.TokenSet, error)

	// ParseAccess validates an access token and returns its identity.
	ParseAccess(token string) (*core.Identity, error)

	// ParseRefresh validates a refresh token and returns its identity. The
	// returned Identity's RefreshID is the token's own JTI.
	ParseRefresh(token string) (*core.Identity, error)
}
