package core

import "time"

// TokenSet is the uniform token bundle produced by both the OAuth2 exchange
// and the direct DID-auth login path. It is a value type: contexts hold
// their own copy and never share one by reference.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
}

// User is the identity a DID resolves to after successful authentication.
type User struct {
	ID          string   `json:"id"`
	DID         string   `json:"did"`
	Email       string   `json:"email,omitempty"`
	Name        string   `json:"name,omitempty"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// ContextMode selects which of the two session slots is active.
type ContextMode string

const (
	ModeGlobal ContextMode = "global"
	ModeTenant ContextMode = "tenant"
)

// SessionContext is one of the two independently authenticated sessions a
// client may hold: the unscoped global session or a tenant-scoped one.
type SessionContext struct {
	Mode            ContextMode `json:"mode"`
	TenantID        string      `json:"tenant_id,omitempty"`
	User            User        `json:"user"`
	Tokens          TokenSet    `json:"tokens"`
	IsAuthenticated bool        `json:"is_authenticated"`
	IssuedAt        time.Time   `json:"issued_at"`
}

// Identity is the verified claim set extracted from an access or refresh
// token at the transport boundary.
type Identity struct {
	UserID      string
	DID         string
	TenantID    string
	RefreshID   string // JTI of the backing refresh token
	Scope       []string
	Roles       []string
	Permissions []string
	ExpiresAt   time.Time
}
