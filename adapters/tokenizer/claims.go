package tokenizer

import "github.com/golang-jwt/jwt/v5"

// AccessClaims combines standard claims with the session-specific ones.
type AccessClaims struct {
	jwt.RegisteredClaims
	DID         string   `json:"did"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	Scope       string   `json:"scope,omitempty"`
	TenantID    string   `json:"tenant_id,omitempty"`
	RefreshID   string   `json:"rid"` // ID of the refresh token backing this access token
}

// RefreshClaims carry just enough to rotate a session.
type RefreshClaims struct {
	jwt.RegisteredClaims
	DID      string `json:"did"`
	TenantID string `json:"tenant_id,omitempty"`
}

// IDClaims are the OpenID Connect identity claims minted alongside an
// authorization-code exchange.
type IDClaims struct {
	jwt.RegisteredClaims
	DID   string `json:"did"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Nonce string `json:"nonce,omitempty"`
}
