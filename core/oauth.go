package core

import (
	"strings"
	"time"
)

// DefaultScope is assumed when an authorization request omits scope.
const DefaultScope = "openid"

// AuthorizationRequest is an OAuth2 authorization-code request as received
// on the wire. ResponseType must be "code".
type AuthorizationRequest struct {
	ResponseType        string `json:"response_type" form:"response_type"`
	ClientID            string `json:"client_id" form:"client_id"`
	RedirectURI         string `json:"redirect_uri" form:"redirect_uri"`
	Scope               string `json:"scope" form:"scope"`
	State               string `json:"state" form:"state"`
	CodeChallenge       string `json:"code_challenge" form:"code_challenge"`
	CodeChallengeMethod string `json:"code_challenge_method" form:"code_challenge_method"`
	Nonce               string `json:"nonce" form:"nonce"`
}

// Scopes returns the requested scope list, defaulting to openid.
func (r *AuthorizationRequest) Scopes() []string {
	if strings.TrimSpace(r.Scope) == "" {
		return []string{DefaultScope}
	}
	return strings.Fields(r.Scope)
}

// AuthorizationGrant is a single-use authorization code bound to the exact
// client, redirect URI and PKCE challenge it was issued for.
type AuthorizationGrant struct {
	Code                string    `json:"code"`
	ClientID            string    `json:"client_id"`
	RedirectURI         string    `json:"redirect_uri"`
	Scope               []string  `json:"scope"`
	CodeChallenge       string    `json:"code_challenge,omitempty"`
	CodeChallengeMethod string    `json:"code_challenge_method,omitempty"`
	Subject             string    `json:"subject"`
	SubjectDID          string    `json:"subject_did,omitempty"`
	Nonce               string    `json:"nonce,omitempty"`
	State               string    `json:"state,omitempty"`
	IssuedAt            time.Time `json:"issued_at"`
	ExpiresAt           time.Time `json:"expires_at"`
}

// Client is a registered OAuth2 relying party.
type Client struct {
	ID             string   `json:"client_id"`
	Secret         string   `json:"client_secret,omitempty"`
	Name           string   `json:"name,omitempty"`
	RedirectURIs   []string `json:"redirect_uris"`
	Public         bool     `json:"public"`          // public clients must send state and use PKCE
	RequireConsent bool     `json:"require_consent"` // explicit user consent needed before code issuance
	Scopes         []string `json:"scopes,omitempty"`
}

// AllowsRedirect reports whether uri exactly matches a registered redirect
// URI. Prefix matching is deliberately not supported.
func (c *Client) AllowsRedirect(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}
