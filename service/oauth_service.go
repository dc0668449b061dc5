package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/clavis-id/clavis/core"
	"github.com/clavis-id/clavis/ports"
)

// DefaultGrantTTL is how long an authorization code stays redeemable.
const DefaultGrantTTL = 2 * time.Minute

// ReservedPaths are the authentication/authorization entry points a
// redirect URI must never target. An authorization flow that can redirect
// into itself is an open loop.
var ReservedPaths = []string{
	"/oauth2/authorize",
	"/oauth2/token",
	"/oauth2/deny",
	"/auth/did",
}

// AuthorizationResult is the outcome of an Authorize call: either a code to
// carry on the redirect, or a consent requirement the caller must satisfy
// before re-invoking with identical parameters.
type AuthorizationResult struct {
	Code            string
	State           string
	ConsentRequired bool
}

// ExchangeRequest are the token-endpoint inputs for the
// authorization_code grant.
type ExchangeRequest struct {
	Code         string
	ClientID     string
	RedirectURI  string
	CodeVerifier string
	ClientSecret string
}

// OAuthService validates authorization requests, issues single-use codes,
// and exchanges them for token sets.
type OAuthService struct {
	clients   ports.ClientRegistry
	grants    ports.GrantStore
	consents  ports.ConsentStore
	directory ports.IdentityDirectory
	tokenizer ports.Tokenizer
	grantTTL  time.Duration
}

// NewOAuthService creates a new OAuth2 authorization service. A zero
// grantTTL falls back to DefaultGrantTTL.
func NewOAuthService(
	clients ports.ClientRegistry,
	grants ports.GrantStore,
	consents ports.ConsentStore,
	directory ports.IdentityDirectory,
	tokenizer ports.Tokenizer,
	grantTTL time.Duration,
) *OAuthService {
	if grantTTL == 0 {
		grantTTL = DefaultGrantTTL
	}
	return &OAuthService{
		clients:   clients,
		grants:    grants,
		consents:  consents,
		directory: directory,
		tokenizer: tokenizer,
		grantTTL:  grantTTL,
	}
}

// Validate checks the authorization request against the client
// registration. It returns the client so callers can avoid a second lookup.
func (s *OAuthService) Validate(ctx context.Context, req *core.AuthorizationRequest) (*core.Client, error) {
	if req.ResponseType != "code" {
		return nil, fmt.Errorf("%w: unsupported response_type %q", core.ErrInvalidRequest, req.ResponseType)
	}
	if req.ClientID == "" || req.RedirectURI == "" {
		return nil, fmt.Errorf("%w: client_id and redirect_uri are required", core.ErrInvalidRequest)
	}

	client, err := s.clients.Client(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}

	if !client.AllowsRedirect(req.RedirectURI) {
		return nil, core.ErrInvalidRedirectURI
	}
	if err := checkRedirectLoop(req.RedirectURI); err != nil {
		return nil, err
	}

	if client.Public && req.State == "" {
		return nil, fmt.Errorf("%w: public clients must send state", core.ErrInvalidRequest)
	}

	if req.CodeChallenge != "" {
		switch req.CodeChallengeMethod {
		case "", "plain", "S256":
		default:
			return nil, fmt.Errorf("%w: unknown code_challenge_method %q", core.ErrInvalidRequest, req.CodeChallengeMethod)
		}
	}

	return client, nil
}

// Authorize validates the request and issues a single-use code for the
// authenticated subject. When the client requires consent that is not on
// file, it returns ConsentRequired without issuing a code; the caller must
// re-invoke with all original parameters unchanged after collecting it.
func (s *OAuthService) Authorize(ctx context.Context, req *core.AuthorizationRequest, subject string) (*AuthorizationResult, error) {
	client, err := s.Validate(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, core.ErrTimeout
	}

	scope := req.Scopes()
	if client.RequireConsent {
		ok, err := s.consents.HasConsent(ctx, subject, client.ID, scope)
		if err != nil {
			return nil, fmt.Errorf("failed to check consent: %w", err)
		}
		if !ok {
			return &AuthorizationResult{ConsentRequired: true, State: req.State}, nil
		}
	}

	user, err := s.directory.UserForDID(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("unknown subject: %w", err)
	}

	now := time.Now()
	grant := &core.AuthorizationGrant{
		Code:                generateCode(),
		ClientID:            client.ID,
		RedirectURI:         req.RedirectURI,
		Scope:               scope,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		Subject:             user.ID,
		SubjectDID:          user.DID,
		Nonce:               req.Nonce,
		State:               req.State,
		IssuedAt:            now,
		ExpiresAt:           now.Add(s.grantTTL),
	}

	if err := ctx.Err(); err != nil {
		return nil, core.ErrTimeout
	}
	if err := s.grants.Save(ctx, grant); err != nil {
		return nil, fmt.Errorf("failed to persist grant: %w", err)
	}

	return &AuthorizationResult{Code: grant.Code, State: req.State}, nil
}

// GrantConsent records the subject's approval of the scopes for the client.
func (s *OAuthService) GrantConsent(ctx context.Context, subject, clientID string, scope []string) error {
	if _, err := s.clients.Client(ctx, clientID); err != nil {
		return err
	}
	if len(scope) == 0 {
		scope = []string{core.DefaultScope}
	}
	return s.consents.Record(ctx, subject, clientID, scope)
}

// Deny builds the redirect that reports an access_denied error to the
// relying party. State is preserved verbatim when present; the denial is
// never swallowed.
func (s *OAuthService) Deny(req *core.AuthorizationRequest) (string, error) {
	target, err := url.Parse(req.RedirectURI)
	if err != nil {
		return "", core.ErrInvalidRedirectURI
	}

	q := target.Query()
	q.Set("error", "access_denied")
	if req.State != "" {
		q.Set("state", req.State)
	}
	target.RawQuery = q.Encode()

	return target.String(), nil
}

// Exchange redeems an authorization code for a token set. Redemption is
// atomic: a second exchange with the same code fails with ErrInvalidGrant
// even if the first attempt is still in flight.
func (s *OAuthService) Exchange(ctx context.Context, req ExchangeRequest) (core.TokenSet, error) {
	grant, err := s.grants.Redeem(ctx, req.Code)
	if err != nil {
		return core.TokenSet{}, err
	}

	if grant.ClientID != req.ClientID || grant.RedirectURI != req.RedirectURI {
		return core.TokenSet{}, core.ErrInvalidGrant
	}

	client, err := s.clients.Client(ctx, req.ClientID)
	if err != nil {
		return core.TokenSet{}, err
	}
	if !client.Public {
		if subtle.ConstantTimeCompare([]byte(client.Secret), []byte(req.ClientSecret)) != 1 {
			return core.TokenSet{}, core.ErrInvalidClient
		}
	}

	if grant.CodeChallenge != "" {
		if req.CodeVerifier == "" {
			return core.TokenSet{}, core.ErrPKCEMismatch
		}
		if !pkceMatches(grant.CodeChallenge, grant.CodeChallengeMethod, req.CodeVerifier) {
			return core.TokenSet{}, core.ErrPKCEMismatch
		}
	}

	user, err := s.directory.UserForDID(ctx, grant.SubjectDID)
	if err != nil {
		return core.TokenSet{}, fmt.Errorf("unknown subject: %w", err)
	}

	tokens, err := s.tokenizer.IssueTokenSet(user, ports.TokenParams{
		Scope:    grant.Scope,
		ClientID: grant.ClientID,
		Nonce:    grant.Nonce,
		IDToken:  containsScope(grant.Scope, core.DefaultScope),
	})
	if err != nil {
		return core.TokenSet{}, fmt.Errorf("failed to issue tokens: %w", err)
	}

	return tokens, nil
}

// IssueFromDIDAuth mints a token set directly for a DID-authenticated
// subject, bypassing the authorization-code hop. The shape is identical to
// what Exchange produces so session contexts handle both uniformly.
func (s *OAuthService) IssueFromDIDAuth(ctx context.Context, subjectDID string) (core.TokenSet, error) {
	user, err := s.directory.UserForDID(ctx, subjectDID)
	if err != nil {
		return core.TokenSet{}, fmt.Errorf("unknown subject: %w", err)
	}
	tokens, err := s.tokenizer.IssueTokenSet(user, ports.TokenParams{})
	if err != nil {
		return core.TokenSet{}, fmt.Errorf("failed to issue tokens: %w", err)
	}
	return tokens, nil
}

// pkceMatches applies the challenge transform to the verifier. S256 is
// assumed when the method was omitted at authorization time.
func pkceMatches(challenge, method, verifier string) bool {
	switch method {
	case "plain":
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(verifier)) == 1
	case "", "S256":
		computed := oauth2.S256ChallengeFromVerifier(verifier)
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(computed)) == 1
	default:
		return false
	}
}

// checkRedirectLoop rejects redirect URIs whose path targets the
// authorization surface itself, including path-prefixed forms.
func checkRedirectLoop(redirectURI string) error {
	target, err := url.Parse(redirectURI)
	if err != nil {
		return core.ErrInvalidRedirectURI
	}
	path := target.Path
	for _, reserved := range ReservedPaths {
		if path == reserved || strings.HasPrefix(path, reserved+"/") {
			return core.ErrInvalidRedirectURI
		}
	}
	return nil
}

func containsScope(scope []string, want string) bool {
	for _, sc := range scope {
		if sc == want {
			return true
		}
	}
	return false
}

func generateCode() string {
	b := make([]byte, 32)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
