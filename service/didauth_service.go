package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/whyrusleeping/go-did"

	"github.com/clavis-id/clavis/core"
	"github.com/clavis-id/clavis/ports"
)

// sessionRevocationWindow covers the longest refresh lifetime in use when
// the exact token expiry is not at hand.
const sessionRevocationWindow = 5 * 24 * time.Hour

// DIDAuthService drives the two-phase initiate/complete authentication
// protocol and owns the session lifecycle (refresh rotation, revocation).
type DIDAuthService struct {
	challenges  ports.ChallengeStore
	verifier    ports.ProofVerifier
	resolver    ports.Resolver
	directory   ports.IdentityDirectory
	tokenizer   ports.Tokenizer
	revocations ports.RevocationStore
	events      ports.EventPublisher
}

// NewDIDAuthService creates a new DID authentication service.
func NewDIDAuthService(
	challenges ports.ChallengeStore,
	verifier ports.ProofVerifier,
	resolver ports.Resolver,
	directory ports.IdentityDirectory,
	tokenizer ports.Tokenizer,
	revocations ports.RevocationStore,
	events ports.EventPublisher,
) *DIDAuthService {
	return &DIDAuthService{
		challenges:  challenges,
		verifier:    verifier,
		resolver:    resolver,
		directory:   directory,
		tokenizer:   tokenizer,
		revocations: revocations,
		events:      events,
	}
}

// Initiate validates the DID, confirms it resolves to a document, and issues
// a fresh challenge. Sessions are not touched yet.
func (s *DIDAuthService) Initiate(ctx context.Context, subjectDID string, purpose core.ChallengePurpose, verificationMethod string) (*core.Challenge, error) {
	if _, err := did.ParseDID(subjectDID); err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrInvalidDID, subjectDID)
	}

	if purpose == "" {
		purpose = core.PurposeSignature
	}
	if purpose != core.PurposeSignature && purpose != core.PurposePresentation {
		return nil, fmt.Errorf("%w: unknown challenge purpose %q", core.ErrInvalidRequest, purpose)
	}

	doc, err := s.resolver.Resolve(ctx, subjectDID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrInvalidDID, subjectDID)
	}
	if verificationMethod != "" && doc.Method(verificationMethod) == nil {
		return nil, core.ErrUnknownVerificationMethod
	}

	challenge, err := s.challenges.Issue(ctx, subjectDID, purpose, verificationMethod)
	if err != nil {
		return nil, fmt.Errorf("failed to issue challenge: %w", err)
	}

	return challenge, nil
}

// Complete consumes the challenge and verifies the proof. The consume
// happens first so replays and expired challenges fail fast, and a
// consumed-but-failed challenge stays burned: a failed proof never gets a
// second attempt against the same nonce.
func (s *DIDAuthService) Complete(ctx context.Context, challengeID string, proof *core.Proof) (*core.SessionContext, error) {
	challenge, err := s.challenges.Consume(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	if err := s.verifier.Verify(ctx, challenge, proof); err != nil {
		return nil, err
	}

	user, err := s.directory.UserForDID(ctx, challenge.DID)
	if err != nil {
		return nil, fmt.Errorf("no identity for %s: %w", challenge.DID, err)
	}

	tokens, err := s.tokenizer.IssueTokenSet(user, ports.TokenParams{})
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}

	session := &core.SessionContext{
		Mode:            core.ModeGlobal,
		User:            *user,
		Tokens:          tokens,
		IsAuthenticated: true,
		IssuedAt:        time.Now(),
	}

	if err := s.events.PublishLogin(ctx, user.ID, user.DID); err != nil {
		// The session is already minted; a dropped event must not fail the login.
		slog.Warn("failed to publish login event", "error", err)
	}

	return session, nil
}

// Refresh rotates the refresh token and issues a new token pair. The old
// refresh token is revoked for the remainder of its lifetime.
func (s *DIDAuthService) Refresh(ctx context.Context, refreshToken string) (core.TokenSet, error) {
	ident, err := s.tokenizer.ParseRefresh(refreshToken)
	if err != nil {
		return core.TokenSet{}, err
	}

	revoked, err := s.revocations.IsRevoked(ctx, ident.RefreshID)
	if err != nil {
		return core.TokenSet{}, fmt.Errorf("failed to check revocation: %w", err)
	}
	if revoked {
		return core.TokenSet{}, core.ErrTokenRevoked
	}

	if err := s.revocations.Revoke(ctx, ident.RefreshID, time.Until(ident.ExpiresAt)); err != nil {
		return core.TokenSet{}, fmt.Errorf("failed to revoke old token: %w", err)
	}

	user, err := s.directory.UserForDID(ctx, ident.DID)
	if err != nil {
		return core.TokenSet{}, fmt.Errorf("no identity for %s: %w", ident.DID, err)
	}

	tokens, err := s.tokenizer.IssueTokenSet(user, ports.TokenParams{TenantID: ident.TenantID})
	if err != nil {
		return core.TokenSet{}, fmt.Errorf("failed to issue tokens: %w", err)
	}

	return tokens, nil
}

// Logout revokes the refresh token. Expired tokens still get a short
// revocation window so they cannot be replayed under clock skew.
func (s *DIDAuthService) Logout(ctx context.Context, refreshToken string) error {
	ident, err := s.tokenizer.ParseRefresh(refreshToken)
	if err != nil {
		return err
	}

	remaining := time.Until(ident.ExpiresAt)
	if remaining <= 0 {
		remaining = time.Hour
	}

	if err := s.revocations.Revoke(ctx, ident.RefreshID, remaining); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	if err := s.events.PublishLogout(ctx, ident.UserID, ident.RefreshID); err != nil {
		slog.Warn("failed to publish logout event", "error", err)
	}

	return nil
}

// RevokeSession revokes the refresh token behind the given JTI without
// needing the token itself, for callers that only hold an access token.
func (s *DIDAuthService) RevokeSession(ctx context.Context, refreshID string) error {
	if refreshID == "" {
		return nil
	}
	if err := s.revocations.Revoke(ctx, refreshID, sessionRevocationWindow); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// ValidateAccessToken checks an access token and the revocation status of
// its backing refresh token.
func (s *DIDAuthService) ValidateAccessToken(ctx context.Context, accessToken string) (*core.Identity, error) {
	ident, err := s.tokenizer.ParseAccess(accessToken)
	if err != nil {
		return nil, err
	}

	if ident.RefreshID != "" {
		revoked, err := s.revocations.IsRevoked(ctx, ident.RefreshID)
		if err != nil {
			return nil, fmt.Errorf("failed to check revocation: %w", err)
		}
		if revoked {
			return nil, core.ErrTokenRevoked
		}
	}

	return ident, nil
}
