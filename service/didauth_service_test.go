package service

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clavis-id/clavis/adapters/directory"
	"github.com/clavis-id/clavis/adapters/events"
	"github.com/clavis-id/clavis/adapters/resolver"
	"github.com/clavis-id/clavis/adapters/store"
	"github.com/clavis-id/clavis/adapters/tokenizer"
	"github.com/clavis-id/clavis/adapters/verifier"
	"github.com/clavis-id/clavis/core"
)

const aliceDID = "did:web:alice.example.com"

type didAuthFixture struct {
	svc  *DIDAuthService
	priv ed25519.PrivateKey
}

func newDIDAuthFixture(t *testing.T, challengeTTL time.Duration) *didAuthFixture {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	r := resolver.NewStaticResolver()
	r.Register(&core.DIDDocument{
		ID: aliceDID,
		VerificationMethod: []core.VerificationMethod{{
			ID:                 aliceDID + "#key-1",
			Type:               "Ed25519VerificationKey2020",
			Controller:         aliceDID,
			PublicKeyMultibase: verifier.EncodePublicKeyMultibase(core.AlgEd25519, pub),
		}},
	})

	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	svc := NewDIDAuthService(
		store.NewMemoryChallengeStore(challengeTTL),
		verifier.New(r),
		r,
		directory.NewStaticIdentityDirectory(true),
		tokenizer.NewJWTTokenizer(signKey, tokenizer.Config{}),
		store.NewMemoryRevocationStore(),
		events.NewNopPublisher(),
	)

	return &didAuthFixture{svc: svc, priv: priv}
}

func (f *didAuthFixture) proofFor(message string) *core.Proof {
	sig := ed25519.Sign(f.priv, []byte(message))
	return &core.Proof{
		Type:               "Ed25519Signature2020",
		VerificationMethod: aliceDID + "#key-1",
		Signature:          base64.RawURLEncoding.EncodeToString(sig),
	}
}

func TestInitiateAndCompleteLogin(t *testing.T) {
	f := newDIDAuthFixture(t, 5*time.Minute)
	ctx := context.Background()

	challenge, err := f.svc.Initiate(ctx, aliceDID, "", "")
	require.NoError(t, err)
	require.Equal(t, core.PurposeSignature, challenge.Purpose)
	require.NotEmpty(t, challenge.Message)

	session, err := f.svc.Complete(ctx, challenge.ID, f.proofFor(challenge.Message))
	require.NoError(t, err)
	require.True(t, session.IsAuthenticated)
	require.Equal(t, core.ModeGlobal, session.Mode)
	require.Equal(t, aliceDID, session.User.DID)
	require.NotEmpty(t, session.Tokens.AccessToken)
	require.NotEmpty(t, session.Tokens.RefreshToken)

	identity, err := f.svc.ValidateAccessToken(ctx, session.Tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, aliceDID, identity.DID)
}

func TestInitiateRejectsMalformedDID(t *testing.T) {
	f := newDIDAuthFixture(t, 5*time.Minute)

	_, err := f.svc.Initiate(context.Background(), "not-a-did", "", "")
	require.ErrorIs(t, err, core.ErrInvalidDID)
}

func TestInitiateRejectsUnresolvableDID(t *testing.T) {
	f := newDIDAuthFixture(t, 5*time.Minute)

	_, err := f.svc.Initiate(context.Background(), "did:web:unknown.example.com", "", "")
	require.ErrorIs(t, err, core.ErrInvalidDID)
}

func TestInitiateRejectsUnknownPurpose(t *testing.T) {
	f := newDIDAuthFixture(t, 5*time.Minute)

	_, err := f.svc.Initiate(context.Background(), aliceDID, "attestation", "")
	require.ErrorIs(t, err, core.ErrInvalidRequest)
}

func TestInitiateRejectsUnknownMethodBinding(t *testing.T) {
	f := newDIDAuthFixture(t, 5*time.Minute)

	_, err := f.svc.Initiate(context.Background(), aliceDID, "", aliceDID+"#key-9")
	require.ErrorIs(t, err, core.ErrUnknownVerificationMethod)
}

func TestCompleteBurnsChallengeOnFailedProof(t *testing.T) {
	f := newDIDAuthFixture(t, 5*time.Minute)
	ctx := context.Background()

	challenge, err := f.svc.Initiate(ctx, aliceDID, "", "")
	require.NoError(t, err)

	// A proof over the wrong bytes fails.
	_, err = f.svc.Complete(ctx, challenge.ID, f.proofFor("wrong message"))
	require.ErrorIs(t, err, core.ErrSignatureMismatch)

	// The challenge was consumed by the failed attempt; even a valid proof
	// can never revive it.
	_, err = f.svc.Complete(ctx, challenge.ID, f.proofFor(challenge.Message))
	require.ErrorIs(t, err, core.ErrAlreadyConsumed)
}

func TestCompleteRejectsReplay(t *testing.T) {
	f := newDIDAuthFixture(t, 5*time.Minute)
	ctx := context.Background()

	challenge, err := f.svc.Initiate(ctx, aliceDID, "", "")
	require.NoError(t, err)
	proof := f.proofFor(challenge.Message)

	_, err = f.svc.Complete(ctx, challenge.ID, proof)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, challenge.ID, proof)
	require.ErrorIs(t, err, core.ErrAlreadyConsumed)
}

func TestCompleteRejectsExpiredChallenge(t *testing.T) {
	f := newDIDAuthFixture(t, -time.Second)
	ctx := context.Background()

	challenge, err := f.svc.Initiate(ctx, aliceDID, "", "")
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, challenge.ID, f.proofFor(challenge.Message))
	require.ErrorIs(t, err, core.ErrExpired)
}

func TestCompleteUnknownChallenge(t *testing.T) {
	f := newDIDAuthFixture(t, 5*time.Minute)

	_, err := f.svc.Complete(context.Background(), "no-such-challenge", f.proofFor("anything"))
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestRefreshRotatesAndRevokes(t *testing.T) {
	f := newDIDAuthFixture(t, 5*time.Minute)
	ctx := context.Background()

	challenge, err := f.svc.Initiate(ctx, aliceDID, "", "")
	require.NoError(t, err)
	session, err := f.svc.Complete(ctx, challenge.ID, f.proofFor(challenge.Message))
	require.NoError(t, err)

	rotated, err := f.svc.Refresh(ctx, session.Tokens.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, session.Tokens.RefreshToken, rotated.RefreshToken)

	// The superseded refresh token is dead.
	_, err = f.svc.Refresh(ctx, session.Tokens.RefreshToken)
	require.ErrorIs(t, err, core.ErrTokenRevoked)

	// And so is the access token minted alongside it.
	_, err = f.svc.ValidateAccessToken(ctx, session.Tokens.AccessToken)
	require.ErrorIs(t, err, core.ErrTokenRevoked)

	// The rotated pair keeps working.
	_, err = f.svc.ValidateAccessToken(ctx, rotated.AccessToken)
	require.NoError(t, err)
}

func TestLogoutRevokesSession(t *testing.T) {
	f := newDIDAuthFixture(t, 5*time.Minute)
	ctx := context.Background()

	challenge, err := f.svc.Initiate(ctx, aliceDID, "", "")
	require.NoError(t, err)
	session, err := f.svc.Complete(ctx, challenge.ID, f.proofFor(challenge.Message))
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, session.Tokens.RefreshToken))

	_, err = f.svc.ValidateAccessToken(ctx, session.Tokens.AccessToken)
	require.ErrorIs(t, err, core.ErrTokenRevoked)
	_, err = f.svc.Refresh(ctx, session.Tokens.RefreshToken)
	require.ErrorIs(t, err, core.ErrTokenRevoked)
}
