package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clavis-id/clavis/core"
)

func TestChallengeLifecycle(t *testing.T) {
	s := NewMemoryChallengeStore(5 * time.Minute)
	ctx := context.Background()

	issued, err := s.Issue(ctx, "did:example:alice", core.PurposeSignature, "")
	require.NoError(t, err)
	require.Equal(t, core.StateIssued, issued.State)
	require.NotEmpty(t, issued.Nonce)
	require.Contains(t, issued.Message, issued.Nonce)

	found, err := s.Lookup(ctx, issued.ID)
	require.NoError(t, err)
	require.Equal(t, issued.ID, found.ID)

	consumed, err := s.Consume(ctx, issued.ID)
	require.NoError(t, err)
	require.Equal(t, core.StateConsumed, consumed.State)

	_, err = s.Consume(ctx, issued.ID)
	require.ErrorIs(t, err, core.ErrAlreadyConsumed)

	_, err = s.Lookup(ctx, "no-such-id")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestChallengeConsumeExpired(t *testing.T) {
	s := NewMemoryChallengeStore(-time.Second)
	ctx := context.Background()

	issued, err := s.Issue(ctx, "did:example:alice", core.PurposeSignature, "")
	require.NoError(t, err)

	_, err = s.Consume(ctx, issued.ID)
	require.ErrorIs(t, err, core.ErrExpired)

	// Expiry is terminal: a second attempt stays expired, never consumed.
	_, err = s.Consume(ctx, issued.ID)
	require.ErrorIs(t, err, core.ErrExpired)

	found, err := s.Lookup(ctx, issued.ID)
	require.NoError(t, err)
	require.Equal(t, core.StateExpired, found.State)
}

func TestChallengeConcurrentConsumeSingleWinner(t *testing.T) {
	s := NewMemoryChallengeStore(5 * time.Minute)
	ctx := context.Background()

	issued, err := s.Issue(ctx, "did:example:alice", core.PurposeSignature, "")
	require.NoError(t, err)

	const attempts = 32
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Consume(ctx, issued.ID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for err := range results {
		if err == nil {
			winners++
		} else {
			require.ErrorIs(t, err, core.ErrAlreadyConsumed)
		}
	}
	require.Equal(t, 1, winners)
}

func TestChallengeLookupReturnsCopy(t *testing.T) {
	s := NewMemoryChallengeStore(5 * time.Minute)
	ctx := context.Background()

	issued, err := s.Issue(ctx, "did:example:alice", core.PurposeSignature, "")
	require.NoError(t, err)

	found, err := s.Lookup(ctx, issued.ID)
	require.NoError(t, err)
	found.State = core.StateInvalid

	again, err := s.Lookup(ctx, issued.ID)
	require.NoError(t, err)
	require.Equal(t, core.StateIssued, again.State)
}

func testGrant(code string, expiresAt time.Time) *core.AuthorizationGrant {
	return &core.AuthorizationGrant{
		Code:        code,
		ClientID:    "client-1",
		RedirectURI: "https://app.example.com/callback",
		Scope:       []string{"openid"},
		Subject:     "user-1",
		IssuedAt:    time.Now(),
		ExpiresAt:   expiresAt,
	}
}

func TestGrantRedeemOnce(t *testing.T) {
	s := NewMemoryGrantStore()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testGrant("code-1", time.Now().Add(2*time.Minute))))

	grant, err := s.Redeem(ctx, "code-1")
	require.NoError(t, err)
	require.Equal(t, "client-1", grant.ClientID)

	_, err = s.Redeem(ctx, "code-1")
	require.ErrorIs(t, err, core.ErrInvalidGrant)
}

func TestGrantRedeemExpired(t *testing.T) {
	s := NewMemoryGrantStore()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testGrant("code-1", time.Now().Add(-time.Second))))

	_, err := s.Redeem(ctx, "code-1")
	require.ErrorIs(t, err, core.ErrExpired)
}

func TestGrantConcurrentRedeemSingleWinner(t *testing.T) {
	s := NewMemoryGrantStore()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testGrant("code-1", time.Now().Add(2*time.Minute))))

	const attempts = 32
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Redeem(ctx, "code-1")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for err := range results {
		if err == nil {
			winners++
		} else {
			require.ErrorIs(t, err, core.ErrInvalidGrant)
		}
	}
	require.Equal(t, 1, winners)
}

func TestRevocationStore(t *testing.T) {
	s := NewMemoryRevocationStore()
	ctx := context.Background()

	revoked, err := s.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, s.Revoke(ctx, "jti-1", time.Minute))

	revoked, err = s.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, revoked)

	// A revocation whose window has passed no longer matters; the token it
	// covered has expired on its own.
	require.NoError(t, s.Revoke(ctx, "jti-2", -time.Second))
	revoked, err = s.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestConsentStore(t *testing.T) {
	s := NewMemoryConsentStore()
	ctx := context.Background()

	ok, err := s.HasConsent(ctx, "did:example:alice", "client-1", []string{"openid"})
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Record(ctx, "did:example:alice", "client-1", []string{"openid", "profile"}))

	ok, err = s.HasConsent(ctx, "did:example:alice", "client-1", []string{"openid"})
	require.NoError(t, err)
	require.True(t, ok)

	// A scope outside the approved set keeps consent outstanding.
	ok, err = s.HasConsent(ctx, "did:example:alice", "client-1", []string{"openid", "email"})
	require.NoError(t, err)
	require.False(t, ok)

	// Consent is per client.
	ok, err = s.HasConsent(ctx, "did:example:alice", "client-2", []string{"openid"})
	require.NoError(t, err)
	require.False(t, ok)
}
