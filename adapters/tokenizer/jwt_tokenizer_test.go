package tokenizer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/clavis-id/clavis/core"
	"github.com/clavis-id/clavis/ports"
)

func newTokenizer(t *testing.T, cfg Config) *JWTTokenizer {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return NewJWTTokenizer(key, cfg)
}

func testUser() *core.User {
	return &core.User{
		ID:          "user-1",
		DID:         "did:example:alice",
		Email:       "alice@example.com",
		Name:        "Alice",
		Roles:       []string{"user"},
		Permissions: []string{"profile:read"},
	}
}

func TestIssueAndParseAccess(t *testing.T) {
	tk := newTokenizer(t, Config{})
	user := testUser()

	set, err := tk.IssueTokenSet(user, ports.TokenParams{Scope: []string{"openid", "profile"}})
	require.NoError(t, err)
	require.Equal(t, "Bearer", set.TokenType)
	require.Equal(t, int(DefaultAccessTTL.Seconds()), set.ExpiresIn)
	require.Equal(t, "openid profile", set.Scope)
	require.Empty(t, set.IDToken)

	identity, err := tk.ParseAccess(set.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, identity.UserID)
	require.Equal(t, user.DID, identity.DID)
	require.Equal(t, []string{"openid", "profile"}, identity.Scope)
	require.Equal(t, user.Roles, identity.Roles)
	require.NotEmpty(t, identity.RefreshID)
}

func TestAccessCarriesRefreshID(t *testing.T) {
	tk := newTokenizer(t, Config{})

	set, err := tk.IssueTokenSet(testUser(), ports.TokenParams{})
	require.NoError(t, err)

	access, err := tk.ParseAccess(set.AccessToken)
	require.NoError(t, err)
	refresh, err := tk.ParseRefresh(set.RefreshToken)
	require.NoError(t, err)

	// Revoking the refresh JTI must be enough to kill the access token too.
	require.Equal(t, refresh.RefreshID, access.RefreshID)
}

func TestAudiencesAreNotInterchangeable(t *testing.T) {
	tk := newTokenizer(t, Config{})

	set, err := tk.IssueTokenSet(testUser(), ports.TokenParams{})
	require.NoError(t, err)

	_, err = tk.ParseAccess(set.RefreshToken)
	require.ErrorIs(t, err, core.ErrInvalidToken)

	_, err = tk.ParseRefresh(set.AccessToken)
	require.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestParseExpiredAccess(t *testing.T) {
	tk := newTokenizer(t, Config{AccessTTL: -time.Minute})

	set, err := tk.IssueTokenSet(testUser(), ports.TokenParams{})
	require.NoError(t, err)

	_, err = tk.ParseAccess(set.AccessToken)
	require.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestParseRejectsForeignKey(t *testing.T) {
	tk := newTokenizer(t, Config{})
	other := newTokenizer(t, Config{})

	set, err := other.IssueTokenSet(testUser(), ports.TokenParams{})
	require.NoError(t, err)

	_, err = tk.ParseAccess(set.AccessToken)
	require.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestIDTokenIssuedForOpenIDExchange(t *testing.T) {
	tk := newTokenizer(t, Config{Issuer: "clavis-test"})
	user := testUser()

	set, err := tk.IssueTokenSet(user, ports.TokenParams{
		Scope:    []string{"openid"},
		ClientID: "client-1",
		Nonce:    "n-0S6_WzA2Mj",
		IDToken:  true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, set.IDToken)

	var claims IDClaims
	_, _, err = jwt.NewParser().ParseUnverified(set.IDToken, &claims)
	require.NoError(t, err)
	require.Equal(t, "clavis-test", claims.Issuer)
	require.Equal(t, jwt.ClaimStrings{"client-1"}, claims.Audience)
	require.Equal(t, user.DID, claims.DID)
	require.Equal(t, "n-0S6_WzA2Mj", claims.Nonce)
}

func TestTenantScopedTokens(t *testing.T) {
	tk := newTokenizer(t, Config{})

	set, err := tk.IssueTokenSet(testUser(), ports.TokenParams{TenantID: "tenant-1"})
	require.NoError(t, err)

	access, err := tk.ParseAccess(set.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "tenant-1", access.TenantID)

	refresh, err := tk.ParseRefresh(set.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, "tenant-1", refresh.TenantID)
}
