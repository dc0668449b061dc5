package service

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clavis-id/clavis/adapters/directory"
	"github.com/clavis-id/clavis/adapters/events"
	"github.com/clavis-id/clavis/adapters/tokenizer"
	"github.com/clavis-id/clavis/core"
	"github.com/clavis-id/clavis/ports"
)

func newContextFixture(t *testing.T) (*ContextManager, *directory.StaticPermissions) {
	t.Helper()

	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tk := tokenizer.NewJWTTokenizer(signKey, tokenizer.Config{})

	user := &core.User{
		ID:          "user-1",
		DID:         aliceDID,
		Roles:       []string{"user"},
		Permissions: []string{"profile:read"},
	}
	tokens, err := tk.IssueTokenSet(user, ports.TokenParams{})
	require.NoError(t, err)

	permissions := directory.NewStaticPermissions()
	manager := NewContextManager(&core.SessionContext{
		Mode:            core.ModeGlobal,
		User:            *user,
		Tokens:          tokens,
		IsAuthenticated: true,
		IssuedAt:        time.Now(),
	}, permissions, tk, events.NewNopPublisher())

	return manager, permissions
}

func TestSwitchToTenantAndBack(t *testing.T) {
	manager, permissions := newContextFixture(t)
	ctx := context.Background()
	permissions.Grant("user-1", "tenant-1", []string{"admin"}, []string{"tenant:write"})

	global, err := manager.Current()
	require.NoError(t, err)
	require.Equal(t, core.ModeGlobal, global.Mode)

	session, err := manager.SwitchTo(ctx, "tenant-1")
	require.NoError(t, err)
	require.Equal(t, core.ModeTenant, session.Mode)
	require.Equal(t, "tenant-1", session.TenantID)
	require.Equal(t, []string{"admin"}, session.User.Roles)

	// The tenant context holds its own token set.
	require.NotEqual(t, global.Tokens.AccessToken, session.Tokens.AccessToken)

	back, err := manager.SwitchTo(ctx, "")
	require.NoError(t, err)
	require.Equal(t, core.ModeGlobal, back.Mode)
	require.Equal(t, global.Tokens.AccessToken, back.Tokens.AccessToken)
}

func TestFailedSwitchLeavesContextIntact(t *testing.T) {
	manager, _ := newContextFixture(t)
	ctx := context.Background()

	before, err := manager.Current()
	require.NoError(t, err)

	_, err = manager.SwitchTo(ctx, "tenant-1")
	require.ErrorIs(t, err, core.ErrPermissionDenied)

	after, err := manager.Current()
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestRollback(t *testing.T) {
	manager, permissions := newContextFixture(t)
	ctx := context.Background()
	permissions.Grant("user-1", "tenant-1", []string{"admin"}, nil)

	_, err := manager.SwitchTo(ctx, "tenant-1")
	require.NoError(t, err)

	rolled, err := manager.Rollback()
	require.NoError(t, err)
	require.Equal(t, core.ModeGlobal, rolled.Mode)

	// Rolling back again returns to the tenant context without re-minting.
	again, err := manager.Rollback()
	require.NoError(t, err)
	require.Equal(t, core.ModeTenant, again.Mode)
	require.Equal(t, "tenant-1", again.TenantID)
}

func TestContextOnlyLogout(t *testing.T) {
	manager, permissions := newContextFixture(t)
	ctx := context.Background()
	permissions.Grant("user-1", "tenant-1", []string{"admin"}, nil)

	// From the global context there is no tenant context to drop.
	require.ErrorIs(t, manager.Logout(true), core.ErrNoActiveSession)

	_, err := manager.SwitchTo(ctx, "tenant-1")
	require.NoError(t, err)

	require.NoError(t, manager.Logout(true))

	current, err := manager.Current()
	require.NoError(t, err)
	require.Equal(t, core.ModeGlobal, current.Mode)
	require.True(t, manager.Authenticated())
}

func TestFullLogout(t *testing.T) {
	manager, _ := newContextFixture(t)

	require.NoError(t, manager.Logout(false))
	require.False(t, manager.Authenticated())

	_, err := manager.Current()
	require.ErrorIs(t, err, core.ErrNoActiveSession)
	_, err = manager.SwitchTo(context.Background(), "tenant-1")
	require.ErrorIs(t, err, core.ErrNoActiveSession)
}

func TestContextRegistry(t *testing.T) {
	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tk := tokenizer.NewJWTTokenizer(signKey, tokenizer.Config{})

	registry := NewContextRegistry(directory.NewStaticPermissions(), tk, events.NewNopPublisher())

	_, err = registry.Get("user-1")
	require.ErrorIs(t, err, core.ErrNoActiveSession)

	user := &core.User{ID: "user-1", DID: aliceDID}
	tokens, err := tk.IssueTokenSet(user, ports.TokenParams{})
	require.NoError(t, err)

	registry.Begin(&core.SessionContext{
		Mode:            core.ModeGlobal,
		User:            *user,
		Tokens:          tokens,
		IsAuthenticated: true,
		IssuedAt:        time.Now(),
	})

	manager, err := registry.Get("user-1")
	require.NoError(t, err)
	require.True(t, manager.Authenticated())

	registry.Remove("user-1")
	_, err = registry.Get("user-1")
	require.ErrorIs(t, err, core.ErrNoActiveSession)
}
