package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/clavis-id/clavis/core"
	"github.com/clavis-id/clavis/ports"
)

// ContextManager holds the two session slots a client may occupy at once:
// the unscoped global context and at most one tenant context. Switching is
// transactional: a failed switch leaves both slots and the active mode
// exactly as they were.
type ContextManager struct {
	mu sync.Mutex

	global *core.SessionContext
	tenant *core.SessionContext

	currentMode  core.ContextMode
	previousMode core.ContextMode

	permissions ports.PermissionsService
	tokenizer   ports.Tokenizer
	events      ports.EventPublisher
}

// NewContextManager seeds the manager with an authenticated global session.
func NewContextManager(
	global *core.SessionContext,
	permissions ports.PermissionsService,
	tokenizer ports.Tokenizer,
	events ports.EventPublisher,
) *ContextManager {
	g := *global
	return &ContextManager{
		global:       &g,
		currentMode:  core.ModeGlobal,
		previousMode: core.ModeGlobal,
		permissions:  permissions,
		tokenizer:    tokenizer,
		events:       events,
	}
}

// Current returns a copy of the active session context.
func (m *ContextManager) Current() (core.SessionContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	active := m.activeLocked()
	if active == nil || !active.IsAuthenticated {
		return core.SessionContext{}, core.ErrNoActiveSession
	}
	return *active, nil
}

// SwitchTo activates a tenant context, minting a tenant-scoped token set
// first so that nothing is committed if access is denied or issuance fails.
// An empty tenantID switches back to the global context.
func (m *ContextManager) SwitchTo(ctx context.Context, tenantID string) (core.SessionContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.global == nil || !m.global.IsAuthenticated {
		return core.SessionContext{}, core.ErrNoActiveSession
	}

	if tenantID == "" {
		m.previousMode = m.currentMode
		m.currentMode = core.ModeGlobal
		m.publishSwitch(ctx, m.global.User.ID, core.ModeGlobal, "")
		return *m.global, nil
	}

	roles, perms, err := m.permissions.TenantAccess(ctx, m.global.User.ID, tenantID)
	if err != nil {
		return core.SessionContext{}, fmt.Errorf("tenant access check failed: %w", err)
	}

	scoped := m.global.User
	scoped.Roles = roles
	scoped.Permissions = perms

	tokens, err := m.tokenizer.IssueTokenSet(&scoped, ports.TokenParams{TenantID: tenantID})
	if err != nil {
		return core.SessionContext{}, fmt.Errorf("failed to issue tenant tokens: %w", err)
	}

	m.tenant = &core.SessionContext{
		Mode:            core.ModeTenant,
		TenantID:        tenantID,
		User:            scoped,
		Tokens:          tokens,
		IsAuthenticated: true,
		IssuedAt:        time.Now().UTC(),
	}
	m.previousMode = m.currentMode
	m.currentMode = core.ModeTenant

	m.publishSwitch(ctx, scoped.ID, core.ModeTenant, tenantID)
	return *m.tenant, nil
}

// Rollback reactivates the previously active context. The abandoned tenant
// context is kept so a second switch can return to it without re-minting.
func (m *ContextManager) Rollback() (core.SessionContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	target := m.slotLocked(m.previousMode)
	if target == nil || !target.IsAuthenticated {
		return core.SessionContext{}, core.ErrNoActiveSession
	}

	m.currentMode, m.previousMode = m.previousMode, m.currentMode
	return *target, nil
}

// Logout tears down the session. With contextOnly set, only the active
// tenant context is discarded and the global context becomes active again;
// a contextOnly logout from the global context is an error. A full logout
// clears both slots.
func (m *ContextManager) Logout(contextOnly bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if contextOnly {
		if m.currentMode != core.ModeTenant || m.tenant == nil {
			return core.ErrNoActiveSession
		}
		m.tenant = nil
		m.currentMode = core.ModeGlobal
		m.previousMode = core.ModeGlobal
		return nil
	}

	m.global = nil
	m.tenant = nil
	m.currentMode = core.ModeGlobal
	m.previousMode = core.ModeGlobal
	return nil
}

// Authenticated reports whether any slot still holds a live session.
func (m *ContextManager) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.global != nil && m.global.IsAuthenticated
}

func (m *ContextManager) activeLocked() *core.SessionContext {
	return m.slotLocked(m.currentMode)
}

func (m *ContextManager) slotLocked(mode core.ContextMode) *core.SessionContext {
	switch mode {
	case core.ModeTenant:
		return m.tenant
	default:
		return m.global
	}
}

func (m *ContextManager) publishSwitch(ctx context.Context, userID string, mode core.ContextMode, tenantID string) {
	if m.events == nil {
		return
	}
	if err := m.events.PublishContextSwitch(ctx, userID, mode, tenantID); err != nil {
		slog.Warn("failed to publish context switch event", "error", err, "user_id", userID)
	}
}

// ContextRegistry tracks one ContextManager per authenticated user so the
// HTTP layer can route context operations by token subject.
type ContextRegistry struct {
	mu       sync.RWMutex
	managers map[string]*ContextManager

	permissions ports.PermissionsService
	tokenizer   ports.Tokenizer
	events      ports.EventPublisher
}

func NewContextRegistry(permissions ports.PermissionsService, tokenizer ports.Tokenizer, events ports.EventPublisher) *ContextRegistry {
	return &ContextRegistry{
		managers:    make(map[string]*ContextManager),
		permissions: permissions,
		tokenizer:   tokenizer,
		events:      events,
	}
}

// Begin installs a fresh manager seeded with the global session produced by
// a successful login, replacing any previous session for the user.
func (r *ContextRegistry) Begin(session *core.SessionContext) *ContextManager {
	m := NewContextManager(session, r.permissions, r.tokenizer, r.events)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.managers[session.User.ID] = m
	return m
}

// Get returns the manager for a user.
func (r *ContextRegistry) Get(userID string) (*ContextManager, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.managers[userID]
	if !ok {
		return nil, core.ErrNoActiveSession
	}
	return m, nil
}

// Remove drops the manager for a user after a full logout.
func (r *ContextRegistry) Remove(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.managers, userID)
}
