package directory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/clavis-id/clavis/core"
	"github.com/clavis-id/clavis/ports"
)

// StaticIdentityDirectory maps DIDs to users in memory. With auto-provision
// enabled, an unknown DID gets a fresh user record on first login.
type StaticIdentityDirectory struct {
	users         map[string]*core.User // keyed by DID
	autoProvision bool
	mu            sync.Mutex
}

// NewStaticIdentityDirectory creates a directory. autoProvision controls
// whether unknown DIDs are admitted as new users.
func NewStaticIdentityDirectory(autoProvision bool) *StaticIdentityDirectory {
	return &StaticIdentityDirectory{
		users:         make(map[string]*core.User),
		autoProvision: autoProvision,
	}
}

// Add registers a user record for its DID.
func (d *StaticIdentityDirectory) Add(user *core.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[user.DID] = user
}

// UserForDID returns the user mapped to the DID.
func (d *StaticIdentityDirectory) UserForDID(ctx context.Context, did string) (*core.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if user, ok := d.users[did]; ok {
		copied := *user
		return &copied, nil
	}

	if !d.autoProvision {
		return nil, core.ErrNotFound
	}

	user := &core.User{
		ID:          uuid.New().String(),
		DID:         did,
		Roles:       []string{"user"},
		Permissions: []string{"profile:read"},
	}
	d.users[did] = user

	copied := *user
	return &copied, nil
}

// StaticPermissions answers tenant-access checks from an in-memory table.
type StaticPermissions struct {
	grants map[string]map[string]tenantGrant // userID -> tenantID -> grant
	mu     sync.RWMutex
}

type tenantGrant struct {
	roles       []string
	permissions []string
}

// NewStaticPermissions creates an empty permissions table.
func NewStaticPermissions() *StaticPermissions {
	return &StaticPermissions{
		grants: make(map[string]map[string]tenantGrant),
	}
}

// Grant records that the user may enter the tenant with the given roles and
// permissions.
func (p *StaticPermissions) Grant(userID, tenantID string, roles, permissions []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	byTenant, ok := p.grants[userID]
	if !ok {
		byTenant = make(map[string]tenantGrant)
		p.grants[userID] = byTenant
	}
	byTenant[tenantID] = tenantGrant{roles: roles, permissions: permissions}
}

// TenantAccess validates the user's access to the tenant.
func (p *StaticPermissions) TenantAccess(ctx context.Context, userID, tenantID string) ([]string, []string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	grant, ok := p.grants[userID][tenantID]
	if !ok {
		return nil, nil, core.ErrPermissionDenied
	}
	return grant.roles, grant.permissions, nil
}

var (
	_ ports.IdentityDirectory  = (*StaticIdentityDirectory)(nil)
	_ ports.PermissionsService = (*StaticPermissions)(nil)
)
