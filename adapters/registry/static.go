package registry

import (
	"context"
	"sync"

	"github.com/clavis-id/clavis/core"
	"github.com/clavis-id/clavis/ports"
)

// StaticClientRegistry holds registered OAuth2 clients in memory.
type StaticClientRegistry struct {
	clients map[string]*core.Client
	mu      sync.RWMutex
}

// NewStaticClientRegistry creates a registry preloaded with the given
// clients.
func NewStaticClientRegistry(clients ...*core.Client) *StaticClientRegistry {
	r := &StaticClientRegistry{
		clients: make(map[string]*core.Client),
	}
	for _, c := range clients {
		r.clients[c.ID] = c
	}
	return r
}

// Register adds or replaces a client.
func (r *StaticClientRegistry) Register(client *core.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[client.ID] = client
}

// Client returns the registered client for the id.
func (r *StaticClientRegistry) Client(ctx context.Context, clientID string) (*core.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.clients[clientID]
	if !ok {
		return nil, core.ErrInvalidClient
	}
	return client, nil
}

var _ ports.ClientRegistry = (*StaticClientRegistry)(nil)
