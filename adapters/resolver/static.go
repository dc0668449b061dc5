package resolver

import (
	"context"
	"sync"

	"github.com/clavis-id/clavis/core"
	"github.com/clavis-id/clavis/ports"
)

// StaticResolver serves DID documents from memory. Used in tests and for
// locally provisioned identities.
type StaticResolver struct {
	docs map[string]*core.DIDDocument
	mu   sync.RWMutex
}

// NewStaticResolver creates an empty static resolver.
func NewStaticResolver() *StaticResolver {
	return &StaticResolver{
		docs: make(map[string]*core.DIDDocument),
	}
}

// Register adds or replaces a DID document.
func (r *StaticResolver) Register(doc *core.DIDDocument) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = doc
}

// Resolve returns the registered document for the DID.
func (r *StaticResolver) Resolve(ctx context.Context, did string) (*core.DIDDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.docs[did]
	if !ok {
		return nil, core.ErrNotFound
	}
	return doc, nil
}

var _ ports.Resolver = (*StaticResolver)(nil)
