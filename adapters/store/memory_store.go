package store

import (
	"context"
	"sync"
	"time"

	"github.com/clavis-id/clavis/core"
	"github.com/clavis-id/clavis/ports"
)

// retention keeps terminal challenges around after expiry so replays can be
// told apart from unknown ids before garbage collection reclaims them.
const retention = time.Hour

// MemoryChallengeStore is an in-memory implementation of the ChallengeStore
// interface. Consumption is a compare-and-swap under the store mutex, so
// concurrent redemptions resolve to exactly one winner.
type MemoryChallengeStore struct {
	challenges map[string]*core.Challenge
	ttl        time.Duration
	mu         sync.Mutex
}

// NewMemoryChallengeStore creates a new in-memory challenge store.
func NewMemoryChallengeStore(ttl time.Duration) *MemoryChallengeStore {
	return &MemoryChallengeStore{
		challenges: make(map[string]*core.Challenge),
		ttl:        ttl,
	}
}

// Issue creates and stores a fresh challenge.
func (s *MemoryChallengeStore) Issue(ctx context.Context, did string, purpose core.ChallengePurpose, verificationMethod string) (*core.Challenge, error) {
	challenge, err := core.NewChallenge(did, purpose, verificationMethod, s.ttl)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.collect(time.Now())
	s.challenges[challenge.ID] = challenge

	copied := *challenge
	return &copied, nil
}

// Lookup returns the challenge, lazily transitioning issued->expired when
// the expiry has passed.
func (s *MemoryChallengeStore) Lookup(ctx context.Context, id string) (*core.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.challenges[id]
	if !ok {
		return nil, core.ErrNotFound
	}

	if challenge.State == core.StateIssued && challenge.ExpiredAt(time.Now()) {
		challenge.State = core.StateExpired
	}

	copied := *challenge
	return &copied, nil
}

// Consume atomically transitions the challenge from issued to consumed.
func (s *MemoryChallengeStore) Consume(ctx context.Context, id string) (*core.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.challenges[id]
	if !ok {
		return nil, core.ErrNotFound
	}

	switch challenge.State {
	case core.StateConsumed:
		return nil, core.ErrAlreadyConsumed
	case core.StateExpired, core.StateInvalid:
		return nil, core.ErrExpired
	}

	if challenge.ExpiredAt(time.Now()) {
		challenge.State = core.StateExpired
		return nil, core.ErrExpired
	}

	challenge.State = core.StateConsumed

	copied := *challenge
	return &copied, nil
}

// collect drops challenges whose retention window has passed. Called with
// the mutex held.
func (s *MemoryChallengeStore) collect(now time.Time) {
	for id, challenge := range s.challenges {
		if now.After(challenge.ExpiresAt.Add(retention)) {
			delete(s.challenges, id)
		}
	}
}

// MemoryGrantStore is an in-memory implementation of the GrantStore
// interface. Redeem deletes under the mutex, so a code can be redeemed at
// most once no matter how many callers race.
type MemoryGrantStore struct {
	grants map[string]*core.AuthorizationGrant
	mu     sync.Mutex
}

// NewMemoryGrantStore creates a new in-memory grant store.
func NewMemoryGrantStore() *MemoryGrantStore {
	return &MemoryGrantStore{
		grants: make(map[string]*core.AuthorizationGrant),
	}
}

// Save stores an authorization grant.
func (s *MemoryGrantStore) Save(ctx context.Context, grant *core.AuthorizationGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for code, g := range s.grants {
		if now.After(g.ExpiresAt.Add(retention)) {
			delete(s.grants, code)
		}
	}

	copied := *grant
	s.grants[grant.Code] = &copied
	return nil
}

// Redeem removes and returns the grant in a single step.
func (s *MemoryGrantStore) Redeem(ctx context.Context, code string) (*core.AuthorizationGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	grant, ok := s.grants[code]
	if !ok {
		return nil, core.ErrInvalidGrant
	}
	delete(s.grants, code)

	if time.Now().After(grant.ExpiresAt) {
		return nil, core.ErrExpired
	}

	copied := *grant
	return &copied, nil
}

// MemoryRevocationStore is an in-memory implementation of the
// RevocationStore interface.
type MemoryRevocationStore struct {
	revoked map[string]time.Time
	mu      sync.RWMutex
}

// NewMemoryRevocationStore creates a new in-memory revocation store.
func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{
		revoked: make(map[string]time.Time),
	}
}

// Revoke marks a token ID as revoked for the given duration.
func (s *MemoryRevocationStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, expiry := range s.revoked {
		if now.After(expiry) {
			delete(s.revoked, id)
		}
	}

	s.revoked[tokenID] = now.Add(ttl)
	return nil
}

// IsRevoked checks whether a token ID is currently revoked.
func (s *MemoryRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiry, ok := s.revoked[tokenID]
	if !ok {
		return false, nil
	}

	// A revocation past its window means the token itself expired too.
	if time.Now().After(expiry) {
		return false, nil
	}

	return true, nil
}

// MemoryConsentStore is an in-memory implementation of the ConsentStore
// interface.
type MemoryConsentStore struct {
	consents map[string]map[string]bool // subject|client -> approved scope set
	mu       sync.RWMutex
}

// NewMemoryConsentStore creates a new in-memory consent store.
func NewMemoryConsentStore() *MemoryConsentStore {
	return &MemoryConsentStore{
		consents: make(map[string]map[string]bool),
	}
}

func consentKey(subject, clientID string) string {
	return subject + "|" + clientID
}

// Record stores the subject's approval of the scopes for the client.
func (s *MemoryConsentStore) Record(ctx context.Context, subject, clientID string, scope []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := consentKey(subject, clientID)
	approved, ok := s.consents[key]
	if !ok {
		approved = make(map[string]bool)
		s.consents[key] = approved
	}
	for _, sc := range scope {
		approved[sc] = true
	}
	return nil
}

// HasConsent reports whether every requested scope has been approved.
func (s *MemoryConsentStore) HasConsent(ctx context.Context, subject, clientID string, scope []string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	approved, ok := s.consents[consentKey(subject, clientID)]
	if !ok {
		return false, nil
	}
	for _, sc := range scope {
		if !approved[sc] {
			return false, nil
		}
	}
	return true, nil
}

var (
	_ ports.ChallengeStore  = (*MemoryChallengeStore)(nil)
	_ ports.GrantStore      = (*MemoryGrantStore)(nil)
	_ ports.RevocationStore = (*MemoryRevocationStore)(nil)
	_ ports.ConsentStore    = (*MemoryConsentStore)(nil)
)
