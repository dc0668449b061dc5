package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clavis-id/clavis/core"
	"github.com/clavis-id/clavis/ports"
)

// RedisChallengeStore is a Redis implementation of the ChallengeStore
// interface. The single-winner guarantee for Consume comes from SETNX on a
// per-challenge consumed marker.
type RedisChallengeStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisChallengeStore creates a new Redis challenge store.
func NewRedisChallengeStore(client *redis.Client, ttl time.Duration) *RedisChallengeStore {
	return &RedisChallengeStore{
		client: client,
		prefix: "clavis:challenge:",
		ttl:    ttl,
	}
}

// Issue creates a challenge and stores it with a retention window past its
// expiry, so consumed and expired challenges remain distinguishable from
// unknown ids until Redis reclaims them.
func (s *RedisChallengeStore) Issue(ctx context.Context, did string, purpose core.ChallengePurpose, verificationMethod string) (*core.Challenge, error) {
	challenge, err := core.NewChallenge(did, purpose, verificationMethod, s.ttl)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(challenge)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal challenge: %w", err)
	}

	if err := s.client.Set(ctx, s.prefix+challenge.ID, payload, s.ttl+retention).Err(); err != nil {
		return nil, fmt.Errorf("failed to store challenge: %w", err)
	}

	return challenge, nil
}

// Lookup returns the challenge, applying the lazy issued->expired transition.
func (s *RedisChallengeStore) Lookup(ctx context.Context, id string) (*core.Challenge, error) {
	challenge, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if challenge.State == core.StateIssued && challenge.ExpiredAt(time.Now()) {
		challenge.State = core.StateExpired
		s.persist(ctx, challenge)
	}

	return challenge, nil
}

// Consume transitions the challenge to consumed. Exactly one concurrent
// caller wins the SETNX on the consumed marker; everyone else gets
// ErrAlreadyConsumed.
func (s *RedisChallengeStore) Consume(ctx context.Context, id string) (*core.Challenge, error) {
	challenge, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch challenge.State {
	case core.StateConsumed:
		return nil, core.ErrAlreadyConsumed
	case core.StateExpired, core.StateInvalid:
		return nil, core.ErrExpired
	}

	if challenge.ExpiredAt(time.Now()) {
		challenge.State = core.StateExpired
		s.persist(ctx, challenge)
		return nil, core.ErrExpired
	}

	won, err := s.client.SetNX(ctx, s.prefix+id+":consumed", "1", retention).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to consume challenge: %w", err)
	}
	if !won {
		return nil, core.ErrAlreadyConsumed
	}

	challenge.State = core.StateConsumed
	s.persist(ctx, challenge)

	return challenge, nil
}

func (s *RedisChallengeStore) get(ctx context.Context, id string) (*core.Challenge, error) {
	payload, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}

	var challenge core.Challenge
	if err := json.Unmarshal(payload, &challenge); err != nil {
		return nil, fmt.Errorf("failed to unmarshal challenge: %w", err)
	}

	return &challenge, nil
}

// persist writes the updated state back, keeping the remaining TTL. A lost
// write here is harmless: the consumed marker and the expiry timestamp stay
// authoritative.
func (s *RedisChallengeStore) persist(ctx context.Context, challenge *core.Challenge) {
	payload, err := json.Marshal(challenge)
	if err != nil {
		return
	}
	s.client.Set(ctx, s.prefix+challenge.ID, payload, redis.KeepTTL)
}

// RedisGrantStore is a Redis implementation of the GrantStore interface.
// GETDEL makes redemption atomic: a code is returned to exactly one caller.
type RedisGrantStore struct {
	client *redis.Client
	prefix string
}

// NewRedisGrantStore creates a new Redis grant store.
func NewRedisGrantStore(client *redis.Client) *RedisGrantStore {
	return &RedisGrantStore{
		client: client,
		prefix: "clavis:grant:",
	}
}

// Save stores the grant until shortly after its expiry.
func (s *RedisGrantStore) Save(ctx context.Context, grant *core.AuthorizationGrant) error {
	payload, err := json.Marshal(grant)
	if err != nil {
		return fmt.Errorf("failed to marshal grant: %w", err)
	}

	ttl := time.Until(grant.ExpiresAt) + time.Minute
	if err := s.client.Set(ctx, s.prefix+grant.Code, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store grant: %w", err)
	}
	return nil
}

// Redeem removes and returns the grant atomically.
func (s *RedisGrantStore) Redeem(ctx context.Context, code string) (*core.AuthorizationGrant, error) {
	payload, err := s.client.GetDel(ctx, s.prefix+code).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, core.ErrInvalidGrant
		}
		return nil, fmt.Errorf("failed to redeem grant: %w", err)
	}

	var grant core.AuthorizationGrant
	if err := json.Unmarshal(payload, &grant); err != nil {
		return nil, fmt.Errorf("failed to unmarshal grant: %w", err)
	}

	if time.Now().After(grant.ExpiresAt) {
		return nil, core.ErrExpired
	}

	return &grant, nil
}

// RedisRevocationStore is a Redis implementation of the RevocationStore
// interface.
type RedisRevocationStore struct {
	client *redis.Client
	prefix string
}

// NewRedisRevocationStore creates a new Redis revocation store.
func NewRedisRevocationStore(client *redis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{
		client: client,
		prefix: "clavis:revoked:",
	}
}

// Revoke marks a token ID as revoked in Redis.
func (s *RedisRevocationStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.prefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked checks whether a token ID is revoked in Redis.
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	val, err := s.client.Exists(ctx, s.prefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return val > 0, nil
}

// RedisConsentStore is a Redis implementation of the ConsentStore interface,
// one scope set per subject/client pair.
type RedisConsentStore struct {
	client *redis.Client
	prefix string
}

// NewRedisConsentStore creates a new Redis consent store.
func NewRedisConsentStore(client *redis.Client) *RedisConsentStore {
	return &RedisConsentStore{
		client: client,
		prefix: "clavis:consent:",
	}
}

func (s *RedisConsentStore) key(subject, clientID string) string {
	return s.prefix + subject + ":" + clientID
}

// Record adds the scopes to the subject's approval set for the client.
func (s *RedisConsentStore) Record(ctx context.Context, subject, clientID string, scope []string) error {
	members := make([]interface{}, len(scope))
	for i, sc := range scope {
		members[i] = sc
	}
	if err := s.client.SAdd(ctx, s.key(subject, clientID), members...).Err(); err != nil {
		return fmt.Errorf("failed to record consent: %w", err)
	}
	return nil
}

// HasConsent reports whether every requested scope is in the approval set.
func (s *RedisConsentStore) HasConsent(ctx context.Context, subject, clientID string, scope []string) (bool, error) {
	for _, sc := range scope {
		ok, err := s.client.SIsMember(ctx, s.key(subject, clientID), sc).Result()
		if err != nil {
			return false, fmt.Errorf("failed to check consent: %w", err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

var (
	_ ports.ChallengeStore  = (*RedisChallengeStore)(nil)
	_ ports.GrantStore      = (*RedisGrantStore)(nil)
	_ ports.RevocationStore = (*RedisRevocationStore)(nil)
	_ ports.ConsentStore    = (*RedisConsentStore)(nil)
)
