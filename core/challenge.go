package core

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChallengeState tracks the lifecycle of an authentication challenge.
// A challenge leaves StateIssued exactly once; StateConsumed and
// StateExpired are terminal.
type ChallengeState string

const (
	StateIssued   ChallengeState = "issued"
	StateConsumed ChallengeState = "consumed"
	StateExpired  ChallengeState = "expired"
	StateInvalid  ChallengeState = "invalid"
)

// ChallengePurpose describes what the signed challenge is used for.
type ChallengePurpose string

const (
	PurposeSignature    ChallengePurpose = "signature"
	PurposePresentation ChallengePurpose = "presentation"
)

// Challenge is a server-issued, single-use, time-bounded message a DID
// controller must sign to prove control of the DID.
type Challenge struct {
	ID                 string           // Unique identifier for the challenge
	DID                string           // Subject DID the challenge was issued for
	Nonce              string           // Random high-entropy nonce embedded in the message
	Purpose            ChallengePurpose // What the signature will be used for
	Message            string           // Exact bytes the signer must sign
	VerificationMethod string           // Optional method binding, set at issuance
	IssuedAt           time.Time        // When the challenge was created
	ExpiresAt          time.Time        // Authoritative server-side expiry
	State              ChallengeState
}

// NewChallenge builds an issued challenge with a fresh 256-bit nonce and a
// canonical message embedding the did, nonce, purpose and expiry. Both store
// implementations create challenges through this constructor so the message
// format stays identical regardless of backend.
func NewChallenge(did string, purpose ChallengePurpose, verificationMethod string, ttl time.Duration) (*Challenge, error) {
	nonceBytes := make([]byte, 32)
	if _, err := rand.Read(nonceBytes); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	nonce := hex.EncodeToString(nonceBytes)

	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	return &Challenge{
		ID:                 uuid.New().String(),
		DID:                did,
		Nonce:              nonce,
		Purpose:            purpose,
		Message:            ChallengeMessage(did, nonce, purpose, expiresAt),
		VerificationMethod: verificationMethod,
		IssuedAt:           now,
		ExpiresAt:          expiresAt,
		State:              StateIssued,
	}, nil
}

// ChallengeMessage composes the canonical challenge text. The verifier
// compares signed bytes against this string verbatim, so the format must
// never be normalized or re-ordered.
func ChallengeMessage(did, nonce string, purpose ChallengePurpose, expiresAt time.Time) string {
	return fmt.Sprintf(
		"clavis authentication challenge\ndid: %s\nnonce: %s\npurpose: %s\nexpires: %s",
		did, nonce, purpose, expiresAt.Format(time.RFC3339),
	)
}

// ExpiredAt reports whether the challenge is past its expiry at the given
// instant. The instant always comes from the server clock; client-reported
// timestamps are never consulted.
func (c *Challenge) ExpiredAt(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
