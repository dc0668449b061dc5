package core

import "errors"

var (
	// Challenge lifecycle
	ErrNotFound        = errors.New("challenge not found")
	ErrExpired         = errors.New("challenge has expired")
	ErrAlreadyConsumed = errors.New("challenge already consumed")

	// Proof verification
	ErrInvalidProof              = errors.New("invalid proof")
	ErrSignatureMismatch         = errors.New("signature mismatch")
	ErrMessageMismatch           = errors.New("signed message mismatch")
	ErrUnknownVerificationMethod = errors.New("unknown verification method")
	ErrUnsupportedAlgorithm      = errors.New("unsupported key algorithm")
	ErrInvalidDID                = errors.New("invalid did")

	// OAuth2 authorization and token exchange
	ErrInvalidRequest     = errors.New("invalid authorization request")
	ErrInvalidClient      = errors.New("unknown client")
	ErrInvalidRedirectURI = errors.New("invalid redirect uri")
	ErrConsentRequired    = errors.New("consent required")
	ErrInvalidGrant       = errors.New("invalid grant")
	ErrPKCEMismatch       = errors.New("pkce verification failed")
	ErrAccessDenied       = errors.New("access denied")
	ErrTimeout            = errors.New("authorization timed out")

	// Sessions and tokens
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenRevoked     = errors.New("token has been revoked")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNoActiveSession  = errors.New("no active session")
)
