package tokenizer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/clavis-id/clavis/core"
	"github.com/clavis-id/clavis/ports"
)

const (
	AudienceAccess  = "clavis:access"
	AudienceRefresh = "clavis:refresh"

	DefaultAccessTTL  = 5 * time.Minute
	DefaultRefreshTTL = 5 * 24 * time.Hour
	DefaultIssuer     = "clavis"
)

// Config tunes token lifetimes and the issuer claim.
type Config struct {
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// JWTTokenizer implements the Tokenizer interface using ES256-signed JWTs.
type JWTTokenizer struct {
	signKey    *ecdsa.PrivateKey
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewJWTTokenizer creates a new JWT tokenizer. Zero config fields fall back
// to defaults.
func NewJWTTokenizer(signKey *ecdsa.PrivateKey, cfg Config) *JWTTokenizer {
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	return &JWTTokenizer{
		signKey:    signKey,
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
	}
}

// IssueTokenSet mints an access/refresh pair for the user, plus an ID token
// when requested. The returned TokenSet is a value and belongs to exactly
// one session context.
func (j *JWTTokenizer) IssueTokenSet(user *core.User, params ports.TokenParams) (core.TokenSet, error) {
	now := time.Now()
	scope := params.Scope
	if len(scope) == 0 {
		scope = []string{core.DefaultScope}
	}
	refreshID := uuid.New().String()

	refreshClaims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   user.ID,
			ID:        refreshID,
			Audience:  jwt.ClaimStrings{AudienceRefresh},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.refreshTTL)),
		},
		DID:      user.DID,
		TenantID: params.TenantID,
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodES256, refreshClaims).SignedString(j.signKey)
	if err != nil {
		return core.TokenSet{}, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	accessClaims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   user.ID,
			ID:        uuid.New().String(),
			Audience:  jwt.ClaimStrings{AudienceAccess},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.accessTTL)),
		},
		DID:         user.DID,
		Roles:       user.Roles,
		Permissions: user.Permissions,
		Scope:       strings.Join(scope, " "),
		TenantID:    params.TenantID,
		RefreshID:   refreshID,
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodES256, accessClaims).SignedString(j.signKey)
	if err != nil {
		return core.TokenSet{}, fmt.Errorf("failed to sign access token: %w", err)
	}

	set := core.TokenSet{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(j.accessTTL.Seconds()),
		Scope:        strings.Join(scope, " "),
	}

	if params.IDToken && params.ClientID != "" {
		idClaims := IDClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    j.issuer,
				Subject:   user.ID,
				ID:        uuid.New().String(),
				Audience:  jwt.ClaimStrings{params.ClientID},
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(j.accessTTL)),
			},
			DID:   user.DID,
			Email: user.Email,
			Name:  user.Name,
			Nonce: params.Nonce,
		}
		idToken, err := jwt.NewWithClaims(jwt.SigningMethodES256, idClaims).SignedString(j.signKey)
		if err != nil {
			return core.TokenSet{}, fmt.Errorf("failed to sign id token: %w", err)
		}
		set.IDToken = idToken
	}

	return set, nil
}

// ParseAccess validates an access token and extracts its identity.
func (j *JWTTokenizer) ParseAccess(tokenStr string) (*core.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &AccessClaims{}, j.keyFunc, jwt.WithAudience(AudienceAccess))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, core.ErrTokenExpired
		}
		return nil, core.ErrInvalidToken
	}
	if !token.Valid {
		return nil, core.ErrInvalidToken
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok {
		return nil, core.ErrInvalidToken
	}

	return &core.Identity{
		UserID:      claims.Subject,
		DID:         claims.DID,
		TenantID:    claims.TenantID,
		RefreshID:   claims.RefreshID,
		Scope:       strings.Fields(claims.Scope),
		Roles:       claims.Roles,
		Permissions: claims.Permissions,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

// ParseRefresh validates a refresh token and extracts its identity. The
// identity's RefreshID is the token's own JTI.
func (j *JWTTokenizer) ParseRefresh(tokenStr string) (*core.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &RefreshClaims{}, j.keyFunc, jwt.WithAudience(AudienceRefresh))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, core.ErrTokenExpired
		}
		return nil, core.ErrInvalidToken
	}
	if !token.Valid {
		return nil, core.ErrInvalidToken
	}

	claims, ok := token.Claims.(*RefreshClaims)
	if !ok {
		return nil, core.ErrInvalidToken
	}

	return &core.Identity{
		UserID:    claims.Subject,
		DID:       claims.DID,
		TenantID:  claims.TenantID,
		RefreshID: claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (j *JWTTokenizer) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return &j.signKey.PublicKey, nil
}

var _ ports.Tokenizer = (*JWTTokenizer)(nil)
