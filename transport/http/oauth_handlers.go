package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clavis-id/clavis/core"
	"github.com/clavis-id/clavis/service"
)

// DefaultAuthorizeTimeout bounds how long an authorization request may
// take before the client is told to retry.
const DefaultAuthorizeTimeout = 15 * time.Second

// OAuthHandlers contains HTTP handlers for the OAuth2 authorization and
// token endpoints.
type OAuthHandlers struct {
	oauth            *service.OAuthService
	authorizeTimeout time.Duration
}

// NewOAuthHandlers creates new OAuth2 handlers. A zero timeout falls back
// to DefaultAuthorizeTimeout.
func NewOAuthHandlers(oauth *service.OAuthService, authorizeTimeout time.Duration) *OAuthHandlers {
	if authorizeTimeout == 0 {
		authorizeTimeout = DefaultAuthorizeTimeout
	}
	return &OAuthHandlers{
		oauth:            oauth,
		authorizeTimeout: authorizeTimeout,
	}
}

// Authorize handles the authorization endpoint. On success the client is
// redirected back with a single-use code; when consent is outstanding the
// response is a 200 telling the caller to collect it and retry with the
// same parameters.
func (h *OAuthHandlers) Authorize(c *gin.Context) {
	identity := identityFrom(c)
	if identity == nil {
		c.JSON(http.StatusUnauthorized, oauthError("access_denied", "Authentication required"))
		return
	}

	var req core.AuthorizationRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, oauthError("invalid_request", "Malformed authorization request"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.authorizeTimeout)
	defer cancel()

	result, err := h.oauth.Authorize(ctx, &req, identity.DID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, core.ErrTimeout) {
			c.JSON(http.StatusServiceUnavailable, oauthError("temporarily_unavailable", "Authorization timed out, retry the request"))
			return
		}
		status, payload := mapAuthorizeError(err)
		c.JSON(status, payload)
		return
	}

	if result.ConsentRequired {
		c.JSON(http.StatusOK, gin.H{"consent_required": true, "state": result.State})
		return
	}

	target, err := url.Parse(req.RedirectURI)
	if err != nil {
		c.JSON(http.StatusBadRequest, oauthError("invalid_request", "Malformed redirect URI"))
		return
	}
	q := target.Query()
	q.Set("code", result.Code)
	if result.State != "" {
		q.Set("state", result.State)
	}
	target.RawQuery = q.Encode()

	c.Redirect(http.StatusFound, target.String())
}

// Consent records the authenticated subject's approval for a client.
func (h *OAuthHandlers) Consent(c *gin.Context) {
	identity := identityFrom(c)
	if identity == nil {
		c.JSON(http.StatusUnauthorized, oauthError("access_denied", "Authentication required"))
		return
	}

	var req struct {
		ClientID string `json:"client_id" binding:"required"`
		Scope    string `json:"scope"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, oauthError("invalid_request", "client_id is required"))
		return
	}

	if err := h.oauth.GrantConsent(c.Request.Context(), identity.DID, req.ClientID, strings.Fields(req.Scope)); err != nil {
		if errors.Is(err, core.ErrInvalidClient) {
			c.JSON(http.StatusBadRequest, oauthError("invalid_client", "Unknown client"))
			return
		}
		c.JSON(http.StatusInternalServerError, oauthError("server_error", "Failed to record consent"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Consent recorded"})
}

// Deny reports the subject's refusal back to the relying party. State is
// carried through so the client can correlate the denial.
func (h *OAuthHandlers) Deny(c *gin.Context) {
	var req core.AuthorizationRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, oauthError("invalid_request", "Malformed request"))
		return
	}

	if _, err := h.oauth.Validate(c.Request.Context(), &req); err != nil {
		status, payload := mapAuthorizeError(err)
		c.JSON(status, payload)
		return
	}

	redirect, err := h.oauth.Deny(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, oauthError("invalid_request", "Malformed redirect URI"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"redirect": redirect})
}

// Token handles the token endpoint for the authorization_code grant.
func (h *OAuthHandlers) Token(c *gin.Context) {
	var req struct {
		GrantType    string `form:"grant_type" binding:"required"`
		Code         string `form:"code"`
		RedirectURI  string `form:"redirect_uri"`
		ClientID     string `form:"client_id"`
		ClientSecret string `form:"client_secret"`
		CodeVerifier string `form:"code_verifier"`
	}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, oauthError("invalid_request", "Malformed token request"))
		return
	}

	if req.GrantType != "authorization_code" {
		c.JSON(http.StatusBadRequest, oauthError("unsupported_grant_type", "Only authorization_code is supported"))
		return
	}
	if req.Code == "" || req.ClientID == "" || req.RedirectURI == "" {
		c.JSON(http.StatusBadRequest, oauthError("invalid_request", "code, client_id and redirect_uri are required"))
		return
	}

	tokens, err := h.oauth.Exchange(c.Request.Context(), service.ExchangeRequest{
		Code:         req.Code,
		ClientID:     req.ClientID,
		RedirectURI:  req.RedirectURI,
		CodeVerifier: req.CodeVerifier,
		ClientSecret: req.ClientSecret,
	})
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidGrant), errors.Is(err, core.ErrExpired):
			c.JSON(http.StatusBadRequest, oauthError("invalid_grant", "Authorization code is invalid, expired or already used"))
		case errors.Is(err, core.ErrPKCEMismatch):
			c.JSON(http.StatusBadRequest, oauthError("invalid_grant", "PKCE verification failed"))
		case errors.Is(err, core.ErrInvalidClient):
			c.JSON(http.StatusUnauthorized, oauthError("invalid_client", "Client authentication failed"))
		default:
			c.JSON(http.StatusInternalServerError, oauthError("server_error", "Failed to exchange code"))
		}
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, tokens)
}

func mapAuthorizeError(err error) (int, gin.H) {
	switch {
	case errors.Is(err, core.ErrInvalidClient):
		return http.StatusBadRequest, oauthError("invalid_client", "Unknown client")
	case errors.Is(err, core.ErrInvalidRedirectURI):
		// Never redirect to an unvalidated URI, not even to report an error.
		return http.StatusBadRequest, oauthError("invalid_request", "Redirect URI is not registered for this client")
	case errors.Is(err, core.ErrInvalidRequest):
		return http.StatusBadRequest, oauthError("invalid_request", err.Error())
	default:
		return http.StatusInternalServerError, oauthError("server_error", "Authorization failed")
	}
}

func oauthError(code, description string) gin.H {
	return gin.H{"error": code, "error_description": description}
}
