package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clavis-id/clavis/core"
	"github.com/clavis-id/clavis/service"
)

// AuthHandlers contains HTTP handlers for the DID authentication and
// session endpoints.
type AuthHandlers struct {
	didAuth  *service.DIDAuthService
	contexts *service.ContextRegistry
}

// NewAuthHandlers creates new auth handlers.
func NewAuthHandlers(didAuth *service.DIDAuthService, contexts *service.ContextRegistry) *AuthHandlers {
	return &AuthHandlers{
		didAuth:  didAuth,
		contexts: contexts,
	}
}

// Initiate handles the challenge request.
func (h *AuthHandlers) Initiate(c *gin.Context) {
	var req struct {
		DID                string `json:"did" binding:"required"`
		ChallengeType      string `json:"challenge_type"`
		VerificationMethod string `json:"verification_method"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	challenge, err := h.didAuth.Initiate(c.Request.Context(), req.DID, core.ChallengePurpose(req.ChallengeType), req.VerificationMethod)
	if err != nil {
		statusCode := http.StatusInternalServerError
		errorMsg := "Failed to create challenge"

		switch {
		case errors.Is(err, core.ErrInvalidDID):
			statusCode = http.StatusBadRequest
			errorMsg = "Invalid or unresolvable DID"
		case errors.Is(err, core.ErrInvalidRequest):
			statusCode = http.StatusBadRequest
			errorMsg = "Invalid challenge type"
		case errors.Is(err, core.ErrUnknownVerificationMethod):
			statusCode = http.StatusBadRequest
			errorMsg = "Unknown verification method"
		}

		c.JSON(statusCode, gin.H{"error": errorMsg})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"challenge_id":        challenge.ID,
		"challenge":           challenge.Message,
		"expires_at":          challenge.ExpiresAt.Format(time.RFC3339),
		"verification_method": challenge.VerificationMethod,
	})
}

// Complete handles the challenge response. The proof may arrive as a full
// proof object or, for detached signatures, as the bare "response" field.
func (h *AuthHandlers) Complete(c *gin.Context) {
	var req struct {
		ChallengeID string      `json:"challenge_id" binding:"required"`
		Response    string      `json:"response"`
		Proof       *core.Proof `json:"proof"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	proof := req.Proof
	if proof == nil {
		if req.Response == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing proof"})
			return
		}
		proof = &core.Proof{Signature: req.Response}
	}

	session, err := h.didAuth.Complete(c.Request.Context(), req.ChallengeID, proof)
	if err != nil {
		statusCode := http.StatusInternalServerError
		errorMsg := "Authentication failed"

		switch {
		case errors.Is(err, core.ErrNotFound):
			statusCode = http.StatusNotFound
			errorMsg = "Unknown challenge"
		case errors.Is(err, core.ErrExpired):
			statusCode = http.StatusBadRequest
			errorMsg = "Challenge expired"
		case errors.Is(err, core.ErrAlreadyConsumed):
			statusCode = http.StatusConflict
			errorMsg = "Challenge already used"
		case errors.Is(err, core.ErrSignatureMismatch),
			errors.Is(err, core.ErrMessageMismatch),
			errors.Is(err, core.ErrInvalidProof):
			statusCode = http.StatusUnauthorized
			errorMsg = "Invalid proof"
		case errors.Is(err, core.ErrUnsupportedAlgorithm),
			errors.Is(err, core.ErrUnknownVerificationMethod):
			statusCode = http.StatusBadRequest
			errorMsg = "Unsupported verification method"
		}

		c.JSON(statusCode, gin.H{"error": errorMsg})
		return
	}

	h.contexts.Begin(session)

	c.JSON(http.StatusOK, gin.H{
		"access_token":  session.Tokens.AccessToken,
		"refresh_token": session.Tokens.RefreshToken,
		"token_type":    session.Tokens.TokenType,
		"expires_in":    session.Tokens.ExpiresIn,
		"user":          session.User,
	})
}

// Refresh handles token refresh.
func (h *AuthHandlers) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	tokens, err := h.didAuth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		statusCode := http.StatusInternalServerError
		errorMsg := "Failed to refresh tokens"

		switch {
		case errors.Is(err, core.ErrInvalidToken):
			statusCode = http.StatusBadRequest
			errorMsg = "Invalid refresh token"
		case errors.Is(err, core.ErrTokenExpired):
			statusCode = http.StatusUnauthorized
			errorMsg = "Refresh token expired"
		case errors.Is(err, core.ErrTokenRevoked):
			statusCode = http.StatusUnauthorized
			errorMsg = "Refresh token has been revoked"
		}

		c.JSON(statusCode, gin.H{"error": errorMsg})
		return
	}

	c.JSON(http.StatusOK, tokens)
}

// Logout handles session logout. An expired refresh token still logs out.
func (h *AuthHandlers) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.didAuth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		if errors.Is(err, core.ErrInvalidToken) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid refresh token"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me returns information about the authenticated user.
func (h *AuthHandlers) Me(c *gin.Context) {
	identity := identityFrom(c)
	if identity == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User not found in context"})
		return
	}

	resp := gin.H{
		"id":          identity.UserID,
		"did":         identity.DID,
		"roles":       identity.Roles,
		"permissions": identity.Permissions,
	}
	if identity.TenantID != "" {
		resp["tenant_id"] = identity.TenantID
	}
	c.JSON(http.StatusOK, resp)
}

// SwitchContext activates a tenant context, or the global one when
// tenant_id is empty.
func (h *AuthHandlers) SwitchContext(c *gin.Context) {
	identity := identityFrom(c)
	if identity == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User not found in context"})
		return
	}

	var req struct {
		Mode     string `json:"mode"`
		TenantID string `json:"tenant_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if req.Mode == string(core.ModeTenant) && req.TenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id is required for tenant mode"})
		return
	}
	if req.Mode == string(core.ModeGlobal) {
		req.TenantID = ""
	}

	manager, err := h.contexts.Get(identity.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No active session"})
		return
	}

	session, err := manager.SwitchTo(c.Request.Context(), req.TenantID)
	if err != nil {
		statusCode := http.StatusInternalServerError
		errorMsg := "Failed to switch context"

		switch {
		case errors.Is(err, core.ErrPermissionDenied):
			statusCode = http.StatusForbidden
			errorMsg = "No access to tenant"
		case errors.Is(err, core.ErrNoActiveSession):
			statusCode = http.StatusUnauthorized
			errorMsg = "No active session"
		}

		c.JSON(statusCode, gin.H{"error": errorMsg})
		return
	}

	c.JSON(http.StatusOK, session)
}

// RollbackContext reactivates the previously active context.
func (h *AuthHandlers) RollbackContext(c *gin.Context) {
	identity := identityFrom(c)
	if identity == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User not found in context"})
		return
	}

	manager, err := h.contexts.Get(identity.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No active session"})
		return
	}

	session, err := manager.Rollback()
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No context to roll back to"})
		return
	}

	c.JSON(http.StatusOK, session)
}

// LogoutContext tears down the session. With context_only it only drops
// the active tenant context.
func (h *AuthHandlers) LogoutContext(c *gin.Context) {
	identity := identityFrom(c)
	if identity == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User not found in context"})
		return
	}

	var req struct {
		ContextOnly bool `json:"context_only"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	manager, err := h.contexts.Get(identity.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No active session"})
		return
	}

	if err := manager.Logout(req.ContextOnly); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No tenant context to log out of"})
		return
	}
	if !req.ContextOnly {
		h.contexts.Remove(identity.UserID)
		if err := h.didAuth.RevokeSession(c.Request.Context(), identity.RefreshID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revoke session"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func identityFrom(c *gin.Context) *core.Identity {
	v, exists := c.Get("identity")
	if !exists {
		return nil
	}
	identity, ok := v.(*core.Identity)
	if !ok {
		return nil
	}
	return identity
}
