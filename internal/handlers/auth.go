package handlers

import (
	"context"
	"net/http"

	"agent-ledger/internal/auth"
	"agent-ledger/internal/models"
	"agent-ledger/internal/services"
	"agent-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
)

// IdentityVerifier turns an identity-provider token into a verified identity
type IdentityVerifier interface {
	VerifyIdentity(ctx context.Context, token string) (*models.Identity, error)
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	verifier IdentityVerifier
	users    *services.UserService
	log      *logger.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(verifier IdentityVerifier, users *services.UserService, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		verifier: verifier,
		users:    users,
		log:      log,
	}
}

// PrivyLogin exchanges a Privy identity token for a session token.
// POST /auth/privy
func (h *AuthHandler) PrivyLogin(c *gin.Context) {
	var req struct {
		Token string `json:"token"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.Token == "" {
		req.Token, _ = auth.BearerToken(c)
	}
	if req.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identity token required"})
		return
	}

	identity, err := h.verifier.VerifyIdentity(c.Request.Context(), req.Token)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	user, err := h.users.SignIn(c.Request.Context(), *identity)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	token, err := auth.GenerateToken(user.ID, user.Username)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  user,
	})
}

// Me returns the current user
// GET /api/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	user, err := h.users.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
