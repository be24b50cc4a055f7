package handlers

import (
	"net/http"

	"agent-ledger/internal/models"
	"agent-ledger/internal/services"
	"agent-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
)

// SubscriptionHandler handles subscription endpoints
type SubscriptionHandler struct {
	subscriptions *services.SubscriptionService
	log           *logger.Logger
}

// NewSubscriptionHandler creates a new SubscriptionHandler
func NewSubscriptionHandler(subscriptions *services.SubscriptionService, log *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions, log: log}
}

// Subscribe opens an entitlement window for one of the caller's agents
// POST /api/subscriptions
func (h *SubscriptionHandler) Subscribe(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req models.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sub, err := h.subscriptions.Subscribe(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"subscription": sub})
}

// ListSubscriptions lists the caller's subscriptions
// GET /api/subscriptions
func (h *SubscriptionHandler) ListSubscriptions(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	subs, err := h.subscriptions.ListSubscriptions(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": subs})
}

// GetSubscription returns one of the caller's subscriptions
// GET /api/subscriptions/:id
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	sub, err := h.subscriptions.GetSubscription(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if sub.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscription": sub})
}

// Active reports whether an agent is inside a subscription window
// GET /api/subscriptions/active/:agentId
func (h *SubscriptionHandler) Active(c *gin.Context) {
	agentID, ok := uuidParam(c, "agentId")
	if !ok {
		return
	}
	active, err := h.subscriptions.HasActiveSubscription(c.Request.Context(), agentID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent_id": agentID, "active": active})
}

// GetCharge returns the price of a plan
// GET /api/subscriptions/get-charge/:plan
func (h *SubscriptionHandler) GetCharge(c *gin.Context) {
	plan := models.PlanKind(c.Param("plan"))
	amount, err := h.subscriptions.Charge(plan)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": plan, "amount": amount})
}

// TokenMetadata reads a token mint from the chain
// GET /api/subscriptions/token/:token/get-metadata
func (h *SubscriptionHandler) TokenMetadata(c *gin.Context) {
	token, err := h.subscriptions.TokenMetadata(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
