package handlers

import (
	"net/http"

	"agent-ledger/internal/models"
	"agent-ledger/internal/services"
	"agent-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
)

// AgentHandler handles agent endpoints
type AgentHandler struct {
	agents *services.AgentService
	tweets *services.TweetService
	log    *logger.Logger
}

// NewAgentHandler creates a new AgentHandler
func NewAgentHandler(agents *services.AgentService, tweets *services.TweetService, log *logger.Logger) *AgentHandler {
	return &AgentHandler{agents: agents, tweets: tweets, log: log}
}

// CreateAgent creates an agent owned by the caller
// POST /api/agents
func (h *AgentHandler) CreateAgent(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req models.CreateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	agent, err := h.agents.CreateAgent(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"agent": agent})
}

// ListAgents lists the caller's agents
// GET /api/agents
func (h *AgentHandler) ListAgents(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	agents, err := h.agents.ListAgents(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents})
}

// GetAgent returns one of the caller's agents with owner and subscriptions
// GET /api/agents/:id
func (h *AgentHandler) GetAgent(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	agent, err := h.agents.GetAgent(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent": agent})
}

// UpdateAgent applies a partial update to one of the caller's agents
// PATCH /api/agents/:id
func (h *AgentHandler) UpdateAgent(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req models.UpdateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := h.agents.GetOwnedAgent(c.Request.Context(), id, userID); err != nil {
		respondError(c, h.log, err)
		return
	}
	agent, err := h.agents.UpdateAgent(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent": agent})
}

// UpdateSocialLinks replaces the agent's community links
// PUT /api/agents/:id/social-links
func (h *AgentHandler) UpdateSocialLinks(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var links models.SocialLinks
	if err := c.ShouldBindJSON(&links); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := h.agents.GetOwnedAgent(c.Request.Context(), id, userID); err != nil {
		respondError(c, h.log, err)
		return
	}
	agent, err := h.agents.UpdateSocialLinks(c.Request.Context(), id, links)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent": agent})
}

// UpdateAccessTokens stores a newly authorized posting token
// PUT /api/agents/:id/access-tokens
func (h *AgentHandler) UpdateAccessTokens(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req models.UpdateAccessTokensRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := h.agents.GetOwnedAgent(c.Request.Context(), id, userID); err != nil {
		respondError(c, h.log, err)
		return
	}
	agent, err := h.agents.UpdateAccessTokens(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent": agent})
}

// UpdateCredentials seals the agent's legacy login credentials
// PUT /api/agents/:id/credentials
func (h *AgentHandler) UpdateCredentials(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var creds models.AgentCredentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := h.agents.GetOwnedAgent(c.Request.Context(), id, userID); err != nil {
		respondError(c, h.log, err)
		return
	}
	if err := h.agents.UpdateCredentials(c.Request.Context(), id, creds); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreatorWallets lists the receiving wallets of the agent's creators
// GET /api/agents/:id/creators/wallet
func (h *AgentHandler) CreatorWallets(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	wallets, err := h.agents.CreatorWallets(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wallets": wallets})
}

// SendTweet posts the next tweet of one of the caller's agents right away
// POST /api/agents/:id/send-tweet
func (h *AgentHandler) SendTweet(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	tweet, err := h.tweets.SendNow(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"tweet": tweet})
}
