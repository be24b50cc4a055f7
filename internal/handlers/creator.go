package handlers

import (
	"net/http"
	"strconv"

	"agent-ledger/internal/models"
	"agent-ledger/internal/services"
	"agent-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CreatorHandler handles creator linking, holdings and withdrawals
type CreatorHandler struct {
	creators    *services.CreatorService
	withdrawals *services.WithdrawalService
	log         *logger.Logger
}

// NewCreatorHandler creates a new CreatorHandler
func NewCreatorHandler(creators *services.CreatorService, withdrawals *services.WithdrawalService, log *logger.Logger) *CreatorHandler {
	return &CreatorHandler{
		creators:    creators,
		withdrawals: withdrawals,
		log:         log,
	}
}

// Link binds the caller's X account to its creator
// POST /api/creator/link
func (h *CreatorHandler) Link(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	creator, err := h.creators.LinkUserAsCreator(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"creator": creator})
}

// Unlink releases the caller's creator
// DELETE /api/creator/link
func (h *CreatorHandler) Unlink(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	creator, err := h.creators.UnlinkUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"creator": creator})
}

// GetHoldings returns the caller's creator with its holdings
// GET /api/creator/holdings
func (h *CreatorHandler) GetHoldings(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	creator, err := h.creators.GetHoldings(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"creator": creator, "holdings": creator.Holdings})
}

// Withdraw records a withdrawal of the caller's holdings
// POST /api/creator/withdraw
func (h *CreatorHandler) Withdraw(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req models.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	withdrawal, err := h.withdrawals.Withdraw(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"withdrawal": withdrawal})
}

// ListCreators pages through visible creators
// GET /api/creators?page=1&limit=20
func (h *CreatorHandler) ListCreators(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	creators, total, err := h.creators.ListCreators(c.Request.Context(), page, limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"creators": creators,
		"total":    total,
		"page":     page,
	})
}

// GetCreator returns one creator. entries=true adds its ledger lines;
// agent_id narrows them to one agent.
// GET /api/creators/:username
func (h *CreatorHandler) GetCreator(c *gin.Context) {
	username := c.Param("username")

	if raw := c.Query("agent_id"); raw != "" {
		agentID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid agent_id"})
			return
		}
		creator, err := h.creators.EntriesForAgent(c.Request.Context(), username, agentID)
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"creator": creator})
		return
	}

	withEntries := c.Query("entries") == "true"
	creator, err := h.creators.FindByUsername(c.Request.Context(), username, withEntries)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"creator": creator})
}

// ListAgents lists the agents attached to a creator
// GET /api/creators/:username/agents
func (h *CreatorHandler) ListAgents(c *gin.Context) {
	agents, err := h.creators.AgentsForCreator(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents})
}
