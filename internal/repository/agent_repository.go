package repository

import (
	"context"
	"time"

	"agent-ledger/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateAgent creates a new agent
func (r *Repository) CreateAgent(ctx context.Context, agent *models.Agent) error {
	return translate("create agent", r.db.WithContext(ctx).Omit("User", "Subscriptions").Create(agent).Error)
}

// GetAgentByID retrieves an agent by ID
func (r *Repository) GetAgentByID(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	var agent models.Agent
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&agent).Error; err != nil {
		return nil, translate("get agent", err)
	}
	return &agent, nil
}

// GetAgentWithRelations retrieves an agent with owner and subscriptions populated
func (r *Repository) GetAgentWithRelations(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	var agent models.Agent
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Subscriptions", func(db *gorm.DB) *gorm.DB {
			return db.Order("start_at ASC")
		}).
		Where("id = ?", id).First(&agent).Error
	if err != nil {
		return nil, translate("get agent", err)
	}
	return &agent, nil
}

// ListAgentsByUser lists agents owned by a user, newest first
func (r *Repository) ListAgentsByUser(ctx context.Context, userID uuid.UUID) ([]models.Agent, error) {
	var agents []models.Agent
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&agents).Error
	return agents, translate("list agents", err)
}

// UpdateAgentFields applies a column map to one agent
func (r *Repository) UpdateAgentFields(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.Agent{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return translate("update agent", res.Error)
	}
	if res.RowsAffected == 0 {
		return translate("update agent", gorm.ErrRecordNotFound)
	}
	return nil
}

// ClaimSubscriptionWindow applies updates to the agent only when its current
// window has ended before now. It returns false when another window is still
// open, so the check and the write are a single statement.
func (r *Repository) ClaimSubscriptionWindow(ctx context.Context, id uuid.UUID, now time.Time, updates map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Agent{}).
		Where("id = ? AND (end_at IS NULL OR end_at < ?)", id, now).
		Updates(updates)
	if res.Error != nil {
		return false, translate("claim subscription window", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// FindActiveAuthenticatedAgents returns active agents holding a valid posting token
func (r *Repository) FindActiveAuthenticatedAgents(ctx context.Context) ([]models.Agent, error) {
	var agents []models.Agent
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND oauth_is_authenticated = ?", true, true).
		Order("created_at ASC").
		Find(&agents).Error
	return agents, translate("find active agents", err)
}

// FindAgentsBySuggestedCreator returns the agents attached to a creator social id
func (r *Repository) FindAgentsBySuggestedCreator(ctx context.Context, socialID string) ([]models.Agent, error) {
	var agents []models.Agent
	err := r.db.WithContext(ctx).
		Joins("JOIN creator_agents ON creator_agents.agent_id = agents.id").
		Joins("JOIN creators ON creators.id = creator_agents.creator_id").
		Where("creators.social_id = ?", socialID).
		Order("creator_agents.created_at ASC").
		Find(&agents).Error
	return agents, translate("find agents by creator", err)
}
