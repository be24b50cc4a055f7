package repository

import (
	"context"
	"time"

	"agent-ledger/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateSubscription inserts the subscription and its creator links. The
// creators themselves are never written here.
func (r *Repository) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	err := r.db.WithContext(ctx).Omit("Agent", "Creators.*").Create(sub).Error
	return translate("create subscription", err)
}

// GetSubscriptionByID retrieves a subscription with agent and creators populated
func (r *Repository) GetSubscriptionByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).Preload("Agent").Preload("Creators").Where("id = ?", id).First(&sub).Error
	if err != nil {
		return nil, translate("get subscription", err)
	}
	return &sub, nil
}

// ListSubscriptionsByUser lists a user's subscriptions, newest first
func (r *Repository) ListSubscriptionsByUser(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).Preload("Agent").Preload("Creators").
		Where("user_id = ?", userID).
		Order("start_at DESC").
		Find(&subs).Error
	return subs, translate("list subscriptions", err)
}

// HasActiveSubscription reports whether a subscription of the agent covers at
func (r *Repository) HasActiveSubscription(ctx context.Context, agentID uuid.UUID, at time.Time) (bool, error) {
	return r.HasOverlappingSubscription(ctx, agentID, at, at)
}

// HasOverlappingSubscription reports whether any subscription of the agent
// intersects [start, end].
func (r *Repository) HasOverlappingSubscription(ctx context.Context, agentID uuid.UUID, start, end time.Time) (bool, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).Select("id").
		Where("agent_id = ? AND start_at <= ? AND end_at >= ?", agentID, end, start).
		Take(&sub).Error
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	if err != nil {
		return false, translate("check subscription overlap", err)
	}
	return true, nil
}
