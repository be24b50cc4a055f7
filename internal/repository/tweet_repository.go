package repository

import (
	"context"
	"time"

	"agent-ledger/internal/models"

	"github.com/google/uuid"
)

// CountUnsentTweets counts the agent's queued tweets
func (r *Repository) CountUnsentTweets(ctx context.Context, agentID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Tweet{}).
		Where("agent_id = ? AND is_sent = ?", agentID, false).
		Count(&count).Error
	return count, translate("count unsent tweets", err)
}

// CreateTweets queues generated tweets
func (r *Repository) CreateTweets(ctx context.Context, tweets []models.Tweet) error {
	if len(tweets) == 0 {
		return nil
	}
	return translate("create tweets", r.db.WithContext(ctx).Create(&tweets).Error)
}

// GetOldestUnsentTweet returns the next tweet to publish for an agent
func (r *Repository) GetOldestUnsentTweet(ctx context.Context, agentID uuid.UUID) (*models.Tweet, error) {
	var tweet models.Tweet
	err := r.db.WithContext(ctx).
		Where("agent_id = ? AND is_sent = ?", agentID, false).
		Order("created_at ASC").
		First(&tweet).Error
	if err != nil {
		return nil, translate("get unsent tweet", err)
	}
	return &tweet, nil
}

// MarkTweetSent records a successful post
func (r *Repository) MarkTweetSent(ctx context.Context, id uuid.UUID, postedID string, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&models.Tweet{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_sent":   true,
		"status":    models.TweetStatusSent,
		"posted_id": postedID,
		"sent_at":   at,
		"error":     "",
	}).Error
	return translate("mark tweet sent", err)
}

// MarkTweetFailed records a failed post; the tweet stays queued
func (r *Repository) MarkTweetFailed(ctx context.Context, id uuid.UUID, status models.TweetStatus, reason string) error {
	err := r.db.WithContext(ctx).Model(&models.Tweet{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status": status,
		"error":  reason,
	}).Error
	return translate("mark tweet failed", err)
}
