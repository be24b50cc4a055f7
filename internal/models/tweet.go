package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TweetStatus string

const (
	TweetStatusPending      TweetStatus = "pending"
	TweetStatusSent         TweetStatus = "sent"
	TweetStatusFailed       TweetStatus = "failed"
	TweetStatusTokenExpired TweetStatus = "token_expired"
)

// Tweet is a generated post waiting to be published for an agent.
type Tweet struct {
	ID        uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	AgentID   uuid.UUID   `gorm:"type:uuid;not null;index:idx_tweet_agent_sent" json:"agent_id"`
	Content   string      `gorm:"type:text;not null" json:"content"`
	IsSent    bool        `gorm:"default:false;index:idx_tweet_agent_sent" json:"is_sent"`
	Status    TweetStatus `gorm:"size:20;default:pending" json:"status"`
	PostedID  string      `gorm:"size:64" json:"posted_id,omitempty"`
	Error     string      `gorm:"type:text" json:"error,omitempty"`
	SentAt    *time.Time  `json:"sent_at,omitempty"`
	CreatedAt time.Time   `gorm:"index" json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func (Tweet) TableName() string {
	return "tweets"
}

func (t *Tweet) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
