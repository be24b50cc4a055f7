package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Character is the persona description the text generator is prompted with.
type Character struct {
	Name         string `json:"name"`
	Intro        string `json:"intro,omitempty"`
	Bio          string `json:"bio,omitempty"`
	Lore         string `json:"lore,omitempty"`
	Knowledge    string `json:"knowledge,omitempty"`
	Topics       string `json:"topics,omitempty"`
	Style        string `json:"style,omitempty"`
	Chat         string `json:"chat,omitempty"`
	Posts        string `json:"posts,omitempty"`
	Adjectives   string `json:"adjectives,omitempty"`
	Language     string `json:"language,omitempty"` // en | cn
	Rules        string `json:"rules,omitempty"`
	WithHashTags bool   `json:"withHashTags,omitempty"`
}

// TokenInfo is the token snapshot taken when a monthly plan is paid.
type TokenInfo struct {
	Address  string `json:"address"`
	Name     string `json:"name,omitempty"`
	Symbol   string `json:"symbol,omitempty"`
	Supply   uint64 `json:"supply,omitempty"`
	Decimals uint8  `json:"decimals,omitempty"`
}

// TwitterOAuth is the posting credential bundle of an agent.
type TwitterOAuth struct {
	AccountID          string     `gorm:"size:64" json:"id,omitempty"`
	AccessToken        string     `gorm:"type:text" json:"-"`
	RefreshToken       string     `gorm:"type:text" json:"-"`
	TokenType          string     `gorm:"size:32" json:"token_type,omitempty"`
	Scope              string     `gorm:"size:512" json:"scope,omitempty"`
	ExpiresIn          int        `json:"expires_in"` // seconds
	IsAuthenticated    bool       `gorm:"default:false;index" json:"is_authenticated"`
	PostTweetsInterval int        `json:"post_tweets_interval"` // minutes
	LastAuthorizedAt   *time.Time `json:"last_authorized_at,omitempty"`
	LastTweetedAt      *time.Time `json:"last_tweeted_at,omitempty"`
	LastTrialAt        *time.Time `json:"last_trial_at,omitempty"`
	RefreshedAt        *time.Time `json:"refreshed_at,omitempty"`
}

// ExpiresAt is the instant the access token stops being valid.
func (o TwitterOAuth) ExpiresAt() time.Time {
	if o.LastAuthorizedAt == nil {
		return time.Time{}
	}
	return o.LastAuthorizedAt.Add(time.Duration(o.ExpiresIn) * time.Second)
}

// Agent is an AI persona owned by a user.
type Agent struct {
	ID                   uuid.UUID                          `gorm:"type:uuid;primaryKey" json:"id"`
	UserID               uuid.UUID                          `gorm:"type:uuid;not null;index" json:"user_id"`
	User                 *User                              `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Name                 string                             `gorm:"size:255;index" json:"name"`
	Avatar               string                             `gorm:"size:512" json:"avatar"`
	Character            datatypes.JSONType[Character]      `json:"character"`
	Suggestions          datatypes.JSONSlice[SocialProfile] `json:"suggestions"`
	SocialLinks          datatypes.JSONType[SocialLinks]    `json:"social_links"`
	ContractAddress      *string                            `gorm:"size:64;index" json:"contract_address,omitempty"`
	Token                datatypes.JSONType[*TokenInfo]     `json:"token"`
	IsActive             bool                               `gorm:"default:false;index" json:"is_active"`
	IsSubscribed         bool                               `gorm:"default:false" json:"is_subscribed"`
	StartAt              *time.Time                         `json:"start_at,omitempty"`
	EndAt                *time.Time                         `gorm:"index" json:"end_at,omitempty"`
	Subscriptions        []Subscription                     `gorm:"foreignKey:AgentID" json:"subscriptions,omitempty"`
	EncryptedCredentials *string                            `gorm:"type:text" json:"-"`
	TwitterOAuth         TwitterOAuth                       `gorm:"embedded;embeddedPrefix:oauth_" json:"twitter_oauth"`
	CreatedAt            time.Time                          `json:"created_at"`
	UpdatedAt            time.Time                          `json:"updated_at"`
}

func (Agent) TableName() string {
	return "agents"
}

func (a *Agent) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// IsEntitled reports whether the subscription window covers now.
func (a *Agent) IsEntitled(now time.Time) bool {
	if a.StartAt == nil || a.EndAt == nil {
		return false
	}
	return !now.Before(*a.StartAt) && !now.After(*a.EndAt)
}

// OAuthTokens is the response of an OAuth2 token grant.
type OAuthTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int    `json:"expires_in"`
}
