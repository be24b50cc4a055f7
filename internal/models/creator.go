package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Creator is a social account eligible for revenue share. It is keyed by the
// account's social id; the username is a mutable display attribute.
type Creator struct {
	ID             uuid.UUID                         `gorm:"type:uuid;primaryKey" json:"id"`
	SocialID       string                            `gorm:"size:64;uniqueIndex;not null" json:"social_id"`
	Username       string                            `gorm:"size:255;index;not null" json:"username"`
	Image          string                            `gorm:"size:512" json:"image"`
	Twitter        datatypes.JSONType[SocialProfile] `json:"twitter"`
	FollowersCount int                               `gorm:"default:0;index" json:"followers_count"`
	OwnerID        *uuid.UUID                        `gorm:"type:uuid;uniqueIndex" json:"owner_id,omitempty"`
	Owner          *User                             `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	IsShow         bool                              `gorm:"default:false;index" json:"is_show"`
	Agents         []Agent                           `gorm:"many2many:creator_agents" json:"agents,omitempty"`
	Holdings       []Holding                         `gorm:"foreignKey:CreatorID" json:"holdings"`
	Entries        []Entry                           `gorm:"foreignKey:CreatorID" json:"entries,omitempty"`
	CreatedAt      time.Time                         `json:"created_at"`
	UpdatedAt      time.Time                         `json:"updated_at"`
}

func (Creator) TableName() string {
	return "creators"
}

func (c *Creator) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Holding finds the running balance for a token, or nil.
func (c *Creator) Holding(tokenAddress string) *Holding {
	for i := range c.Holdings {
		if c.Holdings[i].TokenAddress == tokenAddress {
			return &c.Holdings[i]
		}
	}
	return nil
}

// Holding is the running balance of one token for one creator.
type Holding struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CreatorID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_holding_creator_token" json:"creator_id"`
	TokenAddress string          `gorm:"size:64;not null;uniqueIndex:idx_holding_creator_token" json:"token_address"`
	Amount       decimal.Decimal `gorm:"type:decimal(38,18);not null;default:0" json:"amount"`
	Name         string          `gorm:"size:255" json:"name,omitempty"`
	Symbol       string          `gorm:"size:32" json:"symbol,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (Holding) TableName() string {
	return "holdings"
}

func (h *Holding) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

// CreatorAgent records that an agent suggested a creator, in creation order.
type CreatorAgent struct {
	CreatorID uuid.UUID `gorm:"type:uuid;primaryKey" json:"creator_id"`
	AgentID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"agent_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (CreatorAgent) TableName() string {
	return "creator_agents"
}
