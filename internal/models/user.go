package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User represents a user in the system
type User struct {
	ID             uuid.UUID                          `gorm:"type:uuid;primaryKey" json:"id"`
	ExternalAuthID string                             `gorm:"size:255;uniqueIndex;not null" json:"-"`
	Username       string                             `gorm:"size:255;uniqueIndex;not null" json:"username"`
	Image          string                             `gorm:"size:512" json:"image,omitempty"`
	WalletAddress  *string                            `gorm:"size:64;index" json:"wallet_address,omitempty"`
	IsCreator      bool                               `gorm:"default:false" json:"is_creator"`
	IsAdmin        bool                               `gorm:"default:false" json:"is_admin"`
	Twitter        datatypes.JSONType[*SocialProfile] `json:"twitter"`
	CreatedAt      time.Time                          `json:"created_at"`
	UpdatedAt      time.Time                          `json:"updated_at"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// SocialProfile returns the linked Twitter snapshot, or nil.
func (u *User) SocialProfile() *SocialProfile {
	return u.Twitter.Data()
}
