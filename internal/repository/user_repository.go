package repository

import (
	"context"

	"agent-ledger/internal/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CreateUser creates a new user
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	return translate("create user", r.db.WithContext(ctx).Create(user).Error)
}

// GetUserByID retrieves a user by ID
func (r *Repository) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate("get user", err)
	}
	return &user, nil
}

// GetUserByExternalAuthID retrieves a user by the identity provider subject
func (r *Repository) GetUserByExternalAuthID(ctx context.Context, externalAuthID string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("external_auth_id = ?", externalAuthID).First(&user).Error; err != nil {
		return nil, translate("get user by external auth id", err)
	}
	return &user, nil
}

// UsernameTaken reports whether a username is already in use
func (r *Repository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&count).Error
	return count > 0, translate("count usernames", err)
}

// SetUserCreatorLink sets the creator flag and the social snapshot together
func (r *Repository) SetUserCreatorLink(ctx context.Context, userID uuid.UUID, isCreator bool, profile *models.SocialProfile) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"is_creator": isCreator,
		"twitter":    datatypes.NewJSONType(profile),
	})
	if res.Error != nil {
		return translate("update user creator link", res.Error)
	}
	if res.RowsAffected == 0 {
		return translate("update user creator link", gorm.ErrRecordNotFound)
	}
	return nil
}

// SetUserSocialProfile stores the social snapshot without touching the creator flag
func (r *Repository) SetUserSocialProfile(ctx context.Context, userID uuid.UUID, profile *models.SocialProfile) error {
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		Update("twitter", datatypes.NewJSONType(profile)).Error
	return translate("update user social profile", err)
}

// SetUserWallet stores the resolved wallet address
func (r *Repository) SetUserWallet(ctx context.Context, userID uuid.UUID, address string) error {
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		Update("wallet_address", address).Error
	return translate("update user wallet", err)
}

// SetUserCreatorFlag flips the creator flag only
func (r *Repository) SetUserCreatorFlag(ctx context.Context, userID uuid.UUID, isCreator bool) error {
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		Update("is_creator", isCreator).Error
	return translate("update user creator flag", err)
}
