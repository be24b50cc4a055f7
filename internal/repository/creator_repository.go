package repository

import (
	"context"
	"time"

	"agent-ledger/internal/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateCreator creates a new creator
func (r *Repository) CreateCreator(ctx context.Context, creator *models.Creator) error {
	return translate("create creator", r.db.WithContext(ctx).Omit("Owner", "Agents", "Holdings", "Entries").Create(creator).Error)
}

// GetCreatorByID retrieves a creator with its holdings
func (r *Repository) GetCreatorByID(ctx context.Context, id uuid.UUID) (*models.Creator, error) {
	var creator models.Creator
	err := r.db.WithContext(ctx).Preload("Holdings", orderHoldings).Where("id = ?", id).First(&creator).Error
	if err != nil {
		return nil, translate("get creator", err)
	}
	return &creator, nil
}

// GetCreatorBySocialID retrieves a creator by its social account id
func (r *Repository) GetCreatorBySocialID(ctx context.Context, socialID string) (*models.Creator, error) {
	var creator models.Creator
	err := r.db.WithContext(ctx).Where("social_id = ?", socialID).First(&creator).Error
	if err != nil {
		return nil, translate("get creator by social id", err)
	}
	return &creator, nil
}

// GetCreatorsBySocialIDs retrieves every creator whose social id is listed
func (r *Repository) GetCreatorsBySocialIDs(ctx context.Context, socialIDs []string) ([]models.Creator, error) {
	var creators []models.Creator
	err := r.db.WithContext(ctx).Where("social_id IN ?", socialIDs).Find(&creators).Error
	return creators, translate("get creators by social ids", err)
}

// GetCreatorByOwner retrieves the creator linked to a user, with holdings
func (r *Repository) GetCreatorByOwner(ctx context.Context, userID uuid.UUID) (*models.Creator, error) {
	var creator models.Creator
	err := r.db.WithContext(ctx).Preload("Holdings", orderHoldings).Where("owner_id = ?", userID).First(&creator).Error
	if err != nil {
		return nil, translate("get creator by owner", err)
	}
	return &creator, nil
}

// GetCreatorByUsername retrieves a creator with owner and holdings populated.
// Entries are loaded newest first when withEntries is set.
func (r *Repository) GetCreatorByUsername(ctx context.Context, username string, withEntries bool) (*models.Creator, error) {
	var creator models.Creator
	q := r.db.WithContext(ctx).Preload("Owner").Preload("Holdings", orderHoldings)
	if withEntries {
		q = q.Preload("Entries", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		})
	}
	err := q.Where("username = ?", username).Order("followers_count DESC").First(&creator).Error
	if err != nil {
		return nil, translate("get creator by username", err)
	}
	return &creator, nil
}

// ListVisibleCreators lists creators shown in the directory, most followed first
func (r *Repository) ListVisibleCreators(ctx context.Context, limit, offset int) ([]models.Creator, int64, error) {
	var (
		creators []models.Creator
		total    int64
	)
	q := r.db.WithContext(ctx).Model(&models.Creator{}).Where("is_show = ?", true)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate("count creators", err)
	}
	err := q.Order("followers_count DESC").Order("created_at ASC").Limit(limit).Offset(offset).Find(&creators).Error
	return creators, total, translate("list creators", err)
}

// ListAllCreators returns every creator, oldest first
func (r *Repository) ListAllCreators(ctx context.Context) ([]models.Creator, error) {
	var creators []models.Creator
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&creators).Error
	return creators, translate("list all creators", err)
}

// UpdateCreatorSnapshot refreshes the denormalized social snapshot
func (r *Repository) UpdateCreatorSnapshot(ctx context.Context, id uuid.UUID, profile models.SocialProfile) error {
	err := r.db.WithContext(ctx).Model(&models.Creator{}).Where("id = ?", id).Updates(map[string]interface{}{
		"username":        profile.Username,
		"image":           profile.DisplayImage(),
		"twitter":         datatypes.NewJSONType(profile),
		"followers_count": profile.FollowersCount,
	}).Error
	return translate("update creator snapshot", err)
}

// SetCreatorOwner links or unlinks (ownerID nil) a creator. isShow is only
// written when non-nil.
func (r *Repository) SetCreatorOwner(ctx context.Context, id uuid.UUID, ownerID *uuid.UUID, isShow *bool) error {
	updates := map[string]interface{}{"owner_id": ownerID}
	if isShow != nil {
		updates["is_show"] = *isShow
	}
	err := r.db.WithContext(ctx).Model(&models.Creator{}).Where("id = ?", id).Updates(updates).Error
	return translate("set creator owner", err)
}

// ReleaseOwnerLinks nulls the owner of every creator linked to userID other
// than keep. Returns the number of creators released.
func (r *Repository) ReleaseOwnerLinks(ctx context.Context, userID uuid.UUID, keep uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Creator{}).
		Where("owner_id = ? AND id <> ?", userID, keep).
		Update("owner_id", nil)
	return res.RowsAffected, translate("release owner links", res.Error)
}

// AttachAgent appends agentID to the creator's agent list. Repeats are ignored.
func (r *Repository) AttachAgent(ctx context.Context, creatorID, agentID uuid.UUID) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.CreatorAgent{CreatorID: creatorID, AgentID: agentID}).Error
	return translate("attach agent", err)
}

// TouchCreator bumps updated_at without rewriting balances
func (r *Repository) TouchCreator(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&models.Creator{}).Where("id = ?", id).
		UpdateColumn("updated_at", at).Error
	return translate("touch creator", err)
}

func orderHoldings(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC")
}
