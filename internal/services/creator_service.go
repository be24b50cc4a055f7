package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agent-ledger/internal/apperr"
	"agent-ledger/internal/models"
	"agent-ledger/internal/repository"
	"agent-ledger/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"gorm.io/datatypes"
)

type CreatorService struct {
	repo     *repository.Repository
	profiles ProfileFetcher
	limiter  *rate.Limiter
	log      *logger.Logger
}

// NewCreatorService builds the service. Profile refreshes are paced to one
// fetch per refreshEvery; zero disables pacing.
func NewCreatorService(
	repo *repository.Repository,
	profiles ProfileFetcher,
	refreshEvery time.Duration,
	log *logger.Logger,
) *CreatorService {
	limit := rate.Inf
	if refreshEvery > 0 {
		limit = rate.Every(refreshEvery)
	}
	return &CreatorService{
		repo:     repo,
		profiles: profiles,
		limiter:  rate.NewLimiter(limit, 1),
		log:      log,
	}
}

// EnsureCreatorForSocialAccount finds the creator for the profile's social id
// and refreshes its snapshot, or creates a visible unlinked creator.
func (cs *CreatorService) EnsureCreatorForSocialAccount(ctx context.Context, profile models.SocialProfile) (*models.Creator, error) {
	var creator *models.Creator
	err := cs.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error
		creator, err = ensureCreator(ctx, tx, profile)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure creator: %w", err)
	}
	return creator, nil
}

// ensureCreator is the find-or-create step shared by every flow that names a
// social account. New creators are visible; existing creators keep their
// visibility and get a fresh snapshot. An insert that loses a race against a
// concurrent insert falls back to the winner's row.
func ensureCreator(ctx context.Context, tx *repository.Repository, profile models.SocialProfile) (*models.Creator, error) {
	if profile.ID == "" || profile.Username == "" {
		return nil, apperr.Validation("ensure creator", "social profile needs an id and a username")
	}

	existing, err := tx.GetCreatorBySocialID(ctx, profile.ID)
	switch {
	case err == nil:
		return refreshSnapshot(ctx, tx, existing, profile)
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, err
	}

	creator := newCreator(profile)
	err = tx.Transaction(ctx, func(inner *repository.Repository) error {
		return inner.CreateCreator(ctx, creator)
	})
	if errors.Is(err, apperr.ErrConflict) {
		existing, err = tx.GetCreatorBySocialID(ctx, profile.ID)
		if err != nil {
			return nil, err
		}
		return refreshSnapshot(ctx, tx, existing, profile)
	}
	if err != nil {
		return nil, err
	}
	return creator, nil
}

func newCreator(profile models.SocialProfile) *models.Creator {
	c := &models.Creator{
		SocialID:       profile.ID,
		IsShow:         true,
		Username:       profile.Username,
		Image:          profile.DisplayImage(),
		FollowersCount: profile.FollowersCount,
	}
	c.Twitter = jsonProfile(profile)
	return c
}

func refreshSnapshot(ctx context.Context, tx *repository.Repository, creator *models.Creator, profile models.SocialProfile) (*models.Creator, error) {
	merged := creator.Twitter.Data().Merge(profile)
	if err := tx.UpdateCreatorSnapshot(ctx, creator.ID, merged); err != nil {
		return nil, err
	}
	creator.Username = merged.Username
	creator.Image = merged.DisplayImage()
	creator.FollowersCount = merged.FollowersCount
	creator.Twitter = jsonProfile(merged)
	return creator, nil
}

// LinkUserAsCreator binds the user's linked social account to its creator,
// makes the creator visible and flags the user as a creator.
func (cs *CreatorService) LinkUserAsCreator(ctx context.Context, userID uuid.UUID) (*models.Creator, error) {
	var creatorID uuid.UUID
	err := cs.repo.Transaction(ctx, func(tx *repository.Repository) error {
		creator, err := linkOwner(ctx, tx, userID, true)
		if err != nil {
			return err
		}
		creatorID = creator.ID
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to link creator: %w", err)
	}

	cs.log.Infow("creator linked", "user_id", userID, "creator_id", creatorID)
	return cs.repo.GetCreatorByID(ctx, creatorID)
}

// LinkByExternalSignupFlow links the creator during identity-provider
// sign-in. A non-nil profile is stored on the user in the same transaction.
// The visibility of an existing creator is left as it is.
func (cs *CreatorService) LinkByExternalSignupFlow(ctx context.Context, userID uuid.UUID, profile *models.SocialProfile) (*models.Creator, error) {
	var creatorID uuid.UUID
	err := cs.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if profile != nil {
			if err := tx.SetUserSocialProfile(ctx, userID, profile); err != nil {
				return err
			}
		}
		creator, err := linkOwner(ctx, tx, userID, false)
		if err != nil {
			return err
		}
		creatorID = creator.ID
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to link creator on sign-in: %w", err)
	}
	return cs.repo.GetCreatorByID(ctx, creatorID)
}

// linkOwner makes userID the single owner of the creator of its social id.
// Any other creator the user owned is released first.
func linkOwner(ctx context.Context, tx *repository.Repository, userID uuid.UUID, forceShow bool) (*models.Creator, error) {
	user, err := tx.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile := user.SocialProfile()
	if profile == nil {
		return nil, apperr.Validation("link creator", "user %s has no linked social account", userID)
	}

	creator, err := ensureCreator(ctx, tx, *profile)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ReleaseOwnerLinks(ctx, user.ID, creator.ID); err != nil {
		return nil, err
	}

	if creator.OwnerID != nil && *creator.OwnerID != user.ID {
		// the social account moved to another platform user
		if err := tx.SetUserCreatorFlag(ctx, *creator.OwnerID, false); err != nil {
			return nil, err
		}
	}

	var isShow *bool
	if forceShow {
		isShow = boolPtr(true)
		creator.IsShow = true
	}
	if err := tx.SetCreatorOwner(ctx, creator.ID, &user.ID, isShow); err != nil {
		return nil, err
	}
	if err := tx.SetUserCreatorLink(ctx, user.ID, true, profile); err != nil {
		return nil, err
	}
	creator.OwnerID = &user.ID
	return creator, nil
}

// UnlinkUser releases the creator owned by userID. It returns nil, nil when
// the user owns no creator.
func (cs *CreatorService) UnlinkUser(ctx context.Context, userID uuid.UUID) (*models.Creator, error) {
	var unlinked *models.Creator
	err := cs.repo.Transaction(ctx, func(tx *repository.Repository) error {
		creator, err := tx.GetCreatorByOwner(ctx, userID)
		if errors.Is(err, apperr.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := tx.SetCreatorOwner(ctx, creator.ID, nil, nil); err != nil {
			return err
		}
		if err := tx.SetUserCreatorLink(ctx, userID, false, nil); err != nil {
			return err
		}
		creator.OwnerID = nil
		unlinked = creator
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to unlink creator: %w", err)
	}

	if unlinked == nil {
		cs.log.Infow("creator not found or already unlinked", "user_id", userID)
	}
	return unlinked, nil
}

// GetHoldings returns the caller's creator with its holding lines.
func (cs *CreatorService) GetHoldings(ctx context.Context, userID uuid.UUID) (*models.Creator, error) {
	return cs.repo.GetCreatorByOwner(ctx, userID)
}

// FindByUsername returns a creator with owner and holdings, plus entries
// (newest first) when withEntries is set.
func (cs *CreatorService) FindByUsername(ctx context.Context, username string, withEntries bool) (*models.Creator, error) {
	return cs.repo.GetCreatorByUsername(ctx, username, withEntries)
}

// EntriesForAgent returns the creator's ledger lines caused by one agent.
func (cs *CreatorService) EntriesForAgent(ctx context.Context, username string, agentID uuid.UUID) (*models.Creator, error) {
	creator, err := cs.repo.GetCreatorByUsername(ctx, username, false)
	if err != nil {
		return nil, err
	}
	entries, err := cs.repo.ListEntries(ctx, repository.EntryFilter{CreatorID: creator.ID, AgentID: &agentID})
	if err != nil {
		return nil, err
	}
	creator.Entries = entries
	return creator, nil
}

// AgentsForCreator lists the agents attached to a creator, oldest link first.
func (cs *CreatorService) AgentsForCreator(ctx context.Context, username string) ([]models.Agent, error) {
	creator, err := cs.repo.GetCreatorByUsername(ctx, username, false)
	if err != nil {
		return nil, err
	}
	return cs.repo.FindAgentsBySuggestedCreator(ctx, creator.SocialID)
}

// ListCreators pages through visible creators, most followed first.
func (cs *CreatorService) ListCreators(ctx context.Context, page, limit int) ([]models.Creator, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return cs.repo.ListVisibleCreators(ctx, limit, (page-1)*limit)
}

// RefreshCreatorProfile fetches the creator's profile and merges it into the
// snapshot. A missing profile leaves the creator untouched and returns
// nil, nil.
func (cs *CreatorService) RefreshCreatorProfile(ctx context.Context, creator *models.Creator) (*models.Creator, error) {
	username := creator.Twitter.Data().Username
	if username == "" {
		username = creator.Username
	}
	if username == "" {
		return nil, nil
	}

	if err := cs.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	profile, err := cs.profiles.FetchProfile(ctx, username)
	if err != nil {
		return nil, apperr.External("fetch profile", err)
	}
	if profile == nil {
		return nil, nil
	}
	// the social id is the key and never comes from a username lookup
	profile.ID = creator.SocialID

	merged := creator.Twitter.Data().Merge(*profile)
	if err := cs.repo.UpdateCreatorSnapshot(ctx, creator.ID, merged); err != nil {
		return nil, err
	}
	creator.Username = merged.Username
	creator.Image = merged.DisplayImage()
	creator.FollowersCount = merged.FollowersCount
	creator.Twitter = jsonProfile(merged)

	cs.log.Debug("updated social profile ", merged.Username)
	return creator, nil
}

// RefreshAllCreatorProfiles refreshes every creator. Failures are logged and
// the loop moves on. It returns the number of creators updated.
func (cs *CreatorService) RefreshAllCreatorProfiles(ctx context.Context) (int, error) {
	creators, err := cs.repo.ListAllCreators(ctx)
	if err != nil {
		return 0, err
	}

	updated := 0
	for i := range creators {
		if ctx.Err() != nil {
			return updated, ctx.Err()
		}
		refreshed, err := cs.RefreshCreatorProfile(ctx, &creators[i])
		if err != nil {
			cs.log.Warnw("failed to refresh creator profile", "creator_id", creators[i].ID, "username", creators[i].Username, "error", err)
			continue
		}
		if refreshed != nil {
			updated++
		}
	}
	return updated, nil
}

func boolPtr(b bool) *bool {
	return &b
}

func jsonProfile(p models.SocialProfile) datatypes.JSONType[models.SocialProfile] {
	return datatypes.NewJSONType(p)
}
