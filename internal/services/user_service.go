package services

import (
	"context"
	"errors"
	"fmt"

	"agent-ledger/internal/apperr"
	"agent-ledger/internal/models"
	"agent-ledger/internal/repository"
	"agent-ledger/internal/utils"
	"agent-ledger/pkg/logger"

	"github.com/google/uuid"
)

const usernameAttempts = 5

// UserService handles platform users and identity-provider sign-in
type UserService struct {
	repo     *repository.Repository
	creators *CreatorService
	wallets  WalletResolver
	log      *logger.Logger
}

// NewUserService creates a new UserService
func NewUserService(repo *repository.Repository, creators *CreatorService, wallets WalletResolver, log *logger.Logger) *UserService {
	return &UserService{
		repo:     repo,
		creators: creators,
		wallets:  wallets,
		log:      log,
	}
}

// GetUserByID retrieves a user by ID
func (s *UserService) GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// SignIn finds or creates the user behind a verified identity. When the
// identity carries a linked X account the snapshot is stored and the user is
// linked to its creator in one transaction. A user without a wallet gets the
// identity's wallet, or the one provisioned for its X account; lookup
// failures are logged only.
func (s *UserService) SignIn(ctx context.Context, identity models.Identity) (*models.User, error) {
	if identity.SubjectID == "" {
		return nil, apperr.Validation("sign in", "identity has no subject")
	}

	user, created, err := s.findOrCreate(ctx, identity)
	if err != nil {
		return nil, err
	}
	if created {
		s.log.Infow("user created", "user_id", user.ID, "username", user.Username)
	}

	if identity.Twitter != nil && identity.Twitter.ID != "" {
		if _, err := s.creators.LinkByExternalSignupFlow(ctx, user.ID, identity.Twitter); err != nil {
			return nil, err
		}
	}

	if user.WalletAddress == nil {
		if address := s.resolveWallet(ctx, user.ID, identity); address != "" {
			if err := s.repo.SetUserWallet(ctx, user.ID, address); err != nil {
				s.log.Warnw("failed to store wallet", "user_id", user.ID, "error", err)
			}
		}
	}

	return s.repo.GetUserByID(ctx, user.ID)
}

func (s *UserService) resolveWallet(ctx context.Context, userID uuid.UUID, identity models.Identity) string {
	if identity.WalletAddress != "" {
		return identity.WalletAddress
	}
	if s.wallets == nil || identity.Twitter == nil || identity.Twitter.ID == "" {
		return ""
	}
	address, err := s.wallets.GetWalletAddress(ctx, identity.Twitter.ID)
	if err != nil {
		s.log.Warnw("failed to resolve wallet", "user_id", userID, "social_id", identity.Twitter.ID, "error", err)
		return ""
	}
	return address
}

func (s *UserService) findOrCreate(ctx context.Context, identity models.Identity) (*models.User, bool, error) {
	user, err := s.repo.GetUserByExternalAuthID(ctx, identity.SubjectID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, false, err
	}

	user = &models.User{ExternalAuthID: identity.SubjectID}
	if identity.Twitter != nil {
		user.Image = identity.Twitter.DisplayImage()
	}

	for attempt := 0; attempt < usernameAttempts; attempt++ {
		user.Username, err = s.pickUsername(ctx, identity.Twitter, attempt)
		if err != nil {
			return nil, false, err
		}
		err = s.repo.CreateUser(ctx, user)
		if err == nil {
			return user, true, nil
		}
		if !errors.Is(err, apperr.ErrConflict) {
			return nil, false, fmt.Errorf("failed to create user: %w", err)
		}

		// either the username or the subject was taken concurrently
		existing, lookupErr := s.repo.GetUserByExternalAuthID(ctx, identity.SubjectID)
		if lookupErr == nil {
			return existing, false, nil
		}
		user.ID = uuid.Nil
	}
	return nil, false, apperr.Conflict("sign in", "could not allocate a username")
}

// pickUsername prefers the X handle on the first attempt and falls back to a
// generated name.
func (s *UserService) pickUsername(ctx context.Context, profile *models.SocialProfile, attempt int) (string, error) {
	if attempt == 0 && profile != nil {
		if handle := utils.NormalizeUsername(profile.Username); handle != "" {
			taken, err := s.repo.UsernameTaken(ctx, handle)
			if err != nil {
				return "", err
			}
			if !taken {
				return handle, nil
			}
		}
	}
	return utils.GenerateUsername()
}
