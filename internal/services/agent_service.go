package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"agent-ledger/internal/apperr"
	"agent-ledger/internal/models"
	"agent-ledger/internal/repository"
	"agent-ledger/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TokenRefreshBuffer is how long before expiry a posting token is renewed.
const TokenRefreshBuffer = 20 * time.Minute

type AgentService struct {
	repo                *repository.Repository
	wallets             WalletResolver
	tokens              TokenRefresher
	cipher              CredentialCipher
	clock               Clock
	defaultPostInterval time.Duration
	log                 *logger.Logger
}

func NewAgentService(
	repo *repository.Repository,
	wallets WalletResolver,
	tokens TokenRefresher,
	cipher CredentialCipher,
	clock Clock,
	defaultPostInterval time.Duration,
	log *logger.Logger,
) *AgentService {
	return &AgentService{
		repo:                repo,
		wallets:             wallets,
		tokens:              tokens,
		cipher:              cipher,
		clock:               clock,
		defaultPostInterval: defaultPostInterval,
		log:                 log,
	}
}

// CreateAgent inserts the agent and, in the same transaction, ensures a
// creator exists for every suggested account and attaches the agent to it.
// Wallets for the suggested creators are provisioned after commit; failures
// there are logged only.
func (as *AgentService) CreateAgent(ctx context.Context, ownerID uuid.UUID, req models.CreateAgentRequest) (*models.Agent, error) {
	if req.Name == "" {
		return nil, apperr.Validation("create agent", "name is required")
	}
	suggestions, err := normalizeSuggestions(req.Suggestions)
	if err != nil {
		return nil, err
	}

	agent := &models.Agent{
		UserID:      ownerID,
		Name:        req.Name,
		Avatar:      req.Avatar,
		Character:   datatypes.NewJSONType(req.Character),
		Suggestions: datatypes.JSONSlice[models.SocialProfile](suggestions),
		Token:       datatypes.NewJSONType[*models.TokenInfo](nil),
	}
	if req.SocialLinks != nil {
		agent.SocialLinks = datatypes.NewJSONType(*req.SocialLinks)
	}

	err = as.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := tx.GetUserByID(ctx, ownerID); err != nil {
			return err
		}
		if err := tx.CreateAgent(ctx, agent); err != nil {
			return err
		}
		for _, suggestion := range suggestions {
			creator, err := ensureCreator(ctx, tx, suggestion)
			if err != nil {
				return err
			}
			if err := tx.AttachAgent(ctx, creator.ID, agent.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	as.log.Infow("agent created", "agent_id", agent.ID, "user_id", ownerID, "suggestions", len(suggestions))
	as.provisionWallets(ctx, suggestions)
	return agent, nil
}

// provisionWallets makes sure every suggested account has a receiving
// wallet. Accounts unknown to the identity provider get a pregenerated user
// with an embedded wallet. It returns the number of wallets created.
func (as *AgentService) provisionWallets(ctx context.Context, suggestions []models.SocialProfile) int {
	if as.wallets == nil {
		return 0
	}
	created := 0
	for _, s := range suggestions {
		_, err := as.wallets.GetWalletAddress(ctx, s.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			as.log.Warnw("failed to look up creator wallet", "social_id", s.ID, "username", s.Username, "error", err)
			continue
		}
		address, err := as.wallets.PregenerateUserByTwitter(ctx, s)
		if err != nil {
			as.log.Warnw("failed to provision creator wallet", "social_id", s.ID, "username", s.Username, "error", err)
			continue
		}
		created++
		as.log.Infow("creator wallet provisioned", "social_id", s.ID, "username", s.Username, "address", address)
	}
	return created
}

// CreatorWallets returns the receiving wallet of every suggested account of
// the agent, in suggestion order. A payer splits a monthly payment across
// them. Any account without a wallet fails the lookup with ErrNotFound.
func (as *AgentService) CreatorWallets(ctx context.Context, id uuid.UUID) ([]string, error) {
	const op = "creator wallets"

	agent, err := as.repo.GetAgentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if as.wallets == nil {
		return nil, apperr.External(op, errors.New("wallet provider is not configured"))
	}

	wallets := make([]string, 0, len(agent.Suggestions))
	for _, s := range agent.Suggestions {
		address, err := as.wallets.GetWalletAddress(ctx, s.ID)
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound(op, "wallet not found for creator %s", s.Username)
		}
		if err != nil {
			return nil, apperr.External(op, err)
		}
		wallets = append(wallets, address)
	}
	return wallets, nil
}

// normalizeSuggestions validates suggestions and drops repeated social ids,
// keeping the first occurrence.
func normalizeSuggestions(in []models.SocialProfile) ([]models.SocialProfile, error) {
	seen := make(map[string]bool, len(in))
	out := make([]models.SocialProfile, 0, len(in))
	for _, s := range in {
		if s.ID == "" || s.Username == "" {
			return nil, apperr.Validation("suggestions", "each suggestion needs an id and a username")
		}
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		out = append(out, s)
	}
	return out, nil
}

// UpdateAgent applies a partial update. Suggested accounts are upserted as
// creators by social id; the agent is not attached to them here.
func (as *AgentService) UpdateAgent(ctx context.Context, id uuid.UUID, req models.UpdateAgentRequest) (*models.Agent, error) {
	updates := map[string]interface{}{}
	if req.Name != nil {
		if *req.Name == "" {
			return nil, apperr.Validation("update agent", "name cannot be empty")
		}
		updates["name"] = *req.Name
	}
	if req.Avatar != nil {
		updates["avatar"] = *req.Avatar
	}
	if req.Character != nil {
		updates["character"] = datatypes.NewJSONType(*req.Character)
	}
	if req.SocialLinks != nil {
		updates["social_links"] = datatypes.NewJSONType(*req.SocialLinks)
	}
	var suggestions []models.SocialProfile
	if req.Suggestions != nil {
		var err error
		if suggestions, err = normalizeSuggestions(*req.Suggestions); err != nil {
			return nil, err
		}
		updates["suggestions"] = datatypes.JSONSlice[models.SocialProfile](suggestions)
	}

	var agent *models.Agent
	err := as.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if len(updates) > 0 {
			if err := tx.UpdateAgentFields(ctx, id, updates); err != nil {
				return err
			}
		}
		for _, suggestion := range suggestions {
			if _, err := ensureCreator(ctx, tx, suggestion); err != nil {
				return err
			}
		}
		var err error
		agent, err = tx.GetAgentByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update agent: %w", err)
	}
	return agent, nil
}

// GetAgent returns one of userID's agents with owner and subscriptions
// populated. Agents of other users are NotFound.
func (as *AgentService) GetAgent(ctx context.Context, id, userID uuid.UUID) (*models.Agent, error) {
	agent, err := as.repo.GetAgentWithRelations(ctx, id)
	if err != nil {
		return nil, err
	}
	if agent.UserID != userID {
		return nil, apperr.NotFound("get agent", "agent %s not found", id)
	}
	return agent, nil
}

// GetOwnedAgent returns the agent when userID owns it, NotFound otherwise.
func (as *AgentService) GetOwnedAgent(ctx context.Context, id, userID uuid.UUID) (*models.Agent, error) {
	agent, err := as.repo.GetAgentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if agent.UserID != userID {
		return nil, apperr.NotFound("get agent", "agent %s not found", id)
	}
	return agent, nil
}

// ListAgents lists the user's agents.
func (as *AgentService) ListAgents(ctx context.Context, userID uuid.UUID) ([]models.Agent, error) {
	return as.repo.ListAgentsByUser(ctx, userID)
}

// FindActiveAgentsDueForTweetGeneration returns active authenticated agents
// whose subscription window covers now.
func (as *AgentService) FindActiveAgentsDueForTweetGeneration(ctx context.Context) ([]models.Agent, error) {
	agents, err := as.repo.FindActiveAuthenticatedAgents(ctx)
	if err != nil {
		return nil, err
	}
	now := as.clock.Now()
	entitled := agents[:0]
	for _, a := range agents {
		if a.IsEntitled(now) {
			entitled = append(entitled, a)
		}
	}
	return entitled, nil
}

// FindAgentsToRefreshToken returns active authenticated agents whose token
// expires within TokenRefreshBuffer of now, or has already expired.
func (as *AgentService) FindAgentsToRefreshToken(ctx context.Context) ([]models.Agent, error) {
	agents, err := as.repo.FindActiveAuthenticatedAgents(ctx)
	if err != nil {
		return nil, err
	}

	deadline := as.clock.Now().Add(TokenRefreshBuffer)
	due := agents[:0]
	for _, a := range agents {
		if a.TwitterOAuth.RefreshToken == "" {
			continue
		}
		if !a.TwitterOAuth.ExpiresAt().After(deadline) {
			due = append(due, a)
		}
	}
	return due, nil
}

// RefreshOAuthToken renews the agent's posting token. A failed exchange marks
// the agent unauthenticated and records the attempt; it is not returned as an
// error so a scheduler can move on to the next agent.
func (as *AgentService) RefreshOAuthToken(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	agent, err := as.repo.GetAgentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := as.clock.Now()
	as.log.Infof("Refreshing access token for agent %s", id)

	var tokens *models.OAuthTokens
	if agent.TwitterOAuth.RefreshToken == "" {
		err = fmt.Errorf("agent has no refresh token")
	} else {
		tokens, err = as.tokens.RefreshAccessToken(ctx, agent.TwitterOAuth.RefreshToken)
	}

	var updates map[string]interface{}
	if err != nil {
		as.log.Errorw("failed to refresh access token", "agent_id", id, "error", err)
		updates = map[string]interface{}{
			"oauth_is_authenticated": false,
			"oauth_last_trial_at":    now,
			"oauth_refreshed_at":     now,
		}
	} else {
		updates = map[string]interface{}{
			"oauth_access_token":       tokens.AccessToken,
			"oauth_refresh_token":      tokens.RefreshToken,
			"oauth_scope":              tokens.Scope,
			"oauth_expires_in":         tokens.ExpiresIn,
			"oauth_token_type":         tokens.TokenType,
			"oauth_is_authenticated":   true,
			"oauth_last_authorized_at": now,
			"oauth_refreshed_at":       now,
		}
	}

	if err := as.repo.UpdateAgentFields(ctx, id, updates); err != nil {
		return nil, err
	}
	return as.repo.GetAgentByID(ctx, id)
}

// UpdateSocialLinks replaces the agent's community links.
func (as *AgentService) UpdateSocialLinks(ctx context.Context, id uuid.UUID, links models.SocialLinks) (*models.Agent, error) {
	if err := as.repo.UpdateAgentFields(ctx, id, map[string]interface{}{
		"social_links": datatypes.NewJSONType(links),
	}); err != nil {
		return nil, err
	}
	return as.repo.GetAgentByID(ctx, id)
}

// UpdateAccessTokens stores a newly authorized posting token and marks the
// agent authenticated.
func (as *AgentService) UpdateAccessTokens(ctx context.Context, id uuid.UUID, req models.UpdateAccessTokensRequest) (*models.Agent, error) {
	if req.AccessToken == "" || req.RefreshToken == "" {
		return nil, apperr.Validation("update access tokens", "access and refresh tokens are required")
	}
	interval := req.PostTweetsInterval
	if interval <= 0 {
		interval = int(as.defaultPostInterval / time.Minute)
	}
	now := as.clock.Now()

	if err := as.repo.UpdateAgentFields(ctx, id, map[string]interface{}{
		"oauth_account_id":           req.AccountID,
		"oauth_access_token":         req.AccessToken,
		"oauth_refresh_token":        req.RefreshToken,
		"oauth_scope":                req.Scope,
		"oauth_expires_in":           req.ExpiresIn,
		"oauth_token_type":           req.TokenType,
		"oauth_post_tweets_interval": interval,
		"oauth_is_authenticated":     true,
		"oauth_last_authorized_at":   now,
		"oauth_refreshed_at":         now,
	}); err != nil {
		return nil, err
	}
	return as.repo.GetAgentByID(ctx, id)
}

// UpdateCredentials seals the legacy login credentials onto the agent.
func (as *AgentService) UpdateCredentials(ctx context.Context, id uuid.UUID, creds models.AgentCredentials) error {
	plain, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	sealed, err := as.cipher.Encrypt(plain, id.String())
	if err != nil {
		return fmt.Errorf("failed to encrypt credentials: %w", err)
	}
	return as.repo.UpdateAgentFields(ctx, id, map[string]interface{}{"encrypted_credentials": sealed})
}

// DecryptCredentials opens the agent's sealed credentials.
func (as *AgentService) DecryptCredentials(ctx context.Context, id uuid.UUID) (*models.AgentCredentials, error) {
	agent, err := as.repo.GetAgentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if agent.EncryptedCredentials == nil || *agent.EncryptedCredentials == "" {
		return nil, apperr.NotFound("decrypt credentials", "agent %s has no credentials", id)
	}
	plain, err := as.cipher.Decrypt(*agent.EncryptedCredentials, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credentials: %w", err)
	}
	var creds models.AgentCredentials
	if err := json.Unmarshal(plain, &creds); err != nil {
		return nil, fmt.Errorf("failed to decode credentials: %w", err)
	}
	return &creds, nil
}

// MarkTweeted records the time of the agent's last post.
func (as *AgentService) MarkTweeted(ctx context.Context, id uuid.UUID, at time.Time) error {
	return as.repo.UpdateAgentFields(ctx, id, map[string]interface{}{"oauth_last_tweeted_at": at})
}

// MarkPostAttempt records a failed post. An expired token also clears the
// authenticated flag so the agent drops out of posting until re-authorized.
func (as *AgentService) MarkPostAttempt(ctx context.Context, id uuid.UUID, at time.Time, tokenExpired bool) error {
	updates := map[string]interface{}{
		"oauth_last_trial_at": at,
	}
	if tokenExpired {
		updates["oauth_is_authenticated"] = false
	}
	return as.repo.UpdateAgentFields(ctx, id, updates)
}
