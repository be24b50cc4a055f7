package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"agent-ledger/internal/apperr"
	"agent-ledger/internal/cipher"
	"agent-ledger/internal/config"
	"agent-ledger/internal/database/dbtest"
	"agent-ledger/internal/models"
	"agent-ledger/internal/repository"
	"agent-ledger/pkg/logger"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, time.January, 10, 12, 0, 0, 0, time.UTC)

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]*models.SocialProfile
	err      error
	calls    int
}

func (f *fakeProfiles) FetchProfile(ctx context.Context, username string) (*models.SocialProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.profiles[username]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

type fakeTokens struct {
	tokens *models.OAuthTokens
	err    error
}

func (f *fakeTokens) RefreshAccessToken(ctx context.Context, refreshToken string) (*models.OAuthTokens, error) {
	return f.tokens, f.err
}

// fakeWallets is keyed by X account id
type fakeWallets struct {
	mu           sync.Mutex
	addresses    map[string]string
	pregenerated []string
	pregenErr    error
}

func (f *fakeWallets) GetWalletAddress(ctx context.Context, socialSubjectID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.addresses[socialSubjectID]; ok {
		return a, nil
	}
	return "", apperr.NotFound("get wallet", "no wallet for %s", socialSubjectID)
}

func (f *fakeWallets) PregenerateUserByTwitter(ctx context.Context, p models.SocialProfile) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pregenErr != nil {
		return "", f.pregenErr
	}
	address := solana.NewWallet().PublicKey().String()
	f.addresses[p.ID] = address
	f.pregenerated = append(f.pregenerated, p.ID)
	return address, nil
}

type fakeChain struct {
	token *models.TokenInfo
	err   error
}

func (f *fakeChain) GetTokenMetadata(ctx context.Context, tokenAddress string) (*models.TokenInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.token, nil
}

func (f *fakeChain) GetSignatureStatus(ctx context.Context, signature string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "finalized", nil
}

type fakeText struct {
	text    string
	err     error
	prompts []string
}

func (f *fakeText) GenerateText(ctx context.Context, system, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.text, f.err
}

type fakePoster struct {
	posted []string
	err    error
}

func (f *fakePoster) PostStatus(ctx context.Context, accessToken, text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.posted = append(f.posted, text)
	return "post-" + text, nil
}

var errUpstream = errors.New("upstream unavailable")

type testEnv struct {
	ctx   context.Context
	repo  *repository.Repository
	clock *FixedClock

	profiles *fakeProfiles
	tokens   *fakeTokens
	chain    *fakeChain
	text     *fakeText
	poster   *fakePoster
	wallets  *fakeWallets

	creators      *CreatorService
	agents        *AgentService
	subscriptions *SubscriptionService
	withdrawals   *WithdrawalService
	tweets        *TweetService
	users         *UserService
}

func defaultPolicy() config.LedgerConfig {
	return config.LedgerConfig{
		SplitScale:            9,
		AllowNegativeHoldings: true,
		TrialDays:             7,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithPolicy(t, defaultPolicy())
}

func newTestEnvWithPolicy(t *testing.T, policy config.LedgerConfig) *testEnv {
	t.Helper()

	repo := repository.NewRepository(dbtest.New(t))
	log := logger.NewNop()
	credentials, err := cipher.New("test-cipher-key")
	require.NoError(t, err)

	env := &testEnv{
		ctx:      context.Background(),
		repo:     repo,
		clock:    &FixedClock{T: epoch},
		profiles: &fakeProfiles{profiles: map[string]*models.SocialProfile{}},
		tokens:   &fakeTokens{},
		chain:    &fakeChain{},
		text:     &fakeText{},
		poster:   &fakePoster{},
		wallets:  &fakeWallets{addresses: map[string]string{}},
	}

	env.creators = NewCreatorService(repo, env.profiles, 0, log)
	env.agents = NewAgentService(repo, env.wallets, env.tokens, credentials, env.clock, 30*time.Minute, log)
	env.subscriptions = NewSubscriptionService(repo, env.chain, env.clock, policy, log)
	env.withdrawals = NewWithdrawalService(repo, env.clock, policy, log)
	env.tweets = NewTweetService(repo, env.agents, env.text, env.poster, env.clock, log)
	env.users = NewUserService(repo, env.creators, env.wallets, log)
	return env
}

func profile(id, username string) models.SocialProfile {
	return models.SocialProfile{ID: id, Username: username, Name: username, FollowersCount: 10}
}

// createUser stores a user, linked to an X account when p is set
func (e *testEnv) createUser(t *testing.T, username string, p *models.SocialProfile) *models.User {
	t.Helper()
	user := &models.User{ExternalAuthID: "did:privy:" + username, Username: username}
	require.NoError(t, e.repo.CreateUser(e.ctx, user))
	if p != nil {
		require.NoError(t, e.repo.SetUserSocialProfile(e.ctx, user.ID, p))
	}
	return user
}

func (e *testEnv) createAgent(t *testing.T, owner *models.User, suggestions ...models.SocialProfile) *models.Agent {
	t.Helper()
	agent, err := e.agents.CreateAgent(e.ctx, owner.ID, models.CreateAgentRequest{
		Name:        "agent-" + owner.Username,
		Character:   models.Character{Name: "Ada", Bio: "writes about chains"},
		Suggestions: suggestions,
	})
	require.NoError(t, err)
	return agent
}

func (e *testEnv) creatorBySocialID(t *testing.T, socialID string) *models.Creator {
	t.Helper()
	c, err := e.repo.GetCreatorBySocialID(e.ctx, socialID)
	require.NoError(t, err)
	full, err := e.repo.GetCreatorByID(e.ctx, c.ID)
	require.NoError(t, err)
	return full
}

func (e *testEnv) holdingAmount(t *testing.T, creatorID uuid.UUID, token string) decimal.Decimal {
	t.Helper()
	h, err := e.repo.GetHolding(e.ctx, creatorID, token)
	require.NoError(t, err)
	return h.Amount
}

func (e *testEnv) ownedCreators(t *testing.T, userID uuid.UUID) int {
	t.Helper()
	all, err := e.repo.ListAllCreators(e.ctx)
	require.NoError(t, err)
	n := 0
	for _, c := range all {
		if c.OwnerID != nil && *c.OwnerID == userID {
			n++
		}
	}
	return n
}

type testPayment struct {
	token string
	payer string
}

func newTestPayment() testPayment {
	return testPayment{
		token: solana.NewWallet().PublicKey().String(),
		payer: solana.NewWallet().PublicKey().String(),
	}
}

func (p testPayment) monthly(amount string) models.Plan {
	var sig solana.Signature
	for i := range sig {
		sig[i] = byte(i + 7)
	}
	return models.Plan{
		Kind: models.PlanMonthly,
		Payment: &models.PaymentReceipt{
			Signature:    sig.String(),
			PayerAddress: p.payer,
			TokenAddress: p.token,
			Name:         "Agent Token",
			Symbol:       "AGT",
			Amount:       decimal.RequireFromString(amount),
		},
	}
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

// subscribedPair sets up an owner with an agent suggesting alice and bob and
// a paid monthly subscription of amount split between them.
func (e *testEnv) subscribedPair(t *testing.T, p testPayment, amount string) (*models.User, *models.Agent, *models.Subscription) {
	t.Helper()
	owner := e.createUser(t, "owner", nil)
	agent := e.createAgent(t, owner, profile("111", "alice"), profile("222", "bob"))
	sub, err := e.subscriptions.Subscribe(e.ctx, owner.ID, models.SubscribeRequest{
		AgentID: agent.ID.String(),
		Plan:    models.PlanMonthly,
		Payment: p.monthly(amount).Payment,
	})
	require.NoError(t, err)
	return owner, agent, sub
}
