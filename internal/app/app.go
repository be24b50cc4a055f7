// Package app wires configuration into the storage layer, collaborators and
// services shared by the HTTP server and the operator CLI.
package app

import (
	"fmt"

	"agent-ledger/internal/ai"
	"agent-ledger/internal/auth"
	"agent-ledger/internal/blockchain"
	"agent-ledger/internal/cipher"
	"agent-ledger/internal/config"
	"agent-ledger/internal/database"
	"agent-ledger/internal/jobs"
	"agent-ledger/internal/repository"
	"agent-ledger/internal/services"
	"agent-ledger/internal/twitter"
	"agent-ledger/pkg/logger"

	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	Log    *logger.Logger
	DB     *gorm.DB
	Repo   *repository.Repository
	Privy  *auth.PrivyClient

	Users         *services.UserService
	Creators      *services.CreatorService
	Agents        *services.AgentService
	Subscriptions *services.SubscriptionService
	Withdrawals   *services.WithdrawalService
	Tweets        *services.TweetService
	Jobs          *jobs.Runner
}

// New connects to the database and builds every service. Migrations are
// not run here.
func New(cfg *config.Config, log *logger.Logger) (*App, error) {
	db, err := database.Connect(cfg.GetDSN(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return Build(cfg, db, log)
}

// Build wires the services over an open database
func Build(cfg *config.Config, db *gorm.DB, log *logger.Logger) (*App, error) {
	repo := repository.NewRepository(db)
	clock := services.SystemClock{}

	credentials, err := cipher.New(cfg.App.CipherKey)
	if err != nil {
		return nil, err
	}
	if cfg.App.CipherKey == "" {
		log.Warn("CIPHER_KEY not set; agent credentials cannot be stored")
	}

	var (
		privy   *auth.PrivyClient
		wallets services.WalletResolver
	)
	if cfg.Privy.VerificationKey != "" {
		privy, err = auth.NewPrivyClient(cfg.Privy.BaseURL, cfg.Privy.AppID, cfg.Privy.AppSecret, cfg.Privy.VerificationKey)
		if err != nil {
			return nil, err
		}
		wallets = privy
	} else {
		log.Warn("PRIVY_VERIFICATION_KEY not set; sign-in and wallet lookups are disabled")
	}

	x := twitter.NewClient(cfg.Twitter.BaseURL, cfg.Twitter.BearerToken, cfg.Twitter.ClientID, cfg.Twitter.ClientSecret)
	textGen := ai.NewClient(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model)
	chain := blockchain.NewSolanaClient(cfg.Solana.Network, cfg.Solana.RPCURL)

	creators := services.NewCreatorService(repo, x, cfg.Jobs.ProfileRefreshEvery, log.With("service", "creator"))
	agents := services.NewAgentService(repo, wallets, x, credentials, clock, cfg.Jobs.PostTweetsInterval, log.With("service", "agent"))
	tweets := services.NewTweetService(repo, agents, textGen, x, clock, log.With("service", "tweet"))

	a := &App{
		Config:        cfg,
		Log:           log,
		DB:            db,
		Repo:          repo,
		Privy:         privy,
		Users:         services.NewUserService(repo, creators, wallets, log.With("service", "user")),
		Creators:      creators,
		Agents:        agents,
		Subscriptions: services.NewSubscriptionService(repo, chain, clock, cfg.Ledger, log.With("service", "subscription")),
		Withdrawals:   services.NewWithdrawalService(repo, clock, cfg.Ledger, log.With("service", "withdrawal")),
		Tweets:        tweets,
	}
	a.Jobs = jobs.NewRunner(creators, agents, tweets, clock, cfg.Jobs.PostTweetsInterval, log.With("component", "jobs"))
	return a, nil
}

// Close releases the database pool
func (a *App) Close() error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
