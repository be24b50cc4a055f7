package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"agent-ledger/internal/apperr"
	"agent-ledger/internal/blockchain"
	"agent-ledger/internal/config"
	"agent-ledger/internal/metrics"
	"agent-ledger/internal/models"
	"agent-ledger/internal/repository"
	"agent-ledger/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type SubscriptionService struct {
	repo   *repository.Repository
	chain  ChainReader
	clock  Clock
	policy config.LedgerConfig
	log    *logger.Logger
}

func NewSubscriptionService(
	repo *repository.Repository,
	chain ChainReader,
	clock Clock,
	policy config.LedgerConfig,
	log *logger.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		repo:   repo,
		chain:  chain,
		clock:  clock,
		policy: policy,
		log:    log,
	}
}

// NewSubscription carries everything CreateSubscription needs. The caller
// has resolved the agent and creators already.
type NewSubscription struct {
	UserID   uuid.UUID
	Plan     models.Plan
	Agent    *models.Agent
	Creators []models.Creator
	// Token is the mint snapshot stored on the agent for monthly plans. Nil
	// falls back to the name and symbol on the payment receipt.
	Token *models.TokenInfo
}

// CreateSubscription opens one entitlement window for the agent. For a
// monthly plan the payment is split across the creators as credit entries
// and added to their holdings. Everything is written in one transaction;
// the window is claimed on the agent row first, so a second subscription
// for an agent whose window is still open fails with ErrConflict.
func (ss *SubscriptionService) CreateSubscription(ctx context.Context, in NewSubscription) (*models.Subscription, error) {
	const op = "create subscription"

	if in.Agent == nil {
		return nil, apperr.Validation(op, "agent is required")
	}
	if err := ValidatePlan(in.Plan, len(in.Creators)); err != nil {
		return nil, err
	}
	if err := distinctCreators(in.Creators); err != nil {
		return nil, err
	}

	startAt := ss.clock.Now()
	endAt := PlanWindowEnd(in.Plan.Kind, startAt, ss.policy.TrialDays)

	var shares []models.Entry
	sub := &models.Subscription{
		UserID:   in.UserID,
		AgentID:  in.Agent.ID,
		Creators: in.Creators,
		Plan:     in.Plan.Kind,
		StartAt:  startAt,
		EndAt:    endAt,
		Payment:  datatypes.NewJSONType(in.Plan.Payment),
	}

	err := ss.repo.Transaction(ctx, func(tx *repository.Repository) error {
		agent, err := tx.GetAgentByID(ctx, in.Agent.ID)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"is_active":     true,
			"is_subscribed": true,
			"start_at":      startAt,
			"end_at":        endAt,
		}
		if in.Plan.Kind == models.PlanMonthly {
			payment := in.Plan.Payment
			if agent.ContractAddress != nil && *agent.ContractAddress != "" && *agent.ContractAddress != payment.TokenAddress {
				return apperr.Conflict(op, "agent %s is bound to token %s", agent.ID, *agent.ContractAddress)
			}
			updates["contract_address"] = payment.TokenAddress
			updates["token"] = datatypes.NewJSONType(tokenSnapshot(payment, in.Token))
		}

		claimed, err := tx.ClaimSubscriptionWindow(ctx, agent.ID, startAt, updates)
		if err != nil {
			return err
		}
		if !claimed {
			return apperr.Conflict(op, "agent %s already has an active subscription", agent.ID)
		}
		overlap, err := tx.HasOverlappingSubscription(ctx, agent.ID, startAt, endAt)
		if err != nil {
			return err
		}
		if overlap {
			return apperr.Conflict(op, "agent %s already has an active subscription", agent.ID)
		}

		sub.Character = datatypes.NewJSONType(agent.Character.Data())
		if err := tx.CreateSubscription(ctx, sub); err != nil {
			return err
		}

		if in.Plan.Kind != models.PlanMonthly {
			return nil
		}
		shares, err = ss.creditCreators(ctx, tx, in, sub.ID)
		return err
	})
	if err != nil {
		metrics.RecordSubscription(string(in.Plan.Kind), outcomeLabel(err))
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	metrics.RecordSubscription(string(in.Plan.Kind), "success")
	for _, e := range shares {
		metrics.RecordEntry(string(e.Type), e.Amount)
	}
	ss.log.Infow("subscription created",
		"subscription_id", sub.ID, "agent_id", in.Agent.ID, "plan", in.Plan.Kind,
		"start_at", startAt, "end_at", endAt, "creators", len(in.Creators))

	return ss.repo.GetSubscriptionByID(ctx, sub.ID)
}

// creditCreators writes one finalized credit entry per creator and adds the
// share to the creator's holding of the paid token.
func (ss *SubscriptionService) creditCreators(ctx context.Context, tx *repository.Repository, in NewSubscription, subscriptionID uuid.UUID) ([]models.Entry, error) {
	payment := in.Plan.Payment
	amounts, err := SplitEvenly(payment.Amount, len(in.Creators), ss.policy.SplitScale)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(payment)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payment: %w", err)
	}

	entries := make([]models.Entry, 0, len(in.Creators))
	for i, creator := range in.Creators {
		entry := models.Entry{
			UserID:         in.UserID,
			CreatorID:      creator.ID,
			AgentID:        &in.Agent.ID,
			SubscriptionID: &subscriptionID,
			Signature:      payment.Signature,
			Type:           models.EntryCredit,
			TokenAddress:   payment.TokenAddress,
			Name:           payment.Name,
			Symbol:         payment.Symbol,
			Amount:         amounts[i],
			Status:         models.EntryStatusFinalized,
			RawTransaction: datatypes.JSON(raw),
		}
		if err := tx.CreateEntry(ctx, &entry); err != nil {
			return nil, err
		}
		if err := tx.CreditHolding(ctx, creator.ID, payment.TokenAddress, payment.Name, payment.Symbol, amounts[i]); err != nil {
			return nil, err
		}
		ss.log.Infof("Update entry and holding of creator %s for subscription %s for token %s with amount %s",
			creator.ID, subscriptionID, payment.TokenAddress, amounts[i])
		entries = append(entries, entry)
	}
	return entries, nil
}

func tokenSnapshot(payment *models.PaymentReceipt, token *models.TokenInfo) *models.TokenInfo {
	snap := &models.TokenInfo{
		Address: payment.TokenAddress,
		Name:    payment.Name,
		Symbol:  payment.Symbol,
	}
	if token != nil {
		snap.Supply = token.Supply
		snap.Decimals = token.Decimals
		if token.Name != "" {
			snap.Name = token.Name
		}
		if token.Symbol != "" {
			snap.Symbol = token.Symbol
		}
	}
	return snap
}

func distinctCreators(creators []models.Creator) error {
	seen := make(map[uuid.UUID]bool, len(creators))
	for _, c := range creators {
		if seen[c.ID] {
			return apperr.Validation("create subscription", "creator %s listed twice", c.ID)
		}
		seen[c.ID] = true
	}
	return nil
}

// HasActiveSubscription reports whether a subscription of the agent covers now.
func (ss *SubscriptionService) HasActiveSubscription(ctx context.Context, agentID uuid.UUID) (bool, error) {
	return ss.repo.HasActiveSubscription(ctx, agentID, ss.clock.Now())
}

// Subscribe is the caller-facing flow: ownership and active-window checks,
// creator resolution and token lookup, then CreateSubscription.
func (ss *SubscriptionService) Subscribe(ctx context.Context, userID uuid.UUID, req models.SubscribeRequest) (*models.Subscription, error) {
	const op = "subscribe"

	agentID, err := uuid.Parse(req.AgentID)
	if err != nil {
		return nil, apperr.Validation(op, "invalid agent id %q", req.AgentID)
	}
	agent, err := ss.repo.GetAgentByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if agent.UserID != userID {
		return nil, apperr.NotFound(op, "agent %s not found", agentID)
	}

	active, err := ss.HasActiveSubscription(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, apperr.Conflict(op, "agent %s already has an active subscription", agentID)
	}

	creators, err := ss.ResolveCreatorsForAgent(ctx, agent)
	if err != nil {
		return nil, err
	}

	plan := models.Plan{Kind: req.Plan, Payment: req.Payment}
	if err := ValidatePlan(plan, len(creators)); err != nil {
		return nil, err
	}

	var token *models.TokenInfo
	if plan.Kind == models.PlanMonthly && ss.chain != nil {
		token = ss.lookupToken(ctx, plan.Payment)
	}

	return ss.CreateSubscription(ctx, NewSubscription{
		UserID:   userID,
		Plan:     plan,
		Agent:    agent,
		Creators: creators,
		Token:    token,
	})
}

// lookupToken reads mint data and the payment's confirmation status. Both
// are informational; failures are logged and the receipt values are kept.
func (ss *SubscriptionService) lookupToken(ctx context.Context, payment *models.PaymentReceipt) *models.TokenInfo {
	token, err := ss.chain.GetTokenMetadata(ctx, payment.TokenAddress)
	if err != nil {
		ss.log.Warnw("failed to read token metadata", "token", payment.TokenAddress, "error", err)
		token = nil
	}
	if payment.TransactionStatus == "" {
		status, err := ss.chain.GetSignatureStatus(ctx, payment.Signature)
		if err != nil {
			ss.log.Warnw("failed to read payment status", "signature", payment.Signature, "error", err)
		} else {
			payment.TransactionStatus = status
		}
	}
	return token
}

// ResolveCreatorsForAgent returns the creators of the agent's suggestions in
// suggestion order. Every suggestion must have a creator.
func (ss *SubscriptionService) ResolveCreatorsForAgent(ctx context.Context, agent *models.Agent) ([]models.Creator, error) {
	suggestions := agent.Suggestions
	if len(suggestions) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(suggestions))
	for _, s := range suggestions {
		ids = append(ids, s.ID)
	}

	found, err := ss.repo.GetCreatorsBySocialIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	bySocial := make(map[string]models.Creator, len(found))
	for _, c := range found {
		bySocial[c.SocialID] = c
	}

	creators := make([]models.Creator, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		c, ok := bySocial[id]
		if !ok {
			return nil, apperr.NotFound("resolve creators", "no creator for social account %s", id)
		}
		creators = append(creators, c)
	}
	return creators, nil
}

// GetSubscription returns a subscription with agent and creators.
func (ss *SubscriptionService) GetSubscription(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	return ss.repo.GetSubscriptionByID(ctx, id)
}

// ListSubscriptions lists the user's subscriptions, newest first.
func (ss *SubscriptionService) ListSubscriptions(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error) {
	return ss.repo.ListSubscriptionsByUser(ctx, userID)
}

// Charge returns the price of a plan. Trials are free.
func (ss *SubscriptionService) Charge(kind models.PlanKind) (decimal.Decimal, error) {
	switch kind {
	case models.PlanMonthly:
		return ss.policy.MonthlyPlanAmount, nil
	case models.PlanTrial:
		return decimal.Zero, nil
	default:
		return decimal.Zero, apperr.Validation("get charge", "unknown plan %q", kind)
	}
}

// TokenMetadata reads the mint a payer intends to pay with.
func (ss *SubscriptionService) TokenMetadata(ctx context.Context, tokenAddress string) (*models.TokenInfo, error) {
	const op = "token metadata"

	if err := blockchain.ValidateAddress(tokenAddress); err != nil {
		return nil, apperr.Wrap(apperr.ErrValidation, op, err)
	}
	if ss.chain == nil {
		return nil, apperr.External(op, errors.New("chain reader is not configured"))
	}
	token, err := ss.chain.GetTokenMetadata(ctx, tokenAddress)
	switch {
	case errors.Is(err, blockchain.ErrAccountNotFound):
		return nil, apperr.NotFound(op, "token %s not found", tokenAddress)
	case err != nil:
		return nil, apperr.External(op, err)
	}
	return token, nil
}

func outcomeLabel(err error) string {
	switch kind := apperr.KindOf(err); {
	case errors.Is(kind, apperr.ErrConflict):
		return "conflict"
	case errors.Is(kind, apperr.ErrValidation):
		return "invalid"
	case errors.Is(kind, apperr.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
