package services

import (
	"sync"
	"testing"
	"time"

	"agent-ledger/internal/apperr"
	"agent-ledger/internal/blockchain"
	"agent-ledger/internal/models"
	"agent-ledger/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeMonthlySplitsPaymentAcrossCreators(t *testing.T) {
	env := newTestEnv(t)
	pay := newTestPayment()
	env.chain.token = &models.TokenInfo{Address: pay.token, Name: "Agent Token", Symbol: "AGT", Supply: 1000000, Decimals: 6}

	owner, agent, sub := env.subscribedPair(t, pay, "100")

	assert.Equal(t, models.PlanMonthly, sub.Plan)
	assert.Equal(t, owner.ID, sub.UserID)
	assert.True(t, sub.StartAt.Equal(epoch))
	assert.True(t, sub.EndAt.Equal(epoch.AddDate(0, 1, 0)))
	require.Len(t, sub.Creators, 2)
	assert.Equal(t, "Ada", sub.Character.Data().Name)
	assert.Equal(t, "finalized", sub.Payment.Data().TransactionStatus)

	for _, socialID := range []string{"111", "222"} {
		creator := env.creatorBySocialID(t, socialID)
		assertAmount(t, "50", env.holdingAmount(t, creator.ID, pay.token))

		entries, err := env.repo.ListEntries(env.ctx, repository.EntryFilter{CreatorID: creator.ID})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, models.EntryCredit, entries[0].Type)
		assert.Equal(t, models.EntryStatusFinalized, entries[0].Status)
		assert.Equal(t, sub.ID, *entries[0].SubscriptionID)
		assert.Equal(t, agent.ID, *entries[0].AgentID)
		assertAmount(t, "50", entries[0].Amount)
	}

	stored, err := env.repo.GetAgentByID(env.ctx, agent.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
	assert.True(t, stored.IsSubscribed)
	require.NotNil(t, stored.ContractAddress)
	assert.Equal(t, pay.token, *stored.ContractAddress)
	require.NotNil(t, stored.Token.Data())
	assert.Equal(t, uint64(1000000), stored.Token.Data().Supply)
	assert.True(t, stored.IsEntitled(env.clock.Now()))
}

func TestSubscribeGivesRemainderToFirstCreator(t *testing.T) {
	policy := defaultPolicy()
	policy.SplitScale = 2
	env := newTestEnvWithPolicy(t, policy)
	pay := newTestPayment()

	owner := env.createUser(t, "owner", nil)
	agent := env.createAgent(t, owner, profile("1", "a"), profile("2", "b"), profile("3", "c"))
	_, err := env.subscriptions.Subscribe(env.ctx, owner.ID, models.SubscribeRequest{
		AgentID: agent.ID.String(),
		Plan:    models.PlanMonthly,
		Payment: pay.monthly("100").Payment,
	})
	require.NoError(t, err)

	assertAmount(t, "33.34", env.holdingAmount(t, env.creatorBySocialID(t, "1").ID, pay.token))
	assertAmount(t, "33.33", env.holdingAmount(t, env.creatorBySocialID(t, "2").ID, pay.token))
	assertAmount(t, "33.33", env.holdingAmount(t, env.creatorBySocialID(t, "3").ID, pay.token))
}

func TestSubscribeRejectsOverlappingWindow(t *testing.T) {
	env := newTestEnv(t)
	pay := newTestPayment()
	owner, agent, _ := env.subscribedPair(t, pay, "100")

	env.clock.Advance(24 * time.Hour)
	_, err := env.subscriptions.Subscribe(env.ctx, owner.ID, models.SubscribeRequest{
		AgentID: agent.ID.String(),
		Plan:    models.PlanMonthly,
		Payment: pay.monthly("100").Payment,
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	// bypassing the pre-check still hits the window claim
	creators, err := env.subscriptions.ResolveCreatorsForAgent(env.ctx, agent)
	require.NoError(t, err)
	_, err = env.subscriptions.CreateSubscription(env.ctx, NewSubscription{
		UserID:   owner.ID,
		Plan:     pay.monthly("100"),
		Agent:    agent,
		Creators: creators,
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	for _, socialID := range []string{"111", "222"} {
		assertAmount(t, "50", env.holdingAmount(t, env.creatorBySocialID(t, socialID).ID, pay.token))
	}
	subs, err := env.subscriptions.ListSubscriptions(env.ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestSubscribeAgainAfterWindowEnds(t *testing.T) {
	env := newTestEnv(t)
	pay := newTestPayment()
	owner, agent, first := env.subscribedPair(t, pay, "100")

	env.clock.T = first.EndAt.Add(time.Second)
	active, err := env.subscriptions.HasActiveSubscription(env.ctx, agent.ID)
	require.NoError(t, err)
	assert.False(t, active)

	second, err := env.subscriptions.Subscribe(env.ctx, owner.ID, models.SubscribeRequest{
		AgentID: agent.ID.String(),
		Plan:    models.PlanMonthly,
		Payment: pay.monthly("100").Payment,
	})
	require.NoError(t, err)
	assert.True(t, second.StartAt.After(first.EndAt))

	for _, socialID := range []string{"111", "222"} {
		creator := env.creatorBySocialID(t, socialID)
		assertAmount(t, "100", env.holdingAmount(t, creator.ID, pay.token))
		balance, err := env.repo.EntryBalance(env.ctx, creator.ID, pay.token)
		require.NoError(t, err)
		assertAmount(t, "100", balance)
	}

	subs, err := env.subscriptions.ListSubscriptions(env.ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, second.ID, subs[0].ID)
}

func TestSubscribeKeepsAgentBoundToFirstToken(t *testing.T) {
	env := newTestEnv(t)
	pay := newTestPayment()
	owner, agent, first := env.subscribedPair(t, pay, "100")

	env.clock.T = first.EndAt.Add(time.Second)
	other := newTestPayment()
	_, err := env.subscriptions.Subscribe(env.ctx, owner.ID, models.SubscribeRequest{
		AgentID: agent.ID.String(),
		Plan:    models.PlanMonthly,
		Payment: other.monthly("100").Payment,
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	stored, err := env.repo.GetAgentByID(env.ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, pay.token, *stored.ContractAddress)
}

func TestSubscribeTrial(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner", nil)
	agent := env.createAgent(t, owner)

	sub, err := env.subscriptions.Subscribe(env.ctx, owner.ID, models.SubscribeRequest{
		AgentID: agent.ID.String(),
		Plan:    models.PlanTrial,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PlanTrial, sub.Plan)
	assert.True(t, sub.EndAt.Equal(epoch.AddDate(0, 0, 7)))
	assert.Empty(t, sub.Creators)

	stored, err := env.repo.GetAgentByID(env.ctx, agent.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
	assert.Nil(t, stored.ContractAddress)
}

func TestSubscribeValidation(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner", nil)
	stranger := env.createUser(t, "stranger", nil)
	bare := env.createAgent(t, owner)
	agent := env.createAgent(t, owner, profile("111", "alice"))
	pay := newTestPayment()

	badSignature := pay.monthly("100").Payment
	badSignature.Signature = "not-a-signature"
	zero := pay.monthly("0").Payment

	tests := []struct {
		name string
		user *models.User
		req  models.SubscribeRequest
		kind error
	}{
		{"bad agent id", owner, models.SubscribeRequest{AgentID: "nope", Plan: models.PlanTrial}, apperr.ErrValidation},
		{"unknown plan", owner, models.SubscribeRequest{AgentID: agent.ID.String(), Plan: "yearly"}, apperr.ErrValidation},
		{"monthly without payment", owner, models.SubscribeRequest{AgentID: agent.ID.String(), Plan: models.PlanMonthly}, apperr.ErrValidation},
		{"bad signature", owner, models.SubscribeRequest{AgentID: agent.ID.String(), Plan: models.PlanMonthly, Payment: badSignature}, apperr.ErrValidation},
		{"zero amount", owner, models.SubscribeRequest{AgentID: agent.ID.String(), Plan: models.PlanMonthly, Payment: zero}, apperr.ErrValidation},
		{"monthly without creators", owner, models.SubscribeRequest{AgentID: bare.ID.String(), Plan: models.PlanMonthly, Payment: pay.monthly("100").Payment}, apperr.ErrValidation},
		{"foreign agent", stranger, models.SubscribeRequest{AgentID: agent.ID.String(), Plan: models.PlanTrial}, apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.subscriptions.Subscribe(env.ctx, tt.user.ID, tt.req)
			assert.ErrorIs(t, err, tt.kind)
		})
	}

	subs, err := env.subscriptions.ListSubscriptions(env.ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestCreateSubscriptionRejectsRepeatedCreator(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner", nil)
	agent := env.createAgent(t, owner, profile("111", "alice"))
	alice := env.creatorBySocialID(t, "111")

	_, err := env.subscriptions.CreateSubscription(env.ctx, NewSubscription{
		UserID:   owner.ID,
		Plan:     newTestPayment().monthly("10"),
		Agent:    agent,
		Creators: []models.Creator{*alice, *alice},
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestResolveCreatorsForAgentRequiresEveryCreator(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner", nil)
	agent := env.createAgent(t, owner, profile("111", "alice"))

	agent.Suggestions = append(agent.Suggestions, profile("999", "unknown"))
	_, err := env.subscriptions.ResolveCreatorsForAgent(env.ctx, agent)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPlanWindowEnd(t *testing.T) {
	jan31 := time.Date(2025, time.January, 31, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC), PlanWindowEnd(models.PlanMonthly, jan31, 7))
	assert.Equal(t, time.Date(2025, time.February, 7, 9, 0, 0, 0, time.UTC), PlanWindowEnd(models.PlanTrial, jan31, 7))
	assert.Equal(t, epoch.AddDate(0, 0, 14), PlanWindowEnd(models.PlanTrial, epoch, 14))
}

func TestConcurrentSubscribeOpensOneWindow(t *testing.T) {
	env := newTestEnv(t)
	pay := newTestPayment()
	owner := env.createUser(t, "owner", nil)
	agent := env.createAgent(t, owner, profile("111", "alice"), profile("222", "bob"))

	const callers = 6
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.subscriptions.Subscribe(env.ctx, owner.ID, models.SubscribeRequest{
				AgentID: agent.ID.String(),
				Plan:    models.PlanMonthly,
				Payment: pay.monthly("100").Payment,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrConflict)
	}
	assert.Equal(t, 1, succeeded)

	subs, err := env.subscriptions.ListSubscriptions(env.ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
	for _, socialID := range []string{"111", "222"} {
		creator := env.creatorBySocialID(t, socialID)
		assertAmount(t, "50", env.holdingAmount(t, creator.ID, pay.token))
	}
}

func TestCharge(t *testing.T) {
	policy := defaultPolicy()
	policy.MonthlyPlanAmount = decimal.RequireFromString("49.5")
	env := newTestEnvWithPolicy(t, policy)

	amount, err := env.subscriptions.Charge(models.PlanMonthly)
	require.NoError(t, err)
	assertAmount(t, "49.5", amount)

	amount, err = env.subscriptions.Charge(models.PlanTrial)
	require.NoError(t, err)
	assert.True(t, amount.IsZero())

	_, err = env.subscriptions.Charge("weekly")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestTokenMetadata(t *testing.T) {
	env := newTestEnv(t)
	mint := newTestPayment().token
	env.chain.token = &models.TokenInfo{Address: mint, Supply: 42, Decimals: 9}

	token, err := env.subscriptions.TokenMetadata(env.ctx, mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), token.Supply)

	_, err = env.subscriptions.TokenMetadata(env.ctx, "not-a-mint")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	env.chain.err = blockchain.ErrAccountNotFound
	_, err = env.subscriptions.TokenMetadata(env.ctx, mint)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	env.chain.err = errUpstream
	_, err = env.subscriptions.TokenMetadata(env.ctx, mint)
	assert.ErrorIs(t, err, apperr.ErrTransientExternal)
}
