package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"agent-ledger/internal/apperr"
	"agent-ledger/internal/database/dbtest"
	"agent-ledger/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const token = "So11111111111111111111111111111111111111112"

func newRepo(t *testing.T) (*Repository, context.Context) {
	return NewRepository(dbtest.New(t)), context.Background()
}

func seedCreator(t *testing.T, r *Repository, ctx context.Context, socialID string) *models.Creator {
	t.Helper()
	c := &models.Creator{SocialID: socialID, Username: "user" + socialID, IsShow: true}
	require.NoError(t, r.CreateCreator(ctx, c))
	return c
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestTranslate(t *testing.T) {
	assert.Nil(t, translate("op", nil))
	assert.ErrorIs(t, translate("op", gorm.ErrRecordNotFound), apperr.ErrNotFound)
	assert.ErrorIs(t, translate("op", gorm.ErrDuplicatedKey), apperr.ErrConflict)

	kinded := apperr.Validation("inner", "bad")
	assert.Same(t, kinded, translate("op", kinded))

	plain := translate("op", errors.New("disk full"))
	assert.Nil(t, apperr.KindOf(plain))
	assert.Contains(t, plain.Error(), "op: disk full")
}

func TestCreateCreatorDuplicateSocialID(t *testing.T) {
	r, ctx := newRepo(t)
	seedCreator(t, r, ctx, "111")

	err := r.CreateCreator(ctx, &models.Creator{SocialID: "111", Username: "again"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = r.GetCreatorBySocialID(ctx, "999")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreditHoldingUpserts(t *testing.T) {
	r, ctx := newRepo(t)
	c := seedCreator(t, r, ctx, "111")

	require.NoError(t, r.CreditHolding(ctx, c.ID, token, "Wrapped SOL", "SOL", dec("50")))
	require.NoError(t, r.CreditHolding(ctx, c.ID, token, "Wrapped SOL", "SOL", dec("25")))

	holdings, err := r.ListHoldings(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.True(t, dec("75").Equal(holdings[0].Amount), holdings[0].Amount.String())
	assert.Equal(t, "SOL", holdings[0].Symbol)

	full, err := r.GetCreatorByID(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, full.Holding(token))
	assert.Nil(t, full.Holding("other"))
}

func TestDebitHolding(t *testing.T) {
	r, ctx := newRepo(t)
	c := seedCreator(t, r, ctx, "111")

	err := r.DebitHolding(ctx, c.ID, token, dec("1"))
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, r.CreditHolding(ctx, c.ID, token, "", "", dec("10")))
	require.NoError(t, r.DebitHolding(ctx, c.ID, token, dec("25")))

	h, err := r.GetHolding(ctx, c.ID, token)
	require.NoError(t, err)
	assert.True(t, dec("-15").Equal(h.Amount), h.Amount.String())
}

func TestDebitHoldingIfCovered(t *testing.T) {
	r, ctx := newRepo(t)
	c := seedCreator(t, r, ctx, "111")
	require.NoError(t, r.CreditHolding(ctx, c.ID, token, "", "", dec("10")))

	ok, err := r.DebitHoldingIfCovered(ctx, c.ID, token, dec("11"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.DebitHoldingIfCovered(ctx, c.ID, token, dec("10"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.DebitHoldingIfCovered(ctx, c.ID, "missing", dec("1"))
	require.NoError(t, err)
	assert.False(t, ok)

	h, err := r.GetHolding(ctx, c.ID, token)
	require.NoError(t, err)
	assert.True(t, h.Amount.IsZero())
}

func TestEntryBalanceSkipsVoidedEntries(t *testing.T) {
	r, ctx := newRepo(t)
	c := seedCreator(t, r, ctx, "111")
	userID := uuid.New()

	for _, e := range []models.Entry{
		{Type: models.EntryCredit, Amount: dec("40"), Status: models.EntryStatusFinalized},
		{Type: models.EntryCredit, Amount: dec("7"), Status: models.EntryStatusRejected},
		{Type: models.EntryDebit, Amount: dec("15"), Status: models.EntryStatusFinalized},
		{Type: models.EntryDebit, Amount: dec("3"), Status: models.EntryStatusDeleted},
	} {
		e.UserID = userID
		e.CreatorID = c.ID
		e.TokenAddress = token
		require.NoError(t, r.CreateEntry(ctx, &e))
	}

	balance, err := r.EntryBalance(ctx, c.ID, token)
	require.NoError(t, err)
	assert.True(t, dec("25").Equal(balance), balance.String())

	entries, err := r.ListEntries(ctx, EntryFilter{CreatorID: c.ID})
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestClaimSubscriptionWindow(t *testing.T) {
	r, ctx := newRepo(t)
	now := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	agent := &models.Agent{UserID: uuid.New(), Name: "ada"}
	require.NoError(t, r.CreateAgent(ctx, agent))

	end := now.AddDate(0, 0, 7)
	claimed, err := r.ClaimSubscriptionWindow(ctx, agent.ID, now, map[string]interface{}{
		"is_active": true, "start_at": now, "end_at": end,
	})
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = r.ClaimSubscriptionWindow(ctx, agent.ID, now.Add(time.Hour), map[string]interface{}{"end_at": end.AddDate(0, 1, 0)})
	require.NoError(t, err)
	assert.False(t, claimed)

	claimed, err = r.ClaimSubscriptionWindow(ctx, agent.ID, end.Add(time.Second), map[string]interface{}{"end_at": end.AddDate(0, 1, 0)})
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestHasOverlappingSubscription(t *testing.T) {
	r, ctx := newRepo(t)
	agentID := uuid.New()
	start := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	require.NoError(t, r.CreateSubscription(ctx, &models.Subscription{
		UserID: uuid.New(), AgentID: agentID, Plan: models.PlanTrial, StartAt: start, EndAt: end,
	}))

	tests := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"inside", start.Add(time.Hour), start.Add(2 * time.Hour), true},
		{"touching end", end, end.Add(time.Hour), true},
		{"before", start.Add(-2 * time.Hour), start.Add(-time.Hour), false},
		{"after", end.Add(time.Second), end.Add(time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.HasOverlappingSubscription(ctx, agentID, tt.start, tt.end)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	active, err := r.HasActiveSubscription(ctx, uuid.New(), start)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestTransactionRollsBack(t *testing.T) {
	r, ctx := newRepo(t)
	c := seedCreator(t, r, ctx, "111")

	err := r.Transaction(ctx, func(tx *Repository) error {
		if err := tx.CreditHolding(ctx, c.ID, token, "", "", dec("5")); err != nil {
			return err
		}
		return apperr.Conflict("test", "abort")
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = r.GetHolding(ctx, c.ID, token)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestOwnerLinks(t *testing.T) {
	r, ctx := newRepo(t)
	user := &models.User{ExternalAuthID: "did:privy:u", Username: "u"}
	require.NoError(t, r.CreateUser(ctx, user))
	a := seedCreator(t, r, ctx, "1")
	b := seedCreator(t, r, ctx, "2")

	require.NoError(t, r.SetCreatorOwner(ctx, a.ID, &user.ID, nil))
	// one creator per owner
	err := r.SetCreatorOwner(ctx, b.ID, &user.ID, nil)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	released, err := r.ReleaseOwnerLinks(ctx, user.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), released)

	require.NoError(t, r.SetCreatorOwner(ctx, b.ID, &user.ID, nil))
	owned, err := r.GetCreatorByOwner(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, owned.ID)
}
