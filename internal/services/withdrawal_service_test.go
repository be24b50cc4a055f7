package services

import (
	"testing"

	"agent-ledger/internal/apperr"
	"agent-ledger/internal/models"
	"agent-ledger/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fundedCreator returns a user linked to alice, whose creator holds 50 of
// the payment token.
func fundedCreator(t *testing.T, env *testEnv, pay testPayment) *models.User {
	t.Helper()
	env.subscribedPair(t, pay, "100")
	p := profile("111", "alice")
	alice := env.createUser(t, "alice", &p)
	_, err := env.creators.LinkUserAsCreator(env.ctx, alice.ID)
	require.NoError(t, err)
	return alice
}

func withdrawal(pay testPayment, lines ...models.WithdrawalLine) models.WithdrawRequest {
	return models.WithdrawRequest{
		Signature:       "withdraw-sig",
		PayerAddress:    pay.payer,
		ReceiverAddress: pay.payer,
		Holdings:        lines,
	}
}

func line(token, amount string) models.WithdrawalLine {
	return models.WithdrawalLine{TokenAddress: token, Amount: decimal.RequireFromString(amount)}
}

func TestWithdrawDebitsHolding(t *testing.T) {
	env := newTestEnv(t)
	pay := newTestPayment()
	alice := fundedCreator(t, env, pay)

	w, err := env.withdrawals.Withdraw(env.ctx, alice.ID, withdrawal(pay, line(pay.token, "30")))
	require.NoError(t, err)
	require.Len(t, w.Entries, 1)
	assert.Equal(t, models.EntryDebit, w.Entries[0].Type)
	assert.Equal(t, "AGT", w.Entries[0].Symbol)
	assertAmount(t, "30", w.Entries[0].Amount)

	creator := env.creatorBySocialID(t, "111")
	assertAmount(t, "20", env.holdingAmount(t, creator.ID, pay.token))

	balance, err := env.repo.EntryBalance(env.ctx, creator.ID, pay.token)
	require.NoError(t, err)
	assertAmount(t, "20", balance)

	// the other creator is untouched
	assertAmount(t, "50", env.holdingAmount(t, env.creatorBySocialID(t, "222").ID, pay.token))
}

func TestWithdrawOverdraftUnderDefaultPolicy(t *testing.T) {
	env := newTestEnv(t)
	pay := newTestPayment()
	alice := fundedCreator(t, env, pay)

	_, err := env.withdrawals.Withdraw(env.ctx, alice.ID, withdrawal(pay, line(pay.token, "30")))
	require.NoError(t, err)
	_, err = env.withdrawals.Withdraw(env.ctx, alice.ID, withdrawal(pay, line(pay.token, "999")))
	require.NoError(t, err)

	creator := env.creatorBySocialID(t, "111")
	assertAmount(t, "-979", env.holdingAmount(t, creator.ID, pay.token))

	balance, err := env.repo.EntryBalance(env.ctx, creator.ID, pay.token)
	require.NoError(t, err)
	assertAmount(t, "-979", balance)
}

func TestWithdrawSkipsUnknownTokenUnderDefaultPolicy(t *testing.T) {
	env := newTestEnv(t)
	pay := newTestPayment()
	alice := fundedCreator(t, env, pay)
	other := newTestPayment()

	w, err := env.withdrawals.Withdraw(env.ctx, alice.ID, withdrawal(pay, line(other.token, "5"), line(pay.token, "10")))
	require.NoError(t, err)
	require.Len(t, w.Entries, 1)
	assert.Equal(t, pay.token, w.Entries[0].TokenAddress)
	assert.Len(t, w.Lines, 2)

	creator := env.creatorBySocialID(t, "111")
	assertAmount(t, "40", env.holdingAmount(t, creator.ID, pay.token))
	_, err = env.repo.GetHolding(env.ctx, creator.ID, other.token)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestWithdrawStrictPolicy(t *testing.T) {
	policy := defaultPolicy()
	policy.StrictWithdrawals = true
	env := newTestEnvWithPolicy(t, policy)
	pay := newTestPayment()
	alice := fundedCreator(t, env, pay)
	other := newTestPayment()

	_, err := env.withdrawals.Withdraw(env.ctx, alice.ID, withdrawal(pay, line(pay.token, "10"), line(other.token, "5")))
	assert.ErrorIs(t, err, apperr.ErrInsufficientHoldings)

	_, err = env.withdrawals.Withdraw(env.ctx, alice.ID, withdrawal(pay, line(pay.token, "51")))
	assert.ErrorIs(t, err, apperr.ErrInsufficientHoldings)

	// failed withdrawals leave no trace
	creator := env.creatorBySocialID(t, "111")
	assertAmount(t, "50", env.holdingAmount(t, creator.ID, pay.token))
	entries, err := env.repo.ListEntries(env.ctx, repository.EntryFilter{CreatorID: creator.ID})
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = env.withdrawals.Withdraw(env.ctx, alice.ID, withdrawal(pay, line(pay.token, "50")))
	require.NoError(t, err)
	assertAmount(t, "0", env.holdingAmount(t, creator.ID, pay.token))
}

func TestWithdrawWithoutNegativeHoldings(t *testing.T) {
	policy := defaultPolicy()
	policy.AllowNegativeHoldings = false
	env := newTestEnvWithPolicy(t, policy)
	pay := newTestPayment()
	alice := fundedCreator(t, env, pay)

	_, err := env.withdrawals.Withdraw(env.ctx, alice.ID, withdrawal(pay, line(pay.token, "60")))
	assert.ErrorIs(t, err, apperr.ErrInsufficientHoldings)
	assertAmount(t, "50", env.holdingAmount(t, env.creatorBySocialID(t, "111").ID, pay.token))
}

func TestWithdrawRequiresLinkedCreator(t *testing.T) {
	env := newTestEnv(t)
	pay := newTestPayment()
	user := env.createUser(t, "nobody", nil)

	_, err := env.withdrawals.Withdraw(env.ctx, user.ID, withdrawal(pay, line(pay.token, "1")))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestWithdrawValidation(t *testing.T) {
	env := newTestEnv(t)
	pay := newTestPayment()
	alice := fundedCreator(t, env, pay)

	noSignature := withdrawal(pay, line(pay.token, "1"))
	noSignature.Signature = " "

	tests := map[string]models.WithdrawRequest{
		"missing signature": noSignature,
		"no lines":          withdrawal(pay),
		"zero amount":       withdrawal(pay, line(pay.token, "0")),
		"negative amount":   withdrawal(pay, line(pay.token, "-3")),
		"missing token":     withdrawal(pay, line("", "3")),
	}
	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := env.withdrawals.Withdraw(env.ctx, alice.ID, req)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
	assertAmount(t, "50", env.holdingAmount(t, env.creatorBySocialID(t, "111").ID, pay.token))
}
