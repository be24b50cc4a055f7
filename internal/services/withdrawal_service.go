package services

import (
	"context"
	"fmt"
	"strings"

	"agent-ledger/internal/apperr"
	"agent-ledger/internal/config"
	"agent-ledger/internal/metrics"
	"agent-ledger/internal/models"
	"agent-ledger/internal/repository"
	"agent-ledger/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type WithdrawalService struct {
	repo   *repository.Repository
	clock  Clock
	policy config.LedgerConfig
	log    *logger.Logger
}

func NewWithdrawalService(
	repo *repository.Repository,
	clock Clock,
	policy config.LedgerConfig,
	log *logger.Logger,
) *WithdrawalService {
	return &WithdrawalService{
		repo:   repo,
		clock:  clock,
		policy: policy,
		log:    log,
	}
}

// Withdraw records a withdrawal of the caller's creator holdings with one
// debit entry per line, all in one transaction.
//
// Under the default policy a line for a token the creator does not hold is
// skipped and a line larger than the balance is applied anyway, leaving the
// holding negative; both are logged. StrictWithdrawals rejects both cases
// and AllowNegativeHoldings=false rejects overdrafts, failing the whole
// withdrawal with ErrInsufficientHoldings.
func (ws *WithdrawalService) Withdraw(ctx context.Context, userID uuid.UUID, req models.WithdrawRequest) (*models.Withdrawal, error) {
	if err := validateWithdrawRequest(req); err != nil {
		metrics.RecordWithdrawal("invalid")
		return nil, err
	}

	var (
		withdrawal *models.Withdrawal
		debits     []models.Entry
	)
	err := ws.repo.Transaction(ctx, func(tx *repository.Repository) error {
		creator, err := tx.GetCreatorByOwner(ctx, userID)
		if err != nil {
			return err
		}

		withdrawal = &models.Withdrawal{
			UserID:          userID,
			CreatorID:       creator.ID,
			Signature:       req.Signature,
			PayerAddress:    req.PayerAddress,
			ReceiverAddress: req.ReceiverAddress,
			Lines:           datatypes.JSONSlice[models.WithdrawalLine](req.Holdings),
		}
		if err := tx.CreateWithdrawal(ctx, withdrawal); err != nil {
			return err
		}

		for _, line := range req.Holdings {
			entry, err := ws.debitLine(ctx, tx, creator, withdrawal, line)
			if err != nil {
				return err
			}
			if entry != nil {
				debits = append(debits, *entry)
			}
		}

		return tx.TouchCreator(ctx, creator.ID, ws.clock.Now())
	})
	if err != nil {
		metrics.RecordWithdrawal(outcomeLabel(err))
		return nil, fmt.Errorf("failed to withdraw: %w", err)
	}

	metrics.RecordWithdrawal("success")
	for _, e := range debits {
		metrics.RecordEntry(string(e.Type), e.Amount)
	}
	ws.log.Infow("withdrawal recorded", "withdrawal_id", withdrawal.ID, "creator_id", withdrawal.CreatorID,
		"lines", len(req.Holdings), "debits", len(debits), "total", req.Total())

	return ws.repo.GetWithdrawalByID(ctx, withdrawal.ID)
}

// debitLine applies one requested line. It returns nil, nil when the line is
// skipped.
func (ws *WithdrawalService) debitLine(
	ctx context.Context,
	tx *repository.Repository,
	creator *models.Creator,
	withdrawal *models.Withdrawal,
	line models.WithdrawalLine,
) (*models.Entry, error) {
	const op = "withdraw"

	holding := creator.Holding(line.TokenAddress)
	if holding == nil {
		if ws.policy.StrictWithdrawals {
			return nil, apperr.InsufficientHoldings(op, "creator %s holds no %s", creator.ID, line.TokenAddress)
		}
		ws.log.Warnw("holding not found for withdrawal line, skipping",
			"creator_id", creator.ID, "token", line.TokenAddress, "amount", line.Amount)
		return nil, nil
	}

	newAmount := holding.Amount.Sub(line.Amount)
	overdraft := newAmount.IsNegative()
	rejectOverdraft := ws.policy.StrictWithdrawals || !ws.policy.AllowNegativeHoldings
	if overdraft && rejectOverdraft {
		return nil, apperr.InsufficientHoldings(op, "creator %s holds %s %s, requested %s",
			creator.ID, holding.Amount, line.TokenAddress, line.Amount)
	}

	name, symbol := line.Name, line.Symbol
	if name == "" {
		name = holding.Name
	}
	if symbol == "" {
		symbol = holding.Symbol
	}
	entry := &models.Entry{
		UserID:       withdrawal.UserID,
		CreatorID:    creator.ID,
		WithdrawalID: &withdrawal.ID,
		Signature:    withdrawal.Signature,
		Type:         models.EntryDebit,
		TokenAddress: line.TokenAddress,
		Name:         name,
		Symbol:       symbol,
		Amount:       line.Amount,
		Status:       models.EntryStatusFinalized,
	}
	if err := tx.CreateEntry(ctx, entry); err != nil {
		return nil, err
	}

	if rejectOverdraft {
		covered, err := tx.DebitHoldingIfCovered(ctx, creator.ID, line.TokenAddress, line.Amount)
		if err != nil {
			return nil, err
		}
		if !covered {
			return nil, apperr.InsufficientHoldings(op, "creator %s balance of %s changed during withdrawal", creator.ID, line.TokenAddress)
		}
	} else if err := tx.DebitHolding(ctx, creator.ID, line.TokenAddress, line.Amount); err != nil {
		return nil, err
	}

	if overdraft {
		metrics.RecordOverdraft()
		ws.log.Errorw("withdrawal leaves holding negative",
			"creator_id", creator.ID, "token", line.TokenAddress,
			"held", holding.Amount, "requested", line.Amount, "new_amount", newAmount)
	}
	holding.Amount = newAmount
	return entry, nil
}

func validateWithdrawRequest(req models.WithdrawRequest) error {
	const op = "withdraw"

	if strings.TrimSpace(req.Signature) == "" {
		return apperr.Validation(op, "signature is required")
	}
	if req.PayerAddress == "" || req.ReceiverAddress == "" {
		return apperr.Validation(op, "payer and receiver addresses are required")
	}
	if len(req.Holdings) == 0 {
		return apperr.Validation(op, "at least one holding line is required")
	}
	for _, line := range req.Holdings {
		if line.TokenAddress == "" {
			return apperr.Validation(op, "holding line needs a token address")
		}
		if !line.Amount.IsPositive() {
			return apperr.Validation(op, "holding line amount must be positive")
		}
	}
	return nil
}
