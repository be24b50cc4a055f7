package services

import (
	"time"

	"agent-ledger/internal/apperr"
	"agent-ledger/internal/blockchain"
	"agent-ledger/internal/models"
)

// ValidatePlan checks a plan and its payment before any storage is touched.
func ValidatePlan(plan models.Plan, creatorCount int) error {
	const op = "validate plan"

	switch plan.Kind {
	case models.PlanTrial:
		return nil
	case models.PlanMonthly:
	default:
		return apperr.Validation(op, "unknown plan %q", plan.Kind)
	}

	p := plan.Payment
	if p == nil {
		return apperr.Validation(op, "monthly plan requires a payment")
	}
	if err := blockchain.ValidateSignature(p.Signature); err != nil {
		return apperr.Wrap(apperr.ErrValidation, op, err)
	}
	if err := blockchain.ValidateAddress(p.PayerAddress); err != nil {
		return apperr.Wrap(apperr.ErrValidation, op, err)
	}
	if err := blockchain.ValidateAddress(p.TokenAddress); err != nil {
		return apperr.Wrap(apperr.ErrValidation, op, err)
	}
	for _, addr := range p.ReceiverAddress {
		if err := blockchain.ValidateAddress(addr); err != nil {
			return apperr.Wrap(apperr.ErrValidation, op, err)
		}
	}
	if !p.Amount.IsPositive() {
		return apperr.Validation(op, "payment amount must be positive")
	}
	if creatorCount < 1 {
		return apperr.Validation(op, "monthly plan requires at least one creator")
	}
	return nil
}

// PlanWindowEnd computes the end of a window starting at start. Monthly
// plans add one calendar month; trials add trialDays days.
func PlanWindowEnd(kind models.PlanKind, start time.Time, trialDays int) time.Time {
	if kind == models.PlanMonthly {
		return start.AddDate(0, 1, 0)
	}
	return start.AddDate(0, 0, trialDays)
}
