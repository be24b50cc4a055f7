package repository

import (
	"context"

	"agent-ledger/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateEntry inserts one ledger line
func (r *Repository) CreateEntry(ctx context.Context, entry *models.Entry) error {
	return translate("create entry", r.db.WithContext(ctx).Create(entry).Error)
}

// CreditHolding adds amount to the creator's holding of a token, creating the
// line when it does not exist yet. The increment is applied by the database.
func (r *Repository) CreditHolding(ctx context.Context, creatorID uuid.UUID, tokenAddress, name, symbol string, amount decimal.Decimal) error {
	holding := &models.Holding{
		CreatorID:    creatorID,
		TokenAddress: tokenAddress,
		Amount:       amount,
		Name:         name,
		Symbol:       symbol,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "creator_id"}, {Name: "token_address"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"amount":     gorm.Expr("holdings.amount + ?", amount),
			"updated_at": gorm.Expr("excluded.updated_at"),
		}),
	}).Create(holding).Error
	return translate("credit holding", err)
}

// DebitHolding subtracts amount from an existing holding line. NotFound when
// the creator holds no line for the token.
func (r *Repository) DebitHolding(ctx context.Context, creatorID uuid.UUID, tokenAddress string, amount decimal.Decimal) error {
	res := r.db.WithContext(ctx).Model(&models.Holding{}).
		Where("creator_id = ? AND token_address = ?", creatorID, tokenAddress).
		Updates(map[string]interface{}{
			"amount": gorm.Expr("amount - ?", amount),
		})
	if res.Error != nil {
		return translate("debit holding", res.Error)
	}
	if res.RowsAffected == 0 {
		return translate("debit holding", gorm.ErrRecordNotFound)
	}
	return nil
}

// DebitHoldingIfCovered subtracts amount only when the balance covers it.
// It returns false when the line is missing or too small.
func (r *Repository) DebitHoldingIfCovered(ctx context.Context, creatorID uuid.UUID, tokenAddress string, amount decimal.Decimal) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Holding{}).
		Where("creator_id = ? AND token_address = ? AND amount >= ?", creatorID, tokenAddress, amount).
		Updates(map[string]interface{}{
			"amount": gorm.Expr("amount - ?", amount),
		})
	if res.Error != nil {
		return false, translate("debit holding", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// GetHolding retrieves one holding line
func (r *Repository) GetHolding(ctx context.Context, creatorID uuid.UUID, tokenAddress string) (*models.Holding, error) {
	var holding models.Holding
	err := r.db.WithContext(ctx).
		Where("creator_id = ? AND token_address = ?", creatorID, tokenAddress).
		First(&holding).Error
	if err != nil {
		return nil, translate("get holding", err)
	}
	return &holding, nil
}

// ListHoldings lists a creator's holding lines
func (r *Repository) ListHoldings(ctx context.Context, creatorID uuid.UUID) ([]models.Holding, error) {
	var holdings []models.Holding
	err := r.db.WithContext(ctx).Where("creator_id = ?", creatorID).Order("created_at ASC").Find(&holdings).Error
	return holdings, translate("list holdings", err)
}

// EntryFilter narrows ListEntries
type EntryFilter struct {
	CreatorID    uuid.UUID
	AgentID      *uuid.UUID
	TokenAddress string
}

// ListEntries lists ledger lines of a creator, newest first
func (r *Repository) ListEntries(ctx context.Context, f EntryFilter) ([]models.Entry, error) {
	var entries []models.Entry
	q := r.db.WithContext(ctx).Where("creator_id = ?", f.CreatorID)
	if f.AgentID != nil {
		q = q.Where("agent_id = ?", *f.AgentID)
	}
	if f.TokenAddress != "" {
		q = q.Where("token_address = ?", f.TokenAddress)
	}
	err := q.Order("created_at DESC").Find(&entries).Error
	return entries, translate("list entries", err)
}

// EntryBalance returns credits minus debits for a creator and token, summed
// in decimal arithmetic.
func (r *Repository) EntryBalance(ctx context.Context, creatorID uuid.UUID, tokenAddress string) (decimal.Decimal, error) {
	entries, err := r.ListEntries(ctx, EntryFilter{CreatorID: creatorID, TokenAddress: tokenAddress})
	if err != nil {
		return decimal.Zero, err
	}
	balance := decimal.Zero
	for _, e := range entries {
		if e.Status == models.EntryStatusDeleted || e.Status == models.EntryStatusRejected {
			continue
		}
		switch e.Type {
		case models.EntryCredit:
			balance = balance.Add(e.Amount)
		case models.EntryDebit:
			balance = balance.Sub(e.Amount)
		}
	}
	return balance, nil
}

// CreateWithdrawal inserts the withdrawal header
func (r *Repository) CreateWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	return translate("create withdrawal", r.db.WithContext(ctx).Omit("Entries").Create(w).Error)
}

// GetWithdrawalByID retrieves a withdrawal with its debit entries
func (r *Repository) GetWithdrawalByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := r.db.WithContext(ctx).Preload("Entries").Where("id = ?", id).First(&w).Error
	if err != nil {
		return nil, translate("get withdrawal", err)
	}
	return &w, nil
}
