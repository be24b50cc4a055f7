package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type EntryType string

const (
	EntryCredit EntryType = "credit"
	EntryDebit  EntryType = "debit"
)

type EntryStatus string

const (
	EntryStatusPending   EntryStatus = "pending"
	EntryStatusApproved  EntryStatus = "approved"
	EntryStatusRejected  EntryStatus = "rejected"
	EntryStatusDeleted   EntryStatus = "deleted"
	EntryStatusSettled   EntryStatus = "settled"
	EntryStatusFinalized EntryStatus = "finalized"
	EntryStatusClaimed   EntryStatus = "claimed"
)

// Entry is an immutable ledger line. Only Status may change after insert.
type Entry struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	CreatorID      uuid.UUID       `gorm:"type:uuid;not null;index:idx_entry_creator_token" json:"creator_id"`
	AgentID        *uuid.UUID      `gorm:"type:uuid;index" json:"agent_id,omitempty"`
	SubscriptionID *uuid.UUID      `gorm:"type:uuid;index" json:"subscription_id,omitempty"`
	WithdrawalID   *uuid.UUID      `gorm:"type:uuid;index" json:"withdrawal_id,omitempty"`
	Signature      string          `gorm:"size:128;index" json:"signature"`
	Type           EntryType       `gorm:"size:10;not null" json:"type"`
	TokenAddress   string          `gorm:"size:64;not null;index:idx_entry_creator_token" json:"token_address"`
	Name           string          `gorm:"size:255" json:"name,omitempty"`
	Symbol         string          `gorm:"size:32" json:"symbol,omitempty"`
	Amount         decimal.Decimal `gorm:"type:decimal(38,18);not null" json:"amount"`
	Status         EntryStatus     `gorm:"size:20;not null;default:pending" json:"status"`
	RawTransaction datatypes.JSON  `json:"raw_transaction,omitempty"`
	CreatedAt      time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (Entry) TableName() string {
	return "entries"
}

func (e *Entry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// WithdrawalLine is one requested token amount of a withdrawal.
type WithdrawalLine struct {
	TokenAddress string          `json:"token_address"`
	Amount       decimal.Decimal `json:"amount"`
	Name         string          `json:"name,omitempty"`
	Symbol       string          `json:"symbol,omitempty"`
}

// Withdrawal is a batch request to move funds out of a creator's holdings.
type Withdrawal struct {
	ID              uuid.UUID                           `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID                           `gorm:"type:uuid;not null;index" json:"user_id"`
	CreatorID       uuid.UUID                           `gorm:"type:uuid;not null;index" json:"creator_id"`
	Signature       string                              `gorm:"size:128;index" json:"signature"`
	PayerAddress    string                              `gorm:"size:64" json:"payer_address"`
	ReceiverAddress string                              `gorm:"size:64" json:"receiver_address"`
	Lines           datatypes.JSONSlice[WithdrawalLine] `json:"holdings"`
	Entries         []Entry                             `gorm:"foreignKey:WithdrawalID" json:"entries,omitempty"`
	CreatedAt       time.Time                           `json:"created_at"`
}

func (Withdrawal) TableName() string {
	return "withdrawals"
}

func (w *Withdrawal) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}
