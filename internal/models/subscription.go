package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PlanKind string

const (
	PlanTrial   PlanKind = "trial"
	PlanMonthly PlanKind = "monthly"
)

// PaymentReceipt is the externally supplied proof of a monthly payment. The
// signature is recorded as an opaque receipt.
type PaymentReceipt struct {
	Signature         string          `json:"signature"`
	PayerAddress      string          `json:"payer_address"`
	ReceiverAddress   []string        `json:"receiver_address,omitempty"`
	TokenAddress      string          `json:"token_address"`
	Name              string          `json:"name,omitempty"`
	Symbol            string          `json:"symbol,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	TransactionStatus string          `json:"transaction_status,omitempty"`
}

// Plan is either a trial or a monthly plan carrying its payment.
type Plan struct {
	Kind    PlanKind        `json:"kind"`
	Payment *PaymentReceipt `json:"payment,omitempty"`
}

// Subscription is one entitlement period for one agent. Never mutated.
type Subscription struct {
	ID        uuid.UUID                           `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID                           `gorm:"type:uuid;not null;index" json:"user_id"`
	AgentID   uuid.UUID                           `gorm:"type:uuid;not null;index:idx_subscription_window" json:"agent_id"`
	Agent     *Agent                              `gorm:"foreignKey:AgentID" json:"agent,omitempty"`
	Character datatypes.JSONType[Character]       `json:"character"`
	Creators  []Creator                           `gorm:"many2many:subscription_creators" json:"creators,omitempty"`
	Plan      PlanKind                            `gorm:"size:20;not null" json:"plan"`
	StartAt   time.Time                           `gorm:"not null;index:idx_subscription_window" json:"start_at"`
	EndAt     time.Time                           `gorm:"not null;index:idx_subscription_window" json:"end_at"`
	Payment   datatypes.JSONType[*PaymentReceipt] `json:"payment"`
	CreatedAt time.Time                           `json:"created_at"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
