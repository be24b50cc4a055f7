package models

import "github.com/shopspring/decimal"

// CreateAgentRequest is the payload to create an agent
type CreateAgentRequest struct {
	Name        string          `json:"name" binding:"required"`
	Avatar      string          `json:"avatar"`
	Character   Character       `json:"character"`
	Suggestions []SocialProfile `json:"suggestions"`
	SocialLinks *SocialLinks    `json:"social_links,omitempty"`
}

// UpdateAgentRequest is a partial agent update. Nil fields are left alone.
type UpdateAgentRequest struct {
	Name        *string          `json:"name,omitempty"`
	Avatar      *string          `json:"avatar,omitempty"`
	Character   *Character       `json:"character,omitempty"`
	Suggestions *[]SocialProfile `json:"suggestions,omitempty"`
	SocialLinks *SocialLinks     `json:"social_links,omitempty"`
}

// UpdateAccessTokensRequest stores a freshly authorized posting token
type UpdateAccessTokensRequest struct {
	AccountID          string `json:"id" binding:"required"`
	AccessToken        string `json:"access_token" binding:"required"`
	RefreshToken       string `json:"refresh_token" binding:"required"`
	Scope              string `json:"scope" binding:"required"`
	ExpiresIn          int    `json:"expires_in" binding:"required"`
	TokenType          string `json:"token_type" binding:"required"`
	PostTweetsInterval int    `json:"post_tweets_interval"`
}

// AgentCredentials are the legacy login credentials of an agent account
type AgentCredentials struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	Secret   string `json:"secret"` // 2FA secret
}

// SubscribeRequest is the payload to subscribe an agent to a plan
type SubscribeRequest struct {
	AgentID string          `json:"agent_id" binding:"required"`
	Plan    PlanKind        `json:"plan" binding:"required"`
	Payment *PaymentReceipt `json:"payment,omitempty"`
}

// WithdrawRequest is the payload to withdraw creator holdings
type WithdrawRequest struct {
	Signature       string           `json:"signature" binding:"required"`
	PayerAddress    string           `json:"payer_address" binding:"required"`
	ReceiverAddress string           `json:"receiver_address" binding:"required"`
	Holdings        []WithdrawalLine `json:"holdings" binding:"required"`
}

// Total sums the requested amounts
func (r WithdrawRequest) Total() decimal.Decimal {
	total := decimal.Zero
	for _, h := range r.Holdings {
		total = total.Add(h.Amount)
	}
	return total
}
