package services

import (
	"context"

	"agent-ledger/internal/models"
)

// ProfileFetcher looks up a social profile by username. It returns nil, nil
// when the account does not exist.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, username string) (*models.SocialProfile, error)
}

// StatusPoster publishes a post with an OAuth2 access token and returns the
// id of the new post.
type StatusPoster interface {
	PostStatus(ctx context.Context, accessToken, text string) (string, error)
}

// TokenRefresher exchanges a refresh token for a new token pair.
type TokenRefresher interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (*models.OAuthTokens, error)
}

// TextGenerator completes a prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, system, prompt string) (string, error)
}

// WalletResolver returns the wallet address provisioned for an X account id,
// or ErrNotFound. PregenerateUserByTwitter provisions a wallet for an account
// that has none.
type WalletResolver interface {
	GetWalletAddress(ctx context.Context, socialSubjectID string) (string, error)
	PregenerateUserByTwitter(ctx context.Context, profile models.SocialProfile) (string, error)
}

// ChainReader reads token and transaction state from the chain.
type ChainReader interface {
	GetTokenMetadata(ctx context.Context, tokenAddress string) (*models.TokenInfo, error)
	GetSignatureStatus(ctx context.Context, signature string) (string, error)
}

// CredentialCipher seals values bound to an owner id.
type CredentialCipher interface {
	Encrypt(plaintext []byte, binding string) (string, error)
	Decrypt(sealed string, binding string) ([]byte, error)
}
