package auth

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"agent-ledger/internal/apperr"
	"agent-ledger/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

const privyIssuer = "privy.io"

// PrivyClient verifies identity tokens issued by Privy and reads users
// from its REST API.
type PrivyClient struct {
	httpClient *http.Client
	baseURL    string
	appID      string
	appSecret  string
	key        *ecdsa.PublicKey
}

// NewPrivyClient parses the app's PEM verification key.
func NewPrivyClient(baseURL, appID, appSecret, verificationKey string) (*PrivyClient, error) {
	key, err := jwt.ParseECPublicKeyFromPEM([]byte(strings.ReplaceAll(verificationKey, `\n`, "\n")))
	if err != nil {
		return nil, fmt.Errorf("failed to parse privy verification key: %w", err)
	}
	return &PrivyClient{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL:   strings.TrimRight(baseURL, "/"),
		appID:     appID,
		appSecret: appSecret,
		key:       key,
	}, nil
}

type linkedAccount struct {
	Type              string `json:"type"`
	Subject           string `json:"subject,omitempty"`
	Username          string `json:"username,omitempty"`
	Name              string `json:"name,omitempty"`
	ProfilePictureURL string `json:"profile_picture_url,omitempty"`
	Address           string `json:"address,omitempty"`
	ChainType         string `json:"chain_type,omitempty"`
}

type privyUser struct {
	ID             string          `json:"id"`
	LinkedAccounts []linkedAccount `json:"linked_accounts"`
}

func (u *privyUser) twitter() *models.SocialProfile {
	for _, a := range u.LinkedAccounts {
		if a.Type == "twitter_oauth" && a.Subject != "" {
			return &models.SocialProfile{
				ID:       a.Subject,
				Name:     a.Name,
				Username: a.Username,
				Avatar:   strings.Replace(a.ProfilePictureURL, "_normal", "", 1),
			}
		}
	}
	return nil
}

func (u *privyUser) solanaWallet() string {
	for _, a := range u.LinkedAccounts {
		if a.Type == "wallet" && a.ChainType == "solana" {
			return a.Address
		}
	}
	return ""
}

// ParseIdentityToken checks the ES256 signature, issuer and audience of an
// identity token and returns its subject.
func (p *PrivyClient) ParseIdentityToken(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return p.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithIssuer(privyIssuer),
		jwt.WithAudience(p.appID),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", apperr.Wrap(apperr.ErrUnauthorized, "verify identity", err)
	}
	if claims.Subject == "" {
		return "", apperr.Unauthorized("verify identity", "token has no subject")
	}
	return claims.Subject, nil
}

// VerifyIdentity validates the token and loads the subject's linked X
// account and Solana wallet, when there are any.
func (p *PrivyClient) VerifyIdentity(ctx context.Context, token string) (*models.Identity, error) {
	subject, err := p.ParseIdentityToken(token)
	if err != nil {
		return nil, err
	}

	user, err := p.do(ctx, http.MethodGet, "/api/v1/users/"+url.PathEscape(subject), nil)
	if err != nil {
		return nil, apperr.External("verify identity", err)
	}
	identity := &models.Identity{SubjectID: subject}
	if user != nil {
		identity.Twitter = user.twitter()
		identity.WalletAddress = user.solanaWallet()
	}
	return identity, nil
}

// GetWalletAddress returns the Solana wallet of the Privy user linked to an X
// account id.
func (p *PrivyClient) GetWalletAddress(ctx context.Context, socialSubjectID string) (string, error) {
	user, err := p.do(ctx, http.MethodPost, "/api/v1/users/twitter/subject", map[string]string{"subject": socialSubjectID})
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", apperr.NotFound("get wallet", "no privy user for x account %s", socialSubjectID)
	}
	address := user.solanaWallet()
	if address == "" {
		return "", apperr.NotFound("get wallet", "privy user %s has no solana wallet", user.ID)
	}
	return address, nil
}

type importUserRequest struct {
	LinkedAccounts     []linkedAccount `json:"linked_accounts"`
	CreateSolanaWallet bool            `json:"create_solana_wallet"`
}

// PregenerateUserByTwitter imports a Privy user for an X account that has
// never signed in, with an embedded Solana wallet, and returns the wallet.
func (p *PrivyClient) PregenerateUserByTwitter(ctx context.Context, profile models.SocialProfile) (string, error) {
	req := importUserRequest{
		LinkedAccounts: []linkedAccount{{
			Type:              "twitter_oauth",
			Subject:           profile.ID,
			Username:          profile.Username,
			Name:              profile.Name,
			ProfilePictureURL: profile.DisplayImage(),
		}},
		CreateSolanaWallet: true,
	}
	user, err := p.do(ctx, http.MethodPost, "/api/v1/users", req)
	if err != nil {
		return "", apperr.External("pregenerate user", err)
	}
	if user == nil {
		return "", apperr.NotFound("pregenerate user", "privy did not create a user for x account %s", profile.ID)
	}
	address := user.solanaWallet()
	if address == "" {
		return "", apperr.NotFound("pregenerate user", "privy user %s has no solana wallet", user.ID)
	}
	return address, nil
}

func (p *PrivyClient) do(ctx context.Context, method, path string, body interface{}) (*privyUser, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(p.appID, p.appSecret)
	req.Header.Set("privy-app-id", p.appID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("privy request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("privy API error: %d - %s", resp.StatusCode, string(msg))
	}

	var user privyUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &user, nil
}
