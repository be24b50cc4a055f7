package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"agent-ledger/internal/apperr"
	"agent-ledger/internal/models"
)

const (
	DefaultBaseURL = "https://api.twitter.com"

	userFields = "created_at,description,location,profile_banner_url,profile_image_url,public_metrics,url,verified"
)

// Client talks to the X.com v2 API. The bearer token is an app token used
// for profile lookups; posting uses the agent's own OAuth2 access token.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	bearerToken  string
	clientID     string
	clientSecret string
}

func NewClient(baseURL, bearerToken, clientID, clientSecret string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:      strings.TrimRight(baseURL, "/"),
		bearerToken:  bearerToken,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

type apiUser struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Username        string `json:"username"`
	Description     string `json:"description"`
	Location        string `json:"location"`
	URL             string `json:"url"`
	ProfileImageURL string `json:"profile_image_url"`
	ProfileBanner   string `json:"profile_banner_url"`
	Verified        bool   `json:"verified"`
	CreatedAt       string `json:"created_at"`
	PublicMetrics   struct {
		FollowersCount int `json:"followers_count"`
		FollowingCount int `json:"following_count"`
		TweetCount     int `json:"tweet_count"`
	} `json:"public_metrics"`
}

type apiError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Type   string `json:"type"`
}

type userResponse struct {
	Data   *apiUser   `json:"data"`
	Errors []apiError `json:"errors"`
}

// toProfile maps an API user onto the stored snapshot shape
func (u *apiUser) toProfile() *models.SocialProfile {
	p := &models.SocialProfile{
		ID:             u.ID,
		Name:           u.Name,
		Username:       u.Username,
		Avatar:         strings.Replace(u.ProfileImageURL, "_normal", "", 1),
		Description:    u.Description,
		Banner:         u.ProfileBanner,
		Verified:       u.Verified,
		FollowersCount: u.PublicMetrics.FollowersCount,
		FollowingCount: u.PublicMetrics.FollowingCount,
		TweetsCount:    u.PublicMetrics.TweetCount,
		Location:       u.Location,
		URL:            u.URL,
	}
	if joined, err := time.Parse(time.RFC3339, u.CreatedAt); err == nil {
		p.Joined = &joined
	}
	return p
}

// FetchProfile looks up a user by handle. It returns nil, nil when the
// account does not exist or is suspended.
func (c *Client) FetchProfile(ctx context.Context, username string) (*models.SocialProfile, error) {
	endpoint := fmt.Sprintf("%s/2/users/by/username/%s?user.fields=%s",
		c.baseURL, url.PathEscape(strings.TrimPrefix(username, "@")), userFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("twitter API error: %d - %s", resp.StatusCode, string(body))
	}

	var result userResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	// unknown handles come back as 200 with an errors array
	if result.Data == nil {
		return nil, nil
	}
	return result.Data.toProfile(), nil
}

// PostStatus publishes text on behalf of the token's owner and returns the
// new post id. A rejected token is reported as apperr.ErrUnauthorized.
func (c *Client) PostStatus(ctx context.Context, accessToken, text string) (string, error) {
	if accessToken == "" {
		return "", apperr.Unauthorized("post status", "no access token")
	}

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", fmt.Errorf("failed to encode tweet: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/2/tweets", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to post tweet: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", apperr.Unauthorized("post status", "x.com rejected the token: %d - %s", resp.StatusCode, string(body))
	case resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("twitter API error: %d - %s", resp.StatusCode, string(body))
	}

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return result.Data.ID, nil
}

// RefreshAccessToken runs the OAuth2 refresh grant with the app's client
// credentials.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*models.OAuthTokens, error) {
	form := url.Values{
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
		"client_id":     {c.clientID},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/2/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
			return nil, apperr.Unauthorized("refresh token", "%d - %s", resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("twitter API error: %d - %s", resp.StatusCode, string(body))
	}

	var tokens models.OAuthTokens
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if tokens.AccessToken == "" {
		return nil, fmt.Errorf("token response has no access token")
	}
	return &tokens, nil
}
