package models

import "time"

// SocialProfile is a denormalized snapshot of a Twitter (X) account.
type SocialProfile struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Username       string     `json:"username"`
	Image          string     `json:"image,omitempty"`
	Avatar         string     `json:"avatar,omitempty"`
	Description    string     `json:"description,omitempty"`
	Banner         string     `json:"banner,omitempty"`
	Verified       bool       `json:"verified,omitempty"`
	FollowersCount int        `json:"followersCount,omitempty"`
	FollowingCount int        `json:"followingCount,omitempty"`
	TweetsCount    int        `json:"tweetsCount,omitempty"`
	Location       string     `json:"location,omitempty"`
	URL            string     `json:"url,omitempty"`
	Joined         *time.Time `json:"joined,omitempty"`
}

// DisplayImage prefers the explicit image, falling back to the avatar.
func (p SocialProfile) DisplayImage() string {
	if p.Image != "" {
		return p.Image
	}
	return p.Avatar
}

// Merge overlays the non-empty fields of fresh onto p. The social id is kept.
func (p SocialProfile) Merge(fresh SocialProfile) SocialProfile {
	out := p
	if out.ID == "" {
		out.ID = fresh.ID
	}
	if fresh.Name != "" {
		out.Name = fresh.Name
	}
	if fresh.Username != "" {
		out.Username = fresh.Username
	}
	if fresh.Image != "" {
		out.Image = fresh.Image
	}
	if fresh.Avatar != "" {
		out.Avatar = fresh.Avatar
	}
	if fresh.Description != "" {
		out.Description = fresh.Description
	}
	if fresh.Banner != "" {
		out.Banner = fresh.Banner
	}
	if fresh.Location != "" {
		out.Location = fresh.Location
	}
	if fresh.URL != "" {
		out.URL = fresh.URL
	}
	if fresh.Joined != nil {
		out.Joined = fresh.Joined
	}
	out.Verified = fresh.Verified || out.Verified
	if fresh.FollowersCount > 0 {
		out.FollowersCount = fresh.FollowersCount
	}
	if fresh.FollowingCount > 0 {
		out.FollowingCount = fresh.FollowingCount
	}
	if fresh.TweetsCount > 0 {
		out.TweetsCount = fresh.TweetsCount
	}
	return out
}

// SocialLink is a plain link to a community channel or website.
type SocialLink struct {
	URL      string `json:"url,omitempty"`
	Username string `json:"username,omitempty"`
}

// SocialLinks groups the agent's non-Twitter channels.
type SocialLinks struct {
	Discord  *SocialLink `json:"discord,omitempty"`
	Telegram *SocialLink `json:"telegram,omitempty"`
	Website  *SocialLink `json:"website,omitempty"`
}
