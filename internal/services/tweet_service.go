package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"agent-ledger/internal/apperr"
	"agent-ledger/internal/models"
	"agent-ledger/internal/repository"
	"agent-ledger/pkg/logger"

	"github.com/google/uuid"
)

const (
	// unsentThreshold stops generation while the queue is deep enough.
	unsentThreshold = 3
	tweetsPerBatch  = 10
)

var (
	tweetTag   = regexp.MustCompile(`(?s)<tweet(?:\s[^>]*)?>(.*?)</tweet>`)
	listMarker = regexp.MustCompile(`^(?:[-*]|\d+[.)])\s+`)
)

type TweetService struct {
	repo   *repository.Repository
	agents *AgentService
	ai     TextGenerator
	poster StatusPoster
	clock  Clock
	log    *logger.Logger
}

func NewTweetService(
	repo *repository.Repository,
	agents *AgentService,
	ai TextGenerator,
	poster StatusPoster,
	clock Clock,
	log *logger.Logger,
) *TweetService {
	return &TweetService{
		repo:   repo,
		agents: agents,
		ai:     ai,
		poster: poster,
		clock:  clock,
		log:    log,
	}
}

// GenerateTweets tops up the agent's queue from its character. Nothing is
// generated while more than unsentThreshold tweets are waiting. It returns
// the number of tweets stored.
func (ts *TweetService) GenerateTweets(ctx context.Context, agent *models.Agent) (int, error) {
	pending, err := ts.repo.CountUnsentTweets(ctx, agent.ID)
	if err != nil {
		return 0, err
	}
	if pending > unsentThreshold {
		return 0, nil
	}

	system, prompt := tweetPrompt(agent.Character.Data(), tweetsPerBatch)
	text, err := ts.ai.GenerateText(ctx, system, prompt)
	if err != nil {
		return 0, apperr.External("generate tweets", err)
	}

	contents := ParseGeneratedTweets(text)
	if len(contents) == 0 {
		ts.log.Infow("no tweets generated", "agent_id", agent.ID)
		return 0, nil
	}

	tweets := make([]models.Tweet, 0, len(contents))
	for _, content := range contents {
		tweets = append(tweets, models.Tweet{
			AgentID: agent.ID,
			Content: content,
			Status:  models.TweetStatusPending,
		})
	}
	if err := ts.repo.CreateTweets(ctx, tweets); err != nil {
		return 0, fmt.Errorf("failed to store tweets: %w", err)
	}

	ts.log.Infow("generated tweets", "agent_id", agent.ID, "count", len(tweets))
	return len(tweets), nil
}

// SendNextTweet posts the agent's oldest queued tweet. It returns nil, nil
// when the queue is empty. A failed post stays queued with its failure
// status; an expired token also marks the agent unauthenticated.
func (ts *TweetService) SendNextTweet(ctx context.Context, agent *models.Agent) (*models.Tweet, error) {
	tweet, err := ts.repo.GetOldestUnsentTweet(ctx, agent.ID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	now := ts.clock.Now()
	postedID, postErr := ts.poster.PostStatus(ctx, agent.TwitterOAuth.AccessToken, tweet.Content)
	if postErr == nil {
		if err := ts.repo.MarkTweetSent(ctx, tweet.ID, postedID, now); err != nil {
			return nil, err
		}
		if err := ts.agents.MarkTweeted(ctx, agent.ID, now); err != nil {
			return nil, err
		}
		tweet.IsSent = true
		tweet.Status = models.TweetStatusSent
		tweet.PostedID = postedID
		tweet.SentAt = &now
		ts.log.Infow("tweet sent", "agent_id", agent.ID, "tweet_id", tweet.ID, "posted_id", postedID)
		return tweet, nil
	}

	status := models.TweetStatusFailed
	if errors.Is(postErr, apperr.ErrUnauthorized) {
		status = models.TweetStatusTokenExpired
	}
	ts.log.Errorw("failed to send tweet", "agent_id", agent.ID, "tweet_id", tweet.ID, "status", status, "error", postErr)

	if err := ts.repo.MarkTweetFailed(ctx, tweet.ID, status, postErr.Error()); err != nil {
		return nil, err
	}
	if err := ts.agents.MarkPostAttempt(ctx, agent.ID, now, status == models.TweetStatusTokenExpired); err != nil {
		return nil, err
	}
	tweet.Status = status
	tweet.Error = postErr.Error()
	return tweet, apperr.External("post tweet", postErr)
}

// SendNow is the owner's manual post: the queue is topped up first, then
// the oldest queued tweet is posted.
func (ts *TweetService) SendNow(ctx context.Context, agentID, userID uuid.UUID) (*models.Tweet, error) {
	const op = "send tweet"

	agent, err := ts.agents.GetOwnedAgent(ctx, agentID, userID)
	if err != nil {
		return nil, err
	}
	if !agent.TwitterOAuth.IsAuthenticated || agent.TwitterOAuth.AccessToken == "" {
		return nil, apperr.Validation(op, "agent %s has no X authorization", agentID)
	}

	if _, err := ts.GenerateTweets(ctx, agent); err != nil {
		return nil, err
	}
	tweet, err := ts.SendNextTweet(ctx, agent)
	if err != nil {
		return nil, err
	}
	if tweet == nil {
		return nil, apperr.NotFound(op, "agent %s has no queued tweets", agentID)
	}
	return tweet, nil
}

// DueForPosting reports whether the agent's posting interval has elapsed.
// An agent that never posted is always due.
func DueForPosting(agent *models.Agent, now time.Time, defaultInterval time.Duration) bool {
	last := agent.TwitterOAuth.LastTweetedAt
	if last == nil {
		return true
	}
	interval := defaultInterval
	if agent.TwitterOAuth.PostTweetsInterval > 0 {
		interval = time.Duration(agent.TwitterOAuth.PostTweetsInterval) * time.Minute
	}
	return !last.Add(interval).After(now)
}

// ParseGeneratedTweets extracts tweets from generated text. Output wrapped
// in <tweet> elements is read element by element, anything else line by
// line. Blank entries are dropped.
func ParseGeneratedTweets(text string) []string {
	var raw []string
	if matches := tweetTag.FindAllStringSubmatch(text, -1); len(matches) > 0 {
		for _, m := range matches {
			raw = append(raw, m[1])
		}
	} else {
		raw = strings.Split(text, "\n")
	}

	out := make([]string, 0, len(raw))
	for _, line := range raw {
		line = listMarker.ReplaceAllString(strings.TrimSpace(line), "")
		line = strings.TrimSpace(strings.Trim(line, `"`))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func tweetPrompt(c models.Character, count int) (string, string) {
	var system strings.Builder
	if c.Intro != "" {
		fmt.Fprintf(&system, "<intro>%s</intro>\n\n", c.Intro)
	}
	system.WriteString("You will generate tweets based on the following attributes:\n")
	for _, attr := range []struct{ tag, value string }{
		{"bio", c.Bio},
		{"lore", c.Lore},
		{"knowledge", c.Knowledge},
		{"topics", c.Topics},
		{"style", c.Style},
		{"adjectives", c.Adjectives},
	} {
		if attr.value != "" {
			fmt.Fprintf(&system, "<%s>%s</%s>\n", attr.tag, attr.value, attr.tag)
		}
	}
	if c.Rules != "" {
		fmt.Fprintf(&system, "\nRULES:\n<rules>%s</rules>\n", c.Rules)
	}
	system.WriteString("\nAnswer with <tweets><tweet>...</tweet></tweets> and nothing else.")

	prompt := fmt.Sprintf("Generate %d tweets following these guidelines. ", count)
	if c.Language == "cn" {
		prompt += "Tweets must be in Chinese. "
	} else {
		prompt += "Tweets must be in English. "
	}
	if c.WithHashTags {
		prompt += "Can use hashtags or emojis."
	} else {
		prompt += "No hashtags or emojis allowed."
	}
	return system.String(), prompt
}
