// Package jobs holds the periodic work of the service. Every job is a plain
// method on Runner so the operator CLI can trigger one run from an external
// scheduler, and Scheduler can run them in-process on cron specs.
package jobs

import (
	"context"
	"time"

	"agent-ledger/internal/metrics"
	"agent-ledger/internal/services"
	"agent-ledger/pkg/logger"
)

const (
	ProfileRefresh  = "ProfileRefresh"
	TokenRefresh    = "TokenRefresh"
	TweetGeneration = "TweetGeneration"
	TweetPosting    = "TweetPosting"
)

// Runner executes one pass of each job
type Runner struct {
	creators     *services.CreatorService
	agents       *services.AgentService
	tweets       *services.TweetService
	clock        services.Clock
	postInterval time.Duration
	log          *logger.Logger
}

// NewRunner creates a job runner. postInterval is used for agents without
// their own posting interval.
func NewRunner(
	creators *services.CreatorService,
	agents *services.AgentService,
	tweets *services.TweetService,
	clock services.Clock,
	postInterval time.Duration,
	log *logger.Logger,
) *Runner {
	return &Runner{
		creators:     creators,
		agents:       agents,
		tweets:       tweets,
		clock:        clock,
		postInterval: postInterval,
		log:          log,
	}
}

// Run executes the named job once and records its outcome
func (r *Runner) Run(ctx context.Context, name string) error {
	jobs := map[string]func(context.Context) error{
		ProfileRefresh:  r.RefreshProfiles,
		TokenRefresh:    r.RefreshTokens,
		TweetGeneration: r.GenerateTweets,
		TweetPosting:    r.PostTweets,
	}
	job, ok := jobs[name]
	if !ok {
		return errUnknownJob(name)
	}

	start := time.Now()
	err := job(ctx)
	metrics.RecordJobRun(name, err, time.Since(start))
	if err != nil {
		r.log.Errorf("[%s] Run failed: %v", name, err)
	}
	return err
}

// RefreshProfiles merges fresh X profiles into every creator snapshot
func (r *Runner) RefreshProfiles(ctx context.Context) error {
	r.log.Infof("[%s] Updating social profiles of all creators", ProfileRefresh)
	updated, err := r.creators.RefreshAllCreatorProfiles(ctx)
	if err != nil {
		return err
	}
	r.log.Infof("[%s] Updated %d creator profiles", ProfileRefresh, updated)
	return nil
}

// RefreshTokens renews posting tokens that are about to expire
func (r *Runner) RefreshTokens(ctx context.Context) error {
	agents, err := r.agents.FindAgentsToRefreshToken(ctx)
	if err != nil {
		return err
	}
	if len(agents) == 0 {
		return nil
	}

	r.log.Infof("[%s] Refreshing tokens of %d agents", TokenRefresh, len(agents))
	for _, agent := range agents {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		refreshed, err := r.agents.RefreshOAuthToken(ctx, agent.ID)
		if err != nil {
			r.log.Errorf("[%s] Error refreshing agent %s: %v", TokenRefresh, agent.ID, err)
			continue
		}
		if !refreshed.TwitterOAuth.IsAuthenticated {
			r.log.Warnf("[%s] Agent %s lost its X authorization", TokenRefresh, agent.ID)
		}
	}
	return nil
}

// GenerateTweets tops up the tweet queue of every posting agent
func (r *Runner) GenerateTweets(ctx context.Context) error {
	r.log.Infof("[%s] Generating tweets for all agents", TweetGeneration)
	agents, err := r.agents.FindActiveAgentsDueForTweetGeneration(ctx)
	if err != nil {
		return err
	}

	total := 0
	for i := range agents {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := r.tweets.GenerateTweets(ctx, &agents[i])
		if err != nil {
			r.log.Errorf("[%s] Error generating tweets for agent %s: %v", TweetGeneration, agents[i].ID, err)
			continue
		}
		total += n
	}
	r.log.Infof("[%s] Generated %d tweets for %d agents", TweetGeneration, total, len(agents))
	return nil
}

// PostTweets publishes the next queued tweet of every agent whose posting
// interval has elapsed
func (r *Runner) PostTweets(ctx context.Context) error {
	agents, err := r.agents.FindActiveAgentsDueForTweetGeneration(ctx)
	if err != nil {
		return err
	}

	now := r.clock.Now()
	sent := 0
	for i := range agents {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !services.DueForPosting(&agents[i], now, r.postInterval) {
			continue
		}
		tweet, err := r.tweets.SendNextTweet(ctx, &agents[i])
		if err != nil {
			r.log.Errorf("[%s] Error posting for agent %s: %v", TweetPosting, agents[i].ID, err)
			continue
		}
		if tweet != nil {
			sent++
		}
	}
	if sent > 0 {
		r.log.Infof("[%s] Posted %d tweets", TweetPosting, sent)
	}
	return nil
}
