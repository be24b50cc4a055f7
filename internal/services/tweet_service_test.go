package services

import (
	"testing"
	"time"

	"agent-ledger/internal/apperr"
	"agent-ledger/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const generated = `<tweets>
<tweet>gm builders</tweet>
<tweet>"blocks are cheap, attention is not"</tweet>
<tweet>   </tweet>
<tweet>3 reasons to ship today</tweet>
</tweets>`

func postingAgent(t *testing.T, env *testEnv) *models.Agent {
	t.Helper()
	owner := env.createUser(t, "owner", nil)
	agent := env.createAgent(t, owner)
	activate(t, env, owner, agent)
	return authorize(t, env, agent, 7200)
}

func TestParseGeneratedTweets(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"tagged", generated, []string{"gm builders", "blocks are cheap, attention is not", "3 reasons to ship today"}},
		{"numbered lines", "1. first\n2) second\n\n- third", []string{"first", "second", "third"}},
		{"leading digits kept", "100x is not a plan", []string{"100x is not a plan"}},
		{"empty", "  \n ", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseGeneratedTweets(tt.in))
		})
	}
}

func TestGenerateTweetsRespectsQueueDepth(t *testing.T) {
	env := newTestEnv(t)
	agent := postingAgent(t, env)
	env.text.text = generated

	n, err := env.tweets.GenerateTweets(env.ctx, agent)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, env.text.prompts, 1)
	assert.Contains(t, env.text.prompts[0], "Generate 10 tweets")

	// three queued is still at the threshold
	n, err = env.tweets.GenerateTweets(env.ctx, agent)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = env.tweets.GenerateTweets(env.ctx, agent)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, env.text.prompts, 2)

	queued, err := env.repo.CountUnsentTweets(env.ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), queued)
}

func TestGenerateTweetsGeneratorFailure(t *testing.T) {
	env := newTestEnv(t)
	agent := postingAgent(t, env)
	env.text.err = errUpstream

	_, err := env.tweets.GenerateTweets(env.ctx, agent)
	assert.ErrorIs(t, err, apperr.ErrTransientExternal)
	assert.ErrorIs(t, err, errUpstream)
}

func TestSendNextTweet(t *testing.T) {
	env := newTestEnv(t)
	agent := postingAgent(t, env)

	none, err := env.tweets.SendNextTweet(env.ctx, agent)
	require.NoError(t, err)
	assert.Nil(t, none)

	env.text.text = generated
	_, err = env.tweets.GenerateTweets(env.ctx, agent)
	require.NoError(t, err)

	env.clock.Advance(time.Minute)
	sent, err := env.tweets.SendNextTweet(env.ctx, agent)
	require.NoError(t, err)
	require.NotNil(t, sent)
	assert.True(t, sent.IsSent)
	assert.Equal(t, models.TweetStatusSent, sent.Status)
	assert.Equal(t, "post-"+sent.Content, sent.PostedID)
	require.Len(t, env.poster.posted, 1)

	queued, err := env.repo.CountUnsentTweets(env.ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), queued)

	stored, err := env.repo.GetAgentByID(env.ctx, agent.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.TwitterOAuth.LastTweetedAt)
	assert.True(t, stored.TwitterOAuth.LastTweetedAt.Equal(env.clock.Now()))
}

func TestSendNextTweetFailureKeepsTweetQueued(t *testing.T) {
	env := newTestEnv(t)
	agent := postingAgent(t, env)
	env.text.text = "<tweet>only one</tweet>"
	_, err := env.tweets.GenerateTweets(env.ctx, agent)
	require.NoError(t, err)

	env.poster.err = errUpstream
	failed, err := env.tweets.SendNextTweet(env.ctx, agent)
	assert.ErrorIs(t, err, apperr.ErrTransientExternal)
	require.NotNil(t, failed)
	assert.Equal(t, models.TweetStatusFailed, failed.Status)

	next, err := env.repo.GetOldestUnsentTweet(env.ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, failed.ID, next.ID)
	assert.Equal(t, models.TweetStatusFailed, next.Status)

	stored, err := env.repo.GetAgentByID(env.ctx, agent.ID)
	require.NoError(t, err)
	assert.True(t, stored.TwitterOAuth.IsAuthenticated)
	require.NotNil(t, stored.TwitterOAuth.LastTrialAt)
	assert.Nil(t, stored.TwitterOAuth.LastTweetedAt)
}

func TestSendNextTweetExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	agent := postingAgent(t, env)
	env.text.text = "<tweet>only one</tweet>"
	_, err := env.tweets.GenerateTweets(env.ctx, agent)
	require.NoError(t, err)

	env.poster.err = apperr.Unauthorized("post status", "token expired")
	failed, err := env.tweets.SendNextTweet(env.ctx, agent)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	require.NotNil(t, failed)
	assert.Equal(t, models.TweetStatusTokenExpired, failed.Status)

	stored, err := env.repo.GetAgentByID(env.ctx, agent.ID)
	require.NoError(t, err)
	assert.False(t, stored.TwitterOAuth.IsAuthenticated)

	active, err := env.agents.FindActiveAgentsDueForTweetGeneration(env.ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestDueForPosting(t *testing.T) {
	last := epoch.Add(-20 * time.Minute)
	agent := &models.Agent{}

	assert.True(t, DueForPosting(agent, epoch, 30*time.Minute))

	agent.TwitterOAuth.LastTweetedAt = &last
	assert.False(t, DueForPosting(agent, epoch, 30*time.Minute))
	assert.True(t, DueForPosting(agent, epoch, 20*time.Minute))

	agent.TwitterOAuth.PostTweetsInterval = 15
	assert.True(t, DueForPosting(agent, epoch, 30*time.Minute))
	agent.TwitterOAuth.PostTweetsInterval = 60
	assert.False(t, DueForPosting(agent, epoch, 30*time.Minute))
}

func TestExpiredWindowStopsTweetGeneration(t *testing.T) {
	env := newTestEnv(t)
	agent := postingAgent(t, env)

	active, err := env.agents.FindActiveAgentsDueForTweetGeneration(env.ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, agent.ID, active[0].ID)

	env.clock.Advance(8 * 24 * time.Hour)
	active, err = env.agents.FindActiveAgentsDueForTweetGeneration(env.ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestSendNow(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner", nil)
	other := env.createUser(t, "other", nil)
	agent := env.createAgent(t, owner)

	_, err := env.tweets.SendNow(env.ctx, agent.ID, owner.ID)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	authorize(t, env, agent, 7200)
	_, err = env.tweets.SendNow(env.ctx, agent.ID, other.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = env.tweets.SendNow(env.ctx, agent.ID, owner.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	env.text.text = "<tweet>gm</tweet>"
	sent, err := env.tweets.SendNow(env.ctx, agent.ID, owner.ID)
	require.NoError(t, err)
	assert.True(t, sent.IsSent)
	assert.Equal(t, []string{"gm"}, env.poster.posted)
}
