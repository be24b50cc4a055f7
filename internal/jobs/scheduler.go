package jobs

import (
	"context"
	"fmt"
	"time"

	"agent-ledger/internal/config"
	"agent-ledger/pkg/logger"

	"github.com/robfig/cron/v3"
)

type errUnknownJob string

func (e errUnknownJob) Error() string {
	return fmt.Sprintf("unknown job %q", string(e))
}

// Scheduler runs the jobs on their cron specs. A job still running when its
// next tick fires is skipped for that tick.
type Scheduler struct {
	cron   *cron.Cron
	runner *Runner
	log    *logger.Logger
}

// NewScheduler registers every job with a non-empty spec
func NewScheduler(runner *Runner, cfg config.JobsConfig, log *logger.Logger) (*Scheduler, error) {
	cl := cronLogger{log: log}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		runner: runner,
		log:    log,
	}

	specs := []struct {
		name string
		spec string
	}{
		{ProfileRefresh, cfg.ProfileRefreshSpec},
		{TokenRefresh, cfg.TokenRefreshSpec},
		{TweetGeneration, cfg.GenerateTweetsSpec},
		{TweetPosting, cfg.PostTweetsSpec},
	}
	for _, j := range specs {
		if j.spec == "" {
			continue
		}
		name := j.name
		if _, err := s.cron.AddFunc(j.spec, func() {
			_ = s.runner.Run(context.Background(), name)
		}); err != nil {
			return nil, fmt.Errorf("invalid cron spec for %s: %w", name, err)
		}
		log.Infof("[%s] Scheduled (%s)", name, j.spec)
	}
	return s, nil
}

// Start begins running jobs in the background
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running jobs until ctx is done
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Entries returns the number of registered jobs
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// cronLogger adapts the service logger to cron.Logger
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.SugaredLogger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
