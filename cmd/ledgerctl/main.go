// Package main provides ledgerctl, the operator CLI: schema migration, the
// in-process job scheduler, and run-once job triggers for an external
// scheduler.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agent-ledger/internal/app"
	"agent-ledger/internal/config"
	"agent-ledger/internal/database"
	"agent-ledger/internal/jobs"
	"agent-ledger/pkg/logger"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operate the agent ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		migrateCmd(),
		scheduleCmd(),
		jobCmd("refresh-profiles", "Refresh the X profile snapshot of every creator", jobs.ProfileRefresh),
		jobCmd("refresh-tokens", "Renew posting tokens that expire soon", jobs.TokenRefresh),
		jobCmd("generate-tweets", "Top up the tweet queue of every posting agent", jobs.TweetGeneration),
		jobCmd("post-tweets", "Post the next queued tweet of every due agent", jobs.TweetPosting),
	)
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				return database.AutoMigrate(a.DB, a.Log)
			})
		},
	}
}

func scheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run every job on its cron spec until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				scheduler, err := jobs.NewScheduler(a.Jobs, a.Config.Jobs, a.Log)
				if err != nil {
					return err
				}
				scheduler.Start()
				a.Log.Infof("Scheduler running %d jobs", scheduler.Entries())

				<-ctx.Done()
				a.Log.Info("Stopping scheduler...")

				stopCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
				defer cancel()
				return scheduler.Stop(stopCtx)
			})
		},
	}
}

func jobCmd(use, short, job string) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				ctx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()
				return a.Jobs.Run(ctx, job)
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Abort the run after this long")
	return cmd
}

// withApp loads configuration, wires the services and runs fn with a context
// cancelled on SIGINT or SIGTERM.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.NewLogger(!cfg.App.IsProduction())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return fn(ctx, a)
}
