// Package migrate contains the CLI commands around the migration pipeline.
package migrate

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/eden-toolkit/coding-nexus-migrator/config"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/adapter"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/engine"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/ratelimit"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/types"
	"github.com/eden-toolkit/coding-nexus-migrator/util/common/progress"

	// Register the built-in adapters.
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/adapter/coding"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/adapter/nexus"
)

// GetMigrateCmd returns the migrate command.
func GetMigrateCmd() *cobra.Command {
	// Create local variables for flag binding
	var localDryRun bool
	var localRetryFailed bool
	var localConcurrency int
	var localProjects []string

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate artifacts based on configuration",
		Run:   runMigration,
		PreRun: func(cmd *cobra.Command, args []string) {
			// Sync local flags to global config
			config.Global.Migrate.DryRun = localDryRun
			config.Global.Migrate.RetryFailed = localRetryFailed
			config.Global.Migrate.Concurrency = localConcurrency
			config.Global.Migrate.Projects = localProjects
		},
	}
	migrateCmd.Flags().BoolVar(&localDryRun, "dry-run", false, "Report what would migrate without transferring (overrides config)")
	migrateCmd.Flags().BoolVar(&localRetryFailed, "retry-failed", false, "Clear failure records and attempt those artifacts again")
	migrateCmd.Flags().IntVar(&localConcurrency, "concurrency", 0, "Number of concurrent transfers (overrides config)")
	migrateCmd.Flags().StringSliceVar(&localProjects, "project", nil, "Project to migrate, repeatable (overrides config)")
	return migrateCmd
}

func runMigration(cmd *cobra.Command, args []string) {
	cfg, err := loadConfigWithOverrides()
	if err != nil {
		pterm.Error.Printfln("Failed to load configuration: %v", err)
		os.Exit(types.ExitSetupError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter := ratelimit.New(cfg.Source.RateLimit.RequestsPerSecond, cfg.Source.RateLimit.Burst)
	deps := adapter.Deps{Limiter: limiter}

	source, err := adapter.GetSource(ctx, coding.Name, cfg, deps)
	if err != nil {
		pterm.Error.Printfln("Failed to create source adapter: %v", err)
		os.Exit(types.ExitSetupError)
	}
	dest, err := adapter.GetDestination(ctx, nexus.Name, cfg, deps)
	if err != nil {
		pterm.Error.Printfln("Failed to create destination adapter: %v", err)
		os.Exit(types.ExitSetupError)
	}

	eng := engine.New(cfg, source, dest, limiter, log.Logger, engine.Options{
		RetryFailed: config.Global.Migrate.RetryFailed,
	})

	tracker := progress.NewTracker(eng.Snapshot)
	tracker.Start("Migrating artifacts")
	summary, runErr := eng.Run(ctx)
	tracker.Stop()

	cancelled := false
	switch {
	case runErr == nil:
	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		cancelled = true
		pterm.Warning.Println("Migration interrupted, progress has been recorded")
	case errors.Is(runErr, types.ErrRunAborted):
		pterm.Error.Println("Migration aborted after repeated permanent failures, check destination configuration")
	default:
		pterm.Error.Printfln("Migration stopped: %v", runErr)
	}

	printSummary(summary, cfg.Migration.DryRun)
	os.Exit(summary.ExitCode(cancelled))
}

// loadConfigWithOverrides loads the config file and lets command line flags
// win over it.
func loadConfigWithOverrides() (*types.Config, error) {
	cfg, err := types.LoadConfig(config.Global.ConfigPath)
	if err != nil {
		return nil, err
	}
	if config.Global.Migrate.DryRun {
		cfg.Migration.DryRun = true
	}
	if config.Global.Migrate.Concurrency > 0 {
		cfg.Migration.Concurrency = config.Global.Migrate.Concurrency
	}
	if len(config.Global.Migrate.Projects) > 0 {
		cfg.Source.Projects = config.Global.Migrate.Projects
	}
	return cfg, nil
}
