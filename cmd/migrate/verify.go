package migrate

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eden-toolkit/coding-nexus-migrator/config"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/adapter"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/adapter/coding"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/adapter/nexus"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/ratelimit"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/types"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/util"
	"github.com/eden-toolkit/coding-nexus-migrator/util/common/progress"
)

// GetVerifyCmd returns the verify command.
func GetVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check configuration, credentials and destination repositories",
		Run:   runVerify,
	}
}

func runVerify(cmd *cobra.Command, args []string) {
	reporter := progress.NewConsoleReporter()
	reporter.Start("Verifying migration setup")
	defer reporter.End()

	cfg, err := types.LoadConfig(config.Global.ConfigPath)
	if err != nil {
		reporter.Error(fmt.Sprintf("Configuration: %v", err))
		os.Exit(types.ExitSetupError)
	}
	reporter.Success("Configuration is valid")

	if err := util.ValidatePatterns(cfg.Filters.Patterns); err != nil {
		reporter.Error(fmt.Sprintf("Filter patterns: %v", err))
		os.Exit(types.ExitSetupError)
	}
	if len(cfg.Filters.Patterns) > 0 {
		reporter.Success(fmt.Sprintf("%d filter pattern(s) compile", len(cfg.Filters.Patterns)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter := ratelimit.New(cfg.Source.RateLimit.RequestsPerSecond, cfg.Source.RateLimit.Burst)
	deps := adapter.Deps{Limiter: limiter}

	failed := false

	reporter.Step("Checking source credentials")
	source, err := adapter.GetSource(ctx, coding.Name, cfg, deps)
	if err == nil {
		err = source.ValidateCredentials(ctx)
	}
	if err != nil {
		reporter.Error(fmt.Sprintf("Source: %v", err))
		failed = true
	} else {
		reporter.Success("Source credentials accepted")
	}

	reporter.Step("Checking destination credentials")
	dest, err := adapter.GetDestination(ctx, nexus.Name, cfg, deps)
	if err == nil {
		err = dest.ValidateCredentials(ctx)
	}
	if err != nil {
		reporter.Error(fmt.Sprintf("Destination: %v", err))
		os.Exit(types.ExitSetupError)
	}
	reporter.Success("Destination credentials accepted")

	for _, snapshot := range []bool{false, true} {
		class := "release"
		if snapshot {
			class = "snapshot"
		}
		name, err := dest.ResolveRepository(ctx, snapshot)
		if err != nil {
			reporter.Error(fmt.Sprintf("No repository for %s versions: %v", class, err))
			failed = true
			continue
		}
		reporter.Success(fmt.Sprintf("%s versions go to %q", class, name))
	}

	if failed {
		os.Exit(types.ExitSetupError)
	}
}
