package migrate

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/eden-toolkit/coding-nexus-migrator/config"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/adapter"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/adapter/coding"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/ratelimit"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/types"
	"github.com/eden-toolkit/coding-nexus-migrator/util/common/printer"
)

// GetProjectsCmd returns the projects command.
func GetProjectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List source projects and their Maven repositories",
		Run:   runProjects,
	}
}

func runProjects(cmd *cobra.Command, args []string) {
	cfg, err := types.LoadConfig(config.Global.ConfigPath)
	if err != nil {
		pterm.Error.Printfln("Failed to load configuration: %v", err)
		os.Exit(types.ExitSetupError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter := ratelimit.New(cfg.Source.RateLimit.RequestsPerSecond, cfg.Source.RateLimit.Burst)
	source, err := adapter.GetSource(ctx, coding.Name, cfg, adapter.Deps{Limiter: limiter})
	if err != nil {
		pterm.Error.Printfln("Failed to create source adapter: %v", err)
		os.Exit(types.ExitSetupError)
	}

	projects, err := source.ListProjects(ctx)
	if err != nil {
		pterm.Error.Printfln("Failed to list projects: %v", err)
		os.Exit(types.ExitSetupError)
	}

	type projectRow struct {
		Name         string `json:"name"`
		DisplayName  string `json:"displayName"`
		Repositories string `json:"repositories"`
	}
	var rows []projectRow
	for _, project := range projects {
		repos, err := source.ListRepositories(ctx, project)
		if err != nil {
			pterm.Error.Printfln("Failed to list repositories of %s: %v", project.Name, err)
			os.Exit(types.ExitSetupError)
		}
		names := make([]string, 0, len(repos))
		for _, r := range repos {
			names = append(names, r.Name)
		}
		repositories := strings.Join(names, ", ")
		if repositories == "" {
			repositories = "-"
		}
		rows = append(rows, projectRow{
			Name:         project.Name,
			DisplayName:  project.DisplayName,
			Repositories: repositories,
		})
	}

	if len(rows) == 0 {
		pterm.Info.Println("No projects visible to the configured credentials")
		return
	}

	if err := printer.PrintTable(rows, printer.ColumnMapping{
		{"name", "Project"},
		{"displayName", "Display Name"},
		{"repositories", "Maven Repositories"},
	}); err != nil {
		fmt.Println(err)
		os.Exit(types.ExitSetupError)
	}
}
