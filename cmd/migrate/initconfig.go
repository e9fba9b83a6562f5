package migrate

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/eden-toolkit/coding-nexus-migrator/internal/style"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/types"
)

const sampleConfig = `version: "1"

source:
  # CODING open API endpoint, rarely needs changing.
  endpoint: https://e.coding.net/open-api/
  token: ${CODING_TOKEN}
  teamId: 0
  # Leave empty to migrate every visible project.
  projects: []
  # Maven host used for direct downloads, with per-repository credentials.
  mavenEndpoint: ""
  mavenRepositories: {}
  rateLimit:
    requestsPerSecond: 25
    burst: 5

destination:
  endpoint: https://nexus.example.com
  credentials:
    username: ${NEXUS_USERNAME}
    password: ${NEXUS_PASSWORD}
  # Either one repository for everything, or a release/snapshot split.
  repository: maven-releases
  releasesRepository: ""
  snapshotRepository: ""
  requireContentLength: false

migration:
  concurrency: 4
  queueSize: 32
  maxAttempts: 3
  retryBaseDelay: 500ms
  retryMaxDelay: 30s
  drainTimeout: 30s
  abortThreshold: 10
  dryRun: false

memory:
  limit: 100MB
  averageObjectSize: 8MB

filters:
  # Glob patterns over group/artifact/version/file paths, e.g. "com/acme/**".
  patterns: []

ledger:
  dir: migration-records
`

// GetInitConfigCmd returns the init-config command.
func GetInitConfigCmd() *cobra.Command {
	var output string
	var force bool

	initCmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write a sample configuration file",
		Run: func(cmd *cobra.Command, args []string) {
			if _, err := os.Stat(output); err == nil && !force {
				pterm.Error.Printfln("%s already exists, use --force to overwrite", output)
				os.Exit(types.ExitSetupError)
			}
			if err := os.WriteFile(output, []byte(sampleConfig), 0o600); err != nil {
				pterm.Error.Printfln("Failed to write %s: %v", output, err)
				os.Exit(types.ExitSetupError)
			}
			pterm.Success.Printfln("Wrote %s", output)
			pterm.Println(style.Hint("fill in credentials, then run 'cnm verify'"))
		},
	}
	initCmd.Flags().StringVarP(&output, "output", "o", "config.yaml", "Where to write the sample configuration")
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return initCmd
}
