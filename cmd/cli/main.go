package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	migratecmd "github.com/eden-toolkit/coding-nexus-migrator/cmd/migrate"
	"github.com/eden-toolkit/coding-nexus-migrator/config"
	"github.com/eden-toolkit/coding-nexus-migrator/internal/style"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/types"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cnm",
		Short: "Migrate Maven artifacts from CODING DevOps to Nexus",
		Long:  `cnm enumerates Maven artifact repositories in CODING DevOps projects and streams their artifacts into a Sonatype Nexus 3 instance, resuming where a previous run left off.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			style.Init(!config.Global.NoColor)

			logWriter := zerolog.ConsoleWriter{
				Out:        os.Stderr,
				TimeFormat: time.RFC3339,
				NoColor:    config.Global.NoColor,
			}
			log.Logger = log.Output(logWriter)
			if config.Global.Verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
		},
	}

	addGlobalFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(migratecmd.GetMigrateCmd())
	rootCmd.AddCommand(migratecmd.GetProjectsCmd())
	rootCmd.AddCommand(migratecmd.GetVerifyCmd())
	rootCmd.AddCommand(migratecmd.GetInitConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(types.ExitSetupError)
	}
}

// addGlobalFlags binds the persistent flags directly to the global config.
func addGlobalFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&config.Global.ConfigPath, "config", "c", "config.yaml",
		"Path to configuration file")
	flags.BoolVarP(&config.Global.Verbose, "verbose", "v", false,
		"Enable debug logging")
	flags.BoolVar(&config.Global.NoColor, "no-color", false,
		"Disable coloured output")
}
