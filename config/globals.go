package config

// GlobalFlags contains common flags used across commands
type GlobalFlags struct {
	ConfigPath string
	Verbose    bool
	NoColor    bool
	Format     string

	// Command-specific configurations
	Migrate MigrateFlags
}

// MigrateFlags holds migrate command specific overrides. Zero values mean
// the configuration file wins.
type MigrateFlags struct {
	DryRun      bool
	RetryFailed bool
	Concurrency int
	Projects    []string
}

// Global is the shared instance of GlobalFlags
var Global = GlobalFlags{}
