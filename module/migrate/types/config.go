package types

import (
	"fmt"
	"os"
	"time"

	"github.com/inhies/go-bytesize"
	"gopkg.in/yaml.v3"
)

// Size is a byte count that unmarshals from human-readable YAML values
// such as "512MB" or plain integers.
type Size int64

func (s *Size) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		var n int64
		if err2 := value.Decode(&n); err2 != nil {
			return fmt.Errorf("invalid size %q: %w", value.Value, err)
		}
		*s = Size(n)
		return nil
	}
	parsed, err := bytesize.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", raw, err)
	}
	*s = Size(parsed)
	return nil
}

func (s Size) Bytes() int64 { return int64(s) }

func (s Size) String() string { return bytesize.New(float64(s)).String() }

// Duration unmarshals from YAML values such as "500ms" or "1m30s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// Config is the top-level migration configuration.
type Config struct {
	Version   string            `yaml:"version"`
	Migration MigrationConfig   `yaml:"migration"`
	Source    SourceConfig      `yaml:"source"`
	Dest      DestinationConfig `yaml:"destination"`
	Memory    MemoryConfig      `yaml:"memory"`
	Filters   FiltersConfig     `yaml:"filters"`
	Ledger    LedgerConfig      `yaml:"ledger"`
}

// MigrationConfig contains settings for the pipeline run itself.
type MigrationConfig struct {
	Concurrency    int      `yaml:"concurrency"`
	QueueSize      int      `yaml:"queueSize"`
	MaxAttempts    int      `yaml:"maxAttempts"`
	RetryBaseDelay Duration `yaml:"retryBaseDelay"`
	RetryMaxDelay  Duration `yaml:"retryMaxDelay"`
	DrainTimeout   Duration `yaml:"drainTimeout"`
	FlushInterval  Duration `yaml:"flushInterval"`
	AbortThreshold int      `yaml:"abortThreshold"`
	DryRun         bool     `yaml:"dryRun"`
}

// SourceConfig describes the CODING registry the artifacts come from.
type SourceConfig struct {
	Endpoint      string                       `yaml:"endpoint"`
	Token         string                       `yaml:"token"`
	TeamID        int64                        `yaml:"teamId"`
	Projects      []string                     `yaml:"projects"`
	MavenEndpoint string                       `yaml:"mavenEndpoint"`
	MavenRepos    map[string]CredentialsConfig `yaml:"mavenRepositories"`
	RateLimit     RateLimitConfig              `yaml:"rateLimit"`
	Pagination    PaginationConfig             `yaml:"pagination"`
}

// RateLimitConfig bounds calls to the source API.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst"`
}

// PaginationConfig bounds source listing calls.
type PaginationConfig struct {
	PageSize int `yaml:"pageSize"`
	MaxPages int `yaml:"maxPages"`
}

// DestinationConfig describes the Nexus store artifacts are pushed to.
type DestinationConfig struct {
	Endpoint           string            `yaml:"endpoint"`
	Credentials        CredentialsConfig `yaml:"credentials"`
	Repository         string            `yaml:"repository"`
	ReleasesRepository string            `yaml:"releasesRepository"`
	SnapshotRepository string            `yaml:"snapshotRepository"`
	// RequireContentLength forces the full-buffer upload path when the
	// source does not report an artifact size up front.
	RequireContentLength bool `yaml:"requireContentLength"`
	Insecure             bool `yaml:"insecure"`
}

// CredentialsConfig is a username/password or token pair.
type CredentialsConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password,omitempty"`
	Token    string `yaml:"token,omitempty"`
}

// MemoryConfig bounds bytes held in memory across in-flight transfers.
type MemoryConfig struct {
	Limit Size `yaml:"limit"`
	// AverageObjectSize is reserved against the budget when the source
	// listing did not report a size. The reservation is never resized.
	AverageObjectSize Size `yaml:"averageObjectSize"`
	ChunkSize         Size `yaml:"chunkSize"`
}

// FiltersConfig restricts which artifacts enter the pipeline.
type FiltersConfig struct {
	// Patterns are glob patterns matched against the artifact repository
	// path; * matches one segment, ** matches across segments.
	Patterns []string `yaml:"patterns"`
}

// LedgerConfig locates the persisted migration records.
type LedgerConfig struct {
	Dir string `yaml:"dir"`
}

// Defaults mirrored from the original deployment limits of the source API
// (30 req/s ceiling, 25 used for headroom).
const (
	DefaultSourceEndpoint    = "https://e.coding.net/open-api/"
	defaultConcurrency       = 4
	defaultQueueSize         = 32
	defaultMaxAttempts       = 3
	defaultRetryBaseDelay    = Duration(500 * time.Millisecond)
	defaultRetryMaxDelay     = Duration(30 * time.Second)
	defaultDrainTimeout      = Duration(30 * time.Second)
	defaultFlushInterval     = Duration(30 * time.Second)
	defaultAbortThreshold    = 10
	defaultRequestsPerSecond = 25
	defaultBurst             = 5
	defaultPageSize          = 100
	defaultMaxPages          = 50
	defaultMemoryLimit       = Size(100 << 20)
	defaultAverageObject     = Size(8 << 20)
	defaultChunkSize         = Size(64 << 10)
	defaultLedgerDir         = "migration-records"
)

// LoadConfig loads, expands and validates the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	expanded := os.Expand(string(data), os.Getenv)

	var config Config
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// ApplyDefaults fills zero values with the documented defaults.
func (c *Config) ApplyDefaults() {
	if c.Source.Endpoint == "" {
		c.Source.Endpoint = DefaultSourceEndpoint
	}
	if c.Migration.Concurrency <= 0 {
		c.Migration.Concurrency = defaultConcurrency
	}
	if c.Migration.QueueSize <= 0 {
		c.Migration.QueueSize = defaultQueueSize
	}
	if c.Migration.MaxAttempts <= 0 {
		c.Migration.MaxAttempts = defaultMaxAttempts
	}
	if c.Migration.RetryBaseDelay <= 0 {
		c.Migration.RetryBaseDelay = defaultRetryBaseDelay
	}
	if c.Migration.RetryMaxDelay <= 0 {
		c.Migration.RetryMaxDelay = defaultRetryMaxDelay
	}
	if c.Migration.DrainTimeout <= 0 {
		c.Migration.DrainTimeout = defaultDrainTimeout
	}
	if c.Migration.FlushInterval <= 0 {
		c.Migration.FlushInterval = defaultFlushInterval
	}
	if c.Migration.AbortThreshold <= 0 {
		c.Migration.AbortThreshold = defaultAbortThreshold
	}
	if c.Source.RateLimit.RequestsPerSecond <= 0 {
		c.Source.RateLimit.RequestsPerSecond = defaultRequestsPerSecond
	}
	if c.Source.RateLimit.Burst <= 0 {
		c.Source.RateLimit.Burst = defaultBurst
	}
	if c.Source.Pagination.PageSize <= 0 {
		c.Source.Pagination.PageSize = defaultPageSize
	}
	if c.Source.Pagination.MaxPages <= 0 {
		c.Source.Pagination.MaxPages = defaultMaxPages
	}
	if c.Memory.Limit <= 0 {
		c.Memory.Limit = defaultMemoryLimit
	}
	if c.Memory.AverageObjectSize <= 0 {
		c.Memory.AverageObjectSize = defaultAverageObject
	}
	if c.Memory.ChunkSize <= 0 {
		c.Memory.ChunkSize = defaultChunkSize
	}
	if c.Ledger.Dir == "" {
		c.Ledger.Dir = defaultLedgerDir
	}
}

// Validate performs basic validation on the configuration.
func (c *Config) Validate() error {
	if c.Source.Token == "" {
		return fmt.Errorf("source token must be provided")
	}
	if c.Source.TeamID <= 0 {
		return fmt.Errorf("source teamId must be provided")
	}
	if c.Dest.Endpoint == "" {
		return fmt.Errorf("destination endpoint cannot be empty")
	}
	if c.Dest.Credentials.Username == "" && c.Dest.Credentials.Token == "" {
		return fmt.Errorf("either token or username must be provided for destination authentication")
	}
	if c.Dest.Credentials.Username != "" && c.Dest.Credentials.Password == "" {
		return fmt.Errorf("password must be provided when using username authentication")
	}
	if c.Dest.Repository == "" && (c.Dest.ReleasesRepository == "" || c.Dest.SnapshotRepository == "") {
		return fmt.Errorf("destination repository must be set, or both releasesRepository and snapshotRepository")
	}
	if c.Memory.AverageObjectSize > c.Memory.Limit {
		return fmt.Errorf("averageObjectSize (%s) cannot exceed memory limit (%s)",
			c.Memory.AverageObjectSize, c.Memory.Limit)
	}
	return nil
}
