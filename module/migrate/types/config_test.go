package types

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `
source:
  token: abc123
  teamId: 42
destination:
  endpoint: https://nexus.example.com
  credentials:
    username: admin
    password: secret
  repository: maven-releases
`

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, DefaultSourceEndpoint, cfg.Source.Endpoint)
	assert.Equal(t, 4, cfg.Migration.Concurrency)
	assert.Equal(t, 32, cfg.Migration.QueueSize)
	assert.Equal(t, 3, cfg.Migration.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Migration.RetryBaseDelay.Std())
	assert.Equal(t, 30*time.Second, cfg.Migration.DrainTimeout.Std())
	assert.Equal(t, 10, cfg.Migration.AbortThreshold)
	assert.Equal(t, float64(25), cfg.Source.RateLimit.RequestsPerSecond)
	assert.Equal(t, 5, cfg.Source.RateLimit.Burst)
	assert.Equal(t, int64(100<<20), cfg.Memory.Limit.Bytes())
	assert.Equal(t, int64(8<<20), cfg.Memory.AverageObjectSize.Bytes())
	assert.Equal(t, "migration-records", cfg.Ledger.Dir)
}

func TestLoadConfig_ExpandsEnvironment(t *testing.T) {
	t.Setenv("CNM_TEST_TOKEN", "tok-from-env")
	cfg, err := LoadConfig(writeConfig(t, `
source:
  token: ${CNM_TEST_TOKEN}
  teamId: 42
destination:
  endpoint: https://nexus.example.com
  credentials:
    username: admin
    password: secret
  repository: maven-releases
`))
	require.NoError(t, err)
	assert.Equal(t, "tok-from-env", cfg.Source.Token)
}

func TestLoadConfig_ParsesSizesAndDurations(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig+`
migration:
  retryBaseDelay: 250ms
  retryMaxDelay: 1m
memory:
  limit: 512MB
  averageObjectSize: 16MB
`))
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Migration.RetryBaseDelay.Std())
	assert.Equal(t, time.Minute, cfg.Migration.RetryMaxDelay.Std())
	assert.Equal(t, int64(512<<20), cfg.Memory.Limit.Bytes())
	assert.Equal(t, int64(16<<20), cfg.Memory.AverageObjectSize.Bytes())
}

func TestLoadConfig_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{
			name: "missing token",
			content: `
source:
  teamId: 42
destination:
  endpoint: https://nexus.example.com
  credentials:
    username: admin
    password: secret
  repository: maven-releases
`,
			errMsg: "token",
		},
		{
			name: "missing team",
			content: `
source:
  token: abc
destination:
  endpoint: https://nexus.example.com
  credentials:
    username: admin
    password: secret
  repository: maven-releases
`,
			errMsg: "teamId",
		},
		{
			name: "missing destination endpoint",
			content: `
source:
  token: abc
  teamId: 42
destination:
  credentials:
    username: admin
    password: secret
  repository: maven-releases
`,
			errMsg: "endpoint",
		},
		{
			name: "username without password",
			content: `
source:
  token: abc
  teamId: 42
destination:
  endpoint: https://nexus.example.com
  credentials:
    username: admin
  repository: maven-releases
`,
			errMsg: "password",
		},
		{
			name: "no repository at all",
			content: `
source:
  token: abc
  teamId: 42
destination:
  endpoint: https://nexus.example.com
  credentials:
    username: admin
    password: secret
`,
			errMsg: "repository",
		},
		{
			name: "average object larger than budget",
			content: minimalConfig + `
memory:
  limit: 10MB
  averageObjectSize: 20MB
`,
			errMsg: "averageObjectSize",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadConfig_SplitRepositoriesAllowed(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
source:
  token: abc
  teamId: 42
destination:
  endpoint: https://nexus.example.com
  credentials:
    username: admin
    password: secret
  releasesRepository: maven-releases
  snapshotRepository: maven-snapshots
`))
	require.NoError(t, err)
	assert.Empty(t, cfg.Dest.Repository)
	assert.Equal(t, "maven-releases", cfg.Dest.ReleasesRepository)
	assert.Equal(t, "maven-snapshots", cfg.Dest.SnapshotRepository)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
