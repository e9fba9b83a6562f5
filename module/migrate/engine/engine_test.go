package engine

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/adapter"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/ledger"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/ratelimit"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/types"
)

// fakeSource serves artifacts from memory and records download attempts.
type fakeSource struct {
	mu        sync.Mutex
	refs      map[string][]types.ArtifactRef // repository name -> refs
	content   map[string][]byte              // ref key -> bytes
	noHash    bool
	noLength  bool
	badHash   bool
	failTimes map[string]int // ref key -> remaining transient download failures
	downloads map[string]int
	blockOn   chan struct{} // when set, downloads block until ctx ends
}

func (f *fakeSource) ValidateCredentials(context.Context) error { return nil }

func (f *fakeSource) ListProjects(context.Context) ([]types.Project, error) {
	return []types.Project{{ID: 1, Name: "demo", DisplayName: "Demo"}}, nil
}

func (f *fakeSource) ListRepositories(_ context.Context, p types.Project) ([]types.Repository, error) {
	var repos []types.Repository
	var id int64
	for name := range f.refs {
		id++
		repos = append(repos, types.Repository{ID: id, Name: name, Type: types.RepoTypeMaven, Project: p.Name})
	}
	return repos, nil
}

func (f *fakeSource) EachArtifact(ctx context.Context, repo types.Repository, fn func(types.ArtifactRef) error) error {
	for _, ref := range f.refs[repo.Name] {
		if err := fn(ref); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeSource) OpenDownload(ctx context.Context, ref types.ArtifactRef) (io.ReadCloser, adapter.DownloadInfo, error) {
	if f.blockOn != nil {
		select {
		case <-f.blockOn:
		case <-ctx.Done():
			return nil, adapter.DownloadInfo{}, types.Cancelled(ctx.Err())
		}
	}

	key := ref.Key()
	f.mu.Lock()
	f.downloads[key]++
	remaining := f.failTimes[key]
	if remaining > 0 {
		f.failTimes[key]--
	}
	data := f.content[key]
	f.mu.Unlock()

	if remaining > 0 {
		return nil, adapter.DownloadInfo{}, types.Transient(errors.New("connection reset"))
	}

	info := adapter.DownloadInfo{ContentLength: int64(len(data))}
	if f.noLength {
		info.ContentLength = -1
	}
	if !f.noHash {
		sum := sha256.Sum256(data)
		info.SHA256 = hex.EncodeToString(sum[:])
	}
	if f.badHash {
		info.SHA256 = "0000000000000000000000000000000000000000000000000000000000000000"
	}
	return io.NopCloser(bytes.NewReader(data)), info, nil
}

func (f *fakeSource) downloadCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.downloads[key]
}

// fakeDest stores uploads in memory.
type fakeDest struct {
	mu          sync.Mutex
	uploads     map[string][]byte // repository path -> content
	uploadCount map[string]int
	existing    map[string]string // repository path -> sha256
	uploadErr   error
	requireLen  bool
}

func (f *fakeDest) ValidateCredentials(context.Context) error { return nil }

func (f *fakeDest) ResolveRepository(_ context.Context, snapshot bool) (string, error) {
	if snapshot {
		return "maven-snapshots", nil
	}
	return "maven-releases", nil
}

func (f *fakeDest) Exists(_ context.Context, _ string, ref types.ArtifactRef) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hash, ok := f.existing[ref.RepositoryPath()]
	return hash, ok, nil
}

func (f *fakeDest) Upload(_ context.Context, _ string, ref types.ArtifactRef, body io.Reader, size int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadCount[ref.RepositoryPath()]++
	if f.uploadErr != nil {
		return f.uploadErr
	}
	if f.requireLen && size < 0 {
		return types.Permanent(errors.New("length required"))
	}
	f.uploads[ref.RepositoryPath()] = data
	return nil
}

func (f *fakeDest) RequiresContentLength() bool { return f.requireLen }

func (f *fakeDest) uploaded(path string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.uploads[path]
	return data, ok
}

func (f *fakeDest) uploadsFor(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploadCount[path]
}

func newFakes() (*fakeSource, *fakeDest) {
	source := &fakeSource{
		refs:      map[string][]types.ArtifactRef{},
		content:   map[string][]byte{},
		failTimes: map[string]int{},
		downloads: map[string]int{},
	}
	dest := &fakeDest{
		uploads:     map[string][]byte{},
		uploadCount: map[string]int{},
		existing:    map[string]string{},
	}
	return source, dest
}

func addArtifact(f *fakeSource, repo, group, artifact, version string, data []byte) types.ArtifactRef {
	ref := types.ArtifactRef{
		GroupID:          group,
		ArtifactID:       artifact,
		Version:          version,
		Packaging:        "jar",
		Project:          "demo",
		SourceRepository: repo,
		SourcePath:       fmt.Sprintf("%s/%s/%s-%s.jar", group, artifact, artifact, version),
		Size:             int64(len(data)),
	}
	f.refs[repo] = append(f.refs[repo], ref)
	f.content[ref.Key()] = data
	return ref
}

func testConfig(t *testing.T) *types.Config {
	t.Helper()
	cfg := &types.Config{
		Source: types.SourceConfig{
			Token:  "t",
			TeamID: 1,
			RateLimit: types.RateLimitConfig{
				RequestsPerSecond: 1000,
				Burst:             100,
			},
		},
		Dest: types.DestinationConfig{
			Endpoint:    "https://nexus.test",
			Credentials: types.CredentialsConfig{Username: "u", Password: "p"},
			Repository:  "maven-releases",
		},
		Ledger: types.LedgerConfig{Dir: t.TempDir()},
	}
	cfg.ApplyDefaults()
	cfg.Migration.Concurrency = 2
	cfg.Migration.QueueSize = 4
	cfg.Migration.RetryBaseDelay = types.Duration(time.Millisecond)
	cfg.Migration.RetryMaxDelay = types.Duration(5 * time.Millisecond)
	cfg.Migration.DrainTimeout = types.Duration(50 * time.Millisecond)
	cfg.Migration.FlushInterval = types.Duration(time.Hour)
	return cfg
}

func runEngine(t *testing.T, cfg *types.Config, source adapter.Source, dest adapter.Destination,
	opts Options) (*Engine, types.Summary, error) {
	t.Helper()
	limiter := ratelimit.New(cfg.Source.RateLimit.RequestsPerSecond, cfg.Source.RateLimit.Burst)
	eng := New(cfg, source, dest, limiter, zerolog.Nop(), opts)
	summary, err := eng.Run(context.Background())
	return eng, summary, err
}

func TestRunMigratesEverything(t *testing.T) {
	source, dest := newFakes()
	a := addArtifact(source, "repo", "com.acme", "core", "1.0.0", []byte("core bytes"))
	b := addArtifact(source, "repo", "com.acme", "api", "1.0.0", []byte("api bytes!"))

	cfg := testConfig(t)
	eng, summary, err := runEngine(t, cfg, source, dest, Options{})
	require.NoError(t, err)

	assert.Equal(t, int64(2), summary.Done)
	assert.Equal(t, int64(0), summary.Failed)
	assert.Equal(t, int64(0), summary.Skipped)
	assert.Equal(t, int64(20), summary.Bytes)
	assert.Equal(t, int64(0), summary.Unverified)
	assert.Equal(t, StateCompleted, eng.State())
	assert.Equal(t, int64(0), eng.InFlightBytes())

	data, ok := dest.uploaded(a.RepositoryPath())
	require.True(t, ok)
	assert.Equal(t, []byte("core bytes"), data)
	_, ok = dest.uploaded(b.RepositoryPath())
	assert.True(t, ok)

	// Outcomes persisted for the next run.
	led, err := ledger.Open(ledger.FilePath(cfg.Ledger.Dir, "demo"), zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, led.IsMigrated(a.Key()))
	assert.True(t, led.IsMigrated(b.Key()))
}

func TestRunSkipsAlreadyMigrated(t *testing.T) {
	source, dest := newFakes()
	ref := addArtifact(source, "repo", "com.acme", "core", "1.0.0", []byte("data"))

	cfg := testConfig(t)
	led, err := ledger.Open(ledger.FilePath(cfg.Ledger.Dir, "demo"), zerolog.Nop())
	require.NoError(t, err)
	led.RecordSuccess(ref.Key(), "somehash", "maven-releases")
	require.NoError(t, led.Flush())

	_, summary, err := runEngine(t, cfg, source, dest, Options{})
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.Skipped)
	assert.Equal(t, int64(0), summary.Done)
	assert.Equal(t, 0, source.downloadCount(ref.Key()))
}

func TestRunSkipsArtifactsPresentAtDestination(t *testing.T) {
	source, dest := newFakes()
	ref := addArtifact(source, "repo", "com.acme", "core", "1.0.0", []byte("data"))
	dest.existing[ref.RepositoryPath()] = "existinghash"

	cfg := testConfig(t)
	_, summary, err := runEngine(t, cfg, source, dest, Options{})
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.Skipped)
	assert.Equal(t, 0, source.downloadCount(ref.Key()))

	// The presence is remembered so the next run does not ask again.
	led, err := ledger.Open(ledger.FilePath(cfg.Ledger.Dir, "demo"), zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, led.IsMigrated(ref.Key()))
}

func TestDuplicateCoordinatesTransferOnce(t *testing.T) {
	source, dest := newFakes()
	a := addArtifact(source, "repo-one", "com.acme", "core", "1.0.0", []byte("data"))
	addArtifact(source, "repo-two", "com.acme", "core", "1.0.0", []byte("data"))

	cfg := testConfig(t)
	_, summary, err := runEngine(t, cfg, source, dest, Options{})
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.Total())
	assert.Equal(t, int64(1), summary.Done)
	assert.Equal(t, 1, dest.uploadsFor(a.RepositoryPath()))
}

func TestTransientFailureRetriesThenSucceeds(t *testing.T) {
	source, dest := newFakes()
	ref := addArtifact(source, "repo", "com.acme", "core", "1.0.0", []byte("data"))
	source.failTimes[ref.Key()] = 2

	cfg := testConfig(t)
	_, summary, err := runEngine(t, cfg, source, dest, Options{})
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.Done)
	assert.Equal(t, int64(0), summary.Failed)
	assert.Equal(t, 3, source.downloadCount(ref.Key()))
}

func TestTransientFailureExhaustsAttempts(t *testing.T) {
	source, dest := newFakes()
	ref := addArtifact(source, "repo", "com.acme", "core", "1.0.0", []byte("data"))
	source.failTimes[ref.Key()] = 100

	cfg := testConfig(t)
	_, summary, err := runEngine(t, cfg, source, dest, Options{})
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.Failed)
	assert.Equal(t, cfg.Migration.MaxAttempts, source.downloadCount(ref.Key()))
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, ref.Key(), summary.Failures[0].Key)
	assert.Equal(t, types.KindTransient, summary.Failures[0].Kind)
	assert.Equal(t, cfg.Migration.MaxAttempts, summary.Failures[0].Attempts)
}

func TestPermanentFailureDoesNotRetry(t *testing.T) {
	source, dest := newFakes()
	ref := addArtifact(source, "repo", "com.acme", "core", "1.0.0", []byte("data"))
	dest.uploadErr = types.Permanent(errors.New("400 bad request"))

	cfg := testConfig(t)
	_, summary, err := runEngine(t, cfg, source, dest, Options{})
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.Failed)
	assert.Equal(t, 1, source.downloadCount(ref.Key()))
	assert.Equal(t, 1, dest.uploadsFor(ref.RepositoryPath()))

	// The failure is remembered and skipped next run.
	source2 := source
	source2.downloads = map[string]int{}
	_, rerun, err := runEngine(t, cfg, source2, dest, Options{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rerun.Skipped)
	assert.Equal(t, int64(0), rerun.Failed)
}

func TestRetryFailedClearsFailureRecords(t *testing.T) {
	source, dest := newFakes()
	ref := addArtifact(source, "repo", "com.acme", "core", "1.0.0", []byte("data"))

	cfg := testConfig(t)
	led, err := ledger.Open(ledger.FilePath(cfg.Ledger.Dir, "demo"), zerolog.Nop())
	require.NoError(t, err)
	led.RecordFailure(ref.Key(), types.KindPermanent, 3, "was rejected")
	require.NoError(t, led.Flush())

	_, summary, err := runEngine(t, cfg, source, dest, Options{RetryFailed: true})
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.Done)
	assert.Equal(t, int64(0), summary.Skipped)
}

func TestHashMismatchRetriesOnceThenFails(t *testing.T) {
	source, dest := newFakes()
	ref := addArtifact(source, "repo", "com.acme", "core", "1.0.0", []byte("data"))
	source.badHash = true

	cfg := testConfig(t)
	cfg.Migration.MaxAttempts = 5
	_, summary, err := runEngine(t, cfg, source, dest, Options{})
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.Failed)
	assert.Equal(t, 2, source.downloadCount(ref.Key()), "integrity mismatch gets one re-download")
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, types.KindIntegrity, summary.Failures[0].Kind)
	assert.Equal(t, 2, summary.Failures[0].Attempts)
}

func TestMissingSourceHashCountsUnverified(t *testing.T) {
	source, dest := newFakes()
	source.noHash = true
	ref := addArtifact(source, "repo", "com.acme", "core", "1.0.0", []byte("data"))
	ref.SHA256 = ""

	cfg := testConfig(t)
	_, summary, err := runEngine(t, cfg, source, dest, Options{})
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.Done)
	assert.Equal(t, int64(1), summary.Unverified)
}

func TestDryRunTransfersNothing(t *testing.T) {
	source, dest := newFakes()
	ref := addArtifact(source, "repo", "com.acme", "core", "1.0.0", []byte("data"))

	cfg := testConfig(t)
	cfg.Migration.DryRun = true
	_, summary, err := runEngine(t, cfg, source, dest, Options{})
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.Done)
	assert.Equal(t, int64(0), summary.Bytes)
	assert.Equal(t, 0, source.downloadCount(ref.Key()))
	assert.Equal(t, 0, dest.uploadsFor(ref.RepositoryPath()))

	// Dry runs leave no success records behind.
	led, err := ledger.Open(ledger.FilePath(cfg.Ledger.Dir, "demo"), zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, led.IsMigrated(ref.Key()))
}

func TestFiltersRestrictEnumeration(t *testing.T) {
	source, dest := newFakes()
	keep := addArtifact(source, "repo", "com.acme", "core", "1.0.0", []byte("keep"))
	drop := addArtifact(source, "repo", "org.other", "lib", "2.0.0", []byte("drop"))

	cfg := testConfig(t)
	cfg.Filters.Patterns = []string{"com/acme/**"}
	_, summary, err := runEngine(t, cfg, source, dest, Options{})
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.Total())
	assert.Equal(t, 1, dest.uploadsFor(keep.RepositoryPath()))
	assert.Equal(t, 0, dest.uploadsFor(drop.RepositoryPath()))
}

func TestSnapshotsRouteToSnapshotRepository(t *testing.T) {
	source, dest := newFakes()
	ref := addArtifact(source, "repo", "com.acme", "core", "1.0.0-SNAPSHOT", []byte("snap"))

	cfg := testConfig(t)
	_, summary, err := runEngine(t, cfg, source, dest, Options{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Done)

	led, err := ledger.Open(ledger.FilePath(cfg.Ledger.Dir, "demo"), zerolog.Nop())
	require.NoError(t, err)
	entry, ok := led.Get(ref.Key())
	require.True(t, ok)
	assert.Equal(t, "maven-snapshots", entry.Repository)
}

func TestCancellationStopsRun(t *testing.T) {
	source, dest := newFakes()
	source.blockOn = make(chan struct{}) // downloads hang until cancelled
	addArtifact(source, "repo", "com.acme", "core", "1.0.0", []byte("data"))
	addArtifact(source, "repo", "com.acme", "api", "1.0.0", []byte("data"))

	cfg := testConfig(t)
	limiter := ratelimit.New(1000, 100)
	eng := New(cfg, source, dest, limiter, zerolog.Nop(), Options{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	summary, err := eng.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateStopped, eng.State())
	assert.Equal(t, int64(0), eng.InFlightBytes())
	assert.Equal(t, int64(0), summary.Done)
	assert.GreaterOrEqual(t, summary.Cancelled, int64(1))
}

func TestAbortAfterConsecutivePermanentFailures(t *testing.T) {
	source, dest := newFakes()
	for i := 0; i < 5; i++ {
		addArtifact(source, "repo", "com.acme", fmt.Sprintf("lib-%d", i), "1.0.0", []byte("data"))
	}
	dest.uploadErr = types.Permanent(errors.New("403 forbidden"))

	cfg := testConfig(t)
	cfg.Migration.Concurrency = 1
	cfg.Migration.AbortThreshold = 2

	_, summary, err := runEngine(t, cfg, source, dest, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrRunAborted)
	assert.GreaterOrEqual(t, summary.Failed, int64(2))
	assert.Less(t, summary.Failed, int64(5), "abort should stop before every artifact fails")
}

func TestBudgetReservedBeforeDownloadOpens(t *testing.T) {
	source, dest := newFakes()
	gate := make(chan struct{})
	source.blockOn = gate
	ref := addArtifact(source, "repo", "com.acme", "core", "1.0.0", []byte("core bytes"))

	cfg := testConfig(t)
	cfg.Migration.Concurrency = 1
	limiter := ratelimit.New(1000, 100)
	eng := New(cfg, source, dest, limiter, zerolog.Nop(), Options{})

	done := make(chan struct{})
	var summary types.Summary
	var runErr error
	go func() {
		defer close(done)
		summary, runErr = eng.Run(context.Background())
	}()

	// The download is held open by the gate; the reservation must already
	// be charged while the worker sits inside OpenDownload.
	require.Eventually(t, func() bool {
		return eng.InFlightBytes() == ref.Size
	}, time.Second, time.Millisecond)

	close(gate)
	<-done
	require.NoError(t, runErr)
	assert.Equal(t, int64(1), summary.Done)
	assert.Equal(t, int64(0), eng.InFlightBytes())
}

func TestQueuedTasksCancelledOnSignal(t *testing.T) {
	source, dest := newFakes()
	gate := make(chan struct{})
	source.blockOn = gate
	for i := 0; i < 5; i++ {
		addArtifact(source, "repo", "com.acme", fmt.Sprintf("lib-%d", i), "1.0.0", []byte("data"))
	}

	cfg := testConfig(t)
	cfg.Migration.Concurrency = 1
	cfg.Migration.QueueSize = 8
	cfg.Migration.DrainTimeout = types.Duration(time.Second)
	limiter := ratelimit.New(1000, 100)
	eng := New(cfg, source, dest, limiter, zerolog.Nop(), Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	var summary types.Summary
	var runErr error
	go func() {
		defer close(done)
		summary, runErr = eng.Run(ctx)
	}()

	// Wait until one transfer is in flight and the rest sit in the queue.
	require.Eventually(t, func() bool {
		return eng.InFlightBytes() > 0 && len(eng.queue) == 4
	}, time.Second, time.Millisecond)

	cancel()
	close(gate) // the in-flight transfer completes inside the drain grace

	<-done
	require.Error(t, runErr)
	assert.ErrorIs(t, runErr, context.Canceled)
	assert.Equal(t, int64(1), summary.Done, "only the in-flight transfer may finish")
	assert.Equal(t, int64(4), summary.Cancelled, "queued tasks must not be transferred after cancellation")
	assert.Equal(t, int64(0), eng.InFlightBytes())
}

func TestAbortStopsEnumeration(t *testing.T) {
	source, dest := newFakes()
	const total = 100
	for i := 0; i < total; i++ {
		addArtifact(source, "repo", "com.acme", fmt.Sprintf("lib-%d", i), "1.0.0", []byte("data"))
	}
	dest.uploadErr = types.Permanent(errors.New("403 forbidden"))

	cfg := testConfig(t)
	cfg.Migration.Concurrency = 1
	cfg.Migration.QueueSize = 2
	cfg.Migration.AbortThreshold = 2

	_, summary, err := runEngine(t, cfg, source, dest, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrRunAborted)
	assert.Less(t, summary.Total(), int64(total), "enumeration keeps listing after the abort")
}

func TestUnusableRecordsDirStillTransfers(t *testing.T) {
	source, dest := newFakes()
	ref := addArtifact(source, "repo", "com.acme", "core", "1.0.0", []byte("data"))

	cfg := testConfig(t)
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0o600))
	cfg.Ledger.Dir = filepath.Join(blocker, "records")

	_, summary, err := runEngine(t, cfg, source, dest, Options{})
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.Done)
	assert.Equal(t, int64(0), summary.Failed, "a records failure degrades dedup, it does not fail the artifact")
	_, ok := dest.uploaded(ref.RepositoryPath())
	assert.True(t, ok)
}

func TestUnknownSizeBuffersInChunks(t *testing.T) {
	source, dest := newFakes()
	dest.requireLen = true
	source.noLength = true
	ref := addArtifact(source, "repo", "com.acme", "core", "1.0.0", []byte("buffered artifact bytes"))
	source.refs["repo"][0].Size = 0

	cfg := testConfig(t)
	cfg.Memory.ChunkSize = types.Size(4)
	_, summary, err := runEngine(t, cfg, source, dest, Options{})
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.Done)
	data, ok := dest.uploaded(ref.RepositoryPath())
	require.True(t, ok)
	assert.Equal(t, []byte("buffered artifact bytes"), data)
}

func TestMigratedCoordinatesGroupedByGroupID(t *testing.T) {
	source, dest := newFakes()
	addArtifact(source, "repo", "com.acme", "core", "1.0.0", []byte("a"))
	addArtifact(source, "repo", "com.acme", "api", "1.0.0", []byte("b"))
	addArtifact(source, "repo", "org.other", "lib", "2.0.0", []byte("c"))

	cfg := testConfig(t)
	eng, summary, err := runEngine(t, cfg, source, dest, Options{})
	require.NoError(t, err)
	require.Equal(t, int64(3), summary.Done)

	groups := eng.migratedByGroup()
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"api:1.0.0", "core:1.0.0"}, groups["com.acme"])
	assert.Equal(t, []string{"lib:2.0.0"}, groups["org.other"])
}

func TestEngineRunsOnlyOnce(t *testing.T) {
	source, dest := newFakes()
	cfg := testConfig(t)
	limiter := ratelimit.New(1000, 100)
	eng := New(cfg, source, dest, limiter, zerolog.Nop(), Options{})

	_, err := eng.Run(context.Background())
	require.NoError(t, err)
	_, err = eng.Run(context.Background())
	require.Error(t, err)
}
