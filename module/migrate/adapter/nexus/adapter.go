// Package nexus implements the destination adapter for Sonatype Nexus
// Repository Manager 3 hosted Maven repositories.
package nexus

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	adp "github.com/eden-toolkit/coding-nexus-migrator/module/migrate/adapter"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/types"
)

// Name is the registry key of this adapter.
const Name = "nexus"

func init() {
	if err := adp.RegisterDestinationFactory(Name, new(factory)); err != nil {
		return
	}
}

type factory struct{}

func (f *factory) Create(_ context.Context, cfg *types.Config, _ adp.Deps) (adp.Destination, error) {
	return &adapter{
		client:   newClient(&cfg.Dest),
		cfg:      cfg.Dest,
		resolved: map[bool]string{},
	}, nil
}

type adapter struct {
	client *client
	cfg    types.DestinationConfig

	mu       sync.Mutex
	resolved map[bool]string
}

func (a *adapter) ValidateCredentials(ctx context.Context) error {
	if _, err := a.client.getRepositories(ctx); err != nil {
		return fmt.Errorf("destination credential validation failed: %w", err)
	}
	return nil
}

// ResolveRepository maps a version class to a hosted repository. Explicit
// configuration wins; failing that the repository list is probed once for a
// maven-format sibling whose name indicates the class, and the answer cached.
func (a *adapter) ResolveRepository(ctx context.Context, snapshot bool) (string, error) {
	if snapshot && a.cfg.SnapshotRepository != "" {
		return a.cfg.SnapshotRepository, nil
	}
	if !snapshot && a.cfg.ReleasesRepository != "" {
		return a.cfg.ReleasesRepository, nil
	}
	if a.cfg.Repository != "" {
		if !snapshot {
			return a.cfg.Repository, nil
		}
		return a.detectSnapshotRepository(ctx)
	}
	return "", fmt.Errorf("%w: no repository configured for %s versions",
		types.ErrRepositoryNotFound, versionClass(snapshot))
}

// detectSnapshotRepository probes for a snapshot sibling of the configured
// repository, falling back to the configured repository itself when its own
// name already marks it as a snapshot host.
func (a *adapter) detectSnapshotRepository(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if name, ok := a.resolved[true]; ok {
		return name, nil
	}

	if strings.Contains(strings.ToLower(a.cfg.Repository), "snapshot") {
		a.resolved[true] = a.cfg.Repository
		return a.cfg.Repository, nil
	}

	repos, err := a.client.getRepositories(ctx)
	if err != nil {
		return "", err
	}
	for _, candidate := range []string{
		a.cfg.Repository + "-snapshots",
		a.cfg.Repository + "-snapshot",
		"maven-snapshots",
	} {
		for _, repo := range repos {
			if repo.Name == candidate && repo.Format == "maven2" && repo.Type == "hosted" {
				a.resolved[true] = repo.Name
				return repo.Name, nil
			}
		}
	}

	return "", fmt.Errorf("%w: no snapshot repository found next to %q",
		types.ErrRepositoryNotFound, a.cfg.Repository)
}

func (a *adapter) Exists(ctx context.Context, repository string, ref types.ArtifactRef) (string, bool, error) {
	asset, err := a.client.searchAsset(ctx, repository, ref)
	if err != nil {
		return "", false, err
	}
	if asset == nil {
		return "", false, nil
	}
	return asset.Checksum["sha256"], true, nil
}

func (a *adapter) Upload(ctx context.Context, repository string, ref types.ArtifactRef, body io.Reader, size int64) error {
	return a.client.uploadAsset(ctx, repository, ref, body, size)
}

func (a *adapter) RequiresContentLength() bool {
	return a.cfg.RequireContentLength
}

func versionClass(snapshot bool) string {
	if snapshot {
		return "snapshot"
	}
	return "release"
}
