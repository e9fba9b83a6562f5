// Package adapter defines the collaborator interfaces the pipeline consumes
// and a factory registry for their implementations.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/ratelimit"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/types"
)

// DownloadInfo carries the metadata discovered when a download stream opens.
type DownloadInfo struct {
	// ContentLength is -1 when the source does not report one.
	ContentLength int64
	// SHA256/SHA1 are source-reported hashes, empty when unavailable.
	SHA256 string
	SHA1   string
}

// Source is the registry artifacts are enumerated from and downloaded out of.
// Listing calls are subject to the shared rate limiter internally; opening a
// download stream is not, so the transfer worker gates it explicitly.
type Source interface {
	// ValidateCredentials performs a cheap authenticated call.
	ValidateCredentials(ctx context.Context) error

	// ListProjects returns all projects visible to the credentials.
	ListProjects(ctx context.Context) ([]types.Project, error)

	// ListRepositories returns the Maven repositories of one project.
	ListRepositories(ctx context.Context, project types.Project) ([]types.Repository, error)

	// EachArtifact lazily enumerates the artifacts of one repository,
	// calling fn for each. Enumeration stops when fn returns an error.
	EachArtifact(ctx context.Context, repo types.Repository, fn func(types.ArtifactRef) error) error

	// OpenDownload opens a byte stream for one artifact.
	OpenDownload(ctx context.Context, ref types.ArtifactRef) (io.ReadCloser, DownloadInfo, error)
}

// Destination is the store artifacts are uploaded into.
type Destination interface {
	// ValidateCredentials performs a cheap authenticated call.
	ValidateCredentials(ctx context.Context) error

	// ResolveRepository maps a version class to a destination repository.
	ResolveRepository(ctx context.Context, snapshot bool) (string, error)

	// Exists reports whether the artifact is already present, returning
	// its SHA-256 when the store exposes one.
	Exists(ctx context.Context, repository string, ref types.ArtifactRef) (hash string, found bool, err error)

	// Upload streams the artifact into the repository. size is -1 when
	// unknown, in which case the body is sent chunked.
	Upload(ctx context.Context, repository string, ref types.ArtifactRef, body io.Reader, size int64) error

	// RequiresContentLength reports whether Upload must be given a known
	// size, forcing the buffered transfer path for unsized artifacts.
	RequiresContentLength() bool
}

// Deps carries the shared collaborators adapters may need.
type Deps struct {
	Limiter *ratelimit.Limiter
}

// SourceFactory creates a source adapter from configuration.
type SourceFactory interface {
	Create(ctx context.Context, cfg *types.Config, deps Deps) (Source, error)
}

// DestinationFactory creates a destination adapter from configuration.
type DestinationFactory interface {
	Create(ctx context.Context, cfg *types.Config, deps Deps) (Destination, error)
}

var (
	sourceRegistry      = map[string]SourceFactory{}
	destinationRegistry = map[string]DestinationFactory{}
)

// RegisterSourceFactory registers one source adapter factory.
func RegisterSourceFactory(name string, factory SourceFactory) error {
	if name == "" {
		return errors.New("invalid adapter name")
	}
	if factory == nil {
		return errors.New("empty adapter factory")
	}
	if _, exist := sourceRegistry[name]; exist {
		return fmt.Errorf("source factory for %s already exists", name)
	}
	sourceRegistry[name] = factory
	return nil
}

// RegisterDestinationFactory registers one destination adapter factory.
func RegisterDestinationFactory(name string, factory DestinationFactory) error {
	if name == "" {
		return errors.New("invalid adapter name")
	}
	if factory == nil {
		return errors.New("empty adapter factory")
	}
	if _, exist := destinationRegistry[name]; exist {
		return fmt.Errorf("destination factory for %s already exists", name)
	}
	destinationRegistry[name] = factory
	return nil
}

// GetSource creates the source adapter registered under name.
func GetSource(ctx context.Context, name string, cfg *types.Config, deps Deps) (Source, error) {
	factory, exist := sourceRegistry[name]
	if !exist {
		return nil, fmt.Errorf("source factory for %s not found", name)
	}
	return factory.Create(ctx, cfg, deps)
}

// GetDestination creates the destination adapter registered under name.
func GetDestination(ctx context.Context, name string, cfg *types.Config, deps Deps) (Destination, error) {
	factory, exist := destinationRegistry[name]
	if !exist {
		return nil, fmt.Errorf("destination factory for %s not found", name)
	}
	return factory.Create(ctx, cfg, deps)
}
