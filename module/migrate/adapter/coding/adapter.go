// Package coding implements the source adapter for the CODING DevOps
// artifact registry open API.
package coding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/rs/zerolog/log"

	adp "github.com/eden-toolkit/coding-nexus-migrator/module/migrate/adapter"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/types"
)

// Name is the registry key of this adapter.
const Name = "coding"

func init() {
	if err := adp.RegisterSourceFactory(Name, new(factory)); err != nil {
		return
	}
}

type factory struct{}

func (f *factory) Create(_ context.Context, cfg *types.Config, deps adp.Deps) (adp.Source, error) {
	if deps.Limiter == nil {
		return nil, errors.New("coding adapter requires a rate limiter")
	}
	return &adapter{
		client:     newClient(&cfg.Source, deps.Limiter),
		pagination: cfg.Source.Pagination,
	}, nil
}

type adapter struct {
	client     *client
	pagination types.PaginationConfig
}

// migratedExtensions are the artifact file types carried over. Checksum and
// metadata sidecar files are regenerated by the destination on upload.
var migratedExtensions = []string{".jar", ".pom", ".war"}

func (a *adapter) ValidateCredentials(ctx context.Context) error {
	_, err := a.client.listProjects(ctx, 1, 1)
	if err != nil {
		return fmt.Errorf("source credential validation failed: %w", err)
	}
	return nil
}

func (a *adapter) ListProjects(ctx context.Context) ([]types.Project, error) {
	var projects []types.Project
	for page := 1; page <= a.pagination.MaxPages; page++ {
		infos, err := a.client.listProjects(ctx, page, a.pagination.PageSize)
		if err != nil {
			return nil, err
		}
		if len(infos) == 0 {
			break
		}
		for _, p := range infos {
			projects = append(projects, types.Project{
				ID:          p.ID,
				Name:        p.Name,
				DisplayName: p.DisplayName,
				Description: p.Description,
			})
		}
		if len(infos) < a.pagination.PageSize {
			break
		}
	}
	return projects, nil
}

func (a *adapter) ListRepositories(ctx context.Context, project types.Project) ([]types.Repository, error) {
	infos, err := a.client.listRepositories(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	repos := make([]types.Repository, 0, len(infos))
	for _, r := range infos {
		if r.Type != types.RepoTypeMaven {
			continue
		}
		repos = append(repos, types.Repository{
			ID:      r.ID,
			Name:    r.Name,
			Type:    r.Type,
			Project: project.Name,
		})
	}
	return repos, nil
}

// EachArtifact walks the repository page by page, expanding each package
// version into its files and calling fn for every eligible artifact. fn
// blocking is the backpressure that keeps listing lazy.
func (a *adapter) EachArtifact(ctx context.Context, repo types.Repository, fn func(types.ArtifactRef) error) error {
	logger := log.With().Str("project", repo.Project).Str("repository", repo.Name).Logger()

	for page := 1; page <= a.pagination.MaxPages; page++ {
		versions, err := a.client.listPackages(ctx, repo.Project, repo.Name, page, a.pagination.PageSize)
		if err != nil {
			return err
		}
		if len(versions) == 0 {
			break
		}

		for _, v := range versions {
			files, err := a.client.listVersionFiles(ctx, repo.Project, repo.Name, v.Package, v.PackageVersion)
			if err != nil {
				return err
			}
			for _, f := range files {
				if !eligibleFile(f.Path) {
					continue
				}
				ref, err := buildRef(repo, v, f)
				if err != nil {
					logger.Warn().Str("path", f.Path).Err(err).Msg("Skipping artifact with unparseable coordinates")
					continue
				}
				if err := fn(ref); err != nil {
					return err
				}
			}
		}

		if len(versions) < a.pagination.PageSize {
			break
		}
	}
	return nil
}

func (a *adapter) OpenDownload(ctx context.Context, ref types.ArtifactRef) (io.ReadCloser, adp.DownloadInfo, error) {
	body, length, err := a.client.openDownload(ctx, ref)
	if err != nil {
		return nil, adp.DownloadInfo{}, err
	}
	return body, adp.DownloadInfo{
		ContentLength: length,
		SHA256:        ref.SHA256,
		SHA1:          ref.SHA1,
	}, nil
}

// eligibleFile reports whether the file is an artifact worth carrying over.
func eligibleFile(filePath string) bool {
	name := strings.ToLower(path.Base(filePath))
	for _, ext := range migratedExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// buildRef derives Maven coordinates from the package name, version and file
// path reported by the listing. Package names are "group:artifact".
func buildRef(repo types.Repository, v packageVersion, f fileInfo) (types.ArtifactRef, error) {
	group, artifact, ok := strings.Cut(v.Package, ":")
	if !ok || group == "" || artifact == "" {
		return types.ArtifactRef{}, fmt.Errorf("%w: package %q", types.ErrMalformedCoordinates, v.Package)
	}

	fileName := path.Base(f.Path)
	ext := path.Ext(fileName)
	if ext == "" {
		return types.ArtifactRef{}, fmt.Errorf("%w: file %q has no extension", types.ErrMalformedCoordinates, fileName)
	}
	packaging := strings.TrimPrefix(strings.ToLower(ext), ".")

	// artifact-version[-classifier].ext
	stem := strings.TrimSuffix(fileName, ext)
	classifier := ""
	if prefix := artifact + "-" + v.PackageVersion; strings.HasPrefix(stem, prefix) {
		rest := strings.TrimPrefix(stem, prefix)
		if strings.HasPrefix(rest, "-") {
			classifier = rest[1:]
		}
	}

	return types.ArtifactRef{
		GroupID:          group,
		ArtifactID:       artifact,
		Version:          v.PackageVersion,
		Packaging:        packaging,
		Classifier:       classifier,
		Project:          repo.Project,
		SourceRepository: repo.Name,
		SourcePath:       f.Path,
		DownloadURL:      f.DownloadURL,
		Size:             f.Size,
		SHA256:           f.Sha256,
		SHA1:             f.Sha1,
	}, nil
}
