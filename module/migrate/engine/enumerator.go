package engine

import (
	"context"
	"fmt"

	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/types"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/util"
)

// enumerate walks projects, repositories and artifacts, feeding the bounded
// queue. The queue send is the backpressure point: when workers fall behind,
// enumeration and the listing calls behind it stall instead of buffering.
func (e *Engine) enumerate(ctx context.Context) error {
	projects, err := e.selectProjects(ctx)
	if err != nil {
		return err
	}

	// Duplicate coordinates across repositories collapse to one transfer.
	seen := make(map[string]struct{})

	for _, project := range projects {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		repos, err := e.source.ListRepositories(ctx, project)
		if err != nil {
			return fmt.Errorf("list repositories of %s: %w", project.Name, err)
		}
		e.logger.Info().Str("project", project.Name).Int("repositories", len(repos)).Msg("Enumerating project")

		for _, repo := range repos {
			err := e.source.EachArtifact(ctx, repo, func(ref types.ArtifactRef) error {
				if len(e.cfg.Filters.Patterns) > 0 &&
					!util.MatchesPattern(ref.RepositoryPath(), e.cfg.Filters.Patterns) {
					return nil
				}
				key := ref.Key()
				if _, dup := seen[key]; dup {
					return nil
				}
				seen[key] = struct{}{}

				select {
				case e.queue <- types.NewTask(ref):
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			})
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("enumerate %s/%s: %w", repo.Project, repo.Name, err)
			}
		}
	}
	return nil
}

// selectProjects resolves the configured project names against the source,
// or returns everything visible when none are configured.
func (e *Engine) selectProjects(ctx context.Context) ([]types.Project, error) {
	all, err := e.source.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	if len(e.cfg.Source.Projects) == 0 {
		return all, nil
	}

	byName := make(map[string]types.Project, len(all))
	for _, p := range all {
		byName[p.Name] = p
	}

	var selected []types.Project
	for _, name := range e.cfg.Source.Projects {
		p, ok := byName[name]
		if !ok {
			e.logger.Warn().Str("project", name).Msg("Configured project not found at source, skipping")
			continue
		}
		selected = append(selected, p)
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("none of the configured projects exist at the source")
	}
	return selected, nil
}
