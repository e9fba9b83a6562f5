package coding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httputil "github.com/eden-toolkit/coding-nexus-migrator/module/migrate/http"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/http/auth/bearer"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/http/modifier"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/ratelimit"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/types"
)

// requestLimitCode is the application-level throttle error the open API
// returns inside a 200 response.
const requestLimitCode = "RequestLimitExceeded"

// newClient constructs a CODING open-API client. API calls go through a
// retrying HTTP client and are gated by the shared rate limiter; download
// streams use a plain client so response bodies are never buffered.
func newClient(cfg *types.SourceConfig, limiter *ratelimit.Limiter) *client {
	retrying := retryablehttp.NewClient()
	retrying.RetryMax = 3
	retrying.Logger = nil
	retrying.HTTPClient = &http.Client{Transport: httputil.GetHTTPTransport()}

	return &client{
		api:        retrying,
		stream:     &http.Client{Transport: httputil.GetHTTPTransport()},
		endpoint:   strings.TrimSuffix(cfg.Endpoint, "/") + "/",
		authorizer: bearer.NewAuthorizer(cfg.Token),
		teamID:     cfg.TeamID,
		mavenBase:  strings.TrimSuffix(cfg.MavenEndpoint, "/"),
		mavenRepos: cfg.MavenRepos,
		limiter:    limiter,
		logger:     log.With().Str("component", "coding-client").Logger(),
	}
}

type client struct {
	api        *retryablehttp.Client
	stream     *http.Client
	endpoint   string
	authorizer modifier.Modifier
	teamID     int64
	mavenBase  string
	mavenRepos map[string]types.CredentialsConfig
	limiter    *ratelimit.Limiter
	logger     zerolog.Logger
}

type apiError struct {
	Code    string `json:"Code"`
	Message string `json:"Message"`
}

type envelope struct {
	Response struct {
		Error *apiError       `json:"Error"`
		Data  json.RawMessage `json:"Data"`
	} `json:"Response"`
}

// post sends one open-API action and decodes Response.Data into out.
// A RequestLimitExceeded envelope is retried once after re-acquiring a
// token; a second throttle is surfaced as a transient error for the caller.
func (c *client) post(ctx context.Context, action string, payload interface{}, out interface{}) error {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Acquire(ctx); err != nil {
			return err
		}

		data, err := c.postOnce(ctx, action, payload)
		if err != nil {
			return err
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return fmt.Errorf("decode %s response: %w", action, err)
		}

		if apiErr := env.Response.Error; apiErr != nil {
			if apiErr.Code == requestLimitCode && attempt == 0 {
				c.logger.Warn().Str("action", action).Msg("Rate limit hit, retrying after next token")
				continue
			}
			cause := fmt.Errorf("api error %s: %s", apiErr.Code, apiErr.Message)
			if apiErr.Code == requestLimitCode {
				return types.Transient(cause)
			}
			return types.Permanent(cause)
		}

		if out == nil || env.Response.Data == nil {
			return nil
		}
		if err := json.Unmarshal(env.Response.Data, out); err != nil {
			return fmt.Errorf("decode %s data: %w", action, err)
		}
		return nil
	}
}

func (c *client) postOnce(ctx context.Context, action string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", action, err)
	}

	url := c.endpoint + "?Action=" + action
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if err := c.authorizer.Modify(req.Request); err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.api.Do(req)
	if err != nil {
		return nil, types.Transient(fmt.Errorf("%s: %w", action, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.Transient(fmt.Errorf("read %s response: %w", action, err))
	}
	if err := types.ClassifyStatus(resp.StatusCode, string(data)); err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	return data, nil
}

type projectInfo struct {
	ID          int64  `json:"Id"`
	Name        string `json:"Name"`
	DisplayName string `json:"DisplayName"`
	Description string `json:"Description"`
}

type projectPage struct {
	ProjectList []projectInfo `json:"ProjectList"`
	TotalCount  int           `json:"TotalCount"`
}

func (c *client) listProjects(ctx context.Context, pageNumber, pageSize int) ([]projectInfo, error) {
	payload := map[string]interface{}{
		"PageNumber": pageNumber,
		"PageSize":   pageSize,
	}
	var page projectPage
	if err := c.post(ctx, "DescribeCodingProjects", payload, &page); err != nil {
		return nil, err
	}
	return page.ProjectList, nil
}

type repositoryInfo struct {
	ID   int64  `json:"Id"`
	Name string `json:"Name"`
	Type int    `json:"Type"`
}

type repositoryPage struct {
	InstanceSet []repositoryInfo `json:"InstanceSet"`
}

func (c *client) listRepositories(ctx context.Context, projectID int64) ([]repositoryInfo, error) {
	payload := map[string]interface{}{
		"ProjectId":  projectID,
		"PageNumber": 1,
		"PageSize":   100,
	}
	var page repositoryPage
	if err := c.post(ctx, "DescribeArtifactRepositoryList", payload, &page); err != nil {
		return nil, err
	}
	return page.InstanceSet, nil
}

type packageVersion struct {
	Package        string `json:"Package"`
	PackageVersion string `json:"PackageVersion"`
}

type packagePage struct {
	InstanceSet []packageVersion `json:"InstanceSet"`
}

// listPackages returns one page of package versions of a Maven repository.
func (c *client) listPackages(ctx context.Context, project, repository string, pageNumber, pageSize int) ([]packageVersion, error) {
	payload := map[string]interface{}{
		"PageNumber": pageNumber,
		"PageSize":   pageSize,
		"Rule": map[string]interface{}{
			"ArtifactType": []int{types.RepoTypeMaven},
			"ProjectName":  []string{project},
			"Repository":   []string{repository},
		},
	}
	var page packagePage
	if err := c.post(ctx, "DescribeTeamArtifacts", payload, &page); err != nil {
		return nil, err
	}
	return page.InstanceSet, nil
}

type fileInfo struct {
	Path        string `json:"Path"`
	DownloadURL string `json:"DownloadUrl"`
	Size        int64  `json:"Size"`
	Sha256      string `json:"Sha256"`
	Sha1        string `json:"Sha1"`
}

type filePage struct {
	InstanceSet []fileInfo `json:"InstanceSet"`
}

func (c *client) listVersionFiles(ctx context.Context, project, repository, pkg, version string) ([]fileInfo, error) {
	payload := map[string]interface{}{
		"Project":           project,
		"Repository":        repository,
		"ContinuationToken": "",
		"PageSize":          1000,
		"Artifacts": []map[string]string{
			{"PackageName": pkg, "VersionName": version},
		},
	}
	var page filePage
	if err := c.post(ctx, "DescribeArtifactRepositoryFileList", payload, &page); err != nil {
		return nil, err
	}
	return page.InstanceSet, nil
}

// openDownload opens the artifact byte stream. Maven-host URLs carry the
// per-repository basic auth from config; everything else rides the API token
// already embedded in the signed download URL.
func (c *client) openDownload(ctx context.Context, ref types.ArtifactRef) (io.ReadCloser, int64, error) {
	target := ref.DownloadURL
	if target == "" {
		target = fmt.Sprintf("https://%d.coding.net/p/%s/d/artifacts/%s/raw/%s",
			c.teamID, ref.Project, ref.SourceRepository, ref.SourcePath)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, -1, err
	}

	if c.mavenBase != "" && strings.HasPrefix(target, c.mavenBase) {
		if creds, ok := c.mavenRepos[ref.SourceRepository]; ok {
			req.SetBasicAuth(creds.Username, creds.Password)
		}
	}

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, -1, types.Transient(fmt.Errorf("download %s: %w", ref.SourcePath, err))
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, -1, fmt.Errorf("download %s: %w", ref.SourcePath, types.ClassifyStatus(resp.StatusCode, string(body)))
	}

	return resp.Body, resp.ContentLength, nil
}
