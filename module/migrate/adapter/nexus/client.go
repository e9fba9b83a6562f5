package nexus

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	httputil "github.com/eden-toolkit/coding-nexus-migrator/module/migrate/http"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/http/auth/basic"
	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/types"
)

// newClient constructs a nexus client
func newClient(dest *types.DestinationConfig) *client {
	username := dest.Credentials.Username
	password := dest.Credentials.Password
	if username == "" && dest.Credentials.Token != "" {
		username = dest.Credentials.Token
	}
	base := strings.TrimSuffix(dest.Endpoint, "/")

	return &client{
		client: httputil.NewClient(
			&http.Client{
				Transport: httputil.GetHTTPTransport(httputil.WithInsecure(dest.Insecure)),
			},
			basic.NewAuthorizer(username, password),
		),
		url: base,
	}
}

type client struct {
	client *httputil.Client
	url    string
}

// NexusRepository represents a repository from Nexus V3
type NexusRepository struct {
	Name   string `json:"name"`
	Format string `json:"format"`
	Type   string `json:"type"`
	URL    string `json:"url"`
	Online bool   `json:"online"`
}

// NexusAsset represents an asset from Nexus V3
type NexusAsset struct {
	ID         string            `json:"id"`
	Repository string            `json:"repository"`
	Format     string            `json:"format"`
	Path       string            `json:"path"`
	Checksum   map[string]string `json:"checksum"`
	FileSize   int64             `json:"fileSize"`
}

// NexusAssetSearchResponse represents the asset search response from Nexus V3
type NexusAssetSearchResponse struct {
	Items             []NexusAsset `json:"items"`
	ContinuationToken string       `json:"continuationToken"`
}

// getRepositories retrieves all repositories from Nexus
func (c *client) getRepositories(ctx context.Context) ([]NexusRepository, error) {
	endpoint := fmt.Sprintf("%s/service/rest/v1/repositories", c.url)

	var repositories []NexusRepository
	if err := c.client.Get(ctx, endpoint, &repositories); err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}

	return repositories, nil
}

// searchAsset looks up the asset of one Maven coordinate in a repository.
func (c *client) searchAsset(ctx context.Context, repository string, ref types.ArtifactRef) (*NexusAsset, error) {
	q := url.Values{}
	q.Set("repository", repository)
	q.Set("maven.groupId", ref.GroupID)
	q.Set("maven.artifactId", ref.ArtifactID)
	q.Set("maven.baseVersion", ref.Version)
	q.Set("maven.extension", ref.Packaging)
	if ref.Classifier != "" {
		q.Set("maven.classifier", ref.Classifier)
	}
	endpoint := fmt.Sprintf("%s/service/rest/v1/search/assets?%s", c.url, q.Encode())

	var resp NexusAssetSearchResponse
	if err := c.client.Get(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("failed to search assets: %w", err)
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}
	return &resp.Items[0], nil
}

// uploadAsset streams the artifact into the repository under the standard
// Maven layout path. size -1 sends the body chunked.
func (c *client) uploadAsset(ctx context.Context, repository string, ref types.ArtifactRef, body io.Reader, size int64) error {
	endpoint := fmt.Sprintf("%s/repository/%s/%s", c.url, repository, ref.RepositoryPath())

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeFor(ref.Packaging))
	if size >= 0 {
		req.ContentLength = size
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return types.Transient(fmt.Errorf("failed to execute upload: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK &&
		resp.StatusCode != http.StatusNoContent {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("upload %s: %w", ref.RepositoryPath(), types.ClassifyStatus(resp.StatusCode, string(data)))
	}

	return nil
}

// contentTypeFor maps a Maven packaging to the upload content type.
func contentTypeFor(packaging string) string {
	switch strings.ToLower(packaging) {
	case "jar", "war":
		return "application/java-archive"
	case "pom", "xml":
		return "application/xml"
	default:
		return "application/octet-stream"
	}
}
