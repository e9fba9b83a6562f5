package nexus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/types"
)

type fakeNexus struct {
	mu           sync.Mutex
	repositories []NexusRepository
	assets       map[string]NexusAsset // query coordinate -> asset
	uploads      map[string][]byte     // path after /repository/ -> body
	uploadStatus int
	repoCalls    int
}

func newFakeNexus() *fakeNexus {
	return &fakeNexus{
		assets:       map[string]NexusAsset{},
		uploads:      map[string][]byte{},
		uploadStatus: http.StatusCreated,
	}
}

func (f *fakeNexus) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/service/rest/v1/repositories", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.repoCalls++
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(f.repositories)
	})
	mux.HandleFunc("/service/rest/v1/search/assets", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		key := fmt.Sprintf("%s:%s:%s:%s",
			q.Get("maven.groupId"), q.Get("maven.artifactId"),
			q.Get("maven.baseVersion"), q.Get("maven.extension"))
		f.mu.Lock()
		asset, ok := f.assets[key]
		f.mu.Unlock()
		resp := NexusAssetSearchResponse{}
		if ok {
			resp.Items = []NexusAsset{asset}
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/repository/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.NotFound(w, r)
			return
		}
		data, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.uploads[strings.TrimPrefix(r.URL.Path, "/repository/")] = data
		status := f.uploadStatus
		f.mu.Unlock()
		w.WriteHeader(status)
	})
	return mux
}

func newTestAdapter(t *testing.T, f *fakeNexus, cfg types.DestinationConfig) *adapter {
	t.Helper()
	server := httptest.NewServer(f.handler())
	t.Cleanup(server.Close)

	cfg.Endpoint = server.URL
	if cfg.Credentials.Username == "" {
		cfg.Credentials = types.CredentialsConfig{Username: "admin", Password: "secret"}
	}
	return &adapter{
		client:   newClient(&cfg),
		cfg:      cfg,
		resolved: map[bool]string{},
	}
}

func mavenHosted(name string) NexusRepository {
	return NexusRepository{Name: name, Format: "maven2", Type: "hosted", Online: true}
}

func TestValidateCredentials(t *testing.T) {
	f := newFakeNexus()
	f.repositories = []NexusRepository{mavenHosted("maven-releases")}
	a := newTestAdapter(t, f, types.DestinationConfig{Repository: "maven-releases"})

	assert.NoError(t, a.ValidateCredentials(context.Background()))
}

func TestResolveRepositoryExplicitSplit(t *testing.T) {
	a := newTestAdapter(t, newFakeNexus(), types.DestinationConfig{
		ReleasesRepository: "rel",
		SnapshotRepository: "snap",
	})

	name, err := a.ResolveRepository(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "rel", name)

	name, err = a.ResolveRepository(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "snap", name)
}

func TestResolveRepositorySingleForReleases(t *testing.T) {
	a := newTestAdapter(t, newFakeNexus(), types.DestinationConfig{Repository: "maven-releases"})

	name, err := a.ResolveRepository(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "maven-releases", name)
}

func TestResolveRepositoryDetectsSnapshotSibling(t *testing.T) {
	f := newFakeNexus()
	f.repositories = []NexusRepository{
		mavenHosted("maven-releases"),
		mavenHosted("maven-releases-snapshots"),
	}
	a := newTestAdapter(t, f, types.DestinationConfig{Repository: "maven-releases"})

	name, err := a.ResolveRepository(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "maven-releases-snapshots", name)

	// Second resolve answers from cache without another listing call.
	_, err = a.ResolveRepository(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, f.repoCalls)
}

func TestResolveRepositoryFallsBackToCommonSnapshotName(t *testing.T) {
	f := newFakeNexus()
	f.repositories = []NexusRepository{
		mavenHosted("maven-releases"),
		mavenHosted("maven-snapshots"),
	}
	a := newTestAdapter(t, f, types.DestinationConfig{Repository: "maven-releases"})

	name, err := a.ResolveRepository(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "maven-snapshots", name)
}

func TestResolveRepositorySnapshotNotFound(t *testing.T) {
	f := newFakeNexus()
	f.repositories = []NexusRepository{mavenHosted("maven-releases")}
	a := newTestAdapter(t, f, types.DestinationConfig{Repository: "maven-releases"})

	_, err := a.ResolveRepository(context.Background(), true)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrRepositoryNotFound)
}

func TestResolveRepositorySnapshotHostConfiguredDirectly(t *testing.T) {
	a := newTestAdapter(t, newFakeNexus(), types.DestinationConfig{Repository: "team-snapshots"})

	name, err := a.ResolveRepository(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "team-snapshots", name)
}

func TestExists(t *testing.T) {
	f := newFakeNexus()
	f.assets["com.acme:core:1.0.0:jar"] = NexusAsset{
		Path:     "com/acme/core/1.0.0/core-1.0.0.jar",
		Checksum: map[string]string{"sha256": "cafebabe"},
	}
	a := newTestAdapter(t, f, types.DestinationConfig{Repository: "maven-releases"})

	ref := types.ArtifactRef{GroupID: "com.acme", ArtifactID: "core", Version: "1.0.0", Packaging: "jar"}
	hash, found, err := a.Exists(context.Background(), "maven-releases", ref)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "cafebabe", hash)

	missing := types.ArtifactRef{GroupID: "com.acme", ArtifactID: "absent", Version: "1.0.0", Packaging: "jar"}
	_, found, err = a.Exists(context.Background(), "maven-releases", missing)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUploadStoresUnderMavenLayout(t *testing.T) {
	f := newFakeNexus()
	a := newTestAdapter(t, f, types.DestinationConfig{Repository: "maven-releases"})

	ref := types.ArtifactRef{GroupID: "com.acme", ArtifactID: "core", Version: "1.0.0", Packaging: "jar"}
	body := strings.NewReader("jar bytes")
	require.NoError(t, a.Upload(context.Background(), "maven-releases", ref, body, 9))

	data, ok := f.uploads["maven-releases/com/acme/core/1.0.0/core-1.0.0.jar"]
	require.True(t, ok)
	assert.Equal(t, []byte("jar bytes"), data)
}

func TestUploadClassifiesRejection(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   types.ErrorKind
	}{
		{"bad request is permanent", http.StatusBadRequest, types.KindPermanent},
		{"unauthorized is permanent", http.StatusUnauthorized, types.KindPermanent},
		{"too many requests is transient", http.StatusTooManyRequests, types.KindTransient},
		{"server error is transient", http.StatusInternalServerError, types.KindTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeNexus()
			f.uploadStatus = tt.status
			a := newTestAdapter(t, f, types.DestinationConfig{Repository: "maven-releases"})

			ref := types.ArtifactRef{GroupID: "g", ArtifactID: "a", Version: "1", Packaging: "jar"}
			err := a.Upload(context.Background(), "maven-releases", ref, strings.NewReader("x"), 1)
			require.Error(t, err)
			assert.Equal(t, tt.want, types.KindOf(err))
		})
	}
}

func TestRequiresContentLength(t *testing.T) {
	a := newTestAdapter(t, newFakeNexus(), types.DestinationConfig{
		Repository:           "maven-releases",
		RequireContentLength: true,
	})
	assert.True(t, a.RequiresContentLength())
}

func TestContentTypeFor(t *testing.T) {
	tests := []struct {
		packaging string
		want      string
	}{
		{"jar", "application/java-archive"},
		{"war", "application/java-archive"},
		{"pom", "application/xml"},
		{"JAR", "application/java-archive"},
		{"zip", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := contentTypeFor(tt.packaging); got != tt.want {
			t.Errorf("contentTypeFor(%q) = %q, want %q", tt.packaging, got, tt.want)
		}
	}
}
