package azdo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adotrack/adotrack/internal/testutil"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &Client{
		baseURL: srv.URL,
		token:   "secret",
		http:    srv.Client(),
		logger:  testutil.NewTestLogger(t),
	}
}

func TestGetRetriesTransientFailures(t *testing.T) {
	var attempts atomic.Int32
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(listEnvelope[Project]{Count: 1, Value: []Project{{ID: "p1", Name: "alpha"}}})
	}))

	projects, err := c.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "alpha", projects[0].Name)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestGetGivesUpAfterMaxAttempts(t *testing.T) {
	var attempts atomic.Int32
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := c.ListProjects(context.Background())
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Equal(t, int32(maxAttempts), attempts.Load())
}

func TestGetClassifiesErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{"not found", http.StatusNotFound, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrNotFound)
			assert.False(t, IsFatal(err))
		}},
		{"unauthorized", http.StatusUnauthorized, func(t *testing.T, err error) {
			assert.True(t, IsFatal(err))
		}},
		{"forbidden", http.StatusForbidden, func(t *testing.T, err error) {
			assert.True(t, IsFatal(err))
			var access *AccessError
			require.True(t, errors.As(err, &access))
			assert.Equal(t, http.StatusForbidden, access.Status)
		}},
		// Rejected tokens come back as 203 with a sign-in page instead
		// of JSON.
		{"sign-in page", http.StatusNonAuthoritativeInfo, func(t *testing.T, err error) {
			assert.True(t, IsFatal(err))
			var access *AccessError
			require.True(t, errors.As(err, &access))
			assert.Equal(t, http.StatusNonAuthoritativeInfo, access.Status)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts atomic.Int32
			c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				attempts.Add(1)
				w.WriteHeader(tt.status)
			}))

			_, err := c.GetProject(context.Background(), "alpha")
			require.Error(t, err)
			tt.check(t, err)
			assert.Equal(t, int32(1), attempts.Load(), "non-transient failures are not retried")
		})
	}
}

func TestFetchFile(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/alpha/_apis/git/repositories/app/items", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "azure-pipelines.yml", q.Get("path"))
		assert.Equal(t, "true", q.Get("includeContent"))
		assert.Equal(t, "main", q.Get("versionDescriptor.version"))
		assert.Equal(t, "branch", q.Get("versionDescriptor.versionType"))
		_ = json.NewEncoder(w).Encode(map[string]string{"content": "steps: []"})
	}))

	content, err := c.FetchFile(context.Background(), "alpha", "app", "azure-pipelines.yml", "refs/heads/main")
	require.NoError(t, err)
	assert.Equal(t, "steps: []", content)
}

func TestListRepositoriesExtractsProjectAndBranch(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"count": 2,
			"value": [
				{
					"id": "r1", "name": "app", "defaultBranch": "refs/heads/main",
					"project": {"id": "p1", "name": "alpha"}
				},
				{
					"id": "r2", "name": "legacy", "defaultBranch": "refs/heads/master",
					"isDisabled": true,
					"project": {"id": "p1", "name": "alpha"}
				}
			]
		}`))
	}))

	repos, err := c.ListRepositories(context.Background(), "alpha")
	require.NoError(t, err)
	require.Len(t, repos, 2)

	assert.Equal(t, "main", repos[0].DefaultBranch)
	assert.Equal(t, "alpha", repos[0].ProjectName)
	assert.False(t, repos[0].Disabled)
	assert.True(t, repos[1].Disabled)
}

func TestListPipelinesExpandsDetails(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/alpha/_apis/pipelines":
			_ = json.NewEncoder(w).Encode(listEnvelope[Pipeline]{Count: 2, Value: []Pipeline{
				{ID: 1, Name: "ci"},
				{ID: 2, Name: "vanished"},
			}})
		case "/alpha/_apis/pipelines/1":
			_, _ = w.Write([]byte(`{
				"id": 1, "name": "ci", "folder": "\\",
				"configuration": {
					"path": "/azure-pipelines.yml",
					"repository": {"id": "r1"}
				}
			}`))
		case "/alpha/_apis/pipelines/2":
			w.WriteHeader(http.StatusNotFound)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	pipelines, err := c.ListPipelines(context.Background(), "alpha")
	require.NoError(t, err)
	require.Len(t, pipelines, 1)
	assert.Equal(t, "/azure-pipelines.yml", pipelines[0].Path)
	assert.Equal(t, "r1", pipelines[0].RepositoryID)
}

func TestShortBranch(t *testing.T) {
	assert.Equal(t, "main", shortBranch("refs/heads/main"))
	assert.Equal(t, "feature/x", shortBranch("refs/heads/feature/x"))
	assert.Equal(t, "develop", shortBranch("develop"))
	assert.Equal(t, "", shortBranch(""))
}
