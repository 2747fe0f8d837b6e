package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/repo-cache/internal/domain"
	"github.com/naka-gawa/repo-cache/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seededStore(t *testing.T) *store.FileStore {
	t.Helper()
	st := store.New(memfs.New())
	require.NoError(t, st.Init())
	require.NoError(t, st.WriteRepositories([]domain.Repository{
		{ID: 2, Name: "newer", PushedAt: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)},
		{ID: 1, Name: "older", PushedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
	}))
	require.NoError(t, st.WriteLanguages("newer", domain.LanguageMap{"Go": 42}))
	require.NoError(t, st.WriteReadme("newer", "# newer\n"))
	require.NoError(t, st.WriteMetadata(domain.CacheMetadata{
		LastUpdated: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		RepoCount:   2,
	}))
	return st
}

func get(t *testing.T, reader Reader, path string) (*http.Response, string) {
	t.Helper()
	app := New(reader, Options{Prefix: "/api", CORSOrigin: "http://localhost:5173"}, discardLogger())
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestHandler_Routes(t *testing.T) {
	st := seededStore(t)

	testCases := []struct {
		name        string
		path        string
		status      int
		contentType string
		contains    string
	}{
		{name: "list", path: "/api/repos", status: http.StatusOK, contentType: "application/json", contains: `"name":"newer"`},
		{name: "languages", path: "/api/repos/newer/languages", status: http.StatusOK, contentType: "application/json", contains: `"Go":42`},
		{name: "readme", path: "/api/repos/newer/readme", status: http.StatusOK, contentType: "text/plain", contains: "# newer"},
		{name: "metadata", path: "/api/metadata", status: http.StatusOK, contentType: "application/json", contains: `"repo_count":2`},
		{name: "health", path: "/api/health", status: http.StatusOK, contentType: "application/json", contains: `"status":"ok"`},
		{name: "languages never stored", path: "/api/repos/ghost/languages", status: http.StatusNotFound, contains: "languages not found"},
		{name: "readme never stored", path: "/api/repos/older/readme", status: http.StatusNotFound, contains: "README not found"},
		{name: "unsafe name", path: "/api/repos/..%2Fmetadata/readme", status: http.StatusNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := get(t, st, tc.path)
			assert.Equal(t, tc.status, resp.StatusCode)
			if tc.contentType != "" {
				assert.Contains(t, resp.Header.Get("Content-Type"), tc.contentType)
			}
			assert.Contains(t, body, tc.contains)
		})
	}
}

func TestHandler_ListPreservesOrder(t *testing.T) {
	_, body := get(t, seededStore(t), "/api/repos")

	var repos []domain.Repository
	require.NoError(t, json.Unmarshal([]byte(body), &repos))
	require.Len(t, repos, 2)
	assert.Equal(t, "newer", repos[0].Name)
	assert.Nil(t, repos[0].ReadmePreview)
}

func TestHandler_IdempotentReads(t *testing.T) {
	st := seededStore(t)
	_, first := get(t, st, "/api/repos")
	_, second := get(t, st, "/api/repos")
	assert.Equal(t, first, second)
}

// failingReader simulates a store whose reads fail for reasons other than absence.
type failingReader struct{ err error }

func (f failingReader) ReadRepositories() ([]domain.Repository, error) { return nil, f.err }
func (f failingReader) ReadLanguages(string) (domain.LanguageMap, error) { return nil, f.err }
func (f failingReader) ReadReadme(string) (string, error) { return "", f.err }
func (f failingReader) ReadMetadata() (*domain.CacheMetadata, error) { return nil, f.err }

func TestHandler_StorageErrorsAre500(t *testing.T) {
	reader := failingReader{err: errors.New("decode repos.json: unexpected end of JSON input")}
	for _, path := range []string{"/api/repos", "/api/repos/a/languages", "/api/repos/a/readme", "/api/metadata"} {
		resp, body := get(t, reader, path)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode, path)
		assert.Contains(t, body, "failed to fetch", path)
	}

	resp, body := get(t, reader, "/api/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"last_updated":null`)
}

func TestHandler_EmptyStoreIs404(t *testing.T) {
	st := store.New(memfs.New())
	resp, _ := get(t, st, "/api/repos")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = get(t, st, "/api/metadata")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	app := New(seededStore(t), Options{Prefix: "/api", CORSOrigin: "https://portfolio.example"}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/repos", nil)
	req.Header.Set("Origin", "https://portfolio.example")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "https://portfolio.example", resp.Header.Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/repos", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}
