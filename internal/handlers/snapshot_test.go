package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dashboard-backend/internal/storage"
)

// cdnStore pretends every file lives behind a public https URL.
type cdnStore struct{ storage.Store }

func (cdnStore) URL(p string) string { return "https://cdn.example.com/" + p }

func snapshotRouter(store storage.Store) http.Handler {
	h := NewSnapshotHandler(store, nil)
	r := chi.NewRouter()
	r.Get("/api/dashboard/snapshots/latest", h.Latest)
	r.Get("/api/files/*", h.ServeFile)
	return r
}

func TestLatestSnapshot(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir(), "/api/files")
	require.NoError(t, err)
	router := snapshotRouter(store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard/snapshots/latest", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "nothing archived yet")

	_, err = store.Save(context.Background(), storage.LatestSnapshotPath, strings.NewReader(`{"stats":[]}`), "application/json")
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard/snapshots/latest", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"stats":[]}`, rec.Body.String())
}

func TestServeFileFromLocalStore(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir(), "/api/files")
	require.NoError(t, err)
	_, err = store.Save(context.Background(), "snapshots/20250310T120000Z.json", strings.NewReader(`{}`), "application/json")
	require.NoError(t, err)
	router := snapshotRouter(store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/files/snapshots/20250310T120000Z.json", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, `{}`, string(body))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/files/snapshots/missing.json", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeFileRedirectsToCDN(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir(), "/api/files")
	require.NoError(t, err)
	router := snapshotRouter(cdnStore{store})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/files/snapshots/latest.json", nil))
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "https://cdn.example.com/snapshots/latest.json", rec.Header().Get("Location"))
}
