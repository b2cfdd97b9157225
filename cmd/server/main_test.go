package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>dex</h1>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "app.js"), []byte("console.log('dex')"), 0o644))
	return dir
}

func get(t *testing.T, client *http.Client, url string) (*http.Response, string) {
	t.Helper()
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestFileServer_Root(t *testing.T) {
	r := chi.NewRouter()
	FileServer(r, "/", http.Dir(staticDir(t)))
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, body := get(t, srv.Client(), srv.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<h1>dex</h1>", body)

	resp, body = get(t, srv.Client(), srv.URL+"/assets/app.js")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "console.log('dex')", body)

	resp, _ = get(t, srv.Client(), srv.URL+"/missing.css")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFileServer_Prefix(t *testing.T) {
	r := chi.NewRouter()
	FileServer(r, "/static", http.Dir(staticDir(t)))
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := *srv.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	resp, _ := get(t, &client, srv.URL+"/static")
	assert.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
	assert.Equal(t, "/static/", resp.Header.Get("Location"))

	resp, body := get(t, srv.Client(), srv.URL+"/static/assets/app.js")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "console.log('dex')", body)
}

func TestFileServer_RejectsURLParams(t *testing.T) {
	assert.Panics(t, func() {
		FileServer(chi.NewRouter(), "/{id}", http.Dir(t.TempDir()))
	})
}
