package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/forest-guardian/canasat/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func TestRoutes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ndvi_map.html"), []byte("<html>ndvi</html>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "talhao"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "talhao", "compare.html"), []byte("<html/>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	m := metrics.Init(metrics.BuildInfo{Version: "test"})
	h := New(Config{MapsDir: dir}, m, zerolog.Nop()).Handler()

	rr := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())

	rr = get(t, h, "/")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `href="/maps/ndvi_map.html"`)
	assert.Contains(t, body, `href="/maps/talhao/compare.html"`)
	assert.NotContains(t, body, "notes.txt")

	rr = get(t, h, "/maps/ndvi_map.html")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ndvi")

	rr = get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "canasat_build_info")
}

func TestListingWithoutMapsDir(t *testing.T) {
	h := New(Config{MapsDir: filepath.Join(t.TempDir(), "missing")}, nil, zerolog.Nop()).Handler()
	rr := get(t, h, "/")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Nenhum mapa gerado ainda.")

	assert.Equal(t, http.StatusNotFound, get(t, h, "/metrics").Code)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	s := New(Config{Addr: addr, MapsDir: t.TempDir()}, nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return strings.TrimSpace(string(b)) == "ok"
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
