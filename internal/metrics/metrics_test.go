package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderServesBuildInfo(t *testing.T) {
	p := Init(BuildInfo{Version: "test", Revision: "r"})

	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `canasat_build_info{build_date="",revision="r",version="test"} 1`)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestObserveStepLabelsStatus(t *testing.T) {
	p := Init(BuildInfo{})
	p.ObserveStep("extract_bands", 2*time.Second, nil)
	p.ObserveStep("extract_bands", time.Second, errors.New("boom"))

	assert.Equal(t, 2, testutil.CollectAndCount(p.stepDuration, "canasat_step_duration_seconds"))
}

func TestAddArtifacts(t *testing.T) {
	p := Init(BuildInfo{})
	p.AddArtifacts("index", 3)
	p.AddArtifacts("index", 0)
	p.AddArtifacts("map", 1)

	assert.Equal(t, 3.0, testutil.ToFloat64(p.artifacts.WithLabelValues("index")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.artifacts.WithLabelValues("map")))
}

func TestWriteTextfile(t *testing.T) {
	p := Init(BuildInfo{Version: "1.0.0"})
	p.AddArtifacts("csv", 1)
	path := filepath.Join(t.TempDir(), "textfile", "canasat.prom")

	require.NoError(t, p.WriteTextfile(path))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), `canasat_artifacts_total{kind="csv"} 1`))
}
