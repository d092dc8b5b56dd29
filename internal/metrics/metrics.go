// Package metrics exposes Prometheus metrics for pipeline runs and the map
// server.
package metrics

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type BuildInfo struct {
	Version   string
	Revision  string
	BuildDate string
}

type Provider struct {
	reg          *prometheus.Registry
	buildInfo    *prometheus.GaugeVec
	stepDuration *prometheus.HistogramVec
	artifacts    *prometheus.CounterVec
}

func Init(build BuildInfo) *Provider {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	info := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "canasat_build_info",
			Help: "Build info for this binary (value is always 1).",
		},
		[]string{"version", "revision", "build_date"},
	)
	steps := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "canasat_step_duration_seconds",
			Help:    "Duration of workflow steps.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 900},
		},
		[]string{"step", "status"},
	)
	artifacts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canasat_artifacts_total",
			Help: "Files produced, by kind (band, index, map, csv, gallery).",
		},
		[]string{"kind"},
	)
	reg.MustRegister(info, steps, artifacts)

	if build.Version == "" {
		build.Version = "dev"
	}
	info.WithLabelValues(build.Version, build.Revision, build.BuildDate).Set(1)

	return &Provider{reg: reg, buildInfo: info, stepDuration: steps, artifacts: artifacts}
}

// ObserveStep records one step execution; status is "ok" or "error".
func (p *Provider) ObserveStep(step string, took time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	p.stepDuration.WithLabelValues(step, status).Observe(took.Seconds())
}

func (p *Provider) AddArtifacts(kind string, n int) {
	if n <= 0 {
		return
	}
	p.artifacts.WithLabelValues(kind).Add(float64(n))
}

func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}

func (p *Provider) Register(cs ...prometheus.Collector) {
	for _, c := range cs {
		p.reg.MustRegister(c)
	}
}

func (p *Provider) Gatherer() prometheus.Gatherer { return p.reg }

// WriteTextfile dumps the registry in the text exposition format, for the
// node exporter textfile collector.
func (p *Provider) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, p.reg); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
