// Package metrics exports cache statistics as Prometheus metrics.
//
// The exporter reads a stats snapshot at scrape time instead of keeping its
// own counters, so the numbers on /metrics are always the same numbers the
// stats operation reports.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tiercache/tiercache/internal/config"
	"github.com/tiercache/tiercache/pkg/types"
)

// StatsProvider is the slice of the cache service the exporter needs.
type StatsProvider interface {
	Stats() types.CacheStats
}

// Collector implements prometheus.Collector over a StatsProvider and owns
// the HTTP server that serves the scrape endpoint.
type Collector struct {
	cfg      config.MetricsConfig
	port     int
	provider StatsProvider
	registry *prometheus.Registry
	logger   *slog.Logger
	server   *http.Server

	hitsDesc      *prometheus.Desc
	missesDesc    *prometheus.Desc
	evictionsDesc *prometheus.Desc
	entriesDesc   *prometheus.Desc
	prefixDesc    *prometheus.Desc
	hitRateDesc   *prometheus.Desc
	degradedDesc  *prometheus.Desc
}

// NewCollector builds the exporter and registers it with a fresh registry.
func NewCollector(cfg config.MetricsConfig, port int, provider StatsProvider, logger *slog.Logger) (*Collector, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ns := cfg.Namespace
	if ns == "" {
		ns = "tiercache"
	}

	c := &Collector{
		cfg:      cfg,
		port:     port,
		provider: provider,
		registry: prometheus.NewRegistry(),
		logger:   logger,

		hitsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "", "hits_total"),
			"Total cache hits", nil, nil),
		missesDesc: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "", "misses_total"),
			"Total cache misses", nil, nil),
		evictionsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "", "evictions_total"),
			"Total entries evicted or expired", nil, nil),
		entriesDesc: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "", "entries"),
			"Live entries in the local tier", nil, nil),
		prefixDesc: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "", "prefix_entries"),
			"Live entries per key prefix", []string{"prefix"}, nil),
		hitRateDesc: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "", "hit_rate"),
			"Hits over total lookups", nil, nil),
		degradedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "", "degraded"),
			"1 when the distributed tier is down and the cache runs local-only", nil, nil),
	}

	if err := c.registry.Register(c); err != nil {
		return nil, fmt.Errorf("registering cache collector: %w", err)
	}
	return c, nil
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hitsDesc
	ch <- c.missesDesc
	ch <- c.evictionsDesc
	ch <- c.entriesDesc
	ch <- c.prefixDesc
	ch <- c.hitRateDesc
	ch <- c.degradedDesc
}

// Collect implements prometheus.Collector by snapshotting the cache stats.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.provider.Stats()

	ch <- prometheus.MustNewConstMetric(c.hitsDesc, prometheus.CounterValue, float64(stats.Hits))
	ch <- prometheus.MustNewConstMetric(c.missesDesc, prometheus.CounterValue, float64(stats.Misses))
	ch <- prometheus.MustNewConstMetric(c.evictionsDesc, prometheus.CounterValue, float64(stats.Evictions))
	ch <- prometheus.MustNewConstMetric(c.entriesDesc, prometheus.GaugeValue, float64(stats.Entries))
	ch <- prometheus.MustNewConstMetric(c.hitRateDesc, prometheus.GaugeValue, stats.HitRate)

	degraded := 0.0
	if stats.Degraded {
		degraded = 1.0
	}
	ch <- prometheus.MustNewConstMetric(c.degradedDesc, prometheus.GaugeValue, degraded)

	for prefix, count := range stats.PrefixEntries {
		ch <- prometheus.MustNewConstMetric(c.prefixDesc, prometheus.GaugeValue, float64(count), prefix)
	}
}

// Start serves the scrape endpoint in the background. A disabled config makes
// Start a no-op.
func (c *Collector) Start(_ context.Context) error {
	if !c.cfg.Enabled {
		return nil
	}

	path := c.cfg.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	c.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", c.port),
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.logger.Error("metrics server failed", "error", err)
		}
	}()

	c.logger.Info("metrics server listening", "addr", c.server.Addr, "path", path)
	return nil
}

// Stop shuts the scrape endpoint down.
func (c *Collector) Stop(ctx context.Context) error {
	if c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}
