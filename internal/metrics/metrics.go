// internal/metrics/metrics.go
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "scrollstate"

// Commit results used as the "result" label.
const (
	ResultCommitted = "committed"
	ResultSkipped   = "skipped"
)

// Collector holds the commit pipeline metrics. Each Collector registers on its
// own registry so tests and multiple coordinators never collide.
type Collector struct {
	registry *prometheus.Registry

	commits            *prometheus.CounterVec
	commitDuration     prometheus.Histogram
	committedNodes     prometheus.Histogram
	appliedCommits     prometheus.Counter
	layerReattachments prometheus.Counter
	treeNodes          prometheus.Gauge
	scrollingNodes     prometheus.Gauge
	unparentedSubtrees prometheus.Gauge
}

// New creates a Collector with its own registry. An empty namespace uses DefaultNamespace.
func New(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		commits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tree_commits_total",
			Help:      "Commit attempts on the scrolling state tree, by result.",
		}, []string{"result"}),
		commitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tree_commit_duration_seconds",
			Help:      "Time spent cloning the state tree for a commit.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		committedNodes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tree_committed_nodes",
			Help:      "Number of nodes in each committed snapshot.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		appliedCommits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrolling_tree_applied_commits_total",
			Help:      "Snapshots applied by the scrolling context.",
		}),
		layerReattachments: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrolling_tree_layer_reattachments_total",
			Help:      "Layer properties the scrolling context had to re-attach.",
		}),
		treeNodes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tree_nodes",
			Help:      "Live nodes in the main context state tree, pooled subtrees included.",
		}),
		scrollingNodes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tree_scrolling_nodes",
			Help:      "Live frame and overflow scrolling nodes.",
		}),
		unparentedSubtrees: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tree_unparented_subtrees",
			Help:      "Subtrees waiting in the unparented pool.",
		}),
	}
}

// Registry exposes the collector's registry for scraping and tests.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// ObserveCommit records a commit that produced a snapshot.
func (c *Collector) ObserveCommit(d time.Duration, nodes int) {
	c.commits.WithLabelValues(ResultCommitted).Inc()
	c.commitDuration.Observe(d.Seconds())
	c.committedNodes.Observe(float64(nodes))
}

// ObserveSkippedCommit records a commit request that found nothing to send.
func (c *Collector) ObserveSkippedCommit() {
	c.commits.WithLabelValues(ResultSkipped).Inc()
}

// ObserveApplied records a snapshot applied on the scrolling side.
func (c *Collector) ObserveApplied(reattachedLayers int) {
	c.appliedCommits.Inc()
	c.layerReattachments.Add(float64(reattachedLayers))
}

// SetTreeSize updates the tree size gauges.
func (c *Collector) SetTreeSize(nodes, scrolling, unparented int) {
	c.treeNodes.Set(float64(nodes))
	c.scrollingNodes.Set(float64(scrolling))
	c.unparentedSubtrees.Set(float64(unparented))
}

// Summary flattens the current values into name -> value. Counters and gauges
// report their value, histograms their sample count; labelled series get the
// label values appended with a colon.
func (c *Collector) Summary() (map[string]float64, error) {
	families, err := c.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("failed to gather metrics: %w", err)
	}
	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			out[seriesName(mf.GetName(), m)] = metricValue(mf.GetType(), m)
		}
	}
	return out, nil
}

func seriesName(name string, m *dto.Metric) string {
	for _, lp := range m.GetLabel() {
		name += ":" + lp.GetValue()
	}
	return name
}

func metricValue(t dto.MetricType, m *dto.Metric) float64 {
	switch t {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue()
	case dto.MetricType_HISTOGRAM:
		return float64(m.GetHistogram().GetSampleCount())
	}
	return 0
}

// Serve exposes the registry on addr under /metrics until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Serving metrics.", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down metrics server: %w", err)
		}
		<-errCh
		return nil
	}
}
