// Package metrics defines the Collector interface through which a Map
// reports operational counters to Prometheus, and a no-op implementation
// used when the host application does not care to wire one in.
//
// Unlike the package-level promauto singletons this style is grounded on
// (module/metrics in this codebase's lineage registers its collectors once
// per process), a Map is a library type that callers may construct more
// than once per process, so collectors here are built per instance against
// a caller-supplied prometheus.Registerer rather than the default global
// registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "merklemap"

// Collector receives operational counters from a Map. Implementations must
// be safe for the single-threaded access pattern a Map itself assumes; no
// additional synchronization is performed here.
type Collector interface {
	// RootHashRecomputed is reported once per Insert, and once per Remove
	// that deletes a key.
	RootHashRecomputed()

	// PagesWritten reports the number of node pages written by Save.
	PagesWritten(count int)

	// PagesRead reports the number of node pages read while rebuilding a
	// trie from disk.
	PagesRead(count int)

	// TrieDepth reports the number of nibbles consumed to reach the
	// deepest node touched by an operation.
	TrieDepth(depth int)

	// Leaves reports the current number of keys stored in the map.
	Leaves(count int)
}

// NopCollector discards every observation. It is the default Collector for
// a Map constructed without merklemap.WithCollector.
type NopCollector struct{}

func (NopCollector) RootHashRecomputed() {}
func (NopCollector) PagesWritten(int)    {}
func (NopCollector) PagesRead(int)       {}
func (NopCollector) TrieDepth(int)       {}
func (NopCollector) Leaves(int)          {}

// PrometheusCollector implements Collector against a caller-supplied
// registerer, following the Namespace/Subsystem/Name convention this
// codebase's lineage uses for its own ledger metrics.
type PrometheusCollector struct {
	rootHashRecomputed prometheus.Counter
	pagesWritten       prometheus.Counter
	pagesRead          prometheus.Counter
	trieDepth          prometheus.Histogram
	leaves             prometheus.Gauge
}

// NewPrometheusCollector registers a full set of merklemap collectors
// against reg and returns a Collector backed by them.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)
	return &PrometheusCollector{
		rootHashRecomputed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trie",
			Name:      "root_hash_recomputed_total",
			Help:      "number of mutations that recomputed the root hash",
		}),
		pagesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "diskstore",
			Name:      "pages_written_total",
			Help:      "number of node pages written by Save",
		}),
		pagesRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "diskstore",
			Name:      "pages_read_total",
			Help:      "number of node pages read while rebuilding from disk",
		}),
		trieDepth: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trie",
			Name:      "depth_nibbles",
			Buckets:   []float64{4, 8, 16, 32, 48, 64},
			Help:      "nibbles consumed to reach the deepest node touched by an operation",
		}),
		leaves: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trie",
			Name:      "leaves",
			Help:      "current number of keys stored in the map",
		}),
	}
}

func (c *PrometheusCollector) RootHashRecomputed() { c.rootHashRecomputed.Inc() }
func (c *PrometheusCollector) PagesWritten(n int)  { c.pagesWritten.Add(float64(n)) }
func (c *PrometheusCollector) PagesRead(n int)     { c.pagesRead.Add(float64(n)) }
func (c *PrometheusCollector) TrieDepth(d int)     { c.trieDepth.Observe(float64(d)) }
func (c *PrometheusCollector) Leaves(n int)        { c.leaves.Set(float64(n)) }
