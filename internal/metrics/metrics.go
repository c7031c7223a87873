package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hop"

// Metrics holds every collector the service exports.
// A nil *Metrics is valid and records nothing, so components can be built
// without a registry in tests.
type Metrics struct {
	registry *prometheus.Registry

	redirects        *prometheus.CounterVec
	resolveSeconds   prometheus.Histogram
	linksCreated     *prometheus.CounterVec
	createFailures   *prometheus.CounterVec
	clicksRecorded   prometheus.Counter
	clicksDropped    prometheus.Counter
	clickFailures    prometheus.Counter
	rateLimitRejects prometheus.Counter
	cacheLookups     *prometheus.CounterVec
	expiredSwept     prometheus.Counter
}

// New registers the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry registers the collectors on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		redirects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redirects_total",
			Help:      "Redirect resolutions by outcome.",
		}, []string{"outcome"}),
		resolveSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "redirect_resolve_seconds",
			Help:      "Time spent resolving a short code.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		linksCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_created_total",
			Help:      "Links created, by kind (generated, custom, reused).",
		}, []string{"kind"}),
		createFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_create_failures_total",
			Help:      "Failed link creations by reason.",
		}, []string{"reason"}),
		clicksRecorded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_recorded_total",
			Help:      "Click events persisted.",
		}),
		clicksDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_dropped_total",
			Help:      "Click events dropped because the queue was full or the recorder had stopped.",
		}),
		clickFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "click_record_failures_total",
			Help:      "Click events that failed to persist.",
		}),
		rateLimitRejects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_rejections_total",
			Help:      "Creation requests rejected by the rate limiter.",
		}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Redirect cache lookups by result (hit, negative, miss, error).",
		}, []string{"result"}),
		expiredSwept: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_expired_swept_total",
			Help:      "Links flagged expired by the sweeper.",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry (tests use it to gather).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Redirect(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.redirects.WithLabelValues(outcome).Inc()
	m.resolveSeconds.Observe(elapsed.Seconds())
}

func (m *Metrics) LinkCreated(kind string) {
	if m == nil {
		return
	}
	m.linksCreated.WithLabelValues(kind).Inc()
}

func (m *Metrics) LinkCreateFailed(reason string) {
	if m == nil {
		return
	}
	m.createFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) ClickRecorded() {
	if m == nil {
		return
	}
	m.clicksRecorded.Inc()
}

func (m *Metrics) ClickDropped() {
	if m == nil {
		return
	}
	m.clicksDropped.Inc()
}

func (m *Metrics) ClickFailed() {
	if m == nil {
		return
	}
	m.clickFailures.Inc()
}

func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimitRejects.Inc()
}

func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ExpiredSwept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.expiredSwept.Add(float64(n))
}
