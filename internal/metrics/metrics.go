package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	UpstreamRequests *prometheus.CounterVec // outcome label: ok|empty|error
	UpstreamDuration prometheus.Histogram

	SectionsDropped prometheus.Counter
	RoutesSkipped   prometheus.Counter

	RoutesPlanned *prometheus.CounterVec // modality label
	PlanErrors    *prometheus.CounterVec // modality label

	CacheHits    prometheus.Counter
	CacheMisses  prometheus.Counter
	CacheEntries *prometheus.GaugeVec // state label: fresh|stale

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripplan_upstream_requests_total",
			Help: "HERE routing requests by outcome.",
		}, []string{"outcome"}),
		UpstreamDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tripplan_upstream_duration_seconds",
			Help:    "Latency of HERE routing requests.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		SectionsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripplan_sections_dropped_total",
			Help: "Malformed upstream sections dropped during normalization.",
		}),
		RoutesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripplan_routes_skipped_total",
			Help: "Upstream routes skipped because no section survived normalization.",
		}),
		RoutesPlanned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripplan_routes_planned_total",
			Help: "Routes returned to callers by modality.",
		}, []string{"modality"}),
		PlanErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripplan_plan_errors_total",
			Help: "Failed planning requests by modality.",
		}, []string{"modality"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripplan_route_cache_hits_total",
			Help: "Planning requests served from the route cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripplan_route_cache_misses_total",
			Help: "Planning requests not found in the route cache.",
		}),
		CacheEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tripplan_route_cache_entries",
			Help: "In-memory route cache entries after the last sweep.",
		}, []string{"state"}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripplan_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripplan_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tripplan_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tripplan_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
	}

	reg.MustRegister(
		c.UpstreamRequests, c.UpstreamDuration,
		c.SectionsDropped, c.RoutesSkipped,
		c.RoutesPlanned, c.PlanErrors,
		c.CacheHits, c.CacheMisses, c.CacheEntries,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
	)

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

func (c *Collector) UpstreamObserve(outcome string, d time.Duration) {
	c.UpstreamRequests.WithLabelValues(outcome).Inc()
	c.UpstreamDuration.Observe(d.Seconds())
}

func (c *Collector) SectionsDroppedAdd(n int) { c.SectionsDropped.Add(float64(n)) }
func (c *Collector) RouteSkippedInc()         { c.RoutesSkipped.Inc() }

func (c *Collector) PlannedAdd(modality string, n int) {
	c.RoutesPlanned.WithLabelValues(modality).Add(float64(n))
}

func (c *Collector) PlanFailedInc(modality string) { c.PlanErrors.WithLabelValues(modality).Inc() }

func (c *Collector) CacheHitInc()  { c.CacheHits.Inc() }
func (c *Collector) CacheMissInc() { c.CacheMisses.Inc() }

func (c *Collector) CacheEntriesSet(fresh, stale int) {
	c.CacheEntries.WithLabelValues("fresh").Set(float64(fresh))
	c.CacheEntries.WithLabelValues("stale").Set(float64(stale))
}

func (c *Collector) NATSPublishedInc()              { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc()             { c.NATSPublishErrs.Inc() }
func (c *Collector) PublishObserve(d time.Duration) { c.PublishDuration.Observe(d.Seconds()) }

func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}
