// Package metrics exposes pipeline counters on a private Prometheus registry.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/theoremus-urban-solutions/gtfsrt-delay-features/internal/logging"
)

type Collector struct {
	reg *prometheus.Registry

	FetchAttempts prometheus.Counter
	FetchRetries  prometheus.Counter
	FetchPolls    prometheus.Counter

	CacheLookups *prometheus.CounterVec // kind, result=hit|miss

	Days          *prometheus.CounterVec // outcome=ok|skip|fatal
	FeatureRows   prometheus.Counter
	StageDuration *prometheus.HistogramVec // stage
	LastSuccess   prometheus.Gauge

	SinkFallbacks prometheus.Counter

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge

	mu   sync.Mutex
	last dayStatus
}

type dayStatus struct {
	Operator string
	Date     string
	Outcome  string
	At       time.Time
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		FetchAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "delayfeatures_fetch_attempts_total",
			Help: "Total HTTP requests sent to upstreams.",
		}),
		FetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "delayfeatures_fetch_retries_total",
			Help: "Total fetch retries after a timeout.",
		}),
		FetchPolls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "delayfeatures_fetch_polls_total",
			Help: "Total polls of payloads still being prepared upstream.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "delayfeatures_cache_lookups_total",
			Help: "Cache lookups by artifact kind and result.",
		}, []string{"kind", "result"}),
		Days: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "delayfeatures_days_total",
			Help: "Processed service days by outcome.",
		}, []string{"outcome"}),
		FeatureRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "delayfeatures_feature_rows_total",
			Help: "Total feature rows written.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "delayfeatures_stage_duration_seconds",
			Help:    "Duration of pipeline stages.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
		}, []string{"stage"}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "delayfeatures_last_success_timestamp_seconds",
			Help: "Unix time of the last day that produced features.",
		}),
		SinkFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "delayfeatures_sink_fallbacks_total",
			Help: "Writes diverted to the fallback sink.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "delayfeatures_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "delayfeatures_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "delayfeatures_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
	}

	reg.MustRegister(
		c.FetchAttempts, c.FetchRetries, c.FetchPolls,
		c.CacheLookups,
		c.Days, c.FeatureRows, c.StageDuration, c.LastSuccess,
		c.SinkFallbacks,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
	)
	return c
}

// FetchAttempt, FetchRetry and FetchPoll satisfy fetch.Metrics.
func (c *Collector) FetchAttempt() { c.FetchAttempts.Inc() }
func (c *Collector) FetchRetry()   { c.FetchRetries.Inc() }
func (c *Collector) FetchPoll()    { c.FetchPolls.Inc() }

// CacheResult satisfies cache.Metrics.
func (c *Collector) CacheResult(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.CacheLookups.WithLabelValues(kind, result).Inc()
}

// ObserveStage records how long a pipeline stage took.
func (c *Collector) ObserveStage(stage string, d time.Duration) {
	c.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// DayFinished records the outcome of one (operator, date) run.
func (c *Collector) DayFinished(operator, date, outcome string, rows int) {
	c.Days.WithLabelValues(outcome).Inc()
	now := time.Now()
	if rows > 0 {
		c.FeatureRows.Add(float64(rows))
		c.LastSuccess.Set(float64(now.Unix()))
	}
	c.mu.Lock()
	c.last = dayStatus{Operator: operator, Date: date, Outcome: outcome, At: now}
	c.mu.Unlock()
}

// SinkFallback counts a write diverted to the fallback sink.
func (c *Collector) SinkFallback() { c.SinkFallbacks.Inc() }

// NATSPublishedInc, NATSPublishErrInc and NATSSetConnected satisfy
// publisher.Metrics.
func (c *Collector) NATSPublishedInc()  { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc() { c.NATSPublishErrs.Inc() }
func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
		return
	}
	c.NATSConnected.Set(0)
}

func (c *Collector) lastDay() dayStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics and /health on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	mux.HandleFunc("/health", c.handleHealth)
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Logf("metrics server error: %v", err)
		}
	}()
	logging.Logf("metrics listening on %s", addr)
	return srv
}
